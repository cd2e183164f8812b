package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"goattach/internal/command"
)

// ErrProviderRejected means the args provider asked not to attach to a JVM.
var ErrProviderRejected = errors.New("args provider rejected the target")

// ConfigSource yields the agent configuration for one target.
type ConfigSource interface {
	ConfigFor(ctx context.Context, pid string) (Config, error)
}

// Static returns the same configuration for every target.
type Static Config

func (s Static) ConfigFor(ctx context.Context, pid string) (Config, error) {
	return Config(s).WithDefaults(), nil
}

// ArgsProvider runs "<Program> <pid>" and reads key=value;key=value from stdout.
type ArgsProvider struct {
	Runner  command.Runner
	Program string
	Timeout time.Duration
}

func (p *ArgsProvider) ConfigFor(ctx context.Context, pid string) (Config, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	res, err := p.Runner.Run(ctx, timeout, p.Program, pid)
	if err != nil {
		return Config{}, fmt.Errorf("args provider %s: %w", p.Program, err)
	}
	if !res.OK() {
		return Config{}, fmt.Errorf("%w: %s exited with status %d", ErrProviderRejected, p.Program, res.ExitCode)
	}
	cfg, err := ParseArgs(string(res.Stdout))
	if err != nil {
		return Config{}, fmt.Errorf("args provider %s: %w", p.Program, err)
	}
	return cfg.WithDefaults(), nil
}
