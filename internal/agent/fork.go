package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"goattach/internal/users"
)

const defaultForkTimeout = 2 * time.Minute

// Forker attaches to a JVM of another user by running this program again as
// that user, narrowed to the one pid and with the resolved configuration.
type Forker struct {
	Users *users.Registry
	Self  string
	// Args are forwarded ahead of the generated ones, e.g. log and agent jar flags.
	Args    []string
	Timeout time.Duration
}

// Argv returns the arguments the child is started with.
func (f *Forker) Argv(pid string, cfg Config) []string {
	argv := append([]string(nil), f.Args...)
	argv = append(argv, "--no-fork", "--include-pid", pid)
	for _, s := range cfg.Settings() {
		argv = append(argv, "--config", s.Key+"="+s.Value)
	}
	return argv
}

// AttachAs runs the child and reports success iff it exits with status zero.
func (f *Forker) AttachAs(ctx context.Context, u *users.User, pid string, cfg Config) error {
	if f.Self == "" {
		return errors.New("path of this executable is unknown")
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultForkTimeout
	}
	res, err := f.Users.RunAs(ctx, u, timeout, f.Self, f.Argv(pid, cfg)...)
	if err != nil {
		return fmt.Errorf("attach to %s as %s: %w", pid, u, err)
	}
	if !res.OK() {
		return fmt.Errorf("attach to %s as %s: exited with status %d: %s", pid, u, res.ExitCode, detail(res))
	}
	return nil
}
