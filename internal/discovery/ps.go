package discovery

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"goattach/internal/command"
	"goattach/internal/vm"
)

const psTimeout = 30 * time.Second

// PsScan finds JVMs by looking for a runtime token in the process list,
// for JVMs that do not write perf data files.
//
// Each output line is split on whitespace; the owner is column 0 and the
// pid column 1, as printed by "ps aux".
type PsScan struct {
	Runner    command.Runner
	Command   []string
	Token     string
	Describer *Describer
	Logger    *slog.Logger
}

func (p *PsScan) Name() string { return "ps" }

func (p *PsScan) Available(ctx context.Context) bool {
	if runtime.GOOS == "windows" {
		return false
	}
	name, args := p.command()
	res, err := p.Runner.Run(ctx, psTimeout, name, args...)
	if err != nil {
		p.logger().Debug("process listing unavailable", "command", command.Describe(name, args...), "error", err)
		return false
	}
	return res.OK()
}

func (p *PsScan) Discover(ctx context.Context) ([]vm.Info, error) {
	name, args := p.command()
	res, err := p.Runner.Run(ctx, psTimeout, name, args...)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", command.Describe(name, args...), err)
	}

	logger := p.logger()
	var result []vm.Info
	for _, c := range ParseProcessList(res.Stdout, p.token()) {
		info, err := p.Describer.Describe(ctx, c.PID, c.User)
		if err != nil {
			logger.Debug("process list matched the runtime token but the process does not look like a JVM",
				"pid", c.PID, "user", c.User, "error", err)
			continue
		}
		result = append(result, info)
	}
	return result, nil
}

// Candidate is a process list row that mentions the runtime token.
type Candidate struct {
	User string
	PID  string
}

// ParseProcessList returns candidate rows in output order. Rows without the
// token, and rows whose pid column is not numeric (such as the header), are skipped.
func ParseProcessList(out []byte, token string) []Candidate {
	var candidates []Candidate
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, token) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || !isDigits(fields[1]) {
			continue
		}
		candidates = append(candidates, Candidate{User: fields[0], PID: fields[1]})
	}
	return candidates
}

func (p *PsScan) command() (string, []string) {
	if len(p.Command) == 0 {
		return "ps", []string{"aux"}
	}
	return p.Command[0], p.Command[1:]
}

func (p *PsScan) token() string {
	if p.Token == "" {
		return "java"
	}
	return p.Token
}

func (p *PsScan) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Logger
}
