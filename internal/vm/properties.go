package vm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/magiconair/properties"

	"goattach/internal/command"
	"goattach/internal/users"
)

const defaultQueryTimeout = 30 * time.Second

// PropertySource reads the metadata of a running JVM owned by u.
type PropertySource interface {
	Properties(ctx context.Context, pid string, u *users.User) (map[string]string, error)
}

// Jcmd reads metadata with jcmd. jcmd only talks to JVMs of the same user,
// so JVMs of other users are queried by re-running this program as that user.
type Jcmd struct {
	Users   *users.Registry
	Runner  command.Runner
	Path    string
	Timeout time.Duration

	// Self and SelfArgs form the command line of the hidden properties
	// subcommand; the pid is appended as "--pid <pid>".
	Self     string
	SelfArgs []string
}

func (j *Jcmd) Properties(ctx context.Context, pid string, u *users.User) (map[string]string, error) {
	if u.IsCurrent() {
		return j.Local(ctx, pid)
	}
	if j.Self == "" {
		return nil, fmt.Errorf("query pid %s as %s: no executable to delegate to", pid, u.Username())
	}
	args := append(append([]string(nil), j.SelfArgs...), "--pid", pid)
	res, err := j.Users.RunAs(ctx, u, j.timeout(), j.Self, args...)
	if err != nil {
		return nil, fmt.Errorf("query pid %s as %s: %w", pid, u.Username(), err)
	}
	if !res.OK() {
		return nil, fmt.Errorf("query pid %s as %s: exit status %d: %s", pid, u.Username(), res.ExitCode, firstLine(res.Stderr))
	}
	props := map[string]string{}
	if err := json.Unmarshal(res.Stdout, &props); err != nil {
		return nil, fmt.Errorf("query pid %s as %s: decode: %w", pid, u.Username(), err)
	}
	return props, nil
}

// Local queries a JVM owned by the current user.
func (j *Jcmd) Local(ctx context.Context, pid string) (map[string]string, error) {
	sysProps, err := j.jcmd(ctx, pid, "VM.system_properties")
	if err != nil {
		return nil, err
	}
	props, err := ParseSystemProperties(sysProps)
	if err != nil {
		return nil, fmt.Errorf("pid %s: parse system properties: %w", pid, err)
	}

	cmdline, err := j.jcmd(ctx, pid, "VM.command_line")
	if err != nil {
		return nil, err
	}
	for k, v := range ParseCommandLine(cmdline) {
		props[k] = v
	}
	return props, nil
}

// Ping checks that jcmd can be started at all.
func (j *Jcmd) Ping(ctx context.Context) error {
	res, err := j.Runner.Run(ctx, j.timeout(), j.path(), "-l")
	if err != nil {
		return fmt.Errorf("%s -l: %w", j.path(), err)
	}
	if !res.OK() {
		return fmt.Errorf("%s -l: exit status %d: %s", j.path(), res.ExitCode, firstLine(res.Stderr))
	}
	return nil
}

func (j *Jcmd) jcmd(ctx context.Context, pid, diagnostic string) ([]byte, error) {
	res, err := j.Runner.Run(ctx, j.timeout(), j.path(), pid, diagnostic)
	if err != nil {
		return nil, fmt.Errorf("jcmd %s %s: %w", pid, diagnostic, err)
	}
	if !res.OK() {
		msg := firstLine(res.Stderr)
		if msg == "" {
			msg = firstLine(res.Stdout)
		}
		return nil, fmt.Errorf("jcmd %s %s: exit status %d: %s", pid, diagnostic, res.ExitCode, msg)
	}
	return res.Stdout, nil
}

func (j *Jcmd) path() string {
	if j.Path == "" {
		return "jcmd"
	}
	return j.Path
}

func (j *Jcmd) timeout() time.Duration {
	if j.Timeout <= 0 {
		return defaultQueryTimeout
	}
	return j.Timeout
}

// ParseSystemProperties parses VM.system_properties output. The leading
// "<pid>:" line printed by jcmd is skipped.
func ParseSystemProperties(out []byte) (map[string]string, error) {
	if first, rest, ok := bytes.Cut(out, []byte("\n")); ok && bytes.HasSuffix(bytes.TrimSpace(first), []byte(":")) {
		out = rest
	}
	l := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := l.LoadBytes(out)
	if err != nil {
		return nil, err
	}
	return p.Map(), nil
}

// ParseCommandLine extracts jvm_args and java_command from VM.command_line output.
func ParseCommandLine(out []byte) map[string]string {
	props := map[string]string{}
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "jvm_args":
			props[PropVMArgs] = value
		case "java_command":
			props[PropCommand] = value
		}
	}
	return props
}

func firstLine(b []byte) string {
	line, _, _ := strings.Cut(strings.TrimSpace(string(b)), "\n")
	return line
}
