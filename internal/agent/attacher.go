package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"goattach/internal/command"
	"goattach/internal/vm"
)

const defaultAttachTimeout = 60 * time.Second

// Attacher performs the attach to a JVM owned by the current user.
type Attacher interface {
	Attach(ctx context.Context, pid string, cfg Config) error
	// Check verifies that attaching can work at all.
	Check(ctx context.Context) error
	// Supports reports whether a JVM reporting java.version can be attached to.
	Supports(version string) bool
}

// Jcmd attaches with "jcmd <pid> JVMTI.agent_load <jar> <options>".
type Jcmd struct {
	Runner   command.Runner
	Path     string
	AgentJar string
	Timeout  time.Duration
}

var returnCode = regexp.MustCompile(`return code:\s*(-?\d+)`)

func (j *Jcmd) Attach(ctx context.Context, pid string, cfg Config) error {
	jar, err := dcmdQuote(j.AgentJar)
	if err != nil {
		return fmt.Errorf("attach to %s: agent jar: %w", pid, err)
	}
	args := []string{pid, "JVMTI.agent_load", jar}
	if opts := cfg.String(); opts != "" {
		quoted, err := dcmdQuote(opts)
		if err != nil {
			return fmt.Errorf("attach to %s: agent options: %w", pid, err)
		}
		args = append(args, quoted)
	}
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = defaultAttachTimeout
	}
	res, err := j.Runner.Run(ctx, timeout, j.path(), args...)
	if err != nil {
		return fmt.Errorf("attach to %s: %w", pid, err)
	}
	out := strings.TrimSpace(string(res.Stdout))
	if !res.OK() {
		return fmt.Errorf("attach to %s: jcmd exited with status %d: %s", pid, res.ExitCode, detail(res))
	}
	// jcmd reports agent load failures in its output and still exits 0.
	if m := returnCode.FindStringSubmatch(out); m != nil {
		if code, _ := strconv.Atoi(m[1]); code != 0 {
			return fmt.Errorf("attach to %s: agent load failed: %s", pid, out)
		}
	}
	return nil
}

// Supports requires JDK 9, the first release with the JVMTI.agent_load command.
func (j *Jcmd) Supports(version string) bool {
	major, _, ok := vm.ParseVersion(version)
	return ok && major >= 9
}

func (j *Jcmd) Check(ctx context.Context) error {
	if j.AgentJar == "" {
		return errors.New("no agent jar configured")
	}
	f, err := os.Open(j.AgentJar)
	if err != nil {
		return fmt.Errorf("agent jar: %w", err)
	}
	defer f.Close()
	if st, err := f.Stat(); err != nil {
		return fmt.Errorf("agent jar: %w", err)
	} else if st.IsDir() {
		return fmt.Errorf("agent jar %s is a directory", j.AgentJar)
	}

	res, err := j.Runner.Run(ctx, 30*time.Second, j.path(), "-h")
	if err != nil {
		return fmt.Errorf("run %s: %w", j.path(), err)
	}
	if !res.OK() {
		return fmt.Errorf("%s -h exited with status %d", j.path(), res.ExitCode)
	}
	return nil
}

func (j *Jcmd) path() string {
	if j.Path == "" {
		return "jcmd"
	}
	return j.Path
}

// dcmdQuote protects an argument from the target JVM's diagnostic command
// parser. It rejoins jcmd's arguments, splits them on spaces and reads only
// the part before '=' of an unquoted positional argument. Quoted arguments
// are taken whole; a quote preceded by a backslash does not close them.
func dcmdQuote(arg string) (string, error) {
	if !strings.ContainsAny(arg, " =\"'") {
		return arg, nil
	}
	if strings.HasSuffix(arg, `\`) {
		return "", fmt.Errorf("%q ends with a backslash", arg)
	}
	switch {
	case !strings.Contains(arg, `"`):
		return `"` + arg + `"`, nil
	case !strings.Contains(arg, "'"):
		return "'" + arg + "'", nil
	default:
		return "", fmt.Errorf("%q mixes single and double quotes", arg)
	}
}

func detail(res command.Result) string {
	if s := strings.TrimSpace(string(res.Stderr)); s != "" {
		return s
	}
	return strings.TrimSpace(string(res.Stdout))
}
