// Package vm describes discovered JVMs and reads their runtime metadata.
package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// Property keys understood by New.
const (
	PropCommand = "sun.java.command"
	PropVMArgs  = "sun.jvm.args"
	PropVersion = "java.version"
)

// DefaultAttachedProperty is the system property an attached agent sets to "true".
const DefaultAttachedProperty = "agent.attached"

// Info is a redacted snapshot of one JVM.
//
// Only derived scalars are kept; the property bag used to build it is not
// retained so that JVM arguments carrying credentials do not linger in memory.
type Info struct {
	pid      string
	user     string
	main     string
	args     string
	hasMain  bool
	hasArgs  bool
	version  string
	attached bool
}

// New derives an Info from the raw metadata of a JVM.
// attachedProperty names the property marking an attached agent; empty means DefaultAttachedProperty.
func New(pid, user string, props map[string]string, attachedProperty string) Info {
	if attachedProperty == "" {
		attachedProperty = DefaultAttachedProperty
	}
	info := Info{
		pid:      pid,
		user:     user,
		version:  strings.TrimSpace(props[PropVersion]),
		attached: strings.EqualFold(strings.TrimSpace(props[attachedProperty]), "true"),
	}
	if fields := strings.Fields(props[PropCommand]); len(fields) > 0 {
		info.main, info.hasMain = fields[0], true
	}
	if args, ok := props[PropVMArgs]; ok && strings.TrimSpace(args) != "" {
		info.args, info.hasArgs = strings.TrimSpace(args), true
	}
	return info
}

// PID returns the process id exactly as it was discovered.
func (i Info) PID() string { return i.pid }

// User returns the name of the OS user running the JVM.
func (i Info) User() string { return i.user }

// Main returns the main class or jar, if known.
func (i Info) Main() (string, bool) { return i.main, i.hasMain }

// Args returns the JVM arguments, if known. They may contain secrets.
func (i Info) Args() (string, bool) { return i.args, i.hasArgs }

// Version returns the java.version property.
func (i Info) Version() string { return i.version }

// Attached reports whether the JVM says an agent is already attached.
func (i Info) Attached() bool { return i.attached }

// String never includes JVM arguments.
func (i Info) String() string {
	main := i.main
	if !i.hasMain {
		main = "<unknown>"
	}
	return fmt.Sprintf("JVM(pid=%s, user=%s, main=%s, version=%s)", i.pid, i.user, main, i.version)
}

// ParseVersion reads the feature release and update of a java.version value.
// It understands both "1.8.0_292" and "11.0.2"/"17-ea" style versions.
func ParseVersion(version string) (major, update int, ok bool) {
	version = strings.TrimSpace(version)
	if version == "" {
		return 0, 0, false
	}
	if rest, legacy := strings.CutPrefix(version, "1."); legacy {
		head, tail, _ := strings.Cut(rest, "_")
		m, err := strconv.Atoi(leadingDigits(head))
		if err != nil {
			return 0, 0, false
		}
		if tail != "" {
			update, _ = strconv.Atoi(leadingDigits(tail))
		}
		return m, update, true
	}
	m, err := strconv.Atoi(leadingDigits(version))
	if err != nil {
		return 0, 0, false
	}
	return m, 0, true
}

func leadingDigits(s string) string {
	for i, r := range s {
		if r < '0' || r > '9' {
			return s[:i]
		}
	}
	return s
}
