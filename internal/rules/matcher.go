// Package rules decides which JVMs to act on from an ordered list of
// include and exclude rules. The first rule that matches wins.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"goattach/internal/vm"
)

// ErrInvalidRule is returned for malformed rule input.
var ErrInvalidRule = errors.New("invalid rule")

// Kind enumerates matcher variants.
type Kind int

const (
	KindAll Kind = iota
	KindMain
	KindArgs
	KindPID
	KindUser
)

func (k Kind) String() string {
	switch k {
	case KindAll:
		return "all"
	case KindMain:
		return "main"
	case KindArgs:
		return "vmargs"
	case KindPID:
		return "pid"
	case KindUser:
		return "user"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Matcher is a predicate over a vm.Info. Only the field relevant to its Kind is set.
type Matcher struct {
	kind    Kind
	pattern *regexp.Regexp
	value   string
}

// All matches every JVM.
func All() Matcher { return Matcher{kind: KindAll} }

// Main matches JVMs whose main class or jar contains a match of pattern.
func Main(pattern string) (Matcher, error) { return compiled(KindMain, pattern) }

// Args matches JVMs whose JVM arguments contain a match of pattern.
func Args(pattern string) (Matcher, error) { return compiled(KindArgs, pattern) }

// PID matches exactly one pid.
func PID(pid string) (Matcher, error) {
	pid = strings.TrimSpace(pid)
	if pid == "" {
		return Matcher{}, fmt.Errorf("%w: pid must not be empty", ErrInvalidRule)
	}
	for i := 0; i < len(pid); i++ {
		if pid[i] < '0' || pid[i] > '9' {
			return Matcher{}, fmt.Errorf("%w: pid %q is not numeric", ErrInvalidRule, pid)
		}
	}
	return Matcher{kind: KindPID, value: pid}, nil
}

// User matches JVMs run by username.
func User(username string) (Matcher, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Matcher{}, fmt.Errorf("%w: user must not be empty", ErrInvalidRule)
	}
	if strings.IndexFunc(username, unicode.IsSpace) >= 0 {
		return Matcher{}, fmt.Errorf("%w: user %q contains whitespace", ErrInvalidRule, username)
	}
	return Matcher{kind: KindUser, value: username}, nil
}

func compiled(kind Kind, pattern string) (Matcher, error) {
	if pattern == "" {
		return Matcher{}, fmt.Errorf("%w: %s pattern must not be empty", ErrInvalidRule, kind)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Matcher{}, fmt.Errorf("%w: %s pattern: %v", ErrInvalidRule, kind, err)
	}
	return Matcher{kind: kind, pattern: re}, nil
}

// Kind returns the matcher variant.
func (m Matcher) Kind() Kind { return m.kind }

// Matches evaluates the predicate. Absent fields never match a pattern.
func (m Matcher) Matches(info vm.Info) bool {
	switch m.kind {
	case KindAll:
		return true
	case KindMain:
		main, ok := info.Main()
		return ok && m.pattern.MatchString(main)
	case KindArgs:
		args, ok := info.Args()
		return ok && m.pattern.MatchString(args)
	case KindPID:
		return info.PID() == m.value
	case KindUser:
		return info.User() == m.value
	default:
		panic("unreachable")
	}
}

func (m Matcher) String() string {
	switch m.kind {
	case KindAll:
		return "all"
	case KindMain, KindArgs:
		return m.kind.String() + "(" + m.pattern.String() + ")"
	default:
		return m.kind.String() + "(" + m.value + ")"
	}
}
