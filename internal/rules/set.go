package rules

import (
	"fmt"
	"strings"

	"goattach/internal/vm"
)

// Direction says what a matching rule does.
type Direction int

const (
	Include Direction = iota
	Exclude
)

func (d Direction) String() string {
	if d == Include {
		return "include"
	}
	return "exclude"
}

// Rule pairs a direction with a matcher.
type Rule struct {
	Direction Direction
	Matcher   Matcher
}

func (r Rule) String() string {
	return r.Direction.String() + "(" + r.Matcher.String() + ")"
}

// Set is an ordered rule list. The zero value is empty and includes nothing.
type Set struct {
	rules []Rule
}

// AddInclude appends an include rule.
func (s *Set) AddInclude(m Matcher) { s.rules = append(s.rules, Rule{Direction: Include, Matcher: m}) }

// AddExclude appends an exclude rule.
func (s *Set) AddExclude(m Matcher) { s.rules = append(s.rules, Rule{Direction: Exclude, Matcher: m}) }

// FirstMatch returns the earliest added rule matching info.
func (s *Set) FirstMatch(info vm.Info) (Rule, bool) {
	for _, r := range s.rules {
		if r.Matcher.Matches(info) {
			return r, true
		}
	}
	return Rule{}, false
}

// IsIncluded reports whether the first matching rule is an include.
func (s *Set) IsIncluded(info vm.Info) bool {
	r, ok := s.FirstMatch(info)
	return ok && r.Direction == Include
}

// Rules returns a copy of the rules in evaluation order.
func (s *Set) Rules() []Rule { return append([]Rule(nil), s.rules...) }

// Len returns the number of rules.
func (s *Set) Len() int { return len(s.rules) }

// IncludePIDs returns the pids of include-pid rules in order.
func (s *Set) IncludePIDs() []string {
	var out []string
	for _, r := range s.rules {
		if r.Direction == Include && r.Matcher.kind == KindPID {
			out = append(out, r.Matcher.value)
		}
	}
	return out
}

// DiscoveryRequired is false when every rule is an include-pid rule, so the
// targets are known without listing JVMs.
func (s *Set) DiscoveryRequired() bool {
	if len(s.rules) == 0 {
		return true
	}
	for _, r := range s.rules {
		if r.Direction != Include || r.Matcher.kind != KindPID {
			return true
		}
	}
	return false
}

func (s *Set) String() string {
	parts := make([]string, 0, len(s.rules))
	for _, r := range s.rules {
		parts = append(parts, r.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Option names accepted by Add, without the leading dashes.
const (
	OptIncludeAll  = "include-all"
	OptIncludeMain = "include-main"
	OptExcludeMain = "exclude-main"
	OptIncludeArgs = "include-vmarg"
	OptExcludeArgs = "exclude-vmarg"
	OptIncludePID  = "include-pid"
	OptExcludePID  = "exclude-pid"
	OptIncludeUser = "include-user"
	OptExcludeUser = "exclude-user"
)

// Add appends the rule named by a command line option. Options are expected
// to be added in the order they appear on the command line.
func (s *Set) Add(option, value string) error {
	if option == OptIncludeAll {
		s.AddInclude(All())
		return nil
	}

	dir, kindName, ok := strings.Cut(option, "-")
	if !ok {
		return fmt.Errorf("%w: unknown option --%s", ErrInvalidRule, option)
	}
	var (
		m   Matcher
		err error
	)
	switch strings.TrimSuffix(kindName, "s") {
	case "main":
		m, err = Main(value)
	case "vmarg":
		m, err = Args(value)
	case "pid":
		m, err = PID(value)
	case "user":
		m, err = User(value)
	default:
		return fmt.Errorf("%w: unknown option --%s", ErrInvalidRule, option)
	}
	if err != nil {
		return fmt.Errorf("--%s: %w", option, err)
	}

	switch dir {
	case "include":
		s.AddInclude(m)
	case "exclude":
		s.AddExclude(m)
	default:
		return fmt.Errorf("%w: unknown option --%s", ErrInvalidRule, option)
	}
	return nil
}
