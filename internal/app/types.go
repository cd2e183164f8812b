package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"goattach/internal/journal"
)

// ListFilters aggregates selectors for the outcomes commands.
type ListFilters struct {
	Outcomes   []string
	PIDs       []string
	Users      []string
	FailedOnly bool
	TextSearch string
	Limit      int
}

func (f ListFilters) build() (journal.ListFilter, error) {
	out := journal.ListFilter{
		FailedOnly: f.FailedOnly,
		TextSearch: f.TextSearch,
	}
	if f.Limit < 0 {
		return journal.ListFilter{}, fmt.Errorf("invalid limit: %d", f.Limit)
	}
	out.Limit = f.Limit

	for _, name := range f.Outcomes {
		o, err := parseOutcome(name)
		if err != nil {
			return journal.ListFilter{}, err
		}
		out.Outcomes = append(out.Outcomes, o)
	}
	for _, pid := range f.PIDs {
		clean := strings.TrimSpace(pid)
		if n, err := strconv.Atoi(clean); err != nil || n <= 0 {
			return journal.ListFilter{}, fmt.Errorf("invalid pid filter: %q", pid)
		}
		out.PIDs = append(out.PIDs, clean)
	}
	for _, user := range f.Users {
		clean := strings.TrimSpace(user)
		if clean == "" {
			return journal.ListFilter{}, errors.New("user filters must not be empty")
		}
		out.Users = append(out.Users, clean)
	}
	return out, nil
}

func parseOutcome(name string) (journal.Outcome, error) {
	clean := strings.ToLower(strings.TrimSpace(name))
	clean = strings.ReplaceAll(clean, "-", "_")
	for _, o := range journal.Outcomes {
		if string(o) == clean {
			return o, nil
		}
	}
	return "", fmt.Errorf("unknown outcome %q", name)
}
