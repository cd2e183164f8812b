// Package commandtest provides a scripted command.Runner for tests.
package commandtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"goattach/internal/command"
)

// Call records one invocation seen by Fake.
type Call struct {
	Name    string
	Args    []string
	Timeout time.Duration
}

// Line joins the call back into a single command line.
func (c Call) Line() string {
	return command.Describe(c.Name, c.Args...)
}

// Fake answers commands through Handler and records each call.
type Fake struct {
	Handler func(call Call) (command.Result, error)

	mu    sync.Mutex
	calls []Call
}

func (f *Fake) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (command.Result, error) {
	call := Call{Name: name, Args: append([]string(nil), args...), Timeout: timeout}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.Handler == nil {
		return command.Result{}, nil
	}
	return f.Handler(call)
}

// Calls returns a copy of the recorded invocations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CountPrefix returns how many recorded calls start with the given command line prefix.
func (f *Fake) CountPrefix(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.HasPrefix(c.Line(), prefix) {
			n++
		}
	}
	return n
}
