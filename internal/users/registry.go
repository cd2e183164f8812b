// Package users resolves operating system accounts and decides whether the
// current process may run commands on their behalf.
package users

import (
	"context"
	"errors"
	"fmt"
	"os/user"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"goattach/internal/command"
)

const defaultProbeTimeout = 5 * time.Second

var (
	// ErrUnknownUser is returned when a username does not name a local account.
	ErrUnknownUser = errors.New("unknown user")
	// ErrCannotSwitch is returned when a command must run as a user the current process cannot act as.
	ErrCannotSwitch = errors.New("cannot switch to user")
)

// User is an OS account resolved by a Registry. It is immutable.
type User struct {
	username  string
	current   bool
	canSwitch bool
}

// Username returns the account name.
func (u *User) Username() string { return u.username }

// IsCurrent reports whether this is the user the process runs as.
func (u *User) IsCurrent() bool { return u.current }

// CanSwitch reports whether commands can be run as this user.
// It is always true for the current user.
func (u *User) CanSwitch() bool { return u.canSwitch }

func (u *User) String() string { return u.username }

// Options configures a Registry.
type Options struct {
	// Current overrides the current username; defaults to os/user.Current.
	Current string
	// Runner executes privilege probes and commands run as other users.
	Runner command.Runner
	// SudoPath is the privilege switching binary, "sudo" by default.
	SudoPath string
	// ProbeTimeout bounds each privilege probe.
	ProbeTimeout time.Duration
	// Lookup maps a name as reported by the OS to its canonical account name.
	// Defaults to an os/user lookup by name, falling back to numeric uid.
	Lookup func(name string) (string, error)
	// NoSwitching disables privilege switching entirely. It is forced on windows.
	NoSwitching bool
}

// Registry caches resolved users for the lifetime of the process.
// It is safe for concurrent use; a username is probed at most once.
type Registry struct {
	current      *User
	runner       command.Runner
	sudoPath     string
	probeTimeout time.Duration
	lookup       func(string) (string, error)
	switching    bool

	mu    sync.RWMutex
	users map[string]*User
	group singleflight.Group
}

// New builds a Registry seeded with the current user.
func New(opts Options) (*Registry, error) {
	current := strings.TrimSpace(opts.Current)
	if current == "" {
		u, err := user.Current()
		if err != nil {
			return nil, fmt.Errorf("determine current user: %w", err)
		}
		current = u.Username
	}
	if opts.Runner == nil {
		opts.Runner = command.Exec{}
	}
	if opts.SudoPath == "" {
		opts.SudoPath = "sudo"
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	if opts.Lookup == nil {
		opts.Lookup = lookupAccount
	}

	self := &User{username: current, current: true, canSwitch: true}
	return &Registry{
		current:      self,
		runner:       opts.Runner,
		sudoPath:     opts.SudoPath,
		probeTimeout: opts.ProbeTimeout,
		lookup:       opts.Lookup,
		switching:    !opts.NoSwitching && runtime.GOOS != "windows",
		users:        map[string]*User{current: self},
	}, nil
}

// Current returns the user this process runs as.
func (r *Registry) Current() *User { return r.current }

// Resolve returns the cached User for username, resolving and probing it on first use.
// Probe failures are not errors: they yield a User that cannot be switched to.
func (r *Registry) Resolve(ctx context.Context, username string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: empty username", ErrUnknownUser)
	}
	if u, ok := r.cached(username); ok {
		return u, nil
	}

	v, err, _ := r.group.Do(username, func() (any, error) {
		if u, ok := r.cached(username); ok {
			return u, nil
		}
		u, err := r.resolve(ctx, username)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.users[username] = u
		r.users[u.username] = u
		r.mu.Unlock()
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*User), nil
}

func (r *Registry) cached(username string) (*User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[username]
	return u, ok
}

func (r *Registry) resolve(ctx context.Context, username string) (*User, error) {
	name, err := r.lookup(username)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrUnknownUser, username, err)
	}
	if u, ok := r.cached(name); ok {
		return u, nil
	}
	return &User{username: name, canSwitch: r.probe(ctx, name)}, nil
}

// probe runs a no-op command as the user. Any failure means "no".
func (r *Registry) probe(ctx context.Context, username string) bool {
	if !r.switching {
		return false
	}
	res, err := r.runner.Run(ctx, r.probeTimeout, r.sudoPath, sudoArgs(username, "true")...)
	if err != nil {
		return false
	}
	return res.OK()
}

// Command returns the command line that runs name with args as u.
// Commands for the current user are returned unchanged.
func (r *Registry) Command(u *User, name string, args ...string) (string, []string, error) {
	if u.IsCurrent() {
		return name, args, nil
	}
	if !u.CanSwitch() {
		return "", nil, fmt.Errorf("%w %s", ErrCannotSwitch, u.Username())
	}
	return r.sudoPath, sudoArgs(u.Username(), append([]string{name}, args...)...), nil
}

// RunAs executes a command as u and waits for it.
func (r *Registry) RunAs(ctx context.Context, u *User, timeout time.Duration, name string, args ...string) (command.Result, error) {
	bin, argv, err := r.Command(u, name, args...)
	if err != nil {
		return command.Result{}, err
	}
	return r.runner.Run(ctx, timeout, bin, argv...)
}

// sudo -n: never prompt; --non-interactive is not supported by every sudo.
func sudoArgs(username string, cmd ...string) []string {
	return append([]string{"-n", "-u", username}, cmd...)
}

func lookupAccount(name string) (string, error) {
	u, err := user.Lookup(name)
	if err == nil {
		return u.Username, nil
	}
	if _, convErr := strconv.Atoi(name); convErr == nil {
		if byID, idErr := user.LookupId(name); idErr == nil {
			return byID.Username, nil
		}
	}
	return "", err
}
