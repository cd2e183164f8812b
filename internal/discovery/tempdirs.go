package discovery

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"goattach/internal/users"
)

const tempDirTimeout = 10 * time.Second

// TempDirSource locates the temp directories JVMs write perf data into.
type TempDirSource struct {
	Users *users.Registry
	// Self and SelfArgs run the hidden subcommand that prints the temp dir of
	// whichever user runs it.
	Self     string
	SelfArgs []string
	Logger   *slog.Logger

	goos string

	mu     sync.Mutex
	byUser map[string]string
}

// Dirs returns the candidate temp directories, deduplicated.
//
// On macOS every user has a private temp dir, which is only known to a
// process running as that user, so one is asked for each switchable user.
// Users are listed on every call; a user's answer is remembered.
// Elsewhere HotSpot uses /tmp regardless of $TMPDIR.
func (t *TempDirSource) Dirs(ctx context.Context) []string {
	goos := t.goos
	if goos == "" {
		goos = runtime.GOOS
	}
	switch goos {
	case "darwin":
		return t.perUser(ctx)
	case "windows":
		return []string{os.TempDir()}
	default:
		return []string{"/tmp"}
	}
}

func (t *TempDirSource) perUser(ctx context.Context) []string {
	logger := t.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	names, err := t.Users.LocalUsernames(ctx)
	if err != nil {
		logger.Error("cannot list local users", "error", err)
		return nil
	}

	seen := make(map[string]struct{})
	for _, name := range names {
		if dir := t.userTempDir(ctx, logger, name); dir != "" {
			seen[dir] = struct{}{}
		}
	}

	dirs := make([]string, 0, len(seen))
	for dir := range seen {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

func (t *TempDirSource) userTempDir(ctx context.Context, logger *slog.Logger, name string) string {
	t.mu.Lock()
	dir, ok := t.byUser[name]
	t.mu.Unlock()
	if ok {
		return dir
	}

	u, err := t.Users.Resolve(ctx, name)
	if err != nil || !u.CanSwitch() {
		return ""
	}
	res, err := t.Users.RunAs(ctx, u, tempDirTimeout, t.Self, t.SelfArgs...)
	if err != nil || !res.OK() {
		logger.Debug("cannot determine temp dir", "user", name, "error", err)
		return ""
	}
	dir = strings.TrimSpace(string(res.Stdout))
	if dir == "" {
		return ""
	}
	t.mu.Lock()
	if t.byUser == nil {
		t.byUser = make(map[string]string)
	}
	t.byUser[name] = dir
	t.mu.Unlock()
	return dir
}
