package discovery

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"goattach/internal/vm"
)

const perfDataPrefix = "hsperfdata_"

// HotSpotScan finds HotSpot JVMs through their perf data files,
// $TMPDIR/hsperfdata_<user>/<pid>.
type HotSpotScan struct {
	// Dirs lists the temp directories to scan. It is called on every scan.
	Dirs      func(ctx context.Context) []string
	Describer *Describer
	Logger    *slog.Logger
}

// StaticDirs returns a Dirs func for a fixed set of directories.
func StaticDirs(dirs ...string) func(context.Context) []string {
	return func(context.Context) []string { return dirs }
}

func (h *HotSpotScan) Name() string { return "hsperfdata" }

func (h *HotSpotScan) Available(ctx context.Context) bool {
	return len(h.perfDataDirs(ctx)) > 0
}

func (h *HotSpotScan) Discover(ctx context.Context) ([]vm.Info, error) {
	logger := h.logger()
	dirs := h.perfDataDirs(ctx)
	logger.Debug("looking for hsperfdata_<user>/<pid> files", "dirs", dirs)

	var result []vm.Info
	for _, dir := range dirs {
		username := strings.TrimPrefix(filepath.Base(dir), perfDataPrefix)
		entries, err := os.ReadDir(dir)
		if err != nil {
			logger.Debug("cannot read perf data dir", "dir", dir, "error", err)
			continue
		}
		for _, entry := range entries {
			pid := entry.Name()
			if !entry.Type().IsRegular() || !isDigits(pid) || !readable(filepath.Join(dir, pid)) {
				continue
			}
			info, err := h.Describer.Describe(ctx, pid, username)
			if err != nil {
				logger.Warn("unable to get properties of JVM", "pid", pid, "user", username, "error", err)
				continue
			}
			result = append(result, info)
		}
	}
	return result, nil
}

func (h *HotSpotScan) perfDataDirs(ctx context.Context) []string {
	if h.Dirs == nil {
		return nil
	}
	var dirs []string
	for _, tmp := range h.Dirs(ctx) {
		entries, err := os.ReadDir(tmp)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() && strings.HasPrefix(entry.Name(), perfDataPrefix) && len(entry.Name()) > len(perfDataPrefix) {
				dirs = append(dirs, filepath.Join(tmp, entry.Name()))
			}
		}
	}
	sort.Strings(dirs)
	return dirs
}

func (h *HotSpotScan) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return h.Logger
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
