// Package journal keeps a bounded, threadsafe history of attach decisions so
// that status clients can inspect what a running attacher has done.
package journal

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

const DefaultCapacity = 1024

// Journal is a ring of the most recent entries.
type Journal struct {
	mu       sync.RWMutex
	nextID   ID
	entries  []Entry // oldest first
	capacity int
	counts   map[Outcome]int

	// Where to snapshot. If empty, snapshotting is disabled.
	SnapshotPath string
	Logger       *slog.Logger
}

// New loads the snapshot if present and returns a ready journal.
func New(capacity int, snapshotPath string) (*Journal, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	j := &Journal{
		nextID:       1,
		capacity:     capacity,
		counts:       make(map[Outcome]int),
		SnapshotPath: snapshotPath,
	}
	if snapshotPath != "" {
		if err := j.loadSnapshot(snapshotPath); err != nil {
			return nil, err
		}
	}
	return j, nil
}

// Record appends e, assigning its ID and time, and returns the stored copy.
func (j *Journal) Record(e Entry) Entry {
	j.mu.Lock()
	e.ID = j.nextID
	j.nextID++
	if e.At.IsZero() {
		e.At = now()
	}
	j.entries = append(j.entries, e)
	if over := len(j.entries) - j.capacity; over > 0 {
		j.entries = append(j.entries[:0:0], j.entries[over:]...)
	}
	j.counts[e.Outcome]++
	j.mu.Unlock()

	j.maybeSave()
	return e
}

// Counts returns how often each outcome was recorded since the journal was
// created, including entries that fell out of the ring.
func (j *Journal) Counts() map[Outcome]int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make(map[Outcome]int, len(j.counts))
	for k, v := range j.counts {
		out[k] = v
	}
	return out
}

// Len returns the number of retained entries.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}

// List returns matching entries sorted by ID asc.
func (j *Journal) List(f ListFilter) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	outcomes := toSet(f.Outcomes)
	pids := toSet(f.PIDs)
	users := toSet(f.Users)
	text := strings.TrimSpace(f.TextSearch)

	out := make([]Entry, 0, len(j.entries))
	for _, e := range j.entries {
		if len(outcomes) > 0 && !outcomes.has(e.Outcome) {
			continue
		}
		if len(pids) > 0 && !pids.has(e.PID) {
			continue
		}
		if len(users) > 0 && !users.has(e.User) {
			continue
		}
		if f.FailedOnly && !e.Outcome.Failure() {
			continue
		}
		if text != "" && !strings.Contains(e.Main, text) {
			continue
		}
		out = append(out, e)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// maybeSave performs a best-effort snapshot write if a path is configured.
func (j *Journal) maybeSave() {
	if j.SnapshotPath == "" {
		return
	}
	if err := j.saveSnapshot(j.SnapshotPath); err != nil {
		logger := j.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("journal snapshot failed", "path", j.SnapshotPath, "error", err)
	}
}

type set[T comparable] map[T]struct{}

func toSet[T comparable](xs []T) set[T] {
	s := make(set[T], len(xs))
	for _, x := range xs {
		s[x] = struct{}{}
	}
	return s
}

func (s set[T]) has(v T) bool {
	_, ok := s[v]
	return ok
}

func now() time.Time {
	return time.Now().UTC()
}
