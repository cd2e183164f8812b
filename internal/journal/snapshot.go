package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const snapshotVersion = 1

type snapshot struct {
	Version int             `json:"version"`
	NextID  uint64          `json:"next_id"`
	Entries []Entry         `json:"entries"`
	Counts  map[Outcome]int `json:"counts"`
	Created int64           `json:"created_unix"`
}

func (j *Journal) loadSnapshot(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var s snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("journal snapshot %s: %w", path, err)
	}
	if s.Version != snapshotVersion {
		return fmt.Errorf("journal snapshot %s: unsupported version %d", path, s.Version)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.nextID = ID(s.NextID)
	if j.nextID == 0 {
		j.nextID = 1
	}
	j.entries = s.Entries
	if over := len(j.entries) - j.capacity; over > 0 {
		j.entries = j.entries[over:]
	}
	j.counts = make(map[Outcome]int, len(s.Counts))
	for k, v := range s.Counts {
		j.counts[k] = v
	}
	return nil
}

func (j *Journal) saveSnapshot(path string) error {
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	j.mu.RLock()
	s := snapshot{
		Version: snapshotVersion,
		NextID:  uint64(j.nextID),
		Entries: append([]Entry(nil), j.entries...),
		Counts:  make(map[Outcome]int, len(j.counts)),
		Created: now().Unix(),
	}
	for k, v := range j.counts {
		s.Counts[k] = v
	}
	j.mu.RUnlock()

	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
