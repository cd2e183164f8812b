package orchestrator

import "sync"

// SeenSet remembers every pid handled during one run. It never shrinks, so a
// pid reused by the OS for a new process is treated as already handled.
type SeenSet struct {
	mu   sync.Mutex
	pids map[string]struct{}
}

// Admit adds pid and reports whether it was new. Check and insert are atomic.
func (s *SeenSet) Admit(pid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pids == nil {
		s.pids = make(map[string]struct{})
	}
	if _, ok := s.pids[pid]; ok {
		return false
	}
	s.pids[pid] = struct{}{}
	return true
}

// Len returns the number of admitted pids.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pids)
}
