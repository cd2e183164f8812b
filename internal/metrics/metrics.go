// Package metrics exposes attacher counters to Prometheus.
package metrics

import (
	"time"

	"goattach/internal/journal"
)

// Collector receives orchestrator events.
type Collector interface {
	// Discovered records how many JVMs one poll returned.
	Discovered(n int)
	// Outcome records the decision taken for one JVM.
	Outcome(o journal.Outcome)
	// Poll records the duration of one poll cycle and whether discovery failed.
	Poll(d time.Duration, err error)
}

type noop struct{}

func (noop) Discovered(int)            {}
func (noop) Outcome(journal.Outcome)   {}
func (noop) Poll(time.Duration, error) {}

// Noop returns a Collector that drops everything.
func Noop() Collector { return noop{} }
