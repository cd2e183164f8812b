package journal

import "time"

// Outcome is what happened to one discovered JVM.
type Outcome string

const (
	Attached         Outcome = "attached"
	Excluded         Outcome = "excluded"
	Self             Outcome = "self"
	Unsupported      Outcome = "unsupported"
	AlreadyAttached  Outcome = "already_attached"
	PermissionDenied Outcome = "permission_denied"
	Rejected         Outcome = "rejected"
	Failed           Outcome = "failed"
	Listed           Outcome = "listed"
)

// Outcomes lists every outcome in a stable order.
var Outcomes = []Outcome{Attached, Excluded, Self, Unsupported, AlreadyAttached, PermissionDenied, Rejected, Failed, Listed}

// Failure reports whether the outcome counts as a per-instance failure.
func (o Outcome) Failure() bool {
	switch o {
	case PermissionDenied, Failed:
		return true
	}
	return false
}

// ID increases monotonically per journal.
type ID uint64

// Entry records one decision. JVM arguments are never stored.
type Entry struct {
	ID      ID        `json:"id"`
	PID     string    `json:"pid"`
	User    string    `json:"user"`
	Main    string    `json:"main,omitempty"`
	Version string    `json:"version,omitempty"`
	Outcome Outcome   `json:"outcome"`
	Rule    string    `json:"rule,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	Cycle   uint64    `json:"cycle"`
	At      time.Time `json:"at"`
}

// ListFilter narrows List. Empty fields do not filter.
type ListFilter struct {
	Outcomes   []Outcome
	PIDs       []string
	Users      []string
	FailedOnly bool
	TextSearch string // substring over Main
	// Limit keeps only the newest entries.
	Limit int
}
