package model

import "time"

// Severity of a user-facing notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

var severityRank = map[Severity]int{
	SeverityInfo:    1,
	SeveritySuccess: 2,
	SeverityWarning: 3,
	SeverityError:   4,
}

// AtLeast reports whether s is as severe as minimum. Unknown values fail closed.
func (s Severity) AtLeast(minimum Severity) bool {
	rank, ok := severityRank[s]
	if !ok {
		return false
	}
	return rank >= severityRank[minimum]
}

// EventKind distinguishes the kinds of events the client renders.
type EventKind string

const (
	EventToast     EventKind = "toast"
	EventRender    EventKind = "render"
	EventHighlight EventKind = "highlight"
)

// Event is one entry of the client-facing event feed.
type Event struct {
	Seq       int64     `json:"seq"`
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	Message   string    `json:"message,omitempty"`
	Severity  Severity  `json:"severity,omitempty"`
	TargetID  string    `json:"targetId,omitempty"`
	Vibrate   []int     `json:"vibrate,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
