package model

import (
	"strings"
	"time"
)

// Status is the inventory check state of a piece of equipment.
type Status string

const (
	StatusUnchecked Status = "unchecked"
	StatusChecked   Status = "checked"
)

// ParseStatus maps a stored or user-supplied status string onto a Status.
// Anything that is not recognisably "checked" is treated as unchecked.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "checked", "done", "已盤點":
		return StatusChecked
	default:
		return StatusUnchecked
	}
}

// Label is the human readable form used in exported reports.
func (s Status) Label() string {
	if s == StatusChecked {
		return "Checked"
	}
	return "Unchecked"
}

// Equipment is one inventory record.
type Equipment struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Room        string     `json:"room"`
	Status      Status     `json:"status"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
}

// Checked reports whether the record has been inventoried.
func (e Equipment) Checked() bool {
	return e.Status == StatusChecked
}

// StatusEntry is one element of the persisted status snapshot.
type StatusEntry struct {
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
}

// Stats summarises check progress for a set of records.
type Stats struct {
	Room      string  `json:"room,omitempty"`
	Total     int     `json:"total"`
	Checked   int     `json:"checked"`
	Unchecked int     `json:"unchecked"`
	Progress  float64 `json:"progress"`
}
