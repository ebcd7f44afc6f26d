package model

import "time"

// PendingScan is a scan payload captured before the catalog was ready to take it.
type PendingScan struct {
	ID        string    `json:"id"`
	Payload   string    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}
