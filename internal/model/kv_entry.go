package model

import "time"

// KVEntry is a single string value stored under a well-known key.
type KVEntry struct {
	Key       string    `gorm:"primaryKey;size:128"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName pins the table name so every backend agrees on it.
func (KVEntry) TableName() string { return "kv_entries" }
