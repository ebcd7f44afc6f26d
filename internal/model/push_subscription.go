package model

import "time"

// PushSubscription holds the information for a browser push subscription.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	MinLevel  Severity  `gorm:"size:16;not null;default:'info'"`
	CreatedAt time.Time `gorm:"not null"`
}
