package model

import (
	"strings"
	"time"
)

// PushSubscription holds the information for a browser push subscription
// that wants to hear about failed print jobs.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey" json:"endpoint"`
	P256DH    string    `gorm:"column:p256dh;not null" json:"p256dh"`
	Auth      string    `gorm:"not null" json:"auth"`
	Printers  string    `gorm:"size:1024;not null;default:''" json:"printers"` // comma separated printer ids, empty = all
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

// Watches reports whether the subscription wants alerts for printerID.
func (s PushSubscription) Watches(printerID string) bool {
	if strings.TrimSpace(s.Printers) == "" {
		return true
	}
	for _, id := range strings.Split(s.Printers, ",") {
		if strings.EqualFold(strings.TrimSpace(id), strings.TrimSpace(printerID)) {
			return true
		}
	}
	return false
}
