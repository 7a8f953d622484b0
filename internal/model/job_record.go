package model

import "time"

// JobRecord is the persisted outcome of one print job.
type JobRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID       string    `gorm:"size:64;not null;index" json:"jobId"`
	PrinterID   string    `gorm:"size:128;not null;index" json:"printerId"`
	Operation   string    `gorm:"size:16;not null" json:"operation"`
	OK          bool      `gorm:"not null" json:"ok"`
	Message     string    `gorm:"size:1024;not null" json:"message"`
	Attempts    int       `gorm:"not null" json:"attempts"`
	CompletedAt time.Time `gorm:"not null;index" json:"completedAt"`
}
