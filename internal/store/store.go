package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"receipt-print-gateway/internal/model"
)

// Limits for RecentJobs.
const (
	DefaultJobLimit = 50
	MaxJobLimit     = 500
)

// Store defines the interface for all database operations.
type Store interface {
	RecordJobs(ctx context.Context, records []model.JobRecord) error
	RecentJobs(ctx context.Context, printerID string, limit int) ([]model.JobRecord, error)
	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsFor(ctx context.Context, printerID string) ([]model.PushSubscription, error)
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// RecordJobs inserts a batch of job outcomes in one transaction.
func (s *gormStore) RecordJobs(ctx context.Context, records []model.JobRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&records).Error; err != nil {
			return fmt.Errorf("failed to insert %d job records: %w", len(records), err)
		}
		return nil
	})
}

// RecentJobs returns the newest records, optionally for one printer.
func (s *gormStore) RecentJobs(ctx context.Context, printerID string, limit int) ([]model.JobRecord, error) {
	if limit <= 0 {
		limit = DefaultJobLimit
	}
	limit = min(limit, MaxJobLimit)

	q := s.db.WithContext(ctx).Model(&model.JobRecord{})
	if id := strings.TrimSpace(printerID); id != "" {
		q = q.Where("LOWER(printer_id) = ?", strings.ToLower(id))
	}

	var records []model.JobRecord
	if err := q.Order("completed_at DESC").Order("id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query job records: %w", err)
	}
	return records, nil
}

// UpsertSubscription creates a subscription or replaces its keys and filter.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "printers"}),
	}).Create(sub).Error
}

// GetSubscription returns gorm.ErrRecordNotFound when endpoint is unknown.
func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error
}

// SubscriptionsFor returns the subscriptions watching printerID.
func (s *gormStore) SubscriptionsFor(ctx context.Context, printerID string) ([]model.PushSubscription, error) {
	var all []model.PushSubscription
	if err := s.db.WithContext(ctx).Find(&all).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions: %w", err)
	}

	out := all[:0]
	for _, sub := range all {
		if sub.Watches(printerID) {
			out = append(out, sub)
		}
	}
	return out, nil
}
