// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the append-only
// submission history.
package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/passfwd/passfwd/internal/domain"
)

// AppendHistory records that senderID submitted the given code. History keeps
// every submission, including re-submissions of codes that already exist.
func AppendHistory(ctx context.Context, db *gorm.DB, value string, senderID int64) error {
	h := &domain.HistoryEntry{
		Value:     strings.ToLower(value),
		SenderID:  senderID,
		CreatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).Create(h).Error
}

// FindHistoryByPrefix returns the first history entry whose code starts with
// prefix (case-insensitive), or ErrNotFound.
func FindHistoryByPrefix(ctx context.Context, db *gorm.DB, prefix string) (*domain.HistoryEntry, error) {
	var h domain.HistoryEntry
	err := db.WithContext(ctx).
		Where("str LIKE ?", strings.ToLower(prefix)+"%").
		First(&h).Error
	if err != nil {
		return nil, err
	}
	return &h, nil
}
