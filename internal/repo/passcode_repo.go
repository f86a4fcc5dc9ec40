// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Passcode
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Normalization: passcodes are lower-cased before every lookup, insert, and
// update, so two submissions differing only by case address the same row.
// The primary key on the normalized value is the final dedup backstop.
//
// Error semantics:
//   - When a passcode is not found, functions return ErrNotFound
//     (an alias of gorm.ErrRecordNotFound).
//   - Inserting an existing passcode returns ErrDuplicate.
//   - Other DB errors are propagated as-is.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/passfwd/passfwd/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and dispatcher.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a passcode row already exists for the
// normalized value.
var ErrDuplicate = errors.New("duplicate")

// GetPasscode fetches a passcode by its normalized value, or ErrNotFound.
func GetPasscode(ctx context.Context, db *gorm.DB, value string) (*domain.Passcode, error) {
	var p domain.Passcode
	err := db.WithContext(ctx).
		Where("str = ?", strings.ToLower(value)).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePasscode inserts a new passcode row pointing at the broadcast post
// identified by messageRef. The value is lower-cased before insert. A unique
// violation on the primary key is mapped to ErrDuplicate.
func CreatePasscode(ctx context.Context, db *gorm.DB, value string, messageRef int64) (*domain.Passcode, error) {
	p := &domain.Passcode{
		Value:      strings.ToLower(value),
		MessageRef: messageRef,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return p, nil
}

// SetFullyRedeemed updates the redemption flag of a passcode. If no row
// matches the normalized value it returns ErrNotFound, so callers can treat
// a toggle for a vanished code as a stale action.
func SetFullyRedeemed(ctx context.Context, db *gorm.DB, value string, fullyRedeemed bool) error {
	res := db.WithContext(ctx).
		Model(&domain.Passcode{}).
		Where("str = ?", strings.ToLower(value)).
		Update("fr", fullyRedeemed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation detects primary-key/unique-index violations.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
