// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// authorized-user list.
//
// Rows exist only for authorized users: approval creates a row, revocation
// deletes it. The owner flag marks users with approval rights, so a
// bootstrapped owner survives restarts without a config change.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/passfwd/passfwd/internal/domain"
)

// CreateUser inserts an authorized user. Re-inserting an existing id is
// mapped to ErrDuplicate; callers that checked membership first can ignore it.
func CreateUser(ctx context.Context, db *gorm.DB, id int64, owner bool) error {
	u := &domain.AuthorizedUser{
		ID:         id,
		Authorized: true,
		Owner:      owner,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// DeleteUser removes a user from the authorized list. Deleting a missing id
// is not an error; absence already means unauthorized.
func DeleteUser(ctx context.Context, db *gorm.DB, id int64) error {
	return db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&domain.AuthorizedUser{}).Error
}

// ListAuthorizedIDs returns the ids of every authorized user, for the
// startup cache rebuild.
func ListAuthorizedIDs(ctx context.Context, db *gorm.DB) ([]int64, error) {
	var ids []int64
	err := db.WithContext(ctx).
		Model(&domain.AuthorizedUser{}).
		Where("authorized = ?", true).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

// ListOwnerIDs returns the ids of persisted owners (bootstrap included).
func ListOwnerIDs(ctx context.Context, db *gorm.DB) ([]int64, error) {
	var ids []int64
	err := db.WithContext(ctx).
		Model(&domain.AuthorizedUser{}).
		Where("authorized = ? AND owner = ?", true, true).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}
