package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/passfwd/passfwd/internal/domain"
)

// test DB helper
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestCreatePasscode_InsertsAndReadsBack(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	p, err := CreatePasscode(ctx, db, "code12345", 77)
	if err != nil {
		t.Fatalf("CreatePasscode: %v", err)
	}
	if p.Value != "code12345" || p.MessageRef != 77 || p.FullyRedeemed {
		t.Fatalf("unexpected passcode: %+v", p)
	}
	if p.CreatedAt.IsZero() || time.Since(p.CreatedAt) > time.Minute {
		t.Fatalf("CreatedAt not set reasonably: %v", p.CreatedAt)
	}

	got, err := GetPasscode(ctx, db, "code12345")
	if err != nil {
		t.Fatalf("GetPasscode: %v", err)
	}
	if got.Value != p.Value || got.MessageRef != p.MessageRef {
		t.Fatalf("roundtrip mismatch: %+v vs %+v", got, p)
	}
}

func TestCreatePasscode_NormalizesCase(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	if _, err := CreatePasscode(ctx, db, "MixedCase1", 1); err != nil {
		t.Fatalf("CreatePasscode: %v", err)
	}

	// lookup with different casing hits the same row
	got, err := GetPasscode(ctx, db, "MIXEDCASE1")
	if err != nil {
		t.Fatalf("GetPasscode: %v", err)
	}
	if got.Value != "mixedcase1" {
		t.Fatalf("value not normalized: %q", got.Value)
	}

	// re-insert with another casing is a duplicate, not a second row
	if _, err := CreatePasscode(ctx, db, "mixedCASE1", 2); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	var count int64
	if err := db.Model(&domain.Passcode{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row, got %d", count)
	}
}

func TestGetPasscode_NotFound(t *testing.T) {
	db := newRepoDB(t)

	if _, err := GetPasscode(context.Background(), db, "missing1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetFullyRedeemed_FlipsBothWays(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	if _, err := CreatePasscode(ctx, db, "flipme123", 5); err != nil {
		t.Fatalf("CreatePasscode: %v", err)
	}

	if err := SetFullyRedeemed(ctx, db, "FLIPME123", true); err != nil {
		t.Fatalf("SetFullyRedeemed(true): %v", err)
	}
	got, err := GetPasscode(ctx, db, "flipme123")
	if err != nil {
		t.Fatalf("GetPasscode: %v", err)
	}
	if !got.FullyRedeemed {
		t.Fatalf("expected fully redeemed after first toggle")
	}

	if err := SetFullyRedeemed(ctx, db, "flipme123", false); err != nil {
		t.Fatalf("SetFullyRedeemed(false): %v", err)
	}
	got, err = GetPasscode(ctx, db, "flipme123")
	if err != nil {
		t.Fatalf("GetPasscode: %v", err)
	}
	if got.FullyRedeemed {
		t.Fatalf("expected flag cleared after second toggle")
	}
}

func TestSetFullyRedeemed_MissingCode(t *testing.T) {
	db := newRepoDB(t)

	if err := SetFullyRedeemed(context.Background(), db, "vanished1", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
