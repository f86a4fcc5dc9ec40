// Package domain defines the persistence models for passcodes, submission
// history, and authorized users. These types are mapped with GORM and form
// the durable state of the forwarder.
package domain

import "time"

// Passcode represents a unique, case-normalized redemption code that has
// been forwarded to the broadcast channel.
//
// Fields:
//   - Value: the lower-cased code string; primary key, which enforces
//     deduplication at the store level.
//   - MessageRef: identifier of the forwarded broadcast post, kept so the
//     post can be edited when the redemption status changes.
//   - FullyRedeemed: whether the code's redemption quota is exhausted.
type Passcode struct {
	Value         string    `json:"value"          gorm:"column:str;type:varchar(35);primaryKey"`
	MessageRef    int64     `json:"message_ref"    gorm:"column:message_id;not null"`
	FullyRedeemed bool      `json:"fully_redeemed" gorm:"column:fr;not null;default:false"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for Passcode.
func (Passcode) TableName() string { return "codes" }

// HistoryEntry is an append-only record of who submitted a code. Repeat
// submissions by different users each get their own row; only the canonical
// Passcode row is deduplicated.
type HistoryEntry struct {
	ID        uint      `json:"id"        gorm:"primaryKey;autoIncrement"`
	Value     string    `json:"value"     gorm:"column:str;type:varchar(35);not null;index"`
	SenderID  int64     `json:"sender_id" gorm:"column:send_by;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for HistoryEntry.
func (HistoryEntry) TableName() string { return "history" }

// AuthorizedUser is a user allowed to submit codes. Rows are created on
// approval and deleted on revocation; absence means unauthorized. Owner marks
// users with approval rights (including the bootstrap owner, which is
// persisted here so it survives restarts).
type AuthorizedUser struct {
	ID         int64     `json:"id"         gorm:"primaryKey;autoIncrement:false"`
	Authorized bool      `json:"authorized" gorm:"not null;default:true"`
	Owner      bool      `json:"owner"      gorm:"not null;default:false"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for AuthorizedUser.
func (AuthorizedUser) TableName() string { return "users" }
