package models

import "time"

// Notification types emitted by the core flows
const (
	NotificationChallengeJoined = "challenge_joined"
	NotificationResultSubmitted = "result_submitted"
	NotificationMatchVerified   = "match_verified"
	NotificationMatchDisputed   = "match_disputed"
	NotificationPayoutReleased  = "payout_released"
	NotificationStakeRefunded   = "stake_refunded"
)

// Notification is an inbox item. Data carries a type-specific JSON payload
// serialized to a string.
type Notification struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	Type      string    `gorm:"not null" json:"type"`
	Data      string    `gorm:"type:text" json:"data"`
	Read      bool      `gorm:"default:false;index" json:"read"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// Post is a feed record, e.g. the result poster generated when a match
// verifies.
type Post struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	MatchID   *string   `gorm:"index" json:"match_id,omitempty"`
	Type      string    `gorm:"type:varchar(16);not null" json:"type"` // win, lose, achievement
	ImageURL  *string   `gorm:"type:text" json:"image_url,omitempty"`
	Content   *string   `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
