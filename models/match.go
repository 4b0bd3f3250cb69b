package models

import "time"

// Match verification states. A match row only exists once a result has been
// submitted, so the machine starts at pending.
const (
	MatchStatusPending  = "pending"
	MatchStatusVerified = "verified"
	MatchStatusDisputed = "disputed"
)

// Match is the durable record of a challenge outcome. It drives the rating
// update and payment settlement exactly once, on the pending → verified
// transition. A verified match is never mutated again.
type Match struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	ChallengeID string    `gorm:"uniqueIndex;not null" json:"challenge_id"`
	WinnerID    string    `gorm:"index;not null" json:"winner_id"`
	LoserID     string    `gorm:"index;not null" json:"loser_id"`
	Score       *string   `json:"score,omitempty"`
	Verified    bool      `gorm:"default:false" json:"verified"`
	Status      string    `gorm:"type:varchar(16);default:'pending';index" json:"status"`
	SubmittedBy string    `gorm:"not null" json:"submitted_by"`
	EndedAt     time.Time `json:"ended_at"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Dispute bookkeeping (winner claim that conflicted with SubmittedBy's)
	DisputedBy      *string    `json:"disputed_by,omitempty"`
	DisputedAt      *time.Time `json:"disputed_at,omitempty"`
	DisputedWinner  *string    `json:"disputed_winner,omitempty"`
	ResolvedBy      *string    `json:"resolved_by,omitempty"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty"`
	VerifiedVia     *string    `json:"verified_via,omitempty"` // confirmation, attestation, timeout, resolution
}

// EloHistory keeps the per-player rating trail, one row per side of every
// verified match.
type EloHistory struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	MatchID   string    `gorm:"index;not null" json:"match_id"`
	Sport     string    `gorm:"not null" json:"sport"`
	District  string    `gorm:"not null" json:"district"`
	EloBefore float64   `gorm:"not null" json:"elo_before"`
	EloAfter  float64   `gorm:"not null" json:"elo_after"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
