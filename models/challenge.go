package models

import (
	"time"
)

// Challenge lifecycle states
const (
	ChallengeStatusOpen      = "open"
	ChallengeStatusAccepted  = "accepted"
	ChallengeStatusCompleted = "completed"
	ChallengeStatusCanceled  = "canceled"
)

// Participant states within a challenge
const (
	ParticipantStatusPending  = "pending"
	ParticipantStatusAccepted = "accepted"
	ParticipantStatusRejected = "rejected"
)

// Challenge is a proposed sports matchup. BidAmount is in minor currency
// units; 0 means a friendly with no stake. Coordinates are stored as
// lat/lng columns and queried with a bounding-box prefilter plus exact
// haversine distance.
type Challenge struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	CreatorID   string    `gorm:"index;not null" json:"creator_id"`
	Sport       string    `gorm:"index;not null" json:"sport"`
	BidAmount   int64     `gorm:"default:0" json:"bid_amount"`
	Status      string    `gorm:"type:varchar(16);default:'open';index" json:"status"`
	StartTime   time.Time `gorm:"not null" json:"start_time"`
	Location    string    `gorm:"not null" json:"location"`
	Latitude    float64   `gorm:"index" json:"latitude"`
	Longitude   float64   `gorm:"index" json:"longitude"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	Creator      User                   `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
	Participants []ChallengeParticipant `json:"participants,omitempty" gorm:"foreignKey:ChallengeID"`
}

// ChallengeParticipant records a user's participation in a challenge.
// The unique index on (challenge_id, user_id) plus OnConflict upserts is
// what keeps concurrent joins down to a single row.
type ChallengeParticipant struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	ChallengeID string    `gorm:"not null;uniqueIndex:idx_challenge_user" json:"challenge_id"`
	UserID      string    `gorm:"not null;uniqueIndex:idx_challenge_user" json:"user_id"`
	Status      string    `gorm:"type:varchar(16);default:'pending'" json:"status"`
	JoinedAt    time.Time `json:"joined_at" gorm:"autoCreateTime"`
}

// NearbyChallenge is a Challenge annotated with the computed distance and
// creator display fields, as returned by the discovery query.
type NearbyChallenge struct {
	ID              string    `json:"id"`
	CreatorID       string    `json:"creator_id"`
	Sport           string    `json:"sport"`
	BidAmount       int64     `json:"bid_amount"`
	Status          string    `json:"status"`
	StartTime       time.Time `json:"start_time"`
	Location        string    `json:"location"`
	DistanceMeters  float64   `json:"distance"`
	CreatorName     string    `json:"creator_name"`
	CreatorUsername string    `json:"creator_username"`
	CreatorAvatar   *string   `json:"creator_avatar,omitempty"`
}
