package models

import (
	"time"
)

// User is the local mirror of an account from the hosted auth service,
// extended with the onboarding profile fields. Rows are created by the
// user sync worker at signup and mutated through the profile endpoints.
type User struct {
	ID            string     `gorm:"primaryKey;type:uuid" json:"id"`
	Username      string     `gorm:"uniqueIndex;not null" json:"username"`
	FullName      string     `gorm:"not null" json:"full_name"`
	Bio           *string    `json:"bio,omitempty"`
	DOB           *time.Time `json:"dob,omitempty"`
	Gender        *string    `gorm:"type:varchar(20)" json:"gender,omitempty"` // male, female, non-binary, prefer-not-to-say
	College       *string    `json:"college,omitempty"`
	AvatarURL     *string    `gorm:"type:text" json:"avatar_url,omitempty"`
	Phone         *string    `gorm:"index" json:"phone,omitempty"`
	PhoneVerified bool       `gorm:"default:false" json:"phone_verified"`
	CreatedAt     time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time  `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	Sports    []UserSport    `json:"sports,omitempty" gorm:"foreignKey:UserID"`
	Locations []UserLocation `json:"locations,omitempty" gorm:"foreignKey:UserID"`
	Rankings  []UserRanking  `json:"rankings,omitempty" gorm:"foreignKey:UserID"`
}

// UserSport links a user to a sport with a self-assessed skill level (1-10).
// The set is replaced wholesale on every sports update, never patched.
type UserSport struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string `gorm:"not null;uniqueIndex:idx_user_sport" json:"user_id"`
	Sport      string `gorm:"not null;uniqueIndex:idx_user_sport" json:"sport"`
	SkillLevel int    `gorm:"default:5" json:"skill_level"`
}

// UserLocation is the authoritative location row for a user, one per user,
// upserted on every location change.
type UserLocation struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string    `gorm:"not null;uniqueIndex" json:"user_id"`
	District    string    `gorm:"index;not null" json:"district"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	LastUpdated time.Time `json:"last_updated"`
}

// PhoneVerification stores one-time codes for the phone verification flow.
// Bid challenges require the creator to have a verified phone.
type PhoneVerification struct {
	ID        string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string     `gorm:"index;not null" json:"user_id"`
	Phone     string     `gorm:"not null" json:"phone"`
	Code      string     `gorm:"size:6;not null" json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
}
