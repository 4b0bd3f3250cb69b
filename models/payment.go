package models

import "time"

// Payment escrow states. Held is the only non-terminal state; a payment
// leaves it exactly once, to released (verified win) or refunded (cancel).
const (
	PaymentStatusHeld     = "held"
	PaymentStatusReleased = "released"
	PaymentStatusRefunded = "refunded"
)

// Payment is one participant's stake on a bid challenge, captured by the
// external processor and held until verification or cancellation.
type Payment struct {
	ID              string     `gorm:"primaryKey;type:uuid" json:"id"`
	ChallengeID     string     `gorm:"index;not null" json:"challenge_id"`
	PayerID         string     `gorm:"index;not null" json:"payer_id"`
	Amount          int64      `gorm:"not null" json:"amount"` // minor currency units
	Status          string     `gorm:"type:varchar(16);default:'held';index" json:"status"`
	StripePaymentID *string    `gorm:"uniqueIndex" json:"stripe_payment_id,omitempty"`
	RecipientID     *string    `json:"recipient_id,omitempty"` // winner, set on release
	SettledAt       *time.Time `json:"settled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}
