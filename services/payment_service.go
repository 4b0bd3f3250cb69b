package services

import (
	"log"
	"time"

	"sportconnect/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentService owns the escrow lifecycle. Every transition out of `held`
// is a guarded conditional update: released and refunded are terminal and
// mutually exclusive, and whichever trigger fires first wins.
type PaymentService struct {
	DB *gorm.DB
}

func NewPaymentService(db *gorm.DB) *PaymentService {
	return &PaymentService{DB: db}
}

// HoldStake captures a participant's stake on a bid challenge. The processor
// reference arrives later via the reconciliation worker; the row starts held
// immediately so settlement can never miss it.
func (s *PaymentService) HoldStake(tx *gorm.DB, challengeID, payerID string, amount int64) (*models.Payment, error) {
	payment := models.Payment{
		ID:          uuid.NewString(),
		ChallengeID: challengeID,
		PayerID:     payerID,
		Amount:      amount,
		Status:      models.PaymentStatusHeld,
	}
	if err := tx.Create(&payment).Error; err != nil {
		return nil, err
	}
	log.Printf("💰 Stake held: challenge=%s payer=%s amount=%d", challengeID, payerID, amount)
	return &payment, nil
}

// ReleaseChallengePayments moves every held payment on the challenge to
// released with the winner as recipient. Returns the released payments so
// the caller can emit payout notifications in the same transaction. Rows
// already settled are untouched, which is what makes a duplicate
// verification attempt a no-op.
func (s *PaymentService) ReleaseChallengePayments(tx *gorm.DB, challengeID, winnerID string) ([]models.Payment, error) {
	var held []models.Payment
	if err := tx.Where("challenge_id = ? AND status = ?", challengeID, models.PaymentStatusHeld).
		Find(&held).Error; err != nil {
		return nil, err
	}
	if len(held) == 0 {
		return nil, nil
	}

	now := time.Now()
	res := tx.Model(&models.Payment{}).
		Where("challenge_id = ? AND status = ?", challengeID, models.PaymentStatusHeld).
		Updates(map[string]interface{}{
			"status":       models.PaymentStatusReleased,
			"recipient_id": winnerID,
			"settled_at":   now,
		})
	if res.Error != nil {
		return nil, res.Error
	}

	log.Printf("💸 Released %d payment(s) on challenge %s to winner %s", res.RowsAffected, challengeID, winnerID)
	for i := range held {
		held[i].Status = models.PaymentStatusReleased
		held[i].RecipientID = &winnerID
		held[i].SettledAt = &now
	}
	return held, nil
}

// RefundChallengePayments returns every held payment on the challenge to its
// original payer. Fired by cancellation; guarded the same way as release so
// a cancellation racing a verification cannot double-settle.
func (s *PaymentService) RefundChallengePayments(tx *gorm.DB, challengeID string) ([]models.Payment, error) {
	var held []models.Payment
	if err := tx.Where("challenge_id = ? AND status = ?", challengeID, models.PaymentStatusHeld).
		Find(&held).Error; err != nil {
		return nil, err
	}
	if len(held) == 0 {
		return nil, nil
	}

	now := time.Now()
	res := tx.Model(&models.Payment{}).
		Where("challenge_id = ? AND status = ?", challengeID, models.PaymentStatusHeld).
		Updates(map[string]interface{}{
			"status":     models.PaymentStatusRefunded,
			"settled_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}

	log.Printf("↩️  Refunded %d payment(s) on challenge %s", res.RowsAffected, challengeID)
	for i := range held {
		held[i].Status = models.PaymentStatusRefunded
		held[i].SettledAt = &now
	}
	return held, nil
}

// GetUserPayments lists the authenticated user's payments, newest first.
func (s *PaymentService) GetUserPayments(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var payments []models.Payment
	if err := s.DB.Where("payer_id = ? OR recipient_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&payments).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch payments"})
	}
	return c.JSON(payments)
}
