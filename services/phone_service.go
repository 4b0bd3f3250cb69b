package services

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"sportconnect/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PhoneService implements the one-time-code phone verification flow. A
// verified phone is the prerequisite for creating bid challenges; delivery
// of the code itself goes through an external SMS provider.
type PhoneService struct {
	DB *gorm.DB
}

func NewPhoneService(db *gorm.DB) *PhoneService {
	return &PhoneService{DB: db}
}

const codeTTL = 10 * time.Minute

// SendCode issues a fresh 6-digit code for the authenticated user's phone.
// Older unused codes for the same user are invalidated by expiry, not
// deleted, so the audit trail survives.
func (s *PhoneService) SendCode(c *fiber.Ctx) error {
	type Req struct {
		Phone string `json:"phone"`
	}

	userID := c.Locals("user_id").(string)

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		return c.Status(400).JSON(fiber.Map{"error": "phone is required"})
	}

	code := fmt.Sprintf("%06d", rand.Intn(1000000))
	verification := models.PhoneVerification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Phone:     phone,
		Code:      code,
		ExpiresAt: time.Now().Add(codeTTL),
	}
	if err := s.DB.Create(&verification).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to create verification"})
	}

	// SMS delivery is external; the code is logged for local development.
	log.Printf("📱 Verification code for %s (user %s): %s", phone, userID, code)

	return c.JSON(fiber.Map{
		"message":    "verification code sent",
		"expires_at": verification.ExpiresAt,
	})
}

// VerifyCode checks the submitted code and marks the user's phone verified.
func (s *PhoneService) VerifyCode(c *fiber.Ctx) error {
	type Req struct {
		Code string `json:"code"`
	}

	userID := c.Locals("user_id").(string)

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if len(strings.TrimSpace(req.Code)) != 6 {
		return c.Status(400).JSON(fiber.Map{"error": "code must be 6 digits"})
	}

	var verification models.PhoneVerification
	err := s.DB.Where("user_id = ? AND code = ? AND used_at IS NULL AND expires_at > ?",
		userID, req.Code, time.Now()).
		Order("created_at DESC").
		First(&verification).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(400).JSON(fiber.Map{"error": "invalid or expired code"})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if err := tx.Model(&verification).Update("used_at", now).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"phone":          verification.Phone,
			"phone_verified": true,
		}).Error
	})
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to verify phone"})
	}

	log.Printf("✅ Phone verified for user %s", userID)
	return c.JSON(fiber.Map{"message": "phone verified", "phone": verification.Phone})
}
