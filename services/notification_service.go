package services

import (
	"encoding/json"
	"log"

	"sportconnect/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationService struct {
	DB *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

// Notify inserts an inbox item for the user. Data is marshaled to a JSON
// string; a marshal failure is logged and the notification dropped rather
// than failing the surrounding transaction.
func (s *NotificationService) Notify(tx *gorm.DB, userID, ntype string, data map[string]interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("⚠️  Failed to marshal notification data (%s → %s): %v", ntype, userID, err)
		return nil
	}
	n := models.Notification{
		ID:     uuid.NewString(),
		UserID: userID,
		Type:   ntype,
		Data:   string(payload),
	}
	return tx.Create(&n).Error
}

// GetUserNotifications lists the authenticated user's notifications, newest
// first.
func (s *NotificationService) GetUserNotifications(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var notifications []models.Notification
	if err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(200).
		Find(&notifications).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch notifications"})
	}
	return c.JSON(notifications)
}

// MarkNotificationsRead bulk-marks notifications as read by id list, scoped
// to the authenticated user so one user cannot clear another's inbox.
func (s *NotificationService) MarkNotificationsRead(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	type Req struct {
		IDs []string `json:"ids"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if len(req.IDs) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "ids required"})
	}

	res := s.DB.Model(&models.Notification{}).
		Where("user_id = ? AND id IN ?", userID, req.IDs).
		Update("read", true)
	if res.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to mark notifications read"})
	}

	return c.JSON(fiber.Map{"updated": res.RowsAffected})
}

// GetUserFeed returns a user's result posters, newest first.
func (s *NotificationService) GetUserFeed(c *fiber.Ctx) error {
	userID := c.Params("user_id")

	var posts []models.Post
	if err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(100).
		Find(&posts).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch feed"})
	}
	return c.JSON(posts)
}
