package services

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"sportconnect/models"
	"sportconnect/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileService handles profile reads/writes and the onboarding steps:
// profile fields, the sports list, the location row and the avatar photo.
type ProfileService struct {
	DB *gorm.DB
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{DB: db}
}

// GetProfile returns a user joined with their sports, locations and
// rankings.
func (s *ProfileService) GetProfile(c *fiber.Ctx) error {
	userID := c.Params("user_id")

	var user models.User
	if err := s.DB.
		Preload("Sports").
		Preload("Locations").
		Preload("Rankings").
		First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "user not found"})
		}
		log.Printf("DB Error fetching profile %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(user)
}

// UpdateProfile applies a partial update to the authenticated user's own
// fields.
func (s *ProfileService) UpdateProfile(c *fiber.Ctx) error {
	type Req struct {
		FullName *string `json:"full_name,omitempty"`
		Bio      *string `json:"bio,omitempty"`
		DOB      *string `json:"dob,omitempty"` // YYYY-MM-DD
		Gender   *string `json:"gender,omitempty"`
		College  *string `json:"college,omitempty"`
	}

	userID := c.Locals("user_id").(string)

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	updates := map[string]interface{}{}
	if req.FullName != nil {
		if strings.TrimSpace(*req.FullName) == "" {
			return c.Status(400).JSON(fiber.Map{"error": "full_name cannot be empty"})
		}
		updates["full_name"] = *req.FullName
	}
	if req.Bio != nil {
		updates["bio"] = *req.Bio
	}
	if req.DOB != nil {
		dob, err := time.Parse("2006-01-02", *req.DOB)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "dob must be YYYY-MM-DD"})
		}
		updates["dob"] = dob
	}
	if req.Gender != nil {
		switch *req.Gender {
		case "male", "female", "non-binary", "prefer-not-to-say":
			updates["gender"] = *req.Gender
		default:
			return c.Status(400).JSON(fiber.Map{"error": "invalid gender value"})
		}
	}
	if req.College != nil {
		updates["college"] = *req.College
	}
	if len(updates) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "no fields to update"})
	}

	res := s.DB.Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to update profile"})
	}
	if res.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "user not found"})
	}

	var user models.User
	s.DB.First(&user, "id = ?", userID)
	return c.JSON(user)
}

// ReplaceSports replaces the authenticated user's whole sports list in one
// transaction: the onboarding flow always sends the full set, so the old
// rows are deleted and the new set inserted, never patched. Unspecified
// skill levels default to 5.
func (s *ProfileService) ReplaceSports(c *fiber.Ctx) error {
	type SportReq struct {
		Sport      string `json:"sport"`
		SkillLevel int    `json:"skill_level,omitempty"`
	}
	type Req struct {
		Sports []SportReq `json:"sports"`
	}

	userID := c.Locals("user_id").(string)

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if len(req.Sports) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "at least one sport is required"})
	}

	seen := map[string]bool{}
	rows := make([]models.UserSport, 0, len(req.Sports))
	for _, sp := range req.Sports {
		name := strings.TrimSpace(sp.Sport)
		if name == "" {
			return c.Status(400).JSON(fiber.Map{"error": "sport name cannot be empty"})
		}
		if seen[name] {
			return c.Status(400).JSON(fiber.Map{"error": fmt.Sprintf("duplicate sport: %s", name)})
		}
		seen[name] = true

		level := sp.SkillLevel
		if level == 0 {
			level = 5
		}
		if level < 1 || level > 10 {
			return c.Status(400).JSON(fiber.Map{"error": "skill_level must be between 1 and 10"})
		}
		rows = append(rows, models.UserSport{
			ID:         uuid.NewString(),
			UserID:     userID,
			Sport:      name,
			SkillLevel: level,
		})
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserSport{}).Error; err != nil {
			return err
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		log.Printf("DB Error replacing sports for %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to update sports"})
	}

	return c.JSON(rows)
}

// UpsertLocation writes the authenticated user's single authoritative
// location row atomically, keyed by the unique user_id index.
func (s *ProfileService) UpsertLocation(c *fiber.Ctx) error {
	type Req struct {
		District  string  `json:"district"`
		Latitude  float64 `json:"lat"`
		Longitude float64 `json:"lng"`
	}

	userID := c.Locals("user_id").(string)

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if strings.TrimSpace(req.District) == "" {
		return c.Status(400).JSON(fiber.Map{"error": "district is required"})
	}

	loc := models.UserLocation{
		ID:          uuid.NewString(),
		UserID:      userID,
		District:    req.District,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		LastUpdated: time.Now(),
	}
	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"district", "latitude", "longitude", "last_updated"}),
	}).Create(&loc).Error; err != nil {
		log.Printf("DB Error upserting location for %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to update location"})
	}

	s.DB.Where("user_id = ?", userID).First(&loc)
	return c.JSON(loc)
}

// UploadAvatar stores the onboarding photo in object storage and saves its
// public URL on the user.
func (s *ProfileService) UploadAvatar(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "avatar file required"})
	}
	if fileHeader.Size > 5*1024*1024 {
		return c.Status(400).JSON(fiber.Map{"error": "avatar must be under 5MB"})
	}

	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "user not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	ext := filepath.Ext(fileHeader.Filename)
	key := fmt.Sprintf("avatars/%s/%s%s", userID, uuid.NewString(), ext)
	url, err := utils.UploadFileToR2(fileHeader, key)
	if err != nil {
		log.Printf("❌ Avatar upload failed for %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to upload avatar"})
	}

	if err := s.DB.Model(&models.User{}).Where("id = ?", userID).
		Update("avatar_url", url).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to save avatar URL"})
	}

	if user.AvatarURL != nil && *user.AvatarURL != "" {
		if err := utils.DeleteFileFromR2(*user.AvatarURL); err != nil {
			log.Printf("⚠️ Failed to delete old avatar for %s: %v", userID, err)
		}
	}

	return c.JSON(fiber.Map{"avatar_url": url})
}

// SearchUsers searches usernames and display names, capped at 100 results.
func (s *ProfileService) SearchUsers(c *fiber.Ctx) error {
	query := c.Query("q", "")
	limitStr := c.Query("limit", "50")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	db := s.DB.Model(&models.User{}).Limit(limit)
	if query != "" {
		searchTerm := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
		db = db.Where("LOWER(username) LIKE ? OR LOWER(full_name) LIKE ?", searchTerm, searchTerm)
	}

	var users []models.User
	if err := db.Find(&users).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "search failed", "details": err.Error()})
	}

	type UserSummary struct {
		ID        string  `json:"id"`
		Username  string  `json:"username"`
		FullName  string  `json:"full_name"`
		AvatarURL *string `json:"avatar_url,omitempty"`
	}
	res := make([]UserSummary, len(users))
	for i, u := range users {
		res[i] = UserSummary{ID: u.ID, Username: u.Username, FullName: u.FullName, AvatarURL: u.AvatarURL}
	}
	return c.JSON(res)
}
