package services

import (
	"errors"
	"log"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"sportconnect/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultNearbyRadiusMeters is the discovery radius when the client sends
// none (the UI default of 50 km). Overridable via NEARBY_DEFAULT_RADIUS_METERS.
const DefaultNearbyRadiusMeters = 50000.0

const earthRadiusMeters = 6371000.0

// ChallengeService handles challenge creation, discovery, joining and
// cancellation, including the escrow hold on bid challenges.
type ChallengeService struct {
	DB            *gorm.DB
	Payments      *PaymentService
	Notifications *NotificationService
	DefaultRadius float64
}

func NewChallengeService(db *gorm.DB, payments *PaymentService, notifications *NotificationService) *ChallengeService {
	radius := DefaultNearbyRadiusMeters
	if raw := os.Getenv("NEARBY_DEFAULT_RADIUS_METERS"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			radius = v
		} else {
			log.Printf("⚠️  Invalid NEARBY_DEFAULT_RADIUS_METERS=%q, using default %.0f", raw, DefaultNearbyRadiusMeters)
		}
	}
	return &ChallengeService{DB: db, Payments: payments, Notifications: notifications, DefaultRadius: radius}
}

// CreateChallenge opens a new challenge. A bid challenge (bid_amount > 0)
// requires the creator's phone to be verified and holds the creator's stake
// in the same transaction, so a challenge can never exist with a missing
// escrow row.
func (s *ChallengeService) CreateChallenge(c *fiber.Ctx) error {
	type Req struct {
		Sport       string    `json:"sport"`
		BidAmount   int64     `json:"bid_amount"`
		StartTime   time.Time `json:"start_time"`
		Location    string    `json:"location"`
		Latitude    float64   `json:"lat"`
		Longitude   float64   `json:"lng"`
		Description string    `json:"description"`
	}

	creatorID := c.Locals("user_id").(string)

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.Sport == "" || req.Location == "" {
		return c.Status(400).JSON(fiber.Map{"error": "sport and location are required"})
	}
	if req.StartTime.IsZero() {
		return c.Status(400).JSON(fiber.Map{"error": "start_time is required"})
	}
	if req.BidAmount < 0 {
		return c.Status(400).JSON(fiber.Map{"error": "bid_amount cannot be negative"})
	}

	var creator models.User
	if err := s.DB.First(&creator, "id = ?", creatorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "user not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if req.BidAmount > 0 && !creator.PhoneVerified {
		return c.Status(403).JSON(fiber.Map{
			"error":                       "bid challenges require a verified phone number",
			"phone_verification_required": true,
		})
	}

	challenge := models.Challenge{
		ID:          uuid.NewString(),
		CreatorID:   creatorID,
		Sport:       req.Sport,
		BidAmount:   req.BidAmount,
		Status:      models.ChallengeStatusOpen,
		StartTime:   req.StartTime,
		Location:    req.Location,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Description: req.Description,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&challenge).Error; err != nil {
			return err
		}
		if challenge.BidAmount > 0 {
			if _, err := s.Payments.HoldStake(tx, challenge.ID, creatorID, challenge.BidAmount); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("DB Error creating challenge for %s: %v", creatorID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create challenge"})
	}

	return c.Status(201).JSON(challenge)
}

// JoinChallenge accepts an open challenge. The participant row is an atomic
// upsert keyed by (challenge_id, user_id) — the unique index plus OnConflict
// replaces the old read-then-write pattern, so N concurrent joins by the
// same user collapse to one row. The open → accepted transition is a guarded
// update; whoever wins it becomes the opponent, and the joiner's stake is
// held in the same transaction for bid challenges.
func (s *ChallengeService) JoinChallenge(c *fiber.Ctx) error {
	challengeID := c.Params("id")
	userID := c.Locals("user_id").(string)

	var challenge models.Challenge
	if err := s.DB.First(&challenge, "id = ?", challengeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "challenge not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if challenge.CreatorID == userID {
		return c.Status(400).JSON(fiber.Map{"error": "cannot join your own challenge"})
	}

	var participant models.ChallengeParticipant
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Challenge{}).
			Where("id = ? AND status = ?", challengeID, models.ChallengeStatusOpen).
			Update("status", models.ChallengeStatusAccepted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Re-join by the accepted opponent is idempotent; anyone else is
			// too late.
			var existing models.ChallengeParticipant
			err := tx.Where("challenge_id = ? AND user_id = ? AND status = ?",
				challengeID, userID, models.ParticipantStatusAccepted).First(&existing).Error
			if err == nil {
				participant = existing
				return nil
			}
			return errChallengeNotOpen
		}

		participant = models.ChallengeParticipant{
			ID:          uuid.NewString(),
			ChallengeID: challengeID,
			UserID:      userID,
			Status:      models.ParticipantStatusAccepted,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "challenge_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status"}),
		}).Create(&participant).Error; err != nil {
			return err
		}

		if challenge.BidAmount > 0 {
			var count int64
			tx.Model(&models.Payment{}).
				Where("challenge_id = ? AND payer_id = ?", challengeID, userID).
				Count(&count)
			if count == 0 {
				if _, err := s.Payments.HoldStake(tx, challengeID, userID, challenge.BidAmount); err != nil {
					return err
				}
			}
		}

		return s.Notifications.Notify(tx, challenge.CreatorID, models.NotificationChallengeJoined, map[string]interface{}{
			"challenge_id": challengeID,
			"user_id":      userID,
		})
	})
	if errors.Is(err, errChallengeNotOpen) {
		return c.Status(409).JSON(fiber.Map{"error": "challenge is not open", "current": challenge.Status})
	}
	if err != nil {
		log.Printf("DB Error joining challenge %s by %s: %v", challengeID, userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to join challenge"})
	}

	return c.JSON(participant)
}

var errChallengeNotOpen = errors.New("challenge not open")

// CancelChallenge withdraws a challenge before completion. Only the creator
// may cancel, only from open or accepted, and all held stakes are refunded
// in the same transaction. The status guard makes cancellation and
// verification mutually exclusive: if verification already completed the
// challenge, the guard matches nothing and this is a 409.
func (s *ChallengeService) CancelChallenge(c *fiber.Ctx) error {
	challengeID := c.Params("id")
	userID := c.Locals("user_id").(string)

	var challenge models.Challenge
	if err := s.DB.First(&challenge, "id = ?", challengeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "challenge not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if challenge.CreatorID != userID {
		return c.Status(403).JSON(fiber.Map{"error": "only the creator may cancel a challenge"})
	}

	var refunded []models.Payment
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Challenge{}).
			Where("id = ? AND status IN ?", challengeID,
				[]string{models.ChallengeStatusOpen, models.ChallengeStatusAccepted}).
			Update("status", models.ChallengeStatusCanceled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errChallengeNotCancelable
		}

		var err error
		refunded, err = s.Payments.RefundChallengePayments(tx, challengeID)
		if err != nil {
			return err
		}
		for _, p := range refunded {
			if err := s.Notifications.Notify(tx, p.PayerID, models.NotificationStakeRefunded, map[string]interface{}{
				"payment_id":   p.ID,
				"challenge_id": challengeID,
				"amount":       p.Amount,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, errChallengeNotCancelable) {
		return c.Status(409).JSON(fiber.Map{"error": "challenge can no longer be canceled"})
	}
	if err != nil {
		log.Printf("DB Error canceling challenge %s: %v", challengeID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to cancel challenge"})
	}

	return c.JSON(fiber.Map{
		"message":  "challenge canceled",
		"refunded": len(refunded),
	})
}

// NearbyChallenges returns open challenges within a radius of (lat, lng),
// closest first, optionally filtered to one sport. A bounding-box SQL
// prefilter keeps the scan cheap; the exact haversine distance computed here
// decides inclusion and ordering.
func (s *ChallengeService) NearbyChallenges(c *fiber.Ctx) error {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		return c.Status(400).JSON(fiber.Map{"error": "lat and lng query params required"})
	}

	radius := s.DefaultRadius
	if raw := c.Query("radius"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			return c.Status(400).JSON(fiber.Map{"error": "radius must be a positive number of meters"})
		}
		radius = v
	}
	sportFilter := c.Query("sport")

	latDelta := radius / 111320.0
	lngDelta := latDelta
	if cosLat := math.Cos(lat * math.Pi / 180); cosLat > 0.01 {
		lngDelta = latDelta / cosLat
	}

	type candidateRow struct {
		models.Challenge
		CreatorName     string  `json:"creator_name"`
		CreatorUsername string  `json:"creator_username"`
		CreatorAvatar   *string `json:"creator_avatar"`
	}

	query := s.DB.Model(&models.Challenge{}).
		Select("challenges.*, users.full_name AS creator_name, users.username AS creator_username, users.avatar_url AS creator_avatar").
		Joins("JOIN users ON users.id = challenges.creator_id").
		Where("challenges.status = ?", models.ChallengeStatusOpen).
		Where("challenges.latitude BETWEEN ? AND ?", lat-latDelta, lat+latDelta).
		Where("challenges.longitude BETWEEN ? AND ?", lng-lngDelta, lng+lngDelta)
	if sportFilter != "" {
		query = query.Where("challenges.sport = ?", sportFilter)
	}

	var candidates []candidateRow
	if err := query.Find(&candidates).Error; err != nil {
		log.Printf("DB Error in nearby query: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch nearby challenges"})
	}

	// Serializes as [] rather than null when nothing is in range.
	results := []models.NearbyChallenge{}
	for _, row := range candidates {
		dist := haversineMeters(lat, lng, row.Latitude, row.Longitude)
		if dist > radius {
			continue
		}
		results = append(results, models.NearbyChallenge{
			ID:              row.ID,
			CreatorID:       row.CreatorID,
			Sport:           row.Sport,
			BidAmount:       row.BidAmount,
			Status:          row.Status,
			StartTime:       row.StartTime,
			Location:        row.Location,
			DistanceMeters:  dist,
			CreatorName:     row.CreatorName,
			CreatorUsername: row.CreatorUsername,
			CreatorAvatar:   row.CreatorAvatar,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].DistanceMeters < results[j].DistanceMeters
	})

	return c.JSON(fiber.Map{
		"challenges": results,
		"count":      len(results),
	})
}

// GetChallenge returns one challenge with its participants.
func (s *ChallengeService) GetChallenge(c *fiber.Ctx) error {
	var challenge models.Challenge
	if err := s.DB.Preload("Participants").Preload("Creator").
		First(&challenge, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "challenge not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(challenge)
}

// GetUserChallenges returns challenges the user created and those they
// participate in.
func (s *ChallengeService) GetUserChallenges(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var created []models.Challenge
	if err := s.DB.Preload("Participants").
		Where("creator_id = ?", userID).
		Order("created_at DESC").
		Find(&created).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch challenges"})
	}

	var participating []models.Challenge
	if err := s.DB.Preload("Creator").
		Joins("JOIN challenge_participants cp ON cp.challenge_id = challenges.id").
		Where("cp.user_id = ?", userID).
		Order("challenges.created_at DESC").
		Find(&participating).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch participations"})
	}

	return c.JSON(fiber.Map{
		"created":       created,
		"participating": participating,
	})
}

var errChallengeNotCancelable = errors.New("challenge not cancelable")

// haversineMeters is the great-circle distance between two coordinates.
func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
