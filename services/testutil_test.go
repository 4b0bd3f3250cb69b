package services_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sportconnect/models"
	"sportconnect/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens an isolated in-memory database with the full schema.
// The pool is capped at one connection: it keeps the in-memory database
// alive and serializes concurrent writers the way a real server relies on
// row locks.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.UserSport{},
		&models.UserLocation{},
		&models.PhoneVerification{},
		&models.Challenge{},
		&models.ChallengeParticipant{},
		&models.Match{},
		&models.EloHistory{},
		&models.UserRanking{},
		&models.Payment{},
		&models.Notification{},
		&models.Post{},
	); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	return db
}

type testServices struct {
	Ratings       *services.RatingService
	Payments      *services.PaymentService
	Notifications *services.NotificationService
	Leaderboard   *services.LeaderboardService
	Challenges    *services.ChallengeService
	Matches       *services.MatchService
}

func buildServices(db *gorm.DB) *testServices {
	ratings := services.NewRatingService(db)
	payments := services.NewPaymentService(db)
	notifications := services.NewNotificationService(db)
	leaderboard := services.NewLeaderboardService(db)
	challenges := services.NewChallengeService(db, payments, notifications)
	matches := services.NewMatchService(db, ratings, payments, leaderboard, notifications)
	return &testServices{
		Ratings:       ratings,
		Payments:      payments,
		Notifications: notifications,
		Leaderboard:   leaderboard,
		Challenges:    challenges,
		Matches:       matches,
	}
}

// newTestApp builds a fiber app with the identity context taken straight
// from headers, standing in for the gateway middleware chain.
func newTestApp() *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", c.Get("X-User-ID"))
		var roles []string
		if raw := c.Get("X-User-Roles"); raw != "" {
			for _, r := range strings.Split(raw, ",") {
				roles = append(roles, strings.TrimSpace(r))
			}
		}
		c.Locals("user_roles", roles)
		return c.Next()
	})
	return app
}

// doJSON performs a request against the test app as the given user and
// decodes the response body into out (when non-nil).
func doJSON(t *testing.T, app *fiber.App, method, path, userID string, body interface{}, out interface{}) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	resp, err := app.Test(req, 10000)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("failed to read response body: %v", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				t.Fatalf("failed to decode response %q: %v", string(data), err)
			}
		}
	}
	return resp.StatusCode
}

// doJSONWithRoles is doJSON with an X-User-Roles header attached.
func doJSONWithRoles(t *testing.T, app *fiber.App, method, path, userID, roles string, body interface{}, out interface{}) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID)
	req.Header.Set("X-User-Roles", roles)

	resp, err := app.Test(req, 10000)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("failed to read response body: %v", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				t.Fatalf("failed to decode response %q: %v", string(data), err)
			}
		}
	}
	return resp.StatusCode
}

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := models.User{
		ID:       uuid.NewString(),
		Username: username,
		FullName: "Test " + username,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return &user
}

func setUserLocation(t *testing.T, db *gorm.DB, userID, district string) {
	t.Helper()
	loc := models.UserLocation{
		ID:          uuid.NewString(),
		UserID:      userID,
		District:    district,
		LastUpdated: time.Now(),
	}
	if err := db.Create(&loc).Error; err != nil {
		t.Fatalf("failed to create location for %s: %v", userID, err)
	}
}

// createAcceptedChallenge wires a challenge between two users directly in
// the database, with an accepted participant row and held stakes when
// bidAmount > 0.
func createAcceptedChallenge(t *testing.T, db *gorm.DB, creatorID, opponentID, sport string, bidAmount int64) *models.Challenge {
	t.Helper()

	challenge := models.Challenge{
		ID:        uuid.NewString(),
		CreatorID: creatorID,
		Sport:     sport,
		BidAmount: bidAmount,
		Status:    models.ChallengeStatusAccepted,
		StartTime: time.Now().Add(time.Hour),
		Location:  "Central Park Court 3",
	}
	if err := db.Create(&challenge).Error; err != nil {
		t.Fatalf("failed to create challenge: %v", err)
	}

	participant := models.ChallengeParticipant{
		ID:          uuid.NewString(),
		ChallengeID: challenge.ID,
		UserID:      opponentID,
		Status:      models.ParticipantStatusAccepted,
	}
	if err := db.Create(&participant).Error; err != nil {
		t.Fatalf("failed to create participant: %v", err)
	}

	if bidAmount > 0 {
		for _, payerID := range []string{creatorID, opponentID} {
			payment := models.Payment{
				ID:          uuid.NewString(),
				ChallengeID: challenge.ID,
				PayerID:     payerID,
				Amount:      bidAmount,
				Status:      models.PaymentStatusHeld,
			}
			if err := db.Create(&payment).Error; err != nil {
				t.Fatalf("failed to create payment: %v", err)
			}
		}
	}

	return &challenge
}

// createPendingMatch records a submitted result for the challenge.
func createPendingMatch(t *testing.T, db *gorm.DB, challenge *models.Challenge, winnerID, loserID, submittedBy string) *models.Match {
	t.Helper()
	match := models.Match{
		ID:          uuid.NewString(),
		ChallengeID: challenge.ID,
		WinnerID:    winnerID,
		LoserID:     loserID,
		Status:      models.MatchStatusPending,
		SubmittedBy: submittedBy,
		EndedAt:     time.Now(),
	}
	if err := db.Create(&match).Error; err != nil {
		t.Fatalf("failed to create match: %v", err)
	}
	return &match
}
