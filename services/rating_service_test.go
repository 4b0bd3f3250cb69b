package services_test

import (
	"math"
	"testing"

	"sportconnect/models"
	"sportconnect/services"

	"gorm.io/gorm"
)

func TestExpectedScoreEqualRatings(t *testing.T) {
	got := services.ExpectedScore(1000, 1000)
	if math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Expected 0.5 for equal ratings, got %f", got)
	}
}

func TestExpectedScoreComplementary(t *testing.T) {
	a := services.ExpectedScore(1200, 1000)
	b := services.ExpectedScore(1000, 1200)
	if math.Abs(a+b-1.0) > 1e-9 {
		t.Errorf("Expected scores to sum to 1, got %f + %f = %f", a, b, a+b)
	}
	if a <= 0.5 {
		t.Errorf("Higher-rated player should be favored, got %f", a)
	}
}

func TestApplyVerifiedMatchEqualRatings(t *testing.T) {
	db := setupTestDB(t)
	svcs := buildServices(db)

	// Given: two players with no prior rating in the same district
	winner := createUser(t, db, "alice")
	loser := createUser(t, db, "bob")
	setUserLocation(t, db, winner.ID, "gangnam")
	setUserLocation(t, db, loser.ID, "gangnam")

	challenge := createAcceptedChallenge(t, db, winner.ID, loser.ID, "tennis", 0)
	match := createPendingMatch(t, db, challenge, winner.ID, loser.ID, winner.ID)

	// When: the match rating update runs
	err := db.Transaction(func(tx *gorm.DB) error {
		return svcs.Ratings.ApplyVerifiedMatch(tx, match, "tennis")
	})
	if err != nil {
		t.Fatalf("ApplyVerifiedMatch failed: %v", err)
	}

	// Then: K=32 between equal seeds moves 16 points each way
	var winnerRank, loserRank models.UserRanking
	if err := db.Where("user_id = ? AND sport = ?", winner.ID, "tennis").First(&winnerRank).Error; err != nil {
		t.Fatalf("winner ranking not created: %v", err)
	}
	if err := db.Where("user_id = ? AND sport = ?", loser.ID, "tennis").First(&loserRank).Error; err != nil {
		t.Fatalf("loser ranking not created: %v", err)
	}

	if math.Abs(winnerRank.EloRating-1016) > 1e-6 {
		t.Errorf("Expected winner rating 1016, got %f", winnerRank.EloRating)
	}
	if math.Abs(loserRank.EloRating-984) > 1e-6 {
		t.Errorf("Expected loser rating 984, got %f", loserRank.EloRating)
	}
	if winnerRank.Wins != 1 || winnerRank.Losses != 0 {
		t.Errorf("Expected winner 1W/0L, got %dW/%dL", winnerRank.Wins, winnerRank.Losses)
	}
	if loserRank.Wins != 0 || loserRank.Losses != 1 {
		t.Errorf("Expected loser 0W/1L, got %dW/%dL", loserRank.Wins, loserRank.Losses)
	}

	var historyCount int64
	db.Model(&models.EloHistory{}).Where("match_id = ?", match.ID).Count(&historyCount)
	if historyCount != 2 {
		t.Errorf("Expected 2 history rows (one per side), got %d", historyCount)
	}
}

func TestApplyVerifiedMatchZeroSum(t *testing.T) {
	db := setupTestDB(t)
	svcs := buildServices(db)

	winner := createUser(t, db, "carol")
	loser := createUser(t, db, "dave")
	setUserLocation(t, db, winner.ID, "mapo")
	setUserLocation(t, db, loser.ID, "mapo")

	// Given: an uneven pairing seeded directly
	seed := func(userID string, rating float64) {
		r := models.UserRanking{
			ID:        userID + "-rank",
			UserID:    userID,
			Sport:     "badminton",
			District:  "mapo",
			EloRating: rating,
		}
		if err := db.Create(&r).Error; err != nil {
			t.Fatalf("failed to seed ranking: %v", err)
		}
	}
	seed(winner.ID, 1100)
	seed(loser.ID, 900)

	challenge := createAcceptedChallenge(t, db, winner.ID, loser.ID, "badminton", 0)
	match := createPendingMatch(t, db, challenge, winner.ID, loser.ID, winner.ID)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svcs.Ratings.ApplyVerifiedMatch(tx, match, "badminton")
	})
	if err != nil {
		t.Fatalf("ApplyVerifiedMatch failed: %v", err)
	}

	// Then: total rating mass is conserved
	var ranks []models.UserRanking
	db.Where("sport = ?", "badminton").Find(&ranks)
	var total float64
	for _, r := range ranks {
		total += r.EloRating
	}
	if math.Abs(total-2000) > 1e-6 {
		t.Errorf("Expected zero-sum update (total 2000), got %f", total)
	}
}

func TestApplyVerifiedMatchSeparateDistricts(t *testing.T) {
	db := setupTestDB(t)
	svcs := buildServices(db)

	// Given: players living in different districts
	winner := createUser(t, db, "erin")
	loser := createUser(t, db, "frank")
	setUserLocation(t, db, winner.ID, "gangnam")
	setUserLocation(t, db, loser.ID, "jongno")

	challenge := createAcceptedChallenge(t, db, winner.ID, loser.ID, "tennis", 0)
	match := createPendingMatch(t, db, challenge, winner.ID, loser.ID, winner.ID)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svcs.Ratings.ApplyVerifiedMatch(tx, match, "tennis")
	})
	if err != nil {
		t.Fatalf("ApplyVerifiedMatch failed: %v", err)
	}

	// Then: each side is rated in their own district partition
	var winnerRank, loserRank models.UserRanking
	if err := db.Where("user_id = ?", winner.ID).First(&winnerRank).Error; err != nil {
		t.Fatalf("winner ranking missing: %v", err)
	}
	if err := db.Where("user_id = ?", loser.ID).First(&loserRank).Error; err != nil {
		t.Fatalf("loser ranking missing: %v", err)
	}
	if winnerRank.District != "gangnam" {
		t.Errorf("Expected winner rated in gangnam, got %s", winnerRank.District)
	}
	if loserRank.District != "jongno" {
		t.Errorf("Expected loser rated in jongno, got %s", loserRank.District)
	}
}

func TestApplyVerifiedMatchNoLocationFallback(t *testing.T) {
	db := setupTestDB(t)
	svcs := buildServices(db)

	// Given: players without a location row
	winner := createUser(t, db, "grace")
	loser := createUser(t, db, "heidi")

	challenge := createAcceptedChallenge(t, db, winner.ID, loser.ID, "tennis", 0)
	match := createPendingMatch(t, db, challenge, winner.ID, loser.ID, winner.ID)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svcs.Ratings.ApplyVerifiedMatch(tx, match, "tennis")
	})
	if err != nil {
		t.Fatalf("ApplyVerifiedMatch failed: %v", err)
	}

	// Then: the match still counts, in the catch-all partition
	var count int64
	db.Model(&models.UserRanking{}).Where("district = ?", "unassigned").Count(&count)
	if count != 2 {
		t.Errorf("Expected 2 rankings in the unassigned partition, got %d", count)
	}
}
