package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"

	"sportconnect/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Default Elo parameters; overridable via ELO_K_FACTOR and ELO_SEED_RATING.
const (
	DefaultKFactor    = 32.0
	DefaultSeedRating = 1000.0
)

// RatingService maintains the Elo rating per (user, sport, district) and
// applies exactly one update per verified match.
type RatingService struct {
	DB         *gorm.DB
	KFactor    float64
	SeedRating float64
}

func NewRatingService(db *gorm.DB) *RatingService {
	k := envFloat("ELO_K_FACTOR", DefaultKFactor)
	seed := envFloat("ELO_SEED_RATING", DefaultSeedRating)
	return &RatingService{DB: db, KFactor: k, SeedRating: seed}
}

func envFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("⚠️  Invalid %s=%q, using default %.0f", key, raw, fallback)
		return fallback
	}
	return v
}

// ExpectedScore is the logistic expected score for a player rated `rating`
// against an opponent rated `opponent`.
func ExpectedScore(rating, opponent float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (opponent-rating)/400.0))
}

// EnsureRankingRecord returns the ranking row for (user, sport, district),
// creating it with the seed rating on first use (idempotent).
func (s *RatingService) EnsureRankingRecord(tx *gorm.DB, userID, sport, district string) (*models.UserRanking, error) {
	var ranking models.UserRanking
	err := tx.Where("user_id = ? AND sport = ? AND district = ?", userID, sport, district).
		First(&ranking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		ranking = models.UserRanking{
			ID:        uuid.NewString(),
			UserID:    userID,
			Sport:     sport,
			District:  district,
			EloRating: s.SeedRating,
		}
		if err := tx.Create(&ranking).Error; err != nil {
			return nil, err
		}
		return &ranking, nil
	}
	if err != nil {
		return nil, err
	}
	return &ranking, nil
}

// ApplyVerifiedMatch updates both players' ratings and win/loss counters for
// one verified match. It must run inside the verification transaction so a
// mid-way failure leaves no partial state. Each player is rated in their own
// district partition for the match's sport.
func (s *RatingService) ApplyVerifiedMatch(tx *gorm.DB, match *models.Match, sport string) error {
	winnerDistrict, err := s.districtFor(tx, match.WinnerID)
	if err != nil {
		return fmt.Errorf("winner district: %w", err)
	}
	loserDistrict, err := s.districtFor(tx, match.LoserID)
	if err != nil {
		return fmt.Errorf("loser district: %w", err)
	}

	winner, err := s.EnsureRankingRecord(tx, match.WinnerID, sport, winnerDistrict)
	if err != nil {
		return err
	}
	loser, err := s.EnsureRankingRecord(tx, match.LoserID, sport, loserDistrict)
	if err != nil {
		return err
	}

	expectedW := ExpectedScore(winner.EloRating, loser.EloRating)
	expectedL := 1 - expectedW

	winnerBefore := winner.EloRating
	loserBefore := loser.EloRating

	winner.EloRating += s.KFactor * (1 - expectedW)
	winner.Wins++
	loser.EloRating += s.KFactor * (0 - expectedL)
	loser.Losses++

	if err := tx.Save(winner).Error; err != nil {
		return err
	}
	if err := tx.Save(loser).Error; err != nil {
		return err
	}

	history := []models.EloHistory{
		{
			ID:        uuid.NewString(),
			UserID:    match.WinnerID,
			MatchID:   match.ID,
			Sport:     sport,
			District:  winnerDistrict,
			EloBefore: winnerBefore,
			EloAfter:  winner.EloRating,
		},
		{
			ID:        uuid.NewString(),
			UserID:    match.LoserID,
			MatchID:   match.ID,
			Sport:     sport,
			District:  loserDistrict,
			EloBefore: loserBefore,
			EloAfter:  loser.EloRating,
		},
	}
	if err := tx.Create(&history).Error; err != nil {
		return err
	}

	log.Printf("🏆 Elo updated: match=%s %s %.1f→%.1f | %s %.1f→%.1f",
		match.ID, match.WinnerID, winnerBefore, winner.EloRating,
		match.LoserID, loserBefore, loser.EloRating)
	return nil
}

// districtFor resolves the user's authoritative district from their location
// row. Users without a location land in a catch-all partition so a verified
// match is never dropped.
func (s *RatingService) districtFor(tx *gorm.DB, userID string) (string, error) {
	var loc models.UserLocation
	err := tx.Where("user_id = ?", userID).First(&loc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "unassigned", nil
	}
	if err != nil {
		return "", err
	}
	return loc.District, nil
}
