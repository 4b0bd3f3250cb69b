package services

import (
	"log"
	"strconv"

	"sportconnect/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// LeaderboardService serves ranking reads and owns the dense-rank batch
// recomputation.
type LeaderboardService struct {
	DB    *gorm.DB
	Bands models.TierBands
}

func NewLeaderboardService(db *gorm.DB) *LeaderboardService {
	return &LeaderboardService{DB: db, Bands: models.DefaultTierBands}
}

// GetLeaderboard returns up to 100 ranking rows for a sport (optionally
// scoped to a district), ordered by rank ascending and joined with display
// identity. Tier is derived per row on read.
func (s *LeaderboardService) GetLeaderboard(c *fiber.Ctx) error {
	sport := c.Query("sport")
	if sport == "" {
		return c.Status(400).JSON(fiber.Map{"error": "sport query param required"})
	}
	district := c.Query("district")

	limitStr := c.Query("limit", "100")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 100
	}

	query := s.DB.Model(&models.UserRanking{}).
		Select("user_rankings.user_id, users.username, users.full_name, users.avatar_url, "+
			"user_rankings.sport, user_rankings.district, user_rankings.elo_rating, "+
			"user_rankings.wins, user_rankings.losses, user_rankings.rank").
		Joins("JOIN users ON users.id = user_rankings.user_id").
		Where("user_rankings.sport = ? AND user_rankings.rank > 0", sport).
		Order("user_rankings.rank ASC").
		Limit(limit)
	if district != "" {
		query = query.Where("user_rankings.district = ?", district)
	}

	var entries []models.LeaderboardEntry
	if err := query.Scan(&entries).Error; err != nil {
		log.Printf("DB Error fetching leaderboard (%s/%s): %v", sport, district, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch leaderboard"})
	}

	for i := range entries {
		entries[i].Tier = s.Bands.TierForRank(entries[i].Rank)
	}

	return c.JSON(fiber.Map{
		"sport":    sport,
		"district": district,
		"entries":  entries,
		"count":    len(entries),
	})
}

// GetUserRankings returns all ranking rows for one user with tiers attached.
func (s *LeaderboardService) GetUserRankings(c *fiber.Ctx) error {
	userID := c.Params("user_id")

	var rankings []models.UserRanking
	if err := s.DB.Where("user_id = ?", userID).Find(&rankings).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch rankings"})
	}

	type rankedRow struct {
		models.UserRanking
		Tier string `json:"tier"`
	}
	rows := make([]rankedRow, len(rankings))
	for i, r := range rankings {
		rows[i] = rankedRow{UserRanking: r, Tier: s.Bands.TierForRank(r.Rank)}
	}
	return c.JSON(rows)
}

// RecalculateRanks reassigns dense ranks 1..N within every (sport, district)
// partition, descending by rating with ties broken by fewer losses, then
// earlier account creation. The pass is idempotent: re-running it against an
// unchanged rating set writes the same ranks, so it is safe to trigger after
// every verification and again on the schedule.
func (s *LeaderboardService) RecalculateRanks() error {
	type partition struct {
		Sport    string
		District string
	}
	var partitions []partition
	if err := s.DB.Model(&models.UserRanking{}).
		Distinct("sport", "district").
		Find(&partitions).Error; err != nil {
		return err
	}

	for _, p := range partitions {
		if err := s.recalculatePartition(p.Sport, p.District); err != nil {
			log.Printf("[Ranks] ❌ Failed partition %s/%s: %v", p.Sport, p.District, err)
			return err
		}
	}
	return nil
}

func (s *LeaderboardService) recalculatePartition(sport, district string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var rankings []models.UserRanking
		if err := tx.
			Joins("JOIN users ON users.id = user_rankings.user_id").
			Where("user_rankings.sport = ? AND user_rankings.district = ?", sport, district).
			Order("user_rankings.elo_rating DESC, user_rankings.losses ASC, users.created_at ASC").
			Find(&rankings).Error; err != nil {
			return err
		}

		for i := range rankings {
			newRank := i + 1
			if rankings[i].Rank == newRank {
				continue
			}
			if err := tx.Model(&models.UserRanking{}).
				Where("id = ?", rankings[i].ID).
				Update("rank", newRank).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
