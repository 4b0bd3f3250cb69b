package services

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"sportconnect/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultAutoVerifyHours is how long an undisputed result sits pending
// before the timeout policy verifies it. Overridable via AUTO_VERIFY_HOURS.
const DefaultAutoVerifyHours = 48

// MatchService implements the result verification state machine:
// pending → verified (confirmation, attestation, timeout or dispute
// resolution) or pending → disputed. The pending → verified transition is
// the single-writer gate behind the rating update and payment settlement.
type MatchService struct {
	DB              *gorm.DB
	Ratings         *RatingService
	Payments        *PaymentService
	Leaderboard     *LeaderboardService
	Notifications   *NotificationService
	AutoVerifyAfter time.Duration
}

func NewMatchService(db *gorm.DB, ratings *RatingService, payments *PaymentService,
	leaderboard *LeaderboardService, notifications *NotificationService) *MatchService {
	hours := DefaultAutoVerifyHours
	if raw := os.Getenv("AUTO_VERIFY_HOURS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			hours = v
		} else {
			log.Printf("⚠️  Invalid AUTO_VERIFY_HOURS=%q, using default %d", raw, DefaultAutoVerifyHours)
		}
	}
	return &MatchService{
		DB:              db,
		Ratings:         ratings,
		Payments:        payments,
		Leaderboard:     leaderboard,
		Notifications:   notifications,
		AutoVerifyAfter: time.Duration(hours) * time.Hour,
	}
}

// SubmitResult records a winner claim for a challenge. Re-submitting the
// identical claim while pending returns the existing match; a conflicting
// claim from the counter-party moves the match to disputed.
func (s *MatchService) SubmitResult(c *fiber.Ctx) error {
	type Req struct {
		WinnerID string  `json:"winner_id"`
		LoserID  string  `json:"loser_id"`
		Score    *string `json:"score,omitempty"`
	}

	challengeID := c.Params("id")
	submitterID := c.Locals("user_id").(string)

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.WinnerID == "" || req.LoserID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "winner_id and loser_id are required"})
	}
	if req.WinnerID == req.LoserID {
		return c.Status(400).JSON(fiber.Map{"error": "winner and loser must differ"})
	}

	var challenge models.Challenge
	if err := s.DB.First(&challenge, "id = ?", challengeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "challenge not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if challenge.Status != models.ChallengeStatusAccepted {
		return c.Status(400).JSON(fiber.Map{
			"error":   "results can only be submitted for accepted challenges",
			"current": challenge.Status,
		})
	}

	members, err := s.challengeMembers(s.DB, &challenge)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to load participants"})
	}
	if !members[submitterID] {
		return c.Status(403).JSON(fiber.Map{"error": "only the creator or an accepted participant may submit a result"})
	}
	if !members[req.WinnerID] || !members[req.LoserID] {
		return c.Status(400).JSON(fiber.Map{"error": "winner and loser must both be challenge participants"})
	}

	// One durable match per challenge; handle re-submissions explicitly.
	var existing models.Match
	err = s.DB.Where("challenge_id = ?", challengeID).First(&existing).Error
	if err == nil {
		switch {
		case existing.Status != models.MatchStatusPending:
			return c.Status(409).JSON(fiber.Map{"error": "result already settled", "match": existing})
		case existing.WinnerID == req.WinnerID && existing.LoserID == req.LoserID:
			// Identical claim: idempotent, no duplicate row, no re-fire.
			return c.JSON(existing)
		case submitterID != existing.SubmittedBy:
			return s.disputeMatch(c, &existing, submitterID, req.WinnerID)
		default:
			return c.Status(409).JSON(fiber.Map{
				"error": "a different result is already pending for this challenge",
				"match": existing,
			})
		}
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	match := models.Match{
		ID:          uuid.NewString(),
		ChallengeID: challengeID,
		WinnerID:    req.WinnerID,
		LoserID:     req.LoserID,
		Score:       req.Score,
		Status:      models.MatchStatusPending,
		SubmittedBy: submitterID,
		EndedAt:     time.Now(),
	}
	if err := s.DB.Create(&match).Error; err != nil {
		log.Printf("DB Error creating match for challenge %s: %v", challengeID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to record result"})
	}

	for userID := range members {
		if userID == submitterID {
			continue
		}
		_ = s.Notifications.Notify(s.DB, userID, models.NotificationResultSubmitted, map[string]interface{}{
			"match_id":     match.ID,
			"challenge_id": challengeID,
			"winner_id":    match.WinnerID,
			"submitted_by": submitterID,
		})
	}

	return c.Status(201).JSON(match)
}

// ConfirmResult is the counter-party agreeing with the pending claim.
func (s *MatchService) ConfirmResult(c *fiber.Ctx) error {
	matchID := c.Params("id")
	userID := c.Locals("user_id").(string)

	match, challenge, status, errMap := s.loadMatchForParty(matchID, userID)
	if errMap != nil {
		return c.Status(status).JSON(errMap)
	}
	if userID == match.SubmittedBy {
		return c.Status(403).JSON(fiber.Map{"error": "the submitter cannot confirm their own result"})
	}

	fired, err := s.Verify(match.ID, "confirmation", nil)
	if err != nil {
		log.Printf("❌ Verification failed for match %s: %v", match.ID, err)
		return c.Status(500).JSON(fiber.Map{"error": "verification failed"})
	}
	if !fired {
		return c.Status(409).JSON(fiber.Map{"error": "match is no longer pending"})
	}

	s.DB.First(match, "id = ?", match.ID)
	_ = challenge
	return c.JSON(match)
}

// AttestResult verifies a pending match from an external fitness-tracker
// attestation carried by the gateway. Only identities holding the tracker
// role may attest, and never the claim's own submitter. The attested winner
// must match the pending claim or the attestation is rejected.
func (s *MatchService) AttestResult(c *fiber.Ctx) error {
	type Req struct {
		WinnerID string `json:"winner_id"`
		Source   string `json:"source"`
	}
	matchID := c.Params("id")
	callerID := c.Locals("user_id").(string)

	if !hasRole(c, "tracker") {
		return c.Status(403).JSON(fiber.Map{"error": "attestation requires the tracker role"})
	}

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	var match models.Match
	if err := s.DB.First(&match, "id = ?", matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "match not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if callerID == match.SubmittedBy {
		return c.Status(403).JSON(fiber.Map{"error": "the submitter cannot attest their own result"})
	}
	if req.WinnerID != match.WinnerID {
		return c.Status(400).JSON(fiber.Map{"error": "attestation does not match the pending claim"})
	}

	fired, err := s.Verify(match.ID, "attestation", nil)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "verification failed"})
	}
	if !fired {
		return c.Status(409).JSON(fiber.Map{"error": "match is no longer pending"})
	}

	s.DB.First(&match, "id = ?", match.ID)
	return c.JSON(match)
}

// DisputeResult is the counter-party contesting the pending claim.
func (s *MatchService) DisputeResult(c *fiber.Ctx) error {
	type Req struct {
		ClaimedWinnerID string `json:"claimed_winner_id"`
	}
	matchID := c.Params("id")
	userID := c.Locals("user_id").(string)

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	match, _, status, errMap := s.loadMatchForParty(matchID, userID)
	if errMap != nil {
		return c.Status(status).JSON(errMap)
	}
	if userID == match.SubmittedBy {
		return c.Status(403).JSON(fiber.Map{"error": "the submitter cannot dispute their own result"})
	}

	return s.disputeMatch(c, match, userID, req.ClaimedWinnerID)
}

// disputeMatch performs the guarded pending → disputed transition.
func (s *MatchService) disputeMatch(c *fiber.Ctx, match *models.Match, userID, claimedWinner string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":      models.MatchStatusDisputed,
		"disputed_by": userID,
		"disputed_at": now,
	}
	if claimedWinner != "" {
		updates["disputed_winner"] = claimedWinner
	}
	res := s.DB.Model(&models.Match{}).
		Where("id = ? AND status = ?", match.ID, models.MatchStatusPending).
		Updates(updates)
	if res.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to dispute match"})
	}
	if res.RowsAffected == 0 {
		return c.Status(409).JSON(fiber.Map{"error": "match is no longer pending"})
	}

	_ = s.Notifications.Notify(s.DB, match.SubmittedBy, models.NotificationMatchDisputed, map[string]interface{}{
		"match_id":    match.ID,
		"disputed_by": userID,
	})

	log.Printf("⚠️  Match %s disputed by %s (claimed winner: %s)", match.ID, userID, claimedWinner)
	s.DB.First(match, "id = ?", match.ID)
	return c.JSON(match)
}

// ResolveDispute lets support pick the final winner for a disputed match and
// then runs the normal verification path. Overturning a claim rewrites
// winner/loser before verification; a match that already verified can never
// be reversed.
func (s *MatchService) ResolveDispute(c *fiber.Ctx) error {
	type Req struct {
		WinnerID string `json:"winner_id"`
	}
	matchID := c.Params("id")
	resolverID := c.Locals("user_id").(string)

	if !hasRole(c, "admin") {
		return c.Status(403).JSON(fiber.Map{"error": "dispute resolution requires the admin role"})
	}

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.WinnerID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "winner_id required"})
	}

	var match models.Match
	if err := s.DB.First(&match, "id = ?", matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "match not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if req.WinnerID != match.WinnerID && req.WinnerID != match.LoserID {
		return c.Status(400).JSON(fiber.Map{"error": "winner_id must be one of the match participants"})
	}

	winner, loser := match.WinnerID, match.LoserID
	if req.WinnerID == match.LoserID {
		winner, loser = loser, winner
	}

	res := s.DB.Model(&models.Match{}).
		Where("id = ? AND status = ?", matchID, models.MatchStatusDisputed).
		Updates(map[string]interface{}{
			"winner_id": winner,
			"loser_id":  loser,
			"status":    models.MatchStatusPending,
		})
	if res.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to resolve dispute"})
	}
	if res.RowsAffected == 0 {
		return c.Status(409).JSON(fiber.Map{"error": "match is not disputed"})
	}

	fired, err := s.Verify(matchID, "resolution", &resolverID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "verification after resolution failed"})
	}
	if !fired {
		return c.Status(409).JSON(fiber.Map{"error": "match was settled concurrently"})
	}

	s.DB.First(&match, "id = ?", matchID)
	return c.JSON(match)
}

// GetMatch returns a single match.
func (s *MatchService) GetMatch(c *fiber.Ctx) error {
	var match models.Match
	if err := s.DB.First(&match, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "match not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(match)
}

// Verify performs the pending → verified transition and fires the
// exactly-once side effects: rating update, challenge completion, payment
// release, result posters and notifications — all in one transaction. The
// guarded update is the gate: whoever flips the row first wins, every other
// attempt sees zero rows affected and no-ops. Returns whether this call won.
func (s *MatchService) Verify(matchID, via string, resolvedBy *string) (bool, error) {
	fired := false
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var match models.Match
		if err := tx.First(&match, "id = ?", matchID).Error; err != nil {
			return err
		}

		now := time.Now()
		res := tx.Model(&models.Match{}).
			Where("id = ? AND status = ?", matchID, models.MatchStatusPending).
			Updates(map[string]interface{}{
				"status":       models.MatchStatusVerified,
				"verified":     true,
				"verified_at":  now,
				"verified_via": via,
				"resolved_by":  resolvedBy,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race or already settled/disputed.
			return nil
		}
		fired = true

		var challenge models.Challenge
		if err := tx.First(&challenge, "id = ?", match.ChallengeID).Error; err != nil {
			return fmt.Errorf("challenge lookup: %w", err)
		}

		if err := s.Ratings.ApplyVerifiedMatch(tx, &match, challenge.Sport); err != nil {
			return fmt.Errorf("rating update: %w", err)
		}

		// A canceled challenge keeps its status; its payments were already
		// refunded so release below touches nothing.
		if err := tx.Model(&models.Challenge{}).
			Where("id = ? AND status = ?", match.ChallengeID, models.ChallengeStatusAccepted).
			Update("status", models.ChallengeStatusCompleted).Error; err != nil {
			return err
		}

		released, err := s.Payments.ReleaseChallengePayments(tx, match.ChallengeID, match.WinnerID)
		if err != nil {
			return fmt.Errorf("payment release: %w", err)
		}

		posts := []models.Post{
			{ID: uuid.NewString(), UserID: match.WinnerID, MatchID: &match.ID, Type: "win"},
			{ID: uuid.NewString(), UserID: match.LoserID, MatchID: &match.ID, Type: "lose"},
		}
		if err := tx.Create(&posts).Error; err != nil {
			return err
		}

		for _, userID := range []string{match.WinnerID, match.LoserID} {
			if err := s.Notifications.Notify(tx, userID, models.NotificationMatchVerified, map[string]interface{}{
				"match_id":     match.ID,
				"challenge_id": match.ChallengeID,
				"winner_id":    match.WinnerID,
				"via":          via,
			}); err != nil {
				return err
			}
		}
		for _, p := range released {
			if err := s.Notifications.Notify(tx, match.WinnerID, models.NotificationPayoutReleased, map[string]interface{}{
				"payment_id":   p.ID,
				"challenge_id": p.ChallengeID,
				"amount":       p.Amount,
			}); err != nil {
				return err
			}
		}

		log.Printf("✅ Match %s verified via %s (winner %s)", matchID, via, match.WinnerID)
		return nil
	})
	if err != nil {
		return false, err
	}

	if fired {
		// Ranks are a batch derivation; re-running is always safe.
		if err := s.Leaderboard.RecalculateRanks(); err != nil {
			log.Printf("[Ranks] ⚠️ Recompute after match %s failed (scheduler will retry): %v", matchID, err)
		}
	}
	return fired, nil
}

// AutoVerifyPending applies the timeout policy: pending matches older than
// the configured window with no dispute are verified. Called by the
// scheduler.
func (s *MatchService) AutoVerifyPending() {
	cutoff := time.Now().Add(-s.AutoVerifyAfter)

	var stale []models.Match
	if err := s.DB.Where("status = ? AND created_at <= ?", models.MatchStatusPending, cutoff).
		Find(&stale).Error; err != nil {
		log.Printf("[Scheduler] DB error fetching stale matches: %v", err)
		return
	}

	for _, m := range stale {
		fired, err := s.Verify(m.ID, "timeout", nil)
		if err != nil {
			log.Printf("[Scheduler] Failed to auto-verify match %s: %v", m.ID, err)
			continue
		}
		if fired {
			log.Printf("⏱️  Auto-verified match %s after %s", m.ID, s.AutoVerifyAfter)
		}
	}
}

// challengeMembers returns the set of users allowed to appear in or act on a
// result: the creator plus accepted participants.
func (s *MatchService) challengeMembers(tx *gorm.DB, challenge *models.Challenge) (map[string]bool, error) {
	members := map[string]bool{challenge.CreatorID: true}

	var participants []models.ChallengeParticipant
	if err := tx.Where("challenge_id = ? AND status = ?", challenge.ID, models.ParticipantStatusAccepted).
		Find(&participants).Error; err != nil {
		return nil, err
	}
	for _, p := range participants {
		members[p.UserID] = true
	}
	return members, nil
}

// loadMatchForParty fetches a match and checks the acting user is one of the
// challenge members.
func (s *MatchService) loadMatchForParty(matchID, userID string) (*models.Match, *models.Challenge, int, fiber.Map) {
	var match models.Match
	if err := s.DB.First(&match, "id = ?", matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, 404, fiber.Map{"error": "match not found"}
		}
		return nil, nil, 500, fiber.Map{"error": "database error"}
	}

	var challenge models.Challenge
	if err := s.DB.First(&challenge, "id = ?", match.ChallengeID).Error; err != nil {
		return nil, nil, 500, fiber.Map{"error": "database error"}
	}

	members, err := s.challengeMembers(s.DB, &challenge)
	if err != nil {
		return nil, nil, 500, fiber.Map{"error": "failed to load participants"}
	}
	if !members[userID] {
		return nil, nil, 403, fiber.Map{"error": "not a participant of this challenge"}
	}
	return &match, &challenge, 0, nil
}

func hasRole(c *fiber.Ctx, role string) bool {
	roles, _ := c.Locals("user_roles").([]string)
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
