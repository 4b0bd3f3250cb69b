// services/scheduler.go
package services

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartSchedulers wires the two periodic jobs: the auto-verification
// timeout sweep and the rank recomputation pass. Both jobs are idempotent,
// so overlapping a manual trigger is harmless.
func StartSchedulers(matches *MatchService, leaderboard *LeaderboardService) {
	recalcMinutes := 10
	if raw := os.Getenv("RANK_RECALC_MINUTES"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			recalcMinutes = v
		} else {
			log.Printf("⚠️  Invalid RANK_RECALC_MINUTES=%q, using default 10", raw)
		}
	}

	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: verify stale pending matches past the timeout window
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(matches.AutoVerifyPending),
	)

	// Safety-net rank recompute; the per-match trigger usually beats it
	_, _ = sched.NewJob(
		gocron.DurationJob(time.Duration(recalcMinutes)*time.Minute),
		gocron.NewTask(func() {
			if err := leaderboard.RecalculateRanks(); err != nil {
				log.Printf("[Scheduler] Rank recompute failed: %v", err)
			}
		}),
	)
}
