// handlers/leaderboard.go
package handlers

import (
	"log"

	"sportconnect/middleware"
	"sportconnect/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLeaderboardRoutes(app *fiber.App, leaderboardService *services.LeaderboardService, paymentService *services.PaymentService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/leaderboard", leaderboardService.GetLeaderboard)
	secured.Get("/users/:user_id/rankings", leaderboardService.GetUserRankings)
	secured.Get("/user/payments", paymentService.GetUserPayments)

	// Admin endpoints
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware())

	adminGroup.Post("/leaderboard/recalculate", func(c *fiber.Ctx) error {
		if err := leaderboardService.RecalculateRanks(); err != nil {
			log.Printf("❌ Manual rank recompute failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "rank recompute failed",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"message": "ranks recalculated"})
	})
}
