// handlers/challenge.go
package handlers

import (
	"sportconnect/middleware"
	"sportconnect/services"

	"github.com/gofiber/fiber/v2"
)

func SetupChallengeRoutes(app *fiber.App, challengeService *services.ChallengeService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/challenges", challengeService.CreateChallenge)
	secured.Get("/challenges/nearby", challengeService.NearbyChallenges)
	secured.Get("/user/challenges", challengeService.GetUserChallenges)
	secured.Get("/challenges/:id", challengeService.GetChallenge)
	secured.Post("/challenges/:id/join", challengeService.JoinChallenge)
	secured.Post("/challenges/:id/cancel", challengeService.CancelChallenge)
}
