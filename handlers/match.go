// handlers/match.go
package handlers

import (
	"sportconnect/middleware"
	"sportconnect/services"

	"github.com/gofiber/fiber/v2"
)

func SetupMatchRoutes(app *fiber.App, matchService *services.MatchService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/challenges/:id/result", matchService.SubmitResult)
	secured.Get("/matches/:id", matchService.GetMatch)
	secured.Post("/matches/:id/confirm", matchService.ConfirmResult)
	secured.Post("/matches/:id/attest", matchService.AttestResult)
	secured.Post("/matches/:id/dispute", matchService.DisputeResult)

	// Admin endpoints
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware())
	adminGroup.Post("/matches/:id/resolve", matchService.ResolveDispute)
}
