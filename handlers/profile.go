// handlers/profile.go
package handlers

import (
	"sportconnect/middleware"
	"sportconnect/services"

	"github.com/gofiber/fiber/v2"
)

func SetupProfileRoutes(app *fiber.App, profileService *services.ProfileService, phoneService *services.PhoneService) {
	// 🔐 Secured routes — require user context (userID, roles)
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/users/search", profileService.SearchUsers)
	secured.Get("/users/:user_id", profileService.GetProfile)

	secured.Patch("/user/profile", profileService.UpdateProfile)
	secured.Put("/user/sports", profileService.ReplaceSports)
	secured.Put("/user/location", profileService.UpsertLocation)
	secured.Post("/user/avatar", profileService.UploadAvatar)

	secured.Post("/user/phone/send-code", phoneService.SendCode)
	secured.Post("/user/phone/verify", phoneService.VerifyCode)
}
