// handlers/notification.go
package handlers

import (
	"sportconnect/middleware"
	"sportconnect/services"

	"github.com/gofiber/fiber/v2"
)

func SetupNotificationRoutes(app *fiber.App, notificationService *services.NotificationService, authClient *services.AuthServiceClient) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/user/notifications", notificationService.GetUserNotifications)
	secured.Post("/user/notifications/read", notificationService.MarkNotificationsRead)
	secured.Get("/users/:user_id/feed", notificationService.GetUserFeed)

	// SSE stream authenticates via query token, not gateway headers
	app.Get("/user/notifications/stream",
		middleware.SSEAuthMiddleware(authClient),
		notificationService.StreamNotificationsSSE)
}
