package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sportconnect/handlers"
	"sportconnect/middleware"
	"sportconnect/models"
	"sportconnect/services"
	"sportconnect/utils"
	"sportconnect/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // avatar uploads are capped well below this
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Session-Token, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.UserSport{},
		&models.UserLocation{},
		&models.PhoneVerification{},
		&models.Challenge{},
		&models.ChallengeParticipant{},
		&models.Match{},
		&models.EloHistory{},
		&models.UserRanking{},
		&models.Payment{},
		&models.Notification{},
		&models.Post{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	ratingService := services.NewRatingService(db)
	paymentService := services.NewPaymentService(db)
	notificationService := services.NewNotificationService(db)
	leaderboardService := services.NewLeaderboardService(db)
	profileService := services.NewProfileService(db)
	phoneService := services.NewPhoneService(db)
	challengeService := services.NewChallengeService(db, paymentService, notificationService)
	matchService := services.NewMatchService(db, ratingService, paymentService, leaderboardService, notificationService)

	authServiceURL := os.Getenv("AUTH_SERVICE_URL")
	if authServiceURL == "" {
		log.Fatal("AUTH_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("SPORT_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("SPORT_SERVICE_TOKEN environment variable not set")
	}
	authClient := services.NewAuthServiceClient(authServiceURL, serviceToken)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	userSyncWorker := workers.NewUserSyncWorker(db, authServiceURL, "/api/v1/public/profiles", serviceToken)
	userSyncWorker.Start(ctx)

	paymentSyncClient := workers.NewPaymentSyncClient(db)
	go workers.PollPayments(ctx, paymentSyncClient, 10*time.Second)

	services.StartSchedulers(matchService, leaderboardService)

	// ✅ Setup routes — enforced Gateway auth + user context per group
	handlers.SetupProfileRoutes(app, profileService, phoneService)
	handlers.SetupChallengeRoutes(app, challengeService)
	handlers.SetupMatchRoutes(app, matchService)
	handlers.SetupLeaderboardRoutes(app, leaderboardService, paymentService)
	handlers.SetupNotificationRoutes(app, notificationService, authClient)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ User Sync Worker running")
	log.Println("✅ Payment reconciliation polling running (every 10s)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
