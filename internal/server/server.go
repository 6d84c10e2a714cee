// Package server assembles the fiber application: middleware, error handling
// and every API route.
package server

import (
	"strings"
	"time"

	"farm-market-backend/internal/audit"
	"farm-market-backend/internal/auth"
	"farm-market-backend/internal/config"
	"farm-market-backend/internal/crops"
	"farm-market-backend/internal/farms"
	"farm-market-backend/internal/health"
	"farm-market-backend/internal/httpx"
	"farm-market-backend/internal/importer"
	"farm-market-backend/internal/logging"
	"farm-market-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func New(cfg *config.Config, db *gorm.DB, log *zap.Logger, issuer *auth.TokenIssuer) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "farm-market",
		ErrorHandler: httpx.ErrorHandler(log),
		BodyLimit:    8 << 20,
	})

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}

	app.Use(requestid.New())
	app.Use(logging.RequestLogger(log))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	api := app.Group("/api")
	requireAuth := auth.JWTMiddleware(issuer)
	recorder := audit.NewRecorder(db, log)

	api.Get("/health", health.HealthHandler(db, time.Now()))

	// Auth
	api.Post("/auth/register", auth.RegisterHandler(db, issuer))
	api.Post("/auth/login", auth.LoginHandler(db, issuer))
	api.Post("/auth/logout", auth.LogoutHandler())
	api.Get("/auth/profile", requireAuth, auth.ProfileHandler(db))
	api.Put("/auth/profile", requireAuth, auth.UpdateProfileHandler(db))
	api.Post("/auth/refresh", requireAuth, auth.RefreshHandler(db, issuer))
	api.Get("/auth/verify", requireAuth, auth.VerifyHandler())

	// Farms
	api.Get("/farms", farms.ListFarmsHandler(db))
	api.Get("/farms/stats/overview", farms.FarmStatsHandler(db))
	api.Get("/farms/:id", farms.GetFarmHandler(db))
	api.Post("/farms", requireAuth, farms.CreateFarmHandler(db, recorder))
	api.Put("/farms/:id", requireAuth, farms.UpdateFarmHandler(db, recorder))
	api.Delete("/farms/:id", requireAuth, farms.DeleteFarmHandler(db, recorder))

	// Listings
	api.Post("/farms/:id/crops", requireAuth, farms.CreateListingHandler(db, recorder))
	api.Put("/farms/:id/crops/:listingId", requireAuth, farms.UpdateListingHandler(db, recorder))
	api.Delete("/farms/:id/crops/:listingId", requireAuth, farms.DeleteListingHandler(db, recorder))

	// Crops
	api.Get("/crops", crops.ListCropsHandler(db))
	api.Get("/crops/stats/overview", crops.CropStatsHandler(db))
	api.Get("/crops/category/:category", crops.CropsByCategoryHandler(db))
	api.Get("/crops/season/:season", crops.CropsBySeasonHandler(db))
	api.Get("/crops/:id", crops.GetCropHandler(db))
	api.Post("/crops", requireAuth, crops.CreateCropHandler(db, recorder))
	api.Put("/crops/:id", requireAuth, crops.UpdateCropHandler(db, recorder))
	api.Delete("/crops/:id", requireAuth, crops.DeleteCropHandler(db, recorder))

	// Admin
	adminOnly := auth.RequireRole(models.RoleAdmin)
	api.Get("/audit-logs", requireAuth, adminOnly, audit.ListAuditLogsHandler(db))
	api.Post("/import", requireAuth, adminOnly, importer.ImportHandler(importer.New(db, log)))

	return app
}
