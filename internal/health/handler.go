package health

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const pingTimeout = 800 * time.Millisecond

type check struct {
	OK  bool   `json:"ok"`
	Err string `json:"err,omitempty"`
}

// GET /api/health
func HealthHandler(db *gorm.DB, started time.Time) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), pingTimeout)
		defer cancel()

		dbCheck := check{OK: true}
		if db == nil {
			dbCheck = check{Err: "database not configured"}
		} else if sqlDB, err := db.DB(); err != nil {
			dbCheck = check{Err: "db.DB(): " + err.Error()}
		} else if err := sqlDB.PingContext(ctx); err != nil {
			dbCheck = check{Err: "ping: " + err.Error()}
		}

		status, code := "OK", fiber.StatusOK
		if !dbCheck.OK {
			status, code = "DEGRADED", fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"success":    dbCheck.OK,
			"status":     status,
			"uptime_sec": int(time.Since(started).Seconds()),
			"checks":     fiber.Map{"database": dbCheck},
			"timestamp":  time.Now().Format(time.RFC3339),
		})
	}
}
