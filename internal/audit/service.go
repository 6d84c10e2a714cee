package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"farm-market-backend/internal/auth"
	"farm-market-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	EntityFarm    = "farm"
	EntityCrop    = "crop"
	EntityListing = "listing"
)

type LogOptions struct {
	UserID      uint
	Username    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

func snapshot(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func WriteLog(ctx context.Context, db *gorm.DB, opts LogOptions) error {
	entry := models.AuditLog{
		UserID:      opts.UserID,
		Username:    opts.Username,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  snapshot(opts.Before),
		AfterData:   snapshot(opts.After),
	}

	if err := db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// Recorder writes audit rows on behalf of the HTTP handlers.
type Recorder struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewRecorder(db *gorm.DB, log *zap.Logger) *Recorder {
	return &Recorder{db: db, log: log.Named("audit")}
}

// Record writes an audit row for the caller of c. A failed write is logged
// and never fails the request.
func (r *Recorder) Record(c *fiber.Ctx, opts LogOptions) {
	actor := auth.CurrentActor(c)
	opts.UserID = actor.UserID
	opts.Username = actor.Username

	if err := WriteLog(c.UserContext(), r.db, opts); err != nil {
		r.log.Warn("audit log dropped",
			zap.Error(err),
			zap.String("entity_type", opts.EntityType),
			zap.Uint("entity_id", opts.EntityID),
			zap.String("action", string(opts.Action)))
	}
}
