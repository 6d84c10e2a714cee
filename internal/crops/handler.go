package crops

import (
	"errors"
	"fmt"
	"strings"

	"farm-market-backend/internal/audit"
	"farm-market-backend/internal/httpx"
	"farm-market-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CreateCropRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Category    string `json:"category" validate:"required,oneof=fruits vegetables"`
	Season      string `json:"season" validate:"required,min=2,max=50"`
	Origin      string `json:"origin" validate:"required,min=2,max=200"`
	Description string `json:"description" validate:"max=500"`
	Emoji       string `json:"emoji" validate:"max=10"`
}

type UpdateCropRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=100"`
	Category    *string `json:"category" validate:"omitempty,oneof=fruits vegetables"`
	Season      *string `json:"season" validate:"omitempty,min=2,max=50"`
	Origin      *string `json:"origin" validate:"omitempty,min=2,max=200"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Emoji       *string `json:"emoji" validate:"omitempty,max=10"`
}

type CropStats struct {
	TotalCrops int64 `json:"total_crops"`
	Categories int64 `json:"categories"`
	Seasons    int64 `json:"seasons"`
	Origins    int64 `json:"origins"`
}

func cropSnapshot(c *models.Crop) map[string]any {
	return map[string]any{
		"id":          c.ID,
		"name":        c.Name,
		"category":    c.Category,
		"season":      c.Season,
		"origin":      c.Origin,
		"description": c.Description,
		"emoji":       c.Emoji,
	}
}

func findCrop(c *fiber.Ctx, db *gorm.DB) (*models.Crop, error) {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return nil, err
	}
	var crop models.Crop
	err = db.WithContext(c.UserContext()).First(&crop, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fiber.NewError(fiber.StatusNotFound, "Crop not found")
	}
	if err != nil {
		return nil, httpx.Internal(err, "Failed to fetch crop")
	}
	return &crop, nil
}

func seasonMatch(q *gorm.DB, season string) *gorm.DB {
	return q.Where("(season = ? OR season = ?)", season, models.SeasonYearRound)
}

func listCrops(c *fiber.Ctx, q *gorm.DB) error {
	var crops []models.Crop
	if err := q.Order("name ASC").Order("id ASC").Find(&crops).Error; err != nil {
		return httpx.Internal(err, "Failed to fetch crops")
	}
	return httpx.OK(c, fiber.Map{"count": len(crops), "crops": crops})
}

// GET /api/crops?category=&season=&origin=&search=
func ListCropsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := db.WithContext(c.UserContext()).Model(&models.Crop{})

		if category := strings.TrimSpace(c.Query("category")); category != "" {
			q = q.Where("category = ?", category)
		}
		if season := strings.TrimSpace(c.Query("season")); season != "" {
			q = seasonMatch(q, season)
		}
		if origin := strings.TrimSpace(c.Query("origin")); origin != "" {
			q = q.Where("origin LIKE ?", "%"+origin+"%")
		}
		if search := strings.TrimSpace(c.Query("search")); search != "" {
			like := "%" + search + "%"
			q = q.Where("(name LIKE ? OR description LIKE ?)", like, like)
		}

		return listCrops(c, q)
	}
}

// GET /api/crops/:id
func GetCropHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		crop, err := findCrop(c, db)
		if err != nil {
			return err
		}
		return httpx.OK(c, fiber.Map{"crop": crop})
	}
}

// GET /api/crops/category/:category
func CropsByCategoryHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		category := models.CropCategory(strings.ToLower(c.Params("category")))
		if !category.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid category. Must be 'fruits' or 'vegetables'")
		}
		return listCrops(c, db.WithContext(c.UserContext()).Where("category = ?", category))
	}
}

// GET /api/crops/season/:season
func CropsBySeasonHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		season := strings.TrimSpace(c.Params("season"))
		return listCrops(c, seasonMatch(db.WithContext(c.UserContext()), season))
	}
}

// POST /api/crops
func CreateCropHandler(db *gorm.DB, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateCropRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		body.Name = strings.TrimSpace(body.Name)
		body.Season = strings.TrimSpace(body.Season)
		body.Origin = strings.TrimSpace(body.Origin)
		body.Emoji = strings.TrimSpace(body.Emoji)
		if err := httpx.Validate(&body); err != nil {
			return err
		}

		crop := models.Crop{
			Name:        body.Name,
			Category:    models.CropCategory(body.Category),
			Season:      body.Season,
			Origin:      body.Origin,
			Description: strings.TrimSpace(body.Description),
			Emoji:       body.Emoji,
		}
		if crop.Emoji == "" {
			crop.Emoji = models.DefaultCropEmoji
		}

		if err := db.WithContext(c.UserContext()).Create(&crop).Error; err != nil {
			return httpx.Internal(err, "Failed to create crop")
		}

		rec.Record(c, audit.LogOptions{
			EntityType:  audit.EntityCrop,
			EntityID:    crop.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Crop created: %s (%s)", crop.Name, crop.Origin),
			After:       cropSnapshot(&crop),
		})

		return httpx.Created(c, fiber.Map{
			"message": "Crop created successfully",
			"crop_id": crop.ID,
		})
	}
}

func (r *UpdateCropRequest) apply(crop *models.Crop) bool {
	updated := false
	if r.Name != nil {
		crop.Name = *r.Name
		updated = true
	}
	if r.Category != nil {
		crop.Category = models.CropCategory(*r.Category)
		updated = true
	}
	if r.Season != nil {
		crop.Season = *r.Season
		updated = true
	}
	if r.Origin != nil {
		crop.Origin = *r.Origin
		updated = true
	}
	if r.Description != nil {
		crop.Description = *r.Description
		updated = true
	}
	if r.Emoji != nil {
		crop.Emoji = *r.Emoji
		if crop.Emoji == "" {
			crop.Emoji = models.DefaultCropEmoji
		}
		updated = true
	}
	return updated
}

// PUT /api/crops/:id
func UpdateCropHandler(db *gorm.DB, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body UpdateCropRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		for _, s := range []*string{body.Name, body.Season, body.Origin, body.Description, body.Emoji} {
			if s != nil {
				*s = strings.TrimSpace(*s)
			}
		}
		if err := httpx.Validate(&body); err != nil {
			return err
		}

		crop, err := findCrop(c, db)
		if err != nil {
			return err
		}
		before := cropSnapshot(crop)

		if !body.apply(crop) {
			return fiber.NewError(fiber.StatusBadRequest, "No valid fields to update")
		}

		if err := db.WithContext(c.UserContext()).Save(crop).Error; err != nil {
			return httpx.Internal(err, "Failed to update crop")
		}

		rec.Record(c, audit.LogOptions{
			EntityType:  audit.EntityCrop,
			EntityID:    crop.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Crop updated: %s", crop.Name),
			Before:      before,
			After:       cropSnapshot(crop),
		})

		return httpx.OK(c, fiber.Map{
			"message": "Crop updated successfully",
			"crop":    crop,
		})
	}
}

// DELETE /api/crops/:id. Refused while any farm lists the crop.
func DeleteCropHandler(db *gorm.DB, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		crop, err := findCrop(c, db)
		if err != nil {
			return err
		}
		tx := db.WithContext(c.UserContext())

		var linked int64
		if err := tx.Model(&models.FarmCrop{}).Where("crop_id = ?", crop.ID).Count(&linked).Error; err != nil {
			return httpx.Internal(err, "Failed to check crop usage")
		}
		if linked > 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success":      false,
				"error":        "Cannot delete crop that is associated with farms",
				"linked_farms": linked,
			})
		}

		if err := tx.Delete(&models.Crop{}, crop.ID).Error; err != nil {
			return httpx.Internal(err, "Failed to delete crop")
		}

		rec.Record(c, audit.LogOptions{
			EntityType:  audit.EntityCrop,
			EntityID:    crop.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Crop deleted: %s", crop.Name),
			Before:      cropSnapshot(crop),
		})

		return httpx.OK(c, fiber.Map{"message": "Crop deleted successfully"})
	}
}

// GET /api/crops/stats/overview
func CropStatsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var stats CropStats
		err := db.WithContext(c.UserContext()).Model(&models.Crop{}).
			Select("COUNT(*) AS total_crops, COUNT(DISTINCT category) AS categories, COUNT(DISTINCT season) AS seasons, COUNT(DISTINCT origin) AS origins").
			Scan(&stats).Error
		if err != nil {
			return httpx.Internal(err, "Failed to fetch crop statistics")
		}
		return httpx.OK(c, fiber.Map{"stats": stats})
	}
}
