package farms

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"farm-market-backend/internal/audit"
	"farm-market-backend/internal/httpx"
	"farm-market-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// -------------------------
// Request/Response Types
// -------------------------

type CreateFarmRequest struct {
	Name        string   `json:"name" validate:"required,min=2,max=100"`
	Country     string   `json:"country" validate:"required,min=2,max=50"`
	Location    string   `json:"location" validate:"required,min=5,max=200"`
	Description string   `json:"description" validate:"max=500"`
	Website     string   `json:"website" validate:"max=500"`
	ImageURL    string   `json:"image_url" validate:"max=500"`
	Rating      *float64 `json:"rating" validate:"omitempty,gte=0,lte=5"`
	Icon        string   `json:"icon" validate:"max=10"`
}

type UpdateFarmRequest struct {
	Name        *string  `json:"name" validate:"omitempty,min=2,max=100"`
	Country     *string  `json:"country" validate:"omitempty,min=2,max=50"`
	Location    *string  `json:"location" validate:"omitempty,min=5,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=500"`
	Website     *string  `json:"website" validate:"omitempty,max=500"`
	ImageURL    *string  `json:"image_url" validate:"omitempty,max=500"`
	Rating      *float64 `json:"rating" validate:"omitempty,gte=0,lte=5"`
	Icon        *string  `json:"icon" validate:"omitempty,max=10"`
}

// FarmSummary is a farm in the list view with the names and categories of
// the crops it lists.
type FarmSummary struct {
	models.Farm
	Crops          []string `json:"crops"`
	CropCategories []string `json:"crop_categories"`
}

type FarmDetail struct {
	models.Farm
	Crops []ListingResponse `json:"crops"`
}

type FarmStats struct {
	TotalFarms       int64   `json:"total_farms"`
	AverageRating    float64 `json:"average_rating"`
	CountriesCovered int64   `json:"countries_covered"`
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

func farmSnapshot(f *models.Farm) map[string]any {
	return map[string]any{
		"id":          f.ID,
		"name":        f.Name,
		"country":     f.Country,
		"location":    f.Location,
		"description": f.Description,
		"website":     f.Website,
		"image_url":   f.ImageURL,
		"rating":      f.Rating,
		"icon":        f.Icon,
	}
}

func findFarm(c *fiber.Ctx, db *gorm.DB, id uint) (*models.Farm, error) {
	var farm models.Farm
	err := db.WithContext(c.UserContext()).First(&farm, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fiber.NewError(fiber.StatusNotFound, "Farm not found")
	}
	if err != nil {
		return nil, httpx.Internal(err, "Failed to fetch farm")
	}
	return &farm, nil
}

// -------------------------
// Farm CRUD
// -------------------------

// GET /api/farms?country=&crop_type=&season=&search=
func ListFarmsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tx := db.WithContext(c.UserContext())
		q := tx.Model(&models.Farm{})

		if country := strings.TrimSpace(c.Query("country")); country != "" {
			q = q.Where("farms.country = ?", country)
		}

		cropType := strings.TrimSpace(c.Query("crop_type"))
		season := strings.TrimSpace(c.Query("season"))
		if cropType != "" || season != "" {
			sub := tx.Model(&models.FarmCrop{}).
				Select("farm_crops.farm_id").
				Joins("JOIN crops ON crops.id = farm_crops.crop_id")
			if cropType != "" {
				sub = sub.Where("crops.category = ?", cropType)
			}
			if season != "" {
				sub = sub.Where("(crops.season = ? OR crops.season = ?)", season, models.SeasonYearRound)
			}
			q = q.Where("farms.id IN (?)", sub)
		}

		if search := strings.TrimSpace(c.Query("search")); search != "" {
			like := "%" + search + "%"
			q = q.Where("(farms.name LIKE ? OR farms.location LIKE ? OR farms.description LIKE ?)", like, like, like)
		}

		var farms []models.Farm
		if err := q.Order("farms.rating DESC").Order("farms.name ASC").Find(&farms).Error; err != nil {
			return httpx.Internal(err, "Failed to fetch farms")
		}

		summaries, err := summarize(tx, farms)
		if err != nil {
			return httpx.Internal(err, "Failed to fetch farms")
		}

		return httpx.OK(c, fiber.Map{"count": len(summaries), "farms": summaries})
	}
}

type farmCropRow struct {
	FarmID   uint
	Name     string
	Category string
}

// summarize attaches the unique crop names and categories listed by each farm.
func summarize(tx *gorm.DB, farms []models.Farm) ([]FarmSummary, error) {
	out := make([]FarmSummary, 0, len(farms))
	if len(farms) == 0 {
		return out, nil
	}

	ids := make([]uint, 0, len(farms))
	for _, f := range farms {
		ids = append(ids, f.ID)
	}

	var rows []farmCropRow
	err := tx.Model(&models.FarmCrop{}).
		Select("farm_crops.farm_id, crops.name, crops.category").
		Joins("JOIN crops ON crops.id = farm_crops.crop_id").
		Where("farm_crops.farm_id IN ?", ids).
		Order("farm_crops.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	names := map[uint][]string{}
	categories := map[uint][]string{}
	for _, r := range rows {
		names[r.FarmID] = appendUnique(names[r.FarmID], r.Name)
		categories[r.FarmID] = appendUnique(categories[r.FarmID], r.Category)
	}

	for _, f := range farms {
		s := FarmSummary{Farm: f, Crops: names[f.ID], CropCategories: categories[f.ID]}
		if s.Crops == nil {
			s.Crops = []string{}
			s.CropCategories = []string{}
		}
		out = append(out, s)
	}
	return out, nil
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// GET /api/farms/:id
func GetFarmHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		farm, err := findFarm(c, db, id)
		if err != nil {
			return err
		}

		var listings []models.FarmCrop
		if err := db.WithContext(c.UserContext()).
			Preload("Crop").
			Where("farm_id = ?", farm.ID).
			Order("id ASC").
			Find(&listings).Error; err != nil {
			return httpx.Internal(err, "Failed to fetch farm crops")
		}

		detail := FarmDetail{Farm: *farm, Crops: make([]ListingResponse, 0, len(listings))}
		for i := range listings {
			detail.Crops = append(detail.Crops, toListingResponse(&listings[i]))
		}

		return httpx.OK(c, fiber.Map{"farm": detail})
	}
}

// POST /api/farms
func CreateFarmHandler(db *gorm.DB, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateFarmRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		body.Name = strings.TrimSpace(body.Name)
		body.Country = strings.TrimSpace(body.Country)
		body.Location = strings.TrimSpace(body.Location)
		body.Icon = strings.TrimSpace(body.Icon)
		if err := httpx.Validate(&body); err != nil {
			return err
		}

		farm := models.Farm{
			Name:        body.Name,
			Country:     body.Country,
			Location:    body.Location,
			Description: strings.TrimSpace(body.Description),
			Website:     strings.TrimSpace(body.Website),
			ImageURL:    strings.TrimSpace(body.ImageURL),
			Icon:        body.Icon,
		}
		if body.Rating != nil {
			farm.Rating = *body.Rating
		}
		if farm.Icon == "" {
			farm.Icon = models.DefaultFarmIcon
		}

		if err := db.WithContext(c.UserContext()).Create(&farm).Error; err != nil {
			return httpx.Internal(err, "Failed to create farm")
		}

		rec.Record(c, audit.LogOptions{
			EntityType:  audit.EntityFarm,
			EntityID:    farm.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Farm created: %s", farm.Name),
			After:       farmSnapshot(&farm),
		})

		return httpx.Created(c, fiber.Map{
			"message": "Farm created successfully",
			"farm_id": farm.ID,
		})
	}
}

// apply copies every supplied field onto f and reports whether any was set.
func (r *UpdateFarmRequest) apply(f *models.Farm) bool {
	updated := false
	if r.Name != nil {
		f.Name = *r.Name
		updated = true
	}
	if r.Country != nil {
		f.Country = *r.Country
		updated = true
	}
	if r.Location != nil {
		f.Location = *r.Location
		updated = true
	}
	if r.Description != nil {
		f.Description = *r.Description
		updated = true
	}
	if r.Website != nil {
		f.Website = *r.Website
		updated = true
	}
	if r.ImageURL != nil {
		f.ImageURL = *r.ImageURL
		updated = true
	}
	if r.Rating != nil {
		f.Rating = *r.Rating
		updated = true
	}
	if r.Icon != nil {
		f.Icon = *r.Icon
		if f.Icon == "" {
			f.Icon = models.DefaultFarmIcon
		}
		updated = true
	}
	return updated
}

// PUT /api/farms/:id
func UpdateFarmHandler(db *gorm.DB, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}

		var body UpdateFarmRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		for _, s := range []*string{body.Name, body.Country, body.Location, body.Description, body.Website, body.ImageURL, body.Icon} {
			trimPtr(s)
		}
		if err := httpx.Validate(&body); err != nil {
			return err
		}

		farm, err := findFarm(c, db, id)
		if err != nil {
			return err
		}
		before := farmSnapshot(farm)

		if !body.apply(farm) {
			return fiber.NewError(fiber.StatusBadRequest, "No valid fields to update")
		}

		if err := db.WithContext(c.UserContext()).Save(farm).Error; err != nil {
			return httpx.Internal(err, "Failed to update farm")
		}

		rec.Record(c, audit.LogOptions{
			EntityType:  audit.EntityFarm,
			EntityID:    farm.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Farm updated: %s", farm.Name),
			Before:      before,
			After:       farmSnapshot(farm),
		})

		return httpx.OK(c, fiber.Map{
			"message": "Farm updated successfully",
			"farm":    farm,
		})
	}
}

// DELETE /api/farms/:id. Listings of the farm go with it.
func DeleteFarmHandler(db *gorm.DB, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		farm, err := findFarm(c, db, id)
		if err != nil {
			return err
		}

		res := db.WithContext(c.UserContext()).Delete(&models.Farm{}, farm.ID)
		if res.Error != nil {
			return httpx.Internal(res.Error, "Failed to delete farm")
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusNotFound, "Farm not found")
		}

		rec.Record(c, audit.LogOptions{
			EntityType:  audit.EntityFarm,
			EntityID:    farm.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Farm deleted: %s", farm.Name),
			Before:      farmSnapshot(farm),
		})

		return httpx.OK(c, fiber.Map{
			"message":       "Farm deleted successfully",
			"rows_affected": res.RowsAffected,
		})
	}
}

// GET /api/farms/stats/overview
func FarmStatsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var stats FarmStats
		err := db.WithContext(c.UserContext()).Model(&models.Farm{}).
			Select("COUNT(*) AS total_farms, COALESCE(AVG(rating), 0) AS average_rating, COUNT(DISTINCT country) AS countries_covered").
			Scan(&stats).Error
		if err != nil {
			return httpx.Internal(err, "Failed to fetch farm statistics")
		}
		stats.AverageRating = math.Round(stats.AverageRating*10) / 10

		return httpx.OK(c, fiber.Map{"stats": stats})
	}
}
