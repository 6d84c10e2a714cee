package farms

import (
	"errors"
	"fmt"

	"farm-market-backend/internal/audit"
	"farm-market-backend/internal/httpx"
	"farm-market-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreateListingRequest struct {
	CropID    uint     `json:"crop_id" validate:"required"`
	Quantity  int      `json:"quantity" validate:"gte=0"`
	Price     *float64 `json:"price" validate:"required,gte=0"`
	Available *bool    `json:"available"`
}

type UpdateListingRequest struct {
	Quantity  *int     `json:"quantity" validate:"omitempty,gte=0"`
	Price     *float64 `json:"price" validate:"omitempty,gte=0"`
	Available *bool    `json:"available"`
}

// ListingResponse is a crop as offered by one farm.
type ListingResponse struct {
	ListingID   uint                `json:"listing_id"`
	ID          uint                `json:"id"`
	Name        string              `json:"name"`
	Category    models.CropCategory `json:"category"`
	Season      string              `json:"season"`
	Origin      string              `json:"origin"`
	Description string              `json:"description"`
	Emoji       string              `json:"emoji"`
	Quantity    int                 `json:"quantity"`
	Price       float64             `json:"price"`
	Available   bool                `json:"available"`
}

func toListingResponse(l *models.FarmCrop) ListingResponse {
	return ListingResponse{
		ListingID:   l.ID,
		ID:          l.CropID,
		Name:        l.Crop.Name,
		Category:    l.Crop.Category,
		Season:      l.Crop.Season,
		Origin:      l.Crop.Origin,
		Description: l.Crop.Description,
		Emoji:       l.Crop.Emoji,
		Quantity:    l.Quantity,
		Price:       l.Price,
		Available:   l.Available,
	}
}

func listingSnapshot(l *models.FarmCrop) map[string]any {
	return map[string]any{
		"id":        l.ID,
		"farm_id":   l.FarmID,
		"crop_id":   l.CropID,
		"quantity":  l.Quantity,
		"price":     l.Price,
		"available": l.Available,
	}
}

func findListing(c *fiber.Ctx, db *gorm.DB) (*models.FarmCrop, error) {
	farmID, err := httpx.ParamID(c, "id")
	if err != nil {
		return nil, err
	}
	listingID, err := httpx.ParamID(c, "listingId")
	if err != nil {
		return nil, err
	}

	var listing models.FarmCrop
	err = db.WithContext(c.UserContext()).
		Preload("Crop").
		Where("id = ? AND farm_id = ?", listingID, farmID).
		First(&listing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fiber.NewError(fiber.StatusNotFound, "Listing not found")
	}
	if err != nil {
		return nil, httpx.Internal(err, "Failed to fetch listing")
	}
	return &listing, nil
}

// POST /api/farms/:id/crops
func CreateListingHandler(db *gorm.DB, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		farmID, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body CreateListingRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}

		farm, err := findFarm(c, db, farmID)
		if err != nil {
			return err
		}

		tx := db.WithContext(c.UserContext())
		var crop models.Crop
		if err := tx.First(&crop, body.CropID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "Crop not found")
			}
			return httpx.Internal(err, "Failed to fetch crop")
		}

		listing := models.FarmCrop{
			FarmID:    farm.ID,
			CropID:    crop.ID,
			Quantity:  body.Quantity,
			Price:     *body.Price,
			Available: body.Available == nil || *body.Available,
		}
		if err := tx.Omit(clause.Associations).Create(&listing).Error; err != nil {
			return httpx.Internal(err, "Failed to add crop to farm")
		}
		listing.Crop = crop

		rec.Record(c, audit.LogOptions{
			EntityType:  audit.EntityListing,
			EntityID:    listing.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("%s listed by %s", crop.Name, farm.Name),
			After:       listingSnapshot(&listing),
		})

		return httpx.Created(c, fiber.Map{
			"message": "Crop added to farm successfully",
			"listing": toListingResponse(&listing),
		})
	}
}

// PUT /api/farms/:id/crops/:listingId
func UpdateListingHandler(db *gorm.DB, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body UpdateListingRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		if body.Quantity == nil && body.Price == nil && body.Available == nil {
			return fiber.NewError(fiber.StatusBadRequest, "No valid fields to update")
		}

		listing, err := findListing(c, db)
		if err != nil {
			return err
		}
		before := listingSnapshot(listing)

		if body.Quantity != nil {
			listing.Quantity = *body.Quantity
		}
		if body.Price != nil {
			listing.Price = *body.Price
		}
		if body.Available != nil {
			listing.Available = *body.Available
		}

		if err := db.WithContext(c.UserContext()).Omit(clause.Associations).Save(listing).Error; err != nil {
			return httpx.Internal(err, "Failed to update listing")
		}

		rec.Record(c, audit.LogOptions{
			EntityType:  audit.EntityListing,
			EntityID:    listing.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Listing of %s updated", listing.Crop.Name),
			Before:      before,
			After:       listingSnapshot(listing),
		})

		return httpx.OK(c, fiber.Map{
			"message": "Listing updated successfully",
			"listing": toListingResponse(listing),
		})
	}
}

// DELETE /api/farms/:id/crops/:listingId
func DeleteListingHandler(db *gorm.DB, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		listing, err := findListing(c, db)
		if err != nil {
			return err
		}

		if err := db.WithContext(c.UserContext()).Delete(&models.FarmCrop{}, listing.ID).Error; err != nil {
			return httpx.Internal(err, "Failed to remove listing")
		}

		rec.Record(c, audit.LogOptions{
			EntityType:  audit.EntityListing,
			EntityID:    listing.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Listing of %s removed", listing.Crop.Name),
			Before:      listingSnapshot(listing),
		})

		return httpx.OK(c, fiber.Map{"message": "Listing removed successfully"})
	}
}
