// Package importer loads batches of farms and their crop listings into the
// catalog. A batch is applied in a single transaction: either every valid
// record is stored or nothing is.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"farm-market-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Options struct {
	// Reset removes every listing, farm and crop before the batch is applied.
	Reset bool
}

type Result struct {
	FarmsImported   int      `json:"farms_imported"`
	FarmsSkipped    int      `json:"farms_skipped"`
	CropsCreated    int      `json:"crops_created"`
	CropsReused     int      `json:"crops_reused"`
	ListingsCreated int      `json:"listings_created"`
	ListingsSkipped int      `json:"listings_skipped"`
	Warnings        []string `json:"warnings"`
}

type Importer struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(db *gorm.DB, log *zap.Logger) *Importer {
	return &Importer{db: db, log: log}
}

// Reset deletes all catalog data, links first so foreign keys hold.
func (im *Importer) Reset(ctx context.Context) error {
	db := im.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{&models.FarmCrop{}, &models.Farm{}, &models.Crop{}} {
		if err := db.Delete(model).Error; err != nil {
			return fmt.Errorf("reset %T: %w", model, err)
		}
	}
	return nil
}

// Run applies records in order. Records missing required fields are skipped
// with a warning; any storage error rolls the whole batch back.
func (im *Importer) Run(ctx context.Context, records []FarmRecord, opts Options) (*Result, error) {
	if opts.Reset {
		im.log.Info("resetting farm, crop and listing data")
		if err := im.Reset(ctx); err != nil {
			return nil, err
		}
	}

	var res *Result
	err := im.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// fresh per attempt so a failed batch reports nothing
		res = &Result{}
		for i, rec := range records {
			if err := im.applyFarm(tx, i, rec, res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("import rolled back: %w", err)
	}

	im.log.Info("import committed",
		zap.Int("farms_imported", res.FarmsImported),
		zap.Int("farms_skipped", res.FarmsSkipped),
		zap.Int("crops_created", res.CropsCreated),
		zap.Int("crops_reused", res.CropsReused),
		zap.Int("listings_created", res.ListingsCreated),
		zap.Int("listings_skipped", res.ListingsSkipped))
	return res, nil
}

func (im *Importer) applyFarm(tx *gorm.DB, idx int, rec FarmRecord, res *Result) error {
	if reason := rec.problem(); reason != "" {
		res.FarmsSkipped++
		im.warn(res, fmt.Sprintf("skipping farm #%d %q: %s", idx+1, rec.Name, reason))
		return nil
	}
	for _, note := range rec.notes {
		im.warn(res, fmt.Sprintf("farm #%d %q: %s", idx+1, rec.Name, note))
	}

	farm := models.Farm{
		Name:        rec.Name,
		Country:     rec.Country,
		Location:    rec.Location,
		Description: rec.Description,
		Website:     rec.Website,
		ImageURL:    rec.ImageURL,
		Rating:      rec.Rating,
		Icon:        orDefault(rec.Icon, models.DefaultFarmIcon),
	}
	if err := tx.Create(&farm).Error; err != nil {
		return fmt.Errorf("insert farm #%d %q: %w", idx+1, rec.Name, err)
	}
	res.FarmsImported++

	for j, cr := range rec.Crops {
		if reason := cr.problem(); reason != "" {
			res.ListingsSkipped++
			im.warn(res, fmt.Sprintf("skipping crop #%d %q for farm %q: %s", j+1, cr.Name, rec.Name, reason))
			continue
		}
		for _, note := range cr.notes {
			im.warn(res, fmt.Sprintf("crop #%d %q for farm %q: %s", j+1, cr.Name, rec.Name, note))
		}

		cropID, created, err := resolveCrop(tx, cr)
		if err != nil {
			return fmt.Errorf("resolve crop %q/%q for farm %q: %w", cr.Name, cr.Origin, rec.Name, err)
		}
		if created {
			res.CropsCreated++
		} else {
			res.CropsReused++
		}

		link := models.FarmCrop{
			FarmID:    farm.ID,
			CropID:    cropID,
			Quantity:  cr.Quantity,
			Price:     cr.Price,
			Available: cr.available(),
		}
		if err := tx.Omit(clause.Associations).Create(&link).Error; err != nil {
			return fmt.Errorf("link farm %q to crop %q: %w", rec.Name, cr.Name, err)
		}
		res.ListingsCreated++
	}
	return nil
}

// resolveCrop finds a crop by exact (name, origin) or creates it. An existing
// crop is reused as is, even when the record disagrees on other fields.
func resolveCrop(tx *gorm.DB, cr CropRecord) (uint, bool, error) {
	var existing models.Crop
	err := tx.Select("id").Where("name = ? AND origin = ?", cr.Name, cr.Origin).First(&existing).Error
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, err
	}

	crop := models.Crop{
		Name:        cr.Name,
		Category:    models.CropCategory(cr.Category),
		Season:      cr.Season,
		Origin:      cr.Origin,
		Description: cr.Description,
		Emoji:       orDefault(cr.Emoji, models.DefaultCropEmoji),
	}
	if err := tx.Create(&crop).Error; err != nil {
		return 0, false, err
	}
	return crop.ID, true, nil
}

func (im *Importer) warn(res *Result, msg string) {
	res.Warnings = append(res.Warnings, msg)
	im.log.Warn(msg)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
