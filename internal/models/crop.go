package models

import "time"

type CropCategory string

const (
	CategoryFruits     CropCategory = "fruits"
	CategoryVegetables CropCategory = "vegetables"
)

func (c CropCategory) Valid() bool {
	return c == CategoryFruits || c == CategoryVegetables
}

const (
	DefaultCropEmoji = "🥕"

	// SeasonYearRound matches every season filter.
	SeasonYearRound = "Year-round"
)

// Crop is a catalog entry; it is shared by every farm that lists it.
type Crop struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"size:100;not null;index:idx_crops_name_origin" json:"name"`
	Category    CropCategory `gorm:"size:20;not null;index" json:"category"`
	Season      string       `gorm:"size:50;not null" json:"season"`
	Origin      string       `gorm:"size:200;not null;index:idx_crops_name_origin" json:"origin"`
	Description string       `gorm:"type:text" json:"description"`
	Emoji       string       `gorm:"size:16;default:'🥕'" json:"emoji"`
	CreatedAt   time.Time    `json:"created_at"`
}
