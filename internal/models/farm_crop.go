package models

// FarmCrop is one farm's listing of one crop. The same (farm, crop) pair may
// appear more than once.
type FarmCrop struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	FarmID    uint    `gorm:"index;not null" json:"farm_id"`
	Farm      Farm    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CropID    uint    `gorm:"index;not null" json:"crop_id"`
	Crop      Crop    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Quantity  int     `gorm:"not null" json:"quantity"`
	Price     float64 `gorm:"not null" json:"price"`
	Available bool    `gorm:"not null" json:"available"`
}
