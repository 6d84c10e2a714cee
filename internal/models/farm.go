package models

import "time"

const DefaultFarmIcon = "🌾"

type Farm struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Country     string    `gorm:"size:50;not null;index" json:"country"`
	Location    string    `gorm:"size:200;not null" json:"location"`
	Description string    `gorm:"type:text" json:"description"`
	Website     string    `gorm:"type:text" json:"website"`
	ImageURL    string    `gorm:"type:text" json:"image_url"`
	Rating      float64   `gorm:"not null;default:0" json:"rating"`
	Icon        string    `gorm:"size:16;default:'🌾'" json:"icon"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
