package importer

import (
	"context"
	"fmt"

	"farm-market-backend/internal/models"
)

var sampleCrops = map[string]CropRecord{
	"Apples":       {Name: "Apples", Category: "fruits", Season: "Fall", Origin: "Canada, Switzerland", Description: "Fresh, crisp apples available year-round", Emoji: "🍎"},
	"Oranges":      {Name: "Oranges", Category: "fruits", Season: "Winter", Origin: "Australia, West Africa", Description: "Sweet and juicy citrus fruits", Emoji: "🍊"},
	"Grapes":       {Name: "Grapes", Category: "fruits", Season: "Summer", Origin: "Switzerland, Australia", Description: "Perfect for wine and fresh eating", Emoji: "🍇"},
	"Mangoes":      {Name: "Mangoes", Category: "fruits", Season: "Summer", Origin: "West Africa, Australia", Description: "Tropical sweetness from West Africa", Emoji: "🥭"},
	"Strawberries": {Name: "Strawberries", Category: "fruits", Season: "Spring", Origin: "Canada, Australia", Description: "Sweet berries perfect for desserts", Emoji: "🍓"},
	"Peaches":      {Name: "Peaches", Category: "fruits", Season: "Summer", Origin: "Canada, Switzerland", Description: "Soft, fuzzy stone fruits", Emoji: "🍑"},
	"Carrots":      {Name: "Carrots", Category: "vegetables", Season: models.SeasonYearRound, Origin: "Canada, Australia", Description: "Nutritious root vegetables", Emoji: "🥕"},
	"Tomatoes":     {Name: "Tomatoes", Category: "vegetables", Season: "Summer", Origin: "All Regions", Description: "Versatile and flavorful", Emoji: "🍅"},
	"Lettuce":      {Name: "Lettuce", Category: "vegetables", Season: "Spring/Fall", Origin: "Switzerland, Canada", Description: "Fresh leafy greens", Emoji: "🥬"},
	"Broccoli":     {Name: "Broccoli", Category: "vegetables", Season: "Fall/Spring", Origin: "Canada, Australia", Description: "Nutritious green vegetable", Emoji: "🥦"},
	"Corn":         {Name: "Corn", Category: "vegetables", Season: "Summer", Origin: "Canada, West Africa", Description: "Sweet summer corn", Emoji: "🌽"},
	"Potatoes":     {Name: "Potatoes", Category: "vegetables", Season: "Fall", Origin: "All Regions", Description: "Staple root vegetable", Emoji: "🥔"},
}

func sampleListing(name string, qty int, price float64) CropRecord {
	c, ok := sampleCrops[name]
	if !ok {
		panic(fmt.Sprintf("importer: unknown sample crop %q", name))
	}
	c.Quantity = qty
	c.Price = price
	return c
}

// SampleFarms is the starter catalog loaded into an empty database.
func SampleFarms() []FarmRecord {
	soldOut := false
	peaches := sampleListing("Peaches", 0, 3.25)
	peaches.Available = &soldOut

	return []FarmRecord{
		{Name: "Maple Valley Farm", Country: "canada", Location: "Ontario, Canada", Description: "Family-owned farm specializing in apples and root vegetables", Rating: 4.8, Icon: "🌾",
			Crops: CropList{sampleListing("Apples", 100, 2.50), sampleListing("Carrots", 200, 1.50), sampleListing("Potatoes", 150, 0.75)}},
		{Name: "Sunny Coast Orchard", Country: "australia", Location: "Queensland, Australia", Description: "Tropical fruit orchard with year-round production", Rating: 4.9, Icon: "🍊",
			Crops: CropList{sampleListing("Oranges", 80, 3.00), sampleListing("Mangoes", 60, 4.50), sampleListing("Strawberries", 40, 5.00)}},
		{Name: "Alpine Meadows Farm", Country: "switzerland", Location: "Bern, Switzerland", Description: "Mountain farm producing high-quality grapes and vegetables", Rating: 4.7, Icon: "🏔️",
			Crops: CropList{sampleListing("Grapes", 120, 4.00), sampleListing("Lettuce", 100, 2.00), sampleListing("Apples", 90, 2.75), peaches}},
		{Name: "Tropical Paradise Farm", Country: "west-africa", Location: "Ghana, West Africa", Description: "Traditional African farm with diverse tropical fruits", Rating: 4.6, Icon: "🌴",
			Crops: CropList{sampleListing("Mangoes", 70, 4.00), sampleListing("Oranges", 50, 2.50)}},
		{Name: "Prairie Harvest Farm", Country: "canada", Location: "Manitoba, Canada", Description: "Large-scale vegetable farm serving the prairies", Rating: 4.5, Icon: "🌾",
			Crops: CropList{sampleListing("Carrots", 300, 1.25), sampleListing("Broccoli", 150, 2.00), sampleListing("Potatoes", 400, 0.50)}},
		{Name: "Outback Fresh Farm", Country: "australia", Location: "New South Wales, Australia", Description: "Sustainable farming in the Australian outback", Rating: 4.4, Icon: "🦘",
			Crops: CropList{sampleListing("Tomatoes", 200, 2.25), sampleListing("Broccoli", 120, 2.50), sampleListing("Carrots", 250, 1.75)}},
		{Name: "Swiss Valley Farm", Country: "switzerland", Location: "Zurich, Switzerland", Description: "Organic farming in the Swiss valleys", Rating: 4.8, Icon: "🏔️",
			Crops: CropList{sampleListing("Lettuce", 180, 2.00), sampleListing("Broccoli", 100, 2.75), sampleListing("Carrots", 200, 2.00)}},
		{Name: "West African Heritage Farm", Country: "west-africa", Location: "Nigeria, West Africa", Description: "Heritage crops and traditional farming methods", Rating: 4.3, Icon: "🌍",
			Crops: CropList{sampleListing("Tomatoes", 150, 1.50), sampleListing("Corn", 300, 1.00), sampleListing("Lettuce", 120, 1.75)}},
	}
}

// SeedIfEmpty imports SampleFarms when the farms table has no rows. It
// returns a nil Result when nothing was seeded.
func (im *Importer) SeedIfEmpty(ctx context.Context) (*Result, error) {
	var count int64
	if err := im.db.WithContext(ctx).Model(&models.Farm{}).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("count farms: %w", err)
	}
	if count > 0 {
		return nil, nil
	}
	im.log.Info("inserting sample farm data")
	return im.Run(ctx, SampleFarms(), Options{})
}
