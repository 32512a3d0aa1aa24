package domain

import (
	"fmt"
	"math"
)

// Category is a prize tier of the card-pull game.
type Category string

const (
	CategoryMain  Category = "main"
	CategoryLarge Category = "large"
	CategoryMid   Category = "mid"
	CategorySmall Category = "small"
	CategoryNone  Category = "none"
)

// WeightedCategory is one entry of a weighted draw table.
type WeightedCategory struct {
	Category    Category `json:"category" yaml:"category"`
	Probability float64  `json:"probability" yaml:"probability"`
}

// Prize is a concrete reward within a category.
type Prize struct {
	Name       string `json:"name" yaml:"name"`
	RewardText string `json:"reward_text" yaml:"reward_text"`
}

// PrizeConfig holds the category weights and per-category prize lists.
// Treat values as immutable once constructed.
type PrizeConfig struct {
	Categories  []WeightedCategory   `json:"categories" yaml:"categories"`
	Prizes      map[Category][]Prize `json:"prizes" yaml:"prizes"`
	TopCategory Category             `json:"top_category" yaml:"top_category"`
	NoPrize     Category             `json:"no_prize" yaml:"no_prize"`
}

// DefaultPrizeConfig returns the stock card-pull tables.
func DefaultPrizeConfig() PrizeConfig {
	return PrizeConfig{
		Categories: []WeightedCategory{
			{Category: CategoryMain, Probability: 0.001},
			{Category: CategoryLarge, Probability: 0.009},
			{Category: CategoryMid, Probability: 0.05},
			{Category: CategorySmall, Probability: 0.15},
			{Category: CategoryNone, Probability: 0.79},
		},
		Prizes: map[Category][]Prize{
			CategoryMain: {
				{Name: "Car", RewardText: "Main_Car"},
			},
			CategoryLarge: {
				{Name: "MacBook Pro", RewardText: "Large_Macbook"},
				{Name: "iPhone 15", RewardText: "Large_iPhone"},
				{Name: "Vacation Trip", RewardText: "Large_Vacation"},
				{Name: "Smart TV", RewardText: "Large_SmartTV"},
				{Name: "Gaming Console", RewardText: "Large_Console"},
			},
			CategoryMid: {
				{Name: "$100 Coupon", RewardText: "Mid_Coupon"},
				{Name: "AirPods", RewardText: "Mid_AirPods"},
				{Name: "Dinner for Two", RewardText: "Mid_Dinner"},
				{Name: "Fitness Watch", RewardText: "Mid_Watch"},
				{Name: "Bluetooth Speaker", RewardText: "Mid_Speaker"},
			},
			CategorySmall: {
				{Name: "Free Coffee", RewardText: "Small_Coffee"},
				{Name: "Free Dessert", RewardText: "Small_Dessert"},
				{Name: "Free Soda", RewardText: "Small_Soda"},
				{Name: "10% Discount", RewardText: "Small_Discount"},
				{Name: "Free Fries", RewardText: "Small_Fries"},
			},
		},
		TopCategory: CategoryMain,
		NoPrize:     CategoryNone,
	}
}

// Validate checks that the tables are usable by the weighted draw.
func (c PrizeConfig) Validate() error {
	if len(c.Categories) == 0 {
		return fmt.Errorf("prize config: no categories")
	}
	var total float64
	seen := make(map[Category]bool, len(c.Categories))
	for _, wc := range c.Categories {
		if wc.Probability < 0 || math.IsNaN(wc.Probability) || math.IsInf(wc.Probability, 0) {
			return fmt.Errorf("prize config: category %q has invalid probability %v", wc.Category, wc.Probability)
		}
		if seen[wc.Category] {
			return fmt.Errorf("prize config: duplicate category %q", wc.Category)
		}
		seen[wc.Category] = true
		total += wc.Probability
		if wc.Category != c.NoPrize && len(c.Prizes[wc.Category]) == 0 {
			return fmt.Errorf("prize config: category %q has no prizes", wc.Category)
		}
	}
	if total <= 0 {
		return fmt.Errorf("prize config: total weight must be positive")
	}
	if !seen[c.NoPrize] {
		return fmt.Errorf("prize config: no-prize category %q not in table", c.NoPrize)
	}
	if !seen[c.TopCategory] {
		return fmt.Errorf("prize config: top category %q not in table", c.TopCategory)
	}
	return nil
}
