// Package catalog holds the static reference data of the passport:
// emirates, stampable locations and redeemable rewards.
package catalog

import (
	"emirates-passport/internal/model"
)

// Emirate IDs
const (
	EmirateAbuDhabi     = "abu-dhabi"
	EmirateDubai        = "dubai"
	EmirateSharjah      = "sharjah"
	EmirateAjman        = "ajman"
	EmirateUmmAlQuwain  = "umm-al-quwain"
	EmirateFujairah     = "fujairah"
	EmirateRasAlKhaimah = "ras-al-khaimah"
)

// Reward categories
const (
	CategoryFood          = "Food & Beverage"
	CategoryShopping      = "Shopping"
	CategoryCulture       = "Culture"
	CategoryAdventure     = "Adventure"
	CategoryEntertainment = "Entertainment"
)

// DefaultStampSlots is the number of stamp slots each emirate page has.
const DefaultStampSlots = 5

// Emirates contains every emirate in passport display order.
var Emirates = []model.Emirate{
	{ID: EmirateAbuDhabi, Name: "Abu Dhabi", TotalStampSlots: DefaultStampSlots},
	{ID: EmirateDubai, Name: "Dubai", TotalStampSlots: DefaultStampSlots},
	{ID: EmirateSharjah, Name: "Sharjah", TotalStampSlots: DefaultStampSlots},
	{ID: EmirateAjman, Name: "Ajman", TotalStampSlots: DefaultStampSlots},
	{ID: EmirateUmmAlQuwain, Name: "Umm Al Quwain", TotalStampSlots: DefaultStampSlots},
	{ID: EmirateFujairah, Name: "Fujairah", TotalStampSlots: DefaultStampSlots},
	{ID: EmirateRasAlKhaimah, Name: "Ras Al Khaimah", TotalStampSlots: DefaultStampSlots},
}

// DubaiMall is the only location with a known QR placard.
var DubaiMall = model.Location{
	ID:          2,
	EmirateID:   EmirateDubai,
	Name:        "Dubai Mall",
	PointValue:  50,
	Description: "Home to over 1,200 retail outlets and 200 food & beverage outlets, Dubai Mall is one of the world's largest shopping destinations.",
	Icon:        "🛍️",
}

// rewardOrder is the display order of the reward catalogue.
var rewardOrder = []int{1, 2, 3, 4, 5, 6}

// Rewards contains all redeemable rewards keyed by ID.
var Rewards = map[int]model.Reward{
	1: {
		ID:          1,
		Name:        "Free Coffee at Emirates Palace",
		Cost:        50,
		Category:    CategoryFood,
		Description: "Enjoy a complimentary coffee at the luxurious Emirates Palace Hotel",
		Icon:        "☕",
	},
	2: {
		ID:          2,
		Name:        "Dubai Mall Gift Voucher",
		Cost:        100,
		Category:    CategoryShopping,
		Description: "AED 25 gift voucher to use at any store in Dubai Mall",
		Icon:        "🛍️",
	},
	3: {
		ID:          3,
		Name:        "Museum Entry Ticket",
		Cost:        75,
		Category:    CategoryCulture,
		Description: "Free entry to any participating museum across the UAE",
		Icon:        "🏛️",
	},
	4: {
		ID:          4,
		Name:        "Desert Safari Discount",
		Cost:        150,
		Category:    CategoryAdventure,
		Description: "25% discount on desert safari experience",
		Icon:        "🐪",
	},
	5: {
		ID:          5,
		Name:        "Aquarium Visit",
		Cost:        80,
		Category:    CategoryEntertainment,
		Description: "Free entry to Dubai Aquarium & Underwater Zoo",
		Icon:        "🐠",
	},
	6: {
		ID:          6,
		Name:        "Traditional Meal",
		Cost:        120,
		Category:    CategoryFood,
		Description: "Authentic Emirati meal at a local restaurant",
		Icon:        "🍽️",
	},
}

// GetAllRewards returns all rewards in display order.
func GetAllRewards() []model.Reward {
	rewards := make([]model.Reward, 0, len(rewardOrder))
	for _, id := range rewardOrder {
		if r, ok := Rewards[id]; ok {
			rewards = append(rewards, r)
		}
	}
	return rewards
}

// GetReward returns the reward for a given ID.
func GetReward(id int) (model.Reward, bool) {
	r, ok := Rewards[id]
	return r, ok
}

// GetEmirate returns the emirate for a given ID. Lookups ignore case and surrounding spaces.
func GetEmirate(id string) (model.Emirate, bool) {
	id = model.NormalizeEmirateID(id)
	for _, e := range Emirates {
		if e.ID == id {
			return e, true
		}
	}
	return model.Emirate{}, false
}

// TotalStampSlots returns the number of stamp slots across all emirates.
func TotalStampSlots() int {
	total := 0
	for _, e := range Emirates {
		total += e.TotalStampSlots
	}
	return total
}
