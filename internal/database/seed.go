package database

import "github.com/iliyamo/parking-reservation/internal/model"

// DefaultLots is a starter set of campus lots.
func DefaultLots() []model.ParkingLot {
	return []model.ParkingLot{
		{Name: "Lot 1 Admin Overflow", Location: "Main Campus West", Capacity: 676},
		{Name: "Lot 2 M & H", Location: "Main Campus West", Capacity: 436},
		{Name: "Lot 3 Stadium", Location: "Main Campus West", Capacity: 977, EVSlots: 12},
		{Name: "Lot 4 Union Metered Lot", Location: "Main Campus West", Capacity: 68},
		{Name: "Lot 5 North P", Location: "Main Campus West", Capacity: 510},
		{Name: "Lot 6 Gym Road", Location: "Main Campus West", Capacity: 370, EVSlots: 4},
		{Name: "Lot 7 ISC Metered Lot", Location: "Main Campus West", Capacity: 162, EVSlots: 6},
		{Name: "Lot 10 Simons Gated Lot", Location: "Main Campus West", Capacity: 39},
		{Name: "Lot 13 A ESS", Location: "Main Campus West", Capacity: 21, EVSlots: 2},
		{Name: "Lot 17 West Apartments", Location: "Main Campus West", Capacity: 1104},
		{Name: "Lot 18 Heavy Engineering", Location: "Main Campus West", Capacity: 57, EVSlots: 2},
		{Name: "Lot 22 Tabler Metered", Location: "Main Campus West", Capacity: 12, EVSlots: 2},
	}
}
