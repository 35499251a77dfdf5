package model

// ParkingLot is a reservable lot with a fixed number of spaces.
//
// Fields:
//  ID            – primary key identifier.
//  Name          – display name of the lot.
//  Location      – campus area the lot belongs to.
//  Capacity      – total reservable spaces, always positive.
//  ReservedCount – spaces currently held by active reservations. Only the
//                  reservation transaction manager writes this column and
//                  it never exceeds Capacity once committed.
//  EVSlots       – number of EV charging spaces (informational).
type ParkingLot struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement" json:"id"`                        // parking_lots.id
	Name          string `gorm:"size:255;not null" json:"name"`                            // parking_lots.name
	Location      string `gorm:"size:255;not null;default:''" json:"location"`             // parking_lots.location
	Capacity      int    `gorm:"not null;check:chk_lot_capacity,capacity > 0" json:"capacity"` // parking_lots.capacity
	ReservedCount int    `gorm:"not null;default:0" json:"reserved_count"`                 // parking_lots.reserved_count
	EVSlots       int    `gorm:"column:ev_slots;not null;default:0" json:"ev_slots"`       // parking_lots.ev_slots
}

// TableName pins the table name used by migrations and queries.
func (ParkingLot) TableName() string { return "parking_lots" }

// Available returns the number of free spaces. Display paths clamp at zero
// so a corrupted counter never renders as a negative number.
func (l ParkingLot) Available() int {
	if free := l.Capacity - l.ReservedCount; free > 0 {
		return free
	}
	return 0
}

// OccupancyRatio returns ReservedCount/Capacity clamped to [0,1].
func (l ParkingLot) OccupancyRatio() float64 {
	if l.Capacity <= 0 {
		return 0
	}
	r := float64(l.ReservedCount) / float64(l.Capacity)
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}
