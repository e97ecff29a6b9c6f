package booking

import (
	"time"

	"cinema-booking-cli/model"
)

// Snapshot is the read-only view of a session handed to the page layer.
type Snapshot struct {
	Code             string
	Showtime         model.Showtime
	Seats            []SeatCell
	HeldSeatIDs      []model.SeatID
	HeldLabels       []string
	SecondsRemaining int
	ExpiresAt        time.Time
	Status           Status
	Busy             bool
	Loading          bool
	Notice           *Error
	Order            *model.Order
	Checkout         Checkout
	CanPurchase      bool
	Total            float64
}

func (s State) Snapshot() Snapshot {
	pending := union(union(minus(s.Desired, s.Held), minus(s.Held, s.Desired)), s.orphans)
	held := s.Catalog.Ordered(s.Held)
	return Snapshot{
		Code:             s.Code,
		Showtime:         s.Showtime,
		Seats:            s.Catalog.Render(held, pending),
		HeldSeatIDs:      held,
		HeldLabels:       s.Catalog.Labels(held),
		SecondsRemaining: s.SecondsRemaining(),
		ExpiresAt:        s.ExpiresAt,
		Status:           s.Status,
		Busy:             s.inflight != mutationNone,
		Loading:          s.Loading,
		Notice:           s.Notice,
		Order:            s.Order,
		Checkout:         s.Checkout,
		CanPurchase:      s.canPurchase() == nil,
		Total:            s.Showtime.Price * float64(len(held)),
	}
}

// Cell returns the rendered cell of id.
func (s Snapshot) Cell(id model.SeatID) (SeatCell, bool) {
	for _, cell := range s.Seats {
		if cell.ID == id {
			return cell, true
		}
	}
	return SeatCell{}, false
}
