package model

import "time"

type HoldRequest struct {
	SeatIDs []SeatID `json:"seatIds"`
	HeldBy  string   `json:"heldBy,omitempty"`
	// GuestSessionID lets the backend reuse a client chosen token on the
	// first hold instead of minting one.
	GuestSessionID string `json:"guestSessionId,omitempty"`
}

type HoldResponse struct {
	HeldBy      string    `json:"heldBy"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Seats       []Seat    `json:"seats"`
	HeldSeatIDs []SeatID  `json:"heldSeatIds,omitempty"`
}

type ReleaseRequest struct {
	HeldBy  string   `json:"heldBy"`
	SeatIDs []SeatID `json:"seatIds,omitempty"`
}

type ReleaseResponse struct {
	OK bool `json:"ok"`
}

type PurchaseRequest struct {
	HeldBy        string        `json:"heldBy"`
	SeatIDs       []SeatID      `json:"seatIds"`
	PayerInfo     PayerInfo     `json:"payerInfo"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
}

type PurchaseResponse struct {
	OrderCode string `json:"orderCode"`
	Order     *Order `json:"order,omitempty"`
}
