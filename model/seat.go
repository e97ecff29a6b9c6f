package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type SeatType string

const (
	SeatStandard SeatType = "STANDARD"
	SeatVIP      SeatType = "VIP"
	SeatCouple   SeatType = "COUPLE"
)

type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatHeld      SeatStatus = "HELD"
	SeatBooked    SeatStatus = "BOOKED"
	SeatSold      SeatStatus = "SOLD"
)

// SeatID identifies a seat within a room. The backend emits numeric ids while
// fixtures and labels use strings, so both JSON forms decode into it.
type SeatID string

func (id *SeatID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = SeatID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("seat id: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("seat id %s is not an integer", n)
	}
	*id = SeatID(n.String())
	return nil
}

type Seat struct {
	ID        SeatID     `json:"id"`
	Label     string     `json:"label"`
	Row       string     `json:"row"`
	Column    int        `json:"column"`
	Type      SeatType   `json:"type"`
	Status    SeatStatus `json:"status"`
	HeldBy    string     `json:"heldBy,omitempty"`
	ExpiresAt *time.Time `json:"expiredAt,omitempty"`
	CoupleID  *SeatID    `json:"coupleId,omitempty"`
}

// Unavailable reports whether the seat is settled by someone and can no longer
// be held.
func (s Seat) Unavailable() bool {
	return s.Status == SeatBooked || s.Status == SeatSold
}

// HeldByToken reports whether the seat is currently held under token.
func (s Seat) HeldByToken(token string) bool {
	return token != "" && s.Status == SeatHeld && s.HeldBy == token
}

func SeatIDs(ids ...string) []SeatID {
	out := make([]SeatID, 0, len(ids))
	for _, id := range ids {
		out = append(out, SeatID(id))
	}
	return out
}
