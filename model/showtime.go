package model

import "time"

type Showtime struct {
	ID        uint      `json:"id"`
	Code      string    `json:"publicCode"`
	Movie     MovieRef  `json:"movie"`
	Room      RoomRef   `json:"room"`
	StartTime time.Time `json:"startTime"`
	Format    string    `json:"format"`
	Language  string    `json:"language"`
	Price     float64   `json:"price"`
}

type MovieRef struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

type RoomRef struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	Cinema string `json:"cinema"`
}

// ShowtimeDetail is the payload of GET /showtime/{code}: the showtime plus the
// current seat snapshot of its room.
type ShowtimeDetail struct {
	Showtime Showtime `json:"showtime"`
	Seats    []Seat   `json:"seats"`
}
