package service

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"cinema-booking-cli/model"
	"github.com/fasthttp/websocket"
)

const feedHandshakeTimeout = 10 * time.Second

// SeatFrame is one broadcast of the seat websocket: the whole room right after
// connecting, only the seats that changed afterwards.
type SeatFrame struct {
	Seats []model.Seat
	Err   error
}

// SubscribeSeats opens the live seat feed of a showtime. The channel is closed
// when ctx ends or the connection drops; a drop is reported as a final frame
// carrying Err.
func (c *Client) SubscribeSeats(ctx context.Context, showtimeID uint) (<-chan SeatFrame, error) {
	if showtimeID == 0 {
		return nil, fmt.Errorf("showtime id is required")
	}
	endpoint := fmt.Sprintf("%s/showtime/%d/seats/ws", c.feedURL, showtimeID)

	header := http.Header{}
	header.Set("User-Agent", c.userAgent)
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: feedHandshakeTimeout,
	}
	conn, res, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if res != nil {
			return nil, fmt.Errorf("dial seat feed: %s: %w", res.Status, err)
		}
		return nil, fmt.Errorf("dial seat feed: %w", err)
	}

	frames := make(chan SeatFrame, 8)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = conn.Close()
	}()

	go func() {
		defer close(frames)
		defer close(done)
		for {
			var frame map[string][]model.Seat
			if err := conn.ReadJSON(&frame); err != nil {
				if ctx.Err() == nil {
					select {
					case frames <- SeatFrame{Err: fmt.Errorf("seat feed: %w", err)}:
					case <-ctx.Done():
					}
				}
				return
			}
			select {
			case frames <- SeatFrame{Seats: flattenFrame(frame)}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return frames, nil
}

// flattenFrame turns the row-keyed broadcast into a seat list ordered by row.
func flattenFrame(frame map[string][]model.Seat) []model.Seat {
	rows := make([]string, 0, len(frame))
	for row := range frame {
		rows = append(rows, row)
	}
	sort.Strings(rows)

	var seats []model.Seat
	for _, row := range rows {
		for _, seat := range frame[row] {
			if seat.Row == "" {
				seat.Row = row
			}
			seats = append(seats, seat)
		}
	}
	return seats
}

func feedURLFromBase(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	default:
		return baseURL
	}
}
