package booking

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"cinema-booking-cli/model"
)

// SeatCell is one renderable seat. Status is the last backend confirmed
// status; Mine and Pending come from the hold session.
type SeatCell struct {
	model.Seat
	Mine     bool
	Pending  bool
	Disabled bool
}

// Catalog is the seat snapshot of one showtime, kept in layout order. It is
// a value: every mutating method returns a new Catalog and leaves the
// receiver untouched, so reducer states never share seats.
type Catalog struct {
	seats []model.Seat
	index map[model.SeatID]int
}

func NewCatalog(seats []model.Seat) Catalog {
	return Catalog{}.Apply(seats)
}

func (c Catalog) Len() int {
	return len(c.seats)
}

func (c Catalog) Seat(id model.SeatID) (model.Seat, bool) {
	i, ok := c.index[id]
	if !ok {
		return model.Seat{}, false
	}
	return c.seats[i], true
}

func (c Catalog) Seats() []model.Seat {
	out := make([]model.Seat, len(c.seats))
	copy(out, c.seats)
	return out
}

// Apply replaces the whole snapshot.
func (c Catalog) Apply(seats []model.Seat) Catalog {
	next := make([]model.Seat, 0, len(seats))
	for _, seat := range seats {
		if seat.ID == "" {
			continue
		}
		next = append(next, normalizeSeat(seat))
	}
	return build(next)
}

// Merge overlays a partial frame onto the snapshot. Seats missing from the
// frame keep their last known state.
func (c Catalog) Merge(seats []model.Seat) Catalog {
	if len(seats) == 0 {
		return c
	}
	next := c.Seats()
	index := make(map[model.SeatID]int, len(c.index))
	for id, i := range c.index {
		index[id] = i
	}
	for _, seat := range seats {
		if seat.ID == "" {
			continue
		}
		if i, ok := index[seat.ID]; ok {
			next[i] = normalizeSeat(mergeSeat(next[i], seat))
			continue
		}
		index[seat.ID] = len(next)
		next = append(next, normalizeSeat(seat))
	}
	return build(next)
}

// MarkUnavailable records that the backend refused ids: they are shown as held
// by someone else until a fresher snapshot says otherwise.
func (c Catalog) MarkUnavailable(ids []model.SeatID) Catalog {
	return c.update(ids, func(seat *model.Seat) {
		if seat.Unavailable() {
			return
		}
		seat.Status = model.SeatHeld
		seat.HeldBy = ""
		seat.ExpiresAt = nil
	})
}

// Free shows ids as available again; used when our own hold lapses.
func (c Catalog) Free(ids []model.SeatID) Catalog {
	return c.update(ids, func(seat *model.Seat) {
		if seat.Unavailable() {
			return
		}
		seat.Status = model.SeatAvailable
		seat.HeldBy = ""
		seat.ExpiresAt = nil
	})
}

// MarkSold shows ids as sold after a successful purchase.
func (c Catalog) MarkSold(ids []model.SeatID) Catalog {
	return c.update(ids, func(seat *model.Seat) {
		seat.Status = model.SeatSold
		seat.ExpiresAt = nil
	})
}

func (c Catalog) update(ids []model.SeatID, fn func(*model.Seat)) Catalog {
	if len(ids) == 0 {
		return c
	}
	next := c.Seats()
	for _, id := range ids {
		if i, ok := c.index[id]; ok {
			fn(&next[i])
		}
	}
	return Catalog{seats: next, index: c.index}
}

// Render projects the snapshot into cells. A seat is disabled when it is
// settled or held by someone else, unless it is part of heldByMe.
func (c Catalog) Render(heldByMe []model.SeatID, pending []model.SeatID) []SeatCell {
	mine := newSeatSet(heldByMe)
	waiting := newSeatSet(pending)

	cells := make([]SeatCell, 0, len(c.seats))
	for _, seat := range c.seats {
		cell := SeatCell{
			Seat:    seat,
			Mine:    mine.has(seat.ID),
			Pending: waiting.has(seat.ID),
		}
		if !cell.Mine {
			cell.Disabled = seat.Unavailable() || seat.Status == model.SeatHeld
		}
		cells = append(cells, cell)
	}
	return cells
}

// Tap turns a seat tap into a select or deselect intent covering the whole
// seat unit. selected is the set the session currently wants.
func (c Catalog) Tap(id model.SeatID, selected []model.SeatID) (Intent, error) {
	seat, ok := c.Seat(id)
	if !ok {
		return Intent{}, newError(KindValidation, "unknown seat "+string(id))
	}
	unit := c.Expand([]model.SeatID{id})
	wanted := newSeatSet(selected)
	for _, seatID := range unit {
		if wanted.has(seatID) {
			return Intent{Kind: IntentDeselect, SeatIDs: unit}, nil
		}
	}
	for _, seatID := range unit {
		other, _ := c.Seat(seatID)
		if other.Unavailable() || other.Status == model.SeatHeld {
			return Intent{}, newError(KindSeatConflict, "seat "+label(seat)+" is no longer available", unit...)
		}
	}
	return Intent{Kind: IntentSelect, SeatIDs: unit}, nil
}

// Partner returns the other half of a COUPLE seat. The explicit couple id
// wins; otherwise odd column N pairs with N+1 in the same row.
func (c Catalog) Partner(id model.SeatID) (model.SeatID, bool) {
	seat, ok := c.Seat(id)
	if !ok || seat.Type != model.SeatCouple {
		return "", false
	}
	if seat.CoupleID != nil && *seat.CoupleID != "" && *seat.CoupleID != id {
		if _, ok := c.index[*seat.CoupleID]; ok {
			return *seat.CoupleID, true
		}
	}
	if seat.Column <= 0 {
		return "", false
	}
	column := seat.Column + 1
	if seat.Column%2 == 0 {
		column = seat.Column - 1
	}
	for _, other := range c.seats {
		if other.Row == seat.Row && other.Column == column && other.Type == model.SeatCouple {
			return other.ID, true
		}
	}
	return "", false
}

// Expand adds the partner of every COUPLE seat and returns the ids in layout
// order without duplicates.
func (c Catalog) Expand(ids []model.SeatID) []model.SeatID {
	set := newSeatSet(nil)
	for _, id := range ids {
		set.add(id)
		if partner, ok := c.Partner(id); ok {
			set.add(partner)
		}
	}
	return c.Ordered(set.slice())
}

// Ordered sorts ids in layout order. Ids unknown to the catalog go last in
// their given order.
func (c Catalog) Ordered(ids []model.SeatID) []model.SeatID {
	seen := newSeatSet(nil)
	known := make([]model.SeatID, 0, len(ids))
	var unknown []model.SeatID
	for _, id := range ids {
		if seen.has(id) {
			continue
		}
		seen.add(id)
		if _, ok := c.index[id]; ok {
			known = append(known, id)
		} else {
			unknown = append(unknown, id)
		}
	}
	sort.SliceStable(known, func(i, j int) bool {
		return c.index[known[i]] < c.index[known[j]]
	})
	return append(known, unknown...)
}

// Labels returns the human labels of ids, falling back to the id.
func (c Catalog) Labels(ids []model.SeatID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range c.Ordered(ids) {
		if seat, ok := c.Seat(id); ok {
			out = append(out, label(seat))
			continue
		}
		out = append(out, string(id))
	}
	return out
}

// HeldBy returns the ids of seats the snapshot shows as held under token.
func (c Catalog) HeldBy(token string) []model.SeatID {
	var out []model.SeatID
	for _, seat := range c.seats {
		if seat.HeldByToken(token) {
			out = append(out, seat.ID)
		}
	}
	return out
}

func build(seats []model.Seat) Catalog {
	sort.SliceStable(seats, func(i, j int) bool {
		return lessSeat(seats[i], seats[j])
	})
	index := make(map[model.SeatID]int, len(seats))
	for i, seat := range seats {
		index[seat.ID] = i
	}
	return Catalog{seats: seats, index: index}
}

func lessSeat(a, b model.Seat) bool {
	if a.Row != b.Row {
		if len(a.Row) != len(b.Row) {
			return len(a.Row) < len(b.Row)
		}
		return a.Row < b.Row
	}
	return a.Column < b.Column
}

// mergeSeat keeps layout fields a feed frame may omit.
func mergeSeat(current, update model.Seat) model.Seat {
	if update.Label == "" {
		update.Label = current.Label
	}
	if update.Row == "" {
		update.Row = current.Row
	}
	if update.Column == 0 {
		update.Column = current.Column
	}
	if update.Type == "" {
		update.Type = current.Type
	}
	if update.CoupleID == nil {
		update.CoupleID = current.CoupleID
	}
	if update.Status == "" {
		update.Status = current.Status
	}
	return update
}

// normalizeSeat fills row and column from a label such as "G5".
func normalizeSeat(seat model.Seat) model.Seat {
	if seat.Label == "" {
		seat.Label = string(seat.ID)
	}
	if seat.Type == "" {
		seat.Type = model.SeatStandard
	}
	if seat.Status == "" {
		seat.Status = model.SeatAvailable
	}
	if seat.Row != "" && seat.Column > 0 {
		return seat
	}
	split := strings.IndexFunc(seat.Label, unicode.IsDigit)
	if split <= 0 {
		return seat
	}
	if seat.Row == "" {
		seat.Row = strings.ToUpper(seat.Label[:split])
	}
	if seat.Column == 0 {
		if column, err := strconv.Atoi(seat.Label[split:]); err == nil {
			seat.Column = column
		}
	}
	return seat
}

func label(seat model.Seat) string {
	if seat.Label != "" {
		return seat.Label
	}
	return string(seat.ID)
}

type seatSet map[model.SeatID]struct{}

func newSeatSet(ids []model.SeatID) seatSet {
	set := make(seatSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (s seatSet) has(id model.SeatID) bool {
	_, ok := s[id]
	return ok
}

func (s seatSet) add(id model.SeatID) {
	s[id] = struct{}{}
}

func (s seatSet) slice() []model.SeatID {
	out := make([]model.SeatID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}
