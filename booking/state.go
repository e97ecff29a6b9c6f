package booking

import (
	"strings"
	"time"

	"cinema-booking-cli/model"
	"cinema-booking-cli/store"
)

type Status string

const (
	StatusEmpty      Status = "EMPTY"
	StatusHolding    Status = "HOLDING"
	StatusExpiring   Status = "EXPIRING"
	StatusExpired    Status = "EXPIRED"
	StatusConverting Status = "CONVERTING"
	StatusConverted  Status = "CONVERTED"
	StatusReleased   Status = "RELEASED"
)

// Active reports whether seats are held and the countdown runs.
func (s Status) Active() bool {
	return s == StatusHolding || s == StatusExpiring
}

// DefaultHoldWarning is the remaining time below which a hold is EXPIRING.
const DefaultHoldWarning = 60 * time.Second

type mutation int

const (
	mutationNone mutation = iota
	mutationHold
	mutationRelease
	mutationPurchase
)

// State is the hold session of one showtime. It only changes through Reduce,
// which returns a new State and leaves the receiver as it was.
//
// Held is what the backend confirmed. Desired is what the user asked for;
// the difference between the two is sent to the backend one mutation at a
// time.
type State struct {
	Code       string
	GuestToken string
	Warning    time.Duration
	Now        time.Time

	Showtime model.Showtime
	Catalog  Catalog
	Loading  bool
	Loaded   bool

	Status    Status
	HeldBy    string
	Held      []model.SeatID
	Desired   []model.SeatID
	ExpiresAt time.Time

	Checkout Checkout
	Order    *model.Order
	Notice   *Error

	gen      int
	inflight mutation
	// orphans are seats held on the backend that must go back, such as half
	// of a COUPLE pair whose partner was refused.
	orphans []model.SeatID
	resume  *store.HoldRecord
}

func NewState(code, guestToken string, warning time.Duration) State {
	if warning <= 0 {
		warning = DefaultHoldWarning
	}
	return State{
		Code:       strings.TrimSpace(code),
		GuestToken: guestToken,
		Warning:    warning,
		Status:     StatusEmpty,
	}
}

// Start loads the seat snapshot. A persisted hold of the same showtime is
// only resumed once the snapshot confirms it.
func (s State) Start(now time.Time, resume *store.HoldRecord) (State, []Effect) {
	s.Now = now
	if resume != nil && resume.ShowtimeCode == s.Code && resume.HeldBy != "" {
		record := *resume
		s.resume = &record
	}
	return s, s.refresh()
}

// Gen is the session generation stamped on issued calls.
func (s State) Gen() int {
	return s.gen
}

// Busy reports whether a hold, release or purchase call is outstanding.
func (s State) Busy() bool {
	return s.inflight != mutationNone
}

func (s State) SecondsRemaining() int {
	if s.ExpiresAt.IsZero() || !(s.Status.Active() || s.Status == StatusConverting) {
		return 0
	}
	remaining := s.ExpiresAt.Sub(s.Now)
	if remaining <= 0 {
		return 0
	}
	return int(remaining / time.Second)
}

func (s State) Reduce(ev Event) (State, []Effect) {
	var fx []Effect
	switch ev := ev.(type) {
	case Tick:
		fx = s.onTick(ev)
	case SnapshotResult:
		fx = s.onSnapshot(ev)
	case HoldResult:
		fx = s.onHoldResult(ev)
	case ReleaseResult:
		fx = s.onReleaseResult(ev)
	case PurchaseResult:
		fx = s.onPurchaseResult(ev)
	case FeedUpdate:
		s.onFeed(ev)
	case Intent:
		fx = s.onIntent(ev)
	}
	return s, fx
}

func (s *State) onTick(ev Tick) []Effect {
	s.Now = ev.Now
	if !s.Status.Active() {
		return nil
	}
	return s.refreshCountdown()
}

func (s *State) refreshCountdown() []Effect {
	if s.ExpiresAt.IsZero() {
		return nil
	}
	remaining := s.SecondsRemaining()
	if remaining == 0 {
		return s.expire(newError(KindSessionExpired, "your hold has expired, please choose seats again"))
	}
	if time.Duration(remaining)*time.Second <= s.Warning {
		s.Status = StatusExpiring
	} else {
		s.Status = StatusHolding
	}
	return nil
}

// settle derives the status from the confirmed seats after a call finished.
func (s *State) settle() []Effect {
	if len(s.Held) > 0 {
		if !s.Status.Active() {
			s.Status = StatusHolding
		}
		return s.refreshCountdown()
	}
	s.ExpiresAt = time.Time{}
	if s.Status.Active() {
		s.Status = StatusReleased
	}
	return nil
}

// expire drops the session. The backend has already freed the seats; the
// release sent here is advisory.
func (s *State) expire(notice *Error) []Effect {
	var fx []Effect
	lapsed := union(s.Held, s.orphans)
	if s.HeldBy != "" && len(lapsed) > 0 {
		fx = append(fx, ReleaseBestEffort{
			Code:    s.Code,
			Request: model.ReleaseRequest{HeldBy: s.HeldBy, SeatIDs: s.Catalog.Ordered(lapsed)},
		})
	}
	fx = append(fx, ClearHold{})

	s.Catalog = s.Catalog.Free(lapsed)
	s.gen++
	s.Status = StatusExpired
	s.Held, s.Desired, s.orphans = nil, nil, nil
	s.HeldBy = ""
	s.ExpiresAt = time.Time{}
	s.inflight = mutationNone
	s.Notice = notice
	return fx
}

func (s *State) refresh() []Effect {
	if s.Loading {
		return nil
	}
	s.Loading = true
	return []Effect{FetchSnapshot{Code: s.Code}}
}

func (s *State) persist() []Effect {
	if len(s.Held) == 0 || s.HeldBy == "" {
		return []Effect{ClearHold{}}
	}
	return []Effect{SaveHold{Record: store.HoldRecord{
		ShowtimeCode:  s.Code,
		HeldBy:        s.HeldBy,
		SeatIDs:       s.Catalog.Ordered(s.Held),
		ExpiresAtHint: s.ExpiresAt,
	}}}
}

func (s *State) clearNotice() {
	if !s.Notice.Blocking() {
		s.Notice = nil
	}
}

// dispatch sends the next mutation needed to bring Held to Desired. Releases
// go first; a hold always carries the full desired set.
func (s *State) dispatch() []Effect {
	return s.dispatchExcept(nil)
}

// dispatchExcept is dispatch without releasing skip in this round.
func (s *State) dispatchExcept(skip []model.SeatID) []Effect {
	if s.inflight != mutationNone {
		return nil
	}
	switch s.Status {
	case StatusExpired, StatusConverting, StatusConverted:
		return nil
	}

	release := minus(union(minus(s.Held, s.Desired), s.orphans), skip)
	if len(release) > 0 {
		if s.HeldBy == "" {
			s.Held = intersect(s.Held, s.Desired)
			s.orphans = nil
		} else {
			s.inflight = mutationRelease
			return []Effect{CallRelease{
				Gen:     s.gen,
				Code:    s.Code,
				Request: model.ReleaseRequest{HeldBy: s.HeldBy, SeatIDs: s.Catalog.Ordered(release)},
			}}
		}
	}
	if len(minus(s.Desired, s.Held)) > 0 {
		s.inflight = mutationHold
		return []Effect{CallHold{Gen: s.gen, Code: s.Code, Request: s.holdRequest(s.Desired)}}
	}
	return nil
}

func (s *State) holdRequest(ids []model.SeatID) model.HoldRequest {
	req := model.HoldRequest{SeatIDs: s.Catalog.Ordered(ids), HeldBy: s.HeldBy}
	if req.HeldBy == "" {
		req.GuestSessionID = s.GuestToken
	}
	return req
}

func (s *State) onSnapshot(ev SnapshotResult) []Effect {
	s.Loading = false
	if ev.Err != nil {
		notice := classify(ev.Err)
		if notice.Kind == KindSessionExpired {
			notice = &Error{Kind: KindValidation, Message: "showtime " + s.Code + " was not found", Err: ev.Err}
		}
		s.Notice = notice
		return nil
	}

	s.Showtime = ev.Detail.Showtime
	if s.Showtime.Code == "" {
		s.Showtime.Code = s.Code
	}
	s.Catalog = s.Catalog.Apply(ev.Detail.Seats)
	s.Loaded = true

	fx := s.reconcileHeld()
	if s.resume != nil {
		fx = append(fx, s.resumeHold()...)
	}
	return fx
}

// reconcileHeld drops confirmed seats the snapshot shows as settled or held
// by another session.
func (s *State) reconcileHeld() []Effect {
	if !s.Status.Active() {
		return nil
	}
	var lost []model.SeatID
	for _, id := range s.Held {
		seat, ok := s.Catalog.Seat(id)
		if !ok {
			continue
		}
		if seat.Unavailable() || (seat.Status == model.SeatHeld && seat.HeldBy != "" && seat.HeldBy != s.HeldBy) {
			lost = append(lost, id)
		}
	}
	if len(lost) == 0 {
		return nil
	}
	lost = s.Catalog.Expand(lost)
	s.Held = minus(s.Held, lost)
	s.Desired = minus(s.Desired, lost)
	s.Notice = &Error{
		Kind:    KindSeatConflict,
		Message: "seat " + strings.Join(s.Catalog.Labels(lost), ", ") + " is no longer held for you",
		SeatIDs: lost,
	}
	fx := s.persist()
	fx = append(fx, s.settle()...)
	return append(fx, s.dispatch()...)
}

func (s *State) resumeHold() []Effect {
	record := *s.resume
	s.resume = nil

	var mine, unconfirmed []model.SeatID
	for _, id := range s.Catalog.Ordered(record.SeatIDs) {
		seat, ok := s.Catalog.Seat(id)
		if !ok {
			continue
		}
		switch {
		case seat.HeldByToken(record.HeldBy):
			mine = append(mine, id)
		case seat.Status == model.SeatHeld && seat.HeldBy == "":
			unconfirmed = append(unconfirmed, id)
		}
	}
	if len(mine) == 0 && len(unconfirmed) == 0 {
		return []Effect{ClearHold{}}
	}

	s.HeldBy = record.HeldBy
	expiresAt := earliestExpiry(s.Catalog, mine)
	if expiresAt.IsZero() {
		expiresAt = record.ExpiresAtHint
	}
	if len(unconfirmed) == 0 && !expiresAt.IsZero() && s.inflight == mutationNone {
		held, orphans := s.pairUp(mine)
		s.Held = held
		s.Desired = held
		s.orphans = orphans
		s.ExpiresAt = expiresAt
		s.Status = StatusHolding
		fx := s.persist()
		fx = append(fx, s.settle()...)
		return append(fx, s.dispatch()...)
	}

	// Ownership is not visible in the snapshot: holding the same seats again
	// under the stored token either confirms them or fails.
	s.Desired = s.Catalog.Expand(union(mine, unconfirmed))
	return s.dispatch()
}

func (s *State) onHoldResult(ev HoldResult) []Effect {
	if ev.Gen != s.gen {
		return s.staleHold(ev)
	}
	s.inflight = mutationNone
	requested := ev.Request.SeatIDs

	if ev.Err != nil {
		notice := classify(ev.Err)
		switch notice.Kind {
		case KindSessionExpired:
			return s.expire(notice)
		case KindSeatConflict:
			rejected := notice.SeatIDs
			if len(rejected) == 0 {
				rejected = minus(requested, s.Held)
			}
			rejected = s.Catalog.Expand(rejected)
			s.Held = minus(s.Held, rejected)
			s.Desired = minus(s.Desired, rejected)
			s.Catalog = s.Catalog.MarkUnavailable(rejected)
			s.Notice = conflictNotice(s.Catalog, rejected, notice.Err)
			fx := s.persist()
			fx = append(fx, s.settle()...)
			fx = append(fx, s.refresh()...)
			return append(fx, s.dispatch()...)
		default:
			s.Desired = s.Catalog.Ordered(union(s.Held, minus(s.Desired, requested)))
			s.Notice = notice
			return s.dispatch()
		}
	}

	res := ev.Response
	heldBy := firstNonEmpty(res.HeldBy, ev.Request.HeldBy, ev.Request.GuestSessionID)
	s.HeldBy = heldBy
	if len(res.Seats) > 0 {
		s.Catalog = s.Catalog.Merge(res.Seats)
	}

	confirmed, orphans := s.pairUp(confirmedSeats(requested, res, heldBy))
	rejected := minus(requested, confirmed)

	s.Held = s.Catalog.Ordered(confirmed)
	s.orphans = minus(union(s.orphans, orphans), s.Held)
	s.Desired = s.Catalog.Ordered(minus(s.Desired, rejected))

	expiresAt := res.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = earliestExpiry(s.Catalog, s.Held)
	}
	if !expiresAt.IsZero() {
		s.ExpiresAt = expiresAt
	}

	var fx []Effect
	if refused := minus(rejected, orphans); len(refused) > 0 {
		shown := seatsIn(res.Seats)
		var unseen []model.SeatID
		for _, id := range refused {
			if !shown.has(id) {
				unseen = append(unseen, id)
			}
		}
		s.Catalog = s.Catalog.MarkUnavailable(unseen)
		s.Notice = conflictNotice(s.Catalog, refused, nil)
		fx = append(fx, s.refresh()...)
	}

	fx = append(fx, s.persist()...)
	fx = append(fx, s.settle()...)
	return append(fx, s.dispatch()...)
}

// staleHold gives back seats a superseded session managed to hold.
func (s *State) staleHold(ev HoldResult) []Effect {
	if ev.Err != nil {
		return nil
	}
	heldBy := firstNonEmpty(ev.Response.HeldBy, ev.Request.HeldBy, ev.Request.GuestSessionID)
	ids := ev.Request.SeatIDs
	if heldBy == s.HeldBy || heldBy == s.GuestToken {
		ids = minus(ids, union(s.Held, s.Desired))
	}
	if heldBy == "" || len(ids) == 0 {
		return nil
	}
	return []Effect{ReleaseBestEffort{Code: s.Code, Request: model.ReleaseRequest{HeldBy: heldBy, SeatIDs: ids}}}
}

func (s *State) onReleaseResult(ev ReleaseResult) []Effect {
	if ev.Gen != s.gen {
		return nil
	}
	s.inflight = mutationNone
	released := ev.Request.SeatIDs

	if ev.Err != nil {
		notice := classify(ev.Err)
		// an expired session has nothing left to release
		if notice.Kind != KindSessionExpired {
			// failed orphans stay tracked and go out with the next release
			s.Desired = s.Catalog.Ordered(union(s.Desired, intersect(released, s.Held)))
			s.Notice = notice
			return s.dispatchExcept(intersect(released, s.orphans))
		}
	}

	s.Held = minus(s.Held, released)
	s.orphans = minus(s.orphans, released)
	s.Catalog = s.Catalog.Free(released)

	fx := s.persist()
	fx = append(fx, s.settle()...)
	return append(fx, s.dispatch()...)
}

func (s *State) onPurchaseResult(ev PurchaseResult) []Effect {
	if ev.Gen != s.gen || s.Status != StatusConverting {
		return nil
	}
	s.inflight = mutationNone

	if ev.Err == nil {
		s.Order = orderFrom(ev.Request, ev.Response, s.Showtime)
		s.Status = StatusConverted
		s.Catalog = s.Catalog.MarkSold(s.Held)
		s.ExpiresAt = time.Time{}
		s.Notice = nil
		s.Checkout = NewCheckout()
		return []Effect{ClearHold{}, ClearDraft{}}
	}

	notice := classify(ev.Err)
	switch notice.Kind {
	case KindSessionExpired, KindSeatConflict:
		return s.expire(&Error{
			Kind:    KindSessionExpired,
			Message: "your seats expired or were taken, please choose seats again",
			SeatIDs: notice.SeatIDs,
			Err:     notice.Err,
		})
	default:
		s.Status = StatusHolding
		s.Notice = notice
		return s.settle()
	}
}

func (s *State) onFeed(ev FeedUpdate) {
	protected := newSeatSet(union(union(s.Held, s.Desired), s.orphans))
	seats := make([]model.Seat, 0, len(ev.Seats))
	for _, seat := range ev.Seats {
		if !protected.has(seat.ID) {
			seats = append(seats, seat)
		}
	}
	s.Catalog = s.Catalog.Merge(seats)
}

func (s *State) onIntent(in Intent) []Effect {
	switch in.Kind {
	case IntentSelect:
		return s.selectSeats(in.SeatIDs)
	case IntentDeselect:
		return s.deselectSeats(in.SeatIDs)
	case IntentToggle:
		return s.toggleSeat(in.SeatIDs)
	case IntentPurchase:
		return s.purchase()
	case IntentCancel:
		return s.cancel()
	case IntentExtend:
		return s.extend()
	case IntentRestart:
		return s.restart()
	case IntentRefresh:
		return s.refresh()
	case IntentDismiss:
		s.Notice = nil
		return nil
	case IntentPayerInfo:
		if err := s.acceptingCheckoutEdits(); err != nil {
			s.Notice = err
			return nil
		}
		s.Checkout = s.Checkout.UpdatePayerInfo(in.Payer.Name, in.Payer.Phone, in.Payer.Email)
		return s.saveDraft()
	case IntentPaymentMethod:
		if err := s.acceptingCheckoutEdits(); err != nil {
			s.Notice = err
			return nil
		}
		s.Checkout = s.Checkout.UpdatePaymentMethod(in.Method)
		return s.saveDraft()
	default:
		s.Notice = newError(KindValidation, "unknown action "+string(in.Kind))
		return nil
	}
}

func (s *State) acceptingSelection() *Error {
	switch {
	case s.Status == StatusExpired:
		return newError(KindSessionExpired, "your hold has expired, restart seat selection")
	case s.Status == StatusConverting:
		return newError(KindBusy, "purchase is in progress")
	case s.Status == StatusConverted:
		return newError(KindValidation, "this booking is complete, start a new one to pick more seats")
	case !s.Loaded && s.Loading:
		return newError(KindBusy, "seat map is still loading")
	case !s.Loaded:
		return newError(KindValidation, "seat map is not loaded, refresh and try again")
	}
	return nil
}

func (s *State) acceptingCheckoutEdits() *Error {
	switch s.Status {
	case StatusConverting:
		return newError(KindBusy, "purchase is in progress")
	case StatusConverted:
		return newError(KindValidation, "this booking is complete")
	}
	return nil
}

func (s *State) selectSeats(ids []model.SeatID) []Effect {
	if err := s.acceptingSelection(); err != nil {
		s.Notice = err
		return nil
	}
	if len(ids) == 0 {
		s.Notice = newError(KindValidation, "select at least one seat")
		return nil
	}
	for _, id := range ids {
		if _, ok := s.Catalog.Seat(id); !ok {
			s.Notice = newError(KindValidation, "seat "+string(id)+" is not part of this showtime", id)
			return nil
		}
	}
	ids = s.Catalog.Expand(ids)

	wanted := newSeatSet(union(s.Desired, s.Held))
	var taken []model.SeatID
	for _, id := range ids {
		if wanted.has(id) {
			continue
		}
		seat, _ := s.Catalog.Seat(id)
		if seat.Unavailable() || (seat.Status == model.SeatHeld && !seat.HeldByToken(s.HeldBy)) {
			taken = append(taken, id)
		}
	}
	if len(taken) > 0 {
		s.Notice = conflictNotice(s.Catalog, taken, nil)
		return s.refresh()
	}

	s.Desired = s.Catalog.Ordered(union(s.Desired, ids))
	s.clearNotice()
	return s.dispatch()
}

func (s *State) deselectSeats(ids []model.SeatID) []Effect {
	switch s.Status {
	case StatusConverting:
		s.Notice = newError(KindBusy, "purchase is in progress")
		return nil
	case StatusExpired, StatusConverted:
		return nil
	}
	if len(ids) == 0 {
		s.Notice = newError(KindValidation, "select at least one seat")
		return nil
	}
	s.Desired = minus(s.Desired, s.Catalog.Expand(ids))
	s.clearNotice()
	return s.dispatch()
}

func (s *State) toggleSeat(ids []model.SeatID) []Effect {
	if err := s.acceptingSelection(); err != nil {
		s.Notice = err
		return nil
	}
	if len(ids) != 1 {
		s.Notice = newError(KindValidation, "tap one seat at a time")
		return nil
	}
	intent, err := s.Catalog.Tap(ids[0], s.Desired)
	if err != nil {
		s.Notice = classify(err)
		if s.Notice.Kind == KindSeatConflict {
			return s.refresh()
		}
		return nil
	}
	if intent.Kind == IntentDeselect {
		return s.deselectSeats(intent.SeatIDs)
	}
	return s.selectSeats(intent.SeatIDs)
}

// canPurchase checks every purchase precondition; nil means the call can go.
func (s State) canPurchase() *Error {
	switch {
	case s.Status == StatusConverting || s.inflight == mutationPurchase:
		return newError(KindBusy, "purchase is already in progress")
	case s.Status == StatusConverted:
		return newError(KindValidation, "this booking is already paid")
	case !s.Status.Active() || len(s.Held) == 0:
		return newError(KindValidation, "hold at least one seat before paying")
	case s.inflight != mutationNone || !sameSet(s.Desired, s.Held):
		return newError(KindBusy, "seat changes are still being saved")
	}
	if err := s.Checkout.Validate(); err != nil {
		return classify(err)
	}
	return nil
}

func (s *State) purchase() []Effect {
	if err := s.canPurchase(); err != nil {
		s.Notice = err
		return nil
	}
	s.Status = StatusConverting
	s.inflight = mutationPurchase
	s.clearNotice()
	return []Effect{CallPurchase{
		Gen:  s.gen,
		Code: s.Code,
		Request: model.PurchaseRequest{
			HeldBy:        s.HeldBy,
			SeatIDs:       s.Catalog.Ordered(s.Held),
			PayerInfo:     s.Checkout.Payer,
			PaymentMethod: s.Checkout.Method,
		},
	}}
}

// cancel releases every seat of the session. Cancelling a session that holds
// nothing is a no-op.
func (s *State) cancel() []Effect {
	switch s.Status {
	case StatusConverting:
		s.Notice = newError(KindBusy, "purchase is in progress")
		return nil
	case StatusExpired, StatusConverted:
		return nil
	}
	s.Desired = nil
	s.clearNotice()
	if s.inflight == mutationNone && len(s.Held) == 0 && len(s.orphans) == 0 {
		return []Effect{ClearHold{}}
	}
	return s.dispatch()
}

// extend holds the current seats again to refresh the expiry.
func (s *State) extend() []Effect {
	if !s.Status.Active() || len(s.Held) == 0 {
		s.Notice = newError(KindValidation, "there is no hold to extend")
		return nil
	}
	if s.inflight != mutationNone {
		s.Notice = newError(KindBusy, "another seat change is in progress")
		return nil
	}
	s.inflight = mutationHold
	return []Effect{CallHold{Gen: s.gen, Code: s.Code, Request: s.holdRequest(union(s.Held, s.Desired))}}
}

// restart leaves a finished session and goes back to seat selection.
func (s *State) restart() []Effect {
	switch {
	case s.Status == StatusConverting:
		s.Notice = newError(KindBusy, "purchase is in progress")
		return nil
	case s.Status.Active():
		s.Notice = newError(KindValidation, "cancel the current hold before starting over")
		return nil
	}
	s.gen++
	s.Status = StatusEmpty
	s.Held, s.Desired, s.orphans = nil, nil, nil
	s.HeldBy = ""
	s.ExpiresAt = time.Time{}
	s.inflight = mutationNone
	s.Order = nil
	s.Notice = nil
	return s.refresh()
}

func (s *State) saveDraft() []Effect {
	return []Effect{SaveDraft{Draft: store.PaymentDraft{
		ShowtimeCode:  s.Code,
		Payer:         s.Checkout.Payer,
		PaymentMethod: s.Checkout.Method,
	}}}
}

// pairUp keeps COUPLE seats only when both halves are present and returns
// the lone halves separately.
func (s *State) pairUp(ids []model.SeatID) ([]model.SeatID, []model.SeatID) {
	set := newSeatSet(ids)
	var kept, lone []model.SeatID
	for _, id := range ids {
		if partner, ok := s.Catalog.Partner(id); ok && !set.has(partner) {
			lone = append(lone, id)
			continue
		}
		kept = append(kept, id)
	}
	return kept, lone
}

// confirmedSeats picks the requested seats the hold response shows as ours.
func confirmedSeats(requested []model.SeatID, res model.HoldResponse, heldBy string) []model.SeatID {
	if len(res.HeldSeatIDs) > 0 {
		return intersect(requested, res.HeldSeatIDs)
	}
	if len(res.Seats) == 0 {
		return union(requested, nil)
	}
	byID := make(map[model.SeatID]model.Seat, len(res.Seats))
	for _, seat := range res.Seats {
		byID[seat.ID] = seat
	}
	var confirmed []model.SeatID
	for _, id := range requested {
		seat, ok := byID[id]
		if !ok || (seat.Status == model.SeatHeld && (seat.HeldBy == "" || seat.HeldBy == heldBy)) {
			confirmed = append(confirmed, id)
		}
	}
	return confirmed
}

func orderFrom(req model.PurchaseRequest, res model.PurchaseResponse, showtime model.Showtime) *model.Order {
	var order model.Order
	if res.Order != nil {
		order = *res.Order
	}
	if order.Code == "" {
		order.Code = res.OrderCode
	}
	if len(order.SeatIDs) == 0 {
		order.SeatIDs = union(req.SeatIDs, nil)
	}
	if order.Payer == (model.PayerInfo{}) {
		order.Payer = req.PayerInfo
	}
	if order.PaymentMethod == "" {
		order.PaymentMethod = req.PaymentMethod
	}
	if order.Amount == 0 {
		order.Amount = showtime.Price * float64(len(order.SeatIDs))
	}
	return &order
}

func conflictNotice(catalog Catalog, ids []model.SeatID, cause error) *Error {
	return &Error{
		Kind:    KindSeatConflict,
		Message: "seat " + strings.Join(catalog.Labels(ids), ", ") + " is no longer available",
		SeatIDs: catalog.Ordered(ids),
		Err:     cause,
	}
}

func earliestExpiry(catalog Catalog, ids []model.SeatID) time.Time {
	var earliest time.Time
	for _, id := range ids {
		seat, ok := catalog.Seat(id)
		if !ok || seat.ExpiresAt == nil {
			continue
		}
		if earliest.IsZero() || seat.ExpiresAt.Before(earliest) {
			earliest = *seat.ExpiresAt
		}
	}
	return earliest
}

func seatsIn(seats []model.Seat) seatSet {
	set := make(seatSet, len(seats))
	for _, seat := range seats {
		set.add(seat.ID)
	}
	return set
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

// The set helpers below always allocate, so states never share backing
// arrays. Order follows the first argument.

func union(a, b []model.SeatID) []model.SeatID {
	seen := make(seatSet, len(a)+len(b))
	out := make([]model.SeatID, 0, len(a)+len(b))
	for _, ids := range [][]model.SeatID{a, b} {
		for _, id := range ids {
			if !seen.has(id) {
				seen.add(id)
				out = append(out, id)
			}
		}
	}
	return out
}

func minus(a, b []model.SeatID) []model.SeatID {
	drop := newSeatSet(b)
	out := make([]model.SeatID, 0, len(a))
	for _, id := range a {
		if !drop.has(id) {
			out = append(out, id)
		}
	}
	return out
}

func intersect(a, b []model.SeatID) []model.SeatID {
	keep := newSeatSet(b)
	out := make([]model.SeatID, 0, len(a))
	for _, id := range a {
		if keep.has(id) {
			out = append(out, id)
		}
	}
	return out
}

func sameSet(a, b []model.SeatID) bool {
	return len(minus(a, b)) == 0 && len(minus(b, a)) == 0
}
