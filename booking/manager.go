package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"cinema-booking-cli/model"
	"cinema-booking-cli/service"
	"cinema-booking-cli/store"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	tickInterval       = time.Second
	defaultCallTimeout = 15 * time.Second
	bestEffortTimeout  = 3 * time.Second
	feedRetryDelay     = 5 * time.Second
	eventBuffer        = 32
)

// ErrClosed is returned by intent methods once the manager stopped.
var ErrClosed = errors.New("booking session is closed")

// Backend is the part of the booking API a session needs.
type Backend interface {
	GetShowtime(ctx context.Context, code string) (model.ShowtimeDetail, error)
	Hold(ctx context.Context, code string, req model.HoldRequest) (model.HoldResponse, error)
	Release(ctx context.Context, code string, req model.ReleaseRequest) error
	ReleaseBestEffort(ctx context.Context, code string, req model.ReleaseRequest) error
	Purchase(ctx context.Context, code string, req model.PurchaseRequest) (model.PurchaseResponse, error)
}

// SeatFeed streams live seat changes of a showtime.
type SeatFeed interface {
	SubscribeSeats(ctx context.Context, showtimeID uint) (<-chan service.SeatFrame, error)
}

// Store persists the hold record and the payment draft.
type Store interface {
	LoadHold() (store.HoldRecord, bool, error)
	SaveHold(record store.HoldRecord) error
	ClearHold() error
	LoadPaymentDraft(showtimeCode string) (store.PaymentDraft, bool, error)
	SavePaymentDraft(draft store.PaymentDraft) error
	ClearPaymentDraft() error
	RememberShowtime(showtime model.Showtime) error
}

type Options struct {
	Code    string
	Backend Backend
	// Feed and Store are optional.
	Feed  SeatFeed
	Store Store
	Clock clockwork.Clock
	Log   *slog.Logger
	// GuestToken is offered to the backend on the first hold. A random
	// GUEST_<uuid> token is used when empty.
	GuestToken  string
	HoldWarning time.Duration
	CallTimeout time.Duration
}

// Manager runs one booking session. Every input (intents, ticks, call
// results, feed frames) goes through a single event loop that owns the
// State; calls run in their own goroutines and report back as events.
type Manager struct {
	code        string
	backend     Backend
	feed        SeatFeed
	store       Store
	clock       clockwork.Clock
	log         *slog.Logger
	callTimeout time.Duration

	events  chan Event
	updates chan Snapshot
	current atomic.Pointer[Snapshot]
	done    chan struct{}
	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool

	// owned by the Run goroutine once it started
	state       State
	feedStarted bool
	calls       sync.WaitGroup
}

type intentRequest struct {
	intent Intent
	reply  chan intentReply
}

type intentReply struct {
	snapshot Snapshot
	err      error
}

type closeRequest struct {
	reply chan State
}

func (intentRequest) isEvent() {}
func (closeRequest) isEvent()  {}

func NewManager(opts Options) (*Manager, error) {
	code := strings.TrimSpace(opts.Code)
	if code == "" {
		return nil, errors.New("showtime code is required")
	}
	if opts.Backend == nil {
		return nil, errors.New("booking backend is required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := opts.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	token := strings.TrimSpace(opts.GuestToken)
	if token == "" {
		token = "GUEST_" + uuid.NewString()
	}
	callTimeout := opts.CallTimeout
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}

	m := &Manager{
		code:        code,
		backend:     opts.Backend,
		feed:        opts.Feed,
		store:       opts.Store,
		clock:       clock,
		log:         log.With(slog.String("showtime", code)),
		callTimeout: callTimeout,
		events:      make(chan Event, eventBuffer),
		updates:     make(chan Snapshot, 1),
		done:        make(chan struct{}),
		state:       NewState(code, token, opts.HoldWarning),
	}
	m.state.Checkout = m.loadDraft()
	m.publish()
	return m, nil
}

func (m *Manager) Code() string {
	return m.code
}

// Updates delivers the latest snapshot after every change. Slow readers only
// miss intermediate snapshots.
func (m *Manager) Updates() <-chan Snapshot {
	return m.updates
}

func (m *Manager) Current() Snapshot {
	if snap := m.current.Load(); snap != nil {
		return *snap
	}
	return Snapshot{}
}

// Done is closed when Run returns.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Run drives the session until ctx ends or Close is called.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return errors.New("booking session is already running")
	}
	defer close(m.done)

	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return nil
	}
	m.cancel = cancel
	m.mu.Unlock()
	defer func() {
		cancel()
		m.calls.Wait()
	}()

	ticker := m.clock.NewTicker(tickInterval)
	defer ticker.Stop()

	next, fx := m.state.Start(m.clock.Now(), m.loadResume())
	m.commit(ctx, next, fx, "start")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			m.handle(ctx, Tick{Now: m.clock.Now()})
		case ev := <-m.events:
			switch ev := ev.(type) {
			case intentRequest:
				prev := m.state.Notice
				m.handle(ctx, ev.intent)
				var err error
				if m.state.Notice != nil && m.state.Notice != prev {
					err = m.state.Notice
				}
				ev.reply <- intentReply{snapshot: m.Current(), err: err}
			case closeRequest:
				ev.reply <- m.state
				return nil
			default:
				m.handle(ctx, ev)
			}
		}
	}
}

func (m *Manager) handle(ctx context.Context, ev Event) {
	next, fx := m.state.Reduce(ev)
	m.commit(ctx, next, fx, eventName(ev))
}

func (m *Manager) commit(ctx context.Context, next State, fx []Effect, cause string) {
	prev := m.state
	m.state = next

	if prev.Status != next.Status {
		m.log.Info("hold session status changed",
			slog.String("from", string(prev.Status)),
			slog.String("to", string(next.Status)),
			slog.String("cause", cause),
			slog.Int("held", len(next.Held)),
		)
	}
	if next.Notice != nil && next.Notice != prev.Notice {
		m.log.Warn("booking notice",
			slog.String("kind", string(next.Notice.Kind)),
			slog.String("message", next.Notice.Message),
			slog.Any("error", next.Notice.Err),
		)
	}
	if !prev.Loaded && next.Loaded {
		m.onLoaded(ctx, next.Showtime)
	}

	for _, effect := range fx {
		m.run(ctx, effect)
	}
	m.publish()
}

func (m *Manager) onLoaded(ctx context.Context, showtime model.Showtime) {
	if m.store != nil {
		if err := m.store.RememberShowtime(showtime); err != nil {
			m.log.Debug("remember showtime failed", slog.Any("error", err))
		}
	}
	if m.feed != nil && !m.feedStarted && showtime.ID != 0 {
		m.feedStarted = true
		m.calls.Add(1)
		go m.followFeed(ctx, showtime.ID)
	}
}

func (m *Manager) run(ctx context.Context, effect Effect) {
	switch fx := effect.(type) {
	case FetchSnapshot:
		m.call(ctx, func(callCtx context.Context) Event {
			detail, err := m.backend.GetShowtime(callCtx, fx.Code)
			return SnapshotResult{Detail: detail, Err: err}
		})
	case CallHold:
		m.log.Debug("hold seats", slog.Any("seats", fx.Request.SeatIDs))
		m.call(ctx, func(callCtx context.Context) Event {
			res, err := m.backend.Hold(callCtx, fx.Code, fx.Request)
			return HoldResult{Gen: fx.Gen, Request: fx.Request, Response: res, Err: err}
		})
	case CallRelease:
		m.log.Debug("release seats", slog.Any("seats", fx.Request.SeatIDs))
		m.call(ctx, func(callCtx context.Context) Event {
			err := m.backend.Release(callCtx, fx.Code, fx.Request)
			return ReleaseResult{Gen: fx.Gen, Request: fx.Request, Err: err}
		})
	case CallPurchase:
		m.log.Info("purchase submitted", slog.Int("seats", len(fx.Request.SeatIDs)), slog.String("method", string(fx.Request.PaymentMethod)))
		m.call(ctx, func(callCtx context.Context) Event {
			res, err := m.backend.Purchase(callCtx, fx.Code, fx.Request)
			return PurchaseResult{Gen: fx.Gen, Request: fx.Request, Response: res, Err: err}
		})
	case ReleaseBestEffort:
		m.calls.Add(1)
		go func() {
			defer m.calls.Done()
			m.releaseBestEffort(context.WithoutCancel(ctx), fx.Code, fx.Request)
		}()
	case SaveHold:
		m.persist("save hold", func(s Store) error { return s.SaveHold(fx.Record) })
	case ClearHold:
		m.persist("clear hold", func(s Store) error { return s.ClearHold() })
	case SaveDraft:
		m.persist("save payment draft", func(s Store) error { return s.SavePaymentDraft(fx.Draft) })
	case ClearDraft:
		m.persist("clear payment draft", func(s Store) error { return s.ClearPaymentDraft() })
	}
}

// call runs fn off the loop and posts its result back.
func (m *Manager) call(ctx context.Context, fn func(context.Context) Event) {
	m.calls.Add(1)
	go func() {
		defer m.calls.Done()
		callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
		defer cancel()
		m.post(ctx, fn(callCtx))
	}()
}

func (m *Manager) post(ctx context.Context, ev Event) {
	select {
	case m.events <- ev:
	case <-ctx.Done():
	}
}

func (m *Manager) releaseBestEffort(ctx context.Context, code string, req model.ReleaseRequest) error {
	ctx, cancel := context.WithTimeout(ctx, bestEffortTimeout)
	defer cancel()
	err := m.backend.ReleaseBestEffort(ctx, code, req)
	if err != nil {
		m.log.Debug("best effort release failed", slog.Any("seats", req.SeatIDs), slog.Any("error", err))
		return err
	}
	m.log.Debug("best effort release sent", slog.Any("seats", req.SeatIDs))
	return nil
}

func (m *Manager) persist(action string, fn func(Store) error) {
	if m.store == nil {
		return
	}
	if err := fn(m.store); err != nil {
		m.log.Warn(action+" failed", slog.Any("error", err))
	}
}

func (m *Manager) publish() {
	snap := m.state.Snapshot()
	m.current.Store(&snap)
	select {
	case <-m.updates:
	default:
	}
	select {
	case m.updates <- snap:
	default:
	}
}

func (m *Manager) followFeed(ctx context.Context, showtimeID uint) {
	defer m.calls.Done()
	for {
		frames, err := m.feed.SubscribeSeats(ctx, showtimeID)
		if err != nil {
			m.log.Debug("seat feed unavailable", slog.Any("error", err))
		} else {
			for frame := range frames {
				if frame.Err != nil {
					m.log.Debug("seat feed dropped", slog.Any("error", frame.Err))
					continue
				}
				m.post(ctx, FeedUpdate{Seats: frame.Seats})
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-m.clock.After(feedRetryDelay):
		}
	}
}

func (m *Manager) loadResume() *store.HoldRecord {
	if m.store == nil {
		return nil
	}
	record, ok, err := m.store.LoadHold()
	if err != nil {
		m.log.Warn("load hold record failed", slog.Any("error", err))
		return nil
	}
	if !ok || record.ShowtimeCode != m.code {
		return nil
	}
	m.log.Info("found previous hold", slog.Int("seats", len(record.SeatIDs)))
	return &record
}

func (m *Manager) loadDraft() Checkout {
	checkout := NewCheckout()
	if m.store == nil {
		return checkout
	}
	draft, ok, err := m.store.LoadPaymentDraft(m.code)
	if err != nil {
		m.log.Warn("load payment draft failed", slog.Any("error", err))
		return checkout
	}
	if !ok {
		return checkout
	}
	checkout.Payer = draft.Payer
	if draft.PaymentMethod != "" {
		checkout.Method = draft.PaymentMethod
	}
	return checkout
}

// Dispatch hands an intent to the event loop and waits until it was reduced.
// The returned error is the notice the intent raised, if any.
func (m *Manager) Dispatch(ctx context.Context, in Intent) (Snapshot, error) {
	req := intentRequest{intent: in, reply: make(chan intentReply, 1)}
	select {
	case m.events <- req:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-m.done:
		return Snapshot{}, ErrClosed
	}
	select {
	case reply := <-req.reply:
		return reply.snapshot, reply.err
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-m.done:
		return Snapshot{}, ErrClosed
	}
}

func (m *Manager) SelectSeat(ctx context.Context, ids ...model.SeatID) error {
	_, err := m.Dispatch(ctx, Intent{Kind: IntentSelect, SeatIDs: ids})
	return err
}

func (m *Manager) DeselectSeat(ctx context.Context, ids ...model.SeatID) error {
	_, err := m.Dispatch(ctx, Intent{Kind: IntentDeselect, SeatIDs: ids})
	return err
}

// ToggleSeat is a tap on the seat map.
func (m *Manager) ToggleSeat(ctx context.Context, id model.SeatID) error {
	_, err := m.Dispatch(ctx, Intent{Kind: IntentToggle, SeatIDs: []model.SeatID{id}})
	return err
}

func (m *Manager) SubmitPurchase(ctx context.Context) error {
	_, err := m.Dispatch(ctx, Intent{Kind: IntentPurchase})
	return err
}

// CancelSession releases every held seat.
func (m *Manager) CancelSession(ctx context.Context) error {
	_, err := m.Dispatch(ctx, Intent{Kind: IntentCancel})
	return err
}

func (m *Manager) ExtendHold(ctx context.Context) error {
	_, err := m.Dispatch(ctx, Intent{Kind: IntentExtend})
	return err
}

// Restart leaves an expired, released or converted session and reloads the
// seat map.
func (m *Manager) Restart(ctx context.Context) error {
	_, err := m.Dispatch(ctx, Intent{Kind: IntentRestart})
	return err
}

func (m *Manager) Refresh(ctx context.Context) error {
	_, err := m.Dispatch(ctx, Intent{Kind: IntentRefresh})
	return err
}

func (m *Manager) DismissNotice(ctx context.Context) error {
	_, err := m.Dispatch(ctx, Intent{Kind: IntentDismiss})
	return err
}

func (m *Manager) UpdatePayerInfo(ctx context.Context, name, phone, email string) error {
	_, err := m.Dispatch(ctx, Intent{Kind: IntentPayerInfo, Payer: model.PayerInfo{Name: name, Phone: phone, Email: email}})
	return err
}

func (m *Manager) UpdatePaymentMethod(ctx context.Context, method model.PaymentMethod) error {
	_, err := m.Dispatch(ctx, Intent{Kind: IntentPaymentMethod, Method: method})
	return err
}

// Close stops the session. Seats still held are released with one attempt
// that is bounded by ctx; a failure is only logged since the backend frees
// them on its own timeout.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	cancel := m.cancel
	m.mu.Unlock()

	var state State
	if cancel == nil {
		state = m.state
	} else {
		req := closeRequest{reply: make(chan State, 1)}
		select {
		case m.events <- req:
			select {
			case state = <-req.reply:
			case <-m.done:
				state = m.state
			case <-ctx.Done():
				cancel()
				return ctx.Err()
			}
		case <-m.done:
			state = m.state
		case <-ctx.Done():
			cancel()
			return ctx.Err()
		}
		cancel()
	}

	seats := union(state.Held, state.orphans)
	token := state.HeldBy
	if state.inflight == mutationHold {
		// the backend may commit the pending hold after this release
		seats = union(seats, state.Desired)
		if token == "" {
			token = state.GuestToken
		}
	}
	if token == "" || len(seats) == 0 || state.Status == StatusConverted || state.Status == StatusConverting {
		return nil
	}
	err := m.releaseBestEffort(ctx, m.code, model.ReleaseRequest{HeldBy: token, SeatIDs: state.Catalog.Ordered(seats)})
	if err == nil {
		m.persist("clear hold", func(s Store) error { return s.ClearHold() })
	}
	return nil
}

func eventName(ev Event) string {
	switch ev := ev.(type) {
	case Tick:
		return "tick"
	case SnapshotResult:
		return "snapshot"
	case HoldResult:
		return "hold_result"
	case ReleaseResult:
		return "release_result"
	case PurchaseResult:
		return "purchase_result"
	case FeedUpdate:
		return "feed"
	case Intent:
		return string(ev.Kind)
	default:
		return "event"
	}
}
