package tui

import (
	"context"
	"strings"
	"sync"
	"testing"

	"cinema-booking-cli/booking"
	"cinema-booking-cli/model"
	tea "github.com/charmbracelet/bubbletea"
)

type fakeSession struct {
	mu      sync.Mutex
	calls   []string
	payer   model.PayerInfo
	method  model.PaymentMethod
	current booking.Snapshot
	updates chan booking.Snapshot
	done    chan struct{}
}

func newFakeSession(snap booking.Snapshot) *fakeSession {
	return &fakeSession{current: snap, updates: make(chan booking.Snapshot, 1), done: make(chan struct{})}
}

func (f *fakeSession) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakeSession) Code() string { return "ST-42" }
func (f *fakeSession) Updates() <-chan booking.Snapshot { return f.updates }
func (f *fakeSession) Current() booking.Snapshot { return f.current }
func (f *fakeSession) Done() <-chan struct{} { return f.done }
func (f *fakeSession) SubmitPurchase(context.Context) error { return f.record("purchase") }
func (f *fakeSession) CancelSession(context.Context) error { return f.record("cancel") }
func (f *fakeSession) ExtendHold(context.Context) error { return f.record("extend") }
func (f *fakeSession) Restart(context.Context) error { return f.record("restart") }
func (f *fakeSession) Refresh(context.Context) error { return f.record("refresh") }
func (f *fakeSession) DismissNotice(context.Context) error { return f.record("dismiss") }

func (f *fakeSession) ToggleSeat(_ context.Context, id model.SeatID) error {
	return f.record("toggle " + string(id))
}

func (f *fakeSession) UpdatePayerInfo(_ context.Context, name, phone, email string) error {
	f.mu.Lock()
	f.payer = model.PayerInfo{Name: name, Phone: phone, Email: email}
	f.mu.Unlock()
	return f.record("payer")
}

func (f *fakeSession) UpdatePaymentMethod(_ context.Context, method model.PaymentMethod) error {
	f.mu.Lock()
	f.method = method
	f.mu.Unlock()
	return f.record("method " + string(method))
}

func (f *fakeSession) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func cell(id string, seatType model.SeatType, status model.SeatStatus) booking.SeatCell {
	return booking.SeatCell{Seat: model.Seat{
		ID:     model.SeatID(id),
		Label:  id,
		Row:    id[:1],
		Column: int(id[1] - '0'),
		Type:   seatType,
		Status: status,
	}}
}

func seatMapSnapshot() booking.Snapshot {
	sold := cell("A3", model.SeatStandard, model.SeatSold)
	sold.Disabled = true
	return booking.Snapshot{
		Code:     "ST-42",
		Showtime: model.Showtime{Code: "ST-42", Price: 75000, Movie: model.MovieRef{Title: "Dune"}},
		Status:   booking.StatusEmpty,
		Seats: []booking.SeatCell{
			cell("A1", model.SeatStandard, model.SeatAvailable),
			cell("A2", model.SeatVIP, model.SeatAvailable),
			sold,
			cell("B1", model.SeatCouple, model.SeatAvailable),
			cell("B2", model.SeatCouple, model.SeatAvailable),
		},
	}
}

func holdingSnapshot(status booking.Status, seconds int) booking.Snapshot {
	snap := seatMapSnapshot()
	snap.Status = status
	snap.SecondsRemaining = seconds
	snap.Seats[0].Mine = true
	snap.Seats[0].Status = model.SeatHeld
	snap.HeldSeatIDs = model.SeatIDs("A1")
	snap.HeldLabels = []string{"A1"}
	snap.Total = 75000
	return snap
}

func runCmd(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, inner := range batch {
			if inner != nil {
				inner()
			}
		}
	}
}

func press(t *testing.T, m tea.Model, key tea.KeyMsg) (appModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(key)
	return next.(appModel), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNew_WaitsForSeatMap(t *testing.T) {
	m := New(newFakeSession(booking.Snapshot{Loading: true})).(appModel)
	if m.state != stateLoading {
		t.Fatalf("expected loading state, got %v", m.state)
	}
	if !strings.Contains(m.View(), "Loading seat map") {
		t.Fatal("expected loading view")
	}

	next, _ := m.Update(snapshotMsg{snap: seatMapSnapshot()})
	if next.(appModel).state != stateSeatMap {
		t.Fatalf("expected seat map, got %v", next.(appModel).state)
	}
}

func TestSeatMap_CursorTogglesSeat(t *testing.T) {
	session := newFakeSession(seatMapSnapshot())
	m := New(session).(appModel)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if got, _ := m.cursorCell(); got.ID != "B2" {
		t.Fatalf("expected cursor on B2, got %s", got.ID)
	}

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	runCmd(t, cmd)
	if calls := session.recorded(); len(calls) != 1 || calls[0] != "toggle B2" {
		t.Fatalf("expected toggle of B2, got %v", calls)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyUp})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	if got, _ := m.cursorCell(); got.ID != "A3" {
		t.Fatalf("expected cursor clamped on A3, got %s", got.ID)
	}
}

func TestRenderSeatMap_Tokens(t *testing.T) {
	m := New(newFakeSession(holdingSnapshot(booking.StatusHolding, 240))).(appModel)
	view := m.renderSeatMap()
	for _, token := range []string{"<>", "{}", "XX", "()", "SCREEN"} {
		if !strings.Contains(view, token) {
			t.Fatalf("expected %q in seat map:\n%s", token, view)
		}
	}
}

func TestHeader_ShowsCountdown(t *testing.T) {
	m := New(newFakeSession(holdingSnapshot(booking.StatusHolding, 245))).(appModel)
	if header := m.headerView(); !strings.Contains(header, "HOLD 04:05") {
		t.Fatalf("expected countdown in header, got %q", header)
	}

	m = m.applySnapshot(holdingSnapshot(booking.StatusExpiring, 59))
	header := m.headerView()
	if !strings.Contains(header, "EXPIRING 00:59") || !strings.Contains(header, "press e to extend") {
		t.Fatalf("expected expiring warning, got %q", header)
	}
}

func TestCheckout_SavesPayerAndPurchases(t *testing.T) {
	session := newFakeSession(holdingSnapshot(booking.StatusHolding, 240))
	m := New(session).(appModel)

	m, _ = press(t, m, runes("c"))
	if m.state != stateCheckout || m.focus != fieldName {
		t.Fatalf("expected checkout with name focused, got state=%v focus=%d", m.state, m.focus)
	}
	m, _ = press(t, m, runes("An"))
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	runCmd(t, cmd)
	if session.payer.Name != "An" {
		t.Fatalf("expected payer name to be saved, got %+v", session.payer)
	}

	m, _ = press(t, m, runes("0901234567"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != fieldMethod {
		t.Fatalf("expected payment method focus, got %d", m.focus)
	}
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})

	_, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	runCmd(t, cmd)
	calls := session.recorded()
	if calls[len(calls)-1] != "purchase" {
		t.Fatalf("expected purchase to be submitted last, got %v", calls)
	}
	if session.payer.Phone != "0901234567" || session.method != model.PaymentCard {
		t.Fatalf("unexpected checkout: %+v %s", session.payer, session.method)
	}
}

func TestCheckout_QuitKeyIsText(t *testing.T) {
	m := New(newFakeSession(holdingSnapshot(booking.StatusHolding, 240))).(appModel)
	m, _ = press(t, m, runes("c"))
	m, _ = press(t, m, runes("q"))
	if m.inputs[fieldName].Value() != "q" {
		t.Fatalf("expected q to be typed, got %q", m.inputs[fieldName].Value())
	}
}

func TestCheckout_LeavesWhenHoldExpires(t *testing.T) {
	m := New(newFakeSession(holdingSnapshot(booking.StatusHolding, 240))).(appModel)
	m, _ = press(t, m, runes("c"))

	expired := seatMapSnapshot()
	expired.Status = booking.StatusExpired
	expired.Notice = &booking.Error{Kind: booking.KindSessionExpired, Message: "your hold has expired"}
	m = m.applySnapshot(expired)
	if m.state != stateSeatMap {
		t.Fatalf("expected seat map after expiry, got %v", m.state)
	}
	if view := m.View(); !strings.Contains(view, "Hold Expired") {
		t.Fatalf("expected blocking notice, got:\n%s", view)
	}
}

func TestBlockingNotice_EnterRestarts(t *testing.T) {
	snap := seatMapSnapshot()
	snap.Status = booking.StatusExpired
	snap.Notice = &booking.Error{Kind: booking.KindSessionExpired, Message: "gone"}
	session := newFakeSession(snap)
	m := New(session).(appModel)

	_, cmd := press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	if cmd != nil {
		t.Fatal("expected seat taps to be ignored while the notice blocks")
	}
	_, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	runCmd(t, cmd)
	if calls := session.recorded(); len(calls) != 1 || calls[0] != "restart" {
		t.Fatalf("expected restart, got %v", calls)
	}
}

func TestConfirmation_ShowsOrder(t *testing.T) {
	snap := holdingSnapshot(booking.StatusConverted, 0)
	snap.Order = &model.Order{
		Code:          "OD123",
		SeatIDs:       model.SeatIDs("A1"),
		Amount:        75000,
		PaymentMethod: model.PaymentMomo,
		Tickets:       []model.Ticket{{Code: "TK1", SeatLabel: "A1"}},
	}
	m := New(newFakeSession(snap)).(appModel)
	if m.state != stateConfirmation {
		t.Fatalf("expected confirmation, got %v", m.state)
	}
	view := m.View()
	for _, want := range []string{"OD123", "75.000 VND", "MoMo", "TK1"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in confirmation:\n%s", want, view)
		}
	}
}

func TestLoadFailure_ShowsRetry(t *testing.T) {
	session := newFakeSession(booking.Snapshot{Notice: &booking.Error{Kind: booking.KindValidation, Message: "showtime ST-42 was not found"}})
	m := New(session).(appModel)
	if m.state != stateError {
		t.Fatalf("expected error state, got %v", m.state)
	}
	_, cmd := press(t, m, runes("r"))
	runCmd(t, cmd)
	if calls := session.recorded(); len(calls) != 1 || calls[0] != "refresh" {
		t.Fatalf("expected refresh, got %v", calls)
	}
}

func TestIntentClosed_Quits(t *testing.T) {
	m := New(newFakeSession(seatMapSnapshot())).(appModel)
	_, cmd := m.Update(intentMsg{action: "toggle seat", err: booking.ErrClosed})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected quit message")
	}
}

func TestFormatPrice(t *testing.T) {
	cases := map[float64]string{
		0:       "-",
		900:     "900 VND",
		75000:   "75.000 VND",
		1250000: "1.250.000 VND",
	}
	for price, want := range cases {
		if got := formatPrice(price); got != want {
			t.Fatalf("expected %q for %.0f, got %q", want, price, got)
		}
	}
}

func TestPadCell(t *testing.T) {
	if got := padCell("7", 3); got != " 7 " {
		t.Fatalf("expected centered cell, got %q", got)
	}
	if got := padCell("", 2); got != "  " {
		t.Fatalf("expected blank cell, got %q", got)
	}
	if got := formatCountdown(61); got != "01:01" {
		t.Fatalf("expected 01:01, got %q", got)
	}
}
