package booking

import (
	"time"

	"cinema-booking-cli/model"
	"cinema-booking-cli/store"
)

// Event is an input of the session reducer. Only the types below implement it.
type Event interface {
	isEvent()
}

// Tick is the 1 Hz countdown timer.
type Tick struct {
	Now time.Time
}

type SnapshotResult struct {
	Detail model.ShowtimeDetail
	Err    error
}

// HoldResult, ReleaseResult and PurchaseResult carry the session generation
// that issued the call; results of an older session are not applied.
type HoldResult struct {
	Gen      int
	Request  model.HoldRequest
	Response model.HoldResponse
	Err      error
}

type ReleaseResult struct {
	Gen     int
	Request model.ReleaseRequest
	Err     error
}

type PurchaseResult struct {
	Gen      int
	Request  model.PurchaseRequest
	Response model.PurchaseResponse
	Err      error
}

// FeedUpdate is a frame of the live seat feed.
type FeedUpdate struct {
	Seats []model.Seat
}

type IntentKind string

const (
	IntentSelect        IntentKind = "select"
	IntentDeselect      IntentKind = "deselect"
	IntentToggle        IntentKind = "toggle"
	IntentPurchase      IntentKind = "purchase"
	IntentCancel        IntentKind = "cancel"
	IntentExtend        IntentKind = "extend"
	IntentRestart       IntentKind = "restart"
	IntentRefresh       IntentKind = "refresh"
	IntentDismiss       IntentKind = "dismiss"
	IntentPayerInfo     IntentKind = "payer_info"
	IntentPaymentMethod IntentKind = "payment_method"
)

// Intent is a user action. Catalog.Tap produces select and deselect intents;
// the view produces the rest.
type Intent struct {
	Kind    IntentKind
	SeatIDs []model.SeatID
	Payer   model.PayerInfo
	Method  model.PaymentMethod
}

func (Tick) isEvent()           {}
func (SnapshotResult) isEvent() {}
func (HoldResult) isEvent()     {}
func (ReleaseResult) isEvent()  {}
func (PurchaseResult) isEvent() {}
func (FeedUpdate) isEvent()     {}
func (Intent) isEvent()         {}

// Effect is work the reducer asks the runtime to do. Network effects report
// back with the matching result event.
type Effect interface {
	isEffect()
}

type FetchSnapshot struct {
	Code string
}

type CallHold struct {
	Gen     int
	Code    string
	Request model.HoldRequest
}

type CallRelease struct {
	Gen     int
	Code    string
	Request model.ReleaseRequest
}

// ReleaseBestEffort is fire-and-forget: one attempt, no result event.
type ReleaseBestEffort struct {
	Code    string
	Request model.ReleaseRequest
}

type CallPurchase struct {
	Gen     int
	Code    string
	Request model.PurchaseRequest
}

type SaveHold struct {
	Record store.HoldRecord
}

type ClearHold struct{}

type SaveDraft struct {
	Draft store.PaymentDraft
}

type ClearDraft struct{}

func (FetchSnapshot) isEffect()     {}
func (CallHold) isEffect()          {}
func (CallRelease) isEffect()       {}
func (ReleaseBestEffort) isEffect() {}
func (CallPurchase) isEffect()      {}
func (SaveHold) isEffect()          {}
func (ClearHold) isEffect()         {}
func (SaveDraft) isEffect()         {}
func (ClearDraft) isEffect()        {}
