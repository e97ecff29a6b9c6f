package booking

import (
	"errors"
	"fmt"
	"net/http"

	"cinema-booking-cli/model"
	"cinema-booking-cli/service"
)

// Kind is the category of a booking failure as the view layer sees it.
type Kind string

const (
	KindSeatConflict     Kind = "SEAT_CONFLICT"
	KindSessionExpired   Kind = "SESSION_EXPIRED"
	KindPaymentDeclined  Kind = "PAYMENT_DECLINED"
	KindTransientNetwork Kind = "TRANSIENT_NETWORK"
	KindValidation       Kind = "VALIDATION"
	KindBusy             Kind = "BUSY"
)

// Error is the only error type that leaves the booking package. Raw
// transport errors are kept in Err for logging.
type Error struct {
	Kind    Kind
	Message string
	SeatIDs []model.SeatID
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "booking error"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Blocking reports whether the notice must be acknowledged before the user
// can carry on. Every other kind is an inline, dismissible notice.
func (e *Error) Blocking() bool {
	return e != nil && e.Kind == KindSessionExpired
}

// IsKind reports whether err is a booking error of the given kind.
func IsKind(err error, kind Kind) bool {
	var bookingErr *Error
	if errors.As(err, &bookingErr) {
		return bookingErr.Kind == kind
	}
	return false
}

func newError(kind Kind, message string, ids ...model.SeatID) *Error {
	return &Error{Kind: kind, Message: message, SeatIDs: ids}
}

// classify translates service and transport errors into a booking Error.
func classify(err error) *Error {
	if err == nil {
		return nil
	}
	var bookingErr *Error
	if errors.As(err, &bookingErr) {
		return bookingErr
	}

	var apiErr *service.APIError
	if !errors.As(err, &apiErr) {
		return &Error{Kind: KindTransientNetwork, Message: "network problem, please try again", Err: err}
	}

	message := apiErr.Message
	switch {
	case service.HasCode(err, service.CodeSeatConflict) || apiErr.StatusCode == http.StatusConflict:
		if message == "" {
			message = "seat no longer available"
		}
		return &Error{Kind: KindSeatConflict, Message: message, SeatIDs: apiErr.RejectedSeatIDs, Err: err}
	case service.HasCode(err, service.CodeSeatExpired) || service.IsNotFound(err) || apiErr.StatusCode == http.StatusGone:
		return &Error{Kind: KindSessionExpired, Message: "your hold has expired, please choose seats again", Err: err}
	case service.HasCode(err, service.CodePaymentDeclined) || apiErr.StatusCode == http.StatusPaymentRequired:
		if message == "" {
			message = "payment was declined"
		}
		return &Error{Kind: KindPaymentDeclined, Message: message, Err: err}
	case service.IsTransient(err):
		return &Error{Kind: KindTransientNetwork, Message: "booking service is unavailable, please try again", Err: err}
	default:
		if message == "" {
			message = "request was rejected"
		}
		return &Error{Kind: KindValidation, Message: message, Err: err}
	}
}
