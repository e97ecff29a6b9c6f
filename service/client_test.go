package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cinema-booking-cli/model"
)

func newTestClient(server *httptest.Server) *Client {
	client := NewClient(server.URL, server.Client())
	client.retryBase = time.Millisecond
	client.retryCap = 2 * time.Millisecond
	return client
}

func TestDoJSON_Non2xxReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := newTestClient(server)

	var out map[string]any
	err := client.doJSON(context.Background(), http.MethodGet, server.URL+"/fail", nil, &out, 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("unexpected error: %v", err)
	}
	if !IsTransient(err) {
		t.Fatalf("expected 500 to be transient, got %v", err)
	}
}

func TestDoJSON_RetriesTransientServerErrors(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt32(&attempts, 1)
		if current < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("retry later"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	client := newTestClient(server)

	var out map[string]any
	if err := client.doJSON(context.Background(), http.MethodGet, server.URL+"/retry", nil, &out, 3); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if ok, _ := out["ok"].(bool); !ok {
		t.Fatalf("unexpected payload: %+v", out)
	}
}

func TestDoJSON_DoesNotRetryOnClientErrors(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request"))
	}))
	defer server.Close()

	client := newTestClient(server)

	var out map[string]any
	err := client.doJSON(context.Background(), http.MethodGet, server.URL+"/bad-request", nil, &out, 3)
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
	if IsTransient(err) {
		t.Fatalf("expected 400 not to be transient")
	}
}

func TestGetShowtime_UnwrapsEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/showtime/ST-42" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "status": "success",
  "data": {
    "showtime": {"id": 42, "publicCode": "ST-42", "movie": {"id": 1, "title": "Dune"}, "format": "IMAX", "price": 90000},
    "seats": [
      {"id": 101, "label": "G5", "row": "G", "column": 5, "type": "STANDARD", "status": "AVAILABLE"},
      {"id": "C1", "label": "C1", "row": "C", "column": 1, "type": "COUPLE", "status": "HELD", "heldBy": "GUEST_x", "coupleId": 102}
    ]
  }
}`))
	}))
	defer server.Close()

	client := newTestClient(server)

	detail, err := client.GetShowtime(context.Background(), "ST-42")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if detail.Showtime.ID != 42 || detail.Showtime.Movie.Title != "Dune" {
		t.Fatalf("unexpected showtime: %+v", detail.Showtime)
	}
	if len(detail.Seats) != 2 {
		t.Fatalf("expected 2 seats, got %d", len(detail.Seats))
	}
	if detail.Seats[0].ID != "101" {
		t.Fatalf("expected numeric id to decode as %q, got %q", "101", detail.Seats[0].ID)
	}
	if detail.Seats[1].CoupleID == nil || *detail.Seats[1].CoupleID != "102" {
		t.Fatalf("unexpected couple id: %+v", detail.Seats[1].CoupleID)
	}
}

func TestGetShowtime_RequiresCode(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", nil)
	if _, err := client.GetShowtime(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty code")
	}
}

func TestHold_SeatConflictCarriesRejectedIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/showtime/ST-42/hold" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req model.HoldRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.SeatIDs) != 1 || req.SeatIDs[0] != "G5" {
			t.Fatalf("unexpected seat ids: %+v", req.SeatIDs)
		}
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"status":"error","message":"seat taken","keyError":"SEAT_CONFLICT","rejectedSeatIds":["G5"]}`))
	}))
	defer server.Close()

	client := newTestClient(server)

	_, err := client.Hold(context.Background(), "ST-42", model.HoldRequest{SeatIDs: model.SeatIDs("G5")})
	if err == nil {
		t.Fatal("expected error")
	}
	if !HasCode(err, CodeSeatConflict) {
		t.Fatalf("expected seat conflict, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || len(apiErr.RejectedSeatIDs) != 1 || apiErr.RejectedSeatIDs[0] != "G5" {
		t.Fatalf("unexpected rejected ids: %+v", apiErr)
	}
}

func TestHold_RetriedExactlyOnce(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server)

	if _, err := client.Hold(context.Background(), "ST-42", model.HoldRequest{SeatIDs: model.SeatIDs("G5")}); err == nil {
		t.Fatal("expected error")
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestHold_RetriesAfterClientTimeout(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(300 * time.Millisecond):
			}
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","data":{"heldBy":"GUEST_1","expiresAt":"2026-10-14T19:10:00Z"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, &http.Client{Timeout: 100 * time.Millisecond})
	client.retryBase = time.Millisecond
	client.retryCap = 2 * time.Millisecond

	res, err := client.Hold(context.Background(), "ST-42", model.HoldRequest{SeatIDs: model.SeatIDs("G5")})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if res.HeldBy != "GUEST_1" {
		t.Fatalf("expected held by GUEST_1, got %q", res.HeldBy)
	}
	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestHold_CallerDeadlineStopsRetries(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(300 * time.Millisecond):
		}
	}))
	defer server.Close()

	client := newTestClient(server)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := client.Hold(ctx, "ST-42", model.HoldRequest{SeatIDs: model.SeatIDs("G5")}); err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
}

func TestPurchase_NeverRetried(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server)

	_, err := client.Purchase(context.Background(), "ST-42", model.PurchaseRequest{
		HeldBy:  "GUEST_1",
		SeatIDs: model.SeatIDs("G5"),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestPurchase_OK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/showtime/ST-42/purchase" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var req model.PurchaseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.HeldBy != "GUEST_1" || req.PaymentMethod != model.PaymentCard || req.PayerInfo.Name != "An" {
			t.Fatalf("unexpected request: %+v", req)
		}
		_, _ = w.Write([]byte(`{"status":"success","data":{"orderCode":"OD123"}}`))
	}))
	defer server.Close()

	client := newTestClient(server)

	res, err := client.Purchase(context.Background(), "ST-42", model.PurchaseRequest{
		HeldBy:        "GUEST_1",
		SeatIDs:       model.SeatIDs("G5", "G6"),
		PayerInfo:     model.PayerInfo{Name: "An", Phone: "0901234567"},
		PaymentMethod: model.PaymentCard,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if res.OrderCode != "OD123" {
		t.Fatalf("unexpected order code: %s", res.OrderCode)
	}
}

func TestRelease_StatusOnlyReply(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		_, _ = w.Write([]byte(`{"status":"success","data":"Released"}`))
	}))
	defer server.Close()

	client := newTestClient(server)

	if err := client.Release(context.Background(), "ST-42", model.ReleaseRequest{HeldBy: "GUEST_1"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if err := client.Release(context.Background(), "ST-42", model.ReleaseRequest{}); err == nil {
		t.Fatal("expected error without held by token")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestReleaseBestEffort_SingleAttempt(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server)

	if err := client.ReleaseBestEffort(context.Background(), "ST-42", model.ReleaseRequest{HeldBy: "GUEST_1"}); err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetryDelay_Capped(t *testing.T) {
	client := NewClient("", nil)
	if got := client.retryDelay(1); got != defaultRetryBase {
		t.Fatalf("expected %s, got %s", defaultRetryBase, got)
	}
	if got := client.retryDelay(10); got != defaultRetryCap {
		t.Fatalf("expected %s, got %s", defaultRetryCap, got)
	}
}

func TestFeedURLFromBase(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080/api/v1": "ws://localhost:8080/api/v1",
		"https://cinema.example/api":   "wss://cinema.example/api",
	}
	for in, want := range cases {
		if got := feedURLFromBase(in); got != want {
			t.Fatalf("feedURLFromBase(%q) = %q, want %q", in, got, want)
		}
	}
}
