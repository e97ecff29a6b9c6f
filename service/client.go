package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cinema-booking-cli/model"
)

const (
	defaultBaseURL     = "http://localhost:8080/api/v1"
	defaultUserAgent   = "cinema-booking-cli"
	defaultMaxAttempts = 3
	defaultRetryBase   = 200 * time.Millisecond
	defaultRetryCap    = 1200 * time.Millisecond
	maxBodyBytes       = 4 << 20
)

// Seat-set mutations are idempotent and get exactly one automatic retry.
const mutationAttempts = 2

// Error codes the booking backend puts in keyError/code.
const (
	CodeSeatConflict    = "SEAT_CONFLICT"
	CodeSeatExpired     = "SEAT_EXPIRED"
	CodePaymentDeclined = "PAYMENT_DECLINED"
)

// Client wraps HTTP access to the booking backend.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	feedURL     string
	userAgent   string
	maxAttempts int
	retryBase   time.Duration
	retryCap    time.Duration
}

// APIError is returned when the backend responds with a non-2xx status.
type APIError struct {
	StatusCode      int
	Status          string
	Endpoint        string
	Body            string
	Code            string
	Message         string
	RejectedSeatIDs []model.SeatID
}

func (e *APIError) Error() string {
	if e == nil {
		return "booking api error"
	}
	if e.Code != "" {
		return fmt.Sprintf("booking api error: %s: %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("booking api error: %s: %s", e.Status, e.Body)
}

// IsNotFound reports whether the error represents a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// HasCode reports whether the error carries the given backend error code.
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return strings.EqualFold(apiErr.Code, code)
	}
	return false
}

// IsTransient reports whether err is a connectivity failure or a status the
// backend uses for temporary unavailability.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return shouldRetryStatus(apiErr.StatusCode)
	}
	// timeouts count as transient, a caller giving up does not
	return !errors.Is(err, context.Canceled)
}

// NewClient creates a new API client. If httpClient is nil, a default client is used.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 12 * time.Second}
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient:  httpClient,
		baseURL:     baseURL,
		feedURL:     feedURLFromBase(baseURL),
		userAgent:   defaultUserAgent,
		maxAttempts: defaultMaxAttempts,
		retryBase:   defaultRetryBase,
		retryCap:    defaultRetryCap,
	}
}

// SetFeedURL overrides the websocket base derived from the API URL.
func (c *Client) SetFeedURL(feedURL string) {
	if feedURL = strings.TrimRight(strings.TrimSpace(feedURL), "/"); feedURL != "" {
		c.feedURL = feedURL
	}
}

// GetShowtime fetches a showtime and the current seat snapshot of its room.
func (c *Client) GetShowtime(ctx context.Context, code string) (model.ShowtimeDetail, error) {
	if strings.TrimSpace(code) == "" {
		return model.ShowtimeDetail{}, errors.New("showtime code is required")
	}
	var detail model.ShowtimeDetail
	if err := c.doJSON(ctx, http.MethodGet, c.showtimeEndpoint(code, ""), nil, &detail, c.maxAttempts); err != nil {
		return model.ShowtimeDetail{}, err
	}
	return detail, nil
}

// Hold asks the backend to hold exactly req.SeatIDs for the session.
func (c *Client) Hold(ctx context.Context, code string, req model.HoldRequest) (model.HoldResponse, error) {
	if len(req.SeatIDs) == 0 {
		return model.HoldResponse{}, errors.New("at least one seat is required")
	}
	var res model.HoldResponse
	if err := c.doJSON(ctx, http.MethodPost, c.showtimeEndpoint(code, "hold"), req, &res, mutationAttempts); err != nil {
		return model.HoldResponse{}, err
	}
	return res, nil
}

// Release frees req.SeatIDs, or every seat of the session when empty.
func (c *Client) Release(ctx context.Context, code string, req model.ReleaseRequest) error {
	return c.release(ctx, code, req, mutationAttempts)
}

// ReleaseBestEffort sends a single release attempt; used while the client is
// going away and cannot wait on retries.
func (c *Client) ReleaseBestEffort(ctx context.Context, code string, req model.ReleaseRequest) error {
	return c.release(ctx, code, req, 1)
}

func (c *Client) release(ctx context.Context, code string, req model.ReleaseRequest, attempts int) error {
	if req.HeldBy == "" {
		return errors.New("held by token is required")
	}
	var res model.ReleaseResponse
	return c.doJSON(ctx, http.MethodPost, c.showtimeEndpoint(code, "release"), req, &res, attempts)
}

// Purchase converts the hold into an order. It is never retried.
func (c *Client) Purchase(ctx context.Context, code string, req model.PurchaseRequest) (model.PurchaseResponse, error) {
	if req.HeldBy == "" || len(req.SeatIDs) == 0 {
		return model.PurchaseResponse{}, errors.New("held by token and seats are required")
	}
	var res model.PurchaseResponse
	if err := c.doJSON(ctx, http.MethodPost, c.showtimeEndpoint(code, "purchase"), req, &res, 1); err != nil {
		return model.PurchaseResponse{}, err
	}
	if res.OrderCode == "" && res.Order != nil {
		res.OrderCode = res.Order.Code
	}
	return res, nil
}

func (c *Client) showtimeEndpoint(code string, action string) string {
	endpoint := fmt.Sprintf("%s/showtime/%s", c.baseURL, url.PathEscape(code))
	if action != "" {
		endpoint += "/" + action
	}
	return endpoint
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type errorBody struct {
	Message         string          `json:"message"`
	Errors          any             `json:"errors"`
	KeyError        string          `json:"keyError"`
	Code            string          `json:"code"`
	RejectedSeatIDs []model.SeatID  `json:"rejectedSeatIds"`
	Data            json.RawMessage `json:"data"`
}

func (c *Client) doJSON(ctx context.Context, method string, endpoint string, body any, out any, maxAttempts int) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = encoded
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		res, err := c.httpClient.Do(req)
		if err != nil {
			if shouldRetryNetworkError(ctx, err) && attempt < maxAttempts {
				if waitErr := c.waitRetry(ctx, attempt); waitErr != nil {
					return waitErr
				}
				continue
			}
			return fmt.Errorf("request failed: %w", err)
		}

		data, readErr := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
		_ = res.Body.Close()

		if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
			apiErr := newAPIError(res, endpoint, data)
			if shouldRetryStatus(res.StatusCode) && attempt < maxAttempts {
				if waitErr := c.waitRetry(ctx, attempt); waitErr != nil {
					return waitErr
				}
				continue
			}
			return apiErr
		}
		if readErr != nil {
			return fmt.Errorf("read response from %s: %w", endpoint, readErr)
		}
		if err := decodeBody(data, out); err != nil {
			return fmt.Errorf("decode response from %s: %w", endpoint, err)
		}
		return nil
	}

	return errors.New("request failed after retries")
}

func newAPIError(res *http.Response, endpoint string, data []byte) *APIError {
	snippet := data
	if len(snippet) > 8<<10 {
		snippet = snippet[:8<<10]
	}
	apiErr := &APIError{
		StatusCode: res.StatusCode,
		Status:     res.Status,
		Endpoint:   endpoint,
		Body:       strings.TrimSpace(string(snippet)),
	}
	var parsed errorBody
	if err := json.Unmarshal(data, &parsed); err == nil {
		apiErr.Message = parsed.Message
		apiErr.Code = parsed.Code
		if apiErr.Code == "" {
			apiErr.Code = parsed.KeyError
		}
		apiErr.RejectedSeatIDs = parsed.RejectedSeatIDs
		if len(apiErr.RejectedSeatIDs) == 0 && len(parsed.Data) > 0 && parsed.Data[0] == '{' {
			var nested struct {
				RejectedSeatIDs []model.SeatID `json:"rejectedSeatIds"`
			}
			if json.Unmarshal(parsed.Data, &nested) == nil {
				apiErr.RejectedSeatIDs = nested.RejectedSeatIDs
			}
		}
	}
	return apiErr
}

// decodeBody accepts both the {status, data} envelope and bare payloads.
func decodeBody(data []byte, out any) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err == nil && env.Status != "" && len(env.Data) > 0 {
		if bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
			return nil
		}
		if env.Data[0] == '"' {
			// status-only replies such as {"status":"success","data":"Released"}
			return nil
		}
		return json.Unmarshal(env.Data, out)
	}
	return json.Unmarshal(data, out)
}

func shouldRetryStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// shouldRetryNetworkError retries transport failures, including the per
// attempt timeout of the http.Client, as long as the caller's ctx is alive.
func shouldRetryNetworkError(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

func (c *Client) waitRetry(ctx context.Context, attempt int) error {
	delay := c.retryDelay(attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := c.retryBase
	if base <= 0 {
		base = defaultRetryBase
	}
	cap := c.retryCap
	if cap <= 0 {
		cap = defaultRetryCap
	}

	delay := base
	for i := 1; i < attempt; i++ {
		if delay >= cap/2 {
			return cap
		}
		delay *= 2
	}
	if delay > cap {
		return cap
	}
	return delay
}
