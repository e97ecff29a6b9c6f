package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cinema-booking-cli/model"
)

const (
	appDir           = "cinema-booking-cli"
	holdFile         = "hold.json"
	paymentDraftFile = "payment_draft.json"
	recentFile       = "recent_showtimes.json"
	maxRecentShows   = 8
)

type cacheEnvelope[T any] struct {
	UpdatedAt time.Time `json:"updated_at"`
	Data      T         `json:"data"`
}

// HoldRecord is the local copy of the current hold. It survives restarts but
// is only a hint: the seats must be re-validated against the backend before
// the session resumes.
type HoldRecord struct {
	ShowtimeCode  string         `json:"showtime_code"`
	HeldBy        string         `json:"held_by"`
	SeatIDs       []model.SeatID `json:"seat_ids"`
	ExpiresAtHint time.Time      `json:"expires_at_hint"`
}

type PaymentDraft struct {
	ShowtimeCode  string              `json:"showtime_code"`
	Payer         model.PayerInfo     `json:"payer"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
}

type RecentShowtime struct {
	Code       string    `json:"code"`
	MovieTitle string    `json:"movie_title"`
	StartTime  time.Time `json:"start_time"`
}

type showtimeHistory struct {
	Showtimes []RecentShowtime `json:"showtimes"`
}

// FileStore persists booking state as JSON files in one directory. The zero
// value uses the user config directory.
type FileStore struct {
	Dir string
}

func (s FileStore) LoadHold() (HoldRecord, bool, error) {
	path, err := s.path(holdFile)
	if err != nil {
		return HoldRecord{}, false, err
	}
	cache, err := loadCache[HoldRecord](path)
	if err != nil {
		return HoldRecord{}, false, err
	}
	if cache.Data.ShowtimeCode == "" || cache.Data.HeldBy == "" {
		return HoldRecord{}, false, nil
	}
	return cache.Data, true, nil
}

// SaveHold overwrites the single hold record.
func (s FileStore) SaveHold(record HoldRecord) error {
	if strings.TrimSpace(record.ShowtimeCode) == "" || strings.TrimSpace(record.HeldBy) == "" {
		return errors.New("showtime code and held by token are required")
	}
	path, err := s.path(holdFile)
	if err != nil {
		return err
	}
	return saveCache(path, record)
}

func (s FileStore) ClearHold() error {
	return s.remove(holdFile)
}

func (s FileStore) LoadPaymentDraft(showtimeCode string) (PaymentDraft, bool, error) {
	path, err := s.path(paymentDraftFile)
	if err != nil {
		return PaymentDraft{}, false, err
	}
	cache, err := loadCache[PaymentDraft](path)
	if err != nil {
		return PaymentDraft{}, false, err
	}
	if cache.Data.ShowtimeCode == "" || cache.Data.ShowtimeCode != showtimeCode {
		return PaymentDraft{}, false, nil
	}
	return cache.Data, true, nil
}

func (s FileStore) SavePaymentDraft(draft PaymentDraft) error {
	if strings.TrimSpace(draft.ShowtimeCode) == "" {
		return errors.New("showtime code is required")
	}
	path, err := s.path(paymentDraftFile)
	if err != nil {
		return err
	}
	return saveCache(path, draft)
}

func (s FileStore) ClearPaymentDraft() error {
	return s.remove(paymentDraftFile)
}

func (s FileStore) LoadRecentShowtimes() ([]RecentShowtime, error) {
	path, err := s.path(recentFile)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var history showtimeHistory
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, errors.New("invalid showtime history format")
	}
	return history.Showtimes, nil
}

// RememberShowtime moves the showtime to the front of the recent list.
func (s FileStore) RememberShowtime(showtime model.Showtime) error {
	if strings.TrimSpace(showtime.Code) == "" {
		return errors.New("showtime code is required")
	}
	history, _ := s.LoadRecentShowtimes()
	next := []RecentShowtime{{
		Code:       showtime.Code,
		MovieTitle: showtime.Movie.Title,
		StartTime:  showtime.StartTime,
	}}

	for _, existing := range history {
		if strings.EqualFold(existing.Code, showtime.Code) {
			continue
		}
		next = append(next, existing)
		if len(next) >= maxRecentShows {
			break
		}
	}

	path, err := s.path(recentFile)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(showtimeHistory{Showtimes: next}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

func (s FileStore) path(name string) (string, error) {
	if s.Dir != "" {
		return filepath.Join(s.Dir, name), nil
	}
	return configPath(name)
}

func (s FileStore) remove(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func loadCache[T any](path string) (cacheEnvelope[T], error) {
	var cache cacheEnvelope[T]
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cache, nil
		}
		return cache, err
	}
	if err := json.Unmarshal(data, &cache); err != nil {
		return cache, err
	}
	return cache, nil
}

func saveCache[T any](path string, data T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	cache := cacheEnvelope[T]{
		UpdatedAt: time.Now(),
		Data:      data,
	}
	payload, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	// write-then-rename so a crash never leaves a half written record
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func configPath(name string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDir, name), nil
}
