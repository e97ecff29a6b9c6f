package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"cinema-booking-cli/model"
	"cinema-booking-cli/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(BuildInfo{Version: "1.2.0", Commit: "abc123"})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func stateDir(t *testing.T) store.FileStore {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("BOOKING_STATE_DIR", dir)
	return store.FileStore{Dir: dir}
}

type releaseServer struct {
	mu     sync.Mutex
	status int
	body   string
	path   string
	req    model.ReleaseRequest
	calls  int
}

func (s *releaseServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.path = r.URL.Path
	_ = json.NewDecoder(r.Body).Decode(&s.req)
	w.WriteHeader(s.status)
	_, _ = w.Write([]byte(s.body))
}

func (s *releaseServer) last() (string, model.ReleaseRequest, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path, s.req, s.calls
}

func TestBuildInfo_String(t *testing.T) {
	if got := (BuildInfo{Version: "1.2.0", Commit: "abc123"}).String(); got != "cinema-booking-cli 1.2.0 (abc123)" {
		t.Fatalf("unexpected version line: %q", got)
	}
	if got := (BuildInfo{Commit: "none"}).String(); got != "cinema-booking-cli dev" {
		t.Fatalf("unexpected version line: %q", got)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if strings.TrimSpace(out) != "cinema-booking-cli 1.2.0 (abc123)" {
		t.Fatalf("unexpected output: %q", out)
	}

	out, err = execute(t, "--version")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !strings.Contains(out, "1.2.0") {
		t.Fatalf("expected version flag output, got %q", out)
	}
}

func TestRecent_Empty(t *testing.T) {
	stateDir(t)
	out, err := execute(t, "recent")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !strings.Contains(out, "No recent showtimes.") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRecent_ListsShowtimesAndHold(t *testing.T) {
	st := stateDir(t)
	start := time.Date(2026, 10, 14, 19, 30, 0, 0, time.UTC)
	for _, show := range []model.Showtime{
		{Code: "ST-41", Movie: model.MovieRef{Title: "Mai"}, StartTime: start},
		{Code: "ST-42", Movie: model.MovieRef{Title: "Lat Mat 7"}, StartTime: start.Add(time.Hour)},
	} {
		if err := st.RememberShowtime(show); err != nil {
			t.Fatalf("remember showtime: %v", err)
		}
	}
	if err := st.SaveHold(store.HoldRecord{ShowtimeCode: "ST-42", HeldBy: "GUEST_me", SeatIDs: model.SeatIDs("A1", "A2")}); err != nil {
		t.Fatalf("save hold: %v", err)
	}

	out, err := execute(t, "recent")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	for _, want := range []string{"ST-41", "Mai", "ST-42", "Lat Mat 7", "2 seat(s)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Index(out, "ST-42") > strings.Index(out, "ST-41") {
		t.Fatalf("expected most recent showtime first:\n%s", out)
	}
}

func TestRelease_NothingHeld(t *testing.T) {
	stateDir(t)
	out, err := execute(t, "release", "--yes")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !strings.Contains(out, "No held seats to release.") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRelease_SendsRecordedSeats(t *testing.T) {
	st := stateDir(t)
	if err := st.SaveHold(store.HoldRecord{ShowtimeCode: "ST-42", HeldBy: "GUEST_me", SeatIDs: model.SeatIDs("A1", "A2")}); err != nil {
		t.Fatalf("save hold: %v", err)
	}
	backend := &releaseServer{status: http.StatusOK, body: `{"status":"success","data":"Released"}`}
	server := httptest.NewServer(backend)
	defer server.Close()

	out, err := execute(t, "release", "--yes", "--api", server.URL)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	path, req, _ := backend.last()
	if path != "/showtime/ST-42/release" {
		t.Fatalf("unexpected path: %s", path)
	}
	if req.HeldBy != "GUEST_me" || len(req.SeatIDs) != 2 {
		t.Fatalf("unexpected release request: %+v", req)
	}
	if !strings.Contains(out, "Released A1, A2 for showtime ST-42.") {
		t.Fatalf("unexpected output: %q", out)
	}
	if _, ok, _ := st.LoadHold(); ok {
		t.Fatal("expected hold record to be cleared")
	}
}

func TestRelease_LapsedHoldIsCleared(t *testing.T) {
	st := stateDir(t)
	if err := st.SaveHold(store.HoldRecord{ShowtimeCode: "ST-42", HeldBy: "GUEST_me", SeatIDs: model.SeatIDs("A1")}); err != nil {
		t.Fatalf("save hold: %v", err)
	}
	backend := &releaseServer{status: http.StatusNotFound, body: `{"status":"error","message":"hold not found"}`}
	server := httptest.NewServer(backend)
	defer server.Close()

	out, err := execute(t, "release", "-y", "--api", server.URL)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !strings.Contains(out, "already lapsed") {
		t.Fatalf("unexpected output: %q", out)
	}
	if _, ok, _ := st.LoadHold(); ok {
		t.Fatal("expected hold record to be cleared")
	}
}

func TestRelease_FailureKeepsRecord(t *testing.T) {
	st := stateDir(t)
	if err := st.SaveHold(store.HoldRecord{ShowtimeCode: "ST-42", HeldBy: "GUEST_me", SeatIDs: model.SeatIDs("A1")}); err != nil {
		t.Fatalf("save hold: %v", err)
	}
	backend := &releaseServer{status: http.StatusBadRequest, body: `{"status":"error","message":"heldBy does not match"}`}
	server := httptest.NewServer(backend)
	defer server.Close()

	if _, err := execute(t, "release", "--yes", "--api", server.URL); err == nil {
		t.Fatal("expected error")
	}
	if _, _, calls := backend.last(); calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if _, ok, _ := st.LoadHold(); !ok {
		t.Fatal("expected hold record to be kept")
	}
}

func TestGlobalFlags_OverrideEnvOnlyWhenSet(t *testing.T) {
	t.Setenv("BOOKING_API_URL", "http://env.example/api")
	t.Setenv("LOG_LEVEL", "warn")

	flags := &globalFlags{}
	flagCmd := &cobra.Command{Use: "flags-test"}
	flags.register(flagCmd.Flags())
	if err := flagCmd.ParseFlags([]string{"--log-level", "debug", "--no-feed"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := flags.load(flagCmd)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.APIURL != "http://env.example/api" {
		t.Fatalf("expected env api url, got %s", cfg.APIURL)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected flag log level, got %s", cfg.LogLevel)
	}
	if !cfg.DisableFeed {
		t.Fatal("expected feed to be disabled by flag")
	}
}
