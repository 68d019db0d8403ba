package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/scythe504/ninjahunt-backend/internal"
	"github.com/scythe504/ninjahunt-backend/internal/feed"
	"github.com/scythe504/ninjahunt-backend/internal/game"
	"github.com/scythe504/ninjahunt-backend/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	agg := game.NewScoreAggregator(mem.Namespace("scoreboard"), mem.Namespace("blocked"), nil)
	controller := game.NewController(game.ControllerConfig{}, nil, agg, mem.Namespace("config"), nil)

	s := &Server{
		port:       0,
		controller: controller,
		hub:        feed.NewHub(),
	}
	ts := httptest.NewServer(s.RegisterRoutes())
	t.Cleanup(ts.Close)
	return ts, mem
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v, want status ok", body)
	}
}

func TestStatusEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status error = %v", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		StatusCode int                 `json:"status_code"`
		Data       internal.StatusData `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.StatusCode != http.StatusOK {
		t.Fatalf("status_code = %d, want 200", envelope.StatusCode)
	}
	if envelope.Data.Running {
		t.Fatal("a fresh controller must not report running")
	}
	if envelope.Data.State != internal.StateNotRunning {
		t.Fatalf("state = %s, want %s", envelope.Data.State, internal.StateNotRunning)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	ts, mem := newTestServer(t)
	ctx := context.Background()
	scoreboard := mem.Namespace("scoreboard")
	if _, err := scoreboard.Increment(ctx, "alice", 10); err != nil {
		t.Fatalf("seed score: %v", err)
	}
	if _, err := scoreboard.Increment(ctx, "bob", 5); err != nil {
		t.Fatalf("seed score: %v", err)
	}

	resp, err := http.Get(ts.URL + "/leaderboard")
	if err != nil {
		t.Fatalf("GET /leaderboard error = %v", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		StatusCode int                      `json:"status_code"`
		Data       []internal.LeaderboardRow `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(envelope.Data) != 2 {
		t.Fatalf("leaderboard has %d rows, want 2", len(envelope.Data))
	}
	if envelope.Data[0].MemberID != "alice" || envelope.Data[0].Entry.Rank != 1 {
		t.Fatalf("row[0] = %+v, want alice at rank 1", envelope.Data[0])
	}
}

func TestPersonalEntryEndpoint(t *testing.T) {
	ts, mem := newTestServer(t)
	if _, err := mem.Namespace("scoreboard").Increment(context.Background(), "alice", 10); err != nil {
		t.Fatalf("seed score: %v", err)
	}

	resp, err := http.Get(ts.URL + "/leaderboard/alice")
	if err != nil {
		t.Fatalf("GET /leaderboard/alice error = %v", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Data internal.LeaderboardEntry `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Data.Rank != 1 || envelope.Data.Score != 10 {
		t.Fatalf("entry = %+v, want rank 1 score 10", envelope.Data)
	}
}

func TestPersonalEntryNotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/leaderboard/nobody")
	if err != nil {
		t.Fatalf("GET /leaderboard/nobody error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/status", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS /status error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
