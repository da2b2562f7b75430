package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cybersensei-service/internal/app"
	"cybersensei-service/internal/domain"
	"cybersensei-service/internal/infra/memory"

	"github.com/gorilla/websocket"
)

const testSecret = "test-secret"

type apiFixture struct {
	store  *memory.Store
	server *httptest.Server
}

func newAPIFixture(t *testing.T, missions ...domain.Mission) *apiFixture {
	t.Helper()
	store := memory.NewStore()
	for _, m := range missions {
		store.AddMission(m)
	}

	progression := app.NewProgressionService(store, store, store, store)
	board := app.NewScoreboard(store)
	api := NewAPI(
		app.NewProfileService(store),
		progression,
		app.NewAttemptService(store, store, store, progression, board),
		app.NewStatsService(store, store, store),
		app.NewFriendService(store, store),
		board,
		NewTokenVerifier(testSecret),
	)

	server := httptest.NewServer(api.Router())
	t.Cleanup(server.Close)
	return &apiFixture{store: store, server: server}
}

func (f *apiFixture) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := MintToken(testSecret, userID)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func (f *apiFixture) do(t *testing.T, token, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func levelOneMission(id string) domain.Mission {
	return domain.Mission{
		ID:    id,
		Level: 1,
		Type:  "basico",
		Payload: domain.MissionPayload{
			Title:    "Phishing",
			Question: "Which link is safe to click?",
			Choices: []domain.Choice{
				{ID: "wrong", Text: "bit.ly/free-money", IsCorrect: false},
				{ID: "right", Text: "intranet.school.example", IsCorrect: true},
			},
			Scoring: domain.Scoring{Points: 10},
		},
	}
}

func TestRequiresToken(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, "", http.MethodGet, "/api/overview", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp = f.do(t, "not-a-jwt", http.MethodGet, "/api/overview", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", resp.StatusCode)
	}
}

func TestHealthzIsPublic(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.do(t, "", http.MethodGet, "/healthz", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestAttemptFlowAwardsXP(t *testing.T) {
	f := newAPIFixture(t, levelOneMission("m1"))
	token := f.token(t, "u1")

	resp := f.do(t, token, http.MethodPost, "/api/missions/m1/attempts", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 starting attempt, got %d", resp.StatusCode)
	}
	attempt := decodeBody[domain.Attempt](t, resp)
	if attempt.ID == "" || attempt.MissionID != "m1" {
		t.Fatalf("unexpected attempt: %+v", attempt)
	}

	resp = f.do(t, token, http.MethodPost, "/api/attempts/"+attempt.ID+"/answer", map[string]string{"choiceId": "right"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 submitting answer, got %d", resp.StatusCode)
	}
	result := decodeBody[domain.AttemptResult](t, resp)
	if !result.Correct || result.Score != 10 {
		t.Fatalf("unexpected result: %+v", result)
	}

	resp = f.do(t, token, http.MethodGet, "/api/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 reading stats, got %d", resp.StatusCode)
	}
	stats := decodeBody[domain.PlayerStats](t, resp)
	if stats.XP != 10 || stats.Correct != 1 || stats.MissionsCompleted != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestListAttemptsFiltersByMission(t *testing.T) {
	f := newAPIFixture(t, levelOneMission("m1"), levelOneMission("m2"))
	token := f.token(t, "u1")

	for _, id := range []string{"m1", "m2"} {
		resp := f.do(t, token, http.MethodPost, "/api/missions/"+id+"/attempts", nil)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("expected 201 starting %s, got %d", id, resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp := f.do(t, token, http.MethodGet, "/api/attempts", nil)
	all := decodeBody[[]domain.Attempt](t, resp)
	if len(all) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(all))
	}

	resp = f.do(t, token, http.MethodGet, "/api/attempts?missionId=m1", nil)
	filtered := decodeBody[[]domain.Attempt](t, resp)
	if len(filtered) != 1 || filtered[0].MissionID != "m1" {
		t.Fatalf("expected only m1 attempts, got %+v", filtered)
	}
}

func TestLockedMissionForbidden(t *testing.T) {
	locked := levelOneMission("m5")
	locked.Level = 5
	f := newAPIFixture(t, locked)

	resp := f.do(t, f.token(t, "u1"), http.MethodPost, "/api/missions/m5/attempts", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for locked level, got %d", resp.StatusCode)
	}
}

func TestNextMissionSignalsPathComplete(t *testing.T) {
	f := newAPIFixture(t, levelOneMission("m1"))
	token := f.token(t, "u1")

	resp := f.do(t, token, http.MethodPost, "/api/missions/m1/attempts", nil)
	attempt := decodeBody[domain.Attempt](t, resp)
	resp = f.do(t, token, http.MethodPost, "/api/attempts/"+attempt.ID+"/answer", map[string]string{"choiceId": "right"})
	resp.Body.Close()

	resp = f.do(t, token, http.MethodGet, "/api/missions/m1/next", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 when catalog is exhausted, got %d", resp.StatusCode)
	}
}

func TestDuplicateFriendRequestConflicts(t *testing.T) {
	f := newAPIFixture(t)
	f.store.Ensure(context.Background(), domain.Profile{ID: "u1", Username: "Alice"})
	f.store.Ensure(context.Background(), domain.Profile{ID: "u2", Username: "Bob"})
	token := f.token(t, "u1")

	resp := f.do(t, token, http.MethodPost, "/api/friends/requests", map[string]string{"receiverId": "u2"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 on first request, got %d", resp.StatusCode)
	}

	// Resending from the other side is still a duplicate.
	resp = f.do(t, f.token(t, "u2"), http.MethodPost, "/api/friends/requests", map[string]string{"receiverId": "u1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate, got %d", resp.StatusCode)
	}
}

func TestLeaderboardWebSocketPushesUpdates(t *testing.T) {
	f := newAPIFixture(t, levelOneMission("m1"))
	token := f.token(t, "u1")
	f.store.Ensure(context.Background(), domain.Profile{ID: "u1", Username: "Alice"})

	// Websocket clients cannot set headers, so the token travels as a query
	// parameter.
	u := "ws" + f.server.URL[len("http"):] + "/ws/leaderboard?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	board := readBoard(t, conn)
	if len(board.Entries) != 0 {
		t.Fatalf("expected empty initial board, got %+v", board.Entries)
	}

	resp := f.do(t, token, http.MethodPost, "/api/missions/m1/attempts", nil)
	attempt := decodeBody[domain.Attempt](t, resp)
	resp = f.do(t, token, http.MethodPost, "/api/attempts/"+attempt.ID+"/answer", map[string]string{"choiceId": "right"})
	resp.Body.Close()

	board = readBoard(t, conn)
	if len(board.Entries) != 1 || board.Entries[0].XP != 10 {
		t.Fatalf("expected refreshed board with 10 xp, got %+v", board.Entries)
	}
}

func readBoard(t *testing.T, conn *websocket.Conn) domain.Board {
	t.Helper()
	var msg struct {
		Type    string       `json:"type"`
		Payload domain.Board `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if msg.Type != "leaderboard" {
		t.Fatalf("expected leaderboard message, got %s", msg.Type)
	}
	return msg.Payload
}
