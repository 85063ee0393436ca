package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dosada05/cue-tournaments/brackets"
	"github.com/Dosada05/cue-tournaments/handlers"
	"github.com/Dosada05/cue-tournaments/metrics"
	"github.com/Dosada05/cue-tournaments/models"
	"github.com/Dosada05/cue-tournaments/repositories"
	"github.com/Dosada05/cue-tournaments/services"
	"github.com/Dosada05/cue-tournaments/storage"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "route-test-secret"

type testServer struct {
	t     *testing.T
	srv   *httptest.Server
	hub   *brackets.Hub
	store *storage.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tournamentRepo := repositories.NewMemoryTournamentRepository()
	userRepo := repositories.NewMemoryUserRepository()

	hub := brackets.NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	registry := prometheus.NewRegistry()
	lifecycle := metrics.NewLifecycle(registry)
	locks := services.NewTournamentLocks()
	gate := services.NewOfficialGate(tournamentRepo)
	store := storage.NewMemoryStore()

	bracketService := services.NewBracketService(services.BracketServiceDeps{
		TournamentRepo: tournamentRepo,
		UserRepo:       userRepo,
		Gate:           gate,
		Locks:          locks,
		Notifier:       hub,
		Archiver:       storage.NewBracketArchiver(store),
		Metrics:        lifecycle,
		Logger:         logger,
	})

	router := chi.NewRouter()
	SetupRoutes(router, Handlers{
		Auth:        handlers.NewAuthHandler(services.NewAuthService(userRepo), testSecret),
		Tournament:  handlers.NewTournamentHandler(services.NewTournamentService(tournamentRepo, userRepo, locks, logger)),
		Participant: handlers.NewParticipantHandler(services.NewParticipantService(tournamentRepo, userRepo, gate, locks, lifecycle, logger)),
		Bracket:     handlers.NewBracketHandler(bracketService),
		WebSocket:   handlers.NewWebSocketHandler(hub, bracketService, nil),
	}, Options{
		JWTSecret: []byte(testSecret),
		Gatherer:  registry,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{t: t, srv: srv, hub: hub, store: store}
}

func (s *testServer) do(method, path, token string, body interface{}) (int, []byte) {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, reader)
	require.NoError(s.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.srv.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp.StatusCode, data
}

func (s *testServer) decode(data []byte, dst interface{}) {
	s.t.Helper()
	require.NoError(s.t, json.Unmarshal(data, dst), string(data))
}

// signUp registers and logs in a user, returning its id and token.
func (s *testServer) signUp(username string, role models.UserRole) (int, string) {
	s.t.Helper()
	creds := map[string]string{"username": username, "password": "chalk-and-cue", "role": string(role)}

	status, data := s.do(http.MethodPost, "/auth/register", "", creds)
	require.Equal(s.t, http.StatusCreated, status, string(data))
	var registered struct {
		User models.User `json:"user"`
	}
	s.decode(data, &registered)

	status, data = s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": username, "password": "chalk-and-cue"})
	require.Equal(s.t, http.StatusOK, status, string(data))
	var login struct {
		Token string `json:"token"`
	}
	s.decode(data, &login)
	require.NotEmpty(s.t, login.Token)
	return registered.User.ID, login.Token
}

func (s *testServer) dialBracket(tournamentID int) *websocket.Conn {
	s.t.Helper()
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + fmt.Sprintf("/ws/tournaments/%d", tournamentID)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(s.t, err)
	resp.Body.Close()
	s.t.Cleanup(func() { conn.Close() })
	return conn
}

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	RoomID  string          `json:"room_id"`
}

func readMessage(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestTournamentLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	_, refToken := s.signUp("referee", models.RoleOfficial)
	players := make([]int, 4)
	tokens := make([]string, 4)
	for i := range players {
		players[i], tokens[i] = s.signUp(fmt.Sprintf("player%d", i+1), models.RolePlayer)
	}

	tournament := map[string]string{"name": "Thursday 8-ball", "format": "8-ball", "scheduled_at": "2026-11-05T19:00:00Z"}
	status, _ := s.do(http.MethodPost, "/tournaments", tokens[0], tournament)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = s.do(http.MethodPost, "/tournaments", "", tournament)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, data := s.do(http.MethodPost, "/tournaments", refToken, tournament)
	require.Equal(t, http.StatusCreated, status, string(data))
	var created struct {
		Tournament models.Tournament `json:"tournament"`
	}
	s.decode(data, &created)
	id := created.Tournament.ID
	base := fmt.Sprintf("/tournaments/%d", id)

	_, otherRefToken := s.signUp("other-ref", models.RoleOfficial)
	status, _ = s.do(http.MethodPut, base+"/official", otherRefToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, data = s.do(http.MethodPut, base+"/official", refToken, nil)
	require.Equal(t, http.StatusOK, status, string(data))
	status, _ = s.do(http.MethodPut, base+"/official", refToken, nil)
	assert.Equal(t, http.StatusConflict, status)

	for i := range players {
		status, data = s.do(http.MethodPost, base+"/participants", tokens[i], nil)
		require.Equal(t, http.StatusCreated, status, string(data))
	}
	status, _ = s.do(http.MethodPost, base+"/participants", tokens[0], nil)
	assert.Equal(t, http.StatusConflict, status)

	status, data = s.do(http.MethodGet, base+"/participants", "", nil)
	require.Equal(t, http.StatusOK, status)
	var registry struct {
		Participants []models.Participant `json:"participants"`
	}
	s.decode(data, &registry)
	require.Len(t, registry.Participants, 4)
	assert.Equal(t, "player1", registry.Participants[0].Username)

	status, data = s.do(http.MethodGet, base+"/bracket", "", nil)
	require.Equal(t, http.StatusOK, status)
	var openView services.BracketView
	s.decode(data, &openView)
	assert.Equal(t, models.StatusOpen, openView.Status)
	assert.Nil(t, openView.Bracket)
	assert.Len(t, openView.Participants, 4)

	status, _ = s.do(http.MethodPost, base+"/start", tokens[0], nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, data = s.do(http.MethodPost, base+"/start", refToken, nil)
	require.Equal(t, http.StatusOK, status, string(data))
	status, _ = s.do(http.MethodPost, base+"/start", refToken, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, data = s.do(http.MethodGet, "/tournaments?status=in_progress", "", nil)
	require.Equal(t, http.StatusOK, status)
	var listed struct {
		Tournaments []models.Tournament `json:"tournaments"`
	}
	s.decode(data, &listed)
	require.Len(t, listed.Tournaments, 1)
	assert.Equal(t, id, listed.Tournaments[0].ID)

	conn := s.dialBracket(id)
	snapshot := readMessage(t, conn)
	assert.Equal(t, brackets.MessageBracketSnapshot, snapshot.Type)
	assert.Equal(t, brackets.RoomForTournament(id), snapshot.RoomID)
	require.Eventually(t, func() bool {
		return s.hub.RoomSize(brackets.RoomForTournament(id)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	result := func(round, match, winner int) map[string]int {
		return map[string]int{"round": round, "match": match, "winner_id": winner}
	}

	status, data = s.do(http.MethodPost, base+"/matches/result", refToken, result(0, 0, players[0]))
	require.Equal(t, http.StatusOK, status, string(data))
	assert.Equal(t, brackets.MessageMatchUpdated, readMessage(t, conn).Type)

	rejected := []struct {
		name   string
		token  string
		body   interface{}
		status int
	}{
		{"already decided", refToken, result(0, 0, players[1]), http.StatusConflict},
		{"winner not in match", refToken, result(0, 1, players[0]), http.StatusBadRequest},
		{"match out of range", refToken, result(3, 0, players[0]), http.StatusBadRequest},
		{"missing winner", refToken, map[string]int{"round": 0, "match": 1}, http.StatusBadRequest},
		{"unknown field", refToken, map[string]int{"round": 0, "match": 1, "winner": 3}, http.StatusBadRequest},
		{"not the official", tokens[2], result(0, 1, players[2]), http.StatusForbidden},
		{"anonymous", "", result(0, 1, players[2]), http.StatusUnauthorized},
	}
	for _, tc := range rejected {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := s.do(http.MethodPost, base+"/matches/result", tc.token, tc.body)
			assert.Equal(t, tc.status, status)
		})
	}

	status, _ = s.do(http.MethodPost, base+"/matches/result", refToken, result(0, 1, players[3]))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, brackets.MessageMatchUpdated, readMessage(t, conn).Type)

	status, data = s.do(http.MethodPost, base+"/matches/result", refToken, result(1, 0, players[0]))
	require.Equal(t, http.StatusOK, status, string(data))
	var final struct {
		Outcome brackets.Outcome `json:"outcome"`
	}
	s.decode(data, &final)
	assert.True(t, final.Outcome.Completed)
	require.NotNil(t, final.Outcome.ChampionID)
	assert.Equal(t, players[0], *final.Outcome.ChampionID)
	assert.Equal(t, brackets.MessageMatchUpdated, readMessage(t, conn).Type)
	assert.Equal(t, brackets.MessageTournamentCompleted, readMessage(t, conn).Type)

	status, data = s.do(http.MethodGet, base+"/bracket", "", nil)
	require.Equal(t, http.StatusOK, status)
	var finalView services.BracketView
	s.decode(data, &finalView)
	assert.Equal(t, models.StatusCompleted, finalView.Status)
	assert.Equal(t, players[0], *finalView.ChampionID)
	assert.Equal(t, "player1", finalView.Players[players[0]])
	assert.Len(t, s.store.Keys(), 1)

	status, _ = s.do(http.MethodDelete, fmt.Sprintf("%s/participants/%d", base, players[1]), tokens[1], nil)
	assert.Equal(t, http.StatusConflict, status)

	status, data = s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(data), "cue_tournaments_tournaments_completed_total 1")
}

func TestWithdrawOverHTTP(t *testing.T) {
	s := newTestServer(t)

	_, refToken := s.signUp("ref", models.RoleOfficial)
	alice, aliceToken := s.signUp("alice", models.RolePlayer)
	bob, bobToken := s.signUp("bob", models.RolePlayer)

	status, data := s.do(http.MethodPost, "/tournaments", refToken,
		map[string]string{"name": "Cup", "format": "9-ball", "scheduled_at": "2026-11-05T19:00:00Z"})
	require.Equal(t, http.StatusCreated, status, string(data))
	var created struct {
		Tournament models.Tournament `json:"tournament"`
	}
	s.decode(data, &created)
	base := fmt.Sprintf("/tournaments/%d", created.Tournament.ID)

	status, _ = s.do(http.MethodPut, base+"/official", refToken, nil)
	require.Equal(t, http.StatusOK, status)
	for _, token := range []string{aliceToken, bobToken} {
		status, _ = s.do(http.MethodPost, base+"/participants", token, nil)
		require.Equal(t, http.StatusCreated, status)
	}

	status, _ = s.do(http.MethodDelete, fmt.Sprintf("%s/participants/%d", base, alice), bobToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = s.do(http.MethodDelete, fmt.Sprintf("%s/participants/%d", base, alice), aliceToken, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = s.do(http.MethodDelete, fmt.Sprintf("%s/participants/%d", base, alice), aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = s.do(http.MethodDelete, fmt.Sprintf("%s/participants/%d", base, bob), refToken, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = s.do(http.MethodPost, base+"/start", refToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRouteErrors(t *testing.T) {
	s := newTestServer(t)

	testCases := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"unknown tournament", http.MethodGet, "/tournaments/999", nil, http.StatusNotFound},
		{"bad tournament id", http.MethodGet, "/tournaments/abc", nil, http.StatusBadRequest},
		{"unknown bracket", http.MethodGet, "/tournaments/999/bracket", nil, http.StatusNotFound},
		{"bad status filter", http.MethodGet, "/tournaments?status=paused", nil, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/tournaments?limit=many", nil, http.StatusBadRequest},
		{"wrong password", http.MethodPost, "/auth/login", map[string]string{"username": "ghost", "password": "whatever1"}, http.StatusUnauthorized},
		{"short password", http.MethodPost, "/auth/register", map[string]string{"username": "ghost", "password": "x"}, http.StatusBadRequest},
		{"websocket unknown tournament", http.MethodGet, "/ws/tournaments/999", nil, http.StatusNotFound},
		{"health", http.MethodGet, "/healthz", nil, http.StatusOK},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := s.do(tc.method, tc.path, "", tc.body)
			assert.Equal(t, tc.status, status)
		})
	}
}
