package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openduel/handlers"
	"openduel/middleware"
	"openduel/models"
	"openduel/services"
)

const testSecret = "routes-secret"

type socketMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type testApp struct {
	server *httptest.Server
	store  *services.MemoryStore
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := services.NewHub()
	store := services.NewMemoryStore()
	service := services.NewMatchService(hub, store, nil, services.MatchServiceConfig{
		MatchTimeout:  time.Minute,
		InviteTimeout: time.Minute,
	})
	hub.SetListener(service)
	go hub.Run(ctx)

	router := gin.New()
	SetupRoutes(router, handlers.NewMatchHandler(service), handlers.NewPlayerHandler(service),
		hub, service, testSecret, func(string) bool { return true })

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testApp{server: server, store: store}
}

func token(t *testing.T, playerID string) string {
	t.Helper()
	signed, err := middleware.SignToken(testSecret, models.Identity{PlayerID: playerID, Username: playerID}, time.Hour)
	require.NoError(t, err)
	return signed
}

// dial opens a player socket and waits until the hub lists the player online.
func (a *testApp) dial(t *testing.T, playerID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(a.server.URL, "http") + "/ws?token=" + token(t, playerID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	for {
		msg := readMessage(t, conn)
		if msg.Type != services.EventOnlinePlayers {
			continue
		}
		var online []string
		require.NoError(t, json.Unmarshal(msg.Payload, &online))
		for _, id := range online {
			if id == playerID {
				return conn
			}
		}
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) socketMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg socketMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func waitFor(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	for {
		msg := readMessage(t, conn)
		if msg.Type == event {
			return msg.Payload
		}
	}
}

func (a *testApp) post(t *testing.T, path, playerID, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, a.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token(t, playerID))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebsocketRequiresToken(t *testing.T) {
	app := newTestApp(t)
	url := "ws" + strings.TrimPrefix(app.server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMatchOverWebsocket(t *testing.T) {
	app := newTestApp(t)
	alice := app.dial(t, "alice")
	bob := app.dial(t, "bob")

	resp := app.post(t, "/api/match/find", "alice", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = app.post(t, "/api/match/find", "bob", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var found services.MatchFoundPayload
	require.NoError(t, json.Unmarshal(waitFor(t, alice, services.EventMatchFound), &found))
	assert.Equal(t, "bob", found.OpponentID)
	assert.Equal(t, services.MarkX, found.Mark)
	waitFor(t, bob, services.EventMatchFound)

	resp = app.post(t, "/api/match/move/bob", "alice", `{"mask":7,"opponentMask":24}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var move services.GameMovePayload
	require.NoError(t, json.Unmarshal(waitFor(t, bob, services.EventGameMove), &move))
	assert.Equal(t, services.StatusLoss, move.Status)
	require.NotNil(t, move.Rating)
	assert.Equal(t, float64(985), move.Rating.NewRating)

	player, err := app.store.FindPlayer(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, float64(1015), player.Rating)
}

func TestDisconnectNotifiesOpponent(t *testing.T) {
	app := newTestApp(t)
	alice := app.dial(t, "alice")
	bob := app.dial(t, "bob")

	app.post(t, "/api/match/find", "alice", "")
	app.post(t, "/api/match/find", "bob", "")
	waitFor(t, bob, services.EventMatchFound)

	require.NoError(t, alice.Close())
	waitFor(t, bob, services.EventOpponentLeft)
}

func TestPingOverWebsocket(t *testing.T) {
	app := newTestApp(t)
	alice := app.dial(t, "alice")

	require.NoError(t, alice.WriteJSON(map[string]string{"type": "ping"}))
	waitFor(t, alice, services.EventPong)
}
