package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"

	"openduel/models"
)

const eventWait = time.Second

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// nextEvent reads the client's outbound buffer until an event of the given
// type arrives, skipping any others.
func nextEvent(t *testing.T, client *Client, event string) json.RawMessage {
	t.Helper()
	deadline := time.After(eventWait)
	for {
		select {
		case data, ok := <-client.send:
			require.True(t, ok, "connection closed while waiting for %s", event)
			var env envelope
			require.NoError(t, json.Unmarshal(data, &env))
			if env.Type == event {
				return env.Payload
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", event)
			return nil
		}
	}
}

// noEvent asserts that no event of the given type shows up within wait.
func noEvent(t *testing.T, client *Client, event string, wait time.Duration) {
	t.Helper()
	deadline := time.After(wait)
	for {
		select {
		case data, ok := <-client.send:
			if !ok {
				return
			}
			var env envelope
			require.NoError(t, json.Unmarshal(data, &env))
			require.NotEqual(t, event, env.Type, "unexpected %s event", event)
		case <-deadline:
			return
		}
	}
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

// spyCache records invalidations.
type spyCache struct {
	mu          sync.Mutex
	players     map[string]models.Player
	invalidated []string
}

func newSpyCache() *spyCache {
	return &spyCache{players: make(map[string]models.Player)}
}

func (c *spyCache) GetPlayer(_ context.Context, playerID string) (*models.Player, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	player, ok := c.players[playerID]
	if !ok {
		return nil, false, nil
	}
	return &player, true, nil
}

func (c *spyCache) SetPlayer(_ context.Context, player *models.Player) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.players[player.ID] = *player
	return nil
}

func (c *spyCache) Invalidate(_ context.Context, playerIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range playerIDs {
		delete(c.players, id)
		c.invalidated = append(c.invalidated, id)
	}
	return nil
}

func (c *spyCache) Invalidated() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.invalidated...)
}

// flakyStore fails transactions while fail is set. onFail, if set, runs
// inside the failing transaction.
type flakyStore struct {
	*MemoryStore
	mu     sync.Mutex
	fail   bool
	onFail func()
}

func (s *flakyStore) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *flakyStore) Transaction(ctx context.Context, fn func(tx PlayerStore) error) error {
	s.mu.Lock()
	fail, onFail := s.fail, s.onFail
	s.mu.Unlock()
	if fail {
		if onFail != nil {
			onFail()
		}
		return eris.New("database unavailable")
	}
	return s.MemoryStore.Transaction(ctx, fn)
}

type testEnv struct {
	hub     *Hub
	store   *MemoryStore
	cache   *spyCache
	service *MatchService
}

func newTestEnv(t *testing.T, store PlayerStore, timeout time.Duration) *testEnv {
	t.Helper()
	env := &testEnv{hub: NewHub(), cache: newSpyCache()}
	if store == nil {
		env.store = NewMemoryStore()
		store = env.store
	} else if fs, ok := store.(*flakyStore); ok {
		env.store = fs.MemoryStore
	}
	env.service = NewMatchService(env.hub, store, env.cache, MatchServiceConfig{
		MatchTimeout:  timeout,
		InviteTimeout: timeout,
		RatingK:       DefaultK,
	})
	env.hub.SetListener(env.service)
	return env
}

// connect records the player and registers a socketless client for them.
func (e *testEnv) connect(t *testing.T, playerID string) *Client {
	t.Helper()
	identity := models.Identity{PlayerID: playerID, Username: playerID + "_name", Avatar: 3}
	require.NoError(t, e.service.Connect(context.Background(), identity))
	client := e.hub.newClient(nil, identity)
	e.hub.add(client)
	return client
}

// pair matches x (waiting, moves first) with o.
func (e *testEnv) pair(t *testing.T, x, o *Client) Match {
	t.Helper()
	res, err := e.service.FindMatch(x.Identity())
	require.NoError(t, err)
	require.Equal(t, SearchStatusSearching, res.Status)
	res, err = e.service.FindMatch(o.Identity())
	require.NoError(t, err)
	require.Equal(t, SearchStatusMatched, res.Status)
	match, err := e.service.CurrentMatch(x.PlayerID())
	require.NoError(t, err)
	return match
}

// racyPresence drops one player from the hub right after their connection has
// been resolved, so the caller holds a connection that is already gone.
type racyPresence struct {
	hub    *Hub
	target string
	once   sync.Once
}

func (p *racyPresence) Resolve(playerID string) (*Client, bool) {
	client, ok := p.hub.Resolve(playerID)
	if ok && playerID == p.target {
		p.once.Do(func() {
			// remove blocks in the disconnect listener while pairing is in progress,
			// so run it aside and wait until the hub has forgotten the player.
			go p.hub.remove(client)
			deadline := time.Now().Add(eventWait)
			for time.Now().Before(deadline) {
				if _, online := p.hub.Resolve(playerID); !online {
					return
				}
				time.Sleep(time.Millisecond)
			}
		})
	}
	return client, ok
}

func (p *racyPresence) Send(client *Client, event string, payload interface{}) error {
	return p.hub.Send(client, event, payload)
}
