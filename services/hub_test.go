package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openduel/models"
)

type recordingListener struct {
	mu           sync.Mutex
	cancelled    []string
	disconnected []string
}

func (l *recordingListener) CancelSearch(playerID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancelled = append(l.cancelled, playerID)
	return true
}

func (l *recordingListener) HandleDisconnect(playerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disconnected = append(l.disconnected, playerID)
}

func (l *recordingListener) Disconnected() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.disconnected...)
}

func (l *recordingListener) Cancelled() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.cancelled...)
}

func TestHubReplacesConnection(t *testing.T) {
	hub := NewHub()
	listener := &recordingListener{}
	hub.SetListener(listener)

	first := hub.newClient(nil, models.Identity{PlayerID: "a"})
	hub.add(first)
	resolved, ok := hub.Resolve("a")
	require.True(t, ok)
	assert.Same(t, first, resolved)

	second := hub.newClient(nil, models.Identity{PlayerID: "a"})
	hub.add(second)
	resolved, ok = hub.Resolve("a")
	require.True(t, ok)
	assert.Same(t, second, resolved)
	assert.ErrorIs(t, hub.Send(first, EventPong, "pong"), errConnectionClosed)

	// The replaced connection going away does not end the player's session.
	hub.remove(first)
	assert.Empty(t, listener.Disconnected())
	_, ok = hub.Resolve("a")
	assert.True(t, ok)

	hub.remove(second)
	assert.Equal(t, []string{"a"}, listener.Disconnected())
	_, ok = hub.Resolve("a")
	assert.False(t, ok)
}

func TestHubBroadcastsOnlinePlayers(t *testing.T) {
	hub := NewHub()
	a := hub.newClient(nil, models.Identity{PlayerID: "a"})
	b := hub.newClient(nil, models.Identity{PlayerID: "b"})
	hub.add(a)
	hub.add(b)

	online := decode[[]string](t, nextEvent(t, b, EventOnlinePlayers))
	assert.ElementsMatch(t, []string{"a", "b"}, online)
	assert.ElementsMatch(t, []string{"a", "b"}, hub.OnlinePlayers())

	hub.remove(b)
	// a sees the registration of b and then its departure.
	nextEvent(t, a, EventOnlinePlayers)
	nextEvent(t, a, EventOnlinePlayers)
	online = decode[[]string](t, nextEvent(t, a, EventOnlinePlayers))
	assert.Equal(t, []string{"a"}, online)
}

func TestHubClientMessages(t *testing.T) {
	hub := NewHub()
	listener := &recordingListener{}
	hub.SetListener(listener)
	client := hub.newClient(nil, models.Identity{PlayerID: "a"})
	hub.add(client)

	client.handleMessage(Message{Type: "ping"})
	assert.Equal(t, "pong", decode[string](t, nextEvent(t, client, EventPong)))

	client.handleMessage(Message{Type: "cancelSearch"})
	assert.Equal(t, []string{"a"}, listener.Cancelled())

	client.handleMessage(Message{Type: "bogus"})
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	client := hub.newClient(nil, models.Identity{PlayerID: "a"})
	hub.add(client)

	var err error
	sent := 0
	for sent <= sendBufferSize && err == nil {
		err = hub.Send(client, EventPong, "pong")
		if err == nil {
			sent++
		}
	}
	assert.ErrorIs(t, err, errConnectionClosed)
	assert.Less(t, sent, sendBufferSize)
	_, ok := hub.Resolve("a")
	assert.False(t, ok)
}

func TestHubRunStopsOnCancel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	client := hub.newClient(nil, models.Identity{PlayerID: "a"})
	hub.register <- client
	require.Eventually(t, func() bool {
		_, ok := hub.Resolve("a")
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-hub.done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	assert.Empty(t, hub.OnlinePlayers())
	// Must not block once the hub is gone.
	hub.UnregisterClient(client)
}
