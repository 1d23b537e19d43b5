package ws_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiketracker/hiketracker/pkg/types"
	"github.com/hiketracker/hiketracker/tracker/internal/registry"
	"github.com/hiketracker/hiketracker/tracker/internal/store"
	wsHub "github.com/hiketracker/hiketracker/tracker/internal/ws"
)

// --- helpers ----------------------------------------------------------------

type message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// startHub serves a hub over httptest and returns the ws:// URL.
func startHub(t *testing.T, reg *registry.Registry) (string, *wsHub.Hub) {
	t.Helper()
	hub := wsHub.New(reg)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), hub
}

func newRegistry() *registry.Registry {
	return registry.New(store.New())
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var m message
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func readReplay(t *testing.T, conn *websocket.Conn) []types.PhotoResult {
	t.Helper()
	m := readMessage(t, conn)
	require.Equal(t, "replay", m.Event)
	var out []types.PhotoResult
	require.NoError(t, json.Unmarshal(m.Data, &out))
	return out
}

func readPhoto(t *testing.T, conn *websocket.Conn) types.PhotoResult {
	t.Helper()
	m := readMessage(t, conn)
	require.Equal(t, "photo", m.Event)
	var out types.PhotoResult
	require.NoError(t, json.Unmarshal(m.Data, &out))
	return out
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_EmptyReplay(t *testing.T) {
	reg := newRegistry()
	wsURL, _ := startHub(t, reg)

	conn := dial(t, wsURL)
	m := readMessage(t, conn)

	assert.Equal(t, "replay", m.Event)
	assert.JSONEq(t, "[]", string(m.Data))
}

func TestHub_Connect_ReplaysStoredNewestFirst(t *testing.T) {
	reg := newRegistry()
	reg.Publish(types.PhotoCandidate{URL: "u0"})
	reg.Publish(types.PhotoCandidate{URL: "u1"})
	wsURL, _ := startHub(t, reg)

	got := readReplay(t, dial(t, wsURL))

	require.Len(t, got, 2)
	assert.Equal(t, "u1", got[0].URL)
	assert.Equal(t, 1, got[0].InsertedOrder)
	assert.Equal(t, "u0", got[1].URL)
}

func TestHub_ReceivesPushAfterReplay(t *testing.T) {
	reg := newRegistry()
	wsURL, _ := startHub(t, reg)

	conn := dial(t, wsURL)
	readReplay(t, conn)
	require.Eventually(t, reg.Attached, time.Second, 5*time.Millisecond)

	reg.Publish(types.PhotoCandidate{URL: "live"})

	got := readPhoto(t, conn)
	assert.Equal(t, "live", got.URL)
	assert.Equal(t, 0, got.InsertedOrder)
}

func TestHub_Disconnect_Detaches(t *testing.T) {
	reg := newRegistry()
	wsURL, hub := startHub(t, reg)

	conn := dial(t, wsURL)
	readReplay(t, conn)
	require.True(t, reg.Attached())
	assert.Equal(t, 1, hub.Count())

	conn.Close()

	assert.Eventually(t, func() bool { return !reg.Attached() }, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 5*time.Millisecond)

	// Results stored while detached are replayed to the next observer.
	reg.Publish(types.PhotoCandidate{URL: "missed"})
	got := readReplay(t, dial(t, wsURL))
	require.Len(t, got, 1)
	assert.Equal(t, "missed", got[0].URL)
}

func TestHub_NewConnectionReplacesPrevious(t *testing.T) {
	reg := newRegistry()
	wsURL, hub := startHub(t, reg)

	first := dial(t, wsURL)
	readReplay(t, first)

	second := dial(t, wsURL)
	readReplay(t, second)

	// The first connection is closed by the server.
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := first.ReadMessage()
	require.Error(t, err)

	reg.Publish(types.PhotoCandidate{URL: "to-second"})
	assert.Equal(t, "to-second", readPhoto(t, second).URL)
	assert.True(t, reg.Attached())
	assert.Equal(t, 1, hub.Count())
}

func TestHub_Close_RejectsNewConnections(t *testing.T) {
	reg := newRegistry()
	wsURL, hub := startHub(t, reg)

	conn := dial(t, wsURL)
	readReplay(t, conn)
	hub.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 503, resp.StatusCode)
	assert.Eventually(t, func() bool { return !reg.Attached() }, 2*time.Second, 5*time.Millisecond)
}

// slowRegistry delays the first Attach so a second connection can arrive
// while the first is still registering.
type slowRegistry struct {
	*registry.Registry

	mu      sync.Mutex
	delayed bool
}

func (s *slowRegistry) Attach(obs registry.Observer) []types.PhotoResult {
	s.mu.Lock()
	first := !s.delayed
	s.delayed = true
	s.mu.Unlock()
	if first {
		time.Sleep(300 * time.Millisecond)
	}
	return s.Registry.Attach(obs)
}

func TestHub_ConcurrentConnections_NewestStaysRegistered(t *testing.T) {
	reg := newRegistry()
	hub := wsHub.New(&slowRegistry{Registry: reg})
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	first := dial(t, wsURL)
	time.Sleep(50 * time.Millisecond)
	second := dial(t, wsURL)

	readReplay(t, second)

	// The first connection ends up closed, whether or not its replay was sent.
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}
	time.Sleep(50 * time.Millisecond) // let the first handler detach

	require.True(t, reg.Attached(), "newest connection must stay registered")
	assert.Equal(t, 1, hub.Count())

	reg.Publish(types.PhotoCandidate{URL: "after-race"})
	assert.Equal(t, "after-race", readPhoto(t, second).URL)
}
