package stream

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxel-planner/internal/grid"
	"voxel-planner/internal/planner"
	"voxel-planner/internal/session"
	"voxel-planner/internal/testutil/testlog"
)

type frame struct {
	Type    string `json:"type"`
	Tick    uint64 `json:"tick"`
	Results []struct {
		Planner string       `json:"planner"`
		Status  string       `json:"status"`
		Path    [][3]float64 `json:"path"`
	} `json:"results"`
}

func dial(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(msg, &f))
	return f
}

func TestHub_BroadcastsChanges(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	h := NewHub()
	conn := dial(t, h)
	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 10*time.Millisecond)

	idle :=[]session.Result{{Planner: "jps", Status: planner.StatusIdle}}
	require.NoError(t, h.Publish(ctx, 1, idle))

	f := readFrame(t, conn)
	assert.Equal(t, "tick", f.Type)
	assert.Equal(t, uint64(1), f.Tick)
	require.Len(t, f.Results, 1)
	assert.Equal(t, "idle", f.Results[0].Status)

	// Unchanged results are not re-sent.
	require.NoError(t, h.Publish(ctx, 2, idle))
	found := []session.Result{{
		Planner: "jps",
		Status:  planner.StatusFound,
		Path:    []grid.Point{{X: 0.1, Y: 0.1, Z: 0.1}, {X: 0.3, Y: 0.3, Z: 0.1}},
	}}
	require.NoError(t, h.Publish(ctx, 3, found))

	f = readFrame(t, conn)
	assert.Equal(t, uint64(3), f.Tick)
	assert.Equal(t, "found", f.Results[0].Status)
	assert.Equal(t, [][3]float64{{0.1, 0.1, 0.1}, {0.3, 0.3, 0.1}}, f.Results[0].Path)
}

func TestHub_LateClientGetsLatest(t *testing.T) {
	testlog.Start(t)
	h := NewHub()
	results := []session.Result{{Planner: "wavefront", Status: planner.StatusFailed}}
	require.NoError(t, h.Publish(context.Background(), 9, results))

	conn := dial(t, h)
	f := readFrame(t, conn)
	assert.Equal(t, uint64(9), f.Tick)
	assert.Equal(t, "failed", f.Results[0].Status)

	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 10*time.Millisecond)
	conn.Close()
	require.Eventually(t, func() bool { return h.Clients() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestHub_ReceiveOnlyClientStaysConnected(t *testing.T) {
	testlog.Start(t)
	h := NewHub()
	h.readTimeout = 300 * time.Millisecond
	h.pingInterval = 50 * time.Millisecond
	conn := dial(t, h)

	// A viewer that never writes: it only reads, which answers pings.
	frames := make(chan frame, 4)
	go func() {
		defer close(frames)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var f frame
			if json.Unmarshal(msg, &f) == nil {
				frames <- f
			}
		}
	}()

	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(4 * h.readTimeout)
	require.Equal(t, 1, h.Clients(), "silent client was dropped")

	results := []session.Result{{Planner: "jps", Status: planner.StatusSearching}}
	require.NoError(t, h.Publish(context.Background(), 5, results))
	select {
	case f, ok := <-frames:
		require.True(t, ok, "connection closed before the frame arrived")
		assert.Equal(t, uint64(5), f.Tick)
	case <-time.After(5 * time.Second):
		t.Fatal("no frame received")
	}
}
