package events

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestStreamBroadcastsToConnectedClient(t *testing.T) {
	stream := NewStream(nil)
	server := httptest.NewServer(stream)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// give ServeHTTP time to register the client before broadcasting
	waitForClientCount(t, stream, 1)

	stream.Broadcast(map[string]string{"event_type": "library.entity.registered"})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(payload), "library.entity.registered")
}

func TestStreamDropsSlowSubscriberWithoutBlocking(t *testing.T) {
	stream := NewStream(nil)
	server := httptest.NewServer(stream)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	waitForClientCount(t, stream, 1)

	// Replace the registered subscriber's outbound buffer with an
	// unbuffered, never-drained channel so the next broadcasts are
	// guaranteed to hit the full-channel drop path deterministically,
	// rather than depending on real socket/OS buffering.
	stream.mu.Lock()
	for c := range stream.clients {
		stream.clients[c] = make(chan []byte)
	}
	stream.mu.Unlock()

	stream.Broadcast(map[string]int{"seq": 1})
	stream.Broadcast(map[string]int{"seq": 2})

	require.NotZero(t, testutil.ToFloat64(stream.metrics.droppedSlow))
}

func TestStreamRunForwardsBusMessages(t *testing.T) {
	bus, mr := setupTestBus(t)
	defer mr.Close()
	defer bus.Close()

	stream := NewStream(nil)
	server := httptest.NewServer(stream)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	waitForClientCount(t, stream, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go stream.Run(ctx, bus, "library.*")
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, bus.Publish(ctx, "library.swap.completed", []byte(`{"swap_id":"s1"}`)))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, `{"swap_id":"s1"}`, string(payload))
}

func waitForClientCount(t *testing.T, s *Stream, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s.clientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for client count %d", want)
}
