package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setupTestBus(t *testing.T) (*RedisBus, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	bus := NewRedisBusFromClient(client)
	return bus, mr
}

func TestRedisBusPublishSubscribe(t *testing.T) {
	bus, mr := setupTestBus(t)
	defer mr.Close()
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msgs, err := bus.Subscribe(ctx, "library.entity.*")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, bus.Publish(ctx, "library.entity.registered", []byte(`{"id":"e1"}`)))

	select {
	case msg := <-msgs:
		require.Equal(t, "library.entity.registered", msg.Subject)
		require.Equal(t, `{"id":"e1"}`, string(msg.Payload))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestRedisBusSubscribeIgnoresOtherSubjects(t *testing.T) {
	bus, mr := setupTestBus(t)
	defer mr.Close()
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msgs, err := bus.Subscribe(ctx, "library.swap.*")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, bus.Publish(ctx, "library.entity.registered", []byte(`{}`)))

	select {
	case msg := <-msgs:
		t.Fatalf("unexpected message on unrelated subject: %+v", msg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRedisBusPing(t *testing.T) {
	bus, mr := setupTestBus(t)
	defer mr.Close()
	defer bus.Close()

	require.NoError(t, bus.Ping(context.Background()))
}
