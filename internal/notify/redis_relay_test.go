package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/estate-chat/internal/conversation"
	"github.com/suPer8Hu/estate-chat/internal/store/redisstore"
)

func newRelay(t *testing.T) (*RedisRelay, *Hub) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hub := NewHub(zerolog.Nop())
	return NewRedisRelay(redisstore.NewFromClient(rdb, "test"), hub, zerolog.Nop()), hub
}

func TestRedisRelay_DeliversIntoHub(t *testing.T) {
	relay, hub := newRelay(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, _ := hub.Subscribe(ctx, "tok-1")

	runErr := make(chan error, 1)
	go func() { runErr <- relay.Run(ctx) }()

	// publish until the relay's subscription is live
	ev := conversation.Event{Type: conversation.EventMessagesRead, ConversationToken: "tok-1", As: "user", Count: 2}
	deadline := time.After(3 * time.Second)
	for {
		require.NoError(t, relay.Publish(ctx, ev))
		select {
		case b := <-ch:
			var got conversation.Event
			require.NoError(t, json.Unmarshal(b, &got))
			assert.Equal(t, ev, got)
			cancel()
			select {
			case err := <-runErr:
				assert.NoError(t, err)
			case <-time.After(2 * time.Second):
				t.Fatal("relay did not stop")
			}
			return
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("event never reached the hub")
		}
	}
}

func TestRedisRelay_RejectsEmptyToken(t *testing.T) {
	relay, _ := newRelay(t)
	err := relay.PublishRaw(context.Background(), "", []byte("{}"))
	require.Error(t, err)
}

type fakeBodyPublisher struct {
	bodies [][]byte
	err    error
}

func (f *fakeBodyPublisher) Publish(_ context.Context, body []byte) error {
	f.bodies = append(f.bodies, body)
	return f.err
}

func TestRabbitSink_EncodesEvent(t *testing.T) {
	pub := &fakeBodyPublisher{}
	sink := NewRabbitSink(pub)

	ev := conversation.Event{Type: conversation.EventMessageCreated, ConversationToken: "tok"}
	require.NoError(t, sink.Publish(context.Background(), ev))
	require.Len(t, pub.bodies, 1)
	assert.JSONEq(t, `{"type":"message.created","conversation_token":"tok"}`, string(pub.bodies[0]))

	pub.err = errors.New("channel closed")
	assert.Error(t, sink.Publish(context.Background(), ev))
}
