package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/suPer8Hu/estate-chat/internal/conversation"
	"github.com/suPer8Hu/estate-chat/internal/store/redisstore"
)

// RedisRelay publishes events on a per-conversation redis channel and, via Run,
// feeds everything published by any instance into the local Hub.
type RedisRelay struct {
	store *redisstore.Store
	hub   *Hub
	log   zerolog.Logger
}

func NewRedisRelay(store *redisstore.Store, hub *Hub, log zerolog.Logger) *RedisRelay {
	return &RedisRelay{
		store: store,
		hub:   hub,
		log:   log.With().Str("component", "redis_relay").Logger(),
	}
}

func (r *RedisRelay) Publish(ctx context.Context, ev conversation.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.PublishRaw(ctx, ev.ConversationToken, payload)
}

// PublishRaw forwards an already encoded event; the worker uses it to relay queue bodies.
func (r *RedisRelay) PublishRaw(ctx context.Context, token string, payload []byte) error {
	if token == "" {
		return fmt.Errorf("redis relay: empty conversation token")
	}
	if _, err := r.store.Publish(ctx, r.store.ConversationChannel(token), payload); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run subscribes to all conversation channels and blocks until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	if r.hub == nil {
		return fmt.Errorf("redis relay: no hub to deliver into")
	}
	sub := r.store.PSubscribe(ctx, r.store.ConversationPattern())
	defer sub.Close()

	// wait for the subscription to be confirmed so early publishes are not lost
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	r.log.Info().Str("pattern", r.store.ConversationPattern()).Msg("relay subscribed")

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			token, ok := r.store.TokenFromChannel(m.Channel)
			if !ok {
				r.log.Warn().Str("channel", m.Channel).Msg("ignoring message on unexpected channel")
				continue
			}
			r.hub.Broadcast(token, []byte(m.Payload))
		}
	}
}
