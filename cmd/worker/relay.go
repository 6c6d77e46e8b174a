package main

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/estate-chat/internal/conversation"
	"github.com/suPer8Hu/estate-chat/internal/store/rabbitmq"
)

// maxAttempts counts the first delivery plus its retries.
const (
	maxAttempts  = 3
	relayTimeout = 5 * time.Second
)

var errDeliveriesClosed = errors.New("delivery channel closed")

// dispatch feeds deliveries to the worker pool until ctx is done or the broker
// closes the channel, which happens when the connection drops.
func dispatch(ctx context.Context, msgs <-chan amqp.Delivery, jobs chan<- amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errDeliveriesClosed
			}
			select {
			case jobs <- d:
			case <-ctx.Done():
				// unacked; the broker redelivers it
				return nil
			}
		}
	}
}

type rawPublisher interface {
	PublishRaw(ctx context.Context, token string, payload []byte) error
}

type retryPublisher interface {
	PublishRetry(ctx context.Context, body []byte, attempt int) error
}

type relayer struct {
	relay rawPublisher
	retry retryPublisher
	log   zerolog.Logger
}

// handle relays one queued event to redis. Every delivery is settled exactly once:
// acked on success or after scheduling a retry, nacked into the DLQ otherwise.
func (r *relayer) handle(ctx context.Context, workerID int, d amqp.Delivery) {
	var ev conversation.Event
	if err := json.Unmarshal(d.Body, &ev); err != nil || ev.ConversationToken == "" {
		r.log.Warn().Err(err).Int("worker", workerID).Msg("bad event body")
		_ = d.Nack(false, false)
		return
	}

	attempt := rabbitmq.Attempt(d)
	log := r.log.With().
		Int("worker", workerID).
		Str("event", ev.Type).
		Str("conversation_token", ev.ConversationToken).
		Int("attempt", attempt).
		Logger()

	start := time.Now()
	rctx, cancel := context.WithTimeout(ctx, relayTimeout)
	err := r.relay.PublishRaw(rctx, ev.ConversationToken, d.Body)
	cancel()
	if err == nil {
		if err := d.Ack(false); err != nil {
			log.Error().Err(err).Msg("ack failed")
		}
		if cost := time.Since(start); cost > 500*time.Millisecond {
			log.Info().Dur("cost", cost).Msg("slow relay")
		}
		return
	}

	if next := attempt + 1; next < maxAttempts {
		rerr := r.retry.PublishRetry(ctx, d.Body, next)
		if rerr == nil {
			log.Warn().Err(err).Int("next_attempt", next).Msg("relay failed, retry scheduled")
			_ = d.Ack(false)
			return
		}
		log.Error().Err(rerr).Msg("schedule retry failed")
	}

	log.Error().Err(err).Msg("relay failed, dead-lettering")
	_ = d.Nack(false, false)
}
