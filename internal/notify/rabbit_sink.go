package notify

import (
	"context"
	"encoding/json"

	"github.com/suPer8Hu/estate-chat/internal/conversation"
)

type bodyPublisher interface {
	Publish(ctx context.Context, body []byte) error
}

// RabbitSink enqueues events for cmd/worker, which relays them to redis.
type RabbitSink struct {
	pub bodyPublisher
}

func NewRabbitSink(pub bodyPublisher) *RabbitSink {
	return &RabbitSink{pub: pub}
}

func (s *RabbitSink) Publish(ctx context.Context, ev conversation.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.pub.Publish(ctx, body)
}
