package notify

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/estate-chat/internal/conversation"
	"github.com/suPer8Hu/estate-chat/internal/metrics"
)

// subscriberBufferSize is the channel buffer for each live subscriber.
const subscriberBufferSize = 64

// Hub is the in-process pub/sub keyed by conversation token. Websocket
// connections on this instance subscribe to it.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan []byte // token -> subID -> ch
	log         zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]map[string]chan []byte),
		log:         log.With().Str("component", "hub").Logger(),
	}
}

// Subscribe registers a subscriber for one conversation. The subscription is
// removed and its channel closed when ctx is cancelled.
func (h *Hub) Subscribe(ctx context.Context, token string) (<-chan []byte, string) {
	subID := uuid.NewString()
	ch := make(chan []byte, subscriberBufferSize)

	h.mu.Lock()
	if _, ok := h.subscribers[token]; !ok {
		h.subscribers[token] = make(map[string]chan []byte)
	}
	h.subscribers[token][subID] = ch
	h.mu.Unlock()
	metrics.LiveSubscribers.Inc()

	h.log.Debug().Str("conversation_token", token).Str("sub_id", subID).Msg("subscriber added")

	go func() {
		<-ctx.Done()
		h.Unsubscribe(token, subID)
	}()

	return ch, subID
}

func (h *Hub) Unsubscribe(token, subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[token]
	if !ok {
		return
	}
	ch, ok := subs[subID]
	if !ok {
		return
	}
	delete(subs, subID)
	close(ch)
	if len(subs) == 0 {
		delete(h.subscribers, token)
	}
	metrics.LiveSubscribers.Dec()
}

// Broadcast hands payload to every subscriber of token and reports how many took it.
// Subscribers with a full buffer miss the event.
func (h *Hub) Broadcast(token string, payload []byte) int {
	// sends happen under the read lock so Unsubscribe cannot close a channel mid-send
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for subID, ch := range h.subscribers[token] {
		select {
		case ch <- payload:
			delivered++
		default:
			metrics.DroppedEvents.Inc()
			h.log.Debug().Str("conversation_token", token).Str("sub_id", subID).Msg("dropped event for slow subscriber")
		}
	}
	return delivered
}

// Publish implements conversation.Notifier for single instance deployments.
func (h *Hub) Publish(_ context.Context, ev conversation.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.Broadcast(ev.ConversationToken, payload)
	return nil
}

func (h *Hub) Subscribers(token string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[token])
}
