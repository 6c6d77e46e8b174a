package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/estate-chat/internal/conversation"
	"github.com/suPer8Hu/estate-chat/internal/store/rabbitmq"
)

type fakeAck struct {
	acks  int
	nacks int
}

func (f *fakeAck) Ack(uint64, bool) error        { f.acks++; return nil }
func (f *fakeAck) Nack(uint64, bool, bool) error { f.nacks++; return nil }
func (f *fakeAck) Reject(uint64, bool) error     { f.nacks++; return nil }

type fakeRelay struct {
	err    error
	tokens []string
}

func (f *fakeRelay) PublishRaw(_ context.Context, token string, _ []byte) error {
	f.tokens = append(f.tokens, token)
	return f.err
}

type fakeRetry struct {
	err      error
	attempts []int
}

func (f *fakeRetry) PublishRetry(_ context.Context, _ []byte, attempt int) error {
	f.attempts = append(f.attempts, attempt)
	return f.err
}

func delivery(t *testing.T, ack *fakeAck, attempt int) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(conversation.Event{
		Type:              conversation.EventMessageCreated,
		ConversationToken: "tok-1",
	})
	require.NoError(t, err)

	d := amqp.Delivery{Acknowledger: ack, Body: body}
	if attempt > 0 {
		d.Headers = amqp.Table{rabbitmq.AttemptHeader: int32(attempt)}
	}
	return d
}

func TestRelayer_Success(t *testing.T) {
	ack := &fakeAck{}
	relay := &fakeRelay{}
	retry := &fakeRetry{}
	r := &relayer{relay: relay, retry: retry, log: zerolog.Nop()}

	r.handle(context.Background(), 0, delivery(t, ack, 0))

	assert.Equal(t, []string{"tok-1"}, relay.tokens)
	assert.Empty(t, retry.attempts)
	assert.Equal(t, 1, ack.acks)
	assert.Equal(t, 0, ack.nacks)
}

func TestRelayer_FailureSchedulesRetry(t *testing.T) {
	ack := &fakeAck{}
	retry := &fakeRetry{}
	r := &relayer{relay: &fakeRelay{err: errors.New("redis down")}, retry: retry, log: zerolog.Nop()}

	r.handle(context.Background(), 0, delivery(t, ack, 1))

	assert.Equal(t, []int{2}, retry.attempts)
	assert.Equal(t, 1, ack.acks)
	assert.Equal(t, 0, ack.nacks)
}

func TestRelayer_LastAttemptDeadLetters(t *testing.T) {
	ack := &fakeAck{}
	retry := &fakeRetry{}
	r := &relayer{relay: &fakeRelay{err: errors.New("redis down")}, retry: retry, log: zerolog.Nop()}

	r.handle(context.Background(), 0, delivery(t, ack, maxAttempts-1))

	assert.Empty(t, retry.attempts)
	assert.Equal(t, 0, ack.acks)
	assert.Equal(t, 1, ack.nacks)
}

func TestRelayer_RetryPublishFailureDeadLetters(t *testing.T) {
	ack := &fakeAck{}
	retry := &fakeRetry{err: errors.New("channel closed")}
	r := &relayer{relay: &fakeRelay{err: errors.New("redis down")}, retry: retry, log: zerolog.Nop()}

	r.handle(context.Background(), 0, delivery(t, ack, 0))

	assert.Equal(t, []int{1}, retry.attempts)
	assert.Equal(t, 0, ack.acks)
	assert.Equal(t, 1, ack.nacks)
}

func TestRelayer_BadBody(t *testing.T) {
	ack := &fakeAck{}
	relay := &fakeRelay{}
	r := &relayer{relay: relay, retry: &fakeRetry{}, log: zerolog.Nop()}

	r.handle(context.Background(), 0, amqp.Delivery{Acknowledger: ack, Body: []byte(`{"type":"message.created"}`)})

	assert.Empty(t, relay.tokens)
	assert.Equal(t, 1, ack.nacks)
}

func TestDispatch_ReturnsWhenDeliveriesClose(t *testing.T) {
	msgs := make(chan amqp.Delivery, 1)
	jobs := make(chan amqp.Delivery, 1)
	msgs <- amqp.Delivery{Body: []byte("x")}
	close(msgs)

	err := dispatch(context.Background(), msgs, jobs)
	require.ErrorIs(t, err, errDeliveriesClosed)
	require.Len(t, jobs, 1)
}

func TestDispatch_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- dispatch(ctx, make(chan amqp.Delivery), make(chan amqp.Delivery)) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not return after cancel")
	}
}
