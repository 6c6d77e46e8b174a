package rabbitmq

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestQueueNames(t *testing.T) {
	assert.Equal(t, "chat_events.retry", RetryQueue("chat_events"))
	assert.Equal(t, "chat_events.dlq", DeadLetterQueue("chat_events"))
}

func TestAttempt(t *testing.T) {
	assert.Equal(t, 0, Attempt(amqp.Delivery{}))
	assert.Equal(t, 2, Attempt(amqp.Delivery{Headers: amqp.Table{AttemptHeader: int32(2)}}))
	assert.Equal(t, 3, Attempt(amqp.Delivery{Headers: amqp.Table{AttemptHeader: int64(3)}}))
	assert.Equal(t, 0, Attempt(amqp.Delivery{Headers: amqp.Table{AttemptHeader: "x"}}))
}
