package rabbitmq

import (
	"context"
	"errors"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// AttemptHeader carries how many times a delivery has been retried.
	AttemptHeader = "x-attempt"

	retryDelay = 5 * time.Second
)

type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// RetryQueue and DeadLetterQueue name the companions of the main queue.
func RetryQueue(queue string) string      { return queue + ".retry" }
func DeadLetterQueue(queue string) string { return queue + ".dlq" }

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := DeclareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

// DeclareTopology declares the main queue plus its retry queue and DLQ.
// The worker calls it too so both sides agree on arguments.
func DeclareTopology(ch *amqp.Channel, queue string) error {
	mainQ := queue
	retryQ := RetryQueue(queue)
	dlqQ := DeadLetterQueue(queue)

	// DLQ
	if _, err := ch.QueueDeclare(
		dlqQ,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		return err
	}

	// Retry queue: message TTL -> dead-letter back to main queue
	if _, err := ch.QueueDeclare(
		retryQ,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": mainQ,
		},
	); err != nil {
		return err
	}

	// Main queue: dead-letter to DLQ on reject/nack(requeue=false)
	_, err := ch.QueueDeclare(
		mainQ,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dlqQ,
		},
	)
	return err
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Publish enqueues a JSON event on the main queue.
func (p *Publisher) Publish(ctx context.Context, body []byte) error {
	return p.publish(ctx, p.queue, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
	})
}

// PublishRetry parks body on the retry queue; it returns to the main queue after retryDelay.
func (p *Publisher) PublishRetry(ctx context.Context, body []byte, attempt int) error {
	if attempt <= 0 {
		return errors.New("rabbitmq: retry attempt must be positive")
	}
	return p.publish(ctx, RetryQueue(p.queue), amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
		Expiration:   strconv.FormatInt(retryDelay.Milliseconds(), 10),
		Headers:      amqp.Table{AttemptHeader: int32(attempt)},
	})
}

func (p *Publisher) publish(ctx context.Context, queue string, msg amqp.Publishing) error {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(cctx,
		"",    // default exchange
		queue, // routing key = queue
		false,
		false,
		msg,
	)
}

// Attempt reads the retry counter stamped by PublishRetry; fresh deliveries report 0.
func Attempt(d amqp.Delivery) int {
	switch v := d.Headers[AttemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}
