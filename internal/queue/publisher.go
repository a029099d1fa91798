package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Publisher sends NotificationEvents to the broker.  It satisfies the
// engines' NotificationSender contract: publishing never blocks the
// calling operation's outcome, and every failure is logged and dropped
// rather than surfaced.  The connection is opened lazily and reopened
// on the next publish after a failure.
type Publisher struct {
	url string
	log zerolog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a Publisher for the given broker URL.  No
// connection is made until the first event.
func NewPublisher(url string, log zerolog.Logger) *Publisher {
	return &Publisher{url: url, log: log}
}

// Notify publishes one event.  Messages are persistent and the queue is
// declared durable, so confirmed events survive a broker restart.
func (p *Publisher) Notify(ctx context.Context, userID uint64, kind string, payload map[string]string) {
	ev := NotificationEvent{
		UserID:    userID,
		Kind:      kind,
		Payload:   payload,
		EmittedAt: time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Error().Err(err).Str("kind", kind).Msg("notification marshal failed")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.publish(ctx, body); err != nil {
		// One reconnect attempt; a broker outage costs events, not
		// reservations.
		p.reset()
		if err = p.publish(ctx, body); err != nil {
			p.log.Error().Err(err).Str("kind", kind).Uint64("user_id", userID).
				Msg("notification publish failed, event dropped")
		}
	}
}

// publish sends on the current channel, dialing first if needed.
// Caller holds p.mu.
func (p *Publisher) publish(ctx context.Context, body []byte) error {
	if p.ch == nil {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return err
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return err
		}
		if _, err := ch.QueueDeclare(notificationQueueName, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return err
		}
		p.conn, p.ch = conn, ch
	}
	return p.ch.PublishWithContext(ctx,
		"",                    // default exchange
		notificationQueueName, // routing key = queue name
		false,                 // mandatory
		false,                 // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}

// reset drops the broken connection.  Caller holds p.mu.
func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close shuts the broker connection down.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}
