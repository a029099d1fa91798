package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// StartConsumer drains the notification queue and writes each event to
// the structured log.  In this deployment it stands in for the real
// delivery fan-out (push, SMS); swapping it out does not touch the
// engines.  The function runs a reconnect loop with exponential backoff
// and returns only when ctx is canceled.  Messages that fail to decode
// are rejected without requeue so a poison message cannot wedge the
// queue.
func StartConsumer(ctx context.Context, url string, log zerolog.Logger) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("notification consumer dial failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after a successful connect

		if err := consumeLoop(ctx, conn, log); err != nil {
			log.Warn().Err(err).Msg("notification consume loop ended, reconnecting")
		}
		_ = conn.Close()
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, log zerolog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn().Err(err).Msg("notification consumer set QoS failed")
	}

	if _, err := ch.QueueDeclare(notificationQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(notificationQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleDelivery(d.Body, log); err != nil {
				log.Error().Err(err).Msg("notification handling failed")
				_ = d.Nack(false, false) // do not requeue poison messages
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleDelivery(body []byte, log zerolog.Logger) error {
	var ev NotificationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	log.Info().
		Uint64("user_id", ev.UserID).
		Str("kind", ev.Kind).
		Str("emitted_at", ev.EmittedAt).
		Fields(map[string]interface{}{"payload": ev.Payload}).
		Msg("notification delivered")
	return nil
}
