package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/linemk/shop-orders/internal/domain/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

const exchangeType = "topic"

// Channel подмножество *amqp.Channel, нужное издателю
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitMQNotifier публикует события в topic exchange.
// Routing key: notify.<event>, например notify.payment.confirmed
type RabbitMQNotifier struct {
	ch       Channel
	exchange string
}

func NewRabbitMQNotifier(ch Channel, exchange string) *RabbitMQNotifier {
	return &RabbitMQNotifier{ch: ch, exchange: exchange}
}

func (n *RabbitMQNotifier) Notify(ctx context.Context, target models.NotificationTarget, event Event, payload Payload) error {
	env := NewEnvelope(target, event, payload)
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("could not marshal notification: %w", err)
	}

	return n.ch.PublishWithContext(ctx,
		n.exchange,
		"notify."+string(event),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    env.EventID,
			Timestamp:    env.OccurredAt,
			Body:         body,
		},
	)
}

// SetupRabbitMQ подключается к брокеру с повторами и объявляет exchange
func SetupRabbitMQ(log *slog.Logger, url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	var conn *amqp.Connection
	attempt := 0
	dial := func() error {
		attempt++
		var err error
		conn, err = amqp.Dial(url)
		if err != nil {
			log.Warn("failed to connect to rabbitmq", slog.Int("attempt", attempt), slog.Any("error", err))
		}
		return err
	}
	if err := backoff.Retry(dial, backoff.WithMaxRetries(backoff.NewConstantBackOff(2*time.Second), 4)); err != nil {
		return nil, nil, fmt.Errorf("could not connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("could not open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		exchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("could not declare exchange: %w", err)
	}

	return conn, ch, nil
}
