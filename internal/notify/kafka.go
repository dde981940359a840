package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/linemk/shop-orders/internal/domain/models"
	"github.com/segmentio/kafka-go"
)

// MessageWriter подмножество *kafka.Writer
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaNotifier пишет события в топик с ключом id заказа:
// события одного заказа попадают в одну партицию.
type KafkaNotifier struct {
	writer MessageWriter
}

func NewKafkaNotifier(writer MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: writer}
}

func (n *KafkaNotifier) Notify(ctx context.Context, target models.NotificationTarget, event Event, payload Payload) error {
	env := NewEnvelope(target, event, payload)
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("could not marshal notification: %w", err)
	}
	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(payload.OrderID),
		Value: data,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(event)},
		},
	})
}

// NewKafkaWriter брокеры передаются строкой через запятую
func NewKafkaWriter(brokersCSV, topic string) (*kafka.Writer, error) {
	var brokers []string
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are not configured")
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}, nil
}
