package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/shop-orders/internal/domain/models"
	"github.com/linemk/shop-orders/internal/domain/money"
)

// Event тип события жизненного цикла заказа
type Event string

const (
	EventOrderCreated     Event = "order.created"
	EventPaymentConfirmed Event = "payment.confirmed"
	EventPaymentFailed    Event = "payment.failed"
)

// Payload данные события
type Payload struct {
	OrderID   string               `json:"orderId"`
	PaymentID string               `json:"paymentId,omitempty"`
	Method    string               `json:"method,omitempty"`
	Status    models.PaymentStatus `json:"status,omitempty"`
	Price     *money.Money         `json:"price,omitempty"`
	Reason    string               `json:"reason,omitempty"`
}

// Notifier доставляет события адресатам. Ошибка доставки не должна влиять на заказ,
// вызывающая сторона только логирует её.
type Notifier interface {
	Notify(ctx context.Context, target models.NotificationTarget, event Event, payload Payload) error
}

// Envelope сообщение, которое уходит в брокер
type Envelope struct {
	EventID    string    `json:"eventId"`
	Event      Event     `json:"event"`
	NPub       string    `json:"npub,omitempty"`
	Email      string    `json:"email,omitempty"`
	Payload    Payload   `json:"payload"`
	OccurredAt time.Time `json:"occurredAt"`
}

func NewEnvelope(target models.NotificationTarget, event Event, payload Payload) Envelope {
	return Envelope{
		EventID:    uuid.NewString(),
		Event:      event,
		NPub:       target.NPub.OrEmpty(),
		Email:      target.Email.OrEmpty(),
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

// LogNotifier пишет события в лог, используется когда брокер не настроен
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, target models.NotificationTarget, event Event, payload Payload) error {
	env := NewEnvelope(target, event, payload)
	n.log.InfoContext(ctx, "notification",
		slog.String("event_id", env.EventID),
		slog.String("event", string(event)),
		slog.String("order_id", payload.OrderID),
		slog.String("payment_id", payload.PaymentID),
		slog.Bool("npub", env.NPub != ""),
		slog.Bool("email", env.Email != ""),
	)
	return nil
}
