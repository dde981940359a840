package models

import (
	"time"

	"github.com/samber/mo"
)

// Subscription оплаченная подписка. PaidUntil сдвигается только при подтверждении
// оплаты заказа с товаром-подпиской.
type Subscription struct {
	ID        string
	ProductID string
	NPub      mo.Option[string]
	Email     mo.Option[string]
	Number    int64
	CreatedAt time.Time
	PaidUntil time.Time
}

func (s *Subscription) Identity() NotificationTarget {
	return NotificationTarget{NPub: s.NPub, Email: s.Email}
}
