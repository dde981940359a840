package models

import "github.com/samber/mo"

// NotificationTarget адресаты уведомлений: npub, email или оба
type NotificationTarget struct {
	NPub  mo.Option[string]
	Email mo.Option[string]
}

func (t NotificationTarget) IsEmpty() bool {
	return t.NPub.IsAbsent() && t.Email.IsAbsent()
}

// Notifications цели уведомлений заказа
type Notifications struct {
	PaymentStatus NotificationTarget
}
