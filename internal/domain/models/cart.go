package models

// CartItem позиция корзины
type CartItem struct {
	ProductID string
	Quantity  int
}

// Cart принадлежит сессии, удаляется ровно один раз при создании заказа
type Cart struct {
	ID        int64
	SessionID string
	Items     []CartItem
}

// CartSnapshot корзина, провалидированная по текущему каталогу
type CartSnapshot struct {
	CartID int64
	Items  []OrderItem
}
