package service_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/linemk/shop-orders/internal/domain/models"
	"github.com/linemk/shop-orders/internal/notify"
	"github.com/linemk/shop-orders/internal/storage"
)

// memStore хранилище в памяти. Блокировки строк держатся до конца транзакции,
// при ошибке изменения транзакции откатываются в обратном порядке.
type memStore struct {
	mu sync.Mutex

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	products   map[string]*models.Product
	carts      map[string]*models.Cart
	orders     map[string]*models.Order
	subs       map[string]*models.Subscription
	nextSubNum int64
	nextCartID int64
}

var (
	_ storage.Transactor          = (*memStore)(nil)
	_ storage.CatalogStorage      = (*memStore)(nil)
	_ storage.CartStorage         = (*memStore)(nil)
	_ storage.OrderStorage        = (*memStore)(nil)
	_ storage.PaymentStorage      = (*memStore)(nil)
	_ storage.SubscriptionStorage = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		locks:    make(map[string]*sync.Mutex),
		products: make(map[string]*models.Product),
		carts:    make(map[string]*models.Cart),
		orders:   make(map[string]*models.Order),
		subs:     make(map[string]*models.Subscription),
	}
}

// memTx состояние одной транзакции: взятые блокировки и журнал отката
type memTx struct {
	held map[string]*sync.Mutex
	undo []func()
}

type memTxKey struct{}

func copyOrder(o *models.Order) *models.Order {
	c := *o
	c.Items = append([]models.OrderItem(nil), o.Items...)
	c.Payments = append([]models.Payment(nil), o.Payments...)
	return &c
}

func (s *memStore) InTx(ctx context.Context, fn storage.TxFunc) error {
	t := &memTx{held: make(map[string]*sync.Mutex)}
	err := fn(context.WithValue(ctx, memTxKey{}, t), nil)
	if err != nil {
		s.mu.Lock()
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		s.mu.Unlock()
	}
	for _, m := range t.held {
		m.Unlock()
	}
	return err
}

// lockRow аналог SELECT ... FOR UPDATE: ждет, пока строку отпустит другая транзакция
func (s *memStore) lockRow(ctx context.Context, key string) {
	t, ok := ctx.Value(memTxKey{}).(*memTx)
	if !ok {
		return
	}
	if _, held := t.held[key]; held {
		return
	}
	s.locksMu.Lock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	s.locksMu.Unlock()

	m.Lock()
	t.held[key] = m
}

// onRollback вызывается под s.mu
func onRollback(ctx context.Context, undo func()) {
	if t, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		t.undo = append(t.undo, undo)
	}
}

// наполнение

func (s *memStore) addProduct(p *models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *memStore) addCart(sessionID string, items ...models.CartItem) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCartID++
	s.carts[sessionID] = &models.Cart{ID: s.nextCartID, SessionID: sessionID, Items: items}
	return s.nextCartID
}

func (s *memStore) addSubscription(sub *models.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubNum++
	sub.Number = s.nextSubNum
	c := *sub
	s.subs[sub.ID] = &c
}

func (s *memStore) hasCart(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.carts[sessionID]
	return ok
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) subscriptions() []models.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Subscription
	for _, sub := range s.subs {
		out = append(out, *sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// CatalogStorage

func (s *memStore) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, storage.ErrProductNotFound
	}
	c := *p
	return &c, nil
}

func (s *memStore) GetProductsByIDs(ctx context.Context, ids []string) (map[string]*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*models.Product)
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			c := *p
			out[id] = &c
		}
	}
	return out, nil
}

// CartStorage

func (s *memStore) GetCartBySession(ctx context.Context, sessionID string) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[sessionID]
	if !ok {
		return nil, storage.ErrCartNotFound
	}
	c := *cart
	c.Items = append([]models.CartItem(nil), cart.Items...)
	return &c, nil
}

func (s *memStore) DeleteCartEffect(cartID int64) storage.TxEffect {
	return storage.TxEffect{
		Name: "delete-cart",
		Apply: func(ctx context.Context, tx *sql.Tx) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			for session, cart := range s.carts {
				if cart.ID == cartID {
					delete(s.carts, session)
					onRollback(ctx, func() { s.carts[session] = cart })
					return nil
				}
			}
			return storage.ErrCartNotFound
		},
	}
}

// OrderStorage

func (s *memStore) CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := copyOrder(order)
	c.Payments = nil
	s.orders[order.ID] = c
	onRollback(ctx, func() { delete(s.orders, order.ID) })
	return nil
}

func (s *memStore) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (s *memStore) LockOrderTx(ctx context.Context, tx *sql.Tx, id string) (*models.Order, error) {
	s.lockRow(ctx, "order:"+id)
	return s.GetOrderByID(ctx, id)
}

func (s *memStore) FindLatestPaidOrder(ctx context.Context, productID string, identity models.NotificationTarget) (*models.Order, error) {
	if identity.IsEmpty() {
		return nil, storage.ErrEmptyIdentity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *models.Order
	for _, o := range s.orders {
		if !containsProduct(o, productID) {
			continue
		}
		if _, paid := o.PaidPayment(); !paid {
			continue
		}
		if !matchesIdentity(o.Notifications.PaymentStatus, identity) {
			continue
		}
		if latest == nil || o.CreatedAt.After(latest.CreatedAt) {
			latest = o
		}
	}
	if latest == nil {
		return nil, storage.ErrOrderNotFound
	}
	return copyOrder(latest), nil
}

func containsProduct(o *models.Order, productID string) bool {
	for _, item := range o.Items {
		if item.Product.ID == productID {
			return true
		}
	}
	return false
}

func matchesIdentity(t, identity models.NotificationTarget) bool {
	if npub, ok := identity.NPub.Get(); ok && t.NPub.OrEmpty() == npub {
		return true
	}
	if email, ok := identity.Email.Get(); ok && t.Email.OrEmpty() == email {
		return true
	}
	return false
}

// PaymentStorage

func (s *memStore) InsertPayment(ctx context.Context, tx *sql.Tx, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[payment.OrderID]
	if !ok {
		return storage.ErrOrderNotFound
	}
	o.Payments = append(o.Payments, *payment)
	onRollback(ctx, func() { removePayment(o, payment.ID) })
	return nil
}

func removePayment(o *models.Order, paymentID string) {
	for i := range o.Payments {
		if o.Payments[i].ID == paymentID {
			o.Payments = append(o.Payments[:i:i], o.Payments[i+1:]...)
			return
		}
	}
}

func (s *memStore) LockPaymentTx(ctx context.Context, tx *sql.Tx, orderID, paymentID string) (*models.Payment, error) {
	s.lockRow(ctx, "payment:"+paymentID)
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, storage.ErrPaymentNotFound
	}
	p, ok := o.Payment(paymentID)
	if !ok {
		return nil, storage.ErrPaymentNotFound
	}
	c := *p
	return &c, nil
}

func (s *memStore) TransitionPayment(ctx context.Context, tx *sql.Tx, t storage.PaymentTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[t.OrderID]
	if !ok {
		return storage.ErrPaymentNotPending
	}
	p, ok := o.Payment(t.PaymentID)
	if !ok || p.Status != models.PaymentStatusPending {
		return storage.ErrPaymentNotPending
	}
	prev := *p
	onRollback(ctx, func() {
		if p, ok := o.Payment(prev.ID); ok {
			*p = prev
		}
	})
	p.Status = t.To
	p.PaidAmount = t.PaidAmount
	p.Details = t.Details
	p.FailureReason = t.Reason
	p.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Payment
	for _, o := range s.orders {
		for _, p := range o.Payments {
			if p.Status == models.PaymentStatusPending && p.ExpiresAt.Before(now) {
				c := p
				out = append(out, &c)
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SubscriptionStorage

func (s *memStore) GetSubscriptionByID(ctx context.Context, id string) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, storage.ErrSubscriptionNotFound
	}
	c := *sub
	return &c, nil
}

func (s *memStore) FindSubscriptionTx(ctx context.Context, tx *sql.Tx, productID string, identity models.NotificationTarget) (*models.Subscription, error) {
	if identity.IsEmpty() {
		return nil, storage.ErrEmptyIdentity
	}
	s.lockRow(ctx, "subscriptions:"+productID)
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *models.Subscription
	for _, sub := range s.subs {
		if sub.ProductID != productID || !matchesIdentity(sub.Identity(), identity) {
			continue
		}
		if found == nil || sub.PaidUntil.After(found.PaidUntil) {
			found = sub
		}
	}
	if found == nil {
		return nil, storage.ErrSubscriptionNotFound
	}
	c := *found
	return &c, nil
}

func (s *memStore) InsertSubscription(ctx context.Context, tx *sql.Tx, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubNum++
	sub.Number = s.nextSubNum
	c := *sub
	s.subs[sub.ID] = &c
	onRollback(ctx, func() {
		delete(s.subs, c.ID)
		if s.nextSubNum == c.Number {
			s.nextSubNum--
		}
	})
	return nil
}

func (s *memStore) ExtendSubscription(ctx context.Context, tx *sql.Tx, id string, paidUntil time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return storage.ErrSubscriptionNotFound
	}
	prev := sub.PaidUntil
	onRollback(ctx, func() { sub.PaidUntil = prev })
	sub.PaidUntil = paidUntil
	return nil
}

// recordingNotifier запоминает отправленные события
type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

type recordedEvent struct {
	Target  models.NotificationTarget
	Event   notify.Event
	Payload notify.Payload
}

var _ notify.Notifier = (*recordingNotifier)(nil)

func (n *recordingNotifier) Notify(ctx context.Context, target models.NotificationTarget, event notify.Event, payload notify.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{Target: target, Event: event, Payload: payload})
	return n.err
}

func (n *recordingNotifier) count(event notify.Event) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.Event == event {
			c++
		}
	}
	return c
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
