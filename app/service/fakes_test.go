package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/vibast-solutions/ms-go-payment-webhooks/app/accounting"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/entity"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/notifier"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/provider"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/repository"
)

type fakeWebhookEventRepo struct {
	mu     sync.Mutex
	events map[uint64]*entity.WebhookEvent
	nextID uint64
	err    error
}

func newFakeWebhookEventRepo() *fakeWebhookEventRepo {
	return &fakeWebhookEventRepo{events: map[uint64]*entity.WebhookEvent{}, nextID: 1}
}

func (r *fakeWebhookEventRepo) Claim(_ context.Context, event *entity.WebhookEvent, lease time.Duration, now time.Time) (*repository.ClaimResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}

	lockedUntil := now.Add(lease)
	if event.ExternalEventID != nil {
		for _, item := range r.events {
			if item.Provider != event.Provider || item.ExternalEventID == nil || *item.ExternalEventID != *event.ExternalEventID {
				continue
			}
			if item.IsProcessed {
				copyItem := *item
				return &repository.ClaimResult{Outcome: repository.ClaimAlreadyProcessed, Event: &copyItem}, nil
			}
			if item.LockedUntil != nil && item.LockedUntil.After(now) {
				copyItem := *item
				return &repository.ClaimResult{Outcome: repository.ClaimInFlight, Event: &copyItem}, nil
			}
			item.Attempts++
			item.Payload = event.Payload
			item.EventType = event.EventType
			item.LockedUntil = &lockedUntil
			copyItem := *item
			return &repository.ClaimResult{Outcome: repository.ClaimAcquired, Event: &copyItem}, nil
		}
	}

	stored := *event
	stored.ID = r.nextID
	r.nextID++
	stored.Attempts = 1
	stored.LockedUntil = &lockedUntil
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.events[stored.ID] = &stored

	copyItem := stored
	return &repository.ClaimResult{Outcome: repository.ClaimAcquired, Event: &copyItem}, nil
}

func (r *fakeWebhookEventRepo) ClaimByID(_ context.Context, id uint64, lease time.Duration, now time.Time) (*repository.ClaimResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.events[id]
	if !ok {
		return nil, repository.ErrWebhookEventNotFound
	}
	if item.IsProcessed {
		copyItem := *item
		return &repository.ClaimResult{Outcome: repository.ClaimAlreadyProcessed, Event: &copyItem}, nil
	}
	if item.LockedUntil != nil && item.LockedUntil.After(now) {
		copyItem := *item
		return &repository.ClaimResult{Outcome: repository.ClaimInFlight, Event: &copyItem}, nil
	}
	lockedUntil := now.Add(lease)
	item.Attempts++
	item.LockedUntil = &lockedUntil
	copyItem := *item
	return &repository.ClaimResult{Outcome: repository.ClaimAcquired, Event: &copyItem}, nil
}

func (r *fakeWebhookEventRepo) MarkProcessed(_ context.Context, id uint64, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.events[id]
	if !ok {
		return repository.ErrWebhookEventNotFound
	}
	item.IsProcessed = true
	item.ProcessedAt = &now
	item.ErrorMessage = nil
	item.LockedUntil = nil
	return nil
}

func (r *fakeWebhookEventRepo) MarkFailed(_ context.Context, id uint64, message string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.events[id]
	if !ok {
		return repository.ErrWebhookEventNotFound
	}
	item.ErrorMessage = &message
	item.LockedUntil = nil
	return nil
}

func (r *fakeWebhookEventRepo) List(_ context.Context, filter repository.WebhookEventFilter) ([]*entity.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := make([]*entity.WebhookEvent, 0)
	for _, item := range r.events {
		if filter.Provider != "" && item.Provider != filter.Provider {
			continue
		}
		if filter.HasProcessed && item.IsProcessed != filter.Processed {
			continue
		}
		copyItem := *item
		items = append(items, &copyItem)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return items, nil
}

func (r *fakeWebhookEventRepo) all() []*entity.WebhookEvent {
	items, _ := r.List(context.Background(), repository.WebhookEventFilter{})
	return items
}

type fakePaymentRepo struct {
	mu        sync.Mutex
	payments  map[uint64]*entity.Payment
	bookings  *fakeBookingRepo
	nextID    uint64
	createErr error
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: map[uint64]*entity.Payment{}, nextID: 1}
}

func (r *fakePaymentRepo) Create(_ context.Context, payment *entity.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insert(payment)
}

func (r *fakePaymentRepo) CreateWithDeposit(_ context.Context, payment *entity.Payment, deposit repository.BookingDeposit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bookings == nil {
		return repository.ErrBookingNotFound
	}
	booking, ok := r.bookings.bookings[deposit.BookingID]
	if !ok {
		return repository.ErrBookingNotFound
	}
	if err := r.insert(payment); err != nil {
		return err
	}
	paidAt := deposit.PaidAt
	booking.DepositPaidInCents = deposit.AmountInCents
	booking.DepositPaidAt = &paidAt
	return nil
}

func (r *fakePaymentRepo) ModifyBySquarePaymentID(_ context.Context, squarePaymentID string, modify func(payment *entity.Payment) error) (*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item := r.find(squarePaymentID)
	if item == nil {
		return nil, nil
	}
	copyItem := *item
	if err := modify(&copyItem); err != nil {
		return nil, err
	}
	stored := copyItem
	r.payments[copyItem.ID] = &stored
	return &copyItem, nil
}

func (r *fakePaymentRepo) FindBySquarePaymentID(_ context.Context, squarePaymentID string) (*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item := r.find(squarePaymentID); item != nil {
		copyItem := *item
		return &copyItem, nil
	}
	return nil, nil
}

func (r *fakePaymentRepo) seed(payment *entity.Payment) *entity.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	copyItem := *payment
	copyItem.ID = r.nextID
	r.nextID++
	r.payments[copyItem.ID] = &copyItem
	return &copyItem
}

func (r *fakePaymentRepo) insert(payment *entity.Payment) error {
	if r.createErr != nil {
		return r.createErr
	}
	if r.find(payment.SquarePaymentID) != nil {
		return repository.ErrPaymentAlreadyExists
	}
	copyItem := *payment
	copyItem.ID = r.nextID
	r.nextID++
	r.payments[copyItem.ID] = &copyItem
	payment.ID = copyItem.ID
	return nil
}

func (r *fakePaymentRepo) find(squarePaymentID string) *entity.Payment {
	for _, item := range r.payments {
		if item.SquarePaymentID == squarePaymentID {
			return item
		}
	}
	return nil
}

type fakeBookingRepo struct {
	bookings map[uint64]*entity.Booking
	findErr  error
}

func newFakeBookingRepo(bookings ...*entity.Booking) *fakeBookingRepo {
	r := &fakeBookingRepo{bookings: map[uint64]*entity.Booking{}}
	for _, b := range bookings {
		copyItem := *b
		r.bookings[b.ID] = &copyItem
	}
	return r
}

func (r *fakeBookingRepo) FindByID(_ context.Context, id uint64) (*entity.Booking, error) {
	item, ok := r.bookings[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *fakeBookingRepo) FindBySquareOrderID(_ context.Context, squareOrderID string) (*entity.Booking, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	ids := make([]uint64, 0, len(r.bookings))
	for id := range r.bookings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		item := r.bookings[id]
		if item.SquareOrderID != nil && *item.SquareOrderID == squareOrderID {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

type fakeClientRepo struct {
	clients map[uint64]*entity.Client
}

func newFakeClientRepo(clients ...*entity.Client) *fakeClientRepo {
	r := &fakeClientRepo{clients: map[uint64]*entity.Client{}}
	for _, c := range clients {
		r.clients[c.ID] = c
	}
	return r
}

func (r *fakeClientRepo) FindByID(_ context.Context, id uint64) (*entity.Client, error) {
	item, ok := r.clients[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

type fakeProductOrderRepo struct {
	orders map[uint64]*entity.ProductOrder
}

func newFakeProductOrderRepo(orders ...*entity.ProductOrder) *fakeProductOrderRepo {
	r := &fakeProductOrderRepo{orders: map[uint64]*entity.ProductOrder{}}
	for _, o := range orders {
		copyItem := *o
		r.orders[o.ID] = &copyItem
	}
	return r
}

func (r *fakeProductOrderRepo) FindBySquareOrderID(_ context.Context, squareOrderID string) (*entity.ProductOrder, error) {
	for _, item := range r.orders {
		if item.SquareOrderID != nil && *item.SquareOrderID == squareOrderID {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

func (r *fakeProductOrderRepo) UpdateStatus(_ context.Context, id uint64, status string, now time.Time) error {
	item, ok := r.orders[id]
	if !ok {
		return repository.ErrProductOrderNotFound
	}
	item.Status = status
	item.UpdatedAt = now
	return nil
}

type fakeSyncLogRepo struct {
	mu      sync.Mutex
	entries []*entity.SyncLogEntry
	err     error
}

func (r *fakeSyncLogRepo) Create(_ context.Context, entry *entity.SyncLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	copyItem := *entry
	copyItem.ID = uint64(len(r.entries) + 1)
	r.entries = append(r.entries, &copyItem)
	entry.ID = copyItem.ID
	return nil
}

func (r *fakeSyncLogRepo) List(_ context.Context, filter repository.SyncLogFilter) ([]*entity.SyncLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := make([]*entity.SyncLogEntry, 0)
	for _, item := range r.entries {
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if filter.Direction != "" && item.Direction != filter.Direction {
			continue
		}
		copyItem := *item
		items = append(items, &copyItem)
	}
	return items, nil
}

func (r *fakeSyncLogRepo) byDirection(direction string) []*entity.SyncLogEntry {
	items, _ := r.List(context.Background(), repository.SyncLogFilter{Direction: direction})
	return items
}

type fakeOutboxRepo struct {
	mu        sync.Mutex
	messages  map[uint64]*entity.OutboxMessage
	nextID    uint64
	createErr error
}

func newFakeOutboxRepo() *fakeOutboxRepo {
	return &fakeOutboxRepo{messages: map[uint64]*entity.OutboxMessage{}, nextID: 1}
}

func (r *fakeOutboxRepo) Create(_ context.Context, message *entity.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	copyItem := *message
	copyItem.ID = r.nextID
	r.nextID++
	r.messages[copyItem.ID] = &copyItem
	message.ID = copyItem.ID
	return nil
}

func (r *fakeOutboxRepo) Update(_ context.Context, message *entity.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[message.ID]; !ok {
		return repository.ErrOutboxMessageNotFound
	}
	copyItem := *message
	r.messages[message.ID] = &copyItem
	return nil
}

func (r *fakeOutboxRepo) ClaimDue(_ context.Context, now time.Time, limit int32, lease time.Duration) ([]*entity.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	due := make([]*entity.OutboxMessage, 0)
	for _, item := range r.messages {
		if item.Status != entity.OutboxStatusPending || item.NextAttemptAt == nil || item.NextAttemptAt.After(now) {
			continue
		}
		due = append(due, item)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	if limit > 0 && int(limit) < len(due) {
		due = due[:limit]
	}
	leasedUntil := now.Add(lease)
	items := make([]*entity.OutboxMessage, 0, len(due))
	for _, item := range due {
		until := leasedUntil
		item.NextAttemptAt = &until
		copyItem := *item
		items = append(items, &copyItem)
	}
	return items, nil
}

func (r *fakeOutboxRepo) byKind(kind string) []*entity.OutboxMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.OutboxMessage, 0)
	for _, item := range r.messages {
		if item.Kind == kind {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

type fakeOrderFetcher struct {
	orders map[string]*provider.Order
	err    error
	calls  int
}

func (f *fakeOrderFetcher) GetOrder(_ context.Context, orderID string) (*provider.Order, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	order, ok := f.orders[orderID]
	if !ok {
		return nil, provider.ErrOrderNotFound
	}
	return order, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []notifier.Message
	err  error
}

func (s *fakeSender) Send(_ context.Context, message notifier.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, message)
	return nil
}

type fakeAccounting struct {
	records []accounting.PaymentRecord
	err     error
}

func (a *fakeAccounting) RecordPayment(_ context.Context, record accounting.PaymentRecord) error {
	if a.err != nil {
		return a.err
	}
	a.records = append(a.records, record)
	return nil
}

var errBoom = errors.New("boom")

func strPtr(v string) *string {
	return &v
}
