package tests

import (
	"context"
	"sort"
	"sync"
	"time"

	"order/pkg/domain/model"
	"order/pkg/domain/service"
)

var _ model.OrderRepository = &mockOrderRepository{}

type mockOrderRepository struct {
	mu     sync.Mutex
	store  map[int64]*model.Order
	nextID int64
	// beforeUpdate runs inside Update before the version check.
	beforeUpdate func(stored *model.Order)
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{store: make(map[int64]*model.Order)}
}

func cloneOrder(order *model.Order) *model.Order {
	clone := *order
	clone.Items = append([]model.Item(nil), order.Items...)
	if order.PaymentMethod != nil {
		pm := *order.PaymentMethod
		clone.PaymentMethod = &pm
	}
	return &clone
}

func (m *mockOrderRepository) Create(_ context.Context, order *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.store {
		if existing.RequestID == order.RequestID {
			return model.ErrDuplicateRequest
		}
	}
	m.nextID++
	order.ID = m.nextID
	m.store[order.ID] = cloneOrder(order)
	return nil
}

func (m *mockOrderRepository) Find(_ context.Context, id int64) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order, ok := m.store[id]; ok {
		return cloneOrder(order), nil
	}
	return nil, model.ErrOrderNotFound
}

func (m *mockOrderRepository) FindByRequestID(_ context.Context, requestID string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, order := range m.store {
		if order.RequestID == requestID {
			return cloneOrder(order), nil
		}
	}
	return nil, model.ErrOrderNotFound
}

func (m *mockOrderRepository) List(_ context.Context, spec model.ListSpec) ([]model.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []model.Order
	for _, order := range m.store {
		if spec.BuyerID != "" && order.BuyerID != spec.BuyerID {
			continue
		}
		if spec.Status != "" && order.Status != spec.Status {
			continue
		}
		matched = append(matched, *cloneOrder(order))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	if spec.Offset >= total {
		return []model.Order{}, total, nil
	}
	end := spec.Offset + spec.Limit
	if end > total {
		end = total
	}
	return matched[spec.Offset:end], total, nil
}

func (m *mockOrderRepository) Update(_ context.Context, order *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.store[order.ID]
	if !ok {
		return model.ErrOrderNotFound
	}
	if m.beforeUpdate != nil {
		m.beforeUpdate(existing)
	}
	if existing.Version != order.Version-1 {
		return model.ErrOptimisticLock
	}
	m.store[order.ID] = cloneOrder(order)
	return nil
}

func (m *mockOrderRepository) get(id int64) *model.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneOrder(m.store[id])
}

func (m *mockOrderRepository) setStatus(id int64, status model.OrderStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[id].Status = status
}

var _ model.ProcessedRequestRepository = &mockProcessedRequestRepository{}

type mockProcessedRequestRepository struct {
	mu    sync.Mutex
	store map[string]model.ProcessedRequest
	// beforeStore simulates a concurrent writer winning the insert.
	beforeStore func(request *model.ProcessedRequest)
}

func newMockProcessedRequestRepository() *mockProcessedRequestRepository {
	return &mockProcessedRequestRepository{store: make(map[string]model.ProcessedRequest)}
}

func (m *mockProcessedRequestRepository) Find(_ context.Context, requestID string) (*model.ProcessedRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.store[requestID]
	if !ok {
		return nil, model.ErrProcessedRequestNotFound
	}
	return &request, nil
}

func (m *mockProcessedRequestRepository) Store(_ context.Context, request *model.ProcessedRequest) error {
	if m.beforeStore != nil {
		m.beforeStore(request)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[request.RequestID]; ok {
		return model.ErrDuplicateRequest
	}
	m.store[request.RequestID] = *request
	return nil
}

func (m *mockProcessedRequestRepository) put(request model.ProcessedRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[request.RequestID] = request
}

type mockBasketProvider struct {
	baskets map[string]*model.Basket
	calls   int
	err     error
}

func (m *mockBasketProvider) GetBasket(_ context.Context, buyerID, _ string) (*model.Basket, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.baskets[buyerID], nil
}

type scheduledExpiry struct {
	OrderID int64
	FireAt  time.Time
}

type mockScheduler struct {
	scheduled []scheduledExpiry
	err       error
}

func (m *mockScheduler) Schedule(_ context.Context, orderID int64, fireAt time.Time) error {
	if m.err != nil {
		return m.err
	}
	m.scheduled = append(m.scheduled, scheduledExpiry{OrderID: orderID, FireAt: fireAt})
	return nil
}

type mockEventDispatcher struct {
	events []service.Event
	err    error
}

func (m *mockEventDispatcher) Dispatch(_ context.Context, event service.Event) error {
	m.events = append(m.events, event)
	return m.err
}

func (m *mockEventDispatcher) Reset() {
	m.events = nil
}

func (m *mockEventDispatcher) types() []string {
	types := make([]string, 0, len(m.events))
	for _, event := range m.events {
		types = append(types, event.Type())
	}
	return types
}
