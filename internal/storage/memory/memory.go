// Package memory is an in-process implementation of the verification
// workflow's store interfaces. It mirrors the conditional-update semantics of
// the Postgres layer (status transitions and stock decrements are atomic
// under one lock) and backs the workflow and handler tests.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/domicile785-droid/Cycle-World/internal/catalog"
	"github.com/domicile785-droid/Cycle-World/internal/order"
	"github.com/domicile785-droid/Cycle-World/internal/payment"
)

type Store struct {
	mu       sync.Mutex
	orders   map[string]*order.Order
	items    map[string][]order.Item
	payments map[string]*payment.Payment
	products map[string]*catalog.Product
}

func NewStore() *Store {
	return &Store{
		orders:   make(map[string]*order.Order),
		items:    make(map[string][]order.Item),
		payments: make(map[string]*payment.Payment),
		products: make(map[string]*catalog.Product),
	}
}

func (s *Store) AddProduct(p catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.products[p.ID] = &cp
}

// AddOrder seeds an order together with its items and payment record, the
// shape checkout produces.
func (s *Store) AddOrder(o order.Order, items []order.Item, pay payment.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	co := o
	s.orders[o.ID] = &co
	s.items[o.ID] = append([]order.Item(nil), items...)
	cp := pay
	s.payments[o.ID] = &cp
}

func (s *Store) GetByID(_ context.Context, orderID uuid.UUID) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID.String()]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *Store) ItemsByOrder(_ context.Context, orderID uuid.UUID) ([]order.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[orderID.String()]; !ok {
		return nil, order.ErrOrderNotFound
	}
	return append([]order.Item(nil), s.items[orderID.String()]...), nil
}

func (s *Store) TransitionStatus(_ context.Context, orderID uuid.UUID, from, to order.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID.String()]
	if !ok {
		return false, order.ErrOrderNotFound
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (s *Store) SetDocumentsStatus(_ context.Context, orderID uuid.UUID, status order.DocumentsStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID.String()]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.DocumentsStatus = status
	return nil
}

func (s *Store) UpdateStatusByOrder(_ context.Context, orderID uuid.UUID, status payment.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[orderID.String()]
	if !ok {
		return payment.ErrPaymentNotFound
	}
	p.Status = status
	return nil
}

func (s *Store) DecrementStock(_ context.Context, productID uuid.UUID, quantity int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID.String()]
	if !ok {
		return 0, catalog.ErrProductNotFound
	}
	p.Stock -= quantity
	if p.Stock < 0 {
		p.Stock = 0
	}
	return p.Stock, nil
}

func (s *Store) Order(orderID string) (order.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return order.Order{}, false
	}
	return *o, true
}

func (s *Store) Payment(orderID string) (payment.Payment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[orderID]
	if !ok {
		return payment.Payment{}, false
	}
	return *p, true
}

func (s *Store) Product(productID string) (catalog.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return catalog.Product{}, false
	}
	return *p, true
}
