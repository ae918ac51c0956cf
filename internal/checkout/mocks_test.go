package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	d "github.com/fjod/go_cart/checkout-flow/domain"
)

// MemoryCarts implements CartStore with the same optimistic version rule as
// the SQL store.
type MemoryCarts struct {
	mu      sync.Mutex
	carts   map[string]*d.Cart
	SaveErr error
	Saves   int
}

func NewMemoryCarts(carts ...*d.Cart) *MemoryCarts {
	m := &MemoryCarts{carts: make(map[string]*d.Cart)}
	for _, c := range carts {
		m.carts[c.ID] = c.Clone()
	}
	return m
}

func (m *MemoryCarts) GetCart(_ context.Context, id string) (*d.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[id]
	if !ok {
		return nil, d.ErrCartNotFound
	}
	return c.Clone(), nil
}

func (m *MemoryCarts) SaveCart(_ context.Context, cart *d.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if cur, ok := m.carts[cart.ID]; ok && cur.Version != cart.Version-1 {
		return d.ErrVersionConflict
	}
	m.carts[cart.ID] = cart.Clone()
	m.Saves++
	return nil
}

func (m *MemoryCarts) DeleteCart(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.carts[id]; !ok {
		return d.ErrCartNotFound
	}
	delete(m.carts, id)
	return nil
}

// Stored returns the persisted cart or nil.
func (m *MemoryCarts) Stored(id string) *d.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.carts[id]; ok {
		return c.Clone()
	}
	return nil
}

// MockAddressBook implements AddressBook for testing
type MockAddressBook struct {
	Addresses   map[int64]*d.Address
	NextID      int64
	GetErr      error
	CreateErr   error
	ReassignErr error
	Created     []d.AddressFields
	Deleted     []int64
}

func NewMockAddressBook(addrs ...*d.Address) *MockAddressBook {
	m := &MockAddressBook{Addresses: make(map[int64]*d.Address), NextID: 100}
	for _, a := range addrs {
		m.Addresses[a.ID] = a
	}
	return m
}

func (m *MockAddressBook) Get(_ context.Context, customerID string, id int64) (*d.Address, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	a, ok := m.Addresses[id]
	if !ok || a.CustomerID != customerID {
		return nil, d.ErrAddressNotFound
	}
	return a, nil
}

func (m *MockAddressBook) Create(_ context.Context, customerID string, fields d.AddressFields) (int64, error) {
	if m.CreateErr != nil {
		return 0, m.CreateErr
	}
	m.NextID++
	a := fields.ToAddress(customerID)
	a.ID = m.NextID
	m.Addresses[a.ID] = a
	m.Created = append(m.Created, fields)
	return a.ID, nil
}

func (m *MockAddressBook) Delete(_ context.Context, customerID string, id int64) error {
	a, ok := m.Addresses[id]
	if !ok || a.CustomerID != customerID {
		return d.ErrAddressNotFound
	}
	delete(m.Addresses, id)
	m.Deleted = append(m.Deleted, id)
	return nil
}

func (m *MockAddressBook) Reassign(_ context.Context, from, to string, ids ...int64) error {
	if m.ReassignErr != nil {
		return m.ReassignErr
	}
	for _, id := range ids {
		if a, ok := m.Addresses[id]; ok && a.CustomerID == from {
			a.CustomerID = to
		}
	}
	return nil
}

// MockValidity implements ValidityChecker for testing
type MockValidity struct {
	Verdict d.Verdict
	Err     error
	Calls   int
}

func (m *MockValidity) Check(_ context.Context, _ *d.Cart) (d.Verdict, error) {
	m.Calls++
	if m.Err != nil {
		return d.Verdict{}, m.Err
	}
	if !m.Verdict.Valid && m.Verdict.Redirect == "" && m.Verdict.Reason == "" {
		return d.Valid(), nil
	}
	return m.Verdict, nil
}

// MockOrders implements OrderCreator, idempotent on the checkout token.
type MockOrders struct {
	mu      sync.Mutex
	byToken map[string]string
	Err     error
	Created int
}

func NewMockOrders() *MockOrders {
	return &MockOrders{byToken: make(map[string]string)}
}

func (m *MockOrders) PlaceOrder(_ context.Context, cart *d.Cart) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if cart.CheckoutToken == "" {
		return "", errors.New("checkout token is required")
	}
	if id, ok := m.byToken[cart.CheckoutToken]; ok {
		return id, nil
	}
	m.Created++
	id := fmt.Sprintf("order-%d", m.Created)
	m.byToken[cart.CheckoutToken] = id
	return id, nil
}

// MockLocker records lock usage around a real mutex.
type MockLocker struct {
	mu    sync.Mutex
	Err   error
	Locks int
}

func (m *MockLocker) Lock(_ context.Context, _ string) (func(), error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	m.Locks++
	return m.mu.Unlock, nil
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingObserver) ObserveTransition(op, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, op+":"+result)
}
