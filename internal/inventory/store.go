package inventory

import (
	"sync"
	"time"

	d "github.com/fjod/go_cart/checkout-flow/domain"
)

const (
	// AppliedRetention is how long an applied order id is remembered for
	// duplicate suppression.
	AppliedRetention = 24 * time.Hour

	// CleanupInterval is how often the background cleanup runs
	CleanupInterval = 10 * time.Minute
)

// StockInfo is the stock level of one product.
type StockInfo struct {
	ProductID int64
	Total     int32
}

// MemoryStore keeps stock levels in memory. Deductions are keyed by order id
// so a redelivered event is applied once.
type MemoryStore struct {
	mu      sync.RWMutex
	stocks  map[int64]*StockInfo
	applied map[string]time.Time // orderID -> when it was applied

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		stocks:      make(map[int64]*StockInfo),
		applied:     make(map[string]time.Time),
		stopCleanup: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

func (s *MemoryStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.forgetApplied(time.Now().Add(-AppliedRetention))
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) forgetApplied(before time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, at := range s.applied {
		if at.Before(before) {
			delete(s.applied, id)
		}
	}
}

// GetStock returns stock information for the given product IDs. Unknown
// products are skipped.
func (s *MemoryStore) GetStock(productIDs []int64) []StockInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]StockInfo, 0, len(productIDs))
	for _, id := range productIDs {
		if stock, exists := s.stocks[id]; exists {
			result = append(result, *stock)
		}
	}
	return result
}

// Available reports the stock of one product; ok is false for products the
// store does not track.
func (s *MemoryStore) Available(productID int64) (qty int32, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stock, ok := s.stocks[productID]
	if !ok {
		return 0, false
	}
	return stock.Total, true
}

func (s *MemoryStore) SetStock(productID int64, quantity int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stocks[productID] = &StockInfo{ProductID: productID, Total: quantity}
}

// Deduct removes the items of a placed order from stock. Stock never drops
// below zero; products that ran short are returned. A repeated orderID is a
// no-op and reports applied=false.
func (s *MemoryStore) Deduct(orderID string, items []d.OrderItem) (applied bool, short []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, done := s.applied[orderID]; done {
		return false, nil
	}

	for _, item := range items {
		stock, exists := s.stocks[item.ProductID]
		if !exists {
			continue
		}
		stock.Total -= item.Quantity
		if stock.Total < 0 {
			stock.Total = 0
			short = append(short, item.ProductID)
		}
	}

	s.applied[orderID] = time.Now()
	return true, short
}

// Close stops the background cleanup and waits for it to finish
func (s *MemoryStore) Close() error {
	close(s.stopCleanup)
	s.wg.Wait()
	return nil
}
