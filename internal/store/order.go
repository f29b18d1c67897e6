package store

import (
	"sync"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/google/btree"
)

const treeDegree = 32

// orderEntry is an order keyed by its insertion sequence.
type orderEntry struct {
	seq   uint64
	order *domain.Order
}

func seqLess(a, b orderEntry) bool {
	return a.seq < b.seq
}

// OrderQuery narrows ListByUser results. Zero fields match everything.
// Page is 1-based; a zero Limit returns every match.
type OrderQuery struct {
	Status domain.OrderStatus
	Kinds  []domain.OrderKind
	Page   int
	Limit  int
}

func (q OrderQuery) matches(o *domain.Order) bool {
	if q.Status != "" && o.Status != q.Status {
		return false
	}
	if len(q.Kinds) == 0 {
		return true
	}
	for _, k := range q.Kinds {
		if o.Kind == k {
			return true
		}
	}
	return false
}

// OrderStore is a thread-safe in-memory store for orders. Orders are never
// deleted; terminal orders remain for history.
//
// Indexes:
//   - order_id → entry
//   - insertion-ordered B-tree of pending orders
//   - user_id → insertion-ordered B-tree of all the user's orders
//
// Callers always receive clones; stored state changes only through Create
// and Update.
type OrderStore struct {
	mu      sync.RWMutex
	seq     uint64
	orders  map[string]orderEntry
	pending *btree.BTreeG[orderEntry]
	byUser  map[string]*btree.BTreeG[orderEntry]
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:  make(map[string]orderEntry),
		pending: btree.NewG[orderEntry](treeDegree, seqLess),
		byUser:  make(map[string]*btree.BTreeG[orderEntry]),
	}
}

// Create adds an order to the store.
func (s *OrderStore) Create(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	e := orderEntry{seq: s.seq, order: o.Clone()}
	s.orders[o.OrderID] = e

	tree := s.byUser[o.UserID]
	if tree == nil {
		tree = btree.NewG[orderEntry](treeDegree, seqLess)
		s.byUser[o.UserID] = tree
	}
	tree.ReplaceOrInsert(e)

	if o.Status == domain.OrderStatusPending {
		s.pending.ReplaceOrInsert(e)
	}
}

// Update replaces the stored state of an existing order and keeps the
// pending index in sync with its status. It returns an
// *domain.OrderNotFoundError if the order does not exist.
func (s *OrderStore) Update(o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.orders[o.OrderID]
	if !ok {
		return &domain.OrderNotFoundError{ID: o.OrderID}
	}
	e := orderEntry{seq: old.seq, order: o.Clone()}
	s.orders[o.OrderID] = e
	s.byUser[old.order.UserID].ReplaceOrInsert(e)

	if o.Status == domain.OrderStatusPending {
		s.pending.ReplaceOrInsert(e)
	} else {
		s.pending.Delete(e)
	}
	return nil
}

// Get retrieves an order by ID. It returns an *domain.OrderNotFoundError
// if the order does not exist.
func (s *OrderStore) Get(id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.orders[id]
	if !ok {
		return nil, &domain.OrderNotFoundError{ID: id}
	}
	return e.order.Clone(), nil
}

// Pending returns every pending order in insertion order.
func (s *OrderStore) Pending() []*domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Order, 0, s.pending.Len())
	s.pending.Ascend(func(e orderEntry) bool {
		result = append(result, e.order.Clone())
		return true
	})
	return result
}

// PendingByUser returns the user's pending orders in insertion order,
// optionally restricted to one symbol and side. Empty symbol or side
// match everything.
func (s *OrderStore) PendingByUser(userID, symbol string, side domain.OrderSide) []*domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Order, 0)
	s.pending.Ascend(func(e orderEntry) bool {
		o := e.order
		if o.UserID != userID {
			return true
		}
		if symbol != "" && o.Symbol != symbol {
			return true
		}
		if side != "" && o.Side != side {
			return true
		}
		result = append(result, o.Clone())
		return true
	})
	return result
}

// ListByUser returns the user's orders matching q in reverse insertion
// order (newest first), along with the total count of matches before
// pagination.
func (s *OrderStore) ListByUser(userID string, q OrderQuery) ([]*domain.Order, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tree := s.byUser[userID]
	if tree == nil {
		return []*domain.Order{}, 0
	}

	filtered := make([]*domain.Order, 0)
	tree.Descend(func(e orderEntry) bool {
		if q.matches(e.order) {
			filtered = append(filtered, e.order)
		}
		return true
	})

	total := len(filtered)
	if q.Limit > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * q.Limit
		if start >= total {
			return []*domain.Order{}, total
		}
		end := start + q.Limit
		if end > total {
			end = total
		}
		filtered = filtered[start:end]
	}

	result := make([]*domain.Order, len(filtered))
	for i, o := range filtered {
		result[i] = o.Clone()
	}
	return result, total
}
