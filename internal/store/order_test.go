package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/shopspring/decimal"
)

func newTestOrder(id, userID string, kind domain.OrderKind, status domain.OrderStatus) *domain.Order {
	return &domain.Order{
		OrderID:    id,
		UserID:     userID,
		Symbol:     "AAPL",
		Side:       domain.OrderSideBuy,
		Kind:       kind,
		Quantity:   10,
		Price:      decimal.RequireFromString("178.5"),
		LimitPrice: decimal.NewNullDecimal(decimal.NewFromInt(170)),
		Status:     status,
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func ids(orders []*domain.Order) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.OrderID
	}
	return out
}

func TestOrderStore_CreateAndGet(t *testing.T) {
	s := NewOrderStore()
	s.Create(newTestOrder("order-1", "user-1", domain.OrderKindLimit, domain.OrderStatusPending))

	got, err := s.Get("order-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.UserID != "user-1" {
		t.Fatalf("expected user-1, got %s", got.UserID)
	}

	_, err = s.Get("no-such-order")
	var notFound *domain.OrderNotFoundError
	if !errors.As(err, &notFound) || notFound.ID != "no-such-order" {
		t.Fatalf("expected OrderNotFoundError, got %v", err)
	}
}

func TestOrderStore_Pending_InsertionOrder(t *testing.T) {
	s := NewOrderStore()
	for i := 0; i < 5; i++ {
		s.Create(newTestOrder(fmt.Sprintf("order-%d", i), "user-1", domain.OrderKindLimit, domain.OrderStatusPending))
	}
	s.Create(newTestOrder("filled", "user-1", domain.OrderKindMarket, domain.OrderStatusFilled))

	got := ids(s.Pending())
	want := []string{"order-0", "order-1", "order-2", "order-3", "order-4"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("Pending() = %v, want %v", got, want)
	}
}

func TestOrderStore_Update_MaintainsPendingIndex(t *testing.T) {
	s := NewOrderStore()
	s.Create(newTestOrder("a", "user-1", domain.OrderKindLimit, domain.OrderStatusPending))
	s.Create(newTestOrder("b", "user-1", domain.OrderKindLimit, domain.OrderStatusPending))

	o, _ := s.Get("a")
	o.Status = domain.OrderStatusCancelled
	if err := s.Update(o); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := ids(s.Pending()); len(got) != 1 || got[0] != "b" {
		t.Fatalf("Pending() = %v, want [b]", got)
	}
	stored, _ := s.Get("a")
	if stored.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", stored.Status)
	}

	if err := s.Update(newTestOrder("ghost", "user-1", domain.OrderKindLimit, domain.OrderStatusFilled)); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderStore_PendingByUser_Filters(t *testing.T) {
	s := NewOrderStore()
	buy := newTestOrder("buy", "user-1", domain.OrderKindLimit, domain.OrderStatusPending)
	sell := newTestOrder("sell", "user-1", domain.OrderKindLimit, domain.OrderStatusPending)
	sell.Side = domain.OrderSideSell
	other := newTestOrder("other-sym", "user-1", domain.OrderKindStop, domain.OrderStatusPending)
	other.Symbol = "MSFT"
	other.Side = domain.OrderSideSell
	s.Create(buy)
	s.Create(sell)
	s.Create(other)
	s.Create(newTestOrder("user-2", "user-2", domain.OrderKindLimit, domain.OrderStatusPending))

	if got := ids(s.PendingByUser("user-1", "", "")); len(got) != 3 {
		t.Fatalf("PendingByUser(user-1) = %v, want 3 orders", got)
	}
	got := ids(s.PendingByUser("user-1", "AAPL", domain.OrderSideSell))
	if len(got) != 1 || got[0] != "sell" {
		t.Fatalf("PendingByUser(user-1, AAPL, sell) = %v, want [sell]", got)
	}
}

func TestOrderStore_ListByUser_NewestFirst(t *testing.T) {
	s := NewOrderStore()
	for i := 0; i < 5; i++ {
		s.Create(newTestOrder(fmt.Sprintf("order-%d", i), "user-1", domain.OrderKindLimit, domain.OrderStatusPending))
	}

	orders, total := s.ListByUser("user-1", OrderQuery{})
	if total != 5 || len(orders) != 5 {
		t.Fatalf("expected 5 orders, got %d (total %d)", len(orders), total)
	}
	if orders[0].OrderID != "order-4" || orders[4].OrderID != "order-0" {
		t.Fatalf("orders not newest first: %v", ids(orders))
	}
}

func TestOrderStore_ListByUser_StatusAndKindFilter(t *testing.T) {
	s := NewOrderStore()
	s.Create(newTestOrder("p1", "user-1", domain.OrderKindLimit, domain.OrderStatusPending))
	s.Create(newTestOrder("m1", "user-1", domain.OrderKindMarket, domain.OrderStatusFilled))
	s.Create(newTestOrder("s1", "user-1", domain.OrderKindStop, domain.OrderStatusPending))
	s.Create(newTestOrder("c1", "user-1", domain.OrderKindLimit, domain.OrderStatusCancelled))

	orders, total := s.ListByUser("user-1", OrderQuery{Status: domain.OrderStatusPending})
	if total != 2 {
		t.Fatalf("expected 2 pending, got %d (%v)", total, ids(orders))
	}

	orders, total = s.ListByUser("user-1", OrderQuery{Kinds: []domain.OrderKind{domain.OrderKindMarket}})
	if total != 1 || orders[0].OrderID != "m1" {
		t.Fatalf("expected only m1, got %v", ids(orders))
	}

	conditional := []domain.OrderKind{domain.OrderKindLimit, domain.OrderKindStop, domain.OrderKindStopLimit}
	_, total = s.ListByUser("user-1", OrderQuery{Kinds: conditional})
	if total != 3 {
		t.Fatalf("expected 3 conditional orders, got %d", total)
	}
}

func TestOrderStore_ListByUser_Pagination(t *testing.T) {
	s := NewOrderStore()
	for i := 0; i < 10; i++ {
		s.Create(newTestOrder(fmt.Sprintf("order-%d", i), "user-1", domain.OrderKindLimit, domain.OrderStatusPending))
	}

	orders, total := s.ListByUser("user-1", OrderQuery{Page: 1, Limit: 3})
	if total != 10 || len(orders) != 3 {
		t.Fatalf("page 1: expected 3 of 10, got %d of %d", len(orders), total)
	}

	orders, _ = s.ListByUser("user-1", OrderQuery{Page: 4, Limit: 3})
	if len(orders) != 1 {
		t.Fatalf("page 4: expected 1 order, got %d", len(orders))
	}

	orders, total = s.ListByUser("user-1", OrderQuery{Page: 5, Limit: 3})
	if total != 10 || len(orders) != 0 {
		t.Fatalf("page 5: expected 0 of 10, got %d of %d", len(orders), total)
	}

	orders, total = s.ListByUser("no-such-user", OrderQuery{Page: 1, Limit: 3})
	if total != 0 || len(orders) != 0 {
		t.Fatalf("expected empty result for unknown user, got %d", total)
	}
}

func TestOrderStore_ReturnsClones(t *testing.T) {
	s := NewOrderStore()
	o := newTestOrder("order-1", "user-1", domain.OrderKindLimit, domain.OrderStatusPending)
	s.Create(o)
	o.Status = domain.OrderStatusFilled

	got, _ := s.Get("order-1")
	if got.Status != domain.OrderStatusPending {
		t.Fatalf("store state changed through caller pointer: %s", got.Status)
	}
	got.Quantity = 999
	again, _ := s.Get("order-1")
	if again.Quantity != 10 {
		t.Fatalf("store state changed through returned pointer: %d", again.Quantity)
	}
}

func TestOrderStore_ConcurrentAccess(t *testing.T) {
	s := NewOrderStore()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.Create(newTestOrder(
				fmt.Sprintf("order-%d", i),
				fmt.Sprintf("user-%d", i%5),
				domain.OrderKindLimit,
				domain.OrderStatusPending,
			))
		}(i)
		go func() {
			defer wg.Done()
			s.Pending()
		}()
	}
	wg.Wait()

	if n := len(s.Pending()); n != 100 {
		t.Fatalf("expected 100 pending orders, got %d", n)
	}
	for u := 0; u < 5; u++ {
		_, total := s.ListByUser(fmt.Sprintf("user-%d", u), OrderQuery{})
		if total != 20 {
			t.Fatalf("user-%d expected 20 orders, got %d", u, total)
		}
	}
}
