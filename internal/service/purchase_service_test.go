package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchaseService_Purchase_Partial(t *testing.T) {
	s := store.NewMemoryStore()
	pub := &recordingPublisher{}
	svc := NewPurchaseService(s, pub)
	ctx := context.Background()

	p1 := seedProduct(t, s, "P1", "10.00", 5)
	p2 := seedProduct(t, s, "P2", "4.00", 2)
	cart := seedCart(t, s,
		models.LineItem{ProductID: p1.ID, Quantity: 3},
		models.LineItem{ProductID: p2.ID, Quantity: 10})

	result, err := svc.Purchase(ctx, cart.ID, "buyer@example.com")
	require.NoError(t, err)

	assert.Equal(t, models.PurchasePartial, result.Outcome)
	assert.True(t, result.Amount.Equal(decimal.RequireFromString("30.00")))
	require.Len(t, result.Fulfilled, 1)
	assert.Equal(t, p1.ID, result.Fulfilled[0].ProductID)
	assert.Equal(t, []string{p2.ID}, result.Rejected)

	assert.Equal(t, 2, stockOf(t, s, p1.ID))
	assert.Equal(t, 2, stockOf(t, s, p2.ID))

	stored, err := s.GetCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.LineItem{{ProductID: p2.ID, Quantity: 10}}, stored.Items)

	require.Len(t, pub.purchases, 1)
	assert.Equal(t, "buyer@example.com", pub.purchases[0].Purchaser)
	assert.True(t, pub.purchases[0].Amount.Equal(result.Amount))
}

func TestPurchaseService_Purchase_Complete(t *testing.T) {
	s := store.NewMemoryStore()
	svc := NewPurchaseService(s, &recordingPublisher{})
	ctx := context.Background()

	p1 := seedProduct(t, s, "P1", "1.10", 3)
	p2 := seedProduct(t, s, "P2", "2.20", 3)
	cart := seedCart(t, s,
		models.LineItem{ProductID: p1.ID, Quantity: 3},
		models.LineItem{ProductID: p2.ID, Quantity: 1})

	result, err := svc.Purchase(ctx, cart.ID, "buyer@example.com")
	require.NoError(t, err)

	assert.Equal(t, models.PurchaseComplete, result.Outcome)
	assert.Equal(t, "5.50", result.Amount.StringFixed(2))
	assert.Empty(t, result.Rejected)
	assert.Equal(t, 0, stockOf(t, s, p1.ID))

	stored, err := s.GetCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Items)
}

func TestPurchaseService_Purchase_NothingFulfilled(t *testing.T) {
	s := store.NewMemoryStore()
	pub := &recordingPublisher{}
	svc := NewPurchaseService(s, pub)
	ctx := context.Background()

	p := seedProduct(t, s, "P1", "10.00", 1)
	cart := seedCart(t, s,
		models.LineItem{ProductID: p.ID, Quantity: 2},
		models.LineItem{ProductID: "deleted-product", Quantity: 1})

	result, err := svc.Purchase(ctx, cart.ID, "buyer@example.com")
	require.NoError(t, err)

	assert.Equal(t, models.PurchaseNone, result.Outcome)
	assert.True(t, result.Amount.IsZero())
	assert.Equal(t, []string{p.ID, "deleted-product"}, result.Rejected)
	assert.Equal(t, 1, stockOf(t, s, p.ID))
	assert.Empty(t, pub.purchases)

	stored, err := s.GetCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
}

func TestPurchaseService_Purchase_EmptyCart(t *testing.T) {
	s := store.NewMemoryStore()
	svc := NewPurchaseService(s, &recordingPublisher{})
	ctx := context.Background()
	cart := seedCart(t, s)

	result, err := svc.Purchase(ctx, cart.ID, "buyer@example.com")
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Nil(t, result)

	_, err = svc.Purchase(ctx, "missing", "buyer@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPurchaseService_Purchase_ConcurrentCartsNeverOversell(t *testing.T) {
	s := store.NewMemoryStore()
	svc := NewPurchaseService(s, &recordingPublisher{})
	ctx := context.Background()

	p := seedProduct(t, s, "P1", "10.00", 10)
	carts := []*models.Cart{
		seedCart(t, s, models.LineItem{ProductID: p.ID, Quantity: 6}),
		seedCart(t, s, models.LineItem{ProductID: p.ID, Quantity: 6}),
	}

	results := make([]*models.PurchaseResult, len(carts))
	errs := make([]error, len(carts))
	var wg sync.WaitGroup
	for i, c := range carts {
		wg.Add(1)
		go func(i int, cartID string) {
			defer wg.Done()
			results[i], errs[i] = svc.Purchase(ctx, cartID, "buyer@example.com")
		}(i, c.ID)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	outcomes := []string{results[0].Outcome, results[1].Outcome}
	assert.ElementsMatch(t, []string{models.PurchaseComplete, models.PurchaseNone}, outcomes)
	assert.Equal(t, 4, stockOf(t, s, p.ID))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, models.PurchaseComplete, outcome(2, 2))
	assert.Equal(t, models.PurchasePartial, outcome(1, 2))
	assert.Equal(t, models.PurchaseNone, outcome(0, 2))
}

// competingStore lets another buyer take stock of one product between the
// partition and the commit of that product
type competingStore struct {
	store.Store
	contested string
	taken     int
	done      bool
}

func (s *competingStore) DecrementStock(ctx context.Context, id string, quantity int) (bool, error) {
	if id == s.contested && !s.done {
		s.done = true
		if _, err := s.Store.DecrementStock(ctx, id, s.taken); err != nil {
			return false, err
		}
	}
	return s.Store.DecrementStock(ctx, id, quantity)
}

// failingStore fails the nth stock decrement
type failingStore struct {
	store.Store
	failOn int
	calls  int
}

func (s *failingStore) DecrementStock(ctx context.Context, id string, quantity int) (bool, error) {
	s.calls++
	if s.calls == s.failOn {
		return false, errors.New("connection reset")
	}
	return s.Store.DecrementStock(ctx, id, quantity)
}

func TestPurchaseService_Purchase_LostRaceIsRejected(t *testing.T) {
	tests := []struct {
		name        string
		withOther   bool
		wantOutcome string
		wantAmount  string
	}{
		{name: "only item lost", withOther: false, wantOutcome: models.PurchaseNone, wantAmount: "0.00"},
		{name: "other item still sold", withOther: true, wantOutcome: models.PurchasePartial, wantAmount: "4.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := store.NewMemoryStore()
			ctx := context.Background()

			p1 := seedProduct(t, mem, "P1", "10.00", 5)
			items := []models.LineItem{{ProductID: p1.ID, Quantity: 3}}
			var p2 *models.Product
			if tt.withOther {
				p2 = seedProduct(t, mem, "P2", "4.00", 2)
				items = append(items, models.LineItem{ProductID: p2.ID, Quantity: 1})
			}
			cart := seedCart(t, mem, items...)

			s := &competingStore{Store: mem, contested: p1.ID, taken: 5}
			pub := &recordingPublisher{}
			svc := NewPurchaseService(s, pub)
			conflictsBefore := testutil.ToFloat64(util.StockConflictsTotal)

			result, err := svc.Purchase(ctx, cart.ID, "buyer@example.com")
			require.NoError(t, err)

			assert.Equal(t, tt.wantOutcome, result.Outcome)
			assert.Equal(t, tt.wantAmount, result.Amount.StringFixed(2))
			assert.Equal(t, []string{p1.ID}, result.Rejected)
			assert.Equal(t, 0, stockOf(t, mem, p1.ID))
			assert.Equal(t, conflictsBefore+1, testutil.ToFloat64(util.StockConflictsTotal))

			stored, err := mem.GetCart(ctx, cart.ID)
			require.NoError(t, err)
			assert.Equal(t, []models.LineItem{{ProductID: p1.ID, Quantity: 3}}, stored.Items)

			if tt.withOther {
				assert.Equal(t, 1, stockOf(t, mem, p2.ID))
				assert.Len(t, pub.purchases, 1)
			} else {
				assert.Empty(t, pub.purchases)
			}
		})
	}
}

func TestPurchaseService_Purchase_StoreFailureAfterCommitSettlesCart(t *testing.T) {
	mem := store.NewMemoryStore()
	ctx := context.Background()

	p1 := seedProduct(t, mem, "P1", "10.00", 5)
	p2 := seedProduct(t, mem, "P2", "4.00", 5)
	p3 := seedProduct(t, mem, "P3", "1.00", 5)
	cart := seedCart(t, mem,
		models.LineItem{ProductID: p1.ID, Quantity: 1},
		models.LineItem{ProductID: p2.ID, Quantity: 1},
		models.LineItem{ProductID: p3.ID, Quantity: 1})

	svc := NewPurchaseService(&failingStore{Store: mem, failOn: 2}, &recordingPublisher{})

	result, err := svc.Purchase(ctx, cart.ID, "buyer@example.com")
	require.NoError(t, err)

	assert.Equal(t, models.PurchasePartial, result.Outcome)
	assert.Equal(t, "10.00", result.Amount.StringFixed(2))
	assert.Equal(t, []string{p2.ID, p3.ID}, result.Rejected)
	assert.Equal(t, 4, stockOf(t, mem, p1.ID))
	assert.Equal(t, 5, stockOf(t, mem, p2.ID))
	assert.Equal(t, 5, stockOf(t, mem, p3.ID))

	stored, err := mem.GetCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.LineItem{
		{ProductID: p2.ID, Quantity: 1},
		{ProductID: p3.ID, Quantity: 1},
	}, stored.Items)
}

func TestPurchaseService_Purchase_StoreFailureBeforeCommitLeavesCart(t *testing.T) {
	mem := store.NewMemoryStore()
	ctx := context.Background()

	p1 := seedProduct(t, mem, "P1", "10.00", 5)
	cart := seedCart(t, mem, models.LineItem{ProductID: p1.ID, Quantity: 2})

	svc := NewPurchaseService(&failingStore{Store: mem, failOn: 1}, &recordingPublisher{})

	result, err := svc.Purchase(ctx, cart.ID, "buyer@example.com")
	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Nil(t, Kind(err))

	assert.Equal(t, 5, stockOf(t, mem, p1.ID))
	stored, err := mem.GetCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.LineItem{{ProductID: p1.ID, Quantity: 2}}, stored.Items)
}
