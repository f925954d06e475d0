package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu        sync.Mutex
	carts     []*models.CartUpdatedEvent
	purchases []*models.PurchaseCompletedEvent
	messages  []*models.ChatMessagePostedEvent
	err       error
}

func (p *recordingPublisher) PublishCartUpdated(ctx context.Context, event *models.CartUpdatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.carts = append(p.carts, event)
	return p.err
}

func (p *recordingPublisher) PublishPurchaseCompleted(ctx context.Context, event *models.PurchaseCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.purchases = append(p.purchases, event)
	return p.err
}

func (p *recordingPublisher) PublishChatMessagePosted(ctx context.Context, event *models.ChatMessagePostedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, event)
	return p.err
}

type recordingBroadcaster struct {
	mu         sync.Mutex
	broadcasts [][]models.Message
}

func (b *recordingBroadcaster) Broadcast(messages []models.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broadcasts = append(b.broadcasts, messages)
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]models.Session
	ttls     map[string]time.Duration
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions: make(map[string]models.Session),
		ttls:     make(map[string]time.Duration),
	}
}

func (f *fakeSessionStore) SaveSession(ctx context.Context, session *models.Session, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.ID] = *session
	f.ttls[session.ID] = ttl
	return nil
}

func (f *fakeSessionStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, redisclient.ErrSessionNotFound
	}
	return &s, nil
}

func (f *fakeSessionStore) DeleteSession(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

func seedProduct(t *testing.T, s store.Store, code, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Title:    "product " + code,
		Code:     code,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		Category: "general",
		Status:   models.ProductStatusActive,
	}
	require.NoError(t, s.CreateProduct(context.Background(), p))
	return p
}

func seedCart(t *testing.T, s store.Store, items ...models.LineItem) *models.Cart {
	t.Helper()
	if items == nil {
		items = []models.LineItem{}
	}
	c := &models.Cart{Items: items}
	require.NoError(t, s.CreateCart(context.Background(), c))
	return c
}

func stockOf(t *testing.T, s store.Store, id string) int {
	t.Helper()
	p, err := s.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}
