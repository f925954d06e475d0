package service

import (
	"context"
	"testing"

	"storefront/internal/models"
	"storefront/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProductInput(code string) ProductInput {
	return ProductInput{
		Title:    "Lamp",
		Code:     code,
		Price:    decimal.RequireFromString("19.99"),
		Stock:    5,
		Category: "home",
	}
}

func TestProductService_Create(t *testing.T) {
	svc := NewProductService(store.NewMemoryStore())
	ctx := context.Background()

	p, err := svc.Create(ctx, validProductInput("L-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, models.ProductStatusActive, p.Status)

	_, err = svc.Create(ctx, validProductInput("L-1"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestProductService_Create_Validation(t *testing.T) {
	svc := NewProductService(store.NewMemoryStore())

	tests := []struct {
		name   string
		mutate func(in *ProductInput)
	}{
		{"missing title", func(in *ProductInput) { in.Title = " " }},
		{"missing code", func(in *ProductInput) { in.Code = "" }},
		{"missing category", func(in *ProductInput) { in.Category = "" }},
		{"negative price", func(in *ProductInput) { in.Price = decimal.NewFromInt(-1) }},
		{"negative stock", func(in *ProductInput) { in.Stock = -1 }},
		{"unknown status", func(in *ProductInput) { in.Status = "archived" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validProductInput("X-1")
			tt.mutate(&in)
			_, err := svc.Create(context.Background(), in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestProductService_UpdateAndDelete(t *testing.T) {
	svc := NewProductService(store.NewMemoryStore())
	ctx := context.Background()

	p, err := svc.Create(ctx, validProductInput("L-1"))
	require.NoError(t, err)

	stock := 42
	updated, err := svc.Update(ctx, p.ID, ProductPatch{Stock: &stock})
	require.NoError(t, err)
	assert.Equal(t, 42, updated.Stock)
	assert.Equal(t, "Lamp", updated.Title)

	_, err = svc.Update(ctx, "missing", ProductPatch{Stock: &stock})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.Delete(ctx, p.ID))
	assert.ErrorIs(t, svc.Delete(ctx, p.ID), ErrNotFound)
	_, err = svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProductService_List_Pagination(t *testing.T) {
	s := store.NewMemoryStore()
	svc := NewProductService(s)
	ctx := context.Background()

	for i, price := range []string{"5", "1", "3", "4", "2"} {
		seedProduct(t, s, string(rune('A'+i)), price, 1)
	}

	page, err := svc.List(ctx, models.ProductQuery{Limit: 2, Page: 2, Sort: models.SortAsc})
	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalDocs)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Payload, 2)
	assert.Equal(t, "3", page.Payload[0].Price.String())
	assert.Equal(t, "4", page.Payload[1].Price.String())
	require.NotNil(t, page.PrevPage)
	require.NotNil(t, page.NextPage)
	assert.Equal(t, 1, *page.PrevPage)
	assert.Equal(t, 3, *page.NextPage)

	first, err := svc.List(ctx, models.ProductQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Page)
	assert.Len(t, first.Payload, 5)
	assert.False(t, first.HasPrevPage)
	assert.False(t, first.HasNextPage)
	assert.Nil(t, first.NextPage)

	_, err = svc.List(ctx, models.ProductQuery{Sort: "sideways"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGenerateProducts(t *testing.T) {
	products := GenerateProducts(MockProductCount, 7)
	require.Len(t, products, MockProductCount)

	ids := make(map[string]bool, len(products))
	for _, p := range products {
		assert.NotEmpty(t, p.Title)
		assert.NotEmpty(t, p.Code)
		assert.False(t, p.Price.IsNegative())
		assert.GreaterOrEqual(t, p.Stock, 0)
		ids[p.ID] = true
	}
	assert.Len(t, ids, MockProductCount)
}
