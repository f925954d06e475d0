package service

import (
	"fmt"
	"strings"
	"time"

	"storefront/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockProductCount is how many products the mocking endpoint returns
const MockProductCount = 100

// GenerateProducts builds n fake catalog entries. Nothing is persisted.
// A zero seed draws a random one.
func GenerateProducts(n int, seed int64) []models.Product {
	faker := gofakeit.New(seed)
	now := time.Now()

	products := make([]models.Product, 0, n)
	for i := 0; i < n; i++ {
		price := decimal.NewFromFloat(faker.Price(1, 500)).Round(2)
		products = append(products, models.Product{
			ID:          uuid.New().String(),
			Title:       faker.ProductName(),
			Description: faker.ProductDescription(),
			Code:        fmt.Sprintf("%s-%04d", strings.ToUpper(faker.LetterN(3)), faker.Number(0, 9999)),
			Price:       price,
			Stock:       faker.Number(0, 100),
			Category:    faker.ProductCategory(),
			Status:      models.ProductStatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return products
}
