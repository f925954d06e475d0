package api

import (
	"fmt"
	"net/http"
	"strconv"

	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// parseProductQuery reads limit, page, sort, category and status from the
// query string. Absent values fall back to the service defaults.
func parseProductQuery(c *gin.Context) (models.ProductQuery, error) {
	q := models.ProductQuery{
		Sort:     c.Query("sort"),
		Category: c.Query("category"),
		Status:   c.Query("status"),
	}
	if q.Category == "" {
		q.Category = c.Query("query")
	}

	var err error
	if q.Limit, err = queryInt(c, "limit"); err != nil {
		return q, err
	}
	if q.Page, err = queryInt(c, "page"); err != nil {
		return q, err
	}
	return q, nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

// listProducts handles GET /api/products
func (h *Handler) listProducts(c *gin.Context) {
	q, err := parseProductQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	page, err := h.products.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"page":   page,
	})
}

// getProduct handles GET /api/products/:pid
func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.products.Get(c.Request.Context(), c.Param("pid"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// createProduct handles POST /api/products
func (h *Handler) createProduct(c *gin.Context) {
	var in service.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	product, err := h.products.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// updateProduct handles PUT /api/products/:pid
func (h *Handler) updateProduct(c *gin.Context) {
	var patch service.ProductPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}

	product, err := h.products.Update(c.Request.Context(), c.Param("pid"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// deleteProduct handles DELETE /api/products/:pid
func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.products.Delete(c.Request.Context(), c.Param("pid")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// mockingProducts handles GET /mockingproducts. Nothing is persisted.
func (h *Handler) mockingProducts(c *gin.Context) {
	c.JSON(http.StatusOK, service.GenerateProducts(service.MockProductCount, 0))
}
