package api

import (
	"net/http"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

type setCartProductsRequest struct {
	Products []service.LineItemInput `json:"products" binding:"required"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

// createCart handles POST /api/carts
func (h *Handler) createCart(c *gin.Context) {
	cart, err := h.carts.CreateCart(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cart)
}

// getCart handles GET /api/carts/:cid
func (h *Handler) getCart(c *gin.Context) {
	view, err := h.carts.GetCart(c.Request.Context(), c.Param("cid"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// setCartProducts handles PUT /api/carts/:cid
func (h *Handler) setCartProducts(c *gin.Context) {
	var req setCartProductsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	cart, err := h.carts.SetQuantities(c.Request.Context(), c.Param("cid"), req.Products)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// addProductToCart handles POST /api/carts/:cid/product/:pid. The body is
// optional and the quantity defaults to 1.
func (h *Handler) addProductToCart(c *gin.Context) {
	quantity := 1
	if c.Request.ContentLength > 0 {
		var req quantityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if req.Quantity != nil {
			quantity = *req.Quantity
		}
	}

	cart, err := h.carts.AddProduct(c.Request.Context(), c.Param("cid"), c.Param("pid"), quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// updateCartProduct handles PUT /api/carts/:cid/products/:pid
func (h *Handler) updateCartProduct(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Quantity == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   service.ErrValidation.Error(),
			"details": "quantity is required",
		})
		return
	}

	cart, err := h.carts.UpdateQuantity(c.Request.Context(), c.Param("cid"), c.Param("pid"), *req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// removeCartProduct handles DELETE /api/carts/:cid/products/:pid
func (h *Handler) removeCartProduct(c *gin.Context) {
	cart, err := h.carts.RemoveProduct(c.Request.Context(), c.Param("cid"), c.Param("pid"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// clearCart handles DELETE /api/carts/:cid
func (h *Handler) clearCart(c *gin.Context) {
	cart, err := h.carts.ClearCart(c.Request.Context(), c.Param("cid"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// purchaseCart handles POST /api/carts/:cid/purchase
func (h *Handler) purchaseCart(c *gin.Context) {
	identity := identityFrom(c)

	result, err := h.purchases.Purchase(c.Request.Context(), c.Param("cid"), identity.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
