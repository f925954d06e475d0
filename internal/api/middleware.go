package api

import (
	"net/http"
	"strings"

	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	tokenCookie = "access_token"
	identityKey = "identity"
)

// extractToken reads the session token from the cookie, then the
// Authorization header
func extractToken(c *gin.Context) string {
	if token, err := c.Cookie(tokenCookie); err == nil && token != "" {
		return token
	}
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// authenticate attaches the caller's identity when a live session token is
// present. It never rejects; the require* middlewares do.
func (h *Handler) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractToken(c); token != "" {
			if identity, err := h.sessions.Authenticate(c.Request.Context(), token); err == nil {
				c.Set(identityKey, identity)
			}
		}
		c.Next()
	}
}

// identityFrom returns the authenticated caller, or nil
func identityFrom(c *gin.Context) *models.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*models.Identity)
	return identity
}

func requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if identityFrom(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   service.ErrUnauthorized.Error(),
				"details": "not authenticated",
			})
			return
		}
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !identityFrom(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   service.ErrForbidden.Error(),
				"details": "admin role required",
			})
			return
		}
		c.Next()
	}
}

// requireCartOwner lets a caller act only on their own cart; admins may act on any
func requireCartOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := identityFrom(c)
		if !canAccessCart(identity, c.Param("cid")) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   service.ErrForbidden.Error(),
				"details": "cart belongs to another user",
			})
			return
		}
		c.Next()
	}
}

func canAccessCart(identity *models.Identity, cartID string) bool {
	return identity != nil && (identity.IsAdmin() || identity.CartID == cartID)
}

// requireViewAuth sends anonymous browsers to the login page
func requireViewAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if identityFrom(c) == nil {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}
