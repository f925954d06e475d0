package api

import (
	"net/http"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type loginRequest struct {
	Email    string `json:"email" form:"email" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// fromForm reports whether the request came from an HTML form, in which case
// the handler answers with a redirect instead of JSON
func fromForm(c *gin.Context) bool {
	return c.ContentType() == "application/x-www-form-urlencoded"
}

// register handles POST /api/sessions/register
func (h *Handler) register(c *gin.Context) {
	var in service.RegisterInput
	if err := c.ShouldBind(&in); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.sessions.Register(c.Request.Context(), in)
	if err != nil {
		if fromForm(c) {
			c.HTML(http.StatusBadRequest, "register.html", gin.H{"Error": service.Message(err)})
			return
		}
		respondError(c, err)
		return
	}

	if fromForm(c) {
		c.Redirect(http.StatusFound, "/login")
		return
	}
	c.JSON(http.StatusCreated, user)
}

// login handles POST /api/sessions/login
func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.sessions.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if fromForm(c) && service.Kind(err) != nil {
			c.HTML(http.StatusUnauthorized, "login.html", gin.H{"Error": service.Message(err)})
			return
		}
		respondError(c, err)
		return
	}

	maxAge := int(h.sessions.TTL().Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(tokenCookie, result.Token, maxAge, "/", "", h.secureCookies, true)

	if fromForm(c) {
		c.Redirect(http.StatusFound, "/products")
		return
	}
	c.JSON(http.StatusOK, result)
}

// logout handles POST /api/sessions/logout
func (h *Handler) logout(c *gin.Context) {
	identity := identityFrom(c)
	if err := h.sessions.Logout(c.Request.Context(), identity.SessionID); err != nil {
		h.logger.Error("Logout failed", zap.Error(err))
		respondError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(tokenCookie, "", -1, "/", "", h.secureCookies, true)

	if fromForm(c) {
		c.Redirect(http.StatusFound, "/login")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

// current handles GET /api/sessions/current
func (h *Handler) current(c *gin.Context) {
	user, err := h.sessions.Current(c.Request.Context(), identityFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
