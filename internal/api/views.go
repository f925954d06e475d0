package api

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

func (h *Handler) setupViews(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/products")
	})
	router.GET("/login", h.loginView)
	router.GET("/register", h.registerView)

	views := router.Group("", requireViewAuth())
	views.GET("/products", h.productsView)
	views.GET("/profile", h.profileView)
	views.GET("/carts/:cid", h.cartView)
	views.GET("/chat", h.chatView)
}

func (h *Handler) loginView(c *gin.Context) {
	if identityFrom(c) != nil {
		c.Redirect(http.StatusFound, "/products")
		return
	}
	c.HTML(http.StatusOK, "login.html", gin.H{})
}

func (h *Handler) registerView(c *gin.Context) {
	if identityFrom(c) != nil {
		c.Redirect(http.StatusFound, "/products")
		return
	}
	c.HTML(http.StatusOK, "register.html", gin.H{})
}

func (h *Handler) productsView(c *gin.Context) {
	q, err := parseProductQuery(c)
	if err != nil {
		c.HTML(http.StatusBadRequest, "error.html", gin.H{"Status": http.StatusBadRequest, "Message": err.Error()})
		return
	}

	page, err := h.products.List(c.Request.Context(), q)
	if err != nil {
		renderError(c, err)
		return
	}

	data := gin.H{
		"User": identityFrom(c),
		"Page": page,
	}
	if page.PrevPage != nil {
		data["PrevLink"] = pageLink(c.Request.URL.Query(), *page.PrevPage)
	}
	if page.NextPage != nil {
		data["NextLink"] = pageLink(c.Request.URL.Query(), *page.NextPage)
	}
	c.HTML(http.StatusOK, "products.html", data)
}

// pageLink keeps the current filters and swaps the page number
func pageLink(query url.Values, page int) string {
	query.Set("page", fmt.Sprint(page))
	return "/products?" + query.Encode()
}

func (h *Handler) profileView(c *gin.Context) {
	user, err := h.sessions.Current(c.Request.Context(), identityFrom(c))
	if err != nil {
		renderError(c, err)
		return
	}
	c.HTML(http.StatusOK, "profile.html", gin.H{"User": user})
}

func (h *Handler) cartView(c *gin.Context) {
	cartID := c.Param("cid")
	if !canAccessCart(identityFrom(c), cartID) {
		c.HTML(http.StatusForbidden, "error.html", gin.H{
			"Status":  http.StatusForbidden,
			"Message": "cart belongs to another user",
		})
		return
	}

	view, err := h.carts.GetCart(c.Request.Context(), cartID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.HTML(http.StatusOK, "cart.html", gin.H{"Cart": view, "User": identityFrom(c)})
}

// chatView renders the history server side; the socket only carries updates
func (h *Handler) chatView(c *gin.Context) {
	messages, err := h.chat.History(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}
	c.HTML(http.StatusOK, "chat.html", gin.H{
		"Messages": messages,
		"User":     identityFrom(c),
	})
}
