// internal/interfaces/http/handlers/checkout.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-core/internal/domain/cart"
	"github.com/your-org/storefront-core/internal/domain/checkout"
	"github.com/your-org/storefront-core/internal/interfaces/http/middleware"
)

// CheckoutHandler handles checkout endpoints
type CheckoutHandler struct {
	facade *checkout.Facade
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(facade *checkout.Facade) *CheckoutHandler {
	return &CheckoutHandler{
		facade: facade,
	}
}

// Checkout handles POST /checkout. A single-catalog cart routes to that
// catalog's flow automatically; a cart spanning both catalogs is refused
// and the shopper checks out each catalog via POST /checkout/:origin.
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	owner, ok := middleware.GetIdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Cart identity not resolved"})
		return
	}

	result, err := h.facade.Checkout(c.Request.Context(), owner)
	if err != nil {
		respondCheckoutError(c, result, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Checkout initiated successfully",
		"data":    result,
	})
}

// CheckoutCatalog handles POST /checkout/:origin
func (h *CheckoutHandler) CheckoutCatalog(c *gin.Context) {
	owner, ok := middleware.GetIdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Cart identity not resolved"})
		return
	}

	origin := cart.CatalogOrigin(c.Param("origin"))
	if !origin.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown catalog origin"})
		return
	}

	result, err := h.facade.CheckoutCatalog(c.Request.Context(), owner, origin)
	if err != nil {
		respondCheckoutError(c, result, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Checkout initiated successfully",
		"data":    result,
	})
}

// GetCheckoutState handles GET /checkout/state
func (h *CheckoutHandler) GetCheckoutState(c *gin.Context) {
	owner, ok := middleware.GetIdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Cart identity not resolved"})
		return
	}

	states := make(map[cart.CatalogOrigin]checkout.State, len(cart.Origins))
	for _, origin := range cart.Origins {
		states[origin] = h.facade.State(owner, origin)
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Checkout state retrieved successfully",
		"data":    gin.H{"states": states},
	})
}

func respondCheckoutError(c *gin.Context, result *checkout.Result, err error) {
	switch {
	case errors.Is(err, checkout.ErrMixedCheckout):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Cart contains items from both catalogs; check out each catalog separately",
		})
	case errors.Is(err, checkout.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Cart is empty",
			"data":  result,
		})
	case errors.Is(err, checkout.ErrCheckoutPending):
		c.JSON(http.StatusConflict, gin.H{"error": "Checkout already in progress"})
	default:
		c.JSON(http.StatusBadGateway, gin.H{
			"error": err.Error(),
			"data":  result,
		})
	}
}
