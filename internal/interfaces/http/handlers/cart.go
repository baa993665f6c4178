// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-core/internal/domain/cart"
	"github.com/your-org/storefront-core/internal/domain/cartsync"
	"github.com/your-org/storefront-core/internal/domain/checkout"
	"github.com/your-org/storefront-core/internal/domain/identity"
	"github.com/your-org/storefront-core/internal/domain/inventory"
	"github.com/your-org/storefront-core/internal/interfaces/http/middleware"
)

// CartHandler handles cart endpoints
type CartHandler struct {
	facade *checkout.Facade
	sync   *cartsync.Service
}

// NewCartHandler creates a new cart handler
func NewCartHandler(facade *checkout.Facade, syncer *cartsync.Service) *CartHandler {
	return &CartHandler{
		facade: facade,
		sync:   syncer,
	}
}

// AddToCartRequest is the add-to-cart payload
type AddToCartRequest struct {
	ProductID     string `json:"product_id" binding:"required"`
	VariantKey    string `json:"variant_key"`
	Quantity      int    `json:"quantity" binding:"required,min=1"`
	UnitPrice     int64  `json:"unit_price" binding:"min=0"`
	CatalogOrigin string `json:"catalog_origin" binding:"required"`
}

// UpdateCartItemRequest is the quantity-change payload
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// MergeCartRequest names the guest session folding into the user's cart
type MergeCartRequest struct {
	GuestSessionID string `json:"guest_session_id" binding:"required"`
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	owner, ok := middleware.GetIdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Cart identity not resolved"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart retrieved successfully",
		"data":    h.facade.UnifiedView(owner),
	})
}

// AddToCart handles POST /cart/items
func (h *CartHandler) AddToCart(c *gin.Context) {
	owner, ok := middleware.GetIdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Cart identity not resolved"})
		return
	}

	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	origin := cart.CatalogOrigin(req.CatalogOrigin)
	if !origin.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown catalog origin"})
		return
	}

	_, err := h.facade.AddItem(c.Request.Context(), owner, cart.LineItem{
		ProductID:     req.ProductID,
		VariantKey:    req.VariantKey,
		Quantity:      req.Quantity,
		UnitPrice:     req.UnitPrice,
		CatalogOrigin: origin,
	})
	if err != nil {
		respondCartError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item added to cart successfully",
		"data":    h.facade.UnifiedView(owner),
	})
}

// UpdateCartItem handles PUT /cart/items/:id
func (h *CartHandler) UpdateCartItem(c *gin.Context) {
	owner, ok := middleware.GetIdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Cart identity not resolved"})
		return
	}

	origin := cart.CatalogOrigin(c.Query("catalog_origin"))
	if !origin.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown catalog origin"})
		return
	}

	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	_, err := h.facade.UpdateQuantity(c.Request.Context(), owner, origin, c.Param("id"), c.Query("variant_key"), req.Quantity)
	if err != nil {
		respondCartError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart item updated successfully",
		"data":    h.facade.UnifiedView(owner),
	})
}

// RemoveFromCart handles DELETE /cart/items/:id
func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	owner, ok := middleware.GetIdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Cart identity not resolved"})
		return
	}

	origin := cart.CatalogOrigin(c.Query("catalog_origin"))
	if !origin.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown catalog origin"})
		return
	}

	_, err := h.facade.RemoveItem(c.Request.Context(), owner, origin, c.Param("id"), c.Query("variant_key"))
	if err != nil {
		respondCartError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item removed from cart successfully",
		"data":    h.facade.UnifiedView(owner),
	})
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	owner, ok := middleware.GetIdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Cart identity not resolved"})
		return
	}

	if err := h.facade.ClearCart(c.Request.Context(), owner); err != nil {
		respondCartError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart cleared successfully",
	})
}

// GetCartCount handles GET /cart/count
func (h *CartHandler) GetCartCount(c *gin.Context) {
	owner, ok := middleware.GetIdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Cart identity not resolved"})
		return
	}

	view := h.facade.UnifiedView(owner)
	c.JSON(http.StatusOK, gin.H{
		"message": "Cart count retrieved successfully",
		"data": gin.H{
			"count": view.Totals.TotalQuantity,
		},
	})
}

// RestoreCart handles POST /cart/restore - rehydrates a persisted guest
// cart on app start, re-acquiring its stock holds
func (h *CartHandler) RestoreCart(c *gin.Context) {
	owner, ok := middleware.GetIdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Cart identity not resolved"})
		return
	}

	notices, err := h.sync.Restore(c.Request.Context(), owner)
	if err != nil {
		respondCartError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart restored successfully",
		"data":    h.facade.UnifiedView(owner),
		"notices": notices,
	})
}

// MergeGuestCart handles POST /cart/merge - called when user logs in
func (h *CartHandler) MergeGuestCart(c *gin.Context) {
	owner, ok := middleware.GetIdentityFromContext(c)
	if !ok || owner.IsGuest() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req MergeCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	// ownership of the named guest session is proven by the guest cookie
	cookie, err := c.Cookie(middleware.GuestCookieName)
	if err != nil || cookie != req.GuestSessionID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Guest session does not belong to this client"})
		return
	}

	notices, err := h.sync.MergeOnLogin(c.Request.Context(), identity.Guest(req.GuestSessionID), owner)
	if err != nil {
		respondCartError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Guest cart merged successfully",
		"data":    h.facade.UnifiedView(owner),
		"notices": notices,
	})
}

// respondCartError maps domain errors onto HTTP statuses
func respondCartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, inventory.ErrOutOfStock):
		c.JSON(http.StatusConflict, gin.H{"error": "Insufficient stock"})
	case errors.Is(err, inventory.ErrUnreachable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Inventory service unavailable"})
	case errors.Is(err, checkout.ErrCheckoutPending):
		c.JSON(http.StatusConflict, gin.H{"error": "Checkout already in progress"})
	case errors.Is(err, cart.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found in cart"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
