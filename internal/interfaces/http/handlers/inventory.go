// internal/interfaces/http/handlers/inventory.go
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-core/internal/domain/inventory"
)

// InventoryHandler handles stock lookup and alert streaming endpoints
type InventoryHandler struct {
	authority inventory.Authority
	alerts    *inventory.AlertChannel
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(authority inventory.Authority, alerts *inventory.AlertChannel) *InventoryHandler {
	return &InventoryHandler{
		authority: authority,
		alerts:    alerts,
	}
}

// GetStock handles GET /inventory/:sku
func (h *InventoryHandler) GetStock(c *gin.Context) {
	level, err := h.authority.GetStock(c.Request.Context(), c.Param("sku"), c.Query("variant_key"))
	if err != nil {
		if errors.Is(err, inventory.ErrUnreachable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Inventory service unavailable"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Stock level retrieved successfully",
		"data":    level,
	})
}

// StreamAlerts handles GET /inventory/:sku/alerts as a server-sent event
// stream. Alerts are advisory; a dropped stream costs nothing but a
// reconnect.
func (h *InventoryHandler) StreamAlerts(c *gin.Context) {
	sku := c.Param("sku")

	events, cancel, err := h.alerts.Subscribe(sku)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Alert stream unavailable"})
		return
	}
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case alert, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("stock_alert", alert)
			return true
		}
	})
}
