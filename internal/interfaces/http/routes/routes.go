// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-core/internal/config"
	"github.com/your-org/storefront-core/internal/domain/cartsync"
	"github.com/your-org/storefront-core/internal/domain/checkout"
	"github.com/your-org/storefront-core/internal/domain/inventory"
	"github.com/your-org/storefront-core/internal/interfaces/http/handlers"
	"github.com/your-org/storefront-core/internal/interfaces/http/middleware"
)

// Dependencies carries the wired domain services the routes dispatch to
type Dependencies struct {
	Config    *config.Config
	Facade    *checkout.Facade
	Sync      *cartsync.Service
	Authority inventory.Authority
	Alerts    *inventory.AlertChannel
}

// SetupRoutes sets up all API routes
func SetupRoutes(rg *gin.RouterGroup, deps *Dependencies) {
	cartHandler := handlers.NewCartHandler(deps.Facade, deps.Sync)
	checkoutHandler := handlers.NewCheckoutHandler(deps.Facade)
	inventoryHandler := handlers.NewInventoryHandler(deps.Authority, deps.Alerts)

	// Cart routes work for guest sessions and authenticated users alike;
	// the identity middleware resolves which cart the request touches.
	cart := rg.Group("/cart")
	cart.Use(middleware.IdentityMiddleware(deps.Config))
	cart.Use(middleware.Timeout(deps.Config.Server.RequestTimeout))
	{
		cart.GET("", cartHandler.GetCart)
		cart.GET("/count", cartHandler.GetCartCount)
		cart.POST("/items", cartHandler.AddToCart)
		cart.PUT("/items/:id", cartHandler.UpdateCartItem)
		cart.DELETE("/items/:id", cartHandler.RemoveFromCart)
		cart.DELETE("", cartHandler.ClearCart)
		cart.POST("/restore", cartHandler.RestoreCart)

		// Merge requires an authenticated customer to fold the guest cart into
		cart.POST("/merge", middleware.RequireUser(), cartHandler.MergeGuestCart)
	}

	// Checkout routes
	co := rg.Group("/checkout")
	co.Use(middleware.IdentityMiddleware(deps.Config))
	co.Use(middleware.Timeout(deps.Config.Server.RequestTimeout))
	{
		co.POST("", checkoutHandler.Checkout)
		co.POST("/:origin", checkoutHandler.CheckoutCatalog)
		co.GET("/state", checkoutHandler.GetCheckoutState)
	}

	// Inventory routes. The alert stream is long-lived SSE, so no request
	// timeout here.
	inv := rg.Group("/inventory")
	{
		inv.GET("/:sku", inventoryHandler.GetStock)
		inv.GET("/:sku/alerts", inventoryHandler.StreamAlerts)
	}
}
