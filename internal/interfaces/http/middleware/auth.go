// internal/interfaces/http/middleware/auth.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-core/internal/config"
	"github.com/your-org/storefront-core/internal/domain/identity"
	"github.com/your-org/storefront-core/internal/pkg/auth"
)

const (
	identityKey    = "cart_identity"
	guestCookieAge = 86400 * 30 // 30 days

	// GuestCookieName carries the guest session between visits; handlers
	// check it when a request claims a guest cart by id
	GuestCookieName = "guest_cart_id"
)

// IdentityMiddleware resolves who owns the cart for this request. A valid
// bearer token yields a customer identity; otherwise the shopper is a guest
// tracked by a cookie, minted on first contact.
func IdentityMiddleware(cfg *config.Config) gin.HandlerFunc {
	jwtManager := auth.NewJWTManager(cfg)

	return func(c *gin.Context) {
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			tokenString := auth.ExtractTokenFromHeader(authHeader)
			if tokenString == "" {
				c.JSON(http.StatusUnauthorized, gin.H{
					"error": "Invalid authorization header format",
				})
				c.Abort()
				return
			}

			claims, err := jwtManager.ValidateAccessToken(tokenString)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{
					"error": "Invalid or expired token",
				})
				c.Abort()
				return
			}

			c.Set(identityKey, identity.User(claims.CustomerID))
			c.Set("user_email", claims.Email)
			c.Next()
			return
		}

		c.Set(identityKey, guestIdentity(c))
		c.Next()
	}
}

// RequireUser ensures the resolved identity is an authenticated customer
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := GetIdentityFromContext(c)
		if !ok || ident.IsZero() || ident.IsGuest() {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// guestIdentity reads the guest cookie, minting one on first contact
func guestIdentity(c *gin.Context) identity.Identity {
	if cookie, err := c.Cookie(GuestCookieName); err == nil && cookie != "" {
		if ident, err := identity.Parse("guest:" + cookie); err == nil {
			return ident
		}
	}

	ident := identity.NewGuest()
	c.SetCookie(GuestCookieName, ident.Value, guestCookieAge, "/", "", false, true)
	return ident
}

// GetIdentityFromContext extracts the cart identity from gin context
func GetIdentityFromContext(c *gin.Context) (identity.Identity, bool) {
	value, exists := c.Get(identityKey)
	if !exists {
		return identity.Identity{}, false
	}
	ident, ok := value.(identity.Identity)
	return ident, ok
}
