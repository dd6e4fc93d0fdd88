package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/plaetorius/streambet/internal/domain"
	"github.com/plaetorius/streambet/internal/service"
)

// ContextKey constants for gin.Context values set by middleware.
const (
	CtxProfileID     = "profileID"
	CtxWalletAddress = "walletAddress"
)

// ──────────────────────────────────────────────────────────────────────────────
// SessionMiddleware
// ──────────────────────────────────────────────────────────────────────────────

// SessionMiddleware validates the Bearer token in the Authorization header.
// On success it stores profileID (uuid.UUID) and walletAddress (string) in
// the gin context.
func SessionMiddleware(profileSvc *service.ProfileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": domain.ErrUnauthorized.Error(),
			})
			return
		}

		claims, err := profileSvc.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": domain.ErrUnauthorized.Error(),
			})
			return
		}

		profileID, err := uuid.Parse(claims.Subject)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": domain.ErrUnauthorized.Error(),
			})
			return
		}

		c.Set(CtxProfileID, profileID)
		c.Set(CtxWalletAddress, claims.WalletAddress)
		c.Next()
	}
}

// OptionalSessionMiddleware parses the Bearer token when present but never
// rejects the request. Endpoints behind it see uuid.Nil / "" for anonymous
// callers and respond with the wallet action the caller must take, instead
// of a bare 401. Used by bet placement so the connect/switch-chain flow can
// be driven from the response body.
func OptionalSessionMiddleware(profileSvc *service.ProfileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			claims, err := profileSvc.ParseToken(strings.TrimPrefix(header, "Bearer "))
			if err == nil {
				if profileID, perr := uuid.Parse(claims.Subject); perr == nil {
					c.Set(CtxProfileID, profileID)
					c.Set(CtxWalletAddress, claims.WalletAddress)
				}
			}
		}
		c.Next()
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers — extract session values from context (for use in handlers)
// ──────────────────────────────────────────────────────────────────────────────

// GetProfileID retrieves the authenticated profile's UUID from the gin
// context. Returns uuid.Nil if the middleware was not applied or the caller
// is anonymous.
func GetProfileID(c *gin.Context) uuid.UUID {
	v, exists := c.Get(CtxProfileID)
	if !exists {
		return uuid.Nil
	}
	id, _ := v.(uuid.UUID)
	return id
}

// GetWalletAddress retrieves the session's wallet address from the gin
// context. Returns "" for anonymous callers.
func GetWalletAddress(c *gin.Context) string {
	v, _ := c.Get(CtxWalletAddress)
	addr, _ := v.(string)
	return addr
}
