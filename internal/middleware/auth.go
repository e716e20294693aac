package middleware

import (
	"net/http"
	"strings"

	"curbside/config"
	"curbside/internal/auth"
	"curbside/internal/domain"
	"curbside/internal/models"

	"github.com/gin-gonic/gin"
)

// AuthRequired validates the bearer token and sets user_id, email and
// role in the request context.
func AuthRequired(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		claims, err := auth.ParseAccessToken(cfg, parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// AdminRequired checks that the authenticated user has the ADMIN role.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists || role.(string) != domain.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

type userLookup interface {
	GetByID(id uint) (*models.User, error)
}

// ApprovedRequired gates community surfaces behind admin approval of
// the account. Unapproved users can log in and check their status but
// see nothing else.
func ApprovedRequired(users userLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := users.GetByID(GetUserID(c))
		if err != nil || !u.Approved {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account pending approval"})
			return
		}
		c.Next()
	}
}

// GetUserID returns the authenticated user ID from context (must be
// used after AuthRequired).
func GetUserID(c *gin.Context) uint {
	v, _ := c.Get("user_id")
	if v == nil {
		return 0
	}
	return v.(uint)
}
