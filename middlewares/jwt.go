package middlewares

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// CallerClaims is the opaque caller identity the core consumes: a numeric
// user id plus a role. Issuing tokens is someone else's job.
type CallerClaims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Identity parses an optional bearer token and puts user_id and role on the
// context. Requests without a token pass through anonymously; uploads allow
// that.
func Identity(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := parseBearer(c, secret); ok {
			c.Set("user_id", claims.UserID)
			c.Set("role", claims.Role)
		}
		c.Next()
	}
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseBearer(c, secret)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token required"})
			return
		}
		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

func parseBearer(c *gin.Context, secret string) (*CallerClaims, bool) {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, false
	}

	claims := &CallerClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}
	return claims, true
}
