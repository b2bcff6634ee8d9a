package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"poster-generator-backend/internal/config"
	"poster-generator-backend/internal/models"
	"poster-generator-backend/internal/supabase"
)

const (
	UserIDKey      = "user_id"
	UserEmailKey   = "user_email"
	AccessTokenKey = "access_token"
)

// SessionResolver looks a token up with the auth provider. Used when no
// JWT secret is configured.
type SessionResolver interface {
	Resolve(ctx context.Context, accessToken string) (*models.User, error)
}

func AuthMiddleware(cfg *config.Config, resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header", "")
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "invalid authorization header format", "")
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			abortUnauthorized(c, "empty token", "")
			return
		}

		// Try URL decoding in case the token was URL-encoded
		if decoded, err := url.QueryUnescape(tokenString); err == nil {
			tokenString = decoded
		}

		if len(strings.Split(tokenString, ".")) != 3 {
			abortUnauthorized(c, "invalid token format", "JWT token must have 3 parts separated by dots")
			return
		}

		var user *models.User
		if cfg.SupabaseJWTSecret != "" {
			u, msg := verifyLocally(tokenString, cfg.SupabaseJWTSecret)
			if u == nil {
				abortUnauthorized(c, "invalid token", msg)
				return
			}
			user = u
		} else {
			u, err := resolver.Resolve(c.Request.Context(), tokenString)
			if err != nil {
				abortUnauthorized(c, "invalid token", err.Error())
				return
			}
			user = u
		}

		c.Set(UserIDKey, user.ID)
		c.Set(UserEmailKey, user.Email)
		c.Set(AccessTokenKey, tokenString)
		c.Request = c.Request.WithContext(supabase.WithAccessToken(c.Request.Context(), tokenString))
		c.Next()
	}
}

// verifyLocally checks an HS256 Supabase token against the project secret.
// On failure it returns a nil user and a message for the client.
func verifyLocally(tokenString, secret string) (*models.User, string) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		// Supabase JWT secret is used directly as the signing key
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "signature is invalid"):
			return nil, "token signature is invalid - check JWT secret"
		case strings.Contains(err.Error(), "token is expired"):
			return nil, "token has expired"
		case strings.Contains(err.Error(), "could not JSON decode"):
			return nil, "token is malformed - ensure you're using a valid Supabase JWT token"
		}
		return nil, err.Error()
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, "invalid token claims"
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, "missing user id in token"
	}
	email, _ := claims["email"].(string)
	return &models.User{ID: sub, Email: email}, ""
}

func abortUnauthorized(c *gin.Context, errMsg, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: errMsg, Message: message})
}

// CurrentUser returns the identity stored by AuthMiddleware.
func CurrentUser(c *gin.Context) models.User {
	return models.User{ID: c.GetString(UserIDKey), Email: c.GetString(UserEmailKey)}
}

func AccessToken(c *gin.Context) string {
	return c.GetString(AccessTokenKey)
}
