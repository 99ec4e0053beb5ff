package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/discusshub/discusshub/models"
	"github.com/discusshub/discusshub/utils"
)

const (
	// ContextUserKey is the key used to store the authenticated user in Gin context.
	ContextUserKey = "user"
	// ContextUserIDKey stores the authenticated user ID inside Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
)

// Credential failures the gate can report. Each maps to its own 401 app code
// so clients can tell a stale token from a garbled one.
var (
	ErrMissingCredential   = errors.New("authorization header missing")
	ErrMalformedCredential = errors.New("malformed credential")
	ErrExpiredCredential   = errors.New("credential expired")
	ErrUnknownSubject      = errors.New("unknown token subject")
)

// AuthenticateRequest resolves a raw Authorization header value to the user it
// identifies. It is a pure gate: no side effects beyond the user lookup.
// Revoked tokens are reported as malformed.
func AuthenticateRequest(db *gorm.DB, authHeader string) (*models.User, error) {
	if strings.TrimSpace(authHeader) == "" {
		return nil, ErrMissingCredential
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, ErrMalformedCredential
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return nil, ErrMalformedCredential
	}

	if utils.IsTokenBlacklisted(tokenString) {
		return nil, ErrMalformedCredential
	}

	claims, err := utils.ParseToken(tokenString)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredCredential
		}
		return nil, ErrMalformedCredential
	}

	var user models.User
	if err := db.First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownSubject
		}
		return nil, fmt.Errorf("lookup token subject: %w", err)
	}

	return &user, nil
}

// AuthRequired ensures the request carries a valid bearer token that resolves
// to an existing user, and attaches that user to the request context.
func AuthRequired(db *gorm.DB) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, err := AuthenticateRequest(db, ctx.GetHeader("Authorization"))
		if err != nil {
			switch {
			case errors.Is(err, ErrMissingCredential):
				utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
			case errors.Is(err, ErrExpiredCredential):
				utils.Error(ctx, http.StatusUnauthorized, 40103, "token expired")
			case errors.Is(err, ErrUnknownSubject):
				utils.Error(ctx, http.StatusUnauthorized, 40104, "user not found")
			case errors.Is(err, ErrMalformedCredential):
				utils.Error(ctx, http.StatusUnauthorized, 40102, "invalid token")
			default:
				utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to authenticate request")
			}
			ctx.Abort()
			return
		}

		ctx.Set(ContextUserKey, user)
		ctx.Set(ContextUserIDKey, user.ID)
		ctx.Set(ContextUsernameKey, user.Username)
		ctx.Next()
	}
}

// CurrentUser returns the authenticated user attached by AuthRequired.
func CurrentUser(ctx *gin.Context) (*models.User, bool) {
	value, exists := ctx.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}
