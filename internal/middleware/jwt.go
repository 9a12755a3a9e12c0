// internal/middleware/jwt.go
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"agri-compath/internal/models"
	"agri-compath/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// Token expiration time - 24 hours
	tokenExpiration = 24 * time.Hour

	tokenIssuer = "agri-compath"
)

// Claims represents the JWT claims for our application
type Claims struct {
	UserID uuid.UUID   `json:"user_id"`
	Name   string      `json:"name"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Session returns the session the claims describe. Unknown roles are
// treated as plain members.
func (c *Claims) Session() models.Session {
	role := c.Role
	if role != models.RoleAdmin {
		role = models.RoleMember
	}
	return models.Session{UserID: c.UserID, DisplayName: c.Name, Role: role}
}

// Authenticator signs and validates session tokens with a shared secret.
type Authenticator struct {
	secret []byte
	logger *slog.Logger
}

func NewAuthenticator(secret string, logger *slog.Logger) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	return &Authenticator{secret: []byte(secret), logger: logger.With("component", "auth")}, nil
}

// GenerateToken creates a new JWT token for the given user
func (a *Authenticator) GenerateToken(userID uuid.UUID, name string, role models.Role) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Name:   name,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken validates the provided JWT token
func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			// Verify signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return a.secret, nil
		},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrInvalidToken, "invalid token", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == uuid.Nil {
		return nil, utils.NewAppError(utils.ErrInvalidToken, "invalid token", nil)
	}
	return claims, nil
}

// SessionFromRequest extracts the session from the Authorization header.
func (a *Authenticator) SessionFromRequest(r *http.Request) (models.Session, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return models.Session{}, utils.NewUnauthorizedError("authorization header required")
	}

	// Check for Bearer token format
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return models.Session{}, utils.NewUnauthorizedError("invalid authorization format")
	}

	claims, err := a.ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		return models.Session{}, err
	}
	return claims.Session(), nil
}

// Require wraps a handler so it only runs for requests carrying a valid
// session, which it places in the request context.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := a.SessionFromRequest(r)
		if err != nil {
			a.logger.Debug("rejected request", "path", r.URL.Path, "error", err)
			appErr := utils.AsAppError(err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(utils.AppErrorToHTTPStatus(appErr.Code))
			json.NewEncoder(w).Encode(map[string]string{"code": appErr.Code, "message": appErr.Message})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

// Define a custom context key type to avoid collisions
type contextKey string

// SessionKey is the key used to store the session in the context
const SessionKey contextKey = "session"

// WithSession saves the session in the request context
func WithSession(ctx context.Context, session models.Session) context.Context {
	return context.WithValue(ctx, SessionKey, session)
}

// SessionFromContext retrieves the session placed by Require.
func SessionFromContext(ctx context.Context) (models.Session, bool) {
	session, ok := ctx.Value(SessionKey).(models.Session)
	return session, ok
}
