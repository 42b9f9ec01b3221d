package middleware

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Jack4Code/pipeline"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	userIDKey    contextKey = "userID"
	requestIDKey contextKey = "requestID"
)

// AuthConfig configures RequireAuth. SecretEnv names an environment
// variable to read the secret from when Secret is empty.
type AuthConfig struct {
	Secret    string `mapstructure:"secret"`
	SecretEnv string `mapstructure:"secret_env"`
}

func (c *AuthConfig) ApplyDefaults() {
	if c.Secret == "" && c.SecretEnv != "" {
		c.Secret = os.Getenv(c.SecretEnv)
	}
}

func (c *AuthConfig) Validate() error {
	if c.Secret == "" {
		return errors.New("secret is required")
	}
	return nil
}

// RequireAuth returns a unit that validates a JWT from the Authorization
// header ("Bearer <token>"). A valid token puts its subject in the context
// (see GetUserID) and the chain continues; anything else is answered with
// 401 and the rest of the chain is skipped.
func RequireAuth(secret string) pipeline.Middleware {
	return pipeline.MiddlewareFunc(func(ctx context.Context, r *http.Request, next pipeline.Handler) (pipeline.Response, error) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			return unauthorized("missing authorization header"), nil
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || scheme != "Bearer" || token == "" {
			return unauthorized("invalid authorization format"), nil
		}

		userID, err := ValidateJWT(token, secret)
		if err != nil {
			return unauthorized("invalid token"), nil
		}

		return next.Handle(WithUserID(ctx, userID), r)
	})
}

// GenerateJWT signs an HS256 token whose subject is userID and which
// expires after expiration.
//
// Example:
//
//	token, err := middleware.GenerateJWT("user123", "secret", 24*time.Hour)
func GenerateJWT(userID string, secret string, expiration time.Duration) (string, error) {
	now := time.Now()

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ValidateJWT checks the signature and expiry of an HMAC-signed token and
// returns its subject.
func ValidateJWT(tokenString string, secret string) (string, error) {
	var claims jwt.RegisteredClaims

	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (any, error) {
			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}

	if claims.Subject == "" {
		return "", errors.New("missing user ID in token")
	}
	return claims.Subject, nil
}

// WithUserID stores the authenticated user id in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID returns the user id put in ctx by RequireAuth or BasicAuth.
//
//	func Profile(ctx context.Context, r *http.Request) (pipeline.Response, error) {
//	    userID, ok := middleware.GetUserID(ctx)
//	    if !ok {
//	        return pipeline.JSON(500, map[string]string{"error": "user not found"}), nil
//	    }
//	    ...
//	}
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok
}
