package middleware

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/Jack4Code/pipeline"
)

// bcryptCost defines the computational cost of the bcrypt algorithm.
const bcryptCost = 12

// HashPassword returns the bcrypt hash of password, suitable for
// BasicAuthConfig.Users.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword returns nil when password matches the bcrypt hash.
func CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// BasicAuthConfig maps user names to bcrypt password hashes.
type BasicAuthConfig struct {
	Users map[string]string `mapstructure:"users"`
	Realm string            `mapstructure:"realm"`
}

func (c *BasicAuthConfig) ApplyDefaults() {
	if c.Realm == "" {
		c.Realm = "restricted"
	}
}

func (c *BasicAuthConfig) Validate() error {
	if len(c.Users) == 0 {
		return errors.New("at least one user is required")
	}
	return nil
}

// BasicAuth returns a unit that checks HTTP basic credentials against
// cfg.Users. On success the user name is stored as the user id; on failure
// the request is answered with 401 and a WWW-Authenticate challenge.
func BasicAuth(cfg BasicAuthConfig) pipeline.Middleware {
	challenge := `Basic realm="` + cfg.Realm + `", charset="UTF-8"`

	return pipeline.MiddlewareFunc(func(ctx context.Context, r *http.Request, next pipeline.Handler) (pipeline.Response, error) {
		user, password, ok := r.BasicAuth()
		if ok {
			if hash, known := cfg.Users[user]; known && CheckPassword(password, hash) == nil {
				return next.Handle(WithUserID(ctx, user), r)
			}
		}

		resp := pipeline.Text(http.StatusUnauthorized, "unauthorized")
		resp.Header.Set("WWW-Authenticate", challenge)
		return resp, nil
	})
}
