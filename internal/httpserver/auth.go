package httpserver

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/ando01/BirdView/internal/logger"
)

// BasicAuth holds the credentials required for write endpoints.
type BasicAuth struct {
	Username     string
	PasswordHash string // bcrypt
}

// middleware returns an echo basic auth middleware that checks the password
// against the bcrypt hash.
func (a *BasicAuth) middleware() echo.MiddlewareFunc {
	return echomw.BasicAuthWithConfig(echomw.BasicAuthConfig{
		Realm: "birdview",
		Validator: func(username, password string, c echo.Context) (bool, error) {
			userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.Username)) == 1
			passErr := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password))
			if !userOK || passErr != nil {
				GetLogger().Warn("rejected settings update credentials",
					logger.String("remote_ip", c.RealIP()),
					logger.String("path", c.Path()))
				return false, nil
			}
			return true, nil
		},
	})
}
