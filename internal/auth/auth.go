// Package auth resolves the acting identity of HTTP requests. Identities are
// issued upstream; this package only reads them from a signed JWT or, when no
// secret is configured, from headers set by the trusted gateway.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/alumnet/alumnet/internal/identity"
)

// Headers read when no JWT secret is configured.
const (
	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"
)

const (
	claimUserID = "user_id"
	claimRole   = "role"
	tokenKey    = "user"
	actorKey    = "actor"
)

var ErrMissingActor = errors.New("actor identity missing")

// Skipper reports whether a request bypasses identity resolution.
type Skipper func(c echo.Context) bool

// Middleware resolves the request actor and stores it on the context. With a
// secret it requires a bearer JWT; without one it trusts HeaderUserID and
// HeaderRole. Requests with no usable identity are rejected with 401.
func Middleware(secret string, skipper Skipper) echo.MiddlewareFunc {
	if skipper == nil {
		skipper = func(echo.Context) bool { return false }
	}
	if strings.TrimSpace(secret) == "" {
		return headerMiddleware(skipper)
	}
	return jwtMiddleware(secret, skipper)
}

func jwtMiddleware(secret string, skipper Skipper) echo.MiddlewareFunc {
	verify := echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(secret),
		SigningMethod: jwt.SigningMethodHS256.Alg(),
		ContextKey:    tokenKey,
		Skipper:       func(c echo.Context) bool { return skipper(c) },
		NewClaimsFunc: func(echo.Context) jwt.Claims { return jwt.MapClaims{} },
	})
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(func(c echo.Context) error {
			if skipper(c) {
				return next(c)
			}
			token, ok := c.Get(tokenKey).(*jwt.Token)
			if !ok || token == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, ErrMissingActor.Error())
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
			}
			userID, _ := claims[claimUserID].(string)
			role, _ := claims[claimRole].(string)
			id, err := identity.New(userID, role)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}
			c.Set(actorKey, id)
			return next(c)
		})
	}
}

func headerMiddleware(skipper Skipper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper(c) {
				return next(c)
			}
			header := c.Request().Header
			id, err := identity.New(header.Get(HeaderUserID), header.Get(HeaderRole))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}
			c.Set(actorKey, id)
			return next(c)
		}
	}
}

// ActorFromContext returns the identity resolved by Middleware.
func ActorFromContext(c echo.Context) (identity.Identity, error) {
	id, ok := c.Get(actorKey).(identity.Identity)
	if !ok || id.IsZero() {
		return identity.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, ErrMissingActor.Error())
	}
	return id, nil
}

// RequireRole returns the actor if it holds one of roles, otherwise a 403.
func RequireRole(c echo.Context, roles ...identity.Role) (identity.Identity, error) {
	id, err := ActorFromContext(c)
	if err != nil {
		return identity.Identity{}, err
	}
	for _, r := range roles {
		if id.Role == r {
			return id, nil
		}
	}
	return identity.Identity{}, echo.NewHTTPError(http.StatusForbidden,
		fmt.Sprintf("role %s may not perform this action", id.Role))
}

// GenerateToken signs an HS256 token carrying id. It returns the token and
// its expiry.
func GenerateToken(id identity.Identity, secret string, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(secret) == "" {
		return "", time.Time{}, errors.New("jwt secret is required")
	}
	if err := id.Validate(); err != nil {
		return "", time.Time{}, err
	}
	if ttl <= 0 {
		return "", time.Time{}, errors.New("token ttl must be positive")
	}
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":       id.UserID,
		claimUserID: id.UserID,
		claimRole:   id.Role.String(),
		"iat":       now.Unix(),
		"exp":       expiresAt.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}
