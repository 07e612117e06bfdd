package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"quiz-session-service/internal/domain"
)

// Claims are the JWT claims of an authenticated user.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// IdentityResolver turns a request into a domain.Identity. A token is read
// from the auth cookie, the Authorization header or the token query
// parameter; requests without one are anonymous and keyed by client address.
type IdentityResolver struct {
	secret []byte
	cookie string
}

func NewIdentityResolver(secret, cookieName string) *IdentityResolver {
	if cookieName == "" {
		cookieName = "jwt"
	}
	return &IdentityResolver{secret: []byte(secret), cookie: cookieName}
}

// Resolve returns domain.ErrUnauthenticated for a present but invalid token.
func (r *IdentityResolver) Resolve(req *http.Request) (domain.Identity, error) {
	raw := r.token(req)
	if raw == "" {
		return domain.Anonymous(clientOrigin(req)), nil
	}
	if len(r.secret) == 0 {
		return domain.Identity{}, fmt.Errorf("%w: token auth is not configured", domain.ErrUnauthenticated)
	}

	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return domain.Identity{}, fmt.Errorf("%w: invalid token claims", domain.ErrUnauthenticated)
	}
	return domain.User(claims.UserID, claims.Email), nil
}

// Middleware stores the resolved identity in the request context.
func (r *IdentityResolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id, err := r.Resolve(req)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		next.ServeHTTP(w, req.WithContext(withIdentity(req.Context(), id)))
	})
}

func (r *IdentityResolver) token(req *http.Request) string {
	if c, err := req.Cookie(r.cookie); err == nil && c.Value != "" {
		return c.Value
	}
	if auth := req.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	// Browsers cannot set headers on websocket upgrades.
	return req.URL.Query().Get("token")
}

type identityKey struct{}

func withIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by Middleware.
func IdentityFrom(ctx context.Context) (domain.Identity, error) {
	id, ok := ctx.Value(identityKey{}).(domain.Identity)
	if !ok {
		return domain.Identity{}, errors.New("identity middleware not installed")
	}
	return id, nil
}

// clientOrigin prefers the first X-Forwarded-For hop over the socket address.
func clientOrigin(req *http.Request) string {
	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
