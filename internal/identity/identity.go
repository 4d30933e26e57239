// Package identity assigns each browser a stable anonymous visitor ID.
// Visitors are never persisted; the ID only ties outcome records and logs
// from the same device together.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"time"
)

const (
	// CookieName holds the visitor ID.
	CookieName = "mindprobe_visitor"
	cookieTTL  = 30 * 24 * time.Hour
)

type contextKey struct{}

var visitorIDPattern = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)

// VisitorIDFromContext returns the visitor ID set by Middleware, or "".
func VisitorIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(contextKey{}).(string); ok {
		return v
	}
	return ""
}

// WithVisitorID stores a visitor ID on ctx.
func WithVisitorID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// NewVisitorID returns a random ID of the form anon_<32 hex>.
func NewVisitorID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate visitor id: %w", err)
	}
	return "anon_" + hex.EncodeToString(buf), nil
}

// IsValidVisitorID reports whether id has the shape produced by NewVisitorID.
func IsValidVisitorID(id string) bool {
	return visitorIDPattern.MatchString(id)
}

// Middleware reuses the visitor cookie when it is well formed and issues a
// fresh one otherwise. The cookie is refreshed on every request.
func Middleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(CookieName); err == nil && IsValidVisitorID(c.Value) {
				id = c.Value
			} else {
				id, err = NewVisitorID()
				if err != nil {
					http.Error(w, `{"error":"failed to establish visitor identity"}`, http.StatusInternalServerError)
					return
				}
			}

			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int(cookieTTL.Seconds()),
				Expires:  time.Now().Add(cookieTTL),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Secure:   !isDev,
			})
			next.ServeHTTP(w, r.WithContext(WithVisitorID(r.Context(), id)))
		})
	}
}

// IPFromRequest returns the remote IP without its port.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
