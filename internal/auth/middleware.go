package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// contextKey is an unexported type used for context keys in this package.
// Only this package can create a key of this type, so no other package can
// read or shadow the user ID stored in a request context.
type contextKey string

const userIDKey contextKey = "userID"

var errNoBearer = errors.New("auth: missing bearer token")

// UnauthorizedMessage is the client-facing message on every 401 caused by a
// missing or rejected token.
const UnauthorizedMessage = "valid authentication required"

// unauthorizedBody is handler.ErrorResponse for an unauthorized error,
// spelled out because handler imports this package.
const unauthorizedBody = `{"success":false,"error":"unauthorized","message":"` + UnauthorizedMessage + `"}` + "\n"

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the token from the "Authorization: Bearer <token>" header,
// verifies it, and stores the user ID in the request context. If the token
// is missing or invalid, it returns 401 and stops the request chain.
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="accounts"`)
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(unauthorizedBody))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID returns a copy of ctx carrying the authenticated user ID.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the authenticated user's ID from the request context.
//
// Returns (0, false) if the request is anonymous.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id > 0
}

// extractUserID reads the bearer token from the Authorization header and
// verifies it. The scheme comparison is case-insensitive (RFC 6750).
func extractUserID(r *http.Request, tokens *TokenService) (int64, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return 0, errNoBearer
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return 0, errNoBearer
	}

	return tokens.Verify(token)
}
