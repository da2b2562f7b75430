package http

import (
	"context"
	"net/http"
	"strings"

	"cybersensei-service/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const userKey contextKey = "userID"

// TokenVerifier extracts the current identity from a signed bearer token.
// Token minting is the auth collaborator's job; this side only verifies.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify reads the token from the Authorization header, or from the `token`
// query parameter for websocket clients that cannot set headers.
func (v *TokenVerifier) Verify(r *http.Request) (string, error) {
	raw := ""
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		raw = strings.TrimPrefix(h, "Bearer ")
	} else if q := r.URL.Query().Get("token"); q != "" {
		raw = q
	}
	if raw == "" {
		return "", domain.ErrUnauthenticated
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", domain.ErrUnauthenticated
	}
	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", domain.ErrUnauthenticated
	}
	return subject, nil
}

// Middleware rejects unauthenticated requests and stashes the user id in the
// request context.
func (v *TokenVerifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := v.Verify(r)
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), userID)))
	})
}

func withUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

// currentUser returns the authenticated user id stored by the middleware.
func currentUser(ctx context.Context) string {
	userID, _ := ctx.Value(userKey).(string)
	return userID
}

// MintToken signs a token for userID. Used by the seed command for local
// development; production tokens come from the external auth service.
func MintToken(secret, userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": userID})
	return token.SignedString([]byte(secret))
}
