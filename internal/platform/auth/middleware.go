package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"
	"go.uber.org/zap"

	"github.com/customiseme/storefront-api/internal/platform/httpx"
	"github.com/customiseme/storefront-api/internal/platform/requestctx"
)

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// OptionalIdentityMiddleware attaches an Identity to the request context when a
// valid bearer token is present. Requests without a token proceed anonymously;
// a token that fails verification is rejected.
func OptionalIdentityMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := bearerToken(r)
			if token == "" || verifier == nil {
				next.ServeHTTP(w, r)
				return
			}

			decoded, err := verifier.VerifyIDToken(ctx, token)
			if err != nil {
				requestctx.Logger(ctx).Warn("id token verification failed", zap.Error(err))
				httpx.WriteError(ctx, w, httpx.NewError("invalid_token", "id token verification failed", http.StatusUnauthorized))
				return
			}

			identity := &Identity{
				UID:   decoded.UID,
				Email: emailClaim(decoded),
				token: decoded,
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}

// RequireAPIKeyMiddleware guards operator endpoints with a shared API key header.
func RequireAPIKeyMiddleware(header, key string) func(http.Handler) http.Handler {
	header = strings.TrimSpace(header)
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if key == "" {
				httpx.WriteError(ctx, w, httpx.NewError("admin_disabled", "operator access not configured", http.StatusForbidden))
				return
			}
			provided := strings.TrimSpace(r.Header.Get(header))
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				requestctx.Logger(ctx).Warn("admin api key rejected")
				httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "invalid api key", http.StatusUnauthorized))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func emailClaim(token *firebaseauth.Token) string {
	if token == nil || token.Claims == nil {
		return ""
	}
	if email, ok := token.Claims["email"].(string); ok {
		return strings.TrimSpace(email)
	}
	return ""
}
