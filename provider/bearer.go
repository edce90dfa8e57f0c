package provider

import (
	"context"
	"net/http"
	"strings"

	"github.com/oauth2kit/go-oauth2-provider/oauthmodel"
	"github.com/oauth2kit/go-oauth2-provider/token"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

// ContextKeyClaims stores the decoded access-token claims.
const ContextKeyClaims ContextKey = "oauth2_claims"

// ClaimsFromContext returns the access-token claims attached by Bearer,
// if the request carried a valid token.
func ClaimsFromContext(ctx context.Context) (oauthmodel.AccessClaims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(oauthmodel.AccessClaims)
	return claims, ok
}

// Bearer is a request filter for protected routes. It looks for an
// access token in the access_token query parameter or the
// Authorization Bearer header. A request without a token passes through
// unauthenticated so the next stage can decide; a token that fails to
// decode is rejected with 400. On success the decoded claims are
// attached to the request context, and an AccessTokenObserver (when the
// collaborator implements one) may veto the request before it
// continues, e.g. against a revocation list.
func (p *Provider) Bearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r)
		if tok == "" {
			next.ServeHTTP(w, r)
			return
		}

		var payload token.Payload
		if err := p.serializer.Parse(tok, &payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		claims := oauthmodel.AccessClaims{
			SubjectID: payload.SubjectID,
			ClientID:  payload.ClientID,
			ExtraData: payload.Extra,
			IssuedAt:  payload.IssuedAt,
		}
		r = r.WithContext(context.WithValue(r.Context(), ContextKeyClaims, claims))

		observer, ok := p.collab.(AccessTokenObserver)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		observer.AccessTokenValidated(w, r, claims, onceFunc(func() {
			next.ServeHTTP(w, r)
		}))
	})
}

func bearerToken(r *http.Request) string {
	if tok := r.URL.Query().Get("access_token"); tok != "" {
		return tok
	}
	authorization := r.Header.Get("Authorization")
	if strings.HasPrefix(authorization, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authorization, "Bearer"))
	}
	return ""
}
