package provider

import (
	"net/http"

	"github.com/oauth2kit/go-oauth2-provider/oauthmodel"
	"github.com/oauth2kit/go-oauth2-provider/token"
)

// revoke handles POST on the revocation endpoint. The token is decoded
// to classify it: a payload carrying the refresh sentinel is revoked as
// a refresh token no matter what token_type_hint says, since the
// sentinel is authoritative. Other tokens honor the hint, defaulting to
// access_token.
func (p *Provider) revoke(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	tok := r.PostForm.Get("token")
	if tok == "" {
		http.Error(w, oauthmodel.ErrMissingToken.Error(), http.StatusBadRequest)
		return
	}

	revoker, ok := p.collab.(TokenRevoker)
	if !ok {
		http.Error(w, oauthmodel.ErrRevocationUnsupported.Error(), http.StatusUnauthorized)
		return
	}

	var payload token.Payload
	if err := p.serializer.Parse(tok, &payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	kind := AccessTokenKind
	if payload.IsRefresh() || r.PostForm.Get("token_type_hint") == string(RefreshTokenKind) {
		kind = RefreshTokenKind
	}

	clientID := r.PostForm.Get("client_id")
	if err := revoker.RemoveToken(clientID, tok, kind); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, map[string]bool{"success": true})
}
