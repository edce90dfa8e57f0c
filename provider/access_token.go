package provider

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/oauth2kit/go-oauth2-provider/oauthmodel"
	"github.com/oauth2kit/go-oauth2-provider/token"
)

// accessToken handles POST on the token endpoint, branching on
// grant_type. Every success writes the serialized bundle as JSON.
func (p *Provider) accessToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	clientID, clientSecret, err := resolveClientCredentials(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := oauthmodel.TokenRequest{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		GrantType:    oauthmodel.GrantType(r.PostForm.Get("grant_type")),
		Code:         r.PostForm.Get("code"),
		Username:     r.PostForm.Get("username"),
		Password:     r.PostForm.Get("password"),
		RefreshToken: r.PostForm.Get("refresh_token"),
	}

	switch req.GrantType {
	case oauthmodel.PasswordGrant:
		p.passwordGrant(w, req)
	case oauthmodel.RefreshTokenGrant:
		p.refreshTokenGrant(w, req)
	default:
		p.authorizationCodeGrant(w, req)
	}
}

func (p *Provider) passwordGrant(w http.ResponseWriter, req oauthmodel.TokenRequest) {
	authenticator, ok := p.collab.(PasswordAuthenticator)
	if !ok {
		http.Error(w, oauthmodel.ErrPasswordGrantUnsupported.Error(), http.StatusUnauthorized)
		return
	}

	subjectID, err := authenticator.AuthenticateClient(req.ClientID, req.ClientSecret, req.Username, req.Password)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	p.respondWithBundle(w, subjectID, req.ClientID)
}

// refreshTokenGrant rotates a refresh token. The token is decoded and
// checked before any collaborator call is made: it must verify, belong
// to the requesting client and carry the refresh sentinel. The subject
// the collaborator resolves must match the one sealed inside the token.
// Rotation is single-use, so the spent token is removed before the new
// bundle is issued; a removal failure aborts the exchange.
func (p *Provider) refreshTokenGrant(w http.ResponseWriter, req oauthmodel.TokenRequest) {
	authenticator, ok := p.collab.(RefreshAuthenticator)
	if !ok {
		http.Error(w, oauthmodel.ErrRefreshGrantUnsupported.Error(), http.StatusUnauthorized)
		return
	}

	var payload token.Payload
	if err := p.serializer.Parse(req.RefreshToken, &payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if payload.ClientID != req.ClientID || !payload.IsRefresh() {
		log.Warn().Str("client_id", req.ClientID).Msg("Refresh token client id or sentinel mismatch")
		http.Error(w, oauthmodel.ErrInvalidRefreshToken.Error(), http.StatusBadRequest)
		return
	}

	subjectID, err := authenticator.AuthenticateRefreshToken(req.ClientID, req.ClientSecret, req.RefreshToken)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if subjectID != payload.SubjectID {
		log.Warn().Str("client_id", req.ClientID).Msg("Refresh token subject id mismatch")
		http.Error(w, oauthmodel.ErrInvalidRefreshToken.Error(), http.StatusBadRequest)
		return
	}

	if err := authenticator.RemoveToken(req.ClientID, req.RefreshToken, RefreshTokenKind); err != nil {
		log.Err(err).Str("client_id", req.ClientID).Msg("Failed to remove spent refresh token")
		http.Error(w, oauthmodel.ErrRefreshRotationFailed.Error(), http.StatusInternalServerError)
		return
	}

	p.respondWithBundle(w, subjectID, req.ClientID)
}

// authorizationCodeGrant exchanges a grant code for tokens. Grant
// cleanup runs after the response is written and is fire-and-forget:
// a failed removal is logged, never retried, and the collaborator is
// expected to reject replays of the consumed code regardless.
func (p *Provider) authorizationCodeGrant(w http.ResponseWriter, req oauthmodel.TokenRequest) {
	subjectID, err := p.collab.LookupGrant(req.ClientID, req.ClientSecret, req.Code)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !p.respondWithBundle(w, subjectID, req.ClientID) {
		return
	}

	if err := p.collab.RemoveGrant(subjectID, req.ClientID, req.Code); err != nil {
		log.Err(err).Str("client_id", req.ClientID).Msg("Failed to remove consumed grant code")
	}
}

func (p *Provider) respondWithBundle(w http.ResponseWriter, subjectID, clientID string) bool {
	bundle, err := p.issueBundle(subjectID, clientID)
	if err != nil {
		log.Err(err).Str("client_id", clientID).Msg("Failed to issue token bundle")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return false
	}
	writeJSON(w, bundle)
	return true
}
