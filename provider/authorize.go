package provider

import (
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/oauth2kit/go-oauth2-provider/oauthmodel"
	"github.com/oauth2kit/go-oauth2-provider/token"
)

// authorizeBegin handles GET on the authorize endpoint: the resource
// owner arriving at the approval step. The collaborator enforces login;
// once a subject is known, its id is sealed into the x_user_id
// parameter of the approval form's action URL so it cannot be forged
// between the login step and the approval step.
func (p *Provider) authorizeBegin(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	redirectURI := r.URL.Query().Get("redirect_uri")

	if clientID == "" || redirectURI == "" {
		http.Error(w, oauthmodel.ErrMissingAuthorizeParams.Error(), http.StatusBadRequest)
		return
	}

	// The approval form POSTs back to the same URL, so it carries all
	// of the original parameters.
	authorizeURL := r.URL.RequestURI()

	p.collab.EnforceLogin(w, r, authorizeURL, onceFunc1(func(subjectID string) {
		sealed, err := p.serializer.Stringify(subjectID)
		if err != nil {
			log.Err(err).Msg("Failed to seal subject id")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		authorizeURL += "&" + url.Values{"x_user_id": {sealed}}.Encode()

		p.collab.RenderAuthorizeForm(w, r, clientID, authorizeURL)
	}))
}

// authorizeDecision handles POST on the authorize endpoint: the
// approval form submission. Parameters may arrive in the query string
// or the form body; the query wins.
func (p *Provider) authorizeDecision(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	req := parseAuthorizeRequest(r)

	// The redirect separator is fixed by response_type before the allow
	// flag is consulted, so an unknown response_type always fails even
	// on a denial.
	var separator string
	switch req.ResponseType {
	case oauthmodel.CodeResponseType:
		separator = "?"
	case oauthmodel.TokenResponseType:
		separator = "#"
	default:
		http.Error(w, oauthmodel.ErrInvalidResponseType.Error(), http.StatusBadRequest)
		return
	}

	if !req.Allowed {
		redirect(w, r, req.RedirectURI+separator+url.Values{"error": {"access_denied"}}.Encode())
		return
	}

	if req.ResponseType == oauthmodel.TokenResponseType {
		p.implicitGrant(w, r, req)
		return
	}
	p.codeGrant(w, r, req)
}

// implicitGrant issues a bundle immediately and delivers it in the
// redirect URL fragment.
func (p *Provider) implicitGrant(w http.ResponseWriter, r *http.Request, req oauthmodel.AuthorizeRequest) {
	var subjectID string
	if err := p.serializer.Parse(req.EncryptedSubject, &subjectID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	bundle, err := p.issueBundle(subjectID, req.ClientID)
	if err != nil {
		log.Err(err).Str("client_id", req.ClientID).Msg("Failed to issue token bundle")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	redirect(w, r, req.RedirectURI+"#"+bundle.Values().Encode())
}

// codeGrant mints a single-use grant code, hands it to the collaborator
// for persistence and delivers it in the redirect query string. The
// client's state value rides along when supplied, for CSRF correlation.
func (p *Provider) codeGrant(w http.ResponseWriter, r *http.Request, req oauthmodel.AuthorizeRequest) {
	code, err := token.RandomString(grantCodeBits)
	if err != nil {
		log.Err(err).Msg("Failed to generate grant code")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := p.collab.SaveGrant(r, req.ClientID, code); err != nil {
		log.Err(err).Str("client_id", req.ClientID).Msg("Failed to save grant")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	extras := url.Values{"code": {code}}
	if req.State != "" {
		extras.Set("state", req.State)
	}
	redirect(w, r, req.RedirectURI+"?"+extras.Encode())
}

func parseAuthorizeRequest(r *http.Request) oauthmodel.AuthorizeRequest {
	param := func(key string) string {
		if v := r.URL.Query().Get(key); v != "" {
			return v
		}
		return r.PostForm.Get(key)
	}

	req := oauthmodel.AuthorizeRequest{
		ClientID:         param("client_id"),
		RedirectURI:      param("redirect_uri"),
		ResponseType:     oauthmodel.ResponseType(param("response_type")),
		State:            param("state"),
		EncryptedSubject: param("x_user_id"),
		Allowed:          r.PostForm.Has("allow"),
	}
	if req.ResponseType == "" {
		req.ResponseType = oauthmodel.CodeResponseType
	}
	return req
}

func redirect(w http.ResponseWriter, r *http.Request, location string) {
	http.Redirect(w, r, location, http.StatusSeeOther)
}
