package provider

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/oauth2kit/go-oauth2-provider/oauthmodel"
	"github.com/oauth2kit/go-oauth2-provider/token"
)

const (
	defaultAuthorizeURI   = "/oauth/authorize"
	defaultAccessTokenURI = "/oauth/access_token"
	defaultRevokeURI      = "/oauth/revoke"

	// grantCodeBits is the entropy of a single-use grant code.
	grantCodeBits = 128

	contentTypeJSON = "application/json; charset=utf-8"
)

// Provider is the OAuth2 grant engine. It owns the token lifecycle
// (minting, decoding, refresh rotation, revocation classification) and
// delegates all persistence and credential checking to the
// Collaborator. It holds no cross-request mutable state, so a single
// Provider is safe for concurrent use.
type Provider struct {
	serializer *token.Serializer
	factory    *token.Factory
	collab     Collaborator

	authorizeURI   string
	accessTokenURI string
	revokeURI      string
}

// Option defines a function type to modify the Provider instance.
type Option func(*Provider)

// WithAuthorizeURI overrides the authorization endpoint path.
func WithAuthorizeURI(uri string) Option {
	return func(p *Provider) {
		p.authorizeURI = uri
	}
}

// WithAccessTokenURI overrides the token endpoint path.
func WithAccessTokenURI(uri string) Option {
	return func(p *Provider) {
		p.accessTokenURI = uri
	}
}

// WithRevokeURI overrides the revocation endpoint path.
func WithRevokeURI(uri string) Option {
	return func(p *Provider) {
		p.revokeURI = uri
	}
}

// WithNowFunc sets the clock used for token issued-at timestamps
// (primarily for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(p *Provider) {
		p.factory = token.NewFactory(p.serializer, token.WithNowFunc(now))
	}
}

// New initializes a Provider. cryptKey encrypts token payloads and
// signKey authenticates them; both are process-wide immutable
// configuration. collab is required.
func New(cryptKey, signKey string, collab Collaborator, options ...Option) (*Provider, error) {
	if collab == nil {
		return nil, errors.New("[provider.New] collaborator is required")
	}

	serializer, err := token.NewSerializer(cryptKey, signKey)
	if err != nil {
		return nil, errors.Wrap(err, "[provider.New]")
	}

	p := &Provider{
		serializer:     serializer,
		factory:        token.NewFactory(serializer),
		collab:         collab,
		authorizeURI:   defaultAuthorizeURI,
		accessTokenURI: defaultAccessTokenURI,
		revokeURI:      defaultRevokeURI,
	}

	for _, opt := range options {
		opt(p)
	}
	return p, nil
}

// Handler dispatches the OAuth endpoints and passes every other
// method/path combination through to next.
func (p *Provider) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == p.authorizeURI:
			p.authorizeBegin(w, r)
		case r.Method == http.MethodPost && r.URL.Path == p.authorizeURI:
			p.authorizeDecision(w, r)
		case r.Method == http.MethodPost && r.URL.Path == p.accessTokenURI:
			p.accessToken(w, r)
		case r.Method == http.MethodPost && r.URL.Path == p.revokeURI:
			p.revoke(w, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// issueBundle asks the collaborator for the token attributes, mints the
// access/refresh pair and notifies any bundle saver.
func (p *Provider) issueBundle(subjectID, clientID string) (token.Bundle, error) {
	extra, options := p.collab.TokenAttributes(subjectID, clientID)

	bundle, err := p.factory.Issue(subjectID, clientID, extra, options)
	if err != nil {
		return nil, err
	}

	if saver, ok := p.collab.(BundleSaver); ok {
		saver.SaveTokenBundle(subjectID, clientID, bundle)
	}
	return bundle, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("Failed to encode JSON response")
	}
}

// resolveClientCredentials pulls the client id/secret out of the parsed
// form body, falling back to the HTTP Basic Authorization header.
func resolveClientCredentials(r *http.Request) (clientID, clientSecret string, err error) {
	clientID = r.PostForm.Get("client_id")
	clientSecret = r.PostForm.Get("client_secret")
	if clientID != "" && clientSecret != "" {
		return clientID, clientSecret, nil
	}

	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Basic" {
		return "", "", oauthmodel.ErrMissingClientCreds
	}

	decoded, decodeErr := base64.StdEncoding.DecodeString(parts[1])
	if decodeErr != nil {
		return "", "", oauthmodel.ErrMissingClientCreds
	}

	creds := strings.SplitN(string(decoded), ":", 2)
	if len(creds) != 2 {
		return "", "", oauthmodel.ErrMissingClientCreds
	}
	return creds[0], creds[1], nil
}

// onceFunc guards a collaborator continuation so a second invocation is
// ignored. The protocol assumes at-most-once completion; a collaborator
// calling back twice must not replay the rest of the flow.
func onceFunc(fn func()) func() {
	var once sync.Once
	return func() {
		once.Do(fn)
	}
}

func onceFunc1[T any](fn func(T)) func(T) {
	var once sync.Once
	return func(v T) {
		once.Do(func() { fn(v) })
	}
}
