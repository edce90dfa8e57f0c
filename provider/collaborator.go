package provider

import (
	"net/http"

	"github.com/oauth2kit/go-oauth2-provider/oauthmodel"
	"github.com/oauth2kit/go-oauth2-provider/token"
)

// TokenKind classifies a token for removal/revocation.
type TokenKind string

const (
	AccessTokenKind  TokenKind = "access_token"
	RefreshTokenKind TokenKind = "refresh_token"
)

// Collaborator is the host application's side of the protocol. The
// engine never stores users, clients, grants or tokens itself; every
// piece of cross-request state lives behind this interface.
//
// The required methods cover the authorization-code and implicit flows.
// Additional flows are enabled by implementing the optional capability
// interfaces below; the engine discovers them by type assertion and
// reports the matching grant as unsupported when they are absent.
type Collaborator interface {
	// EnforceLogin ensures a subject is authenticated for the
	// authorization request. Implementations either invoke next with
	// the authenticated subject id, or write their own response (for
	// example a redirect to a login page, using authorizeURL as the
	// return destination) and return without calling next. next is
	// safe to call at most once; secondary invocations are ignored.
	EnforceLogin(w http.ResponseWriter, r *http.Request, authorizeURL string, next func(subjectID string))

	// RenderAuthorizeForm renders the approval page for the client. The
	// form must POST back to authorizeURL, which carries the original
	// parameters plus the sealed subject id.
	RenderAuthorizeForm(w http.ResponseWriter, r *http.Request, clientID, authorizeURL string)

	// SaveGrant persists a freshly minted grant code for the request's
	// client. The engine redirects back to the client only after the
	// grant is durably stored.
	SaveGrant(r *http.Request, clientID, code string) error

	// TokenAttributes supplies the application data embedded in a new
	// access token (extra) and any additional response fields merged
	// into the bundle (options), e.g. token_type or expires_in. The
	// access_token and refresh_token bundle fields are reserved and may
	// not appear in options.
	TokenAttributes(subjectID, clientID string) (extra any, options map[string]any)

	// LookupGrant validates client credentials and a grant code,
	// resolving the subject the code was issued for. Consumed or
	// unknown codes must be rejected with an error.
	LookupGrant(clientID, clientSecret, code string) (subjectID string, err error)

	// RemoveGrant deletes a consumed grant code. Called after a
	// successful exchange; the engine does not block the token response
	// on it and only logs failures.
	RemoveGrant(subjectID, clientID, code string) error
}

// PasswordAuthenticator enables the resource-owner-password grant.
type PasswordAuthenticator interface {
	// AuthenticateClient verifies the client credentials and the
	// resource owner's username/password, resolving the subject id.
	AuthenticateClient(clientID, clientSecret, username, password string) (subjectID string, err error)
}

// TokenRevoker enables token revocation. RemoveToken places the token
// on whatever denylist the host maintains; the engine's tokens are
// self-contained, so revocation is only observable through the host
// checking that list.
type TokenRevoker interface {
	RemoveToken(clientID, tok string, kind TokenKind) error
}

// RefreshAuthenticator enables the refresh-token grant. Rotation is
// single-use: after a successful refresh the engine removes the spent
// token through the embedded TokenRevoker before issuing a new bundle.
type RefreshAuthenticator interface {
	TokenRevoker

	// AuthenticateRefreshToken verifies the client credentials and that
	// the refresh token is still live, resolving the subject it was
	// issued for. The engine independently checks the resolved subject
	// against the one sealed inside the token.
	AuthenticateRefreshToken(clientID, clientSecret, refreshToken string) (subjectID string, err error)
}

// BundleSaver is notified of every issued bundle, fire-and-forget.
// Hosts that enforce expiry or revocation by lookup persist bundles
// here.
type BundleSaver interface {
	SaveTokenBundle(subjectID, clientID string, bundle token.Bundle)
}

// AccessTokenObserver is consulted by the bearer filter after a token
// decodes successfully. Implementations either invoke next to continue
// the request, or write their own response (for example rejecting a
// revoked token) and return without calling next. next is safe to call
// at most once.
type AccessTokenObserver interface {
	AccessTokenValidated(w http.ResponseWriter, r *http.Request, claims oauthmodel.AccessClaims, next func())
}
