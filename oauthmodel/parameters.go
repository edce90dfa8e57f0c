package oauthmodel

import "time"

// ResponseType is the authorization endpoint's response_type parameter.
type ResponseType string

const (
	// CodeResponseType asks for a single-use grant code delivered in the
	// redirect query string. The default when response_type is absent.
	CodeResponseType ResponseType = "code"
	// TokenResponseType (implicit flow) asks for a token bundle
	// delivered in the redirect URL fragment.
	TokenResponseType ResponseType = "token"
)

// AuthorizeRequest holds the parameters of an authorization request,
// gathered from the query string on GET and from query-or-body on POST
// (query wins).
type AuthorizeRequest struct {
	ClientID     string
	RedirectURI  string
	ResponseType ResponseType
	// State is the client's anti-CSRF opaque value, echoed back on the
	// code-flow redirect when present.
	State string
	// EncryptedSubject is the x_user_id parameter: the authenticated
	// subject id, sealed by the server between the login step and the
	// approval step so it cannot be forged in transit.
	EncryptedSubject string
	// Allowed reports whether the approval form carried the allow flag.
	Allowed bool
}

// AccessClaims is the decoded content of a validated access token,
// attached to the request context by the bearer filter.
type AccessClaims struct {
	SubjectID string
	ClientID  string
	ExtraData any
	IssuedAt  time.Time
}
