package oauthmodel

// GrantType identifies the token-exchange flow requested by a client.
type GrantType string

const (
	// PasswordGrant exchanges resource-owner credentials for tokens.
	PasswordGrant GrantType = "password"
	// RefreshTokenGrant rotates a refresh token into a fresh bundle.
	RefreshTokenGrant GrantType = "refresh_token"
	// AuthorizationCodeGrant exchanges a single-use grant code. It is
	// the default when no other grant_type matches.
	AuthorizationCodeGrant GrantType = "authorization_code"
)

// TokenRequest holds parameters for the OAuth2 token request.
// This represents the request body sent to the access-token endpoint.
type TokenRequest struct {
	// ClientID identifies the OAuth2 client making the request. Resolved
	// from the form body first, falling back to HTTP Basic auth.
	ClientID string

	// ClientSecret is the client's secret credential.
	// Security: never log or expose this value.
	ClientSecret string

	// GrantType selects the flow. Anything other than "password" or
	// "refresh_token" is treated as an authorization-code exchange.
	GrantType GrantType

	// Code is the authorization code received from the authorization
	// endpoint. Exchanged at most once.
	Code string

	// Username and Password are the resource-owner credentials for the
	// password grant.
	Username string
	Password string

	// RefreshToken is the serialized refresh token for the
	// refresh_token grant.
	RefreshToken string
}
