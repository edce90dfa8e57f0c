package oauthmodel

import "errors"

var (
	ErrMissingAuthorizeParams   = errors.New("client_id and redirect_uri required")
	ErrMissingClientCreds       = errors.New("client_id and client_secret required")
	ErrInvalidResponseType      = errors.New("invalid response_type requested")
	ErrPasswordGrantUnsupported = errors.New("client authentication not supported")
	ErrRefreshGrantUnsupported  = errors.New("refresh_token not supported")
	ErrRevocationUnsupported    = errors.New("revocation not supported")
	ErrInvalidRefreshToken      = errors.New("invalid refresh token")
	ErrRefreshRotationFailed    = errors.New("failed to refresh token")
	ErrMissingToken             = errors.New("token required")
)
