package token

import (
	"fmt"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// Bundle is the document returned from a successful grant: the
// access/refresh token pair plus any collaborator-supplied fields such
// as token_type or expires_in. It marshals directly as the token
// endpoint's JSON body.
type Bundle map[string]any

// Values renders the bundle as url.Values for redirect encoding
// (implicit-flow fragments).
func (b Bundle) Values() url.Values {
	v := url.Values{}
	for key, val := range b {
		v.Set(key, fmt.Sprint(val))
	}
	return v
}

// AccessToken returns the serialized access token from the bundle.
func (b Bundle) AccessToken() string {
	s, _ := b["access_token"].(string)
	return s
}

// RefreshToken returns the serialized refresh token from the bundle.
func (b Bundle) RefreshToken() string {
	s, _ := b["refresh_token"].(string)
	return s
}

// Factory builds access/refresh token pairs with the Serializer.
type Factory struct {
	serializer *Serializer
	nowFunc    func() time.Time
}

// FactoryOption defines a function type to modify the Factory instance.
type FactoryOption func(*Factory)

// WithNowFunc sets the now time function (primarily for testing).
func WithNowFunc(now func() time.Time) FactoryOption {
	return func(f *Factory) {
		f.nowFunc = now
	}
}

func NewFactory(serializer *Serializer, options ...FactoryOption) *Factory {
	f := &Factory{
		serializer: serializer,
		nowFunc:    time.Now,
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// Issue creates a bundle holding a fresh access token and refresh token
// for the subject/client pair. extra is embedded in the access token's
// payload; the refresh token's extra field is fixed to the refresh
// sentinel. options are merged into the bundle, but the reserved
// access_token and refresh_token keys may not be overridden - a
// collision is a configuration error, not a silent overwrite.
func (f *Factory) Issue(subjectID, clientID string, extra any, options map[string]any) (Bundle, error) {
	out := Bundle{}
	for key, val := range options {
		if key == "access_token" || key == "refresh_token" {
			return nil, errors.Errorf("[Factory.Issue] token option %q collides with a reserved bundle field", key)
		}
		out[key] = val
	}

	issuedAt := f.nowFunc()

	accessToken, err := f.serializer.Stringify(Payload{
		SubjectID: subjectID,
		ClientID:  clientID,
		IssuedAt:  issuedAt,
		Extra:     extra,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Factory.Issue] access token")
	}

	refreshToken, err := f.serializer.Stringify(Payload{
		SubjectID: subjectID,
		ClientID:  clientID,
		IssuedAt:  issuedAt,
		Extra:     RefreshExtra,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Factory.Issue] refresh token")
	}

	out["access_token"] = accessToken
	out["refresh_token"] = refreshToken
	return out, nil
}
