// Package collabfakes provides configurable in-memory collaborators for
// testing the grant engine. The base fake implements only the required
// protocol; the capability fakes layer the optional interfaces on top so
// tests can exercise the unsupported-grant paths by choosing the base.
package collabfakes

import (
	"net/http"
	"sync"

	"github.com/oauth2kit/go-oauth2-provider/oauthmodel"
	"github.com/oauth2kit/go-oauth2-provider/provider"
	"github.com/oauth2kit/go-oauth2-provider/token"
)

var _ provider.Collaborator = (*FakeCollaborator)(nil)

// Call records a single collaborator invocation.
type Call struct {
	Method string
	Args   []any
}

// FakeCollaborator implements the required collaborator protocol with
// overridable function fields and records every invocation.
type FakeCollaborator struct {
	lock  sync.Mutex
	calls []Call

	EnforceLoginFunc    func(w http.ResponseWriter, r *http.Request, authorizeURL string, next func(subjectID string))
	RenderFormFunc      func(w http.ResponseWriter, r *http.Request, clientID, authorizeURL string)
	SaveGrantFunc       func(r *http.Request, clientID, code string) error
	TokenAttributesFunc func(subjectID, clientID string) (any, map[string]any)
	LookupGrantFunc     func(clientID, clientSecret, code string) (string, error)
	RemoveGrantFunc     func(subjectID, clientID, code string) error
}

func NewFakeCollaborator() *FakeCollaborator {
	return &FakeCollaborator{}
}

func (f *FakeCollaborator) record(method string, args ...any) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls = append(f.calls, Call{Method: method, Args: args})
}

// Calls returns a copy of the recorded invocations.
func (f *FakeCollaborator) Calls() []Call {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallNames returns just the method names of the recorded invocations,
// in order.
func (f *FakeCollaborator) CallNames() []string {
	names := make([]string, 0)
	for _, c := range f.Calls() {
		names = append(names, c.Method)
	}
	return names
}

func (f *FakeCollaborator) EnforceLogin(w http.ResponseWriter, r *http.Request, authorizeURL string, next func(subjectID string)) {
	f.record("EnforceLogin", authorizeURL)
	if f.EnforceLoginFunc != nil {
		f.EnforceLoginFunc(w, r, authorizeURL, next)
		return
	}
	next("subject-1")
}

func (f *FakeCollaborator) RenderAuthorizeForm(w http.ResponseWriter, r *http.Request, clientID, authorizeURL string) {
	f.record("RenderAuthorizeForm", clientID, authorizeURL)
	if f.RenderFormFunc != nil {
		f.RenderFormFunc(w, r, clientID, authorizeURL)
	}
}

func (f *FakeCollaborator) SaveGrant(r *http.Request, clientID, code string) error {
	f.record("SaveGrant", clientID, code)
	if f.SaveGrantFunc != nil {
		return f.SaveGrantFunc(r, clientID, code)
	}
	return nil
}

func (f *FakeCollaborator) TokenAttributes(subjectID, clientID string) (any, map[string]any) {
	f.record("TokenAttributes", subjectID, clientID)
	if f.TokenAttributesFunc != nil {
		return f.TokenAttributesFunc(subjectID, clientID)
	}
	return map[string]any{"scope": "default"}, map[string]any{"token_type": "bearer", "expires_in": 3600}
}

func (f *FakeCollaborator) LookupGrant(clientID, clientSecret, code string) (string, error) {
	f.record("LookupGrant", clientID, clientSecret, code)
	if f.LookupGrantFunc != nil {
		return f.LookupGrantFunc(clientID, clientSecret, code)
	}
	return "subject-1", nil
}

func (f *FakeCollaborator) RemoveGrant(subjectID, clientID, code string) error {
	f.record("RemoveGrant", subjectID, clientID, code)
	if f.RemoveGrantFunc != nil {
		return f.RemoveGrantFunc(subjectID, clientID, code)
	}
	return nil
}

var (
	_ provider.PasswordAuthenticator = (*FakeFullCollaborator)(nil)
	_ provider.RefreshAuthenticator  = (*FakeFullCollaborator)(nil)
	_ provider.TokenRevoker          = (*FakeFullCollaborator)(nil)
	_ provider.BundleSaver           = (*FakeFullCollaborator)(nil)
	_ provider.AccessTokenObserver   = (*FakeFullCollaborator)(nil)
)

// FakeFullCollaborator implements every optional capability on top of
// the base fake.
type FakeFullCollaborator struct {
	FakeCollaborator

	AuthenticateClientFunc  func(clientID, clientSecret, username, password string) (string, error)
	AuthenticateRefreshFunc func(clientID, clientSecret, refreshToken string) (string, error)
	RemoveTokenFunc         func(clientID, tok string, kind provider.TokenKind) error
	SaveBundleFunc          func(subjectID, clientID string, bundle token.Bundle)
	ObserveFunc             func(w http.ResponseWriter, r *http.Request, claims oauthmodel.AccessClaims, next func())
}

func NewFakeFullCollaborator() *FakeFullCollaborator {
	return &FakeFullCollaborator{}
}

func (f *FakeFullCollaborator) AuthenticateClient(clientID, clientSecret, username, password string) (string, error) {
	f.record("AuthenticateClient", clientID, username)
	if f.AuthenticateClientFunc != nil {
		return f.AuthenticateClientFunc(clientID, clientSecret, username, password)
	}
	return "subject-1", nil
}

func (f *FakeFullCollaborator) AuthenticateRefreshToken(clientID, clientSecret, refreshToken string) (string, error) {
	f.record("AuthenticateRefreshToken", clientID, refreshToken)
	if f.AuthenticateRefreshFunc != nil {
		return f.AuthenticateRefreshFunc(clientID, clientSecret, refreshToken)
	}
	return "subject-1", nil
}

func (f *FakeFullCollaborator) RemoveToken(clientID, tok string, kind provider.TokenKind) error {
	f.record("RemoveToken", clientID, tok, kind)
	if f.RemoveTokenFunc != nil {
		return f.RemoveTokenFunc(clientID, tok, kind)
	}
	return nil
}

func (f *FakeFullCollaborator) SaveTokenBundle(subjectID, clientID string, bundle token.Bundle) {
	f.record("SaveTokenBundle", subjectID, clientID)
	if f.SaveBundleFunc != nil {
		f.SaveBundleFunc(subjectID, clientID, bundle)
	}
}

func (f *FakeFullCollaborator) AccessTokenValidated(w http.ResponseWriter, r *http.Request, claims oauthmodel.AccessClaims, next func()) {
	f.record("AccessTokenValidated", claims.SubjectID, claims.ClientID)
	if f.ObserveFunc != nil {
		f.ObserveFunc(w, r, claims, next)
		return
	}
	next()
}
