package main

import (
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/oauth2kit/go-oauth2-provider/oauthmodel"
	"github.com/oauth2kit/go-oauth2-provider/provider"
	"github.com/oauth2kit/go-oauth2-provider/token"
)

var approvalTmpl = template.Must(template.New("approve").Parse(`<!DOCTYPE html>
<html><body>
<p>Application <b>{{.ClientID}}</b> is requesting access to your account.</p>
<form method="post" action="{{.AuthorizeURL}}">
<input type="submit" name="allow" value="Allow"/>
<input type="submit" value="Deny"/>
</form>
</body></html>
`))

type demoUser struct {
	id           string
	passwordHash []byte
}

// demoCollaborator is an all-in-memory collaborator: a couple of seeded
// users, one client, and maps for grants, refresh tokens and the
// revocation denylist. It implements every optional capability, so the
// demo server supports all four grant flows plus revocation.
type demoCollaborator struct {
	lock          sync.RWMutex
	users         map[string]demoUser // username -> user
	clientID      string
	clientSecret  string
	grants        map[string]grantRecord // code -> grant
	refreshTokens map[string]string      // refresh token -> subject id
	revoked       map[string]bool
}

type grantRecord struct {
	clientID  string
	subjectID string
}

var (
	_ provider.Collaborator          = (*demoCollaborator)(nil)
	_ provider.PasswordAuthenticator = (*demoCollaborator)(nil)
	_ provider.RefreshAuthenticator  = (*demoCollaborator)(nil)
	_ provider.BundleSaver           = (*demoCollaborator)(nil)
	_ provider.AccessTokenObserver   = (*demoCollaborator)(nil)
)

func newDemoCollaborator() *demoCollaborator {
	hash, err := bcrypt.GenerateFromPassword([]byte("wonderland"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return &demoCollaborator{
		users: map[string]demoUser{
			"alice": {id: uuid.New().String(), passwordHash: hash},
		},
		clientID:      "demo-client",
		clientSecret:  "demo-secret",
		grants:        make(map[string]grantRecord),
		refreshTokens: make(map[string]string),
		revoked:       make(map[string]bool),
	}
}

// EnforceLogin authenticates the resource owner from Basic auth. A real
// host would redirect to its login page with authorizeURL as the return
// destination instead.
func (c *demoCollaborator) EnforceLogin(w http.ResponseWriter, r *http.Request, authorizeURL string, next func(subjectID string)) {
	username, password, ok := r.BasicAuth()
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="demo"`)
		http.Error(w, "login required", http.StatusUnauthorized)
		return
	}
	subjectID, err := c.authenticateUser(username, password)
	if err != nil {
		http.Error(w, "login failed", http.StatusUnauthorized)
		return
	}
	next(subjectID)
}

func (c *demoCollaborator) RenderAuthorizeForm(w http.ResponseWriter, r *http.Request, clientID, authorizeURL string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = approvalTmpl.Execute(w, struct {
		ClientID     string
		AuthorizeURL string
	}{ClientID: clientID, AuthorizeURL: authorizeURL})
}

// SaveGrant records who the code was issued to. Basic auth is the demo
// session mechanism, so the same credentials that passed EnforceLogin
// identify the approving subject here.
func (c *demoCollaborator) SaveGrant(r *http.Request, clientID, code string) error {
	username, password, ok := r.BasicAuth()
	if !ok {
		return errors.New("no resource owner session")
	}
	subjectID, err := c.authenticateUser(username, password)
	if err != nil {
		return err
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	c.grants[code] = grantRecord{clientID: clientID, subjectID: subjectID}
	return nil
}

func (c *demoCollaborator) TokenAttributes(subjectID, clientID string) (any, map[string]any) {
	return map[string]any{"scope": "profile"}, map[string]any{"token_type": "bearer", "expires_in": 3600}
}

func (c *demoCollaborator) LookupGrant(clientID, clientSecret, code string) (string, error) {
	if err := c.authenticateClient(clientID, clientSecret); err != nil {
		return "", err
	}

	c.lock.RLock()
	defer c.lock.RUnlock()
	grant, ok := c.grants[code]
	if !ok || grant.clientID != clientID {
		return "", errors.New("unknown or consumed grant code")
	}
	return grant.subjectID, nil
}

func (c *demoCollaborator) RemoveGrant(subjectID, clientID, code string) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	delete(c.grants, code)
	return nil
}

func (c *demoCollaborator) AuthenticateClient(clientID, clientSecret, username, password string) (string, error) {
	if err := c.authenticateClient(clientID, clientSecret); err != nil {
		return "", err
	}
	return c.authenticateUser(username, password)
}

func (c *demoCollaborator) AuthenticateRefreshToken(clientID, clientSecret, refreshToken string) (string, error) {
	if err := c.authenticateClient(clientID, clientSecret); err != nil {
		return "", err
	}

	c.lock.RLock()
	defer c.lock.RUnlock()
	if c.revoked[refreshToken] {
		return "", oauthmodel.ErrInvalidRefreshToken
	}
	subjectID, ok := c.refreshTokens[refreshToken]
	if !ok {
		return "", oauthmodel.ErrInvalidRefreshToken
	}
	return subjectID, nil
}

func (c *demoCollaborator) RemoveToken(clientID, tok string, kind provider.TokenKind) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.revoked[tok] = true
	if kind == provider.RefreshTokenKind {
		delete(c.refreshTokens, tok)
	}
	return nil
}

func (c *demoCollaborator) SaveTokenBundle(subjectID, clientID string, bundle token.Bundle) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.refreshTokens[bundle.RefreshToken()] = subjectID
}

func (c *demoCollaborator) AccessTokenValidated(w http.ResponseWriter, r *http.Request, claims oauthmodel.AccessClaims, next func()) {
	c.lock.RLock()
	revoked := c.revoked[bearerTokenOf(r)]
	c.lock.RUnlock()

	if revoked {
		http.Error(w, "token revoked", http.StatusUnauthorized)
		return
	}
	next()
}

func bearerTokenOf(r *http.Request) string {
	if tok := r.URL.Query().Get("access_token"); tok != "" {
		return tok
	}
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) {
		return auth[len(prefix):]
	}
	return ""
}

func (c *demoCollaborator) authenticateClient(clientID, clientSecret string) error {
	if clientID != c.clientID || clientSecret != c.clientSecret {
		return errors.New("invalid client credentials")
	}
	return nil
}

func (c *demoCollaborator) authenticateUser(username, password string) (string, error) {
	c.lock.RLock()
	user, ok := c.users[username]
	c.lock.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown user %q", username)
	}
	if err := bcrypt.CompareHashAndPassword(user.passwordHash, []byte(password)); err != nil {
		return "", errors.New("invalid password")
	}
	return user.id, nil
}
