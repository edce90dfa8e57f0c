package provider_test

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oauth2kit/go-oauth2-provider/provider"
	"github.com/oauth2kit/go-oauth2-provider/token"
)

const accessTokenTarget = "/oauth/access_token"

func decodeBundle(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	require.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	var bundle map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bundle))
	return bundle
}

// mintRefreshToken creates a refresh token the way the engine would.
func mintRefreshToken(t *testing.T, subjectID, clientID string) string {
	t.Helper()
	tok, err := newSerializer(t).Stringify(token.Payload{
		SubjectID: subjectID,
		ClientID:  clientID,
		IssuedAt:  time.Now(),
		Extra:     token.RefreshExtra,
	})
	require.NoError(t, err)
	return tok
}

func TestAccessTokenRequiresClientCredentials(t *testing.T) {
	collab := newFullCollab()
	_, handler := newProvider(t, collab)

	w := postForm(handler, accessTokenTarget, url.Values{"grant_type": {"password"}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "client_id and client_secret required", body(w))
	require.Empty(t, collab.Calls())
}

func TestAccessTokenBasicAuthFallback(t *testing.T) {
	collab := newFullCollab()
	_, handler := newProvider(t, collab)

	form := url.Values{"code": {"code-123"}}
	req := httptest.NewRequest(http.MethodPost, accessTokenTarget, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(testClientID+":"+testClientSecret)))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	calls := collab.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, "LookupGrant", calls[0].Method)
	assert.Equal(t, []any{testClientID, testClientSecret, "code-123"}, calls[0].Args)
}

func TestAccessTokenMalformedBasicAuth(t *testing.T) {
	collab := newFullCollab()
	_, handler := newProvider(t, collab)

	for _, header := range []string{
		"Basic not-base64!!!",
		"Basic " + base64.StdEncoding.EncodeToString([]byte("no-colon")),
		"Bearer something",
	} {
		req := httptest.NewRequest(http.MethodPost, accessTokenTarget, strings.NewReader(""))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Authorization", header)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, "client_id and client_secret required", body(w))
	}
}

func TestPasswordGrantUnsupported(t *testing.T) {
	// The base collaborator registers no password handler.
	collab := newFakeCollab()
	_, handler := newProvider(t, collab)

	w := postForm(handler, accessTokenTarget, url.Values{
		"grant_type":    {"password"},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "client authentication not supported", body(w))
	require.Empty(t, collab.Calls())
}

func TestPasswordGrantSuccess(t *testing.T) {
	collab := newFullCollab()
	_, handler := newProvider(t, collab)

	w := postForm(handler, accessTokenTarget, url.Values{
		"grant_type":    {"password"},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
		"username":      {"alice"},
		"password":      {"wonderland"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	bundle := decodeBundle(t, w)
	require.NotEmpty(t, bundle["access_token"])
	require.NotEmpty(t, bundle["refresh_token"])
	assert.Equal(t, "bearer", bundle["token_type"])

	require.Equal(t, []string{"AuthenticateClient", "TokenAttributes", "SaveTokenBundle"}, collab.CallNames())
}

func TestPasswordGrantAuthenticationFailure(t *testing.T) {
	collab := newFullCollab()
	collab.AuthenticateClientFunc = func(clientID, clientSecret, username, password string) (string, error) {
		return "", errors.New("bad resource owner credentials")
	}
	_, handler := newProvider(t, collab)

	w := postForm(handler, accessTokenTarget, url.Values{
		"grant_type":    {"password"},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
		"username":      {"alice"},
		"password":      {"wrong"},
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "bad resource owner credentials", body(w))
}

func TestRefreshGrantUnsupported(t *testing.T) {
	collab := newFakeCollab()
	_, handler := newProvider(t, collab)

	w := postForm(handler, accessTokenTarget, url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
		"refresh_token": {mintRefreshToken(t, testSubjectID, testClientID)},
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "refresh_token not supported", body(w))
}

func TestRefreshGrantRejectsTamperedTokenBeforeAnyCollaboratorCall(t *testing.T) {
	collab := newFullCollab()
	_, handler := newProvider(t, collab)

	// Swap one character in the middle of the token so the ciphertext no
	// longer matches its integrity tag.
	tampered := mintRefreshToken(t, testSubjectID, testClientID)
	mid := len(tampered) / 2
	flipped := byte('A')
	if tampered[mid] == 'A' {
		flipped = 'B'
	}
	tampered = tampered[:mid] + string(flipped) + tampered[mid+1:]

	w := postForm(handler, accessTokenTarget, url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
		"refresh_token": {tampered},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Empty(t, collab.Calls())
}

func TestRefreshGrantRejectsWrongClient(t *testing.T) {
	collab := newFullCollab()
	_, handler := newProvider(t, collab)

	w := postForm(handler, accessTokenTarget, url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
		"refresh_token": {mintRefreshToken(t, testSubjectID, "another-client")},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid refresh token", body(w))
	require.Empty(t, collab.Calls())
}

func TestRefreshGrantRejectsAccessTokenWithoutSentinel(t *testing.T) {
	collab := newFullCollab()
	_, handler := newProvider(t, collab)

	accessToken, err := newSerializer(t).Stringify(token.Payload{
		SubjectID: testSubjectID,
		ClientID:  testClientID,
		IssuedAt:  time.Now(),
		Extra:     map[string]any{"scope": "read"},
	})
	require.NoError(t, err)

	w := postForm(handler, accessTokenTarget, url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
		"refresh_token": {accessToken},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid refresh token", body(w))
}

func TestRefreshGrantSubjectMismatch(t *testing.T) {
	collab := newFullCollab()
	collab.AuthenticateRefreshFunc = func(clientID, clientSecret, refreshToken string) (string, error) {
		return "someone-else", nil
	}
	_, handler := newProvider(t, collab)

	w := postForm(handler, accessTokenTarget, url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
		"refresh_token": {mintRefreshToken(t, testSubjectID, testClientID)},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid refresh token", body(w))
	require.Equal(t, []string{"AuthenticateRefreshToken"}, collab.CallNames())
}

func TestRefreshGrantAuthenticationFailure(t *testing.T) {
	collab := newFullCollab()
	collab.AuthenticateRefreshFunc = func(clientID, clientSecret, refreshToken string) (string, error) {
		return "", errors.New("refresh token revoked")
	}
	_, handler := newProvider(t, collab)

	w := postForm(handler, accessTokenTarget, url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
		"refresh_token": {mintRefreshToken(t, testSubjectID, testClientID)},
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "refresh token revoked", body(w))
}

func TestRefreshGrantRotationRemovalFailure(t *testing.T) {
	collab := newFullCollab()
	collab.RemoveTokenFunc = func(clientID, tok string, kind provider.TokenKind) error {
		return errors.New("token store down")
	}
	_, handler := newProvider(t, collab)

	w := postForm(handler, accessTokenTarget, url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
		"refresh_token": {mintRefreshToken(t, testSubjectID, testClientID)},
	})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "failed to refresh token", body(w))
}

func TestRefreshGrantRotatesToken(t *testing.T) {
	collab := newFullCollab()
	_, handler := newProvider(t, collab)

	refreshToken := mintRefreshToken(t, "subject-1", testClientID)

	w := postForm(handler, accessTokenTarget, url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
		"refresh_token": {refreshToken},
	})
	require.Equal(t, http.StatusOK, w.Code)

	bundle := decodeBundle(t, w)
	require.NotEmpty(t, bundle["access_token"])
	require.NotEmpty(t, bundle["refresh_token"])
	assert.NotEqual(t, refreshToken, bundle["refresh_token"], "rotation must mint a fresh refresh token")

	require.Equal(t, []string{"AuthenticateRefreshToken", "RemoveToken", "TokenAttributes", "SaveTokenBundle"}, collab.CallNames())

	// The spent token is the one removed, as a refresh token.
	removeCall := collab.Calls()[1]
	assert.Equal(t, []any{testClientID, refreshToken, provider.RefreshTokenKind}, removeCall.Args)
}

func TestAuthorizationCodeGrantLookupFailure(t *testing.T) {
	collab := newFullCollab()
	collab.LookupGrantFunc = func(clientID, clientSecret, code string) (string, error) {
		return "", errors.New("grant code already consumed")
	}
	_, handler := newProvider(t, collab)

	w := postForm(handler, accessTokenTarget, url.Values{
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
		"code":          {"spent-code"},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "grant code already consumed", body(w))
	require.Equal(t, []string{"LookupGrant"}, collab.CallNames())
}

func TestAuthorizationCodeGrantSuccess(t *testing.T) {
	collab := newFullCollab()
	_, handler := newProvider(t, collab)

	w := postForm(handler, accessTokenTarget, url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
		"code":          {"code-123"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	bundle := decodeBundle(t, w)
	accessToken, _ := bundle["access_token"].(string)
	refreshToken, _ := bundle["refresh_token"].(string)
	require.NotEmpty(t, accessToken)
	require.NotEmpty(t, refreshToken)

	var payload token.Payload
	require.NoError(t, newSerializer(t).Parse(accessToken, &payload))
	assert.Equal(t, "subject-1", payload.SubjectID)
	assert.False(t, payload.IsRefresh())
	require.NoError(t, newSerializer(t).Parse(refreshToken, &payload))
	assert.True(t, payload.IsRefresh())

	// The consumed code is removed after the response.
	require.Equal(t, []string{"LookupGrant", "TokenAttributes", "SaveTokenBundle", "RemoveGrant"}, collab.CallNames())
	assert.Equal(t, []any{"subject-1", testClientID, "code-123"}, collab.Calls()[3].Args)
}

func TestAuthorizationCodeGrantCleanupFailureDoesNotAffectResponse(t *testing.T) {
	collab := newFullCollab()
	collab.RemoveGrantFunc = func(subjectID, clientID, code string) error {
		return errors.New("cleanup failed")
	}
	_, handler := newProvider(t, collab)

	w := postForm(handler, accessTokenTarget, url.Values{
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
		"code":          {"code-123"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, decodeBundle(t, w)["access_token"])
}

func TestIssueFailsOnReservedTokenOption(t *testing.T) {
	collab := newFullCollab()
	collab.TokenAttributesFunc = func(subjectID, clientID string) (any, map[string]any) {
		return nil, map[string]any{"access_token": "override"}
	}
	_, handler := newProvider(t, collab)

	w := postForm(handler, accessTokenTarget, url.Values{
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
		"code":          {"code-123"},
	})
	require.Equal(t, http.StatusInternalServerError, w.Code)
}
