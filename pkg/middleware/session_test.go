package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeconsole/kubeconsole/pkg/auth"
	"github.com/kubeconsole/kubeconsole/pkg/storage"
)

func newTestIssuer(t *testing.T) (*auth.Issuer, string) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := storage.NewMemoryStore(nil)
	account := &auth.Account{
		ID:       "account-1",
		Username: "alice@example.com",
		Email:    "alice@example.com",
		Role:     auth.RoleUser,
	}
	require.NoError(t, store.Accounts().Insert(context.Background(), account))

	issuer := auth.NewIssuer(store.Accounts(), []byte("test-secret"), logger)
	token, err := issuer.Issue(context.Background(), account, nil)
	require.NoError(t, err)
	return issuer, token
}

func echoSession() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims := GetSession(r); claims != nil {
			w.Header().Set("X-Test-Account", claims.AccountID)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestSessionMiddlewareHeaderToken(t *testing.T) {
	issuer, token := newTestIssuer(t)
	handler := SessionMiddleware(issuer, false)(echoSession())

	req := httptest.NewRequest("GET", "/api/v1/protected", nil)
	req.Header.Set(auth.SessionTokenHeader, token)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "account-1", recorder.Header().Get("X-Test-Account"))
}

func TestSessionMiddlewareCookieToken(t *testing.T) {
	issuer, token := newTestIssuer(t)
	handler := SessionMiddleware(issuer, false)(echoSession())

	req := httptest.NewRequest("GET", "/api/v1/protected", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionTokenHeader, Value: token})
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "account-1", recorder.Header().Get("X-Test-Account"))
}

func TestSessionMiddlewareMissingToken(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	handler := SessionMiddleware(issuer, false)(echoSession())

	req := httptest.NewRequest("GET", "/api/v1/protected", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestSessionMiddlewareInvalidToken(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	handler := SessionMiddleware(issuer, false)(echoSession())

	req := httptest.NewRequest("GET", "/api/v1/protected", nil)
	req.Header.Set(auth.SessionTokenHeader, "tampered")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestSessionMiddlewareOptionalInvalidTokenAnonymous(t *testing.T) {
	// Browsers resend the session cookie on every request, including the
	// login that would replace a stale one. A token that no longer decodes
	// must demote the request to anonymous instead of blocking it.
	issuer, _ := newTestIssuer(t)
	handler := SessionMiddleware(issuer, true)(echoSession())

	req := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	req.Header.Set(auth.SessionTokenHeader, "tampered")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, recorder.Header().Get("X-Test-Account"))
}

func TestSessionMiddlewareOptionalExpiresStaleCookie(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	handler := SessionMiddleware(issuer, true)(echoSession())

	req := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionTokenHeader, Value: "not-a-jwt"})
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)

	cookies := recorder.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionTokenHeader, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestSessionMiddlewareStaleCookieDoesNotBlockLogin(t *testing.T) {
	// Full login path behind the optional middleware, the way the server
	// wires it: valid credentials must win over a stale cookie.
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := storage.NewMemoryStore(nil)
	credential, err := auth.HashPassword("s3cret!pass")
	require.NoError(t, err)
	require.NoError(t, store.Accounts().Insert(context.Background(), &auth.Account{
		ID:         "account-1",
		Username:   "alice@example.com",
		Email:      "alice@example.com",
		Role:       auth.RoleUser,
		Credential: credential,
	}))

	handlers := auth.NewHandlers(store, []byte("test-secret"), logger)
	router := mux.NewRouter()
	handlers.RegisterRoutes(router)
	handler := SessionMiddleware(handlers.Issuer(), true)(router)

	body := `{"username":"alice@example.com","password":"s3cret!pass"}`
	req := httptest.NewRequest("POST", "/api/v1/auth/login", strings.NewReader(body))
	req.AddCookie(&http.Cookie{Name: auth.SessionTokenHeader, Value: "not-a-jwt"})
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "token")
}

func TestSessionMiddlewareOptionalBadHeaderNoCookieWrite(t *testing.T) {
	// Without a cookie on the request there is nothing to expire.
	issuer, _ := newTestIssuer(t)
	handler := SessionMiddleware(issuer, true)(echoSession())

	req := httptest.NewRequest("GET", "/api/v1/auth/providers", nil)
	req.Header.Set(auth.SessionTokenHeader, "tampered")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, recorder.Result().Cookies())
}

func TestSessionMiddlewareOptionalAnonymous(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	handler := SessionMiddleware(issuer, true)(echoSession())

	req := httptest.NewRequest("GET", "/api/v1/auth/providers", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, recorder.Header().Get("X-Test-Account"))
}
