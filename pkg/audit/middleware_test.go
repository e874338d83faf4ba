package audit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeconsole/kubeconsole/pkg/contextkeys"
)

func auditTestHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
}

func TestMiddlewareSkipsNonAuthPaths(t *testing.T) {
	capture := &captureLogger{}
	handler := Middleware(capture)(auditTestHandler(http.StatusOK))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/namespaces", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Empty(t, capture.events)
}

func TestMiddlewareLoginSuccess(t *testing.T) {
	capture := &captureLogger{}
	handler := Middleware(capture)(auditTestHandler(http.StatusOK))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.Header.Set("User-Agent", "curl/8.0")
	req.RemoteAddr = "203.0.113.7:51234"
	req = req.WithContext(contextkeys.WithRequestID(req.Context(), "req-42"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, capture.events, 1)
	event := capture.events[0]
	assert.Equal(t, EventTypeLogin, event.EventType)
	assert.Equal(t, EventStatusSuccess, event.Status)
	assert.Equal(t, "password", event.Provider)
	assert.Equal(t, "203.0.113.7", event.IPAddress)
	assert.Equal(t, "curl/8.0", event.UserAgent)
	assert.Equal(t, "req-42", event.RequestID)
	assert.Equal(t, "/api/v1/auth/login", event.Path)
}

func TestMiddlewareLoginDenied(t *testing.T) {
	capture := &captureLogger{}
	handler := Middleware(capture)(auditTestHandler(http.StatusUnauthorized))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, capture.events, 1)
	assert.Equal(t, EventTypeLoginFailed, capture.events[0].EventType)
	assert.Equal(t, EventStatusDenied, capture.events[0].Status)
}

func TestMiddlewareSignupFlows(t *testing.T) {
	tests := []struct {
		name            string
		validationToken string
		want            EventType
	}{
		{"bootstrap", "", EventTypeSignupBootstrap},
		{"invitation", "some-jwt", EventTypeSignupInvitation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capture := &captureLogger{}
			handler := Middleware(capture)(auditTestHandler(http.StatusOK))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", nil)
			if tt.validationToken != "" {
				req.Header.Set("X-Kubeconsole-Validation-Token", tt.validationToken)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			require.Len(t, capture.events, 1)
			assert.Equal(t, tt.want, capture.events[0].EventType)
		})
	}
}

func TestMiddlewareSAMLLogout(t *testing.T) {
	capture := &captureLogger{}
	handler := Middleware(capture)(auditTestHandler(http.StatusFound))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/saml?slo=1", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, capture.events, 1)
	assert.Equal(t, EventTypeLogout, capture.events[0].EventType)
	assert.Equal(t, "saml", capture.events[0].Provider)
}

func TestMiddlewareGoogleCallback(t *testing.T) {
	capture := &captureLogger{}
	handler := Middleware(capture)(auditTestHandler(http.StatusFound))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/google?code=abc&state=xyz", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, capture.events, 1)
	assert.Equal(t, EventTypeLogin, capture.events[0].EventType)
	assert.Equal(t, "google", capture.events[0].Provider)
}

func TestMiddlewareProvidersListing(t *testing.T) {
	capture := &captureLogger{}
	handler := Middleware(capture)(auditTestHandler(http.StatusOK))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/providers", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, capture.events, 1)
	assert.Equal(t, EventTypeRequest, capture.events[0].EventType)
	assert.Empty(t, capture.events[0].Provider)
}

func TestMiddlewareImplicitOK(t *testing.T) {
	// Handlers that never call WriteHeader still count as 200.
	capture := &captureLogger{}
	handler := Middleware(capture)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, capture.events, 1)
	assert.Equal(t, EventStatusSuccess, capture.events[0].Status)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr", "203.0.113.7:51234", nil, "203.0.113.7"},
		{"forwarded single", "10.0.0.1:80", map[string]string{"X-Forwarded-For": "198.51.100.4"}, "198.51.100.4"},
		{"forwarded chain", "10.0.0.1:80", map[string]string{"X-Forwarded-For": "198.51.100.4, 10.0.0.2"}, "198.51.100.4"},
		{"real ip", "10.0.0.1:80", map[string]string{"X-Real-IP": "198.51.100.9"}, "198.51.100.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/providers", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
