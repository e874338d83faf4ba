package audit

import (
	"net"
	"net/http"
	"strings"

	"github.com/kubeconsole/kubeconsole/pkg/contextkeys"
)

// statusRecorder captures the response status for event classification.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records an audit event for every authentication endpoint
// request. Non-auth paths pass through untouched.
func Middleware(logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/v1/auth/") {
				next.ServeHTTP(w, r)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			event := NewEvent(classify(r, rec.status), statusOf(rec.status))
			event.Provider = provider(r.URL.Path)
			event.IPAddress = clientIP(r)
			event.UserAgent = r.UserAgent()
			event.RequestID = contextkeys.GetRequestID(r.Context())
			event.Path = r.URL.Path

			// Best effort: a failed audit write never fails the request.
			_ = logger.Log(r.Context(), event)
		})
	}
}

// classify maps an authentication request onto its event type.
func classify(r *http.Request, status int) EventType {
	switch {
	case strings.HasSuffix(r.URL.Path, "/login"):
		if status >= 400 {
			return EventTypeLoginFailed
		}
		return EventTypeLogin
	case strings.HasSuffix(r.URL.Path, "/signup"):
		if r.Header.Get("X-Kubeconsole-Validation-Token") != "" {
			return EventTypeSignupInvitation
		}
		return EventTypeSignupBootstrap
	case strings.HasSuffix(r.URL.Path, "/saml") && r.URL.Query().Get("slo") != "":
		return EventTypeLogout
	case r.Method == http.MethodPost, r.URL.Query().Get("code") != "":
		// Provider callbacks complete a login.
		if status >= 400 {
			return EventTypeLoginFailed
		}
		return EventTypeLogin
	default:
		return EventTypeRequest
	}
}

func statusOf(code int) EventStatus {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return EventStatusDenied
	case code >= 400:
		return EventStatusFailure
	default:
		return EventStatusSuccess
	}
}

func provider(path string) string {
	switch {
	case strings.HasSuffix(path, "/google"):
		return "google"
	case strings.HasSuffix(path, "/saml"):
		return "saml"
	case strings.HasSuffix(path, "/login"), strings.HasSuffix(path, "/signup"):
		return "password"
	default:
		return ""
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx > 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
