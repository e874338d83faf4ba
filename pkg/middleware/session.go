package middleware

import (
	"net/http"

	"github.com/kubeconsole/kubeconsole/pkg/auth"
	"github.com/kubeconsole/kubeconsole/pkg/contextkeys"
	"github.com/kubeconsole/kubeconsole/pkg/httputil"
)

// SessionMiddleware authenticates requests with a session token carried in
// the session header or cookie. When optional is true, requests without a
// valid token pass through anonymously; the token rides a cookie browsers
// send on every request, so a stale one must not block the login endpoints
// that would replace it. Stale cookies are expired on the way through.
// When optional is false a missing or invalid token is rejected.
func SessionMiddleware(issuer *auth.Issuer, optional bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r)
			if token == "" {
				if optional {
					next.ServeHTTP(w, r)
					return
				}
				httputil.WriteUnauthorized(w, "Authentication required.")
				return
			}

			claims, err := issuer.Decode(token)
			if err != nil {
				if optional {
					expireSessionCookie(w, r)
					next.ServeHTTP(w, r)
					return
				}
				httputil.WriteUnauthorized(w, "Invalid token.")
				return
			}

			ctx := contextkeys.WithSession(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionToken reads the session token from the request header, falling back
// to the cookie.
func sessionToken(r *http.Request) string {
	if token := r.Header.Get(auth.SessionTokenHeader); token != "" {
		return token
	}
	if cookie, err := r.Cookie(auth.SessionTokenHeader); err == nil {
		return cookie.Value
	}
	return ""
}

// expireSessionCookie overwrites an undecodable session cookie so the
// client stops resending it.
func expireSessionCookie(w http.ResponseWriter, r *http.Request) {
	if _, err := r.Cookie(auth.SessionTokenHeader); err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionTokenHeader,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetSession returns the session claims set by SessionMiddleware, or nil for
// anonymous requests.
func GetSession(r *http.Request) *auth.Claims {
	claims, ok := r.Context().Value(contextkeys.SessionKey).(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}
