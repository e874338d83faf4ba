package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/kubeconsole/kubeconsole/pkg/httputil"
)

// Handlers exposes the authentication core over HTTP.
type Handlers struct {
	discovery *Discovery
	verifier  *PasswordVerifier
	google    *GoogleOrchestrator
	saml      *SAMLOrchestrator
	lifecycle *Lifecycle
	issuer    *Issuer
	logger    *logrus.Logger
}

// NewHandlers wires the authentication components over the given store.
func NewHandlers(store Store, sessionSecret []byte, logger *logrus.Logger) *Handlers {
	accounts := store.Accounts()
	settings := store.Settings()
	return &Handlers{
		discovery: NewDiscovery(accounts, settings),
		verifier:  NewPasswordVerifier(accounts, logger),
		google:    NewGoogleOrchestrator(accounts, settings, logger),
		saml:      NewSAMLOrchestrator(accounts, settings, logger),
		lifecycle: NewLifecycle(accounts, store.Namespaces(), logger),
		issuer:    NewIssuer(accounts, sessionSecret, logger),
		logger:    logger,
	}
}

// Issuer exposes the session issuer, for middleware that only needs to
// decode tokens.
func (h *Handlers) Issuer() *Issuer { return h.issuer }

// RegisterRoutes registers the authentication API routes.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/auth/providers", h.listProviders).Methods("GET")
	router.HandleFunc("/api/v1/auth/login", h.passwordLogin).Methods("POST")
	router.HandleFunc("/api/v1/auth/signup", h.signup).Methods("POST")
	router.HandleFunc(GoogleAuthPath, h.googleLogin).Methods("GET")
	router.HandleFunc(SAMLAuthPath, h.samlRedirect).Methods("GET")
	router.HandleFunc(SAMLAuthPath, h.samlResponse).Methods("POST")
}

// writeError maps an authentication failure onto its HTTP status. Anything
// that is not an *Error is an internal fault and surfaces as 500 without
// detail.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	var authErr *Error
	if errors.As(err, &authErr) {
		httputil.WriteErrorMessage(w, authErr.Status, authErr.Message)
		return
	}
	h.logger.WithError(err).Error("Authentication request failed")
	httputil.WriteInternalError(w, errors.New("internal server error"))
}

// setSessionCookie delivers the session token as a cookie under the same
// name as the session header.
func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionTokenHeader,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionLifetime.Seconds()),
	})
}

// sessionToken reads the session token from the request header, falling
// back to the cookie.
func sessionToken(r *http.Request) string {
	if token := r.Header.Get(SessionTokenHeader); token != "" {
		return token
	}
	if cookie, err := r.Cookie(SessionTokenHeader); err == nil {
		return cookie.Value
	}
	return ""
}

// listProviders handles GET /api/v1/auth/providers.
func (h *Handlers) listProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.discovery.List(r.Context(), r.Header.Get(ValidationTokenHeader))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, providers)
}

type passwordLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// passwordLogin handles POST /api/v1/auth/login.
func (h *Handlers) passwordLogin(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Initiating password login")

	var req passwordLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, ErrInvalidRequestBody(err))
		return
	}
	if req.Username == "" {
		h.writeError(w, ErrValidation("Missing username in body request."))
		return
	}
	if req.Password == "" {
		h.writeError(w, ErrValidation("Missing password in body request."))
		return
	}

	account, err := h.verifier.Verify(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	token, err := h.issuer.Issue(r.Context(), account, nil)
	if err != nil {
		h.writeError(w, err)
		return
	}

	setSessionCookie(w, token)
	httputil.WriteSuccess(w, map[string]string{"token": token})
}

// signup handles POST /api/v1/auth/signup: invitation acceptance when the
// validation token header is present, bootstrap signup otherwise.
func (h *Handlers) signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, ErrInvalidRequestBody(err))
		return
	}

	var (
		account *Account
		err     error
	)
	if validationToken := r.Header.Get(ValidationTokenHeader); validationToken != "" {
		account, err = h.lifecycle.CompleteInvitation(r.Context(), validationToken, req)
	} else {
		account, err = h.lifecycle.Bootstrap(r.Context(), req)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	token, err := h.issuer.Issue(r.Context(), account, nil)
	if err != nil {
		h.writeError(w, err)
		return
	}

	setSessionCookie(w, token)
	httputil.WriteSuccess(w, map[string]string{"token": token})
}

// googleLogin handles GET /api/v1/auth/google. Without a code parameter it
// redirects to the consent screen; with one it completes the login.
func (h *Handlers) googleLogin(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Initiating Google OAuth")

	code := r.URL.Query().Get("code")
	if code == "" {
		url, err := h.google.LoginURL(r.Context())
		if err != nil {
			h.writeError(w, err)
			return
		}
		http.Redirect(w, r, url, http.StatusFound)
		return
	}

	account, err := h.google.HandleCallback(r.Context(), code)
	if err != nil {
		h.writeError(w, err)
		return
	}

	token, err := h.issuer.Issue(r.Context(), account, nil)
	if err != nil {
		h.writeError(w, err)
		return
	}

	setSessionCookie(w, token)
	http.Redirect(w, r, "/", http.StatusFound)
}

// samlRedirect handles GET /api/v1/auth/saml: login redirect, or single
// logout when the slo parameter is present.
func (h *Handlers) samlRedirect(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Initiating SAML 2.0 auth")

	if r.URL.Query().Get("slo") == "" {
		url, err := h.saml.LoginURL(r.Context())
		if err != nil {
			h.writeError(w, err)
			return
		}
		http.Redirect(w, r, url, http.StatusFound)
		return
	}

	encoded := sessionToken(r)
	if encoded == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	claims, err := h.issuer.Decode(encoded)
	if err != nil {
		h.logger.WithError(err).Info("Session token rejected during logout")
		h.writeError(w, err)
		return
	}
	if claims.Data == nil {
		h.writeError(w, ErrInvalidToken(errors.New("token carries no session data")))
		return
	}

	url, err := h.saml.LogoutURL(r.Context(), claims.Data)
	if err != nil {
		h.writeError(w, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// samlResponse handles POST /api/v1/auth/saml, the assertion consumer
// service.
func (h *Handlers) samlResponse(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("SAML redirect received")

	if err := r.ParseForm(); err != nil {
		h.writeError(w, ErrInvalidRequestBody(err))
		return
	}
	encodedResponse := r.FormValue("SAMLResponse")
	if encodedResponse == "" {
		h.writeError(w, ErrValidation("Missing SAMLResponse."))
		return
	}

	account, data, err := h.saml.HandleResponse(r.Context(), encodedResponse)
	if err != nil {
		h.writeError(w, err)
		return
	}

	token, err := h.issuer.Issue(r.Context(), account, data)
	if err != nil {
		h.writeError(w, err)
		return
	}

	setSessionCookie(w, token)
	http.Redirect(w, r, "/", http.StatusFound)
}
