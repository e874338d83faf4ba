package auth

import "time"

// Role values assigned to accounts.
const (
	RoleAdministrator = "administrator"
	RoleUser          = "user"
)

// Credential is a salted iterative password digest. Accounts that only ever
// authenticate through an external provider carry no credential at all.
type Credential struct {
	Salt   string `json:"salt"`
	Digest string `json:"hash"`
}

// Account is a console identity, independent of which provider
// authenticates it.
type Account struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Role      string `json:"role"`

	Credential *Credential `json:"-"`

	// EmailValidatedAt is nil while the account is still an invitation
	// awaiting its first login.
	EmailValidatedAt *time.Time `json:"email_validated_at,omitempty"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`

	// InviteToken correlates the invitation-acceptance request with this
	// account. Present only while the account is invited.
	InviteToken string `json:"-"`

	// Namespaces lists the namespaces the invitation grants membership to.
	// Consumed and cleared when the invitation is accepted.
	Namespaces []string `json:"namespaces,omitempty"`
}

// Validated reports whether the account has completed first-use validation.
func (a *Account) Validated() bool {
	return a.EmailValidatedAt != nil
}

// Namespace is an authorization scope. Members is an append-only list of
// usernames; duplicates are not prevented here.
type Namespace struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// Settings is the process-wide authentication configuration, read-only from
// this package's perspective. It is fetched per request and passed around as
// an immutable snapshot.
type Settings struct {
	// Hostname is the externally visible base URL of the console, e.g.
	// "https://console.example.com". SAML service-provider URLs derive
	// from it.
	Hostname       string                 `json:"hostname"`
	Authentication AuthenticationSettings `json:"authentication"`
}

// AuthenticationSettings describes the enabled providers. A nil sub-config
// means the provider is disabled.
type AuthenticationSettings struct {
	Password    *PasswordSettings    `json:"password,omitempty"`
	GoogleOAuth *GoogleOAuthSettings `json:"google_oauth,omitempty"`
	SAML        *SAMLSettings        `json:"saml,omitempty"`
}

// PasswordSettings configures local password login.
type PasswordSettings struct {
	// Regex is the username/password format constraint surfaced to the
	// login form through provider discovery.
	Regex string `json:"regex"`
}

// GoogleOAuthSettings configures the Google OAuth2 provider.
type GoogleOAuthSettings struct {
	Key         string `json:"key"`
	Secret      string `json:"secret"`
	RedirectURI string `json:"redirect_uri"`
}

// SAMLSettings configures the SAML 2.0 provider.
type SAMLSettings struct {
	// IdPEntityID is the identity provider's entity id (its metadata URI).
	IdPEntityID    string `json:"metadata_uri"`
	SignOnURL      string `json:"sign_on_uri"`
	SignOutURL     string `json:"sign_out_uri"`
	IdPCertificate string `json:"idp_certificate"`

	// SPCertificate and SPKey, when both present, switch the service
	// provider to strict mode: requests are signed and assertions must be
	// signed.
	SPCertificate string `json:"sp_certificate,omitempty"`
	SPKey         string `json:"sp_key,omitempty"`

	// Attribute names carrying profile fields in the assertion.
	EmailAttribute     string `json:"email_mapping"`
	FirstNameAttribute string `json:"first_name_mapping"`
	LastNameAttribute  string `json:"last_name_mapping"`
}

// SessionData is the provider-specific blob carried inside session token
// claims. Only SAML uses it, to drive single logout later.
type SessionData struct {
	NameID       string `json:"name_id"`
	SessionIndex string `json:"session_index"`
}
