package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// Google OAuth2 endpoints. The issuer URL doubles as the OIDC discovery
// root for the userinfo fetch.
const (
	googleIssuer   = "https://accounts.google.com"
	googleAuthURL  = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"
)

// GoogleProfile is the external profile reported for an authenticated
// Google identity.
type GoogleProfile struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

// GoogleOrchestrator drives the Google OAuth2 login: redirect to the
// consent screen, exchange the callback code, fetch the profile, and
// resolve a local account. It never creates accounts.
type GoogleOrchestrator struct {
	accounts AccountStore
	settings SettingsStore
	logger   *logrus.Logger
	now      func() time.Time

	// exchange and fetchProfile delegate to the OAuth2 transport and are
	// replaceable in tests.
	exchange     func(ctx context.Context, cfg *oauth2.Config, code string) (*oauth2.Token, error)
	fetchProfile func(ctx context.Context, token *oauth2.Token) (*GoogleProfile, error)
}

// NewGoogleOrchestrator creates a Google OAuth2 login orchestrator.
func NewGoogleOrchestrator(accounts AccountStore, settings SettingsStore, logger *logrus.Logger) *GoogleOrchestrator {
	return &GoogleOrchestrator{
		accounts: accounts,
		settings: settings,
		logger:   logger,
		now:      time.Now,
		exchange: func(ctx context.Context, cfg *oauth2.Config, code string) (*oauth2.Token, error) {
			return cfg.Exchange(ctx, code)
		},
		fetchProfile: fetchGoogleProfile,
	}
}

// fetchGoogleProfile fetches the userinfo document through OIDC discovery
// and maps its claims.
func fetchGoogleProfile(ctx context.Context, token *oauth2.Token) (*GoogleProfile, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover provider: %w", err)
	}

	userInfo, err := provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	profile := &GoogleProfile{}
	if err := userInfo.Claims(profile); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	return profile, nil
}

func (o *GoogleOrchestrator) oauthConfig(settings *Settings) *oauth2.Config {
	google := settings.Authentication.GoogleOAuth
	return &oauth2.Config{
		ClientID:     google.Key,
		ClientSecret: google.Secret,
		RedirectURL:  google.RedirectURI,
		Scopes:       []string{"profile", "email"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  googleAuthURL,
			TokenURL: googleTokenURL,
		},
	}
}

// LoginURL returns the consent screen redirect target, or ProviderDisabled
// when Google OAuth2 is not configured.
func (o *GoogleOrchestrator) LoginURL(ctx context.Context) (string, error) {
	settings, err := o.settings.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load settings: %w", err)
	}
	if settings.Authentication.GoogleOAuth == nil {
		return "", ErrProviderDisabled("google")
	}

	o.logger.Debug("Redirecting to Google for authentication")
	return o.oauthConfig(settings).AuthCodeURL("", oauth2.SetAuthURLParam("approval_prompt", "auto")), nil
}

// HandleCallback exchanges the authorization code, fetches the external
// profile and resolves the local account by email. An invited account is
// validated on the spot; an unknown email is rejected.
func (o *GoogleOrchestrator) HandleCallback(ctx context.Context, code string) (*Account, error) {
	settings, err := o.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if settings.Authentication.GoogleOAuth == nil {
		return nil, ErrProviderDisabled("google")
	}

	o.logger.Debug("Google redirect received")

	token, err := o.exchange(ctx, o.oauthConfig(settings), code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	profile, err := o.fetchProfile(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}

	if !profile.VerifiedEmail {
		o.logger.WithField("email", profile.Email).Info("Google email not verified")
		return nil, ErrEmailNotVerified(profile.Email)
	}

	account, err := o.accounts.GetByEmail(ctx, profile.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			o.logger.WithField("email", profile.Email).Debug("Account not found")
			return nil, ErrAccountNotFound()
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if !account.Validated() {
		o.logger.WithField("email", profile.Email).Debug("Account validated via Google OAuth2")
		firstName := profile.GivenName
		if firstName == "" {
			firstName = profile.Name
		}
		if err := validateExternal(ctx, o.accounts, account, firstName, profile.FamilyName, o.now()); err != nil {
			return nil, fmt.Errorf("failed to validate account: %w", err)
		}
	}

	return account, nil
}
