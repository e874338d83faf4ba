package auth

import (
	"context"
	"errors"
	"fmt"
)

// Provider initiation paths surfaced through discovery.
const (
	GoogleAuthPath = "/api/v1/auth/google"
	SAMLAuthPath   = "/api/v1/auth/saml"
)

// Discovery computes which login methods are currently offered to an
// anonymous caller.
type Discovery struct {
	accounts AccountStore
	settings SettingsStore
}

// NewDiscovery creates a provider discovery.
func NewDiscovery(accounts AccountStore, settings SettingsStore) *Discovery {
	return &Discovery{accounts: accounts, settings: settings}
}

// List returns one entry per enabled provider. An empty result signals the
// bootstrap signup flow: no accounts exist yet, so there is nothing to log
// in to.
//
// When validationToken resolves to a pending invitation, the result also
// carries that account's email so the client can pre-fill the acceptance
// form. The disclosure is gated by possession of the token.
func (d *Discovery) List(ctx context.Context, validationToken string) (map[string]any, error) {
	exists, err := d.accounts.Any(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for accounts: %w", err)
	}
	if !exists {
		return map[string]any{}, nil
	}

	settings, err := d.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	providers := map[string]any{}
	if settings.Authentication.GoogleOAuth != nil {
		providers["google"] = map[string]string{"auth_url": GoogleAuthPath}
	}
	if settings.Authentication.SAML != nil {
		providers["saml"] = map[string]string{"auth_url": SAMLAuthPath}
	}
	if settings.Authentication.Password != nil {
		providers["password"] = map[string]string{"regex": settings.Authentication.Password.Regex}
	}

	if validationToken != "" {
		account, err := d.accounts.GetByInviteToken(ctx, validationToken)
		switch {
		case err == nil:
			if !account.Validated() {
				providers["email"] = account.Email
			}
		case errors.Is(err, ErrNotFound):
			// Unknown token: reveal nothing.
		default:
			return nil, fmt.Errorf("failed to resolve validation token: %w", err)
		}
	}

	return providers, nil
}
