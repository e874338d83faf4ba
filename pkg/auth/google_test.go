package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func googleSettings() *Settings {
	return &Settings{
		Hostname: "https://console.example.com",
		Authentication: AuthenticationSettings{
			GoogleOAuth: &GoogleOAuthSettings{
				Key:         "client-id",
				Secret:      "client-secret",
				RedirectURI: "https://console.example.com/api/v1/auth/google",
			},
		},
	}
}

func newTestGoogle(accounts *stubAccounts, settings *Settings, profile *GoogleProfile, profileErr error) *GoogleOrchestrator {
	orchestrator := NewGoogleOrchestrator(accounts, &stubSettings{settings: settings}, newTestLogger())
	orchestrator.now = func() time.Time {
		return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	orchestrator.exchange = func(ctx context.Context, cfg *oauth2.Config, code string) (*oauth2.Token, error) {
		if code != "valid-code" {
			return nil, errors.New("invalid code")
		}
		return &oauth2.Token{AccessToken: "access-token"}, nil
	}
	orchestrator.fetchProfile = func(ctx context.Context, token *oauth2.Token) (*GoogleProfile, error) {
		return profile, profileErr
	}
	return orchestrator
}

func TestGoogleLoginURL(t *testing.T) {
	orchestrator := newTestGoogle(newStubAccounts(), googleSettings(), nil, nil)

	loginURL, err := orchestrator.LoginURL(context.Background())
	require.NoError(t, err)

	parsed, err := url.Parse(loginURL)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(loginURL, googleAuthURL))
	query := parsed.Query()
	assert.Equal(t, "client-id", query.Get("client_id"))
	assert.Equal(t, "https://console.example.com/api/v1/auth/google", query.Get("redirect_uri"))
	assert.Equal(t, "profile email", query.Get("scope"))
	assert.Equal(t, "auto", query.Get("approval_prompt"))
}

func TestGoogleDisabled(t *testing.T) {
	orchestrator := newTestGoogle(newStubAccounts(), &Settings{}, nil, nil)

	_, err := orchestrator.LoginURL(context.Background())
	assertAuthError(t, err, CodeProviderDisabled, 403)

	_, err = orchestrator.HandleCallback(context.Background(), "valid-code")
	assertAuthError(t, err, CodeProviderDisabled, 403)
}

func TestGoogleCallbackSuccess(t *testing.T) {
	validatedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	accounts := newStubAccounts(&Account{
		ID:               "account-1",
		Email:            "alice@example.com",
		EmailValidatedAt: &validatedAt,
	})
	profile := &GoogleProfile{Email: "alice@example.com", VerifiedEmail: true}
	orchestrator := newTestGoogle(accounts, googleSettings(), profile, nil)

	account, err := orchestrator.HandleCallback(context.Background(), "valid-code")
	require.NoError(t, err)
	assert.Equal(t, "account-1", account.ID)
}

func TestGoogleCallbackUnverifiedEmail(t *testing.T) {
	accounts := newStubAccounts(&Account{ID: "account-1", Email: "alice@example.com"})
	profile := &GoogleProfile{Email: "alice@example.com", VerifiedEmail: false}
	orchestrator := newTestGoogle(accounts, googleSettings(), profile, nil)

	_, err := orchestrator.HandleCallback(context.Background(), "valid-code")
	assertAuthError(t, err, CodeEmailNotVerified, 401)
	// Rejected before any account lookup.
	assert.Zero(t, accounts.getByEmailCalls)
}

func TestGoogleCallbackUnknownEmail(t *testing.T) {
	profile := &GoogleProfile{Email: "nobody@example.com", VerifiedEmail: true}
	orchestrator := newTestGoogle(newStubAccounts(), googleSettings(), profile, nil)

	_, err := orchestrator.HandleCallback(context.Background(), "valid-code")
	assertAuthError(t, err, CodeAccountNotFound, 400)
}

func TestGoogleCallbackExchangeFailure(t *testing.T) {
	orchestrator := newTestGoogle(newStubAccounts(), googleSettings(), nil, nil)

	_, err := orchestrator.HandleCallback(context.Background(), "bad-code")
	require.Error(t, err)
	var authErr *Error
	assert.False(t, errors.As(err, &authErr))
}

func TestGoogleCallbackValidatesInvitedAccount(t *testing.T) {
	tests := []struct {
		name      string
		profile   *GoogleProfile
		firstName string
		lastName  string
	}{
		{
			name: "given name preferred",
			profile: &GoogleProfile{
				Email: "alice@example.com", VerifiedEmail: true,
				Name: "Alice Doe", GivenName: "Alice", FamilyName: "Doe",
			},
			firstName: "Alice",
			lastName:  "Doe",
		},
		{
			name: "full name fallback",
			profile: &GoogleProfile{
				Email: "alice@example.com", VerifiedEmail: true,
				Name: "Alice Doe",
			},
			firstName: "Alice Doe",
			lastName:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := newStubAccounts(&Account{
				ID:          "invited-1",
				Email:       "alice@example.com",
				InviteToken: "invite-token-1",
			})
			orchestrator := newTestGoogle(accounts, googleSettings(), tt.profile, nil)

			account, err := orchestrator.HandleCallback(context.Background(), "valid-code")
			require.NoError(t, err)
			assert.True(t, account.Validated())
			assert.Equal(t, tt.firstName, account.FirstName)
			assert.Equal(t, tt.lastName, account.LastName)
			assert.Equal(t, "alice@example.com", account.Username)
		})
	}
}
