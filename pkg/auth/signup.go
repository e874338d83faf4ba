package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SignupRequest is the body of POST /api/v1/auth/signup, shared by bootstrap
// signup and invitation acceptance.
type SignupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
}

func (r *SignupRequest) validate() error {
	if r.Email == "" {
		return ErrValidation("Email is required.")
	}
	if r.Password == "" {
		return ErrValidation("Password is required.")
	}
	if r.FirstName == "" {
		return ErrValidation("First name is required.")
	}
	if r.LastName == "" {
		return ErrValidation("Last name is required.")
	}
	return nil
}

// Lifecycle owns the account state transitions: bootstrap admin signup and
// invitation acceptance.
type Lifecycle struct {
	accounts   AccountStore
	namespaces NamespaceStore
	logger     *logrus.Logger
	now        func() time.Time
}

// NewLifecycle creates an account lifecycle manager.
func NewLifecycle(accounts AccountStore, namespaces NamespaceStore, logger *logrus.Logger) *Lifecycle {
	return &Lifecycle{
		accounts:   accounts,
		namespaces: namespaces,
		logger:     logger,
		now:        time.Now,
	}
}

// CompleteInvitation validates an invited account: the token and email must
// resolve to a not-yet-validated account. The account joins every namespace
// the invitation granted, gains a credential, and becomes active. Reusing a
// token after validation fails with InvitationNotFound.
func (l *Lifecycle) CompleteInvitation(ctx context.Context, validationToken string, req SignupRequest) (*Account, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	account, err := l.accounts.GetByInviteToken(ctx, validationToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvitationNotFound()
		}
		return nil, fmt.Errorf("failed to resolve invitation: %w", err)
	}
	if account.Email != req.Email || account.Validated() {
		return nil, ErrInvitationNotFound()
	}

	// Invitations are created from an email address alone.
	if account.Username == "" {
		account.Username = account.Email
	}

	for _, name := range account.Namespaces {
		namespace, err := l.namespaces.GetByName(ctx, name)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// The namespace was removed after the invitation
				// was sent. Membership there is simply lost.
				l.logger.WithField("namespace", name).Warn("Cannot find namespace")
				continue
			}
			return nil, fmt.Errorf("failed to load namespace %s: %w", name, err)
		}

		// Plain append, no dedup. A re-invited member ends up listed
		// twice.
		namespace.Members = append(namespace.Members, account.Username)
		if err := l.namespaces.Update(ctx, namespace); err != nil {
			return nil, fmt.Errorf("failed to update namespace %s: %w", name, err)
		}
	}
	account.Namespaces = nil

	credential, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := l.now().UTC()
	account.Credential = credential
	account.FirstName = req.FirstName
	account.LastName = req.LastName
	account.EmailValidatedAt = &now

	if err := l.accounts.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	l.logger.WithField("email", account.Email).Info("Invitation accepted")
	return account, nil
}

// Bootstrap creates the very first account as an administrator. It succeeds
// at most once system-wide; any later attempt fails with
// OnboardingAlreadyCompleted.
//
// The existence check and the insert are two separate store calls with no
// transaction around them, so two concurrent bootstrap requests can both
// pass the check and both insert an administrator.
func (l *Lifecycle) Bootstrap(ctx context.Context, req SignupRequest) (*Account, error) {
	exists, err := l.accounts.Any(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for accounts: %w", err)
	}
	if exists {
		return nil, ErrOnboardingCompleted()
	}

	if err := req.validate(); err != nil {
		return nil, err
	}

	credential, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := l.now().UTC()
	account := &Account{
		ID:               uuid.NewString(),
		Username:         req.Email,
		Email:            req.Email,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Role:             RoleAdministrator,
		Credential:       credential,
		EmailValidatedAt: &now,
	}

	if err := l.accounts.Insert(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	l.logger.WithField("email", account.Email).Info("Bootstrap administrator created")
	return account, nil
}

// validateExternal marks an invited account as validated after an external
// provider vouched for its email, filling in profile names reported by the
// provider.
func validateExternal(ctx context.Context, accounts AccountStore, account *Account, firstName, lastName string, now time.Time) error {
	if account.Username == "" {
		account.Username = account.Email
	}
	account.FirstName = firstName
	account.LastName = lastName
	validated := now.UTC()
	account.EmailValidatedAt = &validated
	return accounts.Update(ctx, account)
}
