package auth

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores when no record matches.
var ErrNotFound = errors.New("auth: not found")

// AccountStore persists accounts. Lookups return ErrNotFound when no account
// matches. Update rewrites the whole record; there is no optimistic
// concurrency guard, so concurrent writers to the same account race and the
// last writer wins.
type AccountStore interface {
	Any(ctx context.Context) (bool, error)
	Count(ctx context.Context) (int64, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByInviteToken(ctx context.Context, token string) (*Account, error)
	Insert(ctx context.Context, account *Account) error
	Update(ctx context.Context, account *Account) error
}

// NamespaceStore persists namespaces keyed by name.
type NamespaceStore interface {
	GetByName(ctx context.Context, name string) (*Namespace, error)
	Insert(ctx context.Context, namespace *Namespace) error
	Update(ctx context.Context, namespace *Namespace) error
}

// SettingsStore fetches the single authentication settings document.
type SettingsStore interface {
	Get(ctx context.Context) (*Settings, error)
}

// Store bundles the persistence collaborators the auth core needs.
type Store interface {
	Accounts() AccountStore
	Namespaces() NamespaceStore
	Settings() SettingsStore
}
