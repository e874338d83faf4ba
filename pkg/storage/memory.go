package storage

import (
	"context"
	"sync"

	"github.com/kubeconsole/kubeconsole/pkg/auth"
)

// MemoryStore is a mutex-guarded in-memory auth.Store. It backs development
// mode and tests.
type MemoryStore struct {
	mu         sync.RWMutex
	accounts   map[string]*auth.Account // keyed by id
	namespaces map[string]*auth.Namespace
	settings   *auth.Settings
}

// NewMemoryStore creates an empty in-memory store serving the given
// settings snapshot.
func NewMemoryStore(settings *auth.Settings) *MemoryStore {
	if settings == nil {
		settings = &auth.Settings{}
	}
	return &MemoryStore{
		accounts:   make(map[string]*auth.Account),
		namespaces: make(map[string]*auth.Namespace),
		settings:   settings,
	}
}

// Accounts implements auth.Store.
func (s *MemoryStore) Accounts() auth.AccountStore { return (*memoryAccounts)(s) }

// Namespaces implements auth.Store.
func (s *MemoryStore) Namespaces() auth.NamespaceStore { return (*memoryNamespaces)(s) }

// Settings implements auth.Store.
func (s *MemoryStore) Settings() auth.SettingsStore { return (*memorySettings)(s) }

// SetSettings replaces the settings snapshot served to subsequent reads.
func (s *MemoryStore) SetSettings(settings *auth.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

func copyAccount(a *auth.Account) *auth.Account {
	dup := *a
	if a.Credential != nil {
		cred := *a.Credential
		dup.Credential = &cred
	}
	if a.EmailValidatedAt != nil {
		t := *a.EmailValidatedAt
		dup.EmailValidatedAt = &t
	}
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		dup.LastLoginAt = &t
	}
	dup.Namespaces = append([]string(nil), a.Namespaces...)
	return &dup
}

func copyNamespace(n *auth.Namespace) *auth.Namespace {
	dup := *n
	dup.Members = append([]string(nil), n.Members...)
	return &dup
}

type memoryAccounts MemoryStore

func (s *memoryAccounts) Any(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts) > 0, nil
}

func (s *memoryAccounts) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.accounts)), nil
}

func (s *memoryAccounts) GetByUsername(ctx context.Context, username string) (*auth.Account, error) {
	return s.find(func(a *auth.Account) bool { return a.Username == username })
}

func (s *memoryAccounts) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	return s.find(func(a *auth.Account) bool { return a.Email == email })
}

func (s *memoryAccounts) GetByInviteToken(ctx context.Context, token string) (*auth.Account, error) {
	return s.find(func(a *auth.Account) bool { return a.InviteToken != "" && a.InviteToken == token })
}

func (s *memoryAccounts) find(match func(*auth.Account) bool) (*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if match(a) {
			return copyAccount(a), nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *memoryAccounts) Insert(ctx context.Context, account *auth.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = copyAccount(account)
	return nil
}

func (s *memoryAccounts) Update(ctx context.Context, account *auth.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; !ok {
		return auth.ErrNotFound
	}
	s.accounts[account.ID] = copyAccount(account)
	return nil
}

type memoryNamespaces MemoryStore

func (s *memoryNamespaces) GetByName(ctx context.Context, name string) (*auth.Namespace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	namespace, ok := s.namespaces[name]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return copyNamespace(namespace), nil
}

func (s *memoryNamespaces) Insert(ctx context.Context, namespace *auth.Namespace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.namespaces[namespace.Name] = copyNamespace(namespace)
	return nil
}

func (s *memoryNamespaces) Update(ctx context.Context, namespace *auth.Namespace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.namespaces[namespace.Name]; !ok {
		return auth.ErrNotFound
	}
	s.namespaces[namespace.Name] = copyNamespace(namespace)
	return nil
}

type memorySettings MemoryStore

func (s *memorySettings) Get(ctx context.Context) (*auth.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}
