package auth

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// stubAccounts is an in-memory AccountStore with injectable failures.
type stubAccounts struct {
	accounts map[string]*Account

	anyErr    error
	getErr    error
	insertErr error
	updateErr error

	getByEmailCalls int
}

func newStubAccounts(accounts ...*Account) *stubAccounts {
	s := &stubAccounts{accounts: make(map[string]*Account)}
	for _, account := range accounts {
		s.accounts[account.ID] = account
	}
	return s
}

func (s *stubAccounts) Any(ctx context.Context) (bool, error) {
	if s.anyErr != nil {
		return false, s.anyErr
	}
	return len(s.accounts) > 0, nil
}

func (s *stubAccounts) Count(ctx context.Context) (int64, error) {
	return int64(len(s.accounts)), nil
}

func (s *stubAccounts) find(match func(*Account) bool) (*Account, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	for _, account := range s.accounts {
		if match(account) {
			return account, nil
		}
	}
	return nil, ErrNotFound
}

func (s *stubAccounts) GetByUsername(ctx context.Context, username string) (*Account, error) {
	return s.find(func(a *Account) bool { return a.Username == username })
}

func (s *stubAccounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	s.getByEmailCalls++
	return s.find(func(a *Account) bool { return a.Email == email })
}

func (s *stubAccounts) GetByInviteToken(ctx context.Context, token string) (*Account, error) {
	return s.find(func(a *Account) bool { return a.InviteToken != "" && a.InviteToken == token })
}

func (s *stubAccounts) Insert(ctx context.Context, account *Account) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.accounts[account.ID] = account
	return nil
}

func (s *stubAccounts) Update(ctx context.Context, account *Account) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.accounts[account.ID]; !ok {
		return ErrNotFound
	}
	s.accounts[account.ID] = account
	return nil
}

type stubNamespaces struct {
	namespaces map[string]*Namespace
	updateErr  error
}

func newStubNamespaces(namespaces ...*Namespace) *stubNamespaces {
	s := &stubNamespaces{namespaces: make(map[string]*Namespace)}
	for _, namespace := range namespaces {
		s.namespaces[namespace.Name] = namespace
	}
	return s
}

func (s *stubNamespaces) GetByName(ctx context.Context, name string) (*Namespace, error) {
	namespace, ok := s.namespaces[name]
	if !ok {
		return nil, ErrNotFound
	}
	return namespace, nil
}

func (s *stubNamespaces) Insert(ctx context.Context, namespace *Namespace) error {
	s.namespaces[namespace.Name] = namespace
	return nil
}

func (s *stubNamespaces) Update(ctx context.Context, namespace *Namespace) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.namespaces[namespace.Name]; !ok {
		return ErrNotFound
	}
	s.namespaces[namespace.Name] = namespace
	return nil
}

type stubSettings struct {
	settings *Settings
	err      error
}

func (s *stubSettings) Get(ctx context.Context) (*Settings, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.settings, nil
}

type stubStore struct {
	accounts   *stubAccounts
	namespaces *stubNamespaces
	settings   *stubSettings
}

func newStubStore(settings *Settings) *stubStore {
	if settings == nil {
		settings = &Settings{}
	}
	return &stubStore{
		accounts:   newStubAccounts(),
		namespaces: newStubNamespaces(),
		settings:   &stubSettings{settings: settings},
	}
}

func (s *stubStore) Accounts() AccountStore     { return s.accounts }
func (s *stubStore) Namespaces() NamespaceStore { return s.namespaces }
func (s *stubStore) Settings() SettingsStore    { return s.settings }
