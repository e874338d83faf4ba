package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kubeconsole/kubeconsole/pkg/auth"
)

// Store is the PostgreSQL-backed implementation of auth.Store.
type Store struct {
	conns *ConnectionManager
}

// NewStore creates a store over an established connection manager.
func NewStore(conns *ConnectionManager) *Store {
	return &Store{conns: conns}
}

// EnsureSchema creates the required tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			credential JSONB,
			email_validated_at TIMESTAMPTZ,
			last_login_at TIMESTAMPTZ,
			invite_token TEXT NOT NULL DEFAULT '',
			namespaces JSONB NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_invite_token ON accounts(invite_token) WHERE invite_token <> ''`,
		`CREATE TABLE IF NOT EXISTS namespaces (
			name TEXT PRIMARY KEY,
			members JSONB NOT NULL DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			hostname TEXT NOT NULL,
			authentication JSONB NOT NULL DEFAULT '{}'
		)`,
	}
	for _, statement := range statements {
		if _, err := s.conns.Primary().ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// Accounts returns the account store.
func (s *Store) Accounts() auth.AccountStore { return (*accountStore)(s) }

// Namespaces returns the namespace store.
func (s *Store) Namespaces() auth.NamespaceStore { return (*namespaceStore)(s) }

// Settings returns the settings store.
func (s *Store) Settings() auth.SettingsStore { return (*settingsStore)(s) }

// Close releases the underlying connections.
func (s *Store) Close() error { return s.conns.Close() }

type accountStore Store

const accountColumns = `id, username, email, first_name, last_name, role, credential, email_validated_at, last_login_at, invite_token, namespaces`

func (s *accountStore) Any(ctx context.Context) (bool, error) {
	var exists bool
	err := s.conns.Replica().QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts)`).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check accounts: %w", err)
	}
	return exists, nil
}

func (s *accountStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.conns.Replica().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}

func (s *accountStore) GetByUsername(ctx context.Context, username string) (*auth.Account, error) {
	return s.getWhere(ctx, `username = $1`, username)
}

func (s *accountStore) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	return s.getWhere(ctx, `email = $1`, email)
}

func (s *accountStore) GetByInviteToken(ctx context.Context, token string) (*auth.Account, error) {
	return s.getWhere(ctx, `invite_token = $1 AND invite_token <> ''`, token)
}

func (s *accountStore) getWhere(ctx context.Context, where string, arg interface{}) (*auth.Account, error) {
	row := s.conns.Replica().QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE `+where, arg)
	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (s *accountStore) Insert(ctx context.Context, account *auth.Account) error {
	credential, namespaces, err := marshalAccountFields(account)
	if err != nil {
		return err
	}
	_, err = s.conns.Primary().ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		account.ID, account.Username, account.Email,
		account.FirstName, account.LastName, account.Role,
		credential, nullTime(account.EmailValidatedAt), nullTime(account.LastLoginAt),
		account.InviteToken, namespaces)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

func (s *accountStore) Update(ctx context.Context, account *auth.Account) error {
	credential, namespaces, err := marshalAccountFields(account)
	if err != nil {
		return err
	}
	result, err := s.conns.Primary().ExecContext(ctx,
		`UPDATE accounts SET username = $2, email = $3, first_name = $4,
		 last_name = $5, role = $6, credential = $7, email_validated_at = $8,
		 last_login_at = $9, invite_token = $10, namespaces = $11
		 WHERE id = $1`,
		account.ID, account.Username, account.Email,
		account.FirstName, account.LastName, account.Role,
		credential, nullTime(account.EmailValidatedAt), nullTime(account.LastLoginAt),
		account.InviteToken, namespaces)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func marshalAccountFields(account *auth.Account) ([]byte, []byte, error) {
	var credential []byte
	if account.Credential != nil {
		var err error
		credential, err = json.Marshal(account.Credential)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal credential: %w", err)
		}
	}
	names := account.Namespaces
	if names == nil {
		names = []string{}
	}
	namespaces, err := json.Marshal(names)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal namespaces: %w", err)
	}
	return credential, namespaces, nil
}

func scanAccount(row *sql.Row) (*auth.Account, error) {
	var (
		account          auth.Account
		credential       []byte
		emailValidatedAt sql.NullTime
		lastLoginAt      sql.NullTime
		namespaces       []byte
	)
	err := row.Scan(&account.ID, &account.Username, &account.Email,
		&account.FirstName, &account.LastName, &account.Role,
		&credential, &emailValidatedAt, &lastLoginAt,
		&account.InviteToken, &namespaces)
	if err != nil {
		return nil, err
	}
	if len(credential) > 0 {
		account.Credential = &auth.Credential{}
		if err := json.Unmarshal(credential, account.Credential); err != nil {
			return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
		}
	}
	if emailValidatedAt.Valid {
		t := emailValidatedAt.Time
		account.EmailValidatedAt = &t
	}
	if lastLoginAt.Valid {
		t := lastLoginAt.Time
		account.LastLoginAt = &t
	}
	if len(namespaces) > 0 {
		if err := json.Unmarshal(namespaces, &account.Namespaces); err != nil {
			return nil, fmt.Errorf("failed to unmarshal namespaces: %w", err)
		}
	}
	return &account, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

type namespaceStore Store

func (s *namespaceStore) GetByName(ctx context.Context, name string) (*auth.Namespace, error) {
	var (
		namespace auth.Namespace
		members   []byte
	)
	err := s.conns.Replica().QueryRowContext(ctx,
		`SELECT name, members FROM namespaces WHERE name = $1`, name).
		Scan(&namespace.Name, &members)
	if err == sql.ErrNoRows {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get namespace: %w", err)
	}
	if len(members) > 0 {
		if err := json.Unmarshal(members, &namespace.Members); err != nil {
			return nil, fmt.Errorf("failed to unmarshal members: %w", err)
		}
	}
	return &namespace, nil
}

func (s *namespaceStore) Insert(ctx context.Context, namespace *auth.Namespace) error {
	members, err := marshalMembers(namespace)
	if err != nil {
		return err
	}
	_, err = s.conns.Primary().ExecContext(ctx,
		`INSERT INTO namespaces (name, members) VALUES ($1, $2)`,
		namespace.Name, members)
	if err != nil {
		return fmt.Errorf("failed to insert namespace: %w", err)
	}
	return nil
}

func (s *namespaceStore) Update(ctx context.Context, namespace *auth.Namespace) error {
	members, err := marshalMembers(namespace)
	if err != nil {
		return err
	}
	result, err := s.conns.Primary().ExecContext(ctx,
		`UPDATE namespaces SET members = $2 WHERE name = $1`,
		namespace.Name, members)
	if err != nil {
		return fmt.Errorf("failed to update namespace: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update namespace: %w", err)
	}
	if affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func marshalMembers(namespace *auth.Namespace) ([]byte, error) {
	members := namespace.Members
	if members == nil {
		members = []string{}
	}
	data, err := json.Marshal(members)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal members: %w", err)
	}
	return data, nil
}

type settingsStore Store

func (s *settingsStore) Get(ctx context.Context) (*auth.Settings, error) {
	var (
		settings       auth.Settings
		authentication []byte
	)
	err := s.conns.Replica().QueryRowContext(ctx,
		`SELECT hostname, authentication FROM settings WHERE id = 1`).
		Scan(&settings.Hostname, &authentication)
	if err == sql.ErrNoRows {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	if len(authentication) > 0 {
		if err := json.Unmarshal(authentication, &settings.Authentication); err != nil {
			return nil, fmt.Errorf("failed to unmarshal authentication settings: %w", err)
		}
	}
	return &settings, nil
}
