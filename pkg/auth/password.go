package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// saltLength is the number of random bytes in a credential salt.
	saltLength = 32
	// hashIterations is the PBKDF2 iteration count.
	hashIterations = 40000
	// hashKeyLength is the derived digest length in bytes.
	hashKeyLength = 64
)

// HashPassword derives a salted credential from a plaintext password.
func HashPassword(password string) (*Credential, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	digest := pbkdf2.Key([]byte(password), salt, hashIterations, hashKeyLength, sha512.New)
	return &Credential{
		Salt:   hex.EncodeToString(salt),
		Digest: hex.EncodeToString(digest),
	}, nil
}

// Verify recomputes the digest with the stored salt and compares it in
// constant time.
func (c *Credential) Verify(password string) bool {
	salt, err := hex.DecodeString(c.Salt)
	if err != nil {
		return false
	}
	stored, err := hex.DecodeString(c.Digest)
	if err != nil {
		return false
	}

	digest := pbkdf2.Key([]byte(password), salt, hashIterations, hashKeyLength, sha512.New)
	return subtle.ConstantTimeCompare(digest, stored) == 1
}

// PasswordVerifier validates local credentials against stored digests.
type PasswordVerifier struct {
	accounts AccountStore
	logger   *logrus.Logger

	// dummy absorbs the digest computation for unknown usernames so the
	// missing-account and wrong-password paths cost the same.
	dummy *Credential
}

// NewPasswordVerifier creates a password verifier.
func NewPasswordVerifier(accounts AccountStore, logger *logrus.Logger) *PasswordVerifier {
	dummy, err := HashPassword("kubeconsole-timing-equalizer")
	if err != nil {
		// rand.Read failing means the process cannot do anything
		// credential-related at all.
		panic(fmt.Sprintf("auth: failed to derive dummy credential: %v", err))
	}
	return &PasswordVerifier{
		accounts: accounts,
		logger:   logger,
		dummy:    dummy,
	}
}

// Verify looks up the account by username and checks the password. Unknown
// usernames and wrong passwords produce the identical error.
func (v *PasswordVerifier) Verify(ctx context.Context, username, password string) (*Account, error) {
	account, err := v.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			v.logger.WithField("username", username).Debug("Username not found")
			v.dummy.Verify(password)
			return nil, ErrInvalidCredentials()
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if account.Credential == nil {
		// Externally-authenticated account with no local credential.
		v.logger.WithField("username", username).Info("Password login for account without credential")
		v.dummy.Verify(password)
		return nil, ErrInvalidCredentials()
	}

	if !account.Credential.Verify(password) {
		v.logger.WithField("username", username).Info("Invalid password")
		return nil, ErrInvalidCredentials()
	}

	return account, nil
}
