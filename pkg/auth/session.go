package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const (
	// SessionTokenHeader names both the request/response header and the
	// cookie carrying the session token.
	SessionTokenHeader = "X-Kubeconsole-Token"

	// ValidationTokenHeader carries the invitation validation token.
	ValidationTokenHeader = "X-Kubeconsole-Validation-Token"

	// SessionLifetime is the fixed session token lifetime. There is no
	// refresh mechanism.
	SessionLifetime = 30 * 24 * time.Hour
)

// Claims are the signed session token contents.
type Claims struct {
	AccountID string       `json:"id"`
	Username  string       `json:"username"`
	FirstName string       `json:"firstname"`
	LastName  string       `json:"lastname"`
	Email     string       `json:"email"`
	Role      string       `json:"role"`
	Data      *SessionData `json:"data,omitempty"`
	jwt.RegisteredClaims
}

// Issuer is the single funnel producing signed session tokens. Every
// successful login path ends here.
type Issuer struct {
	accounts AccountStore
	secret   []byte
	logger   *logrus.Logger
	now      func() time.Time
}

// NewIssuer creates a session issuer signing with the given process secret.
func NewIssuer(accounts AccountStore, secret []byte, logger *logrus.Logger) *Issuer {
	return &Issuer{
		accounts: accounts,
		secret:   secret,
		logger:   logger,
		now:      time.Now,
	}
}

// Issue builds claims for the account, records the login time, and returns
// the signed token. The last-login update is a plain read-modify-persist;
// concurrent logins of the same account race and the last writer wins.
func (i *Issuer) Issue(ctx context.Context, account *Account, data *SessionData) (string, error) {
	i.logger.WithFields(logrus.Fields{
		"username": account.Username,
		"account":  account.ID,
	}).Info("Authenticating account")

	now := i.now().UTC()
	claims := Claims{
		AccountID: account.ID,
		Username:  account.Username,
		FirstName: account.FirstName,
		LastName:  account.LastName,
		Email:     account.Email,
		Role:      account.Role,
		Data:      data,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionLifetime)),
		},
	}

	account.LastLoginAt = &now
	if err := i.accounts.Update(ctx, account); err != nil {
		return "", fmt.Errorf("failed to record login: %w", err)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	i.logger.WithField("username", account.Username).Info("Account authenticated")
	return token, nil
}

// Decode verifies the token signature and expiry and returns its claims.
func (i *Issuer) Decode(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, ErrInvalidToken(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken(nil)
	}
	return claims, nil
}
