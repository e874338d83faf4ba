package auth

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	saml2 "github.com/russellhaering/gosaml2"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/sirupsen/logrus"
)

const samlNameIDFormatTransient = "urn:oasis:names:tc:SAML:2.0:nameid-format:transient"

// spCacheSize bounds the SAML service provider cache. Settings rarely
// change, so in practice the cache holds a single entry.
const spCacheSize = 4

// SAMLOrchestrator drives SP-initiated SAML login and single logout, and
// resolves assertion responses to local accounts. It never creates
// accounts.
type SAMLOrchestrator struct {
	accounts AccountStore
	settings SettingsStore
	logger   *logrus.Logger
	now      func() time.Time

	// spCache caches constructed service providers keyed by a settings
	// fingerprint; building one parses PEM certificates every time.
	spCache *lru.Cache[string, *saml2.SAMLServiceProvider]

	// retrieveAssertion delegates response validation to the SAML engine
	// and is replaceable in tests.
	retrieveAssertion func(sp *saml2.SAMLServiceProvider, encodedResponse string) (*saml2.AssertionInfo, error)
}

// NewSAMLOrchestrator creates a SAML login orchestrator.
func NewSAMLOrchestrator(accounts AccountStore, settings SettingsStore, logger *logrus.Logger) *SAMLOrchestrator {
	cache, err := lru.New[string, *saml2.SAMLServiceProvider](spCacheSize)
	if err != nil {
		// Only reachable with a non-positive size.
		panic(fmt.Sprintf("auth: failed to create SAML provider cache: %v", err))
	}
	return &SAMLOrchestrator{
		accounts: accounts,
		settings: settings,
		logger:   logger,
		now:      time.Now,
		spCache:  cache,
		retrieveAssertion: func(sp *saml2.SAMLServiceProvider, encodedResponse string) (*saml2.AssertionInfo, error) {
			return sp.RetrieveAssertionInfo(encodedResponse)
		},
	}
}

func samlFingerprint(hostname string, cfg *SAMLSettings) string {
	sum := sha256.Sum256([]byte(hostname + "\x00" + cfg.IdPEntityID + "\x00" + cfg.SignOnURL + "\x00" +
		cfg.SignOutURL + "\x00" + cfg.IdPCertificate + "\x00" + cfg.SPCertificate + "\x00" + cfg.SPKey))
	return hex.EncodeToString(sum[:])
}

// serviceProvider returns the configured SAML service provider, building
// and caching it on first use. Fails with ProviderDisabled when SAML is not
// configured.
func (o *SAMLOrchestrator) serviceProvider(ctx context.Context) (*saml2.SAMLServiceProvider, *SAMLSettings, error) {
	settings, err := o.settings.Get(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load settings: %w", err)
	}
	cfg := settings.Authentication.SAML
	if cfg == nil {
		return nil, nil, ErrProviderDisabled("saml")
	}

	key := samlFingerprint(settings.Hostname, cfg)
	if sp, ok := o.spCache.Get(key); ok {
		return sp, cfg, nil
	}

	sp, err := buildServiceProvider(settings.Hostname, cfg)
	if err != nil {
		return nil, nil, err
	}
	o.spCache.Add(key, sp)
	return sp, cfg, nil
}

func buildServiceProvider(hostname string, cfg *SAMLSettings) (*saml2.SAMLServiceProvider, error) {
	certBlock, _ := pem.Decode([]byte(cfg.IdPCertificate))
	if certBlock == nil {
		return nil, fmt.Errorf("failed to decode identity provider certificate PEM")
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse identity provider certificate: %w", err)
	}

	certStore := dsig.MemoryX509CertificateStore{
		Roots: []*x509.Certificate{cert},
	}

	// Strict mode: with a service-provider certificate and key configured,
	// requests are signed and the engine requires signed assertions.
	strict := cfg.SPCertificate != "" && cfg.SPKey != ""

	var keyStore dsig.X509KeyStore
	if strict {
		keyBlock, _ := pem.Decode([]byte(cfg.SPKey))
		if keyBlock == nil {
			return nil, fmt.Errorf("failed to decode service provider key PEM")
		}
		privateKey, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
		if err != nil {
			pkcs8Key, err := x509.ParsePKCS8PrivateKey(keyBlock.Bytes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse service provider key: %w", err)
			}
			var ok bool
			privateKey, ok = pkcs8Key.(*rsa.PrivateKey)
			if !ok {
				return nil, fmt.Errorf("service provider key is not RSA")
			}
		}
		keyStore = &dsig.TLSCertKeyStore{
			PrivateKey:  privateKey,
			Certificate: [][]byte{[]byte(cfg.SPCertificate)},
		}
	}

	return &saml2.SAMLServiceProvider{
		IdentityProviderSSOURL:      cfg.SignOnURL,
		IdentityProviderSLOURL:      cfg.SignOutURL,
		IdentityProviderIssuer:      cfg.IdPEntityID,
		ServiceProviderIssuer:       hostname,
		AssertionConsumerServiceURL: hostname + SAMLAuthPath,
		ServiceProviderSLOURL:       hostname + "/login",
		AudienceURI:                 hostname,
		NameIdFormat:                samlNameIDFormatTransient,
		SignAuthnRequests:           strict,
		IDPCertificateStore:         &certStore,
		SPKeyStore:                  keyStore,
	}, nil
}

// LoginURL returns the identity provider's login redirect target.
func (o *SAMLOrchestrator) LoginURL(ctx context.Context) (string, error) {
	sp, _, err := o.serviceProvider(ctx)
	if err != nil {
		return "", err
	}

	url, err := sp.BuildAuthURL("")
	if err != nil {
		return "", fmt.Errorf("failed to build auth request: %w", err)
	}

	o.logger.Debug("Redirecting to SAML for authentication")
	return url, nil
}

// LogoutURL returns the identity provider's single logout redirect target
// for the session described by data.
func (o *SAMLOrchestrator) LogoutURL(ctx context.Context, data *SessionData) (string, error) {
	sp, _, err := o.serviceProvider(ctx)
	if err != nil {
		return "", err
	}

	doc, err := sp.BuildLogoutRequestDocument(data.NameID, data.SessionIndex)
	if err != nil {
		return "", fmt.Errorf("failed to build logout request: %w", err)
	}
	url, err := sp.BuildLogoutURLRedirect("", doc)
	if err != nil {
		return "", fmt.Errorf("failed to build logout redirect: %w", err)
	}

	o.logger.Debug("Redirecting to SAML for logout")
	return url, nil
}

// HandleResponse validates an assertion response and resolves the local
// account by the mapped email attribute. An invited account is validated on
// the spot; an unknown email is rejected. The returned session data carries
// the assertion's name-id and session-index for later logout.
func (o *SAMLOrchestrator) HandleResponse(ctx context.Context, encodedResponse string) (*Account, *SessionData, error) {
	sp, cfg, err := o.serviceProvider(ctx)
	if err != nil {
		return nil, nil, err
	}

	info, err := o.retrieveAssertion(sp, encodedResponse)
	if err != nil {
		o.logger.WithError(err).Info("SAML authentication error")
		return nil, nil, ErrSAMLAuthenticationFailed("SAML authentication failed.", err)
	}
	if info.WarningInfo != nil && (info.WarningInfo.InvalidTime || info.WarningInfo.NotInAudience) {
		o.logger.Info("SAML assertion rejected by validation warnings")
		return nil, nil, ErrSAMLAuthenticationFailed("SAML user not authenticated.", nil)
	}

	attr, ok := info.Values[cfg.EmailAttribute]
	if !ok || len(attr.Values) == 0 {
		o.logger.WithField("attribute", cfg.EmailAttribute).Info("Email attribute missing from SAML response")
		return nil, nil, ErrMissingEmailAttribute()
	}
	email := attr.Values[0].Value

	account, err := o.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			o.logger.WithField("email", email).Debug("Account not found")
			return nil, nil, ErrAccountNotFound()
		}
		return nil, nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if !account.Validated() {
		o.logger.WithField("email", email).Debug("Account validated via SAML")
		firstName := samlAttribute(info, cfg.FirstNameAttribute)
		lastName := samlAttribute(info, cfg.LastNameAttribute)
		if err := validateExternal(ctx, o.accounts, account, firstName, lastName, o.now()); err != nil {
			return nil, nil, fmt.Errorf("failed to validate account: %w", err)
		}
	}

	data := &SessionData{
		NameID:       info.NameID,
		SessionIndex: info.SessionIndex,
	}
	return account, data, nil
}

// samlAttribute returns the first value of the named assertion attribute,
// or the empty string when the attribute is absent.
func samlAttribute(info *saml2.AssertionInfo, name string) string {
	attr, ok := info.Values[name]
	if !ok || len(attr.Values) == 0 {
		return ""
	}
	return attr.Values[0].Value
}
