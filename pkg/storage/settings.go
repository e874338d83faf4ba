package storage

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kubeconsole/kubeconsole/pkg/auth"
)

// settingsFile mirrors auth.Settings with YAML tags. The memory backend
// has no settings table, so deployments feed it a settings file instead.
type settingsFile struct {
	Hostname       string `yaml:"hostname"`
	Authentication struct {
		Password *struct {
			Regex string `yaml:"regex"`
		} `yaml:"password"`
		GoogleOAuth *struct {
			Key         string `yaml:"key"`
			Secret      string `yaml:"secret"`
			RedirectURI string `yaml:"redirect_uri"`
		} `yaml:"google_oauth"`
		SAML *struct {
			MetadataURI      string `yaml:"metadata_uri"`
			SignOnURI        string `yaml:"sign_on_uri"`
			SignOutURI       string `yaml:"sign_out_uri"`
			IdPCertificate   string `yaml:"idp_certificate"`
			SPCertificate    string `yaml:"sp_certificate"`
			SPKey            string `yaml:"sp_key"`
			EmailMapping     string `yaml:"email_mapping"`
			FirstNameMapping string `yaml:"first_name_mapping"`
			LastNameMapping  string `yaml:"last_name_mapping"`
		} `yaml:"saml"`
	} `yaml:"authentication"`
}

// LoadSettingsFile reads console settings from a YAML file.
func LoadSettingsFile(path string) (*auth.Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}
	return ParseSettings(data)
}

// ParseSettings decodes YAML console settings.
func ParseSettings(data []byte) (*auth.Settings, error) {
	var file settingsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	if file.Hostname == "" {
		return nil, fmt.Errorf("settings: hostname is required")
	}

	settings := &auth.Settings{Hostname: file.Hostname}
	if p := file.Authentication.Password; p != nil {
		settings.Authentication.Password = &auth.PasswordSettings{Regex: p.Regex}
	}
	if g := file.Authentication.GoogleOAuth; g != nil {
		settings.Authentication.GoogleOAuth = &auth.GoogleOAuthSettings{
			Key:         g.Key,
			Secret:      g.Secret,
			RedirectURI: g.RedirectURI,
		}
	}
	if s := file.Authentication.SAML; s != nil {
		settings.Authentication.SAML = &auth.SAMLSettings{
			IdPEntityID:        s.MetadataURI,
			SignOnURL:          s.SignOnURI,
			SignOutURL:         s.SignOutURI,
			IdPCertificate:     s.IdPCertificate,
			SPCertificate:      s.SPCertificate,
			SPKey:              s.SPKey,
			EmailAttribute:     s.EmailMapping,
			FirstNameAttribute: s.FirstNameMapping,
			LastNameAttribute:  s.LastNameMapping,
		}
	}
	return settings, nil
}
