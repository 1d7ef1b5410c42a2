// Package credential is the provider boundary for Jira credentials: it
// hands out a base URL, email, and API token without the rest of the
// server knowing where they are stored. Environment variables take
// precedence; the system keyring is the durable store.
package credential

import (
	"fmt"
	"os"

	"github.com/99designs/keyring"

	"github.com/mideliberto/jira-mcp/internal/domain"
)

const serviceName = "jira-mcp"

// Keyring item keys.
const (
	keyBaseURL  = "jira-base-url"
	keyEmail    = "jira-email"
	keyAPIToken = "jira-api-token"
)

// Environment variable names.
const (
	EnvBaseURL  = "JIRA_BASE_URL"
	EnvEmail    = "JIRA_EMAIL"
	EnvAPIToken = "JIRA_API_TOKEN"
)

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/jira-mcp/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("jira-mcp-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Load resolves credentials from the configured source. Environment
// variables win when all three are set; otherwise the keyring is
// consulted unless the source restricts lookups to the environment.
// A complete miss is a KindCredentialsMissing failure: fatal at startup,
// recoverable by storing credentials between runs.
func Load(source string) (*domain.Credentials, error) {
	creds := fromEnv()
	if creds.Valid() {
		return creds, nil
	}

	if source == "keyring" {
		creds, err := fromKeyring()
		if err == nil && creds.Valid() {
			return creds, nil
		}
	}

	return nil, &domain.OpError{
		Kind: domain.KindCredentialsMissing,
		Message: fmt.Sprintf("no Jira credentials found; set %s, %s and %s or run with -store-credentials",
			EnvBaseURL, EnvEmail, EnvAPIToken),
	}
}

// fromEnv reads credentials from the environment.
func fromEnv() *domain.Credentials {
	return &domain.Credentials{
		BaseURL:  os.Getenv(EnvBaseURL),
		Email:    os.Getenv(EnvEmail),
		APIToken: os.Getenv(EnvAPIToken),
	}
}

// fromKeyring reads credentials from the system keyring.
func fromKeyring() (*domain.Credentials, error) {
	ring, err := openKeyring()
	if err != nil {
		return nil, err
	}

	creds := &domain.Credentials{}
	for _, entry := range []struct {
		key  string
		dest *string
	}{
		{keyBaseURL, &creds.BaseURL},
		{keyEmail, &creds.Email},
		{keyAPIToken, &creds.APIToken},
	} {
		item, err := ring.Get(entry.key)
		if err != nil {
			return nil, fmt.Errorf("getting credential %q: %w", entry.key, err)
		}
		*entry.dest = string(item.Data)
	}

	return creds, nil
}

// Store persists credentials into the system keyring.
func Store(creds *domain.Credentials) error {
	if !creds.Valid() {
		return fmt.Errorf("credentials are incomplete: base URL, email and API token are all required")
	}

	ring, err := openKeyring()
	if err != nil {
		return err
	}

	for _, entry := range []struct {
		key   string
		value string
	}{
		{keyBaseURL, creds.BaseURL},
		{keyEmail, creds.Email},
		{keyAPIToken, creds.APIToken},
	} {
		if err := ring.Set(keyring.Item{Key: entry.key, Data: []byte(entry.value)}); err != nil {
			return fmt.Errorf("setting credential %q: %w", entry.key, err)
		}
	}

	return nil
}

// Delete removes stored credentials from the system keyring.
func Delete() error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	for _, key := range []string{keyBaseURL, keyEmail, keyAPIToken} {
		if err := ring.Remove(key); err != nil {
			return fmt.Errorf("deleting credential %q: %w", key, err)
		}
	}

	return nil
}
