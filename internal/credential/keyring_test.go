package credential

import (
	"errors"
	"testing"

	"github.com/mideliberto/jira-mcp/internal/domain"
)

// setEnvCreds populates the three credential variables for one test.
func setEnvCreds(t *testing.T, baseURL, email, token string) {
	t.Helper()
	t.Setenv(EnvBaseURL, baseURL)
	t.Setenv(EnvEmail, email)
	t.Setenv(EnvAPIToken, token)
}

// TestLoad_FromEnv tests that complete environment credentials win.
func TestLoad_FromEnv(t *testing.T) {
	setEnvCreds(t, "https://example.atlassian.net", "sam@example.com", "token-123")

	creds, err := Load("env")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if creds.BaseURL != "https://example.atlassian.net" {
		t.Errorf("BaseURL = %s", creds.BaseURL)
	}
	if creds.Email != "sam@example.com" || creds.APIToken != "token-123" {
		t.Errorf("creds = %+v", creds)
	}
}

// TestLoad_PartialEnvNotEnough tests that an incomplete environment set
// does not count as found.
func TestLoad_PartialEnvNotEnough(t *testing.T) {
	setEnvCreds(t, "https://example.atlassian.net", "", "")

	_, err := Load("env")
	if err == nil {
		t.Fatal("Load() error = nil, want credentials missing")
	}

	var opErr *domain.OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("error = %T, want *domain.OpError", err)
	}
	if opErr.Kind != domain.KindCredentialsMissing {
		t.Errorf("Kind = %s, want %s", opErr.Kind, domain.KindCredentialsMissing)
	}
}

// TestLoad_EnvSourceSkipsKeyring tests that source "env" never falls
// back to the keyring.
func TestLoad_EnvSourceSkipsKeyring(t *testing.T) {
	setEnvCreds(t, "", "", "")

	_, err := Load("env")
	var opErr *domain.OpError
	if !errors.As(err, &opErr) || opErr.Kind != domain.KindCredentialsMissing {
		t.Errorf("error = %v, want credentials missing without keyring lookup", err)
	}
}

// TestStore_RejectsIncomplete tests the completeness guard before any
// keyring access.
func TestStore_RejectsIncomplete(t *testing.T) {
	err := Store(&domain.Credentials{BaseURL: "https://example.atlassian.net"})
	if err == nil {
		t.Fatal("Store() error = nil, want incomplete credentials error")
	}
}
