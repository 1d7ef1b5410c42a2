package domain

import (
	"encoding/base64"
	"net/http"
)

// Credentials is the full credential set the provider hands out: the
// instance base URL plus the email/API-token pair Jira Cloud basic auth
// is built from.
type Credentials struct {
	BaseURL  string
	Email    string
	APIToken string
}

// Valid reports whether every required field is present.
func (c *Credentials) Valid() bool {
	return c != nil && c.BaseURL != "" && c.Email != "" && c.APIToken != ""
}

// NewAuthenticatedClient returns an HTTP client whose transport attaches
// the Basic Authorization header built from the credentials. The client
// is constructed once per process and reused for every request; the
// transport is safe for concurrent use.
func NewAuthenticatedClient(creds *Credentials) *http.Client {
	return &http.Client{
		Transport: &basicAuthTransport{
			base:  http.DefaultTransport,
			email: creds.Email,
			token: creds.APIToken,
		},
	}
}

// basicAuthTransport is an http.RoundTripper that adds the Basic auth
// header to every request.
type basicAuthTransport struct {
	base  http.RoundTripper
	email string
	token string
}

// RoundTrip clones the request and sets the Authorization header so the
// caller's request is never mutated.
func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clonedReq := req.Clone(req.Context())

	auth := t.email + ":" + t.token
	encodedAuth := base64.StdEncoding.EncodeToString([]byte(auth))
	clonedReq.Header.Set("Authorization", "Basic "+encodedAuth)

	return t.base.RoundTrip(clonedReq)
}
