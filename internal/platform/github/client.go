// Package github provides authenticated GitHub API clients.
package github

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bradleyfalzon/ghinstallation/v2"
	gogithub "github.com/google/go-github/v68/github"
)

// Auth selects how the client authenticates. A token takes precedence over
// GitHub App credentials.
type Auth struct {
	Token          string
	AppID          int64
	InstallationID int64
	PrivateKeyPEM  string
}

// NewClient creates a GitHub API client. base is the transport to wrap,
// typically an otelhttp transport; nil means http.DefaultTransport.
func NewClient(auth Auth, base http.RoundTripper) (*gogithub.Client, error) {
	if base == nil {
		base = http.DefaultTransport
	}

	if auth.Token != "" {
		return gogithub.NewClient(&http.Client{Transport: base}).WithAuthToken(auth.Token), nil
	}
	if auth.AppID == 0 || auth.InstallationID == 0 || auth.PrivateKeyPEM == "" {
		return nil, errors.New("github: either a token or app id, installation id and private key are required")
	}

	// Installation transport handles JWT generation and token refresh
	transport, err := ghinstallation.New(base, auth.AppID, auth.InstallationID, []byte(auth.PrivateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("creating github installation transport: %w", err)
	}
	return gogithub.NewClient(&http.Client{Transport: transport}), nil
}
