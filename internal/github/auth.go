// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v73/github"
	"golang.org/x/oauth2"
)

// ClientFactory creates GitHub clients authenticated as a specific App
// installation. Authentication failures from this path are permanent from the
// queue's perspective; retrying cannot fix a bad key.
type ClientFactory interface {
	InstallationClient(ctx context.Context, installationID int64) (Client, error)
}

type appClientFactory struct {
	appID          int64
	privateKeyPath string
	logger         *slog.Logger
}

// NewClientFactory creates a factory backed by the GitHub App credentials.
func NewClientFactory(appID int64, privateKeyPath string, logger *slog.Logger) ClientFactory {
	return &appClientFactory{
		appID:          appID,
		privateKeyPath: privateKeyPath,
		logger:         logger,
	}
}

// InstallationClient mints an installation token for the given installation
// and returns a client authenticated with it.
func (f *appClientFactory) InstallationClient(ctx context.Context, installationID int64) (Client, error) {
	privateKey, err := os.ReadFile(f.privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: cannot read private key from %s: %w", f.privateKeyPath, err)
	}

	appTransport, err := ghinstallation.NewAppsTransport(http.DefaultTransport, f.appID, privateKey)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: cannot create GitHub App transport: %w", err)
	}
	appClient := github.NewClient(&http.Client{Transport: appTransport})

	token, _, err := appClient.Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: cannot create installation token for installation %d: %w", installationID, err)
	}
	if token.GetToken() == "" {
		return nil, fmt.Errorf("authentication failed: received an empty installation token")
	}
	f.logger.Debug("created installation token",
		"installation_id", installationID, "expires_at", token.GetExpiresAt())

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token.GetToken()})
	tc := oauth2.NewClient(ctx, ts)
	return NewClient(github.NewClient(tc), f.logger), nil
}
