// Package buildinfo carries the release version and the update check run at
// startup.
package buildinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/nulzo/tier-router/internal/cli"
	"go.uber.org/zap"
)

// Set with -ldflags "-X github.com/nulzo/tier-router/internal/buildinfo.Version=v1.2.3".
var (
	Version = "v0.0.0"
	Commit  = "unknown"
)

const DefaultReleasesURL = "https://api.github.com/repos/nulzo/tier-router/releases/latest"

type GitHubRelease struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

type UpdateInfo struct {
	Current   string
	Latest    string
	URL       string
	Available bool
}

type Checker struct {
	client      *http.Client
	releasesURL string
}

func NewChecker(releasesURL string) *Checker {
	if releasesURL == "" {
		releasesURL = DefaultReleasesURL
	}
	return &Checker{
		client:      &http.Client{Timeout: 2 * time.Second},
		releasesURL: releasesURL,
	}
}

// Check compares current against the latest published release.
func (c *Checker) Check(ctx context.Context, current string) (*UpdateInfo, error) {
	currentVersion, err := version.NewVersion(current)
	if err != nil {
		return nil, fmt.Errorf("invalid current version %q: %w", current, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.releasesURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release lookup returned status %d", resp.StatusCode)
	}

	var release GitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, err
	}

	latest, err := version.NewVersion(release.TagName)
	if err != nil {
		return nil, fmt.Errorf("invalid release tag %q: %w", release.TagName, err)
	}

	return &UpdateInfo{
		Current:   current,
		Latest:    release.TagName,
		URL:       release.HTMLURL,
		Available: currentVersion.LessThan(latest),
	}, nil
}

// WarnIfOutdated logs a banner when a newer release exists. Lookup failures
// are only logged at debug level.
func WarnIfOutdated(ctx context.Context, c *Checker, logger *zap.Logger) {
	info, err := c.Check(ctx, Version)
	if err != nil {
		logger.Debug("Update check skipped", zap.Error(err))
		return
	}
	if !info.Available {
		return
	}
	logger.Warn(fmt.Sprintf("%s %s", cli.WarningSign(),
		cli.Stylize(fmt.Sprintf("You are running an outdated version (%s). The latest version is %s.", info.Current, info.Latest), cli.Yellow)),
		zap.String("url", info.URL),
	)
}
