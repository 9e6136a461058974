// ABOUTME: Checks GitHub releases for a newer socialctl build.
// ABOUTME: Only reports; installing is left to the user's package manager.

package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	GitHubRepo    = "aeolun/socialite"
	githubAPIBase = "https://api.github.com"
)

// Release represents a GitHub release
type Release struct {
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
	HTMLURL string `json:"html_url"`
}

// Checker queries the latest release of a repository
type Checker struct {
	BaseURL string
	Repo    string
	HTTP    *http.Client
}

// NewChecker creates a checker for the socialctl repository
func NewChecker() *Checker {
	return &Checker{
		BaseURL: githubAPIBase,
		Repo:    GitHubRepo,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Latest fetches the newest published release
func (c *Checker) Latest(ctx context.Context) (Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", strings.TrimRight(c.BaseURL, "/"), c.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Release{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Release{}, fmt.Errorf("failed to fetch release info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Release{}, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return Release{}, fmt.Errorf("failed to parse release info: %w", err)
	}
	return release, nil
}

// IsNewer reports whether candidate is a later version than current.
// Versions look like v1.2.3; a "dev" build is always outdated.
func IsNewer(current, candidate string) bool {
	if current == "dev" || current == "" {
		return true
	}
	a, okA := parseVersion(current)
	b, okB := parseVersion(candidate)
	if !okA || !okB {
		return strings.TrimPrefix(candidate, "v") > strings.TrimPrefix(current, "v")
	}
	for i := range a {
		if a[i] != b[i] {
			return b[i] > a[i]
		}
	}
	return false
}

// parseVersion splits v1.2.3 into its numeric parts, ignoring any
// pre-release suffix
func parseVersion(v string) ([3]int, bool) {
	var out [3]int
	v = strings.TrimPrefix(v, "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	parts := strings.Split(v, ".")
	if len(parts) == 0 || len(parts) > 3 {
		return out, false
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return out, false
		}
		out[i] = n
	}
	return out, true
}
