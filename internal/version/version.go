// Package version compares compass build versions and looks up the newest
// published release.
package version

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the GitHub REST endpoint releases are read from.
	DefaultBaseURL = "https://api.github.com"
	// DefaultTimeout bounds a single release lookup.
	DefaultTimeout = 30 * time.Second

	maxErrorBody   = 1 << 10
	maxReleaseBody = 64 << 10
)

var (
	// ErrReleaseLookup is returned when the releases API answers with a non-200 status.
	ErrReleaseLookup = errors.New("release lookup failed")
	// ErrInvalidRepository is returned for an empty or malformed owner/repo pair.
	ErrInvalidRepository = errors.New("invalid repository")
)

var repoNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// GitHubRelease is the subset of a release document compass reads.
type GitHubRelease struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
}

// Client fetches release metadata.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient returns a Client for the public GitHub API.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  fmt.Sprintf("compass/dev (%s/%s)", runtime.GOOS, runtime.GOARCH),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetLatestRelease returns the newest non-draft release of owner/repo.
func (c *Client) GetLatestRelease(ctx context.Context, owner, repo string) (*GitHubRelease, error) {
	if !repoNamePattern.MatchString(owner) || !repoNamePattern.MatchString(repo) {
		return nil, fmt.Errorf("%w: %q/%q", ErrInvalidRepository, owner, repo)
	}

	url := c.baseURL + "/repos/" + owner + "/" + repo + "/releases/latest"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req) //nolint:gosec // fixed API host
	if err != nil {
		return nil, fmt.Errorf("fetching release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: status %d: %s", ErrReleaseLookup, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rel GitHubRelease
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReleaseBody)).Decode(&rel); err != nil {
		return nil, fmt.Errorf("decoding release: %w", err)
	}
	return &rel, nil
}

// NormalizeVersion strips whitespace, any "v" prefix and pre-release or
// build suffixes: " v1.2.3-rc1 " becomes "1.2.3".
func NormalizeVersion(v string) string {
	v = strings.TrimLeft(strings.TrimSpace(v), "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	return v
}

// CompareVersions orders two versions, returning -1, 0 or 1. Development
// builds ("dev", empty, or a bare commit hash) sort before every release.
func CompareVersions(a, b string) int {
	devA, devB := isDevBuild(a), isDevBuild(b)
	switch {
	case devA && devB:
		return 0
	case devA:
		return -1
	case devB:
		return 1
	}

	pa, pb := numericParts(a), numericParts(b)
	for i := range 3 {
		x, y := part(pa, i), part(pb, i)
		if x != y {
			if x > y {
				return 1
			}
			return -1
		}
	}
	return 0
}

// IsNewerVersion reports whether latest is newer than current.
func IsNewerVersion(current, latest string) bool {
	return CompareVersions(latest, current) > 0
}

func numericParts(v string) []int {
	fields := strings.Split(NormalizeVersion(v), ".")
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			break
		}
		out = append(out, n)
	}
	return out
}

func part(parts []int, i int) int {
	if i < len(parts) {
		return parts[i]
	}
	return 0
}

var commitHashPattern = regexp.MustCompile(`^[0-9a-fA-F]{7,40}$`)

func isDevBuild(v string) bool {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if v == "" || v == "dev" {
		return true
	}
	v = strings.TrimSuffix(v, "-dirty")
	// A hash needs at least one letter so "2024010100" still reads as a version.
	return commitHashPattern.MatchString(v) && strings.ContainsAny(strings.ToLower(v), "abcdef")
}
