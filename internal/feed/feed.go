package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"runtime"
	"time"

	"drift/internal/config"
)

// Sentinel errors distinguishing feed failure modes. A 404 from the feed
// means the repository or channel has no releases yet, which callers must
// report differently from a transport failure.
var (
	ErrNoReleases    = errors.New("feed has no releases")
	ErrMalformedFeed = errors.New("feed payload is malformed")
	ErrNoAsset       = errors.New("no artifact for this platform")
)

// Asset is a downloadable artifact attached to a release.
type Asset struct {
	Name string
	URL  string
	Size int64
}

// Release is the provider-independent description of the newest release.
type Release struct {
	Version string
	Notes   string
	Date    time.Time
	Assets  []Asset
}

// AssetFor returns the artifact matching the current platform naming
// convention (drift-<os>-<arch>[.exe]). A release with a single asset is
// taken as-is, which is how generic flat-file feeds publish.
func (r *Release) AssetFor(goos, goarch string) (Asset, error) {
	if len(r.Assets) == 1 {
		return r.Assets[0], nil
	}
	want := PlatformAssetName(goos, goarch)
	for _, a := range r.Assets {
		if a.Name == want {
			return a, nil
		}
	}
	return Asset{}, fmt.Errorf("%w (want %q)", ErrNoAsset, want)
}

// PlatformAssetName returns the artifact name published for a platform.
func PlatformAssetName(goos, goarch string) string {
	name := fmt.Sprintf("drift-%s-%s", goos, goarch)
	if goos == "windows" {
		name += ".exe"
	}
	return name
}

// CurrentPlatformAsset is AssetFor on the running platform.
func (r *Release) CurrentPlatformAsset() (Asset, error) {
	return r.AssetFor(runtime.GOOS, runtime.GOARCH)
}

// FetchOptions control a single fetch. Force adds a cache-defeating query
// parameter to the request URL; the provider's configured URL is never
// modified.
type FetchOptions struct {
	Force bool
}

// Provider resolves the latest release from one kind of feed. The variant
// set is closed: new providers are added here, not loaded dynamically.
type Provider interface {
	// Fetch returns the newest release visible on the provider's channel.
	Fetch(ctx context.Context, client *http.Client, opts FetchOptions) (*Release, error)
	// FeedURL returns the endpoint the provider reads, for logging and for
	// verifying that forced fetches leave the configured target untouched.
	FeedURL() string
}

// Resolve maps a feed config and channel onto a concrete provider.
func Resolve(cfg config.FeedConfig, channel config.Channel) (Provider, error) {
	switch cfg.Source {
	case config.SourceGeneric:
		if cfg.URL == "" {
			return nil, fmt.Errorf("generic feed has no url")
		}
		return &genericProvider{baseURL: cfg.URL, channel: channel}, nil
	case config.SourceGitHub:
		if cfg.Owner == "" || cfg.Repo == "" {
			return nil, fmt.Errorf("github feed has no owner/repo")
		}
		return &githubProvider{apiBase: GitHubAPIBase, owner: cfg.Owner, repo: cfg.Repo, channel: channel}, nil
	default:
		return nil, fmt.Errorf("unknown feed source %q", cfg.Source)
	}
}

// cacheBust appends a nocache query parameter for forced fetches. The input
// is returned unchanged when force is false.
func cacheBust(rawURL string, force bool) string {
	if !force {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("nocache", fmt.Sprintf("%d", time.Now().UnixNano()))
	u.RawQuery = q.Encode()
	return u.String()
}
