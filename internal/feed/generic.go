package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"drift/internal/config"
)

// genericManifest is the YAML document a generic flat-file feed serves,
// latest.yml for the stable channel and beta.yml for prereleases.
type genericManifest struct {
	Version      string         `yaml:"version"`
	Path         string         `yaml:"path"`
	ReleaseDate  string         `yaml:"releaseDate"`
	ReleaseNotes string         `yaml:"releaseNotes"`
	Files        []genericAsset `yaml:"files"`
}

type genericAsset struct {
	URL  string `yaml:"url"`
	Size int64  `yaml:"size"`
}

// genericProvider reads a version manifest from a plain HTTP(S) base URL.
type genericProvider struct {
	baseURL string
	channel config.Channel
}

func (p *genericProvider) FeedURL() string {
	name := "latest.yml"
	if p.channel == config.ChannelPrerelease {
		name = "beta.yml"
	}
	return strings.TrimSuffix(p.baseURL, "/") + "/" + name
}

func (p *genericProvider) Fetch(ctx context.Context, client *http.Client, opts FetchOptions) (*Release, error) {
	reqURL := cacheBust(p.FeedURL(), opts.Force)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoReleases
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}

	var m genericManifest
	if err := yaml.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}
	if m.Version == "" {
		return nil, fmt.Errorf("%w: manifest has no version", ErrMalformedFeed)
	}

	rel := &Release{
		Version: m.Version,
		Notes:   m.ReleaseNotes,
	}
	if m.ReleaseDate != "" {
		if t, err := time.Parse(time.RFC3339, m.ReleaseDate); err == nil {
			rel.Date = t
		}
	}

	// files entries take precedence; path is the older single-file form.
	for _, f := range m.Files {
		rel.Assets = append(rel.Assets, Asset{
			Name: assetName(f.URL),
			URL:  p.resolveArtifact(f.URL),
			Size: f.Size,
		})
	}
	if len(rel.Assets) == 0 && m.Path != "" {
		rel.Assets = append(rel.Assets, Asset{
			Name: assetName(m.Path),
			URL:  p.resolveArtifact(m.Path),
		})
	}
	if len(rel.Assets) == 0 {
		return nil, fmt.Errorf("%w: manifest lists no files", ErrMalformedFeed)
	}
	return rel, nil
}

// resolveArtifact joins a manifest file reference with the feed base URL
// unless the reference is already absolute.
func (p *genericProvider) resolveArtifact(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return strings.TrimSuffix(p.baseURL, "/") + "/" + strings.TrimPrefix(ref, "/")
}

func assetName(ref string) string {
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		ref = u.Path
	}
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}
