package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"drift/internal/config"
)

// GitHubAPIBase is the GitHub REST endpoint root. Package var so tests can
// point providers at an httptest server.
var GitHubAPIBase = "https://api.github.com"

// githubRelease mirrors the fields we need from the GitHub releases API.
type githubRelease struct {
	TagName     string        `json:"tag_name"`
	Body        string        `json:"body"`
	Draft       bool          `json:"draft"`
	Prerelease  bool          `json:"prerelease"`
	PublishedAt time.Time     `json:"published_at"`
	Assets      []githubAsset `json:"assets"`
}

type githubAsset struct {
	Name string `json:"name"`
	URL  string `json:"browser_download_url"`
	Size int64  `json:"size"`
}

// githubProvider reads the hosted releases feed for one owner/repo pair.
// The stable channel uses releases/latest, which GitHub already filters to
// non-prerelease; the prerelease channel lists releases and takes the first
// non-draft entry.
type githubProvider struct {
	apiBase string
	owner   string
	repo    string
	channel config.Channel
}

func (p *githubProvider) FeedURL() string {
	if p.channel == config.ChannelPrerelease {
		return fmt.Sprintf("%s/repos/%s/%s/releases", p.apiBase, p.owner, p.repo)
	}
	return fmt.Sprintf("%s/repos/%s/%s/releases/latest", p.apiBase, p.owner, p.repo)
}

func (p *githubProvider) Fetch(ctx context.Context, client *http.Client, opts FetchOptions) (*Release, error) {
	reqURL := cacheBust(p.FeedURL(), opts.Force)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

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

	var latest *githubRelease
	if p.channel == config.ChannelPrerelease {
		var list []githubRelease
		if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
		}
		for i := range list {
			if !list[i].Draft {
				latest = &list[i]
				break
			}
		}
		if latest == nil {
			return nil, ErrNoReleases
		}
	} else {
		var rel githubRelease
		if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
		}
		latest = &rel
	}

	if latest.TagName == "" {
		return nil, fmt.Errorf("%w: release has no tag", ErrMalformedFeed)
	}

	rel := &Release{
		Version: latest.TagName,
		Notes:   latest.Body,
		Date:    latest.PublishedAt,
	}
	for _, a := range latest.Assets {
		rel.Assets = append(rel.Assets, Asset{Name: a.Name, URL: a.URL, Size: a.Size})
	}
	return rel, nil
}
