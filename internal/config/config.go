package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Source identifies which kind of release feed updates come from.
type Source string

const (
	// SourceGeneric is a flat-file feed: a base URL serving a YAML manifest.
	SourceGeneric Source = "generic"
	// SourceGitHub is a hosted GitHub releases feed identified by owner/repo.
	SourceGitHub Source = "github"
)

// Channel is the release track updates are resolved against.
type Channel string

const (
	ChannelStable     Channel = "stable"
	ChannelPrerelease Channel = "prerelease"
)

// DefaultFeedURL is the fallback generic feed used when no feed is configured.
const DefaultFeedURL = "https://releases.driftapp.io/drift"

// FeedConfig selects the release source. For SourceGitHub, Owner and Repo
// must both be non-empty. For SourceGeneric, URL is the feed base URL.
type FeedConfig struct {
	Source Source `json:"source"`
	URL    string `json:"url,omitempty"`
	Owner  string `json:"owner,omitempty"`
	Repo   string `json:"repo,omitempty"`
}

// channelRecord is the on-disk shape of the channel preference file.
type channelRecord struct {
	Channel Channel `json:"channel"`
}

// FeedPath and ChannelPath locate the persisted records. They default to
// ~/.drift/ and are package vars so tests can redirect them.
var (
	FeedPath    string
	ChannelPath string
)

func init() {
	homeDir, _ := os.UserHomeDir()
	FeedPath = filepath.Join(homeDir, ".drift", "feed.json")
	ChannelPath = filepath.Join(homeDir, ".drift", "channel.json")
}

// DefaultFeed returns the feed used when nothing is configured.
func DefaultFeed() FeedConfig {
	return FeedConfig{Source: SourceGeneric, URL: DefaultFeedURL}
}

// Validate checks the FeedConfig invariants.
func (c FeedConfig) Validate() error {
	switch c.Source {
	case SourceGeneric:
		if c.URL == "" {
			return fmt.Errorf("generic feed requires a url")
		}
	case SourceGitHub:
		if c.Owner == "" || c.Repo == "" {
			return fmt.Errorf("github feed requires owner and repo")
		}
	default:
		return fmt.Errorf("unknown feed source %q", c.Source)
	}
	return nil
}

// Valid reports whether ch is a known channel value.
func (ch Channel) Valid() bool {
	return ch == ChannelStable || ch == ChannelPrerelease
}

// LoadFeed reads the persisted feed config. A missing or malformed file is
// not an error; the default feed is returned instead.
func LoadFeed() FeedConfig {
	data, err := os.ReadFile(FeedPath)
	if err != nil {
		return DefaultFeed()
	}

	var cfg FeedConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		log.Printf("[config] malformed feed config at %s, using default: %v", FeedPath, err)
		return DefaultFeed()
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("[config] invalid feed config at %s, using default: %v", FeedPath, err)
		return DefaultFeed()
	}
	return cfg
}

// SaveFeed overwrites the persisted feed config. Persistence is best-effort:
// callers keep using the in-memory value for the current run on failure.
func SaveFeed(cfg FeedConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return err
	}
	if err := writeFile(FeedPath, data); err != nil {
		log.Printf("[config] save feed config: %v", err)
		return err
	}
	return nil
}

// LoadChannel reads the persisted channel preference, defaulting to stable.
func LoadChannel() Channel {
	data, err := os.ReadFile(ChannelPath)
	if err != nil {
		return ChannelStable
	}

	var rec channelRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Printf("[config] malformed channel file at %s, using stable: %v", ChannelPath, err)
		return ChannelStable
	}
	if !rec.Channel.Valid() {
		return ChannelStable
	}
	return rec.Channel
}

// SaveChannel overwrites the persisted channel preference.
func SaveChannel(ch Channel) error {
	if !ch.Valid() {
		return fmt.Errorf("unknown channel %q", ch)
	}
	data, err := json.MarshalIndent(channelRecord{Channel: ch}, "", "    ")
	if err != nil {
		return err
	}
	if err := writeFile(ChannelPath, data); err != nil {
		log.Printf("[config] save channel: %v", err)
		return err
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
