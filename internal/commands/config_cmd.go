package commands

import (
	"fmt"

	"drift/internal/config"
	"drift/internal/output"
	"drift/internal/ui"
)

// RunFeedGet prints the active feed configuration.
func RunFeedGet() {
	cfg := config.LoadFeed()
	output.Print(cfg, func() {
		ui.ShowHeader("Update Feed")
		fmt.Printf("  Source: %s\n", cfg.Source)
		switch cfg.Source {
		case config.SourceGitHub:
			fmt.Printf("  Repo:   %s/%s\n", cfg.Owner, cfg.Repo)
		default:
			fmt.Printf("  URL:    %s\n", cfg.URL)
		}
	})
}

// RunFeedSet validates and persists a new feed configuration. The running
// serve instance, if any, keeps its feed until restarted.
func RunFeedSet(source, url, owner, repo string) {
	cfg := config.FeedConfig{
		Source: config.Source(source),
		URL:    url,
		Owner:  owner,
		Repo:   repo,
	}
	if err := cfg.Validate(); err != nil {
		output.PrintError(err)
	}
	if err := config.SaveFeed(cfg); err != nil {
		output.PrintError(err)
	}
	output.Print(cfg, func() {
		ui.ShowSuccess("Feed updated")
		ui.ShowInfo("A running 'drift serve' picks this up on its next restart")
	})
}

// RunChannelGet prints the persisted channel preference.
func RunChannelGet() {
	ch := config.LoadChannel()
	output.Print(map[string]config.Channel{"channel": ch}, func() {
		fmt.Printf("  Channel: %s\n", ch)
	})
}

// RunChannelSet persists a new channel preference and immediately re-checks
// against it, the same path the HTTP surface takes.
func RunChannelSet(channel string) {
	ch := config.Channel(channel)
	if !ch.Valid() {
		output.PrintError(fmt.Errorf("unknown channel %q (want stable or prerelease)", channel))
	}

	orch := newOrchestrator()
	res, err := orch.SetChannel(ch)
	if err != nil {
		output.PrintError(err)
	}
	output.Print(map[string]interface{}{"channel": ch, "check": res}, func() {
		ui.ShowSuccess("Channel set to %s", ch)
		if res.UpdateAvailable {
			ui.ShowInfo("Update available: %s (run 'drift update' to install)", res.Version)
		} else {
			ui.ShowInfo("Already up to date (%s)", Version)
		}
	})
}
