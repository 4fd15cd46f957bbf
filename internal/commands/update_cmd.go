package commands

import (
	"fmt"
	"os"
	"time"

	"drift/internal/output"
	"drift/internal/ui"
	"drift/internal/updater"
)

// RunCheck queries the feed and reports the result.
func RunCheck(force bool) {
	orch := newOrchestrator()

	res, err := orch.Check(force)
	if err != nil {
		output.PrintError(err)
	}

	output.Print(res, func() {
		if res.Coalesced {
			ui.ShowInfo("Recently checked; showing cached result (use --force to re-check)")
		}
		if res.UpdateAvailable {
			ui.ShowSuccess("Update available: %s (current %s)", res.Version, Version)
			if res.Notes != "" {
				fmt.Println()
				fmt.Println(res.Notes)
			}
			fmt.Println()
			ui.ShowInfo("Run 'drift update' to install")
			return
		}
		ui.ShowSuccess("Already up to date (%s)", Version)
	})
}

// RunDownload stages the update reported by the preceding check.
func RunDownload() {
	orch := newOrchestrator()
	if _, err := orch.Check(true); err != nil {
		output.PrintError(err)
	}
	if orch.State().Phase != updater.PhaseUpdateAvailable {
		output.Print(orch.State(), func() {
			ui.ShowSuccess("Already up to date (%s)", Version)
		})
		return
	}
	if err := downloadWithProgress(orch); err != nil {
		output.PrintError(err)
	}
	output.Print(orch.State(), func() {
		ui.ShowSuccess("Update downloaded; run 'drift install' to apply")
	})
}

// RunInstall applies a previously downloaded update and restarts.
func RunInstall() {
	orch := newOrchestrator()
	if _, err := orch.Check(true); err != nil {
		output.PrintError(err)
	}
	if orch.State().Phase != updater.PhaseUpdateAvailable {
		ui.ShowSuccess("Already up to date (%s)", Version)
		return
	}
	if err := downloadWithProgress(orch); err != nil {
		output.PrintError(err)
	}
	installAndWait(orch)
}

// RunUpdate performs the full check/download/install cycle.
func RunUpdate() {
	ui.ShowHeader("drift Self-Update")
	orch := newOrchestrator()

	ui.ShowLoading("Checking for updates")
	res, err := orch.Check(true)
	if err != nil {
		output.PrintError(err)
	}
	if !res.UpdateAvailable {
		ui.ShowSuccess("Already up to date (%s)", Version)
		return
	}
	ui.ShowInfo("Found %s (current %s)", res.Version, Version)

	if err := downloadWithProgress(orch); err != nil {
		output.PrintError(err)
	}
	installAndWait(orch)
}

// downloadWithProgress runs the download with a live progress line on stderr.
func downloadWithProgress(orch *updater.Orchestrator) error {
	token := orch.Subscribe(func(evt updater.Event) {
		switch evt.Kind {
		case updater.EventProgress:
			fmt.Fprintf(os.Stderr, "\r Downloading... %3.0f%% (%s / %s, %s)   ",
				evt.Progress.Percent,
				updater.FormatBytes(evt.Progress.Transferred),
				updater.FormatBytes(evt.Progress.Total),
				updater.FormatRate(evt.Progress.BytesPerSecond))
		case updater.EventDownloaded:
			fmt.Fprintf(os.Stderr, "\r")
		}
	})
	defer orch.Unsubscribe(token)

	if err := orch.Download(); err != nil {
		fmt.Fprintln(os.Stderr)
		return err
	}
	ui.ShowSuccess("Downloaded")
	return nil
}

// installAndWait triggers the install and blocks until the process is
// replaced. Install returns before the swap happens; exiting early would
// abandon it.
func installAndWait(orch *updater.Orchestrator) {
	if err := orch.Install(); err != nil {
		output.PrintError(err)
	}
	ui.ShowInfo("Installing and restarting...")

	// The restart replaces this process on success. If the swap fails the
	// staged artifact is applied on the next start instead.
	time.Sleep(5 * time.Second)
	ui.ShowWarning("Restart did not complete; the update will be applied on next launch")
}
