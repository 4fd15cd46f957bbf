package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"drift/internal/output"
	"drift/internal/tui"
	"drift/internal/ui"
	"drift/internal/updater"
)

// RunStatus reports the state of a running update service. With watch it
// follows the live event stream in a full-screen view instead.
func RunStatus(watch bool, addr string) {
	base := normalizeAddr(addr)

	if watch {
		if err := tui.Run(base, Version); err != nil {
			ui.ShowError("Watch failed", err)
			os.Exit(1)
		}
		return
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + base + "/state")
	if err != nil {
		ui.ShowWarning("No update service reachable at %s", base)
		ui.ShowInfo("Start one with 'drift serve'")
		os.Exit(1)
	}
	defer resp.Body.Close()

	var snap updater.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		output.PrintError(fmt.Errorf("decode state: %w", err))
	}

	output.Print(snap, func() {
		ui.ShowHeader("Updater Status")
		fmt.Printf("  Phase:   %s\n", snap.Phase)
		fmt.Printf("  Current: %s\n", snap.CurrentVersion)
		if snap.LatestVersion != "" {
			fmt.Printf("  Latest:  %s\n", snap.LatestVersion)
		}
		if snap.Phase == updater.PhaseDownloading {
			fmt.Printf("  Progress: %.0f%% (%s / %s)\n",
				snap.Progress.Percent,
				updater.FormatBytes(snap.Progress.Transferred),
				updater.FormatBytes(snap.Progress.Total))
		}
	})
}

// normalizeAddr fills in the host for bare ":port" listen addresses.
func normalizeAddr(addr string) string {
	if addr == "" {
		addr = defaultServeAddr
	}
	if strings.HasPrefix(addr, ":") {
		return "127.0.0.1" + addr
	}
	return addr
}
