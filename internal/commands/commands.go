package commands

import (
	"os"
	"path/filepath"

	"drift/internal/ui"
	"drift/internal/updater"
)

// dataDir locates where downloaded artifacts are staged. Package var so
// tests can redirect it.
var dataDir = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".drift"
	}
	return filepath.Join(home, ".drift")
}

// newOrchestrator builds the per-process update session. Any artifact staged
// by a previous run is applied first so the binary on disk matches what the
// last install decided.
func newOrchestrator() *updater.Orchestrator {
	if err := updater.ApplyStaged(dataDir()); err != nil {
		ui.ShowWarning("Failed to apply staged update: %v", err)
	}
	return updater.New(updater.Options{
		CurrentVersion: Version,
		DataDir:        dataDir(),
	})
}
