package updater

import (
	"fmt"
	"math"
	"time"
)

// Phase is the update session's position in the check/download/install cycle.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseChecking        Phase = "checking"
	PhaseUpToDate        Phase = "up-to-date"
	PhaseUpdateAvailable Phase = "update-available"
	PhaseDownloading     Phase = "downloading"
	PhaseDownloaded      Phase = "downloaded"
	PhaseInstalling      Phase = "installing"
	PhaseError           Phase = "error"
)

// EventKind identifies a broadcast event.
type EventKind string

const (
	EventChecking     EventKind = "checking"
	EventAvailable    EventKind = "available"
	EventNotAvailable EventKind = "not-available"
	EventProgress     EventKind = "progress"
	EventDownloaded   EventKind = "downloaded"
	EventError        EventKind = "error"
)

// Progress describes a download in flight. Byte counts are raw; formatting
// for display is the caller's concern (FormatBytes).
type Progress struct {
	Percent        float64 `json:"percent"`
	BytesPerSecond float64 `json:"bps"`
	Transferred    int64   `json:"transferred"`
	Total          int64   `json:"total"`
}

// Event is a single state-transition notification. Each event carries enough
// data for an observer to render state without querying back.
type Event struct {
	Kind     EventKind `json:"kind"`
	Version  string    `json:"version,omitempty"`
	Notes    string    `json:"notes,omitempty"`
	Date     time.Time `json:"date,omitzero"`
	Progress Progress  `json:"progress,omitzero"`
	Message  string    `json:"message,omitempty"`
}

// Snapshot is the orchestrator state for late-joining observers.
type Snapshot struct {
	Phase          Phase    `json:"phase"`
	CurrentVersion string   `json:"current_version"`
	LatestVersion  string   `json:"latest_version,omitempty"`
	Progress       Progress `json:"progress,omitzero"`
}

// FormatBytes renders a byte count with binary (1024-based) units, truncated
// to one decimal place. Display only; internal tracking keeps raw counts.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for x := n / unit; x >= unit; x /= unit {
		div *= unit
		exp++
	}
	val := math.Trunc(float64(n)/float64(div)*10) / 10
	return fmt.Sprintf("%.1f %ciB", val, "KMGTPE"[exp])
}

// FormatRate renders a transfer rate for display.
func FormatRate(bps float64) string {
	return FormatBytes(int64(bps)) + "/s"
}
