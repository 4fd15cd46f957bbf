package updater

import "errors"

// Caller-contract violations are distinct sentinels so host bugs are not
// mistaken for transient network failures.
var (
	// ErrBusy means a check or download is already in flight and the new
	// request could not be coalesced into it.
	ErrBusy = errors.New("update operation already in flight")

	// ErrDownloadPrecondition means Download was called without a preceding
	// check reporting an available update.
	ErrDownloadPrecondition = errors.New("no update available to download")

	// ErrInstallPrecondition means Install was called without a completed
	// download. It produces no state transition and no event.
	ErrInstallPrecondition = errors.New("no completed download to install")

	// ErrSuperseded means a check finished after a channel switch made its
	// result stale; the result was discarded.
	ErrSuperseded = errors.New("check superseded by a newer request")
)
