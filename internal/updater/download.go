package updater

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"drift/internal/feed"
)

// progressInterval paces progress events so observers are not flooded.
const progressInterval = 250 * time.Millisecond

// Download streams the available update's artifact into the staging
// directory, emitting periodic progress events. Valid only when a check has
// reported an update; anything else is a caller error. A failed download
// removes its partial file and moves the session to Error, so no partial
// artifact is ever staged as usable.
func (o *Orchestrator) Download() error {
	o.mu.Lock()
	if o.phase != PhaseUpdateAvailable {
		phase := o.phase
		o.mu.Unlock()
		if phase == PhaseDownloading {
			return ErrBusy
		}
		return fmt.Errorf("%w (phase %s)", ErrDownloadPrecondition, phase)
	}
	rel := o.latest
	gen := o.gen
	o.phase = PhaseDownloading
	o.progress = Progress{}
	o.mu.Unlock()

	asset, err := rel.CurrentPlatformAsset()
	if err != nil {
		return o.downloadFailed(gen, err)
	}

	log.Printf("[updater] downloading %s from %s", rel.Version, asset.URL)

	staged, err := o.fetchArtifact(gen, asset)
	if err != nil {
		return o.downloadFailed(gen, err)
	}

	o.mu.Lock()
	o.stagedPath = staged
	o.phase = PhaseDownloaded
	o.mu.Unlock()

	o.bus.Broadcast(Event{Kind: EventDownloaded, Version: rel.Version, Notes: rel.Notes, Date: rel.Date})
	return nil
}

// fetchArtifact downloads one asset to a temp file in the staging dir and
// renames it into place only after the full body arrived.
func (o *Orchestrator) fetchArtifact(gen uint64, asset feed.Asset) (string, error) {
	stagingDir := filepath.Join(o.opts.DataDir, "staging")
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}

	resp, err := o.dlClient.Get(asset.URL)
	if err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download returned HTTP %d", resp.StatusCode)
	}

	total := resp.ContentLength
	if total <= 0 && asset.Size > 0 {
		total = asset.Size
	}

	f, err := os.CreateTemp(stagingDir, "drift-update-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := f.Name()

	counter := &progressWriter{
		total: total,
		emit:  func(p Progress) { o.emitProgress(gen, p) },
	}
	if _, err := io.Copy(f, io.TeeReader(resp.Body, counter)); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	counter.flush()

	if err := os.Chmod(tmpPath, 0755); err != nil {
		os.Remove(tmpPath)
		return "", err
	}

	destPath := filepath.Join(stagingDir, asset.Name)
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	return destPath, nil
}

// emitProgress records and broadcasts a progress sample if the session has
// not been superseded.
func (o *Orchestrator) emitProgress(gen uint64, p Progress) {
	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		return
	}
	o.progress = p
	o.mu.Unlock()

	o.bus.Broadcast(Event{Kind: EventProgress, Progress: p})
}

// downloadFailed removes any session claim to the artifact and reports the
// error.
func (o *Orchestrator) downloadFailed(gen uint64, err error) error {
	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		return ErrSuperseded
	}
	o.phase = PhaseError
	o.progress = Progress{}
	o.stagedPath = ""
	o.mu.Unlock()

	log.Printf("[updater] download failed: %v", err)
	o.bus.Broadcast(Event{Kind: EventError, Message: err.Error()})
	return err
}

// progressWriter counts bytes flowing through the download and emits paced
// progress samples with an instantaneous rate. Percent is clamped to
// [0, 100] and, because transferred only grows against a fixed total, is
// monotonically non-decreasing within one download.
type progressWriter struct {
	total       int64
	transferred int64
	emit        func(Progress)

	lastEmit  time.Time
	lastBytes int64
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.transferred += int64(len(p))

	now := time.Now()
	if w.lastEmit.IsZero() {
		w.lastEmit = now
		w.emit(w.sample(0))
		return len(p), nil
	}
	if elapsed := now.Sub(w.lastEmit); elapsed >= progressInterval {
		bps := float64(w.transferred-w.lastBytes) / elapsed.Seconds()
		w.lastEmit = now
		w.lastBytes = w.transferred
		w.emit(w.sample(bps))
	}
	return len(p), nil
}

// flush emits the terminal 100% sample.
func (w *progressWriter) flush() {
	w.emit(w.sample(0))
}

func (w *progressWriter) sample(bps float64) Progress {
	p := Progress{
		BytesPerSecond: bps,
		Transferred:    w.transferred,
		Total:          w.total,
	}
	if w.total > 0 {
		p.Percent = float64(w.transferred) / float64(w.total) * 100
		if p.Percent > 100 {
			p.Percent = 100
		}
		if p.Percent < 0 {
			p.Percent = 0
		}
	}
	return p
}
