package updater

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"drift/internal/config"
	"drift/internal/feed"
)

// newTestOrchestrator redirects config persistence into a temp dir, points
// the feed at baseURL and returns a ready orchestrator.
func newTestOrchestrator(t *testing.T, baseURL string, opts Options) *Orchestrator {
	t.Helper()
	dir := t.TempDir()
	oldFeed, oldChannel := config.FeedPath, config.ChannelPath
	config.FeedPath = filepath.Join(dir, "feed.json")
	config.ChannelPath = filepath.Join(dir, "channel.json")
	t.Cleanup(func() {
		config.FeedPath, config.ChannelPath = oldFeed, oldChannel
	})

	if err := config.SaveFeed(config.FeedConfig{Source: config.SourceGeneric, URL: baseURL}); err != nil {
		t.Fatal(err)
	}

	if opts.CurrentVersion == "" {
		opts.CurrentVersion = "v1.0.0"
	}
	if opts.Cooldown == 0 {
		opts.Cooldown = time.Minute
	}
	opts.DataDir = filepath.Join(dir, "data")
	return New(opts)
}

// eventRecorder collects broadcast events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) observe(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func (r *eventRecorder) list() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func manifest(version string) string {
	return fmt.Sprintf("version: %s\nreleaseDate: \"2026-06-01T00:00:00Z\"\nreleaseNotes: notes for %s\nfiles:\n  - url: drift-bin\n    size: 64\n", version, version)
}

func TestCheck_UpdateAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(manifest("1.4.0")))
	}))
	defer srv.Close()

	o := newTestOrchestrator(t, srv.URL, Options{})
	rec := &eventRecorder{}
	o.Subscribe(rec.observe)

	res, err := o.Check(false)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !res.UpdateAvailable || res.Version != "1.4.0" {
		t.Errorf("Check() = %+v, want available 1.4.0", res)
	}
	if res.Coalesced {
		t.Error("fresh check marked coalesced")
	}

	if got := o.State().Phase; got != PhaseUpdateAvailable {
		t.Errorf("phase = %s, want %s", got, PhaseUpdateAvailable)
	}
	if got := o.State().LatestVersion; got != "1.4.0" {
		t.Errorf("latest = %q, want 1.4.0", got)
	}

	kinds := rec.kinds()
	want := []EventKind{EventChecking, EventAvailable}
	if len(kinds) != len(want) || kinds[0] != want[0] || kinds[1] != want[1] {
		t.Errorf("events = %v, want %v", kinds, want)
	}
	if evt := rec.list()[1]; evt.Version != "1.4.0" || evt.Notes == "" || evt.Date.IsZero() {
		t.Errorf("available event missing payload: %+v", evt)
	}
}

func TestCheck_UpToDate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(manifest("1.0.0")))
	}))
	defer srv.Close()

	o := newTestOrchestrator(t, srv.URL, Options{})
	rec := &eventRecorder{}
	o.Subscribe(rec.observe)

	res, err := o.Check(false)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if res.UpdateAvailable {
		t.Error("Check() reports update for same version")
	}
	if res.Version != "v1.0.0" {
		t.Errorf("Version = %q, want current v1.0.0", res.Version)
	}
	if got := o.State().Phase; got != PhaseUpToDate {
		t.Errorf("phase = %s, want %s", got, PhaseUpToDate)
	}

	kinds := rec.kinds()
	if len(kinds) != 2 || kinds[1] != EventNotAvailable {
		t.Errorf("events = %v, want [checking not-available]", kinds)
	}
}

func TestCheck_CooldownReturnsCachedResult(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(manifest("1.4.0")))
	}))
	defer srv.Close()

	o := newTestOrchestrator(t, srv.URL, Options{Cooldown: time.Minute})

	first, err := o.Check(false)
	if err != nil {
		t.Fatalf("first Check() error = %v", err)
	}

	second, err := o.Check(false)
	if err != nil {
		t.Fatalf("second Check() error = %v", err)
	}
	if !second.Coalesced {
		t.Error("second check within cooldown not marked coalesced")
	}
	if second.Version != first.Version {
		t.Errorf("cached result version = %q, want %q", second.Version, first.Version)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("feed hit %d times, want 1 (second check must not reach the network)", n)
	}
}

func TestCheck_ForceBypassesCooldown(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(manifest("1.4.0")))
	}))
	defer srv.Close()

	o := newTestOrchestrator(t, srv.URL, Options{Cooldown: time.Minute})

	if _, err := o.Check(false); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	res, err := o.Check(true)
	if err != nil {
		t.Fatalf("Check(force) error = %v", err)
	}
	if res.Coalesced {
		t.Error("forced check served from cache")
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Errorf("feed hit %d times, want 2", n)
	}
}

func TestCheck_NetworkFailureBecomesErrorState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	o := newTestOrchestrator(t, srv.URL, Options{})
	rec := &eventRecorder{}
	o.Subscribe(rec.observe)

	if _, err := o.Check(false); err == nil {
		t.Fatal("Check() succeeded against a dead server")
	}
	if got := o.State().Phase; got != PhaseError {
		t.Errorf("phase = %s, want %s", got, PhaseError)
	}

	kinds := rec.kinds()
	if len(kinds) != 2 || kinds[1] != EventError {
		t.Errorf("events = %v, want [checking error]", kinds)
	}
	if msg := rec.list()[1].Message; msg == "" {
		t.Error("error event has no message")
	}
}

func TestCheck_RecoversFromError(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(manifest("1.4.0")))
	}))
	defer srv.Close()

	o := newTestOrchestrator(t, srv.URL, Options{})

	if _, err := o.Check(false); err == nil {
		t.Fatal("first Check() should fail")
	}
	fail.Store(false)

	res, err := o.Check(true)
	if err != nil {
		t.Fatalf("Check() after error = %v", err)
	}
	if !res.UpdateAvailable {
		t.Error("recovered check did not report the update")
	}
}

func TestCheck_NoReleasesIsDistinct(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	o := newTestOrchestrator(t, srv.URL, Options{})
	_, err := o.Check(false)
	if !errors.Is(err, feed.ErrNoReleases) {
		t.Errorf("Check() error = %v, want ErrNoReleases", err)
	}
}

func TestInstall_PreconditionViolated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(manifest("1.4.0")))
	}))
	defer srv.Close()

	o := newTestOrchestrator(t, srv.URL, Options{})
	rec := &eventRecorder{}
	o.Subscribe(rec.observe)

	// From Idle.
	if err := o.Install(); !errors.Is(err, ErrInstallPrecondition) {
		t.Errorf("Install() from idle = %v, want ErrInstallPrecondition", err)
	}
	if got := o.State().Phase; got != PhaseIdle {
		t.Errorf("phase after rejected install = %s, want idle", got)
	}
	if n := len(rec.kinds()); n != 0 {
		t.Errorf("rejected install emitted %d events, want 0", n)
	}

	// From UpdateAvailable (check done, nothing downloaded).
	if _, err := o.Check(false); err != nil {
		t.Fatal(err)
	}
	if err := o.Install(); !errors.Is(err, ErrInstallPrecondition) {
		t.Errorf("Install() from update-available = %v, want ErrInstallPrecondition", err)
	}
	if got := o.State().Phase; got != PhaseUpdateAvailable {
		t.Errorf("phase after rejected install = %s, want update-available", got)
	}
}

func TestDownload_PreconditionViolated(t *testing.T) {
	o := newTestOrchestrator(t, "http://127.0.0.1:0", Options{})
	if err := o.Download(); !errors.Is(err, ErrDownloadPrecondition) {
		t.Errorf("Download() from idle = %v, want ErrDownloadPrecondition", err)
	}
}

// serveRelease returns a test server exposing a manifest and its artifact.
func serveRelease(t *testing.T, version string, artifact []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/latest.yml", func(w http.ResponseWriter, r *http.Request) {
		m := fmt.Sprintf("version: %s\nreleaseDate: \"2026-06-01T00:00:00Z\"\nreleaseNotes: fixes\nfiles:\n  - url: drift-bin\n    size: %d\n", version, len(artifact))
		w.Write([]byte(m))
	})
	mux.HandleFunc("/drift-bin", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(artifact)))
		w.Write(artifact)
	})
	return httptest.NewServer(mux)
}

func TestDownload_FullCycle(t *testing.T) {
	artifact := []byte(strings.Repeat("drift-release-payload\n", 8192))
	srv := serveRelease(t, "1.4.0", artifact)
	defer srv.Close()

	o := newTestOrchestrator(t, srv.URL, Options{})
	rec := &eventRecorder{}
	o.Subscribe(rec.observe)

	if _, err := o.Check(false); err != nil {
		t.Fatal(err)
	}
	if err := o.Download(); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	if got := o.State().Phase; got != PhaseDownloaded {
		t.Errorf("phase = %s, want downloaded", got)
	}

	// Staged artifact on disk, complete.
	o.mu.Lock()
	staged := o.stagedPath
	o.mu.Unlock()
	info, err := os.Stat(staged)
	if err != nil {
		t.Fatalf("staged artifact missing: %v", err)
	}
	if info.Size() != int64(len(artifact)) {
		t.Errorf("staged size = %d, want %d", info.Size(), len(artifact))
	}

	// Progress events: monotonic percent, never above 100, terminal 100.
	var progress []Progress
	for _, e := range rec.list() {
		if e.Kind == EventProgress {
			progress = append(progress, e.Progress)
		}
	}
	if len(progress) == 0 {
		t.Fatal("no progress events emitted")
	}
	last := -1.0
	for i, p := range progress {
		if p.Percent < last {
			t.Errorf("progress[%d] = %.2f%% after %.2f%%, not monotonic", i, p.Percent, last)
		}
		if p.Percent > 100 {
			t.Errorf("progress[%d] = %.2f%% exceeds 100", i, p.Percent)
		}
		last = p.Percent
	}
	if final := progress[len(progress)-1]; final.Percent != 100 || final.Transferred != int64(len(artifact)) {
		t.Errorf("final progress = %+v, want 100%% of %d bytes", final, len(artifact))
	}

	// Terminal event is downloaded, after every progress event.
	kinds := rec.kinds()
	if kinds[len(kinds)-1] != EventDownloaded {
		t.Errorf("last event = %s, want downloaded", kinds[len(kinds)-1])
	}
}

func TestDownload_FailureLeavesNoUsableArtifact(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/latest.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("version: 1.4.0\nfiles:\n  - url: drift-bin\n"))
	})
	mux.HandleFunc("/drift-bin", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	o := newTestOrchestrator(t, srv.URL, Options{})
	if _, err := o.Check(false); err != nil {
		t.Fatal(err)
	}
	if err := o.Download(); err == nil {
		t.Fatal("Download() succeeded against a failing artifact endpoint")
	}

	if got := o.State().Phase; got != PhaseError {
		t.Errorf("phase = %s, want error", got)
	}
	o.mu.Lock()
	staged := o.stagedPath
	o.mu.Unlock()
	if staged != "" {
		t.Errorf("stagedPath = %q after failed download, want empty", staged)
	}
}

func TestInstall_AppliesStagedAndRestarts(t *testing.T) {
	artifact := []byte("new binary contents")
	srv := serveRelease(t, "1.4.0", artifact)
	defer srv.Close()

	o := newTestOrchestrator(t, srv.URL, Options{InstallGrace: 10 * time.Millisecond})

	var appliedPath string
	restarted := make(chan struct{})
	o.apply = func(path string) error {
		appliedPath = path
		return nil
	}
	o.restart = func() { close(restarted) }

	if _, err := o.Check(false); err != nil {
		t.Fatal(err)
	}
	if err := o.Download(); err != nil {
		t.Fatal(err)
	}
	if err := o.Install(); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if got := o.State().Phase; got != PhaseInstalling {
		t.Errorf("phase = %s, want installing", got)
	}

	select {
	case <-restarted:
	case <-time.After(2 * time.Second):
		t.Fatal("restart not triggered within grace period")
	}
	if appliedPath == "" {
		t.Error("apply not called with staged path")
	}
}

func TestCheck_RejectedWhileDownloadPipelineActive(t *testing.T) {
	artifact := []byte("payload")
	srv := serveRelease(t, "1.4.0", artifact)
	defer srv.Close()

	o := newTestOrchestrator(t, srv.URL, Options{})
	if _, err := o.Check(false); err != nil {
		t.Fatal(err)
	}
	if err := o.Download(); err != nil {
		t.Fatal(err)
	}

	if _, err := o.Check(true); !errors.Is(err, ErrBusy) {
		t.Errorf("Check() while downloaded = %v, want ErrBusy", err)
	}
	if _, err := o.SetChannel(config.ChannelPrerelease); !errors.Is(err, ErrBusy) {
		t.Errorf("SetChannel() while downloaded = %v, want ErrBusy", err)
	}
}

func TestSetChannel_SupersedesInFlightCheck(t *testing.T) {
	stableStarted := make(chan struct{})
	releaseStable := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/latest.yml", func(w http.ResponseWriter, r *http.Request) {
		close(stableStarted)
		<-releaseStable
		w.Write([]byte(manifest("1.5.0")))
	})
	mux.HandleFunc("/beta.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(manifest("2.0.0-beta.1")))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	o := newTestOrchestrator(t, srv.URL, Options{AllowPrerelease: true})

	checkErr := make(chan error, 1)
	go func() {
		_, err := o.Check(false)
		checkErr <- err
	}()
	<-stableStarted

	// Switch channels while the stable check hangs in the feed.
	res, err := o.SetChannel(config.ChannelPrerelease)
	if err != nil {
		t.Fatalf("SetChannel() error = %v", err)
	}
	if !res.UpdateAvailable || res.Version != "2.0.0-beta.1" {
		t.Errorf("SetChannel() check = %+v, want 2.0.0-beta.1", res)
	}

	// Let the stale check finish; its result must be discarded.
	close(releaseStable)
	if err := <-checkErr; !errors.Is(err, ErrSuperseded) {
		t.Errorf("stale check error = %v, want ErrSuperseded", err)
	}

	if got := o.State().LatestVersion; got != "2.0.0-beta.1" {
		t.Errorf("latest = %q after supersede, want 2.0.0-beta.1", got)
	}
	if got := o.State().Phase; got != PhaseUpdateAvailable {
		t.Errorf("phase = %s, want update-available", got)
	}
}

func TestChannelPin_StableUnlessAllowed(t *testing.T) {
	var paths []string
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.Write([]byte(manifest("1.4.0")))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// Pinned (default): stored prerelease preference still resolves stable.
	o := newTestOrchestrator(t, srv.URL, Options{})
	if _, err := o.SetChannel(config.ChannelPrerelease); err != nil {
		t.Fatal(err)
	}
	if got := o.Channel(); got != config.ChannelPrerelease {
		t.Errorf("stored channel = %q, want prerelease", got)
	}
	mu.Lock()
	lastPath := paths[len(paths)-1]
	mu.Unlock()
	if lastPath != "/latest.yml" {
		t.Errorf("pinned channel fetched %q, want /latest.yml", lastPath)
	}

	// Unpinned: preference is authoritative.
	o2 := newTestOrchestrator(t, srv.URL, Options{AllowPrerelease: true})
	if _, err := o2.SetChannel(config.ChannelPrerelease); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	lastPath = paths[len(paths)-1]
	mu.Unlock()
	if lastPath != "/beta.yml" {
		t.Errorf("unpinned prerelease fetched %q, want /beta.yml", lastPath)
	}
}

func TestNotifyFocus_SharesGlobalCooldown(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(manifest("1.0.0")))
	}))
	defer srv.Close()

	o := newTestOrchestrator(t, srv.URL, Options{Cooldown: time.Minute})

	// Rapid focus events from many windows share one cooldown.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.NotifyFocus()
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("feed hit %d times for 8 rapid focus events, want 1", n)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{500, "500 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{3862528, "3.6 MiB"}, // 3.683..., truncated not rounded
		{1073741824, "1.0 GiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatRate(t *testing.T) {
	if got := FormatRate(1536); got != "1.5 KiB/s" {
		t.Errorf("FormatRate(1536) = %q, want 1.5 KiB/s", got)
	}
}

func TestSetChannel_BusyRejectDoesNotDisruptDownload(t *testing.T) {
	payload := []byte(strings.Repeat("drift-release-payload\n", 512))
	half := len(payload) / 2

	artifactStarted := make(chan struct{})
	finishArtifact := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/latest.yml", func(w http.ResponseWriter, r *http.Request) {
		m := fmt.Sprintf("version: 1.4.0\nfiles:\n  - url: drift-bin\n    size: %d\n", len(payload))
		w.Write([]byte(m))
	})
	mux.HandleFunc("/drift-bin", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(payload)))
		w.Write(payload[:half])
		w.(http.Flusher).Flush()
		close(artifactStarted)
		<-finishArtifact
		w.Write(payload[half:])
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	o := newTestOrchestrator(t, srv.URL, Options{})
	rec := &eventRecorder{}
	o.Subscribe(rec.observe)

	if _, err := o.Check(false); err != nil {
		t.Fatal(err)
	}

	dlErr := make(chan error, 1)
	go func() { dlErr <- o.Download() }()
	<-artifactStarted

	// Switching channels mid-download is rejected and must not touch the
	// running transfer.
	if _, err := o.SetChannel(config.ChannelPrerelease); !errors.Is(err, ErrBusy) {
		t.Fatalf("SetChannel() during download = %v, want ErrBusy", err)
	}
	close(finishArtifact)

	if err := <-dlErr; err != nil {
		t.Fatalf("Download() after rejected channel switch = %v", err)
	}
	if got := o.State().Phase; got != PhaseDownloaded {
		t.Errorf("phase = %s, want downloaded", got)
	}

	// Progress kept flowing after the rejected switch: the terminal sample
	// still reports the whole artifact.
	var final Progress
	for _, e := range rec.list() {
		if e.Kind == EventProgress {
			final = e.Progress
		}
	}
	if final.Transferred != int64(len(payload)) || final.Percent != 100 {
		t.Errorf("final progress = %+v, want 100%% of %d bytes", final, len(payload))
	}
	kinds := rec.kinds()
	if kinds[len(kinds)-1] != EventDownloaded {
		t.Errorf("last event = %s, want downloaded", kinds[len(kinds)-1])
	}

	// The preference landed and applies to the next check.
	if got := o.Channel(); got != config.ChannelPrerelease {
		t.Errorf("stored channel = %q, want prerelease", got)
	}
}

func TestDownload_FailureAfterBusyChannelSwitchReachesError(t *testing.T) {
	artifactStarted := make(chan struct{})
	abortArtifact := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/latest.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("version: 1.4.0\nfiles:\n  - url: drift-bin\n    size: 4096\n"))
	})
	mux.HandleFunc("/drift-bin", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		w.Write(make([]byte, 16))
		w.(http.Flusher).Flush()
		close(artifactStarted)
		<-abortArtifact
		// Return early: the truncated body fails the client read.
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	o := newTestOrchestrator(t, srv.URL, Options{})
	if _, err := o.Check(false); err != nil {
		t.Fatal(err)
	}

	dlErr := make(chan error, 1)
	go func() { dlErr <- o.Download() }()
	<-artifactStarted

	if _, err := o.SetChannel(config.ChannelPrerelease); !errors.Is(err, ErrBusy) {
		t.Fatalf("SetChannel() during download = %v, want ErrBusy", err)
	}
	close(abortArtifact)

	err := <-dlErr
	if err == nil {
		t.Fatal("Download() succeeded on a truncated artifact")
	}
	if errors.Is(err, ErrSuperseded) {
		t.Fatalf("Download() error = %v; the rejected switch must not supersede the download", err)
	}
	if got := o.State().Phase; got != PhaseError {
		t.Errorf("phase = %s, want error", got)
	}

	// The session is not stuck: a forced check runs and recovers.
	res, err := o.Check(true)
	if err != nil {
		t.Fatalf("Check() after failed download = %v", err)
	}
	if !res.UpdateAvailable {
		t.Error("recovered check did not report the update")
	}
}
