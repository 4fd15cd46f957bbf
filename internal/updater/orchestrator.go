package updater

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"drift/internal/config"
	"drift/internal/feed"
)

// Options configure an Orchestrator. Zero values pick the defaults noted
// per field.
type Options struct {
	// CurrentVersion is the running binary's version ("dev" disables checks).
	CurrentVersion string
	// DataDir is where downloads are staged. Default ~/.drift.
	DataDir string
	// Cooldown between automatic checks. Default 60s.
	Cooldown time.Duration
	// CheckTimeout bounds one feed round trip. Default 30s.
	CheckTimeout time.Duration
	// DownloadTimeout bounds one artifact download. Default 15m.
	DownloadTimeout time.Duration
	// StartupDelay defers the first automatic check so it does not compete
	// with startup I/O. Default 5s.
	StartupDelay time.Duration
	// InstallGrace is the pause between Install and process replacement,
	// giving callers time to persist pending state. Default 500ms.
	InstallGrace time.Duration
	// AllowPrerelease makes the stored channel preference authoritative.
	// When false (the default) the effective channel is pinned to stable
	// regardless of the stored preference; the preference is still persisted
	// and reported, so enabling the flag later honors it.
	AllowPrerelease bool
}

func (o *Options) applyDefaults() {
	if o.DataDir == "" {
		home, _ := os.UserHomeDir()
		o.DataDir = filepath.Join(home, ".drift")
	}
	if o.Cooldown <= 0 {
		o.Cooldown = DefaultCooldown
	}
	if o.CheckTimeout <= 0 {
		o.CheckTimeout = 30 * time.Second
	}
	if o.DownloadTimeout <= 0 {
		o.DownloadTimeout = 15 * time.Minute
	}
	if o.StartupDelay <= 0 {
		o.StartupDelay = 5 * time.Second
	}
	if o.InstallGrace <= 0 {
		o.InstallGrace = 500 * time.Millisecond
	}
}

// CheckResult is what a check call reports back to its caller. Coalesced is
// set when the result was served from the cooldown cache or from another
// caller's in-flight check rather than a fresh network request.
type CheckResult struct {
	UpdateAvailable bool      `json:"update_available"`
	Version         string    `json:"version,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	Date            time.Time `json:"date,omitzero"`
	Coalesced       bool      `json:"coalesced,omitempty"`
}

// Orchestrator is the update client: a single logical update session per
// process. It owns the phase state machine, the trigger gate and the event
// broadcaster; the command surface holds one instance and passes it around
// by reference. At most one check-or-download runs at a time.
type Orchestrator struct {
	opts     Options
	gate     *Gate
	bus      *Broadcaster
	client   *http.Client
	dlClient *http.Client
	group    singleflight.Group

	mu         sync.Mutex
	phase      Phase
	feedCfg    config.FeedConfig
	channel    config.Channel
	latest     *feed.Release
	lastResult *CheckResult
	progress   Progress
	stagedPath string
	gen        uint64

	// apply and restart perform the binary swap and process replacement
	// after install; tests override them.
	apply   func(string) error
	restart func()
}

// New builds an orchestrator from the persisted feed config and channel
// preference. Missing or broken persistence falls back to defaults and is
// never fatal.
func New(opts Options) *Orchestrator {
	opts.applyDefaults()
	o := &Orchestrator{
		opts:     opts,
		gate:     NewGate(opts.Cooldown),
		bus:      NewBroadcaster(),
		client:   &http.Client{Timeout: opts.CheckTimeout},
		dlClient: &http.Client{Timeout: opts.DownloadTimeout},
		phase:    PhaseIdle,
		feedCfg:  config.LoadFeed(),
		channel:  config.LoadChannel(),
	}
	o.apply = ReplaceSelf
	o.restart = o.relaunch
	return o
}

// Subscribe registers an observer for state-transition events.
func (o *Orchestrator) Subscribe(fn Observer) int { return o.bus.Subscribe(fn) }

// Unsubscribe removes a previously registered observer.
func (o *Orchestrator) Unsubscribe(token int) { o.bus.Unsubscribe(token) }

// State returns the current session snapshot for late-joining observers.
func (o *Orchestrator) State() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Snapshot{
		Phase:          o.phase,
		CurrentVersion: o.opts.CurrentVersion,
		Progress:       o.progress,
	}
	if o.latest != nil {
		s.LatestVersion = o.latest.Version
	}
	return s
}

// Feed returns the persisted feed config. The file is re-read on every
// explicit get, matching the read-at-startup/read-on-command contract.
func (o *Orchestrator) Feed() config.FeedConfig { return config.LoadFeed() }

// SetFeed validates and persists a new feed config. It deliberately does not
// touch the running session: the new feed takes effect on the next process
// start. Persistence failure is soft; the error is logged and returned for
// the caller to surface, but the file content is best-effort.
func (o *Orchestrator) SetFeed(cfg config.FeedConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.SaveFeed(cfg); err != nil {
		return fmt.Errorf("persist feed config: %w", err)
	}
	log.Printf("[updater] feed config saved (takes effect on next start)")
	return nil
}

// Channel returns the stored channel preference.
func (o *Orchestrator) Channel() config.Channel {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.channel
}

// effectiveChannelLocked applies the prerelease pin. Must hold o.mu.
func (o *Orchestrator) effectiveChannelLocked() config.Channel {
	if !o.opts.AllowPrerelease {
		return config.ChannelStable
	}
	return o.channel
}

// SetChannel persists the preference and immediately re-checks against the
// new channel, bypassing the cooldown. Any in-flight check is superseded:
// its result is dropped before touching observable state, so the last
// completed check after the switch wins. Persistence failure is soft.
func (o *Orchestrator) SetChannel(ch config.Channel) (*CheckResult, error) {
	if !ch.Valid() {
		return nil, fmt.Errorf("unknown channel %q", ch)
	}
	if err := config.SaveChannel(ch); err != nil {
		log.Printf("[updater] channel preference not persisted, using in-memory value: %v", err)
	}

	o.mu.Lock()
	o.channel = ch
	if o.phase == PhaseDownloading || o.phase == PhaseDownloaded || o.phase == PhaseInstalling {
		// A download pipeline is running; the new channel applies to the
		// next check rather than interrupting the artifact in flight. The
		// generation must not move here: the running download still owns it
		// for its progress and failure transitions.
		o.mu.Unlock()
		return nil, ErrBusy
	}
	o.gen++
	o.mu.Unlock()

	return o.Check(true)
}

// Check runs one feed check. Non-forced calls pass through the trigger gate:
// within the cooldown window they return the previous result, marked
// Coalesced, without a network request. Concurrent calls share a single
// in-flight check. Failures transition the session to Error and come back as
// a descriptive error, never a panic or uncaught fault.
func (o *Orchestrator) Check(force bool) (*CheckResult, error) {
	o.mu.Lock()
	switch o.phase {
	case PhaseDownloading, PhaseDownloaded, PhaseInstalling:
		o.mu.Unlock()
		return nil, ErrBusy
	}
	if !o.gate.ShouldRun(force, time.Now()) {
		cached := o.lastResult
		o.mu.Unlock()
		if cached != nil {
			res := *cached
			res.Coalesced = true
			return &res, nil
		}
		return &CheckResult{Coalesced: true}, nil
	}
	gen := o.gen
	o.mu.Unlock()

	// The singleflight key carries the generation so a channel switch starts
	// a fresh check instead of piggybacking on a superseded one.
	v, err, shared := o.group.Do(fmt.Sprintf("check-%d", gen), func() (interface{}, error) {
		return o.runCheck(force, gen)
	})
	if err != nil {
		return nil, err
	}
	res := v.(*CheckResult)
	if shared {
		out := *res
		out.Coalesced = true
		return &out, nil
	}
	return res, nil
}

// runCheck performs the network round trip and applies the result if the
// generation is still current.
func (o *Orchestrator) runCheck(force bool, gen uint64) (*CheckResult, error) {
	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		return nil, ErrSuperseded
	}
	cfg := o.feedCfg
	channel := o.effectiveChannelLocked()
	o.phase = PhaseChecking
	o.mu.Unlock()

	o.bus.Broadcast(Event{Kind: EventChecking})

	provider, err := feed.Resolve(cfg, channel)
	if err != nil {
		return nil, o.checkFailed(gen, fmt.Errorf("resolve feed: %w", err))
	}

	log.Printf("[updater] checking %s (channel %s, force %v)", provider.FeedURL(), channel, force)

	ctx, cancel := context.WithTimeout(context.Background(), o.opts.CheckTimeout)
	defer cancel()

	rel, err := provider.Fetch(ctx, o.client, feed.FetchOptions{Force: force})
	if err != nil {
		return nil, o.checkFailed(gen, err)
	}

	if feed.IsNewer(o.opts.CurrentVersion, rel.Version) {
		res := &CheckResult{
			UpdateAvailable: true,
			Version:         rel.Version,
			Notes:           rel.Notes,
			Date:            rel.Date,
		}
		o.mu.Lock()
		if gen != o.gen {
			o.mu.Unlock()
			return nil, ErrSuperseded
		}
		o.latest = rel
		o.phase = PhaseUpdateAvailable
		o.lastResult = res
		o.mu.Unlock()

		o.bus.Broadcast(Event{Kind: EventAvailable, Version: rel.Version, Notes: rel.Notes, Date: rel.Date})
		return res, nil
	}

	res := &CheckResult{Version: o.opts.CurrentVersion}
	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		return nil, ErrSuperseded
	}
	o.latest = nil
	o.phase = PhaseUpToDate
	o.lastResult = res
	o.mu.Unlock()

	o.bus.Broadcast(Event{Kind: EventNotAvailable, Version: o.opts.CurrentVersion})
	return res, nil
}

// checkFailed moves the session to Error unless the check was superseded.
func (o *Orchestrator) checkFailed(gen uint64, err error) error {
	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		return ErrSuperseded
	}
	o.phase = PhaseError
	o.mu.Unlock()

	log.Printf("[updater] check failed: %v", err)
	o.bus.Broadcast(Event{Kind: EventError, Message: err.Error()})
	return err
}

// Install applies the staged artifact after a short grace delay and restarts
// the process. Valid only after a completed download; calling it earlier is
// a caller error, reported as ErrInstallPrecondition with no state change.
func (o *Orchestrator) Install() error {
	o.mu.Lock()
	if o.phase != PhaseDownloaded {
		phase := o.phase
		o.mu.Unlock()
		return fmt.Errorf("%w (phase %s)", ErrInstallPrecondition, phase)
	}
	staged := o.stagedPath
	version := o.latest.Version
	o.phase = PhaseInstalling
	o.mu.Unlock()

	log.Printf("[updater] installing %s in %s", version, o.opts.InstallGrace)
	time.AfterFunc(o.opts.InstallGrace, func() {
		if err := o.apply(staged); err != nil {
			// The staged artifact stays in place; ApplyStaged picks it up
			// on the next start.
			log.Printf("[updater] install failed: %v", err)
			return
		}
		o.restart()
	})
	return nil
}

// Start arms the startup trigger: one automatic check after a fixed short
// delay. Cancelling ctx disarms it.
func (o *Orchestrator) Start(ctx context.Context) {
	timer := time.AfterFunc(o.opts.StartupDelay, func() {
		o.autoCheck("startup")
	})
	go func() {
		<-ctx.Done()
		timer.Stop()
	}()
}

// NotifyFocus is the app-wide focus trigger. All focus events share the one
// global cooldown; there is no per-window state.
func (o *Orchestrator) NotifyFocus() {
	o.autoCheck("focus")
}

func (o *Orchestrator) autoCheck(trigger string) {
	if o.opts.CurrentVersion == "dev" || o.opts.CurrentVersion == "" {
		return
	}
	res, err := o.Check(false)
	if err != nil {
		log.Printf("[updater] %s check failed: %v", trigger, err)
		return
	}
	if res.Coalesced {
		return
	}
	if res.UpdateAvailable {
		log.Printf("[updater] %s check: %s available", trigger, res.Version)
	}
}

// relaunch execs the freshly installed binary with the original arguments
// and exits the current process.
func (o *Orchestrator) relaunch() {
	self, err := os.Executable()
	if err != nil {
		log.Printf("[updater] cannot determine executable for relaunch: %v", err)
		os.Exit(0)
	}
	cmd := exec.Command(self, os.Args[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		log.Printf("[updater] relaunch failed: %v", err)
	}
	os.Exit(0)
}
