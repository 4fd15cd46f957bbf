package scheduler

import (
	"log"
	"sync"

	"github.com/robfig/cron/v3"
)

// DefaultSpec is the cadence for background update checks in serve mode.
// Checks it fires are non-forced, so the cooldown gate still applies when
// another trigger got there first.
const DefaultSpec = "@every 6h"

// CheckFunc is called when the schedule fires.
type CheckFunc func()

// Scheduler drives periodic background update checks.
type Scheduler struct {
	check CheckFunc
	spec  string

	mu   sync.Mutex
	cron *cron.Cron
}

// New creates a Scheduler that calls check on the given cron spec.
// An empty spec selects DefaultSpec.
func New(spec string, check CheckFunc) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	return &Scheduler{check: check, spec: spec}
}

// Start registers the check schedule and begins dispatching it.
// It is safe to call Start only once.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.spec, func() {
		log.Printf("[scheduler] periodic update check fired")
		s.check()
	}); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("[scheduler] started, spec=%q", s.spec)
	return nil
}

// Stop shuts down the cron runner, waiting for a running check to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.cron = nil
	}
	log.Printf("[scheduler] stopped")
}
