package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"drift/internal/httpserver"
	"drift/internal/scheduler"
	"drift/internal/updater"
)

// defaultServeAddr is where the host UI expects the update service.
const defaultServeAddr = ":7456"

// RunServe is the entry point for `drift serve`.
//
// It runs until interrupted:
//   - HTTP command surface + WebSocket event stream on addr
//   - startup check trigger after a short delay
//   - periodic background checks via the scheduler
func RunServe(addr string) {
	if addr == "" {
		addr = defaultServeAddr
	}

	orch := newOrchestrator()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Startup trigger: one automatic check shortly after boot.
	orch.Start(ctx)

	// ── Scheduler (goroutine) ─────────────────────────────────────────────────
	sched := startScheduler(orch)
	if sched != nil {
		defer sched.Stop()
	}

	// ── HTTP server (goroutine) ───────────────────────────────────────────────
	fmt.Printf("Update service listening on %s\n", addr)
	httpServer := httpserver.NewHTTPServer(orch, Version)
	go func() {
		if err := httpServer.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "[http] error: %v\n", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		_ = httpServer.Shutdown(shutCtx)
	}()

	<-ctx.Done()
	fmt.Printf("\nShutting down...\n")
}

// startScheduler initialises the periodic background check.
func startScheduler(orch *updater.Orchestrator) *scheduler.Scheduler {
	sched := scheduler.New("", func() {
		if _, err := orch.Check(false); err != nil {
			// Busy pipelines and transient feed failures are expected here;
			// the next tick retries.
			log.Printf("[scheduler] background check: %v", err)
		}
	})
	if err := sched.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "[scheduler] start error: %v\n", err)
		return nil
	}
	return sched
}
