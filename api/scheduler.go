/*
PURPOSE: One-shot auto-apply trigger for app startup.

The engine has no daemon: recurring definitions are applied when the app
comes up (or when a session becomes valid), once per process. Trigger is
safe to call from every request path that detects a live session; only
the first call arms the run.

ERROR ISOLATION:
  A failed run is logged and reported through Notify; it never crashes
  the process or blocks startup.

SEE ALSO: engine/orchestrator.go for the batch semantics.
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iMuhammadMustafa/Budgeteer-sub007/engine"
)

type SchedulerConfig struct {
	// Enabled gates the whole scheduler; Trigger is a no-op when false.
	Enabled bool

	// Delay before the run starts, so startup I/O settles first.
	Delay time.Duration

	// SkipOnError demotes a failed run to a warning. Either way the
	// process keeps serving; the flag only controls log severity.
	SkipOnError bool

	// Notify, when set, receives the result of the run. Called even when
	// the run errored (with whatever partial result was produced).
	Notify func(engine.ApplyResult, error)
}

// StartupScheduler runs one auto-apply pass per process lifetime.
type StartupScheduler struct {
	Orchestrator *engine.Orchestrator
	Config       SchedulerConfig
	Log          zerolog.Logger

	once sync.Once
	done chan struct{}
}

func NewStartupScheduler(orc *engine.Orchestrator, cfg SchedulerConfig, log zerolog.Logger) *StartupScheduler {
	return &StartupScheduler{
		Orchestrator: orc,
		Config:       cfg,
		Log:          log,
		done:         make(chan struct{}),
	}
}

// Trigger arms the startup run for a tenant. Subsequent calls are no-ops,
// so every code path that notices a valid session can call it freely.
// ctx cancels the delay wait only; a run already started is allowed to
// finish so the batch is never torn mid-item.
func (s *StartupScheduler) Trigger(ctx context.Context, tenantID engine.TenantID) {
	if !s.Config.Enabled {
		return
	}
	s.once.Do(func() {
		go s.run(ctx, tenantID)
	})
}

// Done closes after the startup run completes (or is cancelled during
// the delay). Tests and graceful shutdown wait on it.
func (s *StartupScheduler) Done() <-chan struct{} {
	return s.done
}

func (s *StartupScheduler) run(ctx context.Context, tenantID engine.TenantID) {
	defer close(s.done)

	if s.Config.Delay > 0 {
		timer := time.NewTimer(s.Config.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			s.Log.Info().Str("tenant", string(tenantID)).Msg("startup auto-apply cancelled during delay")
			return
		}
	}

	s.Log.Info().Str("tenant", string(tenantID)).Msg("startup auto-apply starting")

	// Detached context: cancellation must not interrupt a batch in flight.
	result, err := s.Orchestrator.Run(context.Background(), tenantID)
	if err != nil {
		ev := s.Log.Error()
		if s.Config.SkipOnError {
			ev = s.Log.Warn()
		}
		ev.Err(err).Str("tenant", string(tenantID)).Msg("startup auto-apply failed")
	} else {
		s.Log.Info().
			Str("tenant", string(tenantID)).
			Int("applied", result.AppliedCount()).
			Int("failed", result.FailedCount()).
			Int("pending", result.PendingCount()).
			Msg("startup auto-apply finished")
	}

	if s.Config.Notify != nil {
		s.Config.Notify(result, err)
	}
}
