package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ariadm/internal/cleanup"

	"github.com/go-co-op/gocron"
)

// Poller drives periodic status reconciliation and the cleanup sweep
type Poller struct {
	supervisor    *Supervisor
	cleanup       *cleanup.Service
	cron          *gocron.Scheduler
	logger        *slog.Logger
	pollInterval  time.Duration
	sweepInterval time.Duration
}

// NewPoller creates a poller. A nil cleanup service disables the sweep job.
func NewPoller(supervisor *Supervisor, sweeper *cleanup.Service, pollInterval, sweepInterval time.Duration) *Poller {
	cron := gocron.NewScheduler(time.Local)
	cron.SingletonModeAll()

	return &Poller{
		supervisor:    supervisor,
		cleanup:       sweeper,
		cron:          cron,
		logger:        slog.Default(),
		pollInterval:  pollInterval,
		sweepInterval: sweepInterval,
	}
}

// Start registers the jobs and runs them until ctx is done
func (p *Poller) Start(ctx context.Context) error {
	p.logger.Info("Starting status poller", "interval", p.pollInterval)

	if _, err := p.cron.Every(p.pollInterval).Do(p.refresh, ctx); err != nil {
		return fmt.Errorf("failed to schedule status poll: %w", err)
	}
	if p.cleanup != nil {
		if _, err := p.cron.Every(p.sweepInterval).Do(p.sweep); err != nil {
			return fmt.Errorf("failed to schedule cleanup sweep: %w", err)
		}
	}

	p.cron.StartAsync()

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

// Stop stops the scheduler. Running jobs finish first.
func (p *Poller) Stop() {
	if p.cron.IsRunning() {
		p.logger.Info("Status poller shutting down")
		p.cron.Stop()
	}
}

func (p *Poller) refresh(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	p.supervisor.Refresh(ctx)
}

func (p *Poller) sweep() {
	if _, err := p.cleanup.Sweep(); err != nil {
		p.logger.Error("Cleanup sweep failed", "error", err)
	}
}
