package downloader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"ariadm/internal/database"
	"ariadm/pkg/models"
)

// minuteOfDay converts "HH:MM" into minutes since midnight
func minuteOfDay(hhmm string) (int, error) {
	hour, minute, ok := strings.Cut(strings.TrimSpace(hhmm), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", hhmm)
	}
	h, err := strconv.Atoi(hour)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", hhmm)
	}
	m, err := strconv.Atoi(minute)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", hhmm)
	}
	return h*60 + m, nil
}

func minuteOf(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// sleep waits for d and reports false if ctx ended first
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// gate is a registered wait on one gid
type gate struct {
	cancel context.CancelFunc
}

// openGate registers a cancellable wait for gid, replacing any earlier one. The returned func unregisters it.
func (s *Supervisor) openGate(parent context.Context, gid string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	g := &gate{cancel: cancel}

	s.mu.Lock()
	if previous, ok := s.gates[gid]; ok {
		previous.cancel()
	}
	s.gates[gid] = g
	s.mu.Unlock()

	return ctx, func() {
		s.mu.Lock()
		if s.gates[gid] == g {
			delete(s.gates, gid)
		}
		s.mu.Unlock()
		cancel()
	}
}

// closeGate wakes the gate waiting on gid, if any
func (s *Supervisor) closeGate(gid string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.gates[gid]; ok {
		g.cancel()
		delete(s.gates, gid)
	}
}

// openGates returns the gids that currently wait on a start or end time
func (s *Supervisor) openGates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	gids := make([]string, 0, len(s.gates))
	for gid := range s.gates {
		gids = append(gids, gid)
	}
	sort.Strings(gids)
	return gids
}

// waitForStart blocks until the local clock reaches startTime.
// Only an exact minute match opens the gate, so a start time that already passed today waits for tomorrow.
func (s *Supervisor) waitForStart(ctx context.Context, gid, category, startTime string) error {
	target, err := minuteOfDay(startTime)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	s.logger.Info("Download scheduled", "gid", gid, "start_time", startTime)

	for minuteOf(s.now()) != target {
		if !sleep(ctx, s.opts.GatePollInterval) {
			return ErrCanceled
		}
		if s.stopRequested(gid, category) {
			return ErrCanceled
		}
	}
	return nil
}

// stopRequested checks the catalog and the session for a stop made from another caller
func (s *Supervisor) stopRequested(gid, category string) bool {
	download, err := s.db.SearchDownload(gid)
	if err != nil {
		s.logger.Warn("Scheduled download disappeared", "gid", gid, "error", err)
		return true
	}
	if download.Status == models.StatusStopped {
		return true
	}
	return s.session.ShutdownRequested(gid) || s.session.CategoryShutdownRequested(category)
}

// watch starts the end time gate of gid in the background
func (s *Supervisor) watch(gid, endTime string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, done := s.openGate(s.ctx, gid)
		defer done()
		s.waitForEnd(ctx, gid, endTime)
	}()
}

// waitForEnd stops gid when the local clock reaches endTime, unless it finished first.
// The end time is cleared from the link request in every case.
func (s *Supervisor) waitForEnd(ctx context.Context, gid, endTime string) {
	defer func() {
		if err := s.db.ClearSchedule(gid, false, true, false); err != nil {
			s.logger.Warn("Failed to clear end time", "gid", gid, "error", err)
		}
	}()

	target, err := minuteOfDay(endTime)
	if err != nil {
		s.logger.Error("Invalid end time", "gid", gid, "end_time", endTime, "error", err)
		return
	}
	s.logger.Info("End time is activated", "gid", gid, "end_time", endTime)

	for minuteOf(s.now()) != target {
		download, err := s.db.SearchDownload(gid)
		if err != nil || !download.Status.IsActive() {
			s.logger.Info("Download has been finished", "gid", gid)
			return
		}
		if !sleep(ctx, s.opts.GatePollInterval) {
			return
		}
	}

	s.logger.Info("Time is up", "gid", gid)
	s.forceStop(ctx, gid)
}

// forceStop retries stop while the engine does not acknowledge it and kills the engine as a last resort
func (s *Supervisor) forceStop(ctx context.Context, gid string) {
	_, err := s.stop(ctx, gid)
	if errors.Is(err, database.ErrNotFound) {
		return
	}
	for i := 0; err != nil && i < s.opts.StopRetries; i++ {
		if !sleep(ctx, s.opts.StopRetryInterval) {
			return
		}
		_, err = s.stop(ctx, gid)
	}
	if err == nil {
		return
	}

	s.logger.Error("Engine did not respond to stop, terminating it", "gid", gid, "error", err)
	if err := s.process.Kill(); err != nil {
		s.logger.Error("Failed to terminate engine", "error", err)
	}
}
