// Package downloader supervises downloads running in the aria2 engine
package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"ariadm/internal/config"
	"ariadm/internal/database"
	"ariadm/internal/folder"
	"ariadm/internal/session"
	"ariadm/internal/units"
	"ariadm/pkg/models"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrCanceled is returned by Submit when the download was stopped while waiting for its start time
	ErrCanceled = errors.New("download canceled")
	// ErrSubmitFailed is returned when the engine rejected a submission
	ErrSubmitFailed = errors.New("download did not start")
	// ErrInvalidRequest is returned for malformed download or category input
	ErrInvalidRequest = errors.New("invalid request")
)

// Options are the engine submission settings applied to every download
type Options struct {
	MaxTries             int
	RetryWait            int
	Timeout              int
	Split                int
	MinSplitSize         string
	DontCheckCertificate bool

	GatePollInterval  time.Duration
	StopRetries       int
	StopRetryInterval time.Duration
}

// OptionsFromConfig derives supervisor options from the application configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxTries:             cfg.MaxTries,
		RetryWait:            cfg.RetryWait,
		Timeout:              cfg.Timeout,
		Split:                16,
		MinSplitSize:         "1M",
		DontCheckCertificate: cfg.DontCheckCertificate,
		GatePollInterval:     cfg.GatePollInterval,
		StopRetries:          cfg.StopRetries,
		StopRetryInterval:    cfg.StopRetryInterval,
	}
}

// Supervisor submits downloads to the engine, enforces their start and end times
// and reconciles engine progress into the catalog
type Supervisor struct {
	db       *database.DB
	engine   Engine
	process  EngineProcess
	notifier Notifier
	placer   *folder.Service
	session  *session.Store
	opts     Options
	logger   *slog.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	gates map[string]*gate

	// status queries are collapsed per gid so a finished file is placed once
	queries singleflight.Group
}

// NewSupervisor creates a supervisor. Background work stops when Close is called.
func NewSupervisor(
	db *database.DB,
	engine Engine,
	process EngineProcess,
	notifier Notifier,
	placer *folder.Service,
	store *session.Store,
	opts Options,
) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		db:       db,
		engine:   engine,
		process:  process,
		notifier: notifier,
		placer:   placer,
		session:  store,
		opts:     opts,
		logger:   slog.Default(),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		gates:    make(map[string]*gate),
	}
}

// Close cancels every open gate and waits for background submissions to return
func (s *Supervisor) Close() {
	s.cancel()
	s.wg.Wait()
}

// EngineVersion returns the engine version
func (s *Supervisor) EngineVersion(ctx context.Context) (string, error) {
	return s.engine.GetVersion(ctx)
}

// AddDownload records a new download with its link request and submits it in the background.
// An empty category means "Single Downloads".
func (s *Supervisor) AddDownload(request *models.LinkRequest, category string) (*models.Download, error) {
	download, err := s.newDownload(request, category)
	if err != nil {
		return nil, err
	}
	if err := s.db.CreateDownload(download, request); err != nil {
		return nil, fmt.Errorf("failed to create download: %w", err)
	}

	s.logger.Info("Download added", "gid", download.GID, "category", download.Category, "link", request.Link)
	s.launch(download.GID)
	return download, nil
}

// newDownload validates request, assigns it a gid and builds its catalog row
func (s *Supervisor) newDownload(request *models.LinkRequest, category string) (*models.Download, error) {
	if request == nil || strings.TrimSpace(request.Link) == "" {
		return nil, fmt.Errorf("%w: link is required", ErrInvalidRequest)
	}
	if category == "" {
		category = models.SingleDownloads
	}
	if category == models.AllDownloads {
		return nil, fmt.Errorf("%w: downloads cannot be added to %q directly", ErrInvalidRequest, category)
	}
	if _, err := s.db.SearchCategory(category); err != nil {
		return nil, err
	}
	if err := validateRequest(request); err != nil {
		return nil, err
	}

	request.GID = newGID()
	status := models.StatusWaiting
	if models.Value(request.StartTime) != "" {
		status = models.StatusScheduled
	}

	now := s.timestamp()
	download := &models.Download{
		GID:          request.GID,
		FileName:     request.Out,
		Status:       status,
		Link:         models.Ptr(request.Link),
		FirstTryDate: models.Ptr(now),
		LastTryDate:  models.Ptr(now),
		Category:     category,
	}
	return download, nil
}

// Launch submits an existing download in the background
func (s *Supervisor) Launch(gid string) error {
	download, err := s.db.SearchDownload(gid)
	if err != nil {
		return err
	}
	if download.Status.IsActive() {
		if _, ok := s.session.Lookup(gid); ok {
			return fmt.Errorf("%w: download %s is already %s", ErrInvalidRequest, gid, download.Status)
		}
	}
	if download.Status == models.StatusComplete {
		return fmt.Errorf("%w: download %s is complete", ErrInvalidRequest, gid)
	}

	s.launch(gid)
	return nil
}

func (s *Supervisor) launch(gid string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Submit(s.ctx, gid); err != nil && !errors.Is(err, ErrCanceled) {
			s.logger.Error("Submission failed", "gid", gid, "error", err)
		}
	}()
}

// Submit sends the download to the engine, first waiting for its start time if one is set.
// It returns ErrCanceled without calling the engine when the download is stopped during the wait.
func (s *Supervisor) Submit(ctx context.Context, gid string) error {
	request, err := s.db.SearchLinkRequest(gid)
	if err != nil {
		return fmt.Errorf("failed to load link request: %w", err)
	}
	download, err := s.db.SearchDownload(gid)
	if err != nil {
		return fmt.Errorf("failed to load download: %w", err)
	}

	limit, err := normalizeLimit(request.LimitValue)
	if err != nil {
		s.setStatus(gid, models.StatusError)
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	headers := buildHeaders(request.LoadCookies, request.Header)

	startTime := models.Value(request.StartTime)
	status := models.StatusWaiting
	if startTime != "" {
		status = models.StatusScheduled
	}
	err = s.db.UpdateDownloads(models.DownloadPatch{
		GID:         gid,
		Status:      &status,
		LastTryDate: models.Ptr(s.timestamp()),
	})
	if err != nil {
		return fmt.Errorf("failed to update download: %w", err)
	}
	s.session.AddGID(gid, status)

	if startTime != "" {
		gateCtx, done := s.openGate(ctx, gid)
		err := s.waitForStart(gateCtx, gid, download.Category, startTime)
		done()
		if errors.Is(err, ErrCanceled) {
			return s.abandon(gid)
		}
		if err != nil {
			s.setStatus(gid, models.StatusError)
			s.session.RemoveGID(gid)
			return err
		}
		if s.stopRequested(gid, download.Category) {
			return s.abandon(gid)
		}

		// the limit may have been edited while the download was scheduled
		request, err = s.db.SearchLinkRequest(gid)
		if err != nil {
			return fmt.Errorf("failed to reload link request: %w", err)
		}
		if limit, err = normalizeLimit(request.LimitValue); err != nil {
			s.setStatus(gid, models.StatusError)
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		if err := s.db.ClearSchedule(gid, true, false, false); err != nil {
			s.logger.Warn("Failed to clear start time", "gid", gid, "error", err)
		}
		s.setStatus(gid, models.StatusWaiting)
	}

	dir := s.placer.WorkingDir(models.Value(request.DownloadPath))
	options := s.submitOptions(request, limit, headers, dir)

	// a stop that landed after the gate found nothing to remove in the engine
	if s.stopRequested(gid, download.Category) {
		return s.abandon(gid)
	}
	if _, err := s.engine.AddURI(ctx, []string{request.Link}, options); err != nil {
		s.logger.Error("Download did not start", "gid", gid, "error", err)
		s.setStatus(gid, models.StatusError)
		s.session.RemoveGID(gid)
		return fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}
	s.logger.Info("Download started", "gid", gid, "dir", dir)

	if endTime := models.Value(request.EndTime); endTime != "" {
		s.watch(gid, endTime)
	}
	return nil
}

// abandon records gid as stopped before it reached the engine
func (s *Supervisor) abandon(gid string) error {
	s.markStopped(gid)
	s.session.RemoveGID(gid)
	s.logger.Info("Download canceled", "gid", gid)
	return ErrCanceled
}

// submitOptions builds the addUri option set. Options without a value are left out.
func (s *Supervisor) submitOptions(r *models.LinkRequest, limit string, headers []string, dir string) map[string]any {
	options := map[string]any{}
	set := func(key, value string) {
		if value != "" {
			options[key] = value
		}
	}

	proxy := ""
	if ip := models.Value(r.IP); ip != "" {
		proxy = ip + ":" + models.Value(r.Port)
	}
	connections := ""
	if r.Connections != nil {
		connections = strconv.Itoa(*r.Connections)
	}

	set("gid", r.GID)
	set("max-tries", strconv.Itoa(s.opts.MaxTries))
	set("retry-wait", strconv.Itoa(s.opts.RetryWait))
	set("timeout", strconv.Itoa(s.opts.Timeout))
	set("out", models.Value(r.Out))
	set("user-agent", models.Value(r.UserAgent))
	set("referer", models.Value(r.Referer))
	set("all-proxy", proxy)
	set("all-proxy-user", models.Value(r.ProxyUser))
	set("all-proxy-passwd", models.Value(r.ProxyPasswd))
	set("http-user", models.Value(r.DownloadUser))
	set("http-passwd", models.Value(r.DownloadPasswd))
	set("max-download-limit", limit)
	set("split", strconv.Itoa(s.opts.Split))
	set("max-connection-per-server", connections)
	set("min-split-size", s.opts.MinSplitSize)
	set("continue", "true")
	set("dir", dir)
	if s.opts.DontCheckCertificate {
		set("check-certificate", "false")
	}
	if len(headers) > 0 {
		options["header"] = headers
	}
	return options
}

// Pause asks the engine to pause gid
func (s *Supervisor) Pause(ctx context.Context, gid string) error {
	if err := s.engine.Pause(ctx, gid); err != nil {
		s.logger.Error("Failed to pause download", "gid", gid, "error", err)
		return fmt.Errorf("failed to pause %s: %w", gid, err)
	}
	s.logger.Info("Download paused", "gid", gid)
	return nil
}

// Resume asks the engine to continue a paused gid
func (s *Supervisor) Resume(ctx context.Context, gid string) error {
	if err := s.engine.Unpause(ctx, gid); err != nil {
		s.logger.Error("Failed to unpause download", "gid", gid, "error", err)
		return fmt.Errorf("failed to unpause %s: %w", gid, err)
	}
	s.logger.Info("Download unpaused", "gid", gid)
	return nil
}

// PauseAll pauses every download that is downloading or waiting and returns the gids the engine paused
func (s *Supervisor) PauseAll(ctx context.Context) ([]string, error) {
	gids, err := s.db.DownloadingGIDs()
	if err != nil {
		return nil, err
	}
	return s.each(gids, func(gid string) error { return s.Pause(ctx, gid) })
}

// ResumeAll continues every paused download and returns the gids the engine resumed
func (s *Supervisor) ResumeAll(ctx context.Context) ([]string, error) {
	gids, err := s.db.PausedGIDs()
	if err != nil {
		return nil, err
	}
	return s.each(gids, func(gid string) error { return s.Resume(ctx, gid) })
}

// each applies fn to every gid and returns the ones it succeeded for
func (s *Supervisor) each(gids []string, fn func(gid string) error) ([]string, error) {
	done := make([]string, 0, len(gids))
	var errs []error
	for _, gid := range gids {
		if err := fn(gid); err != nil {
			errs = append(errs, err)
			continue
		}
		done = append(done, gid)
	}
	return done, errors.Join(errs...)
}

// Cancel stops gid and returns the engine acknowledgement, or "stopped" if it never reached the engine
func (s *Supervisor) Cancel(ctx context.Context, gid string) (string, error) {
	s.closeGate(gid)
	return s.stop(ctx, gid)
}

// stop removes gid from the engine unless it is still scheduled, then marks it stopped.
// An error means the engine did not acknowledge the removal.
func (s *Supervisor) stop(ctx context.Context, gid string) (string, error) {
	download, err := s.db.SearchDownload(gid)
	if err != nil {
		return "", err
	}

	answer := string(models.StatusStopped)
	var stopErr error
	if download.Status != models.StatusScheduled {
		if err := s.engine.Remove(ctx, gid); err != nil {
			s.logger.Error("Failed to stop download", "gid", gid, "error", err)
			answer = ""
			stopErr = fmt.Errorf("failed to stop %s: %w", gid, err)
		} else {
			answer = gid
			s.logger.Info("Download stopped", "gid", gid)
			if download.Status == models.StatusDownloading {
				if err := s.engine.RemoveDownloadResult(ctx, gid); err != nil {
					s.logger.Error("Failed to remove download result", "gid", gid, "error", err)
				}
			}
		}
	}

	if download.Status != models.StatusComplete {
		s.markStopped(gid)
		s.session.RemoveGID(gid)
	}
	return answer, stopErr
}

// markStopped clears the schedule of gid and records it as stopped
func (s *Supervisor) markStopped(gid string) {
	if err := s.db.ClearSchedule(gid, true, true, true); err != nil {
		s.logger.Warn("Failed to clear schedule", "gid", gid, "error", err)
	}
	s.setStatus(gid, models.StatusStopped)
}

// SetSpeedLimit stores a new limit for gid and applies it in the engine if the download was submitted
func (s *Supervisor) SetSpeedLimit(ctx context.Context, gid, limit string) error {
	normalized, err := units.NormalizeLimit(limit)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	download, err := s.db.SearchDownload(gid)
	if err != nil {
		return err
	}

	err = s.db.UpdateLinkRequests(models.LinkRequestPatch{GID: gid, LimitValue: models.Ptr(limit)})
	if err != nil {
		return fmt.Errorf("failed to store speed limit: %w", err)
	}
	if download.Status == models.StatusScheduled || !download.Status.IsActive() {
		return nil
	}

	err = s.engine.ChangeOption(ctx, gid, map[string]any{"max-download-limit": normalized})
	if err != nil {
		s.logger.Error("Speed limitation was unsuccessful", "gid", gid, "error", err)
		return fmt.Errorf("failed to change speed limit of %s: %w", gid, err)
	}
	s.logger.Info("Download speed limit changed", "gid", gid, "limit", normalized)
	return nil
}

// DeleteDownload stops gid if it is still active and removes it from the catalog
func (s *Supervisor) DeleteDownload(ctx context.Context, gid string) error {
	download, err := s.db.SearchDownload(gid)
	if err != nil {
		return err
	}
	if download.Status.IsActive() {
		if _, err := s.Cancel(ctx, gid); err != nil {
			s.logger.Warn("Deleting download the engine did not stop", "gid", gid, "error", err)
		}
	}
	return s.db.DeleteDownload(gid, download.Category)
}

// CreateCategory adds an empty category and registers it in the session
func (s *Supervisor) CreateCategory(category *models.Category) error {
	if category == nil || strings.TrimSpace(category.Name) == "" {
		return fmt.Errorf("%w: category name is required", ErrInvalidRequest)
	}
	if _, err := s.db.SearchCategory(category.Name); err == nil {
		return fmt.Errorf("%w: category %q already exists", ErrInvalidRequest, category.Name)
	}
	if err := validateCategory(category.StartTime, category.EndTime, category.LimitValue); err != nil {
		return err
	}

	category.GIDList = []string{}
	if err := s.db.InsertCategory(category); err != nil {
		return err
	}
	s.session.AddCategory(category.Name)
	s.logger.Info("Category created", "category", category.Name)
	return nil
}

// UpdateCategory applies a partial update to a category
func (s *Supervisor) UpdateCategory(patch models.CategoryPatch) error {
	if _, err := s.db.SearchCategory(patch.Name); err != nil {
		return err
	}
	if patch.GIDList != nil {
		return fmt.Errorf("%w: category members cannot be edited directly", ErrInvalidRequest)
	}
	err := validateCategory(models.Value(patch.StartTime), models.Value(patch.EndTime), models.Value(patch.LimitValue))
	if err != nil {
		return err
	}
	return s.db.UpdateCategories(patch)
}

// DeleteCategory stops the active downloads of a category and deletes it with its downloads
func (s *Supervisor) DeleteCategory(ctx context.Context, name string) error {
	if models.IsPermanentCategory(name) {
		return fmt.Errorf("%w: %q", database.ErrPermanentCategory, name)
	}
	if err := s.StopCategory(ctx, name); err != nil {
		s.logger.Warn("Some downloads did not stop before category delete", "category", name, "error", err)
	}
	if err := s.db.DeleteCategory(name); err != nil {
		return err
	}
	s.session.RemoveCategory(name)
	s.logger.Info("Category deleted", "category", name)
	return nil
}

// StopCategory flags the category for shutdown and cancels each of its active downloads
func (s *Supervisor) StopCategory(ctx context.Context, name string) error {
	if _, err := s.db.SearchCategory(name); err != nil {
		return err
	}
	s.session.AddCategory(name)
	s.session.RequestCategoryShutdown(name)

	gids, err := s.db.FindActive(name)
	if err != nil {
		return err
	}

	var errs []error
	for _, gid := range gids {
		s.session.RequestShutdown(gid)
		if _, err := s.Cancel(ctx, gid); err != nil {
			errs = append(errs, err)
		}
	}
	// later submissions to the category run normally
	s.session.AddCategory(name)

	s.logger.Info("Category stopped", "category", name, "downloads", len(gids))
	return errors.Join(errs...)
}

// ResetAll closes every gate and wipes the session and the catalog
func (s *Supervisor) ResetAll() error {
	s.mu.Lock()
	for gid, g := range s.gates {
		g.cancel()
		delete(s.gates, gid)
	}
	s.mu.Unlock()

	s.session.ResetAll()
	return s.db.ResetAll()
}

func (s *Supervisor) setStatus(gid string, status models.DownloadStatus) {
	if err := s.db.UpdateDownloads(models.DownloadPatch{GID: gid, Status: &status}); err != nil {
		s.logger.Error("Failed to update download status", "gid", gid, "status", status, "error", err)
	}
	s.session.SetStatus(gid, status)
}

func (s *Supervisor) timestamp() string {
	return s.now().Format(models.TimestampLayout)
}

// newGID returns a 16 hex digit identifier in the form the engine accepts
func newGID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// normalizeLimit converts a stored limit into engine kilobytes. Unset means unlimited.
func normalizeLimit(limit *string) (string, error) {
	value := models.Value(limit)
	if value == "" {
		return units.Unlimited, nil
	}
	return units.NormalizeLimit(value)
}

// buildHeaders turns "a=1; b=2" header text into "a:1" and "b:2" lines, with cookies sent as one Cookie line
func buildHeaders(cookies, header *string) []string {
	var headers []string
	if c := models.Value(cookies); c != "" {
		headers = append(headers, "Cookie: "+c)
	}
	for _, part := range strings.Split(models.Value(header), "; ") {
		if part == "" {
			continue
		}
		headers = append(headers, strings.Join(strings.SplitN(part, "=", 2), ":"))
	}
	return headers
}

func validateRequest(r *models.LinkRequest) error {
	for _, t := range []*string{r.StartTime, r.EndTime} {
		if v := models.Value(t); v != "" {
			if _, err := minuteOfDay(v); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
			}
		}
	}
	if _, err := normalizeLimit(r.LimitValue); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if r.Connections != nil && (*r.Connections < 1 || *r.Connections > 16) {
		return fmt.Errorf("%w: connections must be between 1 and 16", ErrInvalidRequest)
	}
	return nil
}

func validateCategory(startTime, endTime, limit string) error {
	for _, t := range []string{startTime, endTime} {
		if t != "" {
			if _, err := minuteOfDay(t); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
			}
		}
	}
	if limit != "" {
		if _, err := units.NormalizeLimit(limit); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}
	return nil
}
