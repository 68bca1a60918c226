package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"

	"ariadm/internal/aria2"
	"ariadm/internal/database"
	"ariadm/internal/folder"
	"ariadm/internal/units"
	"ariadm/pkg/models"
)

// convertStatus normalizes an engine status reply into catalog units
func convertStatus(st *aria2.Status) *models.StatusInfo {
	info := &models.StatusInfo{GID: st.GID}

	if len(st.Files) > 0 {
		info.FileName = nonEmpty(fileName(st.Files[0].Path))
		if len(st.Files[0].URIs) > 0 {
			info.Link = nonEmpty(st.Files[0].URIs[0].URI)
		}
	}

	total, totalErr := strconv.ParseInt(st.TotalLength, 10, 64)
	completed, completedErr := strconv.ParseInt(st.CompletedLength, 10, 64)
	known := totalErr == nil && completedErr == nil
	if known && total != 0 {
		info.Size = models.Ptr(units.Size(total))
		info.DownloadedSize = models.Ptr(units.Size(completed))
		info.Percent = models.Ptr(units.Percent(completed, total))
	}

	speed, err := strconv.ParseInt(st.DownloadSpeed, 10, 64)
	if err != nil {
		speed = 0
	}
	info.Rate = models.Ptr(units.Rate(speed))
	if known && speed != 0 {
		info.EstimateTimeLeft = models.Ptr(units.Duration((total - completed) / speed))
	}

	info.Connections = nonEmpty(st.Connections)

	switch st.Status {
	case "":
	case "active":
		info.Status = models.Ptr(models.StatusDownloading)
	case "removed":
		info.Status = models.Ptr(models.StatusStopped)
	default:
		info.Status = models.Ptr(models.DownloadStatus(st.Status))
	}

	if info.Status != nil && *info.Status == models.StatusComplete {
		info.EstimateTimeLeft = models.Ptr("0s")
	}
	return info
}

// fileName returns the unescaped base name of an engine file path
func fileName(p string) string {
	if p == "" {
		return ""
	}
	name := filepath.Base(p)
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return name
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// infoFromCatalog reports a download the engine no longer tracks
func infoFromCatalog(d *models.Download) *models.StatusInfo {
	status := d.Status
	return &models.StatusInfo{
		GID:              d.GID,
		FileName:         d.FileName,
		Status:           &status,
		Size:             d.Size,
		DownloadedSize:   d.DownloadedSize,
		Percent:          d.Percent,
		Connections:      d.Connections,
		Rate:             d.Rate,
		EstimateTimeLeft: d.EstimateTimeLeft,
		Link:             d.Link,
	}
}

// QueryStatus returns the current state of gid and records it in the catalog.
// Downloads that are scheduled or finished are answered from the catalog without an engine call.
// Concurrent queries for the same gid share one engine round trip.
func (s *Supervisor) QueryStatus(ctx context.Context, gid string) (*models.StatusInfo, error) {
	v, err, _ := s.queries.Do(gid, func() (any, error) {
		return s.queryStatus(ctx, gid)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.StatusInfo), nil
}

func (s *Supervisor) queryStatus(ctx context.Context, gid string) (*models.StatusInfo, error) {
	download, err := s.db.SearchDownload(gid)
	if err != nil {
		return nil, err
	}
	if download.Status == models.StatusScheduled || download.Status.IsTerminal() {
		return infoFromCatalog(download), nil
	}

	st, err := s.engine.TellStatus(ctx, gid)
	if err != nil {
		s.logger.Error("Failed to get download status", "gid", gid, "error", err)
		return nil, fmt.Errorf("failed to get status of %s: %w", gid, err)
	}

	info := convertStatus(st)
	if info.Status != nil {
		switch *info.Status {
		case models.StatusComplete:
			s.complete(gid, st, info)
		case models.StatusError:
			info.Error = models.Ptr(st.ErrorMessage)
			s.logger.Error("Download failed", "gid", gid, "error_code", st.ErrorCode, "error", st.ErrorMessage)
			if err := s.engine.RemoveDownloadResult(ctx, gid); err != nil {
				s.logger.Error("Failed to remove download result", "gid", gid, "error", err)
			}
		}
	}

	s.record(info)
	return info, nil
}

// QueryAllActive returns every download the engine is working on and records them in the catalog
func (s *Supervisor) QueryAllActive(ctx context.Context) ([]*models.StatusInfo, error) {
	statuses, err := s.engine.TellActive(ctx)
	if err != nil {
		s.logger.Error("Failed to get active downloads", "error", err)
		return nil, fmt.Errorf("failed to get active downloads: %w", err)
	}

	infos := make([]*models.StatusInfo, 0, len(statuses))
	for i := range statuses {
		info := convertStatus(&statuses[i])
		s.record(info)
		infos = append(infos, info)
	}
	return infos, nil
}

// Refresh reconciles every download this process submitted or adopted from the engine.
// Scheduled downloads are skipped.
func (s *Supervisor) Refresh(ctx context.Context) {
	s.adopt(ctx)

	for _, gid := range s.session.ActiveGIDs() {
		entry, ok := s.session.Lookup(gid)
		if !ok || entry.Status == models.StatusScheduled {
			continue
		}
		if _, err := s.QueryStatus(ctx, gid); errors.Is(err, database.ErrNotFound) {
			s.session.RemoveGID(gid)
		}
	}
}

// adopt starts tracking catalog downloads the engine works on but the session does not know,
// such as ones left running by an engine that outlived the previous process
func (s *Supervisor) adopt(ctx context.Context) {
	gids, err := s.engine.ActiveGIDs(ctx)
	if err != nil {
		s.logger.Debug("Failed to list engine downloads", "error", err)
		return
	}

	for _, gid := range gids {
		if _, ok := s.session.Lookup(gid); ok {
			continue
		}
		download, err := s.db.SearchDownload(gid)
		if err != nil || download.Status == models.StatusComplete {
			continue
		}
		s.session.AddGID(gid, models.StatusDownloading)
		s.setStatus(gid, models.StatusDownloading)
		s.logger.Info("Tracking download found in engine", "gid", gid)
	}
}

// record writes a status report to the catalog and updates the session
func (s *Supervisor) record(info *models.StatusInfo) {
	if info.GID == "" {
		return
	}
	if err := s.db.UpdateDownloads(info.Patch()); err != nil {
		s.logger.Error("Failed to record download status", "gid", info.GID, "error", err)
	}
	if info.Status == nil {
		return
	}
	if info.Status.IsTerminal() {
		s.session.RemoveGID(info.GID)
		return
	}
	s.session.SetStatus(info.GID, *info.Status)
}

// complete moves a finished file to its destination and records where it ended up.
// Halves of a video finder pair stay in the temp directory.
func (s *Supervisor) complete(gid string, st *aria2.Status, info *models.StatusInfo) {
	if len(st.Files) == 0 || st.Files[0].Path == "" {
		s.logger.Warn("Completed download has no file", "gid", gid)
		return
	}
	src := st.Files[0].Path
	name := fileName(src)

	if pair, err := s.db.SearchVideoFinder(gid); err == nil {
		patch := models.VideoFinderPatch{VideoGID: pair.VideoGID}
		if gid == pair.VideoGID {
			patch.VideoCompleted = models.Ptr(true)
		} else {
			patch.AudioCompleted = models.Ptr(true)
		}
		if err := s.db.UpdateVideoFinder(patch); err != nil {
			s.logger.Error("Failed to update video finder link", "gid", gid, "error", err)
		}
		s.storePath(gid, src)
		return
	} else if !errors.Is(err, database.ErrNotFound) {
		s.logger.Error("Failed to look up video finder link", "gid", gid, "error", err)
	}

	request, err := s.db.SearchLinkRequest(gid)
	if err != nil {
		s.logger.Error("Failed to load link request", "gid", gid, "error", err)
		return
	}

	size, err := strconv.ParseInt(st.TotalLength, 10, 64)
	if err != nil {
		size = -1
	}

	destDir := s.placer.Destination(name, models.Value(request.DownloadPath))
	final, err := s.placer.Place(src, destDir, name, size)
	switch {
	case errors.Is(err, folder.ErrInsufficientSpace):
		s.logger.Error("Insufficient disk space in download folder", "gid", gid, "error", err)
		s.notifier.Notify("Insufficient disk space!", "Please change download folder")
		return
	case err != nil:
		s.logger.Error("Failed to move finished file", "gid", gid, "error", err)
		return
	}

	if final != src {
		info.FileName = models.Ptr(filepath.Base(final))
	}
	s.storePath(gid, final)
}

func (s *Supervisor) storePath(gid, filePath string) {
	if err := s.db.UpdateLinkRequests(models.LinkRequestPatch{GID: gid, DownloadPath: models.Ptr(filePath)}); err != nil {
		s.logger.Error("Failed to store download path", "gid", gid, "error", err)
	}
}
