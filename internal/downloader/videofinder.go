package downloader

import (
	"fmt"

	"ariadm/pkg/models"
)

// VideoFinderPair is a video download and its separate audio track
type VideoFinderPair struct {
	Link  *models.VideoFinderLink `json:"link"`
	Video *models.Download        `json:"video"`
	Audio *models.Download        `json:"audio"`
}

// AddVideoFinder records a video and an audio download as one pair and submits both.
// Finished halves stay in the working directory for muxing.
func (s *Supervisor) AddVideoFinder(video, audio *models.LinkRequest, category string) (*VideoFinderPair, error) {
	videoDownload, err := s.newDownload(video, category)
	if err != nil {
		return nil, fmt.Errorf("video: %w", err)
	}
	audioDownload, err := s.newDownload(audio, category)
	if err != nil {
		return nil, fmt.Errorf("audio: %w", err)
	}

	if err := s.db.CreateDownload(videoDownload, video); err != nil {
		return nil, fmt.Errorf("failed to create video download: %w", err)
	}
	if err := s.db.CreateDownload(audioDownload, audio); err != nil {
		s.discard(videoDownload)
		return nil, fmt.Errorf("failed to create audio download: %w", err)
	}

	link := &models.VideoFinderLink{
		VideoGID:     videoDownload.GID,
		AudioGID:     audioDownload.GID,
		DownloadPath: video.DownloadPath,
	}
	if err := s.db.InsertVideoFinder(link); err != nil {
		s.discard(videoDownload)
		s.discard(audioDownload)
		return nil, err
	}

	s.logger.Info("Video finder pair added", "video_gid", link.VideoGID, "audio_gid", link.AudioGID,
		"category", videoDownload.Category)
	s.launch(link.VideoGID)
	s.launch(link.AudioGID)
	return &VideoFinderPair{Link: link, Video: videoDownload, Audio: audioDownload}, nil
}

// VideoFinder returns the pair gid belongs to
func (s *Supervisor) VideoFinder(gid string) (*models.VideoFinderLink, error) {
	return s.db.SearchVideoFinder(gid)
}

// VideoFinderGIDs returns every gid that belongs to a pair
func (s *Supervisor) VideoFinderGIDs() ([]string, error) {
	gids, err := s.db.VideoFinderGIDs()
	if err != nil {
		return nil, err
	}
	if gids == nil {
		gids = []string{}
	}
	return gids, nil
}

// discard removes a download that was created but never submitted
func (s *Supervisor) discard(download *models.Download) {
	if err := s.db.DeleteDownload(download.GID, download.Category); err != nil {
		s.logger.Error("Failed to discard download", "gid", download.GID, "error", err)
	}
}
