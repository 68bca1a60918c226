// Package models defines the data structures used throughout the application
package models

// DownloadStatus represents the lifecycle state of a download
type DownloadStatus string

const (
	StatusScheduled   DownloadStatus = "scheduled"
	StatusWaiting     DownloadStatus = "waiting"
	StatusDownloading DownloadStatus = "downloading"
	StatusPaused      DownloadStatus = "paused"
	StatusComplete    DownloadStatus = "complete"
	StatusError       DownloadStatus = "error"
	StatusStopped     DownloadStatus = "stopped"
)

// ActiveStatuses are the states in which a download is still progressing
var ActiveStatuses = []DownloadStatus{
	StatusScheduled,
	StatusWaiting,
	StatusDownloading,
	StatusPaused,
}

// IsActive reports whether the download has not reached a final state yet
func (s DownloadStatus) IsActive() bool {
	switch s {
	case StatusScheduled, StatusWaiting, StatusDownloading, StatusPaused:
		return true
	}
	return false
}

// IsTerminal reports whether the download has finished, failed or been stopped
func (s DownloadStatus) IsTerminal() bool {
	switch s {
	case StatusComplete, StatusError, StatusStopped:
		return true
	}
	return false
}

// TimestampLayout is the layout of first_try_date and last_try_date values
const TimestampLayout = "2006/01/02 , 15:04:05"

// Download represents one requested transfer in the catalog
type Download struct {
	GID              string         `json:"gid"`
	FileName         *string        `json:"file_name"`
	Status           DownloadStatus `json:"status"`
	Size             *string        `json:"size"`
	DownloadedSize   *string        `json:"downloaded_size"`
	Percent          *string        `json:"percent"`
	Connections      *string        `json:"connections"`
	Rate             *string        `json:"rate"`
	EstimateTimeLeft *string        `json:"estimate_time_left"`
	Link             *string        `json:"link"`
	FirstTryDate     *string        `json:"first_try_date"`
	LastTryDate      *string        `json:"last_try_date"`
	Category         string         `json:"category"`
}

// DownloadPatch is a partial update of a Download. Nil fields are left unchanged.
type DownloadPatch struct {
	GID              string
	FileName         *string
	Status           *DownloadStatus
	Size             *string
	DownloadedSize   *string
	Percent          *string
	Connections      *string
	Rate             *string
	EstimateTimeLeft *string
	Link             *string
	FirstTryDate     *string
	LastTryDate      *string
	Category         *string
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}

// Value dereferences p, returning the zero value for nil
func Value[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
