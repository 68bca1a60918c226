package models

// StatusInfo is an engine status reply normalized into catalog units
type StatusInfo struct {
	GID              string          `json:"gid"`
	FileName         *string         `json:"file_name"`
	Status           *DownloadStatus `json:"status"`
	Size             *string         `json:"size"`
	DownloadedSize   *string         `json:"downloaded_size"`
	Percent          *string         `json:"percent"`
	Connections      *string         `json:"connections"`
	Rate             *string         `json:"rate"`
	EstimateTimeLeft *string         `json:"estimate_time_left"`
	Link             *string         `json:"link"`
	Error            *string         `json:"error,omitempty"`
}

// Patch converts the report into a catalog update for the same gid
func (s *StatusInfo) Patch() DownloadPatch {
	return DownloadPatch{
		GID:              s.GID,
		FileName:         s.FileName,
		Status:           s.Status,
		Size:             s.Size,
		DownloadedSize:   s.DownloadedSize,
		Percent:          s.Percent,
		Connections:      s.Connections,
		Rate:             s.Rate,
		EstimateTimeLeft: s.EstimateTimeLeft,
		Link:             s.Link,
	}
}
