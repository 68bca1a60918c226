package models

// LinkRequest holds the submission parameters the user chose for a download
type LinkRequest struct {
	GID            string  `json:"gid"`
	Out            *string `json:"out"`
	StartTime      *string `json:"start_time"`
	EndTime        *string `json:"end_time"`
	Link           string  `json:"link"`
	IP             *string `json:"ip"`
	Port           *string `json:"port"`
	ProxyUser      *string `json:"proxy_user"`
	ProxyPasswd    *string `json:"proxy_passwd"`
	DownloadUser   *string `json:"download_user"`
	DownloadPasswd *string `json:"download_passwd"`
	Connections    *int    `json:"connections"`
	LimitValue     *string `json:"limit_value"`
	DownloadPath   *string `json:"download_path"`
	Referer        *string `json:"referer"`
	LoadCookies    *string `json:"load_cookies"`
	UserAgent      *string `json:"user_agent"`
	Header         *string `json:"header"`
	AfterDownload  *string `json:"after_download"`
}

// LinkRequestPatch is a partial update of a LinkRequest. Nil fields are left unchanged.
type LinkRequestPatch struct {
	GID            string
	Out            *string
	StartTime      *string
	EndTime        *string
	Link           *string
	IP             *string
	Port           *string
	ProxyUser      *string
	ProxyPasswd    *string
	DownloadUser   *string
	DownloadPasswd *string
	Connections    *int
	LimitValue     *string
	DownloadPath   *string
	Referer        *string
	LoadCookies    *string
	UserAgent      *string
	Header         *string
	AfterDownload  *string
}

// VideoFinderLink pairs a video stream and an audio stream that are muxed once both complete
type VideoFinderLink struct {
	VideoGID       string  `json:"video_gid"`
	AudioGID       string  `json:"audio_gid"`
	VideoCompleted bool    `json:"video_completed"`
	AudioCompleted bool    `json:"audio_completed"`
	MuxingStatus   *string `json:"muxing_status"`
	Checking       bool    `json:"checking"`
	DownloadPath   *string `json:"download_path"`
}

// Partner returns the gid paired with gid, or an empty string if gid is not part of the link
func (v *VideoFinderLink) Partner(gid string) string {
	switch gid {
	case v.VideoGID:
		return v.AudioGID
	case v.AudioGID:
		return v.VideoGID
	}
	return ""
}

// VideoFinderPatch is a partial update of a VideoFinderLink, keyed by VideoGID or, if empty, AudioGID
type VideoFinderPatch struct {
	VideoGID       string
	AudioGID       string
	VideoCompleted *bool
	AudioCompleted *bool
	MuxingStatus   *string
	Checking       *bool
	DownloadPath   *string
}

// PluginLinkStatus marks whether a browser-submitted link has been picked up
type PluginLinkStatus string

const (
	PluginLinkNew PluginLinkStatus = "new"
	PluginLinkOld PluginLinkStatus = "old"
)

// PluginLink is a download request submitted by a browser helper
type PluginLink struct {
	ID          int64            `json:"id"`
	Link        string           `json:"link"`
	Referer     *string          `json:"referer"`
	LoadCookies *string          `json:"load_cookies"`
	UserAgent   *string          `json:"user_agent"`
	Header      *string          `json:"header"`
	Out         *string          `json:"out"`
	Status      PluginLinkStatus `json:"status"`
}
