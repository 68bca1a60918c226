package models

// Names of the categories that always exist
const (
	AllDownloads       = "All Downloads"
	SingleDownloads    = "Single Downloads"
	ScheduledDownloads = "Scheduled Downloads"
)

// PermanentCategories lists the categories that are never deleted
var PermanentCategories = []string{AllDownloads, SingleDownloads, ScheduledDownloads}

// IsPermanentCategory reports whether name is one of the default categories
func IsPermanentCategory(name string) bool {
	for _, permanent := range PermanentCategories {
		if name == permanent {
			return true
		}
	}
	return false
}

// Category represents a named download queue
type Category struct {
	Name             string   `json:"category"`
	StartTimeEnabled bool     `json:"start_time_enabled"`
	StartTime        string   `json:"start_time"`
	EndTimeEnabled   bool     `json:"end_time_enabled"`
	EndTime          string   `json:"end_time"`
	Reverse          bool     `json:"reverse"`
	LimitEnabled     bool     `json:"limit_enabled"`
	LimitValue       string   `json:"limit_value"`
	AfterDownload    string   `json:"after_download"`
	GIDList          []string `json:"gid_list"`
}

// NewCategory returns a category carrying the default queue settings
func NewCategory(name string) *Category {
	return &Category{
		Name:          name,
		StartTime:     "0:0",
		EndTime:       "0:0",
		LimitValue:    "0K",
		AfterDownload: "no",
		GIDList:       []string{},
	}
}

// CategoryPatch is a partial update of a Category. Nil fields are left unchanged.
type CategoryPatch struct {
	Name             string    `json:"category"`
	StartTimeEnabled *bool     `json:"start_time_enabled,omitempty"`
	StartTime        *string   `json:"start_time,omitempty"`
	EndTimeEnabled   *bool     `json:"end_time_enabled,omitempty"`
	EndTime          *string   `json:"end_time,omitempty"`
	Reverse          *bool     `json:"reverse,omitempty"`
	LimitEnabled     *bool     `json:"limit_enabled,omitempty"`
	LimitValue       *string   `json:"limit_value,omitempty"`
	AfterDownload    *string   `json:"after_download,omitempty"`
	GIDList          *[]string `json:"gid_list,omitempty"`
}
