package downloader

import (
	"context"

	"ariadm/internal/aria2"
)

// Engine defines the download engine calls used by the supervisor
//
//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks
type Engine interface {
	GetVersion(ctx context.Context) (string, error)
	AddURI(ctx context.Context, uris []string, options map[string]any) (string, error)
	TellStatus(ctx context.Context, gid string) (*aria2.Status, error)
	TellActive(ctx context.Context) ([]aria2.Status, error)
	ActiveGIDs(ctx context.Context) ([]string, error)
	Pause(ctx context.Context, gid string) error
	Unpause(ctx context.Context, gid string) error
	Remove(ctx context.Context, gid string) error
	RemoveDownloadResult(ctx context.Context, gid string) error
	ChangeOption(ctx context.Context, gid string, options map[string]any) error
	Shutdown(ctx context.Context) error
}

// EngineProcess is the last resort when the engine stops answering
type EngineProcess interface {
	Kill() error
}

// Notifier surfaces user-visible warnings
type Notifier interface {
	Notify(title, message string)
}
