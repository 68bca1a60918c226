package downloader

import "log/slog"

// LogNotifier writes notifications to the log
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier backed by the default logger
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: slog.Default()}
}

// Notify logs a user-visible warning
func (n *LogNotifier) Notify(title, message string) {
	n.logger.Warn(title, "notification", message)
}
