package roomsync

import "go.uber.org/zap"

// NotificationLevel classifies user-visible notifications.
type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelSuccess NotificationLevel = "success"
	LevelWarning NotificationLevel = "warning"
	LevelError   NotificationLevel = "error"
)

// Notifier receives user-visible notifications emitted by the session:
// per-action success/failure and newly-appearing refresh failures. Routine
// refresh success is intentionally silent.
type Notifier interface {
	Notify(level NotificationLevel, message string)
}

// NewLogNotifier returns a Notifier that forwards notifications to a zap
// logger, the default when no UI-facing notifier is wired in.
func NewLogNotifier(logger *zap.Logger) Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &logNotifier{logger: logger}
}

type logNotifier struct {
	logger *zap.Logger
}

func (n *logNotifier) Notify(level NotificationLevel, message string) {
	field := zap.String("level", string(level))
	switch level {
	case LevelError:
		n.logger.Error(message, field)
	case LevelWarning:
		n.logger.Warn(message, field)
	default:
		n.logger.Info(message, field)
	}
}
