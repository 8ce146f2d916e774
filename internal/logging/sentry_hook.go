package logging

import (
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// SentryHook is a logrus hook that sends entries to Sentry.
type SentryHook struct {
	hub    *sentry.Hub
	levels []logrus.Level
}

// NewSentryHook creates a hook bound to hub. A nil levels slice means
// warn and above.
func NewSentryHook(hub *sentry.Hub, levels []logrus.Level) *SentryHook {
	if levels == nil {
		levels = []logrus.Level{
			logrus.PanicLevel,
			logrus.FatalLevel,
			logrus.ErrorLevel,
			logrus.WarnLevel,
		}
	}
	return &SentryHook{hub: hub, levels: levels}
}

// Fire is called when a log event is fired.
func (hook *SentryHook) Fire(entry *logrus.Entry) error {
	if hook.hub == nil || hook.hub.Client() == nil {
		return nil
	}
	hook.hub.CaptureEvent(eventFromEntry(entry))
	return nil
}

func (hook *SentryHook) Levels() []logrus.Level {
	return hook.levels
}

func eventFromEntry(entry *logrus.Entry) *sentry.Event {
	event := sentry.NewEvent()
	event.Timestamp = entry.Time
	event.Message = entry.Message
	event.Level = levelToSentry(entry.Level)
	event.Logger = "logrus"

	event.Extra = make(map[string]interface{}, len(entry.Data))
	for k, v := range entry.Data {
		event.Extra[k] = v
	}

	if err, ok := entry.Data[logrus.ErrorKey].(error); ok {
		event.Exception = []sentry.Exception{{
			Type:  fmt.Sprintf("%T", err),
			Value: err.Error(),
		}}
	}

	event.Tags = make(map[string]string)
	if method, ok := entry.Data["method"].(string); ok {
		event.Tags["http.method"] = method
	}
	if path, ok := entry.Data["path"].(string); ok {
		event.Tags["http.path"] = path
	}
	if status, ok := entry.Data["status"].(int); ok {
		event.Tags["http.status_code"] = fmt.Sprintf("%d", status)
	}
	if rid, ok := entry.Data["rid"].(string); ok {
		event.Tags["request_id"] = rid
	}
	if file, ok := entry.Data["file"].(string); ok {
		event.Tags["file"] = file
	}

	return event
}

func levelToSentry(level logrus.Level) sentry.Level {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel:
		return sentry.LevelFatal
	case logrus.ErrorLevel:
		return sentry.LevelError
	case logrus.WarnLevel:
		return sentry.LevelWarning
	case logrus.InfoLevel:
		return sentry.LevelInfo
	case logrus.DebugLevel, logrus.TraceLevel:
		return sentry.LevelDebug
	default:
		return sentry.LevelInfo
	}
}
