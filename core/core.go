package core

import "github.com/hupe1980/adkpatterns/logging"

// loggerAdapter embeds into the context types so callers can log without
// unwrapping the logger first. A nil logger becomes a NoOpLogger.
type loggerAdapter struct {
	logger logging.Logger
}

func newLoggerAdapter(l logging.Logger) *loggerAdapter {
	if l == nil {
		l = logging.NoOpLogger{}
	}

	return &loggerAdapter{logger: l}
}

// Logger returns the wrapped logger.
func (l *loggerAdapter) Logger() logging.Logger { return l.logger }

// LogDebug logs at debug level.
func (l *loggerAdapter) LogDebug(msg string, args ...any) { l.logger.Debug(msg, args...) }

// LogInfo logs at info level.
func (l *loggerAdapter) LogInfo(msg string, args ...any) { l.logger.Info(msg, args...) }

// LogWarn logs at warn level.
func (l *loggerAdapter) LogWarn(msg string, args ...any) { l.logger.Warn(msg, args...) }

// LogError logs at error level.
func (l *loggerAdapter) LogError(msg string, args ...any) { l.logger.Error(msg, args...) }

// withLogger returns an adapter with extra attributes bound.
func (l *loggerAdapter) withLogger(args ...any) *loggerAdapter {
	if l == nil {
		return newLoggerAdapter(nil)
	}

	return &loggerAdapter{logger: logging.With(l.logger, args...)}
}
