package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// RequestLogger returns chi request logging backed by zerolog.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return middleware.RequestLogger(&logFormatter{logger: logger.With().Str("component", "http").Logger()})
}

type logFormatter struct {
	logger zerolog.Logger
}

func (f *logFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &logEntry{
		logger: f.logger.With().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Logger(),
	}
}

type logEntry struct {
	logger zerolog.Logger
}

func (e *logEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	event := e.logger.Info()
	if status >= 500 {
		event = e.logger.Error()
	} else if status >= 400 {
		event = e.logger.Warn()
	}
	event.Int("status", status).Int("bytes", bytes).Dur("elapsed", elapsed).Msg("request")
}

func (e *logEntry) Panic(v interface{}, stack []byte) {
	e.logger.Error().Interface("panic", v).Bytes("stack", stack).Msg("request panicked")
}
