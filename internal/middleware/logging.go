package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request through logger. Mount it after
// chimw.RequestID so the id is included, and before chimw.Recoverer so
// panics reach the same entry.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return chimw.RequestLogger(&zapFormatter{logger: logger})
}

type zapFormatter struct {
	logger *zap.Logger
}

func (f *zapFormatter) NewLogEntry(r *http.Request) chimw.LogEntry {
	return &zapEntry{logger: f.logger.With(
		zap.String("request_id", chimw.GetReqID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr),
	)}
}

type zapEntry struct {
	logger *zap.Logger
}

func (e *zapEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	fields := []zap.Field{
		zap.Int("status", status),
		zap.Int("bytes", bytes),
		zap.Duration("duration", elapsed),
	}
	switch {
	case status >= 500:
		e.logger.Error("request", fields...)
	case status >= 400:
		e.logger.Warn("request", fields...)
	default:
		e.logger.Info("request", fields...)
	}
}

func (e *zapEntry) Panic(v interface{}, stack []byte) {
	e.logger.Error("request panicked",
		zap.Any("panic", v),
		zap.ByteString("stack", stack),
	)
}
