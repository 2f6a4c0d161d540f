package httpapi

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is the structured logger of the HTTP layer. Nop until SetLogger.
var zlog = zerolog.Nop()

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l }

// accessLevel is the default access-log level, from CHATD_HTTP_LOG.
var accessLevel = parseAccessLevel(os.Getenv("CHATD_HTTP_LOG"))

// parseAccessLevel maps off|error|info|debug to a zerolog level. Unknown
// values mean info.
func parseAccessLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off":
		return zerolog.Disabled
	case "error":
		return zerolog.ErrorLevel
	case "debug":
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// requestAccessLevel lets a client raise or silence logging of its own
// request with ?log= or X-Log-Level.
func requestAccessLevel(r *http.Request) zerolog.Level {
	if v := r.URL.Query().Get("log"); v != "" {
		return parseAccessLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseAccessLevel(v)
	}
	return accessLevel
}

// logFor returns the request-scoped logger.
func logFor(r *http.Request) *zerolog.Logger {
	c := zlog.With().Str("path", r.URL.Path)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		c = c.Str("request_id", rid)
	}
	l := c.Logger()
	return &l
}

// accessLog writes one line per request. At error level only 5xx
// responses are logged.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lvl := requestAccessLevel(r)
		if lvl == zerolog.Disabled {
			next.ServeHTTP(w, r)
			return
		}
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sr, r)
		if lvl == zerolog.ErrorLevel && sr.status < 500 {
			return
		}
		l := logFor(r)
		ev := l.Info()
		if sr.status >= 500 {
			ev = l.Error()
		} else if lvl == zerolog.DebugLevel {
			ev = l.Debug().Str("query", r.URL.RawQuery)
		}
		ev.Str("method", r.Method).
			Int("status", sr.status).
			Int("bytes", sr.bytes).
			Dur("dur", time.Since(start)).
			Msg("http")
	})
}
