package httpapi

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is the structured logger used by the HTTP layer.
var zlog = zerolog.New(os.Stderr).With().Timestamp().Str("component", "http").Logger()

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l.With().Str("component", "http").Logger() }

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

var defaultLogLevel = LevelInfo

// SetRequestLogLevel sets the default request log level
// (off|error|info|debug).
func SetRequestLogLevel(s string) { defaultLogLevel = parseLevel(s) }

func requestLogLevel(r *http.Request) LogLevel {
	// Per-request overrides
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// logOutcome logs the end of a mutating request. Errors are logged from
// LevelError up, successes from LevelInfo.
func logOutcome(r *http.Request, msg string, status int, start time.Time, err error) {
	lvl := requestLogLevel(r)
	var ev *zerolog.Event
	switch {
	case err != nil && lvl >= LevelError:
		ev = zlog.Warn().Err(err)
	case err == nil && lvl >= LevelInfo:
		ev = zlog.Info()
	default:
		return
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		ev = ev.Str("request_id", rid)
	}
	ev.Str("path", r.URL.Path).Int("status", status).Dur("dur", time.Since(start)).Msg(msg)
}
