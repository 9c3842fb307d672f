package httpapi

import (
	"time"

	"golang.org/x/time/rate"
)

// maxUploadBytes bounds multipart submissions. Default 500 MiB.
var maxUploadBytes int64 = 500 << 20

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes int64 = 1 << 20

// SetMaxUploadBytes configures the maximum upload size; non-positive
// restores the default.
func SetMaxUploadBytes(n int64) {
	if n <= 0 {
		maxUploadBytes = 500 << 20
		return
	}
	maxUploadBytes = n
}

// submitTimeout bounds saving an upload and queueing its jobs.
// Zero means no additional timeout beyond server/connection timeouts.
var submitTimeout = time.Duration(0)

// SetSubmitTimeout sets the submit timeout (0 disables).
func SetSubmitTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	submitTimeout = d
}

// submitLimiter throttles job submissions across all clients. Nil means
// unlimited.
var submitLimiter *rate.Limiter

// SetSubmitRateLimit allows perSecond submissions with the given burst.
// A non-positive rate disables the limiter.
func SetSubmitRateLimit(perSecond float64, burst int) {
	if perSecond <= 0 {
		submitLimiter = nil
		return
	}
	if burst < 1 {
		burst = 1
	}
	submitLimiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
