package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oulianov/audioghost-ai/internal/jobs"
	"github.com/oulianov/audioghost-ai/pkg/types"
)

// JobService is the job facade the API drives. *jobs.Service implements it.
type JobService interface {
	Submit(ctx context.Context, job jobs.Job) error
	// SubmitBatch queues every job or none of them.
	SubmitBatch(ctx context.Context, batch []jobs.Job) error
	Status(ctx context.Context, id string) (types.TaskStatus, error)
	Result(ctx context.Context, id string) (*types.JobResult, error)
	Recent(ctx context.Context, limit int) ([]types.TaskStatus, error)
	Cancel(ctx context.Context, id string) error
	SlotStatus() types.SlotStatus
	Ready() bool
}

// TokenStore persists the hub credential. *auth.TokenStore implements it.
type TokenStore interface {
	HasToken() bool
	Save(token string) error
	Clear() error
}

// ModelCatalog names the models. *registry.Catalog implements it.
type ModelCatalog interface {
	ModelName(size string) (string, error)
	Models() []types.Model
	HasLocalCheckpoints() bool
}

// Deps wires the handlers.
type Deps struct {
	Jobs    JobService
	Tokens  TokenStore
	Catalog ModelCatalog
	// UploadDir receives submitted files as <task id><ext>.
	UploadDir string
	// Defaults applied to submissions that leave the field empty.
	DefaultModelSize string
	ChunkDuration    time.Duration
	Precision        string
	// NewID generates task ids; defaults to random UUIDs.
	NewID func() string
}

// NewMux builds the router.
func NewMux(d Deps) http.Handler {
	a := newAPI(d)
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/separate", func(r chi.Router) {
			r.Post("/", a.separate)
			r.Post("/batch", a.separateBatch)
		})
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", a.listTasks)
			r.Get("/{id}", a.taskStatus)
			r.Delete("/{id}", a.cancelTask)
			r.Get("/{id}/download/{type}", a.download)
		})
		r.Route("/auth", func(r chi.Router) {
			r.Get("/status", a.authStatus)
			r.Post("/token", a.saveToken)
			r.Post("/login", a.saveToken)
			r.Delete("/token", a.clearToken)
		})
		r.Get("/models", a.models)
	})

	r.Get("/status", a.status)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Jobs.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unavailable"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	mountDocs(r)
	return r
}

// status reports the model slot, the queue and host memory.
//
// @Summary  Slot status
// @Tags     ops
// @Produce  json
// @Success  200 {object} types.SlotStatus
// @Router   /status [get]
func (a *api) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.d.Jobs.SlotStatus())
}

// models lists the model sizes and whether a local checkpoint exists.
//
// @Summary  List models
// @Tags     models
// @Produce  json
// @Success  200 {array} types.Model
// @Router   /api/models [get]
func (a *api) models(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.d.Catalog.Models())
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
