// Package api exposes the grade store over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/shalteor/grade-calculator/internal/db"
	"github.com/shalteor/grade-calculator/internal/grades"
)

// ServiceName is reported by the health check.
const ServiceName = "grade-calculator"

// GradeStore is the part of *grades.Store the handlers use.
type GradeStore interface {
	Load(ctx context.Context, username string) (grades.LoadResult, error)
	Save(ctx context.Context, username string, categories []grades.CategoryInput) (grades.SaveResult, error)
	Delete(ctx context.Context, username string) error
}

// Snapshotter produces consistent copies of the database for download.
type Snapshotter interface {
	Snapshot(ctx context.Context) (*db.Snapshot, error)
}

// Options configures NewServer. Zero values fall back to permissive CORS,
// the standard logrus logger and a private metrics registry.
type Options struct {
	AllowedOrigins []string
	Logger         *logrus.Logger
	Metrics        *Metrics
}

type Server struct {
	store     GradeStore
	snapshots Snapshotter
	validate  *validator.Validate
	metrics   *Metrics
	origins   []string
	log       *logrus.Logger
}

func NewServer(store GradeStore, snapshots Snapshotter, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	return &Server{
		store:     store,
		snapshots: snapshots,
		validate:  newValidator(),
		metrics:   opts.Metrics,
		origins:   opts.AllowedOrigins,
		log:       opts.Logger,
	}
}

// Router sets up the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.log))
	r.Use(s.metrics.Middleware)
	r.Use(middleware.Recoverer)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", s.Hello)
	r.Get("/ping", s.Ping)

	r.Get("/load/{username}", s.LoadGrades)
	r.Post("/save", s.SaveGrades)
	r.Delete("/users/{username}", s.DeleteUser)

	r.Get("/download-data", s.DownloadData)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	return r
}
