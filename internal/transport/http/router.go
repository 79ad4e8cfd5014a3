package http

import (
	"log/slog"
	"net/http"
	"time"

	"assessment-service/internal/app"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configure the HTTP surface.
type RouterOptions struct {
	AllowedOrigins []string
	// RequestTimeout bounds REST handlers. The websocket route is not affected.
	RequestTimeout time.Duration
}

// NewRouter mounts the REST API, the websocket answering channel and health checks.
func NewRouter(service *app.AssessmentService, auth *Authenticator, logger *slog.Logger, opts RouterOptions) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	h := NewHandlers(service, logger)
	ws := NewWSHandler(service, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(pr chi.Router) {
		pr.Use(auth.Middleware)

		pr.Group(func(api chi.Router) {
			api.Use(middleware.Timeout(opts.RequestTimeout))

			api.Get("/assessments/chapter/{chapterId}", h.ListByChapter)
			api.Get("/assessments/topic/{topicId}", h.ListByTopic)
			api.Get("/assessments/{assessmentId}", h.GetAssessment)
			api.Get("/assessments/{assessmentId}/questions", h.GetQuestions)
			api.Post("/assessments/{assessmentId}/start", h.Start)
			api.Post("/assessments/{assessmentId}/submit", h.Submit)
			api.Post("/questions/{questionId}/answer", h.Answer)
			api.Get("/submissions/{submissionId}", h.GetSubmission)
			api.Get("/submissions/{submissionId}/results", h.GetResults)
		})

		pr.Get("/ws/submissions/{submissionId}", ws.ServeWS)
	})

	return r
}
