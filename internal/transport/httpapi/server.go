package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/infrastructure/imagegen"
	"newsroom/internal/infrastructure/notify"
	"newsroom/internal/usecase/lifecycle"
)

// Options configure the router. ImageDir is served below /static/images/; empty disables the route.
type Options struct {
	Version        string
	AllowedOrigins []string
	ImageDir       string
	WebhookToken   string
}

// Server exposes the lifecycle service over REST and the status stream over websocket.
type Server struct {
	svc    *lifecycle.Service
	broker *notify.Broker
	opts   Options
}

func NewServer(svc *lifecycle.Service, broker *notify.Broker, opts Options) *Server {
	return &Server{svc: svc, broker: broker, opts: opts}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(s.opts.AllowedOrigins))

	r.Get("/health", s.health)
	r.Get("/api/health", s.health)
	if s.broker != nil {
		r.Handle("/ws/status", notify.NewHandler(s.broker, s.opts.AllowedOrigins))
	}
	if dir := strings.TrimSpace(s.opts.ImageDir); dir != "" {
		r.Handle(imagegen.URLPrefix+"*", http.StripPrefix(imagegen.URLPrefix, http.FileServer(http.Dir(dir))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/articles", func(r chi.Router) {
			r.Post("/", s.createArticle)
			r.Get("/", s.listArticles)
			r.Get("/stats", s.articleStats)
			r.Post("/bulk", s.bulkCreate)

			r.Route("/{articleID}", func(r chi.Router) {
				r.Get("/", s.getArticle)
				r.Patch("/", s.editArticle)
				r.Patch("/approve", s.approveArticle)
				r.Patch("/revise", s.reviseArticle)
				r.Patch("/reject", s.rejectArticle)
				r.Patch("/cancel", s.cancelArticle)
				r.Patch("/retry", s.retryArticle)
				r.Patch("/pause", s.pauseArticle)
				r.Patch("/resume", s.resumeArticle)

				r.Route("/translations", func(r chi.Router) {
					r.Get("/", s.listTranslations)
					r.Post("/trigger", s.triggerTranslation)
					r.Get("/{lang}", s.getTranslation)
					r.Patch("/{lang}", s.editTranslation)
					r.Post("/{lang}/approve", s.approveTranslation)
				})

				r.Route("/image", func(r chi.Router) {
					r.Post("/trigger", s.triggerImage)
					r.Get("/status", s.imageStatus)
					r.Get("/backends", s.imageBackends)
				})

				r.Route("/publish", func(r chi.Router) {
					r.Post("/", s.publishArticle)
					r.Get("/status", s.publishStatus)
					r.Get("/wp-check", s.wpCheck)
				})

				r.Post("/social/generate", s.generateSocial)
				r.Get("/social", s.listSocial)
				r.Get("/related", s.relatedArticles)
			})
		})

		r.Route("/supervisor", func(r chi.Router) {
			r.Get("/dashboard", s.supervisorDashboard)
			r.Get("/decisions", s.listDecisions)
			r.Post("/evaluate", s.evaluateArticle)
			r.Get("/tonality", s.listTonality)
			r.Post("/tonality", s.saveTonality)
			r.Delete("/tonality/{entryID}", s.deleteTonality)
			r.Get("/topics", s.topicRanking)
			r.Get("/deviations", s.deviationStats)
		})

		r.Post("/rss/parse", s.parseFeed)
		r.Post("/webhook/n8n", s.webhookCallback)
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	connections := 0
	if s.broker != nil {
		connections = s.broker.Count()
	}
	queue := s.svc.QueueStats()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Version:     s.opts.Version,
		Connections: connections,
		Features:    s.svc.Features(),
		Queue:       queueResponse{Queued: queue.Queued, Running: queue.Running},
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		ctx := logging.WithAttrs(r.Context(), slog.String("component", "httpapi"))
		logging.Debug(
			ctx,
			"request served",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[strings.TrimRight(strings.TrimSpace(origin), "/")] = struct{}{}
	}
	_, wildcard := allowed["*"]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if _, ok := allowed[origin]; ok || wildcard {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Credentials", "true")
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Webhook-Token")
					w.Header().Add("Vary", "Origin")
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
