package api

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-fuego/fuego"
	"github.com/go-fuego/fuego/option"
)

// Server represents the Fuego API server.
type Server struct {
	fuego      *fuego.Server
	deps       *Dependencies
	version    string
	purgeToken string
}

// Dependencies are optional; endpoints whose dependency is nil answer 404.
// When Queue also implements Pinger, /health reports broker connectivity.
type Dependencies struct {
	Backend      string
	Queue        QueueStatter
	Worker       WorkerStatus
	Applications ApplicationCounter
	Purger       Purger
}

// Config holds API server configuration. An empty Host binds every
// interface. Purging is refused unless PurgeToken is set and presented as a
// bearer token.
type Config struct {
	Host           string
	Port           int
	Title          string
	Description    string
	Version        string
	AllowedOrigins []string
	PurgeToken     string
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// NewServer creates a new Fuego API server.
func NewServer(cfg *Config, deps *Dependencies) *Server {
	s := fuego.NewServer(
		fuego.WithAddr(cfg.Addr()),
		fuego.WithEngineOptions(
			fuego.WithOpenAPIConfig(fuego.OpenAPIConfig{
				PrettyFormatJSON: true,
				DisableLocalSave: true,
				SwaggerURL:       "/docs",
				SpecURL:          "/openapi.json",
				UIHandler: func(specURL string) http.Handler {
					return ScalarHandler(specURL, cfg.Title, cfg.Description)
				},
			}),
		),
	)

	s.OpenAPI.Description().Info.Title = cfg.Title
	s.OpenAPI.Description().Info.Description = cfg.Description
	s.OpenAPI.Description().Info.Version = cfg.Version

	fuego.Use(s, middleware.RequestID)
	fuego.Use(s, middleware.RealIP)
	fuego.Use(s, middleware.Recoverer)
	fuego.Use(s, cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	srv := &Server{
		fuego:      s,
		deps:       deps,
		version:    cfg.Version,
		purgeToken: cfg.PurgeToken,
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) registerRoutes() {
	fuego.Get(s.fuego, "/health", s.healthCheck,
		option.Summary("Health Check"),
		option.Description("Returns the health status of the notification worker"),
		option.Tags("System"),
	)

	queueGroup := fuego.Group(s.fuego, "/api/v1/queue",
		option.Tags("Queue"),
	)

	fuego.Get(queueGroup, "/stats", s.getQueueStats,
		option.Summary("Queue Statistics"),
		option.Description("Returns approximate broker counts plus worker counters"),
	)

	appsGroup := fuego.Group(s.fuego, "/api/v1/applications",
		option.Tags("Applications"),
	)

	fuego.Get(appsGroup, "/stats", s.getApplicationStats,
		option.Summary("Application Statistics"),
		option.Description("Returns live application counts per status"),
	)

	fuego.Post(appsGroup, "/purge", s.runPurge,
		option.Summary("Purge Applications"),
		option.Description("Hard-deletes old applications in the configured purge statuses. Requires the ops bearer token."),
		option.Middleware(requireToken(s.purgeToken)),
	)
}

// requireToken rejects requests without "Authorization: Bearer <token>". An
// empty token disables the route.
func requireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.Error(w, "ops token not configured", http.StatusForbidden)
				return
			}
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				http.Error(w, "invalid ops token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Start starts the API server. It blocks until the server stops.
func (s *Server) Start() error {
	return s.fuego.Run()
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.fuego.Shutdown(ctx)
}

// Handler returns the root handler (for tests and embedding).
func (s *Server) Handler() http.Handler {
	return s.fuego.Mux
}
