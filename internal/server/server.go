// package server contains middleware, probes & the serve loop for the CRM web entrypoint
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/desertthunder/crmctl/internal/shared"
)

// ShutdownTimeout bounds how long in-flight requests may drain after cancellation.
const ShutdownTimeout = 10 * time.Second

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an http.Handler that declares the path patterns it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Options configure [New].
type Options struct {
	Config    shared.ServerConfig
	StaticDir string // served under /static/; empty disables
	Prober    Prober // readiness check; nil reports ready
	Logger    *log.Logger
}

// Server owns the router and the listener lifecycle.
type Server struct {
	addr    string
	router  *BasicRouter
	logger  *log.Logger
	httpSrv *http.Server
}

// New builds the router: request logging, then rate limiting, then the routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	router := NewBasicRouter()
	router.Use(Recover(logger), Logging(logger))
	if opts.Config.RateLimit > 0 {
		burst := max(opts.Config.Burst, 1)
		router.Use(RateLimit(rate.NewLimiter(rate.Limit(opts.Config.RateLimit), burst)))
	}

	router.Handler(NewHealthHandler(opts.Prober, logger))
	if opts.StaticDir != "" {
		router.Mount("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	host := opts.Config.Host
	addr := net.JoinHostPort(host, strconv.Itoa(opts.Config.Port))
	return &Server{
		addr:   addr,
		router: router,
		logger: logger,
		httpSrv: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Addr is the configured listen address.
func (s *Server) Addr() string { return s.addr }

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("listening", "addr", ln.Addr().String())
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down")
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		return nil
	})

	return g.Wait()
}
