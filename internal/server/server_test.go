package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/crmctl/internal/diagnostics"
	"github.com/desertthunder/crmctl/internal/shared"
	th "github.com/desertthunder/crmctl/internal/testing"
)

type countingProber struct {
	calls int
	err   error
}

func (p *countingProber) Probe(context.Context) error {
	p.calls++
	return p.err
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRouter(t *testing.T) {
	t.Run("method filtering", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("pong"))
		}))

		if rec := get(t, router, "/ping"); rec.Code != http.StatusOK || rec.Body.String() != "pong" {
			t.Errorf("GET /ping = %d %q", rec.Code, rec.Body.String())
		}

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/ping", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("HEAD should be allowed on GET routes, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != "GET" {
			t.Errorf("POST /ping = %d allow=%q", rec.Code, rec.Header().Get("Allow"))
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mark("outer"), mark("inner"))
		router.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))
		get(t, router, "/")

		if strings.Join(order, ",") != "outer,inner,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("unmatched paths pass middleware", func(t *testing.T) {
		seen := false
		router := NewBasicRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = true
				next.ServeHTTP(w, r)
			})
		})
		router.Handle(http.MethodGet, "/known", http.NotFoundHandler())

		if rec := get(t, router, "/unknown"); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
		if !seen {
			t.Error("middleware should see unmatched requests")
		}
	})
}

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok")) })

	t.Run("RateLimit", func(t *testing.T) {
		srv := New(Options{Config: shared.ServerConfig{RateLimit: 0.001, Burst: 2}})
		h := srv.Handler()

		for i := 0; i < 2; i++ {
			if rec := get(t, h, "/healthz"); rec.Code != http.StatusOK {
				t.Fatalf("request %d = %d", i, rec.Code)
			}
		}
		rec := get(t, h, "/healthz")
		if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
			t.Errorf("expected 429 with Retry-After, got %d", rec.Code)
		}
	})

	t.Run("Recover", func(t *testing.T) {
		router := NewBasicRouter()
		router.Use(Recover(shared.NewLogger(&strings.Builder{})))
		router.Handle(http.MethodGet, "/boom", http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))

		if rec := get(t, router, "/boom"); rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("Logging", func(t *testing.T) {
		var out strings.Builder
		logger := shared.NewLogger(&out)
		router := NewBasicRouter()
		router.Use(Logging(logger))
		router.Handle(http.MethodGet, "/page", ok)

		get(t, router, "/page")
		if !strings.Contains(out.String(), "path=/page") || !strings.Contains(out.String(), "status=200") {
			t.Errorf("unexpected log output %q", out.String())
		}
	})
}

func TestHealthHandler(t *testing.T) {
	decode := func(t *testing.T, rec *httptest.ResponseRecorder) probeResponse {
		t.Helper()
		var body probeResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid probe body %q: %v", rec.Body.String(), err)
		}
		return body
	}

	t.Run("healthz ignores the prober", func(t *testing.T) {
		prober := &countingProber{err: errors.New("down")}
		h := NewHealthHandler(prober, nil)
		rec := get(t, h, "/healthz")
		if rec.Code != http.StatusOK || decode(t, rec).Status != "ok" || prober.calls != 0 {
			t.Errorf("healthz = %d, calls=%d", rec.Code, prober.calls)
		}
	})

	t.Run("readyz ok", func(t *testing.T) {
		h := NewHealthHandler(&countingProber{}, nil)
		if rec := get(t, h, "/readyz"); rec.Code != http.StatusOK {
			t.Errorf("readyz = %d", rec.Code)
		}
	})

	t.Run("breaker opens after three failures", func(t *testing.T) {
		prober := &countingProber{err: errors.New("connection refused")}
		h := NewHealthHandler(prober, shared.NewLogger(&strings.Builder{}))

		for i := 0; i < 3; i++ {
			rec := get(t, h, "/readyz")
			if rec.Code != http.StatusServiceUnavailable {
				t.Fatalf("probe %d = %d", i, rec.Code)
			}
			if body := decode(t, rec); body.Error != "connection refused" {
				t.Errorf("probe %d error = %q", i, body.Error)
			}
		}

		rec := get(t, h, "/readyz")
		if body := decode(t, rec); rec.Code != http.StatusServiceUnavailable || body.Error != "circuit open" {
			t.Errorf("expected open circuit, got %d %+v", rec.Code, body)
		}
		if prober.calls != 3 {
			t.Errorf("open circuit should not call the prober, got %d calls", prober.calls)
		}
	})

	t.Run("readyz against a database", func(t *testing.T) {
		db := th.MemoryDatabase(t)
		inspector := diagnostics.NewInspector(db.DB(), db.Dialect(), nil)
		h := NewHealthHandler(inspector, nil)

		if rec := get(t, h, "/readyz"); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("unmigrated database should not be ready, got %d", rec.Code)
		}

		if _, err := shared.RunMigrations(context.Background(), db.DB(), db.Dialect()); err != nil {
			t.Fatal(err)
		}
		if rec := get(t, h, "/readyz"); rec.Code != http.StatusOK {
			t.Errorf("migrated database should be ready, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewHealthHandler(nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

func TestServer(t *testing.T) {
	t.Run("static files", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "app.css"), []byte("body{}"), 0644); err != nil {
			t.Fatal(err)
		}
		srv := New(Options{StaticDir: dir})

		rec := get(t, srv.Handler(), "/static/app.css")
		if rec.Code != http.StatusOK || rec.Body.String() != "body{}" {
			t.Errorf("GET /static/app.css = %d %q", rec.Code, rec.Body.String())
		}
		if rec := get(t, srv.Handler(), "/static/missing.css"); rec.Code != http.StatusNotFound {
			t.Errorf("missing static file = %d", rec.Code)
		}
	})

	t.Run("Serve shuts down on cancel", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		srv := New(Options{Config: shared.ServerConfig{Host: "127.0.0.1"}})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- srv.Serve(ctx, ln) }()

		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			t.Fatalf("GET /healthz: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("healthz = %d", resp.StatusCode)
		}

		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve() = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("server did not shut down")
		}
	})

	t.Run("Addr", func(t *testing.T) {
		srv := New(Options{Config: shared.ServerConfig{Host: "0.0.0.0", Port: 8000}})
		if srv.Addr() != "0.0.0.0:8000" {
			t.Errorf("unexpected addr %s", srv.Addr())
		}
	})
}
