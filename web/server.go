// Package web serves the recorder page and drives capture in the browser
// over a websocket.
package web

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/hlog"

	"vocalscript/config"
	"vocalscript/log"
	"vocalscript/recorder"
)

//go:embed static
var staticFiles embed.FS

type Server struct {
	cfg    config.Server
	recCfg recorder.Config
	client recorder.Transcriber
	name   string

	sessions atomic.Int64
}

// NewServer shares client across connections; every connection gets its
// own controller. name identifies the provider in session logs.
func NewServer(cfg config.Server, recCfg recorder.Config, client recorder.Transcriber, name string) *Server {
	return &Server{cfg: cfg, recCfg: recCfg, client: client, name: name}
}

func (s *Server) Handler() http.Handler {
	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(hlog.NewHandler(log.Logger()))
	router.Use(hlog.RemoteAddrHandler("ip"))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins(),
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// websocket upgrades skip the access log; the session logs itself
	router.Get("/ws", s.serveWS)

	router.Group(func(r chi.Router) {
		r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("size", size).
				Dur("duration", d).
				Msg("http")
		}))
		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("ok"))
		})
		r.Handle("/*", http.FileServer(http.FS(static)))
	})

	return router
}

func (s *Server) allowedOrigins() []string {
	if len(s.cfg.AllowedOrigins) == 0 {
		return []string{"https://*", "http://*"}
	}
	return s.cfg.AllowedOrigins
}

// ListenAndServe blocks until ctx is done, then shuts down. Open sessions
// are cancelled through their request contexts.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", s.cfg.Addr)
		if s.cfg.TLSCert != "" {
			errc <- srv.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
			return
		}
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Sessions reports how many websocket sessions are open.
func (s *Server) Sessions() int { return int(s.sessions.Load()) }
