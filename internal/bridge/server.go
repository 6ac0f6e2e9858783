// Package bridge serves pages to the user's own browser with the detector
// script injected, and receives the script's messages over HTTP.
package bridge

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/scrimm/scrimm/internal/utils"
	"github.com/scrimm/scrimm/pkg/detect"
	"github.com/scrimm/scrimm/pkg/providers"
	"github.com/scrimm/scrimm/pkg/recents"
	"github.com/scrimm/scrimm/pkg/video"
	"github.com/scrimm/scrimm/pkg/whttp"
)

//go:embed web
var WebFS embed.FS

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"position": recents.FormatPosition,
	"site":     video.Site,
}).ParseFS(WebFS, "web/*.html"))

const (
	DefaultChannelRate = 20
	DefaultIdleTimeout = 30 * time.Minute
)

// Player receives every video a session finds.
type Player interface {
	Play(ctx context.Context, v video.FoundVideo) error
}

// Recents feeds the launcher page and takes its edits.
type Recents interface {
	Items() []recents.Item
	Delete(ctx context.Context, id string) (bool, error)
	ClearAll(ctx context.Context) error
}

type Server struct {
	Client    *whttp.Client
	Player    Player
	Recents   Recents
	Providers []providers.Provider
	// Script carries the scan interval and keywords; transport, endpoint
	// and browse URL are filled in per page.
	Script   detect.ScriptOptions
	Username string
	Password string
	// ChannelRate caps candidate messages per session and second. Reset
	// messages are never limited.
	ChannelRate float64
	IdleTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*pageSession
}

func New(client *whttp.Client, player Player, rec Recents, provs []providers.Provider) *Server {
	return &Server{
		Client:      client,
		Player:      player,
		Recents:     rec,
		Providers:   provs,
		ChannelRate: DefaultChannelRate,
		IdleTimeout: DefaultIdleTimeout,
		sessions:    make(map[string]*pageSession),
	}
}

// Handler returns the bridge router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logRequests)
	r.Use(s.basicAuth)

	r.Get("/", s.handleLauncher)
	r.Get("/go", s.handleGo)
	r.Get("/search", s.handleSearch)
	r.Get("/play/{id}", s.handlePlayRecent)
	r.Post("/recents/clear", s.handleClearRecents)
	r.Post("/recents/{id}/delete", s.handleDeleteRecent)
	r.Get("/browse", s.handleBrowse)
	r.Post("/browse", s.handlePopup)

	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.handleSessionStatus)
		r.Delete("/", s.handleCloseSession)
		r.Get("/channel", s.handleChannelAlive)
		r.Post("/channel", s.handleChannelPost)
		r.Post("/close", s.handlePageClose)
		r.Get("/leave", s.handleLeave)
	})

	r.Get("/api/recents", s.handleRecents)
	r.Delete("/api/recents", s.handleClearRecents)
	r.Delete("/api/recents/{id}", s.handleDeleteRecent)
	r.Get("/api/providers", s.handleProviders)
	return r
}

// Start serves on addr until ctx is cancelled, then closes every session.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	reapCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	go s.reap(reapCtx)

	errCh := make(chan error, 1)
	go func() {
		utils.Log.Infof("Bridge listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.CloseAll()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	utils.Log.Info("Shutting down bridge")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.CloseAll()
	return err
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="scrimm"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		utils.Log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      recorder.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("http request")
	})
}
