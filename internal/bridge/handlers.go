package bridge

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/scrimm/scrimm/internal/browser"
	"github.com/scrimm/scrimm/internal/utils"
	"github.com/scrimm/scrimm/pkg/detect"
	"github.com/scrimm/scrimm/pkg/providers"
	"github.com/scrimm/scrimm/pkg/recents"
	"github.com/scrimm/scrimm/pkg/video"
)

const maxEnvelopeBytes = 64 << 10

type launcherPage struct {
	Providers []providers.Provider
	Recents   []recents.Item
	Error     string
}

type playingPage struct {
	Title    string
	URL      string
	Found    bool
	Position float64
	Session  string
}

// SessionStatus is the JSON view of a session.
type SessionStatus struct {
	ID        string `json:"id"`
	Location  string `json:"location"`
	PageURL   string `json:"pageUrl,omitempty"`
	Title     string `json:"title,omitempty"`
	Accepted  bool   `json:"accepted"`
	LastFound string `json:"lastFound,omitempty"`
}

func (s *Server) handleLauncher(w http.ResponseWriter, r *http.Request) {
	s.renderLauncher(w, http.StatusOK, "")
}

func (s *Server) renderLauncher(w http.ResponseWriter, status int, msg string) {
	data := launcherPage{Providers: s.Providers, Error: msg}
	if s.Recents != nil {
		data.Recents = s.Recents.Items()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, "launcher.html", data); err != nil {
		utils.Log.Errorf("Rendering launcher: %v", err)
	}
}

func (s *Server) handleGo(w http.ResponseWriter, r *http.Request) {
	target, ok := video.NormalizeInput(r.URL.Query().Get("q"))
	if !ok {
		s.renderLauncher(w, http.StatusBadRequest, "Please enter a valid URL.")
		return
	}
	http.Redirect(w, r, browsePath(target.String()), http.StatusSeeOther)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, ok := providers.Find(s.Providers, q.Get("provider"))
	if !ok {
		s.renderLauncher(w, http.StatusNotFound, "Unknown search provider.")
		return
	}
	query := q.Get("q")
	if query == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, browsePath(p.QueryURL(query)), http.StatusSeeOther)
}

func (s *Server) handlePlayRecent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.Recents == nil || s.Player == nil {
		http.Error(w, "playback is not available", http.StatusServiceUnavailable)
		return
	}
	for _, it := range s.Recents.Items() {
		if it.ID != id {
			continue
		}
		v, err := it.FoundVideo()
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		if err := s.Player.Play(r.Context(), v); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.renderLauncher(w, http.StatusNotFound, "That video is no longer in your recents.")
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target, ok := video.NormalizeInput(q.Get("url"))
	if !ok {
		s.renderLauncher(w, http.StatusBadRequest, "Please enter a valid URL.")
		return
	}

	ps, ok := s.lookup(q.Get("s"))
	if !ok {
		ps = s.newSession()
	}
	ps.touch()
	ps.page.setOrigin(origin(r))

	if err := ps.session.Navigate(r.Context(), target); err != nil {
		if errors.Is(err, browser.ErrClosed) {
			http.Error(w, "session closed", http.StatusGone)
			return
		}
		utils.Log.Warnf("Navigation to %s failed: %v", target, err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if err := ps.session.Sync(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusGone)
		return
	}

	if doc := ps.page.document(); doc != nil && !video.IsVideoFile(target) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(doc)
		return
	}

	data := playingPage{Session: ps.id, URL: target.String()}
	if v, ok := ps.session.LastFound(); ok && ps.session.Accepted() {
		data.Found = true
		data.Title = v.PageTitle
		data.URL = v.URLString()
		data.Position = s.resumePosition(v)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, "playing.html", data); err != nil {
		utils.Log.Errorf("Rendering playing page: %v", err)
	}
}

// resumePosition is where playback of v starts: its recents entry when the
// hand-off recorded one, else the position the video was found with.
func (s *Server) resumePosition(v video.FoundVideo) float64 {
	if s.Recents != nil {
		u := v.URLString()
		for _, it := range s.Recents.Items() {
			if it.URLString == u {
				return it.PlaybackTime
			}
		}
	}
	return v.LastPlayedTime
}

// handlePopup is where the page script sends window.open and target=_blank
// navigations. Only video files get through.
func (s *Server) handlePopup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ps, ok := s.lookup(q.Get("s"))
	if !ok || q.Get("popup") == "" {
		http.Error(w, "no such session", http.StatusGone)
		return
	}
	ps.touch()
	target, err := url.Parse(q.Get("url"))
	if err != nil || !target.IsAbs() {
		http.Error(w, "invalid url", http.StatusBadRequest)
		return
	}
	if !ps.session.OpenPopup(target) {
		utils.Log.Debugf("Blocked pop-up to %s", target)
		w.WriteHeader(http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// channelFor returns the session when gen is its current page view.
func (s *Server) channelFor(r *http.Request) (*pageSession, *browser.Channel, bool) {
	ps, ok := s.lookup(chi.URLParam(r, "id"))
	if !ok {
		return nil, nil, false
	}
	gen, err := strconv.ParseUint(r.URL.Query().Get("g"), 10, 64)
	if err != nil {
		return nil, nil, false
	}
	ch := ps.session.Current()
	if ch.Gen() != gen || ps.session.Closed() {
		return nil, nil, false
	}
	return ps, ch, true
}

func (s *Server) handleChannelAlive(w http.ResponseWriter, r *http.Request) {
	ps, _, ok := s.channelFor(r)
	if !ok {
		w.WriteHeader(http.StatusGone)
		return
	}
	ps.touch()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChannelPost(w http.ResponseWriter, r *http.Request) {
	ps, ch, ok := s.channelFor(r)
	if !ok {
		w.WriteHeader(http.StatusGone)
		return
	}
	ps.touch()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEnvelopeBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	msg, err := detect.DecodeMessage(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if msg.Kind != detect.KindReset && !ps.limiter.Allow() {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}
	ch.Post(msg)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	ps, ok := s.lookup(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "no such session", http.StatusNotFound)
		return
	}
	if err := ps.session.Sync(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusGone)
		return
	}
	st := SessionStatus{
		ID:       ps.id,
		Location: ps.page.Location(),
		Accepted: ps.session.Accepted(),
	}
	if p := ps.session.Page(); p.URL != nil {
		st.PageURL = p.URL.String()
		st.Title = p.Title
	}
	if v, ok := ps.session.LastFound(); ok {
		st.LastFound = v.URLString()
	}
	writeJSON(w, st)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if !s.closeSession(chi.URLParam(r, "id")) {
		http.Error(w, "no such session", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePageClose takes the beacon a page sends when it goes away. Only the
// current page view can close its session; a page replaced by a bridge
// navigation is already stale by the time its beacon arrives.
func (s *Server) handlePageClose(w http.ResponseWriter, r *http.Request) {
	ps, _, ok := s.channelFor(r)
	if !ok {
		w.WriteHeader(http.StatusConflict)
		return
	}
	s.closeSession(ps.id)
	w.WriteHeader(http.StatusNoContent)
}

// handleLeave closes the session and returns to the launcher.
func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	s.closeSession(chi.URLParam(r, "id"))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleDeleteRecent(w http.ResponseWriter, r *http.Request) {
	if s.Recents == nil {
		http.Error(w, "recents are not available", http.StatusServiceUnavailable)
		return
	}
	id := chi.URLParam(r, "id")
	removed, err := s.Recents.Delete(r.Context(), id)
	if err != nil {
		utils.Log.Errorf("Deleting recent %s: %v", id, err)
		s.recentsDone(w, r, http.StatusInternalServerError, "Could not remove that video.")
		return
	}
	if !removed {
		s.recentsDone(w, r, http.StatusNotFound, "That video is no longer in your recents.")
		return
	}
	s.recentsDone(w, r, http.StatusNoContent, "")
}

func (s *Server) handleClearRecents(w http.ResponseWriter, r *http.Request) {
	if s.Recents == nil {
		http.Error(w, "recents are not available", http.StatusServiceUnavailable)
		return
	}
	if err := s.Recents.ClearAll(r.Context()); err != nil {
		utils.Log.Errorf("Clearing recents: %v", err)
		s.recentsDone(w, r, http.StatusInternalServerError, "Could not clear recents.")
		return
	}
	s.recentsDone(w, r, http.StatusNoContent, "")
}

// recentsDone answers a recents edit: API callers get the status, the
// launcher form goes back to the launcher.
func (s *Server) recentsDone(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if r.Method == http.MethodDelete {
		if msg != "" {
			http.Error(w, msg, status)
			return
		}
		w.WriteHeader(status)
		return
	}
	if msg != "" {
		s.renderLauncher(w, status, msg)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleRecents(w http.ResponseWriter, r *http.Request) {
	items := []recents.Item{}
	if s.Recents != nil {
		items = s.Recents.Items()
	}
	writeJSON(w, items)
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	list := s.Providers
	if list == nil {
		list = []providers.Provider{}
	}
	writeJSON(w, list)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Log.Errorf("Encoding response: %v", err)
	}
}

func browsePath(target string) string {
	return "/browse?url=" + url.QueryEscape(target)
}

func origin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
