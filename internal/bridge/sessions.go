package bridge

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/scrimm/scrimm/internal/browser"
	"github.com/scrimm/scrimm/internal/utils"
	"github.com/scrimm/scrimm/pkg/detect"
	"github.com/scrimm/scrimm/pkg/video"
	"github.com/scrimm/scrimm/pkg/whttp"
)

// pageSession is one browsing session driven from the user's browser.
type pageSession struct {
	id      string
	session *browser.Session
	page    *pageRenderer
	limiter *rate.Limiter

	mu       sync.Mutex
	lastSeen time.Time
}

func (ps *pageSession) touch() {
	ps.mu.Lock()
	ps.lastSeen = time.Now()
	ps.mu.Unlock()
}

func (ps *pageSession) idleSince() time.Time {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.lastSeen
}

// pageRenderer fetches a page and keeps the copy, with the detector injected,
// that the browser is served. The script itself runs in the browser.
type pageRenderer struct {
	client *whttp.Client
	script func(origin string, gen uint64) (string, error)

	mu       sync.Mutex
	cancel   context.CancelFunc
	origin   string
	doc      []byte
	location string
}

func (r *pageRenderer) setOrigin(origin string) {
	r.mu.Lock()
	r.origin = origin
	r.mu.Unlock()
}

func (r *pageRenderer) Load(ctx context.Context, target *url.URL, ch *browser.Channel) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.cancel = cancel
	r.doc = nil
	r.location = target.String()
	origin := r.origin
	r.mu.Unlock()

	res, err := r.client.Get(ctx, target.String())
	if err != nil {
		return fmt.Errorf("load %s: %w", target, err)
	}
	final := res.FinalURL
	if final == nil {
		final = target
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	ch.Commit(browser.Page{URL: final, Title: res.HTTPTitle})

	if whttp.IsMediaType(res.ContentType) {
		ch.Post(detect.Candidate(final.String(), detect.VectorNetworkFetch))
		return nil
	}

	js, err := r.script(origin, ch.Gen())
	if err != nil {
		return err
	}
	doc, err := inject(res.Body, final, js)
	if err != nil {
		return fmt.Errorf("inject into %s: %w", final, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	r.doc = doc
	r.location = final.String()
	return nil
}

func (r *pageRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.doc = nil
	r.location = browser.BlankURL
	return nil
}

// document is the last page prepared for the browser, nil if the last
// navigation produced none.
func (r *pageRenderer) document() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc
}

func (r *pageRenderer) Location() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.location
}

// inject adds a base element pointing at the page's own URL and the
// detector script at the top of head, so relative resources still load from
// the origin and the script runs before any page script.
func inject(body []byte, base *url.URL, script string) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	head := doc.Find("head").First()

	head.PrependHtml("<script>" + script + "</script>")

	if existing := doc.Find("base[href]").First(); existing.Length() > 0 {
		href, _ := existing.Attr("href")
		if ref, err := url.Parse(href); err == nil {
			existing.SetAttr("href", base.ResolveReference(ref).String())
		}
		existing.Remove()
		head.PrependSelection(existing)
	} else {
		head.PrependHtml(`<base href="` + html.EscapeString(base.String()) + `">`)
	}

	out, err := doc.Html()
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

func (s *Server) newSession() *pageSession {
	ps := &pageSession{
		id:       uuid.NewString(),
		limiter:  rate.NewLimiter(rate.Limit(s.channelRate()), int(s.channelRate())+1),
		lastSeen: time.Now(),
	}
	ps.page = &pageRenderer{
		client:   s.Client,
		location: browser.BlankURL,
		script: func(origin string, gen uint64) (string, error) {
			opts := s.Script
			opts.Transport = detect.TransportBridge
			opts.Endpoint = origin + "/sessions/" + ps.id + "/channel?g=" + strconv.FormatUint(gen, 10)
			opts.BrowseURL = origin + "/browse?s=" + ps.id + "&url="
			opts.CloseURL = origin + "/sessions/" + ps.id + "/close?g=" + strconv.FormatUint(gen, 10)
			return detect.Script(opts)
		},
	}
	ps.session = browser.NewSession(ps.page, func(v video.FoundVideo) {
		if s.Player == nil {
			return
		}
		if err := s.Player.Play(context.Background(), v); err != nil {
			utils.Log.Errorf("Could not play %s: %v", v.URLString(), err)
		}
	})

	s.mu.Lock()
	s.sessions[ps.id] = ps
	s.mu.Unlock()
	utils.Log.Debugf("Opened session %s", ps.id)
	return ps
}

func (s *Server) channelRate() float64 {
	if s.ChannelRate <= 0 {
		return DefaultChannelRate
	}
	return s.ChannelRate
}

func (s *Server) lookup(id string) (*pageSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.sessions[id]
	return ps, ok
}

// closeSession tears a session down; the renderer is blank when it returns.
func (s *Server) closeSession(id string) bool {
	s.mu.Lock()
	ps, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return false
	}
	if err := ps.session.Close(); err != nil {
		utils.Log.Warnf("Closing session %s: %v", id, err)
	}
	utils.Log.Debugf("Closed session %s", id)
	return true
}

// CloseAll tears down every open session.
func (s *Server) CloseAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.closeSession(id)
	}
}

func (s *Server) reap(ctx context.Context) {
	idle := s.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	ticker := time.NewTicker(idle / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s.reapIdle(time.Now().Add(-idle))
	}
}

func (s *Server) reapIdle(cutoff time.Time) int {
	s.mu.Lock()
	var stale []string
	for id, ps := range s.sessions {
		if ps.idleSince().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	s.mu.Unlock()
	for _, id := range stale {
		s.closeSession(id)
	}
	return len(stale)
}
