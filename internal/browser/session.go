package browser

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"github.com/scrimm/scrimm/internal/utils"
	"github.com/scrimm/scrimm/pkg/detect"
	"github.com/scrimm/scrimm/pkg/video"
)

var ErrClosed = errors.New("browser: session closed")

// BlankURL is where a renderer is left after Stop.
const BlankURL = "about:blank"

// Page is the committed state of the current page view.
type Page struct {
	URL   *url.URL
	Title string
}

// Renderer loads pages for a session.
type Renderer interface {
	// Load renders target. It must call ch.Commit once before posting any
	// message for the page, and must stop posting once ctx is done or Stop
	// has been called.
	Load(ctx context.Context, target *url.URL, ch *Channel) error
	// Stop synchronously halts network and media activity and leaves the
	// renderer on BlankURL.
	Stop() error
}

type eventKind int

const (
	evCommit eventKind = iota
	evMessage
	evBarrier
)

type event struct {
	kind eventKind
	gen  uint64
	page Page
	msg  detect.Message
	done chan struct{}
}

// Channel is the page-to-host message channel of one navigation. Messages
// are delivered in the order they are posted. Posting never blocks.
type Channel struct {
	s   *Session
	gen uint64
}

// Gen identifies the navigation the channel belongs to.
func (c *Channel) Gen() uint64 { return c.gen }

// Commit marks the page as loaded. The gate reopens before any message
// posted afterwards is processed.
func (c *Channel) Commit(p Page) {
	c.s.enqueue(event{kind: evCommit, gen: c.gen, page: p})
}

// Post delivers a message from the page script. Messages for a page that
// has since been navigated away from are dropped.
func (c *Channel) Post(m detect.Message) {
	c.s.enqueue(event{kind: evMessage, gen: c.gen, msg: m})
}

// Session binds one renderer to one page at a time and turns detector
// messages into at most one FoundVideo per page view.
//
// All gate decisions happen on a single goroutine; onFound is called from
// it and must not call Close.
type Session struct {
	renderer Renderer
	onFound  func(video.FoundVideo)

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []event
	gen    uint64
	closed bool

	// mirrors of loop state for readers on other goroutines
	page     Page
	accepted bool
	last     *video.FoundVideo

	// loop-owned
	coord   detect.Coordinator
	current uint64
	loopPg  Page

	done chan struct{}
}

func NewSession(r Renderer, onFound func(video.FoundVideo)) *Session {
	s := &Session{
		renderer: r,
		onFound:  onFound,
		done:     make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

// Navigate starts a new page view. A target with a known video extension
// skips the renderer and is handed to the coordinator directly.
func (s *Session) Navigate(ctx context.Context, target *url.URL) error {
	ch, prev, err := s.begin()
	if err != nil {
		return err
	}
	if video.IsVideoFile(target) {
		utils.Log.Debugf("Direct navigation to video file %s", target)
		ch.Commit(Page{URL: target, Title: prev.Title})
		ch.Post(detect.Candidate(target.String(), ""))
		return nil
	}
	return s.renderer.Load(ctx, target, ch)
}

// OpenPopup handles a page's attempt to open a new window. Only video files
// are accepted; they go straight to the coordinator for the current page
// view. Everything else is blocked.
func (s *Session) OpenPopup(target *url.URL) bool {
	if !video.IsVideoFile(target) {
		return false
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	ch := &Channel{s: s, gen: s.gen}
	s.mu.Unlock()
	ch.Post(detect.Candidate(target.String(), ""))
	return true
}

// Current returns the channel of the latest navigation.
func (s *Session) Current() *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Channel{s: s, gen: s.gen}
}

func (s *Session) begin() (*Channel, Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, Page{}, ErrClosed
	}
	s.gen++
	return &Channel{s: s, gen: s.gen}, s.page, nil
}

// Sync waits until every event enqueued before the call has been handled.
func (s *Session) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if !s.enqueue(event{kind: evBarrier, done: done}) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears the session down. The renderer is stopped before Close
// returns; pending and later messages are dropped.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return nil
	}
	s.closed = true
	s.queue = nil
	s.cond.Broadcast()
	s.mu.Unlock()

	err := s.renderer.Stop()
	<-s.done
	return err
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Page returns the committed page of the current page view.
func (s *Session) Page() Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Accepted reports whether the current page view already produced a video.
func (s *Session) Accepted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// LastFound returns the most recent video the session produced.
func (s *Session) LastFound() (video.FoundVideo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return video.FoundVideo{}, false
	}
	return *s.last, true
}

func (s *Session) enqueue(ev event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.queue = append(s.queue, ev)
	s.cond.Signal()
	return true
}

func (s *Session) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		ev := s.queue[0]
		s.queue[0] = event{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.handle(ev)
	}
}

func (s *Session) handle(ev event) {
	switch ev.kind {
	case evBarrier:
		close(ev.done)

	case evCommit:
		if ev.gen < s.current {
			utils.Log.Debugf("Ignoring commit of superseded navigation %d", ev.gen)
			return
		}
		s.current = ev.gen
		s.loopPg = ev.page
		s.coord.Reset()
		s.mu.Lock()
		s.page = ev.page
		s.accepted = false
		s.mu.Unlock()

	case evMessage:
		if ev.gen != s.current {
			utils.Log.Debugf("Dropping %s from stale page view %d", ev.msg.Kind, ev.gen)
			return
		}
		if ev.msg.Kind == detect.KindReset {
			utils.Log.Debug("Detector reset by page")
		}
		// the page may have retitled itself since it committed
		title := s.loopPg.Title
		if ev.msg.Title != "" {
			title = ev.msg.Title
		}
		v := s.coord.Handle(ev.msg, s.loopPg.URL, title)
		s.mu.Lock()
		s.accepted = s.coord.Accepted()
		if v != nil {
			s.last = v
		}
		s.mu.Unlock()
		if v == nil {
			return
		}
		utils.Log.WithField("vector", ev.msg.Vector).Infof("Found video %s", v.URLString())
		if s.onFound != nil {
			s.onFound(*v)
		}
	}
}
