// Package player hands found videos off to an external media player.
package player

import (
	"context"
	"errors"
	"sync"

	"github.com/scrimm/scrimm/internal/utils"
	"github.com/scrimm/scrimm/pkg/video"
)

var ErrNoPlayer = errors.New("player: no player command available")

// Process is one running player.
type Process interface {
	// Position is the last playback position observed, in seconds.
	Position() float64
	// Focus brings the running player to the user's attention.
	Focus() error
	// Wait blocks until the player exits.
	Wait() error
	// Stop asks the player to exit.
	Stop() error
}

// Launcher starts players.
type Launcher interface {
	Launch(ctx context.Context, v video.FoundVideo) (Process, error)
}

// ClosedHandler receives the video that was playing and where playback
// stopped.
type ClosedHandler func(v video.FoundVideo, position float64)

type running struct {
	video video.FoundVideo
	proc  Process
}

// Handle owns the single player window of the application. Callers hold it
// explicitly; there is no package-level instance.
type Handle struct {
	launcher Launcher

	mu       sync.Mutex
	current  *running
	handlers []ClosedHandler
	wg       sync.WaitGroup
}

func NewHandle(l Launcher) *Handle {
	return &Handle{launcher: l}
}

// OnClosed registers fn to run every time a player exits.
func (h *Handle) OnClosed(fn ClosedHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, fn)
}

// ShowOrFocus plays v. If v is already playing the player is only focused;
// if another video is playing it is replaced.
func (h *Handle) ShowOrFocus(ctx context.Context, v video.FoundVideo) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur := h.current; cur != nil {
		if cur.video.URLString() == v.URLString() {
			utils.Log.Debugf("Player already showing %s, focusing", v.URLString())
			return cur.proc.Focus()
		}
		utils.Log.Debugf("Replacing %s with %s", cur.video.URLString(), v.URLString())
		if err := cur.proc.Stop(); err != nil {
			utils.Log.Warnf("Could not stop player: %v", err)
		}
		h.current = nil
	}

	proc, err := h.launcher.Launch(ctx, v)
	if err != nil {
		return err
	}
	r := &running{video: v, proc: proc}
	h.current = r
	h.wg.Add(1)
	go h.watch(r)
	return nil
}

// Playing returns the video currently shown.
func (h *Handle) Playing() (video.FoundVideo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return video.FoundVideo{}, false
	}
	return h.current.video, true
}

// Close stops the running player, if any, and waits for every close
// handler to finish.
func (h *Handle) Close() error {
	h.mu.Lock()
	cur := h.current
	h.mu.Unlock()
	var err error
	if cur != nil {
		err = cur.proc.Stop()
	}
	h.wg.Wait()
	return err
}

// Wait blocks until no player is running and all close handlers returned.
func (h *Handle) Wait() {
	h.wg.Wait()
}

func (h *Handle) watch(r *running) {
	defer h.wg.Done()
	if err := r.proc.Wait(); err != nil {
		utils.Log.Debugf("Player exited: %v", err)
	}
	pos := r.proc.Position()

	h.mu.Lock()
	if h.current == r {
		h.current = nil
	}
	handlers := append([]ClosedHandler(nil), h.handlers...)
	h.mu.Unlock()

	for _, fn := range handlers {
		fn(r.video, pos)
	}
}
