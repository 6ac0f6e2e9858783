package player

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/scrimm/scrimm/pkg/video"
)

type fakeProcess struct {
	mu       sync.Mutex
	position float64
	focused  int
	stopped  bool
	exit     chan struct{}
	once     sync.Once
}

func newFakeProcess(pos float64) *fakeProcess {
	return &fakeProcess{position: pos, exit: make(chan struct{})}
}

func (p *fakeProcess) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

func (p *fakeProcess) Focus() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.focused++
	return nil
}

func (p *fakeProcess) Wait() error {
	<-p.exit
	return nil
}

func (p *fakeProcess) Stop() error {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.quit()
	return nil
}

func (p *fakeProcess) quit() { p.once.Do(func() { close(p.exit) }) }

type fakeLauncher struct {
	mu       sync.Mutex
	launched []video.FoundVideo
	procs    []*fakeProcess
	err      error
}

func (l *fakeLauncher) Launch(_ context.Context, v video.FoundVideo) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	p := newFakeProcess(v.LastPlayedTime + 30)
	l.launched = append(l.launched, v)
	l.procs = append(l.procs, p)
	return p, nil
}

func mkVideo(t *testing.T, raw string) video.FoundVideo {
	t.Helper()
	u, _ := url.Parse(raw)
	v, err := video.NewFoundVideo("title", u, 10)
	if err != nil {
		t.Fatalf("video: %v", err)
	}
	return v
}

type closedEvent struct {
	url string
	pos float64
}

func TestHandle_ShowFocusReplace(t *testing.T) {
	l := &fakeLauncher{}
	h := NewHandle(l)

	var mu sync.Mutex
	var closed []closedEvent
	h.OnClosed(func(v video.FoundVideo, pos float64) {
		mu.Lock()
		defer mu.Unlock()
		closed = append(closed, closedEvent{v.URLString(), pos})
	})

	ctx := context.Background()
	a := mkVideo(t, "https://a.example/a.m3u8")
	if err := h.ShowOrFocus(ctx, a); err != nil {
		t.Fatalf("show: %v", err)
	}
	// same URL, different FoundVideo instance: focus only
	if err := h.ShowOrFocus(ctx, mkVideo(t, "https://a.example/a.m3u8")); err != nil {
		t.Fatalf("focus: %v", err)
	}
	if len(l.launched) != 1 || l.procs[0].focused != 1 {
		t.Fatalf("expected one launch and one focus, got %d launches, %d focus", len(l.launched), l.procs[0].focused)
	}

	b := mkVideo(t, "https://a.example/b.mp4")
	if err := h.ShowOrFocus(ctx, b); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if !l.procs[0].stopped {
		t.Fatalf("expected first player to be stopped")
	}
	if playing, ok := h.Playing(); !ok || playing.URLString() != b.URLString() {
		t.Fatalf("expected b to be playing")
	}

	if err := h.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(closed) != 2 {
		t.Fatalf("expected two close events, got %+v", closed)
	}
	for _, ev := range closed {
		if ev.pos != 40 {
			t.Fatalf("expected reported position 40, got %+v", ev)
		}
	}
	if _, ok := h.Playing(); ok {
		t.Fatalf("expected nothing playing after close")
	}
}

func TestHandle_PlayerExitsOnItsOwn(t *testing.T) {
	l := &fakeLauncher{}
	h := NewHandle(l)
	got := make(chan float64, 1)
	h.OnClosed(func(_ video.FoundVideo, pos float64) { got <- pos })

	if err := h.ShowOrFocus(context.Background(), mkVideo(t, "https://a.example/a.mp4")); err != nil {
		t.Fatalf("show: %v", err)
	}
	l.procs[0].quit()

	select {
	case pos := <-got:
		if pos != 40 {
			t.Fatalf("unexpected position %v", pos)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("close handler not called")
	}
	h.Wait()
	if _, ok := h.Playing(); ok {
		t.Fatalf("expected nothing playing")
	}
}

func TestHandle_LaunchError(t *testing.T) {
	h := NewHandle(&fakeLauncher{err: ErrNoPlayer})
	if err := h.ShowOrFocus(context.Background(), mkVideo(t, "https://a.example/a.mp4")); !errors.Is(err, ErrNoPlayer) {
		t.Fatalf("expected ErrNoPlayer, got %v", err)
	}
	if _, ok := h.Playing(); ok {
		t.Fatalf("expected nothing playing")
	}
}
