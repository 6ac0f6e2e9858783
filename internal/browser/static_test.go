package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scrimm/scrimm/pkg/video"
	"github.com/scrimm/scrimm/pkg/whttp"
)

const watchPage = `<!doctype html><html><head><title>Big Buck Bunny</title>
<script>var hls = new Hls(); hls.loadSource("/media/bunny/master.m3u8");</script>
</head><body><div class="player"><video id="v"></video></div></body></html>`

func newClient(t *testing.T) *whttp.Client {
	t.Helper()
	c, err := whttp.NewClient(whttp.Config{})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return c
}

func TestStaticRenderer_FindsRelativeManifest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/watch/1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, watchPage)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := NewStaticRenderer(newClient(t))
	c := &collector{}
	s := NewSession(r, c.add)
	defer s.Close()

	if err := s.Navigate(context.Background(), mustURL(t, srv.URL+"/watch/1")); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	syncSession(t, s)

	got := c.all()
	if len(got) != 1 {
		t.Fatalf("expected one video, got %d", len(got))
	}
	if want := srv.URL + "/media/bunny/master.m3u8"; got[0].URLString() != want {
		t.Fatalf("expected %s, got %s", want, got[0].URLString())
	}
	if got[0].PageTitle != "Big Buck Bunny" {
		t.Fatalf("unexpected title %q", got[0].PageTitle)
	}
	if r.Location() != srv.URL+"/watch/1" {
		t.Fatalf("unexpected location %s", r.Location())
	}
}

func TestStaticRenderer_MediaResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte{0, 0, 0, 0x18})
	}))
	defer srv.Close()

	c := &collector{}
	s := NewSession(NewStaticRenderer(newClient(t)), c.add)
	defer s.Close()

	s.Navigate(context.Background(), mustURL(t, srv.URL+"/stream?id=4"))
	syncSession(t, s)

	got := c.all()
	if len(got) != 1 || got[0].URLString() != srv.URL+"/stream?id=4" || got[0].PageTitle != video.UntitledVideo {
		t.Fatalf("unexpected videos %+v", got)
	}
}

func TestStaticRenderer_CloseHaltsInflightLoad(t *testing.T) {
	var requests int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		fmt.Fprint(w, watchPage)
	}))
	defer srv.Close()
	defer close(release)

	r := NewStaticRenderer(newClient(t))
	c := &collector{}
	s := NewSession(r, c.add)

	loadErr := make(chan error, 1)
	go func() {
		loadErr <- s.Navigate(context.Background(), mustURL(t, srv.URL+"/slow"))
	}()

	deadline := time.Now().Add(5 * time.Second)
	for atomic.LoadInt32(&requests) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("request never reached the server")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if r.Location() != BlankURL {
		t.Fatalf("expected renderer on %s after close, got %s", BlankURL, r.Location())
	}

	select {
	case err := <-loadErr:
		if err == nil {
			t.Fatalf("expected in-flight load to be aborted")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("load did not stop after close")
	}

	if n := atomic.LoadInt32(&requests); n != 1 {
		t.Fatalf("expected no further requests after close, got %d", n)
	}
	if len(c.all()) != 0 {
		t.Fatalf("expected no video after close")
	}
}

func TestStaticRenderer_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := NewSession(NewStaticRenderer(newClient(t)), nil)
	defer s.Close()
	if err := s.Navigate(context.Background(), mustURL(t, srv.URL+"/gone")); err == nil {
		t.Fatalf("expected error for 404 page")
	}
}
