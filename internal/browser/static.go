package browser

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/scrimm/scrimm/pkg/detect"
	"github.com/scrimm/scrimm/pkg/whttp"
)

// StaticRenderer is a headless renderer. It fetches the page and runs the
// static detection vectors over the HTML instead of executing scripts.
type StaticRenderer struct {
	client *whttp.Client

	mu       sync.Mutex
	cancel   context.CancelFunc
	location string
}

func NewStaticRenderer(client *whttp.Client) *StaticRenderer {
	return &StaticRenderer{client: client, location: BlankURL}
}

func (r *StaticRenderer) Load(ctx context.Context, target *url.URL, ch *Channel) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	if r.cancel != nil {
		// a new navigation abandons the previous one
		r.cancel()
	}
	r.cancel = cancel
	r.location = target.String()
	r.mu.Unlock()

	res, err := r.client.Get(ctx, target.String())
	if err != nil {
		return fmt.Errorf("load %s: %w", target, err)
	}
	final := res.FinalURL
	if final == nil {
		final = target
	}
	if !r.still(ctx, final.String()) {
		return ctx.Err()
	}

	ch.Commit(Page{URL: final, Title: res.HTTPTitle})

	if whttp.IsMediaType(res.ContentType) {
		ch.Post(detect.Candidate(final.String(), detect.VectorNetworkFetch))
		return nil
	}
	if res.StatusCode >= 400 {
		return fmt.Errorf("load %s: status %d", final, res.StatusCode)
	}

	hits, err := detect.ScanHTML(bytes.NewReader(res.Body))
	if err != nil {
		return fmt.Errorf("parse %s: %w", final, err)
	}
	for _, h := range hits {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ch.Post(h.Message())
	}
	return nil
}

// still records the renderer's location unless the load was abandoned.
func (r *StaticRenderer) still(ctx context.Context, location string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	r.location = location
	return true
}

func (r *StaticRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.location = BlankURL
	return nil
}

// Location is the URL the renderer currently shows.
func (r *StaticRenderer) Location() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.location
}
