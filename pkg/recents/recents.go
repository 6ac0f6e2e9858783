package recents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/scrimm/scrimm/pkg/storage"
	"github.com/scrimm/scrimm/pkg/video"
)

// Key is the fixed key the list is stored under.
const Key = "VideoRecents"

// Capacity is the maximum number of items kept, newest first.
const Capacity = 10

// Store is the key-value persistence the manager writes through.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Item is one entry of the recents list. URLString is its identity.
type Item struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	URLString    string  `json:"urlString"`
	PlaybackTime float64 `json:"playbackTime"`
}

// FoundVideo rebuilds a FoundVideo that resumes at the stored position.
func (i Item) FoundVideo() (video.FoundVideo, error) {
	u, err := url.Parse(i.URLString)
	if err != nil {
		return video.FoundVideo{}, err
	}
	return video.NewFoundVideo(i.Title, u, i.PlaybackTime)
}

// Encode serialises items as a JSON array.
func Encode(items []Item) ([]byte, error) {
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(items)
}

// Decode parses a JSON array of items. Empty input is an empty list.
func Decode(data []byte) ([]Item, error) {
	if len(data) == 0 {
		return []Item{}, nil
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return []Item{}, err
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}

// Manager keeps the recents list in memory and writes every change through
// to the store.
type Manager struct {
	mu    sync.Mutex
	store Store
	items []Item
}

// Logger abstracts logging so callers can pass logrus or anything else
// with a Warnf.
type Logger interface {
	Warnf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...interface{}) {}

// Load reads the list from store. Missing or unreadable data yields an empty
// list; failures other than a missing key are reported to log.
func Load(ctx context.Context, store Store, log Logger) *Manager {
	if log == nil {
		log = nopLogger{}
	}
	m := &Manager{store: store, items: []Item{}}
	data, err := store.Get(ctx, Key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warnf("Could not read recents, starting empty: %v", err)
		}
		return m
	}
	items, err := Decode(data)
	if err != nil {
		log.Warnf("Could not decode recents, starting empty: %v", err)
		return m
	}
	if len(items) > Capacity {
		items = items[:Capacity]
	}
	m.items = items
	return m
}

// Items returns a copy of the list, newest first.
func (m *Manager) Items() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Item, len(m.items))
	copy(out, m.items)
	return out
}

// Find returns the item for a video URL.
func (m *Manager) Find(urlString string) (Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexOf(urlString); i >= 0 {
		return m.items[i], true
	}
	return Item{}, false
}

// AddOrUpdate moves the video to the front. An existing entry for the same
// URL keeps its playback time; a new one starts at the video's
// LastPlayedTime.
func (m *Manager) AddOrUpdate(ctx context.Context, v video.FoundVideo) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	urlString := v.URLString()
	playback := v.LastPlayedTime
	if i := m.indexOf(urlString); i >= 0 {
		playback = m.items[i].PlaybackTime
		m.items = append(m.items[:i], m.items[i+1:]...)
	}
	item := Item{
		ID:           uuid.NewString(),
		Title:        video.NormalizeTitle(v.PageTitle),
		URLString:    urlString,
		PlaybackTime: playback,
	}
	m.items = append([]Item{item}, m.items...)
	if len(m.items) > Capacity {
		m.items = m.items[:Capacity]
	}
	return item, m.save(ctx)
}

// UpdatePlaybackTime stores a new position for urlString. It reports false
// when the URL is not in the list.
func (m *Manager) UpdatePlaybackTime(ctx context.Context, urlString string, seconds float64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(urlString)
	if i < 0 {
		return false, nil
	}
	if seconds < 0 {
		seconds = 0
	}
	m.items[i].PlaybackTime = seconds
	return true, m.save(ctx)
}

// Delete removes the item with the given id.
func (m *Manager) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range m.items {
		if it.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return true, m.save(ctx)
		}
	}
	return false, nil
}

// ClearAll empties the list and drops its key from the store.
func (m *Manager) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Delete(ctx, Key); err != nil {
		return fmt.Errorf("clear recents: %w", err)
	}
	m.items = []Item{}
	return nil
}

func (m *Manager) indexOf(urlString string) int {
	for i, it := range m.items {
		if it.URLString == urlString {
			return i
		}
	}
	return -1
}

func (m *Manager) save(ctx context.Context) error {
	data, err := Encode(m.items)
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, Key, data); err != nil {
		return fmt.Errorf("save recents: %w", err)
	}
	return nil
}

// FormatPosition renders a playback position as m:ss or h:mm:ss.
func FormatPosition(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
