package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/scrimm/scrimm/internal/player"
	"github.com/scrimm/scrimm/internal/utils"
	"github.com/scrimm/scrimm/pkg/detect"
	"github.com/scrimm/scrimm/pkg/providers"
	"github.com/scrimm/scrimm/pkg/recents"
	"github.com/scrimm/scrimm/pkg/storage"
	"github.com/scrimm/scrimm/pkg/video"
	"github.com/scrimm/scrimm/pkg/whttp"
)

func newHTTPClient() (*whttp.Client, error) {
	return whttp.NewClient(whttp.Config{
		Proxy:         viper.GetString("http.proxy"),
		RetryMax:      viper.GetInt("http.retries"),
		UserAgent:     viper.GetString("http.user_agent"),
		RatePerSecond: viper.GetFloat64("http.rate"),
	})
}

func newPlayer() *player.Handle {
	return player.NewHandle(&player.MPV{
		Command: viper.GetString("player.command"),
		Args:    viper.GetStringSlice("player.args"),
	})
}

func loadProviders() []providers.Provider {
	list, err := providers.Load(viper.GetString("providers.file"))
	if err != nil {
		utils.Log.Warnf("Could not load search providers: %v", err)
	}
	return list
}

func scriptOptions() detect.ScriptOptions {
	return detect.ScriptOptions{
		ScanInterval: viper.GetDuration("detector.scan_interval"),
		Keywords:     viper.GetStringSlice("detector.keywords"),
	}
}

// sharedRecents is the recents list as several scrimm processes see it.
// Every change re-reads the stored list while holding the database lock.
type sharedRecents struct {
	db   *storage.DB
	lock *utils.DBLock
}

func openRecents() (*sharedRecents, error) {
	path, err := utils.GetAbsDBPath(viper.GetString("db.path"))
	if err != nil {
		return nil, err
	}
	lock, err := utils.NewDBLock(path)
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recents database: %w", err)
	}
	return &sharedRecents{db: db, lock: lock}, nil
}

func (r *sharedRecents) Close() error {
	return r.db.Close()
}

func (r *sharedRecents) load(ctx context.Context) *recents.Manager {
	return recents.Load(ctx, r.db, utils.Log)
}

func (r *sharedRecents) update(ctx context.Context, fn func(m *recents.Manager) error) error {
	if err := r.lock.Lock(); err != nil {
		return err
	}
	defer r.lock.Unlock()
	return fn(r.load(ctx))
}

func (r *sharedRecents) Items() []recents.Item {
	return r.load(context.Background()).Items()
}

func (r *sharedRecents) AddOrUpdate(ctx context.Context, v video.FoundVideo) (recents.Item, error) {
	var item recents.Item
	err := r.update(ctx, func(m *recents.Manager) error {
		var err error
		item, err = m.AddOrUpdate(ctx, v)
		return err
	})
	return item, err
}

func (r *sharedRecents) UpdatePlaybackTime(ctx context.Context, urlString string, seconds float64) (bool, error) {
	var found bool
	err := r.update(ctx, func(m *recents.Manager) error {
		var err error
		found, err = m.UpdatePlaybackTime(ctx, urlString, seconds)
		return err
	})
	return found, err
}

func (r *sharedRecents) Delete(ctx context.Context, id string) (bool, error) {
	var found bool
	err := r.update(ctx, func(m *recents.Manager) error {
		var err error
		found, err = m.Delete(ctx, id)
		return err
	})
	return found, err
}

func (r *sharedRecents) ClearAll(ctx context.Context) error {
	return r.update(ctx, func(m *recents.Manager) error {
		return m.ClearAll(ctx)
	})
}

// pick resolves a 1-based position in the list, as printed by recents list.
func pick(items []recents.Item, n int) (recents.Item, error) {
	if n < 1 || n > len(items) {
		return recents.Item{}, fmt.Errorf("no recent video #%d (have %d)", n, len(items))
	}
	return items[n-1], nil
}
