// Package handoff connects detection output to playback: it records the
// video in recents, starts it at the remembered position and stores the
// position again when the player closes.
package handoff

import (
	"context"

	"github.com/scrimm/scrimm/internal/player"
	"github.com/scrimm/scrimm/internal/utils"
	"github.com/scrimm/scrimm/pkg/recents"
	"github.com/scrimm/scrimm/pkg/video"
)

type Recents interface {
	AddOrUpdate(ctx context.Context, v video.FoundVideo) (recents.Item, error)
	UpdatePlaybackTime(ctx context.Context, urlString string, seconds float64) (bool, error)
}

type Player interface {
	ShowOrFocus(ctx context.Context, v video.FoundVideo) error
	OnClosed(fn player.ClosedHandler)
}

type HandOff struct {
	recents Recents
	player  Player
}

func New(r Recents, p Player) *HandOff {
	h := &HandOff{recents: r, player: p}
	p.OnClosed(h.closed)
	return h
}

// Play records v and shows it, resuming where it was last left.
func (h *HandOff) Play(ctx context.Context, v video.FoundVideo) error {
	item, err := h.recents.AddOrUpdate(ctx, v)
	if err != nil {
		utils.Log.Warnf("Could not record %s in recents: %v", v.URLString(), err)
	} else {
		v.LastPlayedTime = item.PlaybackTime
	}
	utils.Log.Infof("Playing %q from %.0fs", v.PageTitle, v.LastPlayedTime)
	return h.player.ShowOrFocus(ctx, v)
}

func (h *HandOff) closed(v video.FoundVideo, position float64) {
	if _, err := h.recents.UpdatePlaybackTime(context.Background(), v.URLString(), position); err != nil {
		utils.Log.Warnf("Could not save position of %s: %v", v.URLString(), err)
		return
	}
	utils.Log.Debugf("Saved position %.1fs for %s", position, v.URLString())
}
