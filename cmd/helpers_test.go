package cmd

import (
	"bytes"
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/scrimm/scrimm/pkg/recents"
	"github.com/scrimm/scrimm/pkg/video"
)

func openTestRecents(t *testing.T, path string) *sharedRecents {
	t.Helper()
	viper.Set("db.path", path)
	t.Cleanup(func() { viper.Set("db.path", "") })
	rec, err := openRecents()
	if err != nil {
		t.Fatalf("open recents: %v", err)
	}
	t.Cleanup(func() { rec.Close() })
	return rec
}

func TestSharedRecents_SeesOtherWriters(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "scrimm.sqlite")
	a := openTestRecents(t, path)
	b := openTestRecents(t, path)

	u1, _ := url.Parse("https://cdn.example/one.mp4")
	u2, _ := url.Parse("https://cdn.example/two.mp4")
	v1, _ := video.NewFoundVideo("One", u1, 0)
	v2, _ := video.NewFoundVideo("Two", u2, 0)

	if _, err := a.AddOrUpdate(ctx, v1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := b.AddOrUpdate(ctx, v2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if ok, err := a.UpdatePlaybackTime(ctx, u1.String(), 42); err != nil || !ok {
		t.Fatalf("update: %v %v", ok, err)
	}

	items := b.Items()
	if len(items) != 2 {
		t.Fatalf("expected both writes to survive, got %d items", len(items))
	}
	if items[0].Title != "Two" || items[1].PlaybackTime != 42 {
		t.Fatalf("unexpected list %+v", items)
	}

	if ok, err := b.Delete(ctx, items[0].ID); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if got := a.Items(); len(got) != 1 || got[0].Title != "One" {
		t.Fatalf("unexpected list after delete %+v", got)
	}
	if err := a.ClearAll(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := b.Items(); len(got) != 0 {
		t.Fatalf("expected empty list, got %+v", got)
	}
}

func TestPick(t *testing.T) {
	items := []recents.Item{{ID: "a"}, {ID: "b"}}
	if it, err := pick(items, 2); err != nil || it.ID != "b" {
		t.Fatalf("pick 2: %+v %v", it, err)
	}
	for _, n := range []int{0, 3, -1} {
		if _, err := pick(items, n); err == nil {
			t.Fatalf("expected error for %d", n)
		}
	}
}

func TestPrintEntries_ListsRecentsKey(t *testing.T) {
	ctx := context.Background()
	rec := openTestRecents(t, filepath.Join(t.TempDir(), "scrimm.sqlite"))

	u, _ := url.Parse("https://cdn.example/one.mp4")
	v, _ := video.NewFoundVideo("One", u, 0)
	if _, err := rec.AddOrUpdate(ctx, v); err != nil {
		t.Fatalf("add: %v", err)
	}
	entries, err := rec.db.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].Key != recents.Key || entries[0].Size == 0 {
		t.Fatalf("unexpected entries %+v", entries)
	}

	var buf bytes.Buffer
	printEntries(&buf, entries)
	if out := buf.String(); !strings.Contains(out, "KEY") || !strings.Contains(out, recents.Key) {
		t.Fatalf("unexpected listing:\n%s", out)
	}

	if err := rec.ClearAll(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if entries, _ := rec.db.List(ctx); len(entries) != 0 {
		t.Fatalf("expected clear to drop the key, got %+v", entries)
	}
}
