package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestIndexAddRetrieve(t *testing.T) {
	x := New()
	x.Add("Starlight", "/music/muse/starlight.mp3").
		Add("Muse Starlight", "/music/muse/starlight.mp3").
		Add("Muse Uprising", "/music/muse/uprising.mp3")

	assert.Equal(t, 3, x.Len())

	lists := x.Retrieve("muse")
	require.Len(t, lists, 1)
	assert.ElementsMatch(t, []string{"/music/muse/starlight.mp3", "/music/muse/uprising.mp3"}, lists[0])

	lists = x.Retrieve("MUSE starlight")
	require.Len(t, lists, 2)
	assert.Contains(t, lists[1], "/music/muse/starlight.mp3")

	lists = x.Retrieve("unknown")
	require.Len(t, lists, 1)
	assert.Empty(t, lists[0])
}

func TestIndexSnapshotLoad(t *testing.T) {
	x := New()
	x.Add("muse starlight", "/a.mp3")
	snap := x.Snapshot()

	y := New()
	y.Load(snap)
	assert.Equal(t, snap, y.Snapshot())
}

func TestCacheRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	cache, err := OpenCache(path)
	require.NoError(t, err)

	x := New()
	x.Add("muse starlight", "/a.mp3")
	x.Add("aria", "/b.mp3")
	require.NoError(t, cache.Persist(x))
	require.NoError(t, cache.Close())

	cache, err = OpenCache(path)
	require.NoError(t, err)
	defer cache.Close()

	y := New()
	require.NoError(t, cache.Restore(y))
	assert.Equal(t, x.Snapshot(), y.Snapshot())
}

func TestCrawl(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "music"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "music", "muse-starlight.mp3"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes_today.txt"), []byte("x"), 0o644))

	x := New()
	c := NewCrawler(zaptest.NewLogger(t))
	require.NoError(t, c.Crawl(context.Background(), dir, x))

	lists := x.Retrieve("starlight")
	require.Len(t, lists, 1)
	require.Len(t, lists[0], 1)
	assert.Contains(t, lists[0][0], "muse-starlight.mp3")

	lists = x.Retrieve("notes")
	require.Len(t, lists, 1)
	assert.Len(t, lists[0], 1)
}

func TestCrawlCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	x := New()
	c := NewCrawler(zaptest.NewLogger(t))
	err := c.Crawl(ctx, t.TempDir(), x)
	require.ErrorIs(t, err, context.Canceled)
}
