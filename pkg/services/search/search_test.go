package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pai-dev/pai-go/pkg/index"
)

func newTestService(t *testing.T) *Service {
	x := index.New()
	x.Add("muse starlight", "/music/starlight.mp3")
	x.Add("muse uprising", "/music/uprising.mp3")
	x.Add("starlight remix", "/music/remix.mp3")
	s, err := New(x, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func TestSearchIntersectsWords(t *testing.T) {
	s := newTestService(t)

	results, err := s.Search(context.Background(), "muse")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/music/starlight.mp3", "/music/uprising.mp3"}, results)

	results, err = s.Search(context.Background(), "muse starlight")
	require.NoError(t, err)
	assert.Equal(t, []string{"/music/starlight.mp3"}, results)

	results, err = s.Search(context.Background(), "nothing here")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchCachesResults(t *testing.T) {
	s := newTestService(t)
	first, err := s.Search(context.Background(), "muse")
	require.NoError(t, err)
	again, err := s.Search(context.Background(), "muse")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	s.Invalidate()
	after, err := s.Search(context.Background(), "muse")
	require.NoError(t, err)
	assert.ElementsMatch(t, first, after)
}

func TestSearchHonoursContext(t *testing.T) {
	s := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Search(ctx, "muse")
	require.ErrorIs(t, err, context.Canceled)
}
