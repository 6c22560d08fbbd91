package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narwhalmedia/deadarchive/internal/domain/download"
	"github.com/narwhalmedia/deadarchive/internal/domain/rating"
	apperrors "github.com/narwhalmedia/deadarchive/pkg/errors"
)

func TestResolveTrackURI(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	show, err := h.aggregator.UpsertRecording(ctx, cornellSBD)
	require.NoError(t, err)

	uri, err := h.sync.ResolveTrackURI(ctx, show.ID, "d1t01.mp3")
	require.NoError(t, err)
	assert.Equal(t, "https://archive.org/download/gd77-05-08.sbd.hicks/d1t01.mp3", uri)

	entry, err := download.NewEntry(show.ID, cornellSBD.ID, "d1t01.mp3", uri, h.clock.Now())
	require.NoError(t, err)
	require.NoError(t, entry.Begin(h.clock.Now()))
	require.NoError(t, h.downloads.Save(ctx, entry))

	// still streaming while the download runs
	uri, err = h.sync.ResolveTrackURI(ctx, show.ID, "d1t01.mp3")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "https://"))

	require.NoError(t, entry.Complete("/music/cornell/d1t01.mp3", h.clock.Now()))
	require.NoError(t, h.downloads.Save(ctx, entry))

	uri, err = h.sync.ResolveTrackURI(ctx, show.ID, "d1t01.mp3")
	require.NoError(t, err)
	assert.Equal(t, "/music/cornell/d1t01.mp3", uri)

	_, err = h.sync.ResolveDownloadURL(ctx, show.ID, "d9t99.mp3")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestPlaylistForShow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	show, err := h.aggregator.UpsertRecording(ctx, cornellSBD)
	require.NoError(t, err)

	playlist, err := h.sync.PlaylistForShow(ctx, show.ID)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(playlist, "#EXTM3U"))
	assert.Contains(t, playlist, "#EXT-X-PLAYLIST-TYPE:VOD")
	assert.Contains(t, playlist, "#EXT-X-ENDLIST")
	assert.NotContains(t, playlist, ".flac")

	first := strings.Index(playlist, "d1t01.mp3")
	second := strings.Index(playlist, "d1t02.mp3")
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, second)
	assert.Less(t, first, second)
	assert.Contains(t, playlist, "Loser")
}

func TestPlaylistForShow_NoTracks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	bare := recording("gd77-05-08.sbd.bare", "1977-05-08", "Barton Hall", "", rating.Tally{})
	bare.Tracks = nil
	show, err := h.aggregator.UpsertRecording(ctx, bare)
	require.NoError(t, err)

	_, err = h.sync.PlaylistForShow(ctx, show.ID)
	assert.True(t, apperrors.IsNotFound(err))
}
