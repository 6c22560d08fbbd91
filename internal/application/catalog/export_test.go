package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/narwhalmedia/deadarchive/internal/domain/catalog"
	"github.com/narwhalmedia/deadarchive/internal/domain/rating"
)

func TestRatingsExporter_Build(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.aggregator.Aggregate(ctx, []*catalog.Recording{cornellSBD, buffalo, stPaul, winterland})
	require.NoError(t, err)

	exporter := NewRatingsExporter(h.store, rating.NewAggregator(10), zaptest.NewLogger(t))
	exporter.now = h.clock.Now

	out, err := exporter.Build(ctx, ExportOptions{MinRating: 4.0, TopLimit: 2, TopMinConfidence: 0.4})
	require.NoError(t, err)

	assert.Equal(t, ExportVersion, out.Metadata.Version)
	assert.Equal(t, h.clock.Now(), out.Metadata.GeneratedAt)

	// st paul has no reviews
	assert.Equal(t, 3, out.Metadata.TotalRecordings)
	assert.NotContains(t, out.RecordingRatings, stPaul.ID)
	assert.Equal(t, 3, out.Metadata.WellReviewed)

	cornellID := catalog.GenerateShowID(cornellSBD.Date, cornellSBD.VenueName)
	require.Contains(t, out.ShowRatings, cornellID)
	item := out.ShowRatings[cornellID]
	assert.Equal(t, cornellSBD.ID, item.BestRecording)
	assert.Equal(t, string(rating.SelectionSoundboard), item.Selection)
	assert.InDelta(t, 4.5, item.Rating, 0.001)
	assert.Equal(t, 1.0, item.Confidence)

	// buffalo averages 4.5 over 4 reviews, winterland 4.8 over 5
	require.Len(t, out.TopShows, 2)
	assert.Equal(t, "1974-10-20", out.TopShows[0].Date)
	assert.Equal(t, "1977-05-08", out.TopShows[1].Date)
	assert.Equal(t, 3, out.Metadata.TotalShows)
}

func TestRatingsExporter_MinRatingFilters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.aggregator.Aggregate(ctx, []*catalog.Recording{cornellSBD, winterland})
	require.NoError(t, err)

	exporter := NewRatingsExporter(h.store, rating.NewAggregator(10), zaptest.NewLogger(t))
	out, err := exporter.Build(ctx, ExportOptions{MinRating: 4.7})
	require.NoError(t, err)

	assert.Len(t, out.ShowRatings, 1)
	assert.Len(t, out.RecordingRatings, 2)
	require.Len(t, out.TopShows, 1)
	assert.Equal(t, "1974-10-20", out.TopShows[0].Date)
}
