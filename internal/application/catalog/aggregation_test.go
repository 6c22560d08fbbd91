package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narwhalmedia/deadarchive/internal/domain/catalog"
	"github.com/narwhalmedia/deadarchive/internal/domain/rating"
	apperrors "github.com/narwhalmedia/deadarchive/pkg/errors"
)

func TestAggregate_GroupsByDateAndVenue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	aud := recording("gd77-05-08.aud.bertha", "1977-05-08", "Barton Hall (Cornell University)", catalog.SourceAudience, rating.Tally{0, 0, 0, 1, 1})
	undated := recording("gd-unknown", "sometime in may", "Barton Hall", catalog.SourceUnknown, rating.Tally{})

	shows, err := h.aggregator.Aggregate(ctx, []*catalog.Recording{cornellSBD, aud, buffalo, undated, nil})
	require.NoError(t, err)
	require.Len(t, shows, 2)

	byDate := map[string]*catalog.Show{}
	for _, s := range shows {
		byDate[s.Date] = s
	}
	cornell := byDate["1977-05-08"]
	require.NotNil(t, cornell)
	assert.Equal(t, 2, cornell.RecordingCount)
	assert.Equal(t, cornellSBD.ID, cornell.BestRecordingID)
	assert.Equal(t, "Ithaca", cornell.Venue.City)
	assert.Equal(t, []string{"New Minglewood Blues", "Loser"}, cornell.Songs())
	assert.Equal(t, 1977, cornell.Year)

	saved, err := h.store.GetShow(ctx, cornell.ID)
	require.NoError(t, err)
	assert.Len(t, saved.Recordings, 2)
	assert.Equal(t, []string{"ShowAggregated", "ShowAggregated"}, h.publisher.types())
}

func TestAggregate_SoundboardNeedsThreeReviews(t *testing.T) {
	tests := []struct {
		name     string
		sbd      rating.Tally
		aud      rating.Tally
		wantBest string
	}{
		{
			name:     "thin soundboard loses to well reviewed audience",
			sbd:      rating.Tally{0, 0, 0, 0, 2},
			aud:      rating.Tally{0, 0, 0, 10, 10},
			wantBest: "gd77-05-08.aud",
		},
		{
			name:     "soundboard with three reviews wins",
			sbd:      rating.Tally{0, 0, 1, 1, 1},
			aud:      rating.Tally{0, 0, 0, 0, 20},
			wantBest: "gd77-05-08.sbd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			sbd := recording("gd77-05-08.sbd", "1977-05-08", "Barton Hall", catalog.SourceSoundboard, tt.sbd)
			aud := recording("gd77-05-08.aud", "1977-05-08", "Barton Hall", catalog.SourceAudience, tt.aud)

			shows, err := h.aggregator.Aggregate(context.Background(), []*catalog.Recording{sbd, aud})
			require.NoError(t, err)
			require.Len(t, shows, 1)
			assert.Equal(t, tt.wantBest, shows[0].BestRecordingID)
			require.NotNil(t, shows[0].Rating)
			assert.Equal(t, tt.sbd.Count()+tt.aud.Count(), shows[0].Rating.ReviewCount)
		})
	}
}

func TestMergeRecording_SummaryKeepsHydratedData(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	show, err := catalog.NewShow(cornellSBD)
	require.NoError(t, err)

	full := *cornellSBD
	full.Hydrated = true
	full.Taper = "Betty Cantor-Jackson"
	full.IsDownloaded = true
	MergeRecording(show, &full, now)

	summary := *cornellSBD
	summary.Hydrated = false
	summary.Tracks = nil
	summary.Tally = rating.TallyFromAverage(4.5, 10)
	summary.SourceType = catalog.SourceUnknown
	summary.Title = "Cornell 5/8/77"
	MergeRecording(show, &summary, now.Add(time.Hour))

	require.Len(t, show.Recordings, 1)
	got := show.Recordings[0]
	assert.True(t, got.Hydrated)
	assert.Equal(t, cornellSBD.Tally, got.Tally)
	assert.Len(t, got.Tracks, 3)
	assert.Equal(t, "Betty Cantor-Jackson", got.Taper)
	assert.Equal(t, catalog.SourceSoundboard, got.SourceType)
	assert.True(t, got.IsDownloaded)
	assert.Equal(t, "Cornell 5/8/77", got.Title)
	assert.Equal(t, show.ID, got.ShowID)
}

func TestRemoveRecording(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	aud := recording("gd77-05-08.aud.bertha", "1977-05-08", "Barton Hall, Cornell University", catalog.SourceAudience, rating.Tally{1, 1, 0, 0, 0})
	shows, err := h.aggregator.Aggregate(ctx, []*catalog.Recording{cornellSBD, aud})
	require.NoError(t, err)
	require.Len(t, shows, 1)
	id := shows[0].ID

	show, err := h.aggregator.RemoveRecording(ctx, id, cornellSBD.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, show.RecordingCount)
	assert.Equal(t, aud.ID, show.BestRecordingID)
	require.NotNil(t, show.Rating)
	assert.Equal(t, 2, show.Rating.ReviewCount)

	saved, err := h.store.GetShow(ctx, id)
	require.NoError(t, err)
	removed := saved.Recording(cornellSBD.ID)
	require.NotNil(t, removed)
	assert.True(t, removed.Deleted)

	// a later sync does not resurrect it
	_, err = h.aggregator.UpsertRecording(ctx, cornellSBD)
	require.NoError(t, err)
	saved, err = h.store.GetShow(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.RecordingCount)

	_, err = h.aggregator.RemoveRecording(ctx, id, "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUpsertRecording_MovesRecordingBetweenShows(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	aud := recording("gd77-05-08.aud.bertha", "1977-05-08", "Barton Hall, Cornell University", catalog.SourceAudience, rating.Tally{1, 1, 0, 0, 0})
	shows, err := h.aggregator.Aggregate(ctx, []*catalog.Recording{cornellSBD, aud})
	require.NoError(t, err)
	require.Len(t, shows, 1)
	oldID := shows[0].ID

	stored, err := h.store.GetShow(ctx, oldID)
	require.NoError(t, err)
	stored.Recording(cornellSBD.ID).IsInLibrary = true
	require.NoError(t, h.store.SaveShowAggregate(ctx, stored))

	// the archive corrected the date
	corrected := *cornellSBD
	corrected.Date = "1977-05-09"
	moved, err := h.aggregator.UpsertRecording(ctx, &corrected)
	require.NoError(t, err)
	require.NotEqual(t, oldID, moved.ID)
	assert.Equal(t, 1, moved.RecordingCount)
	assert.Equal(t, cornellSBD.ID, moved.BestRecordingID)
	require.NotNil(t, moved.Recording(cornellSBD.ID))
	assert.True(t, moved.Recording(cornellSBD.ID).IsInLibrary)

	old, err := h.store.GetShow(ctx, oldID)
	require.NoError(t, err)
	assert.Nil(t, old.Recording(cornellSBD.ID))
	assert.Equal(t, 1, old.RecordingCount)
	assert.Equal(t, aud.ID, old.BestRecordingID)
	require.NotNil(t, old.Rating)
	assert.Equal(t, 2, old.Rating.ReviewCount)

	rec, err := h.store.GetRecording(ctx, cornellSBD.ID)
	require.NoError(t, err)
	assert.Equal(t, moved.ID, rec.ShowID)
	assert.Len(t, rec.Tracks, 3)

	assert.Equal(t, []string{"ShowAggregated", "ShowAggregated", "ShowAggregated"}, h.publisher.types())
}

func TestUpsertRecording_MovingLastRecordingEmptiesShow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.aggregator.UpsertRecording(ctx, buffalo)
	require.NoError(t, err)

	corrected := *buffalo
	corrected.VenueName = "Kleinhans Music Hall"
	moved, err := h.aggregator.UpsertRecording(ctx, &corrected)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, moved.ID)

	old, err := h.store.GetShow(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, old.Recordings)
	assert.Equal(t, 0, old.RecordingCount)
	assert.Empty(t, old.BestRecordingID)
	assert.Nil(t, old.Rating)

	saved, err := h.store.GetShow(ctx, moved.ID)
	require.NoError(t, err)
	assert.Len(t, saved.Recordings, 1)
}

func TestUpsertRecording_RejectsBadInput(t *testing.T) {
	h := newHarness(t)

	_, err := h.aggregator.UpsertRecording(context.Background(), &catalog.Recording{})
	assert.True(t, apperrors.IsBadRequest(err))

	_, err = h.aggregator.UpsertRecording(context.Background(), &catalog.Recording{ID: "x", Date: "unknown"})
	assert.True(t, apperrors.IsBadRequest(err))
}
