package gorm_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/narwhalmedia/deadarchive/internal/domain/catalog"
	"github.com/narwhalmedia/deadarchive/internal/domain/download"
	"github.com/narwhalmedia/deadarchive/internal/domain/rating"
	gormrepo "github.com/narwhalmedia/deadarchive/internal/infrastructure/persistence/gorm"
	apperrors "github.com/narwhalmedia/deadarchive/pkg/errors"
)

type ShowRepositoryTestSuite struct {
	suite.Suite
	repo      *gormrepo.ShowRepository
	downloads *gormrepo.DownloadRepository
	ctx       context.Context
	now       time.Time
}

func (suite *ShowRepositoryTestSuite) SetupTest() {
	db := gormrepo.NewTestDB(suite.T())
	suite.repo = gormrepo.NewShowRepository(db)
	suite.downloads = gormrepo.NewDownloadRepository(db)
	suite.ctx = context.Background()
	suite.now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (suite *ShowRepositoryTestSuite) newShow(date, venue string, cachedAt time.Time) *catalog.Show {
	id := catalog.GenerateShowID(date, venue)
	rec := &catalog.Recording{
		ID:         "gd" + date + "." + catalog.NormalizeVenue(venue) + ".sbd",
		ShowID:     id,
		Date:       date,
		VenueName:  venue,
		SourceType: catalog.SourceSoundboard,
		Tally:      rating.Tally{0, 0, 1, 2, 3},
		Hydrated:   true,
		Tracks: []catalog.Track{
			{Filename: "t02.mp3", Title: "Loser", SetNumber: 1, TrackNumber: 2, Duration: 7 * time.Minute},
			{Filename: "t01.mp3", Title: "Bertha", SetNumber: 1, TrackNumber: 1, Duration: 6 * time.Minute},
		},
		CachedAt: cachedAt,
	}
	return &catalog.Show{
		ID:              id,
		Date:            date,
		Year:            catalog.YearOf(date),
		Venue:           catalog.Venue{Name: venue, City: "Ithaca", Region: "NY"},
		Location:        "Ithaca, NY",
		SetlistRaw:      "Set 1: Bertha, Loser",
		Setlist:         []catalog.Set{{Name: "Set 1", Songs: []string{"Bertha", "Loser"}}},
		Rating:          &rating.Rating{Weighted: 4.33, Raw: 4.33, ReviewCount: 6, Confidence: 0.6, HighCount: 5, Distribution: rec.Tally},
		BestRecordingID: rec.ID,
		RecordingCount:  1,
		Recordings:      []*catalog.Recording{rec},
		CachedAt:        cachedAt,
		CreatedAt:       cachedAt,
		UpdatedAt:       cachedAt,
	}
}

func (suite *ShowRepositoryTestSuite) TestSaveAndGetShow() {
	show := suite.newShow("1977-05-08", "Barton Hall", suite.now)
	require.NoError(suite.T(), suite.repo.SaveShowAggregate(suite.ctx, show))

	got, err := suite.repo.GetShow(suite.ctx, show.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), show.Date, got.Date)
	assert.Equal(suite.T(), 1977, got.Year)
	assert.Equal(suite.T(), "Barton Hall", got.Venue.Name)
	assert.Equal(suite.T(), show.Setlist, got.Setlist)
	require.NotNil(suite.T(), got.Rating)
	assert.InDelta(suite.T(), 4.33, got.Rating.Weighted, 1e-9)
	assert.Equal(suite.T(), rating.Tally{0, 0, 1, 2, 3}, got.Rating.Distribution)

	require.Len(suite.T(), got.Recordings, 1)
	rec := got.Recordings[0]
	assert.Equal(suite.T(), catalog.SourceSoundboard, rec.SourceType)
	assert.True(suite.T(), rec.Hydrated)
	require.Len(suite.T(), rec.Tracks, 2)
	assert.Equal(suite.T(), "t02.mp3", rec.Tracks[0].Filename, "track order is preserved")
	assert.Equal(suite.T(), 7*time.Minute, rec.Tracks[0].Duration)
}

func (suite *ShowRepositoryTestSuite) TestSaveShowAggregate_ReplacesTracks() {
	show := suite.newShow("1977-05-08", "Barton Hall", suite.now)
	require.NoError(suite.T(), suite.repo.SaveShowAggregate(suite.ctx, show))

	show.Recordings[0].Tracks = show.Recordings[0].Tracks[:1]
	show.Rating = nil
	require.NoError(suite.T(), suite.repo.SaveShowAggregate(suite.ctx, show))

	got, err := suite.repo.GetRecording(suite.ctx, show.Recordings[0].ID)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), got.Tracks, 1)

	saved, err := suite.repo.GetShow(suite.ctx, show.ID)
	require.NoError(suite.T(), err)
	assert.Nil(suite.T(), saved.Rating)
}

func (suite *ShowRepositoryTestSuite) TestSaveShowAggregate_KeepsLibraryFlag() {
	show := suite.newShow("1977-05-08", "Barton Hall", suite.now)
	require.NoError(suite.T(), suite.repo.SaveShowAggregate(suite.ctx, show))

	added, err := suite.repo.ToggleFavorite(suite.ctx, catalog.NewShowFavorite(show.ID, suite.now))
	require.NoError(suite.T(), err)
	assert.True(suite.T(), added)

	// a re-aggregated show never carries the library flag itself
	show.IsInLibrary = false
	require.NoError(suite.T(), suite.repo.SaveShowAggregate(suite.ctx, show))

	got, err := suite.repo.GetShow(suite.ctx, show.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), got.IsInLibrary)
	require.NotNil(suite.T(), got.LibraryAddedAt)
}

func (suite *ShowRepositoryTestSuite) TestSaveShowAggregates_MovesRecording() {
	from := suite.newShow("1977-05-08", "Barton Hall", suite.now)
	to := suite.newShow("1977-05-09", "Buffalo Memorial Auditorium", suite.now)
	require.NoError(suite.T(), suite.repo.SaveShowAggregates(suite.ctx, from, to))

	rec := from.Recordings[0]
	from.Recordings = nil
	from.RecordingCount = 0
	from.BestRecordingID = ""
	from.Rating = nil
	to.Recordings = append(to.Recordings, rec)
	to.RecordingCount = 2
	require.NoError(suite.T(), suite.repo.SaveShowAggregates(suite.ctx, from, to))

	got, err := suite.repo.GetShow(suite.ctx, from.ID)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), got.Recordings)
	assert.Nil(suite.T(), got.Rating)
	assert.Empty(suite.T(), got.BestRecordingID)

	got, err = suite.repo.GetShow(suite.ctx, to.ID)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), got.Recordings, 2)

	moved, err := suite.repo.GetRecording(suite.ctx, rec.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), to.ID, moved.ShowID)
	assert.Len(suite.T(), moved.Tracks, 2)
}

func (suite *ShowRepositoryTestSuite) TestGetShow_NotFound() {
	_, err := suite.repo.GetShow(suite.ctx, "1900-01-01_nowhere")
	assert.True(suite.T(), apperrors.IsNotFound(err))

	_, err = suite.repo.GetRecording(suite.ctx, "missing")
	assert.True(suite.T(), apperrors.IsNotFound(err))
}

func (suite *ShowRepositoryTestSuite) TestFindShows_ExactDateMatchesTimestampedRows() {
	for i := 0; i < 10; i++ {
		show := suite.newShow("1977-05-08", fmt.Sprintf("Venue %d", i), suite.now)
		show.Date = "1977-05-08T00:00:00Z"
		require.NoError(suite.T(), suite.repo.SaveShowAggregate(suite.ctx, show))
	}
	require.NoError(suite.T(), suite.repo.SaveShowAggregate(suite.ctx, suite.newShow("1977-05-09", "Buffalo Memorial Auditorium", suite.now)))

	q := catalog.ParseQuery("1977-05-08")
	shows, err := suite.repo.FindShows(suite.ctx, q.Specification(), q.Limit(), q.NewestFirst())
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), shows, 10)
	for _, s := range shows {
		assert.Empty(suite.T(), s.Recordings)
	}
}

func (suite *ShowRepositoryTestSuite) TestFindShows_Queries() {
	require.NoError(suite.T(), suite.repo.SaveShowAggregate(suite.ctx, suite.newShow("1972-08-27", "Old Renaissance Faire Grounds", suite.now)))
	require.NoError(suite.T(), suite.repo.SaveShowAggregate(suite.ctx, suite.newShow("1977-05-08", "Barton Hall", suite.now)))
	require.NoError(suite.T(), suite.repo.SaveShowAggregate(suite.ctx, suite.newShow("1989-07-07", "JFK Stadium", suite.now)))

	find := func(raw string) []*catalog.Show {
		q := catalog.ParseQuery(raw)
		shows, err := suite.repo.FindShows(suite.ctx, q.Specification(), q.Limit(), q.NewestFirst())
		require.NoError(suite.T(), err)
		return shows
	}

	assert.Len(suite.T(), find("1970s"), 2)
	assert.Len(suite.T(), find("1977"), 1)
	assert.Len(suite.T(), find("venue:barton"), 1)
	assert.Len(suite.T(), find("bertha"), 3)
	assert.Empty(suite.T(), find("100%"))

	recent := find("")
	require.Len(suite.T(), recent, 3)
	assert.Equal(suite.T(), "1989-07-07", recent[0].Date)
}

func (suite *ShowRepositoryTestSuite) TestAllShows() {
	require.NoError(suite.T(), suite.repo.SaveShowAggregate(suite.ctx, suite.newShow("1977-05-08", "Barton Hall", suite.now)))
	require.NoError(suite.T(), suite.repo.SaveShowAggregate(suite.ctx, suite.newShow("1972-08-27", "Veneta", suite.now)))

	shows, err := suite.repo.AllShows(suite.ctx)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), shows, 2)
	assert.Equal(suite.T(), "1972-08-27", shows[0].Date)
	require.Len(suite.T(), shows[0].Recordings, 1)
	assert.Empty(suite.T(), shows[0].Recordings[0].Tracks)
}

func (suite *ShowRepositoryTestSuite) TestDeleteStale() {
	old := suite.now.Add(-48 * time.Hour)
	stale := suite.newShow("1970-01-01", "Stale", old)
	favorite := suite.newShow("1971-01-01", "Favorite", old)
	downloading := suite.newShow("1972-01-01", "Downloading", old)
	failed := suite.newShow("1973-01-01", "Failed", old)
	fresh := suite.newShow("1974-01-01", "Fresh", suite.now)
	protected := suite.newShow("1975-01-01", "Protected", old)

	for _, s := range []*catalog.Show{stale, favorite, downloading, failed, fresh, protected} {
		require.NoError(suite.T(), suite.repo.SaveShowAggregate(suite.ctx, s))
	}

	_, err := suite.repo.ToggleFavorite(suite.ctx, catalog.NewTrackFavorite(favorite.ID, "t01.mp3", suite.now))
	require.NoError(suite.T(), err)

	active, err := download.NewEntry(downloading.ID, "", "t01.mp3", "http://x/t01.mp3", suite.now)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), suite.downloads.Save(suite.ctx, active))

	dead, err := download.NewEntry(failed.ID, "", "t01.mp3", "http://x/t01.mp3", suite.now)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), dead.Fail("boom", suite.now))
	require.NoError(suite.T(), suite.downloads.Save(suite.ctx, dead))

	cutoff := suite.now.Add(-24 * time.Hour)
	deleted, err := suite.repo.DeleteStale(suite.ctx, cutoff, []string{protected.ID})
	require.NoError(suite.T(), err)
	assert.ElementsMatch(suite.T(), []string{stale.ID, failed.ID}, deleted)

	for _, id := range []string{favorite.ID, downloading.ID, fresh.ID, protected.ID} {
		_, err := suite.repo.GetShow(suite.ctx, id)
		assert.NoError(suite.T(), err, id)
	}
	_, err = suite.repo.GetRecording(suite.ctx, stale.Recordings[0].ID)
	assert.True(suite.T(), apperrors.IsNotFound(err))

	// entries of evicted shows go with them
	_, err = suite.downloads.FindByID(suite.ctx, dead.ID())
	assert.True(suite.T(), apperrors.IsNotFound(err))
}

func (suite *ShowRepositoryTestSuite) TestDeleteStale_ExemptsLibraryShows() {
	old := suite.now.Add(-48 * time.Hour)
	show := suite.newShow("1977-05-08", "Barton Hall", old)
	require.NoError(suite.T(), suite.repo.SaveShowAggregate(suite.ctx, show))

	_, err := suite.repo.ToggleFavorite(suite.ctx, catalog.NewShowFavorite(show.ID, suite.now))
	require.NoError(suite.T(), err)

	deleted, err := suite.repo.DeleteStale(suite.ctx, suite.now, nil)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), deleted)
}

func (suite *ShowRepositoryTestSuite) TestDeleteShow() {
	show := suite.newShow("1977-05-08", "Barton Hall", suite.now)
	require.NoError(suite.T(), suite.repo.SaveShowAggregate(suite.ctx, show))

	entry, err := download.NewEntry(show.ID, "", "t01.mp3", "http://x/t01.mp3", suite.now)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), suite.downloads.Save(suite.ctx, entry))

	require.NoError(suite.T(), suite.repo.DeleteShow(suite.ctx, show.ID))

	_, err = suite.repo.GetShow(suite.ctx, show.ID)
	assert.True(suite.T(), apperrors.IsNotFound(err))
	all, err := suite.downloads.FindAll(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), all)
}

func (suite *ShowRepositoryTestSuite) TestToggleFavorite() {
	show := suite.newShow("1977-05-08", "Barton Hall", suite.now)
	require.NoError(suite.T(), suite.repo.SaveShowAggregate(suite.ctx, show))
	fav := catalog.NewShowFavorite(show.ID, suite.now)

	added, err := suite.repo.ToggleFavorite(suite.ctx, fav)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), added)

	ok, err := suite.repo.IsFavorite(suite.ctx, fav.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), ok)

	list, err := suite.repo.ListFavorites(suite.ctx)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), list, 1)
	assert.Equal(suite.T(), catalog.FavoriteShow, list[0].Type)

	added, err = suite.repo.ToggleFavorite(suite.ctx, fav)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), added)

	got, err := suite.repo.GetShow(suite.ctx, show.ID)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), got.IsInLibrary)
	assert.Nil(suite.T(), got.LibraryAddedAt)
}

func TestShowRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(ShowRepositoryTestSuite))
}
