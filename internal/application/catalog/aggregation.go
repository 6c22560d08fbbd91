// Package catalog orchestrates the local show cache and the remote archive:
// aggregation of recordings into shows, the stale-while-revalidate read
// path, favorites, cleanup and track resolution.
package catalog

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/narwhalmedia/deadarchive/internal/domain/catalog"
	"github.com/narwhalmedia/deadarchive/internal/domain/events"
	"github.com/narwhalmedia/deadarchive/internal/domain/rating"
	apperrors "github.com/narwhalmedia/deadarchive/pkg/errors"
	"github.com/narwhalmedia/deadarchive/pkg/keylock"
)

// AggregationService groups recordings into shows, rates them and
// persists each show with its recordings atomically.
type AggregationService struct {
	store     catalog.Store
	ratings   *rating.Aggregator
	locks     *keylock.KeyLock
	publisher events.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewAggregationService creates a new aggregation service. Writes to one
// show are serialized through locks, which must be shared with every other
// writer of the same store.
func NewAggregationService(
	store catalog.Store,
	ratings *rating.Aggregator,
	locks *keylock.KeyLock,
	publisher events.EventPublisher,
	logger *zap.Logger,
) *AggregationService {
	return &AggregationService{
		store:     store,
		ratings:   ratings,
		locks:     locks,
		publisher: publisher,
		logger:    logger.Named("aggregation"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Aggregate merges recordings into their shows. Recordings whose date
// cannot be normalized are skipped. Each show is persisted in its own
// transaction, together with any show a recording moved out of. A failed
// show does not stop the others, and its error is returned joined with any
// other failures alongside the shows that were saved.
func (s *AggregationService) Aggregate(ctx context.Context, recordings []*catalog.Recording) ([]*catalog.Show, error) {
	groups := make(map[string][]*catalog.Recording)
	for _, rec := range recordings {
		if rec == nil || rec.ID == "" {
			continue
		}
		key, err := rec.ShowKey()
		if err != nil {
			s.logger.Debug("skipping recording without usable date",
				zap.String("recording_id", rec.ID),
				zap.String("date", rec.Date),
			)
			continue
		}
		groups[key] = append(groups[key], rec)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	shows := make([]*catalog.Show, 0, len(keys))
	var errs []error
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		show, err := s.mergeGroup(ctx, key, groups[key])
		if err != nil {
			s.logger.Error("failed to aggregate show", zap.String("show_id", key), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		shows = append(shows, show)
	}

	return shows, errors.Join(errs...)
}

// UpsertRecording merges a single recording into its show
func (s *AggregationService) UpsertRecording(ctx context.Context, rec *catalog.Recording) (*catalog.Show, error) {
	if rec == nil || rec.ID == "" {
		return nil, apperrors.BadRequest("recording id is required")
	}
	key, err := rec.ShowKey()
	if err != nil {
		return nil, apperrors.BadRequest(err.Error())
	}
	return s.mergeGroup(ctx, key, []*catalog.Recording{rec})
}

// RemoveRecording soft-deletes a recording and re-rates its show without it
func (s *AggregationService) RemoveRecording(ctx context.Context, showID, recordingID string) (*catalog.Show, error) {
	unlock := s.locks.Lock(showID)
	defer unlock()

	show, err := s.store.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}
	rec := show.Recording(recordingID)
	if rec == nil {
		return nil, apperrors.NotFound("recording " + recordingID + " not found in show " + showID)
	}
	if !rec.Deleted {
		now := s.now()
		rec.Deleted = true
		rec.DeletedAt = &now
	}

	s.Recompute(show)
	show.UpdatedAt = s.now()
	if err := s.store.SaveShowAggregate(ctx, show); err != nil {
		return nil, err
	}
	return show, nil
}

func (s *AggregationService) mergeGroup(ctx context.Context, showID string, recordings []*catalog.Recording) (*catalog.Show, error) {
	previous, err := s.previousShows(ctx, showID, recordings)
	if err != nil {
		return nil, err
	}

	// lock in ID order so two recordings swapping shows cannot deadlock
	ids := append([]string{showID}, previous...)
	sort.Strings(ids)
	for _, id := range ids {
		unlock := s.locks.Lock(id)
		defer unlock()
	}

	now := s.now()
	show, err := s.store.GetShow(ctx, showID)
	switch {
	case err == nil:
	case apperrors.IsNotFound(err):
		if show, err = catalog.NewShow(recordings[0]); err != nil {
			return nil, apperrors.BadRequest(err.Error())
		}
		show.CreatedAt = now
	default:
		return nil, err
	}

	left, moved, err := s.detach(ctx, previous, recordings, now)
	if err != nil {
		return nil, err
	}

	// moved copies keep their tracks and local flags through the merge
	show.Recordings = append(show.Recordings, moved...)
	for _, rec := range recordings {
		MergeRecording(show, rec, now)
	}
	s.Recompute(show)
	show.CachedAt = now
	show.UpdatedAt = now

	// shows that lost a recording are written first so the move lands last
	changed := append(left, show)
	if err := s.store.SaveShowAggregates(ctx, changed...); err != nil {
		return nil, err
	}

	for _, saved := range changed {
		if err := s.publisher.PublishEvent(ctx, catalog.NewShowAggregated(saved)); err != nil {
			s.logger.Warn("failed to publish show event", zap.String("show_id", saved.ID), zap.Error(err))
		}
	}
	return show, nil
}

// previousShows returns the IDs of other shows that already hold one of
// the recordings, which happens when a corrected date or venue regroups it.
func (s *AggregationService) previousShows(ctx context.Context, showID string, recordings []*catalog.Recording) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, rec := range recordings {
		existing, err := s.store.GetRecording(ctx, rec.ID)
		if apperrors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if existing.ShowID == "" || existing.ShowID == showID || seen[existing.ShowID] {
			continue
		}
		seen[existing.ShowID] = true
		ids = append(ids, existing.ShowID)
	}
	return ids, nil
}

// detach drops the moving recordings from the shows they used to belong to
// and re-rates those shows. It returns the shows that changed and the
// stored copies of the recordings it dropped.
func (s *AggregationService) detach(ctx context.Context, previous []string, recordings []*catalog.Recording, now time.Time) ([]*catalog.Show, []*catalog.Recording, error) {
	moving := make(map[string]bool, len(recordings))
	for _, rec := range recordings {
		moving[rec.ID] = true
	}

	var (
		left    []*catalog.Show
		dropped []*catalog.Recording
	)
	for _, id := range previous {
		old, err := s.store.GetShow(ctx, id)
		if apperrors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		kept := make([]*catalog.Recording, 0, len(old.Recordings))
		for _, rec := range old.Recordings {
			if moving[rec.ID] {
				dropped = append(dropped, rec)
				continue
			}
			kept = append(kept, rec)
		}
		if len(kept) == len(old.Recordings) {
			continue
		}
		old.Recordings = kept

		s.Recompute(old)
		old.UpdatedAt = now
		s.logger.Info("recording moved to another show",
			zap.String("from_show_id", old.ID),
			zap.Int("remaining", len(kept)),
		)
		left = append(left, old)
	}
	return left, dropped, nil
}

// MergeRecording adds rec to show or replaces the copy with the same ID.
// A hydrated copy keeps its tracks and exact tally when the incoming copy
// is a search summary. Local flags always survive.
func MergeRecording(show *catalog.Show, rec *catalog.Recording, now time.Time) {
	incoming := *rec
	incoming.ShowID = show.ID
	incoming.CachedAt = now

	existing := show.Recording(rec.ID)
	if existing == nil {
		show.Recordings = append(show.Recordings, &incoming)
		return
	}

	if existing.Hydrated && !incoming.Hydrated {
		incoming.Hydrated = true
		incoming.Tally = existing.Tally
		incoming.Tracks = existing.Tracks
		incoming.Taper = firstNonEmpty(incoming.Taper, existing.Taper)
		incoming.Transferer = firstNonEmpty(incoming.Transferer, existing.Transferer)
		incoming.Lineage = firstNonEmpty(incoming.Lineage, existing.Lineage)
	}
	if incoming.SourceType == catalog.SourceUnknown {
		incoming.SourceType = existing.SourceType
	}
	incoming.IsDownloaded = existing.IsDownloaded
	incoming.IsInLibrary = existing.IsInLibrary
	incoming.Deleted = existing.Deleted
	incoming.DeletedAt = existing.DeletedAt

	*existing = incoming
}

// Recompute derives ratings, best recording, count and setlist from the
// show's active recordings.
func (s *AggregationService) Recompute(show *catalog.Show) {
	sort.SliceStable(show.Recordings, func(i, j int) bool {
		return show.Recordings[i].ID < show.Recordings[j].ID
	})

	active := show.ActiveRecordings()
	candidates := make([]rating.Candidate, 0, len(active))
	for _, rec := range show.Recordings {
		rec.Rating = s.ratings.Rate(rec.Tally)
	}
	for _, rec := range active {
		candidates = append(candidates, rating.Candidate{
			ID:         rec.ID,
			Tally:      rec.Tally,
			Soundboard: rec.SourceType == catalog.SourceSoundboard,
			SourceRank: rec.SourceType.Rank(),
		})
	}

	result := s.ratings.RateShow(candidates)
	show.Rating = result.Rating
	show.BestRecordingID = result.BestRecordingID
	show.RecordingCount = len(active)

	if show.Location == "" {
		for _, rec := range active {
			if rec.Location != "" {
				show.Location = rec.Location
				show.Venue.City, show.Venue.Region, show.Venue.Country = catalog.ParseLocation(rec.Location)
				break
			}
		}
	}

	if sets := setlistSource(show, active); len(sets) > 0 {
		show.Setlist = sets
		show.SetlistRaw = catalog.FormatSetlist(sets)
	}
}

// setlistSource prefers the best recording's tracks, then any recording
// with titled tracks.
func setlistSource(show *catalog.Show, active []*catalog.Recording) []catalog.Set {
	if best := show.BestRecording(); best != nil && !best.Deleted {
		if sets := catalog.SetlistFromTracks(best.Tracks); len(sets) > 0 {
			return sets
		}
	}
	for _, rec := range active {
		if sets := catalog.SetlistFromTracks(rec.Tracks); len(sets) > 0 {
			return sets
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
