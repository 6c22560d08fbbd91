package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/narwhalmedia/deadarchive/internal/domain/catalog"
	"github.com/narwhalmedia/deadarchive/internal/domain/download"
	"github.com/narwhalmedia/deadarchive/internal/domain/specification"
	apperrors "github.com/narwhalmedia/deadarchive/pkg/errors"
)

// deleteBatchSize keeps IN lists below sqlite's bound parameter limit
const deleteBatchSize = 500

// showUpsertColumns are overwritten when a show is saved again. Library
// flags are owned by ToggleFavorite and are only written on insert.
var showUpsertColumns = []string{
	"show_date", "show_year", "venue_name", "venue_key", "city", "region", "country",
	"location", "setlist_raw", "setlist_json", "rating", "raw_rating", "review_count",
	"confidence", "high_ratings", "low_ratings", "tally_stars1", "tally_stars2",
	"tally_stars3", "tally_stars4", "tally_stars5", "best_recording_id",
	"recording_count", "cached_at", "updated_at",
}

// ShowRepository implements catalog.Store using GORM
type ShowRepository struct {
	db *gorm.DB
}

// NewShowRepository creates a new show repository
func NewShowRepository(db *gorm.DB) *ShowRepository {
	return &ShowRepository{db: db}
}

var _ catalog.Store = (*ShowRepository)(nil)

// GetShow returns a show with its recordings and tracks
func (r *ShowRepository) GetShow(ctx context.Context, id string) (*catalog.Show, error) {
	var model ShowModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(fmt.Sprintf("show %s not found", id))
		}
		return nil, apperrors.Storage("failed to find show", err)
	}

	show := toDomainShow(&model)
	recordings, err := r.loadRecordings(r.db.WithContext(ctx), []string{id}, true)
	if err != nil {
		return nil, err
	}
	show.Recordings = recordings[id]
	return show, nil
}

// GetRecording returns a recording with its tracks
func (r *ShowRepository) GetRecording(ctx context.Context, id string) (*catalog.Recording, error) {
	var model RecordingModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(fmt.Sprintf("recording %s not found", id))
		}
		return nil, apperrors.Storage("failed to find recording", err)
	}

	rec := toDomainRecording(&model)
	tracks, err := r.loadTracks(r.db.WithContext(ctx), []string{id})
	if err != nil {
		return nil, err
	}
	rec.Tracks = tracks[id]
	return rec, nil
}

// FindShows returns shows matching spec, without recordings
func (r *ShowRepository) FindShows(ctx context.Context, spec specification.Specification[*catalog.Show], limit int, newestFirst bool) ([]*catalog.Show, error) {
	sql, params := spec.ToSQL()

	query := r.db.WithContext(ctx).Where(sql, params...)
	if newestFirst {
		query = query.Order("show_date DESC").Order("id")
	} else {
		query = query.Order("show_date").Order("id")
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []ShowModel
	if err := query.Find(&models).Error; err != nil {
		return nil, apperrors.Storage("failed to query shows", err)
	}

	shows := make([]*catalog.Show, 0, len(models))
	for i := range models {
		shows = append(shows, toDomainShow(&models[i]))
	}
	return shows, nil
}

// AllShows returns every show with its recordings. Tracks are not loaded.
func (r *ShowRepository) AllShows(ctx context.Context) ([]*catalog.Show, error) {
	db := r.db.WithContext(ctx)

	var models []ShowModel
	if err := db.Order("show_date").Order("id").Find(&models).Error; err != nil {
		return nil, apperrors.Storage("failed to list shows", err)
	}

	var recModels []RecordingModel
	if err := db.Order("show_id").Order("id").Find(&recModels).Error; err != nil {
		return nil, apperrors.Storage("failed to list recordings", err)
	}
	byShow := make(map[string][]*catalog.Recording)
	for i := range recModels {
		rec := toDomainRecording(&recModels[i])
		byShow[rec.ShowID] = append(byShow[rec.ShowID], rec)
	}

	shows := make([]*catalog.Show, 0, len(models))
	for i := range models {
		show := toDomainShow(&models[i])
		show.Recordings = byShow[show.ID]
		shows = append(shows, show)
	}
	return shows, nil
}

// SaveShowAggregate writes a show, its recordings and their tracks in one
// transaction. Nothing is visible to readers unless every write succeeds.
func (r *ShowRepository) SaveShowAggregate(ctx context.Context, show *catalog.Show) error {
	return r.SaveShowAggregates(ctx, show)
}

// SaveShowAggregates writes every show in one transaction. A recording
// listed under a later show is moved there, so the show it left should
// come first.
func (r *ShowRepository) SaveShowAggregates(ctx context.Context, shows ...*catalog.Show) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, show := range shows {
			if err := saveShow(tx, show); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Storage("failed to save show aggregate", err)
	}
	return nil
}

func saveShow(tx *gorm.DB, show *catalog.Show) error {
	model := toShowModel(show)
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(showUpsertColumns),
	}).Create(model).Error; err != nil {
		return fmt.Errorf("failed to upsert show %s: %w", show.ID, err)
	}

	for _, rec := range show.Recordings {
		rec.ShowID = show.ID
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(toRecordingModel(rec)).Error; err != nil {
			return fmt.Errorf("failed to upsert recording %s: %w", rec.ID, err)
		}

		if err := tx.Where("recording_id = ?", rec.ID).Delete(&TrackModel{}).Error; err != nil {
			return fmt.Errorf("failed to clear tracks of %s: %w", rec.ID, err)
		}
		if len(rec.Tracks) == 0 {
			continue
		}
		tracks := make([]*TrackModel, 0, len(rec.Tracks))
		for i, t := range rec.Tracks {
			t.RecordingID = rec.ID
			tracks = append(tracks, toTrackModel(t, i))
		}
		if err := tx.CreateInBatches(tracks, 100).Error; err != nil {
			return fmt.Errorf("failed to insert tracks of %s: %w", rec.ID, err)
		}
	}
	return nil
}

// DeleteShow removes a show with its recordings, tracks and download entries
func (r *ShowRepository) DeleteShow(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteShows(tx, []string{id})
	})
	if err != nil {
		return apperrors.Storage("failed to delete show", err)
	}
	return nil
}

// DeleteStale removes shows cached before cutoff. Shows that are
// favorited, in the library, listed in protected, or referenced by an
// active download entry are kept. The exemption checks run inside the
// delete transaction.
func (r *ShowRepository) DeleteStale(ctx context.Context, cutoff time.Time, protected []string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&ShowModel{}).
			Where("cached_at < ?", cutoff).
			Where("is_in_library = ?", false).
			Where("id NOT IN (?)", tx.Model(&FavoriteModel{}).Select("show_id")).
			Where("id NOT IN (?)", tx.Model(&DownloadModel{}).
				Select("show_id").
				Where("status IN ?", activeStatusStrings()))
		if len(protected) > 0 {
			query = query.Where("id NOT IN ?", protected)
		}
		if err := query.Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("failed to select stale shows: %w", err)
		}
		return deleteShows(tx, ids)
	})
	if err != nil {
		return nil, apperrors.Storage("failed to delete stale shows", err)
	}
	return ids, nil
}

// ToggleFavorite adds or removes a favorite and keeps the show's library
// flag in step for show favorites.
func (r *ShowRepository) ToggleFavorite(ctx context.Context, item catalog.FavoriteItem) (bool, error) {
	added := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing FavoriteModel
		err := tx.First(&existing, "id = ?", item.ID).Error
		switch {
		case err == nil:
			if err := tx.Delete(&FavoriteModel{}, "id = ?", item.ID).Error; err != nil {
				return fmt.Errorf("failed to remove favorite: %w", err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(toFavoriteModel(item)).Error; err != nil {
				return fmt.Errorf("failed to add favorite: %w", err)
			}
			added = true
		default:
			return fmt.Errorf("failed to find favorite: %w", err)
		}

		if item.Type != catalog.FavoriteShow {
			return nil
		}
		updates := map[string]interface{}{"is_in_library": added, "library_added_at": nil}
		if added {
			updates["library_added_at"] = item.CreatedAt
		}
		return tx.Model(&ShowModel{}).Where("id = ?", item.ShowID).Updates(updates).Error
	})
	if err != nil {
		return false, apperrors.Storage("failed to toggle favorite", err)
	}
	return added, nil
}

// ListFavorites returns all favorites, newest first
func (r *ShowRepository) ListFavorites(ctx context.Context) ([]catalog.FavoriteItem, error) {
	var models []FavoriteModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id").Find(&models).Error; err != nil {
		return nil, apperrors.Storage("failed to list favorites", err)
	}

	items := make([]catalog.FavoriteItem, 0, len(models))
	for i := range models {
		items = append(items, toDomainFavorite(&models[i]))
	}
	return items, nil
}

// IsFavorite reports whether a favorite with the given ID exists
func (r *ShowRepository) IsFavorite(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&FavoriteModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, apperrors.Storage("failed to check favorite", err)
	}
	return count > 0, nil
}

func (r *ShowRepository) loadRecordings(db *gorm.DB, showIDs []string, withTracks bool) (map[string][]*catalog.Recording, error) {
	var models []RecordingModel
	if err := db.Where("show_id IN ?", showIDs).Order("id").Find(&models).Error; err != nil {
		return nil, apperrors.Storage("failed to load recordings", err)
	}

	ids := make([]string, 0, len(models))
	for i := range models {
		ids = append(ids, models[i].ID)
	}

	var tracks map[string][]catalog.Track
	if withTracks && len(ids) > 0 {
		var err error
		if tracks, err = r.loadTracks(db, ids); err != nil {
			return nil, err
		}
	}

	out := make(map[string][]*catalog.Recording)
	for i := range models {
		rec := toDomainRecording(&models[i])
		rec.Tracks = tracks[rec.ID]
		out[rec.ShowID] = append(out[rec.ShowID], rec)
	}
	return out, nil
}

func (r *ShowRepository) loadTracks(db *gorm.DB, recordingIDs []string) (map[string][]catalog.Track, error) {
	var models []TrackModel
	if err := db.Where("recording_id IN ?", recordingIDs).
		Order("recording_id").Order("position").
		Find(&models).Error; err != nil {
		return nil, apperrors.Storage("failed to load tracks", err)
	}

	out := make(map[string][]catalog.Track)
	for i := range models {
		out[models[i].RecordingID] = append(out[models[i].RecordingID], toDomainTrack(&models[i]))
	}
	return out, nil
}

func deleteShows(tx *gorm.DB, ids []string) error {
	for start := 0; start < len(ids); start += deleteBatchSize {
		batch := ids[start:min(start+deleteBatchSize, len(ids))]

		recordings := tx.Model(&RecordingModel{}).Select("id").Where("show_id IN ?", batch)
		if err := tx.Where("recording_id IN (?)", recordings).Delete(&TrackModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete tracks: %w", err)
		}
		if err := tx.Where("show_id IN ?", batch).Delete(&RecordingModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete recordings: %w", err)
		}
		if err := tx.Where("show_id IN ?", batch).Delete(&DownloadModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete download entries: %w", err)
		}
		if err := tx.Where("id IN ?", batch).Delete(&ShowModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete shows: %w", err)
		}
	}
	return nil
}

func activeStatusStrings() []string {
	statuses := download.ActiveStatuses()
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
