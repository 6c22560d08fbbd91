package catalog

import "time"

// FavoriteType distinguishes show and track favorites
type FavoriteType string

const (
	FavoriteShow  FavoriteType = "concert"
	FavoriteTrack FavoriteType = "track"
)

// FavoriteItem marks a show or track as a user favorite. Favorited shows
// are never evicted by cache cleanup.
type FavoriteItem struct {
	ID            string
	Type          FavoriteType
	ShowID        string
	TrackFilename string
	CreatedAt     time.Time
}

// ShowFavoriteID returns "concert_{showId}"
func ShowFavoriteID(showID string) string {
	return string(FavoriteShow) + "_" + showID
}

// TrackFavoriteID returns "track_{showId}_{trackFilename}"
func TrackFavoriteID(showID, filename string) string {
	return string(FavoriteTrack) + "_" + showID + "_" + filename
}

// NewShowFavorite creates a favorite for a whole show
func NewShowFavorite(showID string, now time.Time) FavoriteItem {
	return FavoriteItem{
		ID:        ShowFavoriteID(showID),
		Type:      FavoriteShow,
		ShowID:    showID,
		CreatedAt: now,
	}
}

// NewTrackFavorite creates a favorite for one track of a show
func NewTrackFavorite(showID, filename string, now time.Time) FavoriteItem {
	return FavoriteItem{
		ID:            TrackFavoriteID(showID, filename),
		Type:          FavoriteTrack,
		ShowID:        showID,
		TrackFilename: filename,
		CreatedAt:     now,
	}
}
