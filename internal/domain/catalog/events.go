package catalog

import (
	domainevents "github.com/narwhalmedia/deadarchive/internal/domain/events"
)

// ShowAggregated is emitted after a show aggregate has been persisted
type ShowAggregated struct {
	domainevents.BaseEvent
	Date            string   `json:"date"`
	Venue           string   `json:"venue"`
	RecordingCount  int      `json:"recording_count"`
	BestRecordingID string   `json:"best_recording_id,omitempty"`
	Rating          *float64 `json:"rating,omitempty"`
}

// NewShowAggregated creates a new ShowAggregated event
func NewShowAggregated(show *Show) *ShowAggregated {
	e := &ShowAggregated{
		BaseEvent:       domainevents.NewBaseEvent(show.ID, "Show", "ShowAggregated", 1),
		Date:            show.Date,
		Venue:           show.Venue.Name,
		RecordingCount:  show.RecordingCount,
		BestRecordingID: show.BestRecordingID,
	}
	if show.Rating != nil {
		w := show.Rating.Weighted
		e.Rating = &w
	}
	return e
}

// ShowsEvicted is emitted when cache cleanup removes stale shows
type ShowsEvicted struct {
	domainevents.BaseEvent
	ShowIDs []string `json:"show_ids"`
}

// NewShowsEvicted creates a new ShowsEvicted event
func NewShowsEvicted(ids []string) *ShowsEvicted {
	return &ShowsEvicted{
		BaseEvent: domainevents.NewBaseEvent("cache", "Show", "ShowsEvicted", 1),
		ShowIDs:   ids,
	}
}

// FavoriteToggled is emitted when a favorite is added or removed
type FavoriteToggled struct {
	domainevents.BaseEvent
	FavoriteID string `json:"favorite_id"`
	Type       string `json:"type"`
	Added      bool   `json:"added"`
}

// NewFavoriteToggled creates a new FavoriteToggled event
func NewFavoriteToggled(item FavoriteItem, added bool) *FavoriteToggled {
	return &FavoriteToggled{
		BaseEvent:  domainevents.NewBaseEvent(item.ShowID, "Show", "FavoriteToggled", 1),
		FavoriteID: item.ID,
		Type:       string(item.Type),
		Added:      added,
	}
}
