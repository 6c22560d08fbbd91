package catalog

import (
	"context"
	"time"

	"github.com/narwhalmedia/deadarchive/internal/domain/specification"
)

// Store is the local cache of shows, recordings, tracks and favorites.
// Every method is a blocking call against persistent storage; failures are
// returned as storage errors and never swallowed.
type Store interface {
	// GetShow returns the show with its recordings and tracks
	GetShow(ctx context.Context, id string) (*Show, error)
	GetRecording(ctx context.Context, id string) (*Recording, error)
	// FindShows returns shows without recordings. limit <= 0 is unbounded.
	FindShows(ctx context.Context, spec specification.Specification[*Show], limit int, newestFirst bool) ([]*Show, error)
	// AllShows returns every show with its recordings
	AllShows(ctx context.Context) ([]*Show, error)
	// SaveShowAggregate writes a show with its recordings and tracks in
	// one transaction.
	SaveShowAggregate(ctx context.Context, show *Show) error
	// SaveShowAggregates writes several shows in one transaction, used
	// when a recording moves from one show to another.
	SaveShowAggregates(ctx context.Context, shows ...*Show) error
	DeleteShow(ctx context.Context, id string) error
	// DeleteStale removes shows cached before cutoff, except protected
	// IDs, and returns the removed IDs.
	DeleteStale(ctx context.Context, cutoff time.Time, protected []string) ([]string, error)

	// ToggleFavorite adds the item if absent or removes it if present and
	// reports whether it is now a favorite.
	ToggleFavorite(ctx context.Context, item FavoriteItem) (bool, error)
	ListFavorites(ctx context.Context) ([]FavoriteItem, error)
	IsFavorite(ctx context.Context, id string) (bool, error)
}

// RemoteCatalog is the remote source of recording metadata. Errors are
// classified with pkg/errors so callers can tell transient failures from
// permanent ones.
type RemoteCatalog interface {
	// FetchRecording returns one recording with tracks and reviews
	FetchRecording(ctx context.Context, id string) (*Recording, error)
	// Search returns summary recordings for a query, one page at a time
	Search(ctx context.Context, q Query, page, pageSize int) ([]*Recording, error)
}
