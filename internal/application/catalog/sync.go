package catalog

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/narwhalmedia/deadarchive/internal/config"
	"github.com/narwhalmedia/deadarchive/internal/domain/catalog"
	"github.com/narwhalmedia/deadarchive/internal/domain/download"
	"github.com/narwhalmedia/deadarchive/internal/domain/events"
	"github.com/narwhalmedia/deadarchive/pkg/cache"
	apperrors "github.com/narwhalmedia/deadarchive/pkg/errors"
	"github.com/narwhalmedia/deadarchive/pkg/keylock"
)

// maxShowPages bounds the remote pages scanned to rebuild one show
const maxShowPages = 5

// Phase identifies which step of a read produced an emission
type Phase string

const (
	// PhaseCache is answered from the local store alone
	PhaseCache Phase = "cache"
	// PhaseRemote is answered after reconciling remote data
	PhaseRemote Phase = "remote"
)

// SearchEmission is one result of SearchShows. Every search produces a
// cache emission followed by exactly one final emission.
type SearchEmission struct {
	Phase Phase
	Query catalog.Query
	Shows []*catalog.Show
	Final bool
	// Degraded is set on a final emission that repeats cached data because
	// the remote search failed.
	Degraded bool
	Err      error
}

// ShowEmission is one result of WatchShow
type ShowEmission struct {
	Phase    Phase
	Show     *catalog.Show
	Final    bool
	Degraded bool
	Err      error
}

// SyncConfig holds freshness and remote paging settings
type SyncConfig struct {
	TTL                time.Duration
	NegativeTTL        time.Duration
	SearchLimit        int
	PageSize           int
	HydrateConcurrency int
}

// NewSyncConfig extracts sync settings from the service configuration
func NewSyncConfig(cfg *config.Config) SyncConfig {
	return SyncConfig{
		TTL:                cfg.Cache.TTL,
		NegativeTTL:        cfg.Cache.NegativeTTL,
		SearchLimit:        cfg.Cache.SearchLimit,
		PageSize:           cfg.Catalog.PageSize,
		HydrateConcurrency: cfg.Catalog.HydrateConcurrency,
	}
}

// SyncRepository is the single entry point for reading shows. It answers
// from the local store first and refreshes from the remote catalog in the
// background, coalescing concurrent refreshes of the same key.
type SyncRepository struct {
	store      catalog.Store
	remote     catalog.RemoteCatalog
	aggregator *AggregationService
	downloads  download.Repository
	negative   cache.Cache
	locks      *keylock.KeyLock
	publisher  events.EventPublisher
	cfg        SyncConfig
	group      singleflight.Group
	logger     *zap.Logger
	now        func() time.Time
}

// NewSyncRepository creates a new sync repository
func NewSyncRepository(
	store catalog.Store,
	remote catalog.RemoteCatalog,
	aggregator *AggregationService,
	downloads download.Repository,
	negative cache.Cache,
	locks *keylock.KeyLock,
	publisher events.EventPublisher,
	cfg SyncConfig,
	logger *zap.Logger,
) *SyncRepository {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.HydrateConcurrency <= 0 {
		cfg.HydrateConcurrency = 1
	}
	return &SyncRepository{
		store:      store,
		remote:     remote,
		aggregator: aggregator,
		downloads:  downloads,
		negative:   negative,
		locks:      locks,
		publisher:  publisher,
		cfg:        cfg,
		logger:     logger.Named("sync"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// GetShow returns a show. A fresh cached copy is returned without a remote
// call. Otherwise the show is rebuilt from the remote catalog; if that
// fails a stale cached copy is returned instead. The error is surfaced
// only when no copy exists anywhere, or when the local store fails.
func (r *SyncRepository) GetShow(ctx context.Context, id string) (*catalog.Show, error) {
	cached, err := r.cachedShow(ctx, id)
	if err != nil {
		return nil, err
	}
	if cached != nil && cached.IsFresh(r.now(), r.cfg.TTL) {
		return cached, nil
	}

	fresh, err := r.refreshShow(ctx, id, cached == nil)
	if err == nil {
		return fresh, nil
	}
	if cached != nil && !apperrors.IsStorage(err) && ctx.Err() == nil {
		r.logger.Info("serving stale show",
			zap.String("show_id", id),
			zap.Error(err),
		)
		return cached, nil
	}
	return nil, err
}

// WatchShow emits the cached show, when there is one, and then the result
// of GetShow's refresh. The channel is closed after the final emission or
// when ctx is done.
func (r *SyncRepository) WatchShow(ctx context.Context, id string) <-chan ShowEmission {
	out := make(chan ShowEmission, 2)

	go func() {
		defer close(out)

		cached, err := r.cachedShow(ctx, id)
		if err != nil {
			send(ctx, out, ShowEmission{Phase: PhaseCache, Final: true, Err: err})
			return
		}
		if cached != nil {
			fresh := cached.IsFresh(r.now(), r.cfg.TTL)
			if !send(ctx, out, ShowEmission{Phase: PhaseCache, Show: cached, Final: fresh}) || fresh {
				return
			}
		}

		show, err := r.refreshShow(ctx, id, cached == nil)
		switch {
		case err == nil:
			send(ctx, out, ShowEmission{Phase: PhaseRemote, Show: show, Final: true})
		case cached != nil && !apperrors.IsStorage(err):
			send(ctx, out, ShowEmission{Phase: PhaseRemote, Show: cached, Final: true, Degraded: true})
		default:
			send(ctx, out, ShowEmission{Phase: PhaseRemote, Final: true, Err: err})
		}
	}()

	return out
}

// SearchShows emits the shows the local store holds for raw, then refreshes
// from the remote catalog and emits the reconciled result. On remote
// failure the cached result is repeated as the final emission; Err is set
// only when the remote failed and the cache had nothing, or when the local
// store failed.
func (r *SyncRepository) SearchShows(ctx context.Context, raw string) <-chan SearchEmission {
	q := catalog.ParseQuery(raw)
	out := make(chan SearchEmission, 2)

	go func() {
		defer close(out)

		cached, err := r.findShows(ctx, q)
		if err != nil {
			send(ctx, out, SearchEmission{Phase: PhaseCache, Query: q, Final: true, Err: err})
			return
		}
		if !send(ctx, out, SearchEmission{Phase: PhaseCache, Query: q, Shows: cached}) {
			return
		}

		err = r.refreshSearch(ctx, q)
		if err == nil {
			shows, err := r.findShows(ctx, q)
			if err != nil {
				send(ctx, out, SearchEmission{Phase: PhaseRemote, Query: q, Shows: cached, Final: true, Err: err})
				return
			}
			send(ctx, out, SearchEmission{Phase: PhaseRemote, Query: q, Shows: shows, Final: true})
			return
		}

		final := SearchEmission{Phase: PhaseRemote, Query: q, Shows: cached, Final: true, Degraded: true}
		if apperrors.IsStorage(err) || len(cached) == 0 {
			final.Err = err
		}
		r.logger.Info("remote search failed",
			zap.String("query", q.Raw),
			zap.Int("cached", len(cached)),
			zap.Error(err),
		)
		send(ctx, out, final)
	}()

	return out
}

// SyncRecording fetches one recording and merges it into its show
func (r *SyncRepository) SyncRecording(ctx context.Context, recordingID string) (*catalog.Show, error) {
	rec, err := r.remote.FetchRecording(ctx, recordingID)
	if err != nil {
		return nil, err
	}
	return r.aggregator.UpsertRecording(ctx, rec)
}

// ToggleFavorite pins or unpins a show. The show is loaded first so a
// favorite always refers to cached data.
func (r *SyncRepository) ToggleFavorite(ctx context.Context, showID string) (bool, error) {
	if _, err := r.GetShow(ctx, showID); err != nil {
		return false, err
	}
	return r.toggle(ctx, catalog.NewShowFavorite(showID, r.now()))
}

// ToggleTrackFavorite pins or unpins one track of a show
func (r *SyncRepository) ToggleTrackFavorite(ctx context.Context, showID, filename string) (bool, error) {
	show, err := r.GetShow(ctx, showID)
	if err != nil {
		return false, err
	}
	if findTrack(show, filename) == nil {
		return false, apperrors.NotFound(fmt.Sprintf("track %s not found in show %s", filename, showID))
	}
	return r.toggle(ctx, catalog.NewTrackFavorite(showID, filename, r.now()))
}

func (r *SyncRepository) toggle(ctx context.Context, item catalog.FavoriteItem) (bool, error) {
	unlock := r.locks.Lock(item.ShowID)
	added, err := r.store.ToggleFavorite(ctx, item)
	unlock()
	if err != nil {
		return false, err
	}

	if err := r.publisher.PublishEvent(ctx, catalog.NewFavoriteToggled(item, added)); err != nil {
		r.logger.Warn("failed to publish favorite event", zap.String("favorite_id", item.ID), zap.Error(err))
	}
	return added, nil
}

// Favorites lists every favorite
func (r *SyncRepository) Favorites(ctx context.Context) ([]catalog.FavoriteItem, error) {
	return r.store.ListFavorites(ctx)
}

// CleanupStale evicts shows cached longer than the TTL. Favorited shows,
// library shows and shows with active downloads are kept.
func (r *SyncRepository) CleanupStale(ctx context.Context) ([]string, error) {
	protected, err := r.downloads.ActiveShowIDs(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := r.now().Add(-r.cfg.TTL)
	removed, err := r.store.DeleteStale(ctx, cutoff, protected)
	if err != nil {
		return nil, err
	}

	if len(removed) > 0 {
		r.logger.Info("evicted stale shows", zap.Int("count", len(removed)), zap.Time("cutoff", cutoff))
		if err := r.publisher.PublishEvent(ctx, catalog.NewShowsEvicted(removed)); err != nil {
			r.logger.Warn("failed to publish eviction event", zap.Error(err))
		}
	}
	return removed, nil
}

// DeleteShow removes a show with its recordings and downloads. Favorited
// shows cannot be deleted.
func (r *SyncRepository) DeleteShow(ctx context.Context, id string) error {
	unlock := r.locks.Lock(id)
	defer unlock()

	favorites, err := r.store.ListFavorites(ctx)
	if err != nil {
		return err
	}
	for _, f := range favorites {
		if f.ShowID == id {
			return apperrors.Conflict(fmt.Sprintf("show %s is a favorite", id))
		}
	}
	return r.store.DeleteShow(ctx, id)
}

func (r *SyncRepository) cachedShow(ctx context.Context, id string) (*catalog.Show, error) {
	show, err := r.store.GetShow(ctx, id)
	if apperrors.IsNotFound(err) {
		return nil, nil
	}
	return show, err
}

func (r *SyncRepository) findShows(ctx context.Context, q catalog.Query) ([]*catalog.Show, error) {
	limit := q.Limit()
	if limit > 0 && r.cfg.SearchLimit > 0 {
		limit = r.cfg.SearchLimit
	}
	return r.store.FindShows(ctx, q.Specification(), limit, q.NewestFirst())
}

// refreshShow rebuilds a show from the remote catalog. Concurrent callers
// for the same ID share one fetch, which runs to completion even when
// every caller has gone away.
func (r *SyncRepository) refreshShow(ctx context.Context, id string, absent bool) (*catalog.Show, error) {
	negKey := "show:" + id
	if absent && r.negative != nil {
		if hit, err := r.negative.Exists(ctx, negKey); err == nil && hit {
			return nil, apperrors.NotFound(fmt.Sprintf("show %s not found", id))
		}
	}

	detached := context.WithoutCancel(ctx)
	ch := r.group.DoChan(negKey, func() (interface{}, error) {
		show, err := r.fetchShow(detached, id)
		if apperrors.IsNotFound(err) && r.negative != nil {
			if cerr := r.negative.Set(detached, negKey, []byte{1}, r.cfg.NegativeTTL); cerr != nil {
				r.logger.Warn("failed to record missing show", zap.String("show_id", id), zap.Error(cerr))
			}
		}
		return show, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*catalog.Show), nil
	}
}

func (r *SyncRepository) fetchShow(ctx context.Context, id string) (*catalog.Show, error) {
	date, _, ok := catalog.ParseShowID(id)
	if !ok {
		return nil, apperrors.BadRequest(fmt.Sprintf("invalid show id %q", id))
	}

	q := catalog.ParseQuery(date)
	var matches []*catalog.Recording
	for page := 1; page <= maxShowPages; page++ {
		recs, err := r.remote.Search(ctx, q, page, r.cfg.PageSize)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			if key, err := rec.ShowKey(); err == nil && key == id {
				matches = append(matches, rec)
			}
		}
		if len(recs) < r.cfg.PageSize {
			break
		}
	}
	if len(matches) == 0 {
		return nil, apperrors.NotFound(fmt.Sprintf("show %s not found", id))
	}

	hydrated := r.hydrate(ctx, matches)
	shows, err := r.aggregator.Aggregate(ctx, hydrated)
	if err != nil {
		return nil, err
	}
	for _, s := range shows {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, apperrors.NotFound(fmt.Sprintf("show %s not found", id))
}

// hydrate replaces search summaries with full records. A recording that
// cannot be fetched keeps its summary.
func (r *SyncRepository) hydrate(ctx context.Context, summaries []*catalog.Recording) []*catalog.Recording {
	out := make([]*catalog.Recording, len(summaries))
	copy(out, summaries)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.HydrateConcurrency)
	for i, rec := range summaries {
		g.Go(func() error {
			full, err := r.remote.FetchRecording(gctx, rec.ID)
			if err != nil {
				r.logger.Debug("keeping recording summary",
					zap.String("recording_id", rec.ID),
					zap.Error(err),
				)
				return nil
			}
			out[i] = full
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// refreshSearch runs one remote search page and merges the results.
// Concurrent identical searches share one remote call.
func (r *SyncRepository) refreshSearch(ctx context.Context, q catalog.Query) error {
	detached := context.WithoutCancel(ctx)
	ch := r.group.DoChan("search:"+q.Key(), func() (interface{}, error) {
		recs, err := r.remote.Search(detached, q, 1, r.cfg.PageSize)
		if err != nil {
			return nil, err
		}
		_, err = r.aggregator.Aggregate(detached, recs)
		return nil, err
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func send[T any](ctx context.Context, out chan<- T, v T) bool {
	select {
	case out <- v:
		return true
	case <-ctx.Done():
		return false
	}
}

func findTrack(show *catalog.Show, filename string) *catalog.Track {
	if best := show.BestRecording(); best != nil {
		if t := best.Track(filename); t != nil {
			return t
		}
	}
	for _, rec := range show.ActiveRecordings() {
		if t := rec.Track(filename); t != nil {
			return t
		}
	}
	return nil
}
