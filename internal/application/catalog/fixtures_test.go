package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/narwhalmedia/deadarchive/internal/domain/catalog"
	"github.com/narwhalmedia/deadarchive/internal/domain/events"
	"github.com/narwhalmedia/deadarchive/internal/domain/rating"
	gormrepo "github.com/narwhalmedia/deadarchive/internal/infrastructure/persistence/gorm"
	"github.com/narwhalmedia/deadarchive/pkg/cache"
	apperrors "github.com/narwhalmedia/deadarchive/pkg/errors"
	"github.com/narwhalmedia/deadarchive/pkg/keylock"
)

// fakeRemote answers searches from a fixed set of recordings
type fakeRemote struct {
	mu          sync.Mutex
	recordings  []*catalog.Recording
	searchErr   error
	fetchErr    error
	release     chan struct{}
	searchCalls atomic.Int32
	fetchCalls  atomic.Int32
}

func (f *fakeRemote) set(recs ...*catalog.Recording) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordings = recs
}

func (f *fakeRemote) Search(ctx context.Context, q catalog.Query, page, pageSize int) ([]*catalog.Recording, error) {
	f.searchCalls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if page > 1 {
		return nil, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	spec := q.Specification()
	var out []*catalog.Recording
	for _, rec := range f.recordings {
		show, err := catalog.NewShow(rec)
		if err != nil {
			continue
		}
		show.SetlistRaw = rec.Title
		if spec.IsSatisfiedBy(show) {
			summary := *rec
			summary.Hydrated = false
			summary.Tracks = nil
			out = append(out, &summary)
		}
	}
	return out, nil
}

func (f *fakeRemote) FetchRecording(ctx context.Context, id string) (*catalog.Recording, error) {
	f.fetchCalls.Add(1)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, rec := range f.recordings {
		if rec.ID == id {
			full := *rec
			full.Hydrated = true
			return &full, nil
		}
	}
	return nil, apperrors.NotFound("recording " + id + " not found")
}

// capturePublisher records published events
type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) PublishEvent(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type harness struct {
	store      *gormrepo.ShowRepository
	downloads  *gormrepo.DownloadRepository
	remote     *fakeRemote
	publisher  *capturePublisher
	aggregator *AggregationService
	sync       *SyncRepository
	clock      *clock
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := zaptest.NewLogger(t)
	db := gormrepo.NewTestDB(t)
	locks := keylock.New()
	negative := cache.NewMemoryCache(0)
	t.Cleanup(func() { negative.Close() })

	h := &harness{
		store:     gormrepo.NewShowRepository(db),
		downloads: gormrepo.NewDownloadRepository(db),
		remote:    &fakeRemote{},
		publisher: &capturePublisher{},
		clock:     &clock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	h.aggregator = NewAggregationService(h.store, rating.NewAggregator(10), locks, h.publisher, logger)
	h.aggregator.now = h.clock.Now
	h.sync = NewSyncRepository(h.store, h.remote, h.aggregator, h.downloads, negative, locks, h.publisher, SyncConfig{
		TTL:                24 * time.Hour,
		NegativeTTL:        10 * time.Minute,
		SearchLimit:        100,
		PageSize:           50,
		HydrateConcurrency: 2,
	}, logger)
	h.sync.now = h.clock.Now
	return h
}

func recording(id, date, venue string, source catalog.SourceType, tally rating.Tally) *catalog.Recording {
	return &catalog.Recording{
		ID:         id,
		Title:      "Grateful Dead Live at " + venue + " on " + date,
		Date:       date,
		VenueName:  venue,
		Location:   "Ithaca, NY",
		SourceType: source,
		Tally:      tally,
		Tracks: []catalog.Track{
			{RecordingID: id, Filename: "d1t01.mp3", Title: "New Minglewood Blues", SetNumber: 1, TrackNumber: 1, Format: "VBR MP3", Duration: 5 * time.Minute, URL: "https://archive.org/download/" + id + "/d1t01.mp3"},
			{RecordingID: id, Filename: "d1t02.mp3", Title: "Loser", SetNumber: 1, TrackNumber: 2, Format: "VBR MP3", Duration: 7 * time.Minute, URL: "https://archive.org/download/" + id + "/d1t02.mp3"},
			{RecordingID: id, Filename: "d1t01.flac", Title: "New Minglewood Blues", SetNumber: 1, TrackNumber: 1, Format: "Flac", URL: "https://archive.org/download/" + id + "/d1t01.flac"},
		},
	}
}

func drain[T any](t *testing.T, ch <-chan T) []T {
	t.Helper()
	var out []T
	timeout := time.After(5 * time.Second)
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, v)
		case <-timeout:
			t.Fatal("timed out waiting for emissions")
			return out
		}
	}
}
