package catalog

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/narwhalmedia/deadarchive/internal/domain/catalog"
	"github.com/narwhalmedia/deadarchive/internal/domain/rating"
)

// ExportVersion is the schema version of the ratings export document
const ExportVersion = "1.0.0"

// ExportOptions filters the ratings export
type ExportOptions struct {
	MinRating        float64
	TopLimit         int
	TopMinConfidence float64
}

// RatingsExport is the ratings document written by the export command
type RatingsExport struct {
	Metadata         ExportMetadata                 `json:"metadata"`
	RecordingRatings map[string]RecordingRatingItem `json:"recording_ratings"`
	ShowRatings      map[string]ShowRatingItem      `json:"show_ratings"`
	TopShows         []TopShowItem                  `json:"top_shows"`
}

// ExportMetadata describes an export run
type ExportMetadata struct {
	GeneratedAt     time.Time `json:"generated_at"`
	Version         string    `json:"version"`
	TotalRecordings int       `json:"total_recordings"`
	TotalShows      int       `json:"total_shows"`
	WellReviewed    int       `json:"well_reviewed_recordings"`
}

// RecordingRatingItem is the exported rating of one recording
type RecordingRatingItem struct {
	ShowID       string       `json:"show_id"`
	SourceType   string       `json:"source_type"`
	Rating       float64      `json:"rating"`
	ReviewCount  int          `json:"review_count"`
	Confidence   float64      `json:"confidence"`
	HighRatings  int          `json:"high_ratings"`
	LowRatings   int          `json:"low_ratings"`
	Distribution rating.Tally `json:"distribution"`
}

// ShowRatingItem is the exported rating of one show
type ShowRatingItem struct {
	Date           string  `json:"date"`
	Venue          string  `json:"venue"`
	Location       string  `json:"location,omitempty"`
	Rating         float64 `json:"rating"`
	RawRating      float64 `json:"raw_rating"`
	Confidence     float64 `json:"confidence"`
	ReviewCount    int     `json:"review_count"`
	BestRecording  string  `json:"best_recording"`
	Selection      string  `json:"selection"`
	RecordingCount int     `json:"recording_count"`
}

// TopShowItem is one entry of the top shows list
type TopShowItem struct {
	ShowID     string  `json:"show_key"`
	Rating     float64 `json:"rating"`
	Confidence float64 `json:"confidence"`
	Date       string  `json:"date"`
	Venue      string  `json:"venue"`
}

// RatingsExporter builds ratings documents from the local store
type RatingsExporter struct {
	store   catalog.Store
	ratings *rating.Aggregator
	logger  *zap.Logger
	now     func() time.Time
}

// NewRatingsExporter creates a new ratings exporter
func NewRatingsExporter(store catalog.Store, ratings *rating.Aggregator, logger *zap.Logger) *RatingsExporter {
	return &RatingsExporter{
		store:   store,
		ratings: ratings,
		logger:  logger.Named("export"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Build rates every cached recording and show. Shows below MinRating are
// left out; top shows need TopMinConfidence and are sorted by rating.
func (e *RatingsExporter) Build(ctx context.Context, opts ExportOptions) (*RatingsExport, error) {
	shows, err := e.store.AllShows(ctx)
	if err != nil {
		return nil, err
	}

	out := &RatingsExport{
		RecordingRatings: make(map[string]RecordingRatingItem),
		ShowRatings:      make(map[string]ShowRatingItem),
		TopShows:         []TopShowItem{},
	}

	for _, show := range shows {
		active := show.ActiveRecordings()
		candidates := make([]rating.Candidate, 0, len(active))
		for _, rec := range active {
			candidates = append(candidates, rating.Candidate{
				ID:         rec.ID,
				Tally:      rec.Tally,
				Soundboard: rec.SourceType == catalog.SourceSoundboard,
				SourceRank: rec.SourceType.Rank(),
			})

			r := e.ratings.Rate(rec.Tally)
			if r == nil {
				continue
			}
			out.RecordingRatings[rec.ID] = RecordingRatingItem{
				ShowID:       show.ID,
				SourceType:   string(rec.SourceType),
				Rating:       r.Weighted,
				ReviewCount:  r.ReviewCount,
				Confidence:   r.Confidence,
				HighRatings:  r.HighCount,
				LowRatings:   r.LowCount,
				Distribution: r.Distribution,
			}
			if r.ReviewCount >= 3 {
				out.Metadata.WellReviewed++
			}
		}

		result := e.ratings.RateShow(candidates)
		if result.Rating == nil || result.Rating.Weighted < opts.MinRating {
			continue
		}
		out.ShowRatings[show.ID] = ShowRatingItem{
			Date:           show.Date,
			Venue:          show.Venue.Name,
			Location:       show.Location,
			Rating:         result.Rating.Weighted,
			RawRating:      result.Rating.Raw,
			Confidence:     result.Rating.Confidence,
			ReviewCount:    result.Rating.ReviewCount,
			BestRecording:  result.BestRecordingID,
			Selection:      string(result.Selection),
			RecordingCount: len(active),
		}
		if result.Rating.Confidence >= opts.TopMinConfidence {
			out.TopShows = append(out.TopShows, TopShowItem{
				ShowID:     show.ID,
				Rating:     result.Rating.Weighted,
				Confidence: result.Rating.Confidence,
				Date:       show.Date,
				Venue:      show.Venue.Name,
			})
		}
	}

	sort.SliceStable(out.TopShows, func(i, j int) bool {
		if out.TopShows[i].Rating != out.TopShows[j].Rating {
			return out.TopShows[i].Rating > out.TopShows[j].Rating
		}
		return out.TopShows[i].Date < out.TopShows[j].Date
	})
	if opts.TopLimit > 0 && len(out.TopShows) > opts.TopLimit {
		out.TopShows = out.TopShows[:opts.TopLimit]
	}

	out.Metadata.GeneratedAt = e.now()
	out.Metadata.Version = ExportVersion
	out.Metadata.TotalRecordings = len(out.RecordingRatings)
	out.Metadata.TotalShows = len(out.ShowRatings)

	e.logger.Info("built ratings export",
		zap.Int("shows", out.Metadata.TotalShows),
		zap.Int("recordings", out.Metadata.TotalRecordings),
		zap.Int("top_shows", len(out.TopShows)),
	)
	return out, nil
}
