package http

import (
	"time"

	"github.com/narwhalmedia/deadarchive/internal/domain/catalog"
	"github.com/narwhalmedia/deadarchive/internal/domain/download"
	"github.com/narwhalmedia/deadarchive/internal/domain/rating"
)

type ratingDTO struct {
	Weighted    float64      `json:"weighted"`
	Raw         float64      `json:"raw"`
	Confidence  float64      `json:"confidence"`
	ReviewCount int          `json:"review_count"`
	Tally       rating.Tally `json:"distribution"`
}

type trackDTO struct {
	Filename    string  `json:"filename"`
	Title       string  `json:"title"`
	TrackNumber int     `json:"track_number,omitempty"`
	SetNumber   int     `json:"set_number,omitempty"`
	Format      string  `json:"format,omitempty"`
	Duration    float64 `json:"duration_seconds,omitempty"`
	Size        int64   `json:"size,omitempty"`
	URL         string  `json:"url"`
}

type recordingDTO struct {
	ID           string     `json:"id"`
	Title        string     `json:"title,omitempty"`
	SourceType   string     `json:"source_type"`
	Source       string     `json:"source,omitempty"`
	Taper        string     `json:"taper,omitempty"`
	Lineage      string     `json:"lineage,omitempty"`
	Rating       *ratingDTO `json:"rating,omitempty"`
	Tracks       []trackDTO `json:"tracks,omitempty"`
	IsDownloaded bool       `json:"is_downloaded"`
}

type showDTO struct {
	ID              string         `json:"id"`
	Date            string         `json:"date"`
	Year            int            `json:"year"`
	Venue           catalog.Venue  `json:"venue"`
	Location        string         `json:"location,omitempty"`
	Setlist         []catalog.Set  `json:"setlist,omitempty"`
	Rating          *ratingDTO     `json:"rating,omitempty"`
	BestRecordingID string         `json:"best_recording_id,omitempty"`
	RecordingCount  int            `json:"recording_count"`
	Recordings      []recordingDTO `json:"recordings,omitempty"`
	IsInLibrary     bool           `json:"is_in_library"`
	CachedAt        time.Time      `json:"cached_at"`
}

type downloadDTO struct {
	ID              string     `json:"id"`
	ShowID          string     `json:"show_id"`
	RecordingID     string     `json:"recording_id,omitempty"`
	TrackFilename   string     `json:"track_filename"`
	Status          string     `json:"status"`
	Progress        float64    `json:"progress"`
	BytesDownloaded int64      `json:"bytes_downloaded"`
	TotalBytes      int64      `json:"total_bytes,omitempty"`
	LocalPath       string     `json:"local_path,omitempty"`
	Error           string     `json:"error,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type downloadListDTO struct {
	Downloads     []downloadDTO `json:"downloads"`
	NextPageToken string        `json:"next_page_token,omitempty"`
	Total         int           `json:"total"`
}

type searchLineDTO struct {
	Phase    string    `json:"phase"`
	Final    bool      `json:"final"`
	Degraded bool      `json:"degraded,omitempty"`
	Error    string    `json:"error,omitempty"`
	Shows    []showDTO `json:"shows"`
}

type startDownloadRequest struct {
	ShowID        string `json:"showId"`
	RecordingID   string `json:"recordingId"`
	TrackFilename string `json:"trackFilename"`
	URL           string `json:"url"`
}

func toRatingDTO(r *rating.Rating) *ratingDTO {
	if r == nil {
		return nil
	}
	return &ratingDTO{
		Weighted:    r.Weighted,
		Raw:         r.Raw,
		Confidence:  r.Confidence,
		ReviewCount: r.ReviewCount,
		Tally:       r.Distribution,
	}
}

func toShowDTO(s *catalog.Show) showDTO {
	dto := showDTO{
		ID:              s.ID,
		Date:            s.Date,
		Year:            s.Year,
		Venue:           s.Venue,
		Location:        s.Location,
		Setlist:         s.Setlist,
		Rating:          toRatingDTO(s.Rating),
		BestRecordingID: s.BestRecordingID,
		RecordingCount:  s.RecordingCount,
		IsInLibrary:     s.IsInLibrary,
		CachedAt:        s.CachedAt,
	}
	for _, rec := range s.ActiveRecordings() {
		r := recordingDTO{
			ID:           rec.ID,
			Title:        rec.Title,
			SourceType:   string(rec.SourceType),
			Source:       rec.Source,
			Taper:        rec.Taper,
			Lineage:      rec.Lineage,
			Rating:       toRatingDTO(rec.Rating),
			IsDownloaded: rec.IsDownloaded,
		}
		for _, t := range rec.Tracks {
			r.Tracks = append(r.Tracks, trackDTO{
				Filename:    t.Filename,
				Title:       t.Title,
				TrackNumber: t.TrackNumber,
				SetNumber:   t.SetNumber,
				Format:      t.Format,
				Duration:    t.Duration.Seconds(),
				Size:        t.Size,
				URL:         t.URL,
			})
		}
		dto.Recordings = append(dto.Recordings, r)
	}
	return dto
}

func toShowDTOs(shows []*catalog.Show) []showDTO {
	out := make([]showDTO, 0, len(shows))
	for _, s := range shows {
		out = append(out, toShowDTO(s))
	}
	return out
}

func toDownloadDTO(e *download.Entry) downloadDTO {
	return downloadDTO{
		ID:              e.ID(),
		ShowID:          e.ShowID(),
		RecordingID:     e.RecordingID(),
		TrackFilename:   e.TrackFilename(),
		Status:          string(e.Status()),
		Progress:        e.Progress(),
		BytesDownloaded: e.BytesDownloaded(),
		TotalBytes:      e.TotalBytes(),
		LocalPath:       e.LocalPath(),
		Error:           e.ErrorMessage(),
		CompletedAt:     e.CompletedAt(),
		UpdatedAt:       e.UpdatedAt(),
	}
}
