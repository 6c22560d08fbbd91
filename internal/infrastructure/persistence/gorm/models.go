package gorm

import (
	"encoding/json"
	"math"
	"time"

	"github.com/narwhalmedia/deadarchive/internal/domain/catalog"
	"github.com/narwhalmedia/deadarchive/internal/domain/download"
	"github.com/narwhalmedia/deadarchive/internal/domain/rating"
)

// TallyColumns stores a review distribution as five counters
type TallyColumns struct {
	Stars1 int
	Stars2 int
	Stars3 int
	Stars4 int
	Stars5 int
}

// ShowModel represents the database model for shows
type ShowModel struct {
	ID              string `gorm:"primaryKey;size:255"`
	ShowDate        string `gorm:"column:show_date;size:32;not null;index"`
	ShowYear        int    `gorm:"column:show_year;index"`
	VenueName       string `gorm:"size:255"`
	VenueKey        string `gorm:"size:255;index"`
	City            string `gorm:"size:128"`
	Region          string `gorm:"size:128"`
	Country         string `gorm:"size:128"`
	Location        string `gorm:"size:255"`
	SetlistRaw      string `gorm:"type:text"`
	SetlistJSON     string `gorm:"type:text"`
	Rating          *float64
	RawRating       *float64
	ReviewCount     int
	Confidence      float64
	HighRatings     int
	LowRatings      int
	Tally           TallyColumns `gorm:"embedded;embeddedPrefix:tally_"`
	BestRecordingID string       `gorm:"size:255"`
	RecordingCount  int
	IsInLibrary     bool `gorm:"index"`
	LibraryAddedAt  *time.Time
	CachedAt        time.Time `gorm:"not null;index"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

// TableName specifies the table name
func (ShowModel) TableName() string {
	return "shows"
}

// RecordingModel represents the database model for recordings
type RecordingModel struct {
	ID           string `gorm:"primaryKey;size:255"`
	ShowID       string `gorm:"size:255;not null;index"`
	Title        string `gorm:"size:512"`
	RawDate      string `gorm:"size:64"`
	RawVenue     string `gorm:"size:255"`
	Location     string `gorm:"size:255"`
	SourceType   string `gorm:"size:16;index"`
	Source       string `gorm:"type:text"`
	Taper        string `gorm:"size:255"`
	Transferer   string `gorm:"size:255"`
	Lineage      string `gorm:"type:text"`
	Tally        TallyColumns `gorm:"embedded;embeddedPrefix:tally_"`
	Rating       *float64
	Confidence   float64
	Hydrated     bool
	IsDownloaded bool
	IsInLibrary  bool
	Deleted      bool `gorm:"index"`
	DeletedAt    *time.Time
	CachedAt     time.Time `gorm:"not null;index"`
}

// TableName specifies the table name
func (RecordingModel) TableName() string {
	return "recordings"
}

// TrackModel represents the database model for tracks
type TrackModel struct {
	RecordingID string `gorm:"primaryKey;size:255"`
	Filename    string `gorm:"primaryKey;size:255"`
	Position    int
	Title       string `gorm:"size:512"`
	TrackNumber int
	SetNumber   int
	Format      string `gorm:"size:64"`
	DurationMs  int64
	Size        int64
	URL         string `gorm:"size:1024"`
}

// TableName specifies the table name
func (TrackModel) TableName() string {
	return "tracks"
}

// FavoriteModel represents the database model for favorites
type FavoriteModel struct {
	ID            string `gorm:"primaryKey;size:512"`
	Type          string `gorm:"size:16;not null"`
	ShowID        string `gorm:"size:255;not null;index"`
	TrackFilename string `gorm:"size:255"`
	CreatedAt     time.Time `gorm:"not null"`
}

// TableName specifies the table name
func (FavoriteModel) TableName() string {
	return "favorites"
}

// DownloadModel represents the database model for download entries
type DownloadModel struct {
	ID              string `gorm:"primaryKey;size:512"`
	ShowID          string `gorm:"size:255;not null;index"`
	RecordingID     string `gorm:"size:255"`
	TrackFilename   string `gorm:"size:255;not null"`
	URL             string `gorm:"size:1024"`
	Status          string `gorm:"size:16;not null;index"`
	Progress        *float64 // NULL stores NaN, which sqlite cannot hold
	BytesDownloaded int64
	TotalBytes      int64
	LocalPath       string `gorm:"size:1024"`
	ErrorMessage    string `gorm:"type:text"`
	StartedAt       time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

// TableName specifies the table name
func (DownloadModel) TableName() string {
	return "download_entries"
}

func toTallyColumns(t rating.Tally) TallyColumns {
	return TallyColumns{Stars1: t[0], Stars2: t[1], Stars3: t[2], Stars4: t[3], Stars5: t[4]}
}

func (c TallyColumns) toDomain() rating.Tally {
	return rating.Tally{c.Stars1, c.Stars2, c.Stars3, c.Stars4, c.Stars5}
}

func toShowModel(s *catalog.Show) *ShowModel {
	m := &ShowModel{
		ID:              s.ID,
		ShowDate:        s.Date,
		ShowYear:        s.Year,
		VenueName:       s.Venue.Name,
		VenueKey:        s.Venue.Key(),
		City:            s.Venue.City,
		Region:          s.Venue.Region,
		Country:         s.Venue.Country,
		Location:        s.Location,
		SetlistRaw:      s.SetlistRaw,
		BestRecordingID: s.BestRecordingID,
		RecordingCount:  s.RecordingCount,
		IsInLibrary:     s.IsInLibrary,
		LibraryAddedAt:  s.LibraryAddedAt,
		CachedAt:        s.CachedAt,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
	if m.ShowYear == 0 {
		m.ShowYear = catalog.YearOf(s.Date)
	}
	if len(s.Setlist) > 0 {
		if data, err := json.Marshal(s.Setlist); err == nil {
			m.SetlistJSON = string(data)
		}
	}
	if r := s.Rating; r != nil {
		weighted, raw := r.Weighted, r.Raw
		m.Rating = &weighted
		m.RawRating = &raw
		m.ReviewCount = r.ReviewCount
		m.Confidence = r.Confidence
		m.HighRatings = r.HighCount
		m.LowRatings = r.LowCount
		m.Tally = toTallyColumns(r.Distribution)
	}
	return m
}

func toDomainShow(m *ShowModel) *catalog.Show {
	s := &catalog.Show{
		ID:   m.ID,
		Date: m.ShowDate,
		Year: m.ShowYear,
		Venue: catalog.Venue{
			Name:    m.VenueName,
			City:    m.City,
			Region:  m.Region,
			Country: m.Country,
		},
		Location:        m.Location,
		SetlistRaw:      m.SetlistRaw,
		BestRecordingID: m.BestRecordingID,
		RecordingCount:  m.RecordingCount,
		IsInLibrary:     m.IsInLibrary,
		LibraryAddedAt:  m.LibraryAddedAt,
		CachedAt:        m.CachedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.SetlistJSON != "" {
		_ = json.Unmarshal([]byte(m.SetlistJSON), &s.Setlist)
	}
	if m.Rating != nil {
		r := &rating.Rating{
			Weighted:     *m.Rating,
			ReviewCount:  m.ReviewCount,
			Confidence:   m.Confidence,
			HighCount:    m.HighRatings,
			LowCount:     m.LowRatings,
			Distribution: m.Tally.toDomain(),
		}
		if m.RawRating != nil {
			r.Raw = *m.RawRating
		}
		s.Rating = r
	}
	return s
}

func toRecordingModel(r *catalog.Recording) *RecordingModel {
	m := &RecordingModel{
		ID:           r.ID,
		ShowID:       r.ShowID,
		Title:        r.Title,
		RawDate:      r.Date,
		RawVenue:     r.VenueName,
		Location:     r.Location,
		SourceType:   string(r.SourceType),
		Source:       r.Source,
		Taper:        r.Taper,
		Transferer:   r.Transferer,
		Lineage:      r.Lineage,
		Tally:        toTallyColumns(r.Tally),
		Hydrated:     r.Hydrated,
		IsDownloaded: r.IsDownloaded,
		IsInLibrary:  r.IsInLibrary,
		Deleted:      r.Deleted,
		DeletedAt:    r.DeletedAt,
		CachedAt:     r.CachedAt,
	}
	if r.Rating != nil {
		weighted := r.Rating.Weighted
		m.Rating = &weighted
		m.Confidence = r.Rating.Confidence
	}
	return m
}

func toDomainRecording(m *RecordingModel) *catalog.Recording {
	r := &catalog.Recording{
		ID:           m.ID,
		ShowID:       m.ShowID,
		Title:        m.Title,
		Date:         m.RawDate,
		VenueName:    m.RawVenue,
		Location:     m.Location,
		SourceType:   catalog.ParseSourceType(m.SourceType),
		Source:       m.Source,
		Taper:        m.Taper,
		Transferer:   m.Transferer,
		Lineage:      m.Lineage,
		Tally:        m.Tally.toDomain(),
		Hydrated:     m.Hydrated,
		IsDownloaded: m.IsDownloaded,
		IsInLibrary:  m.IsInLibrary,
		Deleted:      m.Deleted,
		DeletedAt:    m.DeletedAt,
		CachedAt:     m.CachedAt,
	}
	if m.Rating != nil {
		t := r.Tally
		r.Rating = &rating.Rating{
			Weighted:     *m.Rating,
			Raw:          *m.Rating,
			ReviewCount:  t.Count(),
			Confidence:   m.Confidence,
			HighCount:    t.Stars(4) + t.Stars(5),
			LowCount:     t.Stars(1) + t.Stars(2),
			Distribution: t,
		}
	}
	return r
}

func toTrackModel(t catalog.Track, position int) *TrackModel {
	return &TrackModel{
		RecordingID: t.RecordingID,
		Filename:    t.Filename,
		Position:    position,
		Title:       t.Title,
		TrackNumber: t.TrackNumber,
		SetNumber:   t.SetNumber,
		Format:      t.Format,
		DurationMs:  t.Duration.Milliseconds(),
		Size:        t.Size,
		URL:         t.URL,
	}
}

func toDomainTrack(m *TrackModel) catalog.Track {
	return catalog.Track{
		RecordingID: m.RecordingID,
		Filename:    m.Filename,
		Title:       m.Title,
		TrackNumber: m.TrackNumber,
		SetNumber:   m.SetNumber,
		Format:      m.Format,
		Duration:    time.Duration(m.DurationMs) * time.Millisecond,
		Size:        m.Size,
		URL:         m.URL,
	}
}

func toFavoriteModel(f catalog.FavoriteItem) *FavoriteModel {
	return &FavoriteModel{
		ID:            f.ID,
		Type:          string(f.Type),
		ShowID:        f.ShowID,
		TrackFilename: f.TrackFilename,
		CreatedAt:     f.CreatedAt,
	}
}

func toDomainFavorite(m *FavoriteModel) catalog.FavoriteItem {
	return catalog.FavoriteItem{
		ID:            m.ID,
		Type:          catalog.FavoriteType(m.Type),
		ShowID:        m.ShowID,
		TrackFilename: m.TrackFilename,
		CreatedAt:     m.CreatedAt,
	}
}

func toDownloadModel(e *download.Entry) *DownloadModel {
	s := e.Snapshot()
	m := &DownloadModel{
		ID:              s.ID,
		ShowID:          s.ShowID,
		RecordingID:     s.RecordingID,
		TrackFilename:   s.TrackFilename,
		URL:             s.URL,
		Status:          string(s.Status),
		BytesDownloaded: s.BytesDownloaded,
		TotalBytes:      s.TotalBytes,
		LocalPath:       s.LocalPath,
		ErrorMessage:    s.ErrorMessage,
		StartedAt:       s.StartedAt,
		CompletedAt:     s.CompletedAt,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
	if !math.IsNaN(s.Progress) {
		p := s.Progress
		m.Progress = &p
	}
	return m
}

func toDomainDownload(m *DownloadModel) *download.Entry {
	progress := math.NaN()
	if m.Progress != nil {
		progress = *m.Progress
	}
	return download.Restore(download.Snapshot{
		ID:              m.ID,
		ShowID:          m.ShowID,
		RecordingID:     m.RecordingID,
		TrackFilename:   m.TrackFilename,
		URL:             m.URL,
		Status:          download.Status(m.Status),
		Progress:        progress,
		BytesDownloaded: m.BytesDownloaded,
		TotalBytes:      m.TotalBytes,
		LocalPath:       m.LocalPath,
		ErrorMessage:    m.ErrorMessage,
		StartedAt:       m.StartedAt,
		CompletedAt:     m.CompletedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	})
}
