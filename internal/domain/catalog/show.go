package catalog

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/narwhalmedia/deadarchive/internal/domain/rating"
)

// Venue identifies where a show took place
type Venue struct {
	Name    string `json:"name"`
	City    string `json:"city,omitempty"`
	Region  string `json:"region,omitempty"`
	Country string `json:"country,omitempty"`
}

// Key returns the normalized venue key used in show identities
func (v Venue) Key() string {
	return NormalizeVenue(v.Name)
}

// ParseLocation splits "Ithaca, NY" or "London, England, UK" into parts.
func ParseLocation(location string) (city, region, country string) {
	parts := strings.Split(location, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch len(parts) {
	case 0:
	case 1:
		city = parts[0]
	case 2:
		city, region = parts[0], parts[1]
	default:
		city, region, country = parts[0], parts[1], parts[len(parts)-1]
	}
	return city, region, country
}

// Set is one ordered block of songs in a setlist
type Set struct {
	Name  string   `json:"name"`
	Songs []string `json:"songs"`
}

// Show is one performance, the aggregate of every recording sharing its
// date and normalized venue.
type Show struct {
	ID              string
	Date            string
	Year            int
	Venue           Venue
	Location        string
	SetlistRaw      string
	Setlist         []Set
	Rating          *rating.Rating
	BestRecordingID string
	RecordingCount  int
	Recordings      []*Recording
	IsInLibrary     bool
	LibraryAddedAt  *time.Time
	CachedAt        time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewShow creates an empty show aggregate for the recording's identity.
func NewShow(rec *Recording) (*Show, error) {
	date, err := NormalizeDate(rec.Date)
	if err != nil {
		return nil, fmt.Errorf("recording %s: %w", rec.ID, err)
	}

	city, region, country := ParseLocation(rec.Location)
	return &Show{
		ID:   GenerateShowID(date, rec.VenueName),
		Date: date,
		Year: YearOf(date),
		Venue: Venue{
			Name:    strings.TrimSpace(rec.VenueName),
			City:    city,
			Region:  region,
			Country: country,
		},
		Location: strings.TrimSpace(rec.Location),
	}, nil
}

// IsFresh reports whether the show was cached less than ttl before now
func (s *Show) IsFresh(now time.Time, ttl time.Duration) bool {
	return !s.CachedAt.IsZero() && now.Sub(s.CachedAt) < ttl
}

// ActiveRecordings returns recordings that are not soft-deleted
func (s *Show) ActiveRecordings() []*Recording {
	active := make([]*Recording, 0, len(s.Recordings))
	for _, r := range s.Recordings {
		if !r.Deleted {
			active = append(active, r)
		}
	}
	return active
}

// Recording returns the recording with the given ID, or nil
func (s *Show) Recording(id string) *Recording {
	for _, r := range s.Recordings {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// BestRecording returns the selected best recording, or nil
func (s *Show) BestRecording() *Recording {
	if s.BestRecordingID == "" {
		return nil
	}
	return s.Recording(s.BestRecordingID)
}

// Songs returns every song in setlist order
func (s *Show) Songs() []string {
	var songs []string
	for _, set := range s.Setlist {
		songs = append(songs, set.Songs...)
	}
	return songs
}

// Recording is a single source of a show's audio
type Recording struct {
	ID         string
	ShowID     string
	Title      string
	Date       string
	VenueName  string
	Location   string
	SourceType SourceType
	Source     string
	Taper      string
	Transferer string
	Lineage    string
	Tally      rating.Tally
	Rating     *rating.Rating
	// Hydrated is set once tracks and the exact review tally were fetched.
	Hydrated     bool
	Tracks       []Track
	IsDownloaded bool
	IsInLibrary  bool
	Deleted      bool
	DeletedAt    *time.Time
	CachedAt     time.Time
}

// ShowKey returns the identity of the show this recording belongs to
func (r *Recording) ShowKey() (string, error) {
	date, err := NormalizeDate(r.Date)
	if err != nil {
		return "", err
	}
	return GenerateShowID(date, r.VenueName), nil
}

// Track returns the track with the given filename, or nil
func (r *Recording) Track(filename string) *Track {
	for i := range r.Tracks {
		if r.Tracks[i].Filename == filename {
			return &r.Tracks[i]
		}
	}
	return nil
}

// Track is one audio file of a recording, identified by (recording, filename)
type Track struct {
	RecordingID string
	Filename    string
	Title       string
	TrackNumber int
	SetNumber   int
	Format      string
	Duration    time.Duration
	Size        int64
	URL         string
}

// SetlistFromTracks derives ordered sets from track titles. Tracks present
// in several formats are counted once per (set, track number).
func SetlistFromTracks(tracks []Track) []Set {
	type slot struct{ set, num int }
	seen := make(map[slot]bool)

	ordered := make([]Track, len(tracks))
	copy(ordered, tracks)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].SetNumber != ordered[j].SetNumber {
			return ordered[i].SetNumber < ordered[j].SetNumber
		}
		return ordered[i].TrackNumber < ordered[j].TrackNumber
	})

	var sets []Set
	for _, t := range ordered {
		title := strings.TrimSpace(t.Title)
		if title == "" {
			continue
		}
		key := slot{t.SetNumber, t.TrackNumber}
		if t.TrackNumber > 0 && seen[key] {
			continue
		}
		seen[key] = true

		name := fmt.Sprintf("Set %d", max(t.SetNumber, 1))
		if len(sets) == 0 || sets[len(sets)-1].Name != name {
			sets = append(sets, Set{Name: name})
		}
		sets[len(sets)-1].Songs = append(sets[len(sets)-1].Songs, title)
	}
	return sets
}

// FormatSetlist renders sets as "Set 1: A, B; Set 2: C"
func FormatSetlist(sets []Set) string {
	parts := make([]string, 0, len(sets))
	for _, s := range sets {
		parts = append(parts, s.Name+": "+strings.Join(s.Songs, ", "))
	}
	return strings.Join(parts, "; ")
}
