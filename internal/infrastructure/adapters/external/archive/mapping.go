package archive

import (
	"math"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/narwhalmedia/deadarchive/internal/domain/catalog"
	"github.com/narwhalmedia/deadarchive/internal/domain/rating"
)

// discTrackPattern matches "d1t01" style disc/track markers in filenames
var discTrackPattern = regexp.MustCompile(`(?i)d(\d+)t(\d+)`)

var audioFormats = []string{"mp3", "flac", "ogg", "shorten", "m4a", "wav"}

// ToRecording maps a metadata response onto a hydrated recording. The
// review tally is exact; tracks are the item's audio files in item order.
func (r *MetadataResponse) ToRecording(downloadBase string) *catalog.Recording {
	md := r.Metadata
	id := md.Identifier.String()

	rec := &catalog.Recording{
		ID:         id,
		Title:      md.Title.String(),
		Date:       md.Date.First(),
		VenueName:  md.Venue.First(),
		Location:   md.Coverage.First(),
		Source:     md.Source.String(),
		Taper:      md.Taper.String(),
		Transferer: md.Transferer.String(),
		Lineage:    md.Lineage.String(),
		Tally:      TallyFromReviews(r.Reviews),
		Hydrated:   true,
	}
	rec.SourceType = sourceTypeOf(md.Source.String(), id, md.Title.String(), md.Description.String())

	for _, f := range r.Files {
		if t, ok := toTrack(id, f, downloadBase); ok {
			rec.Tracks = append(rec.Tracks, t)
		}
	}
	return rec
}

// ToRecording maps a search hit onto an unhydrated recording. The tally
// is approximated from the reported average and review count.
func (d *SearchDoc) ToRecording() *catalog.Recording {
	id := d.Identifier.String()
	return &catalog.Recording{
		ID:         id,
		Title:      d.Title.String(),
		Date:       d.Date.First(),
		VenueName:  d.Venue.First(),
		Location:   d.Coverage.First(),
		Source:     d.Source.String(),
		SourceType: sourceTypeOf(d.Source.String(), id, d.Title.String(), d.Description.String()),
		Tally:      rating.TallyFromAverage(float64(d.AvgRating), int(d.NumReviews)),
	}
}

// TallyFromReviews buckets review stars. Reviews without stars are
// dropped; fractional stars are rounded and clamped into 1..5.
func TallyFromReviews(reviews []Review) rating.Tally {
	var t rating.Tally
	for _, rv := range reviews {
		stars := float64(rv.Stars)
		if stars <= 0 || math.IsNaN(stars) {
			continue
		}
		t = t.Add(int(math.Max(1, math.Min(5, math.Round(stars)))))
	}
	return t
}

// sourceTypeOf prefers an explicit source field and falls back to scanning
// the identifier, title and description.
func sourceTypeOf(source string, texts ...string) catalog.SourceType {
	if st := catalog.ExtractSourceType(source); st != catalog.SourceUnknown {
		return st
	}
	return catalog.ExtractSourceType(texts...)
}

func toTrack(id string, f File, downloadBase string) (catalog.Track, bool) {
	name := f.Name.String()
	format := f.Format.String()
	if name == "" || !isAudio(format, name) {
		return catalog.Track{}, false
	}
	t := catalog.Track{
		RecordingID: id,
		Filename:    name,
		Title:       f.Title.String(),
		TrackNumber: int(f.Track),
		SetNumber:   1,
		Format:      format,
		Duration:    parseLength(f.Length.String()),
		Size:        int64(f.Size),
		URL:         downloadBase + "/" + url.PathEscape(id) + "/" + escapePath(name),
	}
	if m := discTrackPattern.FindStringSubmatch(path.Base(name)); m != nil {
		t.SetNumber, _ = strconv.Atoi(m[1])
		if t.TrackNumber == 0 {
			t.TrackNumber, _ = strconv.Atoi(m[2])
		}
	}
	if t.Title == "" {
		t.Title = strings.TrimSuffix(path.Base(name), path.Ext(name))
	}
	return t, true
}

func isAudio(format, name string) bool {
	f := strings.ToLower(format)
	for _, a := range audioFormats {
		if strings.Contains(f, a) {
			return true
		}
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	for _, a := range audioFormats {
		if ext == a {
			return true
		}
	}
	return false
}

// parseLength accepts "432.5" seconds, "7:12" or "1:07:12".
func parseLength(s string) time.Duration {
	if s == "" {
		return 0
	}
	if !strings.Contains(s, ":") {
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil || secs < 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}

	var total float64
	for _, part := range strings.Split(s, ":") {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0
		}
		total = total*60 + v
	}
	return time.Duration(total * float64(time.Second))
}

func escapePath(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
