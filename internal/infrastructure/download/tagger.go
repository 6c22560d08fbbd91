package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2"

	"github.com/narwhalmedia/deadarchive/internal/domain/catalog"
	"github.com/narwhalmedia/deadarchive/internal/domain/download"
)

// DefaultArtist is written to the artist frames of downloaded tracks
const DefaultArtist = "Grateful Dead"

// ID3Tagger writes ID3 frames to downloaded MP3 files using the cached
// show and recording metadata.
type ID3Tagger struct {
	store  catalog.Store
	artist string
}

var _ download.Tagger = (*ID3Tagger)(nil)

// NewID3Tagger creates a tagger reading track metadata from store
func NewID3Tagger(store catalog.Store) *ID3Tagger {
	return &ID3Tagger{store: store, artist: DefaultArtist}
}

// Tag writes title, artist, album, date, set and track frames. Files that
// are not MP3 are left alone.
func (t *ID3Tagger) Tag(ctx context.Context, entry *download.Entry, path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".mp3") {
		return nil
	}

	show, err := t.store.GetShow(ctx, entry.ShowID())
	if err != nil {
		return fmt.Errorf("failed to load show for tagging: %w", err)
	}
	track := trackFor(show, entry)

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		tag = id3v2.NewEmptyTag()
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetArtist(t.artist)
	tag.AddTextFrame("TPE2", id3v2.EncodingUTF8, t.artist)
	tag.SetAlbum(albumTitle(show))
	tag.SetYear(strconv.Itoa(show.Year))
	tag.AddTextFrame("TDRC", id3v2.EncodingUTF8, show.Date)

	if track != nil {
		if track.Title != "" {
			tag.SetTitle(track.Title)
		}
		if track.TrackNumber > 0 {
			tag.AddTextFrame("TRCK", id3v2.EncodingUTF8, strconv.Itoa(track.TrackNumber))
		}
		if track.SetNumber > 0 {
			tag.AddTextFrame("TPOS", id3v2.EncodingUTF8, strconv.Itoa(track.SetNumber))
		}
	}

	if rec := show.Recording(entry.RecordingID()); rec != nil {
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding:    id3v2.EncodingUTF8,
			Language:    "eng",
			Description: "source",
			Text:        strings.TrimSpace(rec.ID + " " + string(rec.SourceType)),
		})
	}

	return tag.Save()
}

func albumTitle(show *catalog.Show) string {
	title := show.Date + " " + show.Venue.Name
	if show.Location != "" {
		title += ", " + show.Location
	}
	return title
}

func trackFor(show *catalog.Show, entry *download.Entry) *catalog.Track {
	if rec := show.Recording(entry.RecordingID()); rec != nil {
		if t := rec.Track(entry.TrackFilename()); t != nil {
			return t
		}
	}
	for _, rec := range show.ActiveRecordings() {
		if t := rec.Track(entry.TrackFilename()); t != nil {
			return t
		}
	}
	return nil
}
