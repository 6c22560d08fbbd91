package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/grafov/m3u8"

	"github.com/narwhalmedia/deadarchive/internal/domain/catalog"
	"github.com/narwhalmedia/deadarchive/internal/domain/download"
	apperrors "github.com/narwhalmedia/deadarchive/pkg/errors"
)

// FindTrack returns a track of any active recording of a show
func (r *SyncRepository) FindTrack(ctx context.Context, showID, filename string) (*catalog.Track, error) {
	show, err := r.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}
	track := findTrack(show, filename)
	if track == nil || track.URL == "" {
		return nil, apperrors.NotFound(fmt.Sprintf("track %s not found in show %s", filename, showID))
	}
	return track, nil
}

// ResolveDownloadURL returns the remote URL of a show's track
func (r *SyncRepository) ResolveDownloadURL(ctx context.Context, showID, filename string) (string, error) {
	track, err := r.FindTrack(ctx, showID, filename)
	if err != nil {
		return "", err
	}
	return track.URL, nil
}

// ResolveTrackURI returns the local file of a completed download, or the
// stream URL when the track is not available offline.
func (r *SyncRepository) ResolveTrackURI(ctx context.Context, showID, filename string) (string, error) {
	entry, err := r.downloads.FindByID(ctx, download.EntryID(showID, filename))
	switch {
	case err == nil:
		if entry.Status() == download.StatusCompleted && entry.LocalPath() != "" {
			return entry.LocalPath(), nil
		}
	case !apperrors.IsNotFound(err):
		return "", err
	}
	return r.ResolveDownloadURL(ctx, showID, filename)
}

// PlaylistForShow renders the best recording of a show as an M3U playlist
// of resolved track URIs in set order. When a recording carries several
// formats only the MP3 files are listed.
func (r *SyncRepository) PlaylistForShow(ctx context.Context, showID string) (string, error) {
	show, err := r.GetShow(ctx, showID)
	if err != nil {
		return "", err
	}

	rec := playlistRecording(show)
	if rec == nil {
		return "", apperrors.NotFound(fmt.Sprintf("show %s has no playable tracks", showID))
	}
	tracks := playableTracks(rec.Tracks)

	playlist, err := m3u8.NewMediaPlaylist(0, uint(len(tracks)))
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrorTypeInternal, "creating playlist", err)
	}
	playlist.MediaType = m3u8.VOD

	for _, t := range tracks {
		uri, err := r.ResolveTrackURI(ctx, showID, t.Filename)
		if err != nil {
			return "", err
		}
		if err := playlist.Append(uri, t.Duration.Seconds(), t.Title); err != nil {
			return "", apperrors.Wrap(apperrors.ErrorTypeInternal, "appending track", err)
		}
	}
	playlist.Close()

	return playlist.Encode().String(), nil
}

func playlistRecording(show *catalog.Show) *catalog.Recording {
	if best := show.BestRecording(); best != nil && !best.Deleted && len(best.Tracks) > 0 {
		return best
	}
	for _, rec := range show.ActiveRecordings() {
		if len(rec.Tracks) > 0 {
			return rec
		}
	}
	return nil
}

func playableTracks(tracks []catalog.Track) []catalog.Track {
	var mp3 []catalog.Track
	for _, t := range tracks {
		if strings.Contains(strings.ToLower(t.Format), "mp3") || strings.HasSuffix(strings.ToLower(t.Filename), ".mp3") {
			mp3 = append(mp3, t)
		}
	}
	if len(mp3) == 0 {
		mp3 = append(mp3, tracks...)
	}

	sort.SliceStable(mp3, func(i, j int) bool {
		if mp3[i].SetNumber != mp3[j].SetNumber {
			return mp3[i].SetNumber < mp3[j].SetNumber
		}
		return mp3[i].TrackNumber < mp3[j].TrackNumber
	})
	return mp3
}
