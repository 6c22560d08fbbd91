package download

import (
	"context"
	"io"
)

// Service defines the download lifecycle operations
type Service interface {
	// StartDownload queues a track and returns its entry ID. Existing
	// entries are left untouched unless FAILED or CANCELLED, which restart.
	StartDownload(ctx context.Context, showID, recordingID, trackFilename, url string) (string, error)
	PauseDownload(ctx context.Context, id string) error
	ResumeDownload(ctx context.Context, id string) error
	CancelDownload(ctx context.Context, id string) error
	RemoveDownload(ctx context.Context, id string) error
	// MarkStarted moves a queued entry to DOWNLOADING for an engine that
	// runs transfers outside the manager.
	MarkStarted(ctx context.Context, id string) error
	UpdateProgress(ctx context.Context, id string, fraction float64, bytesDownloaded, totalBytes int64) error
	MarkCompleted(ctx context.Context, id, localPath string) error
	MarkFailed(ctx context.Context, id, message string) error
	GetDownload(ctx context.Context, id string) (*Entry, error)
	GetDownloadEntries(ctx context.Context) ([]*Entry, error)
	// WatchDownloads emits the full entry list now and after every change
	// until ctx is done.
	WatchDownloads(ctx context.Context) <-chan []*Entry
}

// Repository defines the download repository interface
type Repository interface {
	Save(ctx context.Context, entry *Entry) error
	FindByID(ctx context.Context, id string) (*Entry, error)
	FindAll(ctx context.Context) ([]*Entry, error)
	FindByStatus(ctx context.Context, statuses ...Status) ([]*Entry, error)
	// ActiveShowIDs returns shows that have at least one active entry
	ActiveShowIDs(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
}

// Progress is a transfer progress report
type Progress struct {
	BytesDownloaded int64
	TotalBytes      int64
	Speed           int64 // bytes per second
}

// Fraction returns the completed share in [0,1], or 0 when the size is unknown
func (p Progress) Fraction() float64 {
	if p.TotalBytes <= 0 {
		return 0
	}
	return float64(p.BytesDownloaded) / float64(p.TotalBytes)
}

// Fetcher transfers a remote file
type Fetcher interface {
	// Fetch writes source into destination starting at offset. An offset
	// above zero requests a ranged resume.
	Fetch(ctx context.Context, source string, destination io.WriteSeeker, offset int64, progress chan<- Progress) error
}

// Tagger writes track metadata into a finished file
type Tagger interface {
	Tag(ctx context.Context, entry *Entry, path string) error
}
