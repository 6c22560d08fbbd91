package download

import (
	"fmt"
	"time"
)

// Status represents the lifecycle state of a download entry
type Status string

const (
	StatusQueued      Status = "QUEUED"
	StatusDownloading Status = "DOWNLOADING"
	StatusPaused      Status = "PAUSED"
	StatusCompleted   Status = "COMPLETED"
	StatusFailed      Status = "FAILED"
	StatusCancelled   Status = "CANCELLED"
)

// IsActive reports whether the entry holds or will hold local data.
// Shows with active entries are exempt from cache eviction.
func (s Status) IsActive() bool {
	switch s {
	case StatusQueued, StatusDownloading, StatusPaused, StatusCompleted:
		return true
	}
	return false
}

// ActiveStatuses lists every status for which IsActive is true
func ActiveStatuses() []Status {
	return []Status{StatusQueued, StatusDownloading, StatusPaused, StatusCompleted}
}

// EntryID returns the deterministic identity "{showId}_{trackFilename}".
// The filename is used verbatim.
func EntryID(showID, trackFilename string) string {
	return showID + "_" + trackFilename
}

// Entry tracks the download of one track
type Entry struct {
	id              string
	showID          string
	recordingID     string
	trackFilename   string
	url             string
	status          Status
	progress        float64
	bytesDownloaded int64
	totalBytes      int64
	localPath       string
	errorMessage    string
	startedAt       time.Time
	completedAt     *time.Time
	createdAt       time.Time
	updatedAt       time.Time
}

// NewEntry creates a queued entry
func NewEntry(showID, recordingID, trackFilename, url string, now time.Time) (*Entry, error) {
	if showID == "" {
		return nil, fmt.Errorf("show ID is required")
	}
	if trackFilename == "" {
		return nil, fmt.Errorf("track filename is required")
	}

	return &Entry{
		id:            EntryID(showID, trackFilename),
		showID:        showID,
		recordingID:   recordingID,
		trackFilename: trackFilename,
		url:           url,
		status:        StatusQueued,
		startedAt:     now,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// Snapshot is the persisted form of an Entry
type Snapshot struct {
	ID              string
	ShowID          string
	RecordingID     string
	TrackFilename   string
	URL             string
	Status          Status
	Progress        float64
	BytesDownloaded int64
	TotalBytes      int64
	LocalPath       string
	ErrorMessage    string
	StartedAt       time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Restore rebuilds an entry from storage without running transitions
func Restore(s Snapshot) *Entry {
	return &Entry{
		id:              s.ID,
		showID:          s.ShowID,
		recordingID:     s.RecordingID,
		trackFilename:   s.TrackFilename,
		url:             s.URL,
		status:          s.Status,
		progress:        s.Progress,
		bytesDownloaded: s.BytesDownloaded,
		totalBytes:      s.TotalBytes,
		localPath:       s.LocalPath,
		errorMessage:    s.ErrorMessage,
		startedAt:       s.StartedAt,
		completedAt:     s.CompletedAt,
		createdAt:       s.CreatedAt,
		updatedAt:       s.UpdatedAt,
	}
}

// Snapshot returns the persisted form of the entry
func (e *Entry) Snapshot() Snapshot {
	return Snapshot{
		ID:              e.id,
		ShowID:          e.showID,
		RecordingID:     e.recordingID,
		TrackFilename:   e.trackFilename,
		URL:             e.url,
		Status:          e.status,
		Progress:        e.progress,
		BytesDownloaded: e.bytesDownloaded,
		TotalBytes:      e.totalBytes,
		LocalPath:       e.localPath,
		ErrorMessage:    e.errorMessage,
		StartedAt:       e.startedAt,
		CompletedAt:     e.completedAt,
		CreatedAt:       e.createdAt,
		UpdatedAt:       e.updatedAt,
	}
}

// Getters
func (e *Entry) ID() string               { return e.id }
func (e *Entry) ShowID() string           { return e.showID }
func (e *Entry) RecordingID() string      { return e.recordingID }
func (e *Entry) TrackFilename() string    { return e.trackFilename }
func (e *Entry) URL() string              { return e.url }
func (e *Entry) Status() Status           { return e.status }
func (e *Entry) Progress() float64        { return e.progress }
func (e *Entry) BytesDownloaded() int64   { return e.bytesDownloaded }
func (e *Entry) TotalBytes() int64        { return e.totalBytes }
func (e *Entry) LocalPath() string        { return e.localPath }
func (e *Entry) ErrorMessage() string     { return e.errorMessage }
func (e *Entry) StartedAt() time.Time     { return e.startedAt }
func (e *Entry) CompletedAt() *time.Time  { return e.completedAt }
func (e *Entry) CreatedAt() time.Time     { return e.createdAt }
func (e *Entry) UpdatedAt() time.Time     { return e.updatedAt }

// CanRestart reports whether StartDownload should re-queue the entry
func (e *Entry) CanRestart() bool {
	return e.status == StatusFailed || e.status == StatusCancelled
}

// Restart re-queues a failed or cancelled entry, clearing progress and error
func (e *Entry) Restart(url string, now time.Time) error {
	if !e.CanRestart() {
		return fmt.Errorf("cannot restart download in status %s", e.status)
	}

	if url != "" {
		e.url = url
	}
	e.status = StatusQueued
	e.progress = 0
	e.bytesDownloaded = 0
	e.totalBytes = 0
	e.errorMessage = ""
	e.localPath = ""
	e.startedAt = now
	e.updatedAt = now
	return nil
}

// Begin marks a queued entry as downloading
func (e *Entry) Begin(now time.Time) error {
	if e.status != StatusQueued {
		return fmt.Errorf("cannot begin download in status %s", e.status)
	}

	e.status = StatusDownloading
	e.updatedAt = now
	return nil
}

// Pause pauses a running download
func (e *Entry) Pause(now time.Time) error {
	if e.status != StatusDownloading {
		return fmt.Errorf("cannot pause download in status %s", e.status)
	}

	e.status = StatusPaused
	e.updatedAt = now
	return nil
}

// Resume re-queues a paused download; progress is kept for a ranged resume
func (e *Entry) Resume(now time.Time) error {
	if e.status != StatusPaused {
		return fmt.Errorf("cannot resume download in status %s", e.status)
	}

	e.status = StatusQueued
	e.updatedAt = now
	return nil
}

// Cancel stops a queued, running or paused download
func (e *Entry) Cancel(now time.Time) error {
	switch e.status {
	case StatusQueued, StatusDownloading, StatusPaused:
	default:
		return fmt.Errorf("cannot cancel download in status %s", e.status)
	}

	e.status = StatusCancelled
	e.updatedAt = now
	return nil
}

// Complete marks the download as finished. It is the only transition that
// sets the completion time.
func (e *Entry) Complete(localPath string, now time.Time) error {
	if e.status != StatusDownloading {
		return fmt.Errorf("cannot complete download in status %s", e.status)
	}

	e.status = StatusCompleted
	e.localPath = localPath
	e.completedAt = &now
	e.updatedAt = now
	return nil
}

// Fail records a failure of a queued or running download
func (e *Entry) Fail(message string, now time.Time) error {
	switch e.status {
	case StatusQueued, StatusDownloading:
	default:
		return fmt.Errorf("cannot fail download in status %s", e.status)
	}

	e.status = StatusFailed
	e.errorMessage = message
	e.updatedAt = now
	return nil
}

// UpdateProgress stores progress as reported. Values are not range checked;
// NaN and out-of-range fractions pass through unchanged.
func (e *Entry) UpdateProgress(fraction float64, bytesDownloaded, totalBytes int64, now time.Time) {
	e.progress = fraction
	e.bytesDownloaded = bytesDownloaded
	e.totalBytes = totalBytes
	e.updatedAt = now
}
