package download

import (
	domainevents "github.com/narwhalmedia/deadarchive/internal/domain/events"
)

// StatusChanged is emitted on every lifecycle transition of an entry
type StatusChanged struct {
	domainevents.BaseEvent
	ShowID        string `json:"show_id"`
	TrackFilename string `json:"track_filename"`
	From          Status `json:"from"`
	To            Status `json:"to"`
	Error         string `json:"error,omitempty"`
}

func newStatusChanged(e *Entry, eventType string, from Status) *StatusChanged {
	return &StatusChanged{
		BaseEvent:     domainevents.NewBaseEvent(e.ID(), "Download", eventType, 1),
		ShowID:        e.ShowID(),
		TrackFilename: e.TrackFilename(),
		From:          from,
		To:            e.Status(),
		Error:         e.ErrorMessage(),
	}
}

// NewDownloadQueued creates an event for a newly queued or restarted entry
func NewDownloadQueued(e *Entry, from Status) *StatusChanged {
	return newStatusChanged(e, "DownloadQueued", from)
}

// NewDownloadStarted creates an event for an entry that began transferring
func NewDownloadStarted(e *Entry) *StatusChanged {
	return newStatusChanged(e, "DownloadStarted", StatusQueued)
}

// NewDownloadPaused creates an event for a paused entry
func NewDownloadPaused(e *Entry) *StatusChanged {
	return newStatusChanged(e, "DownloadPaused", StatusDownloading)
}

// NewDownloadResumed creates an event for a resumed entry
func NewDownloadResumed(e *Entry) *StatusChanged {
	return newStatusChanged(e, "DownloadResumed", StatusPaused)
}

// NewDownloadCancelled creates an event for a cancelled entry
func NewDownloadCancelled(e *Entry, from Status) *StatusChanged {
	return newStatusChanged(e, "DownloadCancelled", from)
}

// NewDownloadFailed creates an event for a failed entry
func NewDownloadFailed(e *Entry, from Status) *StatusChanged {
	return newStatusChanged(e, "DownloadFailed", from)
}

// DownloadCompleted is emitted when a track finished downloading
type DownloadCompleted struct {
	StatusChanged
	LocalPath string `json:"local_path"`
	Bytes     int64  `json:"bytes"`
}

// NewDownloadCompleted creates a new DownloadCompleted event
func NewDownloadCompleted(e *Entry) *DownloadCompleted {
	return &DownloadCompleted{
		StatusChanged: *newStatusChanged(e, "DownloadCompleted", StatusDownloading),
		LocalPath:     e.LocalPath(),
		Bytes:         e.BytesDownloaded(),
	}
}

// DownloadRemoved is emitted when an entry is deleted
type DownloadRemoved struct {
	domainevents.BaseEvent
	ShowID string `json:"show_id"`
}

// NewDownloadRemoved creates a new DownloadRemoved event
func NewDownloadRemoved(e *Entry) *DownloadRemoved {
	return &DownloadRemoved{
		BaseEvent: domainevents.NewBaseEvent(e.ID(), "Download", "DownloadRemoved", 1),
		ShowID:    e.ShowID(),
	}
}
