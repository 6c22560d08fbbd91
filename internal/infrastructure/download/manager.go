// Package download runs the track download lifecycle: entry state
// transitions, transfer workers, file placement and tagging.
package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/narwhalmedia/deadarchive/internal/domain/download"
	"github.com/narwhalmedia/deadarchive/internal/domain/events"
	apperrors "github.com/narwhalmedia/deadarchive/pkg/errors"
	"github.com/narwhalmedia/deadarchive/pkg/keylock"
)

const partialSuffix = ".part"

// ManagerConfig holds download manager settings
type ManagerConfig struct {
	Dir         string
	Concurrency int
	// AutoStart runs queued entries through the fetcher. Without it the
	// manager only records state reported by an external engine.
	AutoStart bool
}

// Manager implements download.Service. Transitions of one entry are
// serialized; different entries proceed in parallel, with at most
// Concurrency transfers running at once.
type Manager struct {
	repo      download.Repository
	fetcher   download.Fetcher
	tagger    download.Tagger
	publisher events.EventPublisher
	locks     *keylock.KeyLock
	slots     *semaphore.Weighted
	cfg       ManagerConfig
	logger    *zap.Logger
	now       func() time.Time

	mu     sync.Mutex
	active map[string]context.CancelFunc
	// running holds a channel per entry that closes when its last worker
	// has exited
	running  map[string]chan struct{}
	watchers map[chan struct{}]struct{}

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

var _ download.Service = (*Manager)(nil)

// NewManager creates a new download manager. tagger may be nil.
func NewManager(
	repo download.Repository,
	fetcher download.Fetcher,
	tagger download.Tagger,
	publisher events.EventPublisher,
	cfg ManagerConfig,
	logger *zap.Logger,
) (*Manager, error) {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.AutoStart {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create download directory: %w", err)
		}
	}

	ctx, stop := context.WithCancel(context.Background())
	return &Manager{
		repo:      repo,
		fetcher:   fetcher,
		tagger:    tagger,
		publisher: publisher,
		locks:     keylock.New(),
		slots:     semaphore.NewWeighted(int64(cfg.Concurrency)),
		cfg:       cfg,
		logger:    logger.Named("download-manager"),
		now:       func() time.Time { return time.Now().UTC() },
		active:    make(map[string]context.CancelFunc),
		running:   make(map[string]chan struct{}),
		watchers:  make(map[chan struct{}]struct{}),
		baseCtx:   ctx,
		stop:      stop,
	}, nil
}

// StartDownload queues a track. Queued, running, paused and completed
// entries are returned unchanged; failed and cancelled ones restart.
func (m *Manager) StartDownload(ctx context.Context, showID, recordingID, trackFilename, url string) (string, error) {
	id := download.EntryID(showID, trackFilename)
	unlock := m.locks.Lock(id)
	defer unlock()

	entry, err := m.repo.FindByID(ctx, id)
	switch {
	case err == nil:
		if !entry.CanRestart() {
			return id, nil
		}
		from := entry.Status()
		if err := entry.Restart(url, m.now()); err != nil {
			return "", apperrors.Conflict(err.Error())
		}
		m.removeFile(m.partialPath(entry))
		if err := m.repo.Save(ctx, entry); err != nil {
			return "", err
		}
		m.publish(ctx, download.NewDownloadQueued(entry, from))
	case apperrors.IsNotFound(err):
		entry, err = download.NewEntry(showID, recordingID, trackFilename, url, m.now())
		if err != nil {
			return "", apperrors.BadRequest(err.Error())
		}
		if err := m.repo.Save(ctx, entry); err != nil {
			return "", err
		}
		m.publish(ctx, download.NewDownloadQueued(entry, ""))
	default:
		return "", err
	}

	m.logger.Info("download queued",
		zap.String("id", id),
		zap.String("url", entry.URL()),
	)
	m.notify()
	m.schedule(entry)
	return id, nil
}

// PauseDownload stops a running transfer and keeps its partial file
func (m *Manager) PauseDownload(ctx context.Context, id string) error {
	return m.transition(ctx, id, func(e *download.Entry) (events.Event, error) {
		if err := e.Pause(m.now()); err != nil {
			return nil, err
		}
		m.interrupt(id)
		return download.NewDownloadPaused(e), nil
	})
}

// ResumeDownload re-queues a paused entry; the transfer continues from the
// partial file.
func (m *Manager) ResumeDownload(ctx context.Context, id string) error {
	var resumed *download.Entry
	err := m.transition(ctx, id, func(e *download.Entry) (events.Event, error) {
		if err := e.Resume(m.now()); err != nil {
			return nil, err
		}
		resumed = e
		return download.NewDownloadResumed(e), nil
	})
	if err == nil {
		m.schedule(resumed)
	}
	return err
}

// CancelDownload stops a queued, running or paused entry and drops its
// partial file.
func (m *Manager) CancelDownload(ctx context.Context, id string) error {
	return m.transition(ctx, id, func(e *download.Entry) (events.Event, error) {
		from := e.Status()
		if err := e.Cancel(m.now()); err != nil {
			return nil, err
		}
		m.interrupt(id)
		m.removeFile(m.partialPath(e))
		return download.NewDownloadCancelled(e, from), nil
	})
}

// RemoveDownload deletes an entry in any state along with its files
func (m *Manager) RemoveDownload(ctx context.Context, id string) error {
	unlock := m.locks.Lock(id)
	defer unlock()

	entry, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	m.interrupt(id)

	if err := m.repo.Delete(ctx, id); err != nil {
		return err
	}
	m.removeFile(m.partialPath(entry))
	if entry.LocalPath() != "" {
		m.removeFile(entry.LocalPath())
	}

	m.publish(ctx, download.NewDownloadRemoved(entry))
	m.logger.Info("download removed", zap.String("id", id))
	m.notify()
	return nil
}

// UpdateProgress records progress reported for an entry. Values are
// stored as given.
func (m *Manager) UpdateProgress(ctx context.Context, id string, fraction float64, bytesDownloaded, totalBytes int64) error {
	unlock := m.locks.Lock(id)
	defer unlock()

	entry, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	entry.UpdateProgress(fraction, bytesDownloaded, totalBytes, m.now())
	if err := m.repo.Save(ctx, entry); err != nil {
		return err
	}
	m.notify()
	return nil
}

// MarkStarted records that an external engine began transferring a
// queued entry
func (m *Manager) MarkStarted(ctx context.Context, id string) error {
	return m.transition(ctx, id, func(e *download.Entry) (events.Event, error) {
		if err := e.Begin(m.now()); err != nil {
			return nil, err
		}
		return download.NewDownloadStarted(e), nil
	})
}

// MarkCompleted finishes a running entry
func (m *Manager) MarkCompleted(ctx context.Context, id, localPath string) error {
	return m.transition(ctx, id, func(e *download.Entry) (events.Event, error) {
		if err := e.Complete(localPath, m.now()); err != nil {
			return nil, err
		}
		return download.NewDownloadCompleted(e), nil
	})
}

// MarkFailed records a failure of a queued or running entry
func (m *Manager) MarkFailed(ctx context.Context, id, message string) error {
	return m.transition(ctx, id, func(e *download.Entry) (events.Event, error) {
		from := e.Status()
		if err := e.Fail(message, m.now()); err != nil {
			return nil, err
		}
		m.interrupt(id)
		return download.NewDownloadFailed(e, from), nil
	})
}

// GetDownload returns one entry
func (m *Manager) GetDownload(ctx context.Context, id string) (*download.Entry, error) {
	return m.repo.FindByID(ctx, id)
}

// GetDownloadEntries returns every entry, oldest first
func (m *Manager) GetDownloadEntries(ctx context.Context) ([]*download.Entry, error) {
	return m.repo.FindAll(ctx)
}

// WatchDownloads emits the entry list now and after every change. Changes
// that happen while the consumer is busy are coalesced into one emission.
func (m *Manager) WatchDownloads(ctx context.Context) <-chan []*download.Entry {
	out := make(chan []*download.Entry)
	changed := make(chan struct{}, 1)
	changed <- struct{}{}

	m.mu.Lock()
	m.watchers[changed] = struct{}{}
	m.mu.Unlock()

	go func() {
		defer close(out)
		defer func() {
			m.mu.Lock()
			delete(m.watchers, changed)
			m.mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-changed:
			}

			entries, err := m.repo.FindAll(ctx)
			if err != nil {
				if ctx.Err() == nil {
					m.logger.Error("failed to list downloads", zap.Error(err))
				}
				continue
			}

			select {
			case out <- entries:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// Recover schedules entries left queued or running by a previous process.
// Running entries are re-queued through a pause so their partial files
// are resumed.
func (m *Manager) Recover(ctx context.Context) error {
	entries, err := m.repo.FindByStatus(ctx, download.StatusQueued, download.StatusDownloading)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.Status() == download.StatusDownloading {
			now := m.now()
			if err := entry.Pause(now); err != nil {
				return err
			}
			if err := entry.Resume(now); err != nil {
				return err
			}
			if err := m.repo.Save(ctx, entry); err != nil {
				return err
			}
		}
		m.schedule(entry)
	}

	if len(entries) > 0 {
		m.logger.Info("recovered downloads", zap.Int("count", len(entries)))
		m.notify()
	}
	return nil
}

// Close stops running transfers and waits for their workers. Interrupted
// entries stay DOWNLOADING until Recover runs again.
func (m *Manager) Close() error {
	m.stop()
	m.wg.Wait()
	return nil
}

// transition applies fn to an entry under its lock and persists the result
func (m *Manager) transition(ctx context.Context, id string, fn func(*download.Entry) (events.Event, error)) error {
	unlock := m.locks.Lock(id)
	defer unlock()

	entry, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	event, err := fn(entry)
	if err != nil {
		return apperrors.Conflict(err.Error())
	}
	if err := m.repo.Save(ctx, entry); err != nil {
		return err
	}

	m.publish(ctx, event)
	m.logger.Info("download status changed",
		zap.String("id", id),
		zap.String("event", event.EventType()),
		zap.String("status", string(entry.Status())),
	)
	m.notify()
	return nil
}

// schedule starts a worker for a queued entry. A worker replacing an
// interrupted one waits for it to exit before touching the partial file.
func (m *Manager) schedule(entry *download.Entry) {
	if !m.cfg.AutoStart || m.fetcher == nil || entry.URL() == "" {
		return
	}

	id := entry.ID()
	ctx, cancel := context.WithCancel(m.baseCtx)
	done := make(chan struct{})
	m.mu.Lock()
	if prev, ok := m.active[id]; ok {
		prev()
	}
	m.active[id] = cancel
	prevDone := m.running[id]
	m.running[id] = done
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.exited(id, done)
		defer m.release(ctx, id)
		if prevDone != nil {
			<-prevDone
		}
		m.run(ctx, id)
	}()
}

// exited marks a worker as gone and forgets it if no newer one exists
func (m *Manager) exited(id string, done chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	close(done)
	if m.running[id] == done {
		delete(m.running, id)
	}
}

func (m *Manager) run(ctx context.Context, id string) {
	if err := m.slots.Acquire(ctx, 1); err != nil {
		return
	}
	defer m.slots.Release(1)

	entry, ok := m.begin(ctx, id)
	if !ok {
		return
	}

	started := time.Now()
	path, size, err := m.transfer(ctx, entry)
	if err != nil {
		// only an interrupted worker skips the failure; a fetch that timed
		// out on its own fails the entry
		if ctx.Err() != nil {
			m.discardCancelled(entry)
			return
		}
		m.logger.Warn("download failed", zap.String("id", id), zap.Error(err))
		m.finish(id, func(e *download.Entry) (events.Event, error) {
			from := e.Status()
			if err := e.Fail(err.Error(), m.now()); err != nil {
				return nil, err
			}
			return download.NewDownloadFailed(e, from), nil
		})
		return
	}

	if m.tagger != nil {
		if err := m.tagger.Tag(ctx, entry, path); err != nil {
			m.logger.Warn("failed to tag download", zap.String("id", id), zap.Error(err))
		}
	}

	m.finish(id, func(e *download.Entry) (events.Event, error) {
		if err := e.Complete(path, m.now()); err != nil {
			return nil, err
		}
		return download.NewDownloadCompleted(e), nil
	})
	m.logger.Info("download completed",
		zap.String("id", id),
		zap.String("size", humanize.Bytes(uint64(size))),
		zap.Duration("elapsed", time.Since(started)),
	)
}

// begin moves a queued entry to DOWNLOADING. It reports false when the
// entry changed state while the worker waited for a slot.
func (m *Manager) begin(ctx context.Context, id string) (*download.Entry, bool) {
	unlock := m.locks.Lock(id)
	defer unlock()

	if ctx.Err() != nil {
		return nil, false
	}
	entry, err := m.repo.FindByID(ctx, id)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			m.logger.Error("failed to load download", zap.String("id", id), zap.Error(err))
		}
		return nil, false
	}
	if err := entry.Begin(m.now()); err != nil {
		return nil, false
	}
	if err := m.repo.Save(ctx, entry); err != nil {
		m.logger.Error("failed to save download", zap.String("id", id), zap.Error(err))
		return nil, false
	}

	m.publish(ctx, download.NewDownloadStarted(entry))
	m.notify()
	return entry, true
}

// transfer fetches into the partial file and moves it into place
func (m *Manager) transfer(ctx context.Context, entry *download.Entry) (string, int64, error) {
	partial := m.partialPath(entry)
	if err := os.MkdirAll(filepath.Dir(partial), 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create target directory: %w", err)
	}

	file, err := os.OpenFile(partial, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat file: %w", err)
	}
	offset := stat.Size()
	if offset > 0 {
		m.logger.Info("resuming download",
			zap.String("id", entry.ID()),
			zap.String("offset", humanize.Bytes(uint64(offset))),
		)
	}

	progress := make(chan download.Progress, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			m.report(ctx, entry.ID(), p)
		}
	}()

	err = m.fetcher.Fetch(ctx, entry.URL(), file, offset, progress)
	close(progress)
	<-done
	if err != nil {
		return "", 0, err
	}

	if stat, err = file.Stat(); err != nil {
		return "", 0, fmt.Errorf("failed to stat file: %w", err)
	}
	size := stat.Size()
	if err := file.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to close file: %w", err)
	}

	final := m.finalPath(entry)
	if err := os.Rename(partial, final); err != nil {
		return "", 0, fmt.Errorf("failed to move download into place: %w", err)
	}
	return final, size, nil
}

// report stores transfer progress while the entry is still running
func (m *Manager) report(ctx context.Context, id string, p download.Progress) {
	unlock := m.locks.Lock(id)
	defer unlock()

	if ctx.Err() != nil {
		return
	}
	entry, err := m.repo.FindByID(ctx, id)
	if err != nil || entry.Status() != download.StatusDownloading {
		return
	}
	entry.UpdateProgress(p.Fraction(), p.BytesDownloaded, p.TotalBytes, m.now())
	if err := m.repo.Save(ctx, entry); err != nil {
		m.logger.Warn("failed to save progress", zap.String("id", id), zap.Error(err))
		return
	}
	m.notify()
}

// finish applies a terminal transition unless the entry was changed by a
// user action in the meantime.
func (m *Manager) finish(id string, fn func(*download.Entry) (events.Event, error)) {
	ctx := context.Background()
	unlock := m.locks.Lock(id)
	defer unlock()

	entry, err := m.repo.FindByID(ctx, id)
	if err != nil || entry.Status() != download.StatusDownloading {
		return
	}
	event, err := fn(entry)
	if err != nil {
		m.logger.Error("invalid download transition", zap.String("id", id), zap.Error(err))
		return
	}
	if err := m.repo.Save(ctx, entry); err != nil {
		m.logger.Error("failed to save download state", zap.String("id", id), zap.Error(err))
		return
	}
	m.publish(ctx, event)
	m.notify()
}

// discardCancelled removes a partial file created after the entry was
// cancelled or removed.
func (m *Manager) discardCancelled(entry *download.Entry) {
	unlock := m.locks.Lock(entry.ID())
	defer unlock()

	current, err := m.repo.FindByID(context.Background(), entry.ID())
	if apperrors.IsNotFound(err) || (err == nil && current.Status() == download.StatusCancelled) {
		m.removeFile(m.partialPath(entry))
	}
}

func (m *Manager) interrupt(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.active[id]; ok {
		cancel()
		delete(m.active, id)
	}
}

// release drops the worker registration if it still belongs to ctx
func (m *Manager) release(ctx context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.active[id]; ok && ctx.Err() == nil {
		cancel()
		delete(m.active, id)
	}
}

func (m *Manager) notify() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (m *Manager) publish(ctx context.Context, event events.Event) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishEvent(ctx, event); err != nil {
		m.logger.Warn("failed to publish download event",
			zap.String("event", event.EventType()),
			zap.Error(err),
		)
	}
}

func (m *Manager) finalPath(e *download.Entry) string {
	return filepath.Join(m.cfg.Dir, filepath.Base(e.ShowID()), filepath.Base(e.TrackFilename()))
}

func (m *Manager) partialPath(e *download.Entry) string {
	return m.finalPath(e) + partialSuffix
}

func (m *Manager) removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.logger.Warn("failed to remove file", zap.String("path", path), zap.Error(err))
	}
}
