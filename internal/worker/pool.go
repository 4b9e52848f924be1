// Package worker runs library imports and playlist archive writes in the
// background.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ewilliams-labs/tunnetilasi/internal/adapters/applemusic"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/ports"
	"github.com/ewilliams-labs/tunnetilasi/internal/logging"
	"github.com/ewilliams-labs/tunnetilasi/internal/metrics"
)

// ErrQueueFull is returned when a job cannot be queued without blocking.
var ErrQueueFull = errors.New("worker: queue full")

type Kind string

const (
	KindLibraryImport   Kind = "library_import"
	KindArchivePlaylist Kind = "archive_playlist"
)

type State string

const (
	StateQueued  State = "queued"
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

const (
	jobTimeout = 2 * time.Minute
	// maxStatuses bounds the status registry; the oldest entries go first.
	maxStatuses = 1000
)

// Job is one unit of background work.
type Job struct {
	ID   string
	Kind Kind
	// Library is the raw XML export for an import.
	Library []byte
	// MetalOnly drops non-metal tracks before saving.
	MetalOnly bool
	Playlist  *domain.Playlist
}

// JobStatus is what callers can see of a job.
type JobStatus struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"kind"`
	State       State      `json:"state"`
	Error       string     `json:"error,omitempty"`
	Parsed      int        `json:"parsed,omitempty"`
	Imported    int        `json:"imported,omitempty"`
	SubmittedAt time.Time  `json:"submittedAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
}

// Pool manages background workers for async jobs.
type Pool struct {
	library ports.LibraryRepository
	archive ports.PlaylistArchive
	jobs    chan Job
	wg      sync.WaitGroup

	mu       sync.RWMutex
	stopped  bool
	statuses map[string]JobStatus
	order    []string
}

// NewPool creates a pool with a queue of queueSize jobs.
func NewPool(library ports.LibraryRepository, archive ports.PlaylistArchive, queueSize int) *Pool {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		library:  library,
		archive:  archive,
		jobs:     make(chan Job, queueSize),
		statuses: make(map[string]JobStatus),
	}
}

// Start launches the worker goroutines. Jobs carry ctx's values but not its
// cancellation, so jobs still queued at shutdown are finished by Stop. Each
// job is bounded by jobTimeout.
func (p *Pool) Start(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
				p.processJob(ctx, job)
			}
		}()
	}
}

// Stop closes the queue and waits for queued jobs to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

// Submit queues a job without blocking and returns its id.
func (p *Pool) Submit(job Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return "", ErrQueueFull
	}
	select {
	case p.jobs <- job:
	default:
		logging.Warn().Str("job_id", job.ID).Str("kind", string(job.Kind)).Msg("worker queue full, dropping job")
		metrics.RecordJob(string(job.Kind), ErrQueueFull)
		return "", ErrQueueFull
	}
	p.setLocked(JobStatus{ID: job.ID, Kind: job.Kind, State: StateQueued, SubmittedAt: time.Now().UTC()})
	metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
	return job.ID, nil
}

// Status returns the last known status of a job.
func (p *Pool) Status(id string) (JobStatus, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.statuses[id]
	return s, ok
}

func (p *Pool) processJob(ctx context.Context, job Job) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), jobTimeout)
	defer cancel()
	log := logging.Ctx(ctx).With().Str("job_id", job.ID).Str("kind", string(job.Kind)).Logger()

	p.update(job.ID, func(s *JobStatus) { s.State = StateRunning })

	var (
		parsed, imported int
		err              error
	)
	switch job.Kind {
	case KindLibraryImport:
		parsed, imported, err = p.importLibrary(ctx, job)
	case KindArchivePlaylist:
		err = p.archivePlaylist(ctx, job)
	default:
		err = fmt.Errorf("worker: unknown job kind %q", job.Kind)
	}

	metrics.RecordJob(string(job.Kind), err)
	finished := time.Now().UTC()
	p.update(job.ID, func(s *JobStatus) {
		s.Parsed = parsed
		s.Imported = imported
		s.FinishedAt = &finished
		s.State = StateDone
		if err != nil {
			s.State = StateFailed
			s.Error = err.Error()
		}
	})

	if err != nil {
		log.Warn().Err(err).Msg("job failed")
		return
	}
	log.Info().Int("parsed", parsed).Int("imported", imported).Msg("job done")
}

func (p *Pool) importLibrary(ctx context.Context, job Job) (int, int, error) {
	if p.library == nil {
		return 0, 0, errors.New("worker: no library repository configured")
	}
	lib, err := applemusic.ParseLibrary(bytes.NewReader(job.Library))
	if err != nil {
		return 0, 0, err
	}
	tracks := lib.Tracks
	if job.MetalOnly {
		tracks = applemusic.FilterMetal(tracks)
	}
	if err := p.library.SaveLibraryTracks(ctx, tracks); err != nil {
		return lib.TotalTracks, 0, err
	}
	return lib.TotalTracks, len(tracks), nil
}

func (p *Pool) archivePlaylist(ctx context.Context, job Job) error {
	if p.archive == nil {
		return errors.New("worker: no playlist archive configured")
	}
	if job.Playlist == nil {
		return errors.New("worker: archive job without playlist")
	}
	return p.archive.SavePlaylist(ctx, *job.Playlist)
}

func (p *Pool) update(id string, fn func(*JobStatus)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.statuses[id]
	if !ok {
		return
	}
	fn(&s)
	p.statuses[id] = s
}

func (p *Pool) setLocked(s JobStatus) {
	if _, ok := p.statuses[s.ID]; !ok {
		p.order = append(p.order, s.ID)
	}
	p.statuses[s.ID] = s
	for len(p.order) > maxStatuses {
		delete(p.statuses, p.order[0])
		p.order = p.order[1:]
	}
}
