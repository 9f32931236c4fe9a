// Package snapshot captures the entity store on a fixed cadence and on demand,
// handing each capture to the archive.
//
// A single worker goroutine owns the capture routine. Cadence ticks and
// on-demand triggers both become jobs on the same queue, so captures never
// overlap and a failed capture only ends its own iteration.
package snapshot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/heinrichuk/pmoai/internal/models"
	"github.com/heinrichuk/pmoai/internal/store"
)

var (
	// ErrQueueFull is returned by Trigger when the job queue has no room.
	ErrQueueFull = errors.New("snapshot queue full")
	// ErrStopped is returned by Trigger after Stop.
	ErrStopped = errors.New("snapshot scheduler stopped")
)

// AckMessage is the message carried by every on-demand acknowledgment.
const AckMessage = "Snapshot creation started"

// Trigger kinds, as logged.
const (
	TriggerCadence  = "cadence"
	TriggerOnDemand = "on_demand"
	TriggerManual   = "manual"
)

// StateSource yields a consistent value copy of the entity collections.
type StateSource interface {
	SnapshotState() store.State
}

// Persister durably records a snapshot.
type Persister interface {
	Persist(models.Snapshot) error
}

// Cadence is the automatic capture schedule. When At is set ("HH:MM") every
// run is moved to that time of day on the day it falls due.
type Cadence struct {
	Every time.Duration
	At    string
}

// Next returns the first run strictly after the given instant.
func (c Cadence) Next(after time.Time) time.Time {
	due := after.Add(c.Every)
	h, m, ok := parseClock(c.At)
	if !ok {
		return due
	}
	next := time.Date(due.Year(), due.Month(), due.Day(), h, m, 0, 0, due.Location())
	if !next.After(after) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Validate reports a cadence the scheduler cannot run.
func (c Cadence) Validate() error {
	if c.Every <= 0 {
		return fmt.Errorf("snapshot cadence: interval must be positive, got %s", c.Every)
	}
	if c.At != "" {
		if _, _, ok := parseClock(c.At); !ok {
			return fmt.Errorf("snapshot cadence: invalid time of day %q", c.At)
		}
	}
	return nil
}

func parseClock(s string) (int, int, bool) {
	hh, mm, found := strings.Cut(s, ":")
	if !found {
		return 0, 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// NewID returns a fresh snapshot id.
func NewID() string {
	return "snapshot-" + uuid.NewString()
}

type job struct {
	id      string
	trigger string
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithQueueSize sets how many on-demand triggers may wait for the worker.
func WithQueueSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// Scheduler runs snapshot captures.
type Scheduler struct {
	source    StateSource
	archive   Persister
	cadence   Cadence
	logger    *zap.Logger
	now       func() time.Time
	queueSize int

	jobs      chan job
	captureMu sync.Mutex

	mu        sync.RWMutex
	running   bool
	stopped   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewScheduler builds a scheduler; call Start to begin the cadence.
func NewScheduler(source StateSource, archive Persister, cadence Cadence, logger *zap.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		source:    source,
		archive:   archive,
		cadence:   cadence,
		logger:    logger.Named("snapshot"),
		now:       time.Now,
		queueSize: 16,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.jobs = make(chan job, s.queueSize)
	return s
}

// Start launches the worker. It is a no-op when already running or stopped.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("scheduler started",
		zap.Duration("interval", s.cadence.Every),
		zap.String("at", s.cadence.At),
		zap.Time("next_run", s.cadence.Next(s.now())),
	)
	go s.run()
}

// Stop rejects further triggers, runs the jobs already queued, and waits for
// the worker to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	if wasRunning {
		<-s.stoppedCh
	} else {
		// No worker ever ran; acknowledged triggers still get persisted.
		s.drain()
	}
	s.logger.Info("scheduler stopped")
}

// Trigger queues an on-demand capture and returns without waiting for it.
// The acknowledged id is the id the persisted snapshot will carry.
func (s *Scheduler) Trigger() (models.SnapshotAck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return models.SnapshotAck{}, ErrStopped
	}

	j := job{id: NewID(), trigger: TriggerOnDemand}
	select {
	case s.jobs <- j:
	default:
		return models.SnapshotAck{}, ErrQueueFull
	}
	return models.SnapshotAck{ID: j.id, Date: s.now().Round(0), Message: AckMessage}, nil
}

// Capture takes and persists one snapshot synchronously, bypassing the queue.
func (s *Scheduler) Capture() (models.Snapshot, error) {
	return s.capture(job{id: NewID(), trigger: TriggerManual})
}

func (s *Scheduler) run() {
	defer close(s.stoppedCh)

	timer := time.NewTimer(s.untilNext())
	defer timer.Stop()

	for {
		select {
		case <-s.stopCh:
			s.drain()
			return
		case j := <-s.jobs:
			s.execute(j)
		case <-timer.C:
			s.execute(job{id: NewID(), trigger: TriggerCadence})
			timer.Reset(s.untilNext())
		}
	}
}

func (s *Scheduler) drain() {
	for {
		select {
		case j := <-s.jobs:
			s.execute(j)
		default:
			return
		}
	}
}

func (s *Scheduler) untilNext() time.Duration {
	now := s.now()
	d := s.cadence.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// execute runs one capture. Errors and panics end the iteration, never the loop.
func (s *Scheduler) execute(j job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("snapshot capture panicked",
				zap.String("snapshot_id", j.id),
				zap.String("trigger", j.trigger),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()

	if _, err := s.capture(j); err != nil {
		s.logger.Error("snapshot capture failed",
			zap.String("snapshot_id", j.id),
			zap.String("trigger", j.trigger),
			zap.Error(err),
		)
	}
}

func (s *Scheduler) capture(j job) (models.Snapshot, error) {
	s.captureMu.Lock()
	defer s.captureMu.Unlock()

	state := s.source.SnapshotState()
	snap := models.Snapshot{
		ID:           j.id,
		Date:         s.now().Round(0),
		Workstreams:  state.Workstreams,
		Milestones:   state.Milestones,
		Risks:        state.Risks,
		Issues:       state.Issues,
		Dependencies: state.Dependencies,
	}
	if err := s.archive.Persist(snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("persist %s: %w", j.id, err)
	}

	s.logger.Info("snapshot created",
		zap.String("snapshot_id", snap.ID),
		zap.String("trigger", j.trigger),
		zap.Int("workstreams", len(snap.Workstreams)),
	)
	return snap, nil
}
