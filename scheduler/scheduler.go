package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dmitrysluch/eva-table-reactor/exporter"
	"github.com/dmitrysluch/eva-table-reactor/logger"
	"github.com/dmitrysluch/eva-table-reactor/notify"
)

// Status of a submitted export
type Status string

const (
	StatusCreated    Status = "created"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

var (
	// ErrQueueFull is returned by Submit when too many exports are pending
	ErrQueueFull = errors.New("export queue is full")
	// ErrStopped is returned by Submit after Stop
	ErrStopped = errors.New("scheduler stopped")
)

// Job is the tracked state of one export request
type Job struct {
	ID        string           `json:"jobId"`
	SchemaID  string           `json:"tableId"`
	Dates     []string         `json:"dates"`
	Status    Status           `json:"status"`
	Result    *exporter.Result `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Event is published on every job status change
type Event struct {
	Job Job
}

// Runner performs one export synchronously
type Runner interface {
	Export(ctx context.Context, schemaID string, dates []string) (exporter.Result, error)
}

// Scheduler runs submitted exports one after another in the background
type Scheduler struct {
	runner   Runner
	notifier notify.Notifier
	logger   *slog.Logger

	queue chan string

	mu      sync.Mutex
	jobs    map[string]*Job
	subs    []chan Event
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler; call Start to begin processing
func NewScheduler(runner Runner, notifier notify.Notifier, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		runner:   runner,
		notifier: notifier,
		logger:   logger,
		queue:    make(chan string, 64),
		jobs:     make(map[string]*Job),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the scheduler in a goroutine
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop stops the scheduler and waits for the running export to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

// Submit queues an export and returns immediately with the created job
func (s *Scheduler) Submit(schemaID string, dates []string) (Job, error) {
	now := time.Now()
	job := &Job{
		ID:        "job-" + ulid.Make().String(),
		SchemaID:  schemaID,
		Dates:     append([]string(nil), dates...),
		Status:    StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return Job{}, ErrStopped
	}
	select {
	case s.queue <- job.ID:
	default:
		return Job{}, ErrQueueFull
	}
	// The worker blocks on the lock until the job is registered
	s.jobs[job.ID] = job
	s.publishLocked(*job)

	s.logger.Info("export queued", "job_id", job.ID, "schema_id", schemaID, "dates", len(dates))
	return *job, nil
}

// Job returns a snapshot of the job with the given id
func (s *Scheduler) Job(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Subscribe returns a channel receiving every job status change.
// Slow subscribers miss events rather than blocking exports.
func (s *Scheduler) Subscribe() <-chan Event {
	ch := make(chan Event, 16)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		close(ch)
		return ch
	}
	s.subs = append(s.subs, ch)
	return ch
}

// run is the main scheduler loop
func (s *Scheduler) run() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case id := <-s.queue:
			s.process(id)
		}
	}
}

func (s *Scheduler) process(id string) {
	job, ok := s.update(id, func(j *Job) { j.Status = StatusInProgress })
	if !ok {
		return
	}

	ctx := logger.WithJobID(s.ctx, id)
	log := logger.FromContext(ctx, s.logger)
	log.Info("processing export", "schema_id", job.SchemaID)

	res, err := s.runner.Export(ctx, job.SchemaID, job.Dates)

	ev := notify.Event{JobID: id, SchemaID: job.SchemaID}
	if err != nil {
		log.Error("export job failed", "error", err)
		s.update(id, func(j *Job) {
			j.Status = StatusFailed
			j.Error = err.Error()
		})
		ev.Err = err
	} else {
		s.update(id, func(j *Job) {
			j.Status = StatusDone
			j.Result = &res
		})
		ev.SchemaName = res.SchemaName
		ev.Dates = res.Dates
		ev.Rows = res.Rows
		ev.Location = res.Location
	}

	if s.notifier == nil {
		return
	}
	if nerr := s.notifier.Notify(context.WithoutCancel(ctx), ev); nerr != nil {
		log.Warn("failed to send notification", "error", nerr)
	}
}

// update mutates a job under the lock and publishes the new snapshot
func (s *Scheduler) update(id string, fn func(*Job)) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	fn(job)
	job.UpdatedAt = time.Now()
	s.publishLocked(*job)
	return *job, true
}

func (s *Scheduler) publishLocked(job Job) {
	for _, ch := range s.subs {
		select {
		case ch <- Event{Job: job}:
		default:
			s.logger.Debug("dropping job event for slow subscriber", "job_id", job.ID)
		}
	}
}
