// Package job tracks asynchronous batch crawls: submission, progress
// counters, cancellation, and retention of finished jobs.
package job

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	apperr "websearch/internal/errors"
	"websearch/internal/pipeline"
)

// State is a job lifecycle state.
type State string

const (
	StatePending   State = "PENDING"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
	StateCancelled State = "CANCELLED"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Status is a read-consistent snapshot of one job.
type Status struct {
	JobID     string `json:"jobId"`
	State     State  `json:"state"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Cancelled int    `json:"cancelled"`

	// Result is set exactly once, at the terminal transition.
	Result *pipeline.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`

	CreatedAt  time.Time  `json:"createdAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Runner executes a batch request; satisfied by *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request, obs pipeline.Observer) (*pipeline.Result, error)
}

// job is the mutable record behind a Status snapshot.
type job struct {
	mu     sync.RWMutex
	status Status
	cancel context.CancelFunc
}

// snapshot copies the status under the read lock.
func (j *job) snapshot() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	s := j.status
	if j.status.Result != nil {
		r := *j.status.Result
		s.Result = &r
	}
	return s
}

// Manager owns the job table. Active jobs live in a plain map; terminal
// jobs move to an expirable LRU so finished records age out after the
// retention window or when the cap is hit.
type Manager struct {
	runner Runner
	logger *slog.Logger

	mu       sync.RWMutex
	active   map[string]*job
	finished *expirable.LRU[string, *job]
}

// NewManager creates a job manager. retention is how long terminal jobs
// stay queryable; maxJobs caps retained terminal jobs.
func NewManager(runner Runner, retention time.Duration, maxJobs int, logger *slog.Logger) *Manager {
	if retention <= 0 {
		retention = time.Hour
	}
	if maxJobs <= 0 {
		maxJobs = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		runner:   runner,
		logger:   logger,
		active:   make(map[string]*job),
		finished: expirable.NewLRU[string, *job](maxJobs, nil, retention),
	}
}

// Submit registers a job and starts it in the background.
func (m *Manager) Submit(req pipeline.Request) string {
	ctx, cancel := context.WithCancel(context.Background())

	j := &job{
		status: Status{
			JobID:     uuid.NewString(),
			State:     StatePending,
			CreatedAt: time.Now(),
		},
		cancel: cancel,
	}

	m.mu.Lock()
	m.active[j.status.JobID] = j
	m.mu.Unlock()

	go m.run(ctx, j, req)
	return j.status.JobID
}

// run drives one job from PENDING to a terminal state.
func (m *Manager) run(ctx context.Context, j *job, req pipeline.Request) {
	j.mu.Lock()
	j.status.State = StateRunning
	j.mu.Unlock()

	result, err := m.runner.Run(ctx, req, (*jobObserver)(j))

	now := time.Now()
	j.mu.Lock()
	switch {
	case ctx.Err() != nil:
		j.status.State = StateCancelled
	case err != nil:
		j.status.State = StateFailed
		j.status.Error = err.Error()
	default:
		j.status.State = StateCompleted
	}
	if result != nil {
		j.status.Result = result
	}
	j.status.FinishedAt = &now
	id := j.status.JobID
	state := j.status.State
	j.mu.Unlock()

	m.mu.Lock()
	delete(m.active, id)
	m.finished.Add(id, j)
	m.mu.Unlock()

	m.logger.Info("job finished",
		slog.String("job_id", id), slog.String("state", string(state)))
}

// lookup finds a job in either table.
func (m *Manager) lookup(jobID string) (*job, bool) {
	m.mu.RLock()
	j, ok := m.active[jobID]
	m.mu.RUnlock()
	if ok {
		return j, true
	}
	return m.finished.Get(jobID)
}

// Status returns a snapshot of the job, or not_found.
func (m *Manager) Status(jobID string) (*Status, error) {
	j, ok := m.lookup(jobID)
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "unknown job %s", jobID)
	}
	s := j.snapshot()
	return &s, nil
}

// Cancel requests cancellation. It returns true iff the job will actually
// transition to CANCELLED; workers observe the signal and the job converges
// there.
func (m *Manager) Cancel(jobID string) (bool, error) {
	j, ok := m.lookup(jobID)
	if !ok {
		return false, apperr.Newf(apperr.KindNotFound, "unknown job %s", jobID)
	}

	// run records the terminal state under the same lock, so a job observed
	// non-terminal here sees the cancelled context before it finishes.
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.State.Terminal() {
		return false, nil
	}
	j.cancel()
	return true, nil
}

// List returns all known job ids, newest first.
func (m *Manager) List() []string {
	m.mu.RLock()
	jobs := make([]*job, 0, len(m.active))
	for _, j := range m.active {
		jobs = append(jobs, j)
	}
	m.mu.RUnlock()

	for _, id := range m.finished.Keys() {
		if j, ok := m.finished.Peek(id); ok {
			jobs = append(jobs, j)
		}
	}

	sort.Slice(jobs, func(a, b int) bool {
		return jobs[a].snapshot().CreatedAt.After(jobs[b].snapshot().CreatedAt)
	})
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.snapshot().JobID
	}
	return ids
}

// Shutdown cancels every active job.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, j := range m.active {
		j.cancel()
	}
}

// jobObserver feeds pipeline progress into the job counters.
type jobObserver job

func (o *jobObserver) Materialized(total int) {
	o.mu.Lock()
	o.status.Total = total
	o.mu.Unlock()
}

func (o *jobObserver) Completed(string) {
	o.mu.Lock()
	o.status.Completed++
	o.mu.Unlock()
}

func (o *jobObserver) Failed(string, error) {
	o.mu.Lock()
	o.status.Failed++
	o.mu.Unlock()
}

func (o *jobObserver) Cancelled(string) {
	o.mu.Lock()
	o.status.Cancelled++
	o.mu.Unlock()
}
