package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// JobStatus represents the last known state of a job.
type JobStatus string

const (
	StatusIdle      JobStatus = "idle"
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
)

// ErrJobNotFound is returned for unknown job names.
var ErrJobNotFound = errors.New("job not found")

// Job defines a recurring background task. The next run is scheduled Interval
// after the previous one finished, so runs of one job never overlap.
type Job struct {
	Name        string
	Description string
	Interval    time.Duration
	// RunOnStart runs the job once as soon as the scheduler starts.
	RunOnStart bool
	Fn         func(ctx context.Context) error
}

type jobState struct {
	Job
	mu        sync.Mutex
	status    JobStatus
	message   string
	lastRunAt *time.Time
	nextRunAt time.Time
	runs      int
}

// JobInfo is the serializable representation of a job.
type JobInfo struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Interval    string     `json:"interval"`
	Status      JobStatus  `json:"status"`
	Message     string     `json:"message,omitempty"`
	Runs        int        `json:"runs"`
	NextRunAt   *time.Time `json:"next_run_at,omitempty"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
}

// Scheduler manages a collection of named interval jobs.
type Scheduler struct {
	mu      sync.RWMutex
	jobs    map[string]*jobState
	cancel  context.CancelFunc
	// runCtx carries the values of the Start context but is never cancelled,
	// so Stop lets an in-flight run finish.
	runCtx  context.Context
	wg      sync.WaitGroup
	started bool
}

// New creates an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{jobs: make(map[string]*jobState)}
}

// Register adds a job. It must be called before Start.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Fn == nil {
		return errors.New("job needs a name and a function")
	}
	if job.Interval <= 0 {
		return fmt.Errorf("job %q needs a positive interval", job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("job %q registered after start", job.Name)
	}
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %q already registered", job.Name)
	}
	s.jobs[job.Name] = &jobState{Job: job, status: StatusIdle}
	return nil
}

// Start launches every registered job in its own goroutine. No new runs are
// scheduled once ctx is cancelled or Stop is called; a run in progress completes.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.runCtx = context.WithoutCancel(ctx)

	now := time.Now()
	for _, js := range s.jobs {
		js.mu.Lock()
		if js.RunOnStart {
			js.nextRunAt = now
		} else {
			js.nextRunAt = now.Add(js.Interval)
		}
		js.mu.Unlock()

		s.wg.Add(1)
		go s.runLoop(loopCtx, js)
	}
}

// Stop stops scheduling new runs and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, js *jobState) {
	defer s.wg.Done()
	for {
		js.mu.Lock()
		wait := time.Until(js.nextRunAt)
		js.mu.Unlock()
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.execute(js)
			js.mu.Lock()
			js.nextRunAt = time.Now().Add(js.Interval)
			js.mu.Unlock()
		}
	}
}

// execute runs js unless a run is already in progress and reports whether it ran.
func (s *Scheduler) execute(js *jobState) bool {
	js.mu.Lock()
	if js.status == StatusRunning {
		js.mu.Unlock()
		return false
	}
	js.status = StatusRunning
	js.mu.Unlock()

	started := time.Now()
	err := js.Fn(s.runContext())

	js.mu.Lock()
	js.lastRunAt = &started
	js.runs++
	if err != nil {
		js.status = StatusFailed
		js.message = err.Error()
	} else {
		js.status = StatusSucceeded
		js.message = ""
	}
	js.mu.Unlock()
	return true
}

// RunNow triggers a job by name without waiting for it. A job that is already
// running is not started twice.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	js, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrJobNotFound, name)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(js)
	}()
	return nil
}

func (s *Scheduler) runContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.runCtx == nil {
		return context.Background()
	}
	return s.runCtx
}

// Get returns the current state of one job.
func (s *Scheduler) Get(name string) (JobInfo, error) {
	s.mu.RLock()
	js, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return JobInfo{}, fmt.Errorf("%w: %q", ErrJobNotFound, name)
	}
	return js.info(), nil
}

// List returns a summary of all registered jobs ordered by name.
func (s *Scheduler) List() []JobInfo {
	s.mu.RLock()
	items := make([]JobInfo, 0, len(s.jobs))
	for _, js := range s.jobs {
		items = append(items, js.info())
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}

func (js *jobState) info() JobInfo {
	js.mu.Lock()
	defer js.mu.Unlock()
	item := JobInfo{
		Name:        js.Name,
		Description: js.Description,
		Interval:    js.Interval.String(),
		Status:      js.status,
		Message:     js.message,
		Runs:        js.runs,
		LastRunAt:   js.lastRunAt,
	}
	if !js.nextRunAt.IsZero() {
		next := js.nextRunAt
		item.NextRunAt = &next
	}
	return item
}
