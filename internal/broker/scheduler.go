package broker

import (
	"sync"
	"time"

	"optionsql/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// DefaultMaxInFlight caps concurrently outstanding gateway requests.
const DefaultMaxInFlight = 50

// Request is one unit of work admitted by the scheduler. Send issues exactly
// one wire request through the issuer; a returned error fails the request
// and frees its slot.
type Request struct {
	Desc string
	Send func(*Issuer) error
}

// Job is a request accepted by the scheduler.
type Job struct {
	seq        uint64
	req        Request
	enqueuedAt time.Time
}

func (j *Job) Seq() uint64           { return j.seq }
func (j *Job) Desc() string          { return j.req.Desc }
func (j *Job) Request() Request      { return j.req }
func (j *Job) EnqueuedAt() time.Time { return j.enqueuedAt }

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// MaxInFlight defaults to DefaultMaxInFlight.
	MaxInFlight int
	// Dispatch starts a job. done must be called when the job resolves.
	Dispatch func(job *Job, done func()) error
	// Wake asks the owning goroutine to call TryDispatchNext. Without it
	// Enqueue dispatches on the caller's goroutine.
	Wake func()
	// Depth observes queue sizes after every dispatch pass.
	Depth func(inFlight, waiting int)
}

// Scheduler admits requests in FIFO order with at most MaxInFlight
// outstanding at a time.
type Scheduler struct {
	cfg SchedulerConfig

	mu          sync.Mutex
	waiting     []*Job
	inFlight    map[uint64]*Job
	seq         uint64
	closed      bool
	dispatching bool
}

// NewScheduler creates a scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}
	return &Scheduler{
		cfg:      cfg,
		inFlight: make(map[uint64]*Job, cfg.MaxInFlight),
	}
}

// Enqueue appends a request to the waiting queue. It is safe to call from any
// goroutine, including from within a dispatch.
func (s *Scheduler) Enqueue(req Request) error {
	if req.Send == nil {
		return exception.ErrNilSend
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return exception.ErrSchedulerClosed
	}
	s.seq++
	s.waiting = append(s.waiting, &Job{seq: s.seq, req: req, enqueuedAt: time.Now()})
	s.mu.Unlock()

	if s.cfg.Wake != nil {
		s.cfg.Wake()
		return nil
	}
	s.TryDispatchNext()
	return nil
}

// TryDispatchNext dispatches waiting jobs while capacity allows. A call made
// while a dispatch pass is already running returns immediately; the running
// pass picks up any capacity freed meanwhile.
func (s *Scheduler) TryDispatchNext() {
	s.mu.Lock()
	if s.dispatching {
		s.mu.Unlock()
		return
	}
	s.dispatching = true

	for !s.closed && len(s.inFlight) < s.cfg.MaxInFlight && len(s.waiting) > 0 {
		job := s.waiting[0]
		s.waiting[0] = nil
		s.waiting = s.waiting[1:]
		s.inFlight[job.seq] = job
		s.mu.Unlock()

		if err := s.dispatch(job); err != nil {
			logs.Errorf("dispatch %q failed, err: %+v", job.Desc(), err)
			s.OnComplete(job)
		}

		s.mu.Lock()
	}

	s.dispatching = false
	inFlight, waiting := len(s.inFlight), len(s.waiting)
	s.mu.Unlock()

	if s.cfg.Depth != nil {
		s.cfg.Depth(inFlight, waiting)
	}
}

func (s *Scheduler) dispatch(job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(exception.ErrInternal, "dispatch panic: %v", r)
		}
	}()
	return s.cfg.Dispatch(job, func() { s.OnComplete(job) })
}

// OnComplete frees the job's slot and dispatches the next waiting job.
// Repeated calls for the same job are no-ops.
func (s *Scheduler) OnComplete(job *Job) {
	s.mu.Lock()
	if _, ok := s.inFlight[job.seq]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.inFlight, job.seq)
	s.mu.Unlock()

	s.TryDispatchNext()
}

// InFlight reports the number of dispatched, unresolved jobs.
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

// Waiting reports the number of jobs not yet dispatched.
func (s *Scheduler) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiting)
}

// Close stops admission and returns the jobs that were never dispatched.
func (s *Scheduler) Close() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	jobs := s.waiting
	s.waiting = nil
	return jobs
}
