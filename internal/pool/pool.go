package pool

import (
	"context"
	"sync"
	"time"
)

// WorkerPool bounds concurrent scraping jobs and enforces a minimum interval
// between job starts, to stay polite against upstream rate limits.
type WorkerPool struct {
	semaphore   chan struct{}
	minInterval time.Duration
	wg          sync.WaitGroup
	mu          sync.Mutex
	lastStart   time.Time
}

// New creates a pool of maxWorkers with the given minimum start interval.
// maxWorkers < 1 falls back to sequential execution.
func New(maxWorkers int, minInterval time.Duration) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		semaphore:   make(chan struct{}, maxWorkers),
		minInterval: minInterval,
	}
}

// Submit enqueues a job. It blocks while all workers are busy, and returns
// without running the job once ctx is cancelled, so a shutting-down pipeline
// finishes in-flight work but schedules nothing new.
func (p *WorkerPool) Submit(ctx context.Context, job func()) {
	if ctx.Err() != nil {
		return
	}
	select {
	case <-ctx.Done():
		return
	case p.semaphore <- struct{}{}:
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.semaphore }()

		p.throttle()
		job()
	}()
}

// Wait blocks until every submitted job has completed.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

func (p *WorkerPool) throttle() {
	if p.minInterval <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if elapsed := time.Since(p.lastStart); elapsed < p.minInterval {
		time.Sleep(p.minInterval - elapsed)
	}
	p.lastStart = time.Now()
}

// IDSet is a mutex-guarded set for process-lifetime listing deduplication.
type IDSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewIDSet creates an empty set.
func NewIDSet() *IDSet {
	return &IDSet{seen: make(map[string]struct{})}
}

// Add returns true when id was newly added, false when already present.
func (s *IDSet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

// Size returns the number of unique ids tracked.
func (s *IDSet) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
