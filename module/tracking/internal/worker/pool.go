package worker

import (
	"sync"
)

// Job represents a task to be executed by a worker.
type Job struct {
	Task func()
}

// Pool runs submitted jobs on a fixed number of goroutines. Submit never
// blocks: when the backlog is full the job is refused.
type Pool struct {
	workers  int
	jobQueue chan Job
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines sharing a queue of backlog pending jobs.
func NewPool(workers, backlog int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if backlog < workers {
		backlog = workers
	}
	p := &Pool{
		workers:  workers,
		jobQueue: make(chan Job, backlog),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobQueue {
		job.Task()
	}
}

// Submit queues task and reports whether it was accepted.
func (p *Pool) Submit(task func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobQueue <- Job{Task: task}:
		return true
	default:
		return false
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobQueue)
	p.mu.Unlock()

	p.wg.Wait()
}
