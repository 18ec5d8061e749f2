package notify

import (
	"context"
	"log"
)

// Pool manages a pool of workers for sending notifications. SMTP round trips
// are slow; running them on pool workers keeps scheduler timers and request
// handlers from blocking on delivery.
type Pool struct {
	size int
	jobs chan func()
	done chan struct{}
}

// NewPool creates a new worker pool.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		size: size,
		jobs: make(chan func(), size), // Buffered channel
		done: make(chan struct{}),
	}
}

// Start launches the worker goroutines. The pool shuts down when ctx is
// cancelled.
func (p *Pool) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		close(p.done)
	}()
	for i := 0; i < p.size; i++ {
		go p.worker(i)
	}
}

// worker is the actual worker goroutine.
func (p *Pool) worker(id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case job := <-p.jobs:
			job()
		case <-p.done:
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Submit queues a job for execution, blocking when the pool is saturated.
// After shutdown the job is dropped, so a timer firing mid-teardown does not
// park its goroutine forever.
func (p *Pool) Submit(job func()) {
	select {
	case p.jobs <- job:
	case <-p.done:
		log.Printf("Notification pool stopped; dropping job")
	}
}
