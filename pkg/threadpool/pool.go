// Package threadpool implements a fixed-size pool of worker goroutines
// draining an unbounded FIFO of tasks.
package threadpool

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

// Task is a unit of work with no result
type Task func()

// Pool runs tasks on a fixed number of workers. Enqueue never blocks.
// Close waits for every queued task to finish and stops the workers.
type Pool struct {
	size   int
	logger logrus.FieldLogger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Task
	closed bool
	next   int
	panics []error

	wg sync.WaitGroup
}

// New starts a pool with size workers. A size of 0 or less uses one worker
// per available CPU.
func New(size int, logger logrus.FieldLogger) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	p := &Pool{
		size:   size,
		logger: logger,
	}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker(i)
	}
	return p
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.size
}

// Enqueue appends a task to the queue and wakes one idle worker.
// It panics if the pool has been closed.
func (p *Pool) Enqueue(task Task) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		panic("threadpool: enqueue on closed pool")
	}
	p.queue = append(p.queue, task)
	p.mu.Unlock()
	p.cond.Signal()
}

// Close blocks until the queue is empty and all workers have exited.
// Panics recovered from tasks are returned joined together.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()

	p.wg.Wait()
	return errors.Join(p.panics...)
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			// closed and drained
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		n := p.next
		p.next++
		p.mu.Unlock()

		p.run(id, n, task)
	}
}

func (p *Pool) run(worker, n int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("task %d panicked: %v", n, r)
			p.logger.WithFields(logrus.Fields{
				"worker": worker,
				"task":   n,
			}).Errorf("recovered panic: %v\n%s", r, debug.Stack())

			p.mu.Lock()
			p.panics = append(p.panics, err)
			p.mu.Unlock()
		}
	}()
	task()
}
