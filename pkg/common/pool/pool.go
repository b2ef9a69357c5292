package pool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/preclinical-platform/platform/pkg/common/logger"
)

const idleTimeout = 30 * time.Second

// Pool is a bounded worker pool with caller-runs backpressure: when the
// queue is full and the pool is already at max workers, Submit executes the
// task on the calling goroutine instead of blocking or dropping it.
type Pool struct {
	name    string
	queue   chan func()
	core    int32
	max     int32
	workers int32
	closed  atomic.Bool
	wg      sync.WaitGroup
	done    chan struct{}
}

// New starts a pool with core resident workers that can grow to max workers
// under load. Extra workers retire after idling.
func New(name string, core, max, queueDepth int) *Pool {
	if core < 1 {
		core = 1
	}
	if max < core {
		max = core
	}
	p := &Pool{
		name:  name,
		queue: make(chan func(), queueDepth),
		core:  int32(core),
		max:   int32(max),
		done:  make(chan struct{}),
	}
	for i := 0; i < core; i++ {
		p.startWorker(nil, true)
	}
	return p
}

// Submit schedules task for execution. It never blocks and never drops:
// saturation falls back to running the task on the caller.
func (p *Pool) Submit(task func()) {
	if task == nil {
		return
	}
	if p.closed.Load() {
		p.run(task)
		return
	}

	select {
	case p.queue <- task:
		return
	default:
	}

	// Queue full: grow up to max, then caller-runs.
	for {
		current := atomic.LoadInt32(&p.workers)
		if current >= p.max {
			p.run(task)
			return
		}
		if atomic.CompareAndSwapInt32(&p.workers, current, current+1) {
			p.startWorker(task, false)
			return
		}
	}
}

// Close stops the resident workers after the queue drains. Tasks submitted
// afterwards are executed caller-runs.
func (p *Pool) Close() {
	if p.closed.Swap(true) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

func (p *Pool) startWorker(first func(), resident bool) {
	if resident {
		atomic.AddInt32(&p.workers, 1)
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer atomic.AddInt32(&p.workers, -1)

		if first != nil {
			p.run(first)
		}

		idle := time.NewTimer(idleTimeout)
		defer idle.Stop()
		for {
			select {
			case task := <-p.queue:
				p.run(task)
				if !idle.Stop() {
					select {
					case <-idle.C:
					default:
					}
				}
				idle.Reset(idleTimeout)
			case <-idle.C:
				if !resident {
					return
				}
				idle.Reset(idleTimeout)
			case <-p.done:
				// Drain what is already queued before exiting.
				for {
					select {
					case task := <-p.queue:
						p.run(task)
					default:
						return
					}
				}
			}
		}
	}()
}

func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.WithField("pool", p.name).Errorf("task panicked: %v", r)
		}
	}()
	task()
}
