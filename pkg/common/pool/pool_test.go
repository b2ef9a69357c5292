package pool

import (
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/preclinical-platform/platform/pkg/common/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func TestPoolExecutesAllTasks(t *testing.T) {
	p := New("test", 2, 4, 10)
	defer p.Close()

	var count int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		p.Submit(func() {
			defer wg.Done()
			atomic.AddInt64(&count, 1)
		})
	}
	wg.Wait()

	if count != 50 {
		t.Fatalf("expected 50 executions, got %d", count)
	}
}

func TestPoolCallerRunsWhenSaturated(t *testing.T) {
	p := New("test", 1, 1, 1)
	defer p.Close()

	block := make(chan struct{})
	started := make(chan struct{})
	p.Submit(func() {
		close(started)
		<-block
	})
	<-started
	p.Submit(func() {}) // fills the queue

	// Worker busy, queue full, max reached: this must run on the caller.
	done := make(chan struct{})
	go func() {
		p.Submit(func() {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected caller-runs fallback, Submit blocked")
	}
	close(block)
}

func TestPoolSurvivesPanickingTask(t *testing.T) {
	p := New("test", 1, 1, 1)
	defer p.Close()

	p.Submit(func() { panic("boom") })

	done := make(chan struct{})
	p.Submit(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive panicking task")
	}
}

func TestPoolCloseDrainsQueue(t *testing.T) {
	p := New("test", 1, 1, 10)

	var count int64
	for i := 0; i < 5; i++ {
		p.Submit(func() { atomic.AddInt64(&count, 1) })
	}
	p.Close()

	if got := atomic.LoadInt64(&count); got != 5 {
		t.Fatalf("expected queued tasks to drain on close, got %d", got)
	}

	// After close, submissions run on the caller.
	ran := false
	p.Submit(func() { ran = true })
	if !ran {
		t.Fatal("expected caller-runs after close")
	}
}
