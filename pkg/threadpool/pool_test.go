package threadpool

import (
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// TestPoolRunsAllTasks enqueues many tasks and checks every one ran
func TestPoolRunsAllTasks(t *testing.T) {
	for _, size := range []int{1, 3, 8} {
		p := New(size, nil)
		var count int64
		for i := 0; i < 1000; i++ {
			p.Enqueue(func() { atomic.AddInt64(&count, 1) })
		}
		if err := p.Close(); err != nil {
			t.Fatalf("Close returned error: %v", err)
		}
		if count != 1000 {
			t.Errorf("Pool of %d ran %d tasks, want 1000", size, count)
		}
	}
}

// TestPoolDefaultSize checks that size 0 uses all CPUs
func TestPoolDefaultSize(t *testing.T) {
	p := New(0, nil)
	defer p.Close()
	if p.Size() != runtime.NumCPU() {
		t.Errorf("Expected %d workers, got %d", runtime.NumCPU(), p.Size())
	}
}

// TestPoolRecoversPanics checks that a panicking task neither kills the
// pool nor hides the failure
func TestPoolRecoversPanics(t *testing.T) {
	logger, hook := test.NewNullLogger()
	p := New(2, logger)

	var count int64
	for i := 0; i < 10; i++ {
		i := i
		p.Enqueue(func() {
			if i == 4 {
				panic("boom")
			}
			atomic.AddInt64(&count, 1)
		})
	}

	err := p.Close()
	if err == nil {
		t.Fatal("Expected Close to report the panic")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("Error should mention the panic value, got %v", err)
	}
	if count != 9 {
		t.Errorf("Expected the other 9 tasks to run, got %d", count)
	}

	entries := hook.AllEntries()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(entries))
	}
	if entries[0].Level != logrus.ErrorLevel {
		t.Errorf("Expected error level, got %v", entries[0].Level)
	}
}

// TestPoolCloseWaits checks that Close blocks until running tasks finish
func TestPoolCloseWaits(t *testing.T) {
	p := New(4, nil)
	release := make(chan struct{})
	var started sync.WaitGroup
	var done int64

	started.Add(4)
	for i := 0; i < 4; i++ {
		p.Enqueue(func() {
			started.Done()
			<-release
			atomic.AddInt64(&done, 1)
		})
	}
	started.Wait()

	closed := make(chan struct{})
	go func() {
		p.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while tasks were still running")
	default:
	}

	close(release)
	<-closed
	if done != 4 {
		t.Errorf("Expected 4 finished tasks, got %d", done)
	}
}

// TestPoolMultipleProducers enqueues from several goroutines at once
func TestPoolMultipleProducers(t *testing.T) {
	p := New(3, nil)
	var count int64
	var wg sync.WaitGroup
	for g := 0; g < 5; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				p.Enqueue(func() { atomic.AddInt64(&count, 1) })
			}
		}()
	}
	wg.Wait()
	if err := p.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if count != 1000 {
		t.Errorf("Expected 1000 tasks, got %d", count)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}
}
