package dispatcher_test

import (
	"errors"
	"runtime"
	"sync"
	"testing"

	"github.com/pellucid-io/beacon/dispatcher"
)

func TestDispatcher_QueuesUntilFlushInit(t *testing.T) {
	d := dispatcher.New(0, nil)

	var mu sync.Mutex
	var order []int
	record := func(n int) dispatcher.Task {
		return func() error {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			return nil
		}
	}

	d.Launch(record(1), "one")
	d.Launch(record(2), "two")
	if got := d.QueueLength(); got != 2 {
		t.Fatalf("QueueLength before flush = %d, want 2", got)
	}
	mu.Lock()
	if len(order) != 0 {
		t.Fatalf("tasks ran before FlushInit: %v", order)
	}
	mu.Unlock()

	d.FlushInit(record(0))
	d.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("order = %v, want [0 1 2] (init task first)", order)
	}
}

func TestDispatcher_PreInitQueueBound(t *testing.T) {
	d := dispatcher.New(3, nil)
	for i := 0; i < 3; i++ {
		if !d.Launch(func() error { return nil }, "fits") {
			t.Fatalf("task %d rejected below the bound", i)
		}
	}
	if d.Launch(func() error { return nil }, "overflow") {
		t.Fatal("task accepted past the pre-init bound")
	}

	// The bound only applies before initialization.
	d.FlushInit(nil)
	if !d.Launch(func() error { return nil }, "post-init") {
		t.Fatal("post-init task rejected")
	}
	d.Shutdown()
}

func TestDispatcher_TestLaunchReturnsTaskError(t *testing.T) {
	d := dispatcher.New(0, nil)
	d.FlushInit(nil)
	defer d.Shutdown()

	wantErr := errors.New("boom")
	if err := d.TestLaunch(func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("TestLaunch = %v, want %v", err, wantErr)
	}
	if err := d.TestLaunch(func() error { return nil }); err != nil {
		t.Fatalf("TestLaunch = %v, want nil", err)
	}
}

func TestDispatcher_PanicsBecomeErrors(t *testing.T) {
	d := dispatcher.New(0, nil)
	d.FlushInit(nil)
	defer d.Shutdown()

	err := d.TestLaunch(func() error { panic("broken recording call") })
	if err == nil {
		t.Fatal("panicking task reported no error")
	}
}

func TestDispatcher_StopKeepsQueueAndResumeDrains(t *testing.T) {
	d := dispatcher.New(0, nil)
	d.FlushInit(nil)

	// Park the worker, then queue work behind the stop.
	d.Stop(false)
	d.BlockOnQueue()

	ran := make(chan struct{})
	d.Launch(func() error { close(ran); return nil }, "after-stop")

	select {
	case <-ran:
		t.Fatal("task ran while stopped")
	default:
	}

	d.Resume()
	<-ran
	d.Shutdown()
}

func TestDispatcher_ClearKeepsPersistentTasks(t *testing.T) {
	d := dispatcher.New(0, nil)
	d.FlushInit(nil)
	d.Stop(false)
	d.BlockOnQueue()

	var mu sync.Mutex
	var ran []string
	add := func(name string) dispatcher.Task {
		return func() error {
			mu.Lock()
			ran = append(ran, name)
			mu.Unlock()
			return nil
		}
	}

	d.Launch(add("plain"), "plain")
	d.LaunchPersistent(add("persistent"), "persistent")
	d.Launch(add("plain2"), "plain2")

	d.Clear()
	d.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	if len(ran) != 1 || ran[0] != "persistent" {
		t.Fatalf("ran = %v, want only the persistent task", ran)
	}
}

func TestDispatcher_ShutdownRejectsFurtherTasks(t *testing.T) {
	d := dispatcher.New(0, nil)
	d.FlushInit(nil)
	d.Shutdown()

	if d.State() != dispatcher.Shutdown {
		t.Fatalf("state = %v, want shutdown", d.State())
	}
	if d.Launch(func() error { return nil }, "late") {
		t.Fatal("task accepted after shutdown")
	}
	if err := d.TestLaunch(func() error { return nil }); !errors.Is(err, dispatcher.ErrRejected) {
		t.Fatalf("TestLaunch after shutdown = %v, want ErrRejected", err)
	}

	// A second shutdown is a no-op.
	d.Shutdown()
}

func TestDispatcher_ClearAbortsQueuedTestTasks(t *testing.T) {
	d := dispatcher.New(0, nil)
	d.FlushInit(nil)
	d.Stop(false)
	d.BlockOnQueue()

	errCh := make(chan error, 1)
	go func() { errCh <- d.TestLaunch(func() error { return nil }) }()

	// Wait for the test task to be queued behind the stopped worker.
	for d.QueueLength() == 0 {
		runtime.Gosched()
	}

	d.Clear()
	if err := <-errCh; !errors.Is(err, dispatcher.ErrAborted) {
		t.Fatalf("discarded TestLaunch = %v, want ErrAborted", err)
	}
	d.Shutdown()
}

func TestDispatcher_SerializesTasks(t *testing.T) {
	d := dispatcher.New(0, nil)
	d.FlushInit(nil)

	var active, maxActive, total int
	var mu sync.Mutex
	for i := 0; i < 200; i++ {
		d.Launch(func() error {
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			total++
			active--
			mu.Unlock()
			return nil
		}, "concurrent")
	}
	d.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	if total != 200 {
		t.Fatalf("ran %d tasks, want 200", total)
	}
	if maxActive != 1 {
		t.Fatalf("observed %d concurrent tasks, want 1", maxActive)
	}
}
