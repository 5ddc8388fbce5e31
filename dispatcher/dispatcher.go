// Package dispatcher serializes all SDK work onto a single flow of tasks.
//
// Recording APIs enqueue closures instead of touching storage directly;
// a worker goroutine drains the queue one task at a time, so databases never
// see concurrent access. Before initialization tasks accumulate in a bounded
// pre-init queue and only start executing once FlushInit runs.
package dispatcher

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pellucid-io/beacon/log"
)

// State is the dispatcher lifecycle state.
type State int

const (
	// Uninitialized queues tasks without executing them.
	Uninitialized State = iota
	// Idle means the queue is empty and the worker is parked.
	Idle
	// Processing means the worker is draining the queue.
	Processing
	// Stopped parks the worker until Resume, keeping the queue.
	Stopped
	// Shutdown rejects every further task. Terminal.
	Shutdown
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Idle:
		return "idle"
	case Processing:
		return "processing"
	case Stopped:
		return "stopped"
	case Shutdown:
		return "shutdown"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Task is a unit of dispatched work. Errors are logged, never fatal.
type Task func() error

// DefaultMaxPreInitQueueSize bounds the pre-init queue. Tasks launched past
// the bound before FlushInit are dropped.
const DefaultMaxPreInitQueueSize = 100

// ErrRejected is returned by TestLaunch when the dispatcher refuses the task
// (shut down or pre-init queue full).
var ErrRejected = errors.New("dispatcher: task rejected")

// ErrAborted is returned by TestLaunch when the queued task was discarded by
// a clear or shutdown before it could run.
var ErrAborted = errors.New("dispatcher: task aborted")

type commandKind int

const (
	cmdTask commandKind = iota
	// cmdPersistentTask survives Clear.
	cmdPersistentTask
	// cmdTestTask resolves a waiting TestLaunch caller when executed.
	cmdTestTask
	cmdStop
	cmdClear
	cmdShutdown
)

type command struct {
	kind commandKind
	task Task
	name string
	// done resolves a TestLaunch. Closed after execution or on discard.
	done chan error
}

// Dispatcher owns the task queue and the worker draining it.
type Dispatcher struct {
	logger     *log.Logger
	maxPreInit int

	mu           sync.Mutex
	state        State
	queue        []*command
	shuttingDown bool
	// currentJob is closed when the running drain finishes. Nil before the
	// first drain.
	currentJob chan struct{}
}

// New creates a dispatcher in the Uninitialized state.
// maxPreInitQueueSize <= 0 selects the default.
func New(maxPreInitQueueSize int, logger *log.Logger) *Dispatcher {
	if maxPreInitQueueSize <= 0 {
		maxPreInitQueueSize = DefaultMaxPreInitQueueSize
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Dispatcher{logger: logger, maxPreInit: maxPreInitQueueSize}
}

// State returns the current lifecycle state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// QueueLength returns the number of queued commands.
func (d *Dispatcher) QueueLength() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Launch enqueues a task. The name shows up in error logs. Returns false
// when the task was rejected.
func (d *Dispatcher) Launch(task Task, name string) bool {
	return d.launch(&command{kind: cmdTask, task: task, name: name}, false)
}

// LaunchPersistent enqueues a task that survives Clear. Used for work that
// must happen even when pending state is being wiped, like deletion-request
// uploads.
func (d *Dispatcher) LaunchPersistent(task Task, name string) bool {
	return d.launch(&command{kind: cmdPersistentTask, task: task, name: name}, false)
}

// launch appends (or prepends) the command and wakes the worker.
func (d *Dispatcher) launch(c *command, priority bool) bool {
	d.mu.Lock()
	if d.state == Shutdown {
		d.mu.Unlock()
		d.logger.Warn("attempted to launch a task on a shut down dispatcher", map[string]any{
			"task": c.name,
		})
		return false
	}
	if !priority && d.state == Uninitialized && len(d.queue) >= d.maxPreInit {
		d.mu.Unlock()
		d.logger.Error("pre-init task queue is full, dropping task", map[string]any{
			"task":  c.name,
			"limit": d.maxPreInit,
		})
		return false
	}
	if priority {
		d.queue = append([]*command{c}, d.queue...)
	} else {
		d.queue = append(d.queue, c)
	}
	d.triggerLocked()
	d.mu.Unlock()
	return true
}

// triggerLocked starts a drain if the worker is parked on an Idle state.
// Caller must hold mu.
func (d *Dispatcher) triggerLocked() {
	if d.state != Idle || len(d.queue) == 0 {
		return
	}
	d.state = Processing
	job := make(chan struct{})
	d.currentJob = job
	go d.drain(job)
}

// drain pops and executes commands until the queue empties or a control
// command parks the worker. Exactly one drain runs at a time.
func (d *Dispatcher) drain(job chan struct{}) {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			if d.state == Processing {
				d.state = Idle
			}
			close(job)
			d.mu.Unlock()
			return
		}
		c := d.queue[0]
		d.queue = d.queue[1:]

		switch c.kind {
		case cmdStop:
			d.state = Stopped
			close(job)
			d.mu.Unlock()
			return
		case cmdShutdown:
			d.discardQueuedLocked(d.queue)
			d.queue = nil
			d.state = Shutdown
			d.shuttingDown = false
			close(job)
			d.mu.Unlock()
			return
		case cmdClear:
			kept := d.queue[:0]
			for _, qc := range d.queue {
				switch qc.kind {
				case cmdPersistentTask, cmdShutdown:
					kept = append(kept, qc)
				default:
					d.discardLocked(qc)
				}
			}
			d.queue = kept
			d.mu.Unlock()
			continue
		default:
			d.mu.Unlock()
			err := runTask(c.task)
			if err != nil {
				d.logger.Error("dispatched task failed", map[string]any{
					"task":  c.name,
					"error": err.Error(),
				})
			}
			if c.done != nil {
				c.done <- err
				close(c.done)
			}
		}
	}
}

// discardQueuedLocked resolves the waiters of every discarded command.
// Caller must hold mu.
func (d *Dispatcher) discardQueuedLocked(queue []*command) {
	for _, c := range queue {
		d.discardLocked(c)
	}
}

func (d *Dispatcher) discardLocked(c *command) {
	if c.done != nil {
		c.done <- ErrAborted
		close(c.done)
	}
}

// runTask executes the task, converting panics into errors so a broken
// recording call can never take down the host application.
func runTask(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task()
}

// FlushInit moves the dispatcher out of Uninitialized and starts draining
// the pre-init queue. The optional task runs before everything already
// queued. Calling it twice is a logged no-op.
func (d *Dispatcher) FlushInit(task Task) {
	d.mu.Lock()
	if d.state != Uninitialized {
		d.mu.Unlock()
		d.logger.Info("dispatcher already initialized, ignoring flush", nil)
		return
	}
	if task != nil {
		d.queue = append([]*command{{kind: cmdTask, task: task, name: "init"}}, d.queue...)
	}
	d.state = Idle
	d.triggerLocked()
	d.mu.Unlock()
}

// Stop parks the worker once the stop command is reached. With priority the
// command jumps the queue; without it every already-queued task still runs
// first. Queued tasks are kept either way.
func (d *Dispatcher) Stop(priority bool) {
	d.mu.Lock()
	shuttingDown := d.shuttingDown
	d.mu.Unlock()
	if shuttingDown {
		// A stop during shutdown upgrades to a clear so the shutdown
		// command itself remains queued.
		d.Clear()
		return
	}
	d.launch(&command{kind: cmdStop, name: "stop"}, priority)
}

// Clear discards queued tasks, keeping persistent tasks and shutdown
// commands, then resumes.
func (d *Dispatcher) Clear() {
	d.launch(&command{kind: cmdClear, name: "clear"}, true)
	d.Resume()
}

// Resume restarts a stopped dispatcher.
func (d *Dispatcher) Resume() {
	d.mu.Lock()
	if d.state == Stopped {
		d.state = Idle
	}
	d.triggerLocked()
	d.mu.Unlock()
}

// Shutdown enqueues a shutdown command behind all queued work, resumes, and
// blocks until the queue drains. Further launches are rejected once the
// command executes. Safe to call more than once.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if d.state == Shutdown {
		d.mu.Unlock()
		return
	}
	d.shuttingDown = true
	d.queue = append(d.queue, &command{kind: cmdShutdown, name: "shutdown"})
	if d.state == Stopped {
		d.state = Idle
	}
	d.triggerLocked()
	job := d.currentJob
	d.mu.Unlock()

	if job != nil {
		<-job
	}
}

// TestLaunch enqueues a task and blocks until it executed, returning the
// task's error. Rejected tasks return ErrRejected; tasks discarded by a
// clear or shutdown return ErrAborted. Pre-init test tasks execute once
// FlushInit runs.
func (d *Dispatcher) TestLaunch(task Task) error {
	done := make(chan error, 1)
	if !d.launch(&command{kind: cmdTestTask, task: task, name: "test", done: done}, false) {
		return ErrRejected
	}
	return <-done
}

// BlockOnQueue waits for the currently running drain to finish. Returns
// immediately when the worker is parked.
func (d *Dispatcher) BlockOnQueue() {
	d.mu.Lock()
	job := d.currentJob
	state := d.state
	d.mu.Unlock()
	if state == Processing && job != nil {
		<-job
	}
}
