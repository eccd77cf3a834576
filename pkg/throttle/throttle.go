/*
Package throttle serialises calls to a registry.

A Throttler runs queued tasks one at a time, in the order they were
submitted, and pauses for a fixed delay between tasks whenever more
work is waiting. Registries with many repositories will otherwise
answer a burst of catalog/tag/manifest requests with HTTP 429.

Callers are not serialised: each caller blocks only on its own task,
and can stop waiting (via its context) without giving up the task's
place in the queue.
*/
package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/jonboulle/clockwork"
)

// DefaultDelay is the pause between two queued registry calls.
const DefaultDelay = 100 * time.Millisecond

// Task is one unit of queued work. It reports its result by
// assigning to variables it closes over.
type Task func(ctx context.Context) error

type job struct {
	ctx    context.Context
	task   Task
	queued time.Time
	done   chan error
}

// Throttler is a FIFO queue of tasks with a single drain loop.
type Throttler struct {
	delay  time.Duration
	clock  clockwork.Clock
	logger log.Logger

	mu       sync.Mutex
	queue    []*job
	draining bool
}

type Option func(*Throttler)

// WithDelay sets the pause between tasks.
func WithDelay(d time.Duration) Option {
	return func(t *Throttler) {
		t.delay = d
	}
}

// WithClock substitutes the clock used for the pause; tests use a
// fake clock.
func WithClock(c clockwork.Clock) Option {
	return func(t *Throttler) {
		t.clock = c
	}
}

func New(logger log.Logger, opts ...Option) *Throttler {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	t := &Throttler{
		delay:  DefaultDelay,
		clock:  clockwork.NewRealClock(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Do queues the task and waits for its outcome. If ctx is done first,
// Do returns ctx.Err(); the task is not withdrawn and will still run
// (with that ctx) when its turn comes.
func (t *Throttler) Do(ctx context.Context, task Task) error {
	j := &job{
		ctx:    ctx,
		task:   task,
		queued: t.clock.Now(),
		done:   make(chan error, 1),
	}

	t.mu.Lock()
	t.queue = append(t.queue, j)
	queueLength.Set(float64(len(t.queue)))
	start := !t.draining
	t.draining = true
	t.mu.Unlock()

	if start {
		go t.drain()
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len is the number of tasks waiting to run, not counting one that
// is running.
func (t *Throttler) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

func (t *Throttler) drain() {
	for {
		t.mu.Lock()
		if len(t.queue) == 0 {
			t.draining = false
			t.mu.Unlock()
			return
		}
		j := t.queue[0]
		t.queue[0] = nil
		t.queue = t.queue[1:]
		queueLength.Set(float64(len(t.queue)))
		t.mu.Unlock()

		queueWait.Observe(t.clock.Now().Sub(j.queued).Seconds())
		j.done <- t.run(j)

		t.mu.Lock()
		more := len(t.queue) > 0
		t.mu.Unlock()
		if more {
			t.clock.Sleep(t.delay)
		}
	}
}

// run executes one task; a panic is handed to that task's caller
// as an error and the loop carries on.
func (t *Throttler) run(j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Log("err", fmt.Sprintf("queued task panicked: %v", r))
			err = fmt.Errorf("queued task panicked: %v", r)
		}
	}()
	return j.task(j.ctx)
}
