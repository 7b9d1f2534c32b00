package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ardnew/ghostwriter/log"
	"github.com/ardnew/ghostwriter/pkg"
)

// Pool defaults.
const (
	DefaultQueueSize       = 64
	DefaultShutdownTimeout = 10 * time.Second
)

// Pool errors.
var (
	ErrPoolClosed   = pkg.NewError("worker pool is shut down")
	ErrPoolWorker   = pkg.NewError("failed to start worker")
	ErrPoolShutdown = pkg.NewError("workers did not stop in time")
)

// Pool runs tasks on a fixed set of long-lived workers. Each worker
// exclusively owns a value of type W for its whole life and runs the tasks
// sent to it strictly in order.
type Pool[W any] struct {
	mu      sync.Mutex
	members []*member[W]
	next    int
	closed  bool
}

type member[W any] struct {
	id   int
	w    W
	in   chan message[W]
	done chan struct{}
	once sync.Once
}

// message is a task, or the stop sentinel.
type message[W any] struct {
	task func(W)
	stop bool
}

// NewPool starts n workers, calling newWorker once per worker to create the
// value it owns. Each worker queues up to queue tasks.
func NewPool[W any](
	ctx context.Context,
	n, queue int,
	newWorker func(id int) (W, error),
) (*Pool[W], error) {
	if n < 1 {
		n = 1
	}

	if queue < 1 {
		queue = DefaultQueueSize
	}

	p := &Pool[W]{members: make([]*member[W], 0, n)}

	for id := range n {
		w, err := newWorker(id)
		if err != nil {
			_ = p.Shutdown(DefaultShutdownTimeout)

			return nil, ErrPoolWorker.With(slog.Int("worker", id)).Wrap(err)
		}

		m := &member[W]{
			id:   id,
			w:    w,
			in:   make(chan message[W], queue),
			done: make(chan struct{}),
		}

		p.members = append(p.members, m)

		go m.run(ctx)
	}

	log.FromContext(ctx).Debug("worker pool started", slog.Int("workers", n))

	return p, nil
}

// Size returns the number of workers.
func (p *Pool[W]) Size() int { return len(p.members) }

// Submit queues task on the next worker in round-robin order.
func (p *Pool[W]) Submit(task func(W)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	m := p.members[p.next]
	p.next = (p.next + 1) % len(p.members)

	select {
	case m.in <- message[W]{task: task}:
		return nil
	case <-m.done:
		return ErrPoolClosed.With(slog.Int("worker", m.id))
	}
}

// Shutdown sends the stop sentinel to every worker, waits up to timeout for
// all of them to finish, and then closes every channel. Workers that have
// already exited are skipped.
func (p *Pool[W]) Shutdown(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	expired := false

	for _, m := range p.members {
		if expired {
			break
		}

		select {
		case m.in <- message[W]{stop: true}:
		case <-m.done:
		case <-deadline.C:
			expired = true
		}
	}

	var late []int

	for _, m := range p.members {
		if !expired {
			select {
			case <-m.done:
				continue
			case <-deadline.C:
				expired = true
			}
		}

		select {
		case <-m.done:
		default:
			late = append(late, m.id)
		}
	}

	for _, m := range p.members {
		m.once.Do(func() { close(m.in) })
	}

	if len(late) > 0 {
		return ErrPoolShutdown.Wrap(fmt.Errorf("workers %v still running after %v", late, timeout))
	}

	return nil
}

func (m *member[W]) run(ctx context.Context) {
	defer close(m.done)

	for msg := range m.in {
		if msg.stop {
			return
		}

		m.exec(ctx, msg.task)
	}
}

func (m *member[W]) exec(ctx context.Context, task func(W)) {
	defer func() {
		if p := recover(); p != nil {
			log.FromContext(ctx).Error("worker task panicked",
				slog.Int("worker", m.id),
				slog.Any("panic", p),
			)
		}
	}()

	task(m.w)
}
