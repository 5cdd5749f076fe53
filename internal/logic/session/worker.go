package session

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	camdebug "github.com/cjeanneret/CamGo/internal/debug"
	"github.com/cjeanneret/CamGo/internal/hw/camera"
)

// worker runs posted tasks one at a time on a single goroutine. All session
// state is owned by it.
type worker struct {
	tasks chan func()
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newWorker(buffer int) *worker {
	w := &worker{
		tasks: make(chan func(), buffer),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *worker) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.quit:
			return
		case f := <-w.tasks:
			w.run(f)
		}
	}
}

func (w *worker) run(f func()) {
	defer func() {
		if r := recover(); r != nil {
			camdebug.Error(fmt.Errorf("session worker panic: %v\n%s", r, debug.Stack()))
		}
	}()
	f()
}

// post queues f. It reports false when the worker has stopped and f will
// never run.
func (w *worker) post(f func()) bool {
	select {
	case <-w.quit:
		return false
	default:
	}
	select {
	case w.tasks <- f:
		return true
	case <-w.quit:
		return false
	}
}

// call runs f on the worker and waits for it to return.
func (w *worker) call(ctx context.Context, f func() error) error {
	errc := make(chan error, 1)
	if !w.post(func() { errc <- f() }) {
		return camera.ErrClosed
	}
	select {
	case err := <-errc:
		return err
	case <-w.done:
		// Stopped by f itself or by a task queued before it.
		select {
		case err := <-errc:
			return err
		default:
			return camera.ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop ends the loop after the running task. Safe from within a task.
func (w *worker) stop() {
	w.once.Do(func() { close(w.quit) })
}
