// Package acquire obtains the exclusive camera provider handle once per
// session and hands it to continuations.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/CamGo/internal/debug"
	"github.com/cjeanneret/CamGo/internal/hw/camera"
)

// Executor schedules f on the owning worker. It reports false when the
// worker is gone and f will never run.
type Executor func(f func()) bool

// Continuation receives the acquisition outcome on the worker.
type Continuation func(handle camera.ProviderHandle, err error)

// Acquirer caches the provider handle after the first successful
// acquisition and collapses concurrent requests into one. It must only be
// used from the worker that post schedules onto.
type Acquirer struct {
	provider camera.Provider
	post     Executor

	handle   camera.ProviderHandle
	inflight bool
	waiters  []Continuation
	gen      uint64
	cancel   context.CancelFunc
	started  time.Time
}

// New creates an Acquirer for provider whose results are delivered via post.
func New(provider camera.Provider, post Executor) *Acquirer {
	return &Acquirer{provider: provider, post: post}
}

// Acquire calls cont with the provider handle. A cached handle is delivered
// synchronously. Otherwise cont is queued and a single underlying request is
// issued if none is in flight.
func (a *Acquirer) Acquire(cont Continuation) {
	if a.handle != nil {
		cont(a.handle, nil)
		return
	}
	a.waiters = append(a.waiters, cont)
	if a.inflight {
		debug.Verbose("acquire: request already in flight, %d waiting", len(a.waiters))
		return
	}

	a.inflight = true
	a.started = time.Now()
	gen := a.gen
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	debug.Event("acquiring camera provider")

	results := a.provider.AcquireAsync(ctx)
	go func() {
		res := <-results
		if !a.post(func() { a.complete(gen, res) }) {
			debug.Verbose("acquire: worker gone, dropping late result")
			if res.Handle != nil {
				res.Handle.UnbindAll()
			}
		}
	}()
}

func (a *Acquirer) complete(gen uint64, res camera.AcquireResult) {
	if gen != a.gen {
		debug.Verbose("acquire: discarding result of a torn-down session")
		return
	}
	a.inflight = false
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	waiters := a.waiters
	a.waiters = nil

	var err error
	switch {
	case res.Err != nil:
		err = fmt.Errorf("%w: %w", camera.ErrAcquisition, res.Err)
	case res.Handle == nil:
		err = fmt.Errorf("%w: %w", camera.ErrAcquisition, errors.New("provider returned no handle"))
	default:
		a.handle = res.Handle
		debug.Elapsed("camera provider acquired", a.started)
	}
	if err != nil {
		debug.Error(err)
	}
	for _, w := range waiters {
		w(a.handle, err)
	}
}

// Handle returns the cached provider handle, or nil.
func (a *Acquirer) Handle() camera.ProviderHandle { return a.handle }

// InFlight reports whether an acquisition is outstanding.
func (a *Acquirer) InFlight() bool { return a.inflight }

// Teardown drops the cached handle and invalidates any outstanding request;
// its late result is discarded. Pending continuations are not called.
func (a *Acquirer) Teardown() {
	a.gen++
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.handle = nil
	a.inflight = false
	a.waiters = nil
}
