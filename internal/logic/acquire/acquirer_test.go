package acquire

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/CamGo/internal/hw/camera"
)

// fakeProvider hands out result channels the test resolves by hand.
type fakeProvider struct {
	mu       sync.Mutex
	requests []chan camera.AcquireResult
	ctxs     []context.Context
}

func (p *fakeProvider) AcquireAsync(ctx context.Context) <-chan camera.AcquireResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan camera.AcquireResult, 1)
	p.requests = append(p.requests, ch)
	p.ctxs = append(p.ctxs, ctx)
	return ch
}

func (p *fakeProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func (p *fakeProvider) resolve(i int, res camera.AcquireResult) {
	p.mu.Lock()
	ch := p.requests[i]
	p.mu.Unlock()
	ch <- res
}

type fakeHandle struct{ unbinds atomic.Int32 }

func (h *fakeHandle) UnbindAll() { h.unbinds.Add(1) }
func (h *fakeHandle) Bind(camera.Selector, ...camera.UseCase) (camera.Camera, error) {
	return nil, errors.New("not implemented")
}

// testWorker is a minimal stand-in for the session worker.
type testWorker struct {
	tasks  chan func()
	closed bool
}

func newTestWorker() *testWorker { return &testWorker{tasks: make(chan func(), 16)} }

func (w *testWorker) post(f func()) bool {
	if w.closed {
		return false
	}
	w.tasks <- f
	return true
}

// runOne executes the next posted task.
func (w *testWorker) runOne(t *testing.T) {
	t.Helper()
	select {
	case f := <-w.tasks:
		f()
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for posted task")
	}
}

type outcome struct {
	handle camera.ProviderHandle
	err    error
}

func TestAcquire_SingleRequestForConcurrentCallers(t *testing.T) {
	p := &fakeProvider{}
	w := newTestWorker()
	a := New(p, w.post)

	var got []outcome
	cont := func(h camera.ProviderHandle, err error) { got = append(got, outcome{h, err}) }

	a.Acquire(cont)
	a.Acquire(cont)
	assert.Equal(t, 1, p.count(), "second call while in flight must not issue a request")
	assert.True(t, a.InFlight())

	h := &fakeHandle{}
	p.resolve(0, camera.AcquireResult{Handle: h})
	w.runOne(t)

	require.Len(t, got, 2)
	for _, o := range got {
		assert.NoError(t, o.err)
		assert.Same(t, h, o.handle)
	}
	assert.False(t, a.InFlight())
}

func TestAcquire_CachedHandleResolvesSynchronously(t *testing.T) {
	p := &fakeProvider{}
	w := newTestWorker()
	a := New(p, w.post)

	h := &fakeHandle{}
	a.Acquire(func(camera.ProviderHandle, error) {})
	p.resolve(0, camera.AcquireResult{Handle: h})
	w.runOne(t)

	called := false
	a.Acquire(func(got camera.ProviderHandle, err error) {
		called = true
		assert.NoError(t, err)
		assert.Same(t, h, got)
	})
	assert.True(t, called)
	assert.Equal(t, 1, p.count())
	assert.Same(t, h, a.Handle())
}

func TestAcquire_FailureIsNotCachedOrRetried(t *testing.T) {
	p := &fakeProvider{}
	w := newTestWorker()
	a := New(p, w.post)

	var gotErr error
	a.Acquire(func(_ camera.ProviderHandle, err error) { gotErr = err })
	busy := errors.New("device busy")
	p.resolve(0, camera.AcquireResult{Err: busy})
	w.runOne(t)

	require.Error(t, gotErr)
	assert.ErrorIs(t, gotErr, camera.ErrAcquisition)
	assert.ErrorIs(t, gotErr, busy)
	assert.Nil(t, a.Handle())
	assert.Equal(t, 1, p.count(), "no automatic retry")

	// User re-triggers: a fresh request goes out.
	a.Acquire(func(camera.ProviderHandle, error) {})
	assert.Equal(t, 2, p.count())
}

func TestAcquire_NilHandleIsFailure(t *testing.T) {
	p := &fakeProvider{}
	w := newTestWorker()
	a := New(p, w.post)

	var gotErr error
	a.Acquire(func(_ camera.ProviderHandle, err error) { gotErr = err })
	p.resolve(0, camera.AcquireResult{})
	w.runOne(t)
	assert.ErrorIs(t, gotErr, camera.ErrAcquisition)
}

func TestTeardown_LateResultIsDiscarded(t *testing.T) {
	p := &fakeProvider{}
	w := newTestWorker()
	a := New(p, w.post)

	a.Acquire(func(camera.ProviderHandle, error) { t.Fatal("continuation must not run after teardown") })
	a.Teardown()
	assert.Error(t, p.ctxs[0].Err(), "teardown cancels the outstanding acquisition")

	p.resolve(0, camera.AcquireResult{Handle: &fakeHandle{}})
	w.runOne(t)
	assert.Nil(t, a.Handle())
	assert.False(t, a.InFlight())
}

func TestTeardown_ReacquiresAfterwards(t *testing.T) {
	p := &fakeProvider{}
	w := newTestWorker()
	a := New(p, w.post)

	a.Acquire(func(camera.ProviderHandle, error) {})
	p.resolve(0, camera.AcquireResult{Handle: &fakeHandle{}})
	w.runOne(t)
	require.NotNil(t, a.Handle())

	a.Teardown()
	assert.Nil(t, a.Handle())

	a.Acquire(func(camera.ProviderHandle, error) {})
	assert.Equal(t, 2, p.count())
}

func TestAcquire_WorkerGoneReleasesHandle(t *testing.T) {
	p := &fakeProvider{}
	w := newTestWorker()
	w.closed = true
	a := New(p, w.post)

	a.Acquire(func(camera.ProviderHandle, error) {})
	h := &fakeHandle{}
	p.resolve(0, camera.AcquireResult{Handle: h})

	assert.Eventually(t, func() bool { return h.unbinds.Load() == 1 }, time.Second, 5*time.Millisecond)
}
