// Package session orchestrates the capture session: permission-gated user
// actions, one-time provider acquisition, use-case binding and the
// recording lifecycle. All state lives on a single worker goroutine; the
// exported entry points post onto it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/CamGo/internal/debug"
	"github.com/cjeanneret/CamGo/internal/hw/camera"
	"github.com/cjeanneret/CamGo/internal/logic/acquire"
	"github.com/cjeanneret/CamGo/internal/logic/bind"
	"github.com/cjeanneret/CamGo/internal/logic/permission"
	"github.com/cjeanneret/CamGo/internal/logic/recording"
	"github.com/cjeanneret/CamGo/internal/media"
	"github.com/cjeanneret/CamGo/internal/metrics"
)

// User-visible messages.
const (
	MsgPhotoSaved       = "Photo saved successfully"
	MsgPhotoFailed      = "Failed to save photo"
	MsgPhotoUnavailable = "Photo capture is not available"
	MsgVideoSaved       = "Video capture successful"
	MsgVideoFailed      = "Video capture failed"
	MsgVideoStartFailed = "Failed to start recording"
	MsgFlashUnavailable = "Flash is not available"
	MsgTorchFailed      = "Failed to toggle torch"
	MsgCameraFailed     = "Failed to open camera"
	MsgCameraNotReady   = "Camera is not ready"
	MsgNoImage          = "No image available"
)

// errFinalizeTimeout closes a recording whose Finalize never arrived.
var errFinalizeTimeout = errors.New("finalize event timed out")

// UI is the presentation collaborator. Calls are made from the worker and
// must not call back into the Manager synchronously.
type UI interface {
	UserMessage(text string)
	ThumbnailUpdated(uri string)
	RecordingIndicator(recording bool)
	TorchIndicator(on bool)
}

// ErrorReporter is implemented by a UI that wants the error behind a
// failure message, e.g. to match it with errors.Is. UserError follows the
// UserMessage carrying the same text.
type ErrorReporter interface {
	UserError(err error)
}

// Store is the media destination store used for photos and videos.
type Store interface {
	CreateEntry(displayName, mimeType, relativePath string) (camera.Destination, error)
}

// Deps are the collaborators of a Manager.
type Deps struct {
	Platform permission.Platform
	Provider camera.Provider
	Surface  camera.Surface
	Store    Store
	UI       UI
}

// Options configure a Manager.
type Options struct {
	Capabilities         camera.Capability
	Facing               camera.LensFacing
	FinalizeTimeout      time.Duration
	ScopedStorageVersion int
	Photo                media.Spec
	Video                media.Spec
	Namer                media.Namer
	// QueueSize is the worker's task buffer.
	QueueSize int
}

func (o *Options) setDefaults() {
	if o.Capabilities == 0 {
		o.Capabilities = camera.CapPreview | camera.CapPhoto | camera.CapVideo
	}
	if o.FinalizeTimeout <= 0 {
		o.FinalizeTimeout = 5 * time.Second
	}
	if o.ScopedStorageVersion <= 0 {
		o.ScopedStorageVersion = 29
	}
	if o.Photo.MimeType == "" {
		o.Photo = media.Spec{MimeType: "image/jpeg", RelativePath: "Pictures/CameraX"}
	}
	if o.Video.MimeType == "" {
		o.Video = media.Spec{MimeType: "video/mp4", RelativePath: "Movies/CameraX-Recorder"}
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
}

// Manager is the capture session manager.
type Manager struct {
	w     *worker
	opts  Options
	ui    UI
	store Store

	ctx    context.Context
	cancel context.CancelFunc

	gate   *permission.Gate
	acq    *acquire.Acquirer
	binder *bind.Binder
	rec    *recording.Machine

	// Worker-owned state.
	cam           camera.Camera
	facing        camera.LensFacing
	lastPhoto     string
	started       bool
	closing       bool
	rebindPending bool
	afterFinalize []func()
	finalizeTimer *time.Timer

	snapMu sync.RWMutex
	snap   Status
}

// New creates a Manager and starts its worker. The session itself is
// started by Start.
func New(deps Deps, opts Options) *Manager {
	opts.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		w:      newWorker(opts.QueueSize),
		opts:   opts,
		ui:     deps.UI,
		store:  deps.Store,
		ctx:    ctx,
		cancel: cancel,
		binder: bind.NewBinder(deps.Surface),
		facing: opts.Facing,
	}
	if m.ui == nil {
		m.ui = nopUI{}
	}
	m.gate = permission.NewGate(deps.Platform, permission.Options{
		ScopedStorageVersion: opts.ScopedStorageVersion,
		OnResult: func(kind permission.Kind, granted bool) {
			m.w.post(func() { m.permissionResult(kind, granted) })
		},
	})
	m.acq = acquire.New(deps.Provider, m.w.post)
	m.rec = recording.NewMachine(deps.Store, recording.Options{Spec: opts.Video, Name: opts.Namer.VideoName})
	m.publish()
	return m
}

// entry runs f on the worker unless the session is closing.
func (m *Manager) entry(ctx context.Context, name string, f func()) error {
	return m.w.call(ctx, func() error {
		if m.closing {
			return camera.ErrClosed
		}
		debug.Action(name)
		f()
		m.publish()
		return nil
	})
}

// Start opens the session: with camera permission the provider is acquired
// and bound; otherwise camera permission is requested and the session
// starts once it is granted.
func (m *Manager) Start(ctx context.Context) error {
	return m.entry(ctx, "start", m.start)
}

// OnCaptureToggle stops the current recording or starts a new one.
func (m *Manager) OnCaptureToggle(ctx context.Context) error {
	return m.entry(ctx, "capture toggle", m.captureToggle)
}

// OnPhotoRequest captures a still image into the media store.
func (m *Manager) OnPhotoRequest(ctx context.Context) error {
	return m.entry(ctx, "photo", m.photoRequest)
}

// OnFlipLens switches between back and front sensors by rebinding.
func (m *Manager) OnFlipLens(ctx context.Context) error {
	return m.entry(ctx, "flip lens", m.flipLens)
}

// OnTorchToggle toggles the torch of the bound sensor.
func (m *Manager) OnTorchToggle(ctx context.Context) error {
	return m.entry(ctx, "torch toggle", m.torchToggle)
}

// OnPermissionResult delivers a permission answer.
func (m *Manager) OnPermissionResult(ctx context.Context, kind permission.Kind, granted bool) error {
	return m.w.call(ctx, func() error {
		m.permissionResult(kind, granted)
		return nil
	})
}

// OnTeardown stops an active recording, waits for it to finalize (bounded
// by the finalize timeout), releases the camera and stops the worker. It
// returns once the session is released or ctx is done.
func (m *Manager) OnTeardown(ctx context.Context) error {
	err := m.w.call(ctx, func() error {
		m.teardown()
		return nil
	})
	if err != nil && !errors.Is(err, camera.ErrClosed) {
		return err
	}
	select {
	case <-m.w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the session is torn down.
func (m *Manager) Done() <-chan struct{} { return m.w.done }

func (m *Manager) start() {
	if m.started {
		// A failed acquire or bind is retried by starting again.
		if m.cam == nil && !m.acq.InFlight() {
			m.acq.Acquire(m.onAcquired)
			return
		}
		debug.Verbose("session: already started")
		return
	}
	if m.gate.EnsureAll(m.openSession, permission.Camera) == permission.Pending {
		debug.Live("session: waiting for camera permission")
		return
	}
	m.openSession()
}

func (m *Manager) openSession() {
	if m.closing || m.started {
		return
	}
	m.started = true
	if m.lastPhoto != "" {
		m.ui.ThumbnailUpdated(m.lastPhoto)
	}
	m.acq.Acquire(m.onAcquired)
}

func (m *Manager) onAcquired(handle camera.ProviderHandle, err error) {
	if m.closing {
		return
	}
	if err != nil {
		metrics.RecordFailure("acquire")
		m.report(MsgCameraFailed, err)
		m.publish()
		return
	}
	m.bindCurrent(handle)
	m.publish()
}

func (m *Manager) bindCurrent(handle camera.ProviderHandle) {
	cam, err := m.binder.Bind(handle, m.facing, m.opts.Capabilities)
	if err != nil {
		m.cam = nil
		metrics.RecordFailure("bind")
		m.report(MsgCameraFailed, err)
		return
	}
	m.cam = cam
	metrics.RecordBind(m.facing.String())
	m.ui.TorchIndicator(cam.TorchEnabled())
}

func (m *Manager) captureToggle() {
	if m.rec.Handle() != nil {
		m.stopRecording()
		return
	}
	kinds := []permission.Kind{permission.Camera, permission.Microphone, permission.Storage}
	if m.gate.EnsureAll(nil, kinds...) == permission.Pending {
		debug.Live("session: capture toggle waiting for permissions %v", m.gate.Outstanding())
		return
	}
	if m.cam == nil {
		m.report(MsgCameraNotReady, camera.ErrNotBound)
		return
	}
	rec, err := m.rec.Toggle(m.cam.Video())
	if err != nil {
		metrics.RecordFailure("record_start")
		m.report(MsgVideoStartFailed, err)
		return
	}
	m.ui.RecordingIndicator(true)
	metrics.SetRecording(true)
	go m.forward(rec)
}

// forward delivers rec's events to the worker in order.
func (m *Manager) forward(rec camera.Recording) {
	id := rec.ID()
	for ev := range rec.Events() {
		ev := ev
		if !m.w.post(func() { m.onRecordEvent(id, ev) }) {
			debug.Verbose("session: dropping %s event of %s, worker stopped", ev.Kind, id)
			rec.Close()
			return
		}
	}
}

func (m *Manager) onRecordEvent(id string, ev camera.RecordEvent) {
	res, done := m.rec.HandleEvent(id, ev)
	if done {
		m.recordingFinished(res)
	}
	m.publish()
}

// stopRecording asks the current recording to stop and bounds the wait
// for its Finalize event.
func (m *Manager) stopRecording() {
	h := m.rec.Handle()
	if h == nil || !m.rec.Stop() {
		return
	}
	if m.finalizeTimer != nil {
		return
	}
	id := h.ID()
	m.finalizeTimer = time.AfterFunc(m.opts.FinalizeTimeout, func() {
		m.w.post(func() { m.finalizeTimedOut(id) })
	})
}

// whenIdle runs f once no recording exists, stopping the current one first.
func (m *Manager) whenIdle(f func()) {
	if m.rec.Handle() == nil {
		f()
		return
	}
	m.afterFinalize = append(m.afterFinalize, f)
	m.stopRecording()
}

func (m *Manager) finalizeTimedOut(id string) {
	h := m.rec.Handle()
	if h == nil || h.ID() != id {
		return
	}
	debug.Warn("session: recording %s did not finalize within %s", id, m.opts.FinalizeTimeout)
	res, ok := m.rec.ForceClose(errFinalizeTimeout)
	if ok {
		m.recordingFinished(res)
	}
	m.publish()
}

func (m *Manager) recordingFinished(res recording.Result) {
	if m.finalizeTimer != nil {
		m.finalizeTimer.Stop()
		m.finalizeTimer = nil
	}
	metrics.RecordRecording(res.Err, res.Duration.Seconds())
	metrics.SetRecording(false)
	m.ui.RecordingIndicator(false)
	if res.Err != nil {
		m.report(MsgVideoFailed, res.Err)
	} else {
		m.ui.UserMessage(MsgVideoSaved)
	}

	pending := m.afterFinalize
	m.afterFinalize = nil
	for _, f := range pending {
		f()
	}
}

func (m *Manager) photoRequest() {
	var out camera.PhotoOutput
	if m.cam != nil {
		out = m.cam.Photo()
	}
	if out == nil {
		metrics.RecordPhoto(camera.ErrPhotoUnavailable)
		m.ui.UserMessage(MsgPhotoUnavailable)
		return
	}
	if m.gate.EnsureAll(nil, permission.Camera, permission.Storage) == permission.Pending {
		debug.Live("session: photo waiting for permissions %v", m.gate.Outstanding())
		return
	}
	dest, err := m.store.CreateEntry(m.opts.Namer.PhotoName(), m.opts.Photo.MimeType, m.opts.Photo.RelativePath)
	if err != nil {
		metrics.RecordPhoto(err)
		m.report(MsgPhotoFailed, err)
		return
	}
	results := out.TakePicture(m.ctx, dest)
	go func() {
		res := <-results
		if !m.w.post(func() { m.photoDone(dest, res) }) {
			_ = dest.Discard()
		}
	}()
}

func (m *Manager) photoDone(dest camera.Destination, res camera.PhotoResult) {
	err := res.Err
	if err == nil {
		err = dest.Commit()
	}
	metrics.RecordPhoto(err)
	if err != nil {
		_ = dest.Discard()
		m.report(MsgPhotoFailed, err)
		m.publish()
		return
	}
	m.lastPhoto = dest.URI()
	m.ui.ThumbnailUpdated(m.lastPhoto)
	m.ui.UserMessage(MsgPhotoSaved)
	m.publish()
}

func (m *Manager) flipLens() {
	m.facing = m.facing.Flip()
	debug.Event("lens flipped", "facing", m.facing.String())
	if !m.started {
		return
	}
	// The pending acquisition binds with the current facing.
	if m.rebindPending || m.acq.InFlight() {
		return
	}
	m.rebindPending = true
	m.whenIdle(m.rebind)
}

// rebind reruns acquire then bind; the cached handle makes acquisition
// immediate after the first success.
func (m *Manager) rebind() {
	m.rebindPending = false
	if m.closing {
		return
	}
	m.acq.Acquire(m.onAcquired)
}

func (m *Manager) torchToggle() {
	if m.cam == nil {
		m.report(MsgCameraNotReady, camera.ErrNotBound)
		return
	}
	if !m.cam.FlashAvailable() {
		metrics.RecordTorchToggle(camera.ErrTorchUnavailable)
		m.ui.UserMessage(MsgFlashUnavailable)
		return
	}
	err := m.cam.SetTorch(!m.cam.TorchEnabled())
	metrics.RecordTorchToggle(err)
	if err != nil {
		m.report(MsgTorchFailed, err)
	}
	m.ui.TorchIndicator(m.cam.TorchEnabled())
}

func (m *Manager) permissionResult(kind permission.Kind, granted bool) {
	metrics.RecordPermission(kind.String(), granted)
	if !granted {
		err := fmt.Errorf("%s %w", kind, camera.ErrPermissionDenied)
		debug.Live("session: %v", err)
		m.notify(err)
	}
	if resume := m.gate.Resolve(kind, granted); resume != nil && !m.closing {
		resume()
	}
	m.publish()
}

func (m *Manager) teardown() {
	if m.closing {
		return
	}
	m.closing = true
	debug.Info("session: tearing down")
	m.whenIdle(m.release)
	m.publish()
}

func (m *Manager) release() {
	if h := m.acq.Handle(); h != nil {
		h.UnbindAll()
	}
	m.acq.Teardown()
	m.cam = nil
	m.cancel()
	m.publish()
	m.w.stop()
	debug.Info("session: released")
}

func (m *Manager) report(prefix string, err error) {
	err = fmt.Errorf("%s: %w", prefix, err)
	debug.Error(err)
	m.notify(err)
}

// notify shows err to the user and hands it to an ErrorReporter UI.
func (m *Manager) notify(err error) {
	m.ui.UserMessage(err.Error())
	if r, ok := m.ui.(ErrorReporter); ok {
		r.UserError(err)
	}
}

// LastPhoto returns the URI of the last saved photo, or "".
func (m *Manager) LastPhoto() string {
	return m.Snapshot().LastPhoto
}

type nopUI struct{}

func (nopUI) UserMessage(string)      {}
func (nopUI) ThumbnailUpdated(string) {}
func (nopUI) RecordingIndicator(bool) {}
func (nopUI) TorchIndicator(bool)     {}
