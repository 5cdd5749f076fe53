// Package recording drives the lifecycle of a single video recording from
// the user's toggle to the encoder's finalize event.
package recording

import (
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/CamGo/internal/debug"
	"github.com/cjeanneret/CamGo/internal/hw/camera"
	"github.com/cjeanneret/CamGo/internal/media"
)

// State of the recording machine.
type State int

const (
	Idle State = iota
	Requested
	Active
	Finalizing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requested:
		return "requested"
	case Active:
		return "active"
	case Finalizing:
		return "finalizing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Store creates the destination a recording is written into.
type Store interface {
	CreateEntry(displayName, mimeType, relativePath string) (camera.Destination, error)
}

// Options configure where recordings go.
type Options struct {
	Spec media.Spec
	// Name returns the display name of a new recording.
	Name func() string
}

// Result is reported once per recording when it returns to Idle.
type Result struct {
	ID       string
	URI      string
	Duration time.Duration
	// Err is nil on success and wraps camera.ErrRecordingFinalize otherwise.
	Err error
}

// Machine holds at most one recording handle. Whether a recording is in
// progress is defined solely by handle presence. Not safe for concurrent
// use; the session drives it from its worker.
type Machine struct {
	store Store
	opts  Options

	state   State
	handle  camera.Recording
	dest    camera.Destination
	started time.Time
}

func NewMachine(store Store, opts Options) *Machine {
	if opts.Name == nil {
		opts.Name = media.Namer{}.VideoName
	}
	return &Machine{store: store, opts: opts}
}

func (m *Machine) State() State { return m.state }

// Handle returns the current recording, or nil.
func (m *Machine) Handle() camera.Recording { return m.handle }

func (m *Machine) set(s State) {
	if s != m.state {
		debug.Transition("recording", m.state, s)
		m.state = s
	}
}

// Toggle stops the current recording if there is one and returns nil.
// Otherwise it starts a new recording with audio on video and returns it;
// the caller forwards its events to HandleEvent.
func (m *Machine) Toggle(video camera.VideoOutput) (camera.Recording, error) {
	if m.handle != nil {
		m.Stop()
		return nil, nil
	}
	return m.start(video)
}

func (m *Machine) start(video camera.VideoOutput) (camera.Recording, error) {
	if video == nil {
		return nil, fmt.Errorf("start recording: %w", camera.ErrNotBound)
	}
	dest, err := m.store.CreateEntry(m.opts.Name(), m.opts.Spec.MimeType, m.opts.Spec.RelativePath)
	if err != nil {
		return nil, fmt.Errorf("create recording entry: %w", err)
	}
	rec, err := video.StartRecording(dest, camera.RecordOptions{Audio: true})
	if err != nil {
		_ = dest.Discard()
		return nil, fmt.Errorf("start recording: %w", err)
	}
	m.handle = rec
	m.dest = dest
	m.started = time.Now()
	m.set(Requested)
	debug.Event("recording requested", "id", rec.ID(), "uri", dest.URI())
	return rec, nil
}

// Stop asks the current recording to finish. The handle stays until its
// Finalize event arrives. It reports whether a recording was stopped.
func (m *Machine) Stop() bool {
	if m.handle == nil {
		return false
	}
	if m.state != Finalizing {
		m.handle.Stop()
		m.set(Finalizing)
	}
	return true
}

// HandleEvent applies an event of recording id. Events for a recording that
// is not current, and any event after Finalize, are ignored. It returns the
// result and true when the event finalized the recording.
func (m *Machine) HandleEvent(id string, ev camera.RecordEvent) (Result, bool) {
	if m.handle == nil || m.handle.ID() != id {
		debug.Verbose("recording: ignoring %s event of stale recording %s", ev.Kind, id)
		return Result{}, false
	}
	switch ev.Kind {
	case camera.EventStart:
		if m.state == Requested {
			m.set(Active)
		}
		return Result{}, false
	case camera.EventFinalize:
		var err error
		if ev.HasError() {
			err = fmt.Errorf("%w: %w", camera.ErrRecordingFinalize, ev.Err)
		}
		return m.finish(err), true
	}
	return Result{}, false
}

// ForceClose abandons the current recording without waiting for Finalize.
// The recording is reported as failed with cause.
func (m *Machine) ForceClose(cause error) (Result, bool) {
	if m.handle == nil {
		return Result{}, false
	}
	if cause == nil {
		cause = errors.New("recording abandoned")
	}
	return m.finish(fmt.Errorf("%w: %w", camera.ErrRecordingFinalize, cause)), true
}

func (m *Machine) finish(err error) Result {
	res := Result{
		ID:       m.handle.ID(),
		URI:      m.dest.URI(),
		Duration: time.Since(m.started),
	}
	m.handle.Close()
	if err == nil {
		if cerr := m.dest.Commit(); cerr != nil {
			err = fmt.Errorf("%w: %w", camera.ErrRecordingFinalize, cerr)
		}
	}
	if err != nil {
		if derr := m.dest.Discard(); derr != nil && !errors.Is(derr, media.ErrEntryDone) {
			debug.Error(derr)
		}
	}
	res.Err = err

	m.handle = nil
	m.dest = nil
	m.set(Idle)
	if err != nil {
		debug.Error(err)
	} else {
		debug.Event("recording saved", "id", res.ID, "uri", res.URI, "duration", res.Duration)
	}
	return res
}
