package camera

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// LensFacing selects which physical sensor a session is bound to.
type LensFacing int

const (
	LensBack LensFacing = iota
	LensFront
)

// Flip returns the opposite facing.
func (f LensFacing) Flip() LensFacing {
	if f == LensBack {
		return LensFront
	}
	return LensBack
}

func (f LensFacing) String() string {
	if f == LensFront {
		return "front"
	}
	return "back"
}

// ParseLensFacing accepts "front" or "back" (case-insensitive).
func ParseLensFacing(s string) (LensFacing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "back", "":
		return LensBack, nil
	case "front":
		return LensFront, nil
	default:
		return LensBack, fmt.Errorf("unknown lens facing %q", s)
	}
}

// Capability is a bit set of the use-cases requested at bind time.
type Capability uint8

const (
	CapPreview Capability = 1 << iota
	CapPhoto
	CapVideo
)

// Has reports whether every bit of o is set in c.
func (c Capability) Has(o Capability) bool {
	return o != 0 && c&o == o
}

func (c Capability) String() string {
	var parts []string
	if c.Has(CapPreview) {
		parts = append(parts, "preview")
	}
	if c.Has(CapPhoto) {
		parts = append(parts, "photo")
	}
	if c.Has(CapVideo) {
		parts = append(parts, "video")
	}
	return strings.Join(parts, "+")
}

// ParseCapabilities builds a Capability set from names like "preview", "photo", "video".
func ParseCapabilities(names []string) (Capability, error) {
	var c Capability
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "preview":
			c |= CapPreview
		case "photo":
			c |= CapPhoto
		case "video":
			c |= CapVideo
		default:
			return 0, fmt.Errorf("unknown capability %q", n)
		}
	}
	return c, nil
}

// Rotation is the display rotation in degrees (0, 90, 180, 270).
type Rotation int

const (
	Rotation0   Rotation = 0
	Rotation90  Rotation = 90
	Rotation180 Rotation = 180
	Rotation270 Rotation = 270
)

// Valid reports whether r is one of the four supported rotations.
func (r Rotation) Valid() bool {
	switch r {
	case Rotation0, Rotation90, Rotation180, Rotation270:
		return true
	}
	return false
}

// Quality is the video quality target of a recorder.
type Quality int

const (
	QualityHighest Quality = iota
	QualityFHD
	QualityHD
	QualitySD
	QualityLowest
)

func (q Quality) String() string {
	switch q {
	case QualityHighest:
		return "highest"
	case QualityFHD:
		return "fhd"
	case QualityHD:
		return "hd"
	case QualitySD:
		return "sd"
	default:
		return "lowest"
	}
}

// Surface is the display target the preview draws into.
type Surface interface {
	Target() string
	Rotation() Rotation
}

// Selector picks the sensor a bind call targets.
type Selector struct {
	Facing LensFacing
}

// UseCase is one capture pipeline passed to ProviderHandle.Bind.
type UseCase interface {
	Kind() Capability
}

// PreviewUseCase streams frames to a display surface.
type PreviewUseCase struct {
	Surface Surface
}

func (PreviewUseCase) Kind() Capability { return CapPreview }

// PhotoUseCase captures still images with the given target rotation.
type PhotoUseCase struct {
	TargetRotation Rotation
}

func (PhotoUseCase) Kind() Capability { return CapPhoto }

// VideoUseCase records video at the given quality.
type VideoUseCase struct {
	Quality Quality
}

func (VideoUseCase) Kind() Capability { return CapVideo }

// AcquireResult is the single resolution of Provider.AcquireAsync.
type AcquireResult struct {
	Handle ProviderHandle
	Err    error
}

// Provider is the platform's camera subsystem. Acquisition of the exclusive
// handle is asynchronous: the returned channel delivers exactly one result.
type Provider interface {
	AcquireAsync(ctx context.Context) <-chan AcquireResult
}

// ProviderHandle is the acquired, reusable provider handle.
type ProviderHandle interface {
	// UnbindAll detaches every bound use-case. Cameras returned by earlier
	// Bind calls become invalid.
	UnbindAll()
	// Bind attaches all use-cases in one call to the sensor picked by sel.
	Bind(sel Selector, useCases ...UseCase) (Camera, error)
}

// Camera is the live handle returned by a successful bind.
type Camera interface {
	Facing() LensFacing
	FlashAvailable() bool
	// TorchEnabled reads the torch state from hardware.
	TorchEnabled() bool
	SetTorch(on bool) error
	// Photo returns the bound photo pipeline, or nil when none was bound.
	Photo() PhotoOutput
	// Video returns the bound video pipeline, or nil when none was bound.
	Video() VideoOutput
}

// Destination is a writable media entry the pipelines write into.
type Destination interface {
	io.Writer
	URI() string
	// Commit marks the entry complete and visible.
	Commit() error
	// Discard removes a partial entry.
	Discard() error
}

// PhotoResult is delivered once per TakePicture call.
type PhotoResult struct {
	URI string
	Err error
}

// PhotoOutput is a bound photo pipeline.
type PhotoOutput interface {
	TakePicture(ctx context.Context, dest Destination) <-chan PhotoResult
}

// RecordOptions configures a new recording.
type RecordOptions struct {
	Audio bool
}

// VideoOutput is a bound video pipeline.
type VideoOutput interface {
	StartRecording(dest Destination, opts RecordOptions) (Recording, error)
}

// EventKind distinguishes recording events.
type EventKind int

const (
	EventStart EventKind = iota
	EventFinalize
)

func (k EventKind) String() string {
	if k == EventStart {
		return "start"
	}
	return "finalize"
}

// RecordEvent is one event of a recording's ordered event stream.
// For Finalize, Err is non-nil when the recording failed.
type RecordEvent struct {
	Kind EventKind
	Err  error
}

// HasError reports whether a Finalize event carries an error.
func (e RecordEvent) HasError() bool {
	return e.Kind == EventFinalize && e.Err != nil
}

// Recording is one in-flight recording. Events delivers Start before any
// Finalize and is closed after the Finalize event.
type Recording interface {
	ID() string
	Events() <-chan RecordEvent
	// Stop asks the encoder to finish; a Finalize event follows.
	Stop()
	// Close releases the recording. Safe to call more than once.
	Close()
}
