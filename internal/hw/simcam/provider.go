// Package simcam is a software camera provider used for development and on
// boards without a camera stack. It honors the same contract as a platform
// provider: asynchronous acquisition, exclusive one-call binding, ordered
// recording events. A physical torch LED can be attached through GPIO.
package simcam

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/CamGo/internal/debug"
	"github.com/cjeanneret/CamGo/internal/hw/camera"
	"github.com/cjeanneret/CamGo/internal/hw/torch"
)

// ErrSourceInactive finalizes a recording whose camera was unbound mid-recording.
var ErrSourceInactive = errors.New("recording source became inactive")

// ErrStorageFull finalizes a recording that exceeded MaxRecordingBytes.
var ErrStorageFull = errors.New("insufficient storage")

// Config describes the simulated hardware.
type Config struct {
	// AcquireDelay is how long acquisition takes to resolve.
	AcquireDelay time.Duration
	// AcquireErr, when set, makes every acquisition fail with it.
	AcquireErr error
	// Facings lists the sensors present. Empty means back and front.
	Facings []camera.LensFacing
	// Torch is the flash unit of the back sensor. Nil = no flash unit.
	Torch *torch.LED
	// FrameInterval is the pace at which recordings write frames.
	FrameInterval time.Duration
	// Width and Height of generated frames.
	Width, Height int
	// MaxRecordingBytes stops a recording with ErrStorageFull once exceeded. 0 = unlimited.
	MaxRecordingBytes int64
}

// Provider is the simulated camera subsystem.
type Provider struct {
	cfg    Config
	handle *Handle

	mu       sync.Mutex
	acquires int
}

// New creates a simulated provider, filling unset config with defaults.
func New(cfg Config) *Provider {
	if len(cfg.Facings) == 0 {
		cfg.Facings = []camera.LensFacing{camera.LensBack, camera.LensFront}
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 100 * time.Millisecond
	}
	if cfg.Width <= 0 {
		cfg.Width = 320
	}
	if cfg.Height <= 0 {
		cfg.Height = 240
	}
	p := &Provider{cfg: cfg}
	p.handle = &Handle{provider: p}
	return p
}

// AcquireAsync resolves the provider handle after AcquireDelay, or fails
// when ctx is cancelled first. The same handle is returned every time.
func (p *Provider) AcquireAsync(ctx context.Context) <-chan camera.AcquireResult {
	p.mu.Lock()
	p.acquires++
	n := p.acquires
	p.mu.Unlock()
	debug.Verbose("simcam: acquisition #%d requested", n)

	ch := make(chan camera.AcquireResult, 1)
	go func() {
		timer := time.NewTimer(p.cfg.AcquireDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			ch <- camera.AcquireResult{Err: fmt.Errorf("acquisition cancelled: %w", ctx.Err())}
		case <-timer.C:
			if p.cfg.AcquireErr != nil {
				ch <- camera.AcquireResult{Err: p.cfg.AcquireErr}
				return
			}
			ch <- camera.AcquireResult{Handle: p.handle}
		}
	}()
	return ch
}

// Acquisitions returns how many acquisition requests were issued.
func (p *Provider) Acquisitions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquires
}

// Handle returns the provider handle without acquiring it. Tests only.
func (p *Provider) Handle() *Handle { return p.handle }

func (p *Provider) hasFacing(f camera.LensFacing) bool {
	for _, have := range p.cfg.Facings {
		if have == f {
			return true
		}
	}
	return false
}

// Handle is the acquired provider handle.
type Handle struct {
	provider *Provider

	mu      sync.Mutex
	current *Camera
	binds   int
}

// UnbindAll invalidates the bound camera, if any.
func (h *Handle) UnbindAll() {
	h.mu.Lock()
	cur := h.current
	h.current = nil
	h.mu.Unlock()
	if cur != nil {
		debug.Verbose("simcam: unbinding %s camera", cur.facing)
		cur.invalidate()
	}
}

// Bind attaches all use-cases to the sensor picked by sel. Binding while
// another camera is bound replaces it.
func (h *Handle) Bind(sel camera.Selector, useCases ...camera.UseCase) (camera.Camera, error) {
	if !h.provider.hasFacing(sel.Facing) {
		return nil, fmt.Errorf("no camera with %s facing", sel.Facing)
	}
	if len(useCases) == 0 {
		return nil, errors.New("no use-cases to bind")
	}

	cam := &Camera{facing: sel.Facing, cfg: h.provider.cfg}
	if sel.Facing == camera.LensBack {
		cam.torch = h.provider.cfg.Torch
	}
	var seen camera.Capability
	for _, uc := range useCases {
		if seen.Has(uc.Kind()) {
			return nil, fmt.Errorf("use-case %s bound twice", uc.Kind())
		}
		seen |= uc.Kind()
		switch u := uc.(type) {
		case camera.PreviewUseCase:
			if u.Surface == nil {
				return nil, errors.New("preview use-case without surface")
			}
			cam.surface = u.Surface
		case camera.PhotoUseCase:
			cam.photo = &photoOutput{cam: cam, rotation: u.TargetRotation}
		case camera.VideoUseCase:
			cam.video = &videoOutput{cam: cam, quality: u.Quality}
		default:
			return nil, fmt.Errorf("unsupported use-case %T", uc)
		}
	}

	h.mu.Lock()
	prev := h.current
	h.current = cam
	h.binds++
	h.mu.Unlock()
	if prev != nil {
		prev.invalidate()
	}
	debug.Verbose("simcam: bound %s camera (%s)", sel.Facing, seen)
	return cam, nil
}

// Bound returns the currently bound camera, or nil.
func (h *Handle) Bound() *Camera {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Binds returns how many successful binds were performed.
func (h *Handle) Binds() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.binds
}
