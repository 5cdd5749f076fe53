package simcam

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cjeanneret/CamGo/internal/debug"
	"github.com/cjeanneret/CamGo/internal/hw/camera"
	"github.com/cjeanneret/CamGo/internal/hw/torch"
)

// Camera is a bound simulated camera.
type Camera struct {
	facing  camera.LensFacing
	cfg     Config
	torch   *torch.LED
	surface camera.Surface
	photo   *photoOutput
	video   *videoOutput

	mu      sync.Mutex
	invalid bool
}

func (c *Camera) Facing() camera.LensFacing { return c.facing }

func (c *Camera) FlashAvailable() bool { return c.torch != nil }

func (c *Camera) TorchEnabled() bool {
	if c.torch == nil {
		return false
	}
	on, err := c.torch.On()
	if err != nil {
		debug.Error(fmt.Errorf("read torch: %w", err))
		return false
	}
	return on
}

func (c *Camera) SetTorch(on bool) error {
	if c.torch == nil {
		return camera.ErrTorchUnavailable
	}
	if !c.valid() {
		return camera.ErrNotBound
	}
	return c.torch.Set(on)
}

// Photo returns the bound photo pipeline or nil.
func (c *Camera) Photo() camera.PhotoOutput {
	if c.photo == nil {
		return nil
	}
	return c.photo
}

// Video returns the bound video pipeline or nil.
func (c *Camera) Video() camera.VideoOutput {
	if c.video == nil {
		return nil
	}
	return c.video
}

// Valid reports whether the camera is still bound.
func (c *Camera) Valid() bool { return c.valid() }

func (c *Camera) valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.invalid
}

func (c *Camera) invalidate() {
	c.mu.Lock()
	already := c.invalid
	c.invalid = true
	c.mu.Unlock()
	if already {
		return
	}
	if c.video != nil {
		c.video.sourceLost()
	}
	if c.torch != nil {
		_ = c.torch.Set(false)
	}
}

// frame renders a test pattern that changes with n.
func (c *Camera) frame(n int, rotation camera.Rotation) []byte {
	w, h := c.cfg.Width, c.cfg.Height
	if rotation == camera.Rotation90 || rotation == camera.Rotation270 {
		w, h = h, w
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	shift := uint8(n * 8)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r := uint8(x*255/w) + shift
			g := uint8(y * 255 / h)
			b := uint8(128)
			if c.facing == camera.LensFront {
				b = 255 - b
			}
			img.Set(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80})
	return buf.Bytes()
}

type photoOutput struct {
	cam      *Camera
	rotation camera.Rotation
}

func (p *photoOutput) TakePicture(ctx context.Context, dest camera.Destination) <-chan camera.PhotoResult {
	ch := make(chan camera.PhotoResult, 1)
	go func() {
		if err := ctx.Err(); err != nil {
			ch <- camera.PhotoResult{Err: err}
			return
		}
		if !p.cam.valid() {
			ch <- camera.PhotoResult{Err: camera.ErrNotBound}
			return
		}
		if _, err := dest.Write(p.cam.frame(0, p.rotation)); err != nil {
			ch <- camera.PhotoResult{Err: fmt.Errorf("write photo: %w", err)}
			return
		}
		ch <- camera.PhotoResult{URI: dest.URI()}
	}()
	return ch
}

type videoOutput struct {
	cam     *Camera
	quality camera.Quality

	mu     sync.Mutex
	active *recording
}

func (v *videoOutput) StartRecording(dest camera.Destination, opts camera.RecordOptions) (camera.Recording, error) {
	if !v.cam.valid() {
		return nil, camera.ErrNotBound
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.active != nil {
		return nil, fmt.Errorf("recorder busy with %s", v.active.id)
	}
	r := &recording{
		id:     uuid.NewString(),
		out:    v,
		dest:   dest,
		audio:  opts.Audio,
		events: make(chan camera.RecordEvent, 2),
		stop:   make(chan struct{}),
		lost:   make(chan struct{}),
	}
	v.active = r
	debug.Verbose("simcam: recording %s started (quality=%s audio=%v)", r.id, v.quality, opts.Audio)
	go r.run()
	return r, nil
}

func (v *videoOutput) sourceLost() {
	v.mu.Lock()
	r := v.active
	v.mu.Unlock()
	if r != nil {
		r.lostOnce.Do(func() { close(r.lost) })
	}
}

func (v *videoOutput) release(r *recording) {
	v.mu.Lock()
	if v.active == r {
		v.active = nil
	}
	v.mu.Unlock()
}

type recording struct {
	id     string
	out    *videoOutput
	dest   camera.Destination
	audio  bool
	events chan camera.RecordEvent

	stop     chan struct{}
	stopOnce sync.Once
	lost     chan struct{}
	lostOnce sync.Once
}

func (r *recording) ID() string { return r.id }

func (r *recording) Events() <-chan camera.RecordEvent { return r.events }

func (r *recording) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *recording) Close() {
	r.Stop()
}

// run emits Start, writes frames until stopped, then emits exactly one
// Finalize and closes the event channel.
func (r *recording) run() {
	defer r.out.release(r)
	defer close(r.events)

	r.events <- camera.RecordEvent{Kind: camera.EventStart}

	ticker := time.NewTicker(r.out.cam.cfg.FrameInterval)
	defer ticker.Stop()

	var written int64
	var finalErr error
	frames := 0
loop:
	for {
		select {
		case <-r.stop:
			break loop
		case <-r.lost:
			finalErr = ErrSourceInactive
			break loop
		case <-ticker.C:
			n, err := r.dest.Write(r.out.cam.frame(frames, camera.Rotation0))
			written += int64(n)
			frames++
			if err != nil {
				finalErr = fmt.Errorf("write frame: %w", err)
				break loop
			}
			if limit := r.out.cam.cfg.MaxRecordingBytes; limit > 0 && written >= limit {
				finalErr = ErrStorageFull
				break loop
			}
		}
	}
	debug.Verbose("simcam: recording %s finalized (frames=%d bytes=%d err=%v)", r.id, frames, written, finalErr)
	r.events <- camera.RecordEvent{Kind: camera.EventFinalize, Err: finalErr}
}
