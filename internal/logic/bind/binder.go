// Package bind attaches capture use-cases to an acquired camera provider.
package bind

import (
	"fmt"

	"github.com/cjeanneret/CamGo/internal/debug"
	"github.com/cjeanneret/CamGo/internal/hw/camera"
)

// Binder builds the use-case set for a capability request and binds it as
// one transaction. Rebinding is the only way to change lens.
type Binder struct {
	surface camera.Surface
}

func NewBinder(surface camera.Surface) *Binder {
	return &Binder{surface: surface}
}

// UseCases builds the use-cases for caps. The photo pipeline follows the
// current display rotation; the video pipeline always targets the highest
// quality.
func (b *Binder) UseCases(caps camera.Capability) []camera.UseCase {
	var out []camera.UseCase
	if caps.Has(camera.CapPreview) {
		out = append(out, camera.PreviewUseCase{Surface: b.surface})
	}
	if caps.Has(camera.CapVideo) {
		out = append(out, camera.VideoUseCase{Quality: camera.QualityHighest})
	}
	if caps.Has(camera.CapPhoto) {
		rot := camera.Rotation0
		if b.surface != nil {
			rot = b.surface.Rotation()
		}
		out = append(out, camera.PhotoUseCase{TargetRotation: rot})
	}
	return out
}

// Bind unbinds everything from handle, then binds the use-cases for caps
// against the facing selector. On failure nothing is left bound.
func (b *Binder) Bind(handle camera.ProviderHandle, facing camera.LensFacing, caps camera.Capability) (camera.Camera, error) {
	if handle == nil {
		return nil, fmt.Errorf("%w: no provider handle", camera.ErrBind)
	}
	handle.UnbindAll()

	useCases := b.UseCases(caps)
	if len(useCases) == 0 {
		return nil, fmt.Errorf("%w: empty capability set", camera.ErrBind)
	}

	cam, err := handle.Bind(camera.Selector{Facing: facing}, useCases...)
	if err != nil {
		handle.UnbindAll()
		return nil, fmt.Errorf("%w: %w", camera.ErrBind, err)
	}
	debug.Event("camera bound", "facing", facing.String(), "use_cases", caps.String())
	return cam, nil
}
