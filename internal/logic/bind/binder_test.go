package bind

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/CamGo/internal/hw/camera"
	"github.com/cjeanneret/CamGo/internal/hw/simcam"
)

type surface struct{ rot camera.Rotation }

func (s surface) Target() string            { return "test" }
func (s surface) Rotation() camera.Rotation { return s.rot }

// spyHandle records the calls made against it.
type spyHandle struct {
	calls   []string
	lastUC  []camera.UseCase
	bindErr error
	lastSel camera.Selector
}

func (h *spyHandle) UnbindAll() { h.calls = append(h.calls, "unbind") }

func (h *spyHandle) Bind(sel camera.Selector, uc ...camera.UseCase) (camera.Camera, error) {
	h.calls = append(h.calls, "bind")
	h.lastSel = sel
	h.lastUC = uc
	if h.bindErr != nil {
		return nil, h.bindErr
	}
	return nil, nil
}

func TestBind_UnbindsThenBindsOnce(t *testing.T) {
	h := &spyHandle{}
	b := NewBinder(surface{rot: camera.Rotation90})

	_, err := b.Bind(h, camera.LensFront, camera.CapPreview|camera.CapPhoto|camera.CapVideo)
	require.NoError(t, err)
	assert.Equal(t, []string{"unbind", "bind"}, h.calls)
	assert.Equal(t, camera.LensFront, h.lastSel.Facing)

	require.Len(t, h.lastUC, 3)
	assert.Equal(t, camera.PreviewUseCase{Surface: surface{rot: camera.Rotation90}}, h.lastUC[0])
	assert.Equal(t, camera.VideoUseCase{Quality: camera.QualityHighest}, h.lastUC[1])
	assert.Equal(t, camera.PhotoUseCase{TargetRotation: camera.Rotation90}, h.lastUC[2])
}

func TestBind_VideoOnlyVariantHasNoPhoto(t *testing.T) {
	b := NewBinder(surface{})
	uc := b.UseCases(camera.CapPreview | camera.CapVideo)
	require.Len(t, uc, 2)
	for _, u := range uc {
		assert.NotEqual(t, camera.CapPhoto, u.Kind())
	}
}

func TestBind_FailureLeavesNothingBound(t *testing.T) {
	cause := errors.New("provider fault")
	h := &spyHandle{bindErr: cause}
	b := NewBinder(surface{})

	cam, err := b.Bind(h, camera.LensBack, camera.CapPreview|camera.CapVideo)
	assert.Nil(t, cam)
	assert.ErrorIs(t, err, camera.ErrBind)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, []string{"unbind", "bind", "unbind"}, h.calls)
}

func TestBind_Rejects(t *testing.T) {
	b := NewBinder(surface{})

	_, err := b.Bind(nil, camera.LensBack, camera.CapVideo)
	assert.ErrorIs(t, err, camera.ErrBind)

	_, err = b.Bind(&spyHandle{}, camera.LensBack, 0)
	assert.ErrorIs(t, err, camera.ErrBind)
}

func TestBind_MissingFacing(t *testing.T) {
	p := simcam.New(simcam.Config{Facings: []camera.LensFacing{camera.LensBack}})
	b := NewBinder(surface{})

	_, err := b.Bind(p.Handle(), camera.LensFront, camera.CapPreview|camera.CapVideo)
	assert.ErrorIs(t, err, camera.ErrBind)
	assert.Nil(t, p.Handle().Bound())
}

func TestBind_FlipSequenceKeepsOneSession(t *testing.T) {
	p := simcam.New(simcam.Config{})
	h := p.Handle()
	b := NewBinder(surface{})

	facing := camera.LensBack
	var cams []camera.Camera
	for i := 0; i < 7; i++ {
		cam, err := b.Bind(h, facing, camera.CapPreview|camera.CapPhoto|camera.CapVideo)
		require.NoError(t, err)
		cams = append(cams, cam)
		facing = facing.Flip()
	}

	assert.Equal(t, 7, h.Binds())
	live := 0
	for _, c := range cams {
		if c.(*simcam.Camera).Valid() {
			live++
		}
	}
	assert.Equal(t, 1, live, "exactly one bound session after flips")
	assert.Same(t, cams[len(cams)-1], camera.Camera(h.Bound()))
	assert.Equal(t, camera.LensFront, h.Bound().Facing())
}
