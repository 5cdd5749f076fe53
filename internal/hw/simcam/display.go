package simcam

import "github.com/cjeanneret/CamGo/internal/hw/camera"

// Display is a named preview target with a fixed rotation.
type Display struct {
	Name string
	Rot  camera.Rotation
}

func (d Display) Target() string            { return d.Name }
func (d Display) Rotation() camera.Rotation { return d.Rot }
