package torch

import (
	"fmt"

	"github.com/cjeanneret/CamGo/internal/debug"
	"github.com/cjeanneret/CamGo/internal/hw/gpio"
)

// LED is a torch (continuous illumination) LED switched by one GPIO line.
// The line is active HIGH: HIGH = lit.
//
// The LED keeps no state of its own; On reads the pin back so the reported
// state always matches the hardware.
type LED struct {
	gpio gpio.Driver
	pin  int
}

// NewLED configures pin as an output and switches the LED off.
func NewLED(g gpio.Driver, pin int) (*LED, error) {
	if pin <= 0 {
		return nil, fmt.Errorf("torch pin must be > 0, got %d", pin)
	}
	if err := g.SetupPin(pin, gpio.Output); err != nil {
		return nil, fmt.Errorf("setup torch pin %d: %w", pin, err)
	}
	if err := g.WritePin(pin, gpio.Low); err != nil {
		return nil, fmt.Errorf("reset torch pin %d: %w", pin, err)
	}
	return &LED{gpio: g, pin: pin}, nil
}

// Pin returns the GPIO pin driving the LED.
func (l *LED) Pin() int { return l.pin }

// On reads the current LED state from the pin.
func (l *LED) On() (bool, error) {
	level, err := l.gpio.ReadPin(l.pin)
	if err != nil {
		return false, err
	}
	return level == gpio.High, nil
}

// Set switches the LED on or off.
func (l *LED) Set(on bool) error {
	level := gpio.Low
	if on {
		level = gpio.High
	}
	debug.Verbose("Torch: pin %d -> %s", l.pin, level)
	return l.gpio.WritePin(l.pin, level)
}
