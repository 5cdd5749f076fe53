package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/cjeanneret/CamGo/internal/config"
	"github.com/cjeanneret/CamGo/internal/debug"
	"github.com/cjeanneret/CamGo/internal/hw/camera"
	"github.com/cjeanneret/CamGo/internal/hw/gpio"
	"github.com/cjeanneret/CamGo/internal/hw/simcam"
	"github.com/cjeanneret/CamGo/internal/hw/torch"
	"github.com/cjeanneret/CamGo/internal/logic/permission"
	"github.com/cjeanneret/CamGo/internal/logic/session"
	"github.com/cjeanneret/CamGo/internal/media"
)

// app is the wired capture stack for one command run.
type app struct {
	cfg      *config.Config
	gpio     gpio.Driver
	store    *media.Store
	platform *permission.MemoryPlatform
	provider *simcam.Provider
	manager  *session.Manager
}

// newApp builds the hardware, store and session from cfg. The session is
// created but not started.
func newApp(cfg *config.Config, ui session.UI) (*app, error) {
	debug.Section("Initialization")
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	g, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		return nil, fmt.Errorf("init GPIO: %w", err)
	}

	var led *torch.LED
	if cfg.Camera.TorchPin > 0 {
		debug.Step(2, "Initializing torch LED")
		led, err = torch.NewLED(g, cfg.Camera.TorchPin)
		if err != nil {
			_ = g.Close()
			return nil, fmt.Errorf("init torch: %w", err)
		}
		debug.Value("Torch pin", cfg.Camera.TorchPin)
	}

	debug.Step(3, "Opening media store")
	store, err := media.Open(cfg.Media.Root, cfg.Media.DBPath)
	if err != nil {
		_ = g.Close()
		return nil, err
	}
	debug.Value("Media root", cfg.Media.Root)
	debug.Value("Media index", cfg.Media.DBPath)

	debug.Step(4, "Initializing camera provider")
	provider := newProvider(cfg, led)
	debug.PrintStruct("Camera config", cfg.Camera)

	debug.Step(5, "Creating capture session")
	platform := newPlatform(cfg)
	mgr := session.New(session.Deps{
		Platform: platform,
		Provider: provider,
		Surface:  simcam.Display{Name: cfg.Camera.SurfaceTarget, Rot: camera.Rotation(cfg.Camera.DisplayRotation)},
		Store:    store,
		UI:       ui,
	}, session.Options{
		Capabilities:         cfg.Capabilities(),
		Facing:               cfg.Facing(),
		FinalizeTimeout:      cfg.FinalizeTimeout(),
		ScopedStorageVersion: cfg.Permissions.ScopedStorageVersion,
		Photo:                media.Spec{MimeType: cfg.Media.PhotoMimeType, RelativePath: cfg.Media.PhotoRelativePath},
		Video:                media.Spec{MimeType: cfg.Media.VideoMimeType, RelativePath: cfg.Media.VideoRelativePath},
		QueueSize:            cfg.Session.QueueSize,
	})
	debug.Summary(fmt.Sprintf("Session ready: %s sensor, %s", cfg.Facing(), cfg.Capabilities()))

	return &app{
		cfg:      cfg,
		gpio:     g,
		store:    store,
		platform: platform,
		provider: provider,
		manager:  mgr,
	}, nil
}

func newProvider(cfg *config.Config, led *torch.LED) *simcam.Provider {
	return simcam.New(simcam.Config{
		AcquireDelay:      cfg.AcquireDelay(),
		Facings:           cfg.Facings(),
		Torch:             led,
		FrameInterval:     cfg.FrameInterval(),
		Width:             cfg.Camera.Width,
		Height:            cfg.Camera.Height,
		MaxRecordingBytes: cfg.MaxRecordingBytes(),
	})
}

func newPlatform(cfg *config.Config) *permission.MemoryPlatform {
	p := permission.NewMemoryPlatform(cfg.Permissions.PlatformVersion, cfg.GrantedPermissions()...)
	switch cfg.Permissions.AutoAnswer {
	case "grant":
		p.AutoAnswer(true)
	case "deny":
		p.AutoAnswer(false)
	}
	return p
}

// Close tears the session down, then releases the store and GPIO.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if err := a.manager.OnTeardown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("session teardown: %w", err))
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close media store: %w", err))
	}
	if err := a.gpio.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close GPIO driver: %w", err))
	}
	return errors.Join(errs...)
}
