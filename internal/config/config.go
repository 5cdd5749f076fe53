package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/CamGo/internal/hw/camera"
	"github.com/cjeanneret/CamGo/internal/logic/permission"
)

// MaxConfigFileBytes bounds the size of a config file.
const MaxConfigFileBytes = 1 << 20

// EnvPrefix prefixes every environment override, e.g. CAMGO_WEB_LISTEN.
const EnvPrefix = "CAMGO_"

// CameraConfig describes the camera provider and the bound use-cases.
type CameraConfig struct {
	Provider        string   `yaml:"provider" toml:"provider" env:"PROVIDER"`                              // "sim"
	DefaultFacing   string   `yaml:"default_facing" toml:"default_facing" env:"DEFAULT_FACING"`            // "back" or "front"
	Capabilities    []string `yaml:"capabilities" toml:"capabilities" env:"CAPABILITIES" envSeparator:","` // preview, photo, video
	Facings         []string `yaml:"facings" toml:"facings" env:"FACINGS" envSeparator:","`                // sensors present
	TorchPin        int      `yaml:"torch_pin" toml:"torch_pin" env:"TORCH_PIN"`                           // GPIO pin (BCM) of the torch LED. 0 = no flash unit
	AcquireDelayMs  int      `yaml:"acquire_delay_ms" toml:"acquire_delay_ms" env:"ACQUIRE_DELAY_MS"`      // simulated acquisition time
	FrameIntervalMs int      `yaml:"frame_interval_ms" toml:"frame_interval_ms" env:"FRAME_INTERVAL_MS"`   // simulated recording pace
	Width           int      `yaml:"width" toml:"width" env:"WIDTH"`                                       // frame width (px)
	Height          int      `yaml:"height" toml:"height" env:"HEIGHT"`                                    // frame height (px)
	DisplayRotation int      `yaml:"display_rotation" toml:"display_rotation" env:"DISPLAY_ROTATION"`      // 0, 90, 180, 270
	SurfaceTarget   string   `yaml:"surface_target" toml:"surface_target" env:"SURFACE_TARGET"`            // preview target name
	MaxRecordingMB  int      `yaml:"max_recording_mb" toml:"max_recording_mb" env:"MAX_RECORDING_MB"`      // 0 = unlimited
}

// MediaConfig describes where captures are stored.
type MediaConfig struct {
	Root              string `yaml:"root" toml:"root" env:"ROOT"`
	DBPath            string `yaml:"db_path" toml:"db_path" env:"DB_PATH"`
	PhotoMimeType     string `yaml:"photo_mime_type" toml:"photo_mime_type" env:"PHOTO_MIME_TYPE"`
	PhotoRelativePath string `yaml:"photo_relative_path" toml:"photo_relative_path" env:"PHOTO_RELATIVE_PATH"`
	VideoMimeType     string `yaml:"video_mime_type" toml:"video_mime_type" env:"VIDEO_MIME_TYPE"`
	VideoRelativePath string `yaml:"video_relative_path" toml:"video_relative_path" env:"VIDEO_RELATIVE_PATH"`
}

// PermissionsConfig describes the permission platform.
type PermissionsConfig struct {
	PlatformVersion      int      `yaml:"platform_version" toml:"platform_version" env:"PLATFORM_VERSION"`
	ScopedStorageVersion int      `yaml:"scoped_storage_version" toml:"scoped_storage_version" env:"SCOPED_STORAGE_VERSION"`
	Granted              []string `yaml:"granted" toml:"granted" env:"GRANTED" envSeparator:","` // pre-granted kinds
	AutoAnswer           string   `yaml:"auto_answer" toml:"auto_answer" env:"AUTO_ANSWER"`      // "", "grant" or "deny"
}

// SessionConfig tunes the capture session.
type SessionConfig struct {
	FinalizeTimeoutMs int `yaml:"finalize_timeout_ms" toml:"finalize_timeout_ms" env:"FINALIZE_TIMEOUT_MS"`
	QueueSize         int `yaml:"queue_size" toml:"queue_size" env:"QUEUE_SIZE"`
}

// WebConfig configures the HTTP control surface.
type WebConfig struct {
	Listen string `yaml:"listen" toml:"listen" env:"LISTEN"` // e.g. ":8080"
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level" toml:"debug_level" env:"DEBUG_LEVEL"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio" toml:"mock_gpio" env:"MOCK_GPIO"`       // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Camera      CameraConfig      `yaml:"camera" toml:"camera" envPrefix:"CAMERA_"`
	Media       MediaConfig       `yaml:"media" toml:"media" envPrefix:"MEDIA_"`
	Permissions PermissionsConfig `yaml:"permissions" toml:"permissions" envPrefix:"PERMISSIONS_"`
	Session     SessionConfig     `yaml:"session" toml:"session" envPrefix:"SESSION_"`
	Web         WebConfig         `yaml:"web" toml:"web" envPrefix:"WEB_"`
	Defaults    DefaultsConfig    `yaml:"defaults" toml:"defaults" envPrefix:"DEFAULTS_"`
}

// ValidateConfigPath checks that path is a YAML or TOML file directly
// inside a "configs" directory.
func ValidateConfigPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config path cannot be empty")
	}
	clean := filepath.Clean(path)
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain '..'", path)
		}
	}
	switch filepath.Ext(clean) {
	case ".yaml", ".yml", ".toml":
	default:
		return fmt.Errorf("config file %q must have a .yaml, .yml or .toml extension", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file %q must be in a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML or TOML file (by extension), applies CAMGO_*
// environment overrides and returns the validated configuration.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", MaxConfigFileBytes)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.NewDecoder(bytes.NewReader(data)).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("unmarshal toml: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	// Camera
	if cfg.Camera.Provider == "" {
		return fmt.Errorf("camera.provider is required")
	}
	if cfg.Camera.Provider != "sim" {
		return fmt.Errorf("camera.provider %q is not supported", cfg.Camera.Provider)
	}
	if _, err := camera.ParseLensFacing(cfg.Camera.DefaultFacing); err != nil {
		return fmt.Errorf("camera.default_facing: %w", err)
	}
	if len(cfg.Camera.Capabilities) == 0 {
		cfg.Camera.Capabilities = []string{"preview", "photo", "video"}
	}
	caps, err := camera.ParseCapabilities(cfg.Camera.Capabilities)
	if err != nil {
		return fmt.Errorf("camera.capabilities: %w", err)
	}
	if !caps.Has(camera.CapPreview | camera.CapVideo) {
		return fmt.Errorf("camera.capabilities must include preview and video, got %s", caps)
	}
	for _, f := range cfg.Camera.Facings {
		if _, err := camera.ParseLensFacing(f); err != nil {
			return fmt.Errorf("camera.facings: %w", err)
		}
	}
	if cfg.Camera.TorchPin < 0 {
		return fmt.Errorf("camera.torch_pin must be >= 0, got %d", cfg.Camera.TorchPin)
	}
	if cfg.Camera.AcquireDelayMs < 0 {
		return fmt.Errorf("camera.acquire_delay_ms must be >= 0, got %d", cfg.Camera.AcquireDelayMs)
	}
	if cfg.Camera.FrameIntervalMs <= 0 {
		cfg.Camera.FrameIntervalMs = 100 // 10 frames per second
	}
	if cfg.Camera.Width <= 0 {
		cfg.Camera.Width = 640
	}
	if cfg.Camera.Height <= 0 {
		cfg.Camera.Height = 480
	}
	if !camera.Rotation(cfg.Camera.DisplayRotation).Valid() {
		return fmt.Errorf("camera.display_rotation must be 0, 90, 180 or 270, got %d", cfg.Camera.DisplayRotation)
	}
	if cfg.Camera.SurfaceTarget == "" {
		cfg.Camera.SurfaceTarget = "preview"
	}
	if cfg.Camera.MaxRecordingMB < 0 {
		return fmt.Errorf("camera.max_recording_mb must be >= 0, got %d", cfg.Camera.MaxRecordingMB)
	}

	// Media
	if cfg.Media.Root == "" {
		return fmt.Errorf("media.root is required")
	}
	if cfg.Media.DBPath == "" {
		cfg.Media.DBPath = filepath.Join(cfg.Media.Root, "media.db")
	}
	if cfg.Media.PhotoMimeType == "" {
		cfg.Media.PhotoMimeType = "image/jpeg"
	}
	if cfg.Media.PhotoRelativePath == "" {
		cfg.Media.PhotoRelativePath = "Pictures/CameraX"
	}
	if cfg.Media.VideoMimeType == "" {
		cfg.Media.VideoMimeType = "video/mp4"
	}
	if cfg.Media.VideoRelativePath == "" {
		cfg.Media.VideoRelativePath = "Movies/CameraX-Recorder"
	}

	// Permissions
	if cfg.Permissions.PlatformVersion <= 0 {
		cfg.Permissions.PlatformVersion = 33
	}
	if cfg.Permissions.ScopedStorageVersion <= 0 {
		cfg.Permissions.ScopedStorageVersion = 29 // storage permission needed up to 28
	}
	for _, k := range cfg.Permissions.Granted {
		if _, err := permission.ParseKind(k); err != nil {
			return fmt.Errorf("permissions.granted: %w", err)
		}
	}
	switch cfg.Permissions.AutoAnswer {
	case "", "grant", "deny":
	default:
		return fmt.Errorf("permissions.auto_answer must be \"grant\" or \"deny\", got %q", cfg.Permissions.AutoAnswer)
	}

	// Session
	if cfg.Session.FinalizeTimeoutMs <= 0 {
		cfg.Session.FinalizeTimeoutMs = 5000
	}
	if cfg.Session.QueueSize <= 0 {
		cfg.Session.QueueSize = 64
	}

	// Web
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}

	if cfg.Defaults.DebugLevel < 0 || cfg.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", cfg.Defaults.DebugLevel)
	}
	return nil
}

// Facing returns the configured initial lens facing.
func (c *Config) Facing() camera.LensFacing {
	f, _ := camera.ParseLensFacing(c.Camera.DefaultFacing)
	return f
}

// Capabilities returns the configured use-case set.
func (c *Config) Capabilities() camera.Capability {
	caps, _ := camera.ParseCapabilities(c.Camera.Capabilities)
	return caps
}

// Facings returns the sensors present. Empty means back and front.
func (c *Config) Facings() []camera.LensFacing {
	var out []camera.LensFacing
	for _, s := range c.Camera.Facings {
		f, _ := camera.ParseLensFacing(s)
		out = append(out, f)
	}
	return out
}

// GrantedPermissions returns the pre-granted permission kinds.
func (c *Config) GrantedPermissions() []permission.Kind {
	var out []permission.Kind
	for _, s := range c.Permissions.Granted {
		k, _ := permission.ParseKind(s)
		out = append(out, k)
	}
	return out
}

// AcquireDelay returns the simulated acquisition time.
func (c *Config) AcquireDelay() time.Duration {
	return time.Duration(c.Camera.AcquireDelayMs) * time.Millisecond
}

// FrameInterval returns the simulated recording frame interval.
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.Camera.FrameIntervalMs) * time.Millisecond
}

// MaxRecordingBytes returns the recording size limit, 0 for none.
func (c *Config) MaxRecordingBytes() int64 {
	return int64(c.Camera.MaxRecordingMB) << 20
}

// FinalizeTimeout bounds the wait for a recording's Finalize event.
func (c *Config) FinalizeTimeout() time.Duration {
	return time.Duration(c.Session.FinalizeTimeoutMs) * time.Millisecond
}
