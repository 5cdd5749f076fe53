package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cjeanneret/CamGo/internal/config"
	"github.com/cjeanneret/CamGo/internal/hw/camera"
	"github.com/cjeanneret/CamGo/internal/logic/permission"
	"github.com/cjeanneret/CamGo/internal/logic/session"
)

// ---------- helpers ----------

// writeTestConfig writes a config under a temporary configs/ dir and
// returns its path. extra is appended to the camera section.
func writeTestConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := fmt.Sprintf(`
camera:
  provider: "sim"
  acquire_delay_ms: 5
  frame_interval_ms: 10
  width: 64
  height: 48
%s
media:
  root: %q
session:
  finalize_timeout_ms: 1000
defaults:
  debug_level: 0
  mock_gpio: true
`, extra, filepath.Join(dir, "media"))
	path := filepath.Join(cfgDir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	cfg, err := config.Load(writeTestConfig(t, extra))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

// ---------- command tree ----------

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "snap", "record"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not found (err=%v)", name, err)
		}
	}
	if f := root.PersistentFlags().Lookup("config"); f == nil || f.DefValue != filepath.Join("configs", "default.yaml") {
		t.Error("--config should default to configs/default.yaml")
	}
}

func TestRootCmd_RejectsBadConfigPath(t *testing.T) {
	cases := []string{"nope.json", "../configs/default.yaml", "elsewhere/default.yaml"}
	for _, path := range cases {
		root := newRootCmd()
		root.SetArgs([]string{"snap", "--config", path})
		root.SetOut(&bytes.Buffer{})
		if err := root.Execute(); err == nil {
			t.Errorf("expected error for config path %q, got nil", path)
		}
	}
}

func TestRecordCmd_RejectsNonPositiveDuration(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"record", "--duration", "0s", "--config", writeTestConfig(t, "")})
	root.SetOut(&bytes.Buffer{})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "--duration") {
		t.Errorf("expected --duration error, got %v", err)
	}
}

func TestServeCmd_Flags(t *testing.T) {
	cmd := newServeCmd(nil)
	if cmd.Flags().Lookup("web") == nil {
		t.Error("serve should have a --web flag")
	}
	if cmd.Flags().Lookup("headless") == nil {
		t.Error("serve should have a --headless flag")
	}
}

// ---------- one-shot runs ----------

func TestRunSnap_SavesPhoto(t *testing.T) {
	cfg := newTestConfig(t, "")
	var out bytes.Buffer

	if err := runSnap(context.Background(), cfg, 5*time.Second, &out); err != nil {
		t.Fatalf("runSnap: %v\noutput:\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), session.MsgPhotoSaved) {
		t.Errorf("output should report %q:\n%s", session.MsgPhotoSaved, out.String())
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	fields := strings.Split(lines[len(lines)-1], "\t")
	if len(fields) != 3 {
		t.Fatalf("last line = %q, want uri, path and size", lines[len(lines)-1])
	}
	if _, err := os.Stat(fields[1]); err != nil {
		t.Errorf("photo file missing: %v", err)
	}
	if !strings.Contains(fields[1], filepath.Join("Pictures", "CameraX")) {
		t.Errorf("photo path = %q, want it under Pictures/CameraX", fields[1])
	}
}

func TestRunSnap_VideoOnlyHasNoPhoto(t *testing.T) {
	cfg := newTestConfig(t, `  capabilities: ["preview", "video"]`)
	var out bytes.Buffer

	err := runSnap(context.Background(), cfg, 5*time.Second, &out)

	if err == nil || err.Error() != session.MsgPhotoUnavailable {
		t.Errorf("err = %v, want %q", err, session.MsgPhotoUnavailable)
	}
}

func TestRunSnap_CameraDenied(t *testing.T) {
	cfg := newTestConfig(t, "")
	cfg.Permissions.AutoAnswer = "deny"
	var out bytes.Buffer

	err := runSnap(context.Background(), cfg, 300*time.Millisecond, &out)

	if err == nil || !strings.Contains(err.Error(), "camera not ready") {
		t.Errorf("err = %v, want camera not ready", err)
	}
	if !strings.Contains(out.String(), "camera permission denied") {
		t.Errorf("output should report the denial:\n%s", out.String())
	}
}

func TestRunRecord_SavesClip(t *testing.T) {
	cfg := newTestConfig(t, "")
	var out bytes.Buffer

	if err := runRecord(context.Background(), cfg, 150*time.Millisecond, 5*time.Second, &out); err != nil {
		t.Fatalf("runRecord: %v\noutput:\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), session.MsgVideoSaved) {
		t.Errorf("output should report %q:\n%s", session.MsgVideoSaved, out.String())
	}
	clips, _ := filepath.Glob(filepath.Join(cfg.Media.Root, "Movies", "CameraX-Recorder", "*.mp4"))
	if len(clips) != 1 {
		t.Errorf("clips = %v, want exactly one", clips)
	}
}

func TestRunRecord_StopsOnCancel(t *testing.T) {
	cfg := newTestConfig(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	var out bytes.Buffer

	start := time.Now()
	err := runRecord(ctx, cfg, time.Hour, 5*time.Second, &out)

	if err != nil {
		t.Fatalf("runRecord: %v\noutput:\n%s", err, out.String())
	}
	if time.Since(start) > 5*time.Second {
		t.Error("recording should stop when the context is cancelled")
	}
}

// ---------- wiring ----------

func TestNewPlatform_AutoAnswer(t *testing.T) {
	cases := []struct {
		answer string
		want   bool
	}{
		{"grant", true},
		{"deny", false},
	}
	for _, tc := range cases {
		t.Run(tc.answer, func(t *testing.T) {
			cfg := newTestConfig(t, "")
			cfg.Permissions.AutoAnswer = tc.answer
			p := newPlatform(cfg)

			got := make(chan bool, 1)
			p.RequestPermission(permission.Microphone, func(granted bool) { got <- granted })
			select {
			case granted := <-got:
				if granted != tc.want {
					t.Errorf("granted = %v, want %v", granted, tc.want)
				}
			case <-time.After(time.Second):
				t.Fatal("auto answer not delivered")
			}
		})
	}
}

func TestNewPlatform_PreGranted(t *testing.T) {
	cfg := newTestConfig(t, "")
	cfg.Permissions.Granted = []string{"camera"}
	p := newPlatform(cfg)
	if !p.CurrentStatus(permission.Camera) {
		t.Error("camera should be pre-granted")
	}
	if p.CurrentStatus(permission.Microphone) {
		t.Error("microphone should not be granted")
	}
	if len(p.Prompts()) != 0 {
		t.Error("no prompt should be open")
	}
}

func TestNewApp_WithTorchLED(t *testing.T) {
	cfg := newTestConfig(t, "  torch_pin: 18")
	a, err := newApp(cfg, newConsoleUI(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		t.Errorf("Close: %v", err)
	}
	select {
	case <-a.manager.Done():
	default:
		t.Error("session should be torn down after Close")
	}
}

// ---------- consoleUI ----------

func TestConsoleUI_AwaitSkipsUnrelated(t *testing.T) {
	ui := newConsoleUI(&bytes.Buffer{})
	ui.UserMessage(session.MsgFlashUnavailable)
	ui.UserMessage(session.MsgPhotoSaved)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := ui.await(ctx, session.MsgPhotoSaved)
	if err != nil || msg != session.MsgPhotoSaved {
		t.Errorf("await = %q, %v; want %q", msg, err, session.MsgPhotoSaved)
	}
}

func TestConsoleUI_AwaitReportsDenial(t *testing.T) {
	ui := newConsoleUI(&bytes.Buffer{})
	denial := fmt.Errorf("microphone %w", camera.ErrPermissionDenied)
	ui.UserMessage(denial.Error())
	ui.UserError(denial)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := ui.await(ctx, session.MsgVideoSaved)
	if !errors.Is(err, camera.ErrPermissionDenied) {
		t.Errorf("await = %q, %v; want a permission denial", msg, err)
	}
}

func TestConsoleUI_OtherErrorsDoNotEndAwait(t *testing.T) {
	ui := newConsoleUI(&bytes.Buffer{})
	ui.UserError(camera.ErrBind)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := ui.await(ctx, session.MsgVideoSaved); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("await err = %v, want deadline exceeded", err)
	}
}

func TestConsoleUI_AwaitHonorsContext(t *testing.T) {
	ui := newConsoleUI(&bytes.Buffer{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := ui.await(ctx, session.MsgPhotoSaved); err == nil {
		t.Error("expected context error, got nil")
	}
}

func TestWaitFor(t *testing.T) {
	n := 0
	if err := waitFor(context.Background(), func() bool { n++; return n >= 3 }); err != nil {
		t.Errorf("waitFor: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := waitFor(ctx, func() bool { return false }); err == nil {
		t.Error("expected context error, got nil")
	}
}
