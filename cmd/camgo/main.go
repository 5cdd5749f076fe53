package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cjeanneret/CamGo/internal/config"
	"github.com/cjeanneret/CamGo/internal/debug"
	"github.com/cjeanneret/CamGo/internal/logic/permission"
	"github.com/cjeanneret/CamGo/internal/logic/session"
	"github.com/cjeanneret/CamGo/internal/web"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "camgo: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the camgo command tree.
func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "camgo",
		Short:         "Camera capture session: preview, photos, recordings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.HiddenDefaultCmd = true
	root.PersistentFlags().StringVar(&cfgPath, "config", filepath.Join("configs", "default.yaml"), "path to config file (.yaml, .yml or .toml)")

	load := func() (*config.Config, error) {
		if err := config.ValidateConfigPath(cfgPath); err != nil {
			return nil, err
		}
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		debug.Init(cfg.Defaults.DebugLevel)
		debug.Value("Config path", cfgPath)
		debug.Value("Debug level", cfg.Defaults.DebugLevel)
		return cfg, nil
	}

	root.AddCommand(newServeCmd(load), newSnapCmd(load), newRecordCmd(load))
	return root
}

type loadFunc func() (*config.Config, error)

func newServeCmd(load loadFunc) *cobra.Command {
	var (
		listen   string
		headless bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the capture session and the web control surface",
		Long: `Start the capture session and keep it open until interrupted.

The web surface exposes the session controls (record, photo, flip, torch),
the permission prompts, a live status stream and the last photo.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Web.Listen = listen
			}
			return runServe(cmd.Context(), cfg, headless, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&listen, "web", "", "listen address of the web surface (default from config, e.g. :8080)")
	cmd.Flags().BoolVar(&headless, "headless", false, "run without the web surface")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, headless bool, out io.Writer) error {
	if headless {
		a, err := newApp(cfg, newConsoleUI(out))
		if err != nil {
			return err
		}
		defer closeApp(a)
		if err := a.manager.Start(ctx); err != nil {
			return fmt.Errorf("start session: %w", err)
		}
		<-ctx.Done()
		return nil
	}

	broadcaster := web.NewStatusBroadcaster()
	debug.SetOutput(io.MultiWriter(os.Stderr, web.BroadcastWriter(broadcaster)))
	a, err := newApp(cfg, web.NewUI(broadcaster))
	if err != nil {
		return err
	}
	defer closeApp(a)
	if err := a.manager.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	h := web.NewHandlers(broadcaster, a.manager, a.platform, a.store, web.StaticFS())
	srv := web.NewServer(cfg.Web.Listen, h)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

func newSnapCmd(load loadFunc) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "snap",
		Short: "Take one photo and exit",
		Long: `Open the session, take one photo into the media store and exit.

Permissions are granted up front unless permissions.auto_answer is "deny".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runSnap(cmd.Context(), cfg, timeout, cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "give up when the camera or the photo takes longer")
	return cmd
}

func runSnap(ctx context.Context, cfg *config.Config, timeout time.Duration, out io.Writer) error {
	ui := newConsoleUI(out)
	a, err := openOneShot(ctx, cfg, ui, timeout)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := a.manager.OnPhotoRequest(ctx); err != nil {
		return err
	}
	msg, err := ui.await(ctx, session.MsgPhotoSaved, session.MsgPhotoFailed, session.MsgPhotoUnavailable)
	if err != nil {
		return fmt.Errorf("waiting for photo: %w", err)
	}
	if msg != session.MsgPhotoSaved {
		return errors.New(msg)
	}
	return printEntry(a, a.manager.LastPhoto(), out)
}

func newRecordCmd(load loadFunc) *cobra.Command {
	var (
		duration time.Duration
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record one clip and exit",
		Long: `Open the session, record a clip with audio for --duration and exit.

Permissions are granted up front unless permissions.auto_answer is "deny".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if duration <= 0 {
				return fmt.Errorf("--duration must be positive, got %s", duration)
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			return runRecord(cmd.Context(), cfg, duration, timeout, cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 3*time.Second, "length of the clip")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "give up when the camera or the finalization takes longer")
	return cmd
}

func runRecord(ctx context.Context, cfg *config.Config, duration, timeout time.Duration, out io.Writer) error {
	ui := newConsoleUI(out)
	a, err := openOneShot(ctx, cfg, ui, timeout)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := a.manager.OnCaptureToggle(ctx); err != nil {
		return err
	}
	select {
	case <-time.After(duration):
	case <-ctx.Done():
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	// The recording may have ended on its own (start failure, storage full).
	if a.manager.Snapshot().Recording != "idle" {
		if err := a.manager.OnCaptureToggle(waitCtx); err != nil {
			return err
		}
	}
	msg, err := ui.await(waitCtx, session.MsgVideoSaved, session.MsgVideoFailed, session.MsgVideoStartFailed)
	if err != nil {
		return fmt.Errorf("waiting for recording: %w", err)
	}
	if msg != session.MsgVideoSaved {
		return errors.New(msg)
	}
	return nil
}

// openOneShot builds the app and waits for the camera to be bound.
func openOneShot(ctx context.Context, cfg *config.Config, ui *consoleUI, timeout time.Duration) (*app, error) {
	// Gestures are not replayed after a prompt, so one-shot runs hold
	// every permission up front unless the config says to deny.
	if cfg.Permissions.AutoAnswer != "deny" {
		cfg.Permissions.AutoAnswer = "grant"
		cfg.Permissions.Granted = cfg.Permissions.Granted[:0]
		for _, k := range permission.Precedence {
			cfg.Permissions.Granted = append(cfg.Permissions.Granted, k.String())
		}
	}
	a, err := newApp(cfg, ui)
	if err != nil {
		return nil, err
	}
	if err := a.manager.Start(ctx); err != nil {
		closeApp(a)
		return nil, fmt.Errorf("start session: %w", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := waitFor(waitCtx, func() bool { return a.manager.Snapshot().Bound }); err != nil {
		closeApp(a)
		return nil, fmt.Errorf("camera not ready: %w", err)
	}
	return a, nil
}

func printEntry(a *app, uri string, out io.Writer) error {
	info, err := a.store.Lookup(uri)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\t%s\t%d bytes\n", info.URI, info.FilePath, info.Size)
	return nil
}

// closeApp tears the app down, bounded by the finalize timeout.
func closeApp(a *app) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.FinalizeTimeout()+2*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		debug.Error(err)
	}
}
