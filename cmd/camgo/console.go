package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/CamGo/internal/hw/camera"
)

// consoleUI prints session feedback and lets one-shot commands wait for
// a specific user message.
type consoleUI struct {
	mu       sync.Mutex
	out      io.Writer
	messages chan string
	denials  chan error
}

func newConsoleUI(out io.Writer) *consoleUI {
	return &consoleUI{out: out, messages: make(chan string, 32), denials: make(chan error, 4)}
}

func (u *consoleUI) printf(format string, args ...interface{}) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintf(u.out, format, args...)
}

func (u *consoleUI) UserMessage(text string) {
	u.printf("%s\n", text)
	select {
	case u.messages <- text:
	default:
	}
}

// UserError keeps permission denials for await; the text was already
// printed by UserMessage.
func (u *consoleUI) UserError(err error) {
	if !errors.Is(err, camera.ErrPermissionDenied) {
		return
	}
	select {
	case u.denials <- err:
	default:
	}
}

func (u *consoleUI) ThumbnailUpdated(uri string) {
	u.printf("thumbnail: %s\n", uri)
}

func (u *consoleUI) RecordingIndicator(recording bool) {
	if recording {
		u.printf("recording...\n")
	}
}

func (u *consoleUI) TorchIndicator(on bool) {
	u.printf("torch: %s\n", map[bool]string{true: "on", false: "off"}[on])
}

// await returns the first message that starts with one of prefixes. A
// permission denial ends the wait with an error wrapping
// camera.ErrPermissionDenied.
func (u *consoleUI) await(ctx context.Context, prefixes ...string) (string, error) {
	for {
		select {
		case err := <-u.denials:
			return "", err
		case msg := <-u.messages:
			for _, p := range prefixes {
				if strings.HasPrefix(msg, p) {
					return msg, nil
				}
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// waitFor polls cond until it holds or ctx is done.
func waitFor(ctx context.Context, cond func() bool) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for !cond() {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
