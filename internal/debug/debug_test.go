package debug

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// capture initializes the given level, redirects output to a buffer and
// restores the disabled state when the test ends.
func capture(t *testing.T, lvl int) *bytes.Buffer {
	t.Helper()
	Init(lvl)
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { Init(LevelOff) })
	return &buf
}

func TestInit_Off(t *testing.T) {
	Init(LevelOff)
	if IsEnabled(LevelInfo) {
		t.Error("level 0 should disable info output")
	}
	// No logger: every call must be a silent no-op.
	Info("ignored %d", 1)
	Error(errors.New("ignored"))
	SetOutput(&bytes.Buffer{})
}

func TestLevels_Filter(t *testing.T) {
	buf := capture(t, LevelLive)

	Info("bound %s", "back")
	Live("recording %s", "started")
	Verbose("hidden verbose")
	Trace("hidden trace")

	out := buf.String()
	if !strings.Contains(out, "bound back") {
		t.Errorf("info missing from output:\n%s", out)
	}
	if !strings.Contains(out, "recording started") {
		t.Errorf("live missing from output:\n%s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("verbose/trace should be filtered at level 2:\n%s", out)
	}
}

func TestEvent_KeyValues(t *testing.T) {
	buf := capture(t, LevelLive)

	Event("camera bound", "facing", "front")

	out := buf.String()
	if !strings.Contains(out, "camera bound") || !strings.Contains(out, "facing=front") {
		t.Errorf("event output = %q, want message and facing=front", out)
	}
}

type state string

func (s state) String() string { return string(s) }

func TestTransition_Verbose(t *testing.T) {
	buf := capture(t, LevelVerbose)

	Transition("recording", state("idle"), state("requested"))

	out := buf.String()
	if !strings.Contains(out, "from=idle") || !strings.Contains(out, "to=requested") {
		t.Errorf("transition output = %q", out)
	}
}

func TestError_Level1(t *testing.T) {
	buf := capture(t, LevelInfo)

	Error(errors.New("bind failed"))

	if !strings.Contains(buf.String(), "bind failed") {
		t.Errorf("error missing from output: %q", buf.String())
	}
}

func TestFmt(t *testing.T) {
	Init(LevelOff)
	if got := Fmt("x=%d", 1); got != "" {
		t.Errorf("Fmt at level 0 = %q, want empty", got)
	}
	capture(t, LevelInfo)
	if got := Fmt("x=%d", 1); got != "x=1" {
		t.Errorf("Fmt = %q, want x=1", got)
	}
}

func TestSummary(t *testing.T) {
	buf := capture(t, LevelInfo)

	Summary("Session ready: back sensor")

	if !strings.Contains(buf.String(), "Session ready: back sensor") {
		t.Errorf("summary missing from output:\n%s", buf.String())
	}
}
