package camera

import (
	"errors"
	"fmt"
	"testing"
)

func TestLensFacing_Flip(t *testing.T) {
	if LensBack.Flip() != LensFront {
		t.Errorf("back.Flip() = %s, want front", LensBack.Flip())
	}
	if LensFront.Flip() != LensBack {
		t.Errorf("front.Flip() = %s, want back", LensFront.Flip())
	}
	if LensBack.Flip().Flip() != LensBack {
		t.Error("flipping twice should return to the start")
	}
}

func TestParseLensFacing(t *testing.T) {
	cases := []struct {
		in   string
		want LensFacing
	}{
		{"back", LensBack},
		{"", LensBack},
		{"FRONT", LensFront},
		{" front ", LensFront},
	}
	for _, tc := range cases {
		got, err := ParseLensFacing(tc.in)
		if err != nil {
			t.Errorf("ParseLensFacing(%q): unexpected error %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseLensFacing(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
	if _, err := ParseLensFacing("side"); err == nil {
		t.Error("expected error for unknown facing")
	}
}

func TestParseCapabilities(t *testing.T) {
	caps, err := ParseCapabilities([]string{"preview", "Video"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !caps.Has(CapPreview) || !caps.Has(CapVideo) || caps.Has(CapPhoto) {
		t.Errorf("caps = %s, want preview+video", caps)
	}
	if caps.String() != "preview+video" {
		t.Errorf("String() = %q, want %q", caps.String(), "preview+video")
	}
	if _, err := ParseCapabilities([]string{"preview", "thermal"}); err == nil {
		t.Error("expected error for unknown capability")
	}
}

func TestCapability_HasZero(t *testing.T) {
	all := CapPreview | CapPhoto | CapVideo
	if all.Has(0) {
		t.Error("Has(0) should be false")
	}
	if !all.Has(CapPhoto | CapVideo) {
		t.Error("all should have photo+video")
	}
}

func TestRotation_Valid(t *testing.T) {
	for _, r := range []Rotation{Rotation0, Rotation90, Rotation180, Rotation270} {
		if !r.Valid() {
			t.Errorf("rotation %d should be valid", r)
		}
	}
	for _, r := range []Rotation{-90, 45, 360} {
		if r.Valid() {
			t.Errorf("rotation %d should be invalid", r)
		}
	}
}

func TestUseCase_Kinds(t *testing.T) {
	cases := []struct {
		uc   UseCase
		want Capability
	}{
		{PreviewUseCase{}, CapPreview},
		{PhotoUseCase{TargetRotation: Rotation90}, CapPhoto},
		{VideoUseCase{Quality: QualityHighest}, CapVideo},
	}
	for _, tc := range cases {
		if got := tc.uc.Kind(); got != tc.want {
			t.Errorf("%T.Kind() = %s, want %s", tc.uc, got, tc.want)
		}
	}
}

func TestRecordEvent_HasError(t *testing.T) {
	cases := []struct {
		name string
		ev   RecordEvent
		want bool
	}{
		{"start", RecordEvent{Kind: EventStart}, false},
		{"finalize_ok", RecordEvent{Kind: EventFinalize}, false},
		{"finalize_err", RecordEvent{Kind: EventFinalize, Err: errors.New("encoder")}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.ev.HasError(); got != tc.want {
				t.Errorf("HasError() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestErrors_Wrapping(t *testing.T) {
	err := fmt.Errorf("%w: %w", ErrBind, errors.New("no front sensor"))
	if !errors.Is(err, ErrBind) {
		t.Error("wrapped error should match ErrBind")
	}
	if errors.Is(err, ErrAcquisition) {
		t.Error("wrapped error should not match ErrAcquisition")
	}
}
