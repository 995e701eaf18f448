package services

import (
	"encoding/json"
	"testing"

	"stagesync/pkg/models"
)

func TestGetOrCreateDefaults(t *testing.T) {
	s := NewStateStore()

	state, created := s.GetOrCreate("ABC123")
	if !created {
		t.Fatal("first access should create the room")
	}
	if state.SlideIndex != 1 || state.TotalSlides != 0 {
		t.Errorf("unexpected defaults: %+v", state)
	}
	if state.IsFullscreen || state.IsPlaying || state.ShowGrid || state.IsPrivacyMode {
		t.Error("all toggles must start false")
	}

	again, created := s.GetOrCreate("ABC123")
	if created || again != state {
		t.Error("second access should return the same record")
	}
}

func TestSetSlideOverwritesUnconditionally(t *testing.T) {
	s := NewStateStore()
	s.GetOrCreate("ABC123")

	total := 12
	state, ok := s.SetSlide("ABC123", 5, &total)
	if !ok || state.SlideIndex != 5 || state.TotalSlides != 12 {
		t.Fatalf("unexpected state: %+v ok=%v", state, ok)
	}

	// No clamping: the authoritative device is trusted
	state, _ = s.SetSlide("ABC123", 99, nil)
	if state.SlideIndex != 99 || state.TotalSlides != 12 {
		t.Errorf("expected 99/12, got %d/%d", state.SlideIndex, state.TotalSlides)
	}
}

func TestSetSlideIgnoresNonPositiveTotal(t *testing.T) {
	s := NewStateStore()
	s.GetOrCreate("ABC123")
	twelve := 12
	s.SetSlide("ABC123", 3, &twelve)

	zero := 0
	state, _ := s.SetSlide("ABC123", 4, &zero)
	if state.TotalSlides != 12 {
		t.Errorf("zero total must not overwrite a known count, got %d", state.TotalSlides)
	}

	negative := -4
	state, _ = s.SetSlide("ABC123", 5, &negative)
	if state.TotalSlides != 12 {
		t.Errorf("negative total must not overwrite a known count, got %d", state.TotalSlides)
	}
}

func TestSetTotalSlidesGuard(t *testing.T) {
	s := NewStateStore()
	s.GetOrCreate("ABC123")

	state, ok := s.SetTotalSlides("ABC123", 20)
	if !ok || state.TotalSlides != 20 {
		t.Fatalf("expected totalSlides 20, got %+v", state)
	}

	state, _ = s.SetTotalSlides("ABC123", 0)
	if state.TotalSlides != 20 {
		t.Errorf("totalSlides 0 must be ignored, got %d", state.TotalSlides)
	}
	state, _ = s.SetTotalSlides("ABC123", -1)
	if state.TotalSlides != 20 {
		t.Errorf("negative totalSlides must be ignored, got %d", state.TotalSlides)
	}
}

func TestSetToggle(t *testing.T) {
	s := NewStateStore()
	s.GetOrCreate("ABC123")

	state, ok := s.SetToggle("ABC123", models.TogglePlay, true)
	if !ok || !state.IsPlaying {
		t.Fatal("expected isPlaying true")
	}
	if state.IsFullscreen || state.ShowGrid || state.IsPrivacyMode {
		t.Error("other toggles must be untouched")
	}

	state, _ = s.SetToggle("ABC123", models.TogglePrivacy, true)
	if !state.IsPrivacyMode || !state.IsPlaying {
		t.Error("toggles are independent")
	}

	if _, ok := s.SetToggle("ABC123", models.Toggle("bogus"), true); ok {
		t.Error("unknown toggle key must be rejected")
	}
}

func TestTimerOpaquePayload(t *testing.T) {
	s := NewStateStore()
	s.GetOrCreate("ABC123")

	payload := json.RawMessage(`{"whatever":true}`)
	state, ok := s.SetTimer("ABC123", payload)
	if !ok || string(state.TimerState) != string(payload) {
		t.Errorf("timer payload must be stored verbatim, got %s", state.TimerState)
	}

	state, ok = s.Tick("ABC123", 42)
	if !ok || state.TimerRemaining != 42 {
		t.Errorf("expected remaining 42, got %d", state.TimerRemaining)
	}
}

func TestMutationsOnUnknownRoom(t *testing.T) {
	s := NewStateStore()

	if _, ok := s.SetSlide("NOROOM", 2, nil); ok {
		t.Error("setSlide on unknown room must report failure")
	}
	if _, ok := s.SetTotalSlides("NOROOM", 5); ok {
		t.Error("setTotalSlides on unknown room must report failure")
	}
	if _, ok := s.SetToggle("NOROOM", models.ToggleGrid, true); ok {
		t.Error("setToggle on unknown room must report failure")
	}
	if _, ok := s.SetTimer("NOROOM", json.RawMessage(`1`)); ok {
		t.Error("setTimer on unknown room must report failure")
	}
	if _, ok := s.Tick("NOROOM", 1); ok {
		t.Error("tick on unknown room must report failure")
	}
}

func TestDestroyLeavesNoResidualState(t *testing.T) {
	s := NewStateStore()
	state, _ := s.GetOrCreate("ABC123")
	state.SlideIndex = 9
	state.IsPlaying = true

	s.Destroy("ABC123")
	if s.Len() != 0 {
		t.Fatal("expected empty store after destroy")
	}

	fresh, created := s.GetOrCreate("ABC123")
	if !created {
		t.Fatal("room should be recreated fresh")
	}
	if fresh.SlideIndex != 1 || fresh.IsPlaying {
		t.Errorf("residual state survived an empty-room gap: %+v", fresh)
	}
}
