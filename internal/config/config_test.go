package config

import "testing"

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("Default() config failed validation: %v", errs)
	}
}

func TestValidateClampsFPS(t *testing.T) {
	cfg := Default()
	cfg.DefaultFPS = 0
	errs := cfg.Validate()
	if len(errs) == 0 {
		t.Fatal("expected a clamping error")
	}
	if cfg.DefaultFPS != 1 {
		t.Fatalf("DefaultFPS = %d, want clamped to 1", cfg.DefaultFPS)
	}
}

func TestValidateClampsFrameSlotCount(t *testing.T) {
	cfg := Default()
	cfg.FrameSlotCount = 1
	cfg.Validate()
	if cfg.FrameSlotCount != 2 {
		t.Fatalf("FrameSlotCount = %d, want clamped to 2", cfg.FrameSlotCount)
	}

	cfg.FrameSlotCount = 100
	cfg.Validate()
	if cfg.FrameSlotCount != 16 {
		t.Fatalf("FrameSlotCount = %d, want clamped to 16", cfg.FrameSlotCount)
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "verbose"
	errs := cfg.Validate()
	if len(errs) != 1 {
		t.Fatalf("expected exactly one error, got %v", errs)
	}
}
