package displays

import (
	"strings"
	"testing"
)

func TestInfoStringIncludesPrimaryMarker(t *testing.T) {
	primary := Info{Name: `\\.\DISPLAY1`, Width: 1920, Height: 1080, IsPrimary: true}
	if got := primary.String(); got == "" {
		t.Fatal("expected non-empty summary")
	}
	if got := primary.String(); !strings.Contains(got, "PRIMARY") {
		t.Fatalf("expected PRIMARY marker in %q", got)
	}

	secondary := Info{Name: `\\.\DISPLAY2`, Width: 1280, Height: 720, IsPrimary: false}
	if strings.Contains(secondary.String(), "PRIMARY") {
		t.Fatalf("unexpected PRIMARY marker in %q", secondary.String())
	}
}
