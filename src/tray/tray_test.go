package tray

import (
	"bytes"
	"encoding/binary"
	"image/png"
	"strings"
	"testing"
)

func TestTooltip(t *testing.T) {
	if got := Tooltip("YV Capture", ""); got != "YV Capture" {
		t.Errorf("Tooltip without status = %q", got)
	}
	if got := Tooltip("YV Capture", "Applied to top"); got != "YV Capture - Applied to top" {
		t.Errorf("Tooltip = %q", got)
	}
	long := Tooltip("YV Capture", strings.Repeat("x", 300))
	if n := len([]rune(long)); n != 127 || !strings.HasSuffix(long, "...") {
		t.Errorf("long tooltip not trimmed: %d runes", n)
	}
}

func TestIconPNGDecodes(t *testing.T) {
	img, err := png.Decode(bytes.NewReader(iconPNG()))
	if err != nil {
		t.Fatalf("decode icon: %v", err)
	}
	if b := img.Bounds(); b.Dx() != iconSize || b.Dy() != iconSize {
		t.Fatalf("icon size = %v", b)
	}
}

func TestWrapICO(t *testing.T) {
	data := iconPNG()
	ico := wrapICO(data, iconSize)
	if got := binary.LittleEndian.Uint16(ico[2:4]); got != 1 {
		t.Fatalf("ICO type = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(ico[14:18]); int(got) != len(data) {
		t.Fatalf("ICO entry size = %d, want %d", got, len(data))
	}
	if got := binary.LittleEndian.Uint32(ico[18:22]); got != 22 {
		t.Fatalf("ICO data offset = %d, want 22", got)
	}
	if !bytes.Equal(ico[22:], data) {
		t.Fatal("ICO payload differs from PNG")
	}
}
