package stage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"yv-capture/src/capture"
	"yv-capture/src/dataurl"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func near(a, b color.RGBA) bool {
	d := func(x, y uint8) int {
		if x > y {
			return int(x - y)
		}
		return int(y - x)
	}
	return d(a.R, b.R) <= 2 && d(a.G, b.G) <= 2 && d(a.B, b.B) <= 2 && d(a.A, b.A) <= 2
}

func pngDataURL(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return dataurl.EncodePNG(buf.Bytes())
}

func TestTransform(t *testing.T) {
	tests := []struct {
		target capture.Target
		want   string
	}{
		{capture.TargetTop, "translate(-50%, -50%) translate(-13px, -80px) scale(0.45)"},
		{capture.TargetBottom, "translate(-50%, -50%) translate(-10px, 45px) scale(0.5)"},
	}
	for _, tt := range tests {
		if got := Transform(capture.Anchors[tt.target]); got != tt.want {
			t.Errorf("Transform(%s) = %q, want %q", tt.target, got, tt.want)
		}
	}
}

func TestApplyAndClear(t *testing.T) {
	s := New()
	for _, slot := range s.Snapshot() {
		if !slot.DefaultVisible || slot.OverlayVisible {
			t.Fatalf("initial slot %+v", slot)
		}
	}

	if err := s.Apply(capture.TargetTop, "data:image/png;base64,AA=="); err != nil {
		t.Fatal(err)
	}
	top := s.Slot(capture.TargetTop)
	if top.DefaultVisible || !top.OverlayVisible || top.OverlaySrc == "" || top.Transform != Transform(capture.Anchors[capture.TargetTop]) {
		t.Fatalf("top after Apply = %+v", top)
	}
	if bottom := s.Slot(capture.TargetBottom); !bottom.DefaultVisible || bottom.OverlayVisible {
		t.Fatalf("bottom changed by top Apply: %+v", bottom)
	}
	if got := s.Applied(); len(got) != 1 || got[0] != capture.TargetTop {
		t.Fatalf("Applied = %v", got)
	}

	// empty src is a no-op
	if err := s.Apply(capture.TargetBottom, ""); err != nil {
		t.Fatal(err)
	}
	if s.Slot(capture.TargetBottom).OverlayVisible {
		t.Fatal("empty src should not show overlay")
	}
	if err := s.Apply("hat", "x"); err == nil {
		t.Fatal("expected error for unknown target")
	}

	s.Clear()
	for _, slot := range s.Snapshot() {
		if !slot.DefaultVisible || slot.OverlayVisible || slot.OverlaySrc != "" || slot.Transform != "" {
			t.Fatalf("slot after Clear = %+v", slot)
		}
	}
}

func TestContainRect(t *testing.T) {
	box := image.Rect(0, 0, 360, 480)
	x, y, w, h := ContainRect(100, 100, box)
	if w != 360 || h != 360 || x != 0 || y != 60 {
		t.Fatalf("square in portrait box: %g,%g %gx%g", x, y, w, h)
	}
	x, y, w, h = ContainRect(100, 400, box)
	if h != 480 || w != 120 || x != 120 || y != 0 {
		t.Fatalf("tall in portrait box: %g,%g %gx%g", x, y, w, h)
	}
}

func TestPlacedRect(t *testing.T) {
	box := image.Rect(0, 0, 360, 480)
	// 360x360 fitted, scaled 0.5 -> 180x180, centered at (180-10, 240+45)
	got := PlacedRect(100, 100, box, capture.AnchorSpec{OffsetX: -10, OffsetY: 45, Scale: 0.5})
	want := image.Rect(80, 195, 260, 375)
	if got != want {
		t.Fatalf("PlacedRect = %v, want %v", got, want)
	}
}

func TestRenderLayers(t *testing.T) {
	red := color.RGBA{255, 0, 0, 255}
	blue := color.RGBA{0, 0, 255, 255}
	r := &Renderer{
		Width:  360,
		Height: 480,
		Assets: Assets{DefaultTop: solid(10, 10, red)},
	}

	s := New()
	img, err := r.Render(context.Background(), s.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	if got := img.RGBAAt(180, 240); !near(got, red) {
		t.Fatalf("default top not drawn, center = %v", got)
	}

	s.Apply(capture.TargetTop, pngDataURL(t, solid(10, 10, blue)))
	img, err = r.Render(context.Background(), s.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	// top anchor: center (167, 160), 162x162 box
	if got := img.RGBAAt(167, 160); !near(got, blue) {
		t.Fatalf("captured top not drawn at anchor, got %v", got)
	}
	// inside the default top's box but outside the captured one
	if got := img.RGBAAt(5, 100); got.A != 0 {
		t.Fatalf("default top still visible, got %v", got)
	}
}

func TestRenderRemoteSource(t *testing.T) {
	green := color.RGBA{0, 255, 0, 255}
	var fetched string
	r := &Renderer{Fetch: func(ctx context.Context, url string) (string, error) {
		fetched = url
		return pngDataURL(t, solid(4, 4, green)), nil
	}}
	s := New()
	s.Apply(capture.TargetBottom, "https://img.example/skirt.webp")
	if _, err := r.RenderPNG(context.Background(), s.Snapshot()); err != nil {
		t.Fatal(err)
	}
	if fetched != "https://img.example/skirt.webp" {
		t.Fatalf("fetched %q", fetched)
	}

}

func TestRenderSkipsUnloadableOverlay(t *testing.T) {
	blue := color.RGBA{0, 0, 255, 255}
	var fetches int
	r := &Renderer{Fetch: func(context.Context, string) (string, error) {
		fetches++
		return "", errors.New("offline")
	}}
	s := New()
	s.Apply(capture.TargetTop, pngDataURL(t, solid(10, 10, blue)))
	s.Apply(capture.TargetBottom, "https://img.example/skirt.webp")

	img, err := r.Render(context.Background(), s.Snapshot())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if fetches != 1 {
		t.Fatalf("fetches = %d, want 1", fetches)
	}
	if got := img.RGBAAt(167, 160); !near(got, blue) {
		t.Fatalf("top overlay missing after bottom fetch failed, got %v", got)
	}
	if _, err := r.RenderPNG(context.Background(), s.Snapshot()); err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
}

func TestLoadAssetsSkipsMissing(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "default_clothes"), 0o755); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	png.Encode(&buf, solid(2, 2, color.White))
	if err := os.WriteFile(filepath.Join(dir, "default_clothes", "default_top.PNG"), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	a := LoadAssets(dir)
	if a.DefaultTop == nil {
		t.Fatal("default top should load")
	}
	if a.Base != nil || a.Tail != nil || a.DefaultBottom != nil {
		t.Fatal("missing assets should be nil")
	}
}
