package stage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"log"
	"math"

	_ "image/gif"
	_ "image/jpeg"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"yv-capture/src/capture"
	"yv-capture/src/dataurl"
)

const (
	DefaultWidth  = 360
	DefaultHeight = 480
)

// FetchFunc turns a remote image URL into a data URL.
type FetchFunc func(ctx context.Context, url string) (string, error)

// Renderer composites the stage into a single image.
type Renderer struct {
	Width  int
	Height int
	Assets Assets
	// Fetch resolves non-data-URL overlay sources. Nil skips them.
	Fetch FetchFunc
}

// Render draws, back to front: tail, base, default top, captured top,
// default bottom, captured bottom. An overlay that cannot be loaded is logged
// and left out; the other layers still render.
func (r *Renderer) Render(ctx context.Context, slots []Slot) (*image.RGBA, error) {
	w, h := r.Width, r.Height
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = DefaultHeight
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	stageBox := dst.Bounds()

	bySlot := make(map[capture.Target]Slot, len(slots))
	for _, s := range slots {
		bySlot[s.Target] = s
	}

	drawFitted(dst, r.Assets.Tail, stageBox, capture.AnchorSpec{Scale: 1})
	drawFitted(dst, r.Assets.Base, stageBox, capture.AnchorSpec{Scale: 1})

	layers := []struct {
		target capture.Target
		def    image.Image
	}{
		{capture.TargetTop, r.Assets.DefaultTop},
		{capture.TargetBottom, r.Assets.DefaultBottom},
	}
	for _, l := range layers {
		slot, ok := bySlot[l.target]
		if !ok {
			slot = Slot{Target: l.target, DefaultVisible: true}
		}
		if slot.DefaultVisible {
			drawFitted(dst, l.def, stageBox, capture.AnchorSpec{Scale: 1})
		}
		if slot.OverlayVisible && slot.OverlaySrc != "" {
			img, err := r.load(ctx, slot.OverlaySrc)
			if err != nil {
				log.Printf("Stage: %s overlay unavailable, skipping layer: %v", l.target, err)
				continue
			}
			drawFitted(dst, img, stageBox, capture.Anchors[l.target])
		}
	}
	return dst, nil
}

// RenderPNG is Render followed by PNG encoding.
func (r *Renderer) RenderPNG(ctx context.Context, slots []Slot) ([]byte, error) {
	img, err := r.Render(ctx, slots)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode stage: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) load(ctx context.Context, src string) (image.Image, error) {
	if !dataurl.Is(src) {
		if r.Fetch == nil {
			return nil, fmt.Errorf("no fetcher for remote source")
		}
		fetched, err := r.Fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		src = fetched
	}
	return DecodeDataURL(src)
}

// DecodeDataURL decodes a base64 image data URL (png, jpeg, gif, webp).
func DecodeDataURL(src string) (image.Image, error) {
	_, data, err := dataurl.Decode(src)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// ContainRect fits a srcW x srcH image inside box keeping its aspect ratio, centered.
func ContainRect(srcW, srcH int, box image.Rectangle) (x, y, w, h float64) {
	bw, bh := float64(box.Dx()), float64(box.Dy())
	if srcW <= 0 || srcH <= 0 || bw <= 0 || bh <= 0 {
		return 0, 0, 0, 0
	}
	k := math.Min(bw/float64(srcW), bh/float64(srcH))
	w = float64(srcW) * k
	h = float64(srcH) * k
	x = float64(box.Min.X) + (bw-w)/2
	y = float64(box.Min.Y) + (bh-h)/2
	return x, y, w, h
}

// PlacedRect is where an image lands after contain fitting into box and
// applying the anchor: scaled about the box center, then offset.
func PlacedRect(srcW, srcH int, box image.Rectangle, a capture.AnchorSpec) image.Rectangle {
	_, _, w, h := ContainRect(srcW, srcH, box)
	if w == 0 || h == 0 {
		return image.Rectangle{}
	}
	scale := a.Scale
	if scale <= 0 {
		scale = 1
	}
	cx := float64(box.Min.X) + float64(box.Dx())/2 + a.OffsetX
	cy := float64(box.Min.Y) + float64(box.Dy())/2 + a.OffsetY
	w *= scale
	h *= scale
	return image.Rect(
		int(math.Round(cx-w/2)), int(math.Round(cy-h/2)),
		int(math.Round(cx+w/2)), int(math.Round(cy+h/2)),
	)
}

func drawFitted(dst draw.Image, src image.Image, box image.Rectangle, a capture.AnchorSpec) {
	if src == nil {
		return
	}
	b := src.Bounds()
	target := PlacedRect(b.Dx(), b.Dy(), box, a)
	if target.Empty() {
		return
	}
	xdraw.CatmullRom.Scale(dst, target, src, b, xdraw.Over, nil)
}
