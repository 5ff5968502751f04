package screenshot

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"

	"github.com/kbinani/screenshot"

	"yv-capture/src/capture"
	"yv-capture/src/dataurl"
)

// DeviceRect converts a CSS-pixel rect into device pixels, rounding each
// coordinate half-up to the nearest whole pixel.
func DeviceRect(r capture.Rect, dpr float64) image.Rectangle {
	sx := roundHalfUp(r.X * dpr)
	sy := roundHalfUp(r.Y * dpr)
	sw := roundHalfUp(r.W * dpr)
	sh := roundHalfUp(r.H * dpr)
	return image.Rect(sx, sy, sx+sw, sy+sh)
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

// Crop copies the device-pixel region of src into a new raster of exactly that size.
// Parts of the region outside src stay transparent. The result is at least 1x1.
func Crop(src image.Image, region image.Rectangle) *image.RGBA {
	w, h := region.Dx(), region.Dy()
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	b := src.Bounds()
	draw.Draw(out, out.Bounds(), src, image.Pt(b.Min.X+region.Min.X, b.Min.Y+region.Min.Y), draw.Src)
	return out
}

// CropDataURL decodes a screenshot data URL, crops rect*dpr out of it and
// re-encodes the result as a PNG data URL.
func CropDataURL(screenshotDataURL string, rect capture.Rect, dpr float64) (string, error) {
	if dpr <= 0 {
		return "", fmt.Errorf("invalid device pixel ratio %g", dpr)
	}
	_, raw, err := dataurl.Decode(screenshotDataURL)
	if err != nil {
		return "", fmt.Errorf("failed to decode screenshot: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to decode screenshot image: %w", err)
	}
	cropped := Crop(img, DeviceRect(rect, dpr))
	data, err := EncodePNG(cropped)
	if err != nil {
		return "", err
	}
	return dataurl.EncodePNG(data), nil
}

// EncodePNG encodes img losslessly.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %v", err)
	}
	return buf.Bytes(), nil
}

// DisplayCapturer screenshots the primary display. It stands in for the
// browser viewport when the browser runs fullscreen (kiosk) on that display,
// so window ids are accepted but not used.
type DisplayCapturer struct {
	Display int
}

// CaptureVisible returns the display contents as a PNG data URL.
func (d DisplayCapturer) CaptureVisible(ctx context.Context, windowID int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return "", fmt.Errorf("no active displays found")
	}
	idx := d.Display
	if idx < 0 || idx >= n {
		idx = 0
	}
	img, err := screenshot.CaptureRect(screenshot.GetDisplayBounds(idx))
	if err != nil {
		return "", fmt.Errorf("failed to capture display %d: %v", idx, err)
	}
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return dataurl.EncodePNG(data), nil
}

// GetDisplayBounds returns the bounds of the primary display
func GetDisplayBounds() (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return image.Rectangle{}, fmt.Errorf("no active displays found")
	}
	return screenshot.GetDisplayBounds(0), nil
}
