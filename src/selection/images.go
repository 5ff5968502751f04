package selection

import (
	"math"

	"yv-capture/src/capture"
)

// Minimum rendered footprint for an image to count as a candidate.
// Rejects icons, spacers and tracking pixels.
const (
	MinImageSide = 40
	MinImageArea = 2500
)

// Box is an element's rendered bounding box in viewport CSS pixels.
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ImageElement is one rendered <img> on the page.
type ImageElement struct {
	Box          Box    `json:"box"`
	CurrentSrc   string `json:"currentSrc"`
	Src          string `json:"src"`
	DataSrc      string `json:"dataSrc"`
	DataOriginal string `json:"dataOriginal"`
}

// ResolvedSrc prefers the rendered source, then src, then the lazy-load attributes.
func (e ImageElement) ResolvedSrc() string {
	for _, s := range []string{e.CurrentSrc, e.Src, e.DataSrc, e.DataOriginal} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (e ImageElement) tooSmall() bool {
	if e.Box.Width < MinImageSide || e.Box.Height < MinImageSide {
		return true
	}
	return e.Box.Width*e.Box.Height < MinImageArea
}

// IntersectionArea of an element box with a selection rect.
func IntersectionArea(a Box, b capture.Rect) float64 {
	x1 := math.Max(a.Left, b.X)
	y1 := math.Max(a.Top, b.Y)
	x2 := math.Min(a.Right, b.X+b.W)
	y2 := math.Min(a.Bottom, b.Y+b.H)
	return math.Max(0, x2-x1) * math.Max(0, y2-y1)
}

// BestImage returns the index of the image with the largest intersection with
// rect, or -1. The first one found wins a tie.
func BestImage(images []ImageElement, rect capture.Rect) int {
	best := -1
	bestScore := 0.0
	for i, img := range images {
		if img.tooSmall() {
			continue
		}
		inter := IntersectionArea(img.Box, rect)
		if inter <= 0 {
			continue
		}
		if best < 0 || inter > bestScore {
			best = i
			bestScore = inter
		}
	}
	return best
}

// FindBestImageSrc infers a high-resolution source under rect. An empty
// result means no candidate, which is a normal outcome.
func FindBestImageSrc(images []ImageElement, rect capture.Rect) string {
	i := BestImage(images, rect)
	if i < 0 {
		return ""
	}
	return images[i].ResolvedSrc()
}
