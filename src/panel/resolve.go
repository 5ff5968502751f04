package panel

import (
	"fmt"
	"log"

	"yv-capture/src/capture"
	"yv-capture/src/screenshot"
)

// Status texts shown by the panel.
const (
	StatusIdle       = "Idle"
	StatusHighRes    = "High-res link"
	StatusCropped    = "Cropped screenshot"
	StatusNoData     = "No valid capture data"
	StatusCleared    = "Cleared"
	StatusBusy       = "Busy, please retry"
	PlaceholderText  = "Waiting for capture..."
	statusCapture    = "Capture %s: drag a rectangle on the page"
	statusCutting    = "Cutting out %s..."
	statusNoCutout   = "Applied %s (no cutout)"
	statusApplied    = "Applied to %s"
	statusCutoutFail = "Cutout failed for %s: %v"
	statusSendFail   = "Capture %s failed: %v"
)

// Path says which resolution path produced a preview.
type Path int

const (
	PathNone Path = iota
	PathHighRes
	PathCropped
)

func (p Path) String() string {
	switch p {
	case PathHighRes:
		return "high-res"
	case PathCropped:
		return "cropped"
	default:
		return "none"
	}
}

// Resolution is the displayable image for a record. Src is empty for PathNone.
type Resolution struct {
	Src    string
	Path   Path
	Status string
}

// Resolve picks the preview source: the candidate URL as-is, else the
// device-pixel crop of the screenshot, else nothing.
func Resolve(rec capture.Record) Resolution {
	if rec.HasCandidate() {
		return Resolution{Src: rec.CandidateImageSrc, Path: PathHighRes, Status: StatusHighRes}
	}
	if rec.HasCropSource() {
		cropped, err := screenshot.CropDataURL(rec.ScreenshotDataURL, rec.Rect, rec.DPR)
		if err == nil {
			return Resolution{Src: cropped, Path: PathCropped, Status: StatusCropped}
		}
		log.Printf("Panel: crop failed: %v", err)
	}
	return Resolution{Path: PathNone, Status: StatusNoData}
}

// CutoutSource picks what to send for background removal: the crop whenever
// the record has one, otherwise the preview source.
func CutoutSource(rec capture.Record, preview string) (string, error) {
	if rec.HasCropSource() {
		cropped, err := screenshot.CropDataURL(rec.ScreenshotDataURL, rec.Rect, rec.DPR)
		if err != nil {
			return "", fmt.Errorf("crop screenshot: %w", err)
		}
		return cropped, nil
	}
	if preview == "" {
		return "", capture.ErrNoImage
	}
	return preview, nil
}
