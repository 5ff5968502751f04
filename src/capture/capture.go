package capture

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrNoImage is returned when a record carries neither a candidate URL nor a croppable screenshot.
var ErrNoImage = errors.New("no resolvable image in capture record")

// Rect is a selection rectangle in CSS pixels, relative to the viewport.
// X,Y is always the top-left corner.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// MakeRect normalizes two drag points into a Rect. Degenerate drags yield 1x1.
func MakeRect(x1, y1, x2, y2 float64) Rect {
	left := math.Min(x1, x2)
	top := math.Min(y1, y2)
	right := math.Max(x1, x2)
	bottom := math.Max(y1, y2)
	return Rect{
		X: left,
		Y: top,
		W: math.Max(1, right-left),
		H: math.Max(1, bottom-top),
	}
}

// Empty reports whether the rect has no usable area (zero value or missing).
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

func (r Rect) String() string {
	return fmt.Sprintf("{x:%g y:%g w:%g h:%g}", r.X, r.Y, r.W, r.H)
}

// Target names a stage slot a capture result is applied to.
type Target string

const (
	TargetTop    Target = "top"
	TargetBottom Target = "bottom"
)

// Targets lists the stage slots in z-order.
var Targets = []Target{TargetTop, TargetBottom}

// ParseTarget accepts "top" or "bottom" in any case.
func ParseTarget(s string) (Target, error) {
	switch Target(strings.ToLower(strings.TrimSpace(s))) {
	case TargetTop:
		return TargetTop, nil
	case TargetBottom:
		return TargetBottom, nil
	default:
		return "", fmt.Errorf("unknown capture target %q (want top or bottom)", s)
	}
}

// Record is the single persisted unit of work written after a completed selection.
// An empty CandidateImageSrc stands for "no candidate".
type Record struct {
	Timestamp         int64   `json:"ts"`
	Rect              Rect    `json:"rect"`
	DPR               float64 `json:"dpr"`
	CandidateImageSrc string  `json:"candidateImageSrc"`
	ScreenshotDataURL string  `json:"screenshotDataUrl"`
	SessionID         string  `json:"sessionId,omitempty"`
}

// NewRecord stamps a record with the current time.
func NewRecord(rect Rect, dpr float64, candidate, screenshotDataURL, sessionID string) Record {
	return Record{
		Timestamp:         time.Now().UnixMilli(),
		Rect:              rect,
		DPR:               dpr,
		CandidateImageSrc: candidate,
		ScreenshotDataURL: screenshotDataURL,
		SessionID:         sessionID,
	}
}

// HasCandidate reports whether a high-resolution source URL was inferred.
func (r Record) HasCandidate() bool {
	return r.CandidateImageSrc != ""
}

// HasCropSource reports whether screenshot, rect and dpr are all present.
func (r Record) HasCropSource() bool {
	return r.ScreenshotDataURL != "" && !r.Rect.Empty() && r.DPR > 0
}

// AnchorSpec positions a composited image relative to the stage center.
type AnchorSpec struct {
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
	Scale   float64 `json:"scale"`
}

// Anchors is the fixed per-slot placement table.
var Anchors = map[Target]AnchorSpec{
	TargetTop:    {OffsetX: -13, OffsetY: -80, Scale: 0.45},
	TargetBottom: {OffsetX: -10, OffsetY: 45, Scale: 0.5},
}
