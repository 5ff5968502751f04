package messages

import (
	"yv-capture/src/capture"
)

// Message is the base interface for all inter-actor messages
type Message interface {
	Type() string
}

// MessageType constants for type identification. Values match the wire names.
const (
	TypeStartCaptureMode      = "START_CAPTURE_MODE"
	TypeCaptureRegionSelected = "CAPTURE_REGION_SELECTED"
	TypeFetchImageDataURL     = "FETCH_IMAGE_DATA_URL"
	TypeFetchImageResult      = "FETCH_IMAGE_RESULT"
	TypeDieNow                = "DIENOW"
)

// StartCaptureMode - sent by the panel to the orchestrator (fire-and-forget).
// SessionID identifies the capture request so the resulting record can be
// matched back to the slot it was requested for.
type StartCaptureMode struct {
	SessionID string `json:"sessionId,omitempty"`
}

func (m StartCaptureMode) Type() string { return TypeStartCaptureMode }

// Sender describes where a selector message came from.
type Sender struct {
	PageID   string `json:"pageId"`
	WindowID int    `json:"windowId"`
}

// WindowResolvable reports whether the sender's window is known.
func (s Sender) WindowResolvable() bool { return s.WindowID > 0 }

// CaptureRegionSelected - sent by a selector when the user finishes a drag (fire-and-forget).
type CaptureRegionSelected struct {
	Rect              capture.Rect `json:"rect"`
	DPR               float64      `json:"dpr"`
	CandidateImageSrc string       `json:"candidateImageSrc"`
	SessionID         string       `json:"sessionId,omitempty"`
	Sender            Sender       `json:"-"`
}

func (m CaptureRegionSelected) Type() string { return TypeCaptureRegionSelected }

// FetchImageDataURL - request/response: fetch a remote image without credentials.
type FetchImageDataURL struct {
	URL string `json:"url"`
}

func (m FetchImageDataURL) Type() string { return TypeFetchImageDataURL }

// FetchImageResult - reply to FetchImageDataURL.
type FetchImageResult struct {
	OK          bool   `json:"ok"`
	DataURL     string `json:"dataUrl,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	ByteLength  int    `json:"byteLength,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (m FetchImageResult) Type() string { return TypeFetchImageResult }

// DIENOW - emergency shutdown message sent to all actors
type DIENOW struct{}

func (m DIENOW) Type() string { return TypeDieNow }

// MessageEnvelope wraps messages with metadata for routing.
// Reply is set only for request/response messages; the handler sends exactly one reply.
type MessageEnvelope struct {
	From    string         // Source actor name
	To      string         // Destination actor name ("*" for broadcast)
	Message Message        // The actual message
	Reply   chan<- Message // Optional reply channel (buffered, size 1)
}

// Actor names used for routing
const (
	ProcessMain         = "main"
	ProcessSelector     = "selector"
	ProcessOrchestrator = "orchestrator"
	ProcessPanel        = "panel"
)
