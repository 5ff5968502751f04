package dataurl

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// DefaultContentType is used when a response or caller does not declare one.
const DefaultContentType = "image/png"

var (
	ErrMissing     = errors.New("missing data URL")
	ErrInvalid     = errors.New("invalid data URL format")
	ErrNotBase64   = errors.New("data URL is not base64 encoded")
	ErrInvalidData = errors.New("invalid base64 data")
)

// Is reports whether s looks like a data URL.
func Is(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// Encode builds "data:<contentType>;base64,<payload>".
func Encode(contentType string, data []byte) string {
	if contentType == "" {
		contentType = DefaultContentType
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// EncodePNG is Encode with the PNG media type.
func EncodePNG(data []byte) string {
	return Encode("image/png", data)
}

// Decode extracts the media type and bytes from a base64 data URL.
func Decode(dataURL string) (string, []byte, error) {
	if dataURL == "" {
		return "", nil, ErrMissing
	}
	if !Is(dataURL) {
		return "", nil, ErrInvalid
	}
	parts := strings.SplitN(dataURL, ",", 2)
	if len(parts) != 2 {
		return "", nil, ErrInvalid
	}
	header := strings.TrimPrefix(parts[0], "data:")
	if !strings.HasSuffix(header, ";base64") {
		return "", nil, ErrNotBase64
	}
	contentType := strings.TrimSuffix(header, ";base64")
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	if contentType == "" {
		contentType = "text/plain"
	}
	data, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return contentType, data, nil
}
