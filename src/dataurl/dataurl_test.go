package dataurl

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff}
	u := Encode("image/webp", payload)
	if u[:len("data:image/webp;base64,")] != "data:image/webp;base64," {
		t.Fatalf("unexpected prefix: %s", u)
	}
	ct, data, err := Decode(u)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ct != "image/webp" {
		t.Errorf("content type = %q", ct)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("payload mismatch")
	}
}

func TestEncodeDefaultsContentType(t *testing.T) {
	if got := Encode("", []byte("x")); got != "data:image/png;base64,eA==" {
		t.Fatalf("Encode with empty type = %q", got)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "", ErrMissing},
		{"remote url", "https://example.com/a.png", ErrInvalid},
		{"no comma", "data:image/png;base64", ErrInvalid},
		{"not base64", "data:text/plain,hello", ErrNotBase64},
		{"bad payload", "data:image/png;base64,***", ErrInvalidData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Decode(%q) error = %v, want %v", tt.in, err, tt.want)
			}
		})
	}
}

func TestDecodeStripsParameters(t *testing.T) {
	ct, _, err := Decode("data:image/svg+xml;charset=utf-8;base64,PHN2Zy8+")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ct != "image/svg+xml" {
		t.Fatalf("content type = %q", ct)
	}
}
