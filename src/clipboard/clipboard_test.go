package clipboard

import (
	"errors"
	"os"
	"testing"
)

func TestWriteImageRejectsEmpty(t *testing.T) {
	if err := WriteImage(nil); err == nil {
		t.Fatal("expected error for empty image")
	}
}

func TestWriteBeforeInit(t *testing.T) {
	if initialized() {
		t.Skip("clipboard already initialized by another test")
	}
	if err := Write("x"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Write before Init = %v, want ErrNotInitialized", err)
	}
}

func TestWrite(t *testing.T) {
	if os.Getenv("YV_CLIPBOARD_TEST") != "1" {
		t.Skip("set YV_CLIPBOARD_TEST=1 to exercise the system clipboard")
	}
	if err := Init(); err != nil {
		t.Skipf("clipboard unavailable: %v", err)
	}
	if err := Write("test text"); err != nil {
		t.Errorf("Failed to write to clipboard: %v", err)
	}
}
