package clipboard

import (
	"errors"
	"sync"

	"golang.design/x/clipboard"
)

var (
	writeMu sync.Mutex
	initMu  sync.Mutex
	ready   bool
)

// ErrNotInitialized is returned by writes before Init succeeded.
var ErrNotInitialized = errors.New("clipboard not initialized")

func Init() error {
	initMu.Lock()
	defer initMu.Unlock()
	if ready {
		return nil
	}
	if err := clipboard.Init(); err != nil {
		return err
	}
	ready = true
	return nil
}

func initialized() bool {
	initMu.Lock()
	defer initMu.Unlock()
	return ready
}

// Write performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func Write(text string) error {
	return write(clipboard.FmtText, []byte(text))
}

// WriteImage puts PNG bytes on the clipboard.
func WriteImage(png []byte) error {
	if len(png) == 0 {
		return errors.New("empty image")
	}
	return write(clipboard.FmtImage, png)
}

func write(format clipboard.Format, data []byte) error {
	if !initialized() {
		return ErrNotInitialized
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(format, data)
	return nil
}
