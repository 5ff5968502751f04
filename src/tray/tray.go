package tray

import (
	"log"
	"sync"

	"github.com/getlantern/systray"

	"yv-capture/src/capture"
)

// Config wires the tray menu to the panel's actions. Callbacks run on the
// tray goroutine and must not block.
type Config struct {
	Title     string
	Tooltip   string
	OnCapture func(capture.Target)
	OnClear   func()
	OnExit    func()
}

// Tray is the resident's menu: one capture item per stage slot, Clear and Quit.
type Tray struct {
	cfg   Config
	mu    sync.Mutex
	ready bool
	tip   string
	quit  chan struct{}
	once  sync.Once
}

// New prepares a tray; nothing is shown until Run.
func New(cfg Config) *Tray {
	if cfg.Title == "" {
		cfg.Title = "YV Capture"
	}
	if cfg.Tooltip == "" {
		cfg.Tooltip = cfg.Title
	}
	return &Tray{cfg: cfg, tip: cfg.Tooltip, quit: make(chan struct{})}
}

// Run blocks until Quit is called or the user picks Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the icon and makes Run return.
func (t *Tray) Quit() {
	t.once.Do(func() { close(t.quit) })
	systray.Quit()
}

// SetStatus shows status in the tooltip.
func (t *Tray) SetStatus(status string) {
	t.mu.Lock()
	t.tip = Tooltip(t.cfg.Title, status)
	ready := t.ready
	tip := t.tip
	t.mu.Unlock()
	if ready {
		systray.SetTooltip(tip)
	}
}

// Tooltip joins the title and a status line, trimming to what Windows shows.
func Tooltip(title, status string) string {
	const maxTooltip = 127
	s := title
	if status != "" {
		s = title + " - " + status
	}
	if r := []rune(s); len(r) > maxTooltip {
		s = string(r[:maxTooltip-3]) + "..."
	}
	return s
}

func (t *Tray) onReady() {
	systray.SetIcon(Icon())
	systray.SetTitle(t.cfg.Title)

	t.mu.Lock()
	t.ready = true
	tip := t.tip
	t.mu.Unlock()
	systray.SetTooltip(tip)

	mTop := systray.AddMenuItem("Capture Top", "Select a region for the top slot")
	mBottom := systray.AddMenuItem("Capture Bottom", "Select a region for the bottom slot")
	mClear := systray.AddMenuItem("Clear", "Remove the last capture and reset the stage")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit the application")

	go func() {
		for {
			select {
			case <-mTop.ClickedCh:
				t.capture(capture.TargetTop)
			case <-mBottom.ClickedCh:
				t.capture(capture.TargetBottom)
			case <-mClear.ClickedCh:
				if t.cfg.OnClear != nil {
					t.cfg.OnClear()
				}
			case <-mQuit.ClickedCh:
				log.Printf("Tray: quit requested")
				t.Quit()
				return
			case <-t.quit:
				return
			}
		}
	}()
}

func (t *Tray) capture(target capture.Target) {
	if t.cfg.OnCapture != nil {
		t.cfg.OnCapture(target)
	}
}

func (t *Tray) onExit() {
	t.mu.Lock()
	t.ready = false
	t.mu.Unlock()
	if t.cfg.OnExit != nil {
		t.cfg.OnExit()
	}
}
