package hotkey

import (
	"log"
	"strconv"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

// Binding ties one key combination such as "Ctrl+Alt+T" to an action.
type Binding struct {
	Combo  string
	Action func()
}

var startOnce sync.Once

// ListenAll registers every binding on a single global gohook stream.
// gohook can only be started once per process, so call this once.
// Actions run on the hook goroutine and must not block.
func ListenAll(bindings []Binding) {
	m := newMatcher(bindings)
	if m.empty() {
		log.Printf("Hotkey: no usable bindings, listener not started")
		return
	}
	startOnce.Do(func() {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("PANIC in hotkey goroutine: %v", r)
				}
			}()
			evChan := gohook.Start()
			if evChan == nil {
				log.Printf("ERROR: gohook.Start() returned nil channel")
				return
			}
			log.Printf("Hotkey: gohook event loop started")
			for ev := range evChan {
				switch ev.Kind {
				case gohook.KeyDown:
					for _, fire := range m.keyDown(ev.Rawcode) {
						fire()
					}
				case gohook.KeyUp:
					m.keyUp(ev.Rawcode)
				}
			}
			log.Printf("Hotkey: event channel closed")
		}()
	})
}

// Stop ends the global hook.
func Stop() { gohook.End() }

type keyState struct {
	name     string
	rawcodes []uint16
	pressed  bool
}

type combo struct {
	label  string
	keys   []keyState
	action func()
}

// matcher tracks pressed state for every configured combination.
type matcher struct {
	mu     sync.Mutex
	combos []*combo
}

func newMatcher(bindings []Binding) *matcher {
	m := &matcher{}
	for _, b := range bindings {
		if strings.TrimSpace(b.Combo) == "" || b.Action == nil {
			continue
		}
		c := &combo{label: b.Combo, action: b.Action}
		ok := true
		for _, name := range parseHotkey(b.Combo) {
			codes := keyNameToRawcodes(name)
			if len(codes) == 0 {
				log.Printf("ERROR: Cannot map key '%s' in hotkey '%s', binding skipped", name, b.Combo)
				ok = false
				break
			}
			c.keys = append(c.keys, keyState{name: name, rawcodes: codes})
		}
		if ok && len(c.keys) > 0 {
			log.Printf("Hotkey listener configured for: %s", b.Combo)
			m.combos = append(m.combos, c)
		}
	}
	return m
}

func (m *matcher) empty() bool { return len(m.combos) == 0 }

// keyDown marks rawcode pressed and returns the actions of combinations
// that just completed. A completed combination resets.
func (m *matcher) keyDown(rawcode uint16) []func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	var fired []func()
	for _, c := range m.combos {
		c.set(rawcode, true)
		if c.complete() {
			log.Printf("Hotkey activated: %s", c.label)
			for i := range c.keys {
				c.keys[i].pressed = false
			}
			fired = append(fired, c.action)
		}
	}
	return fired
}

func (m *matcher) keyUp(rawcode uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.combos {
		c.set(rawcode, false)
	}
}

func (c *combo) set(rawcode uint16, pressed bool) {
	for i := range c.keys {
		for _, rc := range c.keys[i].rawcodes {
			if rc == rawcode {
				c.keys[i].pressed = pressed
				break
			}
		}
	}
}

func (c *combo) complete() bool {
	for _, k := range c.keys {
		if !k.pressed {
			return false
		}
	}
	return true
}

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to normalized key names
func parseHotkey(hotkeyConfig string) []string {
	parts := strings.Split(strings.ToLower(hotkeyConfig), "+")
	var keys []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "win", "cmd", "super":
			keys = append(keys, "cmd")
		default:
			keys = append(keys, part)
		}
	}
	return keys
}

// Windows virtual key codes for named keys. Modifiers list left and right variants.
var namedKeys = map[string][]uint16{
	"ctrl":      {162, 163},
	"alt":       {164, 165},
	"shift":     {160, 161},
	"win":       {91, 92},
	"cmd":       {91, 92},
	"super":     {91, 92},
	"space":     {32},
	"enter":     {13},
	"return":    {13},
	"esc":       {27},
	"escape":    {27},
	"tab":       {9},
	"backspace": {8},
	"delete":    {46},
	"del":       {46},
	"insert":    {45},
	"ins":       {45},
	"home":      {36},
	"end":       {35},
	"pageup":    {33},
	"pgup":      {33},
	"pagedown":  {34},
	"pgdn":      {34},
	"left":      {37},
	"up":        {38},
	"right":     {39},
	"down":      {40},
}

// keyNameToRawcodes maps a key name to its Windows virtual key code rawcodes.
func keyNameToRawcodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))
	if codes, ok := namedKeys[keyName]; ok {
		return codes
	}
	if len(keyName) == 1 {
		switch ch := keyName[0]; {
		case ch >= 'a' && ch <= 'z':
			return []uint16{uint16(ch-'a') + 65}
		case ch >= '0' && ch <= '9':
			return []uint16{uint16(ch-'0') + 48}
		}
	}
	if strings.HasPrefix(keyName, "f") {
		if n, err := strconv.Atoi(keyName[1:]); err == nil && n >= 1 && n <= 24 {
			return []uint16{uint16(111 + n)} // VK_F1 = 112
		}
	}
	log.Printf("WARNING: Unknown key name '%s', cannot map to rawcode", keyName)
	return nil
}
