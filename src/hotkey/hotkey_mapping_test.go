package hotkey

import (
	"testing"
)

func TestKeyNameToRawcodes(t *testing.T) {
	tests := []struct {
		keyName  string
		expected []uint16
	}{
		// Modifier keys
		{"ctrl", []uint16{162, 163}},
		{"alt", []uint16{164, 165}},
		{"shift", []uint16{160, 161}},
		{"win", []uint16{91, 92}},
		{"cmd", []uint16{91, 92}},
		{"super", []uint16{91, 92}},

		// Letter keys
		{"q", []uint16{81}},
		{"e", []uint16{69}},
		{"o", []uint16{79}},
		{"t", []uint16{84}},

		// Number keys
		{"0", []uint16{48}},
		{"1", []uint16{49}},
		{"9", []uint16{57}},

		// Function keys
		{"f1", []uint16{112}},
		{"f12", []uint16{123}},
		{"f13", []uint16{124}},
		{"f24", []uint16{135}},

		// Special keys
		{"space", []uint16{32}},
		{"enter", []uint16{13}},
		{"esc", []uint16{27}},

		// Unknown key
		{"unknown", nil},
	}

	for _, tt := range tests {
		t.Run(tt.keyName, func(t *testing.T) {
			result := keyNameToRawcodes(tt.keyName)
			if len(result) != len(tt.expected) {
				t.Errorf("keyNameToRawcodes(%q) returned %d rawcodes, expected %d",
					tt.keyName, len(result), len(tt.expected))
				return
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("keyNameToRawcodes(%q)[%d] = %d, expected %d",
						tt.keyName, i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestParseHotkey(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"Ctrl+Alt+Q", []string{"ctrl", "alt", "q"}},
		{"Ctrl+Shift+O", []string{"ctrl", "shift", "o"}},
		{"Ctrl+alt+e", []string{"ctrl", "alt", "e"}},
		{"Alt+F4", []string{"alt", "f4"}},
		{"Ctrl+Shift+F13", []string{"ctrl", "shift", "f13"}},
		{"Alt+F24", []string{"alt", "f24"}},
		{"Ctrl+Shift+T", []string{"ctrl", "shift", "t"}},
		{"Ctrl+Win+E", []string{"ctrl", "cmd", "e"}},
		{"Win+Shift+S", []string{"cmd", "shift", "s"}},
		{"Super+Alt+T", []string{"cmd", "alt", "t"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseHotkey(tt.input)
			if len(result) != len(tt.expected) {
				t.Errorf("parseHotkey(%q) returned %d keys, expected %d",
					tt.input, len(result), len(tt.expected))
				return
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("parseHotkey(%q)[%d] = %q, expected %q",
						tt.input, i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestMatcherFiresOnCompleteCombination(t *testing.T) {
	var top, clear int
	m := newMatcher([]Binding{
		{Combo: "Ctrl+Alt+T", Action: func() { top++ }},
		{Combo: "Ctrl+Alt+X", Action: func() { clear++ }},
		{Combo: "Ctrl+Bogus", Action: func() { t.Error("unmappable binding fired") }},
		{Combo: "", Action: func() {}},
	})
	if len(m.combos) != 2 {
		t.Fatalf("expected 2 usable combos, got %d", len(m.combos))
	}

	press := func(codes ...uint16) {
		for _, c := range codes {
			for _, fire := range m.keyDown(c) {
				fire()
			}
		}
	}

	press(162, 164) // ctrl, alt
	if top != 0 || clear != 0 {
		t.Fatal("fired before combination was complete")
	}
	press(84) // t
	if top != 1 || clear != 0 {
		t.Fatalf("top=%d clear=%d after Ctrl+Alt+T", top, clear)
	}

	// Ctrl+Alt are still held as far as the other combination knows
	press(88) // x
	if clear != 1 {
		t.Fatalf("clear=%d after x with modifiers held", clear)
	}

	// the fired combinations reset, so a lone t does nothing
	press(84)
	if top != 1 {
		t.Fatalf("top=%d after lone t", top)
	}
	press(163, 165) // right ctrl, right alt
	if top != 2 {
		t.Fatalf("top=%d after right modifiers completed Ctrl+Alt+T", top)
	}
}

func TestMatcherKeyUpReleases(t *testing.T) {
	fired := 0
	m := newMatcher([]Binding{{Combo: "Shift+F5", Action: func() { fired++ }}})
	m.keyDown(160)
	m.keyUp(160)
	for _, fire := range m.keyDown(116) {
		fire()
	}
	if fired != 0 {
		t.Fatal("combination fired after shift was released")
	}
}
