// Package keymap turns host key presses into ZX Spectrum keyboard codes.
//
// A code is row<<5 | bit: the upper three bits pick one of the eight
// half-rows, the lower five the key within it.
package keymap

import "unicode"

const (
	CapsShift   uint32 = 0x01
	SymbolShift uint32 = 0xE2
)

// Table maps lower-case characters to key codes. Shifted digits share their
// digit's key; the Spectrum adds shift through CapsShift itself.
type Table map[rune]uint32

// Spectrum48 is the 40-key layout of the 48K.
var Spectrum48 = Table{
	'z': 0x02, 'x': 0x04, 'c': 0x08, 'v': 0x10,
	'a': 0x21, 's': 0x22, 'd': 0x24, 'f': 0x28, 'g': 0x30,
	'q': 0x41, 'w': 0x42, 'e': 0x44, 'r': 0x48, 't': 0x50,
	'1': 0x61, '2': 0x62, '3': 0x64, '4': 0x68, '5': 0x70,
	'!': 0x61, '@': 0x62, '#': 0x64, '$': 0x68, '%': 0x70,
	'0': 0x81, '9': 0x82, '8': 0x84, '7': 0x88, '6': 0x90,
	')': 0x81, '(': 0x82, '*': 0x84, '&': 0x88, '^': 0x90,
	'p': 0xA1, 'o': 0xA2, 'i': 0xA4, 'u': 0xA8, 'y': 0xB0,
	'\r': 0xC1, 'l': 0xC2, 'k': 0xC4, 'j': 0xC8, 'h': 0xD0,
	' ': 0xE1, 'm': 0xE4, 'n': 0xE8, 'b': 0xF0,
}

// Lookup returns the code for r, ignoring case.
func (t Table) Lookup(r rune) (uint32, bool) {
	code, ok := t[unicode.ToLower(r)]
	return code, ok
}

// Keyboard is the machine side of key input.
type Keyboard interface {
	KeyDown(code uint32)
	KeyUp(code uint32)
}

// Modifiers tracks the two shift keys and tells the machine only about changes.
type Modifiers struct {
	shift  bool
	option bool
}

// Update reports the current host modifier state.
func (m *Modifiers) Update(kb Keyboard, shift, option bool) {
	if shift != m.shift {
		m.shift = shift
		press(kb, CapsShift, shift)
	}
	if option != m.option {
		m.option = option
		press(kb, SymbolShift, option)
	}
}

// Release lets go of any held modifier, e.g. when the window loses focus.
func (m *Modifiers) Release(kb Keyboard) { m.Update(kb, false, false) }

func press(kb Keyboard, code uint32, down bool) {
	if down {
		kb.KeyDown(code)
	} else {
		kb.KeyUp(code)
	}
}
