package ui

import "github.com/hajimehoshi/ebiten/v2"

// keyRunes is the character each host key types without modifiers.
var keyRunes = map[ebiten.Key]rune{
	ebiten.KeyA: 'a', ebiten.KeyB: 'b', ebiten.KeyC: 'c', ebiten.KeyD: 'd',
	ebiten.KeyE: 'e', ebiten.KeyF: 'f', ebiten.KeyG: 'g', ebiten.KeyH: 'h',
	ebiten.KeyI: 'i', ebiten.KeyJ: 'j', ebiten.KeyK: 'k', ebiten.KeyL: 'l',
	ebiten.KeyM: 'm', ebiten.KeyN: 'n', ebiten.KeyO: 'o', ebiten.KeyP: 'p',
	ebiten.KeyQ: 'q', ebiten.KeyR: 'r', ebiten.KeyS: 's', ebiten.KeyT: 't',
	ebiten.KeyU: 'u', ebiten.KeyV: 'v', ebiten.KeyW: 'w', ebiten.KeyX: 'x',
	ebiten.KeyY: 'y', ebiten.KeyZ: 'z',

	ebiten.KeyDigit0: '0', ebiten.KeyDigit1: '1', ebiten.KeyDigit2: '2',
	ebiten.KeyDigit3: '3', ebiten.KeyDigit4: '4', ebiten.KeyDigit5: '5',
	ebiten.KeyDigit6: '6', ebiten.KeyDigit7: '7', ebiten.KeyDigit8: '8',
	ebiten.KeyDigit9: '9',

	ebiten.KeyEnter:       '\r',
	ebiten.KeyNumpadEnter: '\r',
	ebiten.KeySpace:       ' ',
}
