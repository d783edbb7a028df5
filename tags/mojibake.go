package tags

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// cp1252Punct are the runes Windows-1252 places in 0x80..0x9F. Seeing them in
// a tag name usually means UTF-8 bytes were decoded as a single-byte charset.
var cp1252Punct = map[rune]struct{}{
	'€': {}, '‚': {}, 'ƒ': {}, '„': {}, '…': {}, '†': {}, '‡': {},
	'ˆ': {}, '‰': {}, 'Š': {}, '‹': {}, 'Œ': {}, 'Ž': {}, '‘': {},
	'’': {}, '“': {}, '”': {}, '•': {}, '–': {}, '—': {}, '˜': {},
	'™': {}, 'š': {}, '›': {}, 'œ': {}, 'ž': {}, 'Ÿ': {},
}

var cjkRanges = []*unicode.RangeTable{
	unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul,
}

// Repair undoes a wrongly-applied Windows-1252 decode: the name's runes are
// mapped back to their single-byte values and reinterpreted as UTF-8. The
// reinterpretation is kept only when it scores strictly better than the
// original; legitimately mixed input can in principle misfire, the heuristic
// only promises to be better on average.
func Repair(name string) string {
	raw, err := charmap.Windows1252.NewEncoder().Bytes([]byte(name))
	if err != nil {
		// Contains runes no single-byte decode could have produced.
		return name
	}
	if !utf8.Valid(raw) {
		return name
	}
	candidate := string(raw)
	if candidate == name {
		return name
	}
	if score(candidate) > score(name) {
		return candidate
	}
	return name
}

// score counts target-script characters and penalizes known mis-decode
// artifacts.
func score(s string) int {
	n := 0
	for _, r := range s {
		switch {
		case unicode.IsOneOf(cjkRanges, r):
			n++
		case r >= 0x80 && r <= 0xFF:
			n--
		case r == utf8.RuneError:
			n--
		default:
			if _, bad := cp1252Punct[r]; bad {
				n--
			}
		}
	}
	return n
}
