package query

import "strings"

// Dubeolsik keyboard keys for each jamo position of a precomposed syllable.
var (
	initialKeys = [...]string{
		"r", "R", "s", "e", "E", "f", "a", "q", "Q", "t",
		"T", "d", "w", "W", "c", "z", "x", "v", "g",
	}
	medialKeys = [...]string{
		"k", "o", "i", "O", "j", "p", "u", "P", "h", "hk",
		"ho", "hl", "y", "n", "nj", "np", "nl", "b", "m", "ml",
		"l",
	}
	finalKeys = [...]string{
		"", "r", "R", "rt", "s", "sw", "sg", "e", "f", "fr",
		"fa", "fq", "ft", "fx", "fv", "fg", "a", "q", "qt", "t",
		"T", "d", "w", "c", "z", "x", "v", "g",
	}
	// U+3131 ㄱ through U+314E ㅎ
	compatConsonantKeys = [...]string{
		"r", "R", "rt", "s", "sw", "sg", "e", "E", "f", "fr",
		"fa", "fq", "ft", "fx", "fv", "fg", "a", "q", "Q", "qt",
		"t", "T", "d", "w", "W", "c", "z", "x", "v", "g",
	}
)

const (
	syllableBase = 0xAC00
	syllableLast = 0xD7A3
	medialCount  = 21
	finalCount   = 28
	perInitial   = medialCount * finalCount // 588
	compatFirst  = 0x3131
	compatVowel  = 0x314F // ㅏ
	compatLast   = 0x3163 // ㅣ
)

// Transliterate rewrites Hangul syllables and compatibility jamo as the
// keys typed for them on a Dubeolsik keyboard, so "ㅠㅅㅊ" reads "btc".
// Other runes pass through.
func Transliterate(s string) string {
	if !hasHangul(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= syllableBase && r <= syllableLast:
			idx := int(r - syllableBase)
			b.WriteString(initialKeys[idx/perInitial])
			b.WriteString(medialKeys[(idx%perInitial)/finalCount])
			b.WriteString(finalKeys[idx%finalCount])
		case r >= compatFirst && r < compatVowel:
			b.WriteString(compatConsonantKeys[r-compatFirst])
		case r >= compatVowel && r <= compatLast:
			b.WriteString(medialKeys[r-compatVowel])
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func hasHangul(s string) bool {
	for _, r := range s {
		if (r >= syllableBase && r <= syllableLast) || (r >= compatFirst && r <= compatLast) {
			return true
		}
	}
	return false
}
