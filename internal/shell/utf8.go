package shell

import "unicode/utf8"

// CompleteUTF8 returns the length of the longest prefix of p that does not
// end inside a multi-byte rune. Callers carry the remainder into the next
// read.
func CompleteUTF8(p []byte) int {
	for i := len(p) - 1; i >= 0 && i >= len(p)-utf8.UTFMax; i-- {
		if utf8.RuneStart(p[i]) {
			if utf8.FullRune(p[i:]) {
				return len(p)
			}
			return i
		}
	}
	return len(p)
}
