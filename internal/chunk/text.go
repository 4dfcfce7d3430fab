package chunk

import "unicode/utf8"

// DecodeText interprets raw bytes as UTF-8, falling back to Latin-1 so
// that a single stray byte never fails an entire file.
func DecodeText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes)
}
