// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package storage

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ContentDisposition renders an attachment header for name. The quoted
// filename is an ASCII fallback with accents folded away; filename* carries
// the exact name (RFC 5987).
func ContentDisposition(name string) string {
	name = SanitizeName(name)
	return `attachment; filename="` + ASCIIName(name) + `"; filename*=UTF-8''` + extValue(name)
}

// extValue percent-encodes everything outside RFC 5987 attr-char.
func extValue(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isAttrChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}

// SanitizeName strips path components and control characters from a client
// supplied file name.
func SanitizeName(name string) string {
	name = norm.NFC.String(name)
	if i := lastSlash(name); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "converted.ogg"
	}
	return name
}

// ASCIIName folds name to printable ASCII: diacritics are removed and any
// other non-ASCII rune, quote or backslash becomes '_'.
func ASCIIName(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '"' || r == '\\':
			return '_'
		case r < 0x20 || r > 0x7e:
			return '_'
		default:
			return r
		}
	}, folded)
}
