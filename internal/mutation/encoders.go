package mutation

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"
)

var errNonLatin1 = errors.New("mutation: character outside Latin-1 range")

const (
	htmlSpecial = `<>"'&`
	urlSpecial  = `<>"'&()`
)

func all(rune) bool { return true }

func in(set string) func(rune) bool {
	return func(r rune) bool { return strings.ContainsRune(set, r) }
}

func escapeWith(s string, want func(rune) bool, enc func(*strings.Builder, rune)) string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for _, r := range s {
		if want(r) {
			enc(&b, r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func decimalEntity(b *strings.Builder, r rune) { fmt.Fprintf(b, "&#%d;", r) }
func hexEntity(b *strings.Builder, r rune)     { fmt.Fprintf(b, "&#x%x;", r) }

// HTMLDecimal encodes every character as a decimal numeric character reference.
func HTMLDecimal(s string) string { return escapeWith(s, all, decimalEntity) }

// HTMLHex encodes every character as a hex numeric character reference.
func HTMLHex(s string) string { return escapeWith(s, all, hexEntity) }

func htmlDecimalPartial(s string) string { return escapeWith(s, in(htmlSpecial), decimalEntity) }
func htmlHexPartial(s string) string     { return escapeWith(s, in(htmlSpecial), hexEntity) }

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}

const upperhex = "0123456789ABCDEF"

func percent(b *strings.Builder, c byte) {
	b.WriteByte('%')
	b.WriteByte(upperhex[c>>4])
	b.WriteByte(upperhex[c&15])
}

// URLEncode percent-encodes s the way a browser's encodeURIComponent does.
func URLEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		if unreserved(s[i]) {
			b.WriteByte(s[i])
			continue
		}
		percent(&b, s[i])
	}
	return b.String()
}

// DoubleURLEncode applies URLEncode twice.
func DoubleURLEncode(s string) string { return URLEncode(URLEncode(s)) }

func urlPartial(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(urlSpecial, s[i]) >= 0 {
			percent(&b, s[i])
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func unicodeUnit(b *strings.Builder, r rune) {
	if r > 0xFFFF {
		r1, r2 := utf16.EncodeRune(r)
		fmt.Fprintf(b, `\u%04x\u%04x`, r1, r2)
		return
	}
	fmt.Fprintf(b, `\u%04x`, r)
}

func hexUnit(b *strings.Builder, r rune) {
	if r > 0xFF {
		unicodeUnit(b, r)
		return
	}
	fmt.Fprintf(b, `\x%02x`, r)
}

func escapable(r rune) bool { return r > 127 || strings.ContainsRune(htmlSpecial, r) }

// UnicodeEscape rewrites non-ASCII and HTML-special characters as \uXXXX.
func UnicodeEscape(s string) string { return escapeWith(s, escapable, unicodeUnit) }

// HexEscape rewrites non-ASCII and HTML-special characters as \xXX,
// keeping \uXXXX for characters that do not fit in one byte.
func HexEscape(s string) string { return escapeWith(s, escapable, hexUnit) }

// Base64 encodes s with Latin-1 semantics; characters above U+00FF fail.
func Base64(s string) (string, error) {
	raw := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			return "", errNonLatin1
		}
		raw = append(raw, byte(r))
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
