// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Text-string handling and the single-byte base encodings.

package reader

import (
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const noRune = unicode.ReplacementChar

// winAnsiEncoding and macRomanEncoding are built from the x/text charmaps:
// WinAnsiEncoding is Windows code page 1252 and MacRomanEncoding is Mac OS
// Roman, byte for byte.
var (
	winAnsiEncoding  [256]rune
	macRomanEncoding [256]rune
)

func init() {
	for i := 0; i < 256; i++ {
		winAnsiEncoding[i] = charmap.Windows1252.DecodeByte(byte(i))
		macRomanEncoding[i] = charmap.Macintosh.DecodeByte(byte(i))
	}
	// cp1252 leaves five slots unmapped; mark them undefined
	for _, i := range []int{0x81, 0x8d, 0x8f, 0x90, 0x9d} {
		winAnsiEncoding[i] = noRune
	}
}

// standardEncoding is Adobe StandardEncoding per ISO 32000-1 Annex D.
var standardEncoding = [256]rune{}

func init() {
	for i := range standardEncoding {
		standardEncoding[i] = noRune
	}
	for i := 0x20; i <= 0x7e; i++ {
		standardEncoding[i] = rune(i)
	}
	standardEncoding[0x27] = '’' // quoteright
	standardEncoding[0x60] = '‘' // quoteleft
	for b, r := range map[byte]rune{
		0xa1: '¡', 0xa2: '¢', 0xa3: '£', 0xa4: '⁄',
		0xa5: '¥', 0xa6: 'ƒ', 0xa7: '§', 0xa8: '¤',
		0xa9: '\'', 0xaa: '“', 0xab: '«', 0xac: '‹',
		0xad: '›', 0xae: 'ﬁ', 0xaf: 'ﬂ',
		0xb1: '–', 0xb2: '†', 0xb3: '‡', 0xb4: '·',
		0xb6: '¶', 0xb7: '•', 0xb8: '‚', 0xb9: '„',
		0xba: '”', 0xbb: '»', 0xbc: '…', 0xbd: '‰',
		0xbf: '¿',
		0xc1: '`', 0xc2: '´', 0xc3: 'ˆ', 0xc4: '˜',
		0xc5: '¯', 0xc6: '˘', 0xc7: '˙', 0xc8: '¨',
		0xca: '˚', 0xcb: '¸', 0xcd: '˝', 0xce: '˛',
		0xcf: 'ˇ', 0xd0: '—',
		0xe1: 'Æ', 0xe3: 'ª', 0xe8: 'Ł', 0xe9: 'Ø',
		0xea: 'Œ', 0xeb: 'º',
		0xf1: 'æ', 0xf5: 'ı', 0xf8: 'ł', 0xf9: 'ø',
		0xfa: 'œ', 0xfb: 'ß',
	} {
		standardEncoding[b] = r
	}
}

// pdfDocEncoding is PDFDocEncoding per ISO 32000-1 Annex D: the encoding
// used for text strings that do not start with the UTF-16 byte-order mark.
var pdfDocEncoding = [256]rune{}

func init() {
	for i := range pdfDocEncoding {
		pdfDocEncoding[i] = noRune
	}
	pdfDocEncoding['\t'] = '\t'
	pdfDocEncoding['\n'] = '\n'
	pdfDocEncoding['\r'] = '\r'
	for b, r := range map[byte]rune{
		0x18: '˘', 0x19: 'ˇ', 0x1a: 'ˆ', 0x1b: '˙',
		0x1c: '˝', 0x1d: '˛', 0x1e: '˚', 0x1f: '˜',
	} {
		pdfDocEncoding[b] = r
	}
	for i := 0x20; i <= 0x7e; i++ {
		pdfDocEncoding[i] = rune(i)
	}
	for b, r := range map[byte]rune{
		0x80: '•', 0x81: '†', 0x82: '‡', 0x83: '…',
		0x84: '—', 0x85: '–', 0x86: 'ƒ', 0x87: '⁄',
		0x88: '‹', 0x89: '›', 0x8a: '−', 0x8b: '‰',
		0x8c: '„', 0x8d: '“', 0x8e: '”', 0x8f: '‘',
		0x90: '’', 0x91: '‚', 0x92: '™', 0x93: 'ﬁ',
		0x94: 'ﬂ', 0x95: 'Ł', 0x96: 'Œ', 0x97: 'Š',
		0x98: 'Ÿ', 0x99: 'Ž', 0x9a: 'ı', 0x9b: 'ł',
		0x9c: 'œ', 0x9d: 'š', 0x9e: 'ž', 0xa0: '€',
	} {
		pdfDocEncoding[b] = r
	}
	for i := 0xa1; i <= 0xff; i++ {
		if i == 0xad {
			continue
		}
		pdfDocEncoding[i] = rune(i)
	}
}

// isPDFDocEncoded reports whether every byte of s has a PDFDocEncoding
// mapping and s does not begin with the UTF-16 byte-order mark.
func isPDFDocEncoded(s string) bool {
	if isUTF16(s) {
		return false
	}
	for i := 0; i < len(s); i++ {
		if pdfDocEncoding[s[i]] == noRune {
			return false
		}
	}
	return true
}

func pdfDocDecode(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 || pdfDocEncoding[s[i]] != rune(s[i]) {
			goto Decode
		}
	}
	return s

Decode:
	r := make([]rune, 0, len(s))
	for i := 0; i < len(s); i++ {
		r = append(r, pdfDocEncoding[s[i]])
	}
	return string(r)
}

// isUTF16 reports whether s begins with the big-endian byte-order mark
// FE FF and has an even byte count.
func isUTF16(s string) bool {
	return len(s) >= 2 && s[0] == 0xfe && s[1] == 0xff && len(s)%2 == 0
}

// utf16Decode decodes big-endian UTF-16 (no byte-order mark) into UTF-8.
func utf16Decode(s string) string {
	u := make([]uint16, 0, len(s)/2)
	for i := 0; i+1 < len(s); i += 2 {
		u = append(u, uint16(s[i])<<8|uint16(s[i+1]))
	}
	return string(utf16.Decode(u))
}

// DecodeUTF8OrPreserve decodes s as UTF-8 where valid and preserves raw
// bytes as individual runes where not, so no input byte is silently lost.
func DecodeUTF8OrPreserve(s string) []rune {
	r := make([]rune, 0, len(s))
	for i := 0; i < len(s); {
		ch, size := utf8.DecodeRuneInString(s[i:])
		if ch == utf8.RuneError && size == 1 {
			r = append(r, rune(s[i]))
			i++
			continue
		}
		r = append(r, ch)
		i += size
	}
	return r
}

// IsSameSentence reports whether current plausibly continues the sentence
// ended by last: same font, nearly equal size, and a nearly equal baseline.
func IsSameSentence(last, current Text) bool {
	if last.S == "" {
		return false
	}
	if last.Font != current.Font {
		return false
	}
	if diff := last.FontSize - current.FontSize; diff < -0.1 || diff > 0.1 {
		return false
	}
	if diff := last.Y - current.Y; diff < -3 || diff > 3 {
		return false
	}
	return true
}

// trimFontSubsetTag strips the XXXXXX+ prefix of subsetted font names.
func trimFontSubsetTag(f string) string {
	if i := strings.Index(f, "+"); i >= 0 {
		return f[i+1:]
	}
	return f
}
