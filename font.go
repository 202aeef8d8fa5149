// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package reader

import (
	"fmt"

	"github.com/sassoftware/viya-pdf-reader/logger"
)

// A Font represents a font in a PDF file.
// The methods interpret a Font dictionary stored in V.
type Font struct {
	V   Value
	enc TextEncoding
}

// BaseFont returns the font's name (BaseFont property).
func (f Font) BaseFont() string {
	return f.V.Key("BaseFont").Name()
}

// Subtype returns the font's subtype: Type1, TrueType, Type3, Type0, and so on.
func (f Font) Subtype() string {
	return f.V.Key("Subtype").Name()
}

// FirstChar returns the code point of the first character in the font.
func (f Font) FirstChar() int {
	return int(f.V.Key("FirstChar").Int64())
}

// LastChar returns the code point of the last character in the font.
func (f Font) LastChar() int {
	return int(f.V.Key("LastChar").Int64())
}

// Widths returns the widths of the glyphs in the font.
// In a well-formed PDF, len(f.Widths()) == f.LastChar()+1 - f.FirstChar().
func (f Font) Widths() []float64 {
	x := f.V.Key("Widths")
	var out []float64
	for i := 0; i < x.Len(); i++ {
		out = append(out, x.Index(i).Float64())
	}
	return out
}

// MissingWidth returns the width used for codes outside
// [FirstChar..LastChar], from the FontDescriptor. Default 0.
func (f Font) MissingWidth() float64 {
	return f.V.Key("FontDescriptor").Key("MissingWidth").Float64()
}

// Width returns the width of the given code point in glyph space
// (1000 units per em for non-Type3 fonts). Document-supplied widths win;
// for the standard fourteen faces the bundled AFM widths fill the gaps.
func (f Font) Width(code int) float64 {
	first := f.FirstChar()
	last := f.LastChar()
	w := f.V.Key("Widths")
	if w.Len() > 0 && code >= first && code <= last {
		if code-first < w.Len() {
			return w.Index(code - first).Float64()
		}
		return f.MissingWidth()
	}
	if m := builtinMetrics(f.BaseFont()); m != nil {
		if g := f.glyphName(code); g != "" {
			if bw, ok := m.width(g); ok {
				return bw
			}
		}
		if m.fixedWidth != 0 {
			return m.fixedWidth
		}
		if m.missingWidth != 0 {
			return m.missingWidth
		}
	}
	return f.MissingWidth()
}

// SpaceWidth returns the width of the space glyph, falling back to the
// average of the document widths when the font has no code 32.
func (f Font) SpaceWidth() float64 {
	if w := f.Width(' '); w != 0 {
		return w
	}
	if w := f.AvgWidth(); w != 0 {
		return w
	}
	return 500
}

// AvgWidth returns a typical glyph width: the descriptor's AvgWidth when
// present, otherwise the mean of the document widths.
func (f Font) AvgWidth() float64 {
	if w := f.V.Key("FontDescriptor").Key("AvgWidth").Float64(); w != 0 {
		return w
	}
	ws := f.Widths()
	if len(ws) == 0 {
		return 0
	}
	sum := 0.0
	n := 0
	for _, w := range ws {
		if w > 0 {
			sum += w
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// CapHeight returns the capital letter height in glyph space.
func (f Font) CapHeight() float64 {
	if h := f.V.Key("FontDescriptor").Key("CapHeight").Float64(); h != 0 {
		return h
	}
	if m := builtinMetrics(f.BaseFont()); m != nil {
		return m.capHeight
	}
	return 700
}

// GlyphScale returns the multipliers taking glyph-space x and y extents to
// text space: 1/1000 for Type1 and TrueType style fonts, the FontMatrix
// scale for Type3.
func (f Font) GlyphScale() (sx, sy float64) {
	if f.Subtype() == "Type3" {
		fm := f.V.Key("FontMatrix")
		if fm.Len() == 6 {
			return fm.Index(0).Float64(), fm.Index(3).Float64()
		}
	}
	return 1.0 / 1000, 1.0 / 1000
}

// glyphName maps a character code to its glyph name through the font's
// encoding (base encoding patched by Differences). Empty when unknown.
func (f Font) glyphName(code int) string {
	if code < 0 || code > 255 {
		return ""
	}
	enc := f.V.Key("Encoding")
	if enc.Kind() == Dict {
		if g, ok := differencesName(enc.Key("Differences"), code); ok {
			return g
		}
	}
	table := f.baseEncodingTable()
	if table == nil {
		return ""
	}
	r := table[code]
	if r == noRune {
		return ""
	}
	return runeGlyphName(r)
}

func (f Font) baseEncodingTable() *[256]rune {
	enc := f.V.Key("Encoding")
	base := ""
	switch enc.Kind() {
	case Name:
		base = enc.Name()
	case Dict:
		base = enc.Key("BaseEncoding").Name()
	}
	switch base {
	case "WinAnsiEncoding":
		return &winAnsiEncoding
	case "MacRomanEncoding":
		return &macRomanEncoding
	case "PDFDocEncoding":
		return &pdfDocEncoding
	case "StandardEncoding", "":
		return &standardEncoding
	}
	return nil
}

// differencesName scans a Differences array for the glyph assigned to code.
// The array is a flat sequence of alternating integers and name runs: an
// integer sets the cursor, each subsequent name assigns and increments it.
func differencesName(diff Value, code int) (string, bool) {
	cursor := -1
	for i := 0; i < diff.Len(); i++ {
		x := diff.Index(i)
		switch x.Kind() {
		case Integer:
			cursor = int(x.Int64())
		case Name:
			if cursor == code {
				return x.Name(), true
			}
			cursor++
		}
	}
	return "", false
}

var runeToGlyph map[rune]string

func init() {
	runeToGlyph = make(map[rune]string, len(nameToRune))
	for g, r := range nameToRune {
		if _, ok := runeToGlyph[r]; !ok || len(g) < len(runeToGlyph[r]) {
			runeToGlyph[r] = g
		}
	}
	// prefer the unambiguous apostrophe names
	runeToGlyph['\''] = "quotesingle"
	runeToGlyph['’'] = "quoteright"
	runeToGlyph['‘'] = "quoteleft"
}

func runeGlyphName(r rune) string {
	return runeToGlyph[r]
}

// A TextEncoding represents a mapping between
// font code points and UTF-8 text.
type TextEncoding interface {
	// Decode returns the UTF-8 text corresponding to
	// the sequence of code points in raw.
	Decode(raw string) (text string)
}

type nopEncoder struct {
}

func (e *nopEncoder) Decode(raw string) (text string) {
	return raw
}

type byteEncoder struct {
	table *[256]rune
}

func (e *byteEncoder) Decode(raw string) (text string) {
	r := make([]rune, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		ch := e.table[raw[i]]
		if ch == noRune {
			ch = rune(raw[i])
		}
		r = append(r, ch)
	}
	return string(r)
}

// utf16Encoder decodes two-byte big-endian codes, the best available
// reading for Identity-H content without a ToUnicode map.
type utf16Encoder struct{}

func (e *utf16Encoder) Decode(raw string) (text string) {
	return utf16Decode(raw)
}

// Encoder returns the encoding between font code point sequences and UTF-8.
func (f *Font) Encoder() TextEncoding {
	if f.enc == nil { // caching the Encoder so we don't continually parse charmap
		f.enc = f.getEncoder()
	}
	return f.enc
}

func (f *Font) getEncoder() TextEncoding {
	// A ToUnicode CMap, when present, is authoritative.
	toUnicode := f.V.Key("ToUnicode")
	if toUnicode.Kind() == Stream {
		logger.Debug("getEncoder: found ToUnicode stream", true)
		if m := readCmap(toUnicode); m != nil {
			return m
		}
	}

	enc := f.V.Key("Encoding")
	switch enc.Kind() {
	case Name:
		logger.Debug(fmt.Sprintf("getEncoder: named encoding %q", enc.Name()), true)
		switch enc.Name() {
		case "WinAnsiEncoding":
			return &byteEncoder{&winAnsiEncoding}
		case "MacRomanEncoding":
			return &byteEncoder{&macRomanEncoding}
		case "PDFDocEncoding":
			return &byteEncoder{&pdfDocEncoding}
		case "StandardEncoding":
			return &byteEncoder{&standardEncoding}
		case "Identity-H", "Identity-V":
			return &utf16Encoder{}
		default:
			logger.Debug(fmt.Sprintf("unknown encoding %s", enc.Name()))
			return &nopEncoder{}
		}
	case Dict:
		return f.differencesEncoder(enc)
	case Null:
		if toUnicode.Kind() == Stream {
			return &nopEncoder{}
		}
		return &byteEncoder{&standardEncoding}
	default:
		logger.Debug(fmt.Sprintf("unexpected encoding %s", enc.String()))
		return &nopEncoder{}
	}
}

// differencesEncoder builds a single patched table from the dictionary's
// BaseEncoding and Differences array, resolving glyph names through the
// glyph list.
func (f *Font) differencesEncoder(enc Value) TextEncoding {
	base := f.baseEncodingTable()
	if base == nil {
		base = &standardEncoding
	}
	table := *base
	cursor := -1
	diff := enc.Key("Differences")
	for i := 0; i < diff.Len(); i++ {
		x := diff.Index(i)
		switch x.Kind() {
		case Integer:
			cursor = int(x.Int64())
		case Name:
			if cursor >= 0 && cursor < 256 {
				if r, ok := glyphToRune(x.Name()); ok {
					table[cursor] = r
				}
			}
			cursor++
		}
	}
	return &byteEncoder{&table}
}
