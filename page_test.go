// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause
package reader

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cs(lo, hi string) byteRange { return byteRange{low: lo, high: hi} }

// Generated a cmap that hits all Decode branches.
func makeFullTestCMap() *cmap {
	return &cmap{
		space: [4][]byteRange{
			{ // 1-byte
				cs("\x01", "\x01"), // bfchar single-byte
				cs("\x05", "\x07"), // bfrange: 05–07
				cs("\x09", "\x09"), // bfchar surrogate pair (U+1F600)
				cs("\x7E", "\x7E"), // ASCII fallback
				cs("\xFF", "\xFF"), // invalid byte fallback
				cs("\x30", "\x30"), // '0' (overlap vs 2-byte 30 31)
			},
			{ // 2-byte
				cs("\x02\x03", "\x02\x03"), // bfchar 2-byte
				cs("\x30\x31", "\x30\x31"), // overlap with 1-byte 30 (shortest-match demo)
			},
			{ // 3-byte (non-overlapping)
				cs("\xAA\xBB\xCC", "\xAA\xBB\xCC"), // bfchar 漢
			},
			{ // 4-byte (non-overlapping)
				cs("\xFA\xFB\xFC\xFD", "\xFA\xFB\xFC\xFD"), // bfchar U+1F600
			},
		},
		bfchar: []bfchar{
			{orig: "\x01", repl: "\x00\x41"},                     // "A"
			{orig: "\x02\x03", repl: "\x00\xE9"},                 // "é"
			{orig: "\x09", repl: "\xD8\x3D\xDE\x00"},             // U+1F600
			{orig: "\xAA\xBB\xCC", repl: "\x6F\x22"},             // 漢 (UTF-16BE)
			{orig: "\xFA\xFB\xFC\xFD", repl: "\xD8\x3D\xDE\x00"}, // U+1F600
		},
		bfrange: []bfrange{
			{lo: "\x05", hi: "\x07", dst: Value{data: "\x00\x44"}}, // start at "D"
		},
	}
}

func TestFindNextCodespace(t *testing.T) {
	m := &cmap{
		space: [4][]byteRange{
			{cs("\x30", "\x30")},                         // 1-byte '0'
			{cs("\x30\x31", "\x30\x31")},                 // 2-byte "01"
			{cs("\xAA\xBB\xCC", "\xAA\xBB\xCC")},         // 3-byte
			{cs("\xFA\xFB\xFC\xFD", "\xFA\xFB\xFC\xFD")}, // 4-byte
		},
	}

	// 3-byte
	code, n := m.findNextCodespace("\xAA\xBB\xCC")
	assert.Equal(t, "\xAA\xBB\xCC", code)
	assert.Equal(t, 3, n)

	// 4-byte
	code, n = m.findNextCodespace("\xFA\xFB\xFC\xFD")
	assert.Equal(t, "\xFA\xFB\xFC\xFD", code)
	assert.Equal(t, 4, n)

	// no match → n == 0
	code, n = m.findNextCodespace("\x12")
	assert.Equal(t, "", code)
	assert.Equal(t, 0, n)
}

func TestResolveCodeMapping_bfchar(t *testing.T) {
	m := &cmap{
		bfchar: []bfchar{
			{orig: "\x01", repl: "\x00\x41"},     // "A"
			{orig: "\x02\x03", repl: "\x00\xE9"}, // "é"
		},
	}

	out, ok := m.resolveCodeMapping("\x01", 1)
	assert.True(t, ok)
	assert.Equal(t, "A", string(out))

	out, ok = m.resolveCodeMapping("\x02\x03", 2)
	assert.True(t, ok)
	assert.Equal(t, "é", string(out))

	_, ok = m.resolveCodeMapping("\xFF", 1)
	assert.False(t, ok)
}

func TestResolveCodeMapping_bfrangeString(t *testing.T) {
	m := &cmap{
		bfrange: []bfrange{
			{lo: "\x05", hi: "\x07", dst: Value{data: "\x00\x44"}}, // D..F
		},
	}
	// lo
	out, ok := m.resolveCodeMapping("\x05", 1)
	assert.True(t, ok)
	assert.Equal(t, "D", string(out))
	// middle
	out, ok = m.resolveCodeMapping("\x06", 1)
	assert.True(t, ok)
	assert.Equal(t, "E", string(out))
	// hi
	out, ok = m.resolveCodeMapping("\x07", 1)
	assert.True(t, ok)
	assert.Equal(t, "F", string(out))
}

func TestResolveBfrangeWithArray(t *testing.T) {
	// dst array contains strings
	brString := bfrange{
		lo: "\x05",
		hi: "\x07",
		dst: Value{
			data: array{
				"\x00\x44", // D
				"\x00\x45", // E
				"\x00\x46", // F
			},
		},
	}

	out := resolveBfrangeWithArray(brString, "\x05")
	assert.Equal(t, "D", string(out))

	out = resolveBfrangeWithArray(brString, "\x06")
	assert.Equal(t, "E", string(out))

	out = resolveBfrangeWithArray(brString, "\x07")
	assert.Equal(t, "F", string(out))

	// dst array contains non-string
	brNonString := bfrange{
		lo: "\x01",
		hi: "\x01",
		dst: Value{
			data: array{
				int64(123), // not a string
			},
		},
	}
	out = resolveBfrangeWithArray(brNonString, "\x01")
	assert.Nil(t, out)
}

func TestCmapDecode(t *testing.T) {
	m := makeFullTestCMap()

	type tc struct {
		name   string
		input  string
		expect string
		check  func(got string)
	}
	tests := []tc{
		// bfchar mappings
		{name: "bfchar-1byte", input: "\x01", expect: "A"},
		{name: "bfchar-2byte", input: "\x02\x03", expect: "é"},
		{name: "bfchar-3byte", input: "\xAA\xBB\xCC", expect: "漢"},
		{name: "bfchar-4byte", input: "\xFA\xFB\xFC\xFD", expect: string(rune(0x1F600))},
		// bfrange (string-dest in this cmap)
		{name: "bfrange-05", input: "\x05", expect: "D"},
		{name: "bfrange-06", input: "\x06", expect: "E"},
		{name: "bfrange-07", input: "\x07", expect: "F"},
		// fallbacks
		{name: "fallback-ascii", input: "\x7E", expect: "~"},
		{
			name:  "fallback-invalid-0xFF",
			input: "\xFF",
			check: func(got string) {
				// Exactly one valid rune (not RuneError)
				assert.Equal(t, 1, utf8.RuneCountInString(got))
				r := []rune(got)[0]
				assert.NotEqual(t, utf8.RuneError, r)
			},
		},
		// byte not in any codespace, then mapped ASCII '0'
		{name: "no-codespace-then-mapped", input: "\x20\x30", expect: " 0"},
		// incomplete multi-byte at end → preserved 1 rune
		{
			name:  "incomplete-2byte",
			input: "\x02",
			check: func(got string) {
				assert.NotEmpty(t, got)
				assert.Equal(t, 1, utf8.RuneCountInString(got))
			},
		},
		{
			name:  "mixed-sequence",
			input: "\x01\x7E\x05\xFF", // A, ~, D, preserved from 0xFF
			check: func(got string) {
				assert.True(t, len(got) >= 4)
				assert.Equal(t, "A~D", got[:3])
				rs := []rune(got)
				last := rs[len(rs)-1]
				assert.NotEqual(t, utf8.RuneError, last)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Decode(tt.input)
			if tt.check != nil {
				tt.check(got)
				return
			}
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestDecode_MissingCodespace(t *testing.T) {
	// Mapping exists for 0x01 -> "A", but 0x01 is NOT in codespace.
	// hence, decode should NOT return "A".
	m := &cmap{
		space: [4][]byteRange{
			{cs("\x7E", "\x7E")}, // only '~' allowed; 0x01 excluded
		},
		bfchar: []bfchar{
			{orig: "\x01", repl: "\x00\x41"}, // would map to "A"
		},
	}
	got := m.Decode("\x01")
	assert.False(t, got == "A", "mapping should fail if codespace is missing")
}

func TestNopEncoderDecode(t *testing.T) {
	e := &nopEncoder{}
	assert.Equal(t, "raw\x00bytes", e.Decode("raw\x00bytes"))
}

func TestByteEncoderDecode(t *testing.T) {
	var tbl [256]rune
	for i := 0; i < 256; i++ {
		tbl[i] = rune(i) // identity map
	}
	e := &byteEncoder{table: &tbl}
	assert.Equal(t, "Hi!", e.Decode("Hi!"))

	// unmapped slots preserve the raw byte
	tbl['H'] = noRune
	assert.Equal(t, "Hi!", e.Decode("Hi!"))
}

// pageTreePDF builds a two-level page tree:
//
//	root Pages [ inner Pages [ page A, page B ], page C ]
func pageTreePDF() *pdfBuilder {
	b := newPDFBuilder("%PDF-1.4")
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.obj(2, "<< /Type /Pages /Kids [3 0 R 6 0 R] /Count 3 /MediaBox [0 0 612 792] /Rotate 90 >>")
	b.obj(3, "<< /Type /Pages /Parent 2 0 R /Kids [4 0 R 5 0 R] /Count 2 /Resources << /Font << /FA 7 0 R >> >> >>")
	b.obj(4, "<< /Type /Page /Parent 3 0 R /Tag /A >>")
	b.obj(5, "<< /Type /Page /Parent 3 0 R /Tag /B /MediaBox [0 0 100 100] /CropBox [5 5 95 95] /Rotate 0 >>")
	b.obj(6, "<< /Type /Page /Parent 2 0 R /Tag /C >>")
	b.obj(7, helveticaFont)
	return b
}

func TestPages_DepthFirstOrder(t *testing.T) {
	b := pageTreePDF()
	b.xrefAndTrailer("/Root 1 0 R")
	r := readerFor(t, b.bytes())

	pages := r.Pages()
	require.Len(t, pages, 3)
	var tags []string
	for _, p := range pages {
		tags = append(tags, p.V.Key("Tag").Name())
	}
	assert.Equal(t, []string{"A", "B", "C"}, tags)
	assert.Equal(t, 3, r.NumPage())

	// Page(n) agrees with the flattening
	for i, p := range pages {
		assert.Equal(t, p.V.Key("Tag").Name(), r.Page(i+1).V.Key("Tag").Name())
	}
	assert.True(t, r.Page(4).V.IsNull())
	assert.True(t, r.Page(0).V.IsNull())
}

func TestPage_InheritedAttributes(t *testing.T) {
	b := pageTreePDF()
	b.xrefAndTrailer("/Root 1 0 R")
	r := readerFor(t, b.bytes())
	pages := r.Pages()
	require.Len(t, pages, 3)
	a, pb, c := pages[0], pages[1], pages[2]

	// MediaBox inherited from the root
	assert.Equal(t, 612.0, a.MediaBox().Index(2).Float64())
	// ... unless the leaf overrides it
	assert.Equal(t, 100.0, pb.MediaBox().Index(2).Float64())

	// CropBox defaults to MediaBox when absent all the way up
	assert.Equal(t, 612.0, a.CropBox().Index(2).Float64())
	assert.Equal(t, 95.0, pb.CropBox().Index(2).Float64())

	// Rotate inherits, with an explicit 0 overriding the parent
	assert.Equal(t, 90, a.Rotate())
	assert.Equal(t, 0, pb.Rotate())
	assert.Equal(t, 90, c.Rotate())

	// Resources inherited from the inner Pages node
	assert.Equal(t, []string{"FA"}, a.Fonts())
	assert.Empty(t, c.Fonts())
}

func TestPage_NullForMissing(t *testing.T) {
	var p Page
	assert.True(t, p.V.IsNull())
	assert.True(t, p.Resources().IsNull())
	text, err := p.GetPlainText(nil)
	assert.NoError(t, err)
	assert.Empty(t, text)
}

func TestGetPlainText(t *testing.T) {
	b := onePagePDF("BT /F1 12 Tf 0 0 Td (Hi) Tj ET BT /F1 12 Tf (there) Tj ET", helveticaFont)
	b.xrefAndTrailer("/Root 1 0 R")
	r := readerFor(t, b.bytes())

	text, err := r.Pages()[0].GetPlainText(nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi\nthere", text)

	rd, err := r.GetPlainText()
	require.NoError(t, err)
	buf := make([]byte, 64)
	n, _ := rd.Read(buf)
	assert.Equal(t, "Hi\nthere", string(buf[:n]))
}

func TestPageContent(t *testing.T) {
	b := onePagePDF("BT /F1 10 Tf 5 7 Td (txt) Tj ET 1 2 3 4 re f", helveticaFont)
	b.xrefAndTrailer("/Root 1 0 R")
	r := readerFor(t, b.bytes())

	content := r.Pages()[0].Content()
	require.Len(t, content.Text, 1)
	assert.Equal(t, "txt", content.Text[0].S)
	assert.Equal(t, "Helvetica", content.Text[0].Font)
	assert.Equal(t, 10.0, content.Text[0].FontSize)
	assert.Equal(t, 5.0, content.Text[0].X)
	assert.Equal(t, 7.0, content.Text[0].Y)
	require.Len(t, content.Rect, 1)
	assert.Equal(t, Rect{Point{1, 2}, Point{4, 6}}, content.Rect[0])
}

func TestGetStyledTexts(t *testing.T) {
	b := onePagePDF(
		"BT /F1 12 Tf 0 100 Td (Hel) Tj (lo) Tj 1 0 0 1 0 50 Tm (next) Tj ET",
		helveticaFont)
	b.xrefAndTrailer("/Root 1 0 R")
	r := readerFor(t, b.bytes())

	sentences, err := r.GetStyledTexts()
	require.NoError(t, err)
	require.Len(t, sentences, 2)
	assert.Equal(t, "Hello", sentences[0].S)
	assert.Equal(t, "next", sentences[1].S)
}

func TestGetTextByRowAndColumn(t *testing.T) {
	b := onePagePDF(
		"BT /F1 12 Tf 1 0 0 1 10 200 Tm (r1a) Tj 1 0 0 1 100 200 Tm (r1b) Tj "+
			"1 0 0 1 10 100 Tm (r2) Tj ET",
		helveticaFont)
	b.xrefAndTrailer("/Root 1 0 R")
	r := readerFor(t, b.bytes())
	p := r.Pages()[0]

	rows, err := p.GetTextByRow()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(200), rows[0].Position)
	require.Len(t, rows[0].Content, 2)
	assert.Equal(t, "r1a", rows[0].Content[0].S)
	assert.Equal(t, "r1b", rows[0].Content[1].S)
	assert.Equal(t, "r2", rows[1].Content[0].S)

	cols, err := p.GetTextByColumn()
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, int64(10), cols[0].Position)
	require.Len(t, cols[0].Content, 2)
}

func TestOutline(t *testing.T) {
	b := newPDFBuilder("%PDF-1.4")
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R /Outlines 3 0 R >>")
	b.obj(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.obj(3, "<< /Type /Outlines /First 4 0 R /Last 5 0 R >>")
	b.obj(4, "<< /Title (Chapter 1) /Next 5 0 R /First 6 0 R /Last 6 0 R >>")
	b.obj(5, "<< /Title (Chapter 2) >>")
	b.obj(6, "<< /Title (Section 1.1) >>")
	b.xrefAndTrailer("/Root 1 0 R")
	r := readerFor(t, b.bytes())

	outline := r.Outline()
	require.Len(t, outline.Child, 2)
	assert.Equal(t, "Chapter 1", outline.Child[0].Title)
	assert.Equal(t, "Chapter 2", outline.Child[1].Title)
	require.Len(t, outline.Child[0].Child, 1)
	assert.Equal(t, "Section 1.1", outline.Child[0].Child[0].Title)
}

func TestPages_CyclicTreeTerminates(t *testing.T) {
	b := newPDFBuilder("%PDF-1.4")
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	// the tree points back at itself
	b.obj(2, "<< /Type /Pages /Kids [3 0 R 2 0 R] /Count 1 >>")
	b.obj(3, "<< /Type /Page /Parent 2 0 R >>")
	b.xrefAndTrailer("/Root 1 0 R")
	r := readerFor(t, b.bytes())

	pages := r.Pages()
	assert.Len(t, pages, 1)
}
