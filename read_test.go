// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package reader

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReader_EmptyFile(t *testing.T) {
	var b bytes.Reader // size = 0
	_, err := NewReader(&b, 0)
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(err.Error()), "empty")
}

func TestCheckHeader(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		version string
		wantErr bool
	}{
		{"plain", "%PDF-1.4\nrest", "1.4", false},
		{"crlf", "%PDF-1.7\r\nrest", "1.7", false},
		{"adobe alias", "%!PS-Adobe-3.0 PDF-1.3\nrest", "1.3", false},
		{"bom prefix", "\xef\xbb\xbf%PDF-1.5\nrest", "1.5", false},
		{"trailing junk on line", "%PDF-1.4 x\nrest", "", true},
		{"not a pdf", "hello world\n", "", true},
		{"no version", "%PDF-\nrest", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := checkHeader(strings.NewReader(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.version, v)
		})
	}
}

func TestValidateEOFMarker(t *testing.T) {
	ok := []byte("%PDF-1.4\nstuff\n%%EOF\n")
	assert.NoError(t, validateEOFMarker(bytes.NewReader(ok), int64(len(ok))))

	bad := []byte("%PDF-1.4\nstuff with no terminator\n")
	err := validateEOFMarker(bytes.NewReader(bad), int64(len(bad)))
	assert.True(t, IsKind(err, ErrNoEOFMarker))

	// marker buried beyond the final kilobyte is not accepted
	far := append([]byte("%%EOF\n"), bytes.Repeat([]byte("x"), 2048)...)
	err = validateEOFMarker(bytes.NewReader(far), int64(len(far)))
	assert.True(t, IsKind(err, ErrNoEOFMarker))
}

func TestFindStartXref(t *testing.T) {
	data := []byte("junk\nstartxref\n42\n%%EOF\n")
	off, err := findStartXref(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, int64(42), off)

	// several markers from incremental updates: the last one wins
	data = []byte("startxref\n7\n%%EOF\nmore\nstartxref\n13\n%%EOF\n")
	off, err = findStartXref(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, int64(13), off)

	// relaxed whitespace after the keyword
	data = []byte("startxref \t\r\n9\n%%EOF\n")
	off, err = findStartXref(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, int64(9), off)

	_, err = findStartXref(strings.NewReader("no marker here\n"), 15)
	assert.True(t, IsKind(err, ErrBadStartxref))

	// offset beyond the file is rejected
	data = []byte("startxref\n99999\n%%EOF\n")
	_, err = findStartXref(bytes.NewReader(data), int64(len(data)))
	assert.True(t, IsKind(err, ErrBadStartxref))
}

func TestFindLastLine(t *testing.T) {
	buf := []byte("startxref\n123\nstartxref\n456\n")
	i := findLastLine(buf, "startxref")
	assert.Equal(t, 14, i)

	// keyword not followed by an EOL does not count
	buf = []byte("startxref123")
	assert.Equal(t, -1, findLastLine(buf, "startxref"))

	// NULs and tabs before the newline are tolerated
	buf = []byte("startxref\x00\x00\t\n77\n")
	assert.Equal(t, 0, findLastLine(buf, "startxref"))
}

func TestMinimalFile(t *testing.T) {
	b := minimalPDF()
	b.xrefAndTrailer("/Root 1 0 R")
	r := readerFor(t, b.bytes())

	assert.Equal(t, "1.4", r.Version())
	assert.Empty(t, r.Pages())
	assert.Equal(t, 0, r.NumPage())
	assert.Equal(t, "Catalog", r.Trailer().Key("Root").Key("Type").Name())
}

func TestVersionOverride(t *testing.T) {
	b := newPDFBuilder("%PDF-1.4")
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R /Version /1.6 >>")
	b.obj(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.xrefAndTrailer("/Root 1 0 R")
	r := readerFor(t, b.bytes())
	assert.Equal(t, "1.6", r.Version())
}

func TestTrailerMissingRoot(t *testing.T) {
	b := minimalPDF()
	b.xrefAndTrailer("")
	_, err := NewReader(bytes.NewReader(b.bytes()), int64(b.buf.Len()))
	assert.True(t, IsKind(err, ErrMissingTrailerKey))
}

func TestEncryptedRejected(t *testing.T) {
	b := minimalPDF()
	b.obj(3, "<< /Filter /Standard /V 1 >>")
	b.xrefAndTrailer("/Root 1 0 R /Encrypt 3 0 R")
	_, err := NewReader(bytes.NewReader(b.bytes()), int64(b.buf.Len()))
	assert.True(t, IsKind(err, ErrEncrypted))
}

func TestResolve_Basics(t *testing.T) {
	b := minimalPDF()
	b.obj(3, "42")
	b.obj(4, "(hello)")
	b.xrefAndTrailer("/Root 1 0 R")
	r := readerFor(t, b.bytes())

	v, err := r.Resolve(3, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int64())

	v, err = r.Resolve(4, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", v.RawString())

	_, err = r.Resolve(99, 0)
	assert.True(t, IsKind(err, ErrUnknownObject))
}

func TestResolve_Idempotent(t *testing.T) {
	b := minimalPDF()
	b.obj(3, "<< /A [1 2 3] >>")
	b.xrefAndTrailer("/Root 1 0 R")
	r := readerFor(t, b.bytes())

	v1, err := r.Resolve(3, 0)
	require.NoError(t, err)
	v2, err := r.Resolve(3, 0)
	require.NoError(t, err)

	// the memo cache hands back the same parsed instance
	d1, ok1 := v1.data.(dict)
	d2, ok2 := v2.data.(dict)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, fmt.Sprintf("%p", d1), fmt.Sprintf("%p", d2),
		"second resolve should return the cached dict")
}

func TestIncrementalUpdate_NewestWins(t *testing.T) {
	b := minimalPDF()
	b.obj(5, "1")
	prev := b.xrefAndTrailer("/Root 1 0 R")

	// appended update redefines object 5
	b.obj(5, "2")
	b.updateXref([]int{5}, fmt.Sprintf("/Root 1 0 R /Prev %d", prev))

	r := readerFor(t, b.bytes())
	v, err := r.Resolve(5, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Int64())
}

func TestIncrementalUpdate_TrailerMerge(t *testing.T) {
	b := minimalPDF()
	b.obj(5, "<< /Kind /Info >>")
	prev := b.xrefAndTrailer("/Root 1 0 R /Info 5 0 R")

	b.obj(6, "7")
	b.updateXref([]int{6}, fmt.Sprintf("/Root 1 0 R /Prev %d", prev))

	r := readerFor(t, b.bytes())
	// Info only appears in the older trailer; the merge keeps it visible
	assert.Equal(t, "Info", r.Trailer().Key("Info").Key("Kind").Name())
}

func TestXrefEntryLine_ByteExact(t *testing.T) {
	good := []byte("0000000017 00000 n \n")
	ent, ok := parseXrefEntryLine(good)
	require.True(t, ok)
	assert.Equal(t, int64(17), ent.offset)
	assert.Equal(t, byte('n'), ent.alloc)

	crlf := []byte("0000000017 00003 n\r\n")
	ent, ok = parseXrefEntryLine(crlf)
	require.True(t, ok)
	assert.Equal(t, int64(3), ent.gen)

	bad := [][]byte{
		[]byte("000000001x 00000 n \n"),   // non-digit offset
		[]byte("0000000017 00000 q \n"),   // bad alloc marker
		[]byte("0000000017 00000 n  \t"),  // EOL lacks CR/LF
		[]byte("0000000017-00000 n \r\n"), // bad separator
	}
	for _, line := range bad {
		_, ok := parseXrefEntryLine(line)
		assert.Falsef(t, ok, "line %q should be rejected", line)
	}
}

// xrefStreamPDF builds a PDF 1.5 file whose xref is a cross-reference
// stream, with objects 7 and 8 held compressed in object stream 4.
func xrefStreamPDF(t *testing.T) []byte {
	t.Helper()
	b := newPDFBuilder("%PDF-1.5")
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.obj(2, "<< /Type /Pages /Kids [] /Count 0 >>")

	// object stream: pair table "7 0 8 5\n", bodies at First+0 and First+5
	payload := "7 0 8 5\n  42   /foo"
	b.streamObj(4, " /Type /ObjStm /N 2 /First 10", []byte(payload))

	// xref stream record layout: type(1) field2(2) field3(1)
	w := func(typ, f2, f3 int) []byte {
		return []byte{byte(typ), byte(f2 >> 8), byte(f2), byte(f3)}
	}
	xrefOff := int64(b.buf.Len())
	var rec bytes.Buffer
	rec.Write(w(0, 0, 255))               // 0: free
	rec.Write(w(1, int(b.offsets[1]), 0)) // 1: catalog
	rec.Write(w(1, int(b.offsets[2]), 0)) // 2: pages
	rec.Write(w(1, int(xrefOff), 0))      // 3: this xref stream
	rec.Write(w(1, int(b.offsets[4]), 0)) // 4: object stream
	rec.Write(w(0, 0, 255))               // 5: free
	rec.Write(w(0, 0, 255))               // 6: free
	rec.Write(w(2, 4, 0))                 // 7: in stream 4, index 0
	rec.Write(w(2, 4, 1))                 // 8: in stream 4, index 1
	b.streamObj(3, " /Type /XRef /Size 9 /W [1 2 1] /Root 1 0 R", rec.Bytes())
	fmt.Fprintf(&b.buf, "startxref\n%d\n%%%%EOF\n", xrefOff)
	return b.bytes()
}

func TestXrefStream(t *testing.T) {
	r := readerFor(t, xrefStreamPDF(t))

	assert.Equal(t, "Catalog", r.Trailer().Key("Root").Key("Type").Name())

	v, err := r.Resolve(7, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int64())

	v, err = r.Resolve(8, 0)
	require.NoError(t, err)
	assert.Equal(t, "foo", v.Name())
}

func TestObjectStream_FreeEntry(t *testing.T) {
	r := readerFor(t, xrefStreamPDF(t))
	// object 6 is marked free in the xref stream
	_, err := r.Resolve(6, 0)
	assert.True(t, IsKind(err, ErrUnknownObject))
}

func TestDecodeInt(t *testing.T) {
	assert.Equal(t, 0, decodeInt(nil))
	assert.Equal(t, 1, decodeInt([]byte{1}))
	assert.Equal(t, 0x0102, decodeInt([]byte{1, 2}))
	assert.Equal(t, 0x010203, decodeInt([]byte{1, 2, 3}))
}

func TestEnsureLenAndSetIfEmpty(t *testing.T) {
	s := make([]xref, 2, 8)
	s = ensureLen(s, 5)
	assert.Len(t, s, 5)

	var table []xref
	setIfEmpty(&table, 3, xref{ptr: objptr{3, 0}, offset: 10})
	require.Len(t, table, 4)
	assert.Equal(t, int64(10), table[3].offset)

	// occupied slots are not overwritten: first writer (newest) wins
	setIfEmpty(&table, 3, xref{ptr: objptr{3, 0}, offset: 99})
	assert.Equal(t, int64(10), table[3].offset)
}

func TestMergeXrefTables(t *testing.T) {
	dest := []xref{{}, {ptr: objptr{1, 0}, offset: 5}}
	src := []xref{{}, {ptr: objptr{1, 0}, offset: 9}, {ptr: objptr{2, 0}, offset: 7}}
	out := mergeXrefTables(dest, src)
	require.Len(t, out, 3)
	assert.Equal(t, int64(9), out[1].offset, "stream side wins when both in use")
	assert.Equal(t, int64(7), out[2].offset)
}

func TestStreamLengthAndEndstream(t *testing.T) {
	b := minimalPDF()
	b.streamObj(3, "", []byte("hello world"))
	b.xrefAndTrailer("/Root 1 0 R")
	r := readerFor(t, b.bytes())

	v, err := r.Resolve(3, 0)
	require.NoError(t, err)
	data, err := v.DecodedData()
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestStream_MissingEndstream(t *testing.T) {
	b := minimalPDF()
	// declared Length overshoots the payload, so endstream cannot follow
	b.offsets[3] = int64(b.buf.Len())
	b.buf.WriteString("3 0 obj\n<< /Length 50 >>\nstream\nshort\nendstream\nendobj\n")
	b.xrefAndTrailer("/Root 1 0 R")
	r := readerFor(t, b.bytes())

	v, err := r.Resolve(3, 0)
	require.NoError(t, err)
	_, err = v.DecodedData()
	assert.True(t, IsKind(err, ErrMissingEndstream))
}

func TestStreamDataMemoized(t *testing.T) {
	b := minimalPDF()
	b.streamObj(3, "", []byte("payload"))
	b.xrefAndTrailer("/Root 1 0 R")
	r := readerFor(t, b.bytes())

	v, err := r.Resolve(3, 0)
	require.NoError(t, err)
	d1, err := v.DecodedData()
	require.NoError(t, err)
	d2, err := v.DecodedData()
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%p", d1), fmt.Sprintf("%p", d2),
		"decoded payload should be computed once")
}

func TestObjfmt(t *testing.T) {
	d := dict{name("B"): int64(2), name("A"): int64(1)}
	assert.Equal(t, "<</A 1 /B 2>>", objfmt(d))
	assert.Equal(t, "[1 /x]", objfmt(array{int64(1), name("x")}))
	assert.Equal(t, "/Name", objfmt(name("Name")))
	assert.Equal(t, "7 0 R", objfmt(objptr{7, 0}))
	assert.Equal(t, `"hi"`, objfmt("hi"))
}

func TestValueAccessors(t *testing.T) {
	assert.True(t, Value{}.IsNull())
	assert.Equal(t, Null, Value{}.Kind())
	assert.Equal(t, int64(0), Value{data: "x"}.Int64())
	assert.Equal(t, 1.5, Value{data: 1.5}.Float64())
	assert.Equal(t, 3.0, Value{data: int64(3)}.Float64())
	assert.True(t, Value{data: true}.Bool())
	assert.Equal(t, "n", Value{data: name("n")}.Name())
	assert.Equal(t, "s", Value{data: "s"}.RawString())

	d := Value{data: dict{name("K"): int64(1), name("N"): nil}}
	assert.Equal(t, []string{"K", "N"}, d.Keys())
	assert.True(t, d.HasKey("N"), "present null key is distinct from absent")
	assert.False(t, d.HasKey("Z"))
	assert.True(t, d.Key("N").IsNull())

	a := Value{data: array{int64(1), int64(2)}}
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, int64(2), a.Index(1).Int64())
	assert.True(t, a.Index(5).IsNull())
}

func TestIsLikelyObjectAtAndScan(t *testing.T) {
	b := minimalPDF()
	b.obj(3, "99")
	b.xrefAndTrailer("/Root 1 0 R")
	r := readerFor(t, b.bytes())

	assert.True(t, r.isLikelyObjectAt(r.xref[3].offset))
	found := r.scanForObjectAt(3, 0, r.xref[3].offset+40, 100)
	assert.Equal(t, r.xref[3].offset, found)
}
