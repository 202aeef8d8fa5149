// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Package reader implements reading of PDF files.
//
// # Overview
//
// PDF is Adobe's Portable Document Format, ubiquitous on the internet.
// A PDF document is a complex data format built on a fairly simple structure.
// This package exposes the simple structure along with wrappers to extract
// pages, fonts, metadata, and text. If more complex information is needed,
// it is possible to extract that information by interpreting the structure
// exposed by this package.
//
// Specifically, a PDF is a data structure built from Values, each of which has
// one of the following Kinds:
//
//	Null, for the null object.
//	Integer, for an integer.
//	Real, for a floating-point number.
//	Bool, for a boolean value.
//	Name, for a name constant (as in /Helvetica).
//	String, for a string constant.
//	Dict, for a dictionary of name-value pairs.
//	Array, for an array of values.
//	Stream, for an opaque data stream and associated header dictionary.
//
// The accessors on Value—Int64, Float64, Bool, Name, and so on—return
// a view of the data as the given type. When there is no appropriate view,
// the accessor returns a zero result. Returning zero values this way,
// especially from the Dict and Array accessors, which themselves return
// Values, makes it possible to traverse a PDF quickly without writing any
// error checking. Callers that need failures surfaced use Resolve and the
// typed *Error values it reports.
//
// The basic structure of the PDF file is exposed as the graph of Values.
// Indirect objects are parsed on first touch and memoized for the lifetime
// of the Reader, so resolving the same reference twice returns the same
// parsed object.
package reader

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/sassoftware/viya-pdf-reader/logger"
)

// DebugOn enables a few extra error-level messages through the logger package
// (invalid cross-reference stream entry types, CMap details). It does not
// write to stdout.
var DebugOn = false

// tailChunk is how much of the file end is scanned for %%EOF and startxref.
const tailChunk = 1024

// A Reader is a single PDF file open for reading.
type Reader struct {
	f          io.ReaderAt
	end        int64
	xref       []xref
	trailer    dict
	trailerptr objptr
	hdrVersion string
	cache      *objcache
	closer     io.Closer // set when the Reader opened the file itself
}

type xref struct {
	ptr      objptr
	inStream bool
	stream   objptr
	offset   int64
}

// Open opens the named PDF file for reading. The underlying file is closed
// by Close; Readers built with NewReader never close their source.
func Open(file string) (*Reader, error) {
	logger.Debug("Open file", true)
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	logger.Debug(fmt.Sprintf("document: file:%s -- opened (size=%d)", file, fi.Size()), true)
	r, err := NewReader(f, fi.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Close releases the byte source if the Reader opened it itself.
// Readers over caller-supplied sources are unaffected.
func (r *Reader) Close() error {
	if r.closer != nil {
		err := r.closer.Close()
		r.closer = nil
		return err
	}
	return nil
}

// NewReader opens a document for reading, using the data in f with the given total size.
func NewReader(f io.ReaderAt, size int64) (r *Reader, err error) {
	defer recoverError(&err)

	logger.Debug("Checking Header", true)
	version, err := checkHeader(f)
	if err != nil {
		return nil, err
	}

	logger.Debug("Checking End of file Marker", true)
	if err := validateEOFMarker(f, size); err != nil {
		return nil, err
	}

	logger.Debug("Checking Startxref", true)
	startxref, err := findStartXref(f, size)
	if err != nil {
		return nil, err
	}

	logger.Debug("Checking xref table + trailer", true)
	r = &Reader{f: f, end: size, hdrVersion: version, cache: newObjcache()}
	b := newBuffer(io.NewSectionReader(r.f, startxref, r.end-startxref), startxref)
	table, trailerptr, trailer, err := readXref(r, b)
	if err != nil {
		return nil, err
	}
	r.xref = table
	r.trailer = trailer
	r.trailerptr = trailerptr

	if enc, ok := trailer[name("Encrypt")]; ok && enc != nil {
		logger.Error("document is encrypted")
		return nil, pdfErrorf(ErrEncrypted, "document uses encryption")
	}
	if _, ok := trailer[name("Root")]; !ok {
		logger.Error("trailer missing Root")
		return nil, pdfErrorf(ErrMissingTrailerKey, "Root")
	}

	return r, nil
}

// headerRE matches the two accepted first-line forms.
var headerRE = regexp.MustCompile(`^%PDF-(\d+\.\d+)$|^%!PS-Adobe-\d+\.\d+ PDF-(\d+\.\d+)$`)

// checkHeader validates the PDF header at the beginning of the file and
// returns the header version, e.g. "1.4". A UTF-8 BOM or stray bytes before
// the %PDF- token are tolerated.
func checkHeader(f io.ReaderAt) (string, error) {
	buf := make([]byte, 64)
	n, err := f.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		logger.Error(fmt.Sprintf("Failed to read initial bytes for header check: %v", err))
		return "", err
	}
	if n == 0 {
		logger.Error("not a PDF file: empty")
		return "", pdfErrorf(ErrUnexpectedToken, "not a PDF file: empty")
	}
	buf = buf[:n]
	p := bytes.Index(buf, []byte("%PDF-"))
	if ps := bytes.Index(buf, []byte("%!PS-Adobe-")); ps >= 0 && (p < 0 || ps < p) {
		p = ps
	}
	if p < 0 {
		logger.Error("not a PDF file: missing %PDF- header")
		return "", pdfErrorf(ErrUnexpectedToken, "not a PDF file: missing %%PDF- header")
	}

	lineBuf := buf[p:]
	lineEnd := bytes.IndexAny(lineBuf, "\r\n")
	if lineEnd < 0 {
		lineEnd = len(lineBuf)
	}
	line := bytes.TrimRight(lineBuf[:lineEnd], " \t\x00")

	m := headerRE.FindSubmatch(line)
	if m == nil {
		logger.Error("not a PDF file: invalid header line")
		return "", pdfErrorf(ErrUnexpectedToken, "not a PDF file: invalid header %q", line)
	}
	version := string(m[1])
	if version == "" {
		version = string(m[2])
	}
	logger.Debug(fmt.Sprintf("header: PDF-%s", version), true)
	return version, nil
}

// validateEOFMarker checks the final kilobyte of the file for the "%%EOF"
// marker. Ensures the PDF file is properly terminated as per the specification.
func validateEOFMarker(f io.ReaderAt, size int64) error {
	logger.Debug("checking for EOF")
	chunk := int64(tailChunk)
	if chunk > size {
		chunk = size
	}
	buf := make([]byte, chunk)
	n, err := f.ReadAt(buf, size-chunk)
	if err != nil && err != io.EOF {
		return err
	}
	if bytes.LastIndex(buf[:n], []byte("%%EOF")) < 0 {
		logger.Error("not a PDF file: missing %%%%EOF")
		return pdfErrorf(ErrNoEOFMarker, "missing %%%%EOF in final %d bytes", chunk)
	}
	return nil
}

// findStartXref locates and parses the "startxref" pointer near the end of
// the file. Multiple markers may exist from incremental updates; only the
// final one is authoritative.
func findStartXref(f io.ReaderAt, size int64) (int64, error) {
	chunk := int64(tailChunk)
	if chunk > size {
		chunk = size
	}
	buf := make([]byte, chunk)
	if _, err := f.ReadAt(buf, size-chunk); err != nil && err != io.EOF {
		return 0, err
	}
	i := findLastLine(buf, "startxref")
	if i < 0 {
		logger.Error("malformed PDF file: missing final startxref")
		return 0, pdfErrorf(ErrBadStartxref, "missing final startxref")
	}
	pos := size - chunk + int64(i)
	b := newBuffer(io.NewSectionReader(f, pos, size-pos), pos)

	tok := b.readToken()
	if tok != keyword("startxref") {
		logger.Error(fmt.Sprintf("malformed PDF file: missing startxref: %v", tok))
		return 0, pdfErrorf(ErrBadStartxref, "missing startxref keyword")
	}
	startxref, ok := b.readToken().(int64)
	if !ok || startxref < 0 || startxref >= size {
		logger.Error("malformed PDF file: startxref not followed by valid integer")
		return 0, pdfErrorf(ErrBadStartxref, "startxref not followed by a valid offset")
	}
	logger.Debug(fmt.Sprintf("xref: findStartXref -- startxref=%d", startxref), true)
	return startxref, nil
}

// Trailer returns the file's Trailer value. Trailers from incremental
// updates are merged with the newest value winning per key.
func (r *Reader) Trailer() Value {
	return Value{r, r.trailerptr, r.trailer}
}

// Version returns the document's PDF version: the header version, overridden
// by the catalog's Version entry when that one is greater.
func (r *Reader) Version() string {
	hv := r.hdrVersion
	cv := r.Trailer().Key("Root").Key("Version").Name()
	if cv != "" && versionLess(hv, cv) {
		return cv
	}
	return hv
}

func versionLess(a, b string) bool {
	var amaj, amin, bmaj, bmin int
	if _, err := fmt.Sscanf(a, "%d.%d", &amaj, &amin); err != nil {
		return false
	}
	if _, err := fmt.Sscanf(b, "%d.%d", &bmaj, &bmin); err != nil {
		return false
	}
	return amaj < bmaj || (amaj == bmaj && amin < bmin)
}

// findLastLine searches backwards in buf for the last occurrence of the
// keyword s (e.g. "startxref") that is correctly terminated.
//
// In the PDF specification (ISO 32000), the keyword "startxref" must be
// followed by an end-of-line (EOL) marker, then an integer offset, then
// another EOL and finally %%EOF. Many real-world PDFs are not strictly
// spec-compliant: producers insert trailing spaces, tabs, nulls, or other
// whitespace characters after "startxref" before the required newline.
// After finding the keyword, all PDF whitespace is skipped; the match is
// accepted only if the last of the skipped characters is CR or LF.
func findLastLine(buf []byte, s string) int {
	bs := []byte(s)
	var indices []int

	// Collect all occurrences in a single pass
	for i := 0; ; {
		j := bytes.Index(buf[i:], bs)
		if j < 0 {
			break
		}
		indices = append(indices, i+j)
		i += j + 1 // move forward
	}

	// Walk backwards through matches
	for k := len(indices) - 1; k >= 0; k-- {
		i := indices[k]
		j := skipWhitespace(buf, i+len(bs))
		if endsWithEOL(buf, i+len(bs), j) {
			return i
		}
	}
	return -1
}

var wsBits [4]uint64 // 256 bits = 4 * 64

func init() {
	for _, b := range []byte{0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20} {
		wsBits[b>>6] |= 1 << (b & 63)
	}
}

// isWhitespace reports whether b is one of the six whitespace characters
// defined by ISO 32000-1 §7.2.2 for PDF syntax: 00, 09, 0A, 0C, 0D, 20.
// Note: This is PDF-specific whitespace, not Unicode or Go's definition.
func isWhitespace(b byte) bool {
	return (wsBits[b>>6] & (1 << (b & 63))) != 0
}

// skipWhitespace advances j past all whitespace.
func skipWhitespace(buf []byte, j int) int {
	for j < len(buf) && isWhitespace(buf[j]) {
		j++
	}
	return j
}

// endsWithEOL checks if the last skipped char is CR or LF.
func endsWithEOL(buf []byte, start, end int) bool {
	if end > start {
		last := buf[end-1]
		return last == '\n' || last == '\r'
	}
	return false
}

// isLikelyObjectAt performs a lightweight check whether an object header or dict begins at off.
func (r *Reader) isLikelyObjectAt(off int64) bool {
	if off < 0 || off >= r.end {
		return false
	}
	buf := make([]byte, 64)
	n, err := r.f.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return false
	}
	if n == 0 {
		return false
	}
	sTrim := strings.TrimLeft(string(buf[:n]), " \t\r\n")
	if objHeaderRE.MatchString(sTrim) {
		return true
	}
	return strings.HasPrefix(sTrim, "<<") || strings.HasPrefix(sTrim, "%PDF-")
}

var objHeaderRE = regexp.MustCompile(`^\d+\s+\d+\s+obj\b`)

// scanForObjectAt searches a ±window around approx for "<id> <gen> obj" and returns found offset or -1.
func (r *Reader) scanForObjectAt(id uint32, gen uint16, approx, window int64) int64 {
	start := approx - window
	if start < 0 {
		start = 0
	}
	end := approx + window
	if end > r.end {
		end = r.end
	}
	if end <= start {
		return -1
	}
	buf := make([]byte, end-start)
	n, err := r.f.ReadAt(buf, start)
	if err != nil && err != io.EOF {
		return -1
	}
	buf = buf[:n]
	re := regexp.MustCompile(fmt.Sprintf(`\b%d\s+%d\s+obj\b`, id, gen))
	loc := re.FindIndex(buf)
	if loc == nil {
		return -1
	}
	return start + int64(loc[0])
}
