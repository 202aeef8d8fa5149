// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Cross-reference discovery: classic tables, xref streams, hybrid files,
// and incremental-update chains.

package reader

import (
	"fmt"
	"io"

	"github.com/sassoftware/viya-pdf-reader/logger"
)

func readXref(r *Reader, b *buffer) ([]xref, objptr, dict, error) {
	tok := b.readToken()
	if tok == keyword("xref") {
		logger.Debug("Found Xref Table", true)
		return readXrefTable(r, b)
	}
	if _, ok := tok.(int64); ok {
		b.unreadToken(tok)
		logger.Debug("Found Xref Stream", true)
		return readXrefStream(r, b)
	}
	logger.Error(fmt.Sprintf("malformed PDF: neither cross-reference table nor stream found: %v", tok))
	return nil, objptr{}, nil, pdfErrorf(ErrMalformedXref, "neither cross-reference table nor stream at startxref")
}

// mergeTrailer folds older trailer keys beneath newer ones; keys already
// present in newest stay untouched (newest wins).
func mergeTrailer(newest, older dict) dict {
	if newest == nil {
		return older
	}
	for k, v := range older {
		if _, ok := newest[k]; !ok {
			newest[k] = v
		}
	}
	return newest
}

func readXrefStream(r *Reader, b *buffer) ([]xref, objptr, dict, error) {
	logger.Debug("processing Xref Stream")
	strmptr, strm, err := parseXrefStreamObject(b)
	if err != nil {
		return nil, objptr{}, nil, err
	}
	size, err := xrefSize(strm)
	if err != nil {
		return nil, objptr{}, nil, err
	}
	table := make([]xref, size)
	table, err = readXrefStreamData(r, strm, table, size)
	if err != nil {
		return nil, objptr{}, nil, err
	}
	trailer := strm.hdr
	// Follow and merge any /Prev streams; newer entries and keys win.
	table, trailer, err = mergePrevXrefStreams(r, strm, table, trailer, size)
	if err != nil {
		return nil, objptr{}, nil, err
	}

	return table, strmptr, trailer, nil
}

// parseXrefStreamObject reads one object from the buffer and returns its
// objptr and stream, ensuring it's an /XRef stream.
func parseXrefStreamObject(b *buffer) (objptr, stream, error) {
	logger.Debug(fmt.Sprintf("reading xref stream at offset %v", b.readOffset()))
	obj1 := b.readObject()
	od, ok := obj1.(objdef)
	if !ok {
		logger.Error(fmt.Sprintf("malformed PDF: objdef not found: %v", objfmt(obj1)))
		return objptr{}, stream{}, pdfErrorf(ErrMalformedXref, "cross-reference stream is not an indirect object")
	}
	strm, ok := od.obj.(stream)
	if !ok {
		logger.Error(fmt.Sprintf("malformed PDF: cross-reference stream not found: %v", objfmt(od)))
		return objptr{}, stream{}, pdfErrorf(ErrMalformedXref, "cross-reference object is not a stream")
	}
	if strm.hdr["Type"] != name("XRef") {
		logger.Error("malformed PDF: xref stream does not have type XRef")
		return objptr{}, stream{}, pdfErrorf(ErrMalformedXref, "xref stream Type is not /XRef")
	}

	return od.ptr, strm, nil
}

// xrefSize returns the /Size from an xref stream header.
func xrefSize(strm stream) (int64, error) {
	if size, ok := strm.hdr["Size"].(int64); ok {
		return size, nil
	}
	logger.Error("malformed PDF: xref stream missing Size")
	return 0, pdfErrorf(ErrMissingTrailerKey, "Size")
}

// mergePrevXrefStreams walks the /Prev chain, validating and merging each
// older stream's entries and trailer keys.
func mergePrevXrefStreams(r *Reader, cur stream, table []xref, trailer dict, maxSize int64) ([]xref, dict, error) {
	for prevoff := cur.hdr["Prev"]; prevoff != nil; {
		off, ok := prevoff.(int64)
		if !ok {
			logger.Error(fmt.Sprintf("malformed PDF: xref Prev is not integer: %v", prevoff))
			return nil, nil, pdfErrorf(ErrMalformedXref, "xref Prev is not an integer")
		}
		logger.Debug(fmt.Sprintf("found Prev stream with offset %d", off), true)
		b := newBuffer(io.NewSectionReader(r.f, off, r.end-off), off)
		_, prevStrm, err := parseXrefStreamObject(b)
		if err != nil {
			return nil, nil, err
		}
		prevoff = prevStrm.hdr["Prev"]
		psize, _ := prevStrm.hdr["Size"].(int64)
		if psize > maxSize {
			logger.Error("malformed PDF: xref prev stream larger than last stream")
			return nil, nil, pdfErrorf(ErrMalformedXref, "prev xref stream Size %d exceeds %d", psize, maxSize)
		}
		table, err = readXrefStreamData(r, prevStrm, table, psize)
		if err != nil {
			logger.Error(fmt.Sprintf("malformed PDF: reading xref prev stream: %v", err))
			return nil, nil, err
		}
		trailer = mergeTrailer(trailer, prevStrm.hdr)
	}
	return table, trailer, nil
}

// readXrefStreamData decodes one xref stream's fixed-width records into the
// table. Entries already present (from newer sections) are kept.
func readXrefStreamData(r *Reader, strm stream, table []xref, size int64) ([]xref, error) {
	index, _ := strm.hdr["Index"].(array)
	if index == nil {
		index = array{int64(0), size}
	}
	if len(index)%2 != 0 {
		logger.Error(fmt.Sprintf("invalid Index array %v", objfmt(index)))
		return nil, pdfErrorf(ErrMalformedXref, "invalid Index array")
	}

	ww, ok := strm.hdr["W"].(array)
	if !ok {
		logger.Error("xref stream missing W array")
		return nil, pdfErrorf(ErrMalformedXref, "xref stream missing W array")
	}
	var w []int
	for _, x := range ww {
		i, ok := x.(int64)
		if !ok || int64(int(i)) != i || i < 0 {
			logger.Error(fmt.Sprintf("invalid W array %v", objfmt(ww)))
			return nil, pdfErrorf(ErrMalformedXref, "invalid W array")
		}
		w = append(w, int(i))
	}
	if len(w) < 3 {
		logger.Error(fmt.Sprintf("invalid W array %v", objfmt(ww)))
		return nil, pdfErrorf(ErrMalformedXref, "W array needs three widths")
	}

	wtotal := 0
	for _, wid := range w {
		wtotal += wid
	}
	buf := make([]byte, wtotal)
	v := Value{r, objptr{}, strm}
	data := v.Reader()
	defer data.Close()
	for len(index) > 0 {
		start, ok1 := index[0].(int64)
		n, ok2 := index[1].(int64)
		if !ok1 || !ok2 {
			logger.Error(fmt.Sprintf("malformed Index pair %v %v", objfmt(index[0]), objfmt(index[1])))
			return nil, pdfErrorf(ErrMalformedXref, "malformed Index pair")
		}
		index = index[2:]
		for i := 0; i < int(n); i++ {
			if _, err := io.ReadFull(data, buf); err != nil {
				logger.Error(fmt.Sprintf("error reading xref stream: %v", err))
				return nil, pdfErrorf(ErrMalformedXref, "short xref stream: %v", err)
			}
			v1 := decodeInt(buf[0:w[0]])
			if w[0] == 0 {
				v1 = 1 // type defaults to 1 when the first field is absent
			}
			v2 := decodeInt(buf[w[0] : w[0]+w[1]])
			v3 := decodeInt(buf[w[0]+w[1] : w[0]+w[1]+w[2]])
			x := int(start) + i
			for cap(table) <= x {
				table = append(table[:cap(table)], xref{})
			}
			if len(table) <= x {
				table = table[:x+1]
			}
			if table[x].ptr != (objptr{}) {
				continue // newer section already claimed this object
			}
			switch v1 {
			case 0:
				// free entry: object absent; v2/v3 carry the free chain
			case 1:
				table[x] = xref{ptr: objptr{uint32(x), uint16(v3)}, offset: int64(v2)}
			case 2:
				table[x] = xref{ptr: objptr{uint32(x), 0}, inStream: true, stream: objptr{uint32(v2), 0}, offset: int64(v3)}
			default:
				if DebugOn {
					logger.Error(fmt.Sprintf("invalid xref stream type %d: %x", v1, buf))
				}
			}
		}
	}
	logger.Debug(fmt.Sprintf("xref stream: parsed %d entries", size), true)
	return table, nil
}

func decodeInt(b []byte) int {
	x := 0
	for _, c := range b {
		x = x<<8 | int(c)
	}
	return x
}

func readXrefTable(r *Reader, b *buffer) ([]xref, objptr, dict, error) {
	logger.Debug("processing xref table")
	table, trailer, err := parseXrefTableAndTrailer(b, nil)
	if err != nil {
		return nil, objptr{}, nil, err
	}

	// Hybrid files: the trailer may point at a parallel xref stream.
	table, trailer, err = r.handleTrailerXRefStm(table, trailer)
	if err != nil {
		logger.Error(fmt.Sprintf("readXrefTable: XRefStm handling error: %v. Falling back to Prev chain.", err))
		// proceed with the Prev chain to salvage what we can
	}

	table, trailer, err = resolvePrevXrefTables(r, trailer, table)
	if err != nil {
		return nil, objptr{}, nil, err
	}

	if err := validateTrailerSize(&table, trailer); err != nil {
		return nil, objptr{}, nil, err
	}

	return table, objptr{}, trailer, nil
}

// parseXrefTableAndTrailer parses a single xref table section
// and the trailer dictionary that follows it.
func parseXrefTableAndTrailer(b *buffer, table []xref) ([]xref, dict, error) {
	var err error
	table, err = readXrefTableData(b, table)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug(fmt.Sprintf("parsed xref table section, %d entries so far", len(table)))
	trailer, ok := b.readObject().(dict)
	if !ok {
		logger.Error("malformed PDF: xref table not followed by trailer dictionary")
		return nil, nil, pdfErrorf(ErrMalformedXref, "xref table not followed by trailer dictionary")
	}
	return table, trailer, nil
}

func resolvePrevXrefTables(r *Reader, trailer dict, table []xref) ([]xref, dict, error) {
	for prevoff := trailer[name("Prev")]; prevoff != nil; {
		off, ok := prevoff.(int64)
		if !ok {
			logger.Error(fmt.Sprintf("malformed PDF: xref Prev is not integer: %v", prevoff))
			return nil, nil, pdfErrorf(ErrMalformedXref, "xref Prev is not an integer")
		}
		logger.Debug("found Prev xref table", true)
		b := newBuffer(io.NewSectionReader(r.f, off, r.end-off), off)
		tok := b.readToken()
		if tok != keyword("xref") {
			logger.Error("malformed PDF: xref Prev does not point to xref")
			return nil, nil, pdfErrorf(ErrMalformedXref, "Prev offset %d does not point at an xref table", off)
		}
		var prevTrailer dict
		var err error
		table, prevTrailer, err = parseXrefTableAndTrailer(b, table)
		if err != nil {
			return nil, nil, err
		}
		table, prevTrailer, err = r.handleTrailerXRefStm(table, prevTrailer)
		if err != nil {
			logger.Debug(fmt.Sprintf("warning: XRefStm handling error in Prev chain: %v; continuing", err))
		}
		prevoff = prevTrailer[name("Prev")]
		delete(prevTrailer, name("Prev"))
		trailer = mergeTrailer(trailer, prevTrailer)
	}
	return table, trailer, nil
}

// validateTrailerSize trims the xref table to the declared /Size in trailer.
func validateTrailerSize(table *[]xref, trailer dict) error {
	size, ok := trailer[name("Size")].(int64)
	if !ok {
		logger.Error("malformed PDF: trailer missing /Size entry")
		return pdfErrorf(ErrMissingTrailerKey, "Size")
	}
	if size < int64(len(*table)) {
		*table = (*table)[:size]
	}
	logger.Debug(fmt.Sprintf("trailer size validated: %d", size))
	return nil
}

// ensureLen makes sure s has length at least n (growing capacity if needed)
// and returns the possibly-reallocated slice.
func ensureLen[T any](s []T, n int) []T {
	if n <= len(s) {
		return s
	}
	if cap(s) < n {
		ns := make([]T, n)
		copy(ns, s)
		return ns
	}
	return s[:n]
}

// setIfEmpty sets table[x] to val only if the slot is currently empty.
// Sections are read newest-first, so the first writer wins.
func setIfEmpty(table *[]xref, x int, val xref) {
	if x < 0 {
		return
	}
	*table = ensureLen(*table, x+1)
	if (*table)[x].ptr == (objptr{}) {
		(*table)[x] = val
	}
}

// readXrefTableData parses classic xref subsections. Each entry line is
// byte-exact: 10-digit offset, space, 5-digit generation, space, n or f,
// and a two-byte end-of-line containing CR or LF — 20 bytes total.
// Non-conforming entry widths are rejected.
func readXrefTableData(b *buffer, table []xref) ([]xref, error) {
	logger.Debug("reading xref table data")
	for {
		tok := b.readToken()
		if tok == keyword("trailer") {
			break
		}
		start, ok1 := tok.(int64)
		count, ok2 := b.readToken().(int64)
		if !ok1 || !ok2 || start < 0 || count < 0 {
			logger.Error("malformed xref table subsection header")
			return nil, pdfErrorf(ErrMalformedXref, "malformed xref subsection header")
		}

		// Skip the EOL after the subsection header, then read count
		// fixed-width entry lines.
		c := b.readByte()
		for isWhitespace(c) {
			c = b.readByte()
		}
		b.unreadByte()

		for i := 0; i < int(count); i++ {
			line := b.readN(20)
			ent, ok := parseXrefEntryLine(line)
			if !ok {
				logger.Error(fmt.Sprintf("malformed xref entry %q in subsection starting %d", line, start))
				return nil, pdfErrorf(ErrMalformedXref, "malformed 20-byte xref entry in subsection starting %d", start)
			}
			idx := int(start) + i
			switch ent.alloc {
			case 'n':
				setIfEmpty(&table, idx, xref{ptr: objptr{uint32(idx), uint16(ent.gen)}, offset: ent.offset})
			case 'f':
				// free: object absent, but keep the slice long enough
				table = ensureLen(table, idx+1)
			}
		}
	}
	return table, nil
}

type xrefEntryLine struct {
	offset int64
	gen    int64
	alloc  byte
}

func parseXrefEntryLine(line []byte) (xrefEntryLine, bool) {
	if len(line) != 20 || line[10] != ' ' || line[16] != ' ' {
		return xrefEntryLine{}, false
	}
	if line[17] != 'n' && line[17] != 'f' {
		return xrefEntryLine{}, false
	}
	eol := line[18:20]
	if eol[0] != '\r' && eol[0] != '\n' && eol[0] != ' ' {
		return xrefEntryLine{}, false
	}
	if eol[1] != '\r' && eol[1] != '\n' {
		return xrefEntryLine{}, false
	}
	var off, gen int64
	for _, c := range line[0:10] {
		if c < '0' || c > '9' {
			return xrefEntryLine{}, false
		}
		off = off*10 + int64(c-'0')
	}
	for _, c := range line[11:16] {
		if c < '0' || c > '9' {
			return xrefEntryLine{}, false
		}
		gen = gen*10 + int64(c-'0')
	}
	return xrefEntryLine{offset: off, gen: gen, alloc: line[17]}, true
}

// mergeXrefTables merges src into dest using conservative rules:
// extend dest if src is bigger, fill empty dest slots, and prefer src when
// both are in use (the stream side of a hybrid file is authoritative).
func mergeXrefTables(dest, src []xref) []xref {
	if len(src) > len(dest) {
		nd := make([]xref, len(src))
		copy(nd, dest)
		dest = nd
	}
	for i := 0; i < len(src); i++ {
		s := src[i]
		if s.ptr == (objptr{}) {
			continue
		}
		d := dest[i]
		if d.ptr == (objptr{}) {
			dest[i] = s
			continue
		}
		if d.ptr.gen != 65535 && s.ptr.gen != 65535 {
			dest[i] = s
			continue
		}
	}
	return dest
}

// validateAndRepairXrefEntries checks offsets in table and tries to repair with a small-window scan.
// Returns counts: repaired entries and invalid (unrepairable) entries.
func (r *Reader) validateAndRepairXrefEntries(table []xref) (repaired, invalid int) {
	for i := 0; i < len(table); i++ {
		ent := table[i]
		if ent.ptr == (objptr{}) {
			continue
		}
		if ent.offset == 0 || ent.inStream {
			continue
		}
		if r.isLikelyObjectAt(ent.offset) {
			continue
		}
		found := r.scanForObjectAt(ent.ptr.id, ent.ptr.gen, ent.offset, 1024)
		if found >= 0 {
			table[i].offset = found
			repaired++
			continue
		}
		invalid++
	}
	return
}

// handleTrailerXRefStm: if the trailer contains /XRefStm, parse that stream
// and merge its table into the provided table. If the stream appears too
// invalid, returns an error so the caller can fall back.
func (r *Reader) handleTrailerXRefStm(table []xref, trailer dict) ([]xref, dict, error) {
	xrefstm := trailer[name("XRefStm")]
	if xrefstm == nil {
		return table, trailer, nil
	}
	logger.Debug("found XRefStm in trailer", true)
	off, ok := xrefstm.(int64)
	if !ok {
		logger.Error(fmt.Sprintf("malformed PDF: XRefStm not integer: %v", xrefstm))
		return table, trailer, pdfErrorf(ErrMalformedXref, "XRefStm is not an integer")
	}
	b := newBuffer(io.NewSectionReader(r.f, off, r.end-off), off)
	srcTable, _, hdr, err := readXrefStream(r, b)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to parse XRefStm at %d: %v", off, err))
		return table, trailer, err
	}
	_, invalid := r.validateAndRepairXrefEntries(srcTable)

	total := 0
	for _, e := range srcTable {
		if e.ptr != (objptr{}) {
			total++
		}
	}
	// Accept or reject the stream table based on an invalid threshold.
	if total > 0 && float64(invalid)/float64(total) > 0.30 {
		logger.Error(fmt.Sprintf("xref stream at %d appears invalid: %d/%d invalid entries", off, invalid, total))
		return table, trailer, pdfErrorf(ErrMalformedXref, "XRefStm at %d: %d/%d entries invalid", off, invalid, total)
	}

	table = mergeXrefTables(table, srcTable)

	if _, ok := hdr["Size"]; !ok {
		logger.Debug(fmt.Sprintf("xref stream at %d missing /Size", off))
		return table, trailer, pdfErrorf(ErrMissingTrailerKey, "Size")
	}
	return table, trailer, nil
}
