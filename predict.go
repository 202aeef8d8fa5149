// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Row predictors applied after Flate/LZW decompression: the PNG family
// (predictor values 10–15) and the TIFF horizontal differencing predictor
// (value 2). See the PNG filter specification, w3.org/TR/PNG-Filters.html.

package reader

import (
	"io"

	"github.com/sassoftware/viya-pdf-reader/logger"
)

// PNG per-row filter tags.
const (
	pngNone = iota
	pngSub
	pngUp
	pngAverage
	pngPaeth
)

// predictReader reconstructs predicted rows from an underlying decompressed
// stream. PNG rows carry a one-byte tag followed by bpp*columns data bytes;
// TIFF rows carry data only.
type predictReader struct {
	r      io.Reader
	pred   int // Predictor parameter: 2 or 10..15
	bpp    int // bytes per pixel, minimum 1
	rowlen int // data bytes per row
	prev   []byte
	rowbuf []byte
	pend   []byte
	err    error
}

func newPredictReader(r io.Reader, pred, columns, colors, bpc int) (io.Reader, error) {
	if pred != 2 && (pred < 10 || pred > 15) {
		logger.Error("unsupported predictor")
		return nil, &Error{Kind: ErrUnsupportedPredictor, msg: "predictor value out of range"}
	}
	if pred == 2 && bpc != 8 {
		return nil, &Error{Kind: ErrUnsupportedPredictor, msg: "TIFF predictor requires 8 bits per component"}
	}
	bpp := (colors*bpc + 7) / 8
	if bpp < 1 {
		bpp = 1
	}
	rowlen := (columns*colors*bpc + 7) / 8
	return &predictReader{
		r:      r,
		pred:   pred,
		bpp:    bpp,
		rowlen: rowlen,
		prev:   make([]byte, rowlen),
		rowbuf: make([]byte, rowlen+1),
	}, nil
}

func (p *predictReader) Read(b []byte) (int, error) {
	n := 0
	for n < len(b) {
		if len(p.pend) > 0 {
			m := copy(b[n:], p.pend)
			p.pend = p.pend[m:]
			n += m
			continue
		}
		if p.err != nil {
			break
		}
		if err := p.nextRow(); err != nil {
			p.err = err
			break
		}
	}
	if n > 0 {
		return n, nil
	}
	return 0, p.err
}

func (p *predictReader) nextRow() error {
	if p.pred == 2 {
		row := p.rowbuf[:p.rowlen]
		if _, err := io.ReadFull(p.r, row); err != nil {
			return err
		}
		tiffDecodeRow(row, p.bpp)
		p.pend = row
		return nil
	}

	if _, err := io.ReadFull(p.r, p.rowbuf); err != nil {
		if err == io.ErrUnexpectedEOF {
			return &Error{Kind: ErrLengthMismatch, msg: "predicted stream ends mid-row"}
		}
		return err
	}
	tag := int(p.rowbuf[0])
	row := p.rowbuf[1:]
	// For Optimum (15) the per-row tag is authoritative; for a fixed
	// predictor the tag must agree with the declaration.
	if p.pred != 15 && tag != p.pred-10 {
		return &Error{Kind: ErrUnsupportedPredictor,
			msg: "row tag disagrees with declared predictor"}
	}
	if tag > pngPaeth {
		return &Error{Kind: ErrUnsupportedPredictor, msg: "unknown PNG row tag"}
	}
	pngDecodeRow(tag, row, p.prev, p.bpp)
	copy(p.prev, row)
	p.pend = row
	return nil
}

// pngDecodeRow reconstructs one PNG-filtered row in place.
// prev is the reconstructed row above (zeros for the first row).
func pngDecodeRow(tag int, row, prev []byte, bpp int) {
	switch tag {
	case pngNone:
	case pngSub:
		for i := bpp; i < len(row); i++ {
			row[i] += row[i-bpp]
		}
	case pngUp:
		for i := range row {
			row[i] += prev[i]
		}
	case pngAverage:
		for i := range row {
			var left int
			if i >= bpp {
				left = int(row[i-bpp])
			}
			row[i] += byte((left + int(prev[i])) / 2)
		}
	case pngPaeth:
		for i := range row {
			var left, upLeft byte
			if i >= bpp {
				left = row[i-bpp]
				upLeft = prev[i-bpp]
			}
			row[i] += paeth(left, prev[i], upLeft)
		}
	}
}

// pngEncodeRow is the filtering inverse of pngDecodeRow; prev is the
// reconstructed (unfiltered) row above. Exercised by the round-trip tests.
func pngEncodeRow(tag int, row, prev []byte, bpp int) []byte {
	out := make([]byte, len(row))
	switch tag {
	case pngNone:
		copy(out, row)
	case pngSub:
		copy(out, row[:min(bpp, len(row))])
		for i := bpp; i < len(row); i++ {
			out[i] = row[i] - row[i-bpp]
		}
	case pngUp:
		for i := range row {
			out[i] = row[i] - prev[i]
		}
	case pngAverage:
		for i := range row {
			var left int
			if i >= bpp {
				left = int(row[i-bpp])
			}
			out[i] = row[i] - byte((left+int(prev[i]))/2)
		}
	case pngPaeth:
		for i := range row {
			var left, upLeft byte
			if i >= bpp {
				left = row[i-bpp]
				upLeft = prev[i-bpp]
			}
			out[i] = row[i] - paeth(left, prev[i], upLeft)
		}
	}
	return out
}

// paeth returns whichever of left, up, upLeft is closest to the estimate
// left + up - upLeft, breaking ties left > up > upLeft.
func paeth(left, up, upLeft byte) byte {
	est := int(left) + int(up) - int(upLeft)
	dl := abs(est - int(left))
	du := abs(est - int(up))
	dul := abs(est - int(upLeft))
	if dl <= du && dl <= dul {
		return left
	}
	if du <= dul {
		return up
	}
	return upLeft
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// tiffDecodeRow undoes TIFF horizontal differencing for 8-bit components.
func tiffDecodeRow(row []byte, bpp int) {
	for i := bpp; i < len(row); i++ {
		row[i] += row[i-bpp]
	}
}
