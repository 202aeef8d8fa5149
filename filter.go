// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Stream filter pipeline. Filters compose left to right: the output of
// filter i feeds filter i+1. Predictors (Flate/LZW) apply after the core
// decompression using the accompanying DecodeParms dictionary.

package reader

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"io"

	"github.com/hhrutter/lzw"

	"github.com/sassoftware/viya-pdf-reader/logger"
)

// Registered filter names. See 7.4 in the PDF spec.
const (
	filterASCII85   = "ASCII85Decode"
	filterASCIIHex  = "ASCIIHexDecode"
	filterFlate     = "FlateDecode"
	filterLZW       = "LZWDecode"
	filterRunLength = "RunLengthDecode"
	filterDCT       = "DCTDecode"
	filterCCITTFax  = "CCITTFaxDecode"
	filterCrypt     = "Crypt"
)

// applyFilterChain wraps rd with the decoders named by the stream's Filter
// entry, pairing each with its DecodeParms dictionary. A missing or short
// params array means all-default parameters for the unmatched filters; a
// params array longer than the filter list is a length mismatch.
func applyFilterChain(rd io.Reader, v Value) (io.Reader, error) {
	filter := v.Key("Filter")
	param := v.Key("DecodeParms")
	if param.IsNull() {
		param = v.Key("DP") // abbreviated form used by inline images
	}
	switch filter.Kind() {
	default:
		logger.Error("Filter is neither name nor array")
		return nil, pdfErrorf(ErrUnknownFilter, "Filter entry has kind %v", filter.Kind())
	case Null:
		return rd, nil
	case Name:
		if param.Kind() == Array {
			if param.Len() > 1 {
				return nil, pdfErrorf(ErrLengthMismatch, "single filter with DecodeParms array of %d", param.Len())
			}
			param = param.Index(0)
		}
		return applyFilter(rd, filter.Name(), param)
	case Array:
		if param.Kind() == Array && param.Len() > filter.Len() {
			return nil, pdfErrorf(ErrLengthMismatch, "%d filters but %d parameter dictionaries", filter.Len(), param.Len())
		}
		var err error
		for i := 0; i < filter.Len(); i++ {
			rd, err = applyFilter(rd, filter.Index(i).Name(), param.Index(i))
			if err != nil {
				return nil, err
			}
		}
		return rd, nil
	}
}

func applyFilter(rd io.Reader, fname string, param Value) (io.Reader, error) {
	logger.Debug("filter: " + fname)
	switch fname {
	default:
		logger.Error("unknown filter " + fname)
		return nil, &Error{Kind: ErrUnknownFilter, Op: fname, msg: "unknown filter"}

	case filterFlate:
		zr, err := zlib.NewReader(rd)
		if err != nil {
			logger.Error(err.Error())
			return nil, &Error{Kind: ErrFilterFailed, Op: fname, cause: err}
		}
		return applyPredictor(zr, param)

	case filterLZW:
		early := true
		if param.HasKey("EarlyChange") && param.Key("EarlyChange").Int64() == 0 {
			early = false
		}
		return applyPredictor(lzw.NewReader(rd, early), param)

	case filterASCII85:
		return ascii85.NewDecoder(newAlphaReader(rd)), nil

	case filterASCIIHex:
		return newHexReader(rd), nil

	case filterRunLength:
		return newRunLengthReader(rd), nil

	case filterDCT, filterCCITTFax, filterCrypt:
		return nil, &Error{Kind: ErrNotImplemented, Op: fname, msg: "filter is not supported"}
	}
}

// applyPredictor wraps rd with the row predictor named in the filter's
// parameter dictionary. Predictor 1 (or no parameters) passes through.
func applyPredictor(rd io.Reader, param Value) (io.Reader, error) {
	if param.IsNull() || !param.HasKey("Predictor") {
		return rd, nil
	}
	pred := int(param.Key("Predictor").Int64())
	if pred == 1 {
		return rd, nil
	}
	columns := int(param.Key("Columns").Int64())
	if columns == 0 {
		columns = 1
	}
	colors := int(param.Key("Colors").Int64())
	if colors == 0 {
		colors = 1
	}
	bpc := int(param.Key("BitsPerComponent").Int64())
	if bpc == 0 {
		bpc = 8
	}
	return newPredictReader(rd, pred, columns, colors, bpc)
}

// alphaReader zeroes out bytes that are not part of the ASCII85 alphabet
// and truncates the stream at the ~> end-of-data marker, so the stdlib
// decoder sees clean input.
type alphaReader struct {
	reader io.Reader
	done   bool
}

func newAlphaReader(reader io.Reader) *alphaReader {
	return &alphaReader{reader: reader}
}

func alpha(r byte) byte {
	if ('!' <= r && r <= 'u') || r == 'z' {
		return r
	}
	return 0
}

func (a *alphaReader) Read(p []byte) (int, error) {
	if a.done {
		return 0, io.EOF
	}
	n, err := a.reader.Read(p)
	if n == 0 {
		return n, err
	}
	buf := p[:n]
	for i := 0; i < len(buf); i++ {
		if buf[i] == '~' {
			a.done = true
			for j := i; j < len(buf); j++ {
				buf[j] = 0
			}
			break
		}
		buf[i] = alpha(buf[i])
	}
	return n, err
}

// hexReader decodes ASCIIHexDecode data: whitespace is ignored, '>' ends
// the stream, and a final odd nibble is treated as followed by 0.
type hexReader struct {
	r    io.Reader
	done bool
}

func newHexReader(r io.Reader) *hexReader {
	return &hexReader{r: r}
}

func (h *hexReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if h.done {
			if n > 0 {
				return n, nil
			}
			return 0, io.EOF
		}
		hi, err := h.nextNibble()
		if err != nil {
			if err == io.EOF {
				h.done = true
				continue
			}
			return n, err
		}
		lo, err := h.nextNibble()
		if err != nil {
			if err == io.EOF {
				h.done = true
				lo = 0 // odd final nibble padded with 0
			} else {
				return n, err
			}
		}
		p[n] = byte(hi<<4 | lo)
		n++
	}
	return n, nil
}

func (h *hexReader) nextNibble() (int, error) {
	var one [1]byte
	for {
		_, err := io.ReadFull(h.r, one[:])
		if err != nil {
			return 0, io.EOF
		}
		c := one[0]
		if c == '>' {
			return 0, io.EOF
		}
		if isWhitespace(c) {
			continue
		}
		x := unhex(c)
		if x < 0 {
			return 0, &Error{Kind: ErrBadHex, Op: filterASCIIHex, msg: "invalid hex digit " + string(rune(c))}
		}
		return x, nil
	}
}

// runLengthReader decodes RunLengthDecode data: a length byte 0–127 copies
// the next length+1 bytes, 129–255 repeats the next byte 257-length times,
// 128 is end of data.
type runLengthReader struct {
	r    io.Reader
	pend []byte
	done bool
}

func newRunLengthReader(r io.Reader) *runLengthReader {
	return &runLengthReader{r: r}
}

func (rl *runLengthReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(rl.pend) > 0 {
			m := copy(p[n:], rl.pend)
			rl.pend = rl.pend[m:]
			n += m
			continue
		}
		if rl.done {
			break
		}
		var one [1]byte
		if _, err := io.ReadFull(rl.r, one[:]); err != nil {
			rl.done = true
			break
		}
		length := int(one[0])
		switch {
		case length == 128:
			rl.done = true
		case length < 128:
			buf := make([]byte, length+1)
			if _, err := io.ReadFull(rl.r, buf); err != nil {
				return n, &Error{Kind: ErrFilterFailed, Op: filterRunLength, cause: err}
			}
			rl.pend = buf
		default:
			if _, err := io.ReadFull(rl.r, one[:]); err != nil {
				return n, &Error{Kind: ErrFilterFailed, Op: filterRunLength, cause: err}
			}
			rl.pend = bytes.Repeat(one[:], 257-length)
		}
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}
