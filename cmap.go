// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// CMap reading: the PostScript-flavoured programs used both for ToUnicode
// maps and for Type0 encodings. Output is a mapping from input byte
// sequences (1–4 bytes, per codespace) to Unicode scalar sequences.

package reader

import (
	"github.com/sassoftware/viya-pdf-reader/logger"
)

type byteRange struct {
	low  string
	high string
}

type bfchar struct {
	orig string
	repl string
}

type bfrange struct {
	lo  string
	hi  string
	dst Value
}

type cmap struct {
	space   [4][]byteRange // codespace ranges, indexed by byte width - 1
	bfrange []bfrange
	bfchar  []bfchar
}

// Decode translates raw character codes into Unicode runes using the CMap
// rules. Mapped codes go through UTF-16 decoding of their replacement;
// unmapped bytes are preserved rather than replaced with a sentinel, so no
// input is silently lost.
func (m *cmap) Decode(raw string) string {
	var runes []rune

	for len(raw) > 0 {
		code, width := m.findNextCodespace(raw)
		if width == 0 {
			// no codespace: preserve the first byte and continue
			runes = append(runes, DecodeUTF8OrPreserve(raw[:1])...)
			raw = raw[1:]
			continue
		}

		decoded, ok := m.resolveCodeMapping(code, width)
		if ok {
			runes = append(runes, decoded...)
		} else {
			// in a codespace but unmapped: preserve the whole code
			runes = append(runes, DecodeUTF8OrPreserve(code)...)
		}

		raw = raw[width:]
	}

	return string(runes)
}

// findNextCodespace checks raw for a valid codespace sequence of length 1–4.
// Returns the matched bytes and its length, or ("", 0) if no codespace matches.
func (m *cmap) findNextCodespace(raw string) (string, int) {
	for n := 1; n <= 4 && n <= len(raw); n++ {
		for _, space := range m.space[n-1] {
			if space.low <= raw[:n] && raw[:n] <= space.high {
				return raw[:n], n
			}
		}
	}
	return "", 0
}

// resolveCodeMapping tries to map a code using bfchar or bfrange rules.
// Returns decoded runes and true if a mapping was found.
func (m *cmap) resolveCodeMapping(code string, width int) ([]rune, bool) {
	for _, bfchar := range m.bfchar {
		if len(bfchar.orig) == width && bfchar.orig == code {
			return []rune(utf16Decode(bfchar.repl)), true
		}
	}
	for _, br := range m.bfrange {
		if len(br.lo) == width && br.lo <= code && code <= br.hi {
			switch br.dst.Kind() {
			case String:
				return resolveBfrangeWithString(br, code), true
			case Array:
				return resolveBfrangeWithArray(br, code), true
			}
		}
	}

	return nil, false
}

// resolveBfrangeWithString handles bfrange mappings where dst is a String.
func resolveBfrangeWithString(br bfrange, code string) []rune {
	s := br.dst.RawString()
	if br.lo != code && len(s) > 0 {
		// increment last byte according to offset within range
		b := []byte(s)
		b[len(b)-1] += code[len(code)-1] - br.lo[len(br.lo)-1]
		s = string(b)
	}
	return []rune(utf16Decode(s))
}

// resolveBfrangeWithArray handles bfrange mappings where dst is an Array.
func resolveBfrangeWithArray(br bfrange, code string) []rune {
	idx := code[len(code)-1] - br.lo[len(br.lo)-1]
	v := br.dst.Index(int(idx))
	if v.Kind() == String {
		return []rune(utf16Decode(v.RawString()))
	}
	return nil
}

// readCmap interprets a CMap stream. The codespace, bfchar, and bfrange
// sections populate the map; notdef sections and the resource bookkeeping
// operators parse but contribute nothing.
func readCmap(toUnicode Value) (m *cmap) {
	logger.Debug("reading CMap")
	defer func() {
		// a malformed CMap falls back to no mapping
		if r := recover(); r != nil {
			logger.Error("malformed CMap")
			m = nil
		}
	}()

	n := -1
	var built cmap
	ok := true
	Interpret(toUnicode, func(stk *Stack, op string) {
		if !ok {
			return
		}
		switch op {
		case "findresource":
			stk.Pop() // category
			stk.Pop() // key
			stk.Push(newDict())
		case "begincmap":
			stk.Push(newDict())
		case "endcmap":
			stk.Pop()
		case "begincodespacerange":
			n = int(stk.Pop().Int64())
		case "endcodespacerange":
			if n < 0 {
				logger.Debug("missing begincodespacerange")
				ok = false
				return
			}
			for i := 0; i < n; i++ {
				hi, lo := stk.Pop().RawString(), stk.Pop().RawString()
				if len(lo) == 0 || len(lo) > 4 || len(lo) != len(hi) {
					logger.Debug("bad codespace range")
					ok = false
					return
				}
				built.space[len(lo)-1] = append(built.space[len(lo)-1], byteRange{lo, hi})
			}
			n = -1
		case "beginbfchar":
			n = int(stk.Pop().Int64())
		case "endbfchar":
			if n < 0 {
				logger.Debug("missing beginbfchar")
				ok = false
				return
			}
			for i := 0; i < n; i++ {
				repl, orig := stk.Pop().RawString(), stk.Pop().RawString()
				built.bfchar = append(built.bfchar, bfchar{orig, repl})
			}
			n = -1
		case "beginbfrange":
			n = int(stk.Pop().Int64())
		case "endbfrange":
			if n < 0 {
				logger.Debug("missing beginbfrange")
				ok = false
				return
			}
			for i := 0; i < n; i++ {
				dst, srcHi, srcLo := stk.Pop(), stk.Pop().RawString(), stk.Pop().RawString()
				built.bfrange = append(built.bfrange, bfrange{srcLo, srcHi, dst})
			}
			n = -1
		case "beginnotdefchar":
			n = int(stk.Pop().Int64())
		case "endnotdefchar":
			for i := 0; i < n*2; i++ {
				stk.Pop()
			}
			n = -1
		case "beginnotdefrange":
			n = int(stk.Pop().Int64())
		case "endnotdefrange":
			for i := 0; i < n*3; i++ {
				stk.Pop()
			}
			n = -1
		case "defineresource":
			stk.Pop().Name() // category
			value := stk.Pop()
			stk.Pop().Name() // key
			stk.Push(value)
		default:
			if DebugOn {
				logger.Debug("cmap interp: " + op)
			}
		}
	})
	if !ok {
		return nil
	}
	return &built
}
