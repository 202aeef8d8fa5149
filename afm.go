// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Builtin metrics for the fourteen standard fonts, taken from the Adobe
// Font Metrics files. Documents may reference these fonts without Widths;
// document-supplied keys are merged over these defaults by the Font
// accessors (document keys win).

package reader

import "strings"

// afmMetrics carries the subset of AFM data the reader consumes: per-glyph
// widths for the Latin text range, and the face's vertical extents.
type afmMetrics struct {
	widths       map[string]float64 // glyph name -> width, 1000-unit glyph space
	fixedWidth   float64            // nonzero for monospaced faces
	capHeight    float64
	ascent       float64
	descent      float64
	missingWidth float64
}

func (m *afmMetrics) width(glyph string) (float64, bool) {
	if m.fixedWidth != 0 {
		return m.fixedWidth, true
	}
	w, ok := m.widths[glyph]
	return w, ok
}

// ascii95 maps StandardEncoding codes 32..126 to glyph names, the order the
// width tables below are written in.
var ascii95 = [...]string{
	"space", "exclam", "quotedbl", "numbersign", "dollar", "percent",
	"ampersand", "quoteright", "parenleft", "parenright", "asterisk",
	"plus", "comma", "hyphen", "period", "slash",
	"zero", "one", "two", "three", "four", "five", "six", "seven",
	"eight", "nine", "colon", "semicolon", "less", "equal", "greater",
	"question", "at",
	"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M",
	"N", "O", "P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z",
	"bracketleft", "backslash", "bracketright", "asciicircum",
	"underscore", "quoteleft",
	"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m",
	"n", "o", "p", "q", "r", "s", "t", "u", "v", "w", "x", "y", "z",
	"braceleft", "bar", "braceright", "asciitilde",
}

var helveticaWidths = [...]float64{
	278, 278, 355, 556, 556, 889, 667, 222, 333, 333, 389, 584, 278,
	333, 278, 278,
	556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 278, 278, 584,
	584, 584, 556, 1015,
	667, 667, 722, 722, 667, 611, 778, 722, 278, 500, 667, 556, 833,
	722, 778, 667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611,
	278, 278, 278, 469, 556, 222,
	556, 556, 500, 556, 556, 278, 556, 556, 222, 222, 500, 222, 833,
	556, 556, 556, 556, 333, 500, 278, 556, 500, 722, 500, 500, 500,
	334, 260, 334, 584,
}

var helveticaBoldWidths = [...]float64{
	278, 333, 474, 556, 556, 889, 722, 278, 333, 333, 389, 584, 278,
	333, 278, 278,
	556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 333, 333, 584,
	584, 584, 611, 975,
	722, 722, 722, 722, 667, 611, 778, 722, 278, 556, 722, 611, 833,
	722, 778, 667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611,
	333, 278, 333, 584, 556, 278,
	556, 611, 556, 611, 556, 333, 611, 611, 278, 278, 556, 278, 889,
	611, 611, 611, 611, 389, 556, 333, 611, 556, 778, 556, 556, 500,
	389, 280, 389, 584,
}

var timesRomanWidths = [...]float64{
	250, 333, 408, 500, 500, 833, 778, 333, 333, 333, 500, 564, 250,
	333, 250, 278,
	500, 500, 500, 500, 500, 500, 500, 500, 500, 500, 278, 278, 564,
	564, 564, 444, 921,
	722, 667, 667, 722, 611, 556, 722, 722, 333, 389, 722, 611, 889,
	722, 722, 556, 722, 667, 556, 611, 722, 722, 944, 722, 722, 611,
	333, 278, 333, 469, 500, 333,
	444, 500, 444, 500, 444, 333, 500, 500, 278, 278, 500, 278, 778,
	500, 500, 500, 500, 333, 389, 278, 500, 500, 722, 500, 500, 444,
	480, 200, 480, 541,
}

var timesBoldWidths = [...]float64{
	250, 333, 555, 500, 500, 1000, 833, 333, 333, 333, 500, 570, 250,
	333, 250, 278,
	500, 500, 500, 500, 500, 500, 500, 500, 500, 500, 333, 333, 570,
	570, 570, 500, 930,
	722, 667, 722, 722, 667, 611, 778, 778, 389, 500, 778, 667, 944,
	722, 778, 611, 778, 722, 556, 667, 722, 722, 1000, 722, 722, 667,
	333, 278, 333, 581, 500, 333,
	500, 556, 444, 556, 444, 333, 500, 556, 278, 333, 556, 278, 833,
	556, 500, 556, 556, 444, 389, 333, 556, 500, 722, 500, 500, 444,
	394, 220, 394, 520,
}

func widthsByName(table []float64) map[string]float64 {
	m := make(map[string]float64, len(ascii95))
	for i, g := range ascii95 {
		m[g] = table[i]
	}
	return m
}

var standard14 map[string]*afmMetrics

func init() {
	helvetica := &afmMetrics{widths: widthsByName(helveticaWidths[:]), capHeight: 718, ascent: 718, descent: -207}
	helveticaBold := &afmMetrics{widths: widthsByName(helveticaBoldWidths[:]), capHeight: 718, ascent: 718, descent: -207}
	timesRoman := &afmMetrics{widths: widthsByName(timesRomanWidths[:]), capHeight: 662, ascent: 683, descent: -217}
	timesBold := &afmMetrics{widths: widthsByName(timesBoldWidths[:]), capHeight: 676, ascent: 683, descent: -217}
	courier := &afmMetrics{fixedWidth: 600, capHeight: 562, ascent: 629, descent: -157}
	symbolic := &afmMetrics{widths: map[string]float64{"space": 250}, missingWidth: 500}

	standard14 = map[string]*afmMetrics{
		"Helvetica":             helvetica,
		"Helvetica-Oblique":     helvetica,
		"Helvetica-Bold":        helveticaBold,
		"Helvetica-BoldOblique": helveticaBold,
		"Times-Roman":           timesRoman,
		"Times-Italic":          timesRoman,
		"Times-Bold":            timesBold,
		"Times-BoldItalic":      timesBold,
		"Courier":               courier,
		"Courier-Oblique":       courier,
		"Courier-Bold":          courier,
		"Courier-BoldOblique":   courier,
		"Symbol":                symbolic,
		"ZapfDingbats":          symbolic,
	}
}

// builtinMetrics returns the bundled metrics for one of the fourteen
// standard faces (or a common alias), or nil. Subset tags are stripped.
func builtinMetrics(baseFont string) *afmMetrics {
	f := trimFontSubsetTag(baseFont)
	if m, ok := standard14[f]; ok {
		return m
	}
	// Common non-standard spellings seen in the wild.
	switch strings.ToLower(strings.ReplaceAll(f, " ", "")) {
	case "arial", "helvetica":
		return standard14["Helvetica"]
	case "arial-bold", "arialbold", "arial,bold":
		return standard14["Helvetica-Bold"]
	case "timesnewroman", "times":
		return standard14["Times-Roman"]
	case "timesnewroman-bold", "timesnewroman,bold":
		return standard14["Times-Bold"]
	case "couriernew", "courier":
		return standard14["Courier"]
	}
	return nil
}
