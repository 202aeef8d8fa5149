// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// The content-stream virtual machine: operand accumulation, graphics and
// text state, and the operator table. Execution produces a stream of events
// on a ContentSink; the renderers in this package are just sinks.

package reader

import (
	"fmt"

	"github.com/sassoftware/viya-pdf-reader/logger"
)

// A Matrix is the 2×3 affine transform (a, b, c, d, e, f) standing for
//
//	[ a b 0 ]
//	[ c d 0 ]
//	[ e f 1 ]
//
// acting on row vectors: (x', y') = (a*x + c*y + e, b*x + d*y + f).
type Matrix struct {
	A, B, C, D, E, F float64
}

var identityMatrix = Matrix{1, 0, 0, 1, 0, 0}

// Mul composes m with n left to right: the result applies m first, then n.
func (m Matrix) Mul(n Matrix) Matrix {
	return Matrix{
		A: m.A*n.A + m.B*n.C,
		B: m.A*n.B + m.B*n.D,
		C: m.C*n.A + m.D*n.C,
		D: m.C*n.B + m.D*n.D,
		E: m.E*n.A + m.F*n.C + n.E,
		F: m.E*n.B + m.F*n.D + n.F,
	}
}

// Apply transforms the point (x, y).
func (m Matrix) Apply(x, y float64) (float64, float64) {
	return m.A*x + m.C*y + m.E, m.B*x + m.D*y + m.F
}

func translation(tx, ty float64) Matrix {
	return Matrix{1, 0, 0, 1, tx, ty}
}

// textState holds the text-space parameters manipulated by the Tc..Ts
// operators. Tm and Tlm are only meaningful inside a BT/ET pair.
type textState struct {
	Tc    float64 // character spacing
	Tw    float64 // word spacing
	Th    float64 // horizontal scaling; Tz stores operand/100
	Tl    float64 // leading
	Tf    string  // font resource name
	Tfs   float64 // font size
	Tmode int     // render mode
	Trise float64 // rise
	Tk    bool    // knockout
	Tm    Matrix
	Tlm   Matrix
}

// gstate is the graphics state snapshot saved and restored by q/Q. The
// text parameters ride along; Tm/Tlm are reinitialized at BT.
type gstate struct {
	CTM        Matrix
	lineWidth  float64
	lineCap    int
	lineJoin   int
	miterLimit float64
	dashArray  []float64
	dashPhase  float64
	intent     string
	flatness   float64
	ts         textState
}

func defaultGState() gstate {
	return gstate{
		CTM:        identityMatrix,
		lineWidth:  1,
		miterLimit: 10,
		ts:         textState{Th: 1, Tm: identityMatrix, Tlm: identityMatrix},
	}
}

// clone deep-copies the state so Q restores exactly what q saved.
func (g gstate) clone() gstate {
	if g.dashArray != nil {
		g.dashArray = append([]float64(nil), g.dashArray...)
	}
	return g
}

// A Rect represents a rectangle.
type Rect struct {
	Min, Max Point
}

// A Point represents an X, Y pair.
type Point struct {
	X float64
	Y float64
}

// A TextRun is one text-showing operation as observed by a ContentSink.
// Before and After are the text rendering matrices bracketing the run;
// Tm is the text matrix at the start of the run, the frame the renderer
// keys lines on.
type TextRun struct {
	Raw        string // undecoded string operand
	Text       string // operand decoded through the font's encoding
	FontName   string
	FontSize   float64
	Before     Matrix
	After      Matrix
	Tm         Matrix
	Rise       float64
	Leading    float64
	SpaceWidth float64 // user-space advance of one space in the current font
	AvgWidth   float64 // user-space advance of a typical glyph
}

// A ContentSink consumes the event stream produced by executing a page's
// content. Events arrive strictly in content-stream byte order.
type ContentSink interface {
	BeginText()
	EndText()
	Text(run TextRun)
	MoveCursor(tm Matrix) // TJ kern jumps; tm is the updated text matrix
	Rect(r Rect)
}

// contentVM executes operators against the state pair. One VM serves one
// content stream; the operator table itself is immutable after init.
type contentVM struct {
	page   Page
	g      gstate
	stack  []gstate
	inText bool
	fonts  map[string]*Font
	font   *Font
	enc    TextEncoding
	sink   ContentSink
	warned map[string]bool
}

type contentOp func(vm *contentVM, args []Value)

// contentOps is the operator dispatch table. It is populated once during
// init and read-only afterwards.
var contentOps map[string]contentOp

func init() {
	contentOps = map[string]contentOp{
		// special graphics state
		"q": func(vm *contentVM, args []Value) {
			vm.stack = append(vm.stack, vm.g.clone())
		},
		"Q": func(vm *contentVM, args []Value) {
			n := len(vm.stack)
			if n == 0 {
				logger.Debug("Q with empty graphics stack")
				return
			}
			vm.g = vm.stack[n-1]
			vm.stack = vm.stack[:n-1]
			vm.refont()
		},
		"cm": func(vm *contentVM, args []Value) {
			m := matrixOperand(vm, "cm", args)
			vm.g.CTM = m.Mul(vm.g.CTM)
		},

		// general graphics state
		"w": func(vm *contentVM, args []Value) {
			vm.g.lineWidth = oneNumber(vm, "w", args)
		},
		"J": func(vm *contentVM, args []Value) {
			vm.g.lineCap = int(oneNumber(vm, "J", args))
		},
		"j": func(vm *contentVM, args []Value) {
			vm.g.lineJoin = int(oneNumber(vm, "j", args))
		},
		"M": func(vm *contentVM, args []Value) {
			vm.g.miterLimit = oneNumber(vm, "M", args)
		},
		"d": func(vm *contentVM, args []Value) {
			if len(args) != 2 {
				vm.invalid("d", args)
			}
			arr := args[0]
			dash := make([]float64, 0, arr.Len())
			for i := 0; i < arr.Len(); i++ {
				dash = append(dash, arr.Index(i).Float64())
			}
			vm.g.dashArray = dash
			vm.g.dashPhase = args[1].Float64()
		},
		"ri": func(vm *contentVM, args []Value) {
			if len(args) != 1 {
				vm.invalid("ri", args)
			}
			vm.g.intent = args[0].Name()
		},
		"i": func(vm *contentVM, args []Value) {
			vm.g.flatness = oneNumber(vm, "i", args)
		},
		"gs": func(vm *contentVM, args []Value) {
			if len(args) != 1 {
				vm.invalid("gs", args)
			}
			vm.applyExtGState(args[0].Name())
		},

		// text objects
		"BT": func(vm *contentVM, args []Value) {
			if vm.inText {
				raise(&Error{Kind: ErrUnbalancedTextObject, Op: "BT", msg: "nested BT"})
			}
			vm.inText = true
			vm.g.ts.Tm = identityMatrix
			vm.g.ts.Tlm = identityMatrix
			vm.sink.BeginText()
		},
		"ET": func(vm *contentVM, args []Value) {
			if !vm.inText {
				raise(&Error{Kind: ErrUnbalancedTextObject, Op: "ET", msg: "ET outside text object"})
			}
			vm.inText = false
			vm.sink.EndText()
		},

		// text state
		"Tc": func(vm *contentVM, args []Value) {
			vm.g.ts.Tc = oneNumber(vm, "Tc", args)
		},
		"Tw": func(vm *contentVM, args []Value) {
			vm.g.ts.Tw = oneNumber(vm, "Tw", args)
		},
		"Tz": func(vm *contentVM, args []Value) {
			vm.g.ts.Th = oneNumber(vm, "Tz", args) / 100
		},
		"TL": func(vm *contentVM, args []Value) {
			vm.g.ts.Tl = oneNumber(vm, "TL", args)
		},
		"Tf": func(vm *contentVM, args []Value) {
			if len(args) != 2 {
				vm.invalid("Tf", args)
			}
			vm.g.ts.Tf = args[0].Name()
			vm.g.ts.Tfs = args[1].Float64()
			vm.refont()
		},
		"Tr": func(vm *contentVM, args []Value) {
			vm.g.ts.Tmode = int(oneNumber(vm, "Tr", args))
		},
		"Ts": func(vm *contentVM, args []Value) {
			vm.g.ts.Trise = oneNumber(vm, "Ts", args)
		},

		// text positioning
		"Td": func(vm *contentVM, args []Value) {
			if len(args) != 2 {
				vm.invalid("Td", args)
			}
			vm.td(args[0].Float64(), args[1].Float64())
		},
		"TD": func(vm *contentVM, args []Value) {
			if len(args) != 2 {
				vm.invalid("TD", args)
			}
			vm.g.ts.Tl = -args[1].Float64()
			vm.td(args[0].Float64(), args[1].Float64())
		},
		"Tm": func(vm *contentVM, args []Value) {
			m := matrixOperand(vm, "Tm", args)
			vm.g.ts.Tm = m
			vm.g.ts.Tlm = m
		},
		"T*": func(vm *contentVM, args []Value) {
			vm.td(0, -vm.g.ts.Tl)
		},

		// text showing
		"Tj": func(vm *contentVM, args []Value) {
			if len(args) != 1 {
				vm.invalid("Tj", args)
			}
			vm.showText(args[0].RawString())
		},
		"'": func(vm *contentVM, args []Value) {
			if len(args) != 1 {
				vm.invalid("'", args)
			}
			vm.td(0, -vm.g.ts.Tl)
			vm.showText(args[0].RawString())
		},
		"\"": func(vm *contentVM, args []Value) {
			if len(args) != 3 {
				vm.invalid("\"", args)
			}
			vm.g.ts.Tw = args[0].Float64()
			vm.g.ts.Tc = args[1].Float64()
			vm.td(0, -vm.g.ts.Tl)
			vm.showText(args[2].RawString())
		},
		"TJ": func(vm *contentVM, args []Value) {
			if len(args) != 1 {
				vm.invalid("TJ", args)
			}
			v := args[0]
			for i := 0; i < v.Len(); i++ {
				x := v.Index(i)
				switch x.Kind() {
				case String:
					vm.showText(x.RawString())
				case Integer, Real:
					// positive kern shifts the cursor left
					ts := &vm.g.ts
					tx := -x.Float64() / 1000 * ts.Tfs * ts.Th
					ts.Tm = translation(tx, 0).Mul(ts.Tm)
					vm.sink.MoveCursor(ts.Tm)
				}
			}
		},

		// path construction we surface to sinks
		"re": func(vm *contentVM, args []Value) {
			if len(args) != 4 {
				vm.invalid("re", args)
			}
			x, y := args[0].Float64(), args[1].Float64()
			w, h := args[2].Float64(), args[3].Float64()
			vm.sink.Rect(Rect{Point{x, y}, Point{x + w, y + h}})
		},
	}
}

func oneNumber(vm *contentVM, op string, args []Value) float64 {
	if len(args) != 1 {
		vm.invalid(op, args)
	}
	return args[0].Float64()
}

func matrixOperand(vm *contentVM, op string, args []Value) Matrix {
	if len(args) != 6 {
		vm.invalid(op, args)
	}
	return Matrix{
		args[0].Float64(), args[1].Float64(),
		args[2].Float64(), args[3].Float64(),
		args[4].Float64(), args[5].Float64(),
	}
}

func (vm *contentVM) invalid(op string, args []Value) {
	raise(&Error{Kind: ErrInvalidOperand, Op: op,
		msg: fmt.Sprintf("got %d operands", len(args))})
}

// td implements the Td positioning rule shared by Td, TD, T*, ', and ".
func (vm *contentVM) td(tx, ty float64) {
	ts := &vm.g.ts
	ts.Tlm = translation(tx, ty).Mul(ts.Tlm)
	ts.Tm = ts.Tlm
}

// refont rebinds the cached font and encoder after Tf or Q.
func (vm *contentVM) refont() {
	if vm.g.ts.Tf == "" {
		vm.font = nil
		vm.enc = &nopEncoder{}
		return
	}
	f, ok := vm.fonts[vm.g.ts.Tf]
	if !ok {
		raise(&Error{Kind: ErrUnknownFont, Op: vm.g.ts.Tf,
			msg: "font is not in the page resources"})
	}
	vm.font = f
	vm.enc = f.Encoder()
}

// applyExtGState copies the named ExtGState dictionary's fields onto the
// graphics state.
func (vm *contentVM) applyExtGState(gsname string) {
	ext := vm.page.Resources().Key("ExtGState").Key(gsname)
	if ext.Kind() != Dict {
		logger.Debug(fmt.Sprintf("gs: no ExtGState named %q", gsname))
		return
	}
	if v := ext.Key("LW"); !v.IsNull() {
		vm.g.lineWidth = v.Float64()
	}
	if v := ext.Key("LC"); !v.IsNull() {
		vm.g.lineCap = int(v.Int64())
	}
	if v := ext.Key("LJ"); !v.IsNull() {
		vm.g.lineJoin = int(v.Int64())
	}
	if v := ext.Key("ML"); !v.IsNull() {
		vm.g.miterLimit = v.Float64()
	}
	if v := ext.Key("RI"); !v.IsNull() {
		vm.g.intent = v.Name()
	}
	if v := ext.Key("FL"); !v.IsNull() {
		vm.g.flatness = v.Float64()
	}
	if v := ext.Key("TK"); !v.IsNull() {
		vm.g.ts.Tk = v.Bool()
	}
	if v := ext.Key("Font"); v.Kind() == Array && v.Len() == 2 {
		vm.g.ts.Tfs = v.Index(1).Float64()
	}
}

// trm computes the current text rendering matrix.
func (vm *contentVM) trm() Matrix {
	ts := vm.g.ts
	return Matrix{ts.Tfs * ts.Th, 0, 0, ts.Tfs, 0, ts.Trise}.Mul(ts.Tm).Mul(vm.g.CTM)
}

// showText renders one string operand: it advances the text matrix by the
// accumulated glyph widths and reports the run to the sink.
func (vm *contentVM) showText(raw string) {
	if !vm.inText {
		raise(&Error{Kind: ErrUnbalancedTextObject, msg: "text shown outside BT/ET"})
	}
	if vm.font == nil {
		raise(&Error{Kind: ErrUnknownFont, msg: "text shown before Tf"})
	}
	ts := &vm.g.ts
	f := vm.font
	sx, _ := f.GlyphScale()

	before := vm.trm()
	tmBefore := ts.Tm

	adv := 0.0
	for i := 0; i < len(raw); i++ {
		w0 := f.Width(int(raw[i])) * sx
		a := w0*ts.Tfs + ts.Tc
		if raw[i] == ' ' {
			a += ts.Tw
		}
		adv += a
	}
	adv *= ts.Th
	ts.Tm = translation(adv, 0).Mul(ts.Tm)

	scale := tmBefore.A * vm.g.CTM.A
	if scale == 0 {
		scale = 1
	}
	spaceW := f.SpaceWidth() * sx * ts.Tfs * ts.Th * scale
	avgW := spaceW
	if aw := f.AvgWidth(); aw != 0 {
		avgW = aw * sx * ts.Tfs * ts.Th * scale
	}

	vm.sink.Text(TextRun{
		Raw:        raw,
		Text:       vm.enc.Decode(raw),
		FontName:   trimFontSubsetTag(f.BaseFont()),
		FontSize:   ts.Tfs,
		Before:     before,
		After:      vm.trm(),
		Tm:         tmBefore,
		Rise:       ts.Trise,
		Leading:    ts.Tl,
		SpaceWidth: spaceW,
		AvgWidth:   avgW,
	})
}

// ContentEvents executes the page's content streams and delivers the VM
// event stream to sink. Unknown operators are reported once per name and
// otherwise ignored; operand and text-object violations surface as typed
// errors.
func (p Page) ContentEvents(sink ContentSink) (err error) {
	defer recoverError(&err)

	if p.V.IsNull() || p.V.Key("Contents").IsNull() {
		return nil
	}
	vm := &contentVM{
		page:   p,
		g:      defaultGState(),
		fonts:  cacheFonts(&p),
		enc:    &nopEncoder{},
		sink:   sink,
		warned: make(map[string]bool),
	}

	interpretContent(p.V.r, p.V.ptr, p.contentReader(), func(stk *Stack, op string) {
		n := stk.Len()
		args := make([]Value, n)
		for i := n - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}
		fn, ok := contentOps[op]
		if !ok {
			if !vm.warned[op] {
				vm.warned[op] = true
				logger.Debug(fmt.Sprintf("content: ignoring operator %q", op))
			}
			return
		}
		fn(vm, args)
	})

	if vm.inText {
		return &Error{Kind: ErrUnbalancedTextObject, msg: "content stream ends inside BT"}
	}
	if len(vm.stack) != 0 {
		logger.Debug(fmt.Sprintf("content stream ends with %d unmatched q", len(vm.stack)))
	}
	return nil
}
