// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package reader

import (
	"io"

	"github.com/sassoftware/viya-pdf-reader/logger"
)

// A Stack represents a stack of values.
type Stack struct {
	stack []Value
}

// Len returns the number of values on the stack.
func (stk *Stack) Len() int {
	return len(stk.stack)
}

// Push pushes v onto the stack.
func (stk *Stack) Push(v Value) {
	stk.stack = append(stk.stack, v)
}

// Pop removes and returns the top value on the stack.
// Popping an empty stack returns the null Value.
func (stk *Stack) Pop() Value {
	n := len(stk.stack)
	if n == 0 {
		return Value{}
	}
	v := stk.stack[n-1]
	stk.stack[n-1] = Value{}
	stk.stack = stk.stack[:n-1]
	return v
}

func newDict() Value {
	return Value{data: make(dict)}
}

// Interpret interprets the content in a stream as a basic PostScript
// program, pushing values onto a stack and then calling the do function
// for each operator. Both ToUnicode CMaps and page content streams are
// executed this way; the former additionally uses the small dictionary
// machinery (dict/begin/end/def) that CMap prologues rely on.
//
// Interpret must not be used with untrusted streams beyond the degree of
// trust already extended by parsing the document.
func Interpret(strm Value, do func(stk *Stack, op string)) {
	rd := strm.Reader()
	defer rd.Close()
	interpretContent(strm.r, strm.ptr, rd, do)
}

// interpretContent is the io.Reader form of Interpret, used for page
// content where several streams are concatenated before lexing.
func interpretContent(r *Reader, ptr objptr, rd io.Reader, do func(stk *Stack, op string)) {
	b := newBuffer(rd, 0).contentMode()
	var stk Stack
	var dicts []dict
Reading:
	for {
		tok := b.readToken()
		if tok == io.EOF {
			break
		}
		if kw, ok := tok.(keyword); ok {
			switch kw {
			case "null", "[", "]", "<<", ">>":
				// handled by readObject below
			default:
				for i := len(dicts) - 1; i >= 0; i-- {
					if v, ok := dicts[i][name(kw)]; ok {
						stk.Push(Value{r, ptr, v})
						continue Reading
					}
				}
				do(&stk, string(kw))
				continue
			case "dict":
				stk.Pop()
				stk.Push(newDict())
				continue
			case "currentdict":
				if len(dicts) == 0 {
					logger.Error("no current dictionary")
					raise(pdfErrorf(ErrUnexpectedToken, "currentdict with empty dictionary stack"))
				}
				stk.Push(Value{data: dicts[len(dicts)-1]})
				continue
			case "begin":
				d := stk.Pop()
				if d.Kind() != Dict {
					logger.Error("begin: not a dictionary")
					raise(pdfErrorf(ErrUnexpectedToken, "begin does not follow a dictionary"))
				}
				dicts = append(dicts, d.data.(dict))
				continue
			case "end":
				if len(dicts) <= 0 {
					logger.Error("end with empty dictionary stack")
					raise(pdfErrorf(ErrUnexpectedToken, "end with empty dictionary stack"))
				}
				dicts = dicts[:len(dicts)-1]
				continue
			case "def":
				if len(dicts) <= 0 {
					logger.Error("def with empty dictionary stack")
					raise(pdfErrorf(ErrUnexpectedToken, "def with empty dictionary stack"))
				}
				val := stk.Pop()
				key, ok := stk.Pop().data.(name)
				if !ok {
					raise(pdfErrorf(ErrUnexpectedToken, "def of non-name"))
				}
				dicts[len(dicts)-1][key] = val.data
				continue
			case "pop":
				stk.Pop()
				continue
			}
		}
		b.unreadToken(tok)
		obj := b.readObject()
		stk.Push(Value{r, ptr, obj})
	}
}
