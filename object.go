// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// The PDF value model: the Value sum type, its accessors, and lazy
// resolution of indirect objects through the cross-reference table.

package reader

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	"github.com/sassoftware/viya-pdf-reader/logger"
)

// Internal object representations. An object is one of:
//
//	nil, bool, int64, float64, string, name, dict, array, stream,
//	objptr, objdef
type object interface{}

type name string

type dict map[name]object

type array []object

type stream struct {
	hdr    dict
	ptr    objptr
	offset int64
}

type objptr struct {
	id  uint32
	gen uint16
}

type objdef struct {
	ptr objptr
	obj object
}

// objcache memoizes parsed indirect objects and decoded stream payloads for
// the lifetime of the Reader. A document is nominally single-threaded, but
// the processor fans pages of one Reader out to workers, so the two maps are
// guarded.
type objcache struct {
	mu   sync.Mutex
	objs map[objptr]object
	data map[int64][]byte
}

func newObjcache() *objcache {
	return &objcache{objs: make(map[objptr]object), data: make(map[int64][]byte)}
}

func (c *objcache) lookup(ptr objptr) (object, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	obj, ok := c.objs[ptr]
	return obj, ok
}

func (c *objcache) store(ptr objptr, obj object) object {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.objs[ptr]; ok {
		return prev
	}
	c.objs[ptr] = obj
	return obj
}

func (c *objcache) lookupData(off int64) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[off]
	return b, ok
}

func (c *objcache) storeData(off int64, b []byte) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.data[off]; ok {
		return prev
	}
	c.data[off] = b
	return b
}

// A Value is a single PDF value, such as an integer, dictionary, or array.
// The zero Value is a PDF null (Kind() == Null, IsNull() = true).
type Value struct {
	r    *Reader
	ptr  objptr
	data object
}

// IsNull reports whether the value is a null. It is equivalent to Kind() == Null.
func (v Value) IsNull() bool {
	return v.data == nil
}

// A ValueKind specifies the kind of data underlying a Value.
type ValueKind int

// The PDF value kinds.
const (
	Null ValueKind = iota
	Bool
	Integer
	Real
	String
	Name
	Dict
	Array
	Stream
)

// Kind reports the kind of value underlying v.
func (v Value) Kind() ValueKind {
	switch v.data.(type) {
	default:
		return Null
	case bool:
		return Bool
	case int64:
		return Integer
	case float64:
		return Real
	case string:
		return String
	case name:
		return Name
	case dict:
		return Dict
	case array:
		return Array
	case stream:
		return Stream
	}
}

// String returns a textual representation of the value v.
// Note that String is not the accessor for values with Kind() == String.
// To access such values, see RawString, Text, and TextFromUTF16.
func (v Value) String() string {
	return objfmt(v.data)
}

func objfmt(x object) string {
	switch x := x.(type) {
	default:
		return fmt.Sprint(x)
	case string:
		if isPDFDocEncoded(x) {
			return strconv.Quote(pdfDocDecode(x))
		}
		if isUTF16(x) {
			return strconv.Quote(utf16Decode(x[2:]))
		}
		return strconv.Quote(x)
	case name:
		return "/" + string(x)
	case dict:
		var keys []string
		for k := range x {
			keys = append(keys, string(k))
		}
		sort.Strings(keys)
		var buf bytes.Buffer
		buf.WriteString("<<")
		for i, k := range keys {
			elem := x[name(k)]
			if i > 0 {
				buf.WriteString(" ")
			}
			buf.WriteString("/")
			buf.WriteString(k)
			buf.WriteString(" ")
			buf.WriteString(objfmt(elem))
		}
		buf.WriteString(">>")
		return buf.String()

	case array:
		var buf bytes.Buffer
		buf.WriteString("[")
		for i, elem := range x {
			if i > 0 {
				buf.WriteString(" ")
			}
			buf.WriteString(objfmt(elem))
		}
		buf.WriteString("]")
		return buf.String()

	case stream:
		return fmt.Sprintf("%v@%d", objfmt(x.hdr), x.offset)

	case objptr:
		return fmt.Sprintf("%d %d R", x.id, x.gen)

	case objdef:
		return fmt.Sprintf("{%d %d obj}%v", x.ptr.id, x.ptr.gen, objfmt(x.obj))
	}
}

// Bool returns v's boolean value.
// If v.Kind() != Bool, Bool returns false.
func (v Value) Bool() bool {
	x, ok := v.data.(bool)
	if !ok {
		return false
	}
	return x
}

// Int64 returns v's int64 value.
// If v.Kind() != Integer, Int64 returns 0.
func (v Value) Int64() int64 {
	x, ok := v.data.(int64)
	if !ok {
		return 0
	}
	return x
}

// Float64 returns v's float64 value, converting from integer if necessary.
// If v.Kind() != Real and v.Kind() != Integer, Float64 returns 0.
func (v Value) Float64() float64 {
	x, ok := v.data.(float64)
	if !ok {
		x, ok := v.data.(int64)
		if ok {
			return float64(x)
		}
		return 0
	}
	return x
}

// RawString returns v's string value.
// If v.Kind() != String, RawString returns the empty string.
func (v Value) RawString() string {
	x, ok := v.data.(string)
	if !ok {
		return ""
	}
	return x
}

// Text returns v's string value interpreted as a “text string” (defined in
// the PDF spec) and converted to UTF-8: UTF-16BE when the string carries the
// FE FF byte-order mark, PDFDocEncoding otherwise.
// If v.Kind() != String, Text returns the empty string.
func (v Value) Text() string {
	x, ok := v.data.(string)
	if !ok {
		return ""
	}
	if isPDFDocEncoded(x) {
		return pdfDocDecode(x)
	}
	if isUTF16(x) {
		return utf16Decode(x[2:])
	}
	return x
}

// TextFromUTF16 returns v's string value interpreted as big-endian UTF-16
// and then converted to UTF-8.
// If v.Kind() != String or if the data is not valid UTF-16, TextFromUTF16
// returns the empty string.
func (v Value) TextFromUTF16() string {
	x, ok := v.data.(string)
	if !ok {
		return ""
	}
	if len(x)%2 == 1 || x == "" {
		return ""
	}
	return utf16Decode(x)
}

// Name returns v's name value.
// If v.Kind() != Name, Name returns the empty string.
// The returned name does not include the leading slash:
// if v corresponds to the name written using the syntax /Helvetica,
// Name() == "Helvetica".
func (v Value) Name() string {
	x, ok := v.data.(name)
	if !ok {
		return ""
	}
	return string(x)
}

// Key returns the value associated with the given name key in the dictionary v.
// Like the result of the Name method, the key should not include a leading slash.
// If v is a stream, Key applies to the stream's header dictionary.
// If v.Kind() != Dict and v.Kind() != Stream, Key returns a null Value.
// A present key holding null and an absent key both return a null Value;
// use HasKey to distinguish them.
func (v Value) Key(key string) Value {
	x, ok := v.data.(dict)
	if !ok {
		strm, ok := v.data.(stream)
		if !ok {
			return Value{}
		}
		x = strm.hdr
	}
	return v.r.resolve(v.ptr, x[name(key)])
}

// HasKey reports whether the dictionary (or stream header) v contains the
// key, even when the stored value is null. Null and absent are distinct.
func (v Value) HasKey(key string) bool {
	x, ok := v.data.(dict)
	if !ok {
		strm, ok := v.data.(stream)
		if !ok {
			return false
		}
		x = strm.hdr
	}
	_, ok = x[name(key)]
	return ok
}

// Keys returns a sorted list of the keys in the dictionary v.
// If v is a stream, Keys applies to the stream's header dictionary.
// If v.Kind() != Dict and v.Kind() != Stream, Keys returns nil.
func (v Value) Keys() []string {
	x, ok := v.data.(dict)
	if !ok {
		strm, ok := v.data.(stream)
		if !ok {
			return nil
		}
		x = strm.hdr
	}
	keys := []string{} // not nil
	for k := range x {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}

// Index returns the i'th element in the array v.
// If v.Kind() != Array or if i is outside the array bounds,
// Index returns a null Value.
func (v Value) Index(i int) Value {
	x, ok := v.data.(array)
	if !ok || i < 0 || i >= len(x) {
		return Value{}
	}
	return v.r.resolve(v.ptr, x[i])
}

// Len returns the length of the array v.
// If v.Kind() != Array, Len returns 0.
func (v Value) Len() int {
	x, ok := v.data.(array)
	if !ok {
		return 0
	}
	return len(x)
}

// Resolve resolves the indirect object numbered (id, gen) and returns its
// value. Unlike the traversal accessors, which map failures to null Values,
// Resolve surfaces dangling references and parse failures as typed errors.
// Resolution is memoized: a second call returns the same parsed object.
func (r *Reader) Resolve(id uint32, gen uint16) (v Value, err error) {
	defer recoverError(&err)
	ptr := objptr{id, gen}
	if int(id) >= len(r.xref) {
		return Value{}, &Error{Kind: ErrUnknownObject, ID: id, Gen: gen}
	}
	x := r.xref[ptr.id]
	if x.ptr != ptr || (!x.inStream && x.offset == 0) {
		return Value{}, &Error{Kind: ErrUnknownObject, ID: id, Gen: gen}
	}
	return r.resolve(objptr{}, ptr), nil
}

// resolve walks x, chasing an indirect reference through the xref table and
// the object cache. Unknown references resolve to the null Value.
func (r *Reader) resolve(parent objptr, x object) Value {
	if ptr, ok := x.(objptr); ok {
		if ptr.id >= uint32(len(r.xref)) {
			return Value{}
		}
		xref := r.xref[ptr.id]
		if xref.ptr != ptr || !xref.inStream && xref.offset == 0 {
			return Value{}
		}
		if cached, ok := r.cache.lookup(ptr); ok {
			return Value{r, ptr, cached}
		}
		var parsed object
		if xref.inStream {
			parsed = r.readCompressed(ptr, xref)
		} else {
			parsed = r.readUncompressed(ptr, xref)
		}
		x = r.cache.store(ptr, parsed)
		parent = ptr
	}

	switch x := x.(type) {
	case nil, bool, int64, float64, name, dict, array, stream, string:
		return Value{r, parent, x}
	default:
		logger.Error(fmt.Sprintf("unexpected value type %T in resolve", x))
		raise(pdfErrorf(ErrUnexpectedToken, "unexpected value type %T in resolve", x))
		return Value{}
	}
}

// readUncompressed parses an object definition at its recorded file offset.
func (r *Reader) readUncompressed(ptr objptr, x xref) object {
	b := newBuffer(io.NewSectionReader(r.f, x.offset, r.end-x.offset), x.offset)
	obj := b.readObject()
	def, ok := obj.(objdef)
	if !ok {
		logger.Error(fmt.Sprintf("loading %v: found %T instead of objdef", ptr, obj))
		raise(&Error{Kind: ErrUnknownObject, ID: ptr.id, Gen: ptr.gen, Offset: x.offset,
			msg: fmt.Sprintf("found %T instead of object definition", obj)})
	}
	if def.ptr != ptr {
		logger.Error(fmt.Sprintf("loading %v: found %v", ptr, def.ptr))
		raise(&Error{Kind: ErrUnknownObject, ID: ptr.id, Gen: ptr.gen, Offset: x.offset,
			msg: fmt.Sprintf("found object %d %d instead", def.ptr.id, def.ptr.gen)})
	}
	return def.obj
}

// readCompressed extracts an object from its containing object stream
// (Type /ObjStm). The stream payload begins with N pairs "obj_num offset";
// offsets are relative to the header's First field. x.offset carries the
// zero-based index within the stream.
func (r *Reader) readCompressed(ptr objptr, x xref) object {
	strm := r.resolve(objptr{}, x.stream)
	for {
		if strm.Kind() != Stream {
			raise(&Error{Kind: ErrUnknownObject, ID: ptr.id, Gen: ptr.gen,
				msg: fmt.Sprintf("container %d 0 is not a stream", x.stream.id)})
		}
		if strm.Key("Type").Name() != "ObjStm" {
			raise(&Error{Kind: ErrUnknownObject, ID: ptr.id, Gen: ptr.gen,
				msg: "container stream is not an object stream"})
		}
		n := int(strm.Key("N").Int64())
		first := strm.Key("First").Int64()
		if first == 0 {
			raise(&Error{Kind: ErrUnknownObject, ID: ptr.id, Gen: ptr.gen,
				msg: "object stream missing First"})
		}

		b := newBuffer(bytes.NewReader(strm.Data()), 0)
		b.allowEOF = true
		type pair struct {
			id  int64
			off int64
		}
		pairs := make([]pair, 0, n)
		for i := 0; i < n; i++ {
			id, _ := b.readToken().(int64)
			off, _ := b.readToken().(int64)
			pairs = append(pairs, pair{id, off})
		}
		idx := int(x.offset)
		if idx >= 0 && idx < len(pairs) && uint32(pairs[idx].id) == ptr.id {
			b.seekForward(first + pairs[idx].off)
			return b.readObject()
		}
		// Index disagrees with the pair table; fall back to a scan by id.
		for _, p := range pairs {
			if uint32(p.id) == ptr.id {
				b.seekForward(first + p.off)
				return b.readObject()
			}
		}
		ext := strm.Key("Extends")
		if ext.Kind() != Stream {
			logger.Error(fmt.Sprintf("object %d %d not present in object stream", ptr.id, ptr.gen))
			raise(&Error{Kind: ErrUnknownObject, ID: ptr.id, Gen: ptr.gen,
				msg: "object stream has no entry for this object"})
		}
		strm = ext
	}
}

type errorReadCloser struct {
	err error
}

func (e *errorReadCloser) Read([]byte) (int, error) {
	return 0, e.err
}

func (e *errorReadCloser) Close() error {
	return e.err
}

// Reader returns the decoded data contained in the stream v.
// If v.Kind() != Stream, Reader returns a ReadCloser that
// responds to all reads with a “stream not present” error.
func (v Value) Reader() io.ReadCloser {
	x, ok := v.data.(stream)
	if !ok {
		logger.Error("stream not present")
		return &errorReadCloser{pdfErrorf(ErrUnexpectedToken, "stream not present")}
	}
	rd, err := v.rawReader(x)
	if err != nil {
		return &errorReadCloser{err}
	}
	rd, err = applyFilterChain(rd, v)
	if err != nil {
		return &errorReadCloser{err}
	}
	return io.NopCloser(rd)
}

// rawReader returns a reader over the stream's undecoded bytes, verifying
// the declared Length against the closing endstream keyword.
func (v Value) rawReader(x stream) (io.Reader, error) {
	length := v.Key("Length").Int64()
	if x.offset == 0 {
		// stream carried inside an already-decoded object stream payload
		return nil, pdfErrorf(ErrLengthMismatch, "stream has no file offset")
	}
	if err := v.r.checkEndstream(x.offset, length); err != nil {
		return nil, err
	}
	return io.NewSectionReader(v.r.f, x.offset, length), nil
}

// checkEndstream verifies that the endstream keyword follows the declared
// stream extent, tolerating a single optional leading EOL and trailing
// whitespace.
func (r *Reader) checkEndstream(offset, length int64) error {
	buf := make([]byte, 16)
	n, err := r.f.ReadAt(buf, offset+length)
	if n == 0 && err != nil && err != io.EOF {
		return err
	}
	buf = buf[:n]
	i := 0
	if i < len(buf) && buf[i] == '\r' {
		i++
	}
	if i < len(buf) && buf[i] == '\n' {
		i++
	}
	if !bytes.HasPrefix(buf[i:], []byte("endstream")) {
		logger.Error(fmt.Sprintf("stream at %d: Length %d not followed by endstream", offset, length))
		return &Error{Kind: ErrMissingEndstream, Offset: offset,
			msg: fmt.Sprintf("declared Length %d does not reach endstream", length)}
	}
	return nil
}

// Data returns the stream's decoded payload, computing it at most once per
// document. If v is not a stream or decoding fails, Data raises the typed
// error (recovered by exported entry points).
func (v Value) Data() []byte {
	x, ok := v.data.(stream)
	if !ok {
		raise(pdfErrorf(ErrUnexpectedToken, "Data called on %v value", v.Kind()))
	}
	if b, ok := v.r.cache.lookupData(x.offset); ok {
		return b
	}
	rc := v.Reader()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		if e, ok := err.(*Error); ok {
			raise(e)
		}
		raise(&Error{Kind: ErrFilterFailed, ID: x.ptr.id, Gen: x.ptr.gen, Offset: x.offset, cause: err})
	}
	return v.r.cache.storeData(x.offset, b)
}

// DecodedData is the error-returning form of Data for external callers.
func (v Value) DecodedData() (b []byte, err error) {
	defer recoverError(&err)
	return v.Data(), nil
}
