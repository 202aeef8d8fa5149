// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package reader

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sassoftware/viya-pdf-reader/logger"
)

// A Page represents a single page in a PDF file.
// The methods interpret a Page dictionary stored in V.
type Page struct {
	V Value
}

// Page returns the page for the given page number.
// Page numbers are indexed starting at 1, not 0.
// If the page is not found, Page returns a Page with p.V.IsNull().
func (r *Reader) Page(num int) Page {
	logger.Debug(fmt.Sprintf("Reading Page %d", num), true)
	num-- // now 0-indexed
	page := r.Trailer().Key("Root").Key("Pages")
Search:
	for page.Key("Type").Name() == "Pages" {
		count := int(page.Key("Count").Int64())
		if count < num {
			return Page{}
		}
		kids := page.Key("Kids")
		for i := 0; i < kids.Len(); i++ {
			kid := kids.Index(i)
			if kid.Key("Type").Name() == "Pages" {
				c := int(kid.Key("Count").Int64())
				if num < c {
					page = kid
					continue Search
				}
				num -= c
				continue
			}
			if kid.Key("Type").Name() == "Page" {
				if num == 0 {
					return Page{kid}
				}
				num--
			}
		}
		break
	}
	return Page{}
}

// NumPage returns the number of pages in the PDF file.
func (r *Reader) NumPage() int {
	return int(r.Trailer().Key("Root").Key("Pages").Key("Count").Int64())
}

// Pages returns every page in the document, flattening the page tree
// depth-first, left to right.
func (r *Reader) Pages() []Page {
	root := r.Trailer().Key("Root").Key("Pages")
	var out []Page
	seen := make(map[objptr]bool) // guard against cyclic trees
	var walk func(node Value)
	walk = func(node Value) {
		if node.IsNull() || seen[node.ptr] {
			return
		}
		seen[node.ptr] = true
		switch node.Key("Type").Name() {
		case "Pages":
			kids := node.Key("Kids")
			for i := 0; i < kids.Len(); i++ {
				walk(kids.Index(i))
			}
		case "Page":
			out = append(out, Page{node})
		}
	}
	walk(root)
	return out
}

// findInherited walks the Parent chain looking for the first node that
// carries key with a non-null value.
func (p Page) findInherited(key string) Value {
	for v := p.V; !v.IsNull(); v = v.Key("Parent") {
		if r := v.Key(key); !r.IsNull() {
			return r
		}
	}
	return Value{}
}

// Resources returns the resources dictionary associated with the page.
func (p Page) Resources() Value {
	return p.findInherited("Resources")
}

// MediaBox returns the page's media box, inherited from the page tree
// when the leaf does not carry its own.
func (p Page) MediaBox() Value {
	return p.findInherited("MediaBox")
}

// CropBox returns the page's crop box; when no node in the chain carries
// one it defaults to the media box.
func (p Page) CropBox() Value {
	if v := p.findInherited("CropBox"); !v.IsNull() {
		return v
	}
	return p.MediaBox()
}

// Rotate returns the page's rotation in degrees, default 0.
func (p Page) Rotate() int {
	return int(p.findInherited("Rotate").Int64())
}

// Fonts returns a list of the fonts associated with the page.
func (p Page) Fonts() []string {
	return p.Resources().Key("Font").Keys()
}

// Font returns the font with the given name associated with the page.
func (p Page) Font(name string) Font {
	return Font{p.Resources().Key("Font").Key(name), nil}
}

// contentReader concatenates the page's content streams. When Contents is
// an array the decoded payloads are joined with an interposed newline so
// tokens can never fuse across stream boundaries.
func (p Page) contentReader() io.Reader {
	strm := p.V.Key("Contents")
	switch strm.Kind() {
	case Stream:
		return strings.NewReader(string(strm.Data()))
	case Array:
		var parts []io.Reader
		for i := 0; i < strm.Len(); i++ {
			seg := strm.Index(i)
			if seg.Kind() != Stream {
				continue
			}
			if len(parts) > 0 {
				parts = append(parts, strings.NewReader("\n"))
			}
			parts = append(parts, strings.NewReader(string(seg.Data())))
		}
		return io.MultiReader(parts...)
	}
	return strings.NewReader("")
}

// A Text represents a single piece of text drawn on a page.
type Text struct {
	Font     string  // the font used
	FontSize float64 // the font size, in points (1/72 of an inch)
	X        float64 // the X coordinate, in points, increasing left to right
	Y        float64 // the Y coordinate, in points, increasing bottom to top
	W        float64 // the width of the text, in points
	S        string  // the actual UTF-8 text
}

// Content describes the basic content on a page: the text and any drawn rectangles.
type Content struct {
	Text []Text
	Rect []Rect
}

// contentCollector is the ContentSink behind Content: one Text entry per
// showing operation, plus the rectangles.
type contentCollector struct {
	text []Text
	rect []Rect
}

func (c *contentCollector) BeginText()       {}
func (c *contentCollector) EndText()         {}
func (c *contentCollector) MoveCursor(Matrix) {}
func (c *contentCollector) Rect(r Rect)      { c.rect = append(c.rect, r) }
func (c *contentCollector) Text(run TextRun) {
	c.text = append(c.text, Text{
		Font:     run.FontName,
		FontSize: run.FontSize,
		X:        run.Before.E,
		Y:        run.Before.F,
		W:        run.After.E - run.Before.E,
		S:        run.Text,
	})
}

// Content returns the page's content.
func (p Page) Content() Content {
	var c contentCollector
	if err := p.ContentEvents(&c); err != nil {
		logger.Error(err.Error())
		return Content{}
	}
	return Content{c.text, c.rect}
}

// simpleSink is the plain concatenation renderer: runs in byte order with a
// newline between text objects.
type simpleSink struct {
	sb strings.Builder
}

func (s *simpleSink) BeginText() {
	if s.sb.Len() > 0 {
		s.sb.WriteString("\n")
	}
}
func (s *simpleSink) EndText()          {}
func (s *simpleSink) MoveCursor(Matrix) {}
func (s *simpleSink) Rect(Rect)         {}
func (s *simpleSink) Text(run TextRun)  { s.sb.WriteString(run.Text) }

// GetPlainText returns the page's text without layout, in content order.
// The fonts argument is not used; nil is fine.
func (p Page) GetPlainText(fonts map[string]*Font) (result string, err error) {
	defer recoverError(&err)
	if p.V.IsNull() || p.V.Key("Contents").IsNull() {
		return "", nil
	}
	var s simpleSink
	if err := p.ContentEvents(&s); err != nil {
		return "", err
	}
	return s.sb.String(), nil
}

// GetPlainText returns all the text in the PDF file, page by page.
func (r *Reader) GetPlainText() (io.Reader, error) {
	var sb strings.Builder
	for _, p := range r.Pages() {
		text, err := p.GetPlainText(nil)
		if err != nil {
			return strings.NewReader(""), err
		}
		sb.WriteString(text)
	}
	return strings.NewReader(sb.String()), nil
}

// GetStyledTexts returns the document's text runs coalesced into sentences
// that share font, size, and baseline.
func (r *Reader) GetStyledTexts() (sentences []Text, err error) {
	defer recoverError(&err)
	for _, p := range r.Pages() {
		if p.V.IsNull() || p.V.Key("Contents").IsNull() {
			continue
		}
		var last Text
		for _, text := range p.Content().Text {
			if last == (Text{}) {
				last = text
				continue
			}
			if IsSameSentence(last, text) {
				last.S = last.S + text.S
			} else {
				sentences = append(sentences, last)
				last = text
			}
		}
		if len(last.S) > 0 {
			sentences = append(sentences, last)
		}
	}
	return sentences, nil
}

// Column represents the contents of a column
type Column struct {
	Position int64
	Content  TextVertical
}

// Columns is a list of column
type Columns []*Column

// GetTextByColumn returns the page's text grouped by column.
func (p Page) GetTextByColumn() (Columns, error) {
	result := Columns{}
	err := p.ContentEvents(sinkFunc(func(run TextRun) {
		x, y := run.Before.E, run.Before.F
		var col *Column
		for _, c := range result {
			if int64(x) == c.Position {
				col = c
				break
			}
		}
		if col == nil {
			col = &Column{Position: int64(x)}
			result = append(result, col)
		}
		col.Content = append(col.Content, Text{
			Font: run.FontName, FontSize: run.FontSize,
			X: x, Y: y, W: run.After.E - run.Before.E, S: run.Text,
		})
	}))
	if err != nil {
		return Columns{}, err
	}
	for _, column := range result {
		sort.Sort(column.Content)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Position < result[j].Position
	})
	return result, nil
}

// Row represents the contents of a row
type Row struct {
	Position int64
	Content  TextHorizontal
}

// Rows is a list of rows
type Rows []*Row

// GetTextByRow returns the page's text grouped by rows.
func (p Page) GetTextByRow() (Rows, error) {
	result := Rows{}
	err := p.ContentEvents(sinkFunc(func(run TextRun) {
		x, y := run.Before.E, run.Before.F
		var row *Row
		for _, r := range result {
			if int64(y) == r.Position {
				row = r
				break
			}
		}
		if row == nil {
			row = &Row{Position: int64(y)}
			result = append(result, row)
		}
		row.Content = append(row.Content, Text{
			Font: run.FontName, FontSize: run.FontSize,
			X: x, Y: y, W: run.After.E - run.Before.E, S: run.Text,
		})
	}))
	if err != nil {
		return Rows{}, err
	}
	for _, row := range result {
		sort.Sort(row.Content)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Position > result[j].Position
	})
	return result, nil
}

// sinkFunc adapts a text-run callback to the ContentSink interface.
type sinkFunc func(run TextRun)

func (f sinkFunc) BeginText()        {}
func (f sinkFunc) EndText()          {}
func (f sinkFunc) MoveCursor(Matrix) {}
func (f sinkFunc) Rect(Rect)         {}
func (f sinkFunc) Text(run TextRun)  { f(run) }

// cacheFonts creates a one-time map of fonts for a page to avoid
// repeatedly parsing font charmaps.
func cacheFonts(page *Page) map[string]*Font {
	fonts := make(map[string]*Font)
	for _, name := range page.Fonts() {
		if _, exists := fonts[name]; !exists {
			f := page.Font(name)
			fonts[name] = &f
		}
	}
	return fonts
}

// TextVertical implements sort.Interface for sorting
// a slice of Text values in vertical order, top to bottom,
// and then left to right within a line.
type TextVertical []Text

func (x TextVertical) Len() int      { return len(x) }
func (x TextVertical) Swap(i, j int) { x[i], x[j] = x[j], x[i] }
func (x TextVertical) Less(i, j int) bool {
	if x[i].Y != x[j].Y {
		return x[i].Y > x[j].Y
	}
	return x[i].X < x[j].X
}

// TextHorizontal implements sort.Interface for sorting
// a slice of Text values in horizontal order, left to right,
// and then top to bottom within a column.
type TextHorizontal []Text

func (x TextHorizontal) Len() int      { return len(x) }
func (x TextHorizontal) Swap(i, j int) { x[i], x[j] = x[j], x[i] }
func (x TextHorizontal) Less(i, j int) bool {
	if x[i].X != x[j].X {
		return x[i].X < x[j].X
	}
	return x[i].Y > x[j].Y
}

// An Outline is a tree describing the outline (also known as the table of contents)
// of a document.
type Outline struct {
	Title string    // title for this element
	Child []Outline // child elements
}

// Outline returns the document outline.
// The Outline returned is the root of the outline tree and typically has no Title itself.
// That is, the children of the returned root are the top-level entries in the outline.
func (r *Reader) Outline() Outline {
	return buildOutline(r.Trailer().Key("Root").Key("Outlines"))
}

func buildOutline(entry Value) Outline {
	var x Outline
	x.Title = entry.Key("Title").Text()
	for child := entry.Key("First"); child.Kind() == Dict; child = child.Key("Next") {
		x.Child = append(x.Child, buildOutline(child))
	}
	return x
}
