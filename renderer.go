// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package reader

// The line renderer. Each text-showing run becomes a TextBlock assigned to
// a line keyed by the text matrix's slope and intercept; after the page is
// executed, blocks within a line are sorted by their left edge and joined
// with spacing derived from the gap and the leading block's space width.
// Ignoring scale, a baseline is identified by slope = b/a and
// intercept = f - slope*e, both rounded to one decimal so visually
// indistinguishable placements land on the same line. Writers that fake
// sub/superscripts with text rise instead of a line move are folded back
// onto their parent baseline via a rise correction.

import (
	"math"
	"sort"
	"strings"
)

// ExtractOptions configures Page.ExtractText.
type ExtractOptions struct {
	// FixedWidth bases inter-block spacing on the font's average glyph
	// width rather than the space width, which suits tabular layouts.
	FixedWidth bool
	// TabSpaces, when nonzero, replaces any run of that many or more
	// computed spaces with a single tab.
	TabSpaces int
	// CoalesceCrossedLines merges a line into its upper neighbour when
	// their vertical extents overlap, re-joining multi-font lines.
	CoalesceCrossedLines bool
}

type lineKey struct {
	slope     float64
	intercept float64
}

// A TextBlock accumulates the output of a single text-showing operation.
type textBlock struct {
	xmin       float64
	width      float64
	text       string
	spaceWidth float64
	fontSize   float64
}

type textLine struct {
	key    lineKey
	blocks []*textBlock
	height float64 // tallest font size seen on the line
}

// lineRenderer is the ContentSink that builds the line-grouped page text.
type lineRenderer struct {
	opts  ExtractOptions
	lines map[lineKey]*textLine
	order []*textLine
}

func newLineRenderer(opts ExtractOptions) *lineRenderer {
	return &lineRenderer{opts: opts, lines: make(map[lineKey]*textLine)}
}

func (lr *lineRenderer) BeginText()        {}
func (lr *lineRenderer) EndText()          {}
func (lr *lineRenderer) MoveCursor(Matrix) {}
func (lr *lineRenderer) Rect(Rect)         {}

func (lr *lineRenderer) Text(run TextRun) {
	if run.Text == "" {
		return
	}
	key := lineKeyFor(run)
	line := lr.lines[key]
	if line == nil {
		line = &textLine{key: key}
		lr.lines[key] = line
		lr.order = append(lr.order, line)
	}
	sw := run.SpaceWidth
	if lr.opts.FixedWidth && run.AvgWidth > 0 {
		sw = run.AvgWidth
	}
	if sw <= 0 {
		sw = run.FontSize / 2
	}
	if sw <= 0 {
		sw = 1
	}
	line.blocks = append(line.blocks, &textBlock{
		xmin:       run.Before.E,
		width:      run.After.E - run.Before.E,
		text:       run.Text,
		spaceWidth: sw,
		fontSize:   run.FontSize,
	})
	if run.FontSize > line.height {
		line.height = run.FontSize
	}
}

// lineKeyFor derives the baseline identity of a run. Rise is folded back
// into the intercept when it is large enough to be a faked line move.
func lineKeyFor(run TextRun) lineKey {
	m := run.Tm
	slope := 0.0
	if m.A != 0 {
		slope = m.B / m.A
	}
	lineHeight := run.Leading
	if lineHeight == 0 {
		lineHeight = run.FontSize
	}
	yAdj := 0.0
	if lineHeight > 0 && run.Rise <= -lineHeight {
		yAdj = run.Rise
	}
	return lineKey{
		slope:     round1(slope),
		intercept: round1(m.F + yAdj - slope*m.E),
	}
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// emit renders the accumulated lines top to bottom (descending intercept),
// joining blocks within each line with computed spacing.
func (lr *lineRenderer) emit() string {
	lines := append([]*textLine(nil), lr.order...)
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].key.intercept != lines[j].key.intercept {
			return lines[i].key.intercept > lines[j].key.intercept
		}
		return lines[i].key.slope < lines[j].key.slope
	})

	if lr.opts.CoalesceCrossedLines {
		lines = coalesceLines(lines)
	}

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, lr.joinBlocks(line))
	}
	return strings.Join(out, "\n")
}

// coalesceLines merges a line into its upper neighbour when its top edge
// crosses the neighbour's baseline.
func coalesceLines(lines []*textLine) []*textLine {
	if len(lines) < 2 {
		return lines
	}
	out := lines[:1]
	for _, line := range lines[1:] {
		prev := out[len(out)-1]
		top := line.key.intercept + line.height*0.7
		if line.key.slope == prev.key.slope && top > prev.key.intercept {
			prev.blocks = append(prev.blocks, line.blocks...)
			if line.height > prev.height {
				prev.height = line.height
			}
			continue
		}
		out = append(out, line)
	}
	return out
}

// joinBlocks orders a line's blocks by left edge and fills the gaps with
// spaces (or a tab past the configured threshold).
func (lr *lineRenderer) joinBlocks(line *textLine) string {
	blocks := line.blocks
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].xmin < blocks[j].xmin
	})
	var sb strings.Builder
	for i, b := range blocks {
		if i > 0 {
			prev := blocks[i-1]
			gap := b.xmin - (prev.xmin + prev.width)
			sb.WriteString(lr.spacing(gap, prev.spaceWidth))
		}
		sb.WriteString(b.text)
	}
	return sb.String()
}

func (lr *lineRenderer) spacing(gap, spaceWidth float64) string {
	if gap <= 0 || spaceWidth <= 0 {
		return ""
	}
	n := int(math.Round(gap / spaceWidth))
	if n <= 0 {
		return ""
	}
	if lr.opts.TabSpaces > 0 && n >= lr.opts.TabSpaces {
		return "\t"
	}
	return strings.Repeat(" ", n)
}

// ExtractText runs the page's content through the line renderer and returns
// the line-grouped text, top to bottom.
func (p Page) ExtractText(opts ExtractOptions) (text string, err error) {
	defer recoverError(&err)
	if p.V.IsNull() || p.V.Key("Contents").IsNull() {
		return "", nil
	}
	lr := newLineRenderer(opts)
	if err := p.ContentEvents(lr); err != nil {
		return "", err
	}
	return lr.emit(), nil
}

// ExtractText extracts the whole document with the line renderer, pages
// separated by single newlines.
func (r *Reader) ExtractText(opts ExtractOptions) (string, error) {
	var pages []string
	for _, p := range r.Pages() {
		text, err := p.ExtractText(opts)
		if err != nil {
			return "", err
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n"), nil
}
