// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package reader

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const xmpSample = `<?xpacket begin="" id="W5M0MpCehiHzreSzNTczkc9d"?>
<x:xmpmeta xmlns:x="adobe:ns:meta/">
 <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
  <rdf:Description rdf:about=""
    xmlns:dc="http://purl.org/dc/elements/1.1/"
    xmlns:pdf="http://ns.adobe.com/pdf/1.3/"
    xmlns:xmp="http://ns.adobe.com/xap/1.0/">
   <dc:title><rdf:Alt><rdf:li xml:lang="x-default">XMP Title</rdf:li></rdf:Alt></dc:title>
   <dc:creator><rdf:Seq><rdf:li>XMP Author</rdf:li></rdf:Seq></dc:creator>
   <pdf:Producer>XMP Producer</pdf:Producer>
   <xmp:CreatorTool>XMP Tool</xmp:CreatorTool>
  </rdf:Description>
 </rdf:RDF>
</x:xmpmeta>
<?xpacket end="w"?>`

func TestStripXMLTags(t *testing.T) {
	in := `<p>Hello <b>World</b> &amp; <i>Gophers</i></p>`
	out := stripXMLTags(in)
	assert.Equal(t, "Hello World &amp; Gophers", out)
}

func TestParseXMPWithXML(t *testing.T) {
	fields, ok := parseXMPWithXML(xmpSample)
	require.True(t, ok)
	assert.Equal(t, "XMP Title", fields.Title)
	assert.Equal(t, "XMP Author", fields.Creator)
	assert.Equal(t, "XMP Producer", fields.Producer)
	assert.Equal(t, "XMP Tool", fields.CreatorTool)
}

func TestParseXMPWithXML_Invalid(t *testing.T) {
	_, ok := parseXMPWithXML("this is not xml <<<")
	assert.False(t, ok)
}

func TestParseXMPFallback(t *testing.T) {
	xmp := `<pdf:Producer>Fallback Producer</pdf:Producer><xmp:CreatorTool>Tool</xmp:CreatorTool>`
	fields := parseXMPFallback(xmp)
	assert.Equal(t, "Fallback Producer", fields.Producer)
	assert.Equal(t, "Tool", fields.CreatorTool)
}

func TestPrefer(t *testing.T) {
	assert.Equal(t, "a", prefer("a", "b"))
	assert.Equal(t, "b", prefer("", "b"))
	assert.Equal(t, "b", prefer("   ", "b"))
}

// metadataPDF carries both an /Info dictionary and an XMP stream.
func metadataPDF(t *testing.T) *Reader {
	t.Helper()
	b := newPDFBuilder("%PDF-1.6")
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R /Metadata 4 0 R >>")
	b.obj(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.obj(3, "<< /Title (Info Title) /Author (Info Author) /Subject (Info Subject) /Producer (Info Producer) >>")
	b.streamObj(4, " /Type /Metadata /Subtype /XML", []byte(xmpSample))
	b.xrefAndTrailer("/Root 1 0 R /Info 3 0 R")
	return readerFor(t, b.bytes())
}

func TestInfoDict(t *testing.T) {
	r := metadataPDF(t)
	info := r.readInfo()
	assert.Equal(t, "Info Title", info.Title)
	assert.Equal(t, "Info Author", info.Author)
	assert.Equal(t, "Info Producer", info.Producer)
}

func TestReadXMP(t *testing.T) {
	r := metadataPDF(t)
	xmp, err := r.readXMP()
	require.NoError(t, err)
	assert.Contains(t, xmp, "XMP Title")

	// no Metadata stream at all
	b := minimalPDF()
	b.xrefAndTrailer("/Root 1 0 R")
	r2 := readerFor(t, b.bytes())
	xmp, err = r2.readXMP()
	require.NoError(t, err)
	assert.Empty(t, xmp)
}

func TestMetadata_XMPWinsOverInfo(t *testing.T) {
	r := metadataPDF(t)
	md, err := r.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "XMP Title", md.Title)
	assert.Equal(t, "XMP Author", md.Author)
	assert.Equal(t, "XMP Producer", md.Producer)
	// fields absent from the XMP fall back to /Info
	assert.Equal(t, "Info Subject", md.Subject)
}

func TestMetadataFull(t *testing.T) {
	r := metadataPDF(t)
	full, err := r.MetadataFull()
	require.NoError(t, err)
	assert.Equal(t, "1.6", full.PDFVersion)
	assert.True(t, full.HasXMP)
	assert.False(t, full.Encrypted)
	assert.Equal(t, 0, full.NPages)
	// unencrypted documents grant everything
	assert.True(t, full.AccessPermission.CanPrint)
	assert.True(t, full.AccessPermission.ExtractContent)
	assert.True(t, full.AccessPermission.AssembleDocument)
}

func TestMetadataJSON(t *testing.T) {
	r := metadataPDF(t)
	var buf bytes.Buffer
	require.NoError(t, r.MetadataJSON(&buf))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "XMP Title", got["title"])
	assert.Equal(t, "1.6", got["pdf:PDFVersion"])
}

func TestHasCollection(t *testing.T) {
	r := metadataPDF(t)
	assert.False(t, r.hasCollection())
}

func TestContainsNonEmbeddedFont(t *testing.T) {
	b := onePagePDF("BT ET", "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	b.xrefAndTrailer("/Root 1 0 R")
	r := readerFor(t, b.bytes())
	// no FontDescriptor at all means not embedded
	assert.True(t, r.containsNonEmbeddedFont())
}
