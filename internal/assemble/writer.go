package assemble

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"fmt"
	"os"
	"sort"
	"strings"
)

// writeDocument serializes pages as a PDF 1.4 document: a catalog, a page
// tree, and per page one page object, one flate-compressed content stream and
// one DCTDecode image XObject. Object numbering is fixed: 1 catalog, 2 page
// tree, then three objects per page, then the Info dictionary when metadata
// is present.
func writeDocument(path string, pages []pageEntry, info map[string]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	w := &docWriter{w: bufio.NewWriter(f)}
	if err := w.writeAll(pages, info); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := w.w.Flush(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("flush output: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

type docWriter struct {
	w       *bufio.Writer
	written int64
	offsets []int64
	err     error
}

func (d *docWriter) printf(format string, args ...interface{}) {
	if d.err != nil {
		return
	}
	n, err := fmt.Fprintf(d.w, format, args...)
	d.written += int64(n)
	d.err = err
}

func (d *docWriter) raw(b []byte) {
	if d.err != nil {
		return
	}
	n, err := d.w.Write(b)
	d.written += int64(n)
	d.err = err
}

// beginObj records the xref offset for object num and writes its header.
// Objects must be emitted in ascending numeric order.
func (d *docWriter) beginObj(num int) {
	for len(d.offsets) <= num {
		d.offsets = append(d.offsets, 0)
	}
	d.offsets[num] = d.written
	d.printf("%d 0 obj\n", num)
}

func (d *docWriter) endObj() {
	d.printf("endobj\n")
}

func (d *docWriter) writeAll(pages []pageEntry, info map[string]string) error {
	const (
		objCatalog  = 1
		objPages    = 2
		objsPerPage = 3
	)
	pageObj := func(i int) int { return 3 + objsPerPage*i }
	contentObj := func(i int) int { return 4 + objsPerPage*i }
	imageObj := func(i int) int { return 5 + objsPerPage*i }

	lastObj := 2 + objsPerPage*len(pages)
	infoObj := 0
	if len(info) > 0 {
		infoObj = lastObj + 1
		lastObj = infoObj
	}

	// Header with a high-bit comment line so transports treat the file as
	// binary.
	d.printf("%%PDF-1.4\n")
	d.raw([]byte{'%', 0xE2, 0xE3, 0xCF, 0xD3, '\n'})

	d.beginObj(objCatalog)
	d.printf("<< /Type /Catalog /Pages %d 0 R >>\n", objPages)
	d.endObj()

	d.beginObj(objPages)
	d.printf("<< /Type /Pages /Count %d /Kids [", len(pages))
	for i := range pages {
		if i > 0 {
			d.printf(" ")
		}
		d.printf("%d 0 R", pageObj(i))
	}
	d.printf("] >>\n")
	d.endObj()

	for i, p := range pages {
		d.beginObj(pageObj(i))
		d.printf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 %s %s] "+
			"/Resources << /XObject << /Im0 %d 0 R >> >> /Contents %d 0 R >>\n",
			objPages, formatFloat(p.width), formatFloat(p.height), imageObj(i), contentObj(i))
		d.endObj()

		// The image is stretched across the full page area; aspect ratio is
		// preserved because the raster was derived from the same physical
		// size.
		content := fmt.Sprintf("q\n%s 0 0 %s 0 0 cm\n/Im0 Do\nQ\n",
			formatFloat(p.width), formatFloat(p.height))
		compressed, err := flateCompress([]byte(content))
		if err != nil {
			return fmt.Errorf("compress content stream of page %d: %w", i+1, err)
		}

		d.beginObj(contentObj(i))
		d.printf("<< /Length %d /Filter /FlateDecode >>\nstream\n", len(compressed))
		d.raw(compressed)
		d.printf("\nendstream\n")
		d.endObj()

		d.beginObj(imageObj(i))
		d.printf("<< /Type /XObject /Subtype /Image /Width %d /Height %d "+
			"/ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode /Length %d >>\nstream\n",
			p.pixelW, p.pixelH, len(p.data))
		d.raw(p.data)
		d.printf("\nendstream\n")
		d.endObj()
	}

	if infoObj != 0 {
		d.beginObj(infoObj)
		d.printf("%s\n", infoDictBody(info))
		d.endObj()
	}

	xrefOffset := d.written
	d.printf("xref\n0 %d\n", lastObj+1)
	d.printf("0000000000 65535 f \n")
	for num := 1; num <= lastObj; num++ {
		d.printf("%010d 00000 n \n", d.offsets[num])
	}

	d.printf("trailer\n<< /Size %d /Root %d 0 R", lastObj+1, objCatalog)
	if infoObj != 0 {
		d.printf(" /Info %d 0 R", infoObj)
	}
	d.printf(" >>\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	if d.err != nil {
		return fmt.Errorf("write document: %w", d.err)
	}
	return nil
}

func flateCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// infoDictBody serializes an Info dictionary with sorted keys. An empty map
// yields an empty dictionary.
func infoDictBody(info map[string]string) string {
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("<<")
	for _, k := range keys {
		fmt.Fprintf(&b, " /%s (%s)", k, escapeString(info[k]))
	}
	b.WriteString(" >>")
	return b.String()
}

// formatFloat renders a dimension without trailing zeros, as PDF numbers.
func formatFloat(v float64) string {
	s := fmt.Sprintf("%.4f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

// escapeString escapes a PDF literal string.
func escapeString(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\', '(', ')':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
