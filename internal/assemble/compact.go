package assemble

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Compact rewrites the document at inPath to outPath with pdfcpu's optimizer:
// unreferenced objects are garbage collected, streams are re-deflated and the
// object layout is cleaned up. pdfcpu stamps its own Producer, CreationDate
// and ModDate on every write, so the Info dictionary is replaced afterwards
// with exactly the given metadata fields (keyed like SetMetadata; none when
// info is empty).
func Compact(inPath, outPath string, info map[string]string) error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	// The Info rewrite appends a classic cross-reference section, which is
	// only valid when the previous section is a classic table too.
	conf.WriteXRefStream = false
	conf.WriteObjectStream = false

	if err := api.OptimizeFile(inPath, outPath, conf); err != nil {
		return fmt.Errorf("optimize document: %w", err)
	}
	if err := rewriteInfo(outPath, infoFields(info)); err != nil {
		return fmt.Errorf("rewrite info dictionary: %w", err)
	}
	return nil
}

var (
	trailerSizeRe = regexp.MustCompile(`/Size\s+(\d+)`)
	trailerRootRe = regexp.MustCompile(`/Root\s+\d+\s+\d+\s+R`)
	trailerIDRe   = regexp.MustCompile(`/ID\s*\[[^\]]*\]`)
)

// rewriteInfo appends an incremental update whose trailer points Info at a
// freshly written dictionary, superseding whatever the previous writer left
// there. An empty info yields an empty dictionary, so every metadata field
// reads back empty.
func rewriteInfo(path string, info map[string]string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	sx := bytes.LastIndex(data, []byte("startxref"))
	if sx < 0 {
		return fmt.Errorf("%s: no startxref", path)
	}
	prevXRef, err := parseOffset(data[sx+len("startxref"):])
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	tix := bytes.LastIndex(data[:sx], []byte("trailer"))
	if tix < 0 {
		return fmt.Errorf("%s: no trailer", path)
	}
	trailer := string(data[tix:sx])

	m := trailerSizeRe.FindStringSubmatch(trailer)
	if m == nil {
		return fmt.Errorf("%s: trailer has no /Size", path)
	}
	size, err := strconv.Atoi(m[1])
	if err != nil {
		return fmt.Errorf("%s: bad /Size: %w", path, err)
	}

	root := trailerRootRe.FindString(trailer)
	if root == "" {
		return fmt.Errorf("%s: trailer has no /Root", path)
	}

	infoObj := size
	base := int64(len(data))

	var b bytes.Buffer
	if len(data) > 0 && data[len(data)-1] != '\n' {
		b.WriteByte('\n')
	}
	objOffset := base + int64(b.Len())
	fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", infoObj, infoDictBody(info))

	xrefOffset := base + int64(b.Len())
	fmt.Fprintf(&b, "xref\n0 1\n0000000000 65535 f \n%d 1\n%010d 00000 n \n", infoObj, objOffset)

	fmt.Fprintf(&b, "trailer\n<< /Size %d %s /Info %d 0 R /Prev %d", infoObj+1, root, infoObj, prevXRef)
	if id := trailerIDRe.FindString(trailer); id != "" {
		fmt.Fprintf(&b, " %s", id)
	}
	fmt.Fprintf(&b, " >>\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(b.Bytes()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func parseOffset(b []byte) (int64, error) {
	s := strings.TrimSpace(string(b))
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, errors.New("invalid startxref offset")
	}
	return strconv.ParseInt(s[:end], 10, 64)
}
