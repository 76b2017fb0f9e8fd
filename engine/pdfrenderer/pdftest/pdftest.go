// Package pdftest builds small, valid PDF files for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// Page is a page size in PDF points (1/72 inch)
type Page struct {
	Width  float64
	Height float64
}

// Letter is US Letter, 612x792 points
var Letter = Page{Width: 612, Height: 792}

// Build returns a PDF with one page per entry, each carrying its own MediaBox
// and a filled black square in the lower left corner.
func Build(pages ...Page) []byte {
	return build(nil, pages)
}

// BuildInherited returns a PDF with count pages whose MediaBox is only set on
// the parent page tree node.
func BuildInherited(parent Page, count int) []byte {
	pages := make([]Page, count)
	return build(&parent, pages)
}

// WriteFile writes data to name inside a per-test temp dir and returns the path
func WriteFile(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write test PDF: %v", err)
	}
	return path
}

func build(parent *Page, pages []Page) []byte {
	// object 1 catalog, 2 page tree, then a page and content stream per page
	objects := []string{"<< /Type /Catalog /Pages 2 0 R >>"}

	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 3+i*2)
	}
	tree := fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d", kids, len(pages))
	if parent != nil {
		tree += fmt.Sprintf(" /MediaBox [0 0 %s %s]", num(parent.Width), num(parent.Height))
	}
	objects = append(objects, tree+" >>")

	content := "0 0 0 rg 10 10 50 50 re f"
	for i, p := range pages {
		page := fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Resources << >> /Contents %d 0 R", 4+i*2)
		if parent == nil {
			page += fmt.Sprintf(" /MediaBox [0 0 %s %s]", num(p.Width), num(p.Height))
		}
		objects = append(objects,
			page+" >>",
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
