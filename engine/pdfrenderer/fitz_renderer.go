package pdfrenderer

import (
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// FitzEngine renders through MuPDF via go-fitz (requires CGo)
type FitzEngine struct{}

// NewFitzEngine creates a MuPDF-backed engine
func NewFitzEngine() *FitzEngine {
	return &FitzEngine{}
}

// Name implements Engine
func (e *FitzEngine) Name() string {
	return EngineFitz
}

// Open implements Engine
func (e *FitzEngine) Open(path string) (Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}
	return &fitzDocument{doc: doc}, nil
}

// Close is a no-op, each document owns its MuPDF context
func (e *FitzEngine) Close() error {
	return nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) PageCount() int {
	return d.doc.NumPage()
}

func (d *fitzDocument) RenderPage(index int, dpi float64) (*RasterPage, error) {
	img, err := d.doc.ImageDPI(index, dpi)
	if err != nil {
		return nil, fmt.Errorf("unable to render page %d: %w", index, err)
	}
	return NewRasterPage(img)
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}
