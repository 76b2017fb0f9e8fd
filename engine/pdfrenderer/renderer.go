package pdfrenderer

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Logger is replaced by main; library callers get the default logger
var Logger = slog.Default()

// ErrUnknownEngine is returned by NewEngine for an unrecognised renderer name
var ErrUnknownEngine = errors.New("unknown pdf renderer")

// Engine names accepted by NewEngine
const (
	EngineFitz   = "fitz"
	EnginePDFium = "pdfium"
)

// Engine is the PDF rendering capability the rasterizer is written against
type Engine interface {
	// Name identifies the engine in logs and API responses
	Name() string

	// Open loads the PDF at path. The caller owns the returned Document
	Open(path string) (Document, error)

	// Close releases engine-wide resources
	Close() error
}

// Document is an open PDF. It is not safe for concurrent use.
type Document interface {
	// PageCount returns the number of pages
	PageCount() int

	// RenderPage rasterizes the zero-based page at dpi with no alpha channel
	RenderPage(index int, dpi float64) (*RasterPage, error)

	// Close releases the document
	Close() error
}

// NewEngine creates the engine registered under name ("fitz" or "pdfium")
func NewEngine(name string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EngineFitz, "mupdf":
		return NewFitzEngine(), nil
	case EnginePDFium:
		return NewPDFiumEngine()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
}
