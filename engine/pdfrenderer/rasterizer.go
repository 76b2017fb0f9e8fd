package pdfrenderer

import (
	"errors"
	"fmt"
)

// ErrRasterization wraps every failure to open, count or render a document
var ErrRasterization = errors.New("rasterization failed")

const (
	// DefaultTargetDPI is the render resolution for OCR input
	DefaultTargetDPI = 200
	// PDFNativeDPI is the resolution of one PDF point per pixel
	PDFNativeDPI = 72
	// DefaultMaxDimension bounds either side of a rendered page in pixels
	DefaultMaxDimension = 4500
)

// RasterOptions controls render resolution and the oversize fallback
type RasterOptions struct {
	TargetDPI    float64 `json:"targetDpi"`
	NativeDPI    float64 `json:"nativeDpi"`
	MaxDimension int     `json:"maxDimension"`
}

// DefaultRasterOptions returns 200 DPI with a 4500 pixel ceiling
func DefaultRasterOptions() RasterOptions {
	return RasterOptions{
		TargetDPI:    DefaultTargetDPI,
		NativeDPI:    PDFNativeDPI,
		MaxDimension: DefaultMaxDimension,
	}
}

// Rasterizer renders pages with a single native-resolution fallback for oversized pages
type Rasterizer struct {
	Options RasterOptions
}

// NewRasterizer returns a rasterizer using opts, zero fields take the defaults
func NewRasterizer(opts RasterOptions) *Rasterizer {
	defaults := DefaultRasterOptions()
	if opts.TargetDPI <= 0 {
		opts.TargetDPI = defaults.TargetDPI
	}
	if opts.NativeDPI <= 0 {
		opts.NativeDPI = defaults.NativeDPI
	}
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = defaults.MaxDimension
	}
	return &Rasterizer{Options: opts}
}

// RenderedPage is a rasterized page plus how it was produced
type RenderedPage struct {
	Page     *RasterPage
	Index    int
	DPI      float64
	Fallback bool
}

// PageRange selects pages by zero-based inclusive index.
// A nil Start is page 0, a nil or negative End is the last page.
type PageRange struct {
	Start *int `json:"start,omitempty"`
	End   *int `json:"end,omitempty"`
}

// AllPages selects the whole document
func AllPages() PageRange {
	return PageRange{}
}

// NewPageRange builds a range from plain ints, end < 0 meaning the last page
func NewPageRange(start, end int) PageRange {
	return PageRange{Start: &start, End: &end}
}

// Resolve clamps the range to a document with pageCount pages.
// ok is false when no page falls inside it.
func (pr PageRange) Resolve(pageCount int) (start, end int, ok bool) {
	last := pageCount - 1
	if pr.Start != nil && *pr.Start > 0 {
		start = *pr.Start
	}
	end = last
	if pr.End != nil && *pr.End >= 0 {
		end = *pr.End
		if end > last {
			Logger.Warn("End page past last page, clamping", "end", end, "last", last)
			end = last
		}
	}
	return start, end, pageCount > 0 && start <= end
}

// Exceeds reports whether a bitmap of w x h breaks the dimension ceiling
func (o RasterOptions) Exceeds(w, h int) bool {
	return w > o.MaxDimension || h > o.MaxDimension
}

// RenderPage renders one page at dpi (TargetDPI when dpi <= 0). If either side
// of the result exceeds MaxDimension the bitmap is discarded and the page is
// rendered once more at NativeDPI. The fallback result is returned as-is.
func (r *Rasterizer) RenderPage(doc Document, index int, dpi float64) (*RenderedPage, error) {
	if dpi <= 0 {
		dpi = r.Options.TargetDPI
	}

	page, err := doc.RenderPage(index, dpi)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d at %g dpi: %w", ErrRasterization, index, dpi, err)
	}
	if !r.Options.Exceeds(page.Width, page.Height) {
		return &RenderedPage{Page: page, Index: index, DPI: dpi}, nil
	}

	Logger.Warn("Rendered page exceeds size limit, falling back to native resolution",
		"page", index, "width", page.Width, "height", page.Height, "dpi", dpi, "limit", r.Options.MaxDimension)
	fallbackDPI := r.Options.NativeDPI
	page, err = doc.RenderPage(index, fallbackDPI)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d fallback at %g dpi: %w", ErrRasterization, index, fallbackDPI, err)
	}
	if r.Options.Exceeds(page.Width, page.Height) {
		Logger.Warn("Fallback render still exceeds size limit", "page", index, "width", page.Width, "height", page.Height)
	}
	return &RenderedPage{Page: page, Index: index, DPI: fallbackDPI, Fallback: true}, nil
}

// RenderDocumentRange opens path with engine, renders the selected pages in
// document order at dpi and closes the document exactly once on every path.
func (r *Rasterizer) RenderDocumentRange(engine Engine, path string, dpi float64, pr PageRange) ([]*RenderedPage, error) {
	doc, err := engine.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrRasterization, path, err)
	}
	defer func() {
		if closeErr := doc.Close(); closeErr != nil {
			Logger.Error("Unable to close PDF document", "path", path, "error", closeErr)
		}
	}()

	pageCount := doc.PageCount()
	if pageCount < 0 {
		return nil, fmt.Errorf("%w: %s reports %d pages", ErrRasterization, path, pageCount)
	}
	start, end, ok := pr.Resolve(pageCount)
	if !ok {
		Logger.Debug("Page range selects no pages", "path", path, "pages", pageCount)
		return []*RenderedPage{}, nil
	}

	pages := make([]*RenderedPage, 0, end-start+1)
	for index := start; index <= end; index++ {
		page, err := r.RenderPage(doc, index, dpi)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	Logger.Debug("Rendered document range", "path", path, "engine", engine.Name(), "start", start, "end", end)
	return pages, nil
}
