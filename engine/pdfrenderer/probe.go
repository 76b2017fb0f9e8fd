package pdfrenderer

import (
	"fmt"
	"math"

	"github.com/ledongthuc/pdf"
)

// maxParentDepth bounds the walk up the page tree when looking for an inherited MediaBox
const maxParentDepth = 32

// PageGeometry describes one page without rendering it
type PageGeometry struct {
	Index        int     `json:"index"`
	WidthPoints  float64 `json:"widthPoints"`
	HeightPoints float64 `json:"heightPoints"`
	Known        bool    `json:"known"`
	PixelWidth   int     `json:"pixelWidth"`
	PixelHeight  int     `json:"pixelHeight"`
	Fallback     bool    `json:"fallback"`
}

// ProbeResult is the page count and per-page geometry of a PDF
type ProbeResult struct {
	Path      string         `json:"path"`
	PageCount int            `json:"pageCount"`
	DPI       float64        `json:"dpi"`
	Pages     []PageGeometry `json:"pages"`
}

// Probe reads MediaBox geometry with ledongthuc/pdf and predicts the pixel size
// each page would render to at dpi, including whether the rasterizer would fall back.
func Probe(path string, dpi float64, opts RasterOptions) (result *ProbeResult, err error) {
	// the parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered while probing PDF", "path", path, "panic", r)
			result = nil
			err = fmt.Errorf("%w: unable to parse %s: %v", ErrRasterization, path, r)
		}
	}()

	if dpi <= 0 {
		dpi = opts.TargetDPI
	}
	if opts.NativeDPI <= 0 {
		opts.NativeDPI = PDFNativeDPI
	}

	pdfFile, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrRasterization, path, err)
	}
	defer pdfFile.Close()

	numPages := reader.NumPage()
	result = &ProbeResult{
		Path:      path,
		PageCount: numPages,
		DPI:       dpi,
		Pages:     make([]PageGeometry, 0, numPages),
	}

	for i := 1; i <= numPages; i++ {
		geometry := PageGeometry{Index: i - 1}
		page := reader.Page(i)
		if width, height, ok := mediaBox(page.V); ok {
			geometry.WidthPoints = width
			geometry.HeightPoints = height
			geometry.Known = true
			geometry.PixelWidth = pixelsAt(width, dpi, opts.NativeDPI)
			geometry.PixelHeight = pixelsAt(height, dpi, opts.NativeDPI)
			geometry.Fallback = opts.MaxDimension > 0 && opts.Exceeds(geometry.PixelWidth, geometry.PixelHeight)
		} else {
			Logger.Warn("Page has no MediaBox", "path", path, "page", i-1)
		}
		result.Pages = append(result.Pages, geometry)
	}
	return result, nil
}

// mediaBox returns the page size in points, following Parent links for inherited boxes
func mediaBox(node pdf.Value) (float64, float64, bool) {
	for depth := 0; depth < maxParentDepth && node.Kind() == pdf.Dict; depth++ {
		box := node.Key("MediaBox")
		if box.Kind() == pdf.Array && box.Len() == 4 {
			x0, y0 := box.Index(0).Float64(), box.Index(1).Float64()
			x1, y1 := box.Index(2).Float64(), box.Index(3).Float64()
			return math.Abs(x1 - x0), math.Abs(y1 - y0), true
		}
		node = node.Key("Parent")
	}
	return 0, 0, false
}

func pixelsAt(points, dpi, nativeDPI float64) int {
	return int(math.Ceil(points * dpi / nativeDPI))
}
