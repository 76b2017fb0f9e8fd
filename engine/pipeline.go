package engine

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/drummonds/pagevision/engine/encoder"
	"github.com/drummonds/pagevision/engine/pdfrenderer"
	"github.com/drummonds/pagevision/engine/smartresize"
)

// ErrUnreadableImage is returned when an input file cannot be decoded as an image
var ErrUnreadableImage = errors.New("unreadable image")

// PreparedPage is one normalized page ready to be sent to a vision model
type PreparedPage struct {
	Index        int          `json:"index"`
	SourceWidth  int          `json:"sourceWidth"`
	SourceHeight int          `json:"sourceHeight"`
	Width        int          `json:"width"`
	Height       int          `json:"height"`
	DPI          float64      `json:"dpi,omitempty"`
	Fallback     bool         `json:"fallback"`
	Format       string       `json:"format"`
	DataURL      string       `json:"dataUrl"`
	Image        *image.NRGBA `json:"-"` // normalized bitmap, kept for writing output files
}

// Preparer runs rasterize -> normalize -> resize -> encode
type Preparer struct {
	Engine     pdfrenderer.Engine
	Rasterizer *pdfrenderer.Rasterizer
	Resize     smartresize.Options
	Format     string
}

// NewPreparer builds a Preparer, empty values take the package defaults
func NewPreparer(engine pdfrenderer.Engine, raster pdfrenderer.RasterOptions, resize smartresize.Options, format string) *Preparer {
	if format == "" {
		format = encoder.DefaultFormat
	}
	return &Preparer{
		Engine:     engine,
		Rasterizer: pdfrenderer.NewRasterizer(raster),
		Resize:     resize,
		Format:     format,
	}
}

// WithFormat returns a copy of p that encodes in format (unchanged when empty)
func (p *Preparer) WithFormat(format string) *Preparer {
	if format == "" {
		return p
	}
	clone := *p
	clone.Format = format
	return &clone
}

// PreparePDF renders the selected pages of the PDF at path and normalizes each one
// in document order. The first failing page aborts the whole call.
func (p *Preparer) PreparePDF(path string, dpi float64, pr pdfrenderer.PageRange) ([]PreparedPage, error) {
	format, err := p.format()
	if err != nil {
		return nil, err
	}
	if p.Engine == nil {
		return nil, fmt.Errorf("%w: no PDF engine configured", pdfrenderer.ErrRasterization)
	}

	rendered, err := p.rasterizer().RenderDocumentRange(p.Engine, path, dpi, pr)
	if err != nil {
		return nil, err
	}

	pages := make([]PreparedPage, 0, len(rendered))
	for _, r := range rendered {
		page, err := p.prepare(r.Page.RGBA(), format)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", r.Index, err)
		}
		page.Index = r.Index
		page.DPI = r.DPI
		page.Fallback = r.Fallback
		pages = append(pages, page)
	}
	Logger.Debug("Prepared PDF", "path", path, "pages", len(pages), "format", format)
	return pages, nil
}

// PrepareImage normalizes and encodes a standalone bitmap
func (p *Preparer) PrepareImage(img image.Image) (PreparedPage, error) {
	format, err := p.format()
	if err != nil {
		return PreparedPage{}, err
	}
	if img == nil {
		return PreparedPage{}, smartresize.ErrInvalidDimensions
	}
	return p.prepare(img, format)
}

// PrepareImageFile loads png, jpeg, gif, tiff, bmp or webp from path and prepares it
func (p *Preparer) PrepareImageFile(path string) (PreparedPage, error) {
	if _, err := p.format(); err != nil {
		return PreparedPage{}, err
	}
	img, err := imaging.Open(path)
	if err != nil {
		return PreparedPage{}, fmt.Errorf("%w %s: %w", ErrUnreadableImage, path, err)
	}
	return p.PrepareImage(img)
}

func (p *Preparer) prepare(img image.Image, format string) (PreparedPage, error) {
	bounds := img.Bounds()
	normalized, target, err := smartresize.Normalize(img, p.resizeOptions())
	if err != nil {
		return PreparedPage{}, err
	}
	dataURL, err := encoder.Encode(normalized, format)
	if err != nil {
		return PreparedPage{}, err
	}
	return PreparedPage{
		SourceWidth:  bounds.Dx(),
		SourceHeight: bounds.Dy(),
		Width:        target.Width,
		Height:       target.Height,
		Format:       format,
		DataURL:      dataURL,
		Image:        normalized,
	}, nil
}

// format validates the output format before any rendering work is done
func (p *Preparer) format() (string, error) {
	name := p.Format
	if name == "" {
		name = encoder.DefaultFormat
	}
	f, err := encoder.ParseFormat(name)
	if err != nil {
		return "", err
	}
	return encoder.MimeSubtype(f), nil
}

func (p *Preparer) rasterizer() *pdfrenderer.Rasterizer {
	if p.Rasterizer == nil {
		return pdfrenderer.NewRasterizer(pdfrenderer.RasterOptions{})
	}
	return p.Rasterizer
}

func (p *Preparer) resizeOptions() smartresize.Options {
	if p.Resize == (smartresize.Options{}) {
		return smartresize.DefaultOptions()
	}
	return p.Resize
}
