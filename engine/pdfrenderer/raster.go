package pdfrenderer

import (
	"errors"
	"image"
	"image/color"
)

// ErrEmptyRaster is returned when a renderer hands back a zero-sized bitmap
var ErrEmptyRaster = errors.New("empty raster")

// RasterPage is an opaque RGB bitmap, row-major, 3 bytes per pixel.
// It is never modified after construction.
type RasterPage struct {
	Height int
	Width  int
	Pix    []byte
}

// NewRasterPage copies img into an RGB bitmap, compositing any transparency
// over a white background.
func NewRasterPage(img image.Image) (*RasterPage, error) {
	if img == nil {
		return nil, ErrEmptyRaster
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, ErrEmptyRaster
	}

	pix := make([]byte, 0, w*h*3)
	switch src := img.(type) {
	case *image.RGBA:
		// premultiplied: over white is c + (255 - a)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, y) : src.PixOffset(b.Min.X, y)+w*4]
			for i := 0; i < len(row); i += 4 {
				bg := 255 - row[i+3]
				pix = append(pix, row[i]+bg, row[i+1]+bg, row[i+2]+bg)
			}
		}
	case *image.NRGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, y) : src.PixOffset(b.Min.X, y)+w*4]
			for i := 0; i < len(row); i += 4 {
				a := uint32(row[i+3])
				bg := 255 * (255 - a)
				pix = append(pix,
					uint8((uint32(row[i])*a+bg)/255),
					uint8((uint32(row[i+1])*a+bg)/255),
					uint8((uint32(row[i+2])*a+bg)/255))
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, a := img.At(x, y).RGBA()
				bg := 0xffff - a
				pix = append(pix, uint8((r+bg)>>8), uint8((g+bg)>>8), uint8((bl+bg)>>8))
			}
		}
	}

	return &RasterPage{Height: h, Width: w, Pix: pix}, nil
}

// ColorModel implements image.Image
func (p *RasterPage) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds implements image.Image
func (p *RasterPage) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.Width, p.Height)
}

// At implements image.Image
func (p *RasterPage) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= p.Width || y >= p.Height {
		return color.RGBA{}
	}
	i := (y*p.Width + x) * 3
	return color.RGBA{R: p.Pix[i], G: p.Pix[i+1], B: p.Pix[i+2], A: 255}
}

// RGBA returns an opaque *image.RGBA copy, the form the pipeline hands to imaging
func (p *RasterPage) RGBA() *image.RGBA {
	img := image.NewRGBA(p.Bounds())
	for i, j := 0, 0; i < len(p.Pix); i, j = i+3, j+4 {
		img.Pix[j] = p.Pix[i]
		img.Pix[j+1] = p.Pix[i+1]
		img.Pix[j+2] = p.Pix[i+2]
		img.Pix[j+3] = 255
	}
	return img
}
