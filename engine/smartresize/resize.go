package smartresize

import (
	"image"

	"github.com/disintegration/imaging"
)

// Resize scales img to exactly target using a Lanczos filter.
// An image that already has the target size is copied unchanged.
func Resize(img image.Image, target TargetSize) *image.NRGBA {
	bounds := img.Bounds()
	if bounds.Dx() == target.Width && bounds.Dy() == target.Height {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, target.Width, target.Height, imaging.Lanczos)
}

// Normalize computes the target size for img and resizes it
func Normalize(img image.Image, opts Options) (*image.NRGBA, TargetSize, error) {
	bounds := img.Bounds()
	target, err := SmartResize(bounds.Dy(), bounds.Dx(), opts)
	if err != nil {
		return nil, TargetSize{}, err
	}
	return Resize(img, target), target, nil
}
