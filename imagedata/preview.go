package imagedata

import (
	"image"

	"github.com/disintegration/imaging"
)

// Preview returns a copy of the frame scaled to fit within size x size,
// preserving aspect ratio
func (i *ImageData) Preview(size int) image.Image {
	if size <= 0 {
		size = 512
	}
	return imaging.Fit(i.Image, size, size, imaging.Lanczos)
}

// SavePreview writes a thumbnail to path.  The format follows the file
// extension (.png, .jpg, ...).
func (i *ImageData) SavePreview(path string, size int) error {
	return imaging.Save(i.Preview(size), path)
}
