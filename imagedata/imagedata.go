/*Package imagedata pairs a decoded camera frame with its acquisition metadata
and persists it as FITS or as a preview thumbnail.

Frames arrive from a camera as a flat byte buffer in one of three layouts:
8-bit mono, 16-bit little-endian mono, or 8-bit-per-channel BGR.  The
From* constructors decode those into the standard library image types
*image.Gray, *image.Gray16, and *image.NRGBA.
*/
package imagedata

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"

	"github.com/nasa-jpl/cameraunit/autoexp"
)

// ImageData is a frame and its metadata.  It is owned by whoever received it
// from a capture.
type ImageData struct {
	Image image.Image
	Meta  Metadata
}

// New pairs an image with a copy of meta
func New(img image.Image, meta Metadata) *ImageData {
	return &ImageData{Image: img, Meta: meta.Clone()}
}

func checkSize(buf []byte, w, h, bpp int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("imagedata: invalid dimensions %dx%d", w, h)
	}
	if len(buf) != w*h*bpp {
		return fmt.Errorf("imagedata: buffer of %d bytes does not hold %dx%d at %d bytes/pixel", len(buf), w, h, bpp)
	}
	return nil
}

// FromRaw8 decodes an 8-bit mono buffer.  buf is copied.
func FromRaw8(buf []byte, w, h int, meta Metadata) (*ImageData, error) {
	if err := checkSize(buf, w, h, 1); err != nil {
		return nil, err
	}
	img := image.NewGray(image.Rect(0, 0, w, h))
	copy(img.Pix, buf)
	return New(img, meta), nil
}

// FromRaw16 decodes a 16-bit little-endian mono buffer
func FromRaw16(buf []byte, w, h int, meta Metadata) (*ImageData, error) {
	if err := checkSize(buf, w, h, 2); err != nil {
		return nil, err
	}
	img := image.NewGray16(image.Rect(0, 0, w, h))
	// Gray16 stores big-endian
	for i := 0; i < w*h; i++ {
		v := binary.LittleEndian.Uint16(buf[2*i:])
		binary.BigEndian.PutUint16(img.Pix[2*i:], v)
	}
	return New(img, meta), nil
}

// FromBGR24 decodes a B,G,R interleaved buffer into an opaque NRGBA image
func FromBGR24(buf []byte, w, h int, meta Metadata) (*ImageData, error) {
	if err := checkSize(buf, w, h, 3); err != nil {
		return nil, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		img.Pix[4*i+0] = buf[3*i+2]
		img.Pix[4*i+1] = buf[3*i+1]
		img.Pix[4*i+2] = buf[3*i+0]
		img.Pix[4*i+3] = 0xff
	}
	return New(img, meta), nil
}

// Width of the frame in pixels
func (i *ImageData) Width() int {
	return i.Image.Bounds().Dx()
}

// Height of the frame in pixels
func (i *ImageData) Height() int {
	return i.Image.Bounds().Dy()
}

// AddExtended appends a metadata pair
func (i *ImageData) AddExtended(key, value string) {
	i.Meta.AddExtended(key, value)
}

// Luma16 returns the frame as row-major 16-bit luminance.  8-bit data is
// scaled by 257 so that full scale maps to 65535.
func (i *ImageData) Luma16() []uint16 {
	w, h := i.Width(), i.Height()
	out := make([]uint16, w*h)
	switch img := i.Image.(type) {
	case *image.Gray16:
		for y := 0; y < h; y++ {
			row := img.Pix[y*img.Stride:]
			for x := 0; x < w; x++ {
				out[y*w+x] = binary.BigEndian.Uint16(row[2*x:])
			}
		}
	case *image.Gray:
		for y := 0; y < h; y++ {
			row := img.Pix[y*img.Stride:]
			for x := 0; x < w; x++ {
				out[y*w+x] = uint16(row[x]) * 257
			}
		}
	default:
		b := i.Image.Bounds()
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				g := color.Gray16Model.Convert(i.Image.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
				out[y*w+x] = g.Y
			}
		}
	}
	return out
}

// FindOptimumExposure runs the exposure optimizer over this frame using its
// own exposure and binning as the starting point.  Pixels are sampled from
// Luma16, so Target and Tolerance are in 16-bit ADU for every format.
func (i *ImageData) FindOptimumExposure(p autoexp.Params) (autoexp.Result, error) {
	cur := autoexp.Setting{Exposure: i.Meta.Exposure, BinX: i.Meta.BinX, BinY: i.Meta.BinY}
	return autoexp.Compute(i.Luma16(), cur, p)
}

func (i *ImageData) String() string {
	return fmt.Sprintf("%sSize: %d x %d", i.Meta, i.Width(), i.Height())
}
