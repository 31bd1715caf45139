package imagedata

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/astrogo/fitsio"
	"github.com/klauspost/compress/gzip"
	"github.com/snksoft/crc"
)

var (
	// ErrNoDirectory is returned when the destination directory does not exist
	ErrNoDirectory = errors.New("imagedata: destination directory does not exist")

	// ErrFileExists is returned when the destination exists and overwrite was not requested
	ErrFileExists = errors.New("imagedata: file already exists")

	// ErrUnsupportedImage is returned for image types that cannot be written
	ErrUnsupportedImage = errors.New("imagedata: unsupported image type")

	crcTable = crc.NewTable(crc.CRC32)
)

// standard keys written ahead of the extended metadata
var standardKeys = map[string]bool{
	"SIMPLE": true, "BITPIX": true, "NAXIS": true, "NAXIS1": true, "NAXIS2": true,
	"NAXIS3": true, "EXTEND": true, "BZERO": true, "BSCALE": true, "END": true,
	"PROGRAM": true, "CAMERA": true, "TIMESTMP": true, "DATE-OBS": true, "CCDTEMP": true,
	"EXPOSURE": true, "EXPTIME": true, "ORIGIN_X": true, "ORIGIN_Y": true, "BINX": true,
	"BINY": true, "GAIN": true, "OFFSET": true, "GAIN_MIN": true, "GAIN_MAX": true,
	"DATACRC": true,
}

const (
	// maximum length of a quoted string value on one card
	maxStringValue = 68

	// maximum length of the text of a HISTORY card
	maxHistory = 72
)

// FileName is the name SaveFITS uses for this frame: <prefix>_<unix ms>.fits,
// with .gz appended when compressed
func (i *ImageData) FileName(prefix string, compress bool) string {
	fn := fmt.Sprintf("%s_%d.fits", prefix, i.Meta.Timestamp.UnixMilli())
	if compress {
		fn += ".gz"
	}
	return fn
}

// SaveFITS writes the frame to dir and returns the path written.  The
// directory must exist.  With compress, the whole file is gzipped, which
// FITS readers open transparently.  An existing file is replaced only if
// overwrite is true.
func (i *ImageData) SaveFITS(dir, prefix, program string, compress, overwrite bool) (string, error) {
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNoDirectory, dir)
	}
	path := filepath.Join(dir, i.FileName(prefix, compress))
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return path, fmt.Errorf("%w: %s", ErrFileExists, path)
		}
		return path, err
	}
	w := bufio.NewWriter(f)
	if compress {
		zw := gzip.NewWriter(w)
		zw.Name = strings.TrimSuffix(filepath.Base(path), ".gz")
		zw.ModTime = i.Meta.Timestamp
		err = i.WriteFITS(zw, program)
		if cerr := zw.Close(); err == nil {
			err = cerr
		}
	} else {
		err = i.WriteFITS(w, program)
	}
	if err == nil {
		err = w.Flush()
	}
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return path, err
	}
	return path, nil
}

// WriteFITS streams the frame and its metadata to w as a single primary HDU.
// Mono frames are 2D, RGB frames a 3-plane cube.
func (i *ImageData) WriteFITS(w io.Writer, program string) error {
	bitpix, dims, data, raw, err := i.fitsPayload()
	if err != nil {
		return err
	}
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	im := fitsio.NewImage(bitpix, dims)
	defer im.Close()
	cards := i.headerCards(program, crcTable.CalculateCRC(raw))
	if bitpix == 16 {
		cards = append([]fitsio.Card{
			{Name: "BZERO", Value: 32768},
			{Name: "BSCALE", Value: 1.0},
		}, cards...)
	}
	if err = im.Header().Append(cards...); err != nil {
		return err
	}
	if err = im.Write(data); err != nil {
		return err
	}
	return fits.Write(im)
}

// fitsPayload converts the image into the typed slice fitsio writes, and the
// raw bytes the checksum is computed over
func (i *ImageData) fitsPayload() (int, []int, interface{}, []byte, error) {
	w, h := i.Width(), i.Height()
	switch img := i.Image.(type) {
	case *image.Gray:
		buf := make([]byte, w*h)
		for y := 0; y < h; y++ {
			copy(buf[y*w:(y+1)*w], img.Pix[y*img.Stride:])
		}
		return 8, []int{w, h}, buf, buf, nil
	case *image.Gray16:
		px := i.Luma16()
		// underflow on uint16 produces the wrapping the BZERO convention expects
		buf := make([]int16, len(px))
		raw := make([]byte, 2*len(px))
		for idx, v := range px {
			buf[idx] = int16(v - 32768)
			raw[2*idx] = byte(v)
			raw[2*idx+1] = byte(v >> 8)
		}
		return 16, []int{w, h}, buf, raw, nil
	case *image.NRGBA:
		plane := w * h
		buf := make([]byte, 3*plane)
		for y := 0; y < h; y++ {
			row := img.Pix[y*img.Stride:]
			for x := 0; x < w; x++ {
				for c := 0; c < 3; c++ {
					buf[c*plane+y*w+x] = row[4*x+c]
				}
			}
		}
		return 8, []int{w, h, 3}, buf, buf, nil
	default:
		return 0, nil, nil, nil, fmt.Errorf("%w: %T", ErrUnsupportedImage, i.Image)
	}
}

func (i *ImageData) headerCards(program string, sum uint64) []fitsio.Card {
	m := i.Meta
	cards := []fitsio.Card{
		{Name: "PROGRAM", Value: program, Comment: "acquisition program"},
		{Name: "CAMERA", Value: m.CameraName},
		{Name: "TIMESTMP", Value: int(m.Timestamp.UnixMilli()), Comment: "ms since epoch at trigger"},
		{Name: "DATE-OBS", Value: m.Timestamp.UTC().Format("2006-01-02T15:04:05.000")},
	}
	if !m.Temperature.IsUnknown() {
		cards = append(cards, fitsio.Card{Name: "CCDTEMP", Value: float64(m.Temperature), Comment: "[C] sensor temperature"})
	}
	cards = append(cards,
		fitsio.Card{Name: "EXPOSURE", Value: int(m.Exposure.Microseconds()), Comment: "[us] exposure time"},
		fitsio.Card{Name: "EXPTIME", Value: m.Exposure.Seconds(), Comment: "[s] exposure time"},
		fitsio.Card{Name: "ORIGIN_X", Value: m.OriginX},
		fitsio.Card{Name: "ORIGIN_Y", Value: m.OriginY},
		fitsio.Card{Name: "BINX", Value: m.BinX},
		fitsio.Card{Name: "BINY", Value: m.BinY},
		fitsio.Card{Name: "GAIN", Value: int(m.Gain)},
		fitsio.Card{Name: "OFFSET", Value: m.Offset},
		fitsio.Card{Name: "GAIN_MIN", Value: int(m.GainMin)},
		fitsio.Card{Name: "GAIN_MAX", Value: int(m.GainMax)},
		fitsio.Card{Name: "DATACRC", Value: int(sum), Comment: "CRC-32 of the little-endian pixel data"},
	)
	return append(cards, extendedCards(m.Extended)...)
}

// extendedCards keeps every pair in order.  Pairs that cannot be a keyword
// card of their own are written as HISTORY KEY=VALUE, split over consecutive
// HISTORY cards when longer than one card holds.
func extendedCards(ext []KeyValue) []fitsio.Card {
	seen := map[string]bool{}
	cards := make([]fitsio.Card, 0, len(ext))
	for _, kv := range ext {
		key := strings.ToUpper(kv.Key)
		if validKeyword(key) && !standardKeys[key] && !seen[key] && len(kv.Value) <= maxStringValue {
			seen[key] = true
			cards = append(cards, fitsio.Card{Name: key, Value: kv.Value})
			continue
		}
		text := kv.Key + "=" + kv.Value
		for len(text) > maxHistory {
			cards = append(cards, fitsio.Card{Name: "HISTORY", Comment: text[:maxHistory]})
			text = text[maxHistory:]
		}
		cards = append(cards, fitsio.Card{Name: "HISTORY", Comment: text})
	}
	return cards
}

func validKeyword(k string) bool {
	if k == "" || len(k) > 8 || k == "HISTORY" || k == "COMMENT" {
		return false
	}
	for _, r := range k {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
