// Package imgrec contains an image recorder used to automatically save images to disk.
package imgrec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nasa-jpl/cameraunit/imagedata"
)

// Recorder saves images as FITS files in yyyy-mm-dd subfolders of Root.  It
// is not thread safe.
type Recorder struct {
	// Root is the root path
	Root string

	// Prefix is the prefix for the filenames
	Prefix string

	// Program is written to the PROGRAM header card
	Program string

	// Overwrite replaces existing files of the same name
	Overwrite bool

	// Compress gzips each file, writing .fits.gz
	Compress bool

	// PreviewSize, if nonzero, also writes a PNG thumbnail of at most
	// PreviewSize pixels on a side next to each FITS file
	PreviewSize int

	// Enabled is a flag unused by this struct that allows consumers to disable its use in their code
	Enabled bool

	// Now stamps images that have no timestamp
	Now func() time.Time
}

// New returns an enabled recorder
func New(root, prefix, program string) *Recorder {
	return &Recorder{Root: root, Prefix: prefix, Program: program, Enabled: true, Now: time.Now}
}

// Folder returns the subfolder for an image taken at t
func (r *Recorder) Folder(t time.Time) string {
	return filepath.Join(r.Root, t.Format("2006-01-02"))
}

func (r *Recorder) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// Save writes img into the folder of the day it was taken, creating the
// folder if needed, and returns the path of the FITS file.  An image
// without a timestamp is stamped with the recorder's clock.
func (r *Recorder) Save(img *imagedata.ImageData) (string, error) {
	if img.Meta.Timestamp.IsZero() {
		img.Meta.Timestamp = r.now()
	}
	fldr := r.Folder(img.Meta.Timestamp)
	if err := os.MkdirAll(fldr, 0777); err != nil {
		return "", err
	}
	fn, err := img.SaveFITS(fldr, r.Prefix, r.Program, r.Compress, r.Overwrite)
	if err != nil {
		return "", err
	}
	if r.PreviewSize > 0 {
		png := strings.TrimSuffix(strings.TrimSuffix(fn, ".gz"), ".fits") + ".png"
		if err := img.SavePreview(png, r.PreviewSize); err != nil {
			return fn, fmt.Errorf("preview for %s: %w", fn, err)
		}
	}
	return fn, nil
}

// Count returns the number of FITS files, compressed or not, with the recorder's prefix in the
// folder for t
func (r *Recorder) Count(t time.Time) (int, error) {
	entries, err := os.ReadDir(r.Folder(t))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	count := 0
	for _, e := range entries {
		// skip directories, non-fits, and wrong prefix
		if e.IsDir() {
			continue
		}
		fn := e.Name()
		fits := strings.HasSuffix(fn, ".fits") || strings.HasSuffix(fn, ".fits.gz")
		if fits && strings.HasPrefix(fn, r.Prefix) {
			count++
		}
	}
	return count, nil
}
