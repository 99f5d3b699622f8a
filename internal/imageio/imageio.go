// Package imageio loads scanned negatives into working buffers and writes
// rendered prints back to disk.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/tiff"

	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/negative"
)

// SupportedExtensions lists the scan formats the loader accepts.
var SupportedExtensions = []string{".tif", ".tiff", ".png", ".jpg", ".jpeg", ".bmp"}

// IsSupported reports whether the path has a loadable extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Metadata captures lightweight file and pixel information about a scan.
type Metadata struct {
	Path      string
	SizeBytes int64
	Width     int
	Height    int
	Hash      string
}

// LoadBuffer opens a scan and converts it to the working representation.
// EXIF orientation is deliberately not applied: scanner software disagrees
// about it and the geometry stage owns orientation.
func LoadBuffer(path string) (*imagemath.Buffer, Metadata, error) {
	if path == "" {
		return nil, Metadata{}, errors.New("load image: empty path")
	}
	if !IsSupported(path) {
		return nil, Metadata{}, fmt.Errorf("load image: unsupported format %q", filepath.Ext(path))
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("load image: %w", err)
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("load image %s: %w", path, err)
	}

	hash, err := negative.FileHash(path)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("load image %s: %w", path, err)
	}

	b := img.Bounds()
	meta := Metadata{
		Path:      path,
		SizeBytes: fi.Size(),
		Width:     b.Dx(),
		Height:    b.Dy(),
		Hash:      hash,
	}
	return imagemath.FromImage(img), meta, nil
}

// Save encodes img at path using the encoder the format names. TIFF and
// PNG callers should pass 16-bit images to keep print depth.
func Save(path string, img image.Image, format negative.ExportFormat) error {
	f, err := os.Create(path) //nolint:gosec // export path is user input
	if err != nil {
		return fmt.Errorf("save image: %w", err)
	}

	switch format {
	case negative.FormatTIFF:
		err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	case negative.FormatPNG:
		err = png.Encode(f, img)
	case negative.FormatJPEG:
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 95})
	default:
		err = fmt.Errorf("unknown export format %q", format)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("save image %s: %w", path, err)
	}
	return nil
}

// ExportPath derives the output file name for a source scan: same base
// name, format extension, in outDir (or alongside the source when outDir
// is empty).
func ExportPath(srcPath, outDir string, format negative.ExportFormat) string {
	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	ext := map[negative.ExportFormat]string{
		negative.FormatTIFF: ".tif",
		negative.FormatPNG:  ".png",
		negative.FormatJPEG: ".jpg",
	}[format]
	if ext == "" {
		ext = ".tif"
	}
	if outDir == "" {
		outDir = filepath.Dir(srcPath)
	}
	return filepath.Join(outDir, base+"_print"+ext)
}
