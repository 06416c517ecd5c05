// Package texture loads material images and prepares them for embedding
// in or referencing from a glTF document.
package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder for DecodeConfig
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Texture errors.
var (
	ErrUnknownFormat = errors.New("unknown image format")
	ErrNotReferable  = errors.New("image format cannot be referenced from glTF")
)

// Format is an image container format.
type Format uint8

// Image formats.
const (
	FormatUnknown Format = iota
	FormatPNG
	FormatJPEG
	FormatTGA
	FormatBMP
	FormatTIFF
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpeg"
	case FormatTGA:
		return "tga"
	case FormatBMP:
		return "bmp"
	case FormatTIFF:
		return "tiff"
	default:
		return "unknown"
	}
}

// MimeType returns the MIME type glTF uses for the format.
// Only PNG and JPEG have one.
func (f Format) MimeType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatJPEG:
		return "image/jpeg"
	}
	return ""
}

// Native reports whether glTF viewers accept the format as is.
func (f Format) Native() bool {
	return f == FormatPNG || f == FormatJPEG
}

// Detect identifies the image format from its magic bytes, falling back to
// the file extension for TGA, which has none.
func Detect(path string, data []byte) Format {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return FormatPNG
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return FormatJPEG
	case bytes.HasPrefix(data, []byte("BM")):
		return FormatBMP
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return FormatTIFF
	}
	if strings.EqualFold(filepath.Ext(path), ".tga") {
		return FormatTGA
	}
	return FormatUnknown
}

// Image is a texture image file read into memory.
type Image struct {
	Path   string
	Format Format
	Data   []byte
	Hash   uint64 // xxhash of Data
}

// Load reads and identifies an image file.
func Load(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromBytes(path, data)
}

// FromBytes identifies an in-memory image.
func FromBytes(path string, data []byte) (*Image, error) {
	img := &Image{Path: path, Format: Detect(path, data), Data: data, Hash: Hash(data)}
	if img.Format == FormatUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	return img, nil
}

// Hash returns the content hash used to deduplicate textures.
func Hash(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// Decode decodes the image pixels.
func (i *Image) Decode() (image.Image, error) {
	r := bytes.NewReader(i.Data)
	switch i.Format {
	case FormatTGA:
		return DecodeTGA(i.Data)
	case FormatBMP:
		return bmp.Decode(r)
	case FormatTIFF:
		return tiff.Decode(r)
	}
	img, _, err := image.Decode(r)
	return img, err
}

// Size returns the pixel dimensions without decoding the whole image
// where the format allows it.
func (i *Image) Size() (int, int, error) {
	var (
		cfg image.Config
		err error
	)
	switch i.Format {
	case FormatTGA:
		if len(i.Data) < tgaHeaderSize {
			return 0, 0, ErrTGATruncated
		}
		return int(i.Data[12]) | int(i.Data[13])<<8, int(i.Data[14]) | int(i.Data[15])<<8, nil
	case FormatBMP:
		cfg, err = bmp.DecodeConfig(bytes.NewReader(i.Data))
	case FormatTIFF:
		cfg, err = tiff.DecodeConfig(bytes.NewReader(i.Data))
	default:
		cfg, _, err = image.DecodeConfig(bytes.NewReader(i.Data))
	}
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// Embeddable returns bytes and MIME type suitable for a glTF buffer view.
// PNG and JPEG are validated and kept verbatim; other formats are
// re-encoded as PNG.
func (i *Image) Embeddable() ([]byte, string, error) {
	if i.Format.Native() {
		if _, _, err := i.Size(); err != nil {
			return nil, "", fmt.Errorf("%s: %w", i.Path, err)
		}
		return i.Data, i.Format.MimeType(), nil
	}
	img, err := i.Decode()
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", i.Path, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", fmt.Errorf("%s: %w", i.Path, err)
	}
	return buf.Bytes(), FormatPNG.MimeType(), nil
}

// Referable checks that the image can be linked by URI.
func (i *Image) Referable() error {
	if !i.Format.Native() {
		return fmt.Errorf("%w: %s is %s", ErrNotReferable, i.Path, i.Format)
	}
	return nil
}
