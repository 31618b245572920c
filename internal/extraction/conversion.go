package extraction

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// maxImageDimension bounds the longest side of the image sent to a backend.
// Phone photos and high DPI PDF renders are far larger than models read.
const maxImageDimension = 2048

// documentFormat is the detected on-disk format of an upload
type documentFormat int

const (
	formatImage documentFormat = iota
	formatPNG
	formatPDF
	formatHEIC
)

// detectFormat looks at magic bytes first and falls back to the declared
// content type
func detectFormat(data []byte, contentType string) documentFormat {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))

	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return formatPDF
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return formatPNG
	case isHEIC(data):
		return formatHEIC
	case mimeType == "application/pdf":
		return formatPDF
	case strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif"):
		return formatHEIC
	}
	return formatImage
}

// isHEIC checks for an ftyp box with one of the HEIC/HEIF brands at offset 4
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// toPNG renders an uploaded document into a single PNG image suitable for a
// vision model. Invoices are read from their first page.
func toPNG(data []byte, contentType string) ([]byte, error) {
	var (
		img image.Image
		err error
	)

	switch detectFormat(data, contentType) {
	case formatPNG:
		cfg, cfgErr := png.DecodeConfig(bytes.NewReader(data))
		if cfgErr == nil && cfg.Width <= maxImageDimension && cfg.Height <= maxImageDimension {
			return data, nil
		}
		img, err = png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding PNG: %w", err)
		}
	case formatPDF:
		doc, openErr := fitz.NewFromMemory(data)
		if openErr != nil {
			return nil, fmt.Errorf("opening PDF: %w", openErr)
		}
		defer doc.Close()
		if doc.NumPage() == 0 {
			return nil, fmt.Errorf("PDF has no pages")
		}
		img, err = doc.Image(0)
		if err != nil {
			return nil, fmt.Errorf("rendering PDF page: %w", err)
		}
	case formatHEIC:
		img, err = heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	default:
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("unsupported document format (supported: PDF, PNG, JPEG, GIF, HEIC): %w", err)
		}
	}

	if b := img.Bounds(); b.Dx() > maxImageDimension || b.Dy() > maxImageDimension {
		img = imaging.Fit(img, maxImageDimension, maxImageDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}
