// Package encoder turns bitmaps into self-describing data URLs
// (data:image/<format>;base64,<payload>) for vision inference requests.
package encoder

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

var (
	// ErrUnsupportedFormat is returned when the requested format has no encoder
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrMalformedDataURL is returned by Decode when the header is not data:image/<fmt>;base64,
	ErrMalformedDataURL = errors.New("malformed data url")
)

const dataURLPrefix = "data:"

// DefaultFormat is used when the caller does not ask for one
const DefaultFormat = "png"

// ParseFormat resolves a format name or file extension ("png", "JPG", ".jpeg")
func ParseFormat(format string) (imaging.Format, error) {
	f, err := imaging.FormatFromExtension(format)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return f, nil
}

// MimeSubtype returns the lowercase canonical name used in the data URL header
func MimeSubtype(f imaging.Format) string {
	return strings.ToLower(f.String())
}

// Extension returns the file extension written for f
func Extension(f imaging.Format) string {
	if f == imaging.JPEG {
		return "jpg"
	}
	return MimeSubtype(f)
}

// Encode serializes img in the given format and wraps it in a data URL.
// The image is written as-is, no resizing and no colour conversion.
func Encode(img image.Image, format string) (string, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, f); err != nil {
		return "", fmt.Errorf("failed to encode %s image: %w", f, err)
	}
	return EncodeBytes(buf.Bytes(), "image/"+MimeSubtype(f)), nil
}

// EncodeBytes wraps already-encoded bytes as a data URL
func EncodeBytes(data []byte, mimeType string) string {
	return dataURLPrefix + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Decode parses a data URL produced by Encode and returns the image and the
// format named in its header.
func Decode(dataURL string) (image.Image, string, error) {
	header, payload, found := strings.Cut(dataURL, ",")
	if !found || !strings.HasPrefix(header, dataURLPrefix+"image/") || !strings.HasSuffix(header, ";base64") {
		return nil, "", ErrMalformedDataURL
	}
	format := strings.TrimSuffix(strings.TrimPrefix(header, dataURLPrefix+"image/"), ";base64")
	if format == "" {
		return nil, "", ErrMalformedDataURL
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedDataURL, err)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode %s payload: %w", format, err)
	}
	return img, format, nil
}
