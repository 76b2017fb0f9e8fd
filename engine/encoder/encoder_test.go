package encoder

import (
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"
)

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 28, 56))
	for y := 0; y < 56; y++ {
		for x := 0; x < 28; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 9), G: uint8(y * 4), B: 200, A: 255})
		}
	}
	return img
}

func TestEncodePNGHeader(t *testing.T) {
	url, err := Encode(testImage(), "PNG")
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("unexpected header: %.40s", url)
	}
	payload := strings.TrimPrefix(url, "data:image/png;base64,")
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		t.Errorf("payload is not standard base64: %v", err)
	}
}

func TestEncodeJPEGAlias(t *testing.T) {
	for _, name := range []string{"jpg", "JPEG", ".jpeg"} {
		url, err := Encode(testImage(), name)
		if err != nil {
			t.Fatalf("Encode(%q) returned error: %v", name, err)
		}
		if !strings.HasPrefix(url, "data:image/jpeg;base64,") {
			t.Errorf("Encode(%q) header = %.30s, want data:image/jpeg", name, url)
		}
	}
}

func TestEncodeUnsupported(t *testing.T) {
	for _, name := range []string{"xyz", "", "webp"} {
		if _, err := Encode(testImage(), name); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("Encode(%q): expected ErrUnsupportedFormat, got %v", name, err)
		}
	}
}

func TestPNGRoundTrip(t *testing.T) {
	src := testImage()
	url, err := Encode(src, "png")
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	decoded, format, err := Decode(url)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if format != "png" {
		t.Errorf("format = %q, want png", format)
	}
	if decoded.Bounds().Dx() != 28 || decoded.Bounds().Dy() != 56 {
		t.Fatalf("decoded bounds %v, want 28x56", decoded.Bounds())
	}
	for y := 0; y < 56; y++ {
		for x := 0; x < 28; x++ {
			want := src.NRGBAAt(x, y)
			got := color.NRGBAModel.Convert(decoded.At(x, y)).(color.NRGBA)
			if got != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := []string{
		"",
		"not a data url",
		"data:text/plain;base64,aGVsbG8=",
		"data:image/png,aGVsbG8=",
		"data:image/;base64,aGVsbG8=",
		"data:image/png;base64,%%%",
	}
	for _, c := range cases {
		if _, _, err := Decode(c); !errors.Is(err, ErrMalformedDataURL) {
			t.Errorf("Decode(%q): expected ErrMalformedDataURL, got %v", c, err)
		}
	}
}

func TestEncodeBytes(t *testing.T) {
	got := EncodeBytes([]byte("hi"), "image/png")
	if got != "data:image/png;base64,aGk=" {
		t.Errorf("EncodeBytes = %q", got)
	}
}

func TestExtension(t *testing.T) {
	f, err := ParseFormat("jpeg")
	if err != nil {
		t.Fatalf("ParseFormat returned error: %v", err)
	}
	if Extension(f) != "jpg" {
		t.Errorf("Extension(JPEG) = %q, want jpg", Extension(f))
	}
	f, _ = ParseFormat("tif")
	if MimeSubtype(f) != "tiff" {
		t.Errorf("MimeSubtype(TIFF) = %q, want tiff", MimeSubtype(f))
	}
}
