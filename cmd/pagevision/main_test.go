package main

import (
	"bytes"
	"encoding/json"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/drummonds/pagevision/engine/encoder"
	"github.com/drummonds/pagevision/engine/pdfrenderer"
	"github.com/drummonds/pagevision/engine/pdfrenderer/pdftest"
)

func writeImage(t *testing.T, w, h int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.png")
	if err := imaging.Save(imaging.New(w, h, color.White), path); err != nil {
		t.Fatalf("Failed to write image: %v", err)
	}
	return path
}

func TestRunRequiresInput(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{}, &out); err == nil {
		t.Error("Expected error without -input")
	}
}

func TestRunPrintsDataURLs(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"-input", writeImage(t, 100, 100)}, &out); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected one data URL, got %d lines", len(lines))
	}
	img, format, err := encoder.Decode(lines[0])
	if err != nil {
		t.Fatalf("Output is not a data URL: %v", err)
	}
	if format != "png" || img.Bounds().Dx() != 112 || img.Bounds().Dy() != 112 {
		t.Errorf("Expected 112x112 png, got %s %v", format, img.Bounds())
	}
}

func TestRunWritesImages(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "out")
	var out bytes.Buffer
	if err := run([]string{"-input", writeImage(t, 1000, 70), "-format", "JPEG", "-out", outDir}, &out); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	path := filepath.Join(outDir, "page_000.jpg")
	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("Expected %s: %v", path, err)
	}
	if img.Bounds().Dx() != 1008 || img.Bounds().Dy() != 56 {
		t.Errorf("Expected 1008x56, got %v", img.Bounds())
	}
	if !strings.Contains(out.String(), "1000x70 -> 1008x56") {
		t.Errorf("Unexpected summary %q", out.String())
	}
}

func TestRunErrors(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"-input", writeImage(t, 10, 10), "-format", "xyz"}, &out); err == nil {
		t.Error("Expected error for unsupported format")
	}
	if err := run([]string{"-input", writeImage(t, 1, 300)}, &out); err == nil {
		t.Error("Expected error for extreme aspect ratio")
	}
	if err := run([]string{"-input", writeImage(t, 10, 10), "-renderer", "ghostscript"}, &out); err == nil {
		t.Error("Expected error for unknown renderer")
	}
	if err := run([]string{"-input", filepath.Join(t.TempDir(), "missing.pdf"), "-inspect"}, &out); err == nil {
		t.Error("Expected error for missing PDF")
	}
}

func TestRunInspect(t *testing.T) {
	path := pdftest.WriteFile(t, "poster.pdf", pdftest.Build(pdftest.Letter, pdftest.Page{Width: 3000, Height: 3000}))
	var out bytes.Buffer
	if err := run([]string{"-input", path, "-inspect"}, &out); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var result pdfrenderer.ProbeResult
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("Output is not JSON: %v", err)
	}
	if result.PageCount != 2 || result.Pages[0].Fallback || !result.Pages[1].Fallback {
		t.Errorf("Unexpected probe result %+v", result)
	}
}

func TestRunRendersPDF(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping MuPDF rendering in short mode")
	}
	path := pdftest.WriteFile(t, "letter.pdf", pdftest.Build(pdftest.Letter, pdftest.Letter))
	outDir := t.TempDir()
	var out bytes.Buffer
	if err := run([]string{"-input", path, "-start", "1", "-out", outDir}, &out); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "page_001.png")); err != nil {
		t.Errorf("Expected only page 1 to be written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "page_000.png")); !os.IsNotExist(err) {
		t.Error("Page 0 should not be rendered")
	}
}
