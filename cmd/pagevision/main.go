// Command pagevision prepares a PDF or image for a vision OCR model from the
// command line: it renders, normalizes and encodes every selected page.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	config "github.com/drummonds/pagevision/config"
	engine "github.com/drummonds/pagevision/engine"
	"github.com/drummonds/pagevision/engine/pdfrenderer"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "pagevision:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	_ = godotenv.Load(".env")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	config.Logger = logger
	engine.Logger = logger
	pdfrenderer.Logger = logger
	defaults := config.LoadServerConfig(logger).RenderConfig

	flags := flag.NewFlagSet("pagevision", flag.ContinueOnError)
	input := flags.String("input", "", "PDF or image file to prepare")
	dpi := flags.Float64("dpi", defaults.TargetDPI, "Render resolution for PDF pages")
	start := flags.Int("start", 0, "First page, zero-based")
	end := flags.Int("end", -1, "Last page, zero-based (-1 means the last page)")
	format := flags.String("format", defaults.ImageFormat, "Output format (png, jpeg, gif, tiff, bmp)")
	renderer := flags.String("renderer", defaults.PDFRenderer, "PDF renderer (fitz or pdfium)")
	outDir := flags.String("out", "", "Directory for normalized page images, data URLs are printed when empty")
	inspect := flags.Bool("inspect", false, "Print page geometry as JSON without rendering")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *input == "" {
		flags.Usage()
		return errors.New("-input is required")
	}

	if *inspect {
		result, err := pdfrenderer.Probe(*input, *dpi, defaults.RasterOptions())
		if err != nil {
			return err
		}
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	pdfEngine, err := pdfrenderer.NewEngine(*renderer)
	if err != nil {
		return err
	}
	defer pdfEngine.Close()

	preparer := engine.NewPreparer(pdfEngine, defaults.RasterOptions(), defaults.ResizeOptions(), strings.ToLower(*format))
	pages, err := engine.PrepareFile(preparer, *input, *dpi, pdfrenderer.NewPageRange(*start, *end))
	if err != nil {
		return err
	}

	if *outDir == "" {
		for _, page := range pages {
			fmt.Fprintln(stdout, page.DataURL)
		}
		return nil
	}

	paths, err := engine.WritePageImages(*outDir, pages)
	if err != nil {
		return err
	}
	for i, path := range paths {
		page := pages[i]
		fallback := ""
		if page.Fallback {
			fallback = " (fallback)"
		}
		fmt.Fprintf(stdout, "%s\t%dx%d -> %dx%d%s\n", path, page.SourceWidth, page.SourceHeight, page.Width, page.Height, fallback)
	}
	return nil
}
