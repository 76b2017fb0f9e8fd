package engine

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/drummonds/pagevision/database"
	"github.com/drummonds/pagevision/engine/pdfrenderer"
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".tif", ".tiff", ".bmp", ".webp"}

// isProcessableDocument checks if a file is a PDF or an image we can prepare
func isProcessableDocument(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".pdf" {
		return true
	}
	for _, validExt := range imageExtensions {
		if ext == validExt {
			return true
		}
	}
	return false
}

// isPDF looks at the extension first and then at the file header
func isPDF(path string) bool {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return true
	}
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()
	header := make([]byte, 5)
	n, _ := file.Read(header)
	return bytes.Equal(header[:n], []byte("%PDF-"))
}

// PrepareFile runs a PDF or an image file through preparer
func PrepareFile(preparer *Preparer, path string, dpi float64, pr pdfrenderer.PageRange) ([]PreparedPage, error) {
	if isPDF(path) {
		return preparer.PreparePDF(path, dpi, pr)
	}
	page, err := preparer.PrepareImageFile(path)
	if err != nil {
		return nil, err
	}
	return []PreparedPage{page}, nil
}

// pageRecords converts prepared pages into rows for the job, outputPaths may be nil
func pageRecords(jobID ulid.ULID, source string, pages []PreparedPage, outputPaths []string) []database.PreparedPageRecord {
	records := make([]database.PreparedPageRecord, 0, len(pages))
	for i, page := range pages {
		record := database.PreparedPageRecord{
			JobID:         jobID,
			Source:        source,
			PageIndex:     page.Index,
			SourceWidth:   page.SourceWidth,
			SourceHeight:  page.SourceHeight,
			Width:         page.Width,
			Height:        page.Height,
			DPI:           page.DPI,
			Fallback:      page.Fallback,
			Format:        page.Format,
			EncodedLength: len(page.DataURL),
		}
		if i < len(outputPaths) {
			record.OutputPath = outputPaths[i]
		}
		records = append(records, record)
	}
	return records
}
