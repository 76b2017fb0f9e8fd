package pdfrenderer

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
)

var errEngineClosed = errors.New("pdfium engine closed")

// PDFiumEngine renders through PDFium compiled to WebAssembly (pure Go, no CGo).
// All documents share one instance, calls are serialised with mu.
type PDFiumEngine struct {
	mu       sync.Mutex
	pool     pdfium.Pool
	instance pdfium.Pdfium
}

// NewPDFiumEngine starts a single-worker WebAssembly pool
func NewPDFiumEngine() (*PDFiumEngine, error) {
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PDFium WebAssembly: %w", err)
	}

	instance, err := pool.GetInstance(time.Second * 30)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to get PDFium instance: %w", err)
	}

	return &PDFiumEngine{
		pool:     pool,
		instance: instance,
	}, nil
}

// Name implements Engine
func (e *PDFiumEngine) Name() string {
	return EnginePDFium
}

// Open implements Engine
func (e *PDFiumEngine) Open(path string) (Document, error) {
	pdfBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read PDF file: %w", err)
	}
	return e.OpenBytes(pdfBytes)
}

// OpenBytes loads a PDF already held in memory
func (e *PDFiumEngine) OpenBytes(pdfBytes []byte) (Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.instance == nil {
		return nil, errEngineClosed
	}

	doc, err := e.instance.OpenDocument(&requests.OpenDocument{
		File: &pdfBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}

	pageCount, err := e.instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: doc.Document,
	})
	if err != nil {
		e.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})
		return nil, fmt.Errorf("unable to get page count: %w", err)
	}

	return &pdfiumDocument{
		engine: e,
		doc:    doc.Document,
		pages:  pageCount.PageCount,
	}, nil
}

// Close shuts down the WebAssembly pool
func (e *PDFiumEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool != nil {
		e.pool.Close()
		e.pool = nil
	}
	e.instance = nil
	return nil
}

type pdfiumDocument struct {
	engine *PDFiumEngine
	doc    references.FPDF_DOCUMENT
	pages  int
	closed bool
}

func (d *pdfiumDocument) PageCount() int {
	return d.pages
}

func (d *pdfiumDocument) RenderPage(index int, dpi float64) (*RasterPage, error) {
	d.engine.mu.Lock()
	defer d.engine.mu.Unlock()
	if d.engine.instance == nil {
		return nil, errEngineClosed
	}

	pageRender, err := d.engine.instance.RenderPageInDPI(&requests.RenderPageInDPI{
		DPI: int(math.Round(dpi)),
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: d.doc,
				Index:    index,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to render page %d: %w", index, err)
	}
	// the image lives in WebAssembly memory until Cleanup, copy it out first
	defer pageRender.Cleanup()

	if pageRender.Result.Image == nil {
		return nil, ErrEmptyRaster
	}
	return NewRasterPage(pageRender.Result.Image)
}

func (d *pdfiumDocument) Close() error {
	d.engine.mu.Lock()
	defer d.engine.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.engine.instance == nil {
		return errEngineClosed
	}
	_, err := d.engine.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: d.doc,
	})
	return err
}
