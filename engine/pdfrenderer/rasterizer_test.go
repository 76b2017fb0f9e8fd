package pdfrenderer

import (
	"errors"
	"math"
	"testing"
)

var errBoom = errors.New("boom")

// fakeEngine serves documents whose pages render to points*dpi/72 pixels
type fakeEngine struct {
	pages       [][2]float64
	openErr     error
	renderErrs  map[int]error
	fallbackErr error
	docs        []*fakeDocument
}

func (e *fakeEngine) Name() string { return "fake" }
func (e *fakeEngine) Close() error { return nil }

func (e *fakeEngine) Open(path string) (Document, error) {
	if e.openErr != nil {
		return nil, e.openErr
	}
	doc := &fakeDocument{engine: e}
	e.docs = append(e.docs, doc)
	return doc, nil
}

type renderCall struct {
	index int
	dpi   float64
}

type fakeDocument struct {
	engine *fakeEngine
	calls  []renderCall
	closes int
}

func (d *fakeDocument) PageCount() int { return len(d.engine.pages) }

func (d *fakeDocument) RenderPage(index int, dpi float64) (*RasterPage, error) {
	d.calls = append(d.calls, renderCall{index, dpi})
	if err := d.engine.renderErrs[index]; err != nil {
		return nil, err
	}
	if d.engine.fallbackErr != nil && dpi == PDFNativeDPI {
		return nil, d.engine.fallbackErr
	}
	size := d.engine.pages[index]
	// geometry only, the rasterizer never reads Pix
	return &RasterPage{
		Width:  int(math.Ceil(size[0] * dpi / PDFNativeDPI)),
		Height: int(math.Ceil(size[1] * dpi / PDFNativeDPI)),
	}, nil
}

func (d *fakeDocument) Close() error {
	d.closes++
	return nil
}

func letterPages(n int) [][2]float64 {
	pages := make([][2]float64, n)
	for i := range pages {
		pages[i] = [2]float64{612, 792}
	}
	return pages
}

func TestRenderPageWithinLimit(t *testing.T) {
	engine := &fakeEngine{pages: letterPages(1)}
	doc, _ := engine.Open("letter.pdf")
	r := NewRasterizer(RasterOptions{})

	got, err := r.RenderPage(doc, 0, 0)
	if err != nil {
		t.Fatalf("RenderPage returned error: %v", err)
	}
	if got.Fallback || got.DPI != DefaultTargetDPI {
		t.Errorf("expected target dpi render, got dpi=%v fallback=%v", got.DPI, got.Fallback)
	}
	if got.Page.Width != 1700 || got.Page.Height != 2200 {
		t.Errorf("page size %dx%d, want 1700x2200", got.Page.Width, got.Page.Height)
	}
	if calls := engine.docs[0].calls; len(calls) != 1 {
		t.Errorf("expected 1 render call, got %v", calls)
	}
}

func TestRenderPageFallback(t *testing.T) {
	engine := &fakeEngine{pages: [][2]float64{{3000, 3000}}}
	doc, _ := engine.Open("poster.pdf")
	r := NewRasterizer(DefaultRasterOptions())

	got, err := r.RenderPage(doc, 0, 200)
	if err != nil {
		t.Fatalf("RenderPage returned error: %v", err)
	}
	if !got.Fallback || got.DPI != PDFNativeDPI {
		t.Errorf("expected native fallback, got dpi=%v fallback=%v", got.DPI, got.Fallback)
	}
	if got.Page.Width != 3000 || got.Page.Height != 3000 {
		t.Errorf("fallback page size %dx%d, want 3000x3000", got.Page.Width, got.Page.Height)
	}
	calls := engine.docs[0].calls
	if len(calls) != 2 || calls[0].dpi != 200 || calls[1].dpi != PDFNativeDPI {
		t.Errorf("unexpected render calls %v", calls)
	}
}

func TestRenderPageFallbackSingleRetry(t *testing.T) {
	// still oversized at 72 DPI: returned as-is, no third render
	engine := &fakeEngine{pages: [][2]float64{{6000, 100}}}
	doc, _ := engine.Open("banner.pdf")
	r := NewRasterizer(DefaultRasterOptions())

	got, err := r.RenderPage(doc, 0, 200)
	if err != nil {
		t.Fatalf("RenderPage returned error: %v", err)
	}
	if !got.Fallback || got.Page.Width != 6000 {
		t.Errorf("expected 6000px fallback page, got %+v", got)
	}
	if calls := engine.docs[0].calls; len(calls) != 2 {
		t.Errorf("expected exactly 2 render calls, got %v", calls)
	}
}

func TestRenderPageHeightOnlyExceeds(t *testing.T) {
	engine := &fakeEngine{pages: [][2]float64{{100, 1700}}}
	doc, _ := engine.Open("strip.pdf")
	got, err := NewRasterizer(DefaultRasterOptions()).RenderPage(doc, 0, 200)
	if err != nil {
		t.Fatalf("RenderPage returned error: %v", err)
	}
	if !got.Fallback {
		t.Errorf("height 4723 should trigger fallback, got %+v", got)
	}
}

func TestRenderPageErrors(t *testing.T) {
	engine := &fakeEngine{pages: letterPages(1), renderErrs: map[int]error{0: errBoom}}
	doc, _ := engine.Open("broken.pdf")
	_, err := NewRasterizer(DefaultRasterOptions()).RenderPage(doc, 0, 200)
	if !errors.Is(err, ErrRasterization) || !errors.Is(err, errBoom) {
		t.Errorf("expected ErrRasterization wrapping cause, got %v", err)
	}

	engine = &fakeEngine{pages: [][2]float64{{3000, 3000}}, fallbackErr: errBoom}
	doc, _ = engine.Open("poster.pdf")
	_, err = NewRasterizer(DefaultRasterOptions()).RenderPage(doc, 0, 200)
	if !errors.Is(err, ErrRasterization) || !errors.Is(err, errBoom) {
		t.Errorf("expected fallback failure wrapped in ErrRasterization, got %v", err)
	}
}

func intPtr(v int) *int { return &v }

func TestRenderDocumentRange(t *testing.T) {
	tests := []struct {
		name    string
		pages   int
		rng     PageRange
		indices []int
	}{
		{"all pages", 3, AllPages(), []int{0, 1, 2}},
		{"end clamped", 3, NewPageRange(0, 10), []int{0, 1, 2}},
		{"start with clamp", 5, NewPageRange(3, 99), []int{3, 4}},
		{"negative end is last", 4, NewPageRange(1, -1), []int{1, 2, 3}},
		{"nil end", 3, PageRange{Start: intPtr(2)}, []int{2}},
		{"single page", 3, NewPageRange(1, 1), []int{1}},
		{"start past end", 3, NewPageRange(2, 1), []int{}},
		{"start past last", 3, NewPageRange(7, -1), []int{}},
		{"empty document", 0, AllPages(), []int{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine := &fakeEngine{pages: letterPages(tc.pages)}
			got, err := NewRasterizer(DefaultRasterOptions()).RenderDocumentRange(engine, "doc.pdf", 200, tc.rng)
			if err != nil {
				t.Fatalf("RenderDocumentRange returned error: %v", err)
			}
			if len(got) != len(tc.indices) {
				t.Fatalf("got %d pages, want %d", len(got), len(tc.indices))
			}
			for i, page := range got {
				if page.Index != tc.indices[i] {
					t.Errorf("page %d has index %d, want %d", i, page.Index, tc.indices[i])
				}
			}
			if closes := engine.docs[0].closes; closes != 1 {
				t.Errorf("document closed %d times, want 1", closes)
			}
		})
	}
}

func TestRenderDocumentRangeClosesOnError(t *testing.T) {
	engine := &fakeEngine{pages: letterPages(4), renderErrs: map[int]error{2: errBoom}}
	got, err := NewRasterizer(DefaultRasterOptions()).RenderDocumentRange(engine, "doc.pdf", 200, AllPages())
	if !errors.Is(err, ErrRasterization) || !errors.Is(err, errBoom) {
		t.Fatalf("expected rasterization error, got %v", err)
	}
	if got != nil {
		t.Errorf("expected no pages on error, got %d", len(got))
	}
	if closes := engine.docs[0].closes; closes != 1 {
		t.Errorf("document closed %d times, want 1", closes)
	}
	// pages 0 and 1 rendered, stopped at 2
	if calls := engine.docs[0].calls; len(calls) != 3 {
		t.Errorf("expected 3 render calls, got %v", calls)
	}
}

func TestRenderDocumentRangeOpenError(t *testing.T) {
	engine := &fakeEngine{openErr: errBoom}
	_, err := NewRasterizer(DefaultRasterOptions()).RenderDocumentRange(engine, "missing.pdf", 200, AllPages())
	if !errors.Is(err, ErrRasterization) || !errors.Is(err, errBoom) {
		t.Errorf("expected open failure wrapped in ErrRasterization, got %v", err)
	}
	if len(engine.docs) != 0 {
		t.Errorf("no document should have been opened")
	}
}

func TestRenderDocumentRangeMixedFallback(t *testing.T) {
	engine := &fakeEngine{pages: [][2]float64{{612, 792}, {3000, 3000}, {612, 792}}}
	got, err := NewRasterizer(DefaultRasterOptions()).RenderDocumentRange(engine, "mixed.pdf", 200, AllPages())
	if err != nil {
		t.Fatalf("RenderDocumentRange returned error: %v", err)
	}
	want := []bool{false, true, false}
	for i, page := range got {
		if page.Fallback != want[i] {
			t.Errorf("page %d fallback = %v, want %v", i, page.Fallback, want[i])
		}
	}
}

func TestNewRasterizerDefaults(t *testing.T) {
	r := NewRasterizer(RasterOptions{TargetDPI: 300})
	if r.Options.TargetDPI != 300 || r.Options.NativeDPI != 72 || r.Options.MaxDimension != 4500 {
		t.Errorf("unexpected options %+v", r.Options)
	}
}
