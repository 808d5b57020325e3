package services_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/ocrgrabber/internal/models"
	"github.com/Lllllllleong/ocrgrabber/internal/ocr"
	"github.com/Lllllllleong/ocrgrabber/internal/services"
)

func solidImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solidImage(w, h)))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solidImage(w, h), nil))
	return buf.Bytes()
}

// fakePDF renders every page as a blank image; pages listed in failPages fail.
type fakePDF struct {
	pages     int
	failPages map[int]bool
	closed    atomic.Bool
}

func (f *fakePDF) NumPages() int { return f.pages }

func (f *fakePDF) RenderPage(pageIndex int, scale float64) (image.Image, error) {
	if f.failPages[pageIndex] {
		return nil, errors.New("bad page stream")
	}
	return solidImage(int(20*scale), int(30*scale)), nil
}

func (f *fakePDF) Close() error {
	f.closed.Store(true)
	return nil
}

// pdfMagic marks byte blobs the fake opener accepts; the trailing byte is the page count.
var pdfMagic = []byte("%PDF-fake-")

func fakePDFBytes(pages int) []byte {
	return append(append([]byte(nil), pdfMagic...), byte(pages))
}

func fakeOpener() services.PDFOpener {
	return services.PDFOpenerFunc(func(data []byte) (services.PDFDocument, error) {
		if !bytes.HasPrefix(data, pdfMagic) || len(data) != len(pdfMagic)+1 {
			return nil, errors.New("malformed xref table")
		}
		return &fakePDF{pages: int(data[len(pdfMagic)])}, nil
	})
}

// fakeEngine reports two stages and returns text naming the input. It records
// the peak number of concurrent Recognize calls.
type fakeEngine struct {
	delay time.Duration
	// ignoreCancel makes the delay run to completion like a blocking cgo call.
	ignoreCancel bool
	fail         func(in ocr.Input) error
	mu           sync.Mutex
	active       int
	peak         int
	calls        int
	started      chan struct{}
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Stages() []string {
	return []string{ocr.StageInitializingAPI, ocr.StageRecognizing}
}

func (e *fakeEngine) Recognize(ctx context.Context, in ocr.Input, progress ocr.ProgressFunc) (models.OCRResult, error) {
	e.mu.Lock()
	e.active++
	e.calls++
	e.peak = max(e.peak, e.active)
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.active--
		e.mu.Unlock()
	}()
	if e.started != nil {
		select {
		case e.started <- struct{}{}:
		default:
		}
	}

	ocr.Report(progress, ocr.StageInitializingAPI, 0)
	ocr.Report(progress, ocr.StageInitializingAPI, 100)
	ocr.Report(progress, ocr.StageRecognizing, 0)
	if e.delay > 0 && e.ignoreCancel {
		time.Sleep(e.delay)
	} else if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return models.OCRResult{}, ctx.Err()
		}
	}
	if e.fail != nil {
		if err := e.fail(in); err != nil {
			return models.OCRResult{}, err
		}
	}
	ocr.Report(progress, ocr.StageRecognizing, 100)
	return models.OCRResult{Text: "text of " + in.ID, Confidence: 91, LineCount: 1, WordCount: 3, ParagraphCount: 1, SymbolCount: 12}, nil
}

func (e *fakeEngine) Peak() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.peak
}

func (e *fakeEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}
