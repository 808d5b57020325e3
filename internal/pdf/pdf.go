// Package pdf provides the PDF decoding capability of the pipeline: structural
// validation and page counting with pdfcpu, page rasterization with MuPDF.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PointsPerInch is the PDF user-space unit density; a page rendered at scale 1.0
// has its natural size in pixels.
const PointsPerInch = 72.0

var ErrPageOutOfRange = errors.New("page index out of range")

func init() {
	// Keep pdfcpu from creating a config directory under the user's home.
	api.DisableConfigDir()
}

// Opener opens PDF documents from memory.
type Opener struct {
	conf *model.Configuration
}

// NewOpener returns an Opener using relaxed validation, which tolerates the
// minor spec violations common in scanner output.
func NewOpener() *Opener {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Opener{conf: conf}
}

// Document is an opened PDF ready for rendering. It is safe for concurrent use.
type Document struct {
	mu       sync.Mutex
	fz       *fitz.Document
	numPages int
}

// Open parses data, failing if the document structure is unreadable.
func (o *Opener) Open(data []byte) (*Document, error) {
	numPages, err := api.PageCount(bytes.NewReader(data), o.conf)
	if err != nil {
		return nil, fmt.Errorf("read page count: %w", err)
	}
	fz, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open for rendering: %w", err)
	}
	if n := fz.NumPage(); n < numPages {
		numPages = n
	}
	return &Document{fz: fz, numPages: numPages}, nil
}

// NumPages returns the number of renderable pages.
func (d *Document) NumPages() int {
	return d.numPages
}

// RenderPage renders the 1-based page pageIndex at the given viewport scale. The
// resulting image has the page's natural dimensions multiplied by scale.
func (d *Document) RenderPage(pageIndex int, scale float64) (image.Image, error) {
	if pageIndex < 1 || pageIndex > d.numPages {
		return nil, fmt.Errorf("page %d of %d: %w", pageIndex, d.numPages, ErrPageOutOfRange)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	img, err := d.fz.ImageDPI(pageIndex-1, PointsPerInch*scale)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", pageIndex, err)
	}
	return img, nil
}

// Close releases the MuPDF context.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fz.Close()
}
