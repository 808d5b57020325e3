package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"iter"
	"log/slog"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Lllllllleong/ocrgrabber/internal/models"
)

// PDFDocument is an opened PDF that can render its pages.
type PDFDocument interface {
	NumPages() int
	RenderPage(pageIndex int, scale float64) (image.Image, error)
	Close() error
}

// PDFOpener is the PDF decoding capability consumed by the Rasterizer.
type PDFOpener interface {
	Open(data []byte) (PDFDocument, error)
}

// PDFOpenerFunc adapts a function to PDFOpener.
type PDFOpenerFunc func(data []byte) (PDFDocument, error)

func (f PDFOpenerFunc) Open(data []byte) (PDFDocument, error) { return f(data) }

// RasterizerConfig holds rendering settings.
type RasterizerConfig struct {
	Scale float64
}

// Rasterizer turns documents into pages carrying raster images.
type Rasterizer struct {
	opener PDFOpener
	config RasterizerConfig
}

// NewRasterizer creates a Rasterizer. A non-positive scale falls back to 1.0.
func NewRasterizer(opener PDFOpener, config RasterizerConfig) *Rasterizer {
	if config.Scale <= 0 {
		config.Scale = 1.0
	}
	return &Rasterizer{opener: opener, config: config}
}

// Rasterization is an opened document whose page count is known. Pages are
// rendered lazily by Pages; every call renders again from the source bytes.
type Rasterization struct {
	doc     models.Document
	pdf     PDFDocument
	raster  *models.Raster
	scale   float64
	indexes []int
}

// Open decodes enough of doc to know its pages. A failure here is a
// document-level decode failure: no page of doc can be produced.
func (r *Rasterizer) Open(doc models.Document) (*Rasterization, error) {
	switch doc.MimeClass {
	case models.MimeClassPDF:
		pdfDoc, err := r.opener.Open(doc.Bytes)
		if err != nil {
			return nil, &models.DecodeError{Err: err}
		}
		n := pdfDoc.NumPages()
		if n <= 0 {
			_ = pdfDoc.Close()
			return nil, &models.DecodeError{Err: fmt.Errorf("document has no pages")}
		}
		indexes := make([]int, n)
		for i := range indexes {
			indexes[i] = i + 1
		}
		return &Rasterization{doc: doc, pdf: pdfDoc, scale: r.config.Scale, indexes: indexes}, nil
	case models.MimeClassImage:
		cfg, format, err := image.DecodeConfig(bytes.NewReader(doc.Bytes))
		if err != nil {
			return nil, &models.DecodeError{Err: fmt.Errorf("decode image header: %w", err)}
		}
		raster := &models.Raster{Data: doc.Bytes, Format: format, Width: cfg.Width, Height: cfg.Height}
		return &Rasterization{doc: doc, raster: raster, indexes: []int{models.ImagePageIndex}}, nil
	default:
		return nil, &models.DecodeError{Err: fmt.Errorf("unknown mime class %q", doc.MimeClass)}
	}
}

// PageIndexes lists the pages the document will produce, in ascending order.
func (z *Rasterization) PageIndexes() []int {
	return append([]int(nil), z.indexes...)
}

// Pages renders each page in ascending order. A page that fails to render is
// yielded with a nil raster and a *models.DecodeError; iteration continues with
// the next page, so earlier and later pages stay valid.
func (z *Rasterization) Pages(ctx context.Context) iter.Seq2[*models.Page, error] {
	return func(yield func(*models.Page, error) bool) {
		for _, idx := range z.indexes {
			if ctx.Err() != nil {
				return
			}
			page := &models.Page{DocumentID: z.doc.ID, DocumentName: z.doc.Name, PageIndex: idx}
			raster, err := z.render(idx)
			if err != nil {
				if !yield(page, &models.DecodeError{Err: err}) {
					return
				}
				continue
			}
			page.Raster = raster
			if !yield(page, nil) {
				return
			}
		}
	}
}

func (z *Rasterization) render(pageIndex int) (*models.Raster, error) {
	if z.pdf == nil {
		return z.raster, nil
	}
	img, err := z.pdf.RenderPage(pageIndex, z.scale)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode page %d: %w", pageIndex, err)
	}
	b := img.Bounds()
	return &models.Raster{Data: buf.Bytes(), Format: "png", Width: b.Dx(), Height: b.Dy()}, nil
}

// Close releases the decoder held by the rasterization.
func (z *Rasterization) Close() error {
	if z.pdf == nil {
		return nil
	}
	return z.pdf.Close()
}

// Rasterize opens doc and renders all of its pages. An undecodable document
// yields a single (nil, error) pair.
func (r *Rasterizer) Rasterize(ctx context.Context, doc models.Document) iter.Seq2[*models.Page, error] {
	return func(yield func(*models.Page, error) bool) {
		z, err := r.Open(doc)
		if err != nil {
			yield(nil, err)
			return
		}
		defer func() {
			if err := z.Close(); err != nil {
				slog.Warn("Failed to close document decoder.", "documentId", doc.ID, "error", err)
			}
		}()
		for page, err := range z.Pages(ctx) {
			if !yield(page, err) {
				return
			}
		}
	}
}
