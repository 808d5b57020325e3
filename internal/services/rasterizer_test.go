package services_test

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/ocrgrabber/internal/models"
	"github.com/Lllllllleong/ocrgrabber/internal/services"
	"github.com/Lllllllleong/ocrgrabber/mocks"
)

func pdfDocument(data []byte) models.Document {
	return models.Document{ID: uuid.New(), Name: "report.pdf", MimeClass: models.MimeClassPDF, Bytes: data}
}

func TestRasterize_PDFPagesInOrder(t *testing.T) {
	pdfDoc := new(mocks.MockPDFDocument)
	pdfDoc.On("NumPages").Return(3)
	pdfDoc.On("RenderPage", mock.AnythingOfType("int"), 2.0).Return(image.Image(solidImage(40, 60)), nil)
	pdfDoc.On("Close").Return(nil)
	opener := new(mocks.MockPDFOpener)
	opener.On("Open", []byte("pdf")).Return(pdfDoc, nil)

	r := services.NewRasterizer(opener, services.RasterizerConfig{Scale: 2})
	doc := pdfDocument([]byte("pdf"))

	var got []int
	for page, err := range r.Rasterize(context.Background(), doc) {
		require.NoError(t, err)
		require.NotNil(t, page.Raster)
		assert.Equal(t, doc.ID, page.DocumentID)
		assert.Equal(t, "png", page.Raster.Format)
		assert.Equal(t, 40, page.Raster.Width)
		assert.Equal(t, 60, page.Raster.Height)
		got = append(got, page.PageIndex)
	}
	assert.Equal(t, []int{1, 2, 3}, got)
	pdfDoc.AssertExpectations(t)
	opener.AssertExpectations(t)
}

func TestRasterize_CorruptPDFYieldsDocumentFailure(t *testing.T) {
	opener := new(mocks.MockPDFOpener)
	opener.On("Open", mock.Anything).Return(nil, errors.New("xref not found"))
	r := services.NewRasterizer(opener, services.RasterizerConfig{})

	var pages int
	var failures []error
	for page, err := range r.Rasterize(context.Background(), pdfDocument([]byte("garbage"))) {
		if page != nil {
			pages++
		}
		if err != nil {
			failures = append(failures, err)
		}
	}
	assert.Zero(t, pages)
	require.Len(t, failures, 1)
	var decodeErr *models.DecodeError
	assert.ErrorAs(t, failures[0], &decodeErr)
}

func TestRasterize_PageFailureKeepsSiblings(t *testing.T) {
	doc := &fakePDF{pages: 3, failPages: map[int]bool{2: true}}
	opener := services.PDFOpenerFunc(func([]byte) (services.PDFDocument, error) { return doc, nil })
	r := services.NewRasterizer(opener, services.RasterizerConfig{Scale: 1})

	z, err := r.Open(pdfDocument([]byte("pdf")))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, z.PageIndexes())

	results := map[int]error{}
	for page, err := range z.Pages(context.Background()) {
		results[page.PageIndex] = err
		if err == nil {
			assert.NotNil(t, page.Raster)
		} else {
			assert.Nil(t, page.Raster)
		}
	}
	require.NoError(t, z.Close())

	assert.NoError(t, results[1])
	assert.NoError(t, results[3])
	var decodeErr *models.DecodeError
	assert.ErrorAs(t, results[2], &decodeErr)
	assert.True(t, doc.closed.Load())
}

func TestRasterize_EmptyPDFIsDecodeFailure(t *testing.T) {
	r := services.NewRasterizer(fakeOpener(), services.RasterizerConfig{})
	_, err := r.Open(pdfDocument(fakePDFBytes(0)))
	var decodeErr *models.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestRasterize_ImagePassesBytesThrough(t *testing.T) {
	data := jpegBytes(t, 16, 8)
	doc := models.Document{ID: uuid.New(), Name: "scan.jpg", MimeClass: models.MimeClassImage, Bytes: data}
	r := services.NewRasterizer(fakeOpener(), services.RasterizerConfig{})

	var pages []*models.Page
	for page, err := range r.Rasterize(context.Background(), doc) {
		require.NoError(t, err)
		pages = append(pages, page)
	}
	require.Len(t, pages, 1)
	assert.Equal(t, models.ImagePageIndex, pages[0].PageIndex)
	assert.Equal(t, data, pages[0].Raster.Data)
	assert.Equal(t, "jpeg", pages[0].Raster.Format)
	assert.Equal(t, 16, pages[0].Raster.Width)
	assert.Equal(t, 8, pages[0].Raster.Height)
}

func TestRasterize_UndecodableImage(t *testing.T) {
	doc := models.Document{ID: uuid.New(), Name: "scan.png", MimeClass: models.MimeClassImage, Bytes: []byte("not an image")}
	r := services.NewRasterizer(fakeOpener(), services.RasterizerConfig{})
	_, err := r.Open(doc)
	var decodeErr *models.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestRasterize_StopsOnCanceledContext(t *testing.T) {
	r := services.NewRasterizer(fakeOpener(), services.RasterizerConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var n int
	for range r.Rasterize(ctx, pdfDocument(fakePDFBytes(5))) {
		n++
	}
	assert.Zero(t, n)
}

func TestRasterize_EarlyBreakClosesDocument(t *testing.T) {
	doc := &fakePDF{pages: 4}
	opener := services.PDFOpenerFunc(func([]byte) (services.PDFDocument, error) { return doc, nil })
	r := services.NewRasterizer(opener, services.RasterizerConfig{})

	for page := range r.Rasterize(context.Background(), pdfDocument([]byte("pdf"))) {
		if page.PageIndex == 2 {
			break
		}
	}
	assert.True(t, doc.closed.Load())
}
