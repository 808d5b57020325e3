package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/ocrgrabber/internal/pdf/pdftest"
)

func TestOpen_RejectsCorruptInput(t *testing.T) {
	opener := NewOpener()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "not a pdf", data: []byte("plain text, not a document")},
		{name: "truncated", data: []byte("%PDF-1.7\n1 0 obj\n<< /Type /Catalog /Pages 2 0 R")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := opener.Open(tt.data)
			assert.Error(t, err)
			assert.Nil(t, doc)
		})
	}
}

func TestRenderPage_OutOfRange(t *testing.T) {
	doc := &Document{numPages: 2}

	_, err := doc.RenderPage(0, 1.0)
	assert.ErrorIs(t, err, ErrPageOutOfRange)

	_, err = doc.RenderPage(3, 1.0)
	assert.ErrorIs(t, err, ErrPageOutOfRange)
}

func TestOpen_RendersAtNaturalSizeTimesScale(t *testing.T) {
	doc, err := NewOpener().Open(pdftest.Blank(2, 300, 200))
	require.NoError(t, err)
	defer doc.Close()

	assert.Equal(t, 2, doc.NumPages())

	tests := []struct {
		scale      float64
		wantWidth  int
		wantHeight int
	}{
		{scale: 1, wantWidth: 300, wantHeight: 200},
		{scale: 2, wantWidth: 600, wantHeight: 400},
	}
	for _, tt := range tests {
		img, err := doc.RenderPage(2, tt.scale)
		require.NoError(t, err)
		assert.Equal(t, tt.wantWidth, img.Bounds().Dx(), "scale %v", tt.scale)
		assert.Equal(t, tt.wantHeight, img.Bounds().Dy(), "scale %v", tt.scale)
	}
}
