package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/ocrgrabber/internal/models"
	"github.com/Lllllllleong/ocrgrabber/internal/services"
)

func defaultValidator() *services.Validator {
	return services.NewValidator(services.ValidatorConfig{
		AcceptedTypes: []string{"application/pdf", "image/*"},
		RejectionTTL:  5 * time.Second,
	})
}

func TestValidate_RejectsUnsupportedType(t *testing.T) {
	docs, rejected := defaultValidator().Validate([]models.RawInput{
		{Name: "x.txt", SizeBytes: 5, MimeType: "text/plain", Bytes: []byte("hello")},
	})

	assert.Empty(t, docs)
	require.Len(t, rejected, 1)
	assert.Equal(t, "x.txt", rejected[0].FileName)
	assert.Equal(t, "unsupported type", rejected[0].Reason)
	assert.Equal(t, 5*time.Second, rejected[0].ExpiresAt.Sub(rejected[0].RejectedAt))
}

func TestValidate_AdmitsPDFAndImages(t *testing.T) {
	docs, rejected := defaultValidator().Validate([]models.RawInput{
		{Name: "report.pdf", SizeBytes: 4, MimeType: "application/pdf", Bytes: []byte("%PDF")},
		{Name: "scan.jpg", SizeBytes: 3, MimeType: "image/jpeg", Bytes: []byte{0xff, 0xd8, 0xff}},
		{Name: "photo.webp", SizeBytes: 1, MimeType: "IMAGE/WEBP; charset=binary", Bytes: []byte{1}},
	})

	assert.Empty(t, rejected)
	require.Len(t, docs, 3)
	assert.Equal(t, models.MimeClassPDF, docs[0].MimeClass)
	assert.Equal(t, models.MimeClassImage, docs[1].MimeClass)
	assert.Equal(t, models.MimeClassImage, docs[2].MimeClass)
	assert.NotEqual(t, docs[0].ID, docs[1].ID)
	assert.Equal(t, "report.pdf", docs[0].Name)
}

func TestValidate_SniffsMissingType(t *testing.T) {
	png := pngBytes(t, 2, 2)
	docs, rejected := defaultValidator().Validate([]models.RawInput{
		{Name: "noext", SizeBytes: int64(len(png)), Bytes: png},
		{Name: "notes", SizeBytes: 5, Bytes: []byte("plain")},
	})

	require.Len(t, docs, 1)
	assert.Equal(t, "image/png", docs[0].MimeType)
	require.Len(t, rejected, 1)
	assert.Equal(t, "notes", rejected[0].FileName)
}

func TestValidate_FirstFailureWins(t *testing.T) {
	v := services.NewValidator(services.ValidatorConfig{
		AcceptedTypes: []string{"application/pdf", "image/*"},
		MaxSizeBytes:  10,
	})

	tests := []struct {
		name   string
		input  models.RawInput
		reason error
	}{
		{"type before size", models.RawInput{Name: "big.txt", SizeBytes: 100, MimeType: "text/plain", Bytes: []byte("x")}, models.ErrUnsupportedType},
		{"too large", models.RawInput{Name: "big.pdf", SizeBytes: 11, MimeType: "application/pdf", Bytes: []byte("x")}, models.ErrFileTooLarge},
		{"payload larger than declared size", models.RawInput{Name: "under.pdf", SizeBytes: 0, MimeType: "application/pdf", Bytes: make([]byte, 64)}, models.ErrFileTooLarge},
		{"empty", models.RawInput{Name: "empty.png", SizeBytes: 0, MimeType: "image/png"}, models.ErrEmptyInput},
		{"malformed type", models.RawInput{Name: "odd", SizeBytes: 1, MimeType: "image/", Bytes: []byte("x")}, models.ErrUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, rejected := v.Validate([]models.RawInput{tt.input})
			assert.Empty(t, docs)
			require.Len(t, rejected, 1)
			assert.Equal(t, tt.reason.Error(), rejected[0].Reason)
		})
	}
}

func TestValidate_ExactTypeConfiguration(t *testing.T) {
	v := services.NewValidator(services.ValidatorConfig{AcceptedTypes: []string{"image/png"}})
	docs, rejected := v.Validate([]models.RawInput{
		{Name: "a.png", SizeBytes: 1, MimeType: "image/png", Bytes: []byte{1}},
		{Name: "b.pdf", SizeBytes: 1, MimeType: "application/pdf", Bytes: []byte{1}},
	})
	assert.Len(t, docs, 1)
	assert.Len(t, rejected, 1)
}
