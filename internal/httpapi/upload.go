package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/Lllllllleong/ocrgrabber/internal/models"
)

// FormFields are the multipart fields read as documents, in order.
var FormFields = []string{"files", "file"}

// ReadMultipart reads every uploaded file of r into raw inputs. The request
// body is capped at maxBytes; a larger upload fails with *http.MaxBytesError.
func ReadMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]models.RawInput, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrNoInputs, err)
	}

	var inputs []models.RawInput
	for _, field := range FormFields {
		for _, fh := range r.MultipartForm.File[field] {
			in, err := readPart(fh)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, in)
		}
	}
	if len(inputs) == 0 {
		return nil, models.ErrNoInputs
	}
	return inputs, nil
}

func readPart(fh *multipart.FileHeader) (models.RawInput, error) {
	f, err := fh.Open()
	if err != nil {
		return models.RawInput{}, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return models.RawInput{}, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err)
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "application/octet-stream" {
		contentType = ""
	}
	return models.RawInput{
		Name:      fh.Filename,
		SizeBytes: fh.Size,
		MimeType:  contentType,
		Bytes:     data,
	}, nil
}
