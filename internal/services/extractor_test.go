package services_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/ocrgrabber/internal/gcp"
	"github.com/Lllllllleong/ocrgrabber/internal/models"
	"github.com/Lllllllleong/ocrgrabber/internal/services"
)

func newExtractor(t *testing.T, read func(ctx context.Context, bucket, name string) (*gcp.Object, error)) *services.ExtractorFunction {
	t.Helper()
	cfg := testConfig()
	cfg.Server.MaxUploadMB = 1
	p := services.NewPipelineWithEngine(cfg, &fakeEngine{})
	t.Cleanup(func() { _ = p.Close() })
	return services.NewExtractorWith(cfg, p, read)
}

func TestExtractor_HandleHTTP(t *testing.T) {
	f := newExtractor(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="scan.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(jpegBytes(t, 8, 8))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	f.HandleHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var res models.ExtractTextResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, models.RunStateCompleted, res.State)
	assert.Equal(t, 1, res.Receipt.AdmittedCount)
	require.Len(t, res.Snapshot.Pages, 1)
	assert.Equal(t, models.PageStatusDone, res.Snapshot.Pages[0].Status)
}

func TestExtractor_HandleHTTPRejectsGet(t *testing.T) {
	w := httptest.NewRecorder()
	newExtractor(t, nil).HandleHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestExtractor_ProcessUpload(t *testing.T) {
	data := jpegBytes(t, 8, 8)
	var asked string
	f := newExtractor(t, func(_ context.Context, bucket, name string) (*gcp.Object, error) {
		asked = bucket + "/" + name
		return &gcp.Object{Name: name, Size: int64(len(data)), Data: data}, nil
	})

	err := f.ProcessUpload(context.Background(), models.GCSEvent{Bucket: "uploads", Name: "in/scan.jpg", ContentType: "image/jpeg"})
	require.NoError(t, err)
	assert.Equal(t, "uploads/in/scan.jpg", asked)
	assert.Equal(t, models.RunStateCompleted, f.Pipeline().State())
	assert.Equal(t, 1, f.Pipeline().Summary().Done)
}

func TestExtractor_ProcessUploadMissingObject(t *testing.T) {
	f := newExtractor(t, func(context.Context, string, string) (*gcp.Object, error) {
		return nil, fmt.Errorf("%w: in/gone.pdf", gcp.ErrObjectNotFound)
	})
	assert.NoError(t, f.ProcessUpload(context.Background(), models.GCSEvent{Bucket: "uploads", Name: "in/gone.pdf"}))

	failing := newExtractor(t, func(context.Context, string, string) (*gcp.Object, error) {
		return nil, errors.New("permission denied")
	})
	assert.Error(t, failing.ProcessUpload(context.Background(), models.GCSEvent{Bucket: "uploads", Name: "x.pdf"}))
	assert.Error(t, failing.ProcessUpload(context.Background(), models.GCSEvent{}))
}

func TestExtractor_ExtractImage(t *testing.T) {
	f := newExtractor(t, nil)
	res, err := f.Extract(context.Background(), []models.RawInput{imageInput(t, "scan.jpg")})
	require.NoError(t, err)
	assert.Equal(t, models.RunStateCompleted, res.State)
	require.Len(t, res.Snapshot.Pages, 1)
	require.NotNil(t, res.Snapshot.Pages[0].Result)
	assert.Contains(t, res.Snapshot.Pages[0].Result.Text, "text of")
}
