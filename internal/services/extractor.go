package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"sync"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/ocrgrabber/internal/config"
	"github.com/Lllllllleong/ocrgrabber/internal/gcp"
	"github.com/Lllllllleong/ocrgrabber/internal/httpapi"
	"github.com/Lllllllleong/ocrgrabber/internal/models"
)

// ExtractorFunction runs one batch per invocation for the Cloud Functions
// entry points. Invocations on the same instance are serialized because the
// pipeline holds a single run at a time.
type ExtractorFunction struct {
	pipeline   *Pipeline
	readObject func(ctx context.Context, bucket, name string) (*gcp.Object, error)
	config     *config.Config
	mu         sync.Mutex
}

// NewExtractor creates the pipeline and storage client described by cfg.
func NewExtractor(ctx context.Context, cfg *config.Config) (*ExtractorFunction, error) {
	pipeline, err := NewPipeline(ctx, cfg)
	if err != nil {
		return nil, err
	}
	storageClient, err := gcp.NewStorageClient(ctx)
	if err != nil {
		_ = pipeline.Close()
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return NewExtractorWith(cfg, pipeline, storageReader(storageClient)), nil
}

// NewExtractorWith builds an ExtractorFunction from existing parts.
func NewExtractorWith(cfg *config.Config, pipeline *Pipeline, readObject func(ctx context.Context, bucket, name string) (*gcp.Object, error)) *ExtractorFunction {
	return &ExtractorFunction{pipeline: pipeline, readObject: readObject, config: cfg}
}

func storageReader(client *storage.Client) func(ctx context.Context, bucket, name string) (*gcp.Object, error) {
	return func(ctx context.Context, bucket, name string) (*gcp.Object, error) {
		return gcp.ReadObject(ctx, client.Bucket(bucket), name, 0)
	}
}

// Pipeline returns the pipeline the function drives.
func (f *ExtractorFunction) Pipeline() *Pipeline {
	return f.pipeline
}

// Extract submits inputs and blocks until the run finishes or ctx ends. When
// ctx ends first the run is canceled and the partial snapshot returned.
func (f *ExtractorFunction) Extract(ctx context.Context, inputs []models.RawInput) (*models.ExtractTextResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	receipt, err := f.pipeline.Submit(ctx, inputs)
	if err != nil {
		return nil, err
	}
	state, err := f.pipeline.Wait(ctx)
	if err != nil {
		_ = f.pipeline.Cancel(receipt.RunID)
		state = models.RunStateCanceled
	}
	return &models.ExtractTextResponse{
		Receipt:  receipt,
		State:    state,
		Snapshot: f.pipeline.Snapshot(),
	}, nil
}

// HandleHTTP accepts a multipart upload and responds with the final snapshot.
func (f *ExtractorFunction) HandleHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	inputs, err := httpapi.ReadMultipart(w, r, f.config.Server.MaxUploadMB<<20)
	if err != nil {
		status, _, msg := httpapi.MapError(err)
		slog.Warn("Rejected extract request.", "error", err)
		http.Error(w, msg, status)
		return
	}

	res, err := f.Extract(r.Context(), inputs)
	if err != nil {
		status, _, msg := httpapi.MapError(err)
		slog.Error("Extraction failed.", "error", err)
		http.Error(w, msg, status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response.", "error", err)
	}
}

// ProcessUpload runs a newly finalized GCS object through the pipeline and
// logs the outcome of every page.
func (f *ExtractorFunction) ProcessUpload(ctx context.Context, e models.GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if e.Bucket == "" || e.Name == "" {
		return errors.New("event is missing bucket or object name")
	}
	logCtx.Info("Processing new GCS object.")

	obj, err := f.readObject(ctx, e.Bucket, e.Name)
	if err != nil {
		if errors.Is(err, gcp.ErrObjectNotFound) {
			// Deleted before we got to it; retrying will not help.
			logCtx.Warn("Object no longer exists. Skipping.")
			return nil
		}
		logCtx.Error("Failed to download object", "error", err)
		return err
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = e.ContentType
	}

	res, err := f.Extract(ctx, []models.RawInput{{
		Name:      path.Base(obj.Name),
		SizeBytes: obj.Size,
		MimeType:  contentType,
		Bytes:     obj.Data,
	}})
	if err != nil {
		logCtx.Error("Extraction failed", "error", err)
		return err
	}

	for _, r := range res.Receipt.Rejections {
		logCtx.Warn("Object rejected.", "reason", r.Reason)
	}
	for _, d := range res.Snapshot.Failures {
		logCtx.Error("Document could not be decoded.", "error", d.Error.Message)
	}
	for _, p := range res.Snapshot.Pages {
		attrs := []any{"page", p.PageIndex, "status", p.Status}
		if p.Result != nil {
			attrs = append(attrs,
				"confidence", p.Result.Confidence,
				"lines", p.Result.LineCount,
				"words", p.Result.WordCount,
				"paragraphs", p.Result.ParagraphCount,
				"symbols", p.Result.SymbolCount,
				"text", p.Result.Text,
			)
		}
		if p.Error != nil {
			attrs = append(attrs, "errorKind", p.Error.Kind, "error", p.Error.Message)
		}
		logCtx.Info("Page processed.", attrs...)
	}
	logCtx.Info("Object processed.", "state", res.State, "pages", len(res.Snapshot.Pages))
	return nil
}
