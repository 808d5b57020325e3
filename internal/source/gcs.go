package source

import (
	"context"
	"path"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/ocrgrabber/internal/gcp"
	"github.com/Lllllllleong/ocrgrabber/internal/models"
)

// GCS reads gs:// locations.
type GCS struct {
	client   *storage.Client
	maxBytes int64
}

// NewGCS creates a GCS fetcher backed by client.
func NewGCS(client *storage.Client, maxBytes int64) *GCS {
	return &GCS{client: client, maxBytes: maxBytes}
}

func (g *GCS) Fetch(ctx context.Context, loc Location) ([]models.RawInput, error) {
	bucket := g.client.Bucket(loc.Bucket)
	names := []string{loc.Key}
	if loc.IsPrefix() {
		var err error
		if names, err = gcp.ListObjects(ctx, bucket, loc.Key); err != nil {
			return nil, err
		}
	}

	inputs := make([]models.RawInput, 0, len(names))
	for _, name := range names {
		obj, err := gcp.ReadObject(ctx, bucket, name, g.maxBytes)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, gcsInput(obj))
	}
	return inputs, nil
}

func gcsInput(obj *gcp.Object) models.RawInput {
	contentType := obj.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = typeByName(obj.Name)
	}
	return models.RawInput{
		Name:      path.Base(obj.Name),
		SizeBytes: obj.Size,
		MimeType:  contentType,
		Bytes:     obj.Data,
	}
}
