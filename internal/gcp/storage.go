package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// ErrObjectNotFound is returned when a GCS object or bucket does not exist.
var ErrObjectNotFound = errors.New("gcs object not found")

// Object is a GCS object read into memory. Data is nil when the object was
// larger than the read limit; Size still reports its real size.
type Object struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// NewStorageClient creates a GCS client using application default credentials.
func NewStorageClient(ctx context.Context) (*storage.Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return client, nil
}

// ReadObject reads objectName from bucket. Objects bigger than maxBytes are not
// downloaded; a non-positive maxBytes reads everything.
func ReadObject(ctx context.Context, bucket *storage.BucketHandle, objectName string, maxBytes int64) (*Object, error) {
	obj := bucket.Object(objectName)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return nil, classify(objectName, err)
	}
	out := &Object{Name: attrs.Name, ContentType: attrs.ContentType, Size: attrs.Size}
	if maxBytes > 0 && attrs.Size > maxBytes {
		return out, nil
	}

	r, err := obj.NewReader(ctx)
	if err != nil {
		return nil, classify(objectName, err)
	}
	defer r.Close()
	if out.Data, err = io.ReadAll(r); err != nil {
		return nil, fmt.Errorf("failed to read gcs object %s: %w", objectName, err)
	}
	return out, nil
}

// ListObjects returns the names of objects under prefix in lexical order,
// skipping directory placeholder objects.
func ListObjects(ctx context.Context, bucket *storage.BucketHandle, prefix string) ([]string, error) {
	it := bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects under %q: %w", prefix, classify(prefix, err))
		}
		if attrs.Size == 0 && strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		names = append(names, attrs.Name)
	}
	sort.Strings(names)
	return names, nil
}

func classify(name string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, name)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, name)
	}
	return err
}
