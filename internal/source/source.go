// Package source turns user-supplied locations into raw pipeline inputs.
// Supported locations are local files and directories, gs://bucket/object,
// gs://bucket/prefix/, s3://bucket/key and s3://bucket/prefix/.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"strings"

	"github.com/Lllllllleong/ocrgrabber/internal/models"
)

const (
	SchemeFile = "file"
	SchemeGCS  = "gs"
	SchemeS3   = "s3"
)

// ErrSchemeUnavailable is returned for remote locations whose client was not configured.
var ErrSchemeUnavailable = errors.New("no client configured for scheme")

// Location is a parsed input location.
type Location struct {
	Scheme string
	Bucket string
	// Key is the object key, the object prefix when IsPrefix is set, or the
	// filesystem path for local locations.
	Key string
}

// IsPrefix reports whether the location names a group of objects.
func (l Location) IsPrefix() bool {
	return l.Scheme != SchemeFile && (l.Key == "" || strings.HasSuffix(l.Key, "/"))
}

func (l Location) String() string {
	if l.Scheme == SchemeFile {
		return l.Key
	}
	return l.Scheme + "://" + l.Bucket + "/" + l.Key
}

// Parse parses raw into a Location. Anything without a gs:// or s3:// scheme
// is a local path.
func Parse(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, errors.New("empty location")
	}
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return Location{Scheme: SchemeFile, Key: raw}, nil
	}
	switch strings.ToLower(scheme) {
	case SchemeFile:
		return Location{Scheme: SchemeFile, Key: rest}, nil
	case SchemeGCS, SchemeS3:
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return Location{}, fmt.Errorf("location %q has no bucket", raw)
		}
		return Location{Scheme: strings.ToLower(scheme), Bucket: bucket, Key: key}, nil
	default:
		return Location{}, fmt.Errorf("unsupported scheme %q in %q", scheme, raw)
	}
}

// Fetcher loads every input found at one location.
type Fetcher interface {
	Fetch(ctx context.Context, loc Location) ([]models.RawInput, error)
}

// Loader dispatches locations to the fetcher registered for their scheme.
type Loader struct {
	fetchers map[string]Fetcher
}

// Option configures a Loader.
type Option func(*Loader)

// WithFetcher registers f for scheme, replacing any previous fetcher.
func WithFetcher(scheme string, f Fetcher) Option {
	return func(l *Loader) {
		l.fetchers[scheme] = f
	}
}

// NewLoader returns a Loader that reads local paths. Remote schemes are added
// with WithFetcher.
func NewLoader(maxBytes int64, opts ...Option) *Loader {
	l := &Loader{fetchers: map[string]Fetcher{SchemeFile: NewLocal(maxBytes)}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches all locations in order and concatenates their inputs.
func (l *Loader) Load(ctx context.Context, locations ...string) ([]models.RawInput, error) {
	var inputs []models.RawInput
	for _, raw := range locations {
		loc, err := Parse(raw)
		if err != nil {
			return nil, err
		}
		f, ok := l.fetchers[loc.Scheme]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrSchemeUnavailable, loc.Scheme)
		}
		found, err := f.Fetch(ctx, loc)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", loc, err)
		}
		slog.Debug("Loaded inputs.", "location", loc.String(), "count", len(found))
		inputs = append(inputs, found...)
	}
	return inputs, nil
}

// Schemes returns the set of schemes used by locations, ignoring unparsable entries.
func Schemes(locations []string) map[string]bool {
	out := make(map[string]bool)
	for _, raw := range locations {
		if loc, err := Parse(raw); err == nil {
			out[loc.Scheme] = true
		}
	}
	return out
}

// typeByName guesses a MIME type from a file name. An empty result leaves
// detection to the validator.
func typeByName(name string) string {
	return mime.TypeByExtension(strings.ToLower(path.Ext(name)))
}
