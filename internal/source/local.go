package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Lllllllleong/ocrgrabber/internal/models"
)

// Local reads files from the local filesystem. A directory yields its regular
// files in name order; subdirectories are not descended into.
type Local struct {
	maxBytes int64
}

// NewLocal creates a Local fetcher. Files larger than maxBytes are returned
// without content so that validation rejects them; zero means no limit.
func NewLocal(maxBytes int64) *Local {
	return &Local{maxBytes: maxBytes}
}

func (l *Local) Fetch(ctx context.Context, loc Location) ([]models.RawInput, error) {
	info, err := os.Stat(loc.Key)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		in, err := l.readFile(loc.Key, info)
		if err != nil {
			return nil, err
		}
		return []models.RawInput{in}, nil
	}

	entries, err := os.ReadDir(loc.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var inputs []models.RawInput
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		in, err := l.readFile(filepath.Join(loc.Key, e.Name()), info)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func (l *Local) readFile(name string, info os.FileInfo) (models.RawInput, error) {
	in := models.RawInput{
		Name:      filepath.Base(name),
		SizeBytes: info.Size(),
		MimeType:  typeByName(name),
	}
	if l.maxBytes > 0 && info.Size() > l.maxBytes {
		return in, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return models.RawInput{}, fmt.Errorf("failed to read %s: %w", name, err)
	}
	in.Bytes = data
	in.SizeBytes = int64(len(data))
	return in, nil
}
