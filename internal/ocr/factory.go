package ocr

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Lllllllleong/ocrgrabber/internal/config"
)

// Factory creates an Engine from the application configuration.
type Factory func(ctx context.Context, cfg *config.Config) (Engine, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// RegisterEngine registers an engine factory by name. Engine packages call it from init.
func RegisterEngine(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// NewEngine creates the engine selected by cfg.OCR.Engine.
func NewEngine(ctx context.Context, cfg *config.Config) (Engine, error) {
	mu.RLock()
	factory, ok := factories[cfg.OCR.Engine]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ocr engine: %s (registered: %v)", cfg.OCR.Engine, Registered())
	}
	return factory(ctx, cfg)
}

// Registered lists the registered engine names.
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
