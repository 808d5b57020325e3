package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/ocrgrabber/internal/config"
	"github.com/Lllllllleong/ocrgrabber/internal/logging"
	"github.com/Lllllllleong/ocrgrabber/internal/services"
)

var (
	extractorInstance *services.ExtractorFunction
	once              sync.Once
	initErr           error
)

func init() {
	// "HandleExtractText" is the entry point name we'll see in GCP.
	functions.HTTP("HandleExtractText", handleExtractText)
}

// main is required by the Go Functions Framework.
func main() {}

func initialize(ctx context.Context) (*services.ExtractorFunction, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logging.Setup(cfg.Log)
	return services.NewExtractor(ctx, cfg)
}

// handleExtractText runs the uploaded files through the pipeline and responds
// with the final page states.
func handleExtractText(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		extractorInstance, initErr = initialize(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	extractorInstance.HandleHTTP(w, r)
}
