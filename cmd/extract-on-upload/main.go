package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/ocrgrabber/internal/config"
	"github.com/Lllllllleong/ocrgrabber/internal/logging"
	"github.com/Lllllllleong/ocrgrabber/internal/models"
	"github.com/Lllllllleong/ocrgrabber/internal/services"
)

var (
	extractorInstance *services.ExtractorFunction
	once              sync.Once
	initErr           error
)

func init() {
	// Triggered by google.cloud.storage.object.v1.finalized events.
	functions.CloudEvent("ExtractOnUpload", extractOnUpload)
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

func extractOnUpload(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		extractorInstance, initErr = initialize(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent models.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "eventId", e.ID(), "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Errors are logged with object context inside ProcessUpload.
	return extractorInstance.ProcessUpload(ctx, gcsEvent)
}
