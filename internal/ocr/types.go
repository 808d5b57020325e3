package ocr

import (
	"context"

	"github.com/Lllllllleong/ocrgrabber/internal/models"
)

// Stage labels reported by the engines, in the order they occur.
const (
	StageLoadingCore     = "loading tesseract core"
	StageInitializing    = "initializing tesseract"
	StageLoadingLanguage = "loading language traineddata"
	StageInitializingAPI = "initializing api"
	StageRecognizing     = "recognizing text"
)

// Input is a single image submitted for recognition.
type Input struct {
	// ID is echoed in log lines to correlate engine output with a page.
	ID string
	// Image is the encoded image payload.
	Image []byte
	// Format is the image format name, e.g. "png" or "jpeg".
	Format    string
	Width     int
	Height    int
	Languages []string
	// Metadata carries engine-specific knobs (for Tesseract, config variables).
	Metadata map[string]string
}

// ProgressFunc receives progress events. Calls for one Recognize invocation
// are made sequentially from the goroutine running it.
type ProgressFunc func(models.ProgressEvent)

// Engine is the OCR provider contract: one image in, one result out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input, progress ProgressFunc) (models.OCRResult, error)
}

// StagedEngine is an Engine that declares the stages it reports, in order.
// Callers use it to turn per-stage percentages into overall page progress.
type StagedEngine interface {
	Engine
	Stages() []string
}

// Report calls progress if it is set.
func Report(progress ProgressFunc, stage string, percent float64) {
	if progress == nil {
		return
	}
	progress(models.ProgressEvent{StageLabel: stage, Percent: percent})
}
