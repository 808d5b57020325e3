package tesseract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/otiai10/gosseract/v2"

	"github.com/Lllllllleong/ocrgrabber/internal/config"
	"github.com/Lllllllleong/ocrgrabber/internal/models"
	"github.com/Lllllllleong/ocrgrabber/internal/ocr"
)

const Name = "tesseract"

func init() {
	ocr.RegisterEngine(Name, func(_ context.Context, cfg *config.Config) (ocr.Engine, error) {
		return NewEngine(), nil
	})
}

var stages = []string{
	ocr.StageLoadingCore,
	ocr.StageInitializing,
	ocr.StageLoadingLanguage,
	ocr.StageInitializingAPI,
	ocr.StageRecognizing,
}

// Engine implements ocr.StagedEngine using libtesseract through gosseract.
// Each Recognize call uses its own client, so calls may run in parallel.
type Engine struct {
	clientFactory func() *gosseract.Client
}

// NewEngine constructs a Tesseract-backed OCR engine.
func NewEngine() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return Name }

func (e *Engine) Stages() []string { return append([]string(nil), stages...) }

// Recognize runs OCR over one image. gosseract has no progress hook, so each
// stage is reported at its start and end.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input, progress ocr.ProgressFunc) (models.OCRResult, error) {
	ocr.Report(progress, ocr.StageLoadingCore, 0)
	c := e.clientFactory()
	defer func() {
		if err := c.Close(); err != nil {
			slog.Warn("Failed to close tesseract client.", "inputId", in.ID, "error", err)
		}
	}()
	ocr.Report(progress, ocr.StageLoadingCore, 100)

	if err := ctx.Err(); err != nil {
		return models.OCRResult{}, err
	}
	ocr.Report(progress, ocr.StageInitializing, 0)
	for k, v := range in.Metadata {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return models.OCRResult{}, fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	ocr.Report(progress, ocr.StageInitializing, 100)

	ocr.Report(progress, ocr.StageLoadingLanguage, 0)
	if len(in.Languages) > 0 {
		if err := c.SetLanguage(in.Languages...); err != nil {
			return models.OCRResult{}, fmt.Errorf("set languages: %w", err)
		}
	}
	ocr.Report(progress, ocr.StageLoadingLanguage, 100)

	if err := ctx.Err(); err != nil {
		return models.OCRResult{}, err
	}
	ocr.Report(progress, ocr.StageInitializingAPI, 0)
	if err := c.SetImageFromBytes(in.Image); err != nil {
		return models.OCRResult{}, fmt.Errorf("set image: %w", err)
	}
	ocr.Report(progress, ocr.StageInitializingAPI, 100)

	ocr.Report(progress, ocr.StageRecognizing, 0)
	text, err := c.Text()
	if err != nil {
		return models.OCRResult{}, fmt.Errorf("recognize text: %w", err)
	}
	ocr.Report(progress, ocr.StageRecognizing, 50)

	res := models.OCRResult{Text: text}
	words, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return models.OCRResult{}, fmt.Errorf("word boxes: %w", err)
	}
	res.WordCount = len(words)
	res.Confidence = meanConfidence(words)
	if res.LineCount, err = countBoxes(c, gosseract.RIL_TEXTLINE); err != nil {
		return models.OCRResult{}, err
	}
	if res.ParagraphCount, err = countBoxes(c, gosseract.RIL_PARA); err != nil {
		return models.OCRResult{}, err
	}
	if res.SymbolCount, err = countBoxes(c, gosseract.RIL_SYMBOL); err != nil {
		return models.OCRResult{}, err
	}
	ocr.Report(progress, ocr.StageRecognizing, 100)
	return res, nil
}

func countBoxes(c *gosseract.Client, level gosseract.PageIteratorLevel) (int, error) {
	boxes, err := c.GetBoundingBoxes(level)
	if err != nil {
		return 0, fmt.Errorf("bounding boxes at level %d: %w", level, err)
	}
	return len(boxes), nil
}

// meanConfidence averages word confidences, which Tesseract reports on a 0-100 scale.
func meanConfidence(words []gosseract.BoundingBox) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}
