package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Lllllllleong/ocrgrabber/internal/config"
	"github.com/Lllllllleong/ocrgrabber/internal/ocr"
	_ "github.com/Lllllllleong/ocrgrabber/internal/ocr/tesseract"
	_ "github.com/Lllllllleong/ocrgrabber/internal/ocr/vertex"
	"github.com/Lllllllleong/ocrgrabber/internal/pdf"
	"github.com/Lllllllleong/ocrgrabber/internal/progress"
)

// Pipeline is a fully wired Orchestrator together with the engine it owns.
type Pipeline struct {
	*Orchestrator
	engine ocr.Engine
}

// NewPipeline creates the OCR engine named by cfg and wires every stage.
func NewPipeline(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	engine, err := ocr.NewEngine(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ocr engine: %w", err)
	}
	return NewPipelineWithEngine(cfg, engine), nil
}

// NewPipelineWithEngine wires every stage around an existing engine.
func NewPipelineWithEngine(cfg *config.Config, engine ocr.Engine) *Pipeline {
	opener := pdf.NewOpener()
	rasterizer := NewRasterizer(PDFOpenerFunc(func(data []byte) (PDFDocument, error) {
		doc, err := opener.Open(data)
		if err != nil {
			return nil, err
		}
		return doc, nil
	}), RasterizerConfig{Scale: cfg.Pipeline.Scale})

	validator := NewValidator(ValidatorConfig{
		AcceptedTypes: cfg.Pipeline.AcceptedTypes,
		MaxSizeBytes:  cfg.Pipeline.MaxSizeBytes,
		RejectionTTL:  cfg.Pipeline.RejectionTTL,
	})

	var opts []ocr.InputOption
	if langs := splitLanguages(cfg.Pipeline.Language); len(langs) > 0 {
		opts = append(opts, ocr.WithLanguages(langs...))
	}
	if engine.Name() == config.EngineTesseract {
		opts = append(opts, ocr.WithTesseractPSM(cfg.OCR.PageSegMode))
	}

	orchestrator := NewOrchestrator(validator, rasterizer, NewRecognizer(engine, opts...), progress.NewAggregator(), OrchestratorConfig{
		Workers:       cfg.Pipeline.Workers,
		RasterWorkers: cfg.Pipeline.RasterWorkers,
	})
	slog.Info("Pipeline initialized.", "engine", engine.Name(), "workers", cfg.Pipeline.Workers,
		"rasterWorkers", cfg.Pipeline.RasterWorkers, "scale", cfg.Pipeline.Scale)
	return &Pipeline{Orchestrator: orchestrator, engine: engine}
}

// Close cancels the current run and releases engine resources.
func (p *Pipeline) Close() error {
	if id := p.RunID(); id != uuid.Nil {
		_ = p.Cancel(id)
	}
	if c, ok := p.engine.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func splitLanguages(raw string) []string {
	var langs []string
	for _, l := range strings.FieldsFunc(raw, func(r rune) bool { return r == '+' || r == ',' }) {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}
