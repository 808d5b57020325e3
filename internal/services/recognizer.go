package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/ocrgrabber/internal/models"
	"github.com/Lllllllleong/ocrgrabber/internal/ocr"
)

// RecognitionEvent is one element of a page's recognition stream. Exactly one
// of Progress, Result and Err is set; Result and Err only on the final event.
type RecognitionEvent struct {
	Progress *models.ProgressEvent
	// Overall is the page-level completion in 0-100 derived from the stage position.
	Overall float64
	Result  *models.OCRResult
	Err     *models.ErrorInfo
}

// Terminal reports whether the event ends the stream.
func (e RecognitionEvent) Terminal() bool {
	return e.Result != nil || e.Err != nil
}

// Recognizer runs an OCR engine over pages and exposes each run as an event stream.
type Recognizer struct {
	engine ocr.Engine
	opts   []ocr.InputOption
	stages map[string]int
}

// NewRecognizer wraps engine. opts are applied to every input, e.g. language hints.
func NewRecognizer(engine ocr.Engine, opts ...ocr.InputOption) *Recognizer {
	r := &Recognizer{engine: engine, opts: opts}
	if staged, ok := engine.(ocr.StagedEngine); ok {
		r.stages = make(map[string]int)
		for i, stage := range staged.Stages() {
			r.stages[stage] = i
		}
	}
	return r
}

// EngineName returns the name of the wrapped engine.
func (r *Recognizer) EngineName() string {
	return r.engine.Name()
}

// Recognize starts recognition of page and returns its event stream. Events are
// delivered in emission order and the channel is closed after the terminal
// event. The caller must drain the channel or cancel ctx.
func (r *Recognizer) Recognize(ctx context.Context, page *models.Page) <-chan RecognitionEvent {
	events := make(chan RecognitionEvent, 8)
	go func() {
		defer close(events)
		send := func(ev RecognitionEvent) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}

		res, err := r.run(ctx, page, func(p models.ProgressEvent) {
			send(RecognitionEvent{Progress: &p, Overall: r.overall(p)})
		})
		if err != nil {
			info := models.InfoFromError(err, models.ErrorKindRecognitionFailure)
			send(RecognitionEvent{Err: &info})
			return
		}
		send(RecognitionEvent{Result: &res, Overall: 100})
	}()
	return events
}

func (r *Recognizer) run(ctx context.Context, page *models.Page, progress ocr.ProgressFunc) (res models.OCRResult, err error) {
	if page.Raster == nil {
		return models.OCRResult{}, &models.RecognitionError{Engine: r.engine.Name(), Err: errors.New("page has no raster")}
	}
	defer func() {
		if p := recover(); p != nil {
			slog.Error("OCR engine panicked.", "engine", r.engine.Name(), "documentId", page.DocumentID, "page", page.PageIndex, "panic", p)
			err = &models.RecognitionError{Engine: r.engine.Name(), Err: fmt.Errorf("engine panic: %v", p)}
		}
	}()

	in := ocr.NewInput(
		fmt.Sprintf("%s/page-%d", page.DocumentID, page.PageIndex),
		page.Raster.Data, page.Raster.Format, page.Raster.Width, page.Raster.Height,
		r.opts...,
	)
	res, err = r.engine.Recognize(ctx, in, progress)
	if err != nil {
		if ctx.Err() != nil {
			return models.OCRResult{}, ctx.Err()
		}
		return models.OCRResult{}, &models.RecognitionError{Engine: r.engine.Name(), Err: err}
	}
	return res, nil
}

// overall folds a stage-relative percentage into page-level progress. Engines
// that do not declare stages report page-level progress directly.
func (r *Recognizer) overall(p models.ProgressEvent) float64 {
	pct := clampPercent(p.Percent)
	if len(r.stages) == 0 {
		return pct
	}
	idx, ok := r.stages[p.StageLabel]
	if !ok {
		return 0
	}
	return (float64(idx) + pct/100) / float64(len(r.stages)) * 100
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
