package services

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/Lllllllleong/ocrgrabber/internal/models"
	"github.com/Lllllllleong/ocrgrabber/internal/progress"
)

// StageRendering labels pages whose raster is not yet available.
const StageRendering = "rendering page"

// OrchestratorConfig bounds the work a run may have in flight.
type OrchestratorConfig struct {
	// Workers caps concurrent recognition tasks. Zero means runtime.NumCPU().
	Workers int
	// RasterWorkers caps documents being rendered at once. Zero means max(1, Workers/2).
	RasterWorkers int
}

// Orchestrator drives one batch at a time through validation, rasterization
// and recognition, publishing page progress to an Aggregator.
type Orchestrator struct {
	validator  *Validator
	rasterizer *Rasterizer
	recognizer *Recognizer
	progress   *progress.Aggregator
	config     OrchestratorConfig
	// slots is shared by every run so recognitions left over from a canceled
	// run keep their slot until the engine returns.
	slots *semaphore.Weighted

	mu      sync.Mutex
	current *run
}

type run struct {
	id     uuid.UUID
	state  models.RunState
	cancel context.CancelFunc
	done   chan struct{}
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(validator *Validator, rasterizer *Rasterizer, recognizer *Recognizer, agg *progress.Aggregator, config OrchestratorConfig) *Orchestrator {
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.RasterWorkers <= 0 {
		config.RasterWorkers = max(1, config.Workers/2)
	}
	idle := &run{state: models.RunStateIdle, cancel: func() {}, done: make(chan struct{})}
	close(idle.done)
	return &Orchestrator{
		validator:  validator,
		rasterizer: rasterizer,
		recognizer: recognizer,
		progress:   agg,
		config:     config,
		slots:      semaphore.NewWeighted(int64(config.Workers)),
		current:    idle,
	}
}

// Submit validates inputs and starts processing the admitted documents in the
// background. It returns as soon as the run is scheduled. A run still in
// flight is canceled first. ctx only supplies values; its cancellation does
// not stop the run, use Cancel for that.
func (o *Orchestrator) Submit(ctx context.Context, inputs []models.RawInput) (models.Receipt, error) {
	if len(inputs) == 0 {
		return models.Receipt{}, models.ErrNoInputs
	}
	docs, rejections := o.validator.Validate(inputs)

	r := &run{id: uuid.New(), state: models.RunStateIdle, cancel: func() {}, done: make(chan struct{})}
	receipt := models.Receipt{RunID: r.id, AdmittedCount: len(docs), Rejections: rejections}
	logCtx := slog.With("runId", r.id)

	o.mu.Lock()
	if prev := o.current; prev.state == models.RunStateRunning {
		logCtx.Info("Canceling previous run.", "previousRunId", prev.id)
		o.cancelLocked(prev)
	}
	o.current = r
	o.progress.Reset(r.id)
	for _, doc := range docs {
		o.progress.RegisterDocument(r.id, doc.ID)
	}
	if len(docs) == 0 {
		close(r.done)
		o.mu.Unlock()
		logCtx.Info("No documents admitted.", "rejected", len(rejections))
		return receipt, nil
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.state = models.RunStateRunning
	o.mu.Unlock()

	logCtx.Info("Run started.", "admitted", len(docs), "rejected", len(rejections),
		"workers", o.config.Workers, "rasterWorkers", o.config.RasterWorkers, "engine", o.recognizer.EngineName())
	go o.execute(runCtx, logCtx, r, docs)
	return receipt, nil
}

// Cancel stops scheduling new work for runID. Pages already being recognized
// are abandoned and anything they report afterwards is discarded.
func (o *Orchestrator) Cancel(runID uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	r := o.current
	if r.id != runID || runID == uuid.Nil {
		return models.ErrRunNotFound
	}
	if r.state == models.RunStateRunning {
		slog.Info("Run canceled.", "runId", runID)
		o.cancelLocked(r)
	}
	return nil
}

func (o *Orchestrator) cancelLocked(r *run) {
	o.progress.Retire(r.id)
	r.state = models.RunStateCanceled
	r.cancel()
}

// Wait blocks until the current run is no longer running or ctx is done, and
// returns the run's state at that point.
func (o *Orchestrator) Wait(ctx context.Context) (models.RunState, error) {
	o.mu.Lock()
	r := o.current
	o.mu.Unlock()

	select {
	case <-r.done:
	case <-ctx.Done():
		return o.State(), ctx.Err()
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return r.state, nil
}

// State returns the state of the current run.
func (o *Orchestrator) State() models.RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current.state
}

// RunID returns the identifier of the current run, or uuid.Nil before the first submission.
func (o *Orchestrator) RunID() uuid.UUID {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current.id
}

// Status reports the state and progress of runID, which must be the current run.
func (o *Orchestrator) Status(runID uuid.UUID) (models.RunStatusResponse, error) {
	o.mu.Lock()
	r := o.current
	state := r.state
	o.mu.Unlock()
	if r.id != runID || runID == uuid.Nil {
		return models.RunStatusResponse{}, models.ErrRunNotFound
	}
	return models.RunStatusResponse{
		State:    state,
		Summary:  o.progress.Summary(),
		Snapshot: o.progress.Snapshot(),
	}, nil
}

// Snapshot returns the ordered page states of the current run.
func (o *Orchestrator) Snapshot() models.Snapshot {
	return o.progress.Snapshot()
}

// Summary returns page counts by status for the current run.
func (o *Orchestrator) Summary() models.Summary {
	return o.progress.Summary()
}

// Subscribe returns a coalescing change notification channel and its unsubscribe function.
func (o *Orchestrator) Subscribe() (<-chan struct{}, func()) {
	return o.progress.Subscribe()
}

func (o *Orchestrator) execute(ctx context.Context, logCtx *slog.Logger, r *run, docs []models.Document) {
	defer close(r.done)

	var inflight sync.WaitGroup

	var eg errgroup.Group
	eg.SetLimit(o.config.RasterWorkers)
	for _, doc := range docs {
		eg.Go(func() error {
			o.processDocument(ctx, logCtx.With("documentId", doc.ID, "fileName", doc.Name), r.id, doc, &inflight)
			return nil
		})
	}
	_ = eg.Wait()
	inflight.Wait()

	o.mu.Lock()
	if r.state == models.RunStateRunning {
		if ctx.Err() != nil {
			r.state = models.RunStateCanceled
		} else {
			r.state = models.RunStateCompleted
		}
	}
	state := r.state
	o.mu.Unlock()
	r.cancel()

	if summary, ok := o.progress.SummaryOf(r.id); ok {
		logCtx.Info("Run finished.", "state", state, "summary", summary)
		return
	}
	logCtx.Info("Run finished.", "state", state)
}

// processDocument renders doc page by page and hands each page to a
// recognition task once a worker slot is free. Rendering pauses while all
// slots are taken, so at most Workers rasters wait in memory per document.
func (o *Orchestrator) processDocument(ctx context.Context, logCtx *slog.Logger, runID uuid.UUID, doc models.Document, inflight *sync.WaitGroup) {
	z, err := o.rasterizer.Open(doc)
	if err != nil {
		info := models.InfoFromError(err, models.ErrorKindDecodeFailure)
		logCtx.Warn("Failed to decode document.", "error", err)
		o.progress.RecordFailure(runID, models.DocumentFailure{DocumentID: doc.ID, Name: doc.Name, Error: info})
		return
	}
	defer func() {
		if err := z.Close(); err != nil {
			logCtx.Warn("Failed to close document decoder.", "error", err)
		}
	}()

	indexes := z.PageIndexes()
	logCtx.Info("Document opened.", "pageCount", len(indexes))
	for _, idx := range indexes {
		o.progress.Update(runID, models.PageKey{DocumentID: doc.ID, PageIndex: idx}, models.PageState{
			Name:       doc.Name,
			Status:     models.PageStatusRendering,
			StageLabel: StageRendering,
		})
	}

	for page, err := range z.Pages(ctx) {
		if err != nil {
			info := models.InfoFromError(err, models.ErrorKindDecodeFailure)
			logCtx.Warn("Failed to render page.", "page", page.PageIndex, "error", err)
			o.progress.Update(runID, page.Key(), models.PageState{Name: doc.Name, Status: models.PageStatusFailed, Error: &info})
			continue
		}
		if err := o.slots.Acquire(ctx, 1); err != nil {
			page.Release()
			return
		}
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			defer o.slots.Release(1)
			o.recognizePage(ctx, logCtx.With("page", page.PageIndex), runID, page)
		}()
	}
}

func (o *Orchestrator) recognizePage(ctx context.Context, logCtx *slog.Logger, runID uuid.UUID, page *models.Page) {
	defer page.Release()
	key := page.Key()
	o.progress.Update(runID, key, models.PageState{Name: page.DocumentName, Status: models.PageStatusRecognizing})

	for ev := range o.recognizer.Recognize(ctx, page) {
		state := models.PageState{Name: page.DocumentName, Percent: ev.Overall}
		switch {
		case ev.Err != nil:
			state.Status = models.PageStatusFailed
			state.Error = ev.Err
			if ev.Err.Kind != models.ErrorKindCanceled {
				logCtx.Warn("Page recognition failed.", "error", ev.Err.Message)
			}
		case ev.Result != nil:
			state.Status = models.PageStatusDone
			state.Result = ev.Result
			state.StagePercent = 100
			logCtx.Debug("Page recognized.", "confidence", ev.Result.Confidence, "words", ev.Result.WordCount)
		default:
			state.Status = models.PageStatusRecognizing
			state.StageLabel = ev.Progress.StageLabel
			state.StagePercent = ev.Progress.Percent
		}
		o.progress.Update(runID, key, state)
	}
}
