// Package progress holds the observable state of a run: one PageState per
// discovered page plus document-level decode failures.
package progress

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Lllllllleong/ocrgrabber/internal/models"
)

// Aggregator is a concurrency-safe store of page progress for the current run.
//
// Writers are serialized by a mutex and publish an immutable snapshot after
// every accepted change; readers load the latest snapshot without locking, so
// Snapshot never waits on a writer.
type Aggregator struct {
	mu       sync.Mutex
	runID    uuid.UUID
	retired  bool
	docOrder map[uuid.UUID]int
	states   map[models.PageKey]models.PageState
	keys     []models.PageKey // sorted by (document order, page index)
	failures []models.DocumentFailure
	version  uint64

	current atomic.Pointer[models.Snapshot]

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}

	now func() time.Time
}

// NewAggregator returns an empty Aggregator with no active run.
func NewAggregator() *Aggregator {
	a := &Aggregator{
		subs: make(map[chan struct{}]struct{}),
		now:  time.Now,
	}
	a.mu.Lock()
	a.clearLocked(uuid.Nil)
	a.mu.Unlock()
	return a
}

// Reset discards all state and makes runID the active run. Updates tagged with
// any other run are dropped from now on.
func (a *Aggregator) Reset(runID uuid.UUID) {
	a.mu.Lock()
	a.clearLocked(runID)
	a.mu.Unlock()
	a.notify()
}

// Retire stops accepting updates for runID while keeping its last state visible.
func (a *Aggregator) Retire(runID uuid.UUID) {
	a.mu.Lock()
	if runID == a.runID {
		a.retired = true
	}
	a.mu.Unlock()
}

// RunID returns the active run.
func (a *Aggregator) RunID() uuid.UUID {
	return a.Snapshot().RunID
}

// RegisterDocument records a document's position in the display order. Pages of
// unregistered documents are rejected by Update.
func (a *Aggregator) RegisterDocument(runID, documentID uuid.UUID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.acceptsLocked(runID) {
		return false
	}
	if _, ok := a.docOrder[documentID]; !ok {
		a.docOrder[documentID] = len(a.docOrder)
	}
	return true
}

// Update merges state for key and reports whether it was accepted. The latest
// write wins, with two exceptions: terminal states are never replaced, and the
// overall percent of a non-terminal page never decreases.
func (a *Aggregator) Update(runID uuid.UUID, key models.PageKey, state models.PageState) bool {
	a.mu.Lock()
	if !a.acceptsLocked(runID) {
		a.mu.Unlock()
		return false
	}
	if _, ok := a.docOrder[key.DocumentID]; !ok {
		a.mu.Unlock()
		return false
	}

	state.DocumentID = key.DocumentID
	state.PageIndex = key.PageIndex
	state.UpdatedAt = a.now()
	state.Percent = clamp(state.Percent)
	state.StagePercent = clamp(state.StagePercent)
	state.Result = cloneResult(state.Result)
	state.Error = cloneError(state.Error)

	prev, exists := a.states[key]
	switch {
	case exists && prev.Status.IsTerminal():
		a.mu.Unlock()
		return false
	case state.Status == models.PageStatusDone:
		state.Percent = 100
	case exists && state.Percent < prev.Percent:
		state.Percent = prev.Percent
	}

	a.states[key] = state
	if !exists {
		a.insertKeyLocked(key)
	}
	a.publishLocked()
	a.mu.Unlock()
	a.notify()
	return true
}

// RecordFailure records that a document could not be decoded at all.
func (a *Aggregator) RecordFailure(runID uuid.UUID, failure models.DocumentFailure) bool {
	a.mu.Lock()
	if !a.acceptsLocked(runID) {
		a.mu.Unlock()
		return false
	}
	if _, ok := a.docOrder[failure.DocumentID]; !ok {
		a.mu.Unlock()
		return false
	}
	a.failures = append(a.failures, failure)
	slices.SortStableFunc(a.failures, func(x, y models.DocumentFailure) int {
		return a.docOrder[x.DocumentID] - a.docOrder[y.DocumentID]
	})
	a.publishLocked()
	a.mu.Unlock()
	a.notify()
	return true
}

// Snapshot returns the latest published view. Two calls with no update in
// between return equal values.
func (a *Aggregator) Snapshot() models.Snapshot {
	snap := a.current.Load()
	return models.Snapshot{
		RunID:    snap.RunID,
		Version:  snap.Version,
		Pages:    slices.Clone(snap.Pages),
		Failures: slices.Clone(snap.Failures),
	}
}

// Summary counts the pages of the latest snapshot by status.
func (a *Aggregator) Summary() models.Summary {
	return summarize(a.current.Load())
}

// SummaryOf returns page counts for runID, or false once another run has
// replaced it.
func (a *Aggregator) SummaryOf(runID uuid.UUID) (models.Summary, bool) {
	snap := a.current.Load()
	if snap.RunID != runID {
		return models.Summary{}, false
	}
	return summarize(snap), true
}

func summarize(snap *models.Snapshot) models.Summary {
	var s models.Summary
	for _, p := range snap.Pages {
		switch p.Status {
		case models.PageStatusRendering:
			s.Rendering++
		case models.PageStatusRecognizing:
			s.Recognizing++
		case models.PageStatusDone:
			s.Done++
		case models.PageStatusFailed:
			s.Failed++
		}
	}
	s.DocumentFailures = len(snap.Failures)
	return s
}

// Subscribe returns a channel that receives a value after changes. Signals are
// coalesced: a slow reader sees at most one pending signal. Call the returned
// function to unsubscribe.
func (a *Aggregator) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	a.subMu.Lock()
	a.subs[ch] = struct{}{}
	a.subMu.Unlock()
	return ch, func() {
		a.subMu.Lock()
		delete(a.subs, ch)
		a.subMu.Unlock()
	}
}

func (a *Aggregator) notify() {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for ch := range a.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (a *Aggregator) acceptsLocked(runID uuid.UUID) bool {
	return runID == a.runID && !a.retired
}

func (a *Aggregator) clearLocked(runID uuid.UUID) {
	a.runID = runID
	a.retired = false
	a.docOrder = make(map[uuid.UUID]int)
	a.states = make(map[models.PageKey]models.PageState)
	a.keys = nil
	a.failures = nil
	a.publishLocked()
}

func (a *Aggregator) insertKeyLocked(key models.PageKey) {
	i, _ := slices.BinarySearchFunc(a.keys, key, a.compareKeys)
	a.keys = slices.Insert(a.keys, i, key)
}

func (a *Aggregator) compareKeys(x, y models.PageKey) int {
	if d := a.docOrder[x.DocumentID] - a.docOrder[y.DocumentID]; d != 0 {
		return d
	}
	return x.PageIndex - y.PageIndex
}

func (a *Aggregator) publishLocked() {
	a.version++
	pages := make([]models.PageState, len(a.keys))
	for i, k := range a.keys {
		pages[i] = a.states[k]
	}
	a.current.Store(&models.Snapshot{
		RunID:    a.runID,
		Version:  a.version,
		Pages:    pages,
		Failures: slices.Clone(a.failures),
	})
}

func clamp(p float64) float64 {
	return min(max(p, 0), 100)
}

func cloneResult(r *models.OCRResult) *models.OCRResult {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func cloneError(e *models.ErrorInfo) *models.ErrorInfo {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}
