package models

import (
	"time"

	"github.com/google/uuid"
)

// MimeClass is the coarse content class a document is processed as.
type MimeClass string

const (
	MimeClassPDF   MimeClass = "PDF"
	MimeClassImage MimeClass = "IMAGE"
)

// RawInput is a file as handed over by the caller, before validation.
type RawInput struct {
	Name      string
	SizeBytes int64
	MimeType  string
	Bytes     []byte
}

// Document is an admitted input. It is immutable once created and its bytes
// are shared read-only between the tasks of a run.
type Document struct {
	ID        uuid.UUID
	Name      string
	SizeBytes int64
	MimeType  string
	MimeClass MimeClass
	Bytes     []byte
}

// ImagePageIndex is the page index used for single-image documents, which have no page concept.
const ImagePageIndex = 0

// Raster is an encoded bitmap ready for OCR.
type Raster struct {
	Data   []byte
	Format string // image format name as reported by image.DecodeConfig, e.g. "png"
	Width  int
	Height int
}

// Page is one recognizable unit of a document: a PDF page (1-based) or the whole image (index 0).
type Page struct {
	DocumentID   uuid.UUID
	DocumentName string
	PageIndex    int
	Raster       *Raster
}

// Key returns the aggregator key for the page.
func (p *Page) Key() PageKey {
	return PageKey{DocumentID: p.DocumentID, PageIndex: p.PageIndex}
}

// Release drops the raster buffer once the page no longer needs it.
func (p *Page) Release() {
	p.Raster = nil
}

// PageKey identifies a page within a run.
type PageKey struct {
	DocumentID uuid.UUID
	PageIndex  int
}

// PageStatus is the lifecycle state of a page.
type PageStatus string

const (
	PageStatusRendering   PageStatus = "RENDERING"
	PageStatusRecognizing PageStatus = "RECOGNIZING"
	PageStatusDone        PageStatus = "DONE"
	PageStatusFailed      PageStatus = "FAILED"
)

// IsTerminal reports whether no further updates are accepted for the status.
func (s PageStatus) IsTerminal() bool {
	return s == PageStatusDone || s == PageStatusFailed
}

// OCRResult is the recognition output for one page. Values come straight from the engine.
type OCRResult struct {
	Text           string  `json:"text"`
	Confidence     float64 `json:"confidence"`
	LineCount      int     `json:"lineCount"`
	WordCount      int     `json:"wordCount"`
	ParagraphCount int     `json:"paragraphCount"`
	SymbolCount    int     `json:"symbolCount"`
}

// PageState is the observable progress record of a page.
type PageState struct {
	DocumentID   uuid.UUID  `json:"documentId"`
	Name         string     `json:"name"`
	PageIndex    int        `json:"pageIndex"`
	Status       PageStatus `json:"status"`
	Percent      float64    `json:"percent"`
	StagePercent float64    `json:"stagePercent"`
	StageLabel   string     `json:"stageLabel"`
	Result       *OCRResult `json:"result,omitempty"`
	Error        *ErrorInfo `json:"error,omitempty"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Key returns the aggregator key for the state.
func (s PageState) Key() PageKey {
	return PageKey{DocumentID: s.DocumentID, PageIndex: s.PageIndex}
}

// ProgressEvent is one progress report from an OCR engine. Percent is relative to
// the current stage and may reset when a new stage starts.
type ProgressEvent struct {
	StageLabel string  `json:"stageLabel"`
	Percent    float64 `json:"percent"`
}

// RejectionRecord describes an input refused by the validator. ExpiresAt tells
// the presentation layer when to stop displaying it.
type RejectionRecord struct {
	FileName   string    `json:"fileName"`
	Reason     string    `json:"reason"`
	RejectedAt time.Time `json:"rejectedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// DocumentFailure records a document that could not be decoded at all.
type DocumentFailure struct {
	DocumentID uuid.UUID `json:"documentId"`
	Name       string    `json:"name"`
	Error      ErrorInfo `json:"error"`
}
