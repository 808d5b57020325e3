package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/ocrgrabber/internal/models"
)

func sampleSnapshot() models.Snapshot {
	return models.Snapshot{
		RunID: uuid.New(),
		Pages: []models.PageState{
			{Name: "report.pdf", PageIndex: 1, Status: models.PageStatusDone, Percent: 100,
				Result: &models.OCRResult{Text: "Hello world", Confidence: 88.5, LineCount: 1, WordCount: 2, ParagraphCount: 1, SymbolCount: 10}},
			{Name: "report.pdf", PageIndex: 2, Status: models.PageStatusFailed,
				Error: &models.ErrorInfo{Kind: models.ErrorKindRecognitionFailure, Message: "engine crashed"}},
		},
		Failures: []models.DocumentFailure{
			{Name: "broken.pdf", Error: models.ErrorInfo{Kind: models.ErrorKindDecodeFailure, Message: "xref not found"}},
		},
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeText(&buf, sampleSnapshot()))

	out := buf.String()
	assert.Contains(t, out, "== broken.pdf: DecodeFailure: xref not found ==")
	assert.Contains(t, out, "== report.pdf page 1 (confidence 88.5, 1 lines, 2 words, 1 paragraphs, 10 symbols) ==\nHello world\n")
	assert.Contains(t, out, "== report.pdf page 2: RecognitionFailure: engine crashed ==")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	receipt := models.Receipt{RunID: uuid.New(), AdmittedCount: 2}
	require.NoError(t, writeJSON(&buf, receipt, models.RunStateCompleted, sampleSnapshot()))

	var res models.ExtractTextResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &res))
	assert.Equal(t, models.RunStateCompleted, res.State)
	assert.Equal(t, 2, res.Receipt.AdmittedCount)
	require.Len(t, res.Snapshot.Pages, 2)
	assert.Equal(t, "Hello world", res.Snapshot.Pages[0].Result.Text)
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	t.Setenv("OCRGRAB_OCR_ENGINE", "tesseract")
	cfg, err := loadConfig(options{language: "deu", workers: 6, scale: 2})
	require.NoError(t, err)
	assert.Equal(t, "deu", cfg.Pipeline.Language)
	assert.Equal(t, 6, cfg.Pipeline.Workers)
	assert.Equal(t, 3, cfg.Pipeline.RasterWorkers)
	assert.Equal(t, 2.0, cfg.Pipeline.Scale)

	_, err = loadConfig(options{engine: "abacus"})
	assert.Error(t, err)
}
