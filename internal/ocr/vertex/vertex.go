// Package vertex implements an OCR engine backed by a Gemini vision model on
// Vertex AI. The model streams its transcription; each received chunk advances
// the reported progress.
package vertex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/png"
	"log/slog"
	"strings"
	"unicode"

	"cloud.google.com/go/vertexai/genai"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	"google.golang.org/api/iterator"

	"github.com/Lllllllleong/ocrgrabber/internal/config"
	"github.com/Lllllllleong/ocrgrabber/internal/gcp"
	"github.com/Lllllllleong/ocrgrabber/internal/models"
	"github.com/Lllllllleong/ocrgrabber/internal/ocr"
)

const Name = "vertex"

func init() {
	ocr.RegisterEngine(Name, func(ctx context.Context, cfg *config.Config) (ocr.Engine, error) {
		client, err := gcp.NewVertexClient(ctx, cfg.Vertex.ProjectID, cfg.Vertex.Region, cfg.Vertex.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		return NewEngine(client), nil
	})
}

// formats Gemini accepts inline; anything else is re-encoded to PNG.
var supportedFormats = map[string]bool{"png": true, "jpeg": true, "webp": true}

// Engine implements ocr.StagedEngine with a Gemini model. Gemini reports no
// recognition confidence, so results carry a confidence of zero.
type Engine struct {
	client *gcp.VertexClient
}

// NewEngine wraps a Vertex client.
func NewEngine(client *gcp.VertexClient) *Engine {
	return &Engine{client: client}
}

func (e *Engine) Name() string { return Name }

func (e *Engine) Stages() []string {
	return []string{ocr.StageInitializingAPI, ocr.StageRecognizing}
}

// Close releases the underlying Vertex client.
func (e *Engine) Close() error { return e.client.Close() }

func (e *Engine) Recognize(ctx context.Context, in ocr.Input, progress ocr.ProgressFunc) (models.OCRResult, error) {
	ocr.Report(progress, ocr.StageInitializingAPI, 0)
	format, data, err := toSupportedImage(in.Format, in.Image)
	if err != nil {
		return models.OCRResult{}, err
	}
	ocr.Report(progress, ocr.StageInitializingAPI, 100)

	ocr.Report(progress, ocr.StageRecognizing, 0)
	it := e.client.TranscriptionModel.GenerateContentStream(ctx,
		genai.ImageData(format, data),
		genai.Text(gcp.TranscriptionUserPrompt),
	)
	var text strings.Builder
	chunks := 0
	for {
		resp, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return models.OCRResult{}, fmt.Errorf("stream content from gemini: %w", err)
		}
		chunks++
		text.WriteString(extractText(resp))
		ocr.Report(progress, ocr.StageRecognizing, streamPercent(chunks))
	}
	slog.Debug("Gemini transcription complete.", "inputId", in.ID, "chunks", chunks)

	res := TextStats(cleanTranscript(text.String()))
	ocr.Report(progress, ocr.StageRecognizing, 100)
	return res, nil
}

// streamPercent maps the number of received chunks onto 0-95; the final 5%
// is reported when the stream ends since its length is unknown up front.
func streamPercent(chunks int) float64 {
	return 95 * (1 - 1/float64(chunks+1))
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}

func cleanTranscript(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```text")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// TextStats builds a result from plain text, counting non-blank lines,
// whitespace-separated words, blank-line-separated paragraphs and non-space symbols.
func TextStats(text string) models.OCRResult {
	res := models.OCRResult{Text: text}
	inParagraph := false
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			inParagraph = false
			continue
		}
		res.LineCount++
		if !inParagraph {
			res.ParagraphCount++
			inParagraph = true
		}
		res.WordCount += len(strings.Fields(line))
	}
	for _, r := range text {
		if !unicode.IsSpace(r) {
			res.SymbolCount++
		}
	}
	return res
}

func toSupportedImage(format string, data []byte) (string, []byte, error) {
	if supportedFormats[format] {
		return format, data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("decode %s image for re-encoding: %w", format, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", nil, fmt.Errorf("encode png: %w", err)
	}
	return "png", buf.Bytes(), nil
}
