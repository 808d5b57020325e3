package tesseract

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os/exec"
	"strings"
	"testing"

	"github.com/otiai10/gosseract/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/Lllllllleong/ocrgrabber/internal/models"
	"github.com/Lllllllleong/ocrgrabber/internal/ocr"
)

// ensureTesseractAvailable checks that the tesseract runtime is installed.
func ensureTesseractAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
}

func renderText(t *testing.T, lines ...string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 320, 40+30*len(lines)))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	for i, line := range lines {
		d := &font.Drawer{
			Dst:  img,
			Src:  image.Black,
			Face: basicfont.Face7x13,
			Dot:  fixed.P(10, 30+30*i),
		}
		d.DrawString(line)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestEngineRecognize(t *testing.T) {
	ensureTesseractAvailable(t)

	data := renderText(t, "Hello OCR", "Second line")
	in := ocr.NewInput("test/page-0", data, "png", 320, 100, ocr.WithLanguages("eng"))

	var events []models.ProgressEvent
	res, err := NewEngine().Recognize(context.Background(), in, func(e models.ProgressEvent) {
		events = append(events, e)
	})
	require.NoError(t, err)

	got := strings.ToLower(res.Text)
	assert.Contains(t, got, "hello")
	assert.GreaterOrEqual(t, res.WordCount, 2)
	assert.GreaterOrEqual(t, res.LineCount, 1)
	assert.GreaterOrEqual(t, res.SymbolCount, res.WordCount)
	assert.Greater(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 100.0)

	require.NotEmpty(t, events)
	assert.Equal(t, ocr.StageLoadingCore, events[0].StageLabel)
	last := events[len(events)-1]
	assert.Equal(t, ocr.StageRecognizing, last.StageLabel)
	assert.Equal(t, 100.0, last.Percent)
}

func TestEngineRecognize_Canceled(t *testing.T) {
	ensureTesseractAvailable(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := ocr.NewInput("canceled", renderText(t, "x"), "png", 320, 70)
	_, err := NewEngine().Recognize(ctx, in, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMeanConfidence(t *testing.T) {
	assert.Equal(t, 0.0, meanConfidence(nil))
	words := []gosseract.BoundingBox{{Confidence: 90}, {Confidence: 70}}
	assert.Equal(t, 80.0, meanConfidence(words))
}

func TestStagesOrder(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, Name, e.Name())
	assert.Equal(t, []string{
		ocr.StageLoadingCore,
		ocr.StageInitializing,
		ocr.StageLoadingLanguage,
		ocr.StageInitializingAPI,
		ocr.StageRecognizing,
	}, e.Stages())
}
