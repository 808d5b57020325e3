package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// --- Transcription Model Prompts ---
const TranscriptionSystemPrompt = "You are an optical character recognition engine. You transcribe the text visible in an image exactly as printed, without translating, summarizing or correcting it."
const TranscriptionUserPrompt = `Transcribe all text in the provided image.

Follow these rules precisely:
1.  Preserve the reading order and the original line breaks.
2.  Separate paragraphs with a single blank line.
3.  Do not add commentary, headings, markdown or code fences.
4.  If the image contains no text, return an empty response.`

// VertexClient holds the pre-configured generative model used for OCR.
type VertexClient struct {
	TranscriptionModel *genai.GenerativeModel
	baseClient         *genai.Client
}

// NewVertexClient creates a new client holding the transcription model.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	transcriptionModel := baseClient.GenerativeModel(modelName)
	transcriptionModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(TranscriptionSystemPrompt)},
	}
	transcriptionModel.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.0), // deterministic transcription
	}
	transcriptionModel.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	return &VertexClient{
		TranscriptionModel: transcriptionModel,
		baseClient:         baseClient,
	}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
