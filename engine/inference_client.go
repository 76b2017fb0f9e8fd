package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/drummonds/pagevision/config"
)

// ErrInference marks failures reported by, or on the way to, the vision backend
var ErrInference = errors.New("inference failed")

// imageTokens is prepended to every prompt
const imageTokens = "<|img|><|imgpad|><|endofimg|>"

// Prompt modes understood by PromptFor
const (
	PromptOCR    = "prompt_ocr"
	PromptLayout = "prompt_layout_all_en"
)

const ocrPrompt = "Extract the text content from this image."

const layoutPrompt = `Please output the layout information from the PDF image, including each layout element's bbox, its category, and the corresponding text content within the bbox.

1. Bbox format: [x1, y1, x2, y2]

2. Layout Categories: The possible categories are ['Caption', 'Footnote', 'Formula', 'List-item', 'Page-footer', 'Page-header', 'Picture', 'Section-header', 'Table', 'Text', 'Title'].

3. Text Extraction & Formatting Rules:
    - Picture: For the 'Picture' category, the text field should be omitted.
    - Formula: Format its text as LaTeX.
    - Table: Format its text as HTML.
    - All Others (Text, Title, etc.): Format their text as Markdown.

4. Constraints:
    - The output text must be the original text from the image, with no translation.
    - All layout elements must be sorted according to human reading order.

5. Final Output: The entire output must be a single JSON object.`

var prompts = map[string]string{
	PromptOCR:    ocrPrompt,
	PromptLayout: layoutPrompt,
}

// PromptFor returns the instruction text for a prompt mode, empty selects OCR
func PromptFor(mode string) (string, error) {
	if mode == "" {
		mode = PromptOCR
	}
	prompt, ok := prompts[mode]
	if !ok {
		return "", fmt.Errorf("unknown prompt mode %q", mode)
	}
	return prompt, nil
}

// InferenceClient sends prepared pages to an OpenAI-compatible vision endpoint
type InferenceClient struct {
	client      *openai.Client
	model       string
	temperature float32
	topP        float32
	maxTokens   int
}

// NewInferenceClient builds a client from the inference settings
func NewInferenceClient(cfg config.InferenceConfig) (*InferenceClient, error) {
	if !cfg.InferenceEnabled() {
		return nil, fmt.Errorf("%w: INFERENCE_URL is not set", ErrInference)
	}
	if cfg.InferenceModel == "" {
		return nil, fmt.Errorf("%w: INFERENCE_MODEL is not set", ErrInference)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.InferenceURL
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.InferenceTimeout}

	return &InferenceClient{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.InferenceModel,
		temperature: cfg.InferenceTemperature,
		topP:        cfg.InferenceTopP,
		maxTokens:   cfg.InferenceMaxTokens,
	}, nil
}

// Transcribe sends one page as a data URL with prompt and returns the model's text
func (ic *InferenceClient) Transcribe(ctx context.Context, dataURL, prompt string) (string, error) {
	resp, err := ic.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: ic.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
					{
						Type: openai.ChatMessagePartTypeText,
						Text: imageTokens + prompt,
					},
				},
			},
		},
		Temperature:         ic.temperature,
		TopP:                ic.topP,
		MaxCompletionTokens: ic.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInference, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: response has no choices", ErrInference)
	}
	return resp.Choices[0].Message.Content, nil
}
