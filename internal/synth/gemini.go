package synth

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/krishanraja/try-ritual-sub002/internal/models"
)

//go:embed prompt.md
var ritualPrompt string

type GeminiSynthesizer struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiSynthesizer(ctx context.Context, apiKey string) (*GeminiSynthesizer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	model := client.GenerativeModel("gemini-1.5-flash")
	model.ResponseMIMEType = "application/json"
	return &GeminiSynthesizer{client: client, model: model}, nil
}

func (synthesizer *GeminiSynthesizer) Synthesize(ctx context.Context, request Request) ([]models.Suggestion, error) {
	prompt, err := buildPrompt(request)
	if err != nil {
		return nil, err
	}

	response, err := synthesizer.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("generating suggestions: %w", err)
	}

	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("model returned no content")
	}

	text, ok := response.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, fmt.Errorf("model returned non-text content")
	}

	return ParseSuggestions(string(text))
}

func (synthesizer *GeminiSynthesizer) Close() error {
	return synthesizer.client.Close()
}

func buildPrompt(request Request) (string, error) {
	tmpl, err := template.New("ritual").Parse(ritualPrompt)
	if err != nil {
		return "", fmt.Errorf("parsing prompt template: %w", err)
	}

	data := request
	if data.City == "" {
		data.City = "their city"
	}

	var buffer bytes.Buffer
	if err := tmpl.Execute(&buffer, data); err != nil {
		return "", fmt.Errorf("building prompt: %w", err)
	}
	return buffer.String(), nil
}

// ParseSuggestions decodes the model output into suggestions. Models
// sometimes wrap JSON in markdown fences despite instructions, so fences are
// stripped before decoding. An empty list is malformed output.
func ParseSuggestions(raw string) ([]models.Suggestion, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var suggestions []models.Suggestion
	if err := json.Unmarshal([]byte(cleaned), &suggestions); err != nil {
		return nil, fmt.Errorf("parsing suggestions: %w", err)
	}
	if len(suggestions) == 0 {
		return nil, fmt.Errorf("model returned an empty suggestion list")
	}
	for index, suggestion := range suggestions {
		if suggestion.Title == "" {
			return nil, fmt.Errorf("suggestion %d has no title", index)
		}
	}
	return suggestions, nil
}
