package pipeline

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiChat is the ChatModel backed by the Gemini API.
type GeminiChat struct {
	client *genai.Client
}

// NewGeminiChat creates a client. With an empty apiKey the SDK falls back to
// GEMINI_API_KEY / GOOGLE_API_KEY from the environment.
func NewGeminiChat(ctx context.Context, apiKey string) (*GeminiChat, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiChat: create genai client: %w", err)
	}
	return &GeminiChat{client: client}, nil
}

// Complete sends one system instruction and one user prompt and returns the reply text.
func (g *GeminiChat) Complete(ctx context.Context, model, system, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0),
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("Complete: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}
