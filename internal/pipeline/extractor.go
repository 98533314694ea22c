package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/gmail-finance-sync/internal/domain"
)

// Extractor turns message text into a Candidate with exactly one model call.
type Extractor struct {
	model     ChatModel
	modelName string
	fallbacks Fallbacks
}

// NewExtractor creates an Extractor. An empty modelName selects DefaultModelName.
func NewExtractor(model ChatModel, modelName string, fb Fallbacks) *Extractor {
	if modelName == "" {
		modelName = DefaultModelName
	}
	return &Extractor{model: model, modelName: modelName, fallbacks: fb}
}

// ModelName reports the model the extractor talks to.
func (e *Extractor) ModelName() string {
	return e.modelName
}

// Ask sends the extraction prompt and returns the prompt and raw reply.
func (e *Extractor) Ask(ctx context.Context, text string, ref domain.ReferenceConfig) (prompt, reply string, err error) {
	prompt = BuildExtractionPrompt(text, ref, e.fallbacks)

	reply, err = e.model.Complete(ctx, e.modelName, SystemInstruction, prompt)
	if err != nil {
		return prompt, "", fmt.Errorf("Ask: model %s: %w", e.modelName, err)
	}
	return prompt, reply, nil
}

// Parse decodes a raw reply.
func (e *Extractor) Parse(reply string) (domain.Candidate, error) {
	return parseCandidate(reply)
}

// Extract runs Ask and Parse.
func (e *Extractor) Extract(ctx context.Context, text string, ref domain.ReferenceConfig) (domain.Candidate, error) {
	_, reply, err := e.Ask(ctx, text, ref)
	if err != nil {
		return domain.Candidate{}, err
	}
	return e.Parse(reply)
}
