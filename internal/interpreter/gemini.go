package interpreter

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/fundwise/steward/internal/models"
)

const systemPrompt = `You translate instructions from a fundraising dashboard
into structured data operations against these tables: contributions,
prospects, targets, schools, users.

Respond with a single JSON object, no prose:
{
  "is_data_operation": true|false,
  "action": "create|update|delete|bulk_create|bulk_update|bulk_delete|erase_all|revert|backup|restore",
  "target": "<table name, or 'all'>",
  "parameters": { ... },
  "description": "<one-line summary of the change>"
}

Rules:
- If the instruction is a question, a greeting, or anything that does not
  mutate data, set is_data_operation to false and omit the other fields.
- Never invent an action outside the list above.
- For update and delete, parameters must include "id" (or "ids"/"where" for
  bulk variants). For create, parameters holds the new record's fields.
- Amounts are plain numbers, state codes are two-letter codes.`

// Gemini implements Interpreter using Google's Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini-backed interpreter.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Gemini{client: client, model: model}, nil
}

// Parse asks the model to map the instruction onto the operation vocabulary.
func (g *Gemini) Parse(ctx context.Context, text string) (*models.Command, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.1),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("gemini parse failed: %w", err)
	}

	return DecodeCommand(result.Text())
}
