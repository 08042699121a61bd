// Package interpreter converts free-text instructions into structured data
// commands. The interpreter is a probabilistic collaborator: anything it
// cannot map onto the fixed operation vocabulary is reported as "not a data
// operation", never defaulted to a low-risk command.
package interpreter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fundwise/steward/internal/models"
)

// Interpreter parses a free-text instruction into a structured command.
// A (nil, nil) return means the text is not a data operation.
type Interpreter interface {
	Parse(ctx context.Context, text string) (*models.Command, error)
}

// rawCommand is the JSON contract the model is instructed to produce.
type rawCommand struct {
	IsDataOperation      bool           `json:"is_data_operation"`
	Action               string         `json:"action"`
	Target               string         `json:"target"`
	Parameters           map[string]any `json:"parameters"`
	Description          string         `json:"description"`
	RiskLevel            string         `json:"risk_level,omitempty"`
	RequiresConfirmation *bool          `json:"requires_confirmation,omitempty"`
}

// DecodeCommand parses a model response into a Command. It tolerates
// markdown code fences around the JSON body. A response that is valid JSON
// but not a data operation yields (nil, nil).
func DecodeCommand(response string) (*models.Command, error) {
	body := stripFences(response)

	var raw rawCommand
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("malformed interpreter response: %w", err)
	}

	if !raw.IsDataOperation {
		return nil, nil
	}
	if !models.OperationKind(raw.Action).Valid() {
		// An action outside the fixed vocabulary is a parse miss, not an
		// implicit low-risk default.
		return nil, nil
	}

	desc := strings.TrimSpace(raw.Description)
	if desc == "" {
		desc = fmt.Sprintf("%s on %s", raw.Action, raw.Target)
	}

	return &models.Command{
		Action:      raw.Action,
		Target:      raw.Target,
		Parameters:  raw.Parameters,
		Description: desc,
		// The model's risk estimate is advisory; classification downstream
		// is authoritative.
		RiskLevel:            raw.RiskLevel,
		RequiresConfirmation: raw.RequiresConfirmation,
	}, nil
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
