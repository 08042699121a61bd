package interpreter

import (
	"context"

	"github.com/fundwise/steward/internal/models"
)

// Static is an Interpreter with canned responses, used in tests and when no
// API key is configured. Unknown text is reported as not a data operation.
type Static struct {
	// Commands maps exact input text to a parsed command
	Commands map[string]*models.Command
	// Err, when set, is returned by every Parse call
	Err error
}

// NewStatic creates an empty Static interpreter.
func NewStatic() *Static {
	return &Static{Commands: make(map[string]*models.Command)}
}

// Add registers a canned mapping.
func (s *Static) Add(text string, cmd *models.Command) {
	s.Commands[text] = cmd
}

// Parse returns the canned command for text, or (nil, nil) when absent.
func (s *Static) Parse(ctx context.Context, text string) (*models.Command, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Commands[text], nil
}
