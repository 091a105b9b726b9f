// Package llm defines the LLM capability consumed by AI-assisted
// tools (file suggestions, task generation, prompt optimization,
// project summaries) and an offline heuristic implementation used when
// no upstream provider is configured.
package llm

import (
	"context"

	"github.com/promptliano/promptliano/internal/models"
)

// Client is the minimal LLM surface the MCP core depends on. Upstream
// providers are injected behind this interface.
type Client interface {
	// SuggestFiles ranks project files relevant to the prompt.
	SuggestFiles(ctx context.Context, projectID int64, prompt string, limit int) ([]*models.File, error)
	// SuggestTasks proposes task contents for a ticket.
	SuggestTasks(ctx context.Context, ticketID int64, context string) ([]string, error)
	// AutoGenerateTasks creates and persists tasks for a ticket.
	AutoGenerateTasks(ctx context.Context, ticketID int64) ([]*models.Task, error)
	// OptimizeUserInput rewrites a user prompt for clarity.
	OptimizeUserInput(ctx context.Context, projectID int64, prompt string) (string, error)
	// CompactSummary produces a compact project summary.
	CompactSummary(ctx context.Context, projectID int64, opts SummaryOptions) (string, error)
}

// SummaryOptions tunes CompactSummary output.
type SummaryOptions struct {
	Depth    string `json:"depth,omitempty"`    // "minimal", "standard", "detailed"
	Focus    string `json:"focus,omitempty"`    // optional focus area
	MaxFiles int    `json:"maxFiles,omitempty"` // cap on files considered
}

// Fingerprint returns a stable cache-key component for the options.
func (o SummaryOptions) Fingerprint() string {
	depth := o.Depth
	if depth == "" {
		depth = "standard"
	}
	maxFiles := o.MaxFiles
	if maxFiles == 0 {
		maxFiles = 50
	}
	return depth + "|" + o.Focus + "|" + itoa(maxFiles)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
