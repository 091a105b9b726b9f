package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/promptliano/promptliano/internal/models"
	"github.com/promptliano/promptliano/internal/store"
)

// Heuristic is the offline fallback Client. It keeps the server usable
// without a provider key: file suggestions use keyword overlap scoring
// against path, name and content; summaries are deterministic digests
// of the file set. Tests rely on that determinism.
type Heuristic struct {
	store store.Store
}

// NewHeuristic creates the fallback client over the store.
func NewHeuristic(st store.Store) *Heuristic {
	return &Heuristic{store: st}
}

var _ Client = (*Heuristic)(nil)

// SuggestFiles scores files by keyword overlap with the prompt.
func (h *Heuristic) SuggestFiles(ctx context.Context, projectID int64, prompt string, limit int) ([]*models.File, error) {
	files, err := h.store.ListFiles(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	terms := tokenize(prompt)
	type scored struct {
		file  *models.File
		score int
	}
	var ranked []scored
	for _, f := range files {
		score := 0
		haystack := strings.ToLower(f.Path + " " + f.Name + " " + f.Summary)
		content := strings.ToLower(f.Content)
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				score += 3
			}
			if strings.Contains(content, term) {
				score++
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{f, score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]*models.File, len(ranked))
	for i, r := range ranked {
		out[i] = r.file
	}
	return out, nil
}

// SuggestTasks derives task contents from the ticket overview.
func (h *Heuristic) SuggestTasks(ctx context.Context, ticketID int64, extra string) ([]string, error) {
	t, err := h.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	subject := t.Title
	if subject == "" {
		subject = "the ticket"
	}
	tasks := []string{
		fmt.Sprintf("Investigate %s", subject),
		fmt.Sprintf("Implement %s", subject),
		fmt.Sprintf("Write tests for %s", subject),
	}
	if extra != "" {
		tasks = append(tasks, fmt.Sprintf("Address: %s", extra))
	}
	return tasks, nil
}

// AutoGenerateTasks persists the suggested tasks on the ticket.
func (h *Heuristic) AutoGenerateTasks(ctx context.Context, ticketID int64) ([]*models.Task, error) {
	contents, err := h.SuggestTasks(ctx, ticketID, "")
	if err != nil {
		return nil, err
	}
	out := make([]*models.Task, 0, len(contents))
	for _, c := range contents {
		task := &models.Task{TicketID: ticketID, Content: c}
		if err := h.store.CreateTask(ctx, task); err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, nil
}

// OptimizeUserInput trims and normalizes whitespace; a provider-backed
// client would rewrite the prompt.
func (h *Heuristic) OptimizeUserInput(ctx context.Context, projectID int64, prompt string) (string, error) {
	return strings.Join(strings.Fields(prompt), " "), nil
}

// CompactSummary digests the project's file set.
func (h *Heuristic) CompactSummary(ctx context.Context, projectID int64, opts SummaryOptions) (string, error) {
	p, err := h.store.GetProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	files, err := h.store.ListFiles(ctx, projectID)
	if err != nil {
		return "", err
	}
	maxFiles := opts.MaxFiles
	if maxFiles == 0 {
		maxFiles = 50
	}
	byExt := map[string]int{}
	totalSize := 0
	for _, f := range files {
		byExt[f.Extension]++
		totalSize += f.Size
	}
	exts := make([]string, 0, len(byExt))
	for ext := range byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\nPath: %s\n", p.Name, p.Path)
	if p.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", p.Description)
	}
	fmt.Fprintf(&b, "Files: %d (%d bytes)\n", len(files), totalSize)
	for _, ext := range exts {
		name := ext
		if name == "" {
			name = "(none)"
		}
		fmt.Fprintf(&b, "  .%s: %d\n", name, byExt[ext])
	}
	if opts.Depth == "detailed" {
		n := 0
		for _, f := range files {
			if n >= maxFiles {
				break
			}
			if f.Summary != "" {
				fmt.Fprintf(&b, "%s: %s\n", f.Path, f.Summary)
				n++
			}
		}
	}
	return b.String(), nil
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	var out []string
	for _, f := range fields {
		if len(f) >= 3 {
			out = append(out, f)
		}
	}
	return out
}
