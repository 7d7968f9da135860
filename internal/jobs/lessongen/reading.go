package lessongen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/courseforge/courseforge-backend/internal/clients/openai"
	"github.com/courseforge/courseforge-backend/internal/platform/apperr"
	"github.com/courseforge/courseforge-backend/internal/types"
)

type readingHandler struct {
	deps Deps
}

func (h *readingHandler) Type() string { return TypeReading }

func (h *readingHandler) Run(ctx context.Context, raw json.RawMessage) error {
	return run(ctx, h.deps, raw, h.generate)
}

// generate produces the reading body with a web-search tool and persists
// content plus citations in one merge write. Citations are recorded in tool
// invocation order; duplicates are kept.
func (h *readingHandler) generate(ctx context.Context, p Payload) error {
	log := h.deps.Log.With("handler", "reading", "course_id", p.CourseID, "lesson_id", p.LessonID)

	var (
		mu        sync.Mutex
		citations []types.Citation
	)

	searchTool := openai.Tool{
		Name:        "web_search",
		Description: "Search the web for current, factual information about a topic. Returns titled snippets with source URLs.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query.",
				},
			},
			"required":             []string{"query"},
			"additionalProperties": false,
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			results, err := h.deps.Tavily.Search(ctx, query, 5)
			if err != nil {
				return "", err
			}
			mu.Lock()
			for _, r := range results {
				citations = append(citations, types.Citation{Title: r.Title, URL: r.URL})
			}
			mu.Unlock()

			var b strings.Builder
			for _, r := range results {
				fmt.Fprintf(&b, "Title: %s\nURL: %s\nContent: %s\n\n", r.Title, r.URL, r.Content)
			}
			if b.Len() == 0 {
				return "No results found.", nil
			}
			return b.String(), nil
		},
	}

	system := instructorPersona
	user := h.prompt(p)

	var content string
	err := withProviderRetry(ctx, log, func() error {
		text, err := h.deps.OpenAI.GenerateWithTools(ctx, h.deps.Cfg.OpenAI.LessonModel, system, user, []openai.Tool{searchTool}, 8)
		if err != nil {
			return err
		}
		content = text
		return nil
	})
	if err != nil {
		return apperr.Generationf("reading generation failed for %q: %v", p.LessonTitle, err)
	}

	citationFields := make([]map[string]any, 0, len(citations))
	for _, c := range citations {
		citationFields = append(citationFields, map[string]any{"title": c.Title, "url": c.URL})
	}

	return finishLesson(ctx, h.deps, p, map[string]any{
		"content":   content,
		"citations": citationFields,
	})
}

func (h *readingHandler) prompt(p Payload) string {
	minWords := h.deps.Cfg.Generation.MinWords
	var b strings.Builder
	fmt.Fprintf(&b, "Write the full reading content for a lesson in a course about %q.\n", p.Topic)
	fmt.Fprintf(&b, "Module: %q\nLesson: %q\n", p.ModuleTitle, p.LessonTitle)
	if strings.TrimSpace(p.Description) != "" {
		fmt.Fprintf(&b, "Lesson description: %s\n", p.Description)
	}
	fmt.Fprintf(&b, `
Requirements:
- Use the web_search tool to ground the content in accurate, current information.
- At least %d words of substantive instructional prose.
- Format the content as markdown.
- Use $$ ... $$ for display math and $ ... $ for inline math.
- Teach the material directly; do not include exercises, assignments, or quizzes.
`, minWords)
	return b.String()
}
