package lessongen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/courseforge/courseforge-backend/internal/platform/apperr"
	"github.com/courseforge/courseforge-backend/internal/types"
)

const choicesPerQuestion = 6

// quizHandler serves both plain tests and unit tests. A unit test payload
// carries its module's full lesson-title list and the prompt requires
// covering all of them; a plain test payload carries none.
type quizHandler struct {
	deps Deps
}

func (h *quizHandler) Type() string { return TypeQuiz }

func (h *quizHandler) Run(ctx context.Context, raw json.RawMessage) error {
	return run(ctx, h.deps, raw, h.generate)
}

func (h *quizHandler) generate(ctx context.Context, p Payload) error {
	log := h.deps.Log.With("handler", "quiz", "course_id", p.CourseID, "lesson_id", p.LessonID)
	numQuestions := h.deps.Cfg.Generation.NumQuestions

	var obj map[string]any
	err := withProviderRetry(ctx, log, func() error {
		out, err := h.deps.OpenAI.GenerateJSON(ctx, h.deps.Cfg.OpenAI.LessonModel,
			instructorPersona, h.prompt(p, numQuestions), "quiz", quizSchema(numQuestions))
		if err != nil {
			return err
		}
		obj = out
		return nil
	})
	if err != nil {
		return apperr.Generationf("quiz generation failed for %q: %v", p.LessonTitle, err)
	}

	questions, err := parseQuestions(obj, numQuestions)
	if err != nil {
		return apperr.Generationf("quiz for %q: %v", p.LessonTitle, err)
	}

	content := make([]map[string]any, 0, len(questions))
	for _, q := range questions {
		content = append(content, map[string]any{
			"question":    q.Question,
			"choices":     q.Choices,
			"answer":      q.Answer,
			"explanation": q.Explanation,
		})
	}
	return finishLesson(ctx, h.deps, p, map[string]any{"content": content})
}

func (h *quizHandler) prompt(p Payload, numQuestions int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a multiple-choice quiz for a lesson in a course about %q.\n", p.Topic)
	fmt.Fprintf(&b, "Module: %q\nLesson: %q\n", p.ModuleTitle, p.LessonTitle)
	if strings.TrimSpace(p.Description) != "" {
		fmt.Fprintf(&b, "Lesson description: %s\n", p.Description)
	}
	fmt.Fprintf(&b, `
Requirements:
- Exactly %d questions.
- Each question has exactly %d answer choices, one of which is correct.
- The answer field must repeat the correct choice verbatim.
- Each explanation is at most 2 sentences.
`, numQuestions, choicesPerQuestion)
	if len(p.SiblingTitles) > 0 {
		b.WriteString("- This is a unit test for the whole module. Across the questions, cover every one of these lessons:\n")
		for _, title := range p.SiblingTitles {
			fmt.Fprintf(&b, "  - %s\n", title)
		}
	}
	return b.String()
}

func quizSchema(numQuestions int) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type":     "array",
				"minItems": numQuestions,
				"maxItems": numQuestions,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"question":    map[string]any{"type": "string"},
						"choices":     map[string]any{"type": "array", "minItems": choicesPerQuestion, "maxItems": choicesPerQuestion, "items": map[string]any{"type": "string"}},
						"answer":      map[string]any{"type": "string"},
						"explanation": map[string]any{"type": "string"},
					},
					"required":             []string{"question", "choices", "answer", "explanation"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"questions"},
		"additionalProperties": false,
	}
}

// parseQuestions re-validates the structured output; schema enforcement is
// provider-side and not trusted for persistence.
func parseQuestions(obj map[string]any, numQuestions int) ([]types.QuizQuestion, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Questions []types.QuizQuestion `json:"questions"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("malformed quiz output: %w", err)
	}
	if len(parsed.Questions) != numQuestions {
		return nil, fmt.Errorf("expected %d questions, got %d", numQuestions, len(parsed.Questions))
	}
	for i, q := range parsed.Questions {
		if len(q.Choices) != choicesPerQuestion {
			return nil, fmt.Errorf("question %d has %d choices, want %d", i+1, len(q.Choices), choicesPerQuestion)
		}
		found := false
		for _, c := range q.Choices {
			if c == q.Answer {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("question %d answer is not among its choices", i+1)
		}
	}
	return parsed.Questions, nil
}
