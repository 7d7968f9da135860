package lessongen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/courseforge/courseforge-backend/internal/platform/apperr"
)

type assignmentHandler struct {
	deps Deps
}

func (h *assignmentHandler) Type() string { return TypeAssignment }

func (h *assignmentHandler) Run(ctx context.Context, raw json.RawMessage) error {
	return run(ctx, h.deps, raw, h.generate)
}

func (h *assignmentHandler) generate(ctx context.Context, p Payload) error {
	log := h.deps.Log.With("handler", "assignment", "course_id", p.CourseID, "lesson_id", p.LessonID)

	var content string
	err := withProviderRetry(ctx, log, func() error {
		text, err := h.deps.OpenAI.GenerateText(ctx, h.deps.Cfg.OpenAI.LessonModel,
			instructorPersona, h.prompt(p))
		if err != nil {
			return err
		}
		content = text
		return nil
	})
	if err != nil {
		return apperr.Generationf("assignment generation failed for %q: %v", p.LessonTitle, err)
	}

	return finishLesson(ctx, h.deps, p, map[string]any{"content": content})
}

func (h *assignmentHandler) prompt(p Payload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create an assignment for a lesson in a course about %q.\n", p.Topic)
	fmt.Fprintf(&b, "Module: %q\nLesson: %q\n", p.ModuleTitle, p.LessonTitle)
	if strings.TrimSpace(p.Description) != "" {
		fmt.Fprintf(&b, "Lesson description: %s\n", p.Description)
	}
	b.WriteString(`
Requirements:
- Clearly state what the learner must produce and how they should approach it.
- Format the content as markdown.
- The assignment must be completable with only the knowledge taught so far in the course.
`)
	return b.String()
}
