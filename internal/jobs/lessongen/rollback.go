package lessongen

import (
	"context"
	"time"

	"github.com/courseforge/courseforge-backend/internal/docstore"
)

// rollback records the failure and tears down the whole course. It runs on
// a detached context so a cancelled job still leaves the store consistent:
// either the error record exists and the course is gone, or nothing was
// touched. Sibling jobs still in flight may write into the deleted tree;
// those writes are orphaned and harmless because the course root is gone.
func rollback(ctx context.Context, deps Deps, p Payload, cause error) {
	log := deps.Log.With("course_id", p.CourseID, "lesson_id", p.LessonID)
	log.Error("Lesson generation failed; rolling back course", "error", cause.Error())

	ctx = context.WithoutCancel(ctx)

	errPath := docstore.GenerationErrorPath(p.UID, p.CourseID)
	record := map[string]any{
		"error":    cause.Error(),
		"failedAt": time.Now().UTC().Format(time.RFC3339),
	}
	if err := deps.Store.Set(ctx, errPath, record, false); err != nil {
		log.Error("Failed to write generation error record", "error", err.Error())
	}

	if err := deps.Store.DeleteTree(ctx, docstore.CoursePath(p.UID, p.CourseID)); err != nil {
		log.Error("Failed to cascade delete course", "error", err.Error())
	}
}
