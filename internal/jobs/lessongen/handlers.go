package lessongen

import (
	"context"
	"encoding/json"

	"github.com/courseforge/courseforge-backend/internal/clients/openai"
	"github.com/courseforge/courseforge-backend/internal/clients/tavily"
	"github.com/courseforge/courseforge-backend/internal/clients/youtube"
	"github.com/courseforge/courseforge-backend/internal/config"
	"github.com/courseforge/courseforge-backend/internal/docstore"
	"github.com/courseforge/courseforge-backend/internal/jobs/runtime"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
)

// ProgressNotifier receives course counter updates after each lesson lands.
// Implementations must not block.
type ProgressNotifier interface {
	CourseProgress(uid, courseID string, generated, total int64)
}

// Deps is the shared dependency set for all lesson handlers.
type Deps struct {
	Log     *logger.Logger
	Store   docstore.Store
	OpenAI  openai.Client
	Tavily  tavily.Client
	YouTube youtube.Client
	Cfg     *config.Config
	Notify  ProgressNotifier
}

// RegisterAll wires the four lesson strategies into the registry.
func RegisterAll(reg *runtime.Registry, deps Deps) error {
	handlers := []runtime.Handler{
		&readingHandler{deps: deps},
		&quizHandler{deps: deps},
		&videoHandler{deps: deps},
		&assignmentHandler{deps: deps},
	}
	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			return err
		}
	}
	return nil
}

// run decodes the payload, executes the strategy, and on any failure records
// the generation error and tears the course down before returning the error.
func run(ctx context.Context, deps Deps, raw json.RawMessage, strategy func(ctx context.Context, p Payload) error) error {
	p, err := decodePayload(raw)
	if err != nil {
		return err
	}
	if err := strategy(ctx, p); err != nil {
		rollback(ctx, deps, p, err)
		return err
	}
	return nil
}

// finishLesson merge-writes the lesson's content document, advances the
// shared counter, and broadcasts progress. The increment is store-side
// atomic so concurrent sibling jobs never lose updates.
func finishLesson(ctx context.Context, deps Deps, p Payload, contentFields map[string]any) error {
	contentPath := docstore.LessonContentPath(p.UID, p.CourseID, p.ModuleID, p.LessonID)
	if err := deps.Store.Set(ctx, contentPath, contentFields, true); err != nil {
		return err
	}

	coursePath := docstore.CoursePath(p.UID, p.CourseID)
	if err := deps.Store.Increment(ctx, coursePath, "generatedLessons", 1); err != nil {
		return err
	}

	if deps.Notify != nil {
		if doc, err := deps.Store.Get(ctx, coursePath); err == nil {
			deps.Notify.CourseProgress(p.UID, p.CourseID, asInt64(doc["generatedLessons"]), asInt64(doc["totalLessons"]))
		}
	}
	return nil
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}
