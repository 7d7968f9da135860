package services

import (
	"context"
	"errors"

	"github.com/courseforge/courseforge-backend/internal/docstore"
	"github.com/courseforge/courseforge-backend/internal/platform/apperr"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
	"github.com/courseforge/courseforge-backend/internal/types"
)

// LessonView is a retrieved lesson with its content document, when one
// exists. Content is nil while generation is still pending.
type LessonView struct {
	Lesson  map[string]any `json:"lesson"`
	Content map[string]any `json:"content"`
}

type LessonService interface {
	// Complete marks a lesson done and advances completedLessons.
	// Completion is independent of generation state and idempotent.
	Complete(ctx context.Context, uid string, ref types.LessonRef) error
	Retrieve(ctx context.Context, uid string, ref types.LessonRef) (LessonView, error)
}

type lessonService struct {
	log   *logger.Logger
	store docstore.Store
}

func NewLessonService(log *logger.Logger, store docstore.Store) LessonService {
	return &lessonService{
		log:   log.With("service", "LessonService"),
		store: store,
	}
}

func (s *lessonService) Complete(ctx context.Context, uid string, ref types.LessonRef) error {
	lessonPath := docstore.LessonPath(uid, ref.CourseID, ref.ModuleID, ref.LessonID)

	doc, err := s.store.Get(ctx, lessonPath)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return apperr.NoResultsf("lesson %s/%s not found", ref.ModuleID, ref.LessonID)
		}
		return err
	}
	if done, _ := doc["completed"].(bool); done {
		return nil
	}

	if err := s.store.Update(ctx, lessonPath, map[string]any{"completed": true}); err != nil {
		return err
	}
	return s.store.Increment(ctx, docstore.CoursePath(uid, ref.CourseID), "completedLessons", 1)
}

func (s *lessonService) Retrieve(ctx context.Context, uid string, ref types.LessonRef) (LessonView, error) {
	lessonPath := docstore.LessonPath(uid, ref.CourseID, ref.ModuleID, ref.LessonID)
	lesson, err := s.store.Get(ctx, lessonPath)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return LessonView{}, apperr.NoResultsf("lesson %s/%s not found", ref.ModuleID, ref.LessonID)
		}
		return LessonView{}, err
	}

	view := LessonView{Lesson: lesson}
	content, err := s.store.Get(ctx, docstore.LessonContentPath(uid, ref.CourseID, ref.ModuleID, ref.LessonID))
	if err == nil {
		view.Content = content
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return LessonView{}, err
	}
	return view, nil
}
