package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/courseforge/courseforge-backend/internal/docstore"
	"github.com/courseforge/courseforge-backend/internal/platform/apperr"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
)

// CourseService covers the user-facing course mutations. Delete is a soft
// flag flip; the document tree stays intact and Restore undoes it.
type CourseService interface {
	Delete(ctx context.Context, uid, courseID string) error
	Restore(ctx context.Context, uid, courseID string) error
	UpdateTitle(ctx context.Context, uid, courseID, title string) error
	List(ctx context.Context, uid string) ([]map[string]any, error)
}

type courseService struct {
	log   *logger.Logger
	store docstore.Store
}

func NewCourseService(log *logger.Logger, store docstore.Store) CourseService {
	return &courseService{
		log:   log.With("service", "CourseService"),
		store: store,
	}
}

func (s *courseService) Delete(ctx context.Context, uid, courseID string) error {
	return s.setDeleted(ctx, uid, courseID, true)
}

func (s *courseService) Restore(ctx context.Context, uid, courseID string) error {
	return s.setDeleted(ctx, uid, courseID, false)
}

func (s *courseService) setDeleted(ctx context.Context, uid, courseID string, deleted bool) error {
	err := s.store.Update(ctx, docstore.CoursePath(uid, courseID), map[string]any{"deleted": deleted})
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.NoResultsf("course %s not found", courseID)
	}
	return err
}

func (s *courseService) UpdateTitle(ctx context.Context, uid, courseID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return apperr.Validationf("title is required")
	}
	err := s.store.Update(ctx, docstore.CoursePath(uid, courseID), map[string]any{"title": title})
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.NoResultsf("course %s not found", courseID)
	}
	return err
}

// List returns the user's non-deleted courses ordered by creation time,
// newest first.
func (s *courseService) List(ctx context.Context, uid string) ([]map[string]any, error) {
	ids, err := s.store.ListChildren(ctx, docstore.CoursesCollection(uid))
	if err != nil {
		return nil, err
	}

	courses := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		doc, err := s.store.Get(ctx, docstore.CoursePath(uid, id))
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if deleted, _ := doc["deleted"].(bool); deleted {
			continue
		}
		courses = append(courses, doc)
	}

	sort.Slice(courses, func(i, j int) bool {
		a, _ := courses[i]["createdAt"].(string)
		b, _ := courses[j]["createdAt"].(string)
		return a > b
	})
	return courses, nil
}
