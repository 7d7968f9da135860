package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get/Update when the document does not exist.
var ErrNotFound = errors.New("document not found")

// Store is a hierarchical, path-addressed document store scoped under a
// per-user namespace. Paths alternate collection/document segments, e.g.
// users/{uid}/courses/{courseID}/modules/{moduleID}.
//
// Set with merge=true adds/overwrites only the given fields and preserves
// the rest; Increment is an atomic store-side add, never a read-modify-write
// in application code.
type Store interface {
	Get(ctx context.Context, path string) (map[string]any, error)
	Set(ctx context.Context, path string, fields map[string]any, merge bool) error
	Update(ctx context.Context, path string, fields map[string]any) error
	Increment(ctx context.Context, path string, field string, delta int64) error
	Delete(ctx context.Context, path string) error
	ListChildren(ctx context.Context, collectionPath string) ([]string, error)
	DeleteTree(ctx context.Context, path string) error
}

// SplitPath validates and splits a document path. Document paths have an
// even number of segments; collection paths have an odd number.
func SplitPath(path string) ([]string, error) {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) == 0 || segs[0] == "" {
		return nil, fmt.Errorf("empty path")
	}
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("path %q has an empty segment", path)
		}
	}
	return segs, nil
}

func CoursePath(uid, courseID string) string {
	return fmt.Sprintf("users/%s/courses/%s", uid, courseID)
}

func CoursesCollection(uid string) string {
	return fmt.Sprintf("users/%s/courses", uid)
}

func ModulePath(uid, courseID, moduleID string) string {
	return CoursePath(uid, courseID) + "/modules/" + moduleID
}

func ModulesCollection(uid, courseID string) string {
	return CoursePath(uid, courseID) + "/modules"
}

func LessonPath(uid, courseID, moduleID, lessonID string) string {
	return ModulePath(uid, courseID, moduleID) + "/lessons/" + lessonID
}

func LessonsCollection(uid, courseID, moduleID string) string {
	return ModulePath(uid, courseID, moduleID) + "/lessons"
}

// LessonContentPath addresses the single "body" sub-document of a lesson.
func LessonContentPath(uid, courseID, moduleID, lessonID string) string {
	return LessonPath(uid, courseID, moduleID, lessonID) + "/content/body"
}

func GenerationErrorPath(uid, courseID string) string {
	return fmt.Sprintf("users/%s/generation_errors/%s", uid, courseID)
}
