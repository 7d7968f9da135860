package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/courseforge/courseforge-backend/internal/clients/openai"
	"github.com/courseforge/courseforge-backend/internal/config"
	"github.com/courseforge/courseforge-backend/internal/docstore"
	"github.com/courseforge/courseforge-backend/internal/jobs/dispatch"
	"github.com/courseforge/courseforge-backend/internal/jobs/lessongen"
	"github.com/courseforge/courseforge-backend/internal/platform/apperr"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
	"github.com/courseforge/courseforge-backend/internal/types"
)

// GenerateCourseRequest is the client's course shape. Flags widen the set
// of lesson types the outline may use; reading and unit tests are always
// allowed.
type GenerateCourseRequest struct {
	Title   string `json:"title"`
	Topic   string `json:"topic"`
	Modules int    `json:"modules"`
	Types   struct {
		Tests       bool `json:"tests"`
		Videos      bool `json:"videos"`
		Assignments bool `json:"assignments"`
	} `json:"types"`
}

// CourseStatus is the progress-poll view of a course under generation.
type CourseStatus struct {
	TotalLessons     int64  `json:"totalLessons"`
	GeneratedLessons int64  `json:"generatedLessons"`
	Failed           bool   `json:"failed"`
	Error            string `json:"error,omitempty"`
}

type CourseGenService interface {
	// GenerateCourse synchronously persists the outline skeleton and
	// dispatches one job per lesson, then returns the new course id.
	GenerateCourse(ctx context.Context, uid string, req GenerateCourseRequest) (string, error)
	Status(ctx context.Context, uid, courseID string) (CourseStatus, error)
}

type courseGenService struct {
	log        *logger.Logger
	store      docstore.Store
	ai         openai.Client
	dispatcher dispatch.Dispatcher
	cfg        *config.Config
}

func NewCourseGenService(log *logger.Logger, store docstore.Store, ai openai.Client, dispatcher dispatch.Dispatcher, cfg *config.Config) CourseGenService {
	return &courseGenService{
		log:        log.With("service", "CourseGenService"),
		store:      store,
		ai:         ai,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

func (s *courseGenService) GenerateCourse(ctx context.Context, uid string, req GenerateCourseRequest) (string, error) {
	if err := s.validate(req); err != nil {
		return "", err
	}

	allowed := allowedTypes(req)
	outline, err := s.generateOutline(ctx, req, allowed)
	if err != nil {
		return "", err
	}

	// Hard filter: the schema constrains the model but persistence never
	// trusts it. Any lesson with an out-of-set type is dropped.
	outline = filterOutline(outline, allowed)
	totalLessons := outline.TotalLessons()
	if totalLessons == 0 {
		return "", apperr.Generationf("outline for %q produced no usable lessons", req.Topic)
	}

	courseID := uuid.New().String()
	course := types.Course{
		ID:        courseID,
		Title:     req.Title,
		Topic:     req.Topic,
		CreatedAt: time.Now().UTC(),
		UID:       uid,
		// Counters start at zero; lesson jobs advance generatedLessons.
		TotalLessons: totalLessons,
	}
	if err := s.store.Set(ctx, docstore.CoursePath(uid, courseID), course.Fields(), false); err != nil {
		return "", err
	}

	// Persist the full skeleton before any job is dispatched so every job
	// finds its lesson row in place.
	for mi, mod := range outline.Modules {
		moduleID := strconv.Itoa(mi + 1)
		m := types.Module{Title: mod.Title}
		if err := s.store.Set(ctx, docstore.ModulePath(uid, courseID, moduleID), m.Fields(), false); err != nil {
			return "", err
		}
		for li, lesson := range mod.Lessons {
			lessonID := strconv.Itoa(li + 1)
			l := types.Lesson{Title: lesson.Title, Type: lesson.Type, Description: lesson.Description}
			if err := s.store.Set(ctx, docstore.LessonPath(uid, courseID, moduleID, lessonID), l.Fields(), false); err != nil {
				return "", err
			}
		}
	}

	for mi, mod := range outline.Modules {
		moduleID := strconv.Itoa(mi + 1)
		for li, lesson := range mod.Lessons {
			lessonID := strconv.Itoa(li + 1)
			if err := s.dispatchLesson(ctx, uid, courseID, moduleID, lessonID, req.Topic, mod, lesson); err != nil {
				return "", err
			}
		}
	}

	s.log.Info("Course generation started",
		"course_id", courseID,
		"modules", len(outline.Modules),
		"total_lessons", totalLessons,
	)
	return courseID, nil
}

func (s *courseGenService) Status(ctx context.Context, uid, courseID string) (CourseStatus, error) {
	doc, err := s.store.Get(ctx, docstore.CoursePath(uid, courseID))
	if err == nil {
		return CourseStatus{
			TotalLessons:     toInt64(doc["totalLessons"]),
			GeneratedLessons: toInt64(doc["generatedLessons"]),
		}, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return CourseStatus{}, err
	}

	// Course missing: a rollback may have replaced it with an error record.
	rec, recErr := s.store.Get(ctx, docstore.GenerationErrorPath(uid, courseID))
	if recErr == nil {
		msg, _ := rec["error"].(string)
		return CourseStatus{Failed: true, Error: msg}, nil
	}
	return CourseStatus{}, apperr.NoResultsf("course %s not found", courseID)
}

func (s *courseGenService) validate(req GenerateCourseRequest) error {
	switch {
	case strings.TrimSpace(req.Title) == "":
		return apperr.Validationf("title is required")
	case strings.TrimSpace(req.Topic) == "":
		return apperr.Validationf("topic is required")
	case req.Modules < 1:
		return apperr.Validationf("modules must be at least 1")
	case req.Modules > s.cfg.Generation.MaxModules:
		return apperr.Validationf("modules must not exceed %d", s.cfg.Generation.MaxModules)
	}
	return nil
}

// allowedTypes builds the lesson type set for the outline. Set semantics
// keep flag additions idempotent.
func allowedTypes(req GenerateCourseRequest) map[string]bool {
	allowed := map[string]bool{
		types.LessonTypeReading:  true,
		types.LessonTypeUnitTest: true,
		types.LessonTypeTest:     true,
	}
	if req.Types.Tests {
		allowed[types.LessonTypeTest] = true
	}
	if req.Types.Videos {
		allowed[types.LessonTypeVideo] = true
	}
	if req.Types.Assignments {
		allowed[types.LessonTypeAssignment] = true
	}
	return allowed
}

func sortedTypes(allowed map[string]bool) []string {
	out := make([]string, 0, len(allowed))
	for t := range allowed {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (s *courseGenService) generateOutline(ctx context.Context, req GenerateCourseRequest, allowed map[string]bool) (types.CourseOutline, error) {
	gen := s.cfg.Generation
	typeList := sortedTypes(allowed)

	system := "You are an expert curriculum designer. You produce complete, well-sequenced course outlines."
	user := fmt.Sprintf(`Design a course outline about %q.

Requirements:
- Exactly %d modules.
- Each module has between %d and %d lessons.
- Every lesson type must be one of: %s.
- The last lesson of every module is a "unit test" covering that module.
- Each lesson needs a short description of what it covers.`,
		req.Topic, req.Modules, gen.MinLessons, gen.MaxLessons, strings.Join(typeList, ", "))

	obj, err := s.ai.GenerateJSON(ctx, s.cfg.OpenAI.OutlineModel, system, user, "course_outline", outlineSchema(req.Modules, gen, typeList))
	if err != nil {
		return types.CourseOutline{}, apperr.Generationf("outline generation failed: %v", err)
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return types.CourseOutline{}, err
	}
	var outline types.CourseOutline
	if err := json.Unmarshal(raw, &outline); err != nil {
		return types.CourseOutline{}, apperr.Generationf("malformed outline output: %v", err)
	}
	if len(outline.Modules) == 0 {
		return types.CourseOutline{}, apperr.Generationf("outline has no modules")
	}
	return outline, nil
}

func outlineSchema(modules int, gen config.GenerationConfig, typeList []string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"modules": map[string]any{
				"type":     "array",
				"minItems": modules,
				"maxItems": modules,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title": map[string]any{"type": "string"},
						"lessons": map[string]any{
							"type":     "array",
							"minItems": gen.MinLessons,
							"maxItems": gen.MaxLessons,
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"title":       map[string]any{"type": "string"},
									"type":        map[string]any{"type": "string", "enum": typeList},
									"description": map[string]any{"type": "string"},
								},
								"required":             []string{"title", "type", "description"},
								"additionalProperties": false,
							},
						},
					},
					"required":             []string{"title", "lessons"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"modules"},
		"additionalProperties": false,
	}
}

func filterOutline(outline types.CourseOutline, allowed map[string]bool) types.CourseOutline {
	filtered := types.CourseOutline{Modules: make([]types.ModuleOutline, 0, len(outline.Modules))}
	for _, mod := range outline.Modules {
		kept := types.ModuleOutline{Title: mod.Title}
		for _, lesson := range mod.Lessons {
			if allowed[lesson.Type] {
				kept.Lessons = append(kept.Lessons, lesson)
			}
		}
		filtered.Modules = append(filtered.Modules, kept)
	}
	return filtered
}

func (s *courseGenService) dispatchLesson(ctx context.Context, uid, courseID, moduleID, lessonID, topic string, mod types.ModuleOutline, lesson types.LessonOutline) error {
	jobType, err := lessongen.JobTypeFor(lesson.Type)
	if err != nil {
		return err
	}

	p := lessongen.Payload{
		UID:         uid,
		CourseID:    courseID,
		ModuleID:    moduleID,
		LessonID:    lessonID,
		Topic:       topic,
		ModuleTitle: mod.Title,
		LessonTitle: lesson.Title,
		Description: lesson.Description,
	}
	// Only unit tests see the module's full lesson list; plain tests cover
	// just their own lesson.
	if lesson.Type == types.LessonTypeUnitTest {
		for _, sibling := range mod.Lessons {
			p.SiblingTitles = append(p.SiblingTitles, sibling.Title)
		}
	}

	raw, err := p.Encode()
	if err != nil {
		return err
	}
	if err := s.dispatcher.Submit(ctx, jobType, raw); err != nil {
		return fmt.Errorf("dispatch %s for lesson %s/%s: %w", jobType, moduleID, lessonID, err)
	}
	return nil
}

func toInt64(v any) int64 {
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
