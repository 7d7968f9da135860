package lessongen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/courseforge/courseforge-backend/internal/types"
)

// Job type names routed through the registry. Plain tests and unit tests
// share one handler; the payload's sibling titles distinguish them.
const (
	TypeReading    = "lesson.reading"
	TypeQuiz       = "lesson.quiz"
	TypeVideo      = "lesson.video"
	TypeAssignment = "lesson.assignment"
)

// Payload carries everything a lesson job needs; jobs never read the course
// outline back from the store.
type Payload struct {
	UID         string `json:"uid"`
	CourseID    string `json:"course_id"`
	ModuleID    string `json:"module_id"`
	LessonID    string `json:"lesson_id"`
	Topic       string `json:"topic"`
	ModuleTitle string `json:"module_title"`
	LessonTitle string `json:"lesson_title"`
	Description string `json:"description"`

	// The module's full lesson-title list, own title included. Set only for
	// unit tests, which must cover the whole module; empty for plain tests.
	SiblingTitles []string `json:"sibling_titles,omitempty"`
}

func (p Payload) Validate() error {
	switch {
	case strings.TrimSpace(p.UID) == "":
		return fmt.Errorf("payload missing uid")
	case strings.TrimSpace(p.CourseID) == "":
		return fmt.Errorf("payload missing course_id")
	case strings.TrimSpace(p.ModuleID) == "":
		return fmt.Errorf("payload missing module_id")
	case strings.TrimSpace(p.LessonID) == "":
		return fmt.Errorf("payload missing lesson_id")
	}
	return nil
}

func (p Payload) Encode() (json.RawMessage, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode lesson payload: %w", err)
	}
	return b, nil
}

func decodePayload(raw json.RawMessage) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("decode lesson payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// JobTypeFor maps a persisted lesson type to its job type.
func JobTypeFor(lessonType string) (string, error) {
	switch lessonType {
	case types.LessonTypeReading:
		return TypeReading, nil
	case types.LessonTypeTest, types.LessonTypeUnitTest:
		return TypeQuiz, nil
	case types.LessonTypeVideo:
		return TypeVideo, nil
	case types.LessonTypeAssignment:
		return TypeAssignment, nil
	}
	return "", fmt.Errorf("no job type for lesson type %q", lessonType)
}
