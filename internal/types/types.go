package types

import "time"

// Lesson types the outline generator may emit. "unit test" is always
// allowed and is requested for the end of every module at the prompt level.
const (
	LessonTypeReading    = "reading"
	LessonTypeTest       = "test"
	LessonTypeUnitTest   = "unit test"
	LessonTypeVideo      = "video"
	LessonTypeAssignment = "assignment"
)

// Course is the root document of a generated course tree.
// Stored at users/{uid}/courses/{courseID}.
type Course struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Topic            string    `json:"topic"`
	CreatedAt        time.Time `json:"createdAt"`
	UID              string    `json:"uid"`
	TotalLessons     int       `json:"totalLessons"`
	GeneratedLessons int       `json:"generatedLessons"`
	CompletedLessons int       `json:"completedLessons"`
	Deleted          bool      `json:"deleted"`
	Error            *string   `json:"error"`
}

func (c *Course) Fields() map[string]any {
	return map[string]any{
		"id":               c.ID,
		"title":            c.Title,
		"topic":            c.Topic,
		"createdAt":        c.CreatedAt.UTC().Format(time.RFC3339),
		"uid":              c.UID,
		"totalLessons":     c.TotalLessons,
		"generatedLessons": c.GeneratedLessons,
		"completedLessons": c.CompletedLessons,
		"deleted":          c.Deleted,
		"error":            nil,
	}
}

// Module is keyed by its 1-based sequence index rendered as a string.
type Module struct {
	Title string `json:"title"`
}

func (m *Module) Fields() map[string]any {
	return map[string]any{"title": m.Title}
}

// Lesson is keyed by its 1-based sequence index rendered as a string.
// completed is flipped by the user-facing completion action, never by
// generation, and works even before content exists.
type Lesson struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	Completed   bool   `json:"completed"`
	Description string `json:"description"`
}

func (l *Lesson) Fields() map[string]any {
	return map[string]any{
		"title":       l.Title,
		"type":        l.Type,
		"completed":   l.Completed,
		"description": l.Description,
	}
}

// QuizQuestion is one multiple-choice item of a test lesson's content.
type QuizQuestion struct {
	Question    string   `json:"question"`
	Choices     []string `json:"choices"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
}

// Citation is one search-tool hit recorded by the reading strategy,
// in invocation order. Duplicates are permitted.
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// VideoContent is the content payload of a video lesson.
type VideoContent struct {
	VideoID     string `json:"videoId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Thumbnail   string `json:"thumbnail"`
	URL         string `json:"url"`
}

func (v *VideoContent) Fields() map[string]any {
	return map[string]any{
		"videoId":     v.VideoID,
		"title":       v.Title,
		"description": v.Description,
		"thumbnail":   v.Thumbnail,
		"url":         v.URL,
	}
}

// Outline types mirror the structured output schema the outline
// capability must satisfy.
type LessonOutline struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type ModuleOutline struct {
	Title   string          `json:"title"`
	Lessons []LessonOutline `json:"lessons"`
}

type CourseOutline struct {
	Modules []ModuleOutline `json:"modules"`
}

// TotalLessons counts lessons across all modules. Call after filtering.
func (o *CourseOutline) TotalLessons() int {
	n := 0
	for _, m := range o.Modules {
		n += len(m.Lessons)
	}
	return n
}

// LessonRef addresses one lesson inside a user's course tree.
type LessonRef struct {
	CourseID string `json:"courseId"`
	ModuleID string `json:"moduleId"`
	LessonID string `json:"lessonId"`
}

// ChatMessage is one turn of client-supplied history.
type ChatMessage struct {
	From string `json:"from"` // "user" | "assistant"
	Text string `json:"text"`
}
