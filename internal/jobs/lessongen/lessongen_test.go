package lessongen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/courseforge/courseforge-backend/internal/clients/openai"
	"github.com/courseforge/courseforge-backend/internal/clients/tavily"
	"github.com/courseforge/courseforge-backend/internal/clients/youtube"
	"github.com/courseforge/courseforge-backend/internal/config"
	"github.com/courseforge/courseforge-backend/internal/docstore"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
)

// -------------------- fakes --------------------

type fakeOpenAI struct {
	generateJSON      func(ctx context.Context, model, system, user, schemaName string, schema map[string]any) (map[string]any, error)
	generateText      func(ctx context.Context, model, system, user string) (string, error)
	generateWithTools func(ctx context.Context, model, system, user string, tools []openai.Tool, maxToolCalls int) (string, error)
}

func (f *fakeOpenAI) GenerateJSON(ctx context.Context, model, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	return f.generateJSON(ctx, model, system, user, schemaName, schema)
}

func (f *fakeOpenAI) GenerateText(ctx context.Context, model, system, user string) (string, error) {
	return f.generateText(ctx, model, system, user)
}

func (f *fakeOpenAI) GenerateWithTools(ctx context.Context, model, system, user string, tools []openai.Tool, maxToolCalls int) (string, error) {
	return f.generateWithTools(ctx, model, system, user, tools, maxToolCalls)
}

func (f *fakeOpenAI) StreamChat(ctx context.Context, model string, messages []openai.Message, onDelta func(string)) (string, error) {
	return "", errors.New("not implemented")
}

type fakeTavily struct {
	results []tavily.Result
	err     error
}

func (f *fakeTavily) Search(ctx context.Context, query string, maxResults int) ([]tavily.Result, error) {
	return f.results, f.err
}

type fakeYouTube struct {
	videos []youtube.Video
	err    error
}

func (f *fakeYouTube) Search(ctx context.Context, query string) ([]youtube.Video, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.videos, nil
}

type progressRecorder struct {
	calls []string
}

func (p *progressRecorder) CourseProgress(uid, courseID string, generated, total int64) {
	p.calls = append(p.calls, fmt.Sprintf("%s/%s %d/%d", uid, courseID, generated, total))
}

// -------------------- helpers --------------------

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.OpenAI.LessonModel = "test-model"
	cfg.Generation = config.GenerationConfig{
		MaxModules:   8,
		MinLessons:   3,
		MaxLessons:   8,
		NumQuestions: 5,
		MinWords:     600,
	}
	return cfg
}

func seedCourse(t *testing.T, store docstore.Store, uid, courseID string, total int) {
	t.Helper()
	ctx := context.Background()
	err := store.Set(ctx, docstore.CoursePath(uid, courseID), map[string]any{
		"id":               courseID,
		"totalLessons":     total,
		"generatedLessons": int64(0),
	}, false)
	if err != nil {
		t.Fatalf("seed course: %v", err)
	}
	if err := store.Set(ctx, docstore.LessonPath(uid, courseID, "1", "1"), map[string]any{
		"title": "Lesson One", "type": "reading", "completed": false,
	}, false); err != nil {
		t.Fatalf("seed lesson: %v", err)
	}
}

func testPayload() Payload {
	return Payload{
		UID:         "u1",
		CourseID:    "c1",
		ModuleID:    "1",
		LessonID:    "1",
		Topic:       "Linear Algebra",
		ModuleTitle: "Vector Spaces",
		LessonTitle: "Basis and Dimension",
		Description: "Spanning sets, linear independence, basis.",
	}
}

func encode(t *testing.T, p Payload) json.RawMessage {
	t.Helper()
	raw, err := p.Encode()
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	return raw
}

// -------------------- video scoring --------------------

func TestScoreVideoPrefersRecency(t *testing.T) {
	now := time.Now()
	fresh := youtube.Video{PublishedAt: now.AddDate(0, 0, -10), ViewCount: 1000}
	stale := youtube.Video{PublishedAt: now.AddDate(-10, 0, 0), ViewCount: 1000}
	if scoreVideo(fresh, now) <= scoreVideo(stale, now) {
		t.Error("fresher video with equal views should score higher")
	}
}

func TestScoreVideoPrefersViews(t *testing.T) {
	now := time.Now()
	published := now.AddDate(0, 0, -30)
	popular := youtube.Video{PublishedAt: published, ViewCount: 5_000_000}
	obscure := youtube.Video{PublishedAt: published, ViewCount: 100}
	if scoreVideo(popular, now) <= scoreVideo(obscure, now) {
		t.Error("more-viewed video of equal age should score higher")
	}
}

func TestScoreVideoRecencyFloorsAtZero(t *testing.T) {
	now := time.Now()
	ancient := youtube.Video{PublishedAt: now.AddDate(-20, 0, 0), ViewCount: 0}
	if got := scoreVideo(ancient, now); got != 0 {
		t.Errorf("score = %v, want 0 for ancient zero-view video", got)
	}
}

func TestPickBestVideoTiesGoToFirst(t *testing.T) {
	now := time.Now()
	published := now.AddDate(0, 0, -1)
	a := youtube.Video{VideoID: "a", PublishedAt: published, ViewCount: 500}
	b := youtube.Video{VideoID: "b", PublishedAt: published, ViewCount: 500}
	if got := pickBestVideo([]youtube.Video{a, b}, now); got.VideoID != "a" {
		t.Errorf("picked %s, want the earlier candidate a", got.VideoID)
	}
}

// -------------------- video handler --------------------

func TestVideoHandlerPersistsBestCandidate(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	seedCourse(t, store, "u1", "c1", 4)

	now := time.Now()
	yt := &fakeYouTube{videos: []youtube.Video{
		{VideoID: "old", Title: "Old", PublishedAt: now.AddDate(-9, 0, 0), ViewCount: 100},
		{VideoID: "best", Title: "Best", Thumbnail: "https://img/best.jpg", PublishedAt: now.AddDate(0, 0, -30), ViewCount: 900_000},
	}}
	rec := &progressRecorder{}
	deps := Deps{Log: logger.NewNop(), Store: store, YouTube: yt, Cfg: testConfig(), Notify: rec}

	h := &videoHandler{deps: deps}
	if err := h.Run(ctx, encode(t, testPayload())); err != nil {
		t.Fatalf("run: %v", err)
	}

	doc, err := store.Get(ctx, docstore.LessonContentPath("u1", "c1", "1", "1"))
	if err != nil {
		t.Fatalf("get content: %v", err)
	}
	if doc["videoId"] != "best" {
		t.Errorf("videoId = %v, want best", doc["videoId"])
	}
	if doc["url"] != "https://www.youtube.com/watch?v=best" {
		t.Errorf("url = %v", doc["url"])
	}

	course, _ := store.Get(ctx, docstore.CoursePath("u1", "c1"))
	if course["generatedLessons"] != int64(1) {
		t.Errorf("generatedLessons = %v, want 1", course["generatedLessons"])
	}
	if len(rec.calls) != 1 {
		t.Errorf("progress notifications = %d, want 1", len(rec.calls))
	}
}

func TestVideoHandlerRollsBackOnSearchFailure(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	seedCourse(t, store, "u1", "c1", 4)

	yt := &fakeYouTube{err: errors.New("no videos found")}
	deps := Deps{Log: logger.NewNop(), Store: store, YouTube: yt, Cfg: testConfig()}

	h := &videoHandler{deps: deps}
	if err := h.Run(ctx, encode(t, testPayload())); err == nil {
		t.Fatal("expected error from failed search")
	}

	if _, err := store.Get(ctx, docstore.CoursePath("u1", "c1")); !errors.Is(err, docstore.ErrNotFound) {
		t.Error("course should be cascade deleted after a fatal job failure")
	}
	rec, err := store.Get(ctx, docstore.GenerationErrorPath("u1", "c1"))
	if err != nil {
		t.Fatalf("generation error record missing: %v", err)
	}
	if rec["error"] == "" || rec["error"] == nil {
		t.Error("generation error record has no error message")
	}
	if rec["failedAt"] == nil {
		t.Error("generation error record has no failedAt")
	}
}

// -------------------- quiz handler --------------------

func validQuizOutput(n int) map[string]any {
	questions := make([]any, 0, n)
	for i := 0; i < n; i++ {
		questions = append(questions, map[string]any{
			"question":    fmt.Sprintf("Question %d?", i+1),
			"choices":     []any{"a", "b", "c", "d", "e", "f"},
			"answer":      "c",
			"explanation": "Because c.",
		})
	}
	return map[string]any{"questions": questions}
}

func TestQuizHandlerPersistsQuestions(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	seedCourse(t, store, "u1", "c1", 4)

	ai := &fakeOpenAI{
		generateJSON: func(ctx context.Context, model, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
			return validQuizOutput(5), nil
		},
	}
	deps := Deps{Log: logger.NewNop(), Store: store, OpenAI: ai, Cfg: testConfig()}

	h := &quizHandler{deps: deps}
	if err := h.Run(ctx, encode(t, testPayload())); err != nil {
		t.Fatalf("run: %v", err)
	}

	doc, err := store.Get(ctx, docstore.LessonContentPath("u1", "c1", "1", "1"))
	if err != nil {
		t.Fatalf("get content: %v", err)
	}
	questions, ok := doc["content"].([]map[string]any)
	if !ok {
		t.Fatalf("content is %T, want question list", doc["content"])
	}
	if len(questions) != 5 {
		t.Errorf("questions = %d, want 5", len(questions))
	}
}

func TestQuizHandlerRejectsWrongQuestionCount(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	seedCourse(t, store, "u1", "c1", 4)

	ai := &fakeOpenAI{
		generateJSON: func(ctx context.Context, model, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
			return validQuizOutput(3), nil
		},
	}
	deps := Deps{Log: logger.NewNop(), Store: store, OpenAI: ai, Cfg: testConfig()}

	h := &quizHandler{deps: deps}
	if err := h.Run(ctx, encode(t, testPayload())); err == nil {
		t.Fatal("expected error for wrong question count")
	}
	if _, err := store.Get(ctx, docstore.CoursePath("u1", "c1")); !errors.Is(err, docstore.ErrNotFound) {
		t.Error("course should be cascade deleted after invalid quiz output")
	}
}

func TestQuizPromptCoversSiblingsForUnitTests(t *testing.T) {
	var captured string
	ai := &fakeOpenAI{
		generateJSON: func(ctx context.Context, model, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
			captured = user
			return validQuizOutput(5), nil
		},
	}
	store := docstore.NewMemoryStore()
	seedCourse(t, store, "u1", "c1", 4)
	deps := Deps{Log: logger.NewNop(), Store: store, OpenAI: ai, Cfg: testConfig()}

	p := testPayload()
	p.SiblingTitles = []string{"Basis and Dimension", "Linear Maps"}

	h := &quizHandler{deps: deps}
	if err := h.Run(context.Background(), encode(t, p)); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, title := range p.SiblingTitles {
		if !strings.Contains(captured, title) {
			t.Errorf("unit test prompt does not mention sibling lesson %q", title)
		}
	}
}

func TestParseQuestionsRejectsAnswerNotInChoices(t *testing.T) {
	out := validQuizOutput(5)
	questions := out["questions"].([]any)
	questions[2].(map[string]any)["answer"] = "not a choice"

	if _, err := parseQuestions(out, 5); err == nil {
		t.Error("accepted an answer that is not among the choices")
	}
}

// -------------------- reading handler --------------------

func TestReadingHandlerCollectsCitationsInOrder(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	seedCourse(t, store, "u1", "c1", 4)

	tv := &fakeTavily{results: []tavily.Result{
		{Title: "First Source", URL: "https://a.example", Content: "alpha"},
		{Title: "Second Source", URL: "https://b.example", Content: "beta"},
	}}
	ai := &fakeOpenAI{
		generateWithTools: func(ctx context.Context, model, system, user string, tools []openai.Tool, maxToolCalls int) (string, error) {
			// Drive the search tool the way the model would.
			if _, err := tools[0].Execute(ctx, map[string]any{"query": "basis and dimension"}); err != nil {
				return "", err
			}
			return "# Basis and Dimension\n\nLong explanatory prose...", nil
		},
	}
	deps := Deps{Log: logger.NewNop(), Store: store, OpenAI: ai, Tavily: tv, Cfg: testConfig()}

	h := &readingHandler{deps: deps}
	if err := h.Run(ctx, encode(t, testPayload())); err != nil {
		t.Fatalf("run: %v", err)
	}

	doc, err := store.Get(ctx, docstore.LessonContentPath("u1", "c1", "1", "1"))
	if err != nil {
		t.Fatalf("get content: %v", err)
	}
	if doc["content"] == "" || doc["content"] == nil {
		t.Error("reading content not persisted")
	}
	citations, ok := doc["citations"].([]map[string]any)
	if !ok {
		t.Fatalf("citations is %T, want list", doc["citations"])
	}
	if len(citations) != 2 {
		t.Fatalf("citations = %d, want 2", len(citations))
	}
	if citations[0]["title"] != "First Source" || citations[1]["title"] != "Second Source" {
		t.Errorf("citations out of order: %v", citations)
	}
}

// -------------------- assignment handler --------------------

func TestAssignmentHandlerPersistsContent(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	seedCourse(t, store, "u1", "c1", 4)

	ai := &fakeOpenAI{
		generateText: func(ctx context.Context, model, system, user string) (string, error) {
			return "## Assignment\nBuild a thing.", nil
		},
	}
	deps := Deps{Log: logger.NewNop(), Store: store, OpenAI: ai, Cfg: testConfig()}

	h := &assignmentHandler{deps: deps}
	if err := h.Run(ctx, encode(t, testPayload())); err != nil {
		t.Fatalf("run: %v", err)
	}
	doc, err := store.Get(ctx, docstore.LessonContentPath("u1", "c1", "1", "1"))
	if err != nil {
		t.Fatalf("get content: %v", err)
	}
	if doc["content"] != "## Assignment\nBuild a thing." {
		t.Errorf("content = %v", doc["content"])
	}
}

// -------------------- retry --------------------

func TestWithProviderRetryDoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	err := withProviderRetry(context.Background(), logger.NewNop(), func() error {
		calls++
		return errors.New("bad prompt")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (permanent errors must not retry)", calls)
	}
}

// -------------------- payload --------------------

func TestJobTypeForMapsTestVariants(t *testing.T) {
	for _, lessonType := range []string{"test", "unit test"} {
		jt, err := JobTypeFor(lessonType)
		if err != nil {
			t.Fatalf("JobTypeFor(%q): %v", lessonType, err)
		}
		if jt != TypeQuiz {
			t.Errorf("JobTypeFor(%q) = %s, want %s", lessonType, jt, TypeQuiz)
		}
	}
	if _, err := JobTypeFor("podcast"); err == nil {
		t.Error("unknown lesson type accepted")
	}
}

func TestPayloadValidateRequiresIdentity(t *testing.T) {
	p := testPayload()
	p.CourseID = ""
	if err := p.Validate(); err == nil {
		t.Error("payload without course_id accepted")
	}
}
