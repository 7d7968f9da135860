package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/courseforge/courseforge-backend/internal/auth"
	httpH "github.com/courseforge/courseforge-backend/internal/http/handlers"
	httpMW "github.com/courseforge/courseforge-backend/internal/http/middleware"
	"github.com/courseforge/courseforge-backend/internal/platform/apperr"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
	"github.com/courseforge/courseforge-backend/internal/services"
)

const testSecret = "router-test-secret"

type stubCourseGen struct {
	lastUID string
	id      string
	err     error
	status  services.CourseStatus
}

func (s *stubCourseGen) GenerateCourse(ctx context.Context, uid string, req services.GenerateCourseRequest) (string, error) {
	s.lastUID = uid
	if s.err != nil {
		return "", s.err
	}
	return s.id, nil
}

func (s *stubCourseGen) Status(ctx context.Context, uid, courseID string) (services.CourseStatus, error) {
	if s.err != nil {
		return services.CourseStatus{}, s.err
	}
	return s.status, nil
}

type stubChat struct {
	deltas []string
	err    error
}

func (s *stubChat) Stream(ctx context.Context, uid string, req services.ChatRequest, onDelta func(string)) error {
	if s.err != nil {
		return s.err
	}
	for _, d := range s.deltas {
		onDelta(d)
	}
	return nil
}

func testRouter(t *testing.T, gen services.CourseGenService, chat services.ChatService) *httptest.Server {
	t.Helper()
	log := logger.NewNop()
	verifier, err := auth.NewHMACVerifier(testSecret)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	cfg := RouterConfig{
		Log:            log,
		Mode:           "production",
		AuthMiddleware: httpMW.NewAuthMiddleware(log, verifier),
		HealthHandler:  httpH.NewHealthHandler(),
	}
	if gen != nil {
		cfg.CourseGenHandler = httpH.NewCourseGenHandler(log, gen)
	}
	if chat != nil {
		cfg.ChatHandler = httpH.NewChatHandler(log, chat)
	}

	srv := httptest.NewServer(NewRouter(cfg))
	t.Cleanup(srv.Close)
	return srv
}

func bearerToken(t *testing.T, uid string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uid,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestHealthcheckIsPublic(t *testing.T) {
	srv := testRouter(t, &stubCourseGen{}, nil)
	resp, err := http.Get(srv.URL + "/healthcheck")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRequestsProduceServerSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	srv := testRouter(t, &stubCourseGen{}, nil)
	resp, err := http.Get(srv.URL + "/healthcheck")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	var found bool
	for _, span := range recorder.Ended() {
		if strings.Contains(span.Name(), "/healthcheck") {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("no server span recorded for /healthcheck; got %d spans", len(recorder.Ended()))
	}
}

func TestGenerateRequiresAuth(t *testing.T) {
	srv := testRouter(t, &stubCourseGen{id: "c1"}, nil)

	resp, err := http.Post(srv.URL+"/api/generate/course", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestGenerateReturnsAcceptedWithID(t *testing.T) {
	gen := &stubCourseGen{id: "course-123"}
	srv := testRouter(t, gen, nil)

	req, _ := http.NewRequest("POST", srv.URL+"/api/generate/course",
		strings.NewReader(`{"title":"T","topic":"X","modules":2}`))
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, "user-1"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["id"] != "course-123" {
		t.Errorf("id = %v", body["id"])
	}
	if gen.lastUID != "user-1" {
		t.Errorf("uid = %q, want user-1 from token subject", gen.lastUID)
	}
}

func TestGenerateMapsValidationErrorsTo400(t *testing.T) {
	gen := &stubCourseGen{err: apperr.Validationf("modules must not exceed 8")}
	srv := testRouter(t, gen, nil)

	req, _ := http.NewRequest("POST", srv.URL+"/api/generate/course",
		strings.NewReader(`{"title":"T","topic":"X","modules":9}`))
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, "user-1"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStatusMapsNoResultsTo404(t *testing.T) {
	gen := &stubCourseGen{err: apperr.NoResultsf("course nope not found")}
	srv := testRouter(t, gen, nil)

	req, _ := http.NewRequest("GET", srv.URL+"/api/generate/course/nope/status", nil)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, "user-1"))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestChatStreamsPlainText(t *testing.T) {
	chat := &stubChat{deltas: []string{"hel", "lo"}}
	srv := testRouter(t, nil, chat)

	body := `{"ref":{"courseId":"c1","moduleId":"1","lessonId":"1"},"messages":[{"from":"user","text":"hi"}]}`
	req, _ := http.NewRequest("POST", srv.URL+"/api/chat", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, "user-1"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content-type = %q", ct)
	}
	buf := make([]byte, 64)
	n, _ := resp.Body.Read(buf)
	if got := string(buf[:n]); got != "hello" {
		t.Errorf("body = %q, want hello", got)
	}
}

func TestChatValidationFailsCleanly(t *testing.T) {
	chat := &stubChat{err: apperr.Validationf("messages are required")}
	srv := testRouter(t, nil, chat)

	req, _ := http.NewRequest("POST", srv.URL+"/api/chat", strings.NewReader(`{"ref":{},"messages":[]}`))
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, "user-1"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
