package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/courseforge/courseforge-backend/internal/clients/openai"
	"github.com/courseforge/courseforge-backend/internal/config"
	"github.com/courseforge/courseforge-backend/internal/docstore"
	"github.com/courseforge/courseforge-backend/internal/platform/apperr"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
	"github.com/courseforge/courseforge-backend/internal/types"
)

// Cap on how much stored lesson content is inlined into the chat context.
const maxContextContentRunes = 12000

type ChatRequest struct {
	Ref      types.LessonRef     `json:"ref"`
	Messages []types.ChatMessage `json:"messages"`
}

type ChatService interface {
	// Stream grounds the conversation in the referenced lesson and streams
	// response deltas to onDelta. The caller's ctx cancels generation.
	Stream(ctx context.Context, uid string, req ChatRequest, onDelta func(delta string)) error
}

type chatService struct {
	log   *logger.Logger
	store docstore.Store
	ai    openai.Client
	cfg   *config.Config
}

func NewChatService(log *logger.Logger, store docstore.Store, ai openai.Client, cfg *config.Config) ChatService {
	return &chatService{
		log:   log.With("service", "ChatService"),
		store: store,
		ai:    ai,
		cfg:   cfg,
	}
}

const chatPersona = `You are an expert instructor helping a student with a lesson. ` +
	`Answer using the lesson context provided. Be clear and direct. ` +
	`Format prose as markdown and mathematics with $$ ... $$ for display math and $ ... $ for inline math.`

func (s *chatService) Stream(ctx context.Context, uid string, req ChatRequest, onDelta func(delta string)) error {
	if len(req.Messages) == 0 {
		return apperr.Validationf("messages are required")
	}
	last := req.Messages[len(req.Messages)-1]
	if last.From != "user" || strings.TrimSpace(last.Text) == "" {
		return apperr.Validationf("last message must be a non-empty user message")
	}

	grounding := s.buildContext(ctx, uid, req.Ref)

	messages := make([]openai.Message, 0, len(req.Messages)+2)
	messages = append(messages, openai.Message{Role: "system", Content: chatPersona})
	if grounding != "" {
		messages = append(messages, openai.Message{Role: "system", Content: "Lesson context:\n" + grounding})
	}
	for _, m := range req.Messages {
		role := "user"
		if m.From == "assistant" {
			role = "assistant"
		}
		messages = append(messages, openai.Message{Role: role, Content: m.Text})
	}

	pacing := time.Duration(s.cfg.ChatPacingMillis) * time.Millisecond
	paced := func(delta string) {
		onDelta(delta)
		if pacing > 0 {
			time.Sleep(pacing)
		}
	}

	_, err := s.ai.StreamChat(ctx, s.cfg.OpenAI.ChatModel, messages, paced)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperr.Generationf("chat stream failed: %v", err)
	}
	return nil
}

// buildContext assembles the grounding block from the referenced lesson's
// documents. Any read failure is logged and skipped; the chat proceeds on
// partial or empty context rather than failing the request.
func (s *chatService) buildContext(ctx context.Context, uid string, ref types.LessonRef) string {
	var b strings.Builder

	if course, err := s.store.Get(ctx, docstore.CoursePath(uid, ref.CourseID)); err == nil {
		if topic, _ := course["topic"].(string); topic != "" {
			fmt.Fprintf(&b, "Course topic: %s\n", topic)
		}
	} else {
		s.log.Warn("Chat context: course read failed", "course_id", ref.CourseID, "error", err.Error())
	}

	if mod, err := s.store.Get(ctx, docstore.ModulePath(uid, ref.CourseID, ref.ModuleID)); err == nil {
		if title, _ := mod["title"].(string); title != "" {
			fmt.Fprintf(&b, "Module: %s\n", title)
		}
	} else {
		s.log.Warn("Chat context: module read failed", "module_id", ref.ModuleID, "error", err.Error())
	}

	lessonType := ""
	if lesson, err := s.store.Get(ctx, docstore.LessonPath(uid, ref.CourseID, ref.ModuleID, ref.LessonID)); err == nil {
		title, _ := lesson["title"].(string)
		lessonType, _ = lesson["type"].(string)
		if title != "" {
			fmt.Fprintf(&b, "Lesson: %s (%s)\n", title, lessonType)
		}
	} else {
		s.log.Warn("Chat context: lesson read failed", "lesson_id", ref.LessonID, "error", err.Error())
	}

	if lessonType == types.LessonTypeVideo {
		b.WriteString("Lesson content: video content\n")
		return b.String()
	}

	if content, err := s.store.Get(ctx, docstore.LessonContentPath(uid, ref.CourseID, ref.ModuleID, ref.LessonID)); err == nil {
		if text := contentText(content["content"]); text != "" {
			fmt.Fprintf(&b, "Lesson content:\n%s\n", truncateRunes(text, maxContextContentRunes))
		}
	} else {
		s.log.Warn("Chat context: content read failed", "lesson_id", ref.LessonID, "error", err.Error())
	}
	return b.String()
}

// contentText renders stored lesson content for the prompt. Reading and
// assignment content is a string; quiz content is a question list.
func contentText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
