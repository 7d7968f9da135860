package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/courseforge/courseforge-backend/internal/config"
	"github.com/courseforge/courseforge-backend/internal/pkg/httpx"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
)

// Message is one role-tagged turn sent to the Responses API.
type Message struct {
	Role    string
	Content string
}

// Tool is a function tool the model may call zero or more times during a
// single generation. Execute runs locally and its result is fed back to
// the model.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Execute     func(ctx context.Context, args map[string]any) (string, error)
}

// Client is the generation capability used by the orchestrator, the lesson
// strategies and the chat assembler. The model is chosen per call so one
// client serves every model role.
type Client interface {
	// Structured output (json_schema); the response must conform or the
	// call fails.
	GenerateJSON(ctx context.Context, model, system, user, schemaName string, schema map[string]any) (map[string]any, error)

	// Plain text, no tools.
	GenerateText(ctx context.Context, model, system, user string) (string, error)

	// Plain text with a bounded function-tool budget.
	GenerateWithTools(ctx context.Context, model, system, user string, tools []Tool, maxToolCalls int) (string, error)

	// Stream output_text deltas for a multi-turn conversation. Returns the
	// full text. The context is honored: cancelling it aborts the stream
	// and the underlying request.
	StreamChat(ctx context.Context, model string, messages []Message, onDelta func(delta string)) (string, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
}

func NewClient(cfg *config.Config, log *logger.Logger) (Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	apiKey := strings.TrimSpace(cfg.OpenAI.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.OpenAI.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	timeout := cfg.OpenAI.TimeoutSeconds
	if timeout <= 0 {
		timeout = 180
	}
	return &client{
		log:        log.With("client", "OpenAI"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: time.Duration(timeout) * time.Second},
		maxRetries: 4,
	}, nil
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *httpError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// IsRateLimited reports whether err is a provider rate-limit or transient
// provider failure worth a strategy-level retry.
func IsRateLimited(err error) bool {
	var he *httpError
	if errors.As(err, &he) {
		return he.StatusCode == 429 || he.StatusCode >= 500
	}
	return false
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) {
			return err
		}
		if attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		time.Sleep(sleepFor)
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

// -------------------- Responses API --------------------

type responsesRequest struct {
	Model string `json:"model"`
	Input []any  `json:"input"`
	Text  *struct {
		Format map[string]any `json:"format,omitempty"`
	} `json:"text,omitempty"`
	Tools       []map[string]any `json:"tools,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
	Stream      bool             `json:"stream,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type      string `json:"type"`
		Role      string `json:"role,omitempty"`
		Name      string `json:"name,omitempty"`
		CallID    string `json:"call_id,omitempty"`
		Arguments string `json:"arguments,omitempty"`
		Content   []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
}

func inputMessage(role, content string) map[string]any {
	return map[string]any{"role": role, "content": content}
}

func extractOutputText(resp responsesResponse) string {
	var out strings.Builder
	for _, item := range resp.Output {
		if item.Type == "message" && item.Role == "assistant" {
			for _, c := range item.Content {
				if c.Type == "output_text" && c.Text != "" {
					out.WriteString(c.Text)
				}
			}
		}
	}
	return out.String()
}

func (c *client) GenerateJSON(ctx context.Context, model, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	if schemaName == "" {
		return nil, errors.New("schemaName required")
	}
	if schema == nil {
		return nil, errors.New("schema required")
	}

	req := responsesRequest{
		Model:       model,
		Input:       []any{inputMessage("system", system), inputMessage("user", user)},
		Temperature: 0.2,
	}
	req.Text = &struct {
		Format map[string]any `json:"format,omitempty"`
	}{Format: map[string]any{
		"type":   "json_schema",
		"name":   schemaName,
		"schema": schema,
		"strict": true,
	}}

	var resp responsesResponse
	if err := c.do(ctx, "POST", "/v1/responses", req, &resp); err != nil {
		return nil, err
	}
	if resp.Refusal != "" {
		return nil, fmt.Errorf("model refused: %s", resp.Refusal)
	}

	jsonText := extractOutputText(resp)
	if strings.TrimSpace(jsonText) == "" {
		return nil, fmt.Errorf("no output_text found in response")
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(jsonText), &obj); err != nil {
		return nil, fmt.Errorf("failed to parse model JSON: %w; text=%s", err, jsonText)
	}
	return obj, nil
}

func (c *client) GenerateText(ctx context.Context, model, system, user string) (string, error) {
	req := responsesRequest{
		Model:       model,
		Input:       []any{inputMessage("system", system), inputMessage("user", user)},
		Temperature: 0.2,
	}

	var resp responsesResponse
	if err := c.do(ctx, "POST", "/v1/responses", req, &resp); err != nil {
		return "", err
	}
	if resp.Refusal != "" {
		return "", fmt.Errorf("model refused: %s", resp.Refusal)
	}
	text := extractOutputText(resp)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no output_text found in response")
	}
	return text, nil
}

// GenerateWithTools loops the Responses API until the model produces a
// final message or the tool budget is exhausted. Each function_call item is
// executed locally and its output appended to the running input.
func (c *client) GenerateWithTools(ctx context.Context, model, system, user string, tools []Tool, maxToolCalls int) (string, error) {
	if maxToolCalls <= 0 {
		maxToolCalls = 10
	}

	byName := make(map[string]Tool, len(tools))
	toolSpecs := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
		toolSpecs = append(toolSpecs, map[string]any{
			"type":        "function",
			"name":        t.Name,
			"description": t.Description,
			"parameters":  t.Parameters,
		})
	}

	input := []any{inputMessage("system", system), inputMessage("user", user)}
	callsMade := 0

	for {
		req := responsesRequest{
			Model:       model,
			Input:       input,
			Tools:       toolSpecs,
			Temperature: 0.2,
		}

		var resp responsesResponse
		if err := c.do(ctx, "POST", "/v1/responses", req, &resp); err != nil {
			return "", err
		}
		if resp.Refusal != "" {
			return "", fmt.Errorf("model refused: %s", resp.Refusal)
		}

		pendingCalls := 0
		for _, item := range resp.Output {
			if item.Type != "function_call" {
				continue
			}
			pendingCalls++
			callsMade++
			if callsMade > maxToolCalls {
				return "", fmt.Errorf("tool call budget exhausted (%d)", maxToolCalls)
			}

			tool, ok := byName[item.Name]
			if !ok {
				return "", fmt.Errorf("model called unknown tool %q", item.Name)
			}
			var args map[string]any
			if err := json.Unmarshal([]byte(item.Arguments), &args); err != nil {
				return "", fmt.Errorf("parse tool arguments for %s: %w", item.Name, err)
			}

			result, err := tool.Execute(ctx, args)
			if err != nil {
				// Surface the tool error to the model rather than aborting;
				// it may recover or answer without the tool.
				result = fmt.Sprintf("tool error: %v", err)
				c.log.Warn("Tool execution failed", "tool", item.Name, "error", err)
			}

			input = append(input, map[string]any{
				"type":      "function_call",
				"call_id":   item.CallID,
				"name":      item.Name,
				"arguments": item.Arguments,
			})
			input = append(input, map[string]any{
				"type":    "function_call_output",
				"call_id": item.CallID,
				"output":  result,
			})
		}

		if pendingCalls > 0 {
			continue
		}

		text := extractOutputText(resp)
		if strings.TrimSpace(text) == "" {
			return "", fmt.Errorf("no output_text found in response")
		}
		return text, nil
	}
}

// StreamChat streams output_text deltas for a conversation. Any non-empty
// delta is forwarded to onDelta and accumulated into the returned text.
func (c *client) StreamChat(ctx context.Context, model string, messages []Message, onDelta func(delta string)) (string, error) {
	input := make([]any, 0, len(messages))
	for _, m := range messages {
		input = append(input, inputMessage(m.Role, m.Content))
	}

	reqBody := responsesRequest{
		Model:       model,
		Input:       input,
		Temperature: 0.2,
		Stream:      true,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/responses", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return "", &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var full strings.Builder
	err = streamSSE(resp.Body, func(event string, data string) error {
		if strings.TrimSpace(data) == "" || strings.TrimSpace(data) == "[DONE]" {
			return nil
		}

		var obj map[string]any
		if err := json.Unmarshal([]byte(data), &obj); err != nil {
			return nil
		}

		evt := strings.TrimSpace(event)
		if t, ok := obj["type"].(string); ok && strings.TrimSpace(t) != "" {
			evt = strings.TrimSpace(t)
		}

		if r, ok := obj["refusal"].(string); ok && strings.TrimSpace(r) != "" {
			return fmt.Errorf("model refused: %s", r)
		}
		if eAny, ok := obj["error"]; ok && eAny != nil {
			b, _ := json.Marshal(eAny)
			return fmt.Errorf("openai stream error: %s", string(b))
		}

		if d, ok := obj["delta"].(string); ok && d != "" {
			if strings.Contains(evt, "output_text.delta") {
				full.WriteString(d)
				if onDelta != nil {
					onDelta(d)
				}
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return full.String(), nil
}

func streamSSE(r io.Reader, onEvent func(event string, data string) error) error {
	br := bufio.NewReader(r)
	var (
		eventName string
		dataLines []string
	)

	flush := func() error {
		if len(dataLines) == 0 {
			eventName = ""
			return nil
		}
		data := strings.Join(dataLines, "\n")
		dataLines = nil
		ev := eventName
		eventName = ""
		if onEvent == nil {
			return nil
		}
		return onEvent(ev, data)
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				_ = flush()
				break
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if err := flush(); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "event:") {
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			continue
		}
	}
	return nil
}
