// Package gen turns extracted document content into new bank questions
// through an OpenAI-compatible chat API.
package gen

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ktanaka/fireprep/internal/extract"
	"github.com/ktanaka/fireprep/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// MaxQuestions bounds a single generation request.
const MaxQuestions = 5

// ParseError means the model's response was not a JSON array after fence
// stripping. The whole batch is discarded; Raw is kept for diagnosis.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse generation response: %v (raw: %s)", e.Err, e.Raw)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new generation client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Ping verifies the API endpoint is reachable and configured.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM endpoint unreachable: %w", err)
	}
	return nil
}

// Generate asks for exactly n questions built from the given content.
// The model may return fewer or more items; whatever parses is returned
// verbatim. A response that is not valid JSON fails the whole batch.
func (c *Client) Generate(ctx context.Context, content extract.Content, n int) ([]model.Question, error) {
	if n < 1 || n > MaxQuestions {
		return nil, fmt.Errorf("question count must be between 1 and %d, got %d", MaxQuestions, n)
	}

	userMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if content.IsImage() {
		userMsg.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: buildPrompt(n)},
			{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: content.DataURL()},
			},
		}
	} else {
		userMsg.Content = buildPrompt(n) + "\n\nSOURCE MATERIAL:\n" + content.Text
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You write multiple-choice exam questions from study material. Respond only with the requested JSON.",
			},
			userMsg,
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("generation response", "raw", raw)

	return parseQuestions(raw)
}

// parseQuestions strips any markdown code fence and decodes the response
// as a JSON array of questions. No item-level recovery: either the array
// parses or the batch is rejected.
func parseQuestions(raw string) ([]model.Question, error) {
	cleaned := stripFences(raw)

	var questions []model.Question
	if err := json.Unmarshal([]byte(cleaned), &questions); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	return questions, nil
}

// stripFences removes a surrounding markdown code fence (``` or ```json)
// if present. Content without a fence passes through trimmed.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func buildPrompt(n int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Create exactly %d five-choice exam questions from the source material.\n\n", n))
	sb.WriteString("Respond ONLY with a JSON array of objects, each with these fields:\n")
	sb.WriteString(`- "prompt": the question text` + "\n")
	sb.WriteString(`- "choices": one string of five labeled choices separated by commas, e.g. "A:...,B:...,C:...,D:...,E:..."` + "\n")
	sb.WriteString(`- "correct": the single letter of the correct choice` + "\n")
	sb.WriteString(`- "explanation": a short explanation of the answer` + "\n")
	sb.WriteString(`- "genre": a short category tag for the question` + "\n")
	sb.WriteString("\nNo markdown, no commentary, just the JSON array.\n")
	return sb.String()
}
