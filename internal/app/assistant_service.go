package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Yerassyl-hub/backofadilai/internal/ai"
	"github.com/Yerassyl-hub/backofadilai/internal/model"
	"github.com/Yerassyl-hub/backofadilai/internal/pkg/citations"
)

const assistantSystemPrompt = "Ты юридический ассистент в Казахстане. " +
	"Пиши кратко и структурно: нумерованный список рисков и короткие пояснения. " +
	"Упоминай точные названия актов и статьи (напр.: 'Гражданский кодекс РК, ст. 610'). " +
	"Никаких JSON, префиксов 'Assistant:', эмодзи и лишних маркеров. Только чистый текст."

const defaultTemperature = 0.2

// TextChatter is the slice of the LLM gateway the assistant flows need.
type TextChatter interface {
	ChatText(ctx context.Context, system, user string, temperature float64, opts ...ai.CallOption) (string, string, error)
	ChatMessages(ctx context.Context, messages []ai.ChatMessage, temperature float64, opts ...ai.CallOption) (string, string, error)
	Provider() string
}

// AssistantService answers free-form legal questions and annotates
// answers with citations of Kazakhstani legal codes.
type AssistantService struct {
	gateway   TextChatter
	annotator *citations.Engine
	audit     AuditPublisher
}

func NewAssistantService(gateway TextChatter, annotator *citations.Engine, audit AuditPublisher) *AssistantService {
	if annotator == nil {
		annotator = citations.NewEngine()
	}
	return &AssistantService{
		gateway:   gateway,
		annotator: annotator,
		audit:     audit,
	}
}

type AskInput struct {
	TenantID    string
	Query       string
	Model       string
	Temperature *float64
}

type AskResult struct {
	Answer  string             `json:"answer"`
	Model   string             `json:"model"`
	Sources []citations.Source `json:"sources"`
}

// Ask answers a single question, cheapest candidate model first.
func (s *AssistantService) Ask(ctx context.Context, in AskInput) (*AskResult, error) {
	if strings.TrimSpace(in.Query) == "" {
		return nil, fmt.Errorf("query is required: %w", ErrInvalidInput)
	}

	opts := []ai.CallOption{ai.WithCheapFirst(true)}
	if in.Model != "" {
		opts = append(opts, ai.WithModel(in.Model))
	}

	started := time.Now()
	text, modelUsed, err := s.gateway.ChatText(ctx, assistantSystemPrompt, in.Query, temperatureOrDefault(in.Temperature), opts...)
	if err != nil {
		return nil, err
	}
	s.publishAudit(in.TenantID, "ask", modelUsed, time.Since(started))

	answer, sources := s.annotator.Annotate(sanitizeAnswer(text))
	if modelUsed == "" {
		modelUsed = "unknown"
	}
	return &AskResult{Answer: answer, Model: modelUsed, Sources: sources}, nil
}

type ChatInput struct {
	TenantID    string
	Messages    []ai.ChatMessage
	Question    string
	RawText     string
	Model       string
	Temperature *float64
}

type ChatResult struct {
	Answer  string             `json:"answer"`
	Model   string             `json:"model"`
	Sources []citations.Source `json:"sources"`
}

// Chat runs a multi-turn conversation. The system prompt is prepended;
// an explicit question not already asked is appended as a user turn, and
// raw document text rides along as context on the last user turn.
func (s *AssistantService) Chat(ctx context.Context, in ChatInput) (*ChatResult, error) {
	if len(in.Messages) == 0 {
		return nil, fmt.Errorf("messages cannot be empty: %w", ErrInvalidInput)
	}

	conversation := make([]ai.ChatMessage, 0, len(in.Messages)+2)
	conversation = append(conversation, ai.ChatMessage{Role: "system", Content: assistantSystemPrompt})
	conversation = append(conversation, in.Messages...)

	if in.Question != "" {
		lastUser := ""
		for i := len(in.Messages) - 1; i >= 0; i-- {
			if in.Messages[i].Role == "user" {
				lastUser = in.Messages[i].Content
				break
			}
		}
		if strings.TrimSpace(lastUser) != strings.TrimSpace(in.Question) {
			conversation = append(conversation, ai.ChatMessage{Role: "user", Content: in.Question})
		}
	}

	if in.RawText != "" {
		contextSuffix := "\n\nКонтекст документа (используй при ответе):\n" + in.RawText
		if last := len(conversation) - 1; conversation[last].Role == "user" {
			conversation[last].Content += contextSuffix
		} else {
			conversation = append(conversation, ai.ChatMessage{
				Role:    "user",
				Content: strings.TrimSpace(contextSuffix),
			})
		}
	}

	opts := []ai.CallOption{ai.WithCheapFirst(true)}
	if in.Model != "" {
		opts = append(opts, ai.WithModel(in.Model))
	}

	started := time.Now()
	text, modelUsed, err := s.gateway.ChatMessages(ctx, conversation, temperatureOrDefault(in.Temperature), opts...)
	if err != nil {
		return nil, err
	}
	s.publishAudit(in.TenantID, "chat", modelUsed, time.Since(started))

	answer, sources := s.annotator.Annotate(sanitizeAnswer(text))
	if modelUsed == "" {
		modelUsed = "unknown"
	}
	return &ChatResult{Answer: answer, Model: modelUsed, Sources: sources}, nil
}

func (s *AssistantService) publishAudit(tenantID, endpoint, modelUsed string, took time.Duration) {
	if s.audit == nil {
		return
	}
	call := model.LLMCall{
		TenantID:   tenantID,
		Endpoint:   endpoint,
		Provider:   s.gateway.Provider(),
		Model:      modelUsed,
		DurationMs: took.Milliseconds(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.audit.Publish(ctx, call); err != nil {
			log.Printf("publish llm call audit failed: %v", err)
		}
	}()
}

func temperatureOrDefault(t *float64) float64 {
	if t == nil {
		return defaultTemperature
	}
	return *t
}

// sanitizeAnswer strips stray markdown fences and bold markers the
// models emit despite the plain-text instruction.
func sanitizeAnswer(text string) string {
	text = strings.TrimSpace(text)
	text = strings.Trim(text, "`")
	text = strings.TrimSpace(text)
	return strings.ReplaceAll(text, "**", "")
}
