package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Yerassyl-hub/backofadilai/internal/ai"
	"github.com/Yerassyl-hub/backofadilai/internal/model"
	"github.com/Yerassyl-hub/backofadilai/internal/pkg/riskrules"
	"github.com/Yerassyl-hub/backofadilai/internal/pkg/similarity"
	"github.com/Yerassyl-hub/backofadilai/internal/pkg/textsplit"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrDocumentNotFound = errors.New("document not found")
)

const (
	defaultTopK = 6

	// Ingestion keeps a capped prefix of the raw text on the document row.
	documentContentLimit = 10000

	// Fragment and preview sizes used by the prompt assembler.
	contextFragmentLimit = 800
	rawTextLimit         = 2000
	citationPreviewLimit = 200

	embedBatchSize = 10

	noContextPlaceholder = "нет контекста"
)

const analyzeSystemPrompt = "Ты юридический ассистент для МСБ в Казахстане. " +
	"Отвечай кратко и понятно. Пиши на русском. " +
	"Ты даешь информационные пояснения, не юридические советы. " +
	"Всегда добавляй чек-лист действий. Используй цитаты из контекста, если есть."

const analyzeUserTemplate = `Текст запроса: %s

Контекстные фрагменты:
%s

Задача: Сделай краткое резюме, перечисли риски и сформируй чек-лист действий.
Ответ в JSON с полями: summary, risks[], checklist[].
`

// DocumentStore is the slice of the document repository the service needs.
type DocumentStore interface {
	CreateWithChunks(doc *model.Document, chunks []model.Chunk) error
	GetByIDAndTenant(id, tenantID string) (*model.Document, error)
	ListByTenant(tenantID string) ([]model.Document, error)
	DeleteByIDAndTenant(id, tenantID string) error
}

// ChunkStore reads a document's chunks for retrieval.
type ChunkStore interface {
	ListByDocumentID(documentID string) ([]model.Chunk, error)
}

// Embedder produces embedding vectors for texts.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingCacher caches query embeddings. A failing cache is treated as
// a miss; retrieval always works without it.
type EmbeddingCacher interface {
	Get(ctx context.Context, query string) ([]float32, bool, error)
	Set(ctx context.Context, query string, vec []float32) error
}

// JSONChatter is the slice of the LLM gateway the analyze flow needs.
type JSONChatter interface {
	ChatJSON(ctx context.Context, system, user string, temperature float64, opts ...ai.CallOption) (map[string]any, string, error)
	Provider() string
}

// AuditPublisher records upstream LLM calls out of band.
type AuditPublisher interface {
	Publish(ctx context.Context, call model.LLMCall) error
}

type RAGService struct {
	docs     DocumentStore
	chunks   ChunkStore
	embedder Embedder
	cache    EmbeddingCacher
	gateway  JSONChatter
	audit    AuditPublisher

	targetTokens int
	topK         int
}

// NewRAGService wires the ingestion and analysis flows. cache and audit
// may be nil; the service degrades to uncached, unaudited operation.
func NewRAGService(
	docs DocumentStore,
	chunks ChunkStore,
	embedder Embedder,
	cache EmbeddingCacher,
	gateway JSONChatter,
	audit AuditPublisher,
	targetTokens, topK int,
) *RAGService {
	if targetTokens <= 0 {
		targetTokens = textsplit.DefaultTargetTokens
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	return &RAGService{
		docs:         docs,
		chunks:       chunks,
		embedder:     embedder,
		cache:        cache,
		gateway:      gateway,
		audit:        audit,
		targetTokens: targetTokens,
		topK:         topK,
	}
}

type IngestInput struct {
	TenantID string
	Filename string
	Text     string
}

type IngestResult struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
}

// Ingest splits extracted text into chunks, embeds them and persists the
// document with its chunks in one transaction.
func (s *RAGService) Ingest(ctx context.Context, in IngestInput) (*IngestResult, error) {
	if strings.TrimSpace(in.TenantID) == "" {
		return nil, fmt.Errorf("tenant_id is required: %w", ErrInvalidInput)
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, fmt.Errorf("empty text after extraction: %w", ErrInvalidInput)
	}

	parts := textsplit.Split(text, s.targetTokens)
	if len(parts) == 0 {
		return nil, fmt.Errorf("no chunks produced: %w", ErrInvalidInput)
	}

	vectors, err := s.embedAll(ctx, parts)
	if err != nil {
		return nil, err
	}

	doc := model.Document{
		TenantID: in.TenantID,
		Filename: in.Filename,
		Content:  textsplit.Truncate(text, documentContentLimit),
	}
	chunks := make([]model.Chunk, len(parts))
	for i, part := range parts {
		chunks[i] = model.Chunk{
			TenantID: in.TenantID,
			Ordinal:  i + 1,
			Text:     part,
		}
		chunks[i].SetEmbedding(vectors[i])
	}

	if err := s.docs.CreateWithChunks(&doc, chunks); err != nil {
		return nil, err
	}
	return &IngestResult{DocumentID: doc.ID, Chunks: len(chunks)}, nil
}

func (s *RAGService) embedAll(ctx context.Context, parts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(parts))
	for start := 0; start < len(parts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(parts) {
			end = len(parts)
		}
		batch, err := s.embedder.EmbedBatch(ctx, parts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d..%d failed: %w", start, end, err)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (s *RAGService) ListDocuments(tenantID string) ([]model.Document, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("tenant_id is required: %w", ErrInvalidInput)
	}
	return s.docs.ListByTenant(tenantID)
}

func (s *RAGService) DeleteDocument(tenantID, documentID string) error {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(documentID) == "" {
		return fmt.Errorf("tenant_id and document id are required: %w", ErrInvalidInput)
	}
	doc, err := s.docs.GetByIDAndTenant(documentID, tenantID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	return s.docs.DeleteByIDAndTenant(documentID, tenantID)
}

type AnalyzeInput struct {
	TenantID   string
	DocumentID string
	Query      string
	Text       string
	TopK       int
}

type Citation struct {
	DocumentID string `json:"document_id"`
	ChunkID    string `json:"chunk_id"`
	Ordinal    int    `json:"ordinal"`
	Preview    string `json:"preview"`
}

type AnalyzeResult struct {
	Summary   string     `json:"summary"`
	Risks     []string   `json:"risks"`
	Checklist []string   `json:"checklist"`
	Citations []Citation `json:"citations"`
	Model     string     `json:"model"`
}

// Analyze retrieves the most relevant chunks for the query, asks the LLM
// for a structured contract analysis and merges rule-based risk flags in.
func (s *RAGService) Analyze(ctx context.Context, in AnalyzeInput) (*AnalyzeResult, error) {
	if strings.TrimSpace(in.Query) == "" {
		return nil, fmt.Errorf("query is required: %w", ErrInvalidInput)
	}
	if in.DocumentID == "" && strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("provide document_id or raw text: %w", ErrInvalidInput)
	}

	prompt, cits, err := s.buildPrompt(ctx, in)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	data, modelUsed, err := s.gateway.ChatJSON(ctx, analyzeSystemPrompt, prompt, 0.2)
	if err != nil {
		return nil, err
	}
	s.publishAudit(in.TenantID, "analyze", modelUsed, time.Since(started))

	summary := asString(data["summary"])
	risks := asStringSlice(data["risks"])
	risks = append(risks, riskrules.Flags(summary+" "+in.Query)...)

	return &AnalyzeResult{
		Summary:   summary,
		Risks:     risks,
		Checklist: asStringSlice(data["checklist"]),
		Citations: cits,
		Model:     modelUsed,
	}, nil
}

func (s *RAGService) buildPrompt(ctx context.Context, in AnalyzeInput) (string, []Citation, error) {
	var contexts []string
	citations := []Citation{}

	if in.DocumentID != "" {
		doc, err := s.docs.GetByIDAndTenant(in.DocumentID, in.TenantID)
		if err != nil {
			return "", nil, err
		}
		if doc == nil {
			return "", nil, ErrDocumentNotFound
		}

		top, err := s.topChunks(ctx, in.DocumentID, in.Query, in.TopK)
		if err != nil {
			return "", nil, err
		}
		for _, ch := range top {
			contexts = append(contexts, fmt.Sprintf("[%d] %s", ch.Ordinal, textsplit.Truncate(ch.Text, contextFragmentLimit)))
			citations = append(citations, Citation{
				DocumentID: ch.DocumentID,
				ChunkID:    ch.ID,
				Ordinal:    ch.Ordinal,
				Preview:    textsplit.Truncate(ch.Text, citationPreviewLimit),
			})
		}
	} else {
		raw := strings.TrimSpace(in.Text)
		if raw == "" {
			raw = noContextPlaceholder
		} else {
			raw = textsplit.Truncate(raw, rawTextLimit)
		}
		contexts = []string{raw}
	}

	joined := noContextPlaceholder
	if len(contexts) > 0 {
		joined = strings.Join(contexts, "\n\n")
	}
	return fmt.Sprintf(analyzeUserTemplate, in.Query, joined), citations, nil
}

// topChunks scores every chunk of the document against the query
// embedding and returns the k best, highest first.
func (s *RAGService) topChunks(ctx context.Context, documentID, query string, k int) ([]model.Chunk, error) {
	if k <= 0 {
		k = s.topK
	}

	queryVec, err := s.queryEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	chunks, err := s.chunks.ListByDocumentID(documentID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(chunks))
	for i := range chunks {
		vectors[i] = chunks[i].EmbeddingVector()
	}

	matches := similarity.TopK(queryVec, vectors, k)
	top := make([]model.Chunk, len(matches))
	for i, m := range matches {
		top[i] = chunks[m.Index]
	}
	return top, nil
}

func (s *RAGService) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	if s.cache != nil {
		if vec, ok, err := s.cache.Get(ctx, query); err == nil && ok {
			return vec, nil
		} else if err != nil {
			log.Printf("embedding cache get failed: %v", err)
		}
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, query, vec); err != nil {
			log.Printf("embedding cache set failed: %v", err)
		}
	}
	return vec, nil
}

// publishAudit is fire and forget: request handling never waits on the
// broker and never fails because of it.
func (s *RAGService) publishAudit(tenantID, endpoint, modelUsed string, took time.Duration) {
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

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
			continue
		}
		if b, err := json.Marshal(item); err == nil {
			out = append(out, string(b))
		}
	}
	return out
}
