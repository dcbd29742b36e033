package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// openaiComplete performs one direct call against the OpenAI-compatible
// fallback provider. No retry cascade on this path.
func (g *Gateway) openaiComplete(ctx context.Context, messages []ChatMessage, temperature float64) (string, error) {
	if g.fallback.APIKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY is not set: %w", ErrConfiguration)
	}

	reqBody := map[string]any{
		"model":       g.fallback.Model,
		"messages":    messages,
		"temperature": temperature,
		"stream":      false,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal llm request failed: %w", err)
	}

	url := strings.TrimRight(g.fallback.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("build llm request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.fallback.APIKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request failed: %v: %w", err, ErrService)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read llm response failed: %v: %w", err, ErrService)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("llm response status %d: %s: %w", resp.StatusCode, string(raw), ErrService)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse llm json failed: %v: %w", err, ErrService)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty llm choices: %w", ErrService)
	}
	return parsed.Choices[0].Message.Content, nil
}
