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

// cheapLadder is the heuristic cost order, cheapest first.
var cheapLadder = []string{
	"sonar-small-chat",
	"llama-3.1-sonar-small-128k-chat",
	"sonar",
	"sonar-medium-chat",
	"llama-3.1-sonar-large-128k-chat",
	"sonar-large-chat",
	"sonar-pro",
}

// candidateModels builds the ordered, de-duplicated candidate list: the
// forced model first if given, then either the cheap ladder before the
// configured model or the other way around.
func candidateModels(force, configured string, cheapFirst bool) []string {
	var base []string
	if force != "" {
		base = append(base, force)
	}
	configured = strings.TrimSpace(configured)
	if cheapFirst {
		base = append(base, cheapLadder...)
		if configured != "" {
			base = append(base, configured)
		}
	} else {
		if configured != "" {
			base = append(base, configured)
		}
		base = append(base, cheapLadder...)
	}

	seen := make(map[string]struct{}, len(base))
	out := make([]string, 0, len(base))
	for _, m := range base {
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

type attemptStatus int

const (
	attemptOK attemptStatus = iota
	// attemptInvalidModel: HTTP 400 with error.type "invalid_model"; the
	// cascade records the detail and moves to the next candidate. This is
	// the ONLY retryable outcome.
	attemptInvalidModel
	attemptFatal
)

// attemptResult is the outcome of one candidate attempt; the cascade loop
// matches on the variant instead of inspecting status codes inline.
type attemptResult struct {
	status    attemptStatus
	content   string
	modelUsed string
	detail    string
	err       error
}

func (g *Gateway) perplexityChat(ctx context.Context, messages []ChatMessage, temperature float64, o callOptions) (string, string, error) {
	if g.perplexity.APIKey == "" {
		return "", "", fmt.Errorf("PERPLEXITY_API_KEY is not set: %w", ErrConfiguration)
	}

	cheapFirst := g.perplexity.PreferCheapest
	if o.cheapFirst != nil {
		cheapFirst = *o.cheapFirst
	}
	candidates := candidateModels(o.forceModel, g.perplexity.Model, cheapFirst)

	var lastDetail string
	for _, model := range candidates {
		res := g.tryPerplexityModel(ctx, model, messages, temperature)
		switch res.status {
		case attemptOK:
			return res.content, res.modelUsed, nil
		case attemptInvalidModel:
			lastDetail = res.detail
		case attemptFatal:
			return "", "", res.err
		}
	}

	return "", "", fmt.Errorf(
		"perplexity rejected all candidate models %v, last detail: %s: %w",
		candidates, lastDetail, ErrService,
	)
}

// tryPerplexityModel issues a single chat-completion request. Transport
// failures and timeouts are fatal: the candidate is not retried and the
// cascade stops.
func (g *Gateway) tryPerplexityModel(ctx context.Context, model string, messages []ChatMessage, temperature float64) attemptResult {
	reqBody := map[string]any{
		"model":       model,
		"messages":    messages,
		"temperature": temperature,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return attemptResult{status: attemptFatal, err: fmt.Errorf("marshal perplexity request failed: %w", err)}
	}

	url := strings.TrimRight(g.perplexity.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return attemptResult{status: attemptFatal, err: fmt.Errorf("build perplexity request failed: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.perplexity.APIKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return attemptResult{status: attemptFatal, err: fmt.Errorf("perplexity request failed: %v: %w", err, ErrService)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return attemptResult{status: attemptFatal, err: fmt.Errorf("read perplexity response failed: %v: %w", err, ErrService)}
	}

	if resp.StatusCode == http.StatusBadRequest && isInvalidModel(raw) {
		return attemptResult{status: attemptInvalidModel, detail: string(raw)}
	}
	if resp.StatusCode >= 300 {
		return attemptResult{
			status: attemptFatal,
			err:    fmt.Errorf("perplexity api error %d: %s: %w", resp.StatusCode, string(raw), ErrService),
		}
	}

	var parsed struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return attemptResult{status: attemptFatal, err: fmt.Errorf("parse perplexity json failed: %v: %w", err, ErrService)}
	}
	if len(parsed.Choices) == 0 {
		return attemptResult{status: attemptFatal, err: fmt.Errorf("empty perplexity choices: %w", ErrService)}
	}

	modelUsed := parsed.Model
	if modelUsed == "" {
		modelUsed = model
	}
	return attemptResult{status: attemptOK, content: parsed.Choices[0].Message.Content, modelUsed: modelUsed}
}

// isInvalidModel reports whether an error payload carries
// error.type == "invalid_model". Any other 400 stays fatal.
func isInvalidModel(raw []byte) bool {
	var payload struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return false
	}
	return payload.Error.Type == "invalid_model"
}
