package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestGateway(t *testing.T, upstream http.HandlerFunc) (*Gateway, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(upstream)
	t.Cleanup(server.Close)

	gw := NewGateway(ProviderPerplexity, PerplexityConfig{
		BaseURL:        server.URL,
		APIKey:         "test-key",
		Model:          "configured-model",
		PreferCheapest: false,
	}, ChatConfig{})
	return gw, server
}

func decodeChatRequest(t *testing.T, r *http.Request) (model string, messages []ChatMessage) {
	t.Helper()
	var body struct {
		Model    string        `json:"model"`
		Messages []ChatMessage `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Fatalf("decode upstream request: %v", err)
	}
	return body.Model, body.Messages
}

func writeChatResponse(w http.ResponseWriter, model, content string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"model": model,
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
}

func writeInvalidModel(w http.ResponseWriter, model string) {
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"type":    "invalid_model",
			"message": fmt.Sprintf("model %s does not exist", model),
		},
	})
}

func TestPerplexityCascadeSkipsInvalidModels(t *testing.T) {
	var attempted []string
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		model, _ := decodeChatRequest(t, r)
		attempted = append(attempted, model)
		if model != "sonar" {
			writeInvalidModel(w, model)
			return
		}
		writeChatResponse(w, "sonar", "ответ")
	})

	text, modelUsed, err := gw.ChatText(context.Background(), "system", "вопрос", 0.2, WithCheapFirst(true))
	if err != nil {
		t.Fatalf("ChatText() error: %v", err)
	}
	if text != "ответ" || modelUsed != "sonar" {
		t.Errorf("got (%q, %q), want (ответ, sonar)", text, modelUsed)
	}

	// cheap ladder order until the first accepted candidate
	want := []string{"sonar-small-chat", "llama-3.1-sonar-small-128k-chat", "sonar"}
	if len(attempted) != len(want) {
		t.Fatalf("attempted %v, want %v", attempted, want)
	}
	for i := range want {
		if attempted[i] != want[i] {
			t.Errorf("attempt %d = %q, want %q", i, attempted[i], want[i])
		}
	}
}

func TestPerplexityForcedModelTriedFirst(t *testing.T) {
	var attempted []string
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		model, _ := decodeChatRequest(t, r)
		attempted = append(attempted, model)
		writeChatResponse(w, model, "ok")
	})

	_, modelUsed, err := gw.ChatText(context.Background(), "s", "u", 0, WithModel("sonar-pro"))
	if err != nil {
		t.Fatalf("ChatText() error: %v", err)
	}
	if modelUsed != "sonar-pro" {
		t.Errorf("modelUsed = %q, want sonar-pro", modelUsed)
	}
	if len(attempted) != 1 || attempted[0] != "sonar-pro" {
		t.Errorf("attempted = %v, want only sonar-pro", attempted)
	}
}

func TestPerplexityFatalErrorStopsCascade(t *testing.T) {
	var calls int
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"type":"server_error"}}`))
	})

	_, _, err := gw.ChatText(context.Background(), "s", "u", 0, WithCheapFirst(true))
	if !errors.Is(err, ErrService) {
		t.Fatalf("expected ErrService, got %v", err)
	}
	if calls != 1 {
		t.Errorf("a 500 must stop the cascade, upstream saw %d calls", calls)
	}
}

func TestPerplexityPlain400IsFatal(t *testing.T) {
	var calls int
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit"}}`))
	})

	_, _, err := gw.ChatText(context.Background(), "s", "u", 0)
	if !errors.Is(err, ErrService) {
		t.Fatalf("expected ErrService, got %v", err)
	}
	if calls != 1 {
		t.Errorf("non invalid_model 400 must stop the cascade, upstream saw %d calls", calls)
	}
}

func TestPerplexityExhaustedCascade(t *testing.T) {
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		model, _ := decodeChatRequest(t, r)
		writeInvalidModel(w, model)
	})

	_, _, err := gw.ChatText(context.Background(), "s", "u", 0, WithCheapFirst(true))
	if !errors.Is(err, ErrService) {
		t.Fatalf("expected ErrService, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid_model") {
		t.Errorf("exhaustion error must carry the last upstream detail: %v", err)
	}
	if !strings.Contains(err.Error(), "configured-model") {
		t.Errorf("exhaustion error must name the candidates: %v", err)
	}
}

func TestPerplexityMissingAPIKey(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	gw := NewGateway(ProviderPerplexity, PerplexityConfig{BaseURL: server.URL}, ChatConfig{})
	_, _, err := gw.ChatText(context.Background(), "s", "u", 0)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if calls != 0 {
		t.Errorf("missing key must fail before any network call, saw %d", calls)
	}
}

func TestChatMessagesEmptyConversation(t *testing.T) {
	gw := NewGateway(ProviderPerplexity, PerplexityConfig{APIKey: "k"}, ChatConfig{})
	_, _, err := gw.ChatMessages(context.Background(), nil, 0)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestChatJSON(t *testing.T) {
	t.Run("object passthrough", func(t *testing.T) {
		gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			writeChatResponse(w, "configured-model", `{"summary":"кратко","risks":["риск"],"checklist":[]}`)
		})

		data, modelUsed, err := gw.ChatJSON(context.Background(), "s", "u", 0)
		if err != nil {
			t.Fatalf("ChatJSON() error: %v", err)
		}
		if modelUsed != "configured-model" {
			t.Errorf("modelUsed = %q", modelUsed)
		}
		if data["summary"] != "кратко" {
			t.Errorf("summary = %v", data["summary"])
		}
	})

	t.Run("plain text wrapped", func(t *testing.T) {
		gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			writeChatResponse(w, "configured-model", "просто текст")
		})

		data, _, err := gw.ChatJSON(context.Background(), "s", "u", 0)
		if err != nil {
			t.Fatalf("ChatJSON() error: %v", err)
		}
		if data["summary"] != "просто текст" {
			t.Errorf("summary = %v", data["summary"])
		}
		if risks, ok := data["risks"].([]any); !ok || len(risks) != 0 {
			t.Errorf("risks = %v", data["risks"])
		}
	})

	t.Run("json array wrapped", func(t *testing.T) {
		gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			writeChatResponse(w, "configured-model", `[1,2,3]`)
		})

		data, _, err := gw.ChatJSON(context.Background(), "s", "u", 0)
		if err != nil {
			t.Fatalf("ChatJSON() error: %v", err)
		}
		if data["summary"] != "[1,2,3]" {
			t.Errorf("non-object json must be wrapped as raw text, got %v", data["summary"])
		}
	})
}

func TestCandidateModels(t *testing.T) {
	tests := []struct {
		name       string
		force      string
		configured string
		cheapFirst bool
		wantFirst  string
		wantLast   string
		wantLen    int
	}{
		{
			name:       "cheap first puts ladder ahead of configured",
			configured: "custom-model",
			cheapFirst: true,
			wantFirst:  "sonar-small-chat",
			wantLast:   "custom-model",
			wantLen:    len(cheapLadder) + 1,
		},
		{
			name:       "configured first",
			configured: "custom-model",
			cheapFirst: false,
			wantFirst:  "custom-model",
			wantLast:   "sonar-pro",
			wantLen:    len(cheapLadder) + 1,
		},
		{
			name:       "forced model leads",
			force:      "forced",
			configured: "custom-model",
			cheapFirst: true,
			wantFirst:  "forced",
			wantLast:   "custom-model",
			wantLen:    len(cheapLadder) + 2,
		},
		{
			name:       "configured model already in ladder deduped",
			configured: "sonar",
			cheapFirst: true,
			wantFirst:  "sonar-small-chat",
			wantLast:   "sonar-pro",
			wantLen:    len(cheapLadder),
		},
		{
			name:       "empty configured",
			cheapFirst: false,
			wantFirst:  "sonar-small-chat",
			wantLast:   "sonar-pro",
			wantLen:    len(cheapLadder),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := candidateModels(tt.force, tt.configured, tt.cheapFirst)
			if len(got) != tt.wantLen {
				t.Fatalf("candidateModels() = %v, want %d entries", got, tt.wantLen)
			}
			if got[0] != tt.wantFirst {
				t.Errorf("first = %q, want %q", got[0], tt.wantFirst)
			}
			if got[len(got)-1] != tt.wantLast {
				t.Errorf("last = %q, want %q", got[len(got)-1], tt.wantLast)
			}
			seen := map[string]int{}
			for _, m := range got {
				seen[m]++
				if seen[m] > 1 {
					t.Errorf("duplicate candidate %q", m)
				}
			}
		})
	}
}

func TestModelUsedFallsBackToCandidate(t *testing.T) {
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		// upstream omits the model field
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "ok"}},
			},
		})
	})

	_, modelUsed, err := gw.ChatText(context.Background(), "s", "u", 0)
	if err != nil {
		t.Fatalf("ChatText() error: %v", err)
	}
	if modelUsed != "configured-model" {
		t.Errorf("modelUsed = %q, want the attempted candidate", modelUsed)
	}
}
