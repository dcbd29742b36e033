package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yerassyl-hub/backofadilai/internal/ai"
	"github.com/Yerassyl-hub/backofadilai/internal/model"
)

type fakeTextChatter struct {
	gotSystem   string
	gotUser     string
	gotMessages []ai.ChatMessage
	gotTemp     float64
	reply       string
	model       string
	err         error
}

func (f *fakeTextChatter) ChatText(ctx context.Context, system, user string, temperature float64, opts ...ai.CallOption) (string, string, error) {
	f.gotSystem = system
	f.gotUser = user
	f.gotTemp = temperature
	if f.err != nil {
		return "", "", f.err
	}
	return f.reply, f.model, nil
}

func (f *fakeTextChatter) ChatMessages(ctx context.Context, messages []ai.ChatMessage, temperature float64, opts ...ai.CallOption) (string, string, error) {
	f.gotMessages = messages
	f.gotTemp = temperature
	if f.err != nil {
		return "", "", f.err
	}
	return f.reply, f.model, nil
}

func (f *fakeTextChatter) Provider() string { return "perplexity" }

func TestAsk(t *testing.T) {
	gateway := &fakeTextChatter{
		reply: "```**Риск аренды.** См. Гражданский кодекс РК, ст. 610.```",
		model: "sonar",
	}
	svc := NewAssistantService(gateway, nil, nil)

	result, err := svc.Ask(context.Background(), AskInput{TenantID: "t1", Query: "Вопрос об аренде"})
	require.NoError(t, err)

	assert.NotContains(t, result.Answer, "`")
	assert.NotContains(t, result.Answer, "**")
	assert.Contains(t, result.Answer, "Гражданский кодекс РК, ст. 610 [1]")
	require.Len(t, result.Sources, 1)
	assert.Equal(t, 1, result.Sources[0].ID)
	assert.Equal(t, "sonar", result.Model)
	assert.Equal(t, "Вопрос об аренде", gateway.gotUser)
	assert.InDelta(t, 0.2, gateway.gotTemp, 1e-9, "temperature defaults to 0.2")
}

func TestAskTemperatureOverride(t *testing.T) {
	gateway := &fakeTextChatter{reply: "ответ", model: "sonar"}
	svc := NewAssistantService(gateway, nil, nil)

	temp := 0.7
	_, err := svc.Ask(context.Background(), AskInput{TenantID: "t1", Query: "в", Temperature: &temp})
	require.NoError(t, err)
	assert.InDelta(t, 0.7, gateway.gotTemp, 1e-9)
}

func TestAskValidation(t *testing.T) {
	svc := NewAssistantService(&fakeTextChatter{}, nil, nil)
	_, err := svc.Ask(context.Background(), AskInput{TenantID: "t1", Query: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAskUnknownModel(t *testing.T) {
	gateway := &fakeTextChatter{reply: "ответ", model: ""}
	svc := NewAssistantService(gateway, nil, nil)

	result, err := svc.Ask(context.Background(), AskInput{TenantID: "t1", Query: "в"})
	require.NoError(t, err)
	assert.Equal(t, "unknown", result.Model)
}

func TestChatConversationAssembly(t *testing.T) {
	gateway := &fakeTextChatter{reply: "ответ", model: "sonar"}
	svc := NewAssistantService(gateway, nil, nil)

	_, err := svc.Chat(context.Background(), ChatInput{
		TenantID: "t1",
		Messages: []ai.ChatMessage{
			{Role: "user", Content: "Первый вопрос"},
			{Role: "assistant", Content: "Первый ответ"},
		},
		Question: "Новый вопрос",
	})
	require.NoError(t, err)

	msgs := gateway.gotMessages
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "Первый вопрос", msgs[1].Content)
	assert.Equal(t, "Первый ответ", msgs[2].Content)
	assert.Equal(t, ai.ChatMessage{Role: "user", Content: "Новый вопрос"}, msgs[3])
}

func TestChatQuestionAlreadyAsked(t *testing.T) {
	gateway := &fakeTextChatter{reply: "ответ", model: "sonar"}
	svc := NewAssistantService(gateway, nil, nil)

	_, err := svc.Chat(context.Background(), ChatInput{
		TenantID: "t1",
		Messages: []ai.ChatMessage{{Role: "user", Content: "Тот же вопрос"}},
		Question: "  Тот же вопрос ",
	})
	require.NoError(t, err)
	require.Len(t, gateway.gotMessages, 2, "duplicate question must not be appended")
}

func TestChatRawTextRidesOnLastUserTurn(t *testing.T) {
	gateway := &fakeTextChatter{reply: "ответ", model: "sonar"}
	svc := NewAssistantService(gateway, nil, nil)

	_, err := svc.Chat(context.Background(), ChatInput{
		TenantID: "t1",
		Messages: []ai.ChatMessage{{Role: "user", Content: "Вопрос"}},
		RawText:  "Текст договора",
	})
	require.NoError(t, err)

	msgs := gateway.gotMessages
	require.Len(t, msgs, 2)
	last := msgs[len(msgs)-1]
	assert.Equal(t, "user", last.Role)
	assert.True(t, strings.HasPrefix(last.Content, "Вопрос"))
	assert.Contains(t, last.Content, "Контекст документа")
	assert.Contains(t, last.Content, "Текст договора")
}

func TestChatRawTextBecomesOwnTurn(t *testing.T) {
	gateway := &fakeTextChatter{reply: "ответ", model: "sonar"}
	svc := NewAssistantService(gateway, nil, nil)

	_, err := svc.Chat(context.Background(), ChatInput{
		TenantID: "t1",
		Messages: []ai.ChatMessage{
			{Role: "user", Content: "Вопрос"},
			{Role: "assistant", Content: "Ответ"},
		},
		RawText: "Текст договора",
	})
	require.NoError(t, err)

	msgs := gateway.gotMessages
	require.Len(t, msgs, 4)
	last := msgs[len(msgs)-1]
	assert.Equal(t, "user", last.Role)
	assert.True(t, strings.HasPrefix(last.Content, "Контекст документа"))
}

func TestChatEmptyMessages(t *testing.T) {
	svc := NewAssistantService(&fakeTextChatter{}, nil, nil)
	_, err := svc.Chat(context.Background(), ChatInput{TenantID: "t1"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAskPublishesAudit(t *testing.T) {
	audit := &fakeAudit{calls: make(chan model.LLMCall, 1)}
	gateway := &fakeTextChatter{reply: "ответ", model: "sonar"}
	svc := NewAssistantService(gateway, nil, audit)

	_, err := svc.Ask(context.Background(), AskInput{TenantID: "t1", Query: "в"})
	require.NoError(t, err)

	select {
	case call := <-audit.calls:
		assert.Equal(t, "ask", call.Endpoint)
		assert.Equal(t, "sonar", call.Model)
	case <-time.After(time.Second):
		t.Fatal("audit record was not published")
	}
}
