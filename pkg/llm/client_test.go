package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"prdy-go/internal/config"
	"prdy-go/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		APIKey:           "test-key",
		BaseURL:          baseURL,
		Model:            "claude-sonnet-4-20250514",
		ChatMaxTokens:    2048,
		PRDMaxTokens:     8192,
		ExtractMaxTokens: 256,
		TimeoutSeconds:   5,
	}
}

// newTextServer 返回一个固定回复单个文本块的测试服务器，并捕获最近一次请求体。
func newTextServer(t *testing.T, text string, captured *messagesRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		resp := map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": text}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestChat_ReturnsAssistantText(t *testing.T) {
	var captured messagesRequest
	srv := newTextServer(t, "hello from assistant", &captured)
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	reply, err := client.Chat(context.Background(), []model.ChatMessage{
		{Role: model.RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello from assistant", reply)

	assert.Equal(t, assistantDirective, captured.System)
	assert.Equal(t, 2048, captured.MaxTokens)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "hi", captured.Messages[0].Content)
}

func TestGeneratePRD_AppendsGenerationDirective(t *testing.T) {
	var captured messagesRequest
	srv := newTextServer(t, "# Widget - PRD", &captured)
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	content, err := client.GeneratePRD(context.Background(), []model.ChatMessage{
		{Role: model.RoleUser, Content: "a widget"},
		{Role: model.RoleAssistant, Content: "tell me more"},
	})
	require.NoError(t, err)
	assert.Equal(t, "# Widget - PRD", content)

	assert.Equal(t, 8192, captured.MaxTokens)
	// 生成指令作为最后一条 user 消息追加，原历史保持在前
	require.Len(t, captured.Messages, 3)
	assert.Equal(t, model.RoleUser, captured.Messages[2].Role)
	assert.Equal(t, generationDirective, captured.Messages[2].Content)
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		errType    string
		errMessage string
		wantKind   model.ErrorKind
	}{
		{"billing", http.StatusBadRequest, "invalid_request_error", "Your credit balance is too low to access the Anthropic API.", model.ErrKindBilling},
		{"auth", http.StatusUnauthorized, "authentication_error", "invalid x-api-key", model.ErrKindAuth},
		{"rate limit by type", http.StatusTooManyRequests, "rate_limit_error", "Number of requests exceeded", model.ErrKindRateLimit},
		{"overloaded", 529, "overloaded_error", "Overloaded", model.ErrKindOverloaded},
		{"unclassified", http.StatusInternalServerError, "api_error", "something went wrong", model.ErrKindAPI},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprintf(w, `{"type":"error","error":{"type":%q,"message":%q}}`, tc.errType, tc.errMessage)
			}))
			defer srv.Close()

			client := NewClient(testConfig(srv.URL))
			_, err := client.Chat(context.Background(), []model.ChatMessage{{Role: model.RoleUser, Content: "hi"}})
			apiErr, ok := model.AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, tc.wantKind, apiErr.Kind)
			assert.NotEmpty(t, apiErr.Message)
		})
	}
}

// 无响应的协作方在配置的超时后失败，归入过载类（用户可稍后重试）
func TestChat_TimeoutClassifiedAsOverloaded(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	cfg := testConfig(srv.URL)
	cfg.TimeoutSeconds = 1
	client := NewClient(cfg)

	start := time.Now()
	_, err := client.Chat(context.Background(), []model.ChatMessage{{Role: model.RoleUser, Content: "hi"}})
	elapsed := time.Since(start)

	apiErr, ok := model.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrKindOverloaded, apiErr.Kind)
	assert.Less(t, elapsed, 3*time.Second)
}

func TestExtract_StripsCodeFence(t *testing.T) {
	payload := "```json\n{\"product_name\": \"Widget\", \"product_description\": \"a widget\", \"search_category\": \"widget tool\", \"confidence\": \"high\"}\n```"
	srv := newTextServer(t, payload, nil)
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	got := client.ExtractProductContext(context.Background(), []model.ChatMessage{
		{Role: model.RoleUser, Content: "I want to build a widget"},
	}, "")
	assert.Equal(t, "Widget", got.ProductName)
	assert.Equal(t, "widget tool", got.SearchCategory)
	assert.Equal(t, model.ConfidenceHigh, got.Confidence)
	assert.Empty(t, got.Diagnostic)
}

// confidence 字段缺失但提取到产品名时按 medium 处理，而不是拒绝
func TestExtract_MissingConfidenceDefaultsMedium(t *testing.T) {
	srv := newTextServer(t, `{"product_name": "Widget", "product_description": "a widget"}`, nil)
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	got := client.ExtractProductContext(context.Background(), []model.ChatMessage{
		{Role: model.RoleUser, Content: "I want to build a widget"},
	}, "")
	assert.Equal(t, "Widget", got.ProductName)
	assert.Equal(t, model.ConfidenceMedium, got.Confidence)
}

func TestExtract_MalformedOutput(t *testing.T) {
	srv := newTextServer(t, "sorry, I cannot produce JSON", nil)
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	got := client.ExtractProductContext(context.Background(), []model.ChatMessage{
		{Role: model.RoleUser, Content: "something"},
	}, "")
	assert.Equal(t, model.ConfidenceNone, got.Confidence)
	assert.NotEmpty(t, got.Diagnostic)
}

func TestExtract_ProviderFailureNeverPanics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	got := client.ExtractProductContext(context.Background(), []model.ChatMessage{
		{Role: model.RoleUser, Content: "something"},
	}, "")
	assert.Equal(t, model.ConfidenceNone, got.Confidence)
	assert.NotEmpty(t, got.Diagnostic)
}

func TestExtract_EmptySources(t *testing.T) {
	client := NewClient(testConfig("http://unused.invalid"))
	got := client.ExtractProductContext(context.Background(), nil, "")
	assert.Equal(t, model.ConfidenceNone, got.Confidence)
}

func TestExtract_BoundsConversationInput(t *testing.T) {
	var captured messagesRequest
	srv := newTextServer(t, `{"product_name":"x","confidence":"low"}`, &captured)
	defer srv.Close()

	// 超过 10 条的历史只取最近 10 条，每条截断到 500 字符
	long := make([]rune, 600)
	for i := range long {
		long[i] = 'a'
	}
	var history []model.ChatMessage
	for i := 0; i < 12; i++ {
		history = append(history, model.ChatMessage{Role: model.RoleUser, Content: string(long)})
	}
	history[0].Content = "FIRST-MESSAGE-MARKER"

	client := NewClient(testConfig(srv.URL))
	_ = client.ExtractProductContext(context.Background(), history, "")

	require.Len(t, captured.Messages, 1)
	prompt := captured.Messages[0].Content
	assert.NotContains(t, prompt, "FIRST-MESSAGE-MARKER")
	assert.NotContains(t, prompt, string(long))
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
}
