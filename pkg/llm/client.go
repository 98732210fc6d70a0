// Package llm 提供了与大语言模型交互的客户端，并在此边界完成错误分类。
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"prdy-go/internal/config"
	"prdy-go/internal/model"
	"strings"
	"time"
)

// Client 定义了 LLM 客户端的接口。
type Client interface {
	// Chat 发送完整会话历史并返回单条助手回复文本。
	Chat(ctx context.Context, messages []model.ChatMessage) (string, error)
	// GeneratePRD 基于会话历史生成完整 PRD 文档文本。
	GeneratePRD(ctx context.Context, messages []model.ChatMessage) (string, error)
	// ExtractProductContext 从会话历史或 PRD 内容中提取产品上下文。
	// prdContent 非空时优先使用；任何失败都以 Confidence=none 返回，不产生 error。
	ExtractProductContext(ctx context.Context, messages []model.ChatMessage, prdContent string) model.ProductContext
}

type anthropicClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient 创建一个新的 LLM 客户端实例。
// 所有外部调用都受配置的超时约束（默认 120 秒），超时归入过载类错误。
func NewClient(cfg config.LLMConfig) Client {
	return &anthropicClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// apiMessage 是发给模型的单条角色消息。
type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Chat 发送会话历史并返回助手回复。
func (c *anthropicClient) Chat(ctx context.Context, messages []model.ChatMessage) (string, error) {
	return c.createMessage(ctx, assistantDirective, toAPIMessages(messages), c.cfg.ChatMaxTokens)
}

// GeneratePRD 在会话历史末尾追加生成指令并返回完整文档文本。
// 生成指令只在本次调用中生效，不会写入会话历史。
func (c *anthropicClient) GeneratePRD(ctx context.Context, messages []model.ChatMessage) (string, error) {
	msgs := toAPIMessages(messages)
	msgs = append(msgs, apiMessage{Role: model.RoleUser, Content: generationDirective})
	return c.createMessage(ctx, assistantDirective, msgs, c.cfg.PRDMaxTokens)
}

// 提取调用的输入预算：PRD 内容取前 4000 字符，会话取最近 10 条、每条截断到 500 字符。
const (
	extractPRDLimit     = 4000
	extractMessageCount = 10
	extractMessageLimit = 500
)

// ExtractProductContext 提取产品名称、描述与搜索类目。
func (c *anthropicClient) ExtractProductContext(ctx context.Context, messages []model.ChatMessage, prdContent string) model.ProductContext {
	none := model.ProductContext{Confidence: model.ConfidenceNone}

	var analyze string
	switch {
	case prdContent != "":
		analyze = "PRD Document:\n" + truncateRunes(prdContent, extractPRDLimit)
	case len(messages) > 0:
		recent := messages
		if len(recent) > extractMessageCount {
			recent = recent[len(recent)-extractMessageCount:]
		}
		var b strings.Builder
		b.WriteString("Conversation:\n")
		for i, m := range recent {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(strings.ToUpper(m.Role))
			b.WriteString(": ")
			b.WriteString(truncateRunes(m.Content, extractMessageLimit))
		}
		analyze = b.String()
	default:
		return none
	}

	prompt := extractionDirective + "\n\n" + analyze
	text, err := c.createMessage(ctx, extractionSystem, []apiMessage{{Role: model.RoleUser, Content: prompt}}, c.cfg.ExtractMaxTokens)
	if err != nil {
		none.Diagnostic = err.Error()
		return none
	}

	var result model.ProductContext
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &result); err != nil {
		none.Diagnostic = fmt.Sprintf("failed to parse extraction response: %v", err)
		return none
	}
	// 模型偶尔漏掉 confidence 字段：已提取到产品名时按 medium 处理
	if result.Confidence == "" {
		if result.ProductName != "" {
			result.Confidence = model.ConfidenceMedium
		} else {
			result.Confidence = model.ConfidenceNone
		}
	}
	return result
}

// createMessage 调用 messages 接口并返回首个文本块。
func (c *anthropicClient) createMessage(ctx context.Context, system string, messages []apiMessage, maxTokens int) (string, error) {
	reqBody := messagesRequest{
		Model:     c.cfg.Model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  messages,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", classify(0, "", fmt.Sprintf("failed to marshal request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/messages", bytes.NewReader(reqBytes))
	if err != nil {
		return "", classify(0, "", fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", classify(0, "overloaded_error", err.Error())
		}
		return "", classify(0, "", err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classify(0, "", fmt.Sprintf("failed to read response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		_ = json.Unmarshal(body, &apiErr)
		return "", classify(resp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
	}

	var result messagesResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", classify(0, "", fmt.Sprintf("failed to parse response: %v", err))
	}
	for _, block := range result.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", classify(0, "", "response contains no text content")
}

// classify 在边界处一次性完成协作方错误分类，映射为面向用户的可读提示。
// 所有类别对用户而言均可重试，不会作为未处理异常向上传播。
func classify(statusCode int, errType, errMessage string) *model.APIError {
	lower := strings.ToLower(errMessage)
	switch {
	case strings.Contains(lower, "credit balance is too low"):
		return model.NewAPIError(model.ErrKindBilling,
			"API 额度不足，请前往 console.anthropic.com 充值后继续使用 PRDy。")
	case errType == "authentication_error" ||
		strings.Contains(lower, "invalid_api_key") ||
		strings.Contains(lower, "authentication"):
		return model.NewAPIError(model.ErrKindAuth,
			"API Key 无效，请检查配置文件中的 llm.api_key。")
	case errType == "rate_limit_error" || statusCode == http.StatusTooManyRequests ||
		strings.Contains(lower, "rate_limit"):
		return model.NewAPIError(model.ErrKindRateLimit,
			"请求频率超限，请稍等片刻后重试。")
	case errType == "overloaded_error" || strings.Contains(lower, "overloaded"):
		return model.NewAPIError(model.ErrKindOverloaded,
			"模型服务当前过载，请稍后重试。")
	default:
		return model.NewAPIError(model.ErrKindAPI, fmt.Sprintf("API 错误: %s", errMessage))
	}
}

func toAPIMessages(messages []model.ChatMessage) []apiMessage {
	msgs := make([]apiMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, apiMessage{Role: m.Role, Content: m.Content})
	}
	return msgs
}

// truncateRunes 按字符截断，避免切断多字节字符。
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// stripCodeFence 去除模型偶尔包裹在 JSON 外层的 markdown 代码块围栏。
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	lines = lines[1:] // 去掉 ```json 或 ``` 起始行
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
