// Package research 提供了基于 Perplexity 的网络竞品调研客户端。
package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"prdy-go/internal/config"
	"prdy-go/pkg/log"
	"strings"
	"time"
)

// SearchHit 是一条网络搜索结果。
type SearchHit struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Client 定义了调研客户端的接口。
type Client interface {
	// ResearchCompetitors 对产品做竞品调研，返回已分析好的长文本。
	// 任何失败都降级为一段说明性文本返回，不产生 error。
	ResearchCompetitors(ctx context.Context, productName, productDescription string) string
	// Search 执行一次网络搜索，返回结构化搜索结果列表。
	Search(ctx context.Context, query string, maxResults int) ([]SearchHit, error)
}

type perplexityClient struct {
	cfg    config.ResearchConfig
	client *http.Client
}

// NewClient 创建一个新的调研客户端实例。
// 所有外部调用都受配置的超时约束（默认 60 秒）。
func NewClient(cfg config.ResearchConfig) Client {
	return &perplexityClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

type chatRequest struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ResearchCompetitors 调用 sonar 模型生成竞品分析。
func (c *perplexityClient) ResearchCompetitors(ctx context.Context, productName, productDescription string) string {
	prompt := buildCompetitorPrompt(productName, productDescription)

	content, err := c.complete(ctx, prompt)
	if err != nil {
		log.Warnf("Perplexity API 调用失败: %v", err)
		return fmt.Sprintf("Research failed: %v", err)
	}
	if content == "" {
		log.Warnf("Perplexity 响应中没有可用内容")
		return "Research failed: Unable to parse response"
	}
	return content
}

// Search 执行一次网络搜索并解析为结构化结果。
func (c *perplexityClient) Search(ctx context.Context, query string, maxResults int) ([]SearchHit, error) {
	prompt := fmt.Sprintf(`Search the web for: %s

Return the %d most relevant results as a JSON array. Each element must have exactly these fields:
- "title": the page or product title
- "link": the URL
- "snippet": a 1-2 sentence summary of the result

Return ONLY the JSON array, no other text.`, query, maxResults)

	content, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}

	var hits []SearchHit
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &hits); err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}
	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}
	return hits, nil
}

// complete 调用 chat completions 接口并返回首个回复内容。
func (c *perplexityClient) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model:     c.cfg.Model,
		Messages:  []message{{Role: "user", Content: prompt}},
		MaxTokens: c.cfg.MaxTokens,
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api returned non-200 status: %s, body: %s", resp.Status, string(body))
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", nil
	}
	return result.Choices[0].Message.Content, nil
}

func buildCompetitorPrompt(productName, productDescription string) string {
	return fmt.Sprintf(`Research the competitive landscape for: %s

Product description: %s

Provide a comprehensive competitive analysis with these sections:

## 1. Key Competitors
For each major competitor, include:
- **Company/Product Name**
- **Product URL** (actual links to product pages)
- **Price** (in USD)
- **Key Features** (2-3 bullet points)

## 2. Pricing Landscape
- Price ranges by tier (budget, mid-range, premium)
- Where %s could be positioned

## 3. Feature Comparison
- Standard features across competitors
- Premium features that command higher prices

## 4. Market Gaps & Opportunities
- What's missing in current offerings
- Underserved customer segments

## 5. Strategic Recommendations
- Differentiation opportunities
- Recommended price point with justification

IMPORTANT:
- Focus on products available in the US market
- Include actual URLs as markdown links
- Include real prices in USD
- Only include factual information from your search`, productName, productDescription, productName)
}

// stripCodeFence 去除模型偶尔包裹在 JSON 外层的 markdown 代码块围栏。
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
