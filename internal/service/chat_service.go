package service

import (
	"context"
	"fmt"
	"prdy-go/internal/model"
	"prdy-go/internal/repository"
	"prdy-go/pkg/llm"
	"prdy-go/pkg/log"
	"prdy-go/pkg/research"
	"strings"
	"time"
)

// 调研类型。
const (
	ResearchTypeCompetitors = "competitors"
	ResearchTypeCustom      = "custom"
)

// 调研结果的保存方式。
const (
	SaveTypeAppendPRD    = "append_prd"
	SaveTypeSeparateFile = "separate_file"
)

// analysisPrompt 让模型基于调研结果给出分析，仅在本次调用中作为临时 user 消息使用。
const analysisPrompt = `Based on this research, please provide:
1. A summary of the key competitors identified
2. Notable features and pricing patterns in the market
3. Gaps or opportunities you see for our product
4. Recommendations for differentiation

Keep your analysis concise but actionable.`

// degradedAnalysisReply 是分析调用失败时写入历史的占位助手消息（调研结果仍然保留）。
const degradedAnalysisReply = "I've received the research data. How would you like me to incorporate this into your PRD?"

// degradedAnalysisNote 是分析失败时返回给调用方的说明。
const degradedAnalysisNote = "Research gathered successfully. API quota may be limited for detailed analysis."

// loadPRDReply 是载入既有 PRD 后预置的助手开场白。
const loadPRDReply = `I've reviewed your existing PRD. I can help you iterate on and improve it. What changes or additions would you like to make? For example:

- Add or modify features
- Clarify requirements
- Update technical considerations
- Refine user stories
- Add missing sections

Just let me know what you'd like to focus on!`

// ResearchParams 是一次调研请求的参数。
type ResearchParams struct {
	Type               string
	ProductName        string
	ProductDescription string
	Query              string
}

// ResearchResult 封装调研文本、模型分析与更新后的消息数。
type ResearchResult struct {
	Research     string `json:"research"`
	Analysis     string `json:"analysis"`
	MessageCount int    `json:"message_count"`
}

// ContextResearchResult 封装基于上下文提取的调研结果。
type ContextResearchResult struct {
	ProductName        string `json:"product_name"`
	ProductDescription string `json:"product_description"`
	Source             string `json:"source"`
	Analysis           string `json:"analysis"`
	Confidence         string `json:"confidence"`
	MessageCount       int    `json:"message_count"`
}

// SaveResearchParams 是保存调研结果的参数。
type SaveResearchParams struct {
	Content     string
	SaveType    string
	PRDFilename string
	ProductName string
}

// ChatService 编排会话、生成与调研流程。
// 所有对同一会话的读改写序列都按会话 ID 串行执行，避免并发请求丢失更新。
type ChatService interface {
	// Chat 处理一轮对话：成功时向历史原子地追加一对 user/assistant 消息；
	// 模型调用失败时历史保持调用前的长度不变。
	Chat(ctx context.Context, sessionID, userMessage string) (string, int, error)
	// GeneratePRD 基于会话历史生成 PRD 并落盘，历史本身不变。
	GeneratePRD(ctx context.Context, sessionID string) (content, filename string, err error)
	// LoadPRD 将既有 PRD 作为上下文初始化会话，用于迭代修改。
	LoadPRD(ctx context.Context, sessionID, filename string) (content string, messageCount int, err error)
	// Research 执行竞品或自定义调研并把结果写入会话历史。
	// 调研成功而分析失败不算错误：调研文本照常返回，历史中写入占位回复。
	Research(ctx context.Context, sessionID string, params ResearchParams) (*ResearchResult, error)
	// ContextResearch 先从会话或既有 PRD 提取产品上下文，再发起竞品调研。
	ContextResearch(ctx context.Context, sessionID, source string) (*ContextResearchResult, error)
	// SaveResearch 将调研结果追加到既有 PRD 或另存为独立文档。
	SaveResearch(ctx context.Context, params SaveResearchParams) (filename, message string, err error)
}

type chatService struct {
	conversationRepo repository.ConversationRepository
	prdService       PRDService
	llmClient        llm.Client
	researchClient   research.Client
	sessionLocks     keyedMutex
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	conversationRepo repository.ConversationRepository,
	prdService PRDService,
	llmClient llm.Client,
	researchClient research.Client,
) ChatService {
	return &chatService{
		conversationRepo: conversationRepo,
		prdService:       prdService,
		llmClient:        llmClient,
		researchClient:   researchClient,
	}
}

// Chat 处理一轮对话。
func (s *chatService) Chat(ctx context.Context, sessionID, userMessage string) (string, int, error) {
	userMessage = strings.TrimSpace(userMessage)
	if userMessage == "" {
		return "", 0, model.NewAPIError(model.ErrKindValidation, "消息不能为空")
	}

	unlock := s.sessionLocks.Lock(sessionID)
	defer unlock()

	history, err := s.conversationRepo.Get(ctx, sessionID)
	if err != nil {
		return "", 0, model.NewAPIError(model.ErrKindPersistence, fmt.Sprintf("读取会话历史失败: %v", err))
	}

	attempt := append(history, model.ChatMessage{
		Role:      model.RoleUser,
		Content:   userMessage,
		Timestamp: time.Now(),
	})

	reply, err := s.llmClient.Chat(ctx, attempt)
	if err != nil {
		// 失败的调用不落任何痕迹：历史保持原长度
		return "", 0, err
	}

	attempt = append(attempt, model.ChatMessage{
		Role:      model.RoleAssistant,
		Content:   reply,
		Timestamp: time.Now(),
	})
	if err := s.conversationRepo.Set(ctx, sessionID, attempt); err != nil {
		return "", 0, model.NewAPIError(model.ErrKindPersistence, fmt.Sprintf("保存会话历史失败: %v", err))
	}
	return reply, len(attempt), nil
}

// GeneratePRD 基于会话历史生成并保存 PRD。
func (s *chatService) GeneratePRD(ctx context.Context, sessionID string) (string, string, error) {
	unlock := s.sessionLocks.Lock(sessionID)
	defer unlock()

	history, err := s.conversationRepo.Get(ctx, sessionID)
	if err != nil {
		return "", "", model.NewAPIError(model.ErrKindPersistence, fmt.Sprintf("读取会话历史失败: %v", err))
	}
	if len(history) < 2 {
		return "", "", model.NewAPIError(model.ErrKindValidation, "会话内容不足，无法生成 PRD")
	}

	content, err := s.llmClient.GeneratePRD(ctx, history)
	if err != nil {
		return "", "", err
	}

	filename, err := s.prdService.Save(content, "")
	if err != nil {
		return "", "", err
	}
	return content, filename, nil
}

// LoadPRD 将既有 PRD 作为上下文初始化会话。
func (s *chatService) LoadPRD(ctx context.Context, sessionID, filename string) (string, int, error) {
	content, err := s.prdService.Get(filename)
	if err != nil {
		return "", 0, err
	}

	unlock := s.sessionLocks.Lock(sessionID)
	defer unlock()

	now := time.Now()
	messages := []model.ChatMessage{
		{
			Role:      model.RoleUser,
			Content:   fmt.Sprintf("I have an existing PRD that I'd like to iterate on and improve. Here it is:\n\n%s", content),
			Timestamp: now,
		},
		{
			Role:      model.RoleAssistant,
			Content:   loadPRDReply,
			Timestamp: now,
		},
	}
	if err := s.conversationRepo.Set(ctx, sessionID, messages); err != nil {
		return "", 0, model.NewAPIError(model.ErrKindPersistence, fmt.Sprintf("保存会话历史失败: %v", err))
	}
	return content, len(messages), nil
}

// Research 执行调研并把结果写入会话历史。
func (s *chatService) Research(ctx context.Context, sessionID string, params ResearchParams) (*ResearchResult, error) {
	var formatted string
	switch params.Type {
	case ResearchTypeCompetitors:
		if strings.TrimSpace(params.ProductName) == "" {
			return nil, model.NewAPIError(model.ErrKindValidation, "竞品调研需要提供产品名称")
		}
		description := params.ProductDescription
		if description == "" {
			description = params.ProductName
		}
		formatted = s.researchClient.ResearchCompetitors(ctx, params.ProductName, description)
	case ResearchTypeCustom:
		if strings.TrimSpace(params.Query) == "" {
			return nil, model.NewAPIError(model.ErrKindValidation, "自定义调研需要提供查询内容")
		}
		hits, err := s.researchClient.Search(ctx, params.Query, 10)
		if err != nil {
			return nil, model.NewAPIError(model.ErrKindAPI, fmt.Sprintf("调研失败: %v", err))
		}
		formatted = formatSearchHits(hits)
	default:
		return nil, model.NewAPIError(model.ErrKindValidation, "无效的调研类型")
	}

	unlock := s.sessionLocks.Lock(sessionID)
	defer unlock()

	history, err := s.conversationRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, model.NewAPIError(model.ErrKindPersistence, fmt.Sprintf("读取会话历史失败: %v", err))
	}

	history = append(history, model.ChatMessage{
		Role:      model.RoleUser,
		Content:   fmt.Sprintf("I've conducted web research on the product/market. Here are the findings:\n\n%s", formatted),
		Timestamp: time.Now(),
	})

	// 分析指令仅作为临时消息参与本次调用，不写入历史
	analysisInput := append(append([]model.ChatMessage{}, history...), model.ChatMessage{
		Role:    model.RoleUser,
		Content: analysisPrompt,
	})

	result := &ResearchResult{Research: formatted}
	analysis, err := s.llmClient.Chat(ctx, analysisInput)
	if err != nil {
		// 部分降级：调研已拿到，分析失败不算错误
		log.Warnf("调研分析失败，返回降级结果: %v", err)
		history = append(history, model.ChatMessage{
			Role:      model.RoleAssistant,
			Content:   degradedAnalysisReply,
			Timestamp: time.Now(),
		})
		result.Analysis = degradedAnalysisNote
	} else {
		history = append(history, model.ChatMessage{
			Role:      model.RoleAssistant,
			Content:   analysis,
			Timestamp: time.Now(),
		})
		result.Analysis = analysis
	}

	if err := s.conversationRepo.Set(ctx, sessionID, history); err != nil {
		return nil, model.NewAPIError(model.ErrKindPersistence, fmt.Sprintf("保存会话历史失败: %v", err))
	}
	result.MessageCount = len(history)
	return result, nil
}

// ContextResearch 从会话或既有 PRD 提取产品上下文后发起竞品调研。
func (s *chatService) ContextResearch(ctx context.Context, sessionID, source string) (*ContextResearchResult, error) {
	var productCtx model.ProductContext
	if source == "conversation" {
		history, err := s.conversationRepo.Get(ctx, sessionID)
		if err != nil {
			return nil, model.NewAPIError(model.ErrKindPersistence, fmt.Sprintf("读取会话历史失败: %v", err))
		}
		if len(history) == 0 {
			return nil, model.NewAPIError(model.ErrKindNoContext,
				"当前没有会话内容，请先描述你的产品想法，或选择一个既有 PRD。")
		}
		productCtx = s.llmClient.ExtractProductContext(ctx, history, "")
	} else {
		// source 是一个 PRD 文件名
		prdContent, err := s.prdService.Get(source)
		if err != nil {
			return nil, err
		}
		productCtx = s.llmClient.ExtractProductContext(ctx, nil, prdContent)
	}

	if productCtx.ProductName == "" || productCtx.Confidence == model.ConfidenceNone {
		if productCtx.Diagnostic != "" {
			log.Warnf("产品上下文提取失败: %s", productCtx.Diagnostic)
		}
		return nil, model.NewAPIError(model.ErrKindInsufficientContext,
			"无法从当前内容中识别出明确的产品，请补充更多关于产品的细节。")
	}

	description := productCtx.ProductDescription
	if description == "" {
		description = productCtx.ProductName
	}
	// 使用搜索类目发起检索，避免营销词干扰搜索质量
	searchTerm := productCtx.SearchCategory
	if searchTerm == "" {
		searchTerm = productCtx.ProductName
	}

	analysis := s.researchClient.ResearchCompetitors(ctx, searchTerm, description)
	log.Debugf("上下文调研完成, product=%s, searchTerm=%s, analysisLen=%d",
		productCtx.ProductName, searchTerm, len(analysis))

	unlock := s.sessionLocks.Lock(sessionID)
	defer unlock()

	history, err := s.conversationRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, model.NewAPIError(model.ErrKindPersistence, fmt.Sprintf("读取会话历史失败: %v", err))
	}
	now := time.Now()
	history = append(history,
		model.ChatMessage{
			Role:      model.RoleUser,
			Content:   fmt.Sprintf("I've gathered competitive research for %s.", productCtx.ProductName),
			Timestamp: now,
		},
		model.ChatMessage{
			Role:      model.RoleAssistant,
			Content:   analysis,
			Timestamp: now,
		},
	)
	if err := s.conversationRepo.Set(ctx, sessionID, history); err != nil {
		return nil, model.NewAPIError(model.ErrKindPersistence, fmt.Sprintf("保存会话历史失败: %v", err))
	}

	return &ContextResearchResult{
		ProductName:        productCtx.ProductName,
		ProductDescription: description,
		Source:             source,
		Analysis:           analysis,
		Confidence:         productCtx.Confidence,
		MessageCount:       len(history),
	}, nil
}

// SaveResearch 保存调研结果。
func (s *chatService) SaveResearch(ctx context.Context, params SaveResearchParams) (string, string, error) {
	if strings.TrimSpace(params.Content) == "" {
		return "", "", model.NewAPIError(model.ErrKindValidation, "没有可保存的内容")
	}

	if params.SaveType == SaveTypeAppendPRD {
		if params.PRDFilename == "" {
			return "", "", model.NewAPIError(model.ErrKindValidation, "追加保存需要提供 PRD 文件名")
		}
		section := "## Competitive Analysis\n\n" + params.Content
		if err := s.prdService.Append(params.PRDFilename, section); err != nil {
			return "", "", err
		}
		return params.PRDFilename, fmt.Sprintf("竞品分析已追加到 %s", params.PRDFilename), nil
	}

	productName := params.ProductName
	if productName == "" {
		productName = "Product"
	}
	filename, err := s.prdService.SaveResearch(params.Content, productName)
	if err != nil {
		return "", "", err
	}
	return filename, fmt.Sprintf("竞品分析已保存为 %s", filename), nil
}

// formatSearchHits 将搜索结果渲染为 Markdown 片段。
func formatSearchHits(hits []research.SearchHit) string {
	var b strings.Builder
	b.WriteString("## Research Results\n\n")
	for _, hit := range hits {
		b.WriteString(fmt.Sprintf("- **%s**\n", hit.Title))
		b.WriteString(fmt.Sprintf("  %s\n", hit.Snippet))
		b.WriteString(fmt.Sprintf("  Source: %s\n\n", hit.Link))
	}
	return b.String()
}
