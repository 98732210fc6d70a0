package handler

import (
	"net/http"
	"prdy-go/internal/middleware"
	"prdy-go/internal/service"
	"prdy-go/pkg/research"
	"strings"

	"github.com/gin-gonic/gin"
)

// ResearchHandler 处理网络调研相关的 API 请求。
type ResearchHandler struct {
	chatService    service.ChatService
	researchClient research.Client
}

// NewResearchHandler 创建一个新的 ResearchHandler。
func NewResearchHandler(chatService service.ChatService, researchClient research.Client) *ResearchHandler {
	return &ResearchHandler{chatService: chatService, researchClient: researchClient}
}

type researchRequest struct {
	Type               string `json:"type"`
	ProductName        string `json:"product_name"`
	ProductDescription string `json:"product_description"`
	Query              string `json:"query"`
}

// Research 执行竞品或自定义调研并把结果写入会话历史。
func (h *ResearchHandler) Research(c *gin.Context) {
	var req researchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体"})
		return
	}
	if req.Type == "" {
		req.Type = service.ResearchTypeCompetitors
	}

	sessionID := middleware.SessionID(c)
	result, err := h.chatService.Research(c.Request.Context(), sessionID, service.ResearchParams{
		Type:               req.Type,
		ProductName:        req.ProductName,
		ProductDescription: req.ProductDescription,
		Query:              req.Query,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type searchRequest struct {
	Query string `json:"query"`
}

// Search 执行一次简单的网络搜索。
func (h *ResearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "查询内容不能为空"})
		return
	}

	results, err := h.researchClient.Search(c.Request.Context(), req.Query, 10)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "搜索失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

type contextResearchRequest struct {
	Source string `json:"source"`
}

// ContextResearch 从会话或既有 PRD 提取产品上下文后发起竞品调研。
func (h *ResearchHandler) ContextResearch(c *gin.Context) {
	var req contextResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体"})
		return
	}
	if req.Source == "" {
		req.Source = "conversation"
	}

	sessionID := middleware.SessionID(c)
	result, err := h.chatService.ContextResearch(c.Request.Context(), sessionID, req.Source)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":             true,
		"product_name":        result.ProductName,
		"product_description": result.ProductDescription,
		"source":              result.Source,
		"analysis":            result.Analysis,
		"confidence":          result.Confidence,
		"message_count":       result.MessageCount,
	})
}

type saveResearchRequest struct {
	Content     string `json:"content"`
	SaveType    string `json:"save_type"`
	PRDFilename string `json:"prd_filename"`
	ProductName string `json:"product_name"`
}

// Save 将调研结果追加到既有 PRD 或另存为独立文档。
func (h *ResearchHandler) Save(c *gin.Context) {
	var req saveResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体"})
		return
	}
	if req.SaveType == "" {
		req.SaveType = service.SaveTypeSeparateFile
	}

	filename, message, err := h.chatService.SaveResearch(c.Request.Context(), service.SaveResearchParams{
		Content:     req.Content,
		SaveType:    req.SaveType,
		PRDFilename: req.PRDFilename,
		ProductName: req.ProductName,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  message,
		"filename": filename,
	})
}
