package handler

import (
	"net/http"
	"prdy-go/internal/middleware"
	"prdy-go/internal/service"
	"prdy-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ChatHandler 处理对话、PRD 生成与会话管理相关的 API 请求。
type ChatHandler struct {
	chatService         service.ChatService
	conversationService service.ConversationService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, conversationService service.ConversationService) *ChatHandler {
	return &ChatHandler{
		chatService:         chatService,
		conversationService: conversationService,
	}
}

type chatRequest struct {
	Message string `json:"message"`
}

// Chat 处理一轮对话请求。
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体"})
		return
	}

	sessionID := middleware.SessionID(c)
	reply, messageCount, err := h.chatService.Chat(c.Request.Context(), sessionID, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"response":      reply,
		"message_count": messageCount,
	})
}

// GeneratePRD 基于当前会话生成并保存 PRD。
func (h *ChatHandler) GeneratePRD(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	content, filename, err := h.chatService.GeneratePRD(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	log.Infof("[ChatHandler] PRD 生成成功: %s", filename)
	c.JSON(http.StatusOK, gin.H{
		"prd":      content,
		"filename": filename,
	})
}

// Clear 清空当前会话历史。
func (h *ChatHandler) Clear(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	if err := h.conversationService.Clear(c.Request.Context(), sessionID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// LoadPRD 载入一个既有 PRD 作为会话上下文，用于迭代修改。
func (h *ChatHandler) LoadPRD(c *gin.Context) {
	filename := c.Param("filename")
	if filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "文件名不能为空"})
		return
	}

	sessionID := middleware.SessionID(c)
	content, messageCount, err := h.chatService.LoadPRD(c.Request.Context(), sessionID, filename)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"content":       content,
		"filename":      filename,
		"message_count": messageCount,
	})
}
