package service

import (
	"context"
	"prdy-go/internal/model"
	"prdy-go/internal/repository"
)

// ConversationService 定义了会话生命周期操作。
type ConversationService interface {
	Clear(ctx context.Context, sessionID string) error
}

type conversationService struct {
	repo repository.ConversationRepository
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(repo repository.ConversationRepository) ConversationService {
	return &conversationService{repo: repo}
}

// Clear 清空会话历史（整体替换为空序列）。
func (s *conversationService) Clear(ctx context.Context, sessionID string) error {
	return s.repo.Set(ctx, sessionID, []model.ChatMessage{})
}
