package repository

import (
	"context"
	"prdy-go/internal/model"
	"sync"
)

// memoryConversationRepository 是进程内的会话历史存储，用于未配置 Redis 的开发环境。
// 会话在进程生命周期内持续累积，没有淘汰策略。
type memoryConversationRepository struct {
	mu       sync.RWMutex
	sessions map[string][]model.ChatMessage
}

// NewMemoryConversationRepository 创建一个内存存储的 ConversationRepository。
func NewMemoryConversationRepository() ConversationRepository {
	return &memoryConversationRepository{
		sessions: make(map[string][]model.ChatMessage),
	}
}

// Get 返回会话历史的副本，不存在时返回空序列，且不会物化该会话。
func (r *memoryConversationRepository) Get(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.sessions[sessionID]
	if !ok {
		return []model.ChatMessage{}, nil
	}
	// 返回副本，防止调用方修改到内部状态
	messages := make([]model.ChatMessage, len(stored))
	copy(messages, stored)
	return messages, nil
}

// Set 整体替换会话历史（空序列即清空会话）。
func (r *memoryConversationRepository) Set(ctx context.Context, sessionID string, messages []model.ChatMessage) error {
	stored := make([]model.ChatMessage, len(messages))
	copy(stored, messages)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = stored
	return nil
}
