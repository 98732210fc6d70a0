// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"prdy-go/internal/model"
	"time"

	"github.com/go-redis/redis/v8"
)

// ConversationRepository 定义了会话历史记录的操作接口。
// 键为边界层签发的不透明会话 ID；本层只做纯粹的 get/set，
// 读取不存在的会话返回空序列，不会在存储中物化该会话。
// 保留策略（TTL、淘汰）由具体存储后端负责。
type ConversationRepository interface {
	Get(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	Set(ctx context.Context, sessionID string, messages []model.ChatMessage) error
}

type redisConversationRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewRedisConversationRepository 创建一个 Redis 存储的 ConversationRepository。
func NewRedisConversationRepository(redisClient *redis.Client, ttl time.Duration) ConversationRepository {
	return &redisConversationRepository{redisClient: redisClient, ttl: ttl}
}

func conversationKey(sessionID string) string {
	return fmt.Sprintf("conversation:%s", sessionID)
}

// Get 从 Redis 获取会话历史记录，不存在时返回空序列。
func (r *redisConversationRepository) Get(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	jsonData, err := r.redisClient.Get(ctx, conversationKey(sessionID)).Result()
	if err == redis.Nil {
		return []model.ChatMessage{}, nil // 尚无历史
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	var messages []model.ChatMessage
	if err := json.Unmarshal([]byte(jsonData), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation history: %w", err)
	}
	return messages, nil
}

// Set 在 Redis 中整体替换会话历史记录（空序列即清空会话）。
func (r *redisConversationRepository) Set(ctx context.Context, sessionID string, messages []model.ChatMessage) error {
	jsonData, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation history: %w", err)
	}
	if err := r.redisClient.Set(ctx, conversationKey(sessionID), jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set conversation history: %w", err)
	}
	return nil
}
