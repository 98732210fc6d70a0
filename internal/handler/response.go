// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"fmt"
	"net/http"
	"prdy-go/internal/model"

	"github.com/gin-gonic/gin"
)

// respondError 将业务错误映射为统一的 HTTP 错误响应。
// 响应体携带面向用户的 error 文本与机器可读的 category，供前端做行为判断
// （例如区分"尚无上下文"与"上下文过于模糊"）。
func respondError(c *gin.Context, err error) {
	apiErr, ok := model.AsAPIError(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("意外错误: %v", err)})
		return
	}
	c.JSON(statusFor(apiErr.Kind), gin.H{
		"error":    apiErr.Message,
		"category": string(apiErr.Kind),
	})
}

// statusFor 将错误类别映射为 HTTP 状态码。
func statusFor(kind model.ErrorKind) int {
	switch {
	case kind == model.ErrKindValidation,
		kind == model.ErrKindNoContext,
		kind == model.ErrKindInsufficientContext:
		return http.StatusBadRequest
	case kind == model.ErrKindNotFound:
		return http.StatusNotFound
	case model.IsCollaboratorError(kind):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
