package model

import "errors"

// ErrorKind 是可供前端做行为判断的机器可读错误类别。
type ErrorKind string

const (
	// ErrKindValidation 请求缺少必填字段或字段为空。
	ErrKindValidation ErrorKind = "validation"
	// ErrKindNotFound 引用的文件或会话产物不存在。
	ErrKindNotFound ErrorKind = "not_found"
	// ErrKindNoContext 会话为空，无法提取产品上下文。
	ErrKindNoContext ErrorKind = "no_context"
	// ErrKindInsufficientContext 会话内容过于模糊，无法识别产品。
	ErrKindInsufficientContext ErrorKind = "insufficient_context"
	// ErrKindPersistence 文件系统写入或移动失败。
	ErrKindPersistence ErrorKind = "persistence"

	// 以下为 LLM 协作方错误，由 pkg/llm 在边界处一次性分类。
	ErrKindBilling    ErrorKind = "billing"
	ErrKindAuth       ErrorKind = "auth"
	ErrKindRateLimit  ErrorKind = "rate_limit"
	ErrKindOverloaded ErrorKind = "overloaded"
	ErrKindAPI        ErrorKind = "api_error"
)

// APIError 是带类别的业务错误，携带面向用户的可读提示。
// 所有此类错误均在操作边界被捕获，不会作为未处理异常向上传播。
type APIError struct {
	Kind    ErrorKind
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError 创建一个带类别的业务错误。
func NewAPIError(kind ErrorKind, message string) *APIError {
	return &APIError{Kind: kind, Message: message}
}

// AsAPIError 判断 err 链上是否存在 APIError，并返回它。
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsCollaboratorError 判断错误类别是否属于外部协作方（LLM）失败。
// 此类错误对用户而言均可重试，不会导致进程退出。
func IsCollaboratorError(kind ErrorKind) bool {
	switch kind {
	case ErrKindBilling, ErrKindAuth, ErrKindRateLimit, ErrKindOverloaded, ErrKindAPI:
		return true
	}
	return false
}
