package model

// 产品上下文提取的置信度级别。
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
	ConfidenceNone   = "none"
)

// ProductContext 是从会话历史或 PRD 内容中按需提取的产品信息。
// 仅在请求内使用，不做任何持久化。
type ProductContext struct {
	ProductName        string `json:"product_name"`
	ProductDescription string `json:"product_description"`
	SearchCategory     string `json:"search_category"`
	Confidence         string `json:"confidence"`
	// Diagnostic 记录提取失败时的诊断信息（Confidence 为 none 时可能非空）。
	Diagnostic string `json:"error,omitempty"`
}
