package model

import "time"

// 文档类型，由文件名约定唯一确定。
const (
	DocumentKindPRD      = "prd"
	DocumentKindResearch = "research"
)

// DocumentInfo 描述一个已落盘的 Markdown 文档（PRD 或竞品调研）。
// 文件名一次性解析为结构化字段，调用方不再做字符串解析。
type DocumentInfo struct {
	Filename      string    `json:"filename"`
	Name          string    `json:"name"` // 展示名（去连字符、首字母大写）
	Date          string    `json:"date"` // 形如 "Jan 02, 2006"
	Created       time.Time `json:"created"`
	Size          int64     `json:"size"`
	ProductPrefix string    `json:"product_prefix"`
	// Research 仅对 PRD 有效：与其共享产品前缀的调研文档，按创建时间倒序。
	Research []DocumentInfo `json:"research,omitempty"`
}
