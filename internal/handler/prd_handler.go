package handler

import (
	"fmt"
	"net/http"
	"prdy-go/internal/service"
	"prdy-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// PRDHandler 处理 PRD 文档的列表、读取与归档请求。
type PRDHandler struct {
	prdService service.PRDService
}

// NewPRDHandler 创建一个新的 PRDHandler。
func NewPRDHandler(prdService service.PRDService) *PRDHandler {
	return &PRDHandler{prdService: prdService}
}

// List 返回全部 PRD 及其归组的调研文档，按创建时间倒序。
func (h *PRDHandler) List(c *gin.Context) {
	prds, err := h.prdService.List()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prds": prds})
}

// Get 按文件名返回文档内容。
func (h *PRDHandler) Get(c *gin.Context) {
	filename := c.Param("filename")
	content, err := h.prdService.Get(filename)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": content})
}

// Archive 归档一个文档。PRD 使用级联归档（同时归档其关联调研文档），
// 调研文档只归档自身。
func (h *PRDHandler) Archive(c *gin.Context) {
	filename := c.Param("filename")

	if service.IsPRDFile(filename) {
		archived, err := h.prdService.ArchiveWithResearch(filename)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"message":  fmt.Sprintf("已归档 %d 个文件", len(archived)),
			"archived": archived,
		})
		return
	}

	if err := h.prdService.Archive(filename); err != nil {
		respondError(c, err)
		return
	}
	log.Infof("[PRDHandler] 单文件归档成功: %s", filename)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("已归档 %s", filename),
	})
}
