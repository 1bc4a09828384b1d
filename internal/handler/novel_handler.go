// Package handler 存放 Gin 框架的 HTTP 处理器。
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"novel-ai-go/internal/config"
	"novel-ai-go/internal/model"
	"novel-ai-go/internal/service"
	"novel-ai-go/internal/vector"
	"novel-ai-go/pkg/log"
)

// NovelHandler 结构体定义了小说相关的处理器。
type NovelHandler struct {
	novelService service.NovelService
	store        *vector.Store
	thresholds   config.ThresholdConfig
}

// NewNovelHandler 创建一个新的 NovelHandler 实例。
func NewNovelHandler(novelService service.NovelService, store *vector.Store, thresholds config.ThresholdConfig) *NovelHandler {
	return &NovelHandler{
		novelService: novelService,
		store:        store,
		thresholds:   thresholds,
	}
}

// Create 处理创建小说的请求。
func (h *NovelHandler) Create(c *gin.Context) {
	var novel model.Novel
	if err := c.ShouldBindJSON(&novel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}
	if novel.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "小说标题不能为空"})
		return
	}
	if err := h.novelService.Create(c.Request.Context(), &novel); err != nil {
		log.Errorf("[NovelHandler] 创建小说失败, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建小说失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": novel, "message": "success"})
}

// List 处理小说列表请求。
func (h *NovelHandler) List(c *gin.Context) {
	novels, err := h.novelService.List()
	if err != nil {
		log.Errorf("[NovelHandler] 查询小说列表失败, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": novels, "message": "success"})
}

// Get 处理查询单部小说的请求。
func (h *NovelHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	novel, err := h.novelService.GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "小说不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": novel, "message": "success"})
}

// Update 处理更新小说的请求。
func (h *NovelHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	novel, err := h.novelService.GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "小说不存在"})
		return
	}
	if err := c.ShouldBindJSON(novel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}
	novel.ID = id
	if err := h.novelService.Update(c.Request.Context(), novel); err != nil {
		log.Errorf("[NovelHandler] 更新小说失败, ID: %d, error: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新小说失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": novel, "message": "success"})
}

// Delete 处理删除小说的请求。
func (h *NovelHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.novelService.Delete(c.Request.Context(), id); err != nil {
		log.Errorf("[NovelHandler] 删除小说失败, ID: %d, error: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除小说失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "message": "success"})
}

// Similar 是显式相似度查询入口：在小说范围内用给定文本做语义检索。
// 与建议型检查不同，检索失败在这里直接返回错误。
func (h *NovelHandler) Similar(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	query := c.Query("query")
	log.Infof("[NovelHandler] 收到相似度查询请求, NovelID: %d, query: %s", id, query)
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query 参数不能为空"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "5"))
	if err != nil || limit <= 0 {
		limit = 5
	}
	granularity := c.DefaultQuery("granularity", "document")

	// 分块检索噪声更大，默认阈值比文档级更严格
	defaultThreshold := h.thresholds.Context
	if granularity == "chunk" {
		defaultThreshold = h.thresholds.Chunk
	}
	threshold, err := strconv.ParseFloat(c.DefaultQuery("threshold", strconv.FormatFloat(defaultThreshold, 'f', -1, 64)), 64)
	if err != nil || threshold < 0 || threshold > 1 {
		threshold = defaultThreshold
	}

	var matches []model.SimilarityMatch
	if granularity == "chunk" {
		matches, err = h.store.FindSimilarChunks(c.Request.Context(), id, query, nil, limit, threshold)
	} else {
		matches, err = h.store.FindSimilarDocuments(c.Request.Context(), id, query, nil, limit, threshold)
	}
	if err != nil {
		log.Errorf("[NovelHandler] 相似度查询失败, NovelID: %d, error: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "相似度查询失败"})
		return
	}

	log.Infof("[NovelHandler] 相似度查询成功, NovelID: %d, 返回 %d 条结果", id, len(matches))
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": matches, "message": "success"})
}

// Reindex 重建小说全部向量索引，模型升级后由管理端触发。
func (h *NovelHandler) Reindex(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	succeeded, total, err := h.store.ReindexNovel(c.Request.Context(), id)
	if err != nil {
		log.Errorf("[NovelHandler] 重建向量索引失败, NovelID: %d, error: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "重建向量索引失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    200,
		"data":    gin.H{"succeeded": succeeded, "total": total},
		"message": "success",
	})
}

// parseIDParam 解析路径中的数字 ID，非法时写入 400 响应。
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的 " + name + " 参数"})
		return 0, false
	}
	return uint(id), true
}
