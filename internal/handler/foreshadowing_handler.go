package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"novel-ai-go/internal/model"
	"novel-ai-go/internal/service"
	"novel-ai-go/pkg/log"
)

// ForeshadowingHandler 结构体定义了伏笔相关的处理器。
type ForeshadowingHandler struct {
	foreshadowingService service.ForeshadowingService
}

// NewForeshadowingHandler 创建一个新的 ForeshadowingHandler 实例。
func NewForeshadowingHandler(foreshadowingService service.ForeshadowingService) *ForeshadowingHandler {
	return &ForeshadowingHandler{foreshadowingService: foreshadowingService}
}

// Create 处理在小说下创建伏笔的请求。
func (h *ForeshadowingHandler) Create(c *gin.Context) {
	novelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var f model.Foreshadowing
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}
	if f.Title == "" || f.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "伏笔标题与内容不能为空"})
		return
	}
	f.NovelID = novelID
	if err := h.foreshadowingService.Create(c.Request.Context(), &f); err != nil {
		log.Errorf("[ForeshadowingHandler] 创建伏笔失败, NovelID: %d, error: %v", novelID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建伏笔失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": f, "message": "success"})
}

// ListByNovel 处理小说伏笔列表请求。
func (h *ForeshadowingHandler) ListByNovel(c *gin.Context) {
	novelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	list, err := h.foreshadowingService.ListByNovel(novelID)
	if err != nil {
		log.Errorf("[ForeshadowingHandler] 查询伏笔列表失败, NovelID: %d, error: %v", novelID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": list, "message": "success"})
}

// Get 处理查询单条伏笔的请求。
func (h *ForeshadowingHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	f, err := h.foreshadowingService.GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "伏笔不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": f, "message": "success"})
}

// Update 处理更新伏笔的请求。
func (h *ForeshadowingHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	f, err := h.foreshadowingService.GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "伏笔不存在"})
		return
	}
	if err := c.ShouldBindJSON(f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}
	f.ID = id
	if err := h.foreshadowingService.Update(c.Request.Context(), f); err != nil {
		log.Errorf("[ForeshadowingHandler] 更新伏笔失败, ID: %d, error: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新伏笔失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": f, "message": "success"})
}

// Delete 处理删除伏笔的请求。
func (h *ForeshadowingHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.foreshadowingService.Delete(c.Request.Context(), id); err != nil {
		log.Errorf("[ForeshadowingHandler] 删除伏笔失败, ID: %d, error: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除伏笔失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "message": "success"})
}

type matchRequest struct {
	ChapterID  uint `json:"chapterId" binding:"required"`
	AutoUpdate bool `json:"autoUpdate"`
}

// Match 处理伏笔回收匹配请求：把指定章节与小说内未回收伏笔做相似度比对。
func (h *ForeshadowingHandler) Match(c *gin.Context) {
	novelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}
	log.Infof("[ForeshadowingHandler] 收到伏笔匹配请求, NovelID: %d, ChapterID: %d, autoUpdate: %v",
		novelID, req.ChapterID, req.AutoUpdate)

	matches, err := h.foreshadowingService.MatchResolutions(c.Request.Context(), novelID, req.ChapterID, req.AutoUpdate)
	if err != nil {
		log.Errorf("[ForeshadowingHandler] 伏笔匹配失败, NovelID: %d, error: %v", novelID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "伏笔匹配失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": matches, "message": "success"})
}
