package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"novel-ai-go/internal/model"
	"novel-ai-go/internal/service"
	"novel-ai-go/pkg/log"
)

// ChapterHandler 结构体定义了章节相关的处理器。
type ChapterHandler struct {
	chapterService     service.ChapterService
	generationService  service.GenerationService
	consistencyService service.ConsistencyService
}

// NewChapterHandler 创建一个新的 ChapterHandler 实例。
func NewChapterHandler(
	chapterService service.ChapterService,
	generationService service.GenerationService,
	consistencyService service.ConsistencyService,
) *ChapterHandler {
	return &ChapterHandler{
		chapterService:     chapterService,
		generationService:  generationService,
		consistencyService: consistencyService,
	}
}

// Create 处理在小说下创建章节的请求。
func (h *ChapterHandler) Create(c *gin.Context) {
	novelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var chapter model.Chapter
	if err := c.ShouldBindJSON(&chapter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}
	if chapter.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "章节标题不能为空"})
		return
	}
	chapter.NovelID = novelID
	if err := h.chapterService.Create(c.Request.Context(), &chapter); err != nil {
		log.Errorf("[ChapterHandler] 创建章节失败, NovelID: %d, error: %v", novelID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建章节失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": chapter, "message": "success"})
}

// ListByNovel 处理小说章节列表请求。
func (h *ChapterHandler) ListByNovel(c *gin.Context) {
	novelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	chapters, err := h.chapterService.ListByNovel(novelID)
	if err != nil {
		log.Errorf("[ChapterHandler] 查询章节列表失败, NovelID: %d, error: %v", novelID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": chapters, "message": "success"})
}

// Get 处理查询单个章节的请求。
func (h *ChapterHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	chapter, err := h.chapterService.GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "章节不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": chapter, "message": "success"})
}

// Update 处理更新章节的请求。
func (h *ChapterHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	chapter, err := h.chapterService.GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "章节不存在"})
		return
	}
	if err := c.ShouldBindJSON(chapter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}
	chapter.ID = id
	if err := h.chapterService.Update(c.Request.Context(), chapter); err != nil {
		log.Errorf("[ChapterHandler] 更新章节失败, ID: %d, error: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新章节失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": chapter, "message": "success"})
}

// Delete 处理删除章节的请求。
func (h *ChapterHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.chapterService.Delete(c.Request.Context(), id); err != nil {
		log.Errorf("[ChapterHandler] 删除章节失败, ID: %d, error: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除章节失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "message": "success"})
}

// Generate 处理 AI 生成章节正文的请求。
func (h *ChapterHandler) Generate(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	log.Infof("[ChapterHandler] 收到章节生成请求, ChapterID: %d", id)

	result, err := h.generationService.GenerateChapter(c.Request.Context(), id)
	if err != nil {
		log.Errorf("[ChapterHandler] 章节生成失败, ChapterID: %d, error: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "章节生成失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": result, "message": "success"})
}

// Context 返回章节的前文上下文块，供前端预览提示词所引用的内容。
// exclude 参数接受逗号分隔的章节 ID，在本章之外追加排除。
func (h *ChapterHandler) Context(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	chapter, err := h.chapterService.GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "章节不存在"})
		return
	}
	excludeIDs := parseExcludeQuery(c.Query("exclude"))
	contextBlock := h.consistencyService.BuildChapterContext(c.Request.Context(), chapter, excludeIDs...)
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": gin.H{"context": contextBlock}, "message": "success"})
}

// parseExcludeQuery 解析逗号分隔的实体 ID 列表，非法片段直接跳过。
func parseExcludeQuery(raw string) []uint {
	if raw == "" {
		return nil
	}
	var ids []uint
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil || id == 0 {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids
}
