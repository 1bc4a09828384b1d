package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"novel-ai-go/internal/model"
	"novel-ai-go/internal/service"
	"novel-ai-go/pkg/log"
)

// CharacterHandler 结构体定义了角色设定相关的处理器。
type CharacterHandler struct {
	characterService service.CharacterService
}

// NewCharacterHandler 创建一个新的 CharacterHandler 实例。
func NewCharacterHandler(characterService service.CharacterService) *CharacterHandler {
	return &CharacterHandler{characterService: characterService}
}

// Create 处理在小说下创建角色的请求。
func (h *CharacterHandler) Create(c *gin.Context) {
	novelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var character model.Character
	if err := c.ShouldBindJSON(&character); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}
	if character.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "角色名称不能为空"})
		return
	}
	character.NovelID = novelID
	if err := h.characterService.Create(c.Request.Context(), &character); err != nil {
		log.Errorf("[CharacterHandler] 创建角色失败, NovelID: %d, error: %v", novelID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建角色失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": character, "message": "success"})
}

// ListByNovel 处理小说角色列表请求。
func (h *CharacterHandler) ListByNovel(c *gin.Context) {
	novelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	characters, err := h.characterService.ListByNovel(novelID)
	if err != nil {
		log.Errorf("[CharacterHandler] 查询角色列表失败, NovelID: %d, error: %v", novelID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": characters, "message": "success"})
}

// Get 处理查询单个角色的请求。
func (h *CharacterHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	character, err := h.characterService.GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "角色不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": character, "message": "success"})
}

// Update 处理更新角色的请求。
func (h *CharacterHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	character, err := h.characterService.GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "角色不存在"})
		return
	}
	if err := c.ShouldBindJSON(character); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}
	character.ID = id
	if err := h.characterService.Update(c.Request.Context(), character); err != nil {
		log.Errorf("[CharacterHandler] 更新角色失败, ID: %d, error: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新角色失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": character, "message": "success"})
}

// Delete 处理删除角色的请求。
func (h *CharacterHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.characterService.Delete(c.Request.Context(), id); err != nil {
		log.Errorf("[CharacterHandler] 删除角色失败, ID: %d, error: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除角色失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "message": "success"})
}
