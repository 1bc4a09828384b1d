// Package pipeline 定义了后台向量化任务的核心流程。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"novel-ai-go/internal/model"
	"novel-ai-go/internal/repository"
	"novel-ai-go/internal/vector"
	"novel-ai-go/pkg/log"
	"novel-ai-go/pkg/tasks"
)

// 任务处理结果状态。
const (
	StatusSucceeded = "succeeded"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// EnrichmentResult 描述一次向量化任务的处理结果。
// Skipped 表示实体已不存在或文本为空，不算失败，不触发队列重试。
type EnrichmentResult struct {
	Status  string
	Elapsed time.Duration
	Err     error
}

// Processor 封装了向量化任务处理的所有依赖和逻辑。
type Processor struct {
	store             *vector.Store
	novelRepo         repository.NovelRepository
	chapterRepo       repository.ChapterRepository
	characterRepo     repository.CharacterRepository
	foreshadowingRepo repository.ForeshadowingRepository
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(
	store *vector.Store,
	novelRepo repository.NovelRepository,
	chapterRepo repository.ChapterRepository,
	characterRepo repository.CharacterRepository,
	foreshadowingRepo repository.ForeshadowingRepository,
) *Processor {
	return &Processor{
		store:             store,
		novelRepo:         novelRepo,
		chapterRepo:       chapterRepo,
		characterRepo:     characterRepo,
		foreshadowingRepo: foreshadowingRepo,
	}
}

// Process 是向量化任务处理的主函数。
func (p *Processor) Process(ctx context.Context, task tasks.EmbeddingTask) EnrichmentResult {
	start := time.Now()
	log.Infof("[Processor] 开始处理向量化任务, Kind: %s, EntityID: %d, NovelID: %d", task.Kind, task.EntityID, task.NovelID)

	// 1. 按实体类型加载文本
	log.Infof("[Processor] 步骤1: 加载实体文本, Kind: %s, EntityID: %d", task.Kind, task.EntityID)
	text, novelID, err := p.loadEntityText(task)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 实体在任务入队后被删除，属于正常竞态，跳过即可
			log.Warnf("[Processor] 实体已不存在, 跳过任务, Kind: %s, EntityID: %d", task.Kind, task.EntityID)
			return EnrichmentResult{Status: StatusSkipped, Elapsed: time.Since(start)}
		}
		log.Errorf("[Processor] 加载实体文本失败, Kind: %s, EntityID: %d, Error: %v", task.Kind, task.EntityID, err)
		return EnrichmentResult{Status: StatusFailed, Elapsed: time.Since(start), Err: err}
	}
	if text == "" {
		log.Warnf("[Processor] 实体文本为空, 跳过向量化, Kind: %s, EntityID: %d", task.Kind, task.EntityID)
		return EnrichmentResult{Status: StatusSkipped, Elapsed: time.Since(start)}
	}
	log.Infof("[Processor] 步骤1: 文本加载成功, 内容长度: %d 字符", utf8.RuneCountInString(text))

	// 2. 向量化并写入存储（MySQL 记录 + ES 索引 + 缓存失效）
	log.Info("[Processor] 步骤2: 开始向量化并写入向量存储")
	if err := p.store.UpsertDocument(ctx, task.Kind, task.EntityID, novelID, text); err != nil {
		log.Errorf("[Processor] 向量化写入失败, Kind: %s, EntityID: %d, Error: %v", task.Kind, task.EntityID, err)
		return EnrichmentResult{Status: StatusFailed, Elapsed: time.Since(start), Err: err}
	}

	elapsed := time.Since(start)
	log.Infof("[Processor] 向量化任务处理成功, Kind: %s, EntityID: %d, 耗时: %s", task.Kind, task.EntityID, elapsed)
	return EnrichmentResult{Status: StatusSucceeded, Elapsed: elapsed}
}

// ProcessTask 适配 kafka.TaskProcessor 接口：仅 failed 结果返回错误触发队列重试。
func (p *Processor) ProcessTask(ctx context.Context, task tasks.EmbeddingTask) error {
	result := p.Process(ctx, task)
	if result.Status == StatusFailed {
		return result.Err
	}
	return nil
}

// loadEntityText 按实体类型取出用于向量化的文本及其所属小说 ID。
// 任务中的 NovelID 仅作兜底，以数据库中实体的归属为准。
func (p *Processor) loadEntityText(task tasks.EmbeddingTask) (string, uint, error) {
	switch task.Kind {
	case model.KindChapter:
		chapter, err := p.chapterRepo.FindByID(task.EntityID)
		if err != nil {
			return "", 0, err
		}
		return chapter.EmbeddingText(), chapter.NovelID, nil
	case model.KindCharacter:
		character, err := p.characterRepo.FindByID(task.EntityID)
		if err != nil {
			return "", 0, err
		}
		return character.EmbeddingText(), character.NovelID, nil
	case model.KindForeshadowing:
		f, err := p.foreshadowingRepo.FindByID(task.EntityID)
		if err != nil {
			return "", 0, err
		}
		return f.EmbeddingText(), f.NovelID, nil
	case model.KindWorldSetting:
		novel, err := p.novelRepo.FindByID(task.EntityID)
		if err != nil {
			return "", 0, err
		}
		return novel.Synopsis, novel.ID, nil
	default:
		return "", 0, fmt.Errorf("未知的实体类型: %s", task.Kind)
	}
}
