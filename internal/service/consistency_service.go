// Package service 实现了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"strings"

	"novel-ai-go/internal/config"
	"novel-ai-go/internal/model"
	"novel-ai-go/internal/repository"
	"novel-ai-go/internal/vector"
	"novel-ai-go/pkg/log"
)

// 预检相似度分级。
const (
	BandHigh   = "high"
	BandMedium = "medium"
	BandLow    = "low"
)

// DuplicationWarning 是预检产出的一条结构化告警。
type DuplicationWarning struct {
	Band       string  `json:"band"`
	EntityID   uint    `json:"entityId"`
	Title      string  `json:"title"`
	Score      float64 `json:"score"`
	Suggestion string  `json:"suggestion"`
}

// PostCheckResult 是后检的结果：CheckFailed 为 true 表示检索本身失败，
// 此时 HasDuplicateContent 恒为 false（失败开放，不阻断创作流程）。
type PostCheckResult struct {
	HasDuplicateContent bool                    `json:"hasDuplicateContent"`
	CheckFailed         bool                    `json:"checkFailed"`
	Matches             []model.SimilarityMatch `json:"matches"`
}

// ConsistencyService 接口定义了围绕章节生成的一致性检查操作。
// 全部方法都是建议型的：内部错误降级为空结果，绝不向创作主流程抛错。
type ConsistencyService interface {
	BuildChapterContext(ctx context.Context, chapter *model.Chapter, excludeIDs ...uint) string
	PreGenerationCheck(ctx context.Context, chapter *model.Chapter) []DuplicationWarning
	PostGenerationCheck(ctx context.Context, novelID uint, chapterID uint, content string) PostCheckResult
}

type consistencyService struct {
	searcher    vector.Searcher
	chapterRepo repository.ChapterRepository
	thresholds  config.ThresholdConfig
}

// NewConsistencyService 创建一个新的 ConsistencyService 实例。
func NewConsistencyService(searcher vector.Searcher, chapterRepo repository.ChapterRepository, thresholds config.ThresholdConfig) ConsistencyService {
	return &consistencyService{
		searcher:    searcher,
		chapterRepo: chapterRepo,
		thresholds:  thresholds,
	}
}

// BuildChapterContext 用章节的标题+概要作为查询，在宽松阈值下检索相关
// 前文，并格式化为提示词可用的上下文块。检索失败时返回空串。
// excludeIDs 在章节自身之外追加排除的实体，如调用方已手工引用的前文。
func (s *consistencyService) BuildChapterContext(ctx context.Context, chapter *model.Chapter, excludeIDs ...uint) string {
	query := strings.TrimSpace(chapter.Title + "\n" + chapter.Summary)
	if query == "" {
		return ""
	}

	exclude := append([]uint{chapter.ID}, excludeIDs...)
	matches, err := s.searcher.FindSimilarDocuments(ctx, chapter.NovelID, query,
		exclude, s.thresholds.ContextLimit, s.thresholds.Context)
	if err != nil {
		log.Warnf("[ConsistencyService] 上下文检索失败, 降级为空上下文, ChapterID: %d, Error: %v", chapter.ID, err)
		return ""
	}
	if len(matches) == 0 {
		return ""
	}
	s.fillChapterTitles(matches)

	var b strings.Builder
	b.WriteString("【相关前文参考】\n")
	for i, m := range matches {
		b.WriteString(fmt.Sprintf("%d. %s（相似度 %.2f）\n", i+1, m.Title, m.Score))
		if m.Preview != "" {
			b.WriteString(fmt.Sprintf("   %s\n", m.Preview))
		}
	}
	log.Infof("[ConsistencyService] 上下文构建完成, ChapterID: %d, 引用前文 %d 条", chapter.ID, len(matches))
	return b.String()
}

// PreGenerationCheck 在生成前用较低的地板阈值拉取更宽的候选集，
// 按与配置阈值的距离分为 high/medium/low 三档并给出建议。
// 建议型检查：内部错误降级为无告警。
func (s *consistencyService) PreGenerationCheck(ctx context.Context, chapter *model.Chapter) []DuplicationWarning {
	query := strings.TrimSpace(chapter.Title + "\n" + chapter.Summary)
	if query == "" {
		return nil
	}

	t := s.thresholds.PreCheck
	floor := t - 0.25
	matches, err := s.searcher.FindSimilarDocuments(ctx, chapter.NovelID, query,
		[]uint{chapter.ID}, s.thresholds.ContextLimit, floor)
	if err != nil {
		log.Warnf("[ConsistencyService] 生成前查重检索失败, 降级为无告警, ChapterID: %d, Error: %v", chapter.ID, err)
		return nil
	}

	s.fillChapterTitles(matches)

	var warnings []DuplicationWarning
	for _, m := range matches {
		w := DuplicationWarning{
			EntityID: m.EntityID,
			Title:    m.Title,
			Score:    m.Score,
		}
		switch {
		case m.Score >= t:
			w.Band = BandHigh
			w.Suggestion = "与已有章节高度相似，建议调整本章大纲或合并情节"
		case m.Score >= t-0.15:
			w.Band = BandMedium
			w.Suggestion = "与已有章节情节接近，注意差异化处理"
		default:
			w.Band = BandLow
			w.Suggestion = "存在少量相似元素，可作为前文呼应参考"
		}
		warnings = append(warnings, w)
	}
	if len(warnings) > 0 {
		log.Infof("[ConsistencyService] 生成前查重完成, ChapterID: %d, 告警 %d 条", chapter.ID, len(warnings))
	}
	return warnings
}

// PostGenerationCheck 取新生成内容的前 N 个字符作为查询，在严格阈值下
// 检查是否与存量内容重复。检索失败时报告"未重复但检查失败"。
func (s *consistencyService) PostGenerationCheck(ctx context.Context, novelID uint, chapterID uint, content string) PostCheckResult {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) == 0 {
		return PostCheckResult{}
	}
	n := s.thresholds.PostCheckChars
	if len(runes) > n {
		runes = runes[:n]
	}

	matches, err := s.searcher.FindSimilarDocuments(ctx, novelID, string(runes),
		[]uint{chapterID}, s.thresholds.ContextLimit, s.thresholds.PostCheck)
	if err != nil {
		log.Warnf("[ConsistencyService] 生成后查重检索失败, NovelID: %d, ChapterID: %d, Error: %v", novelID, chapterID, err)
		return PostCheckResult{CheckFailed: true}
	}

	result := PostCheckResult{
		HasDuplicateContent: len(matches) > 0,
		Matches:             matches,
	}
	if result.HasDuplicateContent {
		s.fillChapterTitles(result.Matches)
		log.Warnf("[ConsistencyService] 生成后查重发现重复内容, ChapterID: %d, 命中 %d 条, 建议重新生成", chapterID, len(matches))
	}
	return result
}

// fillChapterTitles 为章节类结果补充标题。标题仅用于展示，查不到时留空。
func (s *consistencyService) fillChapterTitles(matches []model.SimilarityMatch) {
	var ids []uint
	for _, m := range matches {
		if m.EntityKind == model.KindChapter && m.Title == "" {
			ids = append(ids, m.EntityID)
		}
	}
	if len(ids) == 0 {
		return
	}
	chapters, err := s.chapterRepo.FindBatchByIDs(ids)
	if err != nil {
		log.Warnf("[ConsistencyService] 批量读取章节标题失败: %v", err)
		return
	}
	titles := make(map[uint]string, len(chapters))
	for _, c := range chapters {
		titles[c.ID] = c.Title
	}
	for i := range matches {
		if matches[i].EntityKind == model.KindChapter {
			matches[i].Title = titles[matches[i].EntityID]
		}
	}
}
