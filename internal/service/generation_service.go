package service

import (
	"context"
	"fmt"
	"strings"

	"novel-ai-go/internal/model"
	"novel-ai-go/internal/repository"
	"novel-ai-go/pkg/llm"
	"novel-ai-go/pkg/log"
)

// GenerationResult 是一次章节生成的产出：正文草稿加两侧的建议型检查结果。
type GenerationResult struct {
	Draft       string               `json:"draft"`
	ContextUsed string               `json:"contextUsed"`
	Warnings    []DuplicationWarning `json:"warnings"`
	PostCheck   PostCheckResult      `json:"postCheck"`
}

// GenerationService 接口定义了 AI 章节生成操作。
type GenerationService interface {
	GenerateChapter(ctx context.Context, chapterID uint) (*GenerationResult, error)
}

type generationService struct {
	chapterRepo repository.ChapterRepository
	novelRepo   repository.NovelRepository
	consistency ConsistencyService
	llmClient   llm.Client
}

// NewGenerationService 创建一个新的 GenerationService 实例。
func NewGenerationService(
	chapterRepo repository.ChapterRepository,
	novelRepo repository.NovelRepository,
	consistency ConsistencyService,
	llmClient llm.Client,
) GenerationService {
	return &generationService{
		chapterRepo: chapterRepo,
		novelRepo:   novelRepo,
		consistency: consistency,
		llmClient:   llmClient,
	}
}

// GenerateChapter 为指定章节生成正文草稿。
// 流程：检索前文上下文 + 生成前查重（均为建议型，失败不阻断）→ 调用
// LLM 生成 → 生成后查重。LLM 错误属于前台操作，直接上抛。
// 草稿写回章节并置为待确认状态，由作者在前端确认后定稿。
func (s *generationService) GenerateChapter(ctx context.Context, chapterID uint) (*GenerationResult, error) {
	chapter, err := s.chapterRepo.FindByID(chapterID)
	if err != nil {
		return nil, err
	}
	novel, err := s.novelRepo.FindByID(chapter.NovelID)
	if err != nil {
		return nil, err
	}

	log.Infof("[GenerationService] 开始生成章节, ChapterID: %d, Title: %s", chapterID, chapter.Title)

	// 1. 建议型检查：上下文 + 生成前查重，失败开放
	contextBlock := s.consistency.BuildChapterContext(ctx, chapter)
	warnings := s.consistency.PreGenerationCheck(ctx, chapter)

	// 2. 组装提示词并调用 LLM
	messages := s.buildMessages(novel, chapter, contextBlock, warnings)
	draft, err := s.llmClient.Chat(ctx, messages, nil)
	if err != nil {
		log.Errorf("[GenerationService] LLM 生成失败, ChapterID: %d, Error: %v", chapterID, err)
		return nil, fmt.Errorf("章节生成失败: %w", err)
	}
	draft = strings.TrimSpace(draft)

	// 3. 生成后查重（建议型）
	postCheck := s.consistency.PostGenerationCheck(ctx, chapter.NovelID, chapterID, draft)

	// 4. 草稿写回章节，置为待确认
	chapter.Content = draft
	chapter.Status = model.ChapterStatusGenerated
	if err := s.chapterRepo.Update(chapter); err != nil {
		return nil, err
	}

	log.Infof("[GenerationService] 章节生成完成, ChapterID: %d, 草稿长度: %d, 重复告警: %v",
		chapterID, len([]rune(draft)), postCheck.HasDuplicateContent)
	return &GenerationResult{
		Draft:       draft,
		ContextUsed: contextBlock,
		Warnings:    warnings,
		PostCheck:   postCheck,
	}, nil
}

// buildMessages 把小说设定、前文上下文与查重提示组装为对话消息。
func (s *generationService) buildMessages(novel *model.Novel, chapter *model.Chapter, contextBlock string, warnings []DuplicationWarning) []llm.Message {
	var system strings.Builder
	system.WriteString("你是一位长篇小说写作助手，请根据给定的大纲续写章节正文，保持与前文设定一致。\n")
	system.WriteString(fmt.Sprintf("作品：《%s》", novel.Title))
	if novel.Genre != "" {
		system.WriteString(fmt.Sprintf("，类型：%s", novel.Genre))
	}
	system.WriteString("\n")
	if novel.Synopsis != "" {
		system.WriteString("【世界观设定】\n" + novel.Synopsis + "\n")
	}
	if contextBlock != "" {
		system.WriteString(contextBlock)
	}
	for _, w := range warnings {
		if w.Band == BandHigh {
			system.WriteString(fmt.Sprintf("注意：本章大纲与已有章节《%s》高度相似，请避免重复情节。\n", w.Title))
		}
	}

	user := fmt.Sprintf("请写出第%d卷第%d章《%s》的正文。\n本章大纲：%s",
		chapter.VolumeNo, chapter.ChapterNo, chapter.Title, chapter.Summary)

	return []llm.Message{
		{Role: "system", Content: system.String()},
		{Role: "user", Content: user},
	}
}
