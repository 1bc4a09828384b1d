package service

import (
	"context"
	"fmt"
	"sort"

	"novel-ai-go/internal/config"
	"novel-ai-go/internal/model"
	"novel-ai-go/internal/repository"
	"novel-ai-go/pkg/log"
	"novel-ai-go/pkg/tasks"
	"novel-ai-go/pkg/vecmath"
)

// ForeshadowingMatch 是一条伏笔回收候选。
type ForeshadowingMatch struct {
	ForeshadowingID uint    `json:"foreshadowingId"`
	Title           string  `json:"title"`
	Score           float64 `json:"score"`
	AutoResolved    bool    `json:"autoResolved"`
}

// ForeshadowingService 接口定义了伏笔管理与回收匹配操作。
type ForeshadowingService interface {
	Create(ctx context.Context, f *model.Foreshadowing) error
	Update(ctx context.Context, f *model.Foreshadowing) error
	GetByID(id uint) (*model.Foreshadowing, error)
	ListByNovel(novelID uint) ([]model.Foreshadowing, error)
	Delete(ctx context.Context, id uint) error
	MatchResolutions(ctx context.Context, novelID uint, chapterID uint, autoUpdate bool) ([]ForeshadowingMatch, error)
}

// EmbeddingEnqueuer 把实体保存后的向量化任务投递到队列。
// 投递失败只记日志，绝不影响调用方的保存操作。
type EmbeddingEnqueuer interface {
	ProduceEmbeddingTask(task tasks.EmbeddingTask) error
}

// DocumentRemover 是实体删除时级联清理向量数据所需的最小接口。
type DocumentRemover interface {
	DeleteDocument(ctx context.Context, kind string, entityID, novelID uint) error
}

type foreshadowingService struct {
	repo          repository.ForeshadowingRepository
	embeddingRepo repository.DocumentEmbeddingRepository
	enqueuer      EmbeddingEnqueuer
	remover       DocumentRemover
	thresholds    config.ThresholdConfig
}

// NewForeshadowingService 创建一个新的 ForeshadowingService 实例。
func NewForeshadowingService(
	repo repository.ForeshadowingRepository,
	embeddingRepo repository.DocumentEmbeddingRepository,
	enqueuer EmbeddingEnqueuer,
	remover DocumentRemover,
	thresholds config.ThresholdConfig,
) ForeshadowingService {
	return &foreshadowingService{
		repo:          repo,
		embeddingRepo: embeddingRepo,
		enqueuer:      enqueuer,
		remover:       remover,
		thresholds:    thresholds,
	}
}

func (s *foreshadowingService) Create(ctx context.Context, f *model.Foreshadowing) error {
	if err := s.repo.Create(f); err != nil {
		return err
	}
	enqueueEmbedding(s.enqueuer, model.KindForeshadowing, f.ID, f.NovelID)
	return nil
}

func (s *foreshadowingService) Update(ctx context.Context, f *model.Foreshadowing) error {
	if err := s.repo.Update(f); err != nil {
		return err
	}
	enqueueEmbedding(s.enqueuer, model.KindForeshadowing, f.ID, f.NovelID)
	return nil
}

func (s *foreshadowingService) GetByID(id uint) (*model.Foreshadowing, error) {
	return s.repo.FindByID(id)
}

func (s *foreshadowingService) ListByNovel(novelID uint) ([]model.Foreshadowing, error) {
	return s.repo.FindByNovelID(novelID)
}

func (s *foreshadowingService) Delete(ctx context.Context, id uint) error {
	f, err := s.repo.FindByID(id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	if err := s.remover.DeleteDocument(ctx, model.KindForeshadowing, id, f.NovelID); err != nil {
		log.Warnf("[ForeshadowingService] 级联清理向量数据失败, ID: %d, Error: %v", id, err)
	}
	return nil
}

// MatchResolutions 把新章节的文档向量与小说内全部未回收伏笔的存量向量
// 逐一做余弦比较，返回达到阈值的候选（相似度降序）。
// autoUpdate 为 true 时只把相似度最高且超过严格阈值的那一条标记为已回收，
// 单条回收策略是为了避免一章误回收多条伏笔的连锁误判。
func (s *foreshadowingService) MatchResolutions(ctx context.Context, novelID uint, chapterID uint, autoUpdate bool) ([]ForeshadowingMatch, error) {
	chapterRecord, err := s.embeddingRepo.FindByEntity(model.KindChapter, chapterID)
	if err != nil {
		return nil, fmt.Errorf("章节 %d 的向量记录不存在，请先完成向量化: %w", chapterID, err)
	}
	if len(chapterRecord.DocVector) == 0 {
		return nil, fmt.Errorf("章节 %d 的文档向量为空", chapterID)
	}

	unresolved, err := s.repo.FindUnresolvedByNovelID(novelID)
	if err != nil {
		return nil, err
	}
	if len(unresolved) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(unresolved))
	titles := make(map[uint]string, len(unresolved))
	for _, f := range unresolved {
		ids = append(ids, f.ID)
		titles[f.ID] = f.Title
	}
	records, err := s.embeddingRepo.FindBatchByEntities(model.KindForeshadowing, ids)
	if err != nil {
		return nil, err
	}

	var matches []ForeshadowingMatch
	for _, r := range records {
		if len(r.DocVector) == 0 {
			continue
		}
		score, err := vecmath.CosineSimilarity(chapterRecord.DocVector, r.DocVector)
		if err != nil {
			// 维度不一致说明向量模型升级后尚未重建，跳过该条
			log.Warnf("[ForeshadowingService] 伏笔 %d 相似度计算失败: %v", r.EntityID, err)
			continue
		}
		if score >= s.thresholds.Foreshadow {
			matches = append(matches, ForeshadowingMatch{
				ForeshadowingID: r.EntityID,
				Title:           titles[r.EntityID],
				Score:           score,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ForeshadowingID < matches[j].ForeshadowingID
	})

	if autoUpdate && len(matches) > 0 && matches[0].Score >= s.thresholds.ForeshadowResolve {
		best := &matches[0]
		if err := s.repo.MarkResolved(best.ForeshadowingID, chapterID); err != nil {
			log.Errorf("[ForeshadowingService] 自动回收伏笔失败, ID: %d, Error: %v", best.ForeshadowingID, err)
		} else {
			best.AutoResolved = true
			log.Infof("[ForeshadowingService] 伏笔 %d 已自动回收并关联到章节 %d, 相似度: %.3f",
				best.ForeshadowingID, chapterID, best.Score)
		}
	}

	log.Infof("[ForeshadowingService] 伏笔匹配完成, NovelID: %d, ChapterID: %d, 未回收 %d 条, 命中 %d 条",
		novelID, chapterID, len(unresolved), len(matches))
	return matches, nil
}

// enqueueEmbedding 投递向量化任务。队列不可用时只记日志，不影响保存。
func enqueueEmbedding(enqueuer EmbeddingEnqueuer, kind string, entityID, novelID uint) {
	if enqueuer == nil {
		return
	}
	task := tasks.EmbeddingTask{Kind: kind, EntityID: entityID, NovelID: novelID}
	if err := enqueuer.ProduceEmbeddingTask(task); err != nil {
		log.Errorf("[Service] 投递向量化任务失败, Kind: %s, EntityID: %d, Error: %v", kind, entityID, err)
	}
}
