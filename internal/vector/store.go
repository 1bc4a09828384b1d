// Package vector 实现文档与分块级向量的存储、更新与相似度检索。
package vector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"novel-ai-go/internal/config"
	"novel-ai-go/internal/model"
	"novel-ai-go/internal/repository"
	"novel-ai-go/pkg/cache"
	"novel-ai-go/pkg/chunker"
	"novel-ai-go/pkg/embedding"
	"novel-ai-go/pkg/es"
	"novel-ai-go/pkg/log"
)

// previewRunes 是检索结果预览文本的最大长度。
const previewRunes = 80

// recallFactor 是向 ES 请求的召回倍数，留出客户端二次过滤的余量。
const recallFactor = 3

// SearchIndex 抽象向量近邻索引的最小能力，由 pkg/es 的客户端实现。
type SearchIndex interface {
	IndexDoc(ctx context.Context, doc model.EsVectorDoc) error
	DeleteByEntity(ctx context.Context, kind string, entityID uint) error
	SearchSimilar(ctx context.Context, p es.SearchParams) ([]es.Hit, error)
}

// Searcher 是检索消费方（一致性检查、伏笔匹配等）依赖的查询视图。
type Searcher interface {
	FindSimilarDocuments(ctx context.Context, novelID uint, queryText string, excludeIDs []uint, limit int, threshold float64) ([]model.SimilarityMatch, error)
	FindSimilarChunks(ctx context.Context, novelID uint, queryText string, excludeIDs []uint, limit int, threshold float64) ([]model.SimilarityMatch, error)
}

// Store 组合分块器、向量生成器、MySQL 记录仓库、ES 索引与缓存层，
// 对外提供 upsert 与相似度检索。
type Store struct {
	generator    *embedding.Generator
	batch        *embedding.BatchProcessor
	records      repository.DocumentEmbeddingRepository
	index        SearchIndex
	cache        *cache.Cache
	chunkSize    int
	modelVersion string
}

// NewStore 创建向量存储。chunkSize 与模型版本取自 embedding 配置。
func NewStore(
	generator *embedding.Generator,
	batch *embedding.BatchProcessor,
	records repository.DocumentEmbeddingRepository,
	index SearchIndex,
	cacheTier *cache.Cache,
	cfg config.EmbeddingConfig,
) *Store {
	return &Store{
		generator:    generator,
		batch:        batch,
		records:      records,
		index:        index,
		cache:        cacheTier,
		chunkSize:    cfg.ChunkSizeChars,
		modelVersion: cfg.Model,
	}
}

// UpsertDocument 为一个实体计算文档级向量与全部分块向量并原子落库。
// 空文本静默跳过（no-op，不是错误）。已有记录时替换全部向量字段并
// 重算分块数，记录 ID 保持不变；随后重建 ES 向量文档并作废相关缓存。
func (s *Store) UpsertDocument(ctx context.Context, kind string, entityID, novelID uint, text string) error {
	if strings.TrimSpace(text) == "" {
		log.Debugf("[VectorStore] 实体 %s:%d 文本为空, 跳过向量化", kind, entityID)
		return nil
	}

	docVector, err := s.generator.EmbedDocument(ctx, text)
	if err != nil {
		return err
	}

	chunks := chunker.Split(text, s.chunkSize)
	chunkVectors := make([][]float32, 0, len(chunks))
	for i, chunk := range chunks {
		v, err := s.generator.EmbedDocument(ctx, chunk)
		if err != nil {
			return fmt.Errorf("分块 %d 向量化失败: %w", i, err)
		}
		chunkVectors = append(chunkVectors, v)
	}

	record := &model.DocumentEmbedding{
		EntityKind:   kind,
		EntityID:     entityID,
		NovelID:      novelID,
		SourceText:   text,
		DocVector:    docVector,
		ChunkVectors: chunkVectors,
		ChunkCount:   len(chunkVectors),
		ChunkSize:    s.chunkSize,
		ModelVersion: s.modelVersion,
	}
	if err := s.records.Upsert(record); err != nil {
		return &StorageError{Op: "upsert", Err: err}
	}

	if err := s.reindexEntity(ctx, record); err != nil {
		return err
	}

	// 文本已变更：作废实体向量缓存与该小说的全部查询结果缓存
	s.cache.Invalidate(ctx, cache.VectorKey(entityID))
	s.cache.InvalidatePattern(ctx, fmt.Sprintf("query:%d:", novelID))
	s.cache.SetVector(ctx, entityID, docVector)

	log.Infof("[VectorStore] 实体 %s:%d 向量化完成, 分块数: %d", kind, entityID, len(chunkVectors))
	return nil
}

// reindexEntity 先清掉实体旧的 ES 向量文档再写入新的一组。
func (s *Store) reindexEntity(ctx context.Context, record *model.DocumentEmbedding) error {
	if err := s.index.DeleteByEntity(ctx, record.EntityKind, record.EntityID); err != nil {
		return &StorageError{Op: "es-delete", Err: err}
	}

	docs := make([]model.EsVectorDoc, 0, len(record.ChunkVectors)+1)
	docs = append(docs, model.EsVectorDoc{
		VectorID:     model.BuildVectorID(record.EntityKind, record.EntityID, model.DocLevelChunk),
		EntityKind:   record.EntityKind,
		EntityID:     record.EntityID,
		NovelID:      record.NovelID,
		ChunkID:      model.DocLevelChunk,
		Vector:       record.DocVector,
		ModelVersion: record.ModelVersion,
	})
	for i, v := range record.ChunkVectors {
		docs = append(docs, model.EsVectorDoc{
			VectorID:     model.BuildVectorID(record.EntityKind, record.EntityID, i),
			EntityKind:   record.EntityKind,
			EntityID:     record.EntityID,
			NovelID:      record.NovelID,
			ChunkID:      i,
			Vector:       v,
			ModelVersion: record.ModelVersion,
		})
	}
	for _, doc := range docs {
		if err := s.index.IndexDoc(ctx, doc); err != nil {
			return &StorageError{Op: "es-index", Err: err}
		}
	}
	return nil
}

// DeleteDocument 随实体删除级联清理向量记录、索引文档与缓存。
func (s *Store) DeleteDocument(ctx context.Context, kind string, entityID, novelID uint) error {
	if err := s.records.DeleteByEntity(kind, entityID); err != nil {
		return &StorageError{Op: "delete", Err: err}
	}
	if err := s.index.DeleteByEntity(ctx, kind, entityID); err != nil {
		return &StorageError{Op: "es-delete", Err: err}
	}
	s.cache.Invalidate(ctx, cache.VectorKey(entityID))
	s.cache.InvalidatePattern(ctx, fmt.Sprintf("query:%d:", novelID))
	return nil
}

// FindSimilarDocuments 在 novel 范围内按文档级向量做余弦检索。
// 返回结果按相似度非递增排列，并列时按实体 ID 升序保证确定性；
// 绝不返回低于阈值或被排除的实体。
func (s *Store) FindSimilarDocuments(ctx context.Context, novelID uint, queryText string, excludeIDs []uint, limit int, threshold float64) ([]model.SimilarityMatch, error) {
	return s.findSimilar(ctx, novelID, queryText, excludeIDs, limit, threshold, false)
}

// FindSimilarChunks 与 FindSimilarDocuments 相同，但逐个比较分块向量，
// 粒度更细；分块文本按写入时的分块大小对存量文本重新切分得到。
func (s *Store) FindSimilarChunks(ctx context.Context, novelID uint, queryText string, excludeIDs []uint, limit int, threshold float64) ([]model.SimilarityMatch, error) {
	return s.findSimilar(ctx, novelID, queryText, excludeIDs, limit, threshold, true)
}

func (s *Store) findSimilar(ctx context.Context, novelID uint, queryText string, excludeIDs []uint, limit int, threshold float64, chunkLevel bool) ([]model.SimilarityMatch, error) {
	if limit <= 0 {
		limit = 5
	}

	granularity := "doc"
	if chunkLevel {
		granularity = "chunk"
	}
	// 排除列表参与键计算，避免不同调用方互相污染缓存
	cacheKey := cache.QueryKey(novelID, fmt.Sprintf("%s|%v|%d|%.3f|%s", granularity, excludeIDs, limit, threshold, queryText))
	var cached []model.SimilarityMatch
	if s.cache.Get(ctx, cacheKey, &cached) {
		log.Debugf("[VectorStore] 查询缓存命中, novelID: %d", novelID)
		return cached, nil
	}

	queryVector, err := s.generator.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, err
	}

	hits, err := s.index.SearchSimilar(ctx, es.SearchParams{
		NovelID:     novelID,
		QueryVector: queryVector,
		ChunkLevel:  chunkLevel,
		ExcludeIDs:  excludeIDs,
		Size:        limit * recallFactor,
		MinScore:    threshold,
	})
	if err != nil {
		return nil, &StorageError{Op: "search", Err: err}
	}

	matches := s.assembleMatches(hits, excludeIDs, threshold, limit)
	s.cache.SetQuery(ctx, cacheKey, matches)
	return matches, nil
}

// assembleMatches 对命中做客户端兜底过滤、确定性排序与截断，并补充预览文本。
func (s *Store) assembleMatches(hits []es.Hit, excludeIDs []uint, threshold float64, limit int) []model.SimilarityMatch {
	excluded := make(map[uint]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	matches := make([]model.SimilarityMatch, 0, len(hits))
	for _, h := range hits {
		if _, ok := excluded[h.Doc.EntityID]; ok {
			continue
		}
		if h.Score < threshold {
			continue
		}
		matches = append(matches, model.SimilarityMatch{
			EntityKind: h.Doc.EntityKind,
			EntityID:   h.Doc.EntityID,
			NovelID:    h.Doc.NovelID,
			ChunkID:    h.Doc.ChunkID,
			Score:      h.Score,
		})
	}

	// 相似度降序；并列时按实体 ID（即创建顺序）升序、分块序号升序
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].EntityID != matches[j].EntityID {
			return matches[i].EntityID < matches[j].EntityID
		}
		return matches[i].ChunkID < matches[j].ChunkID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	s.fillPreviews(matches)
	return matches
}

// fillPreviews 从存量记录补充每条结果的预览文本。
// 分块结果的文本用写入时的分块大小重新切分得到；读取失败只降级为空预览。
func (s *Store) fillPreviews(matches []model.SimilarityMatch) {
	byKind := make(map[string][]uint)
	for _, m := range matches {
		byKind[m.EntityKind] = append(byKind[m.EntityKind], m.EntityID)
	}

	records := make(map[string]*model.DocumentEmbedding)
	for kind, ids := range byKind {
		batch, err := s.records.FindBatchByEntities(kind, ids)
		if err != nil {
			log.Warnf("[VectorStore] 批量读取 %s 向量记录失败, 预览降级为空: %v", kind, err)
			continue
		}
		for _, r := range batch {
			records[fmt.Sprintf("%s:%d", r.EntityKind, r.EntityID)] = r
		}
	}

	for i := range matches {
		key := fmt.Sprintf("%s:%d", matches[i].EntityKind, matches[i].EntityID)
		record, ok := records[key]
		if !ok {
			continue
		}
		text := record.SourceText
		if matches[i].ChunkID >= 0 {
			chunks := chunker.Split(record.SourceText, record.ChunkSize)
			if matches[i].ChunkID < len(chunks) {
				text = chunks[matches[i].ChunkID]
			}
		}
		matches[i].Preview = truncateRunes(text, previewRunes)
	}
}

// truncateRunes 按 rune 截断文本并在截断处追加省略号。
func truncateRunes(text string, max int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max]) + "…"
}

// ReindexNovel 用批量工作池重算一部小说全部存量记录的向量并重建索引。
// 模型升级后由管理端触发。单个实体失败不影响其他实体，
// 返回成功实体数与实体总数。
func (s *Store) ReindexNovel(ctx context.Context, novelID uint) (int, int, error) {
	records, err := s.records.FindByNovelID(novelID)
	if err != nil {
		return 0, 0, &StorageError{Op: "scan", Err: err}
	}

	var tasks []embedding.BatchTask
	for _, record := range records {
		if strings.TrimSpace(record.SourceText) == "" {
			continue
		}
		tasks = append(tasks, embedding.BatchTask{
			ID:   model.BuildVectorID(record.EntityKind, record.EntityID, model.DocLevelChunk),
			Text: record.SourceText,
			Metadata: map[string]interface{}{
				"kind": record.EntityKind, "entityId": record.EntityID, "chunkId": model.DocLevelChunk,
			},
		})
		for i, chunk := range chunker.Split(record.SourceText, record.ChunkSize) {
			tasks = append(tasks, embedding.BatchTask{
				ID:   model.BuildVectorID(record.EntityKind, record.EntityID, i),
				Text: chunk,
				Metadata: map[string]interface{}{
					"kind": record.EntityKind, "entityId": record.EntityID, "chunkId": i,
				},
			})
		}
	}

	start := time.Now()
	results := s.batch.ProcessBatch(ctx, tasks, func(ctx context.Context, text string) ([]float32, error) {
		return s.generator.EmbedDocument(ctx, text)
	})

	// 按实体归组：该实体的全部任务都成功才重建记录，部分失败则跳过
	vectorsByTask := make(map[string][]float32, len(results))
	failedEntities := make(map[string]struct{})
	for _, r := range results {
		kind := r.Task.Metadata["kind"].(string)
		entityID := r.Task.Metadata["entityId"].(uint)
		entityKey := fmt.Sprintf("%s:%d", kind, entityID)
		if r.Status != embedding.StatusSuccess {
			failedEntities[entityKey] = struct{}{}
			continue
		}
		vectorsByTask[r.Task.ID] = r.Vector
	}

	succeeded, total := 0, 0
	for _, record := range records {
		if strings.TrimSpace(record.SourceText) == "" {
			continue
		}
		total++
		entityKey := fmt.Sprintf("%s:%d", record.EntityKind, record.EntityID)
		if _, failed := failedEntities[entityKey]; failed {
			log.Warnf("[VectorStore] 实体 %s 部分任务失败, 跳过重建", entityKey)
			continue
		}

		record.DocVector = vectorsByTask[model.BuildVectorID(record.EntityKind, record.EntityID, model.DocLevelChunk)]
		chunks := chunker.Split(record.SourceText, record.ChunkSize)
		record.ChunkVectors = make([][]float32, 0, len(chunks))
		for i := range chunks {
			record.ChunkVectors = append(record.ChunkVectors, vectorsByTask[model.BuildVectorID(record.EntityKind, record.EntityID, i)])
		}
		record.ChunkCount = len(record.ChunkVectors)
		record.ModelVersion = s.modelVersion

		if err := s.records.Upsert(record); err != nil {
			log.Errorf("[VectorStore] 实体 %s 重建落库失败: %v", entityKey, err)
			continue
		}
		if err := s.reindexEntity(ctx, record); err != nil {
			log.Errorf("[VectorStore] 实体 %s 重建索引失败: %v", entityKey, err)
			continue
		}
		s.cache.Invalidate(ctx, cache.VectorKey(record.EntityID))
		succeeded++
	}
	s.cache.InvalidatePattern(ctx, fmt.Sprintf("query:%d:", novelID))

	log.Infof("[VectorStore] 小说 %d 重建完成: 成功 %d/%d, 耗时 %v", novelID, succeeded, total, time.Since(start))
	return succeeded, total, nil
}
