package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-ai-go/internal/model"
	"novel-ai-go/pkg/tasks"
)

type fakeForeshadowingRepo struct {
	rows     map[uint]*model.Foreshadowing
	resolved map[uint]uint // foreshadowingID -> chapterID
}

func newFakeForeshadowingRepo() *fakeForeshadowingRepo {
	return &fakeForeshadowingRepo{
		rows:     make(map[uint]*model.Foreshadowing),
		resolved: make(map[uint]uint),
	}
}

func (f *fakeForeshadowingRepo) Create(m *model.Foreshadowing) error {
	if m.ID == 0 {
		m.ID = uint(len(f.rows) + 1)
	}
	f.rows[m.ID] = m
	return nil
}
func (f *fakeForeshadowingRepo) Update(m *model.Foreshadowing) error { f.rows[m.ID] = m; return nil }
func (f *fakeForeshadowingRepo) FindByID(id uint) (*model.Foreshadowing, error) {
	if m, ok := f.rows[id]; ok {
		return m, nil
	}
	return nil, errors.New("foreshadowing not found")
}
func (f *fakeForeshadowingRepo) FindByNovelID(novelID uint) ([]model.Foreshadowing, error) {
	var out []model.Foreshadowing
	for _, m := range f.rows {
		if m.NovelID == novelID {
			out = append(out, *m)
		}
	}
	return out, nil
}
func (f *fakeForeshadowingRepo) FindUnresolvedByNovelID(novelID uint) ([]model.Foreshadowing, error) {
	var out []model.Foreshadowing
	for _, m := range f.rows {
		if m.NovelID == novelID && !m.Resolved {
			out = append(out, *m)
		}
	}
	return out, nil
}
func (f *fakeForeshadowingRepo) MarkResolved(id uint, chapterID uint) error {
	m, ok := f.rows[id]
	if !ok {
		return errors.New("foreshadowing not found")
	}
	now := time.Now()
	m.Resolved = true
	m.ResolvedChapterID = &chapterID
	m.ResolvedAt = &now
	f.resolved[id] = chapterID
	return nil
}
func (f *fakeForeshadowingRepo) Delete(id uint) error { delete(f.rows, id); return nil }

type fakeEmbeddingRepo struct {
	rows map[string]*model.DocumentEmbedding
}

func newFakeEmbeddingRepo() *fakeEmbeddingRepo {
	return &fakeEmbeddingRepo{rows: make(map[string]*model.DocumentEmbedding)}
}

func (f *fakeEmbeddingRepo) put(kind string, id uint, novelID uint, vec []float32) {
	f.rows[fmt.Sprintf("%s:%d", kind, id)] = &model.DocumentEmbedding{
		EntityKind: kind, EntityID: id, NovelID: novelID, DocVector: vec,
	}
}
func (f *fakeEmbeddingRepo) Upsert(record *model.DocumentEmbedding) error {
	f.rows[fmt.Sprintf("%s:%d", record.EntityKind, record.EntityID)] = record
	return nil
}
func (f *fakeEmbeddingRepo) FindByEntity(kind string, entityID uint) (*model.DocumentEmbedding, error) {
	if r, ok := f.rows[fmt.Sprintf("%s:%d", kind, entityID)]; ok {
		return r, nil
	}
	return nil, errors.New("record not found")
}
func (f *fakeEmbeddingRepo) FindBatchByEntities(kind string, entityIDs []uint) ([]*model.DocumentEmbedding, error) {
	var out []*model.DocumentEmbedding
	for _, id := range entityIDs {
		if r, ok := f.rows[fmt.Sprintf("%s:%d", kind, id)]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}
func (f *fakeEmbeddingRepo) FindByNovelID(novelID uint) ([]*model.DocumentEmbedding, error) {
	var out []*model.DocumentEmbedding
	for _, r := range f.rows {
		if r.NovelID == novelID {
			out = append(out, r)
		}
	}
	return out, nil
}
func (f *fakeEmbeddingRepo) DeleteByEntity(kind string, entityID uint) error {
	delete(f.rows, fmt.Sprintf("%s:%d", kind, entityID))
	return nil
}

type fakeEnqueuer struct {
	produced []tasks.EmbeddingTask
	err      error
}

func (f *fakeEnqueuer) ProduceEmbeddingTask(task tasks.EmbeddingTask) error {
	if f.err != nil {
		return f.err
	}
	f.produced = append(f.produced, task)
	return nil
}

type fakeRemover struct {
	removed []string
}

func (f *fakeRemover) DeleteDocument(ctx context.Context, kind string, entityID, novelID uint) error {
	f.removed = append(f.removed, fmt.Sprintf("%s:%d", kind, entityID))
	return nil
}

func newForeshadowingFixture() (ForeshadowingService, *fakeForeshadowingRepo, *fakeEmbeddingRepo, *fakeEnqueuer) {
	repo := newFakeForeshadowingRepo()
	embRepo := newFakeEmbeddingRepo()
	enqueuer := &fakeEnqueuer{}
	svc := NewForeshadowingService(repo, embRepo, enqueuer, &fakeRemover{}, testThresholds())
	return svc, repo, embRepo, enqueuer
}

// 未回收伏笔与章节向量完全一致：恰好返回一条相似度约 1.0 的匹配；
// autoUpdate 开启时该伏笔被回收并关联到章节。
func TestMatchResolutionsIdenticalVector(t *testing.T) {
	svc, repo, embRepo, _ := newForeshadowingFixture()
	ctx := context.Background()

	require.NoError(t, repo.Create(&model.Foreshadowing{ID: 1, NovelID: 1, Title: "神秘的剑", PlantedChapterID: 2}))
	v := []float32{0.3, 0.5, 0.2}
	embRepo.put(model.KindChapter, 10, 1, v)
	embRepo.put(model.KindForeshadowing, 1, 1, v)

	matches, err := svc.MatchResolutions(ctx, 1, 10, false)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, uint(1), matches[0].ForeshadowingID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.False(t, matches[0].AutoResolved)
	assert.Empty(t, repo.resolved, "autoUpdate 关闭时不得修改状态")

	matches, err = svc.MatchResolutions(ctx, 1, 10, true)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.True(t, matches[0].AutoResolved)
	assert.Equal(t, uint(10), repo.resolved[1], "伏笔应关联到回收章节")
	resolved, _ := repo.FindByID(1)
	assert.True(t, resolved.Resolved)
}

// 多条候选超过严格阈值时也只回收最优的一条，避免连锁误判。
func TestMatchResolutionsAutoUpdateOnlyBest(t *testing.T) {
	svc, repo, embRepo, _ := newForeshadowingFixture()
	ctx := context.Background()

	require.NoError(t, repo.Create(&model.Foreshadowing{ID: 1, NovelID: 1, Title: "神秘的剑", PlantedChapterID: 2}))
	require.NoError(t, repo.Create(&model.Foreshadowing{ID: 2, NovelID: 1, Title: "预言之书", PlantedChapterID: 3}))
	embRepo.put(model.KindChapter, 10, 1, []float32{1, 0, 0})
	embRepo.put(model.KindForeshadowing, 1, 1, []float32{1, 0, 0})    // 相似度 1.0
	embRepo.put(model.KindForeshadowing, 2, 1, []float32{1, 0.25, 0}) // 高但次优

	matches, err := svc.MatchResolutions(ctx, 1, 10, true)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, uint(1), matches[0].ForeshadowingID)
	assert.True(t, matches[0].AutoResolved)
	assert.False(t, matches[1].AutoResolved)
	assert.Len(t, repo.resolved, 1)
}

func TestMatchResolutionsBelowThresholdExcluded(t *testing.T) {
	svc, repo, embRepo, _ := newForeshadowingFixture()

	require.NoError(t, repo.Create(&model.Foreshadowing{ID: 1, NovelID: 1, Title: "无关伏笔", PlantedChapterID: 2}))
	embRepo.put(model.KindChapter, 10, 1, []float32{1, 0, 0})
	embRepo.put(model.KindForeshadowing, 1, 1, []float32{0, 1, 0}) // 正交，相似度 0

	matches, err := svc.MatchResolutions(context.Background(), 1, 10, true)
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Empty(t, repo.resolved)
}

func TestMatchResolutionsSkipsResolvedNotes(t *testing.T) {
	svc, repo, embRepo, _ := newForeshadowingFixture()

	resolved := &model.Foreshadowing{ID: 1, NovelID: 1, Title: "已回收", PlantedChapterID: 2, Resolved: true}
	require.NoError(t, repo.Create(resolved))
	v := []float32{1, 0, 0}
	embRepo.put(model.KindChapter, 10, 1, v)
	embRepo.put(model.KindForeshadowing, 1, 1, v)

	matches, err := svc.MatchResolutions(context.Background(), 1, 10, false)
	require.NoError(t, err)
	assert.Empty(t, matches, "已回收伏笔不参与匹配")
}

func TestMatchResolutionsMissingChapterVector(t *testing.T) {
	svc, _, _, _ := newForeshadowingFixture()

	_, err := svc.MatchResolutions(context.Background(), 1, 99, false)
	assert.Error(t, err, "章节尚未向量化时应显式报错")
}

func TestCreateEnqueuesEmbeddingTask(t *testing.T) {
	svc, _, _, enqueuer := newForeshadowingFixture()

	f := &model.Foreshadowing{ID: 5, NovelID: 1, Title: "新伏笔", Content: "线索", PlantedChapterID: 2}
	require.NoError(t, svc.Create(context.Background(), f))
	require.Len(t, enqueuer.produced, 1)
	assert.Equal(t, tasks.EmbeddingTask{Kind: model.KindForeshadowing, EntityID: 5, NovelID: 1}, enqueuer.produced[0])
}

func TestCreateSurvivesEnqueueFailure(t *testing.T) {
	repo := newFakeForeshadowingRepo()
	enqueuer := &fakeEnqueuer{err: errors.New("kafka down")}
	svc := NewForeshadowingService(repo, newFakeEmbeddingRepo(), enqueuer, &fakeRemover{}, testThresholds())

	f := &model.Foreshadowing{ID: 5, NovelID: 1, Title: "新伏笔", PlantedChapterID: 2}
	require.NoError(t, svc.Create(context.Background(), f), "队列不可用不得影响保存")
	_, err := repo.FindByID(5)
	assert.NoError(t, err)
}
