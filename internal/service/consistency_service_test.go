package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-ai-go/internal/config"
	"novel-ai-go/internal/model"
)

// fakeSearcher 返回预设的检索结果，并记录收到的查询参数。
type fakeSearcher struct {
	matches       []model.SimilarityMatch
	err           error
	lastQuery     string
	lastExclude   []uint
	lastThreshold float64
}

func (f *fakeSearcher) FindSimilarDocuments(ctx context.Context, novelID uint, queryText string, excludeIDs []uint, limit int, threshold float64) ([]model.SimilarityMatch, error) {
	f.lastQuery = queryText
	f.lastExclude = excludeIDs
	f.lastThreshold = threshold
	if f.err != nil {
		return nil, f.err
	}
	var out []model.SimilarityMatch
	for _, m := range f.matches {
		if m.Score >= threshold {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeSearcher) FindSimilarChunks(ctx context.Context, novelID uint, queryText string, excludeIDs []uint, limit int, threshold float64) ([]model.SimilarityMatch, error) {
	return f.FindSimilarDocuments(ctx, novelID, queryText, excludeIDs, limit, threshold)
}

// fakeChapterRepo 只实现标题补充所需的方法。
type fakeChapterRepo struct {
	chapters map[uint]*model.Chapter
}

func (f *fakeChapterRepo) Create(c *model.Chapter) error { f.chapters[c.ID] = c; return nil }
func (f *fakeChapterRepo) Update(c *model.Chapter) error { f.chapters[c.ID] = c; return nil }
func (f *fakeChapterRepo) FindByID(id uint) (*model.Chapter, error) {
	if c, ok := f.chapters[id]; ok {
		return c, nil
	}
	return nil, errors.New("chapter not found")
}
func (f *fakeChapterRepo) FindByNovelID(novelID uint) ([]model.Chapter, error) {
	var out []model.Chapter
	for _, c := range f.chapters {
		if c.NovelID == novelID {
			out = append(out, *c)
		}
	}
	return out, nil
}
func (f *fakeChapterRepo) FindBatchByIDs(ids []uint) ([]*model.Chapter, error) {
	var out []*model.Chapter
	for _, id := range ids {
		if c, ok := f.chapters[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}
func (f *fakeChapterRepo) Delete(id uint) error { delete(f.chapters, id); return nil }

func testThresholds() config.ThresholdConfig {
	return config.ThresholdConfig{
		Context:           0.6,
		Chunk:             0.75,
		PreCheck:          0.75,
		PostCheck:         0.85,
		Foreshadow:        0.8,
		ForeshadowResolve: 0.85,
		ContextLimit:      5,
		PostCheckChars:    500,
	}
}

func newConsistencyFixture(searcher *fakeSearcher) (ConsistencyService, *fakeChapterRepo) {
	repo := &fakeChapterRepo{chapters: map[uint]*model.Chapter{
		2: {ID: 2, NovelID: 1, Title: "龙之觉醒"},
		3: {ID: 3, NovelID: 1, Title: "古堡疑云"},
	}}
	return NewConsistencyService(searcher, repo, testThresholds()), repo
}

func TestBuildChapterContextFormatsMatches(t *testing.T) {
	searcher := &fakeSearcher{matches: []model.SimilarityMatch{
		{EntityKind: model.KindChapter, EntityID: 2, Score: 0.82, Preview: "恶龙在山谷中苏醒"},
		{EntityKind: model.KindChapter, EntityID: 3, Score: 0.65, Preview: "古堡的地下室"},
	}}
	svc, _ := newConsistencyFixture(searcher)

	chapter := &model.Chapter{ID: 10, NovelID: 1, Title: "决战", Summary: "英雄与恶龙决战"}
	block := svc.BuildChapterContext(context.Background(), chapter)

	require.NotEmpty(t, block)
	assert.Contains(t, block, "相关前文参考")
	assert.Contains(t, block, "龙之觉醒")
	assert.Contains(t, block, "恶龙在山谷中苏醒")
	assert.Contains(t, block, "0.82")
	// 排除本章自身
	assert.Equal(t, []uint{10}, searcher.lastExclude)
	assert.InDelta(t, 0.6, searcher.lastThreshold, 1e-9)
}

func TestBuildChapterContextExtraExcludes(t *testing.T) {
	searcher := &fakeSearcher{}
	svc, _ := newConsistencyFixture(searcher)

	chapter := &model.Chapter{ID: 10, NovelID: 1, Title: "决战", Summary: "英雄与恶龙决战"}
	svc.BuildChapterContext(context.Background(), chapter, 2, 3)

	// 本章自身 + 调用方追加的排除项
	assert.Equal(t, []uint{10, 2, 3}, searcher.lastExclude)
}

func TestBuildChapterContextFailsOpenToEmpty(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("es unavailable")}
	svc, _ := newConsistencyFixture(searcher)

	block := svc.BuildChapterContext(context.Background(), &model.Chapter{ID: 10, NovelID: 1, Title: "决战"})
	assert.Empty(t, block)
}

func TestBuildChapterContextBlankQuery(t *testing.T) {
	searcher := &fakeSearcher{}
	svc, _ := newConsistencyFixture(searcher)

	block := svc.BuildChapterContext(context.Background(), &model.Chapter{ID: 10, NovelID: 1})
	assert.Empty(t, block)
	assert.Empty(t, searcher.lastQuery, "空查询不应触发检索")
}

func TestPreGenerationCheckBands(t *testing.T) {
	// 阈值 0.75：high ≥0.75，medium [0.60,0.75)，low [0.50,0.60)
	searcher := &fakeSearcher{matches: []model.SimilarityMatch{
		{EntityKind: model.KindChapter, EntityID: 2, Score: 0.80},
		{EntityKind: model.KindChapter, EntityID: 3, Score: 0.70},
		{EntityKind: model.KindChapter, EntityID: 4, Score: 0.55},
	}}
	svc, _ := newConsistencyFixture(searcher)

	warnings := svc.PreGenerationCheck(context.Background(), &model.Chapter{ID: 10, NovelID: 1, Title: "决战", Summary: "决战大纲"})
	require.Len(t, warnings, 3)
	assert.Equal(t, BandHigh, warnings[0].Band)
	assert.Equal(t, BandMedium, warnings[1].Band)
	assert.Equal(t, BandLow, warnings[2].Band)
	assert.NotEmpty(t, warnings[0].Suggestion)
	// 地板阈值为配置阈值减 0.25
	assert.InDelta(t, 0.50, searcher.lastThreshold, 1e-9)
}

func TestPreGenerationCheckFailsOpen(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("es unavailable")}
	svc, _ := newConsistencyFixture(searcher)

	warnings := svc.PreGenerationCheck(context.Background(), &model.Chapter{ID: 10, NovelID: 1, Title: "决战"})
	assert.Nil(t, warnings)
}

// 两章概要近似（"英雄打败了恶龙" vs "勇士击败了巨龙"）：检索边界注入固定
// 相似度，断言重复标记与阈值判定一致。
func TestPostGenerationCheckDuplicateScenario(t *testing.T) {
	cases := []struct {
		name      string
		score     float64
		duplicate bool
	}{
		{"相似度超过阈值判定为重复", 0.91, true},
		{"相似度低于阈值不判定为重复", 0.80, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			searcher := &fakeSearcher{matches: []model.SimilarityMatch{
				{EntityKind: model.KindChapter, EntityID: 2, Score: tc.score, Preview: "英雄打败了恶龙"},
			}}
			svc, _ := newConsistencyFixture(searcher)

			result := svc.PostGenerationCheck(context.Background(), 1, 10, "勇士击败了巨龙，王国重归和平。")
			assert.Equal(t, tc.duplicate, result.HasDuplicateContent)
			assert.False(t, result.CheckFailed)
			if tc.duplicate {
				require.Len(t, result.Matches, 1)
				assert.Equal(t, "龙之觉醒", result.Matches[0].Title)
			}
		})
	}
}

func TestPostGenerationCheckTruncatesQuery(t *testing.T) {
	searcher := &fakeSearcher{}
	svc, _ := newConsistencyFixture(searcher)

	long := strings.Repeat("很长的正文内容。", 200)
	svc.PostGenerationCheck(context.Background(), 1, 10, long)
	assert.Equal(t, 500, len([]rune(searcher.lastQuery)), "后检查询只取前 N 个字符")
}

func TestPostGenerationCheckFailsOpenWithFlag(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("es unavailable")}
	svc, _ := newConsistencyFixture(searcher)

	result := svc.PostGenerationCheck(context.Background(), 1, 10, "新生成的内容")
	assert.False(t, result.HasDuplicateContent)
	assert.True(t, result.CheckFailed)
}
