// Package vecmath 提供向量相似度计算的基础函数。
package vecmath

import (
	"errors"
	"fmt"
	"math"
)

// ErrZeroVector 表示参与计算的向量模长为零，方向无定义。
var ErrZeroVector = errors.New("zero-magnitude vector")

// CosineSimilarity 计算两个等维向量的余弦相似度，并换算为 1 − 余弦距离，
// 结果裁剪到 [0,1]（方向相反时距离大于 1，按 0 报告）。
// 维度不一致或零向量返回错误，绝不静默补齐或截断。
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("向量维度不一致: %d != %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, ErrZeroVector
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, ErrZeroVector
	}

	// cos ∈ [-1,1]；相似度 = 1 − (1 − cos) = cos，裁剪到 [0,1]
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return ClampScore(cos), nil
}

// ClampScore 把相似度分数裁剪到 [0,1] 区间。
func ClampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
