// Package ranker 根据查询向量对图库条目打分并取 Top-K。
package ranker

import (
	"math"
	"pet-match-go/internal/gallery"
)

// Cosine 计算两个向量的余弦相似度，结果在 [-1, 1]。
// 维度不一致、向量为空或任一向量模长为 0 时返回 NaN，由调用方决定如何处理。
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.NaN()
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return math.NaN()
	}

	s := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// 浮点误差可能略微越界
	return math.Max(-1, math.Min(1, s))
}

// queryUsable 判断查询向量能否与索引中至少一个条目计算相似度。
// 空向量、零向量或与所有条目维度都不一致时返回 false。
func queryUsable(query []float32, idx *gallery.Index) bool {
	var norm float64
	for _, x := range query {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return false
	}
	for i := 0; i < idx.Len(); i++ {
		if len(idx.At(i).Embedding) == len(query) {
			return true
		}
	}
	return false
}
