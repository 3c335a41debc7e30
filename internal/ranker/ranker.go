package ranker

import (
	"cmp"
	"context"
	"math"
	"pet-match-go/internal/gallery"
	"slices"
)

// DefaultTopK 是未指定数量时返回的结果数。
const DefaultTopK = 5

// Result 是一条打分结果。
type Result struct {
	Entry gallery.Entry
	Score float64
}

// Ranker 对索引中的条目打分，按分数降序返回至多 topK 条。
// 内存实现是精确的线性扫描，也可以替换为近似最近邻的后端。
type Ranker interface {
	Rank(ctx context.Context, query []float32, idx *gallery.Index, topK int) ([]Result, error)
}

// MemoryRanker 对索引做 O(n·d) 的精确余弦扫描，无状态，可并发使用。
type MemoryRanker struct{}

// NewMemoryRanker 创建内存排序器。
func NewMemoryRanker() *MemoryRanker {
	return &MemoryRanker{}
}

// Rank 计算查询向量与每个条目的余弦相似度。
// 无法计算相似度（模长为 0 或维度不一致）的条目直接跳过；
// 同分时保持索引插入顺序，保证相同输入得到相同输出。
func (r *MemoryRanker) Rank(ctx context.Context, query []float32, idx *gallery.Index, topK int) ([]Result, error) {
	if topK <= 0 || idx.Len() == 0 {
		return []Result{}, nil
	}

	results := make([]Result, 0, idx.Len())
	for i := 0; i < idx.Len(); i++ {
		entry := idx.At(i)
		score := Cosine(query, entry.Embedding)
		if math.IsNaN(score) {
			continue
		}
		results = append(results, Result{Entry: entry, Score: score})
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}
