package ranker

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"pet-match-go/internal/gallery"
	"pet-match-go/pkg/log"
	"slices"

	"github.com/elastic/go-elasticsearch/v8"
)

// maxKNN 是 Elasticsearch 对 k 与 num_candidates 的上限。
const maxKNN = 10000

// ESRanker 使用 Elasticsearch 的 dense_vector kNN 检索代替线性扫描。
// 文档由索引流程写入，这里只按当前内存索引过滤与回填条目。
type ESRanker struct {
	client    *elasticsearch.Client
	indexName string
	exact     *MemoryRanker
}

// NewESRanker 创建基于 Elasticsearch 的排序器。
func NewESRanker(client *elasticsearch.Client, indexName string) *ESRanker {
	return &ESRanker{client: client, indexName: indexName, exact: NewMemoryRanker()}
}

type esHit struct {
	ID    string  `json:"_id"`
	Score float64 `json:"_score"`
}

type esSearchResponse struct {
	Hits struct {
		Hits []esHit `json:"hits"`
	} `json:"hits"`
}

// Rank 发起 kNN 查询并把 _score 换算回余弦相似度。
func (r *ESRanker) Rank(ctx context.Context, query []float32, idx *gallery.Index, topK int) ([]Result, error) {
	if topK <= 0 || idx.Len() == 0 {
		return []Result{}, nil
	}
	if !queryUsable(query, idx) {
		// cosine 的 dense_vector 不接受零向量，与内存实现一样直接返回空结果
		log.Warnf("[ESRanker] 查询向量无法参与比较, 维度: %d", len(query))
		return []Result{}, nil
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildKNNQuery(query, idx.Model(), topK, idx.Len())); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := r.client.Search(
		r.client.Search.WithContext(ctx),
		r.client.Search.WithIndex(r.indexName),
		r.client.Search.WithBody(&buf),
	)
	if err != nil {
		log.Errorf("[ESRanker] 向 Elasticsearch 发送搜索请求失败: %v", err)
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		log.Errorf("[ESRanker] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(body))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var resp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}
	results := collectHits(resp.Hits.Hits, idx, topK)
	if len(results) < topK && len(results) < idx.Len() {
		// 命中不足：部分条目没有写入 Elasticsearch，退回精确扫描
		log.Warnf("[ESRanker] kNN 只命中 %d 条 (topK: %d, 索引: %d), 改用内存排序", len(results), topK, idx.Len())
		return r.exact.Rank(ctx, query, idx, topK)
	}
	return results, nil
}

// buildKNNQuery 构造 kNN 查询，只检索同一模型写入的向量。
// k 额外放宽 indexSize 条，给已从图库删除但仍留在 Elasticsearch 中的文档留出余量。
func buildKNNQuery(query []float32, model string, topK, indexSize int) map[string]interface{} {
	k := min(topK+indexSize, maxKNN)
	candidates := min(max(k, topK*10, 100), maxKNN)
	return map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   query,
			"k":              k,
			"num_candidates": candidates,
			"filter": map[string]interface{}{
				"term": map[string]interface{}{"model_version": model},
			},
		},
		"size":    k,
		"_source": false,
	}
}

// collectHits 把命中结果映射回索引条目。当前索引中已不存在的文档被忽略；
// 同分按插入顺序排列，与内存实现保持一致。
func collectHits(hits []esHit, idx *gallery.Index, topK int) []Result {
	type positioned struct {
		Result
		pos int
	}
	found := make([]positioned, 0, len(hits))
	for _, h := range hits {
		entry, pos, ok := idx.Lookup(h.ID)
		if !ok {
			continue
		}
		found = append(found, positioned{Result{Entry: entry, Score: scoreToCosine(h.Score)}, pos})
	}

	slices.SortFunc(found, func(a, b positioned) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.pos, b.pos)
	})

	if len(found) > topK {
		found = found[:topK]
	}
	results := make([]Result, len(found))
	for i, f := range found {
		results[i] = f.Result
	}
	return results
}

// scoreToCosine 还原 cosine 相似度：Elasticsearch 返回的是 (1 + cos) / 2。
func scoreToCosine(score float64) float64 {
	return 2*score - 1
}
