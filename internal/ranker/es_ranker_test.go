package ranker

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"pet-match-go/internal/gallery"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildKNNQuery(t *testing.T) {
	q := buildKNNQuery([]float32{0.1, 0.2}, "clip", 5, 3)
	knn := q["knn"].(map[string]interface{})
	assert.Equal(t, 8, knn["k"], "k leaves room for documents no longer in the gallery")
	assert.Equal(t, 100, knn["num_candidates"])
	assert.Equal(t, "vector", knn["field"])
	assert.Equal(t, 8, q["size"])

	filter := knn["filter"].(map[string]interface{})["term"].(map[string]interface{})
	assert.Equal(t, "clip", filter["model_version"])

	big := buildKNNQuery(nil, "clip", 20, 0)
	assert.Equal(t, 200, big["knn"].(map[string]interface{})["num_candidates"])

	huge := buildKNNQuery(nil, "clip", 20, 50000)
	hugeKNN := huge["knn"].(map[string]interface{})
	assert.Equal(t, maxKNN, hugeKNN["k"])
	assert.Equal(t, maxKNN, hugeKNN["num_candidates"])
}

func TestCollectHitsMapsScoresAndSkipsUnknown(t *testing.T) {
	idx := buildIndex(
		gallery.Entry{ID: "a.jpg"},
		gallery.Entry{ID: "b.jpg"},
		gallery.Entry{ID: "c.jpg"},
	)
	hits := []esHit{
		{ID: "c.jpg", Score: 0.9},
		{ID: "gone.jpg", Score: 0.99},
		{ID: "b.jpg", Score: 0.9},
		{ID: "a.jpg", Score: 0.5},
	}

	got := collectHits(hits, idx, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "b.jpg", got[0].Entry.ID, "ties fall back to index order")
	assert.Equal(t, "c.jpg", got[1].Entry.ID)
	assert.InDelta(t, 0.8, got[0].Score, 1e-12)
}

// newFakeES 启动一个返回固定命中结果的 Elasticsearch 替身，并统计请求次数。
func newFakeES(t *testing.T, status int, body string) (*elasticsearch.Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		raw, _ := io.ReadAll(r.Body)
		var q map[string]interface{}
		_ = json.Unmarshal(raw, &q)
		assert.Contains(t, q, "knn")

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client, &calls
}

func TestESRankerRank(t *testing.T) {
	client, _ := newFakeES(t, http.StatusOK, `{"hits":{"hits":[{"_id":"b.jpg","_score":1.0},{"_id":"a.jpg","_score":0.75}]}}`)

	idx := buildIndex(
		gallery.Entry{ID: "a.jpg", Embedding: []float32{1, 1}},
		gallery.Entry{ID: "b.jpg", Embedding: []float32{1, 0}},
	)
	got, err := NewESRanker(client, "pet_gallery").Rank(context.Background(), []float32{1, 0}, idx, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b.jpg", got[0].Entry.ID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-12)
	assert.InDelta(t, 0.5, got[1].Score, 1e-12)

	empty, err := NewESRanker(client, "pet_gallery").Rank(context.Background(), []float32{1, 0}, idx, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestESRankerUnusableQueryMatchesMemoryRanker(t *testing.T) {
	client, calls := newFakeES(t, http.StatusBadRequest, `{"error":{"type":"illegal_argument_exception","reason":"The [cosine] similarity does not support vectors with zero magnitude."}}`)
	idx := buildIndex(gallery.Entry{ID: "a.jpg", Embedding: []float32{1, 0}})
	es := NewESRanker(client, "pet_gallery")

	for _, query := range [][]float32{{0, 0}, {1, 0, 0}, {}} {
		memory, err := NewMemoryRanker().Rank(context.Background(), query, idx, 5)
		require.NoError(t, err)
		got, err := es.Rank(context.Background(), query, idx, 5)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Equal(t, memory, got)
	}
	assert.Zero(t, calls.Load(), "unusable queries never reach Elasticsearch")
}

func TestESRankerStaleHitDoesNotTakeTopKSlot(t *testing.T) {
	client, _ := newFakeES(t, http.StatusOK, `{"hits":{"hits":[{"_id":"gone.jpg","_score":0.99},{"_id":"a.jpg","_score":0.9}]}}`)
	idx := buildIndex(
		gallery.Entry{ID: "a.jpg", Embedding: []float32{1, 0}},
		gallery.Entry{ID: "b.jpg", Embedding: []float32{0, 1}},
	)

	got, err := NewESRanker(client, "pet_gallery").Rank(context.Background(), []float32{1, 0}, idx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a.jpg", got[0].Entry.ID)
}

func TestESRankerFallsBackWhenEntriesMissingFromES(t *testing.T) {
	// b.jpg 写入 Elasticsearch 失败，只存在于内存索引
	client, _ := newFakeES(t, http.StatusOK, `{"hits":{"hits":[{"_id":"a.jpg","_score":0.5}]}}`)
	idx := buildIndex(
		gallery.Entry{ID: "a.jpg", Embedding: []float32{0, 1}},
		gallery.Entry{ID: "b.jpg", Embedding: []float32{1, 0}},
	)

	got, err := NewESRanker(client, "pet_gallery").Rank(context.Background(), []float32{1, 0}, idx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b.jpg", got[0].Entry.ID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-12)
	assert.Equal(t, "a.jpg", got[1].Entry.ID)
}
