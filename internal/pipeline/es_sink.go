package pipeline

import (
	"context"
	"pet-match-go/internal/gallery"
	"pet-match-go/internal/model"
	"pet-match-go/pkg/es"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"
)

// ESSink 把图库向量写入 Elasticsearch，供 kNN 排序器检索。
type ESSink struct {
	client    *elasticsearch.Client
	indexName string

	mu      sync.Mutex
	written []string
}

// NewESSink 创建 Elasticsearch 写入器。
func NewESSink(client *elasticsearch.Client, indexName string) *ESSink {
	return &ESSink{client: client, indexName: indexName}
}

// Put 以文件名为文档 ID 写入，重复构建会覆盖旧文档。
func (s *ESSink) Put(ctx context.Context, entry gallery.Entry, modelVersion string) error {
	err := es.IndexDocument(ctx, s.client, s.indexName, model.GalleryDocument{
		ImageID:      entry.ID,
		Name:         entry.Name,
		Vector:       entry.Embedding,
		ModelVersion: modelVersion,
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.written = append(s.written, entry.ID)
	s.mu.Unlock()
	return nil
}

// Flush 删除本次构建没有写入的旧文档，再刷新索引使新文档可被检索。
func (s *ESSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	keep := s.written
	s.written = nil
	s.mu.Unlock()

	// 一条都没写入时多半是 Elasticsearch 不可用，保留旧文档
	if len(keep) > 0 {
		if err := es.DeleteExcept(ctx, s.client, s.indexName, keep); err != nil {
			return err
		}
	}
	return es.Refresh(ctx, s.client, s.indexName)
}
