// Package pipeline 定义了图库索引的构建与刷新流程。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"pet-match-go/internal/gallery"
	"pet-match-go/pkg/embedding"
	"pet-match-go/pkg/log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ErrIndexFile 标记单个图库文件索引失败。这类错误只记录日志，对应文件被跳过。
var ErrIndexFile = errors.New("图库文件索引失败")

// VectorSink 接收构建好的条目，例如写入外部向量检索引擎。
type VectorSink interface {
	Put(ctx context.Context, entry gallery.Entry, model string) error
	Flush(ctx context.Context) error
}

// Stats 汇总一次索引构建的结果。
type Stats struct {
	Found    int
	Indexed  int
	Skipped  int
	Duration time.Duration
}

// Indexer 遍历图库来源，对每张图片向量化并构建只读索引。
type Indexer struct {
	source   gallery.Source
	embedder embedding.Embedder
	model    string
	workers  int
	sink     VectorSink
}

// NewIndexer 创建一个新的 Indexer 实例。sink 可以为 nil。
func NewIndexer(source gallery.Source, embedder embedding.Embedder, model string, workers int, sink VectorSink) *Indexer {
	if workers <= 0 {
		workers = 1
	}
	return &Indexer{
		source:   source,
		embedder: embedder,
		model:    model,
		workers:  workers,
		sink:     sink,
	}
}

type slot struct {
	entry gallery.Entry
	ok    bool
}

// Build 构建完整索引后才返回，单个文件失败只会被跳过。
// 图库无法读取时返回空索引，服务以降级状态继续运行。
func (ix *Indexer) Build(ctx context.Context) (*gallery.Index, Stats) {
	ctx, span := otel.Tracer("internal/pipeline").Start(ctx, "gallery.build")
	defer span.End()

	start := time.Now()
	log.Infof("[Indexer] 开始构建图库索引, 来源: %s, 并发: %d", ix.source, ix.workers)

	names, err := ix.source.List(ctx)
	if err != nil {
		log.Errorf("[Indexer] 读取图库失败: %v", err)
		log.Warnf("[Indexer] 请确认 %s 存在并包含图片文件", ix.source)
		names = nil
	}
	log.Infof("[Indexer] 发现 %d 张待索引图片", len(names))

	slots := make([]slot, len(names))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < ix.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				entry, err := ix.indexOne(ctx, names[i])
				if err != nil {
					log.Warnw("[Indexer] 跳过图库文件", "file", names[i], "error", err)
					continue
				}
				slots[i] = slot{entry: entry, ok: true}
			}
		}()
	}
	for i := range names {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	entries := make([]gallery.Entry, 0, len(names))
	for _, s := range slots {
		if s.ok {
			entries = append(entries, s.entry)
		}
	}
	idx := gallery.NewIndex(ix.model, entries)

	if ix.sink != nil && idx.Len() > 0 {
		if err := ix.sink.Flush(ctx); err != nil {
			log.Warnf("[Indexer] 刷新外部向量索引失败: %v", err)
		}
	}

	stats := Stats{
		Found:    len(names),
		Indexed:  idx.Len(),
		Skipped:  len(names) - idx.Len(),
		Duration: time.Since(start),
	}
	span.SetAttributes(
		attribute.Int("gallery.found", stats.Found),
		attribute.Int("gallery.indexed", stats.Indexed),
	)

	if idx.Len() == 0 {
		log.Warnf("[Indexer] %v: 匹配请求将返回空结果", gallery.ErrEmptyGallery)
	}
	log.Infof("[Indexer] 图库索引构建完成, 已索引 %d 张, 跳过 %d 张, 耗时 %s", stats.Indexed, stats.Skipped, stats.Duration)
	return idx, stats
}

// indexOne 读取并向量化单个文件。
func (ix *Indexer) indexOne(ctx context.Context, name string) (gallery.Entry, error) {
	data, err := ix.source.Read(ctx, name)
	if err != nil {
		return gallery.Entry{}, fmt.Errorf("%w: 读取 %s: %v", ErrIndexFile, name, err)
	}

	vector, err := ix.embedder.Embed(ctx, data)
	if err != nil {
		return gallery.Entry{}, fmt.Errorf("%w: 向量化 %s: %w", ErrIndexFile, name, err)
	}

	entry := gallery.Entry{
		ID:        name,
		Name:      gallery.DisplayName(name),
		Embedding: vector,
	}
	if ix.sink != nil {
		if err := ix.sink.Put(ctx, entry, ix.model); err != nil {
			log.Warnf("[Indexer] 写入外部向量索引失败, file: %s, error: %v", name, err)
		}
	}
	return entry, nil
}
