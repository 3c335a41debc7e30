package pipeline

import (
	"context"
	"errors"
	"pet-match-go/internal/gallery"
	"pet-match-go/pkg/log"
	"pet-match-go/pkg/tasks"
	"sync"
)

// ErrRefreshInProgress 表示已有一次构建在进行中，请求已排队到该构建之后。
var ErrRefreshInProgress = errors.New("图库索引正在构建中")

// Refresher 构建新索引并整体替换 Holder 中的旧索引。同一时刻只允许一次构建；
// 构建期间到达的请求合并为一次，在当前构建结束后重新执行。
type Refresher struct {
	indexer *Indexer
	holder  *gallery.Holder

	mu      sync.Mutex
	running bool
	pending bool
}

// NewRefresher 创建一个新的 Refresher 实例。
func NewRefresher(indexer *Indexer, holder *gallery.Holder) *Refresher {
	return &Refresher{indexer: indexer, holder: holder}
}

// Refresh 同步构建并发布索引。已有构建在进行时登记一次重建并返回 ErrRefreshInProgress。
func (r *Refresher) Refresh(ctx context.Context) (Stats, error) {
	r.mu.Lock()
	if r.running {
		r.pending = true
		r.mu.Unlock()
		return Stats{}, ErrRefreshInProgress
	}
	r.running = true
	r.mu.Unlock()

	for {
		stats, err := r.build(ctx)

		r.mu.Lock()
		if err != nil || !r.pending {
			// 失败时保留 pending，下一次 Refresh 会覆盖这些请求
			r.running = false
			r.mu.Unlock()
			return stats, err
		}
		r.pending = false
		r.mu.Unlock()
		log.Infof("[Refresher] 构建期间收到新的刷新请求, 重新构建")
	}
}

func (r *Refresher) build(ctx context.Context) (Stats, error) {
	idx, stats := r.indexer.Build(ctx)
	if err := ctx.Err(); err != nil {
		// 被取消的构建结果不完整，不发布
		log.Warnf("[Refresher] 构建被取消, 保留旧索引: %v", err)
		return stats, err
	}
	r.holder.Store(idx)
	log.Infof("[Refresher] 已发布新索引, 共 %d 个条目", idx.Len())
	return stats, nil
}

// Process 处理来自消息队列的刷新任务。
func (r *Refresher) Process(ctx context.Context, task tasks.GalleryRefreshTask) error {
	log.Infof("[Refresher] 收到刷新任务, requestId: %s, reason: %s", task.RequestID, task.Reason)
	_, err := r.Refresh(ctx)
	if errors.Is(err, ErrRefreshInProgress) {
		log.Infof("[Refresher] 已有构建在进行, 任务 %s 将在其结束后重新构建", task.RequestID)
		return nil
	}
	return err
}
