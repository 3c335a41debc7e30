package gallery

import (
	"context"
	"sync"
	"sync/atomic"
)

// Holder 是索引的就绪屏障：第一次 Store 之前所有读取都视为未就绪。
// 之后的刷新整体替换索引指针，读者只会看到旧索引或新索引。
type Holder struct {
	current atomic.Pointer[Index]
	ready   chan struct{}
	once    sync.Once
}

// NewHolder 创建一个尚未就绪的 Holder。
func NewHolder() *Holder {
	return &Holder{ready: make(chan struct{})}
}

// Store 发布一个构建完成的索引。
func (h *Holder) Store(idx *Index) {
	h.current.Store(idx)
	h.once.Do(func() { close(h.ready) })
}

// Load 返回当前索引；未就绪时 ok 为 false。
func (h *Holder) Load() (*Index, bool) {
	idx := h.current.Load()
	return idx, idx != nil
}

// Ready 报告首次构建是否已经完成。
func (h *Holder) Ready() bool {
	select {
	case <-h.ready:
		return true
	default:
		return false
	}
}

// Wait 阻塞直到索引就绪或 ctx 结束。
func (h *Holder) Wait(ctx context.Context) (*Index, error) {
	select {
	case <-h.ready:
		return h.current.Load(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
