// Package gallery 定义参考图库的索引结构、图片来源以及就绪屏障。
package gallery

import (
	"errors"
	"pet-match-go/pkg/log"
)

// ErrEmptyGallery 表示索引构建后没有任何条目。这是降级状态而不是致命错误。
var ErrEmptyGallery = errors.New("图库为空")

// Entry 是图库中的一张参考图片。构建后不再修改。
type Entry struct {
	ID        string    // 文件名，唯一且稳定
	Name      string    // 展示名，由文件名推导
	Embedding []float32 // 与查询向量来自同一模型
}

// Index 是构建完成后只读的图库索引，可被多个请求并发读取。
// 条目顺序即目录枚举顺序。
type Index struct {
	entries []Entry
	byID    map[string]int
	model   string
}

// NewIndex 按给定顺序构建索引。重复的 ID 只保留第一次出现的条目。
func NewIndex(model string, entries []Entry) *Index {
	idx := &Index{
		entries: make([]Entry, 0, len(entries)),
		byID:    make(map[string]int, len(entries)),
		model:   model,
	}
	for _, e := range entries {
		if _, dup := idx.byID[e.ID]; dup {
			log.Warnf("[GalleryIndex] 重复的图库条目, 已忽略: %s", e.ID)
			continue
		}
		idx.byID[e.ID] = len(idx.entries)
		idx.entries = append(idx.entries, e)
	}
	return idx
}

// Len 返回条目数量。
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

// Model 返回构建索引时使用的模型标识。
func (idx *Index) Model() string {
	return idx.model
}

// At 返回第 i 个条目。调用方不得修改返回条目的 Embedding。
func (idx *Index) At(i int) Entry {
	return idx.entries[i]
}

// Lookup 按 ID 查找条目，同时返回其插入位置。
func (idx *Index) Lookup(id string) (Entry, int, bool) {
	if idx == nil {
		return Entry{}, 0, false
	}
	i, ok := idx.byID[id]
	if !ok {
		return Entry{}, 0, false
	}
	return idx.entries[i], i, true
}

// Entries 返回条目切片的副本。
func (idx *Index) Entries() []Entry {
	if idx == nil {
		return nil
	}
	out := make([]Entry, len(idx.entries))
	copy(out, idx.entries)
	return out
}
