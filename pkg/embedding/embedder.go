// Package embedding 提供图像向量化能力：预处理、调用模型服务以及缓存。
package embedding

import (
	"context"
	"errors"
)

var (
	// ErrDecode 表示图像字节无法解码（损坏或不支持的格式）。
	ErrDecode = errors.New("无法解码图像")
	// ErrModel 表示向量化模型本身调用失败。
	ErrModel = errors.New("向量模型调用失败")
)

// Embedder 将一张原始图像转换为定长向量。
// 实现必须可以被并发调用。
type Embedder interface {
	Embed(ctx context.Context, image []byte) ([]float32, error)
}

// EmbedderFunc 允许普通函数作为 Embedder 使用。
type EmbedderFunc func(ctx context.Context, image []byte) ([]float32, error)

// Embed 调用 f 本身。
func (f EmbedderFunc) Embed(ctx context.Context, image []byte) ([]float32, error) {
	return f(ctx, image)
}
