package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"pet-match-go/pkg/log"
	"time"

	"github.com/go-redis/redis/v8"
)

// CachedEmbedder 以图像内容哈希为键，把向量缓存在 Redis 中。
// 只用于图库索引，重启时免去重复调用模型；查询图片不走缓存。
type CachedEmbedder struct {
	inner Embedder
	rdb   *redis.Client
	model string
	ttl   time.Duration
}

// NewCachedEmbedder 创建带缓存的 Embedder。model 参与键的构造，换模型即自动失效。
func NewCachedEmbedder(inner Embedder, rdb *redis.Client, model string, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, rdb: rdb, model: model, ttl: ttl}
}

// Embed 先查缓存，未命中时调用底层 Embedder 并回写。
// Redis 异常只记录日志，不影响向量化本身。
func (c *CachedEmbedder) Embed(ctx context.Context, image []byte) ([]float32, error) {
	key := c.key(image)

	cached, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var vector []float32
		if jsonErr := json.Unmarshal(cached, &vector); jsonErr == nil && len(vector) > 0 {
			return vector, nil
		}
		log.Warnf("[EmbeddingCache] 缓存内容无法解析, key: %s", key)
	case err != redis.Nil:
		log.Warnf("[EmbeddingCache] 读取缓存失败, key: %s, error: %v", key, err)
	}

	vector, err := c.inner.Embed(ctx, image)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(vector)
	if err != nil {
		return vector, nil
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Warnf("[EmbeddingCache] 写入缓存失败, key: %s, error: %v", key, err)
	}
	return vector, nil
}

func (c *CachedEmbedder) key(image []byte) string {
	sum := sha256.Sum256(image)
	return fmt.Sprintf("petmatch:embedding:%s:%s", c.model, hex.EncodeToString(sum[:]))
}
