package embedding

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"pet-match-go/internal/config"
	"pet-match-go/pkg/log"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Client 通过 OpenAI 兼容的 /embeddings 接口调用图像向量模型。
// 图像经过 Preprocess 后以 data URI 的形式作为 input 发送。
type Client struct {
	cfg     config.EmbeddingConfig
	client  *openai.Client
	limiter *rate.Limiter
}

// NewClient 根据配置创建图像向量化客户端。
func NewClient(cfg config.EmbeddingConfig) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Client{
		cfg:     cfg,
		client:  openai.NewClientWithConfig(oc),
		limiter: limiter,
	}
}

// Model 返回当前使用的模型标识，写入索引以区分不同模型产生的向量。
func (c *Client) Model() string {
	return c.cfg.Model
}

// Embed 预处理图像并调用模型服务获取向量。
func (c *Client) Embed(ctx context.Context, image []byte) ([]float32, error) {
	pixels, err := Preprocess(image, c.cfg.InputSize)
	if err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("等待向量化配额失败: %w", err)
		}
	}

	input := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pixels)
	log.Debugf("[EmbeddingClient] 开始调用 Embedding API, model: %s, payload: %d 字节", c.cfg.Model, len(pixels))

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{input},
		Model: openai.EmbeddingModel(c.cfg.Model),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Errorf("[EmbeddingClient] 调用 Embedding API 失败, error: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrModel, err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		log.Warnf("[EmbeddingClient] Embedding API 返回了空的向量数据")
		return nil, fmt.Errorf("%w: 返回了空向量", ErrModel)
	}

	vector := resp.Data[0].Embedding
	if c.cfg.Dimensions > 0 && len(vector) != c.cfg.Dimensions {
		return nil, fmt.Errorf("%w: 向量维度为 %d, 期望 %d", ErrModel, len(vector), c.cfg.Dimensions)
	}

	log.Debugf("[EmbeddingClient] 成功获取向量, 维度: %d", len(vector))
	return vector, nil
}
