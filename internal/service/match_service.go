// Package service 提供了图片匹配相关的业务逻辑。
package service

import (
	"context"
	"errors"
	"fmt"
	"pet-match-go/internal/gallery"
	"pet-match-go/internal/model"
	"pet-match-go/internal/ranker"
	"pet-match-go/pkg/embedding"
	"pet-match-go/pkg/log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// ErrNoQueryImage 表示请求没有携带图片。
	ErrNoQueryImage = errors.New("未上传图片")
	// ErrIndexNotReady 表示图库索引尚未构建完成。
	ErrIndexNotReady = errors.New("图库索引尚未就绪")
)

// MatchService 接口定义了图片匹配操作。
type MatchService interface {
	Match(ctx context.Context, image []byte, topK int) ([]model.RankedMatch, error)
}

type matchService struct {
	embedder embedding.Embedder
	holder   *gallery.Holder
	ranker   ranker.Ranker
	enricher Enricher
	timeout  time.Duration
}

// NewMatchService 创建一个新的 MatchService 实例。timeout 为 0 时不额外限制请求时长。
func NewMatchService(embedder embedding.Embedder, holder *gallery.Holder, rk ranker.Ranker, enricher Enricher, timeout time.Duration) MatchService {
	return &matchService{
		embedder: embedder,
		holder:   holder,
		ranker:   rk,
		enricher: enricher,
		timeout:  timeout,
	}
}

// Match 对查询图片依次执行 向量化 -> 排序 -> 补充展示信息。
// 任一步骤失败都返回错误，不会返回部分结果；查询向量不做跨请求缓存。
func (s *matchService) Match(ctx context.Context, image []byte, topK int) ([]model.RankedMatch, error) {
	if len(image) == 0 {
		return nil, ErrNoQueryImage
	}
	idx, ok := s.holder.Load()
	if !ok {
		return nil, ErrIndexNotReady
	}

	ctx, span := otel.Tracer("internal/service").Start(ctx, "match")
	defer span.End()
	span.SetAttributes(attribute.Int("match.top_k", topK), attribute.Int("gallery.size", idx.Len()))

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	// 1. 向量化查询图片
	queryVector, err := s.embedder.Embed(ctx, image)
	if err != nil {
		log.Errorf("[MatchService] 向量化查询图片失败: %v", err)
		span.RecordError(err)
		return nil, fmt.Errorf("failed to embed query image: %w", err)
	}
	log.Debugf("[MatchService] 查询向量维度: %d, 图库条目: %d", len(queryVector), idx.Len())

	// 2. 排序
	ranked, err := s.ranker.Rank(ctx, queryVector, idx, topK)
	if err != nil {
		log.Errorf("[MatchService] 排序失败: %v", err)
		span.RecordError(err)
		return nil, fmt.Errorf("failed to rank gallery: %w", err)
	}

	// 3. 补充展示信息
	matches := make([]model.RankedMatch, 0, len(ranked))
	for _, r := range ranked {
		matches = append(matches, model.RankedMatch{
			ID:         r.Entry.ID,
			Name:       r.Entry.Name,
			Score:      r.Score,
			PetDetails: s.enricher.Enrich(ctx, r.Entry),
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(matches) > 0 {
		log.Infof("Match: %s (score: %.4f)", matches[0].Name, matches[0].Score)
	} else {
		log.Infof("[MatchService] 没有可用的匹配结果, 图库条目: %d", idx.Len())
	}
	return matches, nil
}
