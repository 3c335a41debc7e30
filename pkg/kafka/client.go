// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"pet-match-go/internal/config"
	"pet-match-go/pkg/log"
	"pet-match-go/pkg/tasks"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// maxAttempts 是同一个刷新任务允许的最大处理次数。
const maxAttempts = 3

// retryDelay 是两次重试之间的基础等待时间，按失败次数线性增长。
var retryDelay = 2 * time.Second

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.GalleryRefreshTask) error
}

// Producer 负责投递图库刷新任务。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	p := &Producer{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers(cfg)...),
			Topic:    cfg.Topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
	log.Info("Kafka 生产者初始化成功")
	return p
}

// ProduceRefreshTask 发送一个图库刷新任务到 Kafka。
func (p *Producer) ProduceRefreshTask(ctx context.Context, task tasks.GalleryRefreshTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.RequestID),
		Value: taskBytes,
	})
}

// Close 关闭生产者。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// StartConsumer 启动一个 Kafka 消费者来处理刷新任务，直到 ctx 结束。
// 同一 GroupID 下每个任务只会交给一个实例；rdb 用于记录失败次数，可以为 nil。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor, rdb *redis.Client) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Error("从 Kafka 读取消息失败", err)
			}
			break
		}

		log.Infof("收到 Kafka 消息: offset %d", m.Offset)

		var task tasks.GalleryRefreshTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			commit(ctx, r, m)
			continue
		}

		if !processWithRetry(ctx, processor, task, rdb) {
			// ctx 结束，不提交 offset，任务留给下一个消费者
			break
		}
		commit(ctx, r, m)
	}

	if err := r.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
}

// processWithRetry 在当前会话内重试失败的任务，直到成功或达到 maxAttempts 次。
// FetchMessage 不会在同一会话内重新投递未提交的消息，重试只能在这里完成。
// 返回 false 表示 ctx 已结束，任务尚未处理完。
func processWithRetry(ctx context.Context, processor TaskProcessor, task tasks.GalleryRefreshTask, rdb *redis.Client) bool {
	for local := 1; ; local++ {
		err := processor.Process(ctx, task)
		if err == nil {
			log.Infof("刷新任务处理成功: requestId=%s", task.RequestID)
			if rdb != nil {
				_ = rdb.Del(ctx, attemptsKey(task.RequestID)).Err()
			}
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		attempts := recordFailure(ctx, rdb, task.RequestID, local)
		log.Errorf("处理刷新任务失败: requestId=%s, attempt=%d, Error: %v", task.RequestID, attempts, err)
		if attempts >= maxAttempts {
			log.Errorf("刷新任务多次失败(>=%d)，提交 offset 终止重试: requestId=%s", maxAttempts, task.RequestID)
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(retryDelay * time.Duration(attempts)):
		}
	}
}

// recordFailure 返回该任务累计的失败次数。Redis 中的计数跨进程重启保留，
// Redis 不可用时退回本进程内的计数 local。
func recordFailure(ctx context.Context, rdb *redis.Client, requestID string, local int) int {
	if rdb == nil {
		return local
	}
	key := attemptsKey(requestID)
	attempts, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		log.Warnf("记录刷新任务失败次数出错: requestId=%s, error: %v", requestID, err)
		return local
	}
	_ = rdb.Expire(ctx, key, 24*time.Hour).Err()
	return int(attempts)
}

func commit(ctx context.Context, r *kafka.Reader, m kafka.Message) {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}

func attemptsKey(requestID string) string {
	return fmt.Sprintf("petmatch:refresh:attempts:%s", requestID)
}

func brokers(cfg config.KafkaConfig) []string {
	var out []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
