package service

import (
	"context"
	"pet-match-go/internal/pipeline"
	"pet-match-go/pkg/log"
	"pet-match-go/pkg/tasks"
	"time"

	"github.com/google/uuid"
)

// RefreshService 接受图库刷新请求，返回请求 ID。刷新本身异步执行。
type RefreshService interface {
	RequestRefresh(ctx context.Context, reason string) (string, error)
}

// TaskProducer 把刷新任务投递到消息队列。
type TaskProducer interface {
	ProduceRefreshTask(ctx context.Context, task tasks.GalleryRefreshTask) error
}

type queuedRefreshService struct {
	producer TaskProducer
}

// NewQueuedRefreshService 把刷新任务投递到消息队列，由同一消费组中的一个实例执行。
// 每个实例只重建自己的内存索引，多实例部署时各实例需要使用不同的 kafka.group_id。
func NewQueuedRefreshService(producer TaskProducer) RefreshService {
	return &queuedRefreshService{producer: producer}
}

func (s *queuedRefreshService) RequestRefresh(ctx context.Context, reason string) (string, error) {
	task := newRefreshTask(reason)
	if err := s.producer.ProduceRefreshTask(ctx, task); err != nil {
		return "", err
	}
	log.Infof("[RefreshService] 已投递刷新任务, requestId: %s", task.RequestID)
	return task.RequestID, nil
}

type localRefreshService struct {
	refresher *pipeline.Refresher
	timeout   time.Duration
}

// NewLocalRefreshService 在当前进程的后台 goroutine 中重建索引。
func NewLocalRefreshService(refresher *pipeline.Refresher, timeout time.Duration) RefreshService {
	return &localRefreshService{refresher: refresher, timeout: timeout}
}

func (s *localRefreshService) RequestRefresh(ctx context.Context, reason string) (string, error) {
	task := newRefreshTask(reason)
	go func() {
		// 请求结束后构建仍需继续，不能沿用请求的 ctx
		bg := context.Background()
		if s.timeout > 0 {
			var cancel context.CancelFunc
			bg, cancel = context.WithTimeout(bg, s.timeout)
			defer cancel()
		}
		if err := s.refresher.Process(bg, task); err != nil {
			log.Errorf("[RefreshService] 后台刷新失败, requestId: %s, error: %v", task.RequestID, err)
		}
	}()
	return task.RequestID, nil
}

func newRefreshTask(reason string) tasks.GalleryRefreshTask {
	return tasks.GalleryRefreshTask{
		RequestID:   uuid.NewString(),
		Reason:      reason,
		RequestedAt: time.Now(),
	}
}
