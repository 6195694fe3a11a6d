package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"docreview/cmd/review-service/internal/biz"
)

// DispatcherConfig Kafka派发器配置
type DispatcherConfig struct {
	Brokers []string
	Topic   string
}

// KafkaDispatcher 把工作项发到计算流水线的请求topic。
// 写入经过熔断器：流水线broker不可用时快速失败，
// 调用方负责把未派发的文档留给下一次requeue。
type KafkaDispatcher struct {
	writer  *kafka.Writer
	breaker *gobreaker.CircuitBreaker
	log     *log.Helper
}

// NewKafkaDispatcher 创建Kafka派发器
func NewKafkaDispatcher(config DispatcherConfig, logger log.Logger) *KafkaDispatcher {
	helper := log.NewHelper(log.With(logger, "module", "kafka-dispatcher"))

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Compression:  kafka.Snappy,
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "compute-dispatch",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 3 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			helper.Warnf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &KafkaDispatcher{
		writer:  writer,
		breaker: breaker,
		log:     helper,
	}
}

// workEnvelope 工作项消息信封
type workEnvelope struct {
	EventID   string        `json:"event_id"`
	EventType string        `json:"event_type"`
	Timestamp time.Time     `json:"timestamp"`
	Item      *biz.WorkItem `json:"item"`
}

// Dispatch 派发一批工作项。同一文档的消息用DocumentID做key，
// 保证单文档的工作项在分区内有序。
func (d *KafkaDispatcher) Dispatch(ctx context.Context, items []*biz.WorkItem) error {
	if len(items) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(items))
	for _, item := range items {
		envelope := workEnvelope{
			EventID:   uuid.New().String(),
			EventType: "document.work_requested",
			Timestamp: time.Now().UTC(),
			Item:      item,
		}
		value, err := json.Marshal(envelope)
		if err != nil {
			return fmt.Errorf("marshal work item: %w", err)
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(item.DocumentID),
			Value: value,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(envelope.EventType)},
				{Key: "generation", Value: []byte(fmt.Sprintf("%d", item.Generation))},
			},
			Time: envelope.Timestamp,
		})
	}

	_, err := d.breaker.Execute(func() (interface{}, error) {
		return nil, d.writer.WriteMessages(ctx, messages...)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			d.log.Warnf("dispatch rejected, circuit breaker open: %d items", len(items))
		}
		return fmt.Errorf("write work items to kafka: %w", err)
	}

	d.log.Debugf("dispatched %d work items", len(messages))
	return nil
}

// Close 关闭派发器
func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}
