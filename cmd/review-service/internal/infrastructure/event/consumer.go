package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/segmentio/kafka-go"

	"docreview/cmd/review-service/internal/biz"
	"docreview/cmd/review-service/internal/domain"
)

// ConsumerConfig 结果消费者配置
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// ResultConsumer 消费计算流水线回传的阶段结果。
// 结果乱序、重复、携带旧代数都是正常情况，
// 全部交给Tracker按代数规则裁决。
type ResultConsumer struct {
	reader  *kafka.Reader
	tracker *biz.TrackerUsecase
	log     *log.Helper
}

// NewResultConsumer 创建结果消费者
func NewResultConsumer(config ConsumerConfig, tracker *biz.TrackerUsecase, logger log.Logger) *ResultConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: config.Brokers,
		GroupID: config.GroupID,
		Topic:   config.Topic,
	})

	return &ResultConsumer{
		reader:  reader,
		tracker: tracker,
		log:     log.NewHelper(log.With(logger, "module", "result-consumer")),
	}
}

// stageResultMessage 流水线回传的结果消息
type stageResultMessage struct {
	DocumentID   string          `json:"document_id"`
	Generation   int64           `json:"generation"`
	StageKind    string          `json:"stage_kind"`
	Success      bool            `json:"success"`
	Payload      json.RawMessage `json:"payload"`
	ErrorMessage string          `json:"error_message"`
}

// metadataKind 元数据刷新回传，metaOnly工作项的产出。
// 不是计算阶段，不落stage result，直接刷新文档字段。
const metadataKind = "metadata"

// metadataPayload 元数据刷新负载
type metadataPayload struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Stop 关闭reader，Start里阻塞的FetchMessage随之返回
func (c *ResultConsumer) Stop(ctx context.Context) error {
	return c.reader.Close()
}

// Start 消费循环，ctx取消时退出并关闭reader
func (c *ResultConsumer) Start(ctx context.Context) error {
	c.log.Info("starting stage result consumer")

	for {
		select {
		case <-ctx.Done():
			c.log.Info("stopping stage result consumer")
			return c.reader.Close()
		default:
			message, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return c.reader.Close()
				}
				c.log.Errorf("fetch message: %v", err)
				continue
			}

			if err := c.processMessage(ctx, message); err != nil {
				c.log.Errorf("process message at offset %d: %v", message.Offset, err)
				// 解析失败的消息重试也不会成功，照常提交
			}

			if err := c.reader.CommitMessages(ctx, message); err != nil {
				c.log.Errorf("commit message: %v", err)
			}
		}
	}
}

// processMessage 解析并应用一条结果消息
func (c *ResultConsumer) processMessage(ctx context.Context, message kafka.Message) error {
	var msg stageResultMessage
	if err := json.Unmarshal(message.Value, &msg); err != nil {
		return fmt.Errorf("unmarshal stage result message: %w", err)
	}

	if msg.StageKind == metadataKind {
		return c.applyMetadata(ctx, &msg)
	}

	result, err := c.toStageResult(&msg)
	if err != nil {
		return err
	}
	return c.tracker.ApplyResult(ctx, result)
}

// applyMetadata 处理元数据刷新回传
func (c *ResultConsumer) applyMetadata(ctx context.Context, msg *stageResultMessage) error {
	if !msg.Success {
		// 失败的刷新没有可应用的内容，原有元数据保持不变
		c.log.WithContext(ctx).Warnf("metadata refresh failed for document %s: %s", msg.DocumentID, msg.ErrorMessage)
		return nil
	}
	var p metadataPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return fmt.Errorf("unmarshal metadata payload: %w", err)
	}
	return c.tracker.ApplyMetadata(ctx, msg.DocumentID, msg.Generation, p.Title, p.URL)
}

// toStageResult 按阶段类型还原负载
func (c *ResultConsumer) toStageResult(msg *stageResultMessage) (*domain.StageResult, error) {
	kind := domain.StageKind(msg.StageKind)

	if !msg.Success {
		return domain.NewFailedStageResult(msg.DocumentID, msg.Generation, kind, msg.ErrorMessage), nil
	}

	var payload domain.StagePayload
	switch kind {
	case domain.StageVerify:
		var p domain.VerifyPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, fmt.Errorf("unmarshal verify payload: %w", err)
		}
		payload = p
	case domain.StageDeepDive:
		var p domain.DeepDivePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, fmt.Errorf("unmarshal deep dive payload: %w", err)
		}
		payload = p
	case domain.StageTag:
		var p domain.TagPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, fmt.Errorf("unmarshal tag payload: %w", err)
		}
		payload = p
	default:
		return nil, domain.ErrInvalidStageKind
	}

	return domain.NewStageResult(msg.DocumentID, msg.Generation, payload), nil
}
