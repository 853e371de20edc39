package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"mercato/internal/pkg/mq"
	"mercato/internal/service/discount/domain"
)

// UsageKafkaAdapter 实现了 port.UsageEventPublisher 接口，
// 把折扣应用事件投递给下游（报表、通知服务等）。
type UsageKafkaAdapter struct {
	writer *kafka.Writer
}

// NewUsageKafkaAdapter 创建一个新的事件生产者适配器。
func NewUsageKafkaAdapter(writer *kafka.Writer) *UsageKafkaAdapter {
	return &UsageKafkaAdapter{writer: writer}
}

// PublishDiscountApplied 发布折扣应用事件。
// 以订单 ID 作为分区键，同一订单的事件保持有序。
func (a *UsageKafkaAdapter) PublishDiscountApplied(ctx context.Context, event *domain.DiscountAppliedEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal discount applied event: %w", err)
	}
	// 调用通用的 mq.ProduceMessage，它会自动处理追踪上下文注入
	return mq.ProduceMessage(ctx, a.writer, []byte(event.OrderID), eventBytes)
}

// Close 关闭底层的 Kafka writer。
func (a *UsageKafkaAdapter) Close() error {
	return a.writer.Close()
}
