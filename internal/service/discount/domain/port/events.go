package port

import (
	"context"

	"mercato/internal/service/discount/domain"
)

// UsageEventPublisher 把折扣应用事件发布给下游（报表、通知等）。
type UsageEventPublisher interface {
	PublishDiscountApplied(ctx context.Context, event *domain.DiscountAppliedEvent) error
}
