package application

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercato/internal/pkg/logger"
	"mercato/internal/service/discount/domain"
	"mercato/internal/service/discount/domain/port"
)

// UsageRecorder 记录折扣的每一次应用，并执行使用次数上限。
//
// "读计数-比上限-写流水" 本身不是原子序列，并发结算逼近上限时
// 会超卖。ApplyDiscount 通过存储边界上的原子带上限自增
// （UsageReserver，Redis Lua 实现）把这个竞态堵住；
// HasCapacity 只做非原子的参考性检查，供展示层使用。
type UsageRecorder struct {
	repo      domain.PolicyRepository
	reserver  port.UsageReserver
	publisher port.UsageEventPublisher
	clock     port.Clock
	tracer    trace.Tracer
}

// NewUsageRecorder 创建用量记录服务。
func NewUsageRecorder(repo domain.PolicyRepository, reserver port.UsageReserver, publisher port.UsageEventPublisher, clock port.Clock, tracer trace.Tracer) *UsageRecorder {
	return &UsageRecorder{repo: repo, reserver: reserver, publisher: publisher, clock: clock, tracer: tracer}
}

// CurrentUsageCount 返回策略的累计使用次数（权威存储计数）。
func (s *UsageRecorder) CurrentUsageCount(ctx context.Context, policyID int64) (int64, error) {
	return s.repo.CountUsage(ctx, policyID)
}

// HasCapacity 判断策略是否还有剩余额度。不限次数时恒为 true。
// 注意这是 check-then-act 的前半段，结果仅供参考，
// 真正的上限执行在 ApplyDiscount 里。
func (s *UsageRecorder) HasCapacity(ctx context.Context, policy *domain.Policy) (bool, error) {
	if policy.UsageLimit.Unlimited() {
		return true, nil
	}
	used, err := s.repo.CountUsage(ctx, policy.ID)
	if err != nil {
		return false, err
	}
	return policy.UsageLimit.Allows(used), nil
}

// RecordApplication 追加一条使用流水并发布应用事件。
// 事件发布失败只记日志：流水是权威记录，事件是尽力而为的通知。
func (s *UsageRecorder) RecordApplication(ctx context.Context, policyID int64, orderID, userID string, appliedAmount int64) error {
	ctx, span := s.tracer.Start(ctx, "service.RecordApplication")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("policy.id", policyID),
		attribute.String("order.id", orderID),
	)

	record, err := domain.NewUsageRecord(policyID, orderID, userID, appliedAmount, s.clock.Now())
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.repo.AppendUsage(ctx, record); err != nil {
		span.RecordError(err)
		return err
	}

	s.publish(ctx, record)
	return nil
}

// ApplyDiscount 是结算路径的入口：先原子占用一次额度，
// 再落流水。上限已满返回 ErrUsageLimitExceeded——这是一个
// 必须上报给调用方的拒绝结果，调用方只让该行项目回退原价，
// 不应让整单失败。
func (s *UsageRecorder) ApplyDiscount(ctx context.Context, policy *domain.Policy, orderID, userID string, appliedAmount int64) error {
	ctx, span := s.tracer.Start(ctx, "service.ApplyDiscount")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("policy.id", policy.ID),
		attribute.String("order.id", orderID),
		attribute.Int64("discount.amount", appliedAmount),
	)

	if !policy.UsageLimit.Unlimited() {
		ok, err := s.reserve(ctx, policy)
		if err != nil {
			span.RecordError(err)
			return err
		}
		if !ok {
			span.AddEvent("usage limit exceeded")
			return domain.ErrUsageLimitExceeded
		}
	}

	if err := s.RecordApplication(ctx, policy.ID, orderID, userID, appliedAmount); err != nil {
		// 占用成功但落库失败，归还额度。归还失败只能记日志，
		// 计数器会偏保守（少卖不超卖）。
		if !policy.UsageLimit.Unlimited() {
			if rerr := s.reserver.Release(ctx, policy.ID); rerr != nil {
				logger.Ctx(ctx).Error().Err(rerr).Int64("policy_id", policy.ID).Msg("failed to release usage reservation")
			}
		}
		return err
	}
	return nil
}

// reserve 执行原子占用。计数器不存在时用权威计数初始化后重试一次。
func (s *UsageRecorder) reserve(ctx context.Context, policy *domain.Policy) (bool, error) {
	ok, err := s.reserver.Reserve(ctx, policy.ID, int64(policy.UsageLimit))
	if err == nil {
		return ok, nil
	}
	if !errors.Is(err, port.ErrUsageCounterMissing) {
		return false, err
	}

	used, err := s.repo.CountUsage(ctx, policy.ID)
	if err != nil {
		return false, err
	}
	if err := s.reserver.InitCounter(ctx, policy.ID, used); err != nil {
		return false, err
	}
	return s.reserver.Reserve(ctx, policy.ID, int64(policy.UsageLimit))
}

func (s *UsageRecorder) publish(ctx context.Context, record *domain.UsageRecord) {
	if s.publisher == nil {
		return
	}
	event := &domain.DiscountAppliedEvent{
		EventID:   uuid.NewString(),
		PolicyID:  record.PolicyID,
		OrderID:   record.OrderID,
		UserID:    record.UserID,
		Amount:    record.Amount,
		AppliedAt: record.AppliedAt,
	}
	if err := s.publisher.PublishDiscountApplied(ctx, event); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("event_id", event.EventID).Msg("failed to publish discount applied event")
	}
}
