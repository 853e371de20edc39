package application

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercato/internal/pkg/logger"
	"mercato/internal/service/discount/domain"
	"mercato/internal/service/discount/domain/port"
	"mercato/internal/zookeeper"
)

// PolicyAdminService 承载策略的管理用例：创建、修改、启停、删除。
//
// 对同一策略 ID 的变更用 ZooKeeper 分布式锁串行化，
// 避免两个管理端并发编辑时的 last-write-wins。
// 每次变更成功后主动失效受影响的缓存键：TTL 只能兜住
// 策略自然到期，提前停用/修改必须显式失效。
type PolicyAdminService struct {
	repo   domain.PolicyRepository
	cache  port.SnapshotCache
	zkConn *zookeeper.Conn
	tracer trace.Tracer
}

// NewPolicyAdminService 创建策略管理服务。zkConn 可以为 nil，
// 此时放弃跨实例互斥（单实例部署的取舍）。
func NewPolicyAdminService(repo domain.PolicyRepository, cache port.SnapshotCache, zkConn *zookeeper.Conn, tracer trace.Tracer) *PolicyAdminService {
	return &PolicyAdminService{repo: repo, cache: cache, zkConn: zkConn, tracer: tracer}
}

// CreatePolicy 校验并持久化一个新策略及其目标关联。
func (s *PolicyAdminService) CreatePolicy(ctx context.Context, req *CreatePolicyRequest) (*domain.Policy, error) {
	ctx, span := s.tracer.Start(ctx, "service.CreatePolicy")
	defer span.End()

	policy, err := domain.NewPolicy(domain.PolicyParams{
		SellerID:      req.SellerID,
		Name:          req.Name,
		Group:         domain.Group(req.Group),
		Type:          domain.Type(req.Type),
		Target:        domain.TargetKind(req.TargetKind),
		Rate:          req.Rate,
		Amount:        req.Amount,
		MaxDiscount:   req.MaxDiscount,
		MinOrder:      req.MinOrder,
		PeriodStart:   req.PeriodStart,
		PeriodEnd:     req.PeriodEnd,
		UsageLimit:    req.UsageLimit,
		PlatformRatio: req.PlatformRatio,
		Priority:      req.Priority,
		Condition:     req.Condition,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if policy.Target != domain.TargetAll {
		kind := policy.Target
		for _, refID := range req.TargetIDs {
			if _, err := policy.AddTarget(kind, refID); err != nil {
				span.RecordError(err)
				return nil, err
			}
		}
	}

	if err := s.repo.Save(ctx, policy); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int64("policy.id", policy.ID))
	logger.Ctx(ctx).Info().Int64("policy_id", policy.ID).Str("name", policy.Name).Msg("discount policy created")
	return policy, nil
}

// GetPolicy 按 ID 加载策略聚合。
func (s *PolicyAdminService) GetPolicy(ctx context.Context, policyID int64) (*domain.Policy, error) {
	return s.repo.FindByID(ctx, policyID)
}

// ChangeDetails 修改策略的可变字段。字段与当前值完全一致时
// 是无操作：不落库、不产生修订、不失效缓存。
func (s *PolicyAdminService) ChangeDetails(ctx context.Context, policyID int64, req *ChangeDetailsRequest) (*domain.Policy, error) {
	ctx, span := s.tracer.Start(ctx, "service.ChangePolicyDetails")
	defer span.End()
	span.SetAttributes(attribute.Int64("policy.id", policyID))

	var policy *domain.Policy
	err := s.withPolicyLock(policyID, func() error {
		var err error
		policy, err = s.repo.FindByID(ctx, policyID)
		if err != nil {
			return err
		}

		details := policy.CurrentDetails()
		details.Name = req.Name
		details.Rate = domain.Rate(req.Rate)
		details.Amount = req.Amount
		details.MaxDiscount = domain.MaxDiscountAmount(req.MaxDiscount)
		details.MinOrder = domain.MinOrderAmount(req.MinOrder)
		details.Period = domain.Period{Start: req.PeriodStart, End: req.PeriodEnd}
		details.UsageLimit = domain.UsageLimit(req.UsageLimit)
		details.CostShare = domain.CostShare{PlatformRatio: req.PlatformRatio}
		details.Priority = domain.Priority(req.Priority)
		details.Condition = req.Condition

		changed, err := policy.ChangeDetails(details)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		if err := s.repo.Save(ctx, policy); err != nil {
			return err
		}
		s.invalidate(ctx, policy)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return policy, nil
}

// SetActive 启停策略。状态翻转永远记修订、永远失效缓存。
func (s *PolicyAdminService) SetActive(ctx context.Context, policyID int64, active bool) error {
	ctx, span := s.tracer.Start(ctx, "service.SetPolicyActive")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("policy.id", policyID),
		attribute.Bool("policy.active", active),
	)

	err := s.withPolicyLock(policyID, func() error {
		policy, err := s.repo.FindByID(ctx, policyID)
		if err != nil {
			return err
		}
		if err := policy.SetActive(active); err != nil {
			return err
		}
		if err := s.repo.Save(ctx, policy); err != nil {
			return err
		}
		s.invalidate(ctx, policy)
		return nil
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// DeletePolicy 软删除策略并失效缓存。
func (s *PolicyAdminService) DeletePolicy(ctx context.Context, policyID int64) error {
	ctx, span := s.tracer.Start(ctx, "service.DeletePolicy")
	defer span.End()
	span.SetAttributes(attribute.Int64("policy.id", policyID))

	err := s.withPolicyLock(policyID, func() error {
		policy, err := s.repo.FindByID(ctx, policyID)
		if err != nil {
			return err
		}
		if err := policy.Delete(); err != nil {
			return err
		}
		if err := s.repo.Save(ctx, policy); err != nil {
			return err
		}
		s.invalidate(ctx, policy)
		return nil
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// withPolicyLock 在 ZooKeeper 锁内执行 fn，把对同一策略的
// 并发变更串行化。
func (s *PolicyAdminService) withPolicyLock(policyID int64, fn func() error) error {
	if s.zkConn == nil {
		return fn()
	}
	lock := zookeeper.NewDistributedLock(s.zkConn, fmt.Sprintf("discount-policy-%d", policyID))
	if err := lock.Lock(); err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Log().Error().Err(err).Int64("policy_id", policyID).Msg("failed to release policy lock")
		}
	}()
	return fn()
}

// invalidate 删除策略显式目标对应的缓存键。
// ALL 范围的策略没有可枚举的键，只能接受 TTL 上界内的
// 短暂陈旧，这是记录在案的取舍。
func (s *PolicyAdminService) invalidate(ctx context.Context, policy *domain.Policy) {
	targets := policy.Targets()
	if len(targets) == 0 {
		return
	}
	keys := make([]string, 0, len(targets))
	for _, t := range targets {
		switch t.Kind {
		case domain.TargetProduct:
			keys = append(keys, productCacheKey(t.RefID))
		case domain.TargetSeller:
			keys = append(keys, sellerCacheKey(t.RefID))
		}
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Int64("policy_id", policy.ID).Msg("failed to invalidate discount snapshot cache")
	}
}
