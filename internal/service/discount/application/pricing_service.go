package application

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercato/internal/pkg/logger"
	"mercato/internal/service/discount/domain"
	"mercato/internal/service/discount/domain/port"
)

// QuoteRequest 是结算报价的入参：一个目标加上订单上下文。
type QuoteRequest struct {
	ProductGroupID int64  `json:"product_group_id"`
	SellerID       int64  `json:"seller_id"`
	OrderAmount    int64  `json:"order_amount"`
	UserID         string `json:"user_id"`
	MemberTier     string `json:"member_tier"`
	PaymentMethod  string `json:"payment_method"`
}

// QuoteResponse 是结算报价的出参。
type QuoteResponse struct {
	TotalDiscount int64                  `json:"total_discount"`
	Payable       int64                  `json:"payable"`
	ByGroup       map[domain.Group]int64 `json:"by_group"`
}

// PricingService 是面向结算的报价服务。
// 计算器对入参有前置要求：只接受启用中、在有效期内、
// 未超用量上限的策略——这些过滤全部在这里完成，
// 计算器本身保持纯函数。
type PricingService struct {
	repo   domain.PolicyRepository
	rules  domain.RuleEngine
	usage  *UsageRecorder
	calc   *domain.Calculator
	clock  port.Clock
	tracer trace.Tracer
}

// NewPricingService 创建报价服务。
func NewPricingService(repo domain.PolicyRepository, rules domain.RuleEngine, usage *UsageRecorder, clock port.Clock, tracer trace.Tracer) *PricingService {
	return &PricingService{
		repo:   repo,
		rules:  rules,
		usage:  usage,
		calc:   domain.NewCalculator(),
		clock:  clock,
		tracer: tracer,
	}
}

// QuoteDiscounts 汇总目标上全部可用策略，过滤后交给计算器
// 做顺序叠加，返回各分组抵扣与应付金额。
func (s *PricingService) QuoteDiscounts(ctx context.Context, req *QuoteRequest) (*QuoteResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.QuoteDiscounts")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("target.product_group_id", req.ProductGroupID),
		attribute.Int64("target.seller_id", req.SellerID),
		attribute.Int64("order.amount", req.OrderAmount),
	)

	if req.OrderAmount < 0 {
		return nil, domain.ErrNegativeOrderAmount
	}

	now := s.clock.Now()

	// 1. 收集候选策略：商品级与卖家级各查一次，按 ID 去重。
	candidates := make([]*domain.Policy, 0, 8)
	seen := make(map[int64]bool)
	if req.ProductGroupID > 0 {
		policies, err := s.repo.FindValid(ctx, domain.TargetProduct, req.ProductGroupID, now)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		for _, p := range policies {
			if !seen[p.ID] {
				seen[p.ID] = true
				candidates = append(candidates, p)
			}
		}
	}
	if req.SellerID > 0 {
		policies, err := s.repo.FindValid(ctx, domain.TargetSeller, req.SellerID, now)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		for _, p := range policies {
			if !seen[p.ID] {
				seen[p.ID] = true
				candidates = append(candidates, p)
			}
		}
	}

	// 2. 执行计算器的前置过滤：有效性、门槛、适用条件、剩余额度。
	fact := domain.Fact{
		UserID:        req.UserID,
		SellerID:      req.SellerID,
		OrderAmount:   req.OrderAmount,
		MemberTier:    req.MemberTier,
		PaymentMethod: req.PaymentMethod,
	}
	applicable := make([]*domain.Policy, 0, len(candidates))
	for _, p := range candidates {
		if !p.IsApplicable(now) || !p.MinOrder.Satisfied(req.OrderAmount) {
			continue
		}
		ok, err := s.rules.Evaluate(p.Condition, fact)
		if err != nil {
			// 表达式本身有问题：该策略按不适用处理，不拖垮整个报价
			logger.Ctx(ctx).Warn().Err(err).Int64("policy_id", p.ID).Msg("condition evaluation failed, skipping policy")
			continue
		}
		if !ok {
			continue
		}
		hasCapacity, err := s.usage.HasCapacity(ctx, p)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if !hasCapacity {
			continue
		}
		applicable = append(applicable, p)
	}

	// 3. 顺序叠加计算。
	byGroup, err := s.calc.DiscountsByGroup(applicable, req.OrderAmount)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	var total int64
	for _, v := range byGroup {
		total += v
	}

	span.SetAttributes(attribute.Int64("discount.total", total))
	return &QuoteResponse{
		TotalDiscount: total,
		Payable:       req.OrderAmount - total,
		ByGroup:       byGroup,
	}, nil
}
