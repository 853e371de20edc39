package application

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"mercato/internal/pkg/logger"
	"mercato/internal/service/discount/domain"
	"mercato/internal/service/discount/domain/port"
)

var (
	resolveCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discount_resolve_cache_total",
		Help: "Cache lookups on the single-target resolve path, by result.",
	}, []string{"result"})

	resolveStoreTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discount_resolve_store_total",
		Help: "Resolve requests that fell through to the persistent store.",
	})
)

// productCacheKey / sellerCacheKey 是快照缓存的键模式。
func productCacheKey(id int64) string { return fmt.Sprintf("discount:product:%d", id) }
func sellerCacheKey(id int64) string  { return fmt.Sprintf("discount:seller:%d", id) }

// DiscountQueryService 负责解析目标上当前胜出的折扣策略。
// 单目标路径走 cache-aside；批量路径刻意绕过缓存直查存储，
// 这是为列表页场景做的伸缩性取舍（见 DESIGN.md）。
type DiscountQueryService struct {
	repo   domain.PolicyRepository
	cache  port.SnapshotCache
	clock  port.Clock
	tracer trace.Tracer
}

// NewDiscountQueryService 创建折扣查询服务。
func NewDiscountQueryService(repo domain.PolicyRepository, cache port.SnapshotCache, clock port.Clock, tracer trace.Tracer) *DiscountQueryService {
	return &DiscountQueryService{repo: repo, cache: cache, clock: clock, tracer: tracer}
}

// ResolveBestDiscount 解析单个目标上胜出的折扣快照。
// 查不到可用折扣返回 (nil, nil)：缺省不是错误。
// 缓存或存储不可用时错误原样上抛，由调用方决定降级策略。
func (s *DiscountQueryService) ResolveBestDiscount(ctx context.Context, target TargetDescriptor) (*domain.PolicySnapshot, error) {
	ctx, span := s.tracer.Start(ctx, "service.ResolveBestDiscount")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("target.product_group_id", target.ProductGroupID),
		attribute.Int64("target.seller_id", target.SellerID),
	)

	// 1. 由目标派生缓存键，商品键排在卖家键之前。
	keys := make([]string, 0, 2)
	if target.ProductGroupID > 0 {
		keys = append(keys, productCacheKey(target.ProductGroupID))
	}
	if target.SellerID > 0 {
		keys = append(keys, sellerCacheKey(target.SellerID))
	}
	if len(keys) == 0 {
		return nil, nil
	}

	// 2. 一次往返批量读缓存，命中则按商品优先的顺序直接返回。
	cached, err := s.cache.MultiGet(ctx, keys)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	for _, snap := range cached {
		if snap != nil {
			resolveCacheTotal.WithLabelValues("hit").Inc()
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return snap, nil
		}
	}
	resolveCacheTotal.WithLabelValues("miss").Inc()
	resolveStoreTotal.Inc()

	// 3. 全部未命中，回源存储。商品级匹配优先于卖家级匹配。
	now := s.clock.Now()
	var winner *domain.Policy
	cacheKey := ""
	if target.ProductGroupID > 0 {
		policies, err := s.repo.FindValid(ctx, domain.TargetProduct, target.ProductGroupID, now)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		winner = domain.BestPolicy(policies)
		cacheKey = productCacheKey(target.ProductGroupID)
	}
	if winner == nil && target.SellerID > 0 {
		policies, err := s.repo.FindValid(ctx, domain.TargetSeller, target.SellerID, now)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		winner = domain.BestPolicy(policies)
		cacheKey = sellerCacheKey(target.SellerID)
	}
	if winner == nil {
		return nil, nil
	}

	// 4. 回填缓存，TTL 等于策略剩余有效期：条目会在策略
	// 自然失效的同一时刻过期。回填失败只记日志，不影响本次结果。
	snap := domain.SnapshotOf(winner)
	if ttl := snap.RemainingTTL(now); ttl > 0 {
		if err := s.cache.Set(ctx, cacheKey, snap, ttl); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("key", cacheKey).Msg("failed to backfill discount snapshot cache")
		}
	}
	return snap, nil
}

// ResolveBestDiscounts 是批量解析路径。它不读缓存，
// 而是对商品组和卖家各发一条 in-list 查询（并发执行），
// 代价是批量结果可能比单目标的缓存结果更"新"，两者存在
// 短暂的一致性偏差，这是预期行为而非缺陷。
func (s *DiscountQueryService) ResolveBestDiscounts(ctx context.Context, productGroupIDs, sellerIDs []int64) ([]*domain.PolicySnapshot, error) {
	ctx, span := s.tracer.Start(ctx, "service.ResolveBestDiscounts")
	defer span.End()

	span.SetAttributes(
		attribute.Int("batch.product_count", len(productGroupIDs)),
		attribute.Int("batch.seller_count", len(sellerIDs)),
	)

	now := s.clock.Now()

	var (
		byProduct map[int64][]*domain.Policy
		bySeller  map[int64][]*domain.Policy
	)
	g, gctx := errgroup.WithContext(ctx)
	if len(productGroupIDs) > 0 {
		g.Go(func() error {
			var err error
			byProduct, err = s.repo.FindValidByTargets(gctx, domain.TargetProduct, productGroupIDs, now)
			return err
		})
	}
	if len(sellerIDs) > 0 {
		g.Go(func() error {
			var err error
			bySeller, err = s.repo.FindValidByTargets(gctx, domain.TargetSeller, sellerIDs, now)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	// 每个目标取组内胜出者，按入参顺序输出，保证结果确定。
	snapshots := make([]*domain.PolicySnapshot, 0, len(productGroupIDs)+len(sellerIDs))
	for _, id := range productGroupIDs {
		if winner := domain.BestPolicy(byProduct[id]); winner != nil {
			snapshots = append(snapshots, domain.SnapshotOf(winner))
		}
	}
	for _, id := range sellerIDs {
		if winner := domain.BestPolicy(bySeller[id]); winner != nil {
			snapshots = append(snapshots, domain.SnapshotOf(winner))
		}
	}
	return snapshots, nil
}
