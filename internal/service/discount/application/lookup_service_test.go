package application

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"mercato/internal/service/discount/domain"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newQueryService(repo *fakeRepo, cache *fakeCache) *DiscountQueryService {
	return NewDiscountQueryService(repo, cache, fixedClock{now: testNow}, otel.Tracer("test"))
}

func validPolicy(id int64, group domain.Group, rate, priority int) *domain.Policy {
	return &domain.Policy{
		ID:       id,
		Name:     "p",
		Group:    group,
		Type:     domain.TypeRate,
		Rate:     domain.Rate(rate),
		Priority: domain.Priority(priority),
		Period:   domain.Period{Start: testNow.Add(-time.Hour), End: testNow.Add(6 * time.Hour)},
		Active:   true,
	}
}

func TestResolveBestDiscount_CacheHit(t *testing.T) {
	repo := newFakeRepo()
	cache := newFakeCache()
	cache.entries["discount:product:10"] = &domain.PolicySnapshot{PolicyID: 1, Group: domain.GroupProduct}

	svc := newQueryService(repo, cache)
	snap, err := svc.ResolveBestDiscount(context.Background(), TargetDescriptor{ProductGroupID: 10, SellerID: 20})
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int64(1), snap.PolicyID)
	assert.Zero(t, repo.findValidCalls, "a cache hit must not touch the store")
}

func TestResolveBestDiscount_ProductHitPreferredOverSeller(t *testing.T) {
	repo := newFakeRepo()
	cache := newFakeCache()
	cache.entries["discount:product:10"] = &domain.PolicySnapshot{PolicyID: 1}
	cache.entries["discount:seller:20"] = &domain.PolicySnapshot{PolicyID: 2}

	svc := newQueryService(repo, cache)
	snap, err := svc.ResolveBestDiscount(context.Background(), TargetDescriptor{ProductGroupID: 10, SellerID: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.PolicyID)
}

func TestResolveBestDiscount_MissBackfillsWithRemainingTTL(t *testing.T) {
	repo := newFakeRepo()
	repo.addValid(domain.TargetProduct, 10,
		validPolicy(5, domain.GroupProduct, 10, 2),
		validPolicy(3, domain.GroupProduct, 20, 1),
	)
	cache := newFakeCache()

	svc := newQueryService(repo, cache)
	snap, err := svc.ResolveBestDiscount(context.Background(), TargetDescriptor{ProductGroupID: 10})
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int64(3), snap.PolicyID, "priority 1 policy wins")

	// 回填缓存，TTL 恰好等于剩余有效期
	stored := cache.entries["discount:product:10"]
	require.NotNil(t, stored)
	assert.Equal(t, snap, stored)
	assert.Equal(t, 6*time.Hour, cache.ttls["discount:product:10"])
}

func TestResolveBestDiscount_SellerFallback(t *testing.T) {
	repo := newFakeRepo()
	repo.addValid(domain.TargetSeller, 20, validPolicy(7, domain.GroupSeller, 5, 1))
	cache := newFakeCache()

	svc := newQueryService(repo, cache)
	snap, err := svc.ResolveBestDiscount(context.Background(), TargetDescriptor{ProductGroupID: 10, SellerID: 20})
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int64(7), snap.PolicyID)
	assert.Contains(t, cache.entries, "discount:seller:20")
}

func TestResolveBestDiscount_NoneFound(t *testing.T) {
	svc := newQueryService(newFakeRepo(), newFakeCache())

	// 缺省不是错误
	snap, err := svc.ResolveBestDiscount(context.Background(), TargetDescriptor{ProductGroupID: 10, SellerID: 20})
	require.NoError(t, err)
	assert.Nil(t, snap)

	// 没有任何目标同样返回空
	snap, err = svc.ResolveBestDiscount(context.Background(), TargetDescriptor{})
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestResolveBestDiscount_CacheErrorPropagates(t *testing.T) {
	cache := newFakeCache()
	cache.multiGetErr = errors.New("redis down")

	svc := newQueryService(newFakeRepo(), cache)
	_, err := svc.ResolveBestDiscount(context.Background(), TargetDescriptor{ProductGroupID: 10})
	assert.Error(t, err)
}

func TestResolveBestDiscount_StoreErrorPropagates(t *testing.T) {
	repo := newFakeRepo()
	repo.findValidErr = errors.New("mysql down")

	svc := newQueryService(repo, newFakeCache())
	_, err := svc.ResolveBestDiscount(context.Background(), TargetDescriptor{ProductGroupID: 10})
	assert.Error(t, err)
}

func TestResolveBestDiscount_BackfillFailureIsNotFatal(t *testing.T) {
	repo := newFakeRepo()
	repo.addValid(domain.TargetProduct, 10, validPolicy(3, domain.GroupProduct, 20, 1))
	cache := newFakeCache()
	cache.setErr = errors.New("redis write failed")

	svc := newQueryService(repo, cache)
	snap, err := svc.ResolveBestDiscount(context.Background(), TargetDescriptor{ProductGroupID: 10})
	require.NoError(t, err, "a failed backfill must not fail the resolve")
	assert.Equal(t, int64(3), snap.PolicyID)
}

func TestResolveBestDiscounts_BatchBypassesCache(t *testing.T) {
	repo := newFakeRepo()
	repo.addValid(domain.TargetProduct, 10, validPolicy(1, domain.GroupProduct, 10, 1))
	repo.addValid(domain.TargetProduct, 11, validPolicy(2, domain.GroupProduct, 15, 1))
	repo.addValid(domain.TargetSeller, 20, validPolicy(3, domain.GroupSeller, 5, 1))
	cache := newFakeCache()
	// 缓存里放一个"过期"的胜出者：批量路径必须无视它
	cache.entries["discount:product:10"] = &domain.PolicySnapshot{PolicyID: 99}

	svc := newQueryService(repo, cache)
	snaps, err := svc.ResolveBestDiscounts(context.Background(), []int64{10, 11, 12}, []int64{20})
	require.NoError(t, err)

	// 入参顺序决定输出顺序，查不到的目标（12）直接跳过
	require.Len(t, snaps, 3)
	assert.Equal(t, int64(1), snaps[0].PolicyID)
	assert.Equal(t, int64(2), snaps[1].PolicyID)
	assert.Equal(t, int64(3), snaps[2].PolicyID)
	assert.Empty(t, cache.ttls, "the batch path must not write to the cache")
}
