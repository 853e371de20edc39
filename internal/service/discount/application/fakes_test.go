package application

import (
	"context"
	"time"

	"mercato/internal/service/discount/domain"
	"mercato/internal/service/discount/domain/port"
)

// fixedClock 让测试里的"现在"完全可控。
type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// fakeRepo 是 PolicyRepository 的内存实现。
type fakeRepo struct {
	policies   map[int64]*domain.Policy
	validByKey map[domain.TargetKind]map[int64][]*domain.Policy
	usage      map[int64]int64
	appended   []*domain.UsageRecord
	saved      []*domain.Policy

	findValidCalls int
	findValidErr   error
	appendErr      error
	countErr       error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		policies:   make(map[int64]*domain.Policy),
		validByKey: make(map[domain.TargetKind]map[int64][]*domain.Policy),
		usage:      make(map[int64]int64),
	}
}

func (r *fakeRepo) addValid(kind domain.TargetKind, targetID int64, policies ...*domain.Policy) {
	if r.validByKey[kind] == nil {
		r.validByKey[kind] = make(map[int64][]*domain.Policy)
	}
	r.validByKey[kind][targetID] = append(r.validByKey[kind][targetID], policies...)
}

func (r *fakeRepo) Save(ctx context.Context, policy *domain.Policy) error {
	if policy.ID == 0 {
		policy.ID = int64(len(r.saved) + 1)
	}
	r.saved = append(r.saved, policy)
	r.policies[policy.ID] = policy
	return nil
}

func (r *fakeRepo) FindByID(ctx context.Context, id int64) (*domain.Policy, error) {
	p, ok := r.policies[id]
	if !ok {
		return nil, domain.ErrPolicyNotFound
	}
	return p, nil
}

func (r *fakeRepo) FindValid(ctx context.Context, kind domain.TargetKind, targetID int64, asOf time.Time) ([]*domain.Policy, error) {
	r.findValidCalls++
	if r.findValidErr != nil {
		return nil, r.findValidErr
	}
	return r.validByKey[kind][targetID], nil
}

func (r *fakeRepo) FindValidBySeller(ctx context.Context, sellerID int64, group domain.Group, asOf time.Time) ([]*domain.Policy, error) {
	var out []*domain.Policy
	for _, p := range r.validByKey[domain.TargetSeller][sellerID] {
		if p.Group == group {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeRepo) FindValidByTargets(ctx context.Context, kind domain.TargetKind, targetIDs []int64, asOf time.Time) (map[int64][]*domain.Policy, error) {
	if r.findValidErr != nil {
		return nil, r.findValidErr
	}
	out := make(map[int64][]*domain.Policy, len(targetIDs))
	for _, id := range targetIDs {
		out[id] = r.validByKey[kind][id]
	}
	return out, nil
}

func (r *fakeRepo) CountUsage(ctx context.Context, policyID int64) (int64, error) {
	if r.countErr != nil {
		return 0, r.countErr
	}
	return r.usage[policyID], nil
}

func (r *fakeRepo) AppendUsage(ctx context.Context, record *domain.UsageRecord) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	record.ID = int64(len(r.appended) + 1)
	r.appended = append(r.appended, record)
	r.usage[record.PolicyID]++
	return nil
}

// fakeCache 是 SnapshotCache 的内存实现，记录 Set 的 TTL 供断言。
type fakeCache struct {
	entries map[string]*domain.PolicySnapshot
	ttls    map[string]time.Duration
	deleted []string

	multiGetErr error
	setErr      error
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries: make(map[string]*domain.PolicySnapshot),
		ttls:    make(map[string]time.Duration),
	}
}

func (c *fakeCache) MultiGet(ctx context.Context, keys []string) ([]*domain.PolicySnapshot, error) {
	if c.multiGetErr != nil {
		return nil, c.multiGetErr
	}
	out := make([]*domain.PolicySnapshot, len(keys))
	for i, k := range keys {
		out[i] = c.entries[k]
	}
	return out, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, snapshot *domain.PolicySnapshot, ttl time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[key] = snapshot
	c.ttls[key] = ttl
	return nil
}

func (c *fakeCache) Del(ctx context.Context, keys ...string) error {
	c.deleted = append(c.deleted, keys...)
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

// fakeReserver 是 UsageReserver 的内存实现。
// initialized 为 false 时模拟计数器缺失，复现冷启动路径。
type fakeReserver struct {
	counts      map[int64]int64
	initialized map[int64]bool
	releases    int
	reserveErr  error
}

func newFakeReserver() *fakeReserver {
	return &fakeReserver{
		counts:      make(map[int64]int64),
		initialized: make(map[int64]bool),
	}
}

func (r *fakeReserver) seed(policyID, current int64) {
	r.initialized[policyID] = true
	r.counts[policyID] = current
}

func (r *fakeReserver) Reserve(ctx context.Context, policyID int64, limit int64) (bool, error) {
	if r.reserveErr != nil {
		return false, r.reserveErr
	}
	if !r.initialized[policyID] {
		return false, port.ErrUsageCounterMissing
	}
	if r.counts[policyID] >= limit {
		return false, nil
	}
	r.counts[policyID]++
	return true, nil
}

func (r *fakeReserver) Release(ctx context.Context, policyID int64) error {
	r.releases++
	if r.counts[policyID] > 0 {
		r.counts[policyID]--
	}
	return nil
}

func (r *fakeReserver) InitCounter(ctx context.Context, policyID int64, current int64) error {
	if !r.initialized[policyID] {
		r.seed(policyID, current)
	}
	return nil
}

// fakePublisher 收集发布的事件。
type fakePublisher struct {
	events []*domain.DiscountAppliedEvent
	err    error
}

func (p *fakePublisher) PublishDiscountApplied(ctx context.Context, event *domain.DiscountAppliedEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}
