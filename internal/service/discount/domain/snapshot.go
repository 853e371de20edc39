package domain

import "time"

// PolicySnapshot 是胜出策略的派生投影，用作缓存条目。
// 它不是权威数据，随时可以从持久化存储重建；
// 生命周期以策略剩余有效期为上界。
type PolicySnapshot struct {
	PolicyID      int64  `json:"policy_id"`
	Group         Group  `json:"group"`
	Type          Type   `json:"type"`
	Rate          int    `json:"rate"`
	Amount        int64  `json:"amount"`
	MaxDiscount   int64  `json:"max_discount"`
	MinOrder      int64  `json:"min_order"`
	Priority      int    `json:"priority"`
	PlatformRatio int    `json:"platform_ratio"`
	ValidUntil    time.Time `json:"valid_until"`
}

// SnapshotOf 从策略聚合生成缓存投影。
func SnapshotOf(p *Policy) *PolicySnapshot {
	if p == nil {
		return nil
	}
	return &PolicySnapshot{
		PolicyID:      p.ID,
		Group:         p.Group,
		Type:          p.Type,
		Rate:          int(p.Rate),
		Amount:        p.Amount,
		MaxDiscount:   int64(p.MaxDiscount),
		MinOrder:      int64(p.MinOrder),
		Priority:      int(p.Priority),
		PlatformRatio: p.CostShare.PlatformRatio,
		ValidUntil:    p.Period.End,
	}
}

// RemainingTTL 返回快照距离失效的剩余时长，用作缓存条目的 TTL。
func (s *PolicySnapshot) RemainingTTL(now time.Time) time.Duration {
	if !now.Before(s.ValidUntil) {
		return 0
	}
	return s.ValidUntil.Sub(now)
}
