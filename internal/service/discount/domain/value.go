package domain

import "time"

// Rate 表示百分比折扣率，取值范围 [0, 100] 的整数。
// 货币金额全程使用整数最小单位，避免浮点运算。
type Rate int

// NewRate 创建一个折扣率值对象，越界立即失败。
func NewRate(v int) (Rate, error) {
	if v < 0 || v > 100 {
		return 0, ErrInvalidRate
	}
	return Rate(v), nil
}

// Priority 表示同组内策略的优先级，数值越小优先级越高。
type Priority int

func NewPriority(v int) (Priority, error) {
	if v < 0 {
		return 0, ErrInvalidPriority
	}
	return Priority(v), nil
}

// Period 表示策略的有效期，半开区间 [Start, End)。
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod 创建有效期值对象，起止时间都必填且 Start 必须早于 End。
func NewPeriod(start, end time.Time) (Period, error) {
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Start: start, End: end}, nil
}

// Contains 判断给定时刻是否落在有效期内（含起点，不含终点）。
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Remaining 返回从 now 到有效期结束的剩余时长，已过期返回 0。
// 缓存条目的 TTL 以此为上界，保证条目在策略失效时自然过期。
func (p Period) Remaining(now time.Time) time.Duration {
	if !now.Before(p.End) {
		return 0
	}
	return p.End.Sub(now)
}

// UsageLimit 表示策略的使用次数上限，0 作为"不限次数"的哨兵值。
type UsageLimit int64

func NewUsageLimit(v int64) (UsageLimit, error) {
	if v < 0 {
		return 0, ErrInvalidUsageLimit
	}
	return UsageLimit(v), nil
}

// Unlimited 判断是否不限次数。
func (l UsageLimit) Unlimited() bool { return l == 0 }

// Allows 判断当前已使用次数下还能否再用一次。
func (l UsageLimit) Allows(used int64) bool {
	return l.Unlimited() || used < int64(l)
}

// MinOrderAmount 表示可享受折扣的最低订单金额，0 表示无门槛。
type MinOrderAmount int64

func NewMinOrderAmount(v int64) (MinOrderAmount, error) {
	if v < 0 {
		return 0, ErrInvalidAmount
	}
	return MinOrderAmount(v), nil
}

// Satisfied 判断订单金额是否满足门槛。
func (m MinOrderAmount) Satisfied(orderAmount int64) bool {
	return m == 0 || orderAmount >= int64(m)
}

// MaxDiscountAmount 表示单次折扣的封顶金额，0 表示不封顶。
type MaxDiscountAmount int64

func NewMaxDiscountAmount(v int64) (MaxDiscountAmount, error) {
	if v < 0 {
		return 0, ErrInvalidAmount
	}
	return MaxDiscountAmount(v), nil
}

// Clamp 将折扣金额压到封顶值以内。
func (m MaxDiscountAmount) Clamp(v int64) int64 {
	if m > 0 && v > int64(m) {
		return int64(m)
	}
	return v
}

// CostShare 表示折扣成本在平台与卖家之间的分摊比例。
// PlatformRatio 是平台承担的百分比，100 表示平台全额承担。
type CostShare struct {
	PlatformRatio int
}

// PlatformFunded 是平台全额承担的默认分摊。
func PlatformFunded() CostShare { return CostShare{PlatformRatio: 100} }

func NewCostShare(platformRatio int) (CostShare, error) {
	if platformRatio < 0 || platformRatio > 100 {
		return CostShare{}, ErrInvalidCostShare
	}
	return CostShare{PlatformRatio: platformRatio}, nil
}

// SellerRatio 返回卖家承担的百分比。
func (c CostShare) SellerRatio() int { return 100 - c.PlatformRatio }
