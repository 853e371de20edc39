package domain

import "sort"

// Calculator 是折扣计算的纯领域服务：无状态、无副作用，
// 可以被任意多个 goroutine 并发调用。
//
// 前置条件由调用方保证：传入的策略必须已经过滤为
// 启用中、在有效期内、未超使用上限的策略。
// 计算器自身不做任何时间或用量检查。
type Calculator struct{}

// NewCalculator 创建一个折扣计算器。
func NewCalculator() *Calculator { return &Calculator{} }

// step 是叠加计算中单个分组的抵扣结果。
type step struct {
	group  Group
	amount int64
}

// TotalDiscount 计算订单金额在给定策略集合下的总抵扣。
// 叠加是顺序式、非加和式的：每一步的计算基数是上一步扣减后的余额，
// 因此总抵扣永远不会超过原始订单金额。
func (c *Calculator) TotalDiscount(policies []*Policy, orderAmount int64) (int64, error) {
	steps, err := c.apply(policies, orderAmount)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, s := range steps {
		total += s.amount
	}
	return total, nil
}

// DiscountsByGroup 返回各分组实际抵扣的金额。
func (c *Calculator) DiscountsByGroup(policies []*Policy, orderAmount int64) (map[Group]int64, error) {
	steps, err := c.apply(policies, orderAmount)
	if err != nil {
		return nil, err
	}
	result := make(map[Group]int64, len(steps))
	for _, s := range steps {
		result[s.group] = s.amount
	}
	return result, nil
}

// SortByPriority 返回按优先级升序排列的新切片，不修改入参。
// 优先级相同时按策略 ID 升序，保证排序结果稳定可复现。
func (c *Calculator) SortByPriority(policies []*Policy) []*Policy {
	sorted := make([]*Policy, len(policies))
	copy(sorted, policies)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// apply 执行完整的分组-选优-顺序叠加算法。
func (c *Calculator) apply(policies []*Policy, orderAmount int64) ([]step, error) {
	if orderAmount < 0 {
		return nil, ErrNegativeOrderAmount
	}

	// 1. 按分组归类，同时校验入参。
	byGroup := make(map[Group][]*Policy)
	for _, p := range policies {
		if p == nil || p.Group == "" {
			return nil, ErrMissingGroup
		}
		byGroup[p.Group] = append(byGroup[p.Group], p)
	}

	// 2. 组内选优：优先级数值最小者胜出。
	// 同优先级时取策略 ID 最小者，这是一个明确的设计决定，
	// 不依赖任何集合的偶然顺序。
	winners := make(map[Group]*Policy, len(byGroup))
	for g, group := range byGroup {
		winners[g] = BestPolicy(group)
	}

	// 3. 按固定分组顺序叠加。不在既定顺序里的扩展分组
	// 排在末尾，按分组名字典序保证确定性。
	order := make([]Group, 0, len(winners))
	for _, g := range groupOrder {
		if _, ok := winners[g]; ok {
			order = append(order, g)
		}
	}
	var extra []Group
	for g := range winners {
		if !isCanonicalGroup(g) {
			extra = append(extra, g)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	order = append(order, extra...)

	// 4. 顺序叠加，每一步都把抵扣额压到 [0, 余额] 与封顶值以内。
	steps := make([]step, 0, len(order))
	remaining := orderAmount
	for _, g := range order {
		p := winners[g]
		raw := stepDiscount(p, remaining)
		steps = append(steps, step{group: g, amount: raw})
		remaining -= raw
	}
	return steps, nil
}

// BestPolicy 返回集合中胜出的单个策略：优先级数值最小者，
// 同优先级取 ID 最小者。空集合返回 nil。
func BestPolicy(policies []*Policy) *Policy {
	var best *Policy
	for _, p := range policies {
		if p == nil {
			continue
		}
		if best == nil ||
			p.Priority < best.Priority ||
			(p.Priority == best.Priority && p.ID < best.ID) {
			best = p
		}
	}
	return best
}

// stepDiscount 计算单个策略在当前余额上的抵扣额。
// 比例折扣按四舍五入（half-up）取整到最小货币单位。
func stepDiscount(p *Policy, remaining int64) int64 {
	var raw int64
	switch p.Type {
	case TypeRate:
		raw = (remaining*int64(p.Rate) + 50) / 100
	case TypeAmount:
		raw = p.Amount
	}
	if raw < 0 {
		raw = 0
	}
	if raw > remaining {
		raw = remaining
	}
	return p.MaxDiscount.Clamp(raw)
}

func isCanonicalGroup(g Group) bool {
	for _, c := range groupOrder {
		if g == c {
			return true
		}
	}
	return false
}
