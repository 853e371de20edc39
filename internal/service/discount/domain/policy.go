package domain

import "time"

// Policy 是折扣策略聚合根。
// 它持有全部值对象并守护自身不变量：任何一次字段变更之前，
// 都会先把变更前的状态快照追加到只增不改的修订历史里。
type Policy struct {
	ID       int64
	SellerID int64 // 0 表示平台级策略，非 0 表示归属某个卖家
	Name     string
	Group    Group
	Type     Type
	Target   TargetKind

	Rate        Rate
	Amount      int64 // AMOUNT 类型的立减金额，最小货币单位
	MaxDiscount MaxDiscountAmount
	MinOrder    MinOrderAmount
	Period      Period
	UsageLimit  UsageLimit
	CostShare   CostShare
	Priority    Priority

	// Condition 是可选的 CEL 适用条件表达式，为空表示无条件适用。
	// 表达式的求值由基础设施层的规则引擎适配器完成。
	Condition string

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt time.Time // 零值表示未删除（软删除）

	targets   []*Target
	revisions []Revision
}

// Revision 是策略某次变更前的不可变快照，构成聚合自身的审计日志。
// 只追加，永不修改。
type Revision struct {
	PolicyID    int64
	Name        string
	Rate        Rate
	Amount      int64
	MaxDiscount MaxDiscountAmount
	MinOrder    MinOrderAmount
	Period      Period
	UsageLimit  UsageLimit
	CostShare   CostShare
	Priority    Priority
	Condition   string
	Active      bool
	ChangedAt   time.Time
}

// PolicyParams 是创建新策略所需的全部输入。
type PolicyParams struct {
	SellerID      int64
	Name          string
	Group         Group
	Type          Type
	Target        TargetKind
	Rate          int
	Amount        int64
	MaxDiscount   int64
	MinOrder      int64
	PeriodStart   time.Time
	PeriodEnd     time.Time
	UsageLimit    int64
	PlatformRatio int
	Priority      int
	Condition     string
}

// NewPolicy 校验并创建一个尚未持久化的策略（ID 为零值）。
// 任何一项校验失败都会立即返回领域错误，聚合绝不会处于半合法状态。
func NewPolicy(p PolicyParams) (*Policy, error) {
	if p.Name == "" {
		return nil, ErrMissingName
	}
	if p.Group == "" {
		return nil, ErrMissingGroup
	}
	period, err := NewPeriod(p.PeriodStart, p.PeriodEnd)
	if err != nil {
		return nil, err
	}
	priority, err := NewPriority(p.Priority)
	if err != nil {
		return nil, err
	}
	limit, err := NewUsageLimit(p.UsageLimit)
	if err != nil {
		return nil, err
	}
	minOrder, err := NewMinOrderAmount(p.MinOrder)
	if err != nil {
		return nil, err
	}
	maxDiscount, err := NewMaxDiscountAmount(p.MaxDiscount)
	if err != nil {
		return nil, err
	}
	costShare, err := NewCostShare(p.PlatformRatio)
	if err != nil {
		return nil, err
	}

	policy := &Policy{
		SellerID:    p.SellerID,
		Name:        p.Name,
		Group:       p.Group,
		Type:        p.Type,
		Target:      p.Target,
		MaxDiscount: maxDiscount,
		MinOrder:    minOrder,
		Period:      period,
		UsageLimit:  limit,
		CostShare:   costShare,
		Priority:    priority,
		Condition:   p.Condition,
		Active:      true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	// 类型与取值的交叉校验：RATE 必须带折扣率，AMOUNT 必须带立减金额。
	switch p.Type {
	case TypeRate:
		rate, err := NewRate(p.Rate)
		if err != nil {
			return nil, err
		}
		if rate == 0 {
			return nil, ErrMissingRate
		}
		policy.Rate = rate
	case TypeAmount:
		if p.Amount <= 0 {
			return nil, ErrMissingAmount
		}
		policy.Amount = p.Amount
	default:
		return nil, ErrMissingRate
	}

	return policy, nil
}

// Reconstitute 从存储中恢复聚合，不重跑仅在创建时适用的校验。
func Reconstitute(p Policy, targets []*Target, revisions []Revision) *Policy {
	restored := p
	restored.targets = targets
	restored.revisions = revisions
	return &restored
}

// Details 是一次变更中允许修改的全部字段。
type Details struct {
	Name        string
	Rate        Rate
	Amount      int64
	MaxDiscount MaxDiscountAmount
	MinOrder    MinOrderAmount
	Period      Period
	UsageLimit  UsageLimit
	CostShare   CostShare
	Priority    Priority
	Condition   string
}

// CurrentDetails 返回当前可变字段的取值，调用方可在其上修改后提交。
func (p *Policy) CurrentDetails() Details {
	return Details{
		Name:        p.Name,
		Rate:        p.Rate,
		Amount:      p.Amount,
		MaxDiscount: p.MaxDiscount,
		MinOrder:    p.MinOrder,
		Period:      p.Period,
		UsageLimit:  p.UsageLimit,
		CostShare:   p.CostShare,
		Priority:    p.Priority,
		Condition:   p.Condition,
	}
}

// ChangeDetails 替换可变字段。与当前值完全一致时是无操作，
// 不产生修订记录；否则先快照再应用。返回值表示是否发生了变更。
func (p *Policy) ChangeDetails(d Details) (bool, error) {
	if p.isDeleted() {
		return false, ErrPolicyDeleted
	}
	if d == p.CurrentDetails() {
		return false, nil
	}
	if d.Name == "" {
		return false, ErrMissingName
	}
	if d.Rate < 0 || d.Rate > 100 {
		return false, ErrInvalidRate
	}
	if d.Priority < 0 {
		return false, ErrInvalidPriority
	}
	if !d.Period.Start.Before(d.Period.End) {
		return false, ErrInvalidPeriod
	}
	if p.Type == TypeRate && d.Rate == 0 {
		return false, ErrMissingRate
	}
	if p.Type == TypeAmount && d.Amount <= 0 {
		return false, ErrMissingAmount
	}

	p.snapshot()
	p.Name = d.Name
	p.Rate = d.Rate
	p.Amount = d.Amount
	p.MaxDiscount = d.MaxDiscount
	p.MinOrder = d.MinOrder
	p.Period = d.Period
	p.UsageLimit = d.UsageLimit
	p.CostShare = d.CostShare
	p.Priority = d.Priority
	p.Condition = d.Condition
	p.UpdatedAt = time.Now()
	return true, nil
}

// SetActive 切换启用状态。状态翻转永远视为实质变更，
// 即便新旧值相同也记录一条修订。
func (p *Policy) SetActive(active bool) error {
	if p.isDeleted() {
		return ErrPolicyDeleted
	}
	p.snapshot()
	p.Active = active
	p.UpdatedAt = time.Now()
	return nil
}

// Delete 对策略做软删除，同时停用其全部目标关联。
func (p *Policy) Delete() error {
	if p.isDeleted() {
		return ErrPolicyDeleted
	}
	p.snapshot()
	p.Active = false
	p.DeletedAt = time.Now()
	p.UpdatedAt = p.DeletedAt
	return nil
}

// AddTarget 为指定目标类型的策略追加一个目标关联。
func (p *Policy) AddTarget(kind TargetKind, refID int64) (*Target, error) {
	t, err := NewTarget(p.ID, kind, refID)
	if err != nil {
		return nil, err
	}
	p.targets = append(p.targets, t)
	return t, nil
}

// Targets 返回目标关联的只读视图。
func (p *Policy) Targets() []*Target {
	out := make([]*Target, len(p.targets))
	copy(out, p.targets)
	return out
}

// Revisions 返回审计日志的只读视图。
func (p *Policy) Revisions() []Revision {
	out := make([]Revision, len(p.revisions))
	copy(out, p.revisions)
	return out
}

// IsApplicable 判断策略在给定时刻是否可用（启用、未删除、在有效期内）。
// 使用次数是否超限由用量服务判定，不在这里检查。
func (p *Policy) IsApplicable(at time.Time) bool {
	return p.Active && !p.isDeleted() && p.Period.Contains(at)
}

func (p *Policy) isDeleted() bool { return !p.DeletedAt.IsZero() }

// snapshot 把变更前的状态追加到修订历史。所有字段写入都必须先经过这里。
func (p *Policy) snapshot() {
	p.revisions = append(p.revisions, Revision{
		PolicyID:    p.ID,
		Name:        p.Name,
		Rate:        p.Rate,
		Amount:      p.Amount,
		MaxDiscount: p.MaxDiscount,
		MinOrder:    p.MinOrder,
		Period:      p.Period,
		UsageLimit:  p.UsageLimit,
		CostShare:   p.CostShare,
		Priority:    p.Priority,
		Condition:   p.Condition,
		Active:      p.Active,
		ChangedAt:   time.Now(),
	})
}
