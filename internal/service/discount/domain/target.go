package domain

import "time"

// Target 把一个策略关联到具体的商品组或卖家。
// 它由策略聚合持有，策略删除时一并删除；对外部的商品/卖家 ID
// 只是引用，不拥有其生命周期。
type Target struct {
	ID       int64
	PolicyID int64
	Kind     TargetKind
	RefID    int64 // 商品组 ID 或卖家 ID
	Active   bool

	CreatedAt time.Time
	UpdatedAt time.Time

	revisions []TargetRevision
}

// TargetRevision 是目标关联启停前的不可变快照，与策略的审计模式一致。
type TargetRevision struct {
	TargetID  int64
	Active    bool
	ChangedAt time.Time
}

// NewTarget 创建一个目标关联。ALL 类型的策略不应携带具体目标。
func NewTarget(policyID int64, kind TargetKind, refID int64) (*Target, error) {
	if kind != TargetProduct && kind != TargetSeller {
		return nil, ErrInvalidTarget
	}
	if refID <= 0 {
		return nil, ErrInvalidTarget
	}
	return &Target{
		PolicyID:  policyID,
		Kind:      kind,
		RefID:     refID,
		Active:    true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}, nil
}

// ReconstituteTarget 从存储中恢复目标关联。
func ReconstituteTarget(t Target, revisions []TargetRevision) *Target {
	restored := t
	restored.revisions = revisions
	return &restored
}

// SetActive 启停目标关联，先快照再应用。
func (t *Target) SetActive(active bool) {
	t.revisions = append(t.revisions, TargetRevision{
		TargetID:  t.ID,
		Active:    t.Active,
		ChangedAt: time.Now(),
	})
	t.Active = active
	t.UpdatedAt = time.Now()
}

// Revisions 返回启停历史的只读视图。
func (t *Target) Revisions() []TargetRevision {
	out := make([]TargetRevision, len(t.revisions))
	copy(out, t.revisions)
	return out
}
