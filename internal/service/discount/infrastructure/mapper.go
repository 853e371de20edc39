package infrastructure

import (
	"time"

	"gorm.io/gorm"

	"mercato/internal/service/discount/domain"
)

// ToDomainPolicy 将数据库模型转换为领域聚合。
func ToDomainPolicy(model *PolicyModel) *domain.Policy {
	if model == nil {
		return nil
	}

	targets := make([]*domain.Target, 0, len(model.Targets))
	for i := range model.Targets {
		targets = append(targets, ToDomainTarget(&model.Targets[i]))
	}
	revisions := make([]domain.Revision, 0, len(model.Revisions))
	for _, r := range model.Revisions {
		revisions = append(revisions, domain.Revision{
			PolicyID:    r.PolicyID,
			Name:        r.Name,
			Rate:        domain.Rate(r.Rate),
			Amount:      r.Amount,
			MaxDiscount: domain.MaxDiscountAmount(r.MaxDiscount),
			MinOrder:    domain.MinOrderAmount(r.MinOrder),
			Period:      domain.Period{Start: r.ValidFrom, End: r.ValidTo},
			UsageLimit:  domain.UsageLimit(r.UsageLimit),
			CostShare:   domain.CostShare{PlatformRatio: r.PlatformRatio},
			Priority:    domain.Priority(r.Priority),
			Condition:   r.Condition,
			Active:      r.Active,
			ChangedAt:   r.ChangedAt,
		})
	}

	var deletedAt time.Time
	if model.DeletedAt.Valid {
		deletedAt = model.DeletedAt.Time
	}

	return domain.Reconstitute(domain.Policy{
		ID:          int64(model.ID),
		SellerID:    model.SellerID,
		Name:        model.Name,
		Group:       domain.Group(model.GroupName),
		Type:        domain.Type(model.Type),
		Target:      domain.TargetKind(model.TargetKind),
		Rate:        domain.Rate(model.Rate),
		Amount:      model.Amount,
		MaxDiscount: domain.MaxDiscountAmount(model.MaxDiscount),
		MinOrder:    domain.MinOrderAmount(model.MinOrder),
		Period:      domain.Period{Start: model.ValidFrom, End: model.ValidTo},
		UsageLimit:  domain.UsageLimit(model.UsageLimit),
		CostShare:   domain.CostShare{PlatformRatio: model.PlatformRatio},
		Priority:    domain.Priority(model.Priority),
		Condition:   model.Condition,
		Active:      model.Active,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		DeletedAt:   deletedAt,
	}, targets, revisions)
}

// ToDomainTarget 将目标关联模型转换为领域对象。
func ToDomainTarget(model *TargetModel) *domain.Target {
	if model == nil {
		return nil
	}
	revisions := make([]domain.TargetRevision, 0, len(model.Revisions))
	for _, r := range model.Revisions {
		revisions = append(revisions, domain.TargetRevision{
			TargetID:  r.TargetID,
			Active:    r.Active,
			ChangedAt: r.ChangedAt,
		})
	}
	return domain.ReconstituteTarget(domain.Target{
		ID:        int64(model.ID),
		PolicyID:  model.PolicyID,
		Kind:      domain.TargetKind(model.Kind),
		RefID:     model.RefID,
		Active:    model.Active,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}, revisions)
}

// FromDomainPolicy 将领域聚合转换为数据库模型（不含关联，
// 关联在仓储的事务里单独处理）。
func FromDomainPolicy(p *domain.Policy) *PolicyModel {
	if p == nil {
		return nil
	}
	model := &PolicyModel{
		Model: gorm.Model{
			ID:        uint(p.ID),
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		},
		SellerID:      p.SellerID,
		Name:          p.Name,
		GroupName:     string(p.Group),
		Type:          string(p.Type),
		TargetKind:    string(p.Target),
		Rate:          int(p.Rate),
		Amount:        p.Amount,
		MaxDiscount:   int64(p.MaxDiscount),
		MinOrder:      int64(p.MinOrder),
		ValidFrom:     p.Period.Start,
		ValidTo:       p.Period.End,
		UsageLimit:    int64(p.UsageLimit),
		PlatformRatio: p.CostShare.PlatformRatio,
		Priority:      int(p.Priority),
		Condition:     p.Condition,
		Active:        p.Active,
	}
	if !p.DeletedAt.IsZero() {
		model.DeletedAt = gorm.DeletedAt{Time: p.DeletedAt, Valid: true}
	}
	return model
}

// FromDomainTarget 将目标关联转换为数据库模型。
func FromDomainTarget(policyID int64, t *domain.Target) *TargetModel {
	return &TargetModel{
		Model: gorm.Model{
			ID:        uint(t.ID),
			CreatedAt: t.CreatedAt,
			UpdatedAt: t.UpdatedAt,
		},
		PolicyID: policyID,
		Kind:     string(t.Kind),
		RefID:    t.RefID,
		Active:   t.Active,
	}
}

// FromDomainRevision 将策略修订转换为数据库模型。
func FromDomainRevision(policyID int64, r domain.Revision) *PolicyRevisionModel {
	return &PolicyRevisionModel{
		PolicyID:      policyID,
		Name:          r.Name,
		Rate:          int(r.Rate),
		Amount:        r.Amount,
		MaxDiscount:   int64(r.MaxDiscount),
		MinOrder:      int64(r.MinOrder),
		ValidFrom:     r.Period.Start,
		ValidTo:       r.Period.End,
		UsageLimit:    int64(r.UsageLimit),
		PlatformRatio: r.CostShare.PlatformRatio,
		Priority:      int(r.Priority),
		Condition:     r.Condition,
		Active:        r.Active,
		ChangedAt:     r.ChangedAt,
	}
}

// ToDomainUsage / FromDomainUsage 转换使用流水。
func ToDomainUsage(model *UsageModel) *domain.UsageRecord {
	if model == nil {
		return nil
	}
	return &domain.UsageRecord{
		ID:        int64(model.ID),
		PolicyID:  model.PolicyID,
		OrderID:   model.OrderID,
		UserID:    model.UserID,
		Amount:    model.Amount,
		AppliedAt: model.AppliedAt,
	}
}

func FromDomainUsage(r *domain.UsageRecord) *UsageModel {
	return &UsageModel{
		PolicyID:  r.PolicyID,
		OrderID:   r.OrderID,
		UserID:    r.UserID,
		Amount:    r.Amount,
		AppliedAt: r.AppliedAt,
	}
}
