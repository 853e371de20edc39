package infrastructure

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"mercato/internal/service/discount/domain"
)

// GormPolicyRepository 是 domain.PolicyRepository 的 GORM 实现。
type GormPolicyRepository struct {
	db *gorm.DB
}

// NewGormPolicyRepository 创建一个新的 GORM 仓储实例。
func NewGormPolicyRepository(db *gorm.DB) *GormPolicyRepository {
	return &GormPolicyRepository{db: db}
}

// AutoMigrate 建表，供本地开发与测试环境使用。
func (r *GormPolicyRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&PolicyModel{},
		&PolicyRevisionModel{},
		&TargetModel{},
		&TargetRevisionModel{},
		&UsageModel{},
	)
}

// Save 在一个事务里保存聚合本体、目标关联和新增的修订记录。
// 修订历史是只增的：已落库的行绝不更新，只插入新产生的尾部。
func (r *GormPolicyRepository) Save(ctx context.Context, policy *domain.Policy) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := FromDomainPolicy(policy)
		if err := tx.Save(model).Error; err != nil {
			return err
		}
		policy.ID = int64(model.ID)

		for _, t := range policy.Targets() {
			targetModel := FromDomainTarget(policy.ID, t)
			if err := tx.Save(targetModel).Error; err != nil {
				return err
			}
			t.ID = int64(targetModel.ID)

			if err := appendTargetRevisions(tx, t); err != nil {
				return err
			}
		}

		return appendPolicyRevisions(tx, policy)
	})
}

// appendPolicyRevisions 只插入尚未持久化的修订尾部。
func appendPolicyRevisions(tx *gorm.DB, policy *domain.Policy) error {
	revisions := policy.Revisions()
	if len(revisions) == 0 {
		return nil
	}
	var persisted int64
	if err := tx.Model(&PolicyRevisionModel{}).Where("policy_id = ?", policy.ID).Count(&persisted).Error; err != nil {
		return err
	}
	for _, rev := range revisions[persisted:] {
		if err := tx.Create(FromDomainRevision(policy.ID, rev)).Error; err != nil {
			return err
		}
	}
	return nil
}

func appendTargetRevisions(tx *gorm.DB, t *domain.Target) error {
	revisions := t.Revisions()
	if len(revisions) == 0 {
		return nil
	}
	var persisted int64
	if err := tx.Model(&TargetRevisionModel{}).Where("target_id = ?", t.ID).Count(&persisted).Error; err != nil {
		return err
	}
	for _, rev := range revisions[persisted:] {
		if err := tx.Create(&TargetRevisionModel{
			TargetID:  t.ID,
			Active:    rev.Active,
			ChangedAt: rev.ChangedAt,
		}).Error; err != nil {
			return err
		}
	}
	return nil
}

// FindByID 按 ID 加载聚合及其全部关联。
func (r *GormPolicyRepository) FindByID(ctx context.Context, id int64) (*domain.Policy, error) {
	var model PolicyModel
	err := r.db.WithContext(ctx).
		Preload("Targets").
		Preload("Targets.Revisions").
		Preload("Revisions").
		First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPolicyNotFound
		}
		return nil, err
	}
	return ToDomainPolicy(&model), nil
}

// FindValid 查找 asOf 时刻对指定目标有效的策略：
// 全场策略，加上通过启用中的目标关联命中该目标的策略。
func (r *GormPolicyRepository) FindValid(ctx context.Context, kind domain.TargetKind, targetID int64, asOf time.Time) ([]*domain.Policy, error) {
	matched := r.db.Model(&TargetModel{}).
		Select("policy_id").
		Where("kind = ? AND ref_id = ? AND active = ?", string(kind), targetID, true)

	var models []PolicyModel
	err := r.db.WithContext(ctx).
		Preload("Targets").
		Where("active = ?", true).
		Where("valid_from <= ? AND valid_to > ?", asOf, asOf).
		Where(r.db.
			Where("target_kind = ?", string(domain.TargetAll)).
			Or("target_kind = ? AND id IN (?)", string(kind), matched)).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toDomainPolicies(models), nil
}

// FindValidBySeller 查找某卖家在指定分组下的有效策略。
func (r *GormPolicyRepository) FindValidBySeller(ctx context.Context, sellerID int64, group domain.Group, asOf time.Time) ([]*domain.Policy, error) {
	var models []PolicyModel
	err := r.db.WithContext(ctx).
		Preload("Targets").
		Where("seller_id = ? AND group_name = ?", sellerID, string(group)).
		Where("active = ?", true).
		Where("valid_from <= ? AND valid_to > ?", asOf, asOf).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toDomainPolicies(models), nil
}

// FindValidByTargets 是批量路径的 in-list 查询。
// 先按目标关联捞出命中的策略，再补上对所有目标都生效的全场策略。
func (r *GormPolicyRepository) FindValidByTargets(ctx context.Context, kind domain.TargetKind, targetIDs []int64, asOf time.Time) (map[int64][]*domain.Policy, error) {
	result := make(map[int64][]*domain.Policy, len(targetIDs))
	if len(targetIDs) == 0 {
		return result, nil
	}

	// 1. 目标关联行：policy_id 与 ref_id 的映射。
	var targetRows []TargetModel
	err := r.db.WithContext(ctx).
		Where("kind = ? AND ref_id IN ? AND active = ?", string(kind), targetIDs, true).
		Find(&targetRows).Error
	if err != nil {
		return nil, err
	}

	refsByPolicy := make(map[int64][]int64)
	policyIDs := make([]int64, 0, len(targetRows))
	for _, row := range targetRows {
		if len(refsByPolicy[row.PolicyID]) == 0 {
			policyIDs = append(policyIDs, row.PolicyID)
		}
		refsByPolicy[row.PolicyID] = append(refsByPolicy[row.PolicyID], row.RefID)
	}

	// 2. 按 ID 批量加载有效的命中策略。
	if len(policyIDs) > 0 {
		var models []PolicyModel
		err = r.db.WithContext(ctx).
			Where("id IN ?", policyIDs).
			Where("target_kind = ?", string(kind)).
			Where("active = ?", true).
			Where("valid_from <= ? AND valid_to > ?", asOf, asOf).
			Find(&models).Error
		if err != nil {
			return nil, err
		}
		for i := range models {
			p := ToDomainPolicy(&models[i])
			for _, refID := range refsByPolicy[p.ID] {
				result[refID] = append(result[refID], p)
			}
		}
	}

	// 3. 全场策略对每个目标都适用。
	var allModels []PolicyModel
	err = r.db.WithContext(ctx).
		Where("target_kind = ?", string(domain.TargetAll)).
		Where("active = ?", true).
		Where("valid_from <= ? AND valid_to > ?", asOf, asOf).
		Find(&allModels).Error
	if err != nil {
		return nil, err
	}
	for i := range allModels {
		p := ToDomainPolicy(&allModels[i])
		for _, id := range targetIDs {
			result[id] = append(result[id], p)
		}
	}

	return result, nil
}

// CountUsage 统计策略的累计使用次数。
func (r *GormPolicyRepository) CountUsage(ctx context.Context, policyID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&UsageModel{}).
		Where("policy_id = ?", policyID).
		Count(&count).Error
	return count, err
}

// AppendUsage 追加一条使用流水并回填记录 ID。
func (r *GormPolicyRepository) AppendUsage(ctx context.Context, record *domain.UsageRecord) error {
	model := FromDomainUsage(record)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	record.ID = int64(model.ID)
	return nil
}

func toDomainPolicies(models []PolicyModel) []*domain.Policy {
	policies := make([]*domain.Policy, 0, len(models))
	for i := range models {
		policies = append(policies, ToDomainPolicy(&models[i]))
	}
	return policies
}
