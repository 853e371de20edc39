package domain

import (
	"context"
	"time"
)

// PolicyRepository 定义了折扣策略聚合的持久化接口。
// 位于领域层，由基础设施层实现。
type PolicyRepository interface {
	// Save 保存聚合及其目标关联和修订历史（创建或更新）。
	Save(ctx context.Context, policy *Policy) error

	// FindByID 按 ID 查找聚合，不存在时返回 ErrPolicyNotFound。
	FindByID(ctx context.Context, id int64) (*Policy, error)

	// FindValid 查找在 asOf 时刻对指定目标有效的全部策略：
	// 启用中、未删除、在有效期内，且作用范围为全场或命中该目标。
	FindValid(ctx context.Context, kind TargetKind, targetID int64, asOf time.Time) ([]*Policy, error)

	// FindValidBySeller 查找某卖家在指定分组下的有效策略。
	FindValidBySeller(ctx context.Context, sellerID int64, group Group, asOf time.Time) ([]*Policy, error)

	// FindValidByTargets 是批量路径使用的 in-list 查询，
	// 返回每个目标 ID 命中的有效策略。
	FindValidByTargets(ctx context.Context, kind TargetKind, targetIDs []int64, asOf time.Time) (map[int64][]*Policy, error)

	// CountUsage 统计某策略的累计使用次数。
	CountUsage(ctx context.Context, policyID int64) (int64, error)

	// AppendUsage 追加一条使用流水，写入后回填记录 ID。
	AppendUsage(ctx context.Context, record *UsageRecord) error
}

// RuleEngine 评估策略的适用条件表达式。
// 表达式为空时视为无条件适用。
type RuleEngine interface {
	Evaluate(condition string, fact Fact) (bool, error)
}

// Fact 是条件表达式求值时可引用的订单上下文。
type Fact struct {
	UserID        string `json:"user_id"`
	SellerID      int64  `json:"seller_id"`
	OrderAmount   int64  `json:"order_amount"`
	MemberTier    string `json:"member_tier"`
	PaymentMethod string `json:"payment_method"`
}
