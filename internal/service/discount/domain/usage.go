package domain

import "time"

// UsageRecord 是一条折扣使用记录：只增不改不删的流水。
// 每次结算成功应用一个策略，恰好产生一条记录；
// 既用于报表，也用于使用次数上限的统计。
type UsageRecord struct {
	ID        int64
	PolicyID  int64
	OrderID   string
	UserID    string
	Amount    int64 // 实际抵扣金额，最小货币单位
	AppliedAt time.Time
}

// NewUsageRecord 创建一条使用记录。
func NewUsageRecord(policyID int64, orderID, userID string, amount int64, appliedAt time.Time) (*UsageRecord, error) {
	if policyID <= 0 || orderID == "" || userID == "" {
		return nil, ErrInvalidUsage
	}
	if amount < 0 {
		return nil, ErrInvalidAmount
	}
	return &UsageRecord{
		PolicyID:  policyID,
		OrderID:   orderID,
		UserID:    userID,
		Amount:    amount,
		AppliedAt: appliedAt,
	}, nil
}

// DiscountAppliedEvent 是折扣成功应用后对外发布的领域事件。
type DiscountAppliedEvent struct {
	EventID   string    `json:"event_id"`
	PolicyID  int64     `json:"policy_id"`
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	AppliedAt time.Time `json:"applied_at"`
}
