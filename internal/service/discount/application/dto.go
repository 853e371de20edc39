package application

import "time"

// TargetDescriptor 描述一次折扣解析的目标：
// 商品组优先于卖家，两者至少给出一个。
type TargetDescriptor struct {
	ProductGroupID int64 `json:"product_group_id"`
	SellerID       int64 `json:"seller_id"`
}

// ResolveBatchRequest 是批量解析的入参。
type ResolveBatchRequest struct {
	ProductGroupIDs []int64 `json:"product_group_ids"`
	SellerIDs       []int64 `json:"seller_ids"`
}

// ApplyDiscountRequest 是结算时应用折扣的入参。
type ApplyDiscountRequest struct {
	PolicyID int64  `json:"policy_id"`
	OrderID  string `json:"order_id"`
	UserID   string `json:"user_id"`
	Amount   int64  `json:"amount"`
}

// ApplyDiscountResponse 是应用折扣的出参。
type ApplyDiscountResponse struct {
	Success  bool   `json:"success"`
	PolicyID int64  `json:"policy_id"`
	Amount   int64  `json:"amount"`
	Message  string `json:"message"`
}

// CreatePolicyRequest 是创建策略的入参。
type CreatePolicyRequest struct {
	SellerID      int64     `json:"seller_id"`
	Name          string    `json:"name"`
	Group         string    `json:"group"`
	Type          string    `json:"type"`
	TargetKind    string    `json:"target_kind"`
	Rate          int       `json:"rate"`
	Amount        int64     `json:"amount"`
	MaxDiscount   int64     `json:"max_discount"`
	MinOrder      int64     `json:"min_order"`
	PeriodStart   time.Time `json:"period_start"`
	PeriodEnd     time.Time `json:"period_end"`
	UsageLimit    int64     `json:"usage_limit"`
	PlatformRatio int       `json:"platform_ratio"`
	Priority      int       `json:"priority"`
	Condition     string    `json:"condition"`
	TargetIDs     []int64   `json:"target_ids"`
}

// ChangeDetailsRequest 是修改策略可变字段的入参。
type ChangeDetailsRequest struct {
	Name        string    `json:"name"`
	Rate        int       `json:"rate"`
	Amount      int64     `json:"amount"`
	MaxDiscount int64     `json:"max_discount"`
	MinOrder    int64     `json:"min_order"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	UsageLimit  int64     `json:"usage_limit"`
	PlatformRatio int     `json:"platform_ratio"`
	Priority    int       `json:"priority"`
	Condition   string    `json:"condition"`
}
