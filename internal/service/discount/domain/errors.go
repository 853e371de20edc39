package domain

import "errors"

// 校验类错误：构造策略时立即返回，绝不静默修正。
var (
	ErrInvalidRate       = errors.New("discount rate must be an integer between 0 and 100")
	ErrInvalidPeriod     = errors.New("validity period requires start before end")
	ErrInvalidPriority   = errors.New("priority must be a non-negative integer")
	ErrInvalidAmount     = errors.New("amount must be non-negative")
	ErrInvalidUsageLimit = errors.New("usage limit must be non-negative")
	ErrInvalidCostShare  = errors.New("cost share ratio must be between 0 and 100")
	ErrMissingRate       = errors.New("a RATE policy must carry a rate")
	ErrMissingAmount     = errors.New("an AMOUNT policy must carry a flat amount")
	ErrMissingName       = errors.New("policy name is required")
	ErrMissingGroup      = errors.New("policy group is required")
	ErrInvalidTarget     = errors.New("target requires a PRODUCT or SELLER kind and a positive ref id")
	ErrInvalidUsage      = errors.New("usage record requires policy id, order id and user id")
)

// 计算类错误：计算器是纯函数，入参非法时快速失败。
var (
	ErrNegativeOrderAmount = errors.New("order amount must be non-negative")
)

// 查询与应用类错误。
// 注意：查不到可用折扣是正常结果（空值），不是错误；
// ErrUsageLimitExceeded 则是一个必须上报给调用方的明确拒绝。
var (
	ErrPolicyNotFound     = errors.New("discount policy not found")
	ErrPolicyDeleted      = errors.New("discount policy has been deleted")
	ErrUsageLimitExceeded = errors.New("discount policy usage limit exceeded")
)
