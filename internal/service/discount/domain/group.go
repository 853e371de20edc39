package domain

// Group 定义了折扣的分组。组与组之间相互独立、按顺序叠加；
// 组内只有一个策略生效（优先级最高者胜出）。
type Group string

const (
	GroupProduct Group = "PRODUCT" // 商品折扣
	GroupSeller  Group = "SELLER"  // 店铺折扣
	GroupMember  Group = "MEMBER"  // 会员折扣
	GroupPayment Group = "PAYMENT" // 支付方式折扣
)

// groupOrder 是各分组参与叠加计算的固定顺序。
// 顺序必须稳定，绝不能依赖 map 的迭代顺序，否则叠加结果不可复现。
var groupOrder = []Group{GroupProduct, GroupSeller, GroupMember, GroupPayment}

// GroupOrder 返回分组叠加顺序的一份拷贝。
func GroupOrder() []Group {
	out := make([]Group, len(groupOrder))
	copy(out, groupOrder)
	return out
}

// Type 定义折扣的计算方式。
type Type string

const (
	TypeRate   Type = "RATE"   // 按比例折扣
	TypeAmount Type = "AMOUNT" // 固定金额立减
)

// TargetKind 定义策略的作用对象类型。
type TargetKind string

const (
	TargetAll     TargetKind = "ALL"     // 全场生效
	TargetProduct TargetKind = "PRODUCT" // 指定商品组
	TargetSeller  TargetKind = "SELLER"  // 指定卖家
)
