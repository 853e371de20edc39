package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ratePolicy(id int64, group Group, rate int, priority int) *Policy {
	return &Policy{
		ID:       id,
		Name:     "test-rate",
		Group:    group,
		Type:     TypeRate,
		Rate:     Rate(rate),
		Priority: Priority(priority),
		Active:   true,
	}
}

func amountPolicy(id int64, group Group, amount int64, priority int) *Policy {
	return &Policy{
		ID:       id,
		Name:     "test-amount",
		Group:    group,
		Type:     TypeAmount,
		Amount:   amount,
		Priority: Priority(priority),
		Active:   true,
	}
}

func TestCalculator_SingleRatePolicy(t *testing.T) {
	calc := NewCalculator()

	// 50000 的 10% = 5000
	total, err := calc.TotalDiscount([]*Policy{ratePolicy(1, GroupProduct, 10, 1)}, 50000)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), total)
}

func TestCalculator_SameGroupOnlyBestApplies(t *testing.T) {
	calc := NewCalculator()

	// 同组内只有优先级最高（数值最小）的策略生效
	policies := []*Policy{
		ratePolicy(1, GroupProduct, 10, 2),
		ratePolicy(2, GroupProduct, 20, 1),
	}
	total, err := calc.TotalDiscount(policies, 10000)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), total, "the priority 1 policy should win over priority 2")
}

func TestCalculator_SequentialStackingAcrossGroups(t *testing.T) {
	calc := NewCalculator()

	// 100000 先扣商品组 10% = 10000，余 90000 再扣会员组 5% = 4500
	policies := []*Policy{
		ratePolicy(1, GroupProduct, 10, 1),
		ratePolicy(2, GroupMember, 5, 1),
	}
	total, err := calc.TotalDiscount(policies, 100000)
	require.NoError(t, err)
	assert.Equal(t, int64(14500), total)

	byGroup, err := calc.DiscountsByGroup(policies, 100000)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), byGroup[GroupProduct])
	assert.Equal(t, int64(4500), byGroup[GroupMember])
}

func TestCalculator_TotalNeverExceedsOrderAmount(t *testing.T) {
	calc := NewCalculator()

	// 60% + 60% 顺序叠加：10000 -> 6000，余 4000 -> 2400，合计 8400
	policies := []*Policy{
		ratePolicy(1, GroupProduct, 60, 1),
		ratePolicy(2, GroupSeller, 60, 1),
	}
	total, err := calc.TotalDiscount(policies, 10000)
	require.NoError(t, err)
	assert.Equal(t, int64(8400), total)
	assert.LessOrEqual(t, total, int64(10000))
}

func TestCalculator_EmptyPolicies(t *testing.T) {
	calc := NewCalculator()

	total, err := calc.TotalDiscount(nil, 10000)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	byGroup, err := calc.DiscountsByGroup([]*Policy{}, 10000)
	require.NoError(t, err)
	assert.Empty(t, byGroup)
}

func TestCalculator_ZeroOrderAmount(t *testing.T) {
	calc := NewCalculator()

	total, err := calc.TotalDiscount([]*Policy{ratePolicy(1, GroupProduct, 50, 1)}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestCalculator_NegativeOrderAmount(t *testing.T) {
	calc := NewCalculator()

	_, err := calc.TotalDiscount([]*Policy{ratePolicy(1, GroupProduct, 10, 1)}, -1)
	assert.ErrorIs(t, err, ErrNegativeOrderAmount)
}

func TestCalculator_MissingGroupRejected(t *testing.T) {
	calc := NewCalculator()

	p := ratePolicy(1, "", 10, 1)
	_, err := calc.TotalDiscount([]*Policy{p}, 10000)
	assert.ErrorIs(t, err, ErrMissingGroup)
}

func TestCalculator_TieBreakByLowestID(t *testing.T) {
	calc := NewCalculator()

	// 同优先级取 ID 最小的策略，结果与入参顺序无关
	a := ratePolicy(7, GroupProduct, 30, 1)
	b := ratePolicy(3, GroupProduct, 10, 1)

	total1, err := calc.TotalDiscount([]*Policy{a, b}, 10000)
	require.NoError(t, err)
	total2, err := calc.TotalDiscount([]*Policy{b, a}, 10000)
	require.NoError(t, err)

	assert.Equal(t, int64(1000), total1, "policy with ID 3 should win the tie")
	assert.Equal(t, total1, total2)
}

func TestCalculator_AmountPolicyClampedToRemaining(t *testing.T) {
	calc := NewCalculator()

	// 立减金额超过余额时压到余额
	total, err := calc.TotalDiscount([]*Policy{amountPolicy(1, GroupProduct, 99999, 1)}, 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), total)
}

func TestCalculator_MaxDiscountCap(t *testing.T) {
	calc := NewCalculator()

	p := ratePolicy(1, GroupProduct, 50, 1)
	p.MaxDiscount = MaxDiscountAmount(1000)

	total, err := calc.TotalDiscount([]*Policy{p}, 100000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), total)
}

func TestCalculator_RateRoundsHalfUp(t *testing.T) {
	calc := NewCalculator()

	// 15 的 10% = 1.5，half-up 取整为 2
	total, err := calc.TotalDiscount([]*Policy{ratePolicy(1, GroupProduct, 10, 1)}, 15)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	// 14 的 10% = 1.4，取整为 1
	total, err = calc.TotalDiscount([]*Policy{ratePolicy(1, GroupProduct, 10, 1)}, 14)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestCalculator_GroupOrderIsCanonical(t *testing.T) {
	calc := NewCalculator()

	// 分组叠加顺序固定：PRODUCT -> SELLER -> MEMBER -> PAYMENT，
	// 与入参顺序无关。用不对称的金额验证顺序。
	policies := []*Policy{
		ratePolicy(4, GroupPayment, 10, 1),
		ratePolicy(3, GroupMember, 10, 1),
		ratePolicy(2, GroupSeller, 10, 1),
		ratePolicy(1, GroupProduct, 10, 1),
	}
	byGroup, err := calc.DiscountsByGroup(policies, 100000)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), byGroup[GroupProduct])
	assert.Equal(t, int64(9000), byGroup[GroupSeller])
	assert.Equal(t, int64(8100), byGroup[GroupMember])
	assert.Equal(t, int64(7290), byGroup[GroupPayment])
}

func TestCalculator_DoesNotMutateInput(t *testing.T) {
	calc := NewCalculator()

	a := ratePolicy(2, GroupProduct, 10, 2)
	b := ratePolicy(1, GroupSeller, 5, 1)
	policies := []*Policy{a, b}

	_, err := calc.TotalDiscount(policies, 10000)
	require.NoError(t, err)

	assert.Same(t, a, policies[0])
	assert.Same(t, b, policies[1])
	assert.Equal(t, Rate(10), a.Rate)
}

func TestCalculator_SortByPriority(t *testing.T) {
	calc := NewCalculator()

	a := ratePolicy(5, GroupProduct, 10, 3)
	b := ratePolicy(2, GroupProduct, 10, 1)
	c := ratePolicy(9, GroupProduct, 10, 1)
	input := []*Policy{a, b, c}

	sorted := calc.SortByPriority(input)
	require.Len(t, sorted, 3)
	assert.Same(t, b, sorted[0], "priority 1, ID 2 first")
	assert.Same(t, c, sorted[1], "priority 1, ID 9 second")
	assert.Same(t, a, sorted[2])

	// 入参保持原顺序
	assert.Same(t, a, input[0])
}

func TestBestPolicy(t *testing.T) {
	assert.Nil(t, BestPolicy(nil))

	a := ratePolicy(5, GroupProduct, 10, 2)
	b := ratePolicy(2, GroupProduct, 10, 1)
	assert.Same(t, b, BestPolicy([]*Policy{a, b}))

	c := ratePolicy(1, GroupProduct, 10, 2)
	assert.Same(t, c, BestPolicy([]*Policy{a, c}), "equal priority falls back to lowest ID")
}

func TestPeriod_RemainingDrivesCacheTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	period, err := NewPeriod(now.Add(-time.Hour), now.Add(2*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, period.Remaining(now))
	assert.Equal(t, time.Duration(0), period.Remaining(now.Add(3*time.Hour)))
}
