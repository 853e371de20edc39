package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validParams() PolicyParams {
	return PolicyParams{
		SellerID:      100,
		Name:          "spring-sale",
		Group:         GroupProduct,
		Type:          TypeRate,
		Target:        TargetProduct,
		Rate:          15,
		PeriodStart:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:     time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		UsageLimit:    1000,
		PlatformRatio: 100,
		Priority:      1,
	}
}

func TestNewPolicy(t *testing.T) {
	p, err := NewPolicy(validParams())
	require.NoError(t, err)

	assert.True(t, p.Active, "a new policy starts active")
	assert.Equal(t, Rate(15), p.Rate)
	assert.Empty(t, p.Revisions(), "creation does not produce a revision")
	assert.Zero(t, p.ID)
}

func TestNewPolicy_Validation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*PolicyParams)
		wantErr error
	}{
		{"empty name", func(p *PolicyParams) { p.Name = "" }, ErrMissingName},
		{"empty group", func(p *PolicyParams) { p.Group = "" }, ErrMissingGroup},
		{"rate out of range", func(p *PolicyParams) { p.Rate = 101 }, ErrInvalidRate},
		{"rate policy without rate", func(p *PolicyParams) { p.Rate = 0 }, ErrMissingRate},
		{"negative priority", func(p *PolicyParams) { p.Priority = -1 }, ErrInvalidPriority},
		{"negative usage limit", func(p *PolicyParams) { p.UsageLimit = -1 }, ErrInvalidUsageLimit},
		{"period start after end", func(p *PolicyParams) {
			p.PeriodStart, p.PeriodEnd = p.PeriodEnd, p.PeriodStart
		}, ErrInvalidPeriod},
		{"zero period", func(p *PolicyParams) {
			p.PeriodStart = time.Time{}
		}, ErrInvalidPeriod},
		{"cost share out of range", func(p *PolicyParams) { p.PlatformRatio = 101 }, ErrInvalidCostShare},
		{"amount policy without amount", func(p *PolicyParams) {
			p.Type = TypeAmount
			p.Amount = 0
		}, ErrMissingAmount},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := validParams()
			tc.mutate(&params)
			_, err := NewPolicy(params)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestPolicy_ChangeDetailsSnapshotsBeforeApply(t *testing.T) {
	p, err := NewPolicy(validParams())
	require.NoError(t, err)
	p.ID = 42

	d := p.CurrentDetails()
	d.Name = "summer-sale"
	d.Rate = 20

	changed, err := p.ChangeDetails(d)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, "summer-sale", p.Name)
	assert.Equal(t, Rate(20), p.Rate)

	revs := p.Revisions()
	require.Len(t, revs, 1)
	// 修订记录的是变更前的状态
	assert.Equal(t, int64(42), revs[0].PolicyID)
	assert.Equal(t, "spring-sale", revs[0].Name)
	assert.Equal(t, Rate(15), revs[0].Rate)
	assert.False(t, revs[0].ChangedAt.IsZero())
}

func TestPolicy_ChangeDetailsNoOp(t *testing.T) {
	p, err := NewPolicy(validParams())
	require.NoError(t, err)

	changed, err := p.ChangeDetails(p.CurrentDetails())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, p.Revisions(), "identical details must not produce a revision")
}

func TestPolicy_ChangeDetailsValidation(t *testing.T) {
	p, err := NewPolicy(validParams())
	require.NoError(t, err)

	d := p.CurrentDetails()
	d.Rate = 0
	_, err = p.ChangeDetails(d)
	assert.ErrorIs(t, err, ErrMissingRate)

	d = p.CurrentDetails()
	d.Name = ""
	_, err = p.ChangeDetails(d)
	assert.ErrorIs(t, err, ErrMissingName)

	// 校验失败时不产生修订，字段保持原值
	assert.Empty(t, p.Revisions())
	assert.Equal(t, "spring-sale", p.Name)
}

func TestPolicy_SetActiveAlwaysSnapshots(t *testing.T) {
	p, err := NewPolicy(validParams())
	require.NoError(t, err)

	require.NoError(t, p.SetActive(false))
	require.NoError(t, p.SetActive(false)) // 重复设置同一状态也记录修订

	revs := p.Revisions()
	require.Len(t, revs, 2)
	assert.True(t, revs[0].Active)
	assert.False(t, revs[1].Active)
	assert.False(t, p.Active)
}

func TestPolicy_Delete(t *testing.T) {
	p, err := NewPolicy(validParams())
	require.NoError(t, err)

	require.NoError(t, p.Delete())
	assert.False(t, p.Active)
	assert.False(t, p.DeletedAt.IsZero())
	require.Len(t, p.Revisions(), 1)

	// 已删除的策略拒绝一切变更
	assert.ErrorIs(t, p.Delete(), ErrPolicyDeleted)
	assert.ErrorIs(t, p.SetActive(true), ErrPolicyDeleted)
	_, err = p.ChangeDetails(p.CurrentDetails())
	assert.ErrorIs(t, err, ErrPolicyDeleted)
}

func TestPolicy_AddTarget(t *testing.T) {
	p, err := NewPolicy(validParams())
	require.NoError(t, err)
	p.ID = 7

	target, err := p.AddTarget(TargetProduct, 2001)
	require.NoError(t, err)
	assert.Equal(t, int64(7), target.PolicyID)
	assert.Equal(t, int64(2001), target.RefID)
	assert.True(t, target.Active)

	_, err = p.AddTarget(TargetAll, 1)
	assert.ErrorIs(t, err, ErrInvalidTarget, "ALL kind needs no target rows")

	_, err = p.AddTarget(TargetProduct, 0)
	assert.ErrorIs(t, err, ErrInvalidTarget)

	require.Len(t, p.Targets(), 1)
}

func TestTarget_SetActiveRecordsRevision(t *testing.T) {
	target, err := NewTarget(7, TargetSeller, 55)
	require.NoError(t, err)

	target.SetActive(false)
	target.SetActive(true)

	require.Len(t, target.Revisions(), 2)
	assert.True(t, target.Revisions()[0].Active)
	assert.False(t, target.Revisions()[1].Active)
	assert.True(t, target.Active)
}

func TestPolicy_IsApplicable(t *testing.T) {
	p, err := NewPolicy(validParams())
	require.NoError(t, err)

	in := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	before := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	atEnd := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, p.IsApplicable(in))
	assert.False(t, p.IsApplicable(before))
	assert.False(t, p.IsApplicable(atEnd), "validity is a half-open interval")

	require.NoError(t, p.SetActive(false))
	assert.False(t, p.IsApplicable(in))
}

func TestReconstitute(t *testing.T) {
	base := Policy{ID: 9, Name: "restored", Group: GroupSeller, Type: TypeAmount, Amount: 500, Active: true}
	target := ReconstituteTarget(Target{ID: 1, PolicyID: 9, Kind: TargetSeller, RefID: 3, Active: true}, nil)
	revs := []Revision{{PolicyID: 9, Name: "old"}}

	p := Reconstitute(base, []*Target{target}, revs)
	assert.Equal(t, int64(9), p.ID)
	require.Len(t, p.Targets(), 1)
	require.Len(t, p.Revisions(), 1)
	assert.Equal(t, "old", p.Revisions()[0].Name)
}

func TestUsageLimit(t *testing.T) {
	unlimited, err := NewUsageLimit(0)
	require.NoError(t, err)
	assert.True(t, unlimited.Unlimited())
	assert.True(t, unlimited.Allows(1<<40))

	limited, err := NewUsageLimit(3)
	require.NoError(t, err)
	assert.True(t, limited.Allows(2))
	assert.False(t, limited.Allows(3))
}
