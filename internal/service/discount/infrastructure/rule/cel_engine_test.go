package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercato/internal/service/discount/domain"
)

func newEngine(t *testing.T) *CELRuleEngine {
	t.Helper()
	engine, err := NewCELRuleEngine()
	require.NoError(t, err)
	return engine
}

func TestEvaluate_EmptyConditionAlwaysTrue(t *testing.T) {
	ok, err := newEngine(t).Evaluate("", domain.Fact{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluate_MemberTier(t *testing.T) {
	engine := newEngine(t)

	ok, err := engine.Evaluate(`member_tier == "GOLD"`, domain.Fact{MemberTier: "GOLD"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = engine.Evaluate(`member_tier == "GOLD"`, domain.Fact{MemberTier: "SILVER"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluate_CompoundCondition(t *testing.T) {
	engine := newEngine(t)

	cond := `order_amount >= 10000 && payment_method == "wallet"`
	ok, err := engine.Evaluate(cond, domain.Fact{OrderAmount: 20000, PaymentMethod: "wallet"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = engine.Evaluate(cond, domain.Fact{OrderAmount: 20000, PaymentMethod: "card"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluate_InvalidExpression(t *testing.T) {
	_, err := newEngine(t).Evaluate("order_amount >=", domain.Fact{})
	assert.Error(t, err)
}

func TestEvaluate_NonBooleanResult(t *testing.T) {
	_, err := newEngine(t).Evaluate("order_amount + 1", domain.Fact{OrderAmount: 1})
	assert.Error(t, err)
}

func TestEvaluate_CompilesOnce(t *testing.T) {
	engine := newEngine(t)

	cond := `seller_id == 7`
	for i := 0; i < 3; i++ {
		ok, err := engine.Evaluate(cond, domain.Fact{SellerID: 7})
		require.NoError(t, err)
		assert.True(t, ok)
	}
	engine.mu.RLock()
	defer engine.mu.RUnlock()
	assert.Len(t, engine.programs, 1)
}
