package rule

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"mercato/internal/service/discount/domain"
)

// CELRuleEngine 是 domain.RuleEngine 接口的具体实现。
// 它用 CEL 表达式描述策略的适用条件，把第三方引擎的 API
// 适配到我们自己的领域接口上。编译结果按表达式缓存。
type CELRuleEngine struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewCELRuleEngine 创建规则引擎，声明条件表达式可引用的变量。
func NewCELRuleEngine() (*CELRuleEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("user_id", cel.StringType),
		cel.Variable("seller_id", cel.IntType),
		cel.Variable("order_amount", cel.IntType),
		cel.Variable("member_tier", cel.StringType),
		cel.Variable("payment_method", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &CELRuleEngine{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Evaluate 实现了 domain.RuleEngine 接口。
// 空表达式视为无条件适用；表达式必须求值为布尔。
func (e *CELRuleEngine) Evaluate(condition string, fact domain.Fact) (bool, error) {
	if condition == "" {
		return true, nil
	}

	program, err := e.compile(condition)
	if err != nil {
		return false, err
	}

	out, _, err := program.Eval(map[string]interface{}{
		"user_id":        fact.UserID,
		"seller_id":      fact.SellerID,
		"order_amount":   fact.OrderAmount,
		"member_tier":    fact.MemberTier,
		"payment_method": fact.PaymentMethod,
	})
	if err != nil {
		return false, fmt.Errorf("condition evaluation failed: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition must evaluate to a boolean, got %T", out.Value())
	}
	return result, nil
}

// compile 编译表达式并缓存，同一表达式只编译一次。
func (e *CELRuleEngine) compile(condition string) (cel.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[condition]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	ast, issues := e.env.Compile(condition)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid condition expression: %w", issues.Err())
	}
	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build condition program: %w", err)
	}

	e.mu.Lock()
	e.programs[condition] = program
	e.mu.Unlock()
	return program, nil
}
