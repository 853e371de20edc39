package adapter

import (
	"context"
	"fmt"

	pkgredis "mercato/internal/pkg/redis"
	"mercato/internal/service/discount/domain/port"
)

const (
	usageReserveScriptName = "discount_usage_reserve"
	usageReleaseScriptName = "discount_usage_release"
)

// UsageRedisAdapter 是 port.UsageReserver 的 Redis 实现。
// "读计数-比上限-自增" 三步放进一个 Lua 脚本里原子执行，
// 并发结算下不会超卖。
type UsageRedisAdapter struct {
	redisClient *pkgredis.Client
}

// NewUsageRedisAdapter 创建用量占用适配器，创建时加载所需脚本。
func NewUsageRedisAdapter(redisClient *pkgredis.Client) (*UsageRedisAdapter, error) {
	if err := redisClient.LoadScriptFromContent(usageReserveScriptName, usageReserveScript); err != nil {
		return nil, fmt.Errorf("failed to load usage reserve script: %w", err)
	}
	if err := redisClient.LoadScriptFromContent(usageReleaseScriptName, usageReleaseScript); err != nil {
		return nil, fmt.Errorf("failed to load usage release script: %w", err)
	}
	return &UsageRedisAdapter{redisClient: redisClient}, nil
}

func usageCounterKey(policyID int64) string {
	return fmt.Sprintf("discount:usage:{%d}", policyID)
}

// Reserve 原子占用一次额度。
// 计数器不存在返回 ErrUsageCounterMissing，由调用方初始化后重试。
func (a *UsageRedisAdapter) Reserve(ctx context.Context, policyID int64, limit int64) (bool, error) {
	result, err := a.redisClient.RunScript(ctx, usageReserveScriptName,
		[]string{usageCounterKey(policyID)}, limit)
	if err != nil {
		return false, fmt.Errorf("usage adapter failed to run reserve script: %w", err)
	}

	code, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected result type from Lua script: %T", result)
	}
	switch code {
	case 1:
		return true, nil
	case 0:
		return false, nil
	case -1:
		return false, port.ErrUsageCounterMissing
	default:
		return false, fmt.Errorf("unknown result code from reserve script: %d", code)
	}
}

// Release 归还一次占用，用于占用后落库失败的补偿。
func (a *UsageRedisAdapter) Release(ctx context.Context, policyID int64) error {
	_, err := a.redisClient.RunScript(ctx, usageReleaseScriptName,
		[]string{usageCounterKey(policyID)})
	if err != nil {
		return fmt.Errorf("usage adapter failed to run release script: %w", err)
	}
	return nil
}

// InitCounter 用权威存储的计数初始化计数器，仅在不存在时写入，
// 并发初始化时先写者胜出。
func (a *UsageRedisAdapter) InitCounter(ctx context.Context, policyID int64, current int64) error {
	return a.redisClient.GetClient().SetNX(ctx, usageCounterKey(policyID), current, 0).Err()
}

var usageReserveScript = `
-- KEYS[1]: 用量计数器的 Key, 例如: discount:usage:{42}
-- ARGV[1]: 使用次数上限, 0 表示不限

-- 1. 计数器必须先由权威计数初始化
local cur = redis.call('get', KEYS[1])
if not cur then
    return -1
end

-- 2. 检查是否已达上限
cur = tonumber(cur)
local limit = tonumber(ARGV[1])
if limit > 0 and cur >= limit then
    return 0
end

-- 3. 占用一次额度
redis.call('incr', KEYS[1])
return 1
`

var usageReleaseScript = `
-- KEYS[1]: 用量计数器的 Key

-- 只有存在且为正的计数器才归还，避免把计数减成负数
local cur = redis.call('get', KEYS[1])
if cur and tonumber(cur) > 0 then
    redis.call('decr', KEYS[1])
end
return 1
`
