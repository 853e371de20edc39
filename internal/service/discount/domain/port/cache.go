package port

import (
	"context"
	"errors"
	"time"

	"mercato/internal/service/discount/domain"
)

// ErrUsageCounterMissing 表示用量计数器尚未在缓存侧初始化。
var ErrUsageCounterMissing = errors.New("usage counter not initialized")

// SnapshotCache 是折扣快照缓存的出站端口。
// 序列化格式是适配器的内部事务，唯一约束是往返必须无损：
// Set 后 MultiGet 取回的快照与写入的完全一致。
type SnapshotCache interface {
	// MultiGet 在一次往返中批量读取多个键，
	// 结果与 keys 一一对应，未命中的位置为 nil。
	MultiGet(ctx context.Context, keys []string) ([]*domain.PolicySnapshot, error)

	// Set 写入一个快照，ttl 到期后条目自动失效。
	Set(ctx context.Context, key string, snapshot *domain.PolicySnapshot, ttl time.Duration) error

	// Del 删除若干键，用于策略被提前修改或停用时的主动失效。
	Del(ctx context.Context, keys ...string) error
}

// UsageReserver 在存储边界上提供原子的"带上限自增"，
// 用来堵住 check-then-act 的用量超卖竞态。
type UsageReserver interface {
	// Reserve 尝试为策略占用一次使用额度。
	// 计数器尚未初始化时返回 ErrUsageCounterMissing，
	// 由调用方用权威存储的计数初始化后重试。
	Reserve(ctx context.Context, policyID int64, limit int64) (bool, error)

	// Release 归还一次占用，用于占用后落库失败的补偿。
	Release(ctx context.Context, policyID int64) error

	// InitCounter 用权威计数初始化计数器（仅在不存在时写入）。
	InitCounter(ctx context.Context, policyID int64, current int64) error
}
