package adapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"mercato/internal/pkg/logger"
	pkgredis "mercato/internal/pkg/redis"
	"mercato/internal/service/discount/domain"
)

// SnapshotRedisAdapter 是 port.SnapshotCache 的 Redis 实现。
// 快照以 JSON 序列化存储；往返必须无损，见 codec 的测试。
type SnapshotRedisAdapter struct {
	redisClient *pkgredis.Client
}

// NewSnapshotRedisAdapter 创建快照缓存适配器。
func NewSnapshotRedisAdapter(redisClient *pkgredis.Client) *SnapshotRedisAdapter {
	return &SnapshotRedisAdapter{redisClient: redisClient}
}

// MultiGet 用一次 MGET 批量读取，结果与 keys 一一对应。
// 反序列化失败的条目按未命中处理，不让脏数据毒化读路径。
func (a *SnapshotRedisAdapter) MultiGet(ctx context.Context, keys []string) ([]*domain.PolicySnapshot, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := a.redisClient.GetClient().MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "snapshot cache mget failed")
	}

	snapshots := make([]*domain.PolicySnapshot, len(keys))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // 未命中
		}
		snap, err := decodeSnapshot([]byte(raw))
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("key", keys[i]).Msg("corrupted discount snapshot entry, treating as miss")
			continue
		}
		snapshots[i] = snap
	}
	return snapshots, nil
}

// Set 写入一个快照，ttl 到期后条目自动失效。
func (a *SnapshotRedisAdapter) Set(ctx context.Context, key string, snapshot *domain.PolicySnapshot, ttl time.Duration) error {
	payload, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	if err := a.redisClient.GetClient().Set(ctx, key, payload, ttl).Err(); err != nil {
		return errors.Wrap(err, "snapshot cache set failed")
	}
	return nil
}

// Del 删除若干缓存键，用于策略提前变更时的主动失效。
func (a *SnapshotRedisAdapter) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := a.redisClient.GetClient().Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "snapshot cache del failed")
	}
	return nil
}

func encodeSnapshot(snapshot *domain.PolicySnapshot) ([]byte, error) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode discount snapshot")
	}
	return payload, nil
}

func decodeSnapshot(payload []byte) (*domain.PolicySnapshot, error) {
	var snap domain.PolicySnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, errors.Wrap(err, "failed to decode discount snapshot")
	}
	return &snap, nil
}
