package adapter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"nexus-coupon/internal/pkg/redis"
	"nexus-coupon/internal/service/coupon/port"
)

const (
	admitScriptName   = "promotion_admit"
	releaseScriptName = "promotion_release"
)

func stockKey(code string) string { return fmt.Sprintf("coupon:promotion:stock:{%s}", code) }
func usersKey(code string) string { return fmt.Sprintf("coupon:promotion:users:{%s}", code) }

// PromotionGateRedis 是 port.PromotionGate 的 Redis 实现。
// 在请求进入数据库之前，用 Lua 脚本原子地预占库存并记录领取人。
type PromotionGateRedis struct {
	redisClient *redis.Client
}

// NewPromotionGateRedis 创建适配器，并在创建时加载需要的 Lua 脚本。
func NewPromotionGateRedis(redisClient *redis.Client) (*PromotionGateRedis, error) {
	if err := redisClient.LoadScriptFromContent(admitScriptName, admitScript); err != nil {
		return nil, fmt.Errorf("failed to load promotion admit script: %w", err)
	}
	if err := redisClient.LoadScriptFromContent(releaseScriptName, releaseScript); err != nil {
		return nil, fmt.Errorf("failed to load promotion release script: %w", err)
	}
	return &PromotionGateRedis{redisClient: redisClient}, nil
}

// Prime 初始化某张促销券的预占库存，同时清空领取人集合
func (a *PromotionGateRedis) Prime(ctx context.Context, couponCode string, supply int64, ttl time.Duration) error {
	pipe := a.redisClient.GetClient().TxPipeline()
	pipe.Set(ctx, stockKey(couponCode), supply, ttl)
	pipe.Del(ctx, usersKey(couponCode))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to prime promotion gate for %s: %w", couponCode, err)
	}
	return nil
}

func (a *PromotionGateRedis) Admit(ctx context.Context, couponCode string, consumerID int64) (port.GateResult, error) {
	keys := []string{stockKey(couponCode), usersKey(couponCode)}
	result, err := a.redisClient.RunScript(ctx, admitScriptName, keys, strconv.FormatInt(consumerID, 10))
	if err != nil {
		return 0, fmt.Errorf("promotion gate failed to run script: %w", err)
	}

	code, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected result type from Lua script: %T", result)
	}

	switch code {
	case 1:
		return port.GateAdmitted, nil
	case 0:
		return port.GateSoldOut, nil
	case 2:
		return port.GateAlreadyClaimed, nil
	case 3:
		return port.GateBypass, nil
	default:
		return 0, fmt.Errorf("unknown result code from promotion admit script: %d", code)
	}
}

// Release 归还一次预占，只有领取人确实在集合中时才会回补库存
func (a *PromotionGateRedis) Release(ctx context.Context, couponCode string, consumerID int64) error {
	keys := []string{stockKey(couponCode), usersKey(couponCode)}
	if _, err := a.redisClient.RunScript(ctx, releaseScriptName, keys, strconv.FormatInt(consumerID, 10)); err != nil {
		return fmt.Errorf("promotion gate failed to release %s for %d: %w", couponCode, consumerID, err)
	}
	return nil
}

// KEYS[1]: 预占库存, KEYS[2]: 已预占的消费者集合, ARGV[1]: 消费者 ID
var admitScript = `
if redis.call('exists', KEYS[1]) == 0 then
    return 3
end

if redis.call('sismember', KEYS[2], ARGV[1]) == 1 then
    return 2
end

local stock = tonumber(redis.call('get', KEYS[1]))
if stock and stock > 0 then
    redis.call('decr', KEYS[1])
    redis.call('sadd', KEYS[2], ARGV[1])
    local ttl = redis.call('pttl', KEYS[1])
    if ttl > 0 then
        redis.call('pexpire', KEYS[2], ttl)
    end
    return 1
end
return 0
`

var releaseScript = `
if redis.call('srem', KEYS[2], ARGV[1]) == 1 then
    if redis.call('exists', KEYS[1]) == 1 then
        redis.call('incr', KEYS[1])
    end
    return 1
end
return 0
`
