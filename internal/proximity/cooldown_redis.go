package proximity

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCooldownGate is a CooldownGate backed by Redis SET NX with a TTL,
// so the cooldown window holds across multiple hub instances.
type RedisCooldownGate struct {
	client   *redis.Client
	interval time.Duration
}

func NewRedisCooldownGate(client *redis.Client, interval time.Duration) *RedisCooldownGate {
	return &RedisCooldownGate{client: client, interval: interval}
}

func (g *RedisCooldownGate) Allow(ctx context.Context, detectorUserID, vehicleID string) (bool, error) {
	key := "cooldown:" + detectorUserID + ":" + vehicleID

	claimed, err := g.client.SetNX(ctx, key, 1, g.interval).Result()
	if err != nil {
		// Redis being down must not stall the detection pipeline; the
		// caller decides how to degrade.
		return false, err
	}
	return claimed, nil
}
