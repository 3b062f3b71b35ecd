package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"quarterload/api"
	"quarterload/util"
)

// Redis caches completed window snapshots for downstream consumers. The
// latest snapshot per meter is kept indefinitely, the per-window history
// expires after the configured ttl.
type Redis struct {
	log    *util.Logger
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a Redis publisher
func NewRedisClient(addr, password string, db int, ttl time.Duration) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return &Redis{
		log:    util.NewLogger("redis"),
		client: rdb,
		ttl:    ttl,
	}, nil
}

// Run stores completed windows from the parameter stream
func (r *Redis) Run(in <-chan util.Param) {
	ctx := context.Background()

	for param := range in {
		snap, ok := param.Val.(api.CompletedWindow)
		if !ok || param.Meter == "" {
			continue
		}

		data, err := json.Marshal(snap)
		if err != nil {
			r.log.ERROR.Printf("encoding %s failed: %v", param.Meter, err)
			continue
		}

		key := fmt.Sprintf("quarterload:%s:completed", param.Meter)
		if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
			r.log.ERROR.Printf("set %s failed: %v", key, err)
			continue
		}

		key = fmt.Sprintf("quarterload:%s:window:%d", param.Meter, snap.WindowStart.Unix())
		if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
			r.log.ERROR.Printf("set %s failed: %v", key, err)
		}
	}
}
