package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/cario/internal/models"
)

// RedisPresence implements Presence using Redis GEO commands.
type RedisPresence struct {
	client redis.UniversalClient
	key    string
}

func NewRedisPresence(addr, password, key string) *RedisPresence {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisPresence{client: c, key: key}
}

func NewRedisPresenceWithClient(c redis.UniversalClient, key string) *RedisPresence {
	return &RedisPresence{client: c, key: key}
}

func (r *RedisPresence) SetOnline(ctx context.Context, driverID string, at models.Coord) error {
	// store as GEOADD and HSET for metadata
	if err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{Longitude: at.Lon, Latitude: at.Lat, Name: driverID}).Err(); err != nil {
		return fmt.Errorf("geoadd %s: %w", driverID, err)
	}
	if err := r.client.HSet(ctx, metaKey(driverID), "online", "true", "updated", time.Now().Format(time.RFC3339)).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", driverID, err)
	}
	return nil
}

func (r *RedisPresence) SetOffline(ctx context.Context, driverID string) error {
	pipe := r.client.TxPipeline()
	pipe.ZRem(ctx, r.key, driverID)
	pipe.Del(ctx, metaKey(driverID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove %s: %w", driverID, err)
	}
	return nil
}

func (r *RedisPresence) Nearby(ctx context.Context, center models.Coord, radiusM float64, limit int) ([]string, error) {
	q := &redis.GeoSearchQuery{Longitude: center.Lon, Latitude: center.Lat, Radius: radiusM, RadiusUnit: "m", Sort: "ASC"}
	if limit > 0 {
		q.Count = limit
	}
	ids, err := r.client.GeoSearch(ctx, r.key, q).Result()
	if err != nil {
		return nil, fmt.Errorf("geosearch: %w", err)
	}
	return ids, nil
}

// Count uses ZCARD since a GEO set is a sorted set underneath.
func (r *RedisPresence) Count(ctx context.Context) (int, error) {
	n, err := r.client.ZCard(ctx, r.key).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *RedisPresence) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *RedisPresence) Close() error { return r.client.Close() }

func metaKey(id string) string { return "driver:meta:" + id }
