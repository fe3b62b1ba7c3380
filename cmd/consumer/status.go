package main

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/cario/internal/models"
)

// RedisUpdater is the subset of redis operations the status board needs.
type RedisUpdater interface {
	HSet(ctx context.Context, key string, values map[string]interface{}) error
	HDel(ctx context.Context, key string, fields ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type redisAdapter struct{ c *redis.Client }

func (r *redisAdapter) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	return r.c.HSet(ctx, key, values).Err()
}

func (r *redisAdapter) HDel(ctx context.Context, key string, fields ...string) error {
	return r.c.HDel(ctx, key, fields...).Err()
}

func (r *redisAdapter) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.c.Expire(ctx, key, ttl).Err()
}

func (r *redisAdapter) Del(ctx context.Context, key string) error {
	return r.c.Del(ctx, key).Err()
}

func statusKey(sessionID string) string { return "session:status:" + sessionID }

// optionalFields are only present while the event carries the matching data.
var optionalFields = []string{"service", "vehicle", "booking_id", "fare", "driver"}

// staleFields lists the optional fields f does not set, so a previous
// booking does not linger on the board.
func staleFields(f map[string]interface{}) []string {
	var out []string
	for _, k := range optionalFields {
		if _, ok := f[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

// statusFields flattens an event into the hash stored for its session.
func statusFields(ev models.Event) map[string]interface{} {
	f := map[string]interface{}{
		"role":       string(ev.Role),
		"status":     string(ev.Status),
		"online":     strconv.FormatBool(ev.Online),
		"last_event": string(ev.Type),
		"updated_at": ev.At.UTC().Format(time.RFC3339),
	}
	if ev.Request != nil {
		f["service"] = ev.Request.Service
		f["vehicle"] = ev.Request.Vehicle
	}
	if ev.Booking != nil {
		f["booking_id"] = ev.Booking.ID
		f["fare"] = ev.Booking.Fare
		if ev.Booking.Driver != nil {
			f["driver"] = ev.Booking.Driver.Name
		}
	}
	return f
}

// updateStatusWithRetry applies one event to the board, retrying with doubling delay.
// A logout removes the session's entry.
func updateStatusWithRetry(ctx context.Context, rc RedisUpdater, ev models.Event, ttl time.Duration, attempts int, delay time.Duration) error {
	key := statusKey(ev.SessionID)
	apply := func() error {
		if ev.Type == models.EventLogout {
			return rc.Del(ctx, key)
		}
		fields := statusFields(ev)
		if err := rc.HSet(ctx, key, fields); err != nil {
			return err
		}
		if stale := staleFields(fields); len(stale) > 0 {
			if err := rc.HDel(ctx, key, stale...); err != nil {
				return err
			}
		}
		return rc.Expire(ctx, key, ttl)
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = apply(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
