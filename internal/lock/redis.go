package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key layout: "inv:hold:<unit>" carries the owning reservation ID with a
// millisecond TTL; "inv:sold:<unit>" marks permanent consumption and never
// expires. Every multi-unit mutation runs as a single Lua script so the
// all-or-nothing and owner-guard invariants hold under concurrency.

var acquireScript = redis.NewScript(`
	local owner = ARGV[1]
	local ttl = tonumber(ARGV[2])
	for i = 3, #ARGV do
		local u = ARGV[i]
		if redis.call('EXISTS', 'inv:hold:' .. u) == 1 or redis.call('EXISTS', 'inv:sold:' .. u) == 1 then
			return 0
		end
	end
	for i = 3, #ARGV do
		redis.call('SET', 'inv:hold:' .. ARGV[i], owner, 'PX', ttl)
	end
	return 1
`)

var releaseScript = redis.NewScript(`
	local owner = ARGV[1]
	for i = 2, #ARGV do
		local k = 'inv:hold:' .. ARGV[i]
		if redis.call('GET', k) == owner then
			redis.call('DEL', k)
		end
	end
	return 1
`)

var extendScript = redis.NewScript(`
	local owner = ARGV[1]
	local extra = tonumber(ARGV[2])
	for i = 3, #ARGV do
		local k = 'inv:hold:' .. ARGV[i]
		if redis.call('GET', k) == owner then
			local ttl = redis.call('PTTL', k)
			if ttl > 0 then
				redis.call('PEXPIRE', k, ttl + extra)
			end
		end
	end
	return 1
`)

var consumeScript = redis.NewScript(`
	local owner = ARGV[1]
	for i = 2, #ARGV do
		local u = ARGV[i]
		local held = redis.call('GET', 'inv:hold:' .. u)
		local sold = redis.call('GET', 'inv:sold:' .. u)
		if (held and held ~= owner) or (sold and sold ~= owner) then
			return 0
		end
	end
	for i = 2, #ARGV do
		local u = ARGV[i]
		redis.call('DEL', 'inv:hold:' .. u)
		redis.call('SET', 'inv:sold:' .. u, owner)
	end
	return 1
`)

var restockScript = redis.NewScript(`
	for i = 1, #ARGV do
		redis.call('DEL', 'inv:sold:' .. ARGV[i])
	end
	return 1
`)

// RedisLocker is the production Locker backed by a single Redis instance.
type RedisLocker struct {
	rdb *redis.Client
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

func (l *RedisLocker) TryAcquire(ctx context.Context, unitIDs []string, ownerID string, ttl time.Duration) error {
	if len(unitIDs) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(unitIDs)+2)
	args = append(args, ownerID, ttl.Milliseconds())
	for _, u := range unitIDs {
		args = append(args, u)
	}
	ok, err := acquireScript.Run(ctx, l.rdb, nil, args...).Int()
	if err != nil {
		return err
	}
	if ok != 1 {
		return ErrUnitConflict
	}
	return nil
}

func (l *RedisLocker) Release(ctx context.Context, unitIDs []string, ownerID string) error {
	if len(unitIDs) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(unitIDs)+1)
	args = append(args, ownerID)
	for _, u := range unitIDs {
		args = append(args, u)
	}
	return releaseScript.Run(ctx, l.rdb, nil, args...).Err()
}

func (l *RedisLocker) Extend(ctx context.Context, unitIDs []string, ownerID string, extra time.Duration) error {
	if len(unitIDs) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(unitIDs)+2)
	args = append(args, ownerID, extra.Milliseconds())
	for _, u := range unitIDs {
		args = append(args, u)
	}
	return extendScript.Run(ctx, l.rdb, nil, args...).Err()
}

func (l *RedisLocker) Consume(ctx context.Context, unitIDs []string, ownerID string) error {
	if len(unitIDs) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(unitIDs)+1)
	args = append(args, ownerID)
	for _, u := range unitIDs {
		args = append(args, u)
	}
	ok, err := consumeScript.Run(ctx, l.rdb, nil, args...).Int()
	if err != nil {
		return err
	}
	if ok != 1 {
		return ErrUnitConflict
	}
	return nil
}

func (l *RedisLocker) Restock(ctx context.Context, unitIDs []string) error {
	if len(unitIDs) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(unitIDs))
	for _, u := range unitIDs {
		args = append(args, u)
	}
	return restockScript.Run(ctx, l.rdb, nil, args...).Err()
}

func (l *RedisLocker) AreHeld(ctx context.Context, unitIDs []string) (bool, error) {
	if len(unitIDs) == 0 {
		return true, nil
	}
	keys := make([]string, len(unitIDs))
	for i, u := range unitIDs {
		keys[i] = "inv:hold:" + u
	}
	vals, err := l.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return false, err
	}
	for _, v := range vals {
		if v == nil {
			return false, nil
		}
	}
	return true, nil
}

// RedisCounters keeps per-event availability in a hash keyed by ticket type.
type RedisCounters struct {
	rdb *redis.Client
}

func NewRedisCounters(rdb *redis.Client) *RedisCounters {
	return &RedisCounters{rdb: rdb}
}

func availKey(eventID string) string { return "inv:avail:" + eventID }

func (c *RedisCounters) Set(ctx context.Context, eventID, ticketTypeID string, quantity int64) error {
	return c.rdb.HSet(ctx, availKey(eventID), ticketTypeID, quantity).Err()
}

func (c *RedisCounters) Decrement(ctx context.Context, eventID, ticketTypeID string, n int) (int64, int64, error) {
	cur, err := c.rdb.HIncrBy(ctx, availKey(eventID), ticketTypeID, -int64(n)).Result()
	if err != nil {
		return 0, 0, err
	}
	return cur + int64(n), cur, nil
}

func (c *RedisCounters) Increment(ctx context.Context, eventID, ticketTypeID string, n int) (int64, int64, error) {
	cur, err := c.rdb.HIncrBy(ctx, availKey(eventID), ticketTypeID, int64(n)).Result()
	if err != nil {
		return 0, 0, err
	}
	return cur - int64(n), cur, nil
}
