package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// redisStore is the production Store backed by a single go-redis
// client. Every multi-step operation that must be atomic (compare-and-
// delete, compare-and-expire) is implemented as a Lua script run via
// redis.NewScript, the same idiom the rate limiter middleware uses.
type redisStore struct {
	rdb *redis.Client

	compareDeleteScript *redis.Script
	compareExpireScript *redis.Script
}

// NewRedisStore wraps an already-connected go-redis client.
func NewRedisStore(rdb *redis.Client) Store {
	return &redisStore{
		rdb: rdb,
		compareDeleteScript: redis.NewScript(`
			if redis.call('GET', KEYS[1]) == ARGV[1] then
				return redis.call('DEL', KEYS[1])
			end
			return 0
		`),
		compareExpireScript: redis.NewScript(`
			if redis.call('GET', KEYS[1]) == ARGV[1] then
				return redis.call('EXPIRE', KEYS[1], ARGV[2])
			end
			return 0
		`),
	}
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return v, err
}

func (s *redisStore) Set(ctx context.Context, key string, val []byte, ttlSeconds int64) error {
	return s.rdb.Set(ctx, key, val, ttlDuration(ttlSeconds)).Err()
}

func (s *redisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *redisStore) SetNX(ctx context.Context, key string, val []byte, ttlSeconds int64) (bool, error) {
	return s.rdb.SetNX(ctx, key, val, ttlDuration(ttlSeconds)).Result()
}

func (s *redisStore) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	res, err := s.compareDeleteScript.Run(ctx, s.rdb, []string{key}, expected).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (s *redisStore) CompareAndExpire(ctx context.Context, key string, expected []byte, ttlSeconds int64) (bool, error) {
	res, err := s.compareExpireScript.Run(ctx, s.rdb, []string{key}, expected, ttlSeconds).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (s *redisStore) GetBit(ctx context.Context, key string, offset int64) (bool, error) {
	v, err := s.rdb.GetBit(ctx, key, offset).Result()
	return v == 1, err
}

func (s *redisStore) SetBit(ctx context.Context, key string, offset int64, val bool) error {
	return s.rdb.SetBit(ctx, key, offset, boolToBit(val)).Err()
}

func (s *redisStore) SetBits(ctx context.Context, key string, offsets []int64, val bool) error {
	if len(offsets) == 0 {
		return nil
	}
	pipe := s.rdb.Pipeline()
	bit := boolToBit(val)
	for _, off := range offsets {
		pipe.SetBit(ctx, key, off, bit)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisStore) BitCount(ctx context.Context, key string) (int64, error) {
	return s.rdb.BitCount(ctx, key, nil).Result()
}

// BitPositions walks set bits from the start of the bitmap using
// repeated BITPOS calls, stopping at limit, for callers that need the
// explicit list of set offsets rather than just a count.
func (s *redisStore) BitPositions(ctx context.Context, key string, limit int64) ([]int64, error) {
	var out []int64
	var from int64
	for limit <= 0 || int64(len(out)) < limit {
		pos, err := s.rdb.BitPos(ctx, key, 1, from).Result()
		if err != nil {
			return nil, err
		}
		if pos < 0 {
			break
		}
		out = append(out, pos)
		from = pos/8 + 1
	}
	return out, nil
}

func (s *redisStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return s.rdb.HSet(ctx, key, args...).Err()
}

func (s *redisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, key).Result()
}

func (s *redisStore) ZIncrBy(ctx context.Context, key string, incr float64, member string) (float64, error) {
	return s.rdb.ZIncrBy(ctx, key, incr, member).Result()
}

func (s *redisStore) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ZMember, error) {
	zs, err := s.rdb.ZRevRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]ZMember, len(zs))
	for i, z := range zs {
		out[i] = ZMember{Member: z.Member.(string), Score: z.Score}
	}
	return out, nil
}

func (s *redisStore) XAdd(ctx context.Context, stream string, values map[string]string) (string, error) {
	vals := make(map[string]interface{}, len(values))
	for k, v := range values {
		vals[k] = v
	}
	return s.rdb.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: vals}).Result()
}

func (s *redisStore) XRangeAfter(ctx context.Context, stream, afterID string, count int64) ([]XMessage, error) {
	start := "(" + afterID
	if afterID == "" {
		start = "-"
	}
	msgs, err := s.rdb.XRangeN(ctx, stream, start, "+", count).Result()
	if err != nil {
		return nil, err
	}
	out := make([]XMessage, len(msgs))
	for i, m := range msgs {
		values := make(map[string]string, len(m.Values))
		for k, v := range m.Values {
			if sv, ok := v.(string); ok {
				values[k] = sv
			}
		}
		out[i] = XMessage{ID: m.ID, Values: values}
	}
	return out, nil
}

func (s *redisStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.rdb.Incr(ctx, key).Result()
}

func (s *redisStore) Close() error {
	return s.rdb.Close()
}
