package repository

import (
	"context"
	"encoding/hex"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"pushauth/backend/internal/challenge/domain"
)

// Key layout:
//
//	<prefix>challenge:<id>             HASH of the record
//	<prefix>challenge:nonce:<hex>      id owning the nonce
//	<prefix>challenges:pending         ZSET of pending ids scored by expires_at (unix ms)
//	<prefix>device:<id>:pending        SET of pending ids for a device
const (
	fieldUserID     = "user_id"
	fieldDeviceID   = "device_id"
	fieldNonce      = "nonce"
	fieldStatus     = "status"
	fieldAction     = "action"
	fieldCreatedAt  = "created_at"
	fieldExpiresAt  = "expires_at"
	fieldVerifiedAt = "verified_at"
)

// createScript writes the record, claims the nonce and indexes the pending challenge in one step.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then return 0 end
if redis.call('SETNX', KEYS[2], ARGV[1]) == 0 then return 0 end
redis.call('HSET', KEYS[1],
  'user_id', ARGV[2], 'device_id', ARGV[3], 'nonce', ARGV[4], 'status', ARGV[5],
  'action', ARGV[6], 'created_at', ARGV[7], 'expires_at', ARGV[8])
if ARGV[5] == 'pending' then
  redis.call('ZADD', KEYS[3], ARGV[9], ARGV[1])
  redis.call('SADD', KEYS[4], ARGV[1])
end
return 1
`)

// transitionScript is the compare-and-set on status. KEYS[3] is the pending set of the record's device.
var transitionScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'status')
if not cur then return 0 end
if cur ~= ARGV[1] then return 0 end
redis.call('HSET', KEYS[1], 'status', ARGV[2], 'verified_at', ARGV[3])
if ARGV[1] == 'pending' then
  redis.call('ZREM', KEYS[2], ARGV[4])
  redis.call('SREM', KEYS[3], ARGV[4])
end
return 1
`)

// RedisRepository stores challenges in Redis. Transition runs as a Lua script so the status
// comparison and write are atomic across processes.
type RedisRepository struct {
	cli    redis.UniversalClient
	prefix string
}

// NewRedisRepository returns a challenge repository on cli. prefix namespaces every key. Scripts
// declare every key they touch; on Redis Cluster the prefix must be a hash tag such as "{pushauth}:"
// so those keys share a slot.
func NewRedisRepository(cli redis.UniversalClient, prefix string) *RedisRepository {
	return &RedisRepository{cli: cli, prefix: prefix}
}

func (r *RedisRepository) challengeKey(id string) string { return r.prefix + "challenge:" + id }
func (r *RedisRepository) nonceKey(nonce []byte) string {
	return r.prefix + "challenge:nonce:" + hex.EncodeToString(nonce)
}
func (r *RedisRepository) pendingKey() string { return r.prefix + "challenges:pending" }
func (r *RedisRepository) devicePendingKey(deviceID string) string {
	return r.prefix + "device:" + deviceID + ":pending"
}

// GetByID returns the challenge for id, or nil if not found.
func (r *RedisRepository) GetByID(ctx context.Context, id string) (*domain.Challenge, error) {
	fields, err := r.cli.HGetAll(ctx, r.challengeKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decode(id, fields)
}

func (r *RedisRepository) Create(ctx context.Context, c *domain.Challenge) error {
	keys := []string{r.challengeKey(c.ID), r.nonceKey(c.Nonce), r.pendingKey(), r.devicePendingKey(c.DeviceID)}
	ok, err := createScript.Run(ctx, r.cli, keys,
		c.ID, c.UserID, c.DeviceID, hex.EncodeToString(c.Nonce), string(c.Status), c.Action,
		formatTime(c.CreatedAt), formatTime(c.ExpiresAt), c.ExpiresAt.UnixMilli(),
	).Int()
	if err != nil {
		return err
	}
	if ok == 0 {
		return ErrDuplicate
	}
	return nil
}

func (r *RedisRepository) ListPendingByDevice(ctx context.Context, deviceID string) ([]*domain.Challenge, error) {
	ids, err := r.cli.SMembers(ctx, r.devicePendingKey(deviceID)).Result()
	if err != nil {
		return nil, err
	}
	out, err := r.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *RedisRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.Challenge, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := r.cli.ZRangeByScore(ctx, r.pendingKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}
	return r.load(ctx, ids)
}

func (r *RedisRepository) Transition(ctx context.Context, id string, from, to domain.Status, at time.Time) (bool, error) {
	// device_id never changes after Create, so reading it outside the script is safe.
	deviceID, err := r.cli.HGet(ctx, r.challengeKey(id), fieldDeviceID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	keys := []string{r.challengeKey(id), r.pendingKey(), r.devicePendingKey(deviceID)}
	n, err := transitionScript.Run(ctx, r.cli, keys, string(from), string(to), formatTime(at), id).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// load fetches ids in one pipeline and keeps only pending records.
func (r *RedisRepository) load(ctx context.Context, ids []string) ([]*domain.Challenge, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	pipe := r.cli.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, r.challengeKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	out := make([]*domain.Challenge, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		c, err := decode(ids[i], fields)
		if err != nil {
			return nil, err
		}
		if c.Status == domain.StatusPending {
			out = append(out, c)
		}
	}
	return out, nil
}

func decode(id string, f map[string]string) (*domain.Challenge, error) {
	nonce, err := hex.DecodeString(f[fieldNonce])
	if err != nil {
		return nil, err
	}
	created, err := parseTime(f[fieldCreatedAt])
	if err != nil {
		return nil, err
	}
	expires, err := parseTime(f[fieldExpiresAt])
	if err != nil {
		return nil, err
	}
	c := &domain.Challenge{
		ID:        id,
		UserID:    f[fieldUserID],
		DeviceID:  f[fieldDeviceID],
		Nonce:     nonce,
		Action:    f[fieldAction],
		Status:    domain.ParseStatus(f[fieldStatus]),
		CreatedAt: created,
		ExpiresAt: expires,
	}
	if v := f[fieldVerifiedAt]; v != "" {
		t, err := parseTime(v)
		if err != nil {
			return nil, err
		}
		c.VerifiedAt = &t
	}
	return c, nil
}

func formatTime(t time.Time) string { return strconv.FormatInt(t.UnixNano(), 10) }

func parseTime(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n).UTC(), nil
}
