package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"taskmanager/internal/domain"
)

const defaultRedisPrefix = "tm"

// consumeRefreshLua deletes a refresh token record if it belongs to the subject.
// KEYS[1] = token record key
// KEYS[2] = subject index set key
// ARGV[1] = subject id
// ARGV[2] = token hash
//
// Returns {0} when absent, {2} on subject mismatch, {1, expires_ms, created_ms} when consumed.
var consumeRefreshLua = redis.NewScript(`
local rec = redis.call('HMGET', KEYS[1], 'user_id', 'expires_ms', 'created_ms')
if not rec[1] then
  return {0}
end
if rec[1] ~= ARGV[1] then
  return {2}
end
redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[2])
return {1, rec[2], rec[3]}
`)

// deleteSubjectLua deletes every token record indexed for a subject, then the index.
// KEYS[1] = subject index set key
// ARGV[1] = token record key prefix
//
// Returns the number of token records deleted. Record keys are derived inside
// the script, so the ledger expects a single Redis node or one hash slot.
var deleteSubjectLua = redis.NewScript(`
local hashes = redis.call('SMEMBERS', KEYS[1])
local n = 0
for _, h in ipairs(hashes) do
  n = n + redis.call('DEL', ARGV[1] .. h)
end
redis.call('DEL', KEYS[1])
return n
`)

// RedisRefreshTokenRepository is the Redis refresh token ledger. Each token
// is a hash at <prefix>:rt:<sha256> expiring with the token; a set at
// <prefix>:rt:user:<id> indexes the hashes of one subject.
type RedisRefreshTokenRepository struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisRefreshTokenRepository uses prefix for every key; empty means "tm".
func NewRedisRefreshTokenRepository(client redis.UniversalClient, prefix string) *RedisRefreshTokenRepository {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisRefreshTokenRepository{redis: client, prefix: prefix, now: time.Now}
}

func (r *RedisRefreshTokenRepository) tokenKey(hash string) string {
	return r.prefix + ":rt:" + hash
}

func (r *RedisRefreshTokenRepository) userKey(subjectID string) string {
	return r.prefix + ":rt:user:" + subjectID
}

// Persist stores the token record with a TTL ending at expiresAt.
func (r *RedisRefreshTokenRepository) Persist(ctx context.Context, subjectID, token string, expiresAt time.Time) (*domain.RefreshToken, error) {
	now := r.now().UTC()
	if !expiresAt.After(now) {
		return nil, domain.NewStorageError("persist refresh token", errors.New("token already expired"))
	}

	hash := HashToken(token)
	key := r.tokenKey(hash)
	_, err := r.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"user_id", subjectID,
			"expires_ms", strconv.FormatInt(expiresAt.UnixMilli(), 10),
			"created_ms", strconv.FormatInt(now.UnixMilli(), 10),
		)
		p.PExpireAt(ctx, key, expiresAt)
		p.SAdd(ctx, r.userKey(subjectID), hash)
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("persist refresh token", err)
	}

	return &domain.RefreshToken{
		UserID:    subjectID,
		TokenHash: hash,
		ExpiresAt: time.UnixMilli(expiresAt.UnixMilli()).UTC(),
		CreatedAt: time.UnixMilli(now.UnixMilli()).UTC(),
	}, nil
}

// FindByTokenAndSubject returns the live record for token owned by subjectID.
func (r *RedisRefreshTokenRepository) FindByTokenAndSubject(ctx context.Context, token, subjectID string) (*domain.RefreshToken, error) {
	hash := HashToken(token)
	fields, err := r.redis.HGetAll(ctx, r.tokenKey(hash)).Result()
	if err != nil {
		return nil, domain.NewStorageError("find refresh token", err)
	}
	if len(fields) == 0 || fields["user_id"] != subjectID {
		return nil, domain.ErrNotFound
	}

	t, err := recordFromFields(hash, fields["user_id"], fields["expires_ms"], fields["created_ms"])
	if err != nil {
		return nil, domain.NewStorageError("find refresh token", err)
	}
	if t.IsExpired(r.now()) {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

// DeleteByToken removes the record and its index entry. Absent is not an error.
func (r *RedisRefreshTokenRepository) DeleteByToken(ctx context.Context, token string) (int64, error) {
	hash := HashToken(token)
	key := r.tokenKey(hash)

	subjectID, err := r.redis.HGet(ctx, key, "user_id").Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, domain.NewStorageError("delete refresh token", err)
	}

	var deleted *redis.IntCmd
	_, err = r.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		deleted = p.Del(ctx, key)
		p.SRem(ctx, r.userKey(subjectID), hash)
		return nil
	})
	if err != nil {
		return 0, domain.NewStorageError("delete refresh token", err)
	}
	return deleted.Val(), nil
}

// DeleteBySubject removes every live token of subjectID. The index read and
// the deletes run in one script so a concurrent Persist is either fully
// removed or left fully indexed.
func (r *RedisRefreshTokenRepository) DeleteBySubject(ctx context.Context, subjectID string) (int64, error) {
	n, err := deleteSubjectLua.Run(ctx, r.redis,
		[]string{r.userKey(subjectID)},
		r.prefix+":rt:",
	).Int64()
	if err != nil {
		return 0, domain.NewStorageError("delete refresh tokens by user", err)
	}
	return n, nil
}

// Consume deletes and returns the record in one script; one caller wins.
func (r *RedisRefreshTokenRepository) Consume(ctx context.Context, token, subjectID string) (*domain.RefreshToken, error) {
	hash := HashToken(token)
	res, err := consumeRefreshLua.Run(ctx, r.redis,
		[]string{r.tokenKey(hash), r.userKey(subjectID)},
		subjectID, hash,
	).Slice()
	if err != nil {
		return nil, domain.NewStorageError("consume refresh token", err)
	}
	if len(res) == 0 {
		return nil, domain.NewStorageError("consume refresh token", errors.New("empty script reply"))
	}

	status, _ := res[0].(int64)
	if status != 1 || len(res) < 3 {
		return nil, domain.ErrNotFound
	}

	expiresMs, _ := res[1].(string)
	createdMs, _ := res[2].(string)
	t, err := recordFromFields(hash, subjectID, expiresMs, createdMs)
	if err != nil {
		return nil, domain.NewStorageError("consume refresh token", err)
	}
	if t.IsExpired(r.now()) {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

// DeleteExpired drops index entries whose token record has already expired
// out of Redis. The records themselves expire by TTL.
func (r *RedisRefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	var removed int64
	iter := r.redis.Scan(ctx, 0, r.prefix+":rt:user:*", 100).Iterator()
	for iter.Next(ctx) {
		setKey := iter.Val()
		hashes, err := r.redis.SMembers(ctx, setKey).Result()
		if err != nil {
			return removed, domain.NewStorageError("delete expired refresh tokens", err)
		}
		for _, h := range hashes {
			n, err := r.redis.Exists(ctx, r.tokenKey(h)).Result()
			if err != nil {
				return removed, domain.NewStorageError("delete expired refresh tokens", err)
			}
			if n > 0 {
				continue
			}
			if err := r.redis.SRem(ctx, setKey, h).Err(); err != nil {
				return removed, domain.NewStorageError("delete expired refresh tokens", err)
			}
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, domain.NewStorageError("delete expired refresh tokens", err)
	}
	return removed, nil
}

func recordFromFields(hash, subjectID, expiresMs, createdMs string) (*domain.RefreshToken, error) {
	exp, err := strconv.ParseInt(expiresMs, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse expires_ms: %w", err)
	}
	created, err := strconv.ParseInt(createdMs, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse created_ms: %w", err)
	}
	return &domain.RefreshToken{
		UserID:    subjectID,
		TokenHash: hash,
		ExpiresAt: time.UnixMilli(exp).UTC(),
		CreatedAt: time.UnixMilli(created).UTC(),
	}, nil
}
