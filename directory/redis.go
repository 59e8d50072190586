package directory

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces user hashes.
const DefaultRedisPrefix = "gobang:user:"

// Redis keeps one hash per user at <prefix><username> with the fields
// username, score and password.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps an existing client. An empty prefix selects
// DefaultRedisPrefix.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

// Ping checks connectivity, used at startup.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *Redis) FindByIdentity(ctx context.Context, identity string) (Record, error) {
	fields, err := r.client.HGetAll(ctx, r.key(identity)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("redis hgetall %s: %w", identity, err)
	}
	if len(fields) == 0 {
		return Record{}, ErrUserNotFound
	}
	return decodeRecord(identity, fields)
}

func (r *Redis) Authenticate(ctx context.Context, username, password string) (Record, error) {
	return authenticate(ctx, r, username, password)
}

func (r *Redis) Save(ctx context.Context, rec Record) error {
	if err := ValidateUsername(rec.Username); err != nil {
		return err
	}
	err := r.client.HSet(ctx, r.key(rec.Username),
		"username", rec.Username,
		"score", rec.Score,
		"password", rec.Password,
	).Err()
	if err != nil {
		return fmt.Errorf("redis hset %s: %w", rec.Username, err)
	}
	return nil
}

// AddScore increments the user's score atomically on the server.
func (r *Redis) AddScore(ctx context.Context, identity string, delta int) (int, error) {
	key := r.key(identity)
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis exists %s: %w", identity, err)
	}
	if n == 0 {
		return 0, ErrUserNotFound
	}

	score, err := r.client.HIncrBy(ctx, key, "score", int64(delta)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hincrby %s: %w", identity, err)
	}
	return int(score), nil
}

// List scans every user hash under the prefix.
func (r *Redis) List(ctx context.Context) ([]Record, error) {
	var records []Record
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		fields, err := r.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("redis hgetall %s: %w", key, err)
		}
		if len(fields) == 0 {
			continue
		}
		rec, err := decodeRecord(key[len(r.prefix):], fields)
		if err != nil {
			return nil, err
		}
		records = append(records, rec.Public())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Username < records[j].Username
	})
	return records, nil
}

func (r *Redis) key(identity string) string {
	return r.prefix + identity
}

func decodeRecord(identity string, fields map[string]string) (Record, error) {
	rec := Record{
		Username: fields["username"],
		Password: fields["password"],
	}
	if rec.Username == "" {
		rec.Username = identity
	}
	if s, ok := fields["score"]; ok && s != "" {
		score, err := strconv.Atoi(s)
		if err != nil {
			return Record{}, fmt.Errorf("user %s has invalid score %q: %w", identity, s, err)
		}
		rec.Score = score
	}
	return rec, nil
}
