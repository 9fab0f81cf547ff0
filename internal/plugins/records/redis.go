package records

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisRepo stores each record as a hash at prefix+"record:"+name and keeps
// the set of names at prefix+"records".
type redisRepo struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisRepository creates a Repository backed by Redis. All keys are
// namespaced under prefix.
func NewRedisRepository(rdb *redis.Client, prefix string) Repository {
	return &redisRepo{rdb: rdb, prefix: prefix}
}

func (r *redisRepo) recordKey(name string) string { return r.prefix + "record:" + name }
func (r *redisRepo) indexKey() string             { return r.prefix + "records" }

// Get returns a record by name, or nil if it does not exist.
func (r *redisRepo) Get(ctx context.Context, name string) (*Record, error) {
	fields, err := r.rdb.HGetAll(ctx, r.recordKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("get record %q: %w", name, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return recordFromHash(name, fields), nil
}

// Upsert writes the record hash and indexes its name in one transaction.
func (r *redisRepo) Upsert(ctx context.Context, rec Record) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.recordKey(rec.Name),
			"entry", rec.Entry,
			"description", rec.Description,
			"updated_at", rec.UpdatedAt.UnixMilli(),
		)
		pipe.SAdd(ctx, r.indexKey(), rec.Name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert record %q: %w", rec.Name, err)
	}
	return nil
}

// List returns every indexed record ordered by name. Names whose hash has
// disappeared are skipped.
func (r *redisRepo) List(ctx context.Context) ([]Record, error) {
	names, err := r.rdb.SMembers(ctx, r.indexKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("list records: %w", err)
	}
	sort.Strings(names)

	cmds := make([]*redis.MapStringStringCmd, len(names))
	_, err = r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, name := range names {
			cmds[i] = pipe.HGetAll(ctx, r.recordKey(name))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	out := make([]Record, 0, len(names))
	for i, name := range names {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			continue
		}
		out = append(out, *recordFromHash(name, fields))
	}
	return out, nil
}

// Delete removes the record hash and its index entry.
func (r *redisRepo) Delete(ctx context.Context, name string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.recordKey(name))
		pipe.SRem(ctx, r.indexKey(), name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete record %q: %w", name, err)
	}
	return nil
}

func recordFromHash(name string, fields map[string]string) *Record {
	ms, _ := strconv.ParseInt(fields["updated_at"], 10, 64)
	return &Record{
		Name:        name,
		Entry:       fields["entry"],
		Description: fields["description"],
		UpdatedAt:   time.UnixMilli(ms).UTC(),
	}
}
