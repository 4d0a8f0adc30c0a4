package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"protocolo/bizerror"
	"sort"
	"strings"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

func NewRedisClient(c RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := rdb.Ping(pingCtx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisRepository stores each protocol as a json document, its history as a list.
// Writers WATCH the protocol key, a concurrent commit aborts the transaction.
type RedisRepository struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisRepository(rdb *redis.Client, prefix string) *RedisRepository {
	prefix = strings.Trim(prefix, ":")
	if prefix == "" {
		prefix = "protocolo"
	}
	return &RedisRepository{rdb: rdb, prefix: prefix}
}

func (r *RedisRepository) protocolKey(tenantID string, id types.ID) string {
	return fmt.Sprintf("%s:protocol:%s:%s", r.prefix, tenantID, id)
}

func (r *RedisRepository) historyKey(tenantID string, id types.ID) string {
	return fmt.Sprintf("%s:history:%s:%s", r.prefix, tenantID, id)
}

func (r *RedisRepository) tenantKey(tenantID string) string {
	return fmt.Sprintf("%s:tenant:%s:protocols", r.prefix, tenantID)
}

func (r *RedisRepository) sequenceKey(tenantID string, year int) string {
	return fmt.Sprintf("%s:sequence:%s:%d", r.prefix, tenantID, year)
}

func (r *RedisRepository) Create(ctx context.Context, p *Protocol, entry *HistoryEntry) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return err
	}
	record, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	key := r.protocolKey(p.TenantID, p.ID)
	return r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("protocol %s already exists", p.ID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, doc, 0)
			pipe.RPush(ctx, r.historyKey(p.TenantID, p.ID), record)
			pipe.SAdd(ctx, r.tenantKey(p.TenantID), p.ID.String())
			return nil
		})
		return err
	}, key)
}

func (r *RedisRepository) Find(ctx context.Context, tenantID string, id types.ID) (*Protocol, error) {
	return r.get(ctx, r.rdb, tenantID, id)
}

func (r *RedisRepository) get(ctx context.Context, c stringGetter, tenantID string, id types.ID) (*Protocol, error) {
	data, err := c.Get(ctx, r.protocolKey(tenantID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, bizerror.NotFound("protocol", id.String())
	} else if err != nil {
		return nil, err
	}
	p := Protocol{}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal protocol %s: %w", id, err)
	}
	return &p, nil
}

func (r *RedisRepository) History(ctx context.Context, tenantID string, id types.ID) ([]HistoryEntry, error) {
	if _, err := r.Find(ctx, tenantID, id); err != nil {
		return nil, err
	}
	records, err := r.rdb.LRange(ctx, r.historyKey(tenantID, id), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]HistoryEntry, 0, len(records))
	for _, record := range records {
		entry := HistoryEntry{}
		if err := json.Unmarshal([]byte(record), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history of protocol %s: %w", id, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *RedisRepository) Commit(ctx context.Context, p *Protocol, expectedVersion int64, entry *HistoryEntry) error {
	record, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	key := r.protocolKey(p.TenantID, p.ID)
	err = r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := r.get(ctx, tx, p.TenantID, p.ID)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return bizerror.ErrConflict
		}
		next := *p
		next.Version = expectedVersion + 1
		doc, err := json.Marshal(&next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, doc, 0)
			pipe.RPush(ctx, r.historyKey(p.TenantID, p.ID), record)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return bizerror.ErrConflict
	}
	if err != nil {
		return err
	}
	p.Version = expectedVersion + 1
	return nil
}

func (r *RedisRepository) List(ctx context.Context, q Query) ([]Protocol, error) {
	ids, err := r.rdb.SMembers(ctx, r.tenantKey(q.TenantID)).Result()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, fmt.Sprintf("%s:protocol:%s:%s", r.prefix, q.TenantID, id))
	}
	all, err := r.load(ctx, keys)
	if err != nil {
		return nil, err
	}
	result := []Protocol{}
	for i := range all {
		if q.Match(&all[i]) {
			result = append(result, all[i])
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *RedisRepository) NextSequence(ctx context.Context, tenantID string, year int) (int64, error) {
	return r.rdb.Incr(ctx, r.sequenceKey(tenantID, year)).Result()
}

func (r *RedisRepository) Scan(ctx context.Context, batchSize int, visit func([]Protocol) error) error {
	batchSize = normalizeBatchSize(batchSize)
	var cursor uint64
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, r.prefix+":protocol:*", int64(batchSize)).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			batch, err := r.load(ctx, keys)
			if err != nil {
				return err
			}
			sort.Slice(batch, func(i, j int) bool { return batch[i].ID < batch[j].ID })
			if len(batch) > 0 {
				if err := visit(batch); err != nil {
					return err
				}
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (r *RedisRepository) load(ctx context.Context, keys []string) ([]Protocol, error) {
	if len(keys) == 0 {
		return []Protocol{}, nil
	}
	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	protocols := make([]Protocol, 0, len(values))
	for i, v := range values {
		doc, ok := v.(string)
		if !ok {
			continue
		}
		p := Protocol{}
		if err := json.Unmarshal([]byte(doc), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", keys[i], err)
		}
		protocols = append(protocols, p)
	}
	return protocols, nil
}
