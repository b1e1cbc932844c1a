package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
	"github.com/ederalmeidasantos-byte/sistema-admin/pkg/crypto"
)

const maxUpdateAttempts = 16

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisJobStore keeps jobs as JSON values in redis so they survive restarts.
// Every write refreshes the key TTL. With a secret set the values are sealed
// with AES-GCM, since job inputs carry personal documents.
type RedisJobStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	secret string
}

var _ JobStore = (*RedisJobStore)(nil)

// NewRedisJobStore connects to redis and verifies the connection.
func NewRedisJobStore(addr, password string, db int, ttl time.Duration) (*RedisJobStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return NewRedisJobStoreWithClient(client, ttl), nil
}

// NewRedisJobStoreWithClient wraps an existing client.
func NewRedisJobStoreWithClient(client *redis.Client, ttl time.Duration) *RedisJobStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisJobStore{client: client, prefix: "sistema-admin:lote:", ttl: ttl}
}

// WithEncryption seals stored jobs with secret. An empty secret stores
// plain JSON.
func (r *RedisJobStore) WithEncryption(secret string) *RedisJobStore {
	r.secret = secret
	return r
}

// Create stores a new job.
func (r *RedisJobStore) Create(ctx context.Context, job domain.BatchJob) error {
	payload, err := r.encode(job)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, r.prefix+job.ID, payload, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: create job: %v", repository.ErrStorage, err)
	}
	if !ok {
		return fmt.Errorf("%w: job %s exists", repository.ErrConflict, job.ID)
	}
	return nil
}

// Get loads a job.
func (r *RedisJobStore) Get(ctx context.Context, id string) (domain.BatchJob, error) {
	return r.load(ctx, r.client, id)
}

// UpdateProgress applies progress inside a WATCH transaction, retrying when
// another writer touched the job concurrently.
func (r *RedisJobStore) UpdateProgress(ctx context.Context, id string, progress Progress) (domain.BatchJob, error) {
	key := r.prefix + id
	var updated domain.BatchJob
	txf := func(tx *redis.Tx) error {
		job, err := r.load(ctx, tx, id)
		if err != nil {
			return err
		}
		apply(&job, progress)
		payload, err := r.encode(job)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.ttl)
			return nil
		})
		if err == nil {
			updated = job
		}
		return err
	}
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return domain.BatchJob{}, err
		}
		return updated, nil
	}
	return domain.BatchJob{}, fmt.Errorf("%w: job %s updated concurrently", repository.ErrConflict, id)
}

// Close releases the redis connection.
func (r *RedisJobStore) Close() error {
	return r.client.Close()
}

func (r *RedisJobStore) load(ctx context.Context, cmd getter, id string) (domain.BatchJob, error) {
	payload, err := cmd.Get(ctx, r.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.BatchJob{}, fmt.Errorf("%w: job %s", repository.ErrNotFound, id)
	}
	if err != nil {
		return domain.BatchJob{}, fmt.Errorf("%w: load job: %v", repository.ErrStorage, err)
	}
	if r.secret != "" {
		if payload, err = crypto.Open(r.secret, payload); err != nil {
			return domain.BatchJob{}, fmt.Errorf("%w: unseal job: %v", repository.ErrStorage, err)
		}
	}
	var job domain.BatchJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return domain.BatchJob{}, fmt.Errorf("%w: decode job: %v", repository.ErrStorage, err)
	}
	return job, nil
}

func (r *RedisJobStore) encode(job domain.BatchJob) ([]byte, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	if r.secret == "" {
		return payload, nil
	}
	sealed, err := crypto.Seal(r.secret, payload)
	if err != nil {
		return nil, fmt.Errorf("seal job: %w", err)
	}
	return sealed, nil
}
