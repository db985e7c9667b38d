package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"reelgate/internal/services"
	"reelgate/internal/workflow"
)

const (
	redisKeyPrefix = "reelgate:workflow:"
	redisIndexKey  = "reelgate:workflows"
)

// RedisOptions configures the Redis repository.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisRepository is a workflow.Repository backed by Redis.
type RedisRepository struct {
	client *redis.Client
}

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, opts RedisOptions) (*RedisRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, services.Wrap(services.ErrStorage, "workflow-store", "connect redis", opts.Addr, err)
	}
	return &RedisRepository{client: client}, nil
}

// NewRedisRepository wraps an existing client.
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

func (r *RedisRepository) Create(ctx context.Context, wf workflow.Workflow) error {
	data, err := json.Marshal(wf)
	if err != nil {
		return services.Wrap(services.ErrStorage, "workflow-store", "encode", wf.ID, err)
	}
	var created *redis.BoolCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		created = pipe.SetNX(ctx, redisKey(wf.ID), data, 0)
		pipe.ZAddNX(ctx, redisIndexKey, &redis.Z{
			Score:  float64(wf.CreatedAt.UnixMilli()),
			Member: wf.ID,
		})
		return nil
	})
	if err != nil {
		return services.Wrap(services.ErrStorage, "workflow-store", "create", wf.ID, err)
	}
	if !created.Val() {
		return services.Wrap(services.ErrValidation, "workflow-store", "create", fmt.Sprintf("workflow %s already exists", wf.ID), nil)
	}
	return nil
}

func (r *RedisRepository) Get(ctx context.Context, id string) (workflow.Workflow, error) {
	data, err := r.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return workflow.Workflow{}, workflow.NotFound(id)
	}
	if err != nil {
		return workflow.Workflow{}, services.Wrap(services.ErrStorage, "workflow-store", "get", id, err)
	}
	return decode(id, data)
}

func (r *RedisRepository) Save(ctx context.Context, wf workflow.Workflow) error {
	data, err := json.Marshal(wf)
	if err != nil {
		return services.Wrap(services.ErrStorage, "workflow-store", "encode", wf.ID, err)
	}
	updated, err := r.client.SetXX(ctx, redisKey(wf.ID), data, 0).Result()
	if err != nil {
		return services.Wrap(services.ErrStorage, "workflow-store", "save", wf.ID, err)
	}
	if !updated {
		return workflow.NotFound(wf.ID)
	}
	return nil
}

func (r *RedisRepository) List(ctx context.Context) ([]workflow.Workflow, error) {
	ids, err := r.client.ZRevRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "workflow-store", "list", "", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "workflow-store", "list", "", err)
	}
	out := make([]workflow.Workflow, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			// Index entry without a snapshot; skip it.
			continue
		}
		wf, err := decode(ids[i], []byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, wf)
	}
	workflow.SortNewestFirst(out)
	return out, nil
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}
