package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// claimTTL bounds how long a crashed worker can block re-submission of the same job id.
const claimTTL = 6 * time.Hour

// RedisQueue is a list-backed queue. Job ids are claimed with SETNX so a job id is queued at most once
// until it is released.
type RedisQueue struct {
	client *redis.Client
	name   string
}

func NewRedisQueue(client *redis.Client, name string) *RedisQueue {
	return &RedisQueue{client: client, name: name}
}

func (q *RedisQueue) claimKey(jobID string) string {
	return fmt.Sprintf("%s:claim:%s", q.name, jobID)
}

func (q *RedisQueue) Enqueue(ctx context.Context, job JobPayload) (bool, error) {
	claimed, err := q.client.SetNX(ctx, q.claimKey(job.JobID), job.Type, claimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim job %s: %w", job.JobID, err)
	}
	if !claimed {
		return false, nil
	}

	if err := q.push(ctx, job); err != nil {
		q.client.Del(context.WithoutCancel(ctx), q.claimKey(job.JobID))
		return false, err
	}
	return true, nil
}

func (q *RedisQueue) Requeue(ctx context.Context, job JobPayload) error {
	return q.push(ctx, job)
}

func (q *RedisQueue) push(ctx context.Context, job JobPayload) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.JobID, err)
	}
	if err := q.client.LPush(ctx, q.name, body).Err(); err != nil {
		return fmt.Errorf("failed to push job %s: %w", job.JobID, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, wait time.Duration) (*JobPayload, error) {
	result, err := q.client.BRPop(ctx, wait, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from %s: %w", q.name, err)
	}
	// BRPOP answers [key, value].
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of length %d", len(result))
	}

	var job JobPayload
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	return &job, nil
}

func (q *RedisQueue) Release(ctx context.Context, jobID string) error {
	return q.client.Del(ctx, q.claimKey(jobID)).Err()
}

// Close is a no-op; the Redis client is owned by the caller.
func (q *RedisQueue) Close() error {
	return nil
}
