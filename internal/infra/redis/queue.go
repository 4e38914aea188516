package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gradewise/grader/internal/core/domain"
)

// Key helpers
func queueKey() string {
	return "grading:pending"
}

func submissionKey(id string) string {
	return fmt.Sprintf("grading:submission:%s", id)
}

func deadLetterKey() string {
	return "grading:dead_letter"
}

// Enqueue adds a submission to the pending queue. The sorted-set score
// is the enqueue time so Pop returns the oldest submission first.
func (c *Client) Enqueue(ctx context.Context, sub *domain.Submission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal submission: %w", err)
	}

	if err := c.rdb.Set(ctx, submissionKey(sub.ID), data, 7*24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to set submission: %w", err)
	}

	if err := c.rdb.ZAdd(ctx, queueKey(), redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: sub.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to add to queue: %w", err)
	}

	return nil
}

// Pop removes and returns the oldest pending submission, or nil when the
// queue is empty.
func (c *Client) Pop(ctx context.Context) (*domain.Submission, error) {
	results, err := c.rdb.ZRange(ctx, queueKey(), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	id := results[0]

	if err := c.rdb.ZRem(ctx, queueKey(), id).Err(); err != nil {
		return nil, fmt.Errorf("zrem failed: %w", err)
	}

	data, err := c.rdb.Get(ctx, submissionKey(id)).Bytes()
	if err == redis.Nil {
		// Payload expired but the id was still queued; skip it.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	var sub domain.Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("failed to unmarshal submission: %w", err)
	}
	return &sub, nil
}

// Requeue puts a failed submission back on the pending queue with its
// retry count as a delay bias: higher retry counts sort later.
func (c *Client) Requeue(ctx context.Context, sub *domain.Submission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal submission: %w", err)
	}

	if err := c.rdb.Set(ctx, submissionKey(sub.ID), data, 7*24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to set submission: %w", err)
	}

	score := float64(time.Now().UnixNano()) * float64(1+sub.RetryCount)
	if err := c.rdb.ZAdd(ctx, queueKey(), redis.Z{Score: score, Member: sub.ID}).Err(); err != nil {
		return fmt.Errorf("failed to requeue: %w", err)
	}
	return nil
}

// DeadLetter moves a repeatedly failing submission to the dead-letter
// set for manual inspection.
func (c *Client) DeadLetter(ctx context.Context, sub *domain.Submission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal submission: %w", err)
	}

	if err := c.rdb.Set(ctx, submissionKey(sub.ID), data, 30*24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to set submission: %w", err)
	}

	if err := c.rdb.ZAdd(ctx, deadLetterKey(), redis.Z{
		Score:  float64(sub.RetryCount),
		Member: sub.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to dead-letter: %w", err)
	}
	return nil
}

// QueueDepth returns the number of pending submissions.
func (c *Client) QueueDepth(ctx context.Context) (int64, error) {
	return c.rdb.ZCard(ctx, queueKey()).Result()
}

// DeadLetterCount returns the number of dead-lettered submissions.
func (c *Client) DeadLetterCount(ctx context.Context) (int64, error) {
	return c.rdb.ZCard(ctx, deadLetterKey()).Result()
}

// FlushQueues removes all pending and dead-lettered entries. Used by the
// admin tool only.
func (c *Client) FlushQueues(ctx context.Context) error {
	if err := c.rdb.Del(ctx, queueKey()).Err(); err != nil {
		return fmt.Errorf("failed to flush queue: %w", err)
	}
	if err := c.rdb.Del(ctx, deadLetterKey()).Err(); err != nil {
		return fmt.Errorf("failed to flush dead letters: %w", err)
	}
	return nil
}
