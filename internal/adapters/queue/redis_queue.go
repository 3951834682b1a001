package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/learnlane/coursesearch/internal/domain/providers"
	redisclient "github.com/learnlane/coursesearch/internal/infrastructure/clients/redis"
	apperrors "github.com/learnlane/coursesearch/pkg/errors"
)

const (
	streamPrefix   = "jobs:"
	progressPrefix = "jobs:progress:"
	consumerGroup  = "coursesearch-workers"

	readBlock    = 5 * time.Second
	claimMinIdle = time.Minute
	progressTTL  = 24 * time.Hour
	maxStreamLen = 10000
)

// RedisQueue implements JobQueue over Redis Streams. Each job type gets its
// own stream; a shared consumer group gives at-least-once delivery with
// redelivery of stalled entries via XAUTOCLAIM.
type RedisQueue struct {
	client   *redisclient.Client
	consumer string
}

// NewRedisQueue creates a new Redis Streams job queue
func NewRedisQueue(client *redisclient.Client) providers.JobQueue {
	return &RedisQueue{
		client:   client,
		consumer: "worker-" + uuid.New().String()[:8],
	}
}

// Enqueue submits a payload to the stream for its job type
func (q *RedisQueue) Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.NewInternalError("failed to marshal job payload", err)
	}

	jobID := uuid.New().String()
	err = q.client.Client().XAdd(ctx, &redis.XAddArgs{
		Stream: streamPrefix + jobType,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]interface{}{
			"job_id":      jobID,
			"payload":     string(data),
			"enqueued_at": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return "", apperrors.NewUnavailableError("failed to enqueue job", err)
	}

	log.Debug().Str("job_id", jobID).Str("job_type", jobType).Msg("Job enqueued")
	return jobID, nil
}

// ReportProgress records a percent-complete figure for a running job
func (q *RedisQueue) ReportProgress(ctx context.Context, jobID string, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	key := progressPrefix + jobID
	pipe := q.client.Client().TxPipeline()
	pipe.HSet(ctx, key, "percent", percent, "updated_at", time.Now().UTC().Format(time.RFC3339))
	pipe.Expire(ctx, key, progressTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.NewUnavailableError("failed to report job progress", err)
	}
	return nil
}

// Consume blocks, delivering jobs of one type to the handler until the
// context is cancelled
func (q *RedisQueue) Consume(ctx context.Context, jobType string, handler providers.JobHandler) error {
	stream := streamPrefix + jobType
	if err := q.ensureGroup(ctx, stream); err != nil {
		return err
	}

	log.Info().Str("job_type", jobType).Str("consumer", q.consumer).Msg("Consuming jobs")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		q.claimStalled(ctx, stream, jobType, handler)

		streams, err := q.client.Client().XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    consumerGroup,
			Consumer: q.consumer,
			Streams:  []string{stream, ">"},
			Count:    10,
			Block:    readBlock,
		}).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			log.Error().Err(err).Str("job_type", jobType).Msg("Failed to read from job stream")
			time.Sleep(time.Second)
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				q.handleMessage(ctx, stream, jobType, msg, 1, handler)
			}
		}
	}
}

// claimStalled takes over pending entries whose consumer died mid-job
func (q *RedisQueue) claimStalled(ctx context.Context, stream, jobType string, handler providers.JobHandler) {
	messages, _, err := q.client.Client().XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    consumerGroup,
		Consumer: q.consumer,
		MinIdle:  claimMinIdle,
		Start:    "0-0",
		Count:    10,
	}).Result()
	if err != nil && err != redis.Nil {
		log.Warn().Err(err).Str("job_type", jobType).Msg("Failed to claim stalled jobs")
		return
	}

	for _, msg := range messages {
		q.handleMessage(ctx, stream, jobType, msg, 2, handler)
	}
}

func (q *RedisQueue) handleMessage(ctx context.Context, stream, jobType string, msg redis.XMessage, attempt int, handler providers.JobHandler) {
	job := q.parseJob(jobType, msg, attempt)

	if err := handler(ctx, job); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Str("job_type", jobType).
			Int("attempt", attempt).Msg("Job handler failed, leaving for redelivery")
		return
	}

	if err := q.client.Client().XAck(ctx, stream, consumerGroup, msg.ID).Err(); err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to ack job")
	}
}

func (q *RedisQueue) parseJob(jobType string, msg redis.XMessage, attempt int) *providers.Job {
	job := &providers.Job{
		Type:    jobType,
		Attempt: attempt,
	}
	if v, ok := msg.Values["job_id"].(string); ok {
		job.ID = v
	}
	if job.ID == "" {
		job.ID = msg.ID
	}
	if v, ok := msg.Values["payload"].(string); ok {
		job.Payload = json.RawMessage(v)
	}
	if v, ok := msg.Values["enqueued_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			job.EnqueuedAt = t
		}
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = timeFromStreamID(msg.ID)
	}
	return job
}

func (q *RedisQueue) ensureGroup(ctx context.Context, stream string) error {
	err := q.client.Client().XGroupCreateMkStream(ctx, stream, consumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return apperrors.NewUnavailableError(
			fmt.Sprintf("failed to create consumer group for %s", stream), err)
	}
	return nil
}

func timeFromStreamID(id string) time.Time {
	parts := strings.SplitN(id, "-", 2)
	ms, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
