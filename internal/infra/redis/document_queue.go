package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"amc-subscription/internal/domain/model"
	"amc-subscription/internal/domain/ports/adapter"
)

var _ adapter.DocumentQueue = (*DocumentQueue)(nil)

const documentJobTTL = 7 * 24 * time.Hour

// DocumentQueue is a reliable Redis list queue. Job ids move from pending to
// processing atomically on dequeue and leave processing only on Ack, Requeue
// or when the sweeper recovers them, so every job is delivered at least once.
//
// Keys (prefix = queue key):
//
//	<prefix>:job:<id>    JSON payload
//	<prefix>:pending     LIST of ids, LPUSH in / RPOP out
//	<prefix>:processing  LIST of ids being worked on
//	<prefix>:started     ZSET id -> unix time processing began
//	<prefix>:dead        LIST of ids that exhausted their attempts
type DocumentQueue struct {
	cli         *redis.Client
	prefix      string
	maxAttempts int
	log         *zerolog.Logger
	now         func() time.Time
}

func NewDocumentQueue(c *Client, prefix string, maxAttempts int, logger *zerolog.Logger) *DocumentQueue {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	l := logger.With().Str("component", "DocumentQueue").Logger()
	return &DocumentQueue{cli: c.cli, prefix: prefix, maxAttempts: maxAttempts, log: &l, now: time.Now}
}

func (q *DocumentQueue) jobKey(id string) string { return q.prefix + ":job:" + id }
func (q *DocumentQueue) pendingKey() string      { return q.prefix + ":pending" }
func (q *DocumentQueue) processingKey() string   { return q.prefix + ":processing" }
func (q *DocumentQueue) startedKey() string      { return q.prefix + ":started" }
func (q *DocumentQueue) deadKey() string         { return q.prefix + ":dead" }

// Enqueue stores the payload and pushes the id in one MULTI.
func (q *DocumentQueue) Enqueue(ctx context.Context, job *model.DocumentJob) error {
	if job == nil || job.ID == "" {
		return errors.New("document job without id")
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal document job: %w", err)
	}
	_, err = q.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, q.jobKey(job.ID), data, documentJobTTL)
		pipe.LPush(ctx, q.pendingKey(), job.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("enqueue document job: %w", err)
	}
	return nil
}

// Dequeue blocks up to wait for the next job. It returns (nil, nil) when the
// queue stayed empty.
func (q *DocumentQueue) Dequeue(ctx context.Context, wait time.Duration) (*model.DocumentJob, error) {
	id, err := q.cli.BRPopLPush(ctx, q.pendingKey(), q.processingKey(), wait).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := q.cli.ZAdd(ctx, q.startedKey(), &redis.Z{Score: float64(q.now().Unix()), Member: id}).Err(); err != nil {
		q.log.Warn().Err(err).Str("job_id", id).Msg("could not record processing start")
	}

	data, err := q.cli.Get(ctx, q.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		q.drop(ctx, id)
		return nil, fmt.Errorf("document job %s has no payload", id)
	}
	if err != nil {
		// The id stays in processing; RecoverStuck hands it out again.
		return nil, fmt.Errorf("load document job %s: %w", id, err)
	}
	var job model.DocumentJob
	if err := json.Unmarshal(data, &job); err != nil {
		q.drop(ctx, id)
		return nil, fmt.Errorf("unmarshal document job %s: %w", id, err)
	}
	return &job, nil
}

// Ack removes a finished job for good.
func (q *DocumentQueue) Ack(ctx context.Context, job *model.DocumentJob) error {
	_, err := q.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.processingKey(), 1, job.ID)
		pipe.ZRem(ctx, q.startedKey(), job.ID)
		pipe.Del(ctx, q.jobKey(job.ID))
		return nil
	})
	return err
}

// Requeue records a failed attempt and puts the job back at the tail of the
// pending list. After maxAttempts the job is parked on the dead list and
// Requeue reports dead=true.
func (q *DocumentQueue) Requeue(ctx context.Context, job *model.DocumentJob) (dead bool, err error) {
	job.Attempts++
	data, err := json.Marshal(job)
	if err != nil {
		return false, fmt.Errorf("marshal document job: %w", err)
	}
	dead = job.Attempts >= q.maxAttempts
	_, err = q.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, q.jobKey(job.ID), data, documentJobTTL)
		pipe.LRem(ctx, q.processingKey(), 1, job.ID)
		pipe.ZRem(ctx, q.startedKey(), job.ID)
		if dead {
			pipe.LPush(ctx, q.deadKey(), job.ID)
		} else {
			pipe.RPush(ctx, q.pendingKey(), job.ID)
		}
		return nil
	})
	return dead, err
}

// Bury parks a job on the dead list without further attempts.
func (q *DocumentQueue) Bury(ctx context.Context, job *model.DocumentJob) error {
	_, err := q.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.processingKey(), 1, job.ID)
		pipe.ZRem(ctx, q.startedKey(), job.ID)
		pipe.LPush(ctx, q.deadKey(), job.ID)
		return nil
	})
	return err
}

// RecoverStuck moves jobs that have been processing for longer than maxAge
// back to pending. It returns how many were recovered.
func (q *DocumentQueue) RecoverStuck(ctx context.Context, maxAge time.Duration) (int, error) {
	ids, err := q.cli.LRange(ctx, q.processingKey(), 0, -1).Result()
	if err != nil {
		return 0, err
	}
	cutoff := q.now().Add(-maxAge).Unix()
	recovered := 0
	for _, id := range ids {
		score, err := q.cli.ZScore(ctx, q.startedKey(), id).Result()
		if errors.Is(err, redis.Nil) {
			// Crashed between BRPOPLPUSH and ZADD: start the clock now.
			_ = q.cli.ZAdd(ctx, q.startedKey(), &redis.Z{Score: float64(q.now().Unix()), Member: id}).Err()
			continue
		}
		if err != nil {
			return recovered, err
		}
		if int64(score) > cutoff {
			continue
		}
		_, err = q.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LRem(ctx, q.processingKey(), 1, id)
			pipe.ZRem(ctx, q.startedKey(), id)
			pipe.RPush(ctx, q.pendingKey(), id)
			return nil
		})
		if err != nil {
			return recovered, err
		}
		q.log.Warn().Str("job_id", id).Str("started", strconv.FormatInt(int64(score), 10)).Msg("recovered stuck document job")
		recovered++
	}
	return recovered, nil
}

// Depth reports the pending and processing list lengths.
func (q *DocumentQueue) Depth(ctx context.Context) (pending, processing int64, err error) {
	pipe := q.cli.Pipeline()
	p := pipe.LLen(ctx, q.pendingKey())
	w := pipe.LLen(ctx, q.processingKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}
	return p.Val(), w.Val(), nil
}

// drop discards an id whose payload is missing or corrupt.
func (q *DocumentQueue) drop(ctx context.Context, id string) {
	_ = q.cli.LRem(ctx, q.processingKey(), 1, id).Err()
	_ = q.cli.ZRem(ctx, q.startedKey(), id).Err()
	q.log.Error().Str("job_id", id).Msg("dropped unreadable document job")
}
